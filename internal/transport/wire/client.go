// Package wire implements a paxos.PeerClient over TCP, framing each
// request as a length-prefixed binary message and pooling one set of
// idle connections per peer.
package wire

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/op/go-logging"

	"github.com/kickboxer/quorumkv/internal/action"
	"github.com/kickboxer/quorumkv/internal/paxos"
)

var logger = logging.MustGetLogger("wire")

const (
	defaultDialTimeout = 2 * time.Second
	defaultMaxIdle     = 10
)

// Client is a paxos.PeerClient that dials addr over TCP.
type Client struct {
	addr string
	pool *connPool
}

// NewClient returns a Client targeting addr, pooling up to maxIdle idle
// connections. maxIdle<=0 uses a small default.
func NewClient(addr string, maxIdle int) *Client {
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdle
	}
	return &Client{addr: addr, pool: newConnPool(addr, maxIdle, defaultDialTimeout)}
}

func deadlineFor(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return time.Now().Add(defaultDialTimeout)
}

// roundTrip sends one framed request and reads back one framed reply,
// discarding the connection on any I/O error so a later call redials
// rather than reusing a socket left in an unknown framing state.
func (c *Client) roundTrip(ctx context.Context, reqType uint8, payload []byte) (uint8, []byte, error) {
	conn, err := c.pool.get()
	if err != nil {
		return 0, nil, fmt.Errorf("wire: dial %s: %w", c.addr, err)
	}
	if err := conn.SetDeadline(deadlineFor(ctx)); err != nil {
		c.pool.discard(conn)
		return 0, nil, err
	}

	w := bufio.NewWriter(conn)
	if err := writeFrame(w, reqType, payload); err != nil {
		c.pool.discard(conn)
		return 0, nil, err
	}
	if err := w.Flush(); err != nil {
		c.pool.discard(conn)
		return 0, nil, err
	}

	r := bufio.NewReader(conn)
	replyType, replyPayload, err := readFrame(r)
	if err != nil {
		c.pool.discard(conn)
		return 0, nil, err
	}

	c.pool.put(conn)
	return replyType, replyPayload, nil
}

func (c *Client) Prepare(ctx context.Context, id paxos.ProposalNumber, key int, a action.Action) (bool, *paxos.PrevAccepted, paxos.ProposalNumber, error) {
	payload, err := encodePrepareRequest(id, key, a)
	if err != nil {
		return false, nil, paxos.ProposalNumber{}, err
	}
	replyType, replyPayload, err := c.roundTrip(ctx, msgPrepareRequest, payload)
	if err != nil {
		logger.Warning("prepare RPC to %s failed: %v", c.addr, err)
		return false, nil, paxos.ProposalNumber{}, err
	}
	if replyType != msgPrepareReply {
		return false, nil, paxos.ProposalNumber{}, fmt.Errorf("wire: unexpected reply type %d for prepare", replyType)
	}
	return decodePrepareReply(replyPayload)
}

func (c *Client) Accept(ctx context.Context, id paxos.ProposalNumber, key int, a action.Action) (bool, paxos.ProposalNumber, error) {
	payload, err := encodePrepareRequest(id, key, a)
	if err != nil {
		return false, paxos.ProposalNumber{}, err
	}
	replyType, replyPayload, err := c.roundTrip(ctx, msgAcceptRequest, payload)
	if err != nil {
		logger.Warning("accept RPC to %s failed: %v", c.addr, err)
		return false, paxos.ProposalNumber{}, err
	}
	if replyType != msgAcceptReply {
		return false, paxos.ProposalNumber{}, fmt.Errorf("wire: unexpected reply type %d for accept", replyType)
	}
	return decodeAcceptReply(replyPayload)
}

func (c *Client) Commit(ctx context.Context, key int, a action.Action) (string, error) {
	payload, err := encodeCommitRequest(key, a)
	if err != nil {
		return "", err
	}
	replyType, replyPayload, err := c.roundTrip(ctx, msgCommitRequest, payload)
	if err != nil {
		logger.Warning("commit RPC to %s failed: %v", c.addr, err)
		return "", err
	}
	if replyType != msgCommitReply {
		return "", fmt.Errorf("wire: unexpected reply type %d for commit", replyType)
	}
	return decodeCommitReply(replyPayload)
}

// Close releases pooled idle connections.
func (c *Client) Close() {
	c.pool.closeAll()
}

var _ paxos.PeerClient = (*Client)(nil)
