// Package memory implements an in-process paxos.PeerClient backed by a
// shared registry instead of sockets, for exercising multi-Replica
// scenarios in tests and demos without a real network.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/kickboxer/quorumkv/internal/action"
	"github.com/kickboxer/quorumkv/internal/paxos"
)

// ErrUnreachable is returned by a Client whose peer is not registered, or
// whose link to its peer has been cut with Partition.
var ErrUnreachable = errors.New("memory: peer unreachable")

// Network is a shared registry of NodeID -> peer handler. Every Replica
// in a test cluster registers itself once; Clients obtained from the
// same Network can then reach each other by NodeID.
type Network struct {
	mu        sync.RWMutex
	handlers  map[string]paxos.PeerClient
	cutLinks  map[[2]string]bool
}

// NewNetwork returns an empty registry.
func NewNetwork() *Network {
	return &Network{
		handlers: make(map[string]paxos.PeerClient),
		cutLinks: make(map[[2]string]bool),
	}
}

// Register binds nodeID to handler, typically a Replica. Registering the
// same nodeID twice replaces the previous binding.
func (n *Network) Register(nodeID string, handler paxos.PeerClient) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[nodeID] = handler
}

// Unregister removes nodeID, simulating a process that has exited.
func (n *Network) Unregister(nodeID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.handlers, nodeID)
}

// Partition cuts the link from `from` to `to`: calls a Client for `to`
// makes while impersonating `from` fail with ErrUnreachable, simulating
// a one-directional network partition. Pass the same pair to Heal to
// restore it.
func (n *Network) Partition(from, to string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cutLinks[[2]string{from, to}] = true
}

// Heal restores a link previously cut with Partition.
func (n *Network) Heal(from, to string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.cutLinks, [2]string{from, to})
}

func (n *Network) cut(from, to string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cutLinks[[2]string{from, to}]
}

func (n *Network) lookup(nodeID string) (paxos.PeerClient, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	h, ok := n.handlers[nodeID]
	return h, ok
}

// Client is a paxos.PeerClient that looks up its target in a Network on
// every call, so it reflects Register/Unregister/Partition changes made
// after construction (a Replica started before its peers finish
// registering still converges once they do).
type Client struct {
	net    *Network
	self   string
	target string
}

// NewClient returns a Client that, from self's point of view, reaches
// target through net.
func NewClient(net *Network, self, target string) *Client {
	return &Client{net: net, self: self, target: target}
}

func (c *Client) resolve() (paxos.PeerClient, error) {
	if c.net.cut(c.self, c.target) {
		return nil, ErrUnreachable
	}
	h, ok := c.net.lookup(c.target)
	if !ok {
		return nil, ErrUnreachable
	}
	return h, nil
}

func (c *Client) Prepare(ctx context.Context, id paxos.ProposalNumber, key int, a action.Action) (bool, *paxos.PrevAccepted, paxos.ProposalNumber, error) {
	h, err := c.resolve()
	if err != nil {
		return false, nil, paxos.ProposalNumber{}, err
	}
	return h.Prepare(ctx, id, key, a)
}

func (c *Client) Accept(ctx context.Context, id paxos.ProposalNumber, key int, a action.Action) (bool, paxos.ProposalNumber, error) {
	h, err := c.resolve()
	if err != nil {
		return false, paxos.ProposalNumber{}, err
	}
	return h.Accept(ctx, id, key, a)
}

func (c *Client) Commit(ctx context.Context, key int, a action.Action) (string, error) {
	h, err := c.resolve()
	if err != nil {
		return "", err
	}
	return h.Commit(ctx, key, a)
}

var _ paxos.PeerClient = (*Client)(nil)
