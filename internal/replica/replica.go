// Package replica hosts the per-node composition of Store, Acceptor,
// Learner, and Proposer, and exposes both the peer RPC surface
// (prepare/accept/commit) and the client-facing operations (get/put/
// delete).
package replica

import (
	"context"
	"sync/atomic"

	"github.com/op/go-logging"

	"github.com/kickboxer/quorumkv/internal/action"
	"github.com/kickboxer/quorumkv/internal/membership"
	"github.com/kickboxer/quorumkv/internal/metrics"
	"github.com/kickboxer/quorumkv/internal/paxos"
	"github.com/kickboxer/quorumkv/internal/store"
)

var logger = logging.MustGetLogger("replica")

// State is the Replica's lifecycle.
type State int32

const (
	Initialized State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "INITIALIZED"
	case Running:
		return "RUNNING"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// PeerResolver builds a paxos.PeerClient for a remote cluster member. The
// Replica never caches these bidirectionally; it resolves per-peer once
// at construction time from the membership list.
type PeerResolver func(peer membership.PeerAddr) paxos.PeerClient

// Replica owns one Store, one Acceptor, one Learner, and one Proposer. It
// never shares memory with peer Replicas; all peer communication is
// through the paxos.PeerClient RPC surface.
type Replica struct {
	self       membership.PeerAddr
	membership *membership.Membership

	store    store.Store
	acceptor *paxos.Acceptor
	learner  *paxos.Learner
	proposer *paxos.Proposer

	state int32
}

// New builds a Replica. resolve is consulted once per non-self peer in
// mem; the local peer is wired as a direct in-process loopback rather
// than resolved through resolve, since a Replica always votes on its
// own proposals alongside its peers.
func New(mem *membership.Membership, resolve PeerResolver, inj *paxos.FailureInjector, rec metrics.Recorder) *Replica {
	s := store.NewMemory()
	acceptor := paxos.NewAcceptor(s, inj)
	learner := paxos.NewLearner(s, rec)

	r := &Replica{
		self:       mem.Self(),
		membership: mem,
		store:      s,
		acceptor:   acceptor,
		learner:    learner,
		state:      int32(Initialized),
	}

	loopback := &localPeer{acceptor: acceptor, learner: learner, running: r.running}

	peers := make([]paxos.PeerClient, 0, mem.Size())
	for _, p := range mem.Peers() {
		if p.NodeID == r.self.NodeID {
			peers = append(peers, loopback)
			continue
		}
		peers = append(peers, resolve(p))
	}

	r.proposer = paxos.NewProposer(r.self.NodeID, peers, mem.Quorum(), rec)
	return r
}

// State returns the current lifecycle state.
func (r *Replica) State() State {
	return State(atomic.LoadInt32(&r.state))
}

// Start transitions INITIALIZED -> RUNNING and starts every inner
// component. It is idempotent: calling it again while RUNNING, or after
// STOPPED, is a no-op (there is no transition back from STOPPED).
func (r *Replica) Start() {
	if !atomic.CompareAndSwapInt32(&r.state, int32(Initialized), int32(Running)) {
		return
	}
	r.acceptor.Start()
	r.learner.Start()
	r.proposer.Start()
	logger.Info("replica %s started, cluster size %d, quorum %d", r.self.NodeID, r.membership.Size(), r.membership.Quorum())
}

// Stop transitions to STOPPED and tears down every inner component.
// Idempotent; safe to call whether or not Start was ever called.
func (r *Replica) Stop() {
	prev := atomic.SwapInt32(&r.state, int32(Stopped))
	if State(prev) == Stopped {
		return
	}
	r.acceptor.Stop()
	r.learner.Stop()
	r.proposer.Stop()
	logger.Info("replica %s stopped", r.self.NodeID)
}

func (r *Replica) running() bool {
	return r.State() == Running
}

// --- client-facing operations ---

// Get services a client read. It always returns one of: success,
// not-found, a phase-failure sentinel, or not-running.
func (r *Replica) Get(ctx context.Context, key int) string {
	if !r.running() {
		return paxos.ResultNotRunning
	}
	return r.proposer.Propose(ctx, key, action.Read)
}

// Put services a client insert.
func (r *Replica) Put(ctx context.Context, key int) string {
	if !r.running() {
		return paxos.ResultNotRunning
	}
	return r.proposer.Propose(ctx, key, action.Insert)
}

// Delete services a client remove.
func (r *Replica) Delete(ctx context.Context, key int) string {
	if !r.running() {
		return paxos.ResultNotRunning
	}
	return r.proposer.Propose(ctx, key, action.Remove)
}

// --- peer RPC surface, invoked by other Replicas' Proposers ---

// HandlePrepare answers a peer's prepare request. While not RUNNING it
// returns a rejection. It always reports the Acceptor's current
// highestSeen alongside the vote, so the calling Proposer can fast
// forward its own numbering.
func (r *Replica) HandlePrepare(id paxos.ProposalNumber, key int, a action.Action) (bool, *paxos.PrevAccepted, paxos.ProposalNumber) {
	if !r.running() {
		return false, nil, r.acceptor.HighestSeen()
	}
	ok, prev := r.acceptor.Prepare(id, key, a)
	return ok, prev, r.acceptor.HighestSeen()
}

// HandleAccept answers a peer's accept request, reporting highestSeen
// alongside the vote for the same reason as HandlePrepare.
func (r *Replica) HandleAccept(id paxos.ProposalNumber, key int, a action.Action) (bool, paxos.ProposalNumber) {
	if !r.running() {
		return false, r.acceptor.HighestSeen()
	}
	ok := r.acceptor.Accept(id, key, a)
	return ok, r.acceptor.HighestSeen()
}

// HandleCommit answers a peer's commit broadcast.
func (r *Replica) HandleCommit(key int, a action.Action) string {
	if !r.running() {
		return ""
	}
	return string(r.learner.Commit(key, a))
}

// Metrics exposes the Proposer's read-only metrics snapshot.
func (r *Replica) Metrics() paxos.Metrics {
	return r.proposer.Snapshot()
}

// localPeer adapts the local Acceptor/Learner directly into a
// paxos.PeerClient: the local member of the cluster is invoked
// in-process, never serialized over the wire. running reports the
// owning Replica's own lifecycle state: Prepare/Accept already gate
// themselves through the Acceptor's own isRunning flag (kept in lockstep
// with the Replica's by Start/Stop), but Learner.Commit has no such gate
// of its own, so Commit checks running explicitly to match HandleCommit's
// treatment of a remote peer's commit while not RUNNING.
type localPeer struct {
	acceptor *paxos.Acceptor
	learner  *paxos.Learner
	running  func() bool
}

func (l *localPeer) Prepare(_ context.Context, id paxos.ProposalNumber, key int, a action.Action) (bool, *paxos.PrevAccepted, paxos.ProposalNumber, error) {
	ok, prev := l.acceptor.Prepare(id, key, a)
	return ok, prev, l.acceptor.HighestSeen(), nil
}

func (l *localPeer) Accept(_ context.Context, id paxos.ProposalNumber, key int, a action.Action) (bool, paxos.ProposalNumber, error) {
	return l.acceptor.Accept(id, key, a), l.acceptor.HighestSeen(), nil
}

func (l *localPeer) Commit(_ context.Context, key int, a action.Action) (string, error) {
	if !l.running() {
		return "", nil
	}
	return string(l.learner.Commit(key, a)), nil
}

var _ paxos.PeerClient = (*localPeer)(nil)
