package paxos

import (
	"context"

	"github.com/kickboxer/quorumkv/internal/action"
)

// PeerClient is the transport-level contract the Proposer uses to invoke
// prepare/accept/commit against one peer Replica (which may be the local
// Replica itself, looped back without going over the network). A non-nil
// error from any method always means "treat as a negative vote /
// unreachable peer" — it is absorbed by the Proposer and never surfaces
// to the client directly. Prepare and Accept both report the peer's
// current highestSeen alongside their vote, so the Proposer can fast
// forward its own Counter past a number another node is already using
// (Counter.Observe).
type PeerClient interface {
	Prepare(ctx context.Context, id ProposalNumber, key int, a action.Action) (ok bool, prev *PrevAccepted, highestSeen ProposalNumber, err error)
	Accept(ctx context.Context, id ProposalNumber, key int, a action.Action) (ok bool, highestSeen ProposalNumber, err error)
	Commit(ctx context.Context, key int, a action.Action) (result string, err error)
}
