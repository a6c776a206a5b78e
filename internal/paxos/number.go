package paxos

import (
	"fmt"
	"sync/atomic"
)

// ProposalNumber is a (Counter, NodeID) pair, compared lexicographically.
// A bare local counter cannot give globally unique, totally ordered
// proposal numbers across Replicas on its own; pairing the counter with
// the originating NodeID gives both properties without a central
// allocator.
type ProposalNumber struct {
	Counter uint64
	NodeID  string
}

// Zero is the sentinel "no proposal seen yet" value.
var Zero = ProposalNumber{}

// Less reports whether n sorts strictly before other: by Counter first,
// then by NodeID as a tiebreaker for proposals minted at the same Counter
// on different nodes. Two distinct proposals never compare equal, since
// every Replica tags the numbers its own counter mints with its own NodeID.
func (n ProposalNumber) Less(other ProposalNumber) bool {
	if n.Counter != other.Counter {
		return n.Counter < other.Counter
	}
	return n.NodeID < other.NodeID
}

// Equal reports whether n and other identify the same proposal attempt.
func (n ProposalNumber) Equal(other ProposalNumber) bool {
	return n.Counter == other.Counter && n.NodeID == other.NodeID
}

func (n ProposalNumber) String() string {
	return fmt.Sprintf("%d.%s", n.Counter, n.NodeID)
}

// IsZero reports whether n is the zero value (no proposal).
func (n ProposalNumber) IsZero() bool {
	return n == Zero
}

// Counter is a process-wide monotonic source of ProposalNumbers for one
// Replica. A single atomic integer suffices; no singleton pattern is
// required, the Proposer owns one instance.
type Counter struct {
	nodeID string
	value  uint64
}

// NewCounter returns a counter that mints numbers tagged with nodeID.
func NewCounter(nodeID string) *Counter {
	return &Counter{nodeID: nodeID}
}

// Next atomically allocates the next ProposalNumber.
func (c *Counter) Next() ProposalNumber {
	v := atomic.AddUint64(&c.value, 1)
	return ProposalNumber{Counter: v, NodeID: c.nodeID}
}

// Observe fast-forwards the counter so the next Next() exceeds seen.
// Proposer.fanoutPrepare and fanoutAccept call this after every phase with
// the highest highestSeen any peer reported, so a node that is behind
// (its own prepares keep losing to a higher number already circulating)
// catches up instead of retrying at the same losing number indefinitely.
func (c *Counter) Observe(seen ProposalNumber) {
	for {
		cur := atomic.LoadUint64(&c.value)
		if seen.Counter <= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&c.value, cur, seen.Counter) {
			return
		}
	}
}
