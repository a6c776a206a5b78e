// Package membership holds the fixed, ordered list of peer addresses a
// cluster is configured with at startup. Dynamic membership is a
// Non-goal; this list never changes for the lifetime of a process.
package membership

import "fmt"

// PeerAddr identifies one Replica: its NodeID and the network address its
// transport listens on.
type PeerAddr struct {
	NodeID string
	Addr   string
}

// Membership is the immutable, ordered cluster configuration.
type Membership struct {
	self  PeerAddr
	peers []PeerAddr
}

// New constructs a Membership. peers must include self exactly once;
// New preserves the given order so fanout order is deterministic across
// runs (useful for reproducing test scenarios).
func New(self PeerAddr, peers []PeerAddr) (*Membership, error) {
	found := false
	ordered := make([]PeerAddr, len(peers))
	copy(ordered, peers)
	for _, p := range ordered {
		if p.NodeID == self.NodeID {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("membership: self %q not present in peer list", self.NodeID)
	}
	return &Membership{self: self, peers: ordered}, nil
}

// Self returns this process's own PeerAddr.
func (m *Membership) Self() PeerAddr { return m.self }

// Peers returns every member of the cluster, including self, in the
// fixed configured order.
func (m *Membership) Peers() []PeerAddr {
	out := make([]PeerAddr, len(m.peers))
	copy(out, m.peers)
	return out
}

// Size returns the cluster size N.
func (m *Membership) Size() int { return len(m.peers) }

// Quorum returns Q = floor(N/2) + 1.
func (m *Membership) Quorum() int { return len(m.peers)/2 + 1 }
