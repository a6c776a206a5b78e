package paxos

import (
	"time"

	"github.com/kickboxer/quorumkv/internal/action"
)

// proposalExpiry is how long an in-flight proposal may live in the
// Proposer's table before background maintenance garbage-collects it.
// This is passive cleanup only; it never cancels an active phase, a
// slow proposal still runs to completion and just stops being tracked.
const proposalExpiry = 30 * time.Second

// Proposal is the proposer-side record of one client request working its
// way through prepare/accept/commit. It is owned exclusively by the
// Proposer that created it.
type Proposal struct {
	ID          ProposalNumber
	Key         int
	Action      action.Action
	SubmittedAt time.Time
}

// NewProposal creates a proposal record for key/a with id, stamped at now.
func NewProposal(id ProposalNumber, key int, a action.Action, now time.Time) *Proposal {
	return &Proposal{ID: id, Key: key, Action: a, SubmittedAt: now}
}

// Expired reports whether this proposal has outlived proposalExpiry as of
// now, and should be garbage-collected from the in-flight table.
func (p *Proposal) Expired(now time.Time) bool {
	return now.Sub(p.SubmittedAt) > proposalExpiry
}

// table is the Proposer's in-flight proposal registry. It has no locking
// of its own: the Proposer guards every access with its mu. It is
// deliberately small and unexported: only the Proposer in this package
// touches it.
type table struct {
	entries map[ProposalNumber]*Proposal
}

func newTable() *table {
	return &table{entries: make(map[ProposalNumber]*Proposal)}
}

func (t *table) put(p *Proposal) {
	t.entries[p.ID] = p
}

func (t *table) remove(id ProposalNumber) {
	delete(t.entries, id)
}

func (t *table) len() int {
	return len(t.entries)
}

// evictExpired removes every proposal older than proposalExpiry as of now
// and returns how many were removed, for the background maintenance loop.
func (t *table) evictExpired(now time.Time) int {
	removed := 0
	for id, p := range t.entries {
		if p.Expired(now) {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}
