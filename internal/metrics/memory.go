package metrics

import (
	"sync"
	"time"
)

// Memory is an in-process Recorder for tests: it keeps plain counters
// instead of forwarding anywhere, so a test can assert on what the
// Proposer/Learner reported.
type Memory struct {
	mu sync.Mutex

	Started   int
	Succeeded int
	Failed    int
	LastInFlight int

	CommitsApplied int
	CommitsFailed  int
}

// NewMemory returns a fresh in-memory Recorder.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) ProposalStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Started++
}

func (m *Memory) ProposalSucceeded(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Succeeded++
}

func (m *Memory) ProposalFailed(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failed++
}

func (m *Memory) InFlight(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastInFlight = n
}

func (m *Memory) CommitApplied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommitsApplied++
}

func (m *Memory) CommitFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommitsFailed++
}
