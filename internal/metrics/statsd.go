package metrics

import (
	"time"

	"github.com/cactus/go-statsd-client/v5/statsd"
)

// Statsd is the production Recorder: every counter and timing is
// forwarded to a statsd.Statter rather than held in ad hoc package
// globals.
type Statsd struct {
	stats statsd.Statter
}

// NewStatsd wraps an already-configured statsd.Statter.
func NewStatsd(stats statsd.Statter) *Statsd {
	return &Statsd{stats: stats}
}

const sampleRate = 1.0

func (s *Statsd) ProposalStarted() {
	s.stats.Inc("proposer.proposals.started", 1, sampleRate)
}

func (s *Statsd) ProposalSucceeded(latency time.Duration) {
	s.stats.Inc("proposer.proposals.succeeded", 1, sampleRate)
	s.stats.TimingDuration("proposer.proposals.latency", latency, sampleRate)
}

func (s *Statsd) ProposalFailed(latency time.Duration) {
	s.stats.Inc("proposer.proposals.failed", 1, sampleRate)
	s.stats.TimingDuration("proposer.proposals.latency", latency, sampleRate)
}

func (s *Statsd) InFlight(n int) {
	s.stats.Gauge("proposer.proposals.inflight", int64(n), sampleRate)
}

func (s *Statsd) CommitApplied() {
	s.stats.Inc("learner.commits.applied", 1, sampleRate)
}

func (s *Statsd) CommitFailed() {
	s.stats.Inc("learner.commits.failed", 1, sampleRate)
}
