// Package metrics exposes the read-only counters and timings the
// Proposer and Learner report, backed by statsd in production and an
// in-memory recorder in tests.
package metrics

import "time"

// Recorder is the sink the Proposer and Learner report through. It is
// kept narrow and additive-only: nothing in the consensus path branches
// on a metric value.
type Recorder interface {
	ProposalStarted()
	ProposalSucceeded(latency time.Duration)
	ProposalFailed(latency time.Duration)
	InFlight(n int)

	CommitApplied()
	CommitFailed()
}

// noop discards every observation; used when no Recorder is configured.
type noop struct{}

// Noop returns a Recorder that discards every observation.
func Noop() Recorder { return noop{} }

func (noop) ProposalStarted()                       {}
func (noop) ProposalSucceeded(latency time.Duration) {}
func (noop) ProposalFailed(latency time.Duration)    {}
func (noop) InFlight(n int)                          {}
func (noop) CommitApplied()                          {}
func (noop) CommitFailed()                           {}
