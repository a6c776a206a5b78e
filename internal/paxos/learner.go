package paxos

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kickboxer/quorumkv/internal/action"
	"github.com/kickboxer/quorumkv/internal/metrics"
	"github.com/kickboxer/quorumkv/internal/store"
)

// commitRetention bounds how long a CommitRecord is kept for
// introspection. Retention is not part of correctness; records only
// need to be discarded after a bounded window so memory doesn't grow
// without limit.
const commitRetention = 5 * time.Minute

// CommitRecord is retained for introspection after a commit is applied.
type CommitRecord struct {
	Key       int
	Action    action.Action
	Result    store.Result
	AppliedAt time.Time
}

// Learner applies a committed (key, action) pair to the Store and records
// the outcome. It never consults proposal numbers: commit fanout is
// idempotent at the Store level, so re-delivery of an already-applied
// commit is permitted and simply produces the same class of result.
type Learner struct {
	mu      sync.Mutex
	store   store.Store
	records []CommitRecord
	metrics metrics.Recorder

	successCount uint64
	failureCount uint64

	running int32
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewLearner constructs a Learner over s, reporting through rec. rec may
// be nil, equivalent to metrics.Noop().
func NewLearner(s store.Store, rec metrics.Recorder) *Learner {
	if rec == nil {
		rec = metrics.Noop()
	}
	return &Learner{store: s, metrics: rec}
}

// Start begins background eviction of CommitRecords older than the
// retention window.
func (l *Learner) Start() {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return
	}
	l.stopCh = make(chan struct{})
	l.wg.Add(1)
	go l.maintain()
}

// Stop halts background eviction.
func (l *Learner) Stop() {
	if !atomic.CompareAndSwapInt32(&l.running, 1, 0) {
		return
	}
	close(l.stopCh)
	l.wg.Wait()
}

func (l *Learner) maintain() {
	defer l.wg.Done()
	ticker := time.NewTicker(commitRetention / 5)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

func (l *Learner) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.records[:0]
	for _, r := range l.records {
		if now.Sub(r.AppliedAt) <= commitRetention {
			kept = append(kept, r)
		}
	}
	l.records = kept
}

// Commit dispatches the committed action against the Store and returns
// the human-readable result. Invalid action codes produce the
// invalid-action sentinel without touching the Store.
func (l *Learner) Commit(key int, a action.Action) store.Result {
	result := store.Apply(l.store, key, a)

	l.mu.Lock()
	l.records = append(l.records, CommitRecord{
		Key: key, Action: a, Result: result, AppliedAt: time.Now(),
	})
	if result == store.OK {
		l.successCount++
	} else {
		l.failureCount++
	}
	l.mu.Unlock()

	if result == store.OK {
		l.metrics.CommitApplied()
	} else {
		l.metrics.CommitFailed()
	}
	return result
}

// Counts returns the success/failure counters for introspection.
func (l *Learner) Counts() (success, failure uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.successCount, l.failureCount
}

// Records returns a snapshot of retained CommitRecords, most recent last.
func (l *Learner) Records() []CommitRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]CommitRecord, len(l.records))
	copy(out, l.records)
	return out
}
