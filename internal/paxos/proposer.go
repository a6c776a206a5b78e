package paxos

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kickboxer/quorumkv/internal/action"
	"github.com/kickboxer/quorumkv/internal/metrics"
)

// Client-visible result sentinels. Only these, plus the Store's own
// sentinels bubbled up through a successful commit, ever reach a client.
const (
	ResultFailedPrepare = "failed in prepare phase"
	ResultFailedAccept  = "failed in accept phase"
	ResultCommitFailed  = "commit failed"
	ResultNotRunning    = "not running"
)

const (
	defaultRPCTimeout   = 2 * time.Second
	maintenanceInterval = 1 * time.Second
	maxConcurrentAsync  = 1000
)

// Proposer drives the three-phase protocol on behalf of one Replica. One
// logical Proposer per Replica services many concurrent client calls.
type Proposer struct {
	nodeID  string
	counter *Counter
	peers   []PeerClient
	quorum  int
	metrics metrics.Recorder
	timeout time.Duration

	mu        sync.Mutex
	proposals *table

	started   uint64
	succeeded uint64
	failed    uint64
	latencyNs uint64 // running sum of completed proposal latencies
	completed uint64 // count backing the latencyNs average

	running int32
	stopCh  chan struct{}
	wg      sync.WaitGroup

	asyncSem chan struct{}
}

// NewProposer constructs a Proposer for nodeID, fanning out to peers
// (which must include a PeerClient for the local Replica itself, so the
// local node votes on its own proposals like any other peer). quorum is
// the minimum positive-response count a phase needs to proceed; callers
// compute it as len(peers)/2 + 1.
func NewProposer(nodeID string, peers []PeerClient, quorum int, rec metrics.Recorder) *Proposer {
	if rec == nil {
		rec = metrics.Noop()
	}
	return &Proposer{
		nodeID:    nodeID,
		counter:   NewCounter(nodeID),
		peers:     peers,
		quorum:    quorum,
		metrics:   rec,
		timeout:   defaultRPCTimeout,
		proposals: newTable(),
		asyncSem:  make(chan struct{}, maxConcurrentAsync),
	}
}

// SetTimeout overrides the per-RPC timeout bounding each peer call.
func (p *Proposer) SetTimeout(d time.Duration) {
	p.timeout = d
}

// Start begins background eviction of expired in-flight proposals.
func (p *Proposer) Start() {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return
	}
	p.stopCh = make(chan struct{})
	p.wg.Add(1)
	go p.maintain()
}

// Stop halts background eviction. In-flight proposals mid-phase are left
// to return whatever sentinel their current phase produces.
func (p *Proposer) Stop() {
	if !atomic.CompareAndSwapInt32(&p.running, 1, 0) {
		return
	}
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Proposer) isRunning() bool {
	return atomic.LoadInt32(&p.running) == 1
}

func (p *Proposer) maintain() {
	defer p.wg.Done()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case now := <-ticker.C:
			p.mu.Lock()
			p.proposals.evictExpired(now)
			p.mu.Unlock()
		}
	}
}

// Propose drives prepare -> accept -> commit for (key, a) and returns the
// client-visible result string.
func (p *Proposer) Propose(ctx context.Context, key int, a action.Action) string {
	if !p.isRunning() {
		return ResultNotRunning
	}

	start := time.Now()
	id := p.counter.Next()

	p.mu.Lock()
	p.proposals.put(NewProposal(id, key, a, start))
	inFlight := p.proposals.len()
	p.mu.Unlock()
	p.metrics.InFlight(inFlight)
	p.metrics.ProposalStarted()
	atomic.AddUint64(&p.started, 1)

	defer func() {
		p.mu.Lock()
		p.proposals.remove(id)
		inFlight := p.proposals.len()
		p.mu.Unlock()
		p.metrics.InFlight(inFlight)
	}()

	finish := func(result string, ok bool) string {
		latency := time.Since(start)
		atomic.AddUint64(&p.latencyNs, uint64(latency))
		atomic.AddUint64(&p.completed, 1)
		if ok {
			atomic.AddUint64(&p.succeeded, 1)
			p.metrics.ProposalSucceeded(latency)
		} else {
			atomic.AddUint64(&p.failed, 1)
			p.metrics.ProposalFailed(latency)
		}
		return result
	}

	// Prepare phase.
	prepareCount, adopted := p.fanoutPrepare(ctx, id, key, a)
	if prepareCount < p.quorum {
		return finish(ResultFailedPrepare, false)
	}

	proposeKey, proposeAction := key, a
	if adopted != nil {
		// Adopt the highest-numbered previously-accepted value instead of
		// always proposing our own, so concurrent proposers converge on
		// one value per key.
		proposeKey, proposeAction = adopted.Key, adopted.Action
	}

	// Accept phase.
	acceptCount := p.fanoutAccept(ctx, id, proposeKey, proposeAction)
	if acceptCount < p.quorum {
		return finish(ResultFailedAccept, false)
	}

	// Commit phase: best-effort, no quorum required.
	result := p.fanoutCommit(ctx, proposeKey, proposeAction)
	return finish(result, true)
}

// ProposeAsync runs Propose on a pool-bounded goroutine (target ~1000
// concurrent proposals) and delivers the result on the returned channel.
func (p *Proposer) ProposeAsync(ctx context.Context, key int, a action.Action) <-chan string {
	out := make(chan string, 1)
	p.asyncSem <- struct{}{}
	go func() {
		defer func() { <-p.asyncSem }()
		out <- p.Propose(ctx, key, a)
	}()
	return out
}

type prepareResult struct {
	ok          bool
	prev        *PrevAccepted
	highestSeen ProposalNumber
}

// fanoutPrepare invokes Prepare on every peer in parallel, bounded by
// p.timeout per call. Peer errors count as negative votes but never abort
// the phase. It returns the positive count and the highest-numbered
// previously-accepted value seen across all positive responses, if any.
// Every peer's reported highestSeen (including rejections) feeds
// p.counter.Observe, so this node's own numbering catches up with
// whatever the rest of the cluster has already seen.
func (p *Proposer) fanoutPrepare(ctx context.Context, id ProposalNumber, key int, a action.Action) (int, *PrevAccepted) {
	results := make(chan prepareResult, len(p.peers))
	for _, peer := range p.peers {
		peer := peer
		go func() {
			cctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			ok, prev, highestSeen, err := peer.Prepare(cctx, id, key, a)
			if err != nil {
				logger.Warning("prepare RPC failed: %v", err)
				results <- prepareResult{ok: false}
				return
			}
			results <- prepareResult{ok: ok, prev: prev, highestSeen: highestSeen}
		}()
	}

	count := 0
	var adopted *PrevAccepted
	var maxSeen ProposalNumber
	for i := 0; i < len(p.peers); i++ {
		r := <-results
		if maxSeen.Less(r.highestSeen) {
			maxSeen = r.highestSeen
		}
		if !r.ok {
			continue
		}
		count++
		if r.prev != nil && (adopted == nil || adopted.ID.Less(r.prev.ID)) {
			adopted = r.prev
		}
	}
	p.counter.Observe(maxSeen)
	return count, adopted
}

type acceptResult struct {
	ok          bool
	highestSeen ProposalNumber
}

// fanoutAccept invokes Accept on every peer in parallel, with the same
// counting discipline as fanoutPrepare, and the same highestSeen
// fast-forward.
func (p *Proposer) fanoutAccept(ctx context.Context, id ProposalNumber, key int, a action.Action) int {
	results := make(chan acceptResult, len(p.peers))
	for _, peer := range p.peers {
		peer := peer
		go func() {
			cctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			ok, highestSeen, err := peer.Accept(cctx, id, key, a)
			if err != nil {
				logger.Warning("accept RPC failed: %v", err)
				results <- acceptResult{ok: false}
				return
			}
			results <- acceptResult{ok: ok, highestSeen: highestSeen}
		}()
	}

	count := 0
	var maxSeen ProposalNumber
	for i := 0; i < len(p.peers); i++ {
		r := <-results
		if maxSeen.Less(r.highestSeen) {
			maxSeen = r.highestSeen
		}
		if r.ok {
			count++
		}
	}
	p.counter.Observe(maxSeen)
	return count
}

// fanoutCommit broadcasts Commit to every peer and returns the first
// non-empty response. No quorum is required; non-responding peers may
// silently diverge from the rest of the cluster, and nothing repairs
// them afterwards.
func (p *Proposer) fanoutCommit(ctx context.Context, key int, a action.Action) string {
	results := make(chan string, len(p.peers))
	for _, peer := range p.peers {
		peer := peer
		go func() {
			cctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			result, err := peer.Commit(cctx, key, a)
			if err != nil {
				logger.Warning("commit RPC failed: %v", err)
				results <- ""
				return
			}
			results <- result
		}()
	}

	for i := 0; i < len(p.peers); i++ {
		if result := <-results; result != "" {
			// Drain the remaining responses so their goroutines don't
			// leak waiting on a full buffered channel; we already have
			// our canonical answer.
			go func(remaining int) {
				for j := 0; j < remaining; j++ {
					<-results
				}
			}(len(p.peers) - i - 1)
			return result
		}
	}
	return ResultCommitFailed
}

// Metrics is a read-only snapshot of a Proposer's counters.
type Metrics struct {
	Started    uint64
	Succeeded  uint64
	Failed     uint64
	InFlight   int
	AvgLatency time.Duration
}

// Snapshot returns the current Proposer metrics.
func (p *Proposer) Snapshot() Metrics {
	p.mu.Lock()
	inFlight := p.proposals.len()
	p.mu.Unlock()

	completed := atomic.LoadUint64(&p.completed)
	var avg time.Duration
	if completed > 0 {
		avg = time.Duration(atomic.LoadUint64(&p.latencyNs) / completed)
	}
	return Metrics{
		Started:    atomic.LoadUint64(&p.started),
		Succeeded:  atomic.LoadUint64(&p.succeeded),
		Failed:     atomic.LoadUint64(&p.failed),
		InFlight:   inFlight,
		AvgLatency: avg,
	}
}
