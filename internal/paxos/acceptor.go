package paxos

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/op/go-logging"

	"github.com/kickboxer/quorumkv/internal/action"
	"github.com/kickboxer/quorumkv/internal/store"
)

var logger = logging.MustGetLogger("paxos")

const (
	preparedRetention = 60 * time.Second
	acceptedRetention = 120 * time.Second
	maintenanceTick   = 2 * time.Second
)

type preparedEntry struct {
	key    int
	action action.Action
	at     time.Time
}

type acceptedEntry struct {
	id     ProposalNumber
	key    int
	action action.Action
	at     time.Time
}

// PrevAccepted is the previously-accepted (id, key, action) a prepare reply
// carries back to the Proposer, so a Proposer that wins a later round
// adopts the highest-numbered already-accepted value instead of
// clobbering it with its own client value.
type PrevAccepted struct {
	ID     ProposalNumber
	Key    int
	Action action.Action
}

// Acceptor is the per-Replica voter: it decides whether to promise and
// whether to accept, based on the single monotone highestSeen counter.
type Acceptor struct {
	mu sync.Mutex

	highestSeen     ProposalNumber
	prepared        map[ProposalNumber]preparedEntry
	accepted        map[ProposalNumber]acceptedEntry
	highestAccepted *acceptedEntry

	store    store.Store
	failures *FailureInjector
	running  int32
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewAcceptor constructs an Acceptor over s. inj may be nil, equivalent to
// NoFailureInjection().
func NewAcceptor(s store.Store, inj *FailureInjector) *Acceptor {
	if inj == nil {
		inj = NoFailureInjection()
	}
	return &Acceptor{
		prepared: make(map[ProposalNumber]preparedEntry),
		accepted: make(map[ProposalNumber]acceptedEntry),
		store:    s,
		failures: inj,
	}
}

// Start begins background eviction of stale prepared/accepted entries.
func (a *Acceptor) Start() {
	if !atomic.CompareAndSwapInt32(&a.running, 0, 1) {
		return
	}
	a.stopCh = make(chan struct{})
	a.wg.Add(1)
	go a.maintain()
}

// Stop halts background eviction. While stopped, Prepare and Accept
// return false/rejection.
func (a *Acceptor) Stop() {
	if !atomic.CompareAndSwapInt32(&a.running, 1, 0) {
		return
	}
	close(a.stopCh)
	a.wg.Wait()
}

func (a *Acceptor) isRunning() bool {
	return atomic.LoadInt32(&a.running) == 1
}

func (a *Acceptor) maintain() {
	defer a.wg.Done()
	ticker := time.NewTicker(maintenanceTick)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case now := <-ticker.C:
			a.evict(now)
		}
	}
}

func (a *Acceptor) evict(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, entry := range a.prepared {
		if now.Sub(entry.at) > preparedRetention {
			delete(a.prepared, id)
		}
	}
	for id, entry := range a.accepted {
		if now.Sub(entry.at) > acceptedRetention {
			delete(a.accepted, id)
		}
	}
}

// Prepare implements the first phase of the protocol: it promises not to
// accept any proposal numbered below id, provided id is not already
// stale and the action is locally plausible. On success it returns the
// highest previously-accepted (id, key, action), if any, so the Proposer
// can adopt it instead of the client's own value.
func (a *Acceptor) Prepare(id ProposalNumber, key int, act action.Action) (ok bool, prev *PrevAccepted) {
	if !a.isRunning() {
		return false, nil
	}
	a.failures.MaybeDelay()

	a.mu.Lock()
	defer a.mu.Unlock()

	if id.Less(a.highestSeen) {
		return false, nil
	}
	if !a.store.Validate(key, act) {
		return false, nil
	}

	a.prepared[id] = preparedEntry{key: key, action: act, at: time.Now()}
	a.highestSeen = id

	if a.highestAccepted != nil {
		prev = &PrevAccepted{
			ID:     a.highestAccepted.id,
			Key:    a.highestAccepted.key,
			Action: a.highestAccepted.action,
		}
	}
	return true, prev
}

// Accept implements the second phase: it records an accepted entry for id
// provided a prior Prepare for id was granted and no higher id has been
// seen since.
func (a *Acceptor) Accept(id ProposalNumber, key int, act action.Action) bool {
	if !a.isRunning() {
		return false
	}
	a.failures.MaybeDelay()

	a.mu.Lock()
	defer a.mu.Unlock()

	if id.Less(a.highestSeen) {
		return false
	}
	if _, prepared := a.prepared[id]; !prepared {
		return false
	}

	entry := acceptedEntry{id: id, key: key, action: act, at: time.Now()}
	a.accepted[id] = entry
	if a.highestAccepted == nil || a.highestAccepted.id.Less(id) {
		a.highestAccepted = &entry
	}
	a.highestSeen = id
	return true
}

// HighestSeen returns the highest ProposalNumber this Acceptor has
// promised or accepted, for introspection and tests.
func (a *Acceptor) HighestSeen() ProposalNumber {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.highestSeen
}
