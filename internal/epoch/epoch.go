// Package epoch implements epoch-based deferred reclamation for latch-free
// structures.
//
// Every in-flight operation enters a guard that pins the global epoch it
// started in. Retired objects are tagged with the epoch current at retirement
// and are only released once the minimum epoch still pinned by any guard has
// advanced past that tag. A guard that observed global epoch e can only hold
// references obtained after every retirement tagged with an epoch < e, so
// releasing below the minimum active epoch is safe.
//
// Active guards are tracked with a small ring of per-epoch counters rather
// than per-thread slots: Enter increments the counter for the current epoch
// and re-checks the global epoch, retrying if it moved. The epoch can only
// advance when the counter it is about to reuse has drained, which bounds the
// window of distinct epochs in flight to the ring size.
package epoch

import (
	"sync"
	"sync/atomic"
)

// buckets is the ring size. Epochs in flight span at most buckets-1 values.
const buckets = 8

// collectEvery triggers an opportunistic Collect after this many retirements.
const collectEvery = 64

type paddedCounter struct {
	n atomic.Int64
	_ [56]byte // avoid false sharing between adjacent counters
}

type retiredItem struct {
	epoch uint64
	fn    func()
}

// Stats is a snapshot of reclamation activity.
type Stats struct {
	Epoch     uint64 // current global epoch
	Retired   uint64 // objects handed to Retire so far
	Reclaimed uint64 // objects whose release functions have run
	Pending   uint64 // retired but not yet reclaimed
}

// Manager tracks the global epoch, active guards and retirement lists.
type Manager struct {
	global atomic.Uint64
	active [buckets]paddedCounter

	mu      sync.Mutex
	items   []retiredItem
	retired atomic.Uint64
	freed   atomic.Uint64
}

// NewManager creates a Manager. The global epoch starts at 1 so a zero epoch
// is never observed.
func NewManager() *Manager {
	m := &Manager{}
	m.global.Store(1)
	return m
}

// Guard pins the epoch an operation started in. Guards are cheap and must be
// released with Leave; they are not reusable.
type Guard struct {
	m     *Manager
	epoch uint64
}

// Enter registers an in-flight operation and returns its guard.
func (m *Manager) Enter() Guard {
	for {
		e := m.global.Load()
		m.active[e%buckets].n.Add(1)
		if m.global.Load() == e {
			return Guard{m: m, epoch: e}
		}
		// Epoch moved between load and publish; undo and retry so the
		// guard is counted in the bucket matching its pinned epoch.
		m.active[e%buckets].n.Add(-1)
	}
}

// Leave releases the guard.
func (g Guard) Leave() {
	g.m.active[g.epoch%buckets].n.Add(-1)
}

// Epoch returns the epoch the guard pinned.
func (g Guard) Epoch() uint64 { return g.epoch }

// Retire defers fn until no guard entered at or before the current epoch
// remains active. fn typically drops the last references to an unlinked node
// or recycles a mapping-table slot.
func (m *Manager) Retire(fn func()) {
	e := m.global.Load()
	m.mu.Lock()
	m.items = append(m.items, retiredItem{epoch: e, fn: fn})
	m.mu.Unlock()
	if m.retired.Add(1)%collectEvery == 0 {
		m.Collect()
	}
}

// tryAdvance moves the global epoch forward by one if the counter bucket it
// would reuse has drained.
func (m *Manager) tryAdvance() bool {
	e := m.global.Load()
	if m.active[(e+1)%buckets].n.Load() != 0 {
		return false
	}
	return m.global.CompareAndSwap(e, e+1)
}

// minActive returns the smallest epoch still pinned by a guard, or one past
// the current epoch when no guard is active.
func (m *Manager) minActive() uint64 {
	e := m.global.Load()
	lo := uint64(1)
	if e >= buckets-1 {
		lo = e - (buckets - 1)
	}
	for ep := lo; ep <= e; ep++ {
		if m.active[ep%buckets].n.Load() > 0 {
			return ep
		}
	}
	return e + 1
}

// Collect advances the epoch if possible and releases every retirement whose
// tag lies strictly below the minimum active epoch. It never blocks on
// in-flight guards.
func (m *Manager) Collect() {
	m.tryAdvance()
	min := m.minActive()

	var ready []retiredItem
	m.mu.Lock()
	keep := m.items[:0]
	for _, it := range m.items {
		if it.epoch < min {
			ready = append(ready, it)
		} else {
			keep = append(keep, it)
		}
	}
	m.items = keep
	m.mu.Unlock()

	for _, it := range ready {
		it.fn()
	}
	m.freed.Add(uint64(len(ready)))
}

// Drain releases all outstanding retirements. It must only be called when no
// guards can be entered anymore (index teardown).
func (m *Manager) Drain() {
	for {
		m.tryAdvance()
		m.Collect()
		m.mu.Lock()
		remaining := len(m.items)
		m.mu.Unlock()
		if remaining == 0 {
			return
		}
	}
}

// Stats returns a snapshot of reclamation activity.
func (m *Manager) Stats() Stats {
	retired := m.retired.Load()
	freed := m.freed.Load()
	return Stats{
		Epoch:     m.global.Load(),
		Retired:   retired,
		Reclaimed: freed,
		Pending:   retired - freed,
	}
}
