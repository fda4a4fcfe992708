package bwtree

import (
	"sync"
	"sync/atomic"
)

// invalidID is the reserved null logical node ID.
const invalidID uint64 = 0

const (
	mpageBits = 12
	mpageSize = 1 << mpageBits // 4096 slots per page
	mpageMask = mpageSize - 1
)

// mpage is one fixed-size block of mapping-table slots.
type mpage[K Key[K]] struct {
	slots [mpageSize]atomic.Pointer[node[K]]
}

// mappingTable resolves stable logical node IDs to their current physical
// chain head. It is the single shared mutable resource of the tree: all
// publication happens through CAS on a slot. Pages are only ever appended;
// readers resolve IDs lock-free against an atomic snapshot of the page list.
//
// Recycled IDs go through a freelist, but only after the epoch manager
// guarantees no in-flight operation can still resolve them.
type mappingTable[K Key[K]] struct {
	mu     sync.Mutex // protects page growth
	pages  atomic.Pointer[[]*mpage[K]]
	nextID atomic.Uint64

	freeMu sync.Mutex
	free   []uint64
}

func newMappingTable[K Key[K]]() *mappingTable[K] {
	mt := &mappingTable[K]{}
	pages := make([]*mpage[K], 0, 4)
	mt.pages.Store(&pages)
	mt.nextID.Store(1) // 0 is invalidID
	return mt
}

// slot returns the slot for id, or nil if the id was never allocated.
func (mt *mappingTable[K]) slot(id uint64) *atomic.Pointer[node[K]] {
	pages := *mt.pages.Load()
	pageIdx := int(id >> mpageBits)
	if pageIdx >= len(pages) {
		return nil
	}
	return &pages[pageIdx].slots[id&mpageMask]
}

// get resolves id to its current chain head. A nil result means the node was
// unlinked; callers restart their traversal.
func (mt *mappingTable[K]) get(id uint64) *node[K] {
	s := mt.slot(id)
	if s == nil {
		return nil
	}
	return s.Load()
}

// cas publishes next as the chain head of id iff the head is still old.
func (mt *mappingTable[K]) cas(id uint64, old, next *node[K]) bool {
	s := mt.slot(id)
	if s == nil {
		return false
	}
	return s.CompareAndSwap(old, next)
}

// ensurePage grows the page list until pageIdx exists.
func (mt *mappingTable[K]) ensurePage(pageIdx int) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	pages := *mt.pages.Load()
	if pageIdx < len(pages) {
		return
	}
	grown := make([]*mpage[K], pageIdx+1)
	copy(grown, pages)
	for i := len(pages); i <= pageIdx; i++ {
		grown[i] = &mpage[K]{}
	}
	mt.pages.Store(&grown)
}

// allocate assigns a logical ID to head and publishes it. IDs come from the
// freelist when available, otherwise from the monotonic counter.
func (mt *mappingTable[K]) allocate(head *node[K]) uint64 {
	var id uint64
	mt.freeMu.Lock()
	if n := len(mt.free); n > 0 {
		id = mt.free[n-1]
		mt.free = mt.free[:n-1]
	}
	mt.freeMu.Unlock()

	if id == invalidID {
		id = mt.nextID.Add(1) - 1
		mt.ensurePage(int(id >> mpageBits))
	}
	mt.slot(id).Store(head)
	return id
}

// recycle clears the slot for id and returns it to the freelist. The caller
// must guarantee no concurrent operation can still resolve id, either via
// the epoch manager or because the id was never published.
func (mt *mappingTable[K]) recycle(id uint64) {
	if s := mt.slot(id); s != nil {
		s.Store(nil)
	}
	mt.freeMu.Lock()
	mt.free = append(mt.free, id)
	mt.freeMu.Unlock()
}
