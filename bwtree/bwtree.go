// Package bwtree implements a latch-free ordered index structure in the
// Bw-tree style: logical nodes are addressed through a mapping table and
// represented as an immutable base record plus a chain of delta records.
// Mutations publish a new delta at the chain head with a single CAS on the
// node's mapping-table slot; readers fold the chain to reconstruct current
// content. Retired records are reclaimed through epoch-based deferral.
//
// The tree is generic over its key type. Values are opaque uint64 payloads
// (the index layer packs row locations into them); the set of values under
// one key is stored as a roaring bitmap in leaf base records.
//
// Single-record operations (Insert, Delete, ScanKey, scans) never take a
// lock: contention is resolved by CAS retry only. Structure modification
// operations (split installation, merge, root changes) serialize among
// themselves on an internal mutex; they never block or get blocked by
// readers and single-record writers.
package bwtree

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tidalstore/relidx/internal/epoch"
	"github.com/tidalstore/relidx/resource"
)

var (
	// ErrDuplicateKey is returned when inserting a key that already has a
	// live entry in a unique tree.
	ErrDuplicateKey = errors.New("bwtree: duplicate key")

	// ErrResourceExhausted is returned when the resource controller denies
	// memory for a new record. The structure is left in its last consistent
	// state.
	ErrResourceExhausted = errors.New("bwtree: resource exhausted")

	// ErrClosed is returned for mutations after Close.
	ErrClosed = errors.New("bwtree: closed")
)

// Key is the contract a key type must satisfy: a total order via Compare,
// returning <0, 0 or >0.
type Key[K any] interface {
	Compare(other K) int
}

// Options configures a Tree.
type Options struct {
	// DeltaChainLimit is the chain length above which a reader-writer
	// opportunistically consolidates the chain into a fresh base record.
	DeltaChainLimit int

	// LeafSplitSize is the number of distinct keys at which a leaf is split.
	LeafSplitSize int

	// InnerSplitSize is the number of separators at which an inner node is
	// split.
	InnerSplitSize int

	// LeafMergeSize merges leaves holding fewer than this many keys into
	// their left sibling. The default of 1 merges only empty leaves; 0
	// disables merging.
	LeafMergeSize int

	// Controller limits node memory and consolidation throughput.
	// Nil means unlimited.
	Controller *resource.Controller

	// Logger receives structure-maintenance events at debug level.
	Logger *slog.Logger
}

// DefaultOptions are the options applied before user overrides.
var DefaultOptions = Options{
	DeltaChainLimit: 8,
	LeafSplitSize:   64,
	InnerSplitSize:  128,
	LeafMergeSize:   1,
}

// Stats is a point-in-time snapshot of tree activity.
type Stats struct {
	Size           int64 // live (key, location) entries
	Splits         uint64
	Merges         uint64
	RootSplits     uint64
	Consolidations uint64
	CASRetries     uint64
	MemoryBytes    int64 // estimated bytes accounted to this tree
	Epoch          epoch.Stats
}

// Tree is a latch-free ordered map from keys to sets of uint64 values.
type Tree[K Key[K]] struct {
	opts Options

	mt     *mappingTable[K]
	root   atomic.Uint64
	epochs *epoch.Manager

	// smoMu serializes structure modification (split install, merge, root
	// change) against each other only. Readers and single-record writers
	// never acquire it.
	smoMu sync.Mutex

	size   atomic.Int64
	memory atomic.Int64
	closed atomic.Bool

	splits         atomic.Uint64
	merges         atomic.Uint64
	rootSplits     atomic.Uint64
	consolidations atomic.Uint64
	casRetries     atomic.Uint64
}

// New creates an empty tree. It fails only if the resource controller cannot
// provide memory for the initial root leaf.
func New[K Key[K]](optFns ...func(*Options)) (*Tree[K], error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}
	if opts.DeltaChainLimit <= 0 {
		opts.DeltaChainLimit = DefaultOptions.DeltaChainLimit
	}
	if opts.LeafSplitSize <= 2 {
		opts.LeafSplitSize = DefaultOptions.LeafSplitSize
	}
	if opts.InnerSplitSize <= 2 {
		opts.InnerSplitSize = DefaultOptions.InnerSplitSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	t := &Tree[K]{
		opts:   opts,
		mt:     newMappingTable[K](),
		epochs: epoch.NewManager(),
	}

	rootLeaf := &node[K]{kind: kindLeaf, leaf: true}
	if err := t.acquire(nodeBytes(rootLeaf)); err != nil {
		return nil, err
	}
	t.root.Store(t.mt.allocate(rootLeaf))
	return t, nil
}

// acquire reserves record memory with the controller, tracking the tree's
// share so Close can return it.
func (t *Tree[K]) acquire(bytes int64) error {
	if !t.opts.Controller.TryAcquireMemory(bytes) {
		return ErrResourceExhausted
	}
	t.memory.Add(bytes)
	return nil
}

// release returns record memory to the controller.
func (t *Tree[K]) release(bytes int64) {
	t.opts.Controller.ReleaseMemory(bytes)
	t.memory.Add(-bytes)
}

// retireChain hands a replaced chain to the epoch manager; its memory is
// returned once no in-flight operation can still be folding it.
func (t *Tree[K]) retireChain(head *node[K]) {
	bytes := chainBytes(head)
	t.epochs.Retire(func() {
		t.release(bytes)
	})
}

// Insert adds (key, value). For a unique tree an existing live entry under
// the same key fails with ErrDuplicateKey and leaves the structure
// unchanged. Re-inserting an existing (key, value) pair is an idempotent
// no-op: the tree keeps set semantics per key.
func (t *Tree[K]) Insert(key K, value uint64, unique bool) error {
	if t.closed.Load() {
		return ErrClosed
	}
	g := t.epochs.Enter()
	defer g.Leave()

	for {
		id, head := t.findLeaf(key)

		// Folding from the exact head the CAS publishes against makes the
		// presence check atomic with the publication: any conflicting
		// concurrent insert changes the head and fails our CAS.
		live := t.foldKey(head, key)
		if slices.Contains(live, value) {
			return nil
		}
		if unique && len(live) > 0 {
			return ErrDuplicateKey
		}

		if err := t.acquire(deltaBytes); err != nil {
			return err
		}
		d := &node[K]{
			kind:  kindInsert,
			leaf:  true,
			next:  head,
			depth: head.depth + 1,
			key:   key,
			val:   value,
		}
		if t.mt.cas(id, head, d) {
			t.size.Add(1)
			t.maybeConsolidate(id, d)
			return nil
		}
		t.release(deltaBytes)
		t.casRetries.Add(1)
	}
}

// Delete removes (key, value). Deleting a pair that is not present is an
// idempotent no-op.
func (t *Tree[K]) Delete(key K, value uint64) error {
	if t.closed.Load() {
		return ErrClosed
	}
	g := t.epochs.Enter()
	defer g.Leave()

	for {
		id, head := t.findLeaf(key)

		if !slices.Contains(t.foldKey(head, key), value) {
			return nil
		}

		if err := t.acquire(deltaBytes); err != nil {
			return err
		}
		d := &node[K]{
			kind:  kindDelete,
			leaf:  true,
			next:  head,
			depth: head.depth + 1,
			key:   key,
			val:   value,
		}
		if t.mt.cas(id, head, d) {
			t.size.Add(-1)
			t.maybeConsolidate(id, d)
			return nil
		}
		t.release(deltaBytes)
		t.casRetries.Add(1)
	}
}

// ScanKey returns all live values under key, ascending. The result reflects
// some linearization point during the call.
func (t *Tree[K]) ScanKey(key K) []uint64 {
	g := t.epochs.Enter()
	defer g.Leave()

	_, head := t.findLeaf(key)
	return t.foldKey(head, key)
}

// Size returns the number of live (key, value) entries.
func (t *Tree[K]) Size() int64 { return t.size.Load() }

// Stats returns a snapshot of tree activity.
func (t *Tree[K]) Stats() Stats {
	return Stats{
		Size:           t.size.Load(),
		Splits:         t.splits.Load(),
		Merges:         t.merges.Load(),
		RootSplits:     t.rootSplits.Load(),
		Consolidations: t.consolidations.Load(),
		CASRetries:     t.casRetries.Load(),
		MemoryBytes:    t.memory.Load(),
		Epoch:          t.epochs.Stats(),
	}
}

// Close drains deferred reclamation and returns all accounted memory to the
// controller. The caller must guarantee no operations are in flight or
// issued afterwards.
func (t *Tree[K]) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.epochs.Drain()
	if rem := t.memory.Swap(0); rem > 0 {
		t.opts.Controller.ReleaseMemory(rem)
	}
	return nil
}
