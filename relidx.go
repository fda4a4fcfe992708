package relidx

import (
	"context"
	"iter"
	"time"

	"github.com/tidalstore/relidx/bwtree"
	"github.com/tidalstore/relidx/catalog"
	"github.com/tidalstore/relidx/keys"
)

// EncodedKey is the type-erased byte form of an index key. Encoded bytes
// compare lexicographically in the schema-defined key order.
type EncodedKey []byte

// Index is the type-erased handle for one index. All methods are safe for
// concurrent use; results of point and range reads reflect some
// linearization point during the call.
type Index interface {
	// Metadata returns the immutable description the index was built from.
	Metadata() IndexMetadata

	// KeyEncoding reports the encoding strategy the factory selected.
	KeyEncoding() keys.Encoding

	// InsertEntry adds a (key, location) entry for the tuple's indexed
	// columns. Inserting a pair that already exists is a no-op; under a
	// unique constraint a second live entry for the same key fails with
	// ErrDuplicateKey.
	InsertEntry(ctx context.Context, t *catalog.Tuple, location ItemPointer) error

	// DeleteEntry removes a (key, location) entry. Deleting a pair that is
	// not present is a no-op.
	DeleteEntry(ctx context.Context, t *catalog.Tuple, location ItemPointer) error

	// ScanKey returns all locations stored under the tuple's key, ascending.
	ScanKey(ctx context.Context, t *catalog.Tuple) ([]ItemPointer, error)

	// Scan lazily yields (encoded key, location) entries between the bound
	// tuples in ascending key order. A nil bound is unbounded on that side;
	// inclusivity applies only to the matching bound. The sequence is finite
	// and restartable from the beginning only; iteration stops early when
	// ctx is cancelled.
	Scan(ctx context.Context, lower, upper *catalog.Tuple, lowerInclusive, upperInclusive bool) (iter.Seq2[EncodedKey, ItemPointer], error)

	// ScanAllKeys lazily yields every (encoded key, location) entry in
	// ascending key order.
	ScanAllKeys(ctx context.Context) iter.Seq2[EncodedKey, ItemPointer]

	// Size returns the number of live entries.
	Size() int64

	// Stats returns a snapshot of the backing tree's activity counters.
	Stats() bwtree.Stats

	// Close tears the index down and returns its memory to the resource
	// controller. No operations may be in flight or issued afterwards.
	Close(ctx context.Context) error
}

// indexKey is the contract the facade needs from a concrete key type beyond
// the tree's ordering: a stable byte form for the type-erased boundary.
type indexKey[K any] interface {
	Compare(other K) int
	Bytes() []byte
}

// BuildIndex constructs an index for the given metadata. The encoding
// strategy is chosen deterministically from the key schema: integer-only
// keys are packed into the fewest words that fit, everything else uses the
// variable-length memcomparable form. The returned Index hides the generic
// instantiation.
func BuildIndex(meta IndexMetadata, optFns ...Option) (Index, error) {
	o := applyOptions(optFns)
	if err := meta.Validate(); err != nil {
		o.logger.LogBuild(context.Background(), meta.Name, "", err)
		return nil, err
	}

	enc := keys.Select(meta.KeySchema)
	var (
		ix  Index
		err error
	)
	switch enc {
	case keys.EncodingInts1:
		ix, err = newTypedIndex(meta, enc, o, keys.EncodeInts1)
	case keys.EncodingInts2:
		ix, err = newTypedIndex(meta, enc, o, keys.EncodeInts2)
	case keys.EncodingInts3:
		ix, err = newTypedIndex(meta, enc, o, keys.EncodeInts3)
	case keys.EncodingInts4:
		ix, err = newTypedIndex(meta, enc, o, keys.EncodeInts4)
	default:
		ix, err = newTypedIndex(meta, enc, o, keys.EncodeGeneric)
	}
	o.logger.LogBuild(context.Background(), meta.Name, enc.String(), err)
	return ix, err
}

func newTypedIndex[K indexKey[K]](
	meta IndexMetadata,
	enc keys.Encoding,
	o options,
	encode func(*catalog.Schema, *catalog.Tuple) (K, error),
) (Index, error) {
	fns := append([]func(*bwtree.Options){func(to *bwtree.Options) {
		to.Controller = o.controller
		to.Logger = o.logger.Logger
	}}, o.treeOptions...)

	tree, err := bwtree.New[K](fns...)
	if err != nil {
		return nil, translateError(err)
	}
	return &typedIndex[K]{
		meta:    meta,
		enc:     enc,
		encode:  encode,
		tree:    tree,
		logger:  o.logger.WithIndex(meta.Name),
		metrics: o.metricsCollector,
	}, nil
}

// typedIndex adapts one generic tree instantiation to the type-erased Index
// contract. Tuples are encoded exactly once at the boundary; everything
// below works on the concrete key type.
type typedIndex[K indexKey[K]] struct {
	meta    IndexMetadata
	enc     keys.Encoding
	encode  func(*catalog.Schema, *catalog.Tuple) (K, error)
	tree    *bwtree.Tree[K]
	logger  *Logger
	metrics MetricsCollector
}

func (ix *typedIndex[K]) Metadata() IndexMetadata    { return ix.meta }
func (ix *typedIndex[K]) KeyEncoding() keys.Encoding { return ix.enc }
func (ix *typedIndex[K]) Size() int64                { return ix.tree.Size() }
func (ix *typedIndex[K]) Stats() bwtree.Stats        { return ix.tree.Stats() }

// InsertEntry implements Index.
func (ix *typedIndex[K]) InsertEntry(ctx context.Context, t *catalog.Tuple, location ItemPointer) error {
	start := time.Now()
	err := ix.insertEntry(t, location)
	ix.metrics.RecordInsert(time.Since(start), err)
	ix.logger.LogInsert(ctx, location, err)
	return err
}

func (ix *typedIndex[K]) insertEntry(t *catalog.Tuple, location ItemPointer) error {
	if t == nil {
		return ErrNilTuple
	}
	key, err := ix.encode(ix.meta.KeySchema, t)
	if err != nil {
		return err
	}
	return translateError(ix.tree.Insert(key, location.Pack(), ix.meta.Unique()))
}

// DeleteEntry implements Index.
func (ix *typedIndex[K]) DeleteEntry(ctx context.Context, t *catalog.Tuple, location ItemPointer) error {
	start := time.Now()
	err := ix.deleteEntry(t, location)
	ix.metrics.RecordDelete(time.Since(start), err)
	ix.logger.LogDelete(ctx, location, err)
	return err
}

func (ix *typedIndex[K]) deleteEntry(t *catalog.Tuple, location ItemPointer) error {
	if t == nil {
		return ErrNilTuple
	}
	key, err := ix.encode(ix.meta.KeySchema, t)
	if err != nil {
		return err
	}
	return translateError(ix.tree.Delete(key, location.Pack()))
}

// ScanKey implements Index.
func (ix *typedIndex[K]) ScanKey(ctx context.Context, t *catalog.Tuple) ([]ItemPointer, error) {
	start := time.Now()
	out, err := ix.scanKey(t)
	ix.metrics.RecordScanKey(len(out), time.Since(start), err)
	ix.logger.LogScan(ctx, "point", len(out), err)
	return out, err
}

func (ix *typedIndex[K]) scanKey(t *catalog.Tuple) ([]ItemPointer, error) {
	if t == nil {
		return nil, ErrNilTuple
	}
	key, err := ix.encode(ix.meta.KeySchema, t)
	if err != nil {
		return nil, err
	}
	packed := ix.tree.ScanKey(key)
	out := make([]ItemPointer, len(packed))
	for i, v := range packed {
		out[i] = UnpackItemPointer(v)
	}
	return out, nil
}

// Scan implements Index.
func (ix *typedIndex[K]) Scan(ctx context.Context, lower, upper *catalog.Tuple, lowerInclusive, upperInclusive bool) (iter.Seq2[EncodedKey, ItemPointer], error) {
	var lo, hi *K
	if lower != nil {
		k, err := ix.encode(ix.meta.KeySchema, lower)
		if err != nil {
			ix.metrics.RecordScan(0, 0, err)
			ix.logger.LogScan(ctx, "range", 0, err)
			return nil, err
		}
		lo = &k
	}
	if upper != nil {
		k, err := ix.encode(ix.meta.KeySchema, upper)
		if err != nil {
			ix.metrics.RecordScan(0, 0, err)
			ix.logger.LogScan(ctx, "range", 0, err)
			return nil, err
		}
		hi = &k
	}
	return ix.lazyScan(ctx, "range", ix.tree.Scan(lo, hi, lowerInclusive, upperInclusive)), nil
}

// ScanAllKeys implements Index.
func (ix *typedIndex[K]) ScanAllKeys(ctx context.Context) iter.Seq2[EncodedKey, ItemPointer] {
	return ix.lazyScan(ctx, "full", ix.tree.ScanAll())
}

// lazyScan adapts a tree sequence to the type-erased boundary, recording
// metrics when iteration finishes.
func (ix *typedIndex[K]) lazyScan(ctx context.Context, kind string, seq iter.Seq2[K, uint64]) iter.Seq2[EncodedKey, ItemPointer] {
	return func(yield func(EncodedKey, ItemPointer) bool) {
		start := time.Now()
		matches := 0
		for k, v := range seq {
			if ctx.Err() != nil {
				break
			}
			if !yield(EncodedKey(k.Bytes()), UnpackItemPointer(v)) {
				break
			}
			matches++
		}
		ix.metrics.RecordScan(matches, time.Since(start), ctx.Err())
		ix.logger.LogScan(ctx, kind, matches, ctx.Err())
	}
}

// Close implements Index.
func (ix *typedIndex[K]) Close(ctx context.Context) error {
	err := translateError(ix.tree.Close())
	ix.logger.LogClose(ctx, err)
	return err
}
