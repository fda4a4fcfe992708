package relidx_test

import (
	"bytes"
	"context"
	"iter"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidalstore/relidx"
	"github.com/tidalstore/relidx/catalog"
	"github.com/tidalstore/relidx/keys"
	"github.com/tidalstore/relidx/resource"
)

func testSchema(t *testing.T, types []catalog.TypeID, indexed []int) *catalog.Schema {
	t.Helper()
	cols := make([]catalog.Column, len(types))
	for i, ty := range types {
		cols[i] = catalog.Column{Name: "c", Type: ty}
	}
	s := catalog.NewSchema(cols)
	require.NoError(t, s.SetIndexedColumns(indexed))
	return s
}

func testTuple(t *testing.T, s *catalog.Schema, vals ...int64) *catalog.Tuple {
	t.Helper()
	tu := catalog.NewTuple(s)
	for i, v := range vals {
		require.NoError(t, tu.SetValue(i, catalog.NewValue(s.MustColumn(i).Type, v)))
	}
	return tu
}

// collectLocations drains a scan sequence, keeping only the locations.
func collectLocations(seq iter.Seq2[relidx.EncodedKey, relidx.ItemPointer]) []relidx.ItemPointer {
	var out []relidx.ItemPointer
	for _, p := range seq {
		out = append(out, p)
	}
	return out
}

func buildTestIndex(t *testing.T, meta relidx.IndexMetadata, optFns ...relidx.Option) relidx.Index {
	t.Helper()
	ix, err := relidx.BuildIndex(meta, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, ix.Close(context.Background()))
	})
	return ix
}

func TestPointLookupAndDelete(t *testing.T) {
	ctx := context.Background()
	s := testSchema(t, []catalog.TypeID{catalog.TypeInteger, catalog.TypeInteger}, []int{0})
	ix := buildTestIndex(t, relidx.IndexMetadata{
		Name:         "t_a",
		OID:          125,
		TableOID:     124,
		ColumnSetOID: 1,
		TupleSchema:  s,
		KeySchema:    s,
	})

	meta := ix.Metadata()
	assert.Equal(t, uint32(124), meta.TableOID)
	assert.Equal(t, uint32(1), meta.ColumnSetOID)
	assert.Same(t, s, meta.TupleSchema)
	assert.False(t, meta.Unique())

	for i := int64(0); i < 10; i++ {
		loc := relidx.ItemPointer{Block: uint32(i), Offset: uint32(i * i)}
		require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, i, i*i), loc))
	}
	assert.Equal(t, int64(10), ix.Size())

	got, err := ix.ScanKey(ctx, testTuple(t, s, 5, 0))
	require.NoError(t, err)
	require.Equal(t, []relidx.ItemPointer{{Block: 5, Offset: 25}}, got)

	require.NoError(t, ix.DeleteEntry(ctx, testTuple(t, s, 5, 25), relidx.ItemPointer{Block: 5, Offset: 25}))

	got, err = ix.ScanKey(ctx, testTuple(t, s, 5, 0))
	require.NoError(t, err)
	assert.Empty(t, got)

	// The other keys are unaffected.
	for i := int64(0); i < 10; i++ {
		if i == 5 {
			continue
		}
		got, err := ix.ScanKey(ctx, testTuple(t, s, i, 0))
		require.NoError(t, err)
		require.Equal(t, []relidx.ItemPointer{{Block: uint32(i), Offset: uint32(i * i)}}, got, "key %d", i)
	}
	assert.Equal(t, int64(9), ix.Size())
}

func TestCompositeKeyScanAll(t *testing.T) {
	ctx := context.Background()
	s := testSchema(t, []catalog.TypeID{catalog.TypeSmallInt, catalog.TypeInteger}, []int{0, 1})
	ix := buildTestIndex(t, relidx.IndexMetadata{Name: "t_ab", KeySchema: s})
	assert.Equal(t, keys.EncodingInts1, ix.KeyEncoding())

	// Rows listed in key order; Block records the expected rank.
	rows := [][2]int64{
		{-30000, 5},
		{-1, 2147483647},
		{0, -2147483648},
		{0, -1},
		{0, 0},
		{0, 1},
		{7, -100},
		{7, 100},
		{29999, -5},
		{29999, 5},
	}
	perm := rand.New(rand.NewSource(7)).Perm(len(rows))
	for _, i := range perm {
		loc := relidx.ItemPointer{Block: uint32(i), Offset: 0}
		require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, rows[i][0], rows[i][1]), loc))
	}

	got := collectLocations(ix.ScanAllKeys(ctx))
	require.Len(t, got, len(rows))
	for rank, p := range got {
		assert.Equal(t, uint32(rank), p.Block, "wrong row at rank %d", rank)
	}
}

func TestEncodingSelectionAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	big := catalog.TypeBigInt
	tests := []struct {
		name  string
		types []catalog.TypeID
		want  keys.Encoding
	}{
		{"one integer", []catalog.TypeID{catalog.TypeInteger}, keys.EncodingInts1},
		{"bigint+integer", []catalog.TypeID{big, catalog.TypeInteger}, keys.EncodingInts2},
		{"three bigints", []catalog.TypeID{big, big, big}, keys.EncodingInts3},
		{"four bigints", []catalog.TypeID{big, big, big, big}, keys.EncodingInts4},
		{"five bigints fall back", []catalog.TypeID{big, big, big, big, big}, keys.EncodingGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indexed := make([]int, len(tt.types))
			for i := range indexed {
				indexed[i] = i
			}
			s := testSchema(t, tt.types, indexed)
			ix := buildTestIndex(t, relidx.IndexMetadata{Name: tt.name, KeySchema: s})
			assert.Equal(t, tt.want, ix.KeyEncoding())

			// Ascending rows spanning negative and positive values must come
			// back in order regardless of the strategy.
			for rank, v := range []int64{-100, -1, 0, 1, 100} {
				vals := make([]int64, len(tt.types))
				for i := range vals {
					vals[i] = v
				}
				loc := relidx.ItemPointer{Block: uint32(rank), Offset: uint32(rank)}
				require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, vals...), loc))
			}
			got := collectLocations(ix.ScanAllKeys(ctx))
			require.Len(t, got, 5)
			for rank, p := range got {
				assert.Equal(t, uint32(rank), p.Block)
			}
		})
	}
}

func TestAllIntegerWidths(t *testing.T) {
	ctx := context.Background()
	for _, ty := range []catalog.TypeID{
		catalog.TypeTinyInt, catalog.TypeSmallInt, catalog.TypeInteger, catalog.TypeBigInt,
	} {
		for cols := 1; cols <= 4; cols++ {
			types := make([]catalog.TypeID, cols)
			indexed := make([]int, cols)
			for i := range types {
				types[i] = ty
				indexed[i] = i
			}
			s := testSchema(t, types, indexed)
			ix := buildTestIndex(t, relidx.IndexMetadata{Name: ty.String(), KeySchema: s})

			for rank, v := range []int64{-100, -2, 0, 3, 101} {
				vals := make([]int64, cols)
				for i := range vals {
					vals[i] = v
				}
				require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, vals...),
					relidx.ItemPointer{Block: uint32(rank)}))
			}
			got := collectLocations(ix.ScanAllKeys(ctx))
			require.Len(t, got, 5, "%s x%d", ty, cols)
			for rank, p := range got {
				require.Equal(t, uint32(rank), p.Block, "%s x%d rank %d", ty, cols, rank)
			}
		}
	}
}

func TestUniqueConstraint(t *testing.T) {
	ctx := context.Background()
	s := testSchema(t, []catalog.TypeID{catalog.TypeInteger}, []int{0})
	ix := buildTestIndex(t, relidx.IndexMetadata{
		Name:       "pk",
		Constraint: relidx.ConstraintPrimaryKey,
		KeySchema:  s,
	})
	assert.True(t, ix.Metadata().Unique())

	require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, 1), relidx.ItemPointer{Block: 1}))

	err := ix.InsertEntry(ctx, testTuple(t, s, 1), relidx.ItemPointer{Block: 2})
	require.ErrorIs(t, err, relidx.ErrDuplicateKey)

	// Same pair again is a no-op, not a violation.
	require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, 1), relidx.ItemPointer{Block: 1}))
	assert.Equal(t, int64(1), ix.Size())
}

func TestNonUniqueKeepsSetSemantics(t *testing.T) {
	ctx := context.Background()
	s := testSchema(t, []catalog.TypeID{catalog.TypeInteger}, []int{0})
	ix := buildTestIndex(t, relidx.IndexMetadata{Name: "sec", KeySchema: s})

	locA := relidx.ItemPointer{Block: 1, Offset: 0}
	locB := relidx.ItemPointer{Block: 2, Offset: 3}
	require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, 9), locA))
	require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, 9), locB))
	require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, 9), locA)) // duplicate pair

	got, err := ix.ScanKey(ctx, testTuple(t, s, 9))
	require.NoError(t, err)
	assert.Equal(t, []relidx.ItemPointer{locA, locB}, got)
	assert.Equal(t, int64(2), ix.Size())
}

func TestRangeScan(t *testing.T) {
	ctx := context.Background()
	s := testSchema(t, []catalog.TypeID{catalog.TypeInteger}, []int{0})
	ix := buildTestIndex(t, relidx.IndexMetadata{Name: "rng", KeySchema: s})

	for i := int64(0); i < 100; i++ {
		require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, i), relidx.ItemPointer{Block: uint32(i)}))
	}

	seq, err := ix.Scan(ctx, testTuple(t, s, 10), testTuple(t, s, 13), true, false)
	require.NoError(t, err)
	got := collectLocations(seq)
	require.Len(t, got, 3)
	for i, p := range got {
		assert.Equal(t, uint32(10+i), p.Block)
	}

	seq, err = ix.Scan(ctx, nil, testTuple(t, s, 2), true, true)
	require.NoError(t, err)
	assert.Len(t, collectLocations(seq), 3)

	seq, err = ix.Scan(ctx, testTuple(t, s, 97), nil, false, true)
	require.NoError(t, err)
	assert.Len(t, collectLocations(seq), 2)

	// Early break stops the underlying traversal.
	seq, err = ix.Scan(ctx, nil, nil, true, true)
	require.NoError(t, err)
	taken := 0
	for range seq {
		taken++
		if taken == 5 {
			break
		}
	}
	assert.Equal(t, 5, taken)
}

func TestScanAllKeysOrdersEncodedKeys(t *testing.T) {
	ctx := context.Background()
	s := testSchema(t, []catalog.TypeID{catalog.TypeInteger}, []int{0})
	ix := buildTestIndex(t, relidx.IndexMetadata{Name: "it", KeySchema: s})

	for i := int64(-50); i < 50; i++ {
		require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, i), relidx.ItemPointer{Block: uint32(i + 50)}))
	}

	var prev relidx.EncodedKey
	count := 0
	for k, p := range ix.ScanAllKeys(ctx) {
		if prev != nil {
			require.Negative(t, bytes.Compare(prev, k), "encoded keys out of order")
		}
		prev = append(prev[:0], k...)
		assert.Equal(t, uint32(count), p.Block)
		count++
	}
	assert.Equal(t, 100, count)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for range ix.ScanAllKeys(cancelled) {
		t.Fatal("iterator yielded after cancellation")
	}
}

func TestNilTuple(t *testing.T) {
	ctx := context.Background()
	s := testSchema(t, []catalog.TypeID{catalog.TypeInteger}, []int{0})
	ix := buildTestIndex(t, relidx.IndexMetadata{Name: "nil", KeySchema: s})

	assert.ErrorIs(t, ix.InsertEntry(ctx, nil, relidx.ItemPointer{}), relidx.ErrNilTuple)
	assert.ErrorIs(t, ix.DeleteEntry(ctx, nil, relidx.ItemPointer{}), relidx.ErrNilTuple)
	_, err := ix.ScanKey(ctx, nil)
	assert.ErrorIs(t, err, relidx.ErrNilTuple)
}

func TestTypeMismatchSurfaces(t *testing.T) {
	ctx := context.Background()
	intSchema := testSchema(t, []catalog.TypeID{catalog.TypeInteger}, []int{0})
	bigSchema := testSchema(t, []catalog.TypeID{catalog.TypeBigInt}, []int{0})
	ix := buildTestIndex(t, relidx.IndexMetadata{Name: "mm", KeySchema: intSchema})

	err := ix.InsertEntry(ctx, testTuple(t, bigSchema, 5), relidx.ItemPointer{})
	var tm *catalog.TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, int64(0), ix.Size())
}

func TestInvalidMetadata(t *testing.T) {
	s := testSchema(t, []catalog.TypeID{catalog.TypeInteger}, []int{0})

	cases := []relidx.IndexMetadata{
		{Name: "", KeySchema: s},
		{Name: "no-schema"},
		{Name: "bad-type", Type: relidx.IndexType(9), KeySchema: s},
		{Name: "no-indexed", KeySchema: catalog.NewSchema([]catalog.Column{{Name: "a", Type: catalog.TypeInteger}})},
	}
	for _, meta := range cases {
		_, err := relidx.BuildIndex(meta)
		var im *relidx.ErrInvalidMetadata
		assert.ErrorAs(t, err, &im, "metadata %+v", meta)
	}
}

func TestMetricsCollection(t *testing.T) {
	ctx := context.Background()
	s := testSchema(t, []catalog.TypeID{catalog.TypeInteger}, []int{0})
	mc := &relidx.BasicMetricsCollector{}
	ix := buildTestIndex(t, relidx.IndexMetadata{Name: "m", KeySchema: s},
		relidx.WithMetricsCollector(mc))

	require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, 1), relidx.ItemPointer{Block: 1}))
	require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, 2), relidx.ItemPointer{Block: 2}))
	_, err := ix.ScanKey(ctx, testTuple(t, s, 1))
	require.NoError(t, err)
	require.NoError(t, ix.DeleteEntry(ctx, testTuple(t, s, 2), relidx.ItemPointer{Block: 2}))
	collectLocations(ix.ScanAllKeys(ctx))

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.InsertCount)
	assert.Equal(t, int64(0), stats.InsertErrors)
	assert.Equal(t, int64(1), stats.DeleteCount)
	assert.Equal(t, int64(1), stats.ScanKeyCount)
	assert.Equal(t, int64(1), stats.ScanKeyMatches)
	assert.Equal(t, int64(1), stats.ScanCount)
	assert.Equal(t, int64(1), stats.ScanMatches)
}

func TestSharedResourceController(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 22})
	s := testSchema(t, []catalog.TypeID{catalog.TypeInteger}, []int{0})

	a, err := relidx.BuildIndex(relidx.IndexMetadata{Name: "a", KeySchema: s},
		relidx.WithResourceController(rc))
	require.NoError(t, err)
	b, err := relidx.BuildIndex(relidx.IndexMetadata{Name: "b", KeySchema: s},
		relidx.WithResourceController(rc))
	require.NoError(t, err)

	for i := int64(0); i < 200; i++ {
		require.NoError(t, a.InsertEntry(ctx, testTuple(t, s, i), relidx.ItemPointer{Block: uint32(i)}))
		require.NoError(t, b.InsertEntry(ctx, testTuple(t, s, i), relidx.ItemPointer{Block: uint32(i)}))
	}
	assert.Greater(t, rc.MemoryUsage(), int64(0))

	require.NoError(t, a.Close(ctx))
	require.NoError(t, b.Close(ctx))
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestItemPointerPack(t *testing.T) {
	for _, p := range []relidx.ItemPointer{
		{},
		{Block: 1, Offset: 2},
		{Block: 0xFFFFFFFF, Offset: 0},
		{Block: 0, Offset: 0xFFFFFFFF},
		{Block: 123456, Offset: 654321},
	} {
		assert.Equal(t, p, relidx.UnpackItemPointer(p.Pack()))
	}
	assert.Equal(t, "(3,4)", relidx.ItemPointer{Block: 3, Offset: 4}.String())
}

func TestStatsExposed(t *testing.T) {
	ctx := context.Background()
	s := testSchema(t, []catalog.TypeID{catalog.TypeInteger}, []int{0})
	ix := buildTestIndex(t, relidx.IndexMetadata{Name: "st", KeySchema: s})

	for i := int64(0); i < 500; i++ {
		require.NoError(t, ix.InsertEntry(ctx, testTuple(t, s, i), relidx.ItemPointer{Block: uint32(i)}))
	}
	st := ix.Stats()
	assert.Equal(t, int64(500), st.Size)
	assert.Greater(t, st.MemoryBytes, int64(0))
}
