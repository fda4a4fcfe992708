package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueConstructors(t *testing.T) {
	assert.Equal(t, TypeTinyInt, NewTinyInt(5).Type())
	assert.Equal(t, TypeSmallInt, NewSmallInt(5).Type())
	assert.Equal(t, TypeInteger, NewInteger(5).Type())
	assert.Equal(t, TypeBigInt, NewBigInt(5).Type())

	assert.Equal(t, int64(-7), NewInteger(-7).Int64())
	assert.Equal(t, TypeInvalid, Value{}.Type())
}

func TestNewValueTruncates(t *testing.T) {
	// 300 does not fit int8; the convenience constructor truncates like a
	// cast would.
	v := NewValue(TypeTinyInt, 300)
	n := 300
	assert.Equal(t, int64(int8(n)), v.Int64())

	assert.Equal(t, int64(70000), NewValue(TypeBigInt, 70000).Int64())
	assert.Equal(t, TypeInvalid, NewValue(TypeInvalid, 1).Type())
}

func TestValueCompare(t *testing.T) {
	assert.Negative(t, NewInteger(-5).Compare(NewInteger(3)))
	assert.Positive(t, NewBigInt(10).Compare(NewBigInt(2)))
	assert.Zero(t, NewSmallInt(7).Compare(NewSmallInt(7)))
}

func TestTypeProperties(t *testing.T) {
	assert.Equal(t, 1, TypeTinyInt.Size())
	assert.Equal(t, 2, TypeSmallInt.Size())
	assert.Equal(t, 4, TypeInteger.Size())
	assert.Equal(t, 8, TypeBigInt.Size())

	assert.True(t, TypeBigInt.FixedWidthInteger())
	assert.False(t, TypeInvalid.FixedWidthInteger())
}

func TestSchemaIndexedColumns(t *testing.T) {
	s := NewSchema([]Column{
		{Name: "a", Type: TypeInteger},
		{Name: "b", Type: TypeBigInt},
		{Name: "c", Type: TypeSmallInt},
	})
	assert.Equal(t, 3, s.ColumnCount())

	require.NoError(t, s.SetIndexedColumns([]int{2, 0}))
	assert.Equal(t, []int{2, 0}, s.IndexedColumns())

	err := s.SetIndexedColumns([]int{3})
	require.ErrorIs(t, err, ErrColumnOutOfRange)

	err = s.SetIndexedColumns([]int{-1})
	require.ErrorIs(t, err, ErrColumnOutOfRange)
}

func TestSchemaColumnAccess(t *testing.T) {
	s := NewSchema([]Column{{Name: "a", Type: TypeInteger}})

	col, err := s.Column(0)
	require.NoError(t, err)
	assert.Equal(t, "a", col.Name)

	_, err = s.Column(1)
	require.ErrorIs(t, err, ErrColumnOutOfRange)

	assert.Panics(t, func() { s.MustColumn(5) })
}

func TestTupleSetValue(t *testing.T) {
	s := NewSchema([]Column{
		{Name: "a", Type: TypeInteger},
		{Name: "b", Type: TypeBigInt},
	})
	tu := NewTuple(s)

	require.NoError(t, tu.SetValue(0, NewInteger(1)))
	require.NoError(t, tu.SetValue(1, NewBigInt(2)))
	assert.Same(t, s, tu.Schema())

	v, err := tu.Value(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Int64())

	_, err = tu.Value(9)
	require.ErrorIs(t, err, ErrColumnOutOfRange)
}

func TestTupleTypeMismatch(t *testing.T) {
	s := NewSchema([]Column{{Name: "a", Type: TypeInteger}})
	tu := NewTuple(s)

	err := tu.SetValue(0, NewBigInt(1))
	var tm *TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, 0, tm.Column)
	assert.Equal(t, TypeInteger, tm.Expected)
	assert.Equal(t, TypeBigInt, tm.Actual)
	assert.Contains(t, tm.Error(), "type mismatch")

	err = tu.SetValue(4, NewInteger(1))
	require.ErrorIs(t, err, ErrColumnOutOfRange)
}
