package catalog

import (
	"errors"
	"fmt"
)

// ErrColumnOutOfRange is returned when a column ordinal does not exist in
// the schema.
var ErrColumnOutOfRange = errors.New("catalog: column ordinal out of range")

// Column describes a single column of a tuple schema.
type Column struct {
	Name string
	Type TypeID
}

// Schema is an ordered sequence of column definitions plus the subset of
// columns marked as indexed, in schema order. Schemas are immutable once the
// indexed columns have been set.
type Schema struct {
	columns []Column
	indexed []int
}

// NewSchema creates a schema from the given column list.
func NewSchema(columns []Column) *Schema {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Schema{columns: cols}
}

// SetIndexedColumns records which column ordinals are indexed. Ordinals must
// reference existing columns.
func (s *Schema) SetIndexedColumns(attrs []int) error {
	indexed := make([]int, len(attrs))
	for i, a := range attrs {
		if a < 0 || a >= len(s.columns) {
			return fmt.Errorf("%w: %d (schema has %d columns)", ErrColumnOutOfRange, a, len(s.columns))
		}
		indexed[i] = a
	}
	s.indexed = indexed
	return nil
}

// IndexedColumns returns the indexed column ordinals in key order.
func (s *Schema) IndexedColumns() []int { return s.indexed }

// ColumnCount returns the number of columns in the schema.
func (s *Schema) ColumnCount() int { return len(s.columns) }

// Column returns the column definition at ordinal i.
func (s *Schema) Column(i int) (Column, error) {
	if i < 0 || i >= len(s.columns) {
		return Column{}, fmt.Errorf("%w: %d", ErrColumnOutOfRange, i)
	}
	return s.columns[i], nil
}

// MustColumn is Column for ordinals known to be valid. It panics on a bad
// ordinal, which indicates a caller bug rather than user input.
func (s *Schema) MustColumn(i int) Column {
	c, err := s.Column(i)
	if err != nil {
		panic(err)
	}
	return c
}
