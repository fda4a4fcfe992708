package catalog

import "fmt"

// TypeMismatchError indicates a value whose runtime type does not match the
// schema's declared type for its column.
type TypeMismatchError struct {
	Column   int
	Expected TypeID
	Actual   TypeID
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("catalog: type mismatch at column %d: expected %s, got %s", e.Column, e.Expected, e.Actual)
}

// Tuple is a typed row of values laid out per a schema. The index layer uses
// tuples only as key carriers: values are extracted by column ordinal at
// encode time.
type Tuple struct {
	schema *Schema
	values []Value
}

// NewTuple creates an empty tuple for the given schema.
func NewTuple(schema *Schema) *Tuple {
	return &Tuple{
		schema: schema,
		values: make([]Value, schema.ColumnCount()),
	}
}

// Schema returns the tuple's schema.
func (t *Tuple) Schema() *Schema { return t.schema }

// SetValue stores v at column ordinal i, checking that the value's type
// matches the declared column type.
func (t *Tuple) SetValue(i int, v Value) error {
	col, err := t.schema.Column(i)
	if err != nil {
		return err
	}
	if v.Type() != col.Type {
		return &TypeMismatchError{Column: i, Expected: col.Type, Actual: v.Type()}
	}
	t.values[i] = v
	return nil
}

// Value returns the value at column ordinal i.
func (t *Tuple) Value(i int) (Value, error) {
	if i < 0 || i >= len(t.values) {
		return Value{}, fmt.Errorf("%w: %d", ErrColumnOutOfRange, i)
	}
	return t.values[i], nil
}
