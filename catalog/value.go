package catalog

import "fmt"

// Value is a typed scalar column value. The zero Value has TypeInvalid.
type Value struct {
	typ TypeID
	raw int64
}

// NewTinyInt returns a TINYINT value.
func NewTinyInt(v int8) Value { return Value{typ: TypeTinyInt, raw: int64(v)} }

// NewSmallInt returns a SMALLINT value.
func NewSmallInt(v int16) Value { return Value{typ: TypeSmallInt, raw: int64(v)} }

// NewInteger returns an INTEGER value.
func NewInteger(v int32) Value { return Value{typ: TypeInteger, raw: int64(v)} }

// NewBigInt returns a BIGINT value.
func NewBigInt(v int64) Value { return Value{typ: TypeBigInt, raw: v} }

// NewValue returns a value of the given integer type, truncating v to the
// type's width. It is a convenience for building test fixtures across all
// supported widths.
func NewValue(t TypeID, v int64) Value {
	switch t {
	case TypeTinyInt:
		return NewTinyInt(int8(v))
	case TypeSmallInt:
		return NewSmallInt(int16(v))
	case TypeInteger:
		return NewInteger(int32(v))
	case TypeBigInt:
		return NewBigInt(v)
	default:
		return Value{}
	}
}

// Type returns the value's type tag.
func (v Value) Type() TypeID { return v.typ }

// Int64 returns the value widened to int64.
func (v Value) Int64() int64 { return v.raw }

// Compare orders v against other by native signed comparison. Both values
// must share the same type.
func (v Value) Compare(other Value) int {
	switch {
	case v.raw < other.raw:
		return -1
	case v.raw > other.raw:
		return 1
	default:
		return 0
	}
}

// String returns a string representation of the Value.
func (v Value) String() string {
	return fmt.Sprintf("%s(%d)", v.typ, v.raw)
}
