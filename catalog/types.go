// Package catalog holds the minimal schema, value and tuple contracts the
// index layer consumes from the catalog system. The catalog itself is an
// external collaborator; the index core only reads these descriptions at
// build and encode time.
package catalog

// TypeID identifies a column value type.
type TypeID uint8

// Supported fixed-width signed integer types plus the invalid sentinel.
const (
	TypeInvalid TypeID = iota
	TypeTinyInt
	TypeSmallInt
	TypeInteger
	TypeBigInt
)

// Size returns the storage width of the type in bytes, or 0 for TypeInvalid.
func (t TypeID) Size() int {
	switch t {
	case TypeTinyInt:
		return 1
	case TypeSmallInt:
		return 2
	case TypeInteger:
		return 4
	case TypeBigInt:
		return 8
	default:
		return 0
	}
}

// FixedWidthInteger reports whether the type is one of the packable
// fixed-width signed integer types.
func (t TypeID) FixedWidthInteger() bool {
	switch t {
	case TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt:
		return true
	default:
		return false
	}
}

// String returns a string representation of the TypeID.
func (t TypeID) String() string {
	switch t {
	case TypeTinyInt:
		return "TINYINT"
	case TypeSmallInt:
		return "SMALLINT"
	case TypeInteger:
		return "INTEGER"
	case TypeBigInt:
		return "BIGINT"
	default:
		return "INVALID"
	}
}
