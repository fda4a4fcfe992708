package relidx

import (
	"fmt"

	"github.com/tidalstore/relidx/catalog"
)

// ItemPointer is the physical location of a row: a block number and a slot
// offset within the block. It packs losslessly into a uint64, which is the
// value form the tree stores.
type ItemPointer struct {
	Block  uint32
	Offset uint32
}

// Pack encodes the pointer into its uint64 storage form.
func (p ItemPointer) Pack() uint64 {
	return uint64(p.Block)<<32 | uint64(p.Offset)
}

// UnpackItemPointer decodes a packed storage value.
func UnpackItemPointer(v uint64) ItemPointer {
	return ItemPointer{Block: uint32(v >> 32), Offset: uint32(v)}
}

// String returns a string representation of the ItemPointer.
func (p ItemPointer) String() string {
	return fmt.Sprintf("(%d,%d)", p.Block, p.Offset)
}

// IndexType identifies the backing structure of an index.
type IndexType uint8

const (
	// IndexTypeBwTree is the latch-free ordered index and the only backing
	// structure currently implemented.
	IndexTypeBwTree IndexType = iota
)

// String returns a string representation of the IndexType.
func (t IndexType) String() string {
	switch t {
	case IndexTypeBwTree:
		return "BwTree"
	default:
		return fmt.Sprintf("IndexType(%d)", uint8(t))
	}
}

// ConstraintType declares the uniqueness contract an index enforces.
type ConstraintType uint8

const (
	// ConstraintDefault allows multiple locations per key.
	ConstraintDefault ConstraintType = iota
	// ConstraintUnique rejects a second live entry under the same key.
	ConstraintUnique
	// ConstraintPrimaryKey behaves like ConstraintUnique and marks the index
	// as the table's primary access path.
	ConstraintPrimaryKey
)

// String returns a string representation of the ConstraintType.
func (c ConstraintType) String() string {
	switch c {
	case ConstraintUnique:
		return "Unique"
	case ConstraintPrimaryKey:
		return "PrimaryKey"
	default:
		return "Default"
	}
}

// IndexMetadata describes an index: its identity, the table and column set
// it covers, its constraint, and the key schema whose indexed columns form
// the key. TupleSchema describes the full rows the caller indexes and is
// informational; only KeySchema drives encoding. Metadata is immutable once
// the index is built.
type IndexMetadata struct {
	Name         string
	OID          uint32
	TableOID     uint32
	ColumnSetOID uint32
	Type         IndexType
	Constraint   ConstraintType
	TupleSchema  *catalog.Schema
	KeySchema    *catalog.Schema
}

// Unique reports whether the index rejects duplicate keys.
func (m IndexMetadata) Unique() bool {
	return m.Constraint == ConstraintUnique || m.Constraint == ConstraintPrimaryKey
}

// Validate checks that the metadata can produce a working index.
func (m IndexMetadata) Validate() error {
	if m.Name == "" {
		return &ErrInvalidMetadata{Reason: "index name is empty"}
	}
	if m.Type != IndexTypeBwTree {
		return &ErrInvalidMetadata{Reason: fmt.Sprintf("unsupported index type %s", m.Type)}
	}
	if m.KeySchema == nil {
		return &ErrInvalidMetadata{Reason: "key schema is nil"}
	}
	if len(m.KeySchema.IndexedColumns()) == 0 {
		return &ErrInvalidMetadata{Reason: "key schema has no indexed columns"}
	}
	return nil
}
