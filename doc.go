// Package relidx provides in-memory secondary and primary-key indexes for a
// relational storage engine. An index maps tuple keys to row locations and is
// built around two pieces:
//
//   - a key-encoding layer that packs fixed-width integer key columns into
//     1-4 machine words whose unsigned comparison matches the schema-defined
//     tuple order, with a variable-length memcomparable fallback for
//     everything else, and
//   - a latch-free Bw-tree that stores the encoded keys and their row
//     locations behind a mapping table of CAS-published delta chains.
//
// BuildIndex inspects the key schema and picks the narrowest encoding that
// fits, returning a type-erased Index so callers never deal with the
// generic instantiations:
//
//	meta := relidx.IndexMetadata{
//	    Name:      "orders_pk",
//	    Constraint: relidx.ConstraintPrimaryKey,
//	    KeySchema: schema,
//	}
//	ix, err := relidx.BuildIndex(meta)
//
// All index operations are safe for concurrent use.
package relidx
