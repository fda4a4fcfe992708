// Package keys implements the key-encoding strategies the index factory can
// select from.
//
// The primary strategy packs up to four fixed-width signed integer columns
// into 1-4 uint64 words. Each column value is bias-transformed (sign bit
// flipped) into an order-preserving unsigned form and laid out big-endian, so
// that comparing the words as an unsigned sequence yields exactly the
// schema-defined lexicographic tuple order, including across negative and
// positive values and mixed column widths.
//
// The sibling strategy (Generic) encodes the same transformed bytes into a
// variable-length memcomparable string with no width limit. Both strategies
// are pure transformations with no side effects.
package keys

import (
	"strings"

	"github.com/tidalstore/relidx/catalog"
)

// WordSize is the packed word width in bytes.
const WordSize = 8

// MaxPackedWords bounds the fixed-width strategy. Key schemas packing wider
// than MaxPackedWords*WordSize bytes fall back to the Generic strategy; the
// factory decides this at construction time, never at runtime.
const MaxPackedWords = 4

// Encoding identifies the key-encoding strategy chosen for an index.
type Encoding uint8

// Encoding values. The integer variants name the number of packed words.
const (
	EncodingGeneric Encoding = iota
	EncodingInts1
	EncodingInts2
	EncodingInts3
	EncodingInts4
)

// String returns a string representation of the Encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingInts1:
		return "Ints1"
	case EncodingInts2:
		return "Ints2"
	case EncodingInts3:
		return "Ints3"
	case EncodingInts4:
		return "Ints4"
	default:
		return "Generic"
	}
}

// PackedWidth returns the total packed byte width of the schema's indexed
// columns and whether every indexed column is a fixed-width integer type.
func PackedWidth(keySchema *catalog.Schema) (int, bool) {
	width := 0
	for _, attr := range keySchema.IndexedColumns() {
		col, err := keySchema.Column(attr)
		if err != nil {
			return 0, false
		}
		if !col.Type.FixedWidthInteger() {
			return 0, false
		}
		width += col.Type.Size()
	}
	return width, true
}

// Select picks the encoding strategy for a key schema. The choice is a pure
// deterministic function of the schema: integer-only key schemas that fit the
// word budget get the packed strategy sized to their width, everything else
// gets Generic.
func Select(keySchema *catalog.Schema) Encoding {
	width, ok := PackedWidth(keySchema)
	if !ok || len(keySchema.IndexedColumns()) == 0 {
		return EncodingGeneric
	}
	switch {
	case width <= 1*WordSize:
		return EncodingInts1
	case width <= 2*WordSize:
		return EncodingInts2
	case width <= 3*WordSize:
		return EncodingInts3
	case width <= 4*WordSize:
		return EncodingInts4
	default:
		return EncodingGeneric
	}
}

// orderPreserving maps a signed integer of the given byte width to an
// unsigned form whose natural order matches the signed order. Only the low
// `size` bytes of the result are significant.
func orderPreserving(v int64, size int) uint64 {
	switch size {
	case 1:
		return uint64(uint8(v) ^ 0x80)
	case 2:
		return uint64(uint16(v) ^ 0x8000)
	case 4:
		return uint64(uint32(v) ^ 0x80000000)
	default:
		return uint64(v) ^ 0x8000000000000000
	}
}

// packColumns writes the transformed indexed-column bytes of t big-endian
// into words. It validates each value's runtime type against the declared
// column type.
func packColumns(words []uint64, keySchema *catalog.Schema, t *catalog.Tuple) error {
	pos := 0
	for _, attr := range keySchema.IndexedColumns() {
		col, err := keySchema.Column(attr)
		if err != nil {
			return err
		}
		v, err := t.Value(attr)
		if err != nil {
			return err
		}
		if v.Type() != col.Type {
			return &catalog.TypeMismatchError{Column: attr, Expected: col.Type, Actual: v.Type()}
		}
		size := col.Type.Size()
		u := orderPreserving(v.Int64(), size)
		for b := size - 1; b >= 0; b-- {
			word := pos >> 3
			shift := uint(56 - 8*(pos&7))
			words[word] |= uint64(byte(u>>(8*b))) << shift
			pos++
		}
	}
	return nil
}

// compareWords compares two packed keys word by word as unsigned integers.
func compareWords(a, b []uint64) int {
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// wordBytes serializes packed words into their big-endian byte form, the
// type-erased EncodedKey representation exposed at the facade boundary.
func wordBytes(words []uint64) []byte {
	out := make([]byte, len(words)*WordSize)
	for i, w := range words {
		for b := 0; b < WordSize; b++ {
			out[i*WordSize+b] = byte(w >> uint(56-8*b))
		}
	}
	return out
}

// Generic is the variable-length memcomparable sibling strategy. It backs
// the same tree structure as the packed variants and exists so the factory
// fallback carries the full facade contract.
type Generic struct {
	b string
}

// Compare orders k against other bytewise.
func (k Generic) Compare(other Generic) int { return strings.Compare(k.b, other.b) }

// Bytes returns the encoded byte form.
func (k Generic) Bytes() []byte { return []byte(k.b) }

// EncodeGeneric encodes the indexed columns of t into a Generic key.
func EncodeGeneric(keySchema *catalog.Schema, t *catalog.Tuple) (Generic, error) {
	var sb strings.Builder
	for _, attr := range keySchema.IndexedColumns() {
		col, err := keySchema.Column(attr)
		if err != nil {
			return Generic{}, err
		}
		v, err := t.Value(attr)
		if err != nil {
			return Generic{}, err
		}
		if v.Type() != col.Type {
			return Generic{}, &catalog.TypeMismatchError{Column: attr, Expected: col.Type, Actual: v.Type()}
		}
		size := col.Type.Size()
		u := orderPreserving(v.Int64(), size)
		for b := size - 1; b >= 0; b-- {
			sb.WriteByte(byte(u >> (8 * b)))
		}
	}
	return Generic{b: sb.String()}, nil
}
