package keys

import "github.com/tidalstore/relidx/catalog"

// Ints1 packs an all-integer key of up to 8 bytes into one comparable word.
type Ints1 [1]uint64

// Compare orders k against other by raw unsigned word comparison.
func (k Ints1) Compare(other Ints1) int { return compareWords(k[:], other[:]) }

// Bytes returns the big-endian encoded form.
func (k Ints1) Bytes() []byte { return wordBytes(k[:]) }

// Ints2 packs an all-integer key of up to 16 bytes into two words.
type Ints2 [2]uint64

// Compare orders k against other by raw unsigned word comparison.
func (k Ints2) Compare(other Ints2) int { return compareWords(k[:], other[:]) }

// Bytes returns the big-endian encoded form.
func (k Ints2) Bytes() []byte { return wordBytes(k[:]) }

// Ints3 packs an all-integer key of up to 24 bytes into three words.
type Ints3 [3]uint64

// Compare orders k against other by raw unsigned word comparison.
func (k Ints3) Compare(other Ints3) int { return compareWords(k[:], other[:]) }

// Bytes returns the big-endian encoded form.
func (k Ints3) Bytes() []byte { return wordBytes(k[:]) }

// Ints4 packs an all-integer key of up to 32 bytes into four words.
type Ints4 [4]uint64

// Compare orders k against other by raw unsigned word comparison.
func (k Ints4) Compare(other Ints4) int { return compareWords(k[:], other[:]) }

// Bytes returns the big-endian encoded form.
func (k Ints4) Bytes() []byte { return wordBytes(k[:]) }

// EncodeInts1 packs the indexed columns of t into a one-word key.
func EncodeInts1(keySchema *catalog.Schema, t *catalog.Tuple) (Ints1, error) {
	var k Ints1
	err := packColumns(k[:], keySchema, t)
	return k, err
}

// EncodeInts2 packs the indexed columns of t into a two-word key.
func EncodeInts2(keySchema *catalog.Schema, t *catalog.Tuple) (Ints2, error) {
	var k Ints2
	err := packColumns(k[:], keySchema, t)
	return k, err
}

// EncodeInts3 packs the indexed columns of t into a three-word key.
func EncodeInts3(keySchema *catalog.Schema, t *catalog.Tuple) (Ints3, error) {
	var k Ints3
	err := packColumns(k[:], keySchema, t)
	return k, err
}

// EncodeInts4 packs the indexed columns of t into a four-word key.
func EncodeInts4(keySchema *catalog.Schema, t *catalog.Tuple) (Ints4, error) {
	var k Ints4
	err := packColumns(k[:], keySchema, t)
	return k, err
}
