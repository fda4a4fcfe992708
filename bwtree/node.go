package bwtree

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// nodeKind discriminates physical node records. A logical node is a base
// record plus the delta records layered above it.
type nodeKind uint8

const (
	kindLeaf  nodeKind = iota // leaf base: sorted keys + location bitmaps
	kindInner                 // inner base: separators + child IDs

	kindInsert // leaf delta: (key, location) added
	kindDelete // leaf delta: (key, location) removed

	kindSplit       // split delta: entries >= key moved to child
	kindIndexInsert // inner delta: new child for [lowKey, highKey)
	kindIndexDelete // inner delta: separator removed after a merge
	kindMerge       // merge delta: right sibling's chain folded in at key
	kindRemove      // node logically removed; content merged into left sibling
)

// node is the single physical record type. Only the fields relevant to a
// record's kind are populated; records are immutable once published through
// the mapping table.
type node[K Key[K]] struct {
	kind nodeKind
	leaf bool     // chain bottoms out at a leaf base
	next *node[K] // older delta / base; nil for base records
	depth uint16  // chain length above the base, drives consolidation

	// Base payload. Leaves pair keys[i] with sets[i]; inners route
	// children[i] for [keys[i-1], keys[i]) with len(children)=len(keys)+1.
	keys     []K
	sets     []*roaring64.Bitmap
	children []uint64

	side    uint64 // right sibling logical ID, 0 if none
	lowKey  *K     // inclusive lower bound, nil = unbounded
	highKey *K     // exclusive upper bound, nil = unbounded

	// Delta payload.
	key   K        // insert/delete key, split separator, removed separator
	val   uint64   // packed row location for insert/delete
	child uint64   // split right ID, index-insert child, index-delete survivor
	rest  *node[K] // merge delta: head of the merged right sibling's chain
}

// deltaBytes is the accounting estimate for a single delta record.
const deltaBytes = 96

// keyBytes is the accounting estimate for one key slot in a base record.
const keyBytes = 32

// nodeBytes estimates the memory footprint of one physical record for
// resource accounting. The estimate is a pure function of the record's
// contents so acquisition and release stay balanced.
func nodeBytes[K Key[K]](n *node[K]) int64 {
	switch n.kind {
	case kindLeaf:
		b := int64(64) + int64(len(n.keys))*keyBytes
		for _, s := range n.sets {
			if s != nil {
				b += int64(s.GetSizeInBytes())
			}
		}
		return b
	case kindInner:
		return int64(64) + int64(len(n.keys))*keyBytes + int64(len(n.children))*8
	default:
		return deltaBytes
	}
}

// chainBytes estimates the footprint of a whole chain, following merged-in
// sibling chains as well.
func chainBytes[K Key[K]](head *node[K]) int64 {
	var b int64
	for n := head; n != nil; n = n.next {
		b += nodeBytes(n)
		if n.kind == kindMerge && n.rest != nil {
			b += chainBytes(n.rest)
		}
	}
	return b
}
