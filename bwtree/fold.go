package bwtree

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// leafView is the folded logical content of a leaf node: the base record
// with every pending delta applied. Key and set slices are fresh; bitmaps
// are shared with the chain and must be treated as immutable.
type leafView[K Key[K]] struct {
	keys    []K
	sets    []*roaring64.Bitmap
	side    uint64
	lowKey  *K
	highKey *K

	deltas       int  // chain records folded
	pendingSplit bool // chain still carries an uncompleted split delta
}

// innerView is the folded logical content of an inner node.
type innerView[K Key[K]] struct {
	keys     []K
	children []uint64
	side     uint64
	lowKey   *K
	highKey  *K

	deltas       int
	pendingSplit bool
}

type leafPend[K Key[K]] struct {
	key    K
	val    uint64
	insert bool
}

type innerPend[K Key[K]] struct {
	key    K // separator added or removed
	child  uint64
	high   *K
	insert bool
}

func compareKeys[K Key[K]](a, b K) int { return a.Compare(b) }

// foldKey resolves the live value set for a single key against a chain
// snapshot. The newest delta mentioning a (key, value) pair decides its
// liveness; older records are shadowed.
func (t *Tree[K]) foldKey(head *node[K], key K) []uint64 {
	var decided map[uint64]bool
	cur := head
	for cur != nil {
		switch cur.kind {
		case kindInsert:
			if cur.key.Compare(key) == 0 {
				if decided == nil {
					decided = make(map[uint64]bool, 4)
				}
				if _, ok := decided[cur.val]; !ok {
					decided[cur.val] = true
				}
			}
			cur = cur.next
		case kindDelete:
			if cur.key.Compare(key) == 0 {
				if decided == nil {
					decided = make(map[uint64]bool, 4)
				}
				if _, ok := decided[cur.val]; !ok {
					decided[cur.val] = false
				}
			}
			cur = cur.next
		case kindSplit:
			// Routing already placed key on this side of the separator.
			cur = cur.next
		case kindMerge:
			if key.Compare(cur.key) >= 0 {
				cur = cur.rest
			} else {
				cur = cur.next
			}
		case kindRemove:
			cur = cur.next
		case kindLeaf:
			idx, found := slices.BinarySearchFunc(cur.keys, key, compareKeys[K])
			var out []uint64
			if found {
				it := cur.sets[idx].Iterator()
				for it.HasNext() {
					v := it.Next()
					if verdict, ok := decided[v]; !ok || verdict {
						out = append(out, v)
					}
				}
			}
			for v, verdict := range decided {
				if verdict && (!found || !cur.sets[idx].Contains(v)) {
					out = append(out, v)
				}
			}
			slices.Sort(out)
			return out
		default:
			panic("bwtree: key fold reached inner base record")
		}
	}
	panic("bwtree: delta chain without base record")
}

// foldLeaf reconstructs the full logical content of a leaf chain. Merge
// deltas splice in the folded content of the absorbed right sibling; split
// deltas clamp the high bound.
func (t *Tree[K]) foldLeaf(head *node[K]) leafView[K] {
	var pends []leafPend[K] // newest first
	var bound *K
	boundSide := invalidID
	deltas := 0

	cur := head
	for {
		switch cur.kind {
		case kindInsert:
			pends = append(pends, leafPend[K]{key: cur.key, val: cur.val, insert: true})
			deltas++
			cur = cur.next
		case kindDelete:
			pends = append(pends, leafPend[K]{key: cur.key, val: cur.val})
			deltas++
			cur = cur.next
		case kindSplit:
			if bound == nil || cur.key.Compare(*bound) < 0 {
				sep := cur.key
				bound = &sep
				boundSide = cur.child
			}
			deltas++
			cur = cur.next
		case kindMerge:
			left := t.foldLeaf(cur.next)
			right := t.foldLeaf(cur.rest)
			view := leafView[K]{
				keys:         append(left.keys, right.keys...),
				sets:         append(left.sets, right.sets...),
				side:         right.side,
				lowKey:       left.lowKey,
				highKey:      right.highKey,
				deltas:       deltas + left.deltas + right.deltas + 1,
				pendingSplit: left.pendingSplit || right.pendingSplit,
			}
			applyLeafPends(&view, pends)
			clampLeaf(&view, bound, boundSide)
			return view
		case kindRemove:
			deltas++
			cur = cur.next
		case kindLeaf:
			view := leafView[K]{
				keys:    slices.Clone(cur.keys),
				sets:    slices.Clone(cur.sets),
				side:    cur.side,
				lowKey:  cur.lowKey,
				highKey: cur.highKey,
				deltas:  deltas,
			}
			applyLeafPends(&view, pends)
			clampLeaf(&view, bound, boundSide)
			return view
		default:
			panic("bwtree: leaf fold reached inner base record")
		}
	}
}

// applyLeafPends replays pending deltas oldest-first onto a view. Bitmaps
// from the chain are cloned before their first modification.
func applyLeafPends[K Key[K]](v *leafView[K], pends []leafPend[K]) {
	for i := len(pends) - 1; i >= 0; i-- {
		p := pends[i]
		idx, found := slices.BinarySearchFunc(v.keys, p.key, compareKeys[K])
		if p.insert {
			if found {
				if !v.sets[idx].Contains(p.val) {
					s := v.sets[idx].Clone()
					s.Add(p.val)
					v.sets[idx] = s
				}
			} else {
				v.keys = slices.Insert(v.keys, idx, p.key)
				v.sets = slices.Insert(v.sets, idx, roaring64.BitmapOf(p.val))
			}
			continue
		}
		if found && v.sets[idx].Contains(p.val) {
			s := v.sets[idx].Clone()
			s.Remove(p.val)
			if s.IsEmpty() {
				v.keys = slices.Delete(v.keys, idx, idx+1)
				v.sets = slices.Delete(v.sets, idx, idx+1)
			} else {
				v.sets[idx] = s
			}
		}
	}
}

func clampLeaf[K Key[K]](v *leafView[K], bound *K, side uint64) {
	if bound == nil {
		return
	}
	idx, _ := slices.BinarySearchFunc(v.keys, *bound, compareKeys[K])
	v.keys = v.keys[:idx]
	v.sets = v.sets[:idx]
	v.highKey = bound
	v.side = side
	v.pendingSplit = true
}

// foldInner reconstructs the routing content of an inner chain.
func (t *Tree[K]) foldInner(head *node[K]) innerView[K] {
	var pends []innerPend[K] // newest first
	var bound *K
	boundSide := invalidID
	deltas := 0

	cur := head
	for {
		switch cur.kind {
		case kindIndexInsert:
			pends = append(pends, innerPend[K]{key: *cur.lowKey, child: cur.child, high: cur.highKey, insert: true})
			deltas++
			cur = cur.next
		case kindIndexDelete:
			pends = append(pends, innerPend[K]{key: cur.key, child: cur.child})
			deltas++
			cur = cur.next
		case kindSplit:
			if bound == nil || cur.key.Compare(*bound) < 0 {
				sep := cur.key
				bound = &sep
				boundSide = cur.child
			}
			deltas++
			cur = cur.next
		case kindRemove:
			deltas++
			cur = cur.next
		case kindInner:
			view := innerView[K]{
				keys:     slices.Clone(cur.keys),
				children: slices.Clone(cur.children),
				side:     cur.side,
				lowKey:   cur.lowKey,
				highKey:  cur.highKey,
				deltas:   deltas,
			}
			applyInnerPends(&view, pends)
			clampInner(&view, bound, boundSide)
			return view
		default:
			panic("bwtree: inner fold reached unexpected record kind")
		}
	}
}

// applyInnerPends replays separator insertions and removals oldest-first.
// Both directions are idempotent so that duplicated help-along installs
// cannot corrupt routing.
func applyInnerPends[K Key[K]](v *innerView[K], pends []innerPend[K]) {
	for i := len(pends) - 1; i >= 0; i-- {
		p := pends[i]
		idx, found := slices.BinarySearchFunc(v.keys, p.key, compareKeys[K])
		if p.insert {
			if !found {
				v.keys = slices.Insert(v.keys, idx, p.key)
				v.children = slices.Insert(v.children, idx+1, p.child)
			}
			continue
		}
		if found {
			v.keys = slices.Delete(v.keys, idx, idx+1)
			v.children = slices.Delete(v.children, idx+1, idx+2)
		}
	}
}

func clampInner[K Key[K]](v *innerView[K], bound *K, side uint64) {
	if bound == nil {
		return
	}
	idx, _ := slices.BinarySearchFunc(v.keys, *bound, compareKeys[K])
	v.keys = v.keys[:idx]
	v.children = v.children[:idx+1]
	v.highKey = bound
	v.side = side
	v.pendingSplit = true
}
