package bwtree

import "sort"

// routeResult is the outcome of routing a key through one logical node.
type routeResult struct {
	action routeAction
	id     uint64
}

type routeAction uint8

const (
	routeDescend routeAction = iota // id is a child, current node becomes parent
	routeSide                       // id is a sibling at the same level
	routeLeaf                       // current node is the target leaf
	routeRestart                    // structure changed underneath, restart from root
)

// findLeaf descends from the root to the leaf owning key and returns its
// logical ID and the chain head the routing was performed against. Traversal
// is wait-free for the reader except for help-along split completion, which
// is a single optimistic CAS.
func (t *Tree[K]) findLeaf(key K) (uint64, *node[K]) {
	return t.traverse(key, true)
}

// traverse is findLeaf with maintenance control. Structure modifications use
// maintain=false for their completion traversals so helping cannot recurse
// back into consolidation.
func (t *Tree[K]) traverse(key K, maintain bool) (uint64, *node[K]) {
restart:
	for {
		parentID := invalidID
		var parentHead *node[K]
		id := t.root.Load()

		for {
			head := t.mt.get(id)
			if head == nil {
				// Slot recycled between resolving the ID and loading it.
				continue restart
			}
			res := t.routeNode(id, head, key, parentID, parentHead)
			switch res.action {
			case routeDescend:
				if maintain && int(head.depth) >= t.opts.DeltaChainLimit {
					t.maybeConsolidate(id, head)
				}
				parentID, parentHead = id, head
				id = res.id
			case routeSide:
				id = res.id
			case routeLeaf:
				return id, head
			default:
				continue restart
			}
		}
	}
}

// routeNode walks one logical node's chain and decides where key goes.
func (t *Tree[K]) routeNode(id uint64, head *node[K], key K, parentID uint64, parentHead *node[K]) routeResult {
	cur := head
	for cur != nil {
		switch cur.kind {
		case kindInsert, kindDelete:
			cur = cur.next

		case kindSplit:
			if key.Compare(cur.key) >= 0 {
				// The key now belongs to the new right sibling. Help the
				// split finish before moving on so the parent eventually
				// routes there directly.
				t.completeSplit(parentID, parentHead, id, cur)
				return routeResult{action: routeSide, id: cur.child}
			}
			cur = cur.next

		case kindIndexInsert, kindIndexDelete:
			if (cur.lowKey == nil || key.Compare(*cur.lowKey) >= 0) &&
				(cur.highKey == nil || key.Compare(*cur.highKey) < 0) {
				return routeResult{action: routeDescend, id: cur.child}
			}
			cur = cur.next

		case kindMerge:
			if key.Compare(cur.key) >= 0 {
				cur = cur.rest
			} else {
				cur = cur.next
			}

		case kindRemove:
			// Content has moved to the left sibling; the parent's index
			// delete delta will route there once the merge completes.
			return routeResult{action: routeRestart}

		case kindLeaf:
			if cur.highKey != nil && key.Compare(*cur.highKey) >= 0 {
				return routeResult{action: routeSide, id: cur.side}
			}
			return routeResult{action: routeLeaf}

		case kindInner:
			if cur.highKey != nil && key.Compare(*cur.highKey) >= 0 {
				return routeResult{action: routeSide, id: cur.side}
			}
			idx := sort.Search(len(cur.keys), func(i int) bool {
				return key.Compare(cur.keys[i]) < 0
			})
			return routeResult{action: routeDescend, id: cur.children[idx]}
		}
	}
	panic("bwtree: delta chain without base record")
}

// findLeftmostLeaf descends along the minimum edge of the tree.
func (t *Tree[K]) findLeftmostLeaf() (uint64, *node[K]) {
restart:
	for {
		id := t.root.Load()

		for {
			head := t.mt.get(id)
			if head == nil {
				continue restart
			}

			cur := head
		chain:
			for cur != nil {
				switch cur.kind {
				case kindInsert, kindDelete, kindSplit, kindMerge:
					// The leftmost content stays on this chain.
					cur = cur.next
				case kindIndexInsert:
					// Separators are concrete keys; never the minimum edge.
					cur = cur.next
				case kindIndexDelete:
					if cur.lowKey == nil {
						id = cur.child
						break chain
					}
					cur = cur.next
				case kindRemove:
					continue restart
				case kindLeaf:
					return id, head
				case kindInner:
					id = cur.children[0]
					break chain
				}
			}
		}
	}
}
