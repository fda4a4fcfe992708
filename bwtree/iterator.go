package bwtree

import "iter"

// ScanAll yields every live (key, location) entry in ascending key order,
// locations ascending within a key.
func (t *Tree[K]) ScanAll() iter.Seq2[K, uint64] {
	return t.scan(nil, nil, true, true)
}

// Scan yields live entries within the given bounds in ascending key order.
// Nil bounds are unbounded; inclusivity applies only to the matching bound.
//
// Each leaf is folded atomically under an epoch guard, so entries from one
// leaf reflect a single instant; the scan as a whole is not a snapshot, and
// concurrent writers may be visible in later leaves but not earlier ones.
func (t *Tree[K]) Scan(lower, upper *K, lowerInc, upperInc bool) iter.Seq2[K, uint64] {
	return t.scan(lower, upper, lowerInc, upperInc)
}

func (t *Tree[K]) scan(lower, upper *K, lowerInc, upperInc bool) iter.Seq2[K, uint64] {
	return func(yield func(K, uint64) bool) {
		var resume *K
		first := true

		for {
			g := t.epochs.Enter()
			var head *node[K]
			switch {
			case first && lower == nil:
				_, head = t.findLeftmostLeaf()
			case first:
				_, head = t.traverse(*lower, false)
			default:
				_, head = t.traverse(*resume, false)
			}
			view := t.foldLeaf(head)
			g.Leave()

			for i, k := range view.keys {
				if lower != nil {
					if c := k.Compare(*lower); c < 0 || (c == 0 && !lowerInc) {
						continue
					}
				}
				// Keys below the resume point were yielded from an earlier
				// leaf; a merge can bring them back into view.
				if resume != nil && k.Compare(*resume) < 0 {
					continue
				}
				if upper != nil {
					if c := k.Compare(*upper); c > 0 || (c == 0 && !upperInc) {
						return
					}
				}
				it := view.sets[i].Iterator()
				for it.HasNext() {
					if !yield(k, it.Next()) {
						return
					}
				}
			}

			if view.highKey == nil {
				return
			}
			hk := *view.highKey
			if upper != nil {
				if c := hk.Compare(*upper); c > 0 || (c == 0 && !upperInc) {
					return
				}
			}
			resume = &hk
			first = false
		}
	}
}
