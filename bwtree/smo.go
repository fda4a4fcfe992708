package bwtree

import "slices"

// maybeConsolidate folds an overgrown chain into a fresh base record, and in
// passing triggers splits and merges when the folded content crosses the
// configured thresholds. All outcomes are best effort: a lost CAS or a denied
// resource request just leaves the chain for the next caller.
func (t *Tree[K]) maybeConsolidate(id uint64, head *node[K]) {
	if int(head.depth) < t.opts.DeltaChainLimit || head.kind == kindRemove {
		return
	}
	if head.leaf {
		t.consolidateLeaf(id, head)
	} else {
		t.consolidateInner(id, head)
	}
}

func (t *Tree[K]) consolidateLeaf(id uint64, head *node[K]) {
	view := t.foldLeaf(head)

	if view.pendingSplit {
		// Folding away the split delta would stop traversals from helping
		// the split finish. Complete it first and verify the parent routes
		// to the right sibling before consolidating.
		t.traverse(*view.highKey, false)
		if !t.routesToChild(*view.highKey, view.side) {
			return
		}
	}

	if len(view.keys) >= t.opts.LeafSplitSize {
		t.splitLeaf(id, head, view)
		return
	}
	if t.opts.LeafMergeSize > 0 && len(view.keys) < t.opts.LeafMergeSize && view.lowKey != nil {
		t.mergeLeaf(id, head, view)
		return
	}

	base := &node[K]{
		kind:    kindLeaf,
		leaf:    true,
		keys:    view.keys,
		sets:    view.sets,
		side:    view.side,
		lowKey:  view.lowKey,
		highKey: view.highKey,
	}
	bytes := nodeBytes(base)
	if !t.opts.Controller.AllowConsolidation(int(bytes)) {
		return
	}
	if t.acquire(bytes) != nil {
		return
	}
	if !t.mt.cas(id, head, base) {
		t.release(bytes)
		t.casRetries.Add(1)
		return
	}
	t.consolidations.Add(1)
	t.retireChain(head)
	t.opts.Logger.Debug("consolidated leaf", "node", id, "keys", len(view.keys), "deltas", view.deltas)
}

func (t *Tree[K]) consolidateInner(id uint64, head *node[K]) {
	view := t.foldInner(head)

	if view.pendingSplit {
		t.traverse(*view.highKey, false)
		if !t.routesToChild(*view.highKey, view.side) {
			return
		}
	}

	// An inner root whose separators have all merged away routes everything
	// through one child; collapse the root pointer onto it. The remove delta
	// freezes the chain so no routing entry can be added between the fold and
	// the root swing.
	if len(view.keys) == 0 && len(view.children) == 1 && view.side == invalidID &&
		t.root.Load() == id {
		if t.acquire(deltaBytes) != nil {
			return
		}
		rm := &node[K]{kind: kindRemove, next: head, depth: head.depth + 1}
		if !t.mt.cas(id, head, rm) {
			t.release(deltaBytes)
			return
		}
		if !t.root.CompareAndSwap(id, view.children[0]) {
			if t.mt.cas(id, rm, head) {
				t.release(deltaBytes)
			}
			return
		}
		bytes := chainBytes(rm)
		t.epochs.Retire(func() {
			t.mt.recycle(id)
			t.release(bytes)
		})
		t.opts.Logger.Debug("root collapsed", "old", id, "new", view.children[0])
		return
	}

	if len(view.keys) >= t.opts.InnerSplitSize {
		t.splitInner(id, head, view)
		return
	}

	base := &node[K]{
		kind:     kindInner,
		keys:     view.keys,
		children: view.children,
		side:     view.side,
		lowKey:   view.lowKey,
		highKey:  view.highKey,
	}
	bytes := nodeBytes(base)
	if !t.opts.Controller.AllowConsolidation(int(bytes)) {
		return
	}
	if t.acquire(bytes) != nil {
		return
	}
	if !t.mt.cas(id, head, base) {
		t.release(bytes)
		t.casRetries.Add(1)
		return
	}
	t.consolidations.Add(1)
	t.retireChain(head)
	t.opts.Logger.Debug("consolidated inner", "node", id, "separators", len(view.keys), "deltas", view.deltas)
}

// splitLeaf moves the upper half of a leaf into a new right sibling. The
// right base and the split delta are installed under the SMO mutex; the
// parent's routing entry is installed afterwards by a completion traversal.
func (t *Tree[K]) splitLeaf(id uint64, head *node[K], view leafView[K]) {
	if len(view.keys) < 4 {
		return
	}

	t.smoMu.Lock()
	if t.mt.get(id) != head {
		t.smoMu.Unlock()
		return
	}

	mid := len(view.keys) / 2
	sep := view.keys[mid]

	right := &node[K]{
		kind:    kindLeaf,
		leaf:    true,
		keys:    slices.Clone(view.keys[mid:]),
		sets:    slices.Clone(view.sets[mid:]),
		side:    view.side,
		lowKey:  &sep,
		highKey: view.highKey,
	}
	cost := nodeBytes(right) + deltaBytes
	if t.acquire(cost) != nil {
		t.smoMu.Unlock()
		return
	}
	rightID := t.mt.allocate(right)

	split := &node[K]{
		kind:    kindSplit,
		leaf:    true,
		next:    head,
		depth:   head.depth + 1,
		key:     sep,
		child:   rightID,
		highKey: view.highKey,
	}
	if !t.mt.cas(id, head, split) {
		t.mt.recycle(rightID)
		t.release(cost)
		t.smoMu.Unlock()
		t.casRetries.Add(1)
		return
	}
	t.splits.Add(1)
	t.smoMu.Unlock()

	t.opts.Logger.Debug("split leaf", "node", id, "right", rightID, "keys", len(view.keys))
	t.traverse(sep, false)
}

// splitInner promotes the middle separator of an oversized inner node and
// moves everything above it into a new right sibling.
func (t *Tree[K]) splitInner(id uint64, head *node[K], view innerView[K]) {
	if len(view.keys) < 4 {
		return
	}

	t.smoMu.Lock()
	if t.mt.get(id) != head {
		t.smoMu.Unlock()
		return
	}

	mid := len(view.keys) / 2
	sep := view.keys[mid]

	right := &node[K]{
		kind:     kindInner,
		keys:     slices.Clone(view.keys[mid+1:]),
		children: slices.Clone(view.children[mid+1:]),
		side:     view.side,
		lowKey:   &sep,
		highKey:  view.highKey,
	}
	cost := nodeBytes(right) + deltaBytes
	if t.acquire(cost) != nil {
		t.smoMu.Unlock()
		return
	}
	rightID := t.mt.allocate(right)

	split := &node[K]{
		kind:    kindSplit,
		next:    head,
		depth:   head.depth + 1,
		key:     sep,
		child:   rightID,
		highKey: view.highKey,
	}
	if !t.mt.cas(id, head, split) {
		t.mt.recycle(rightID)
		t.release(cost)
		t.smoMu.Unlock()
		t.casRetries.Add(1)
		return
	}
	t.splits.Add(1)
	t.smoMu.Unlock()

	t.opts.Logger.Debug("split inner", "node", id, "right", rightID, "separators", len(view.keys))
	t.traverse(sep, false)
}

// completeSplit installs the parent routing entry for an already-published
// split delta. It is called by any traversal that crosses the split, so a
// failed CAS can simply be abandoned: a later traversal helps again.
func (t *Tree[K]) completeSplit(parentID uint64, parentHead *node[K], childID uint64, split *node[K]) {
	if parentID == invalidID {
		t.rootSplit(childID, split)
		return
	}
	if t.parentRoutes(parentHead, split.key, split.child) {
		return
	}
	if t.acquire(deltaBytes) != nil {
		return
	}
	sep := split.key
	d := &node[K]{
		kind:    kindIndexInsert,
		next:    parentHead,
		depth:   parentHead.depth + 1,
		lowKey:  &sep,
		highKey: split.highKey,
		child:   split.child,
	}
	if !t.mt.cas(parentID, parentHead, d) {
		t.release(deltaBytes)
		return
	}
	t.opts.Logger.Debug("split completed", "parent", parentID, "right", split.child)
}

// parentRoutes reports whether the parent chain already carries a routing
// entry mapping sep to rightID, making a help-along install redundant.
func (t *Tree[K]) parentRoutes(parentHead *node[K], sep K, rightID uint64) bool {
	if parentHead.kind == kindRemove {
		return true
	}
	view := t.foldInner(parentHead)
	idx, found := slices.BinarySearchFunc(view.keys, sep, compareKeys[K])
	return found && view.children[idx+1] == rightID
}

// rootSplit grows the tree by one level: a fresh inner root routing the old
// root and its new right sibling. Competing helpers race on the root pointer
// CAS; losers discard their candidate.
func (t *Tree[K]) rootSplit(rootID uint64, split *node[K]) {
	sep := split.key
	newRoot := &node[K]{
		kind:     kindInner,
		keys:     []K{sep},
		children: []uint64{rootID, split.child},
	}
	if t.acquire(nodeBytes(newRoot)) != nil {
		return
	}
	newID := t.mt.allocate(newRoot)
	if !t.root.CompareAndSwap(rootID, newID) {
		t.mt.recycle(newID)
		t.release(nodeBytes(newRoot))
		return
	}
	t.rootSplits.Add(1)
	t.opts.Logger.Debug("root split", "old", rootID, "new", newID)
}

// mergeLeaf folds an underflowing leaf into its left sibling: a remove delta
// freezes the victim, a merge delta on the left splices the victim's chain
// in, and an index-delete delta drops the separator from the parent. The
// three installs happen under the SMO mutex so the adjacency checked up
// front cannot shift mid-merge.
func (t *Tree[K]) mergeLeaf(id uint64, head *node[K], view leafView[K]) {
	if view.lowKey == nil || view.pendingSplit {
		return
	}
	low := *view.lowKey

	parentID, _, ok := t.parentOf(id, low)
	if !ok {
		return
	}

	t.smoMu.Lock()
	defer t.smoMu.Unlock()

	pHead := t.mt.get(parentID)
	if pHead == nil || pHead.kind == kindRemove {
		return
	}
	pv := t.foldInner(pHead)
	idx := slices.Index(pv.children, id)
	if idx <= 0 {
		// Gone from this parent, or leftmost within it; nothing to merge into.
		return
	}
	if pv.keys[idx-1].Compare(low) != 0 {
		return
	}
	leftID := pv.children[idx-1]

	lHead := t.mt.get(leftID)
	if lHead == nil || !lHead.leaf {
		return
	}
	lView := t.foldLeaf(lHead)
	if lView.pendingSplit || lView.highKey == nil ||
		(*lView.highKey).Compare(low) != 0 || lView.side != id {
		return
	}

	if t.acquire(3*deltaBytes) != nil {
		return
	}

	// Freeze the victim so no further deltas can land on it.
	var victimHead *node[K]
	for {
		victimHead = t.mt.get(id)
		if victimHead == nil || victimHead.kind == kindRemove {
			t.release(3 * deltaBytes)
			return
		}
		rm := &node[K]{kind: kindRemove, leaf: true, next: victimHead, depth: victimHead.depth + 1}
		if t.mt.cas(id, victimHead, rm) {
			break
		}
		t.casRetries.Add(1)
	}

	// Splice the victim's final chain into the left sibling.
	for {
		lh := t.mt.get(leftID)
		md := &node[K]{
			kind:  kindMerge,
			leaf:  true,
			next:  lh,
			depth: lh.depth + 1,
			key:   low,
			rest:  victimHead,
		}
		if t.mt.cas(leftID, lh, md) {
			break
		}
		t.casRetries.Add(1)
	}

	// Drop the separator from the parent so traversals route to the left
	// sibling directly.
	var leftLow *K
	if idx-1 > 0 {
		k := pv.keys[idx-2]
		leftLow = &k
	} else {
		leftLow = pv.lowKey
	}
	var victimHigh *K
	if idx < len(pv.keys) {
		k := pv.keys[idx]
		victimHigh = &k
	} else {
		victimHigh = pv.highKey
	}
	for {
		ph := t.mt.get(parentID)
		if ph == nil {
			break
		}
		d := &node[K]{
			kind:    kindIndexDelete,
			next:    ph,
			depth:   ph.depth + 1,
			key:     low,
			child:   leftID,
			lowKey:  leftLow,
			highKey: victimHigh,
		}
		if t.mt.cas(parentID, ph, d) {
			break
		}
		t.casRetries.Add(1)
	}

	// The victim's ID becomes reusable once no traversal can resolve it.
	t.epochs.Retire(func() {
		t.mt.recycle(id)
		t.release(deltaBytes) // the remove delta, unreachable from the spliced chain
	})
	t.merges.Add(1)
	t.opts.Logger.Debug("merged leaf", "victim", id, "into", leftID)
}

// parentOf locates the current parent of childID by routing key from the
// root. It fails when the child is no longer reachable by direct descent.
func (t *Tree[K]) parentOf(childID uint64, key K) (uint64, *node[K], bool) {
attempts:
	for attempt := 0; attempt < 4; attempt++ {
		parentID := invalidID
		var parentHead *node[K]
		id := t.root.Load()

		for {
			if id == childID {
				if parentID == invalidID {
					return invalidID, nil, false
				}
				return parentID, parentHead, true
			}
			head := t.mt.get(id)
			if head == nil {
				continue attempts
			}
			res := t.routeNode(id, head, key, parentID, parentHead)
			switch res.action {
			case routeDescend:
				parentID, parentHead = id, head
				id = res.id
			case routeSide:
				id = res.id
			case routeLeaf:
				return invalidID, nil, false
			default:
				continue attempts
			}
		}
	}
	return invalidID, nil, false
}

// routesToChild reports whether routing key from the root reaches childID by
// direct descent, i.e. a parent carries a routing entry for it.
func (t *Tree[K]) routesToChild(key K, childID uint64) bool {
attempts:
	for attempt := 0; attempt < 4; attempt++ {
		parentID := invalidID
		var parentHead *node[K]
		id := t.root.Load()

		for {
			head := t.mt.get(id)
			if head == nil {
				continue attempts
			}
			res := t.routeNode(id, head, key, parentID, parentHead)
			switch res.action {
			case routeDescend:
				if res.id == childID {
					return true
				}
				parentID, parentHead = id, head
				id = res.id
			case routeSide:
				if res.id == childID {
					return false
				}
				id = res.id
			case routeLeaf:
				return false
			default:
				continue attempts
			}
		}
	}
	return false
}
