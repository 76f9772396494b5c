package btree

import "github.com/sqldef/qldb/types"

func (t *Tree[V]) full(id NodeId) bool {
	return len(t.n(id).keys) == 2*t.order-1
}

// Insert adds or replaces the value at key k (spec §4.4: "replaces value on
// an equal key"). Splitting happens preemptively on the way down, the
// classic single-pass B-tree insertion.
func (t *Tree[V]) Insert(k types.CompositeKey, v V) {
	if t.full(t.root) {
		t.splitRoot()
	}
	t.insertNode(t.root, k, v)
}

func (t *Tree[V]) splitRoot() {
	oldRoot := t.root
	newRootId := t.newNode(false)
	newRoot := t.n(newRootId)
	newRoot.children = []NodeId{oldRoot}
	t.n(oldRoot).parent = newRootId
	t.root = newRootId
	t.splitChild(newRootId, 0)
}

// splitChild splits the full child at parent.children[i] into two nodes of
// m-1 keys, promoting the median into the parent at index i.
func (t *Tree[V]) splitChild(parentId NodeId, i int) {
	parent := t.n(parentId)
	childId := parent.children[i]
	child := t.n(childId)
	m := t.order

	medianKey := child.keys[m-1]
	medianVal := child.values[m-1]

	newId := t.newNode(child.leaf)
	newNode := t.n(newId)
	newNode.keys = append([]types.CompositeKey{}, child.keys[m:]...)
	newNode.values = append([]V{}, child.values[m:]...)
	if !child.leaf {
		newNode.children = append([]NodeId{}, child.children[m:]...)
		for _, cid := range newNode.children {
			t.n(cid).parent = newId
		}
	}
	newNode.parent = parentId

	child.keys = child.keys[:m-1]
	child.values = child.values[:m-1]
	if !child.leaf {
		child.children = child.children[:m]
	}

	parent.keys = insertAt(parent.keys, i, medianKey)
	parent.values = insertAt(parent.values, i, medianVal)
	parent.children = insertAt(parent.children, i+1, newId)
}

func (t *Tree[V]) insertNode(id NodeId, k types.CompositeKey, v V) {
	nd := t.n(id)
	i := 0
	for i < len(nd.keys) && types.CompareKeys(k, nd.keys[i]) > 0 {
		i++
	}
	if i < len(nd.keys) && types.CompareKeys(k, nd.keys[i]) == 0 {
		nd.values[i] = v
		return
	}
	if nd.leaf {
		nd.keys = insertAt(nd.keys, i, k)
		nd.values = insertAt(nd.values, i, v)
		t.size++
		return
	}
	childId := nd.children[i]
	if t.full(childId) {
		t.splitChild(id, i)
		nd = t.n(id) // parent's slices were reallocated by splitChild
		if types.CompareKeys(k, nd.keys[i]) > 0 {
			i++
		} else if types.CompareKeys(k, nd.keys[i]) == 0 {
			nd.values[i] = v
			return
		}
		childId = nd.children[i]
	}
	t.insertNode(childId, k, v)
}

// Delete removes k if present; a no-op otherwise. Nodes are merged on the
// way down so no node below the root ever dips under m-1 keys mid-descent.
func (t *Tree[V]) Delete(k types.CompositeKey) {
	t.deleteNode(t.root, k)
	root := t.n(t.root)
	if !root.leaf && len(root.keys) == 0 {
		t.root = root.children[0]
		t.n(t.root).parent = nilNode
	}
}

func (t *Tree[V]) deleteNode(id NodeId, k types.CompositeKey) {
	nd := t.n(id)
	i := 0
	for i < len(nd.keys) && types.CompareKeys(k, nd.keys[i]) > 0 {
		i++
	}
	found := i < len(nd.keys) && types.CompareKeys(k, nd.keys[i]) == 0

	if nd.leaf {
		if found {
			nd.keys = removeAt(nd.keys, i)
			nd.values = removeAt(nd.values, i)
			t.size--
		}
		return
	}

	if found {
		t.deleteInternal(id, i, k)
		return
	}

	childId := nd.children[i]
	if len(t.n(childId).keys) == t.order-1 {
		t.fixChild(id, i)
		// the fix may have merged keys/children; re-resolve the path from nd.
		nd = t.n(id)
		i = 0
		for i < len(nd.keys) && types.CompareKeys(k, nd.keys[i]) > 0 {
			i++
		}
		if i < len(nd.keys) && types.CompareKeys(k, nd.keys[i]) == 0 {
			t.deleteInternal(id, i, k)
			return
		}
		childId = nd.children[i]
	}
	t.deleteNode(childId, k)
}

// deleteInternal removes the key at nd.keys[i], known to equal k, from an
// internal node: by predecessor/successor swap when a child has spare
// capacity, otherwise by merging the two children around it.
func (t *Tree[V]) deleteInternal(id NodeId, i int, k types.CompositeKey) {
	nd := t.n(id)
	left := nd.children[i]
	right := nd.children[i+1]

	switch {
	case len(t.n(left).keys) >= t.order:
		predKey, predVal := t.subtreeMax(left)
		nd.keys[i] = predKey
		nd.values[i] = predVal
		t.deleteNode(left, predKey)
	case len(t.n(right).keys) >= t.order:
		succKey, succVal := t.subtreeMin(right)
		nd.keys[i] = succKey
		nd.values[i] = succVal
		t.deleteNode(right, succKey)
	default:
		t.mergeChildren(id, i)
		t.deleteNode(left, k)
	}
}

func (t *Tree[V]) subtreeMax(id NodeId) (types.CompositeKey, V) {
	cur := id
	for {
		nd := t.n(cur)
		if nd.leaf {
			last := len(nd.keys) - 1
			return nd.keys[last], nd.values[last]
		}
		cur = nd.children[len(nd.children)-1]
	}
}

func (t *Tree[V]) subtreeMin(id NodeId) (types.CompositeKey, V) {
	cur := id
	for {
		nd := t.n(cur)
		if nd.leaf {
			return nd.keys[0], nd.values[0]
		}
		cur = nd.children[0]
	}
}

// fixChild ensures parent.children[i] holds at least m keys, borrowing from
// a sibling when one has spare capacity or merging otherwise.
func (t *Tree[V]) fixChild(parentId NodeId, i int) {
	parent := t.n(parentId)
	if i > 0 && len(t.n(parent.children[i-1]).keys) >= t.order {
		t.borrowFromLeft(parentId, i)
		return
	}
	if i < len(parent.children)-1 && len(t.n(parent.children[i+1]).keys) >= t.order {
		t.borrowFromRight(parentId, i)
		return
	}
	if i < len(parent.children)-1 {
		t.mergeChildren(parentId, i)
	} else {
		t.mergeChildren(parentId, i-1)
	}
}

func (t *Tree[V]) borrowFromLeft(parentId NodeId, i int) {
	parent := t.n(parentId)
	child := t.n(parent.children[i])
	left := t.n(parent.children[i-1])

	child.keys = insertAt(child.keys, 0, parent.keys[i-1])
	child.values = insertAt(child.values, 0, parent.values[i-1])

	lastKeyIdx := len(left.keys) - 1
	parent.keys[i-1] = left.keys[lastKeyIdx]
	parent.values[i-1] = left.values[lastKeyIdx]
	left.keys = left.keys[:lastKeyIdx]
	left.values = left.values[:lastKeyIdx]

	if !left.leaf {
		lastChildIdx := len(left.children) - 1
		movedChild := left.children[lastChildIdx]
		left.children = left.children[:lastChildIdx]
		child.children = insertAt(child.children, 0, movedChild)
		t.n(movedChild).parent = parent.children[i]
	}
}

func (t *Tree[V]) borrowFromRight(parentId NodeId, i int) {
	parent := t.n(parentId)
	child := t.n(parent.children[i])
	right := t.n(parent.children[i+1])

	child.keys = append(child.keys, parent.keys[i])
	child.values = append(child.values, parent.values[i])

	parent.keys[i] = right.keys[0]
	parent.values[i] = right.values[0]
	right.keys = removeAt(right.keys, 0)
	right.values = removeAt(right.values, 0)

	if !right.leaf {
		movedChild := right.children[0]
		right.children = removeAt(right.children, 0)
		child.children = append(child.children, movedChild)
		t.n(movedChild).parent = parent.children[i]
	}
}

// mergeChildren merges parent.children[i], parent.keys[i], and
// parent.children[i+1] into parent.children[i], and removes both the
// separator key and the now-empty right child from parent.
func (t *Tree[V]) mergeChildren(parentId NodeId, i int) {
	parent := t.n(parentId)
	leftId := parent.children[i]
	rightId := parent.children[i+1]
	left := t.n(leftId)
	right := t.n(rightId)

	left.keys = append(left.keys, parent.keys[i])
	left.values = append(left.values, parent.values[i])
	left.keys = append(left.keys, right.keys...)
	left.values = append(left.values, right.values...)
	if !left.leaf {
		left.children = append(left.children, right.children...)
		for _, cid := range right.children {
			t.n(cid).parent = leftId
		}
	}

	parent.keys = removeAt(parent.keys, i)
	parent.values = removeAt(parent.values, i)
	parent.children = removeAt(parent.children, i+1)
}

func insertAt[T any](s []T, i int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeAt[T any](s []T, i int) []T {
	copy(s[i:], s[i+1:])
	return s[:len(s)-1]
}
