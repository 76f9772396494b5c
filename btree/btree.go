// Package btree implements the ordered key→value B-tree engine (spec
// §4.4). There is no teacher equivalent — sqldef talks to databases that
// already own a B-tree — so this is built fresh from spec.md §4.4/§4.9's
// design notes: nodes are arena-allocated and referenced by NodeId rather
// than by pointer, so rebalancing can never create a reference cycle and
// serialization is a flat slice walk (spec.md §9, "Back-references in
// B-tree nodes"). Generics here follow the teacher's own use of them in
// database/concurrent.go's ConcurrentMapFuncWithError.
package btree

import (
	"github.com/sqldef/qldb/types"
)

// NodeId indexes into Tree.nodes; the root that New creates is node 0.
// nilNode marks "no child"/"no parent".
type NodeId int

const nilNode NodeId = -1

type node[V any] struct {
	keys     []types.CompositeKey
	values   []V
	children []NodeId
	leaf     bool
	parent   NodeId
}

// Tree is an order-m B-tree: every non-root node holds between m-1 and
// 2m-1 keys (spec §3's B-tree node invariant). Default order for index use
// is 50; tests commonly use 3 (spec §4.4).
type Tree[V any] struct {
	order int
	root  NodeId
	nodes []*node[V]
	size  int
}

// New creates an empty tree of the given order (m >= 2).
func New[V any](order int) *Tree[V] {
	if order < 2 {
		order = 2
	}
	t := &Tree[V]{order: order}
	t.root = t.newNode(true)
	return t
}

func (t *Tree[V]) newNode(leaf bool) NodeId {
	n := &node[V]{leaf: leaf, parent: nilNode}
	t.nodes = append(t.nodes, n)
	return NodeId(len(t.nodes) - 1)
}

func (t *Tree[V]) n(id NodeId) *node[V] { return t.nodes[id] }

// Size returns the total number of entries across all nodes.
func (t *Tree[V]) Size() int { return t.size }

// Height returns the number of levels from root to leaf, inclusive.
func (t *Tree[V]) Height() int {
	h := 1
	cur := t.root
	for !t.n(cur).leaf {
		cur = t.n(cur).children[0]
		h++
	}
	return h
}

// Has reports whether k is present.
func (t *Tree[V]) Has(k types.CompositeKey) bool {
	_, ok := t.Search(k)
	return ok
}

// Search returns the value stored at key k, if any.
func (t *Tree[V]) Search(k types.CompositeKey) (V, bool) {
	cur := t.root
	for {
		nd := t.n(cur)
		i := 0
		for i < len(nd.keys) && types.CompareKeys(k, nd.keys[i]) > 0 {
			i++
		}
		if i < len(nd.keys) && types.CompareKeys(k, nd.keys[i]) == 0 {
			return nd.values[i], true
		}
		if nd.leaf {
			var zero V
			return zero, false
		}
		cur = nd.children[i]
	}
}

// GetMin returns the smallest key's value.
func (t *Tree[V]) GetMin() (types.CompositeKey, V, bool) {
	cur := t.root
	for {
		nd := t.n(cur)
		if len(nd.keys) == 0 {
			var zk types.CompositeKey
			var zv V
			return zk, zv, false
		}
		if nd.leaf {
			return nd.keys[0], nd.values[0], true
		}
		cur = nd.children[0]
	}
}

// GetMax returns the largest key's value.
func (t *Tree[V]) GetMax() (types.CompositeKey, V, bool) {
	cur := t.root
	for {
		nd := t.n(cur)
		if len(nd.keys) == 0 {
			var zk types.CompositeKey
			var zv V
			return zk, zv, false
		}
		if nd.leaf {
			last := len(nd.keys) - 1
			return nd.keys[last], nd.values[last], true
		}
		cur = nd.children[len(nd.children)-1]
	}
}

// InOrder returns every (key, value) pair in ascending key order.
func (t *Tree[V]) InOrder() []Entry[V] {
	var out []Entry[V]
	t.inOrder(t.root, &out)
	return out
}

// Entry is one (key, value) pair.
type Entry[V any] struct {
	Key   types.CompositeKey
	Value V
}

func (t *Tree[V]) inOrder(id NodeId, out *[]Entry[V]) {
	nd := t.n(id)
	for i := range nd.keys {
		if !nd.leaf {
			t.inOrder(nd.children[i], out)
		}
		*out = append(*out, Entry[V]{Key: nd.keys[i], Value: nd.values[i]})
	}
	if !nd.leaf {
		t.inOrder(nd.children[len(nd.children)-1], out)
	}
}

// SearchRange returns all values with lo <= key <= hi, in ascending key
// order (spec §4.4, inclusive).
func (t *Tree[V]) SearchRange(lo, hi types.CompositeKey) []Entry[V] {
	var out []Entry[V]
	t.rangeWalk(t.root, lo, hi, &out)
	return out
}

func (t *Tree[V]) rangeWalk(id NodeId, lo, hi types.CompositeKey, out *[]Entry[V]) {
	nd := t.n(id)
	for i := range nd.keys {
		if !nd.leaf && types.CompareKeys(nd.keys[i], lo) >= 0 {
			t.rangeWalk(nd.children[i], lo, hi, out)
		}
		if types.CompareKeys(nd.keys[i], lo) >= 0 && types.CompareKeys(nd.keys[i], hi) <= 0 {
			*out = append(*out, Entry[V]{Key: nd.keys[i], Value: nd.values[i]})
		}
	}
	if !nd.leaf {
		last := len(nd.children) - 1
		if types.CompareKeys(nd.keys[len(nd.keys)-1], hi) <= 0 {
			t.rangeWalk(nd.children[last], lo, hi, out)
		}
	}
}

// Operator is a comparison operator usable with SearchWithOperator.
type Operator int

const (
	OpGT Operator = iota
	OpGE
	OpLT
	OpLE
)

// SearchWithOperator returns all qualifying values in ascending key order
// (spec.md §9's Open Question: the source's traversal bug — a recursion
// path that yields results out of order — is deliberately not reproduced).
func (t *Tree[V]) SearchWithOperator(k types.CompositeKey, op Operator) []Entry[V] {
	entries := t.InOrder()
	var out []Entry[V]
	for _, e := range entries {
		c := types.CompareKeys(e.Key, k)
		match := false
		switch op {
		case OpGT:
			match = c > 0
		case OpGE:
			match = c >= 0
		case OpLT:
			match = c < 0
		case OpLE:
			match = c <= 0
		}
		if match {
			out = append(out, e)
		}
	}
	return out
}
