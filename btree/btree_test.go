package btree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/qldb/types"
)

func key(n int) types.CompositeKey {
	return types.CompositeKey{types.Int(int64(n))}
}

func TestInsertSearchBasic(t *testing.T) {
	tr := New[int](3)
	for _, n := range []int{10, 20, 5, 6, 12, 30, 7, 17} {
		tr.Insert(key(n), n)
	}
	for _, n := range []int{10, 20, 5, 6, 12, 30, 7, 17} {
		v, ok := tr.Search(key(n))
		require.True(t, ok)
		assert.Equal(t, n, v)
	}
	_, ok := tr.Search(key(999))
	assert.False(t, ok)
	assert.Equal(t, 8, tr.Size())
}

func TestInsertReplacesOnEqualKey(t *testing.T) {
	tr := New[string](3)
	tr.Insert(key(1), "a")
	tr.Insert(key(1), "b")
	v, ok := tr.Search(key(1))
	require.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, 1, tr.Size())
}

func TestSortedTraversalHoldsAcrossRandomInserts(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tr := New[int](3)
	seen := map[int]bool{}
	var nums []int
	for i := 0; i < 500; i++ {
		n := rng.Intn(2000)
		if seen[n] {
			continue
		}
		seen[n] = true
		nums = append(nums, n)
		tr.Insert(key(n), n)
	}

	entries := tr.InOrder()
	require.Len(t, entries, len(nums))
	for i := 1; i < len(entries); i++ {
		assert.True(t, types.CompareKeys(entries[i-1].Key, entries[i].Key) < 0,
			"entries must be strictly ascending")
	}
}

func TestEqualLeafDepthAndNodeOccupancy(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	order := 3
	tr := New[int](order)
	for i := 0; i < 300; i++ {
		n := rng.Intn(1000)
		tr.Insert(key(n), n)
	}

	depths := map[int]bool{}
	var walk func(id NodeId, depth int)
	walk = func(id NodeId, depth int) {
		nd := tr.n(id)
		if len(nd.keys) < order-1 && id != tr.root {
			t.Fatalf("node below minimum occupancy: %d keys, order %d", len(nd.keys), order)
		}
		if len(nd.keys) > 2*order-1 {
			t.Fatalf("node above maximum occupancy: %d keys, order %d", len(nd.keys), order)
		}
		if nd.leaf {
			depths[depth] = true
			return
		}
		for _, c := range nd.children {
			walk(c, depth+1)
		}
	}
	walk(tr.root, 0)
	assert.Len(t, depths, 1, "every leaf must be at the same depth")
}

func TestDeletePreservesInvariantsAndRemovesKey(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	order := 3
	tr := New[int](order)
	var nums []int
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		n := rng.Intn(1000)
		if seen[n] {
			continue
		}
		seen[n] = true
		nums = append(nums, n)
		tr.Insert(key(n), n)
	}

	rng.Shuffle(len(nums), func(i, j int) { nums[i], nums[j] = nums[j], nums[i] })
	half := len(nums) / 2
	for _, n := range nums[:half] {
		tr.Delete(key(n))
		_, ok := tr.Search(key(n))
		assert.False(t, ok)
	}

	assert.Equal(t, len(nums)-half, tr.Size())
	for _, n := range nums[half:] {
		_, ok := tr.Search(key(n))
		assert.True(t, ok)
	}

	entries := tr.InOrder()
	for i := 1; i < len(entries); i++ {
		assert.True(t, types.CompareKeys(entries[i-1].Key, entries[i].Key) < 0)
	}

	var walk func(id NodeId, depth int, depths map[int]bool)
	walk = func(id NodeId, depth int, depths map[int]bool) {
		nd := tr.n(id)
		if nd.leaf {
			depths[depth] = true
			return
		}
		for _, c := range nd.children {
			walk(c, depth+1, depths)
		}
	}
	depths := map[int]bool{}
	walk(tr.root, 0, depths)
	assert.Len(t, depths, 1)
}

func TestSearchRangeInclusiveAscending(t *testing.T) {
	tr := New[int](3)
	for _, n := range []int{1, 5, 10, 15, 20, 25, 30} {
		tr.Insert(key(n), n)
	}
	got := tr.SearchRange(key(10), key(25))
	var nums []int
	for _, e := range got {
		nums = append(nums, e.Value)
	}
	assert.Equal(t, []int{10, 15, 20, 25}, nums)
}

func TestSearchWithOperatorAscendingOrder(t *testing.T) {
	tr := New[int](3)
	for _, n := range []int{5, 1, 9, 3, 7} {
		tr.Insert(key(n), n)
	}
	got := tr.SearchWithOperator(key(3), OpGT)
	var nums []int
	for _, e := range got {
		nums = append(nums, e.Value)
	}
	assert.Equal(t, []int{5, 7, 9}, nums, "must be ascending regardless of insertion order")
}

func TestGetMinGetMax(t *testing.T) {
	tr := New[int](3)
	for _, n := range []int{42, 7, 99, 1, 13} {
		tr.Insert(key(n), n)
	}
	_, minV, ok := tr.GetMin()
	require.True(t, ok)
	assert.Equal(t, 1, minV)
	_, maxV, ok := tr.GetMax()
	require.True(t, ok)
	assert.Equal(t, 99, maxV)
}

func TestEntriesRoundTripThroughFromEntries(t *testing.T) {
	tr := New[int](3)
	for _, n := range []int{3, 1, 4, 1, 5, 9, 2, 6} {
		tr.Insert(key(n), n)
	}
	entries := tr.Entries()
	restored := FromEntries(3, entries)
	assert.Equal(t, tr.Size(), restored.Size())
	for _, e := range entries {
		v, ok := restored.Search(e.Key)
		require.True(t, ok)
		assert.Equal(t, e.Value, v)
	}
}
