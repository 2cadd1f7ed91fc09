package rhtable

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSpliceSiblingChainsBothEmpty(t *testing.T) {
	var src0, src1, dst bucket
	spliceSiblingChains(&src0, &src1, &dst)
	require.Nil(t, dst.head.Load())
}

func TestSpliceSiblingChainsOneEmpty(t *testing.T) {
	e := &intEntry{key: 1}
	var src0, dst bucket
	src1 := bucket{}
	src1.head.Store(&e.NodeHeader)

	spliceSiblingChains(&src0, &src1, &dst)
	require.Same(t, &e.NodeHeader, dst.head.Load())
}

func TestSpliceSiblingChainsJoinsTailToHead(t *testing.T) {
	e0 := &intEntry{key: 0}
	e1 := &intEntry{key: 1}
	e2 := &intEntry{key: 2}
	var src0, src1, dst bucket
	buildChain(&src0, e0, e1)
	buildChain(&src1, e2)

	spliceSiblingChains(&src0, &src1, &dst)

	require.Equal(t, []int{0, 1, 2}, chainKeys(&dst))
}

func TestShrink2xPreservesReachabilityOfAllEntries(t *testing.T) {
	tbl := New(Config{NrBuckets: 32})
	const n = 300
	entries := make([]*intEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = &intEntry{key: i}
		tbl.InsertNoDup(&entries[i].NodeHeader, hashInt(i))
	}

	var want []int
	for i := 0; i < n; i++ {
		want = append(want, i)
	}
	sort.Ints(want)

	require.True(t, tbl.Shrink2x())
	require.Equal(t, 16, tbl.NumBuckets())

	ba := tbl.buckets.Load()
	var got []int
	for i := range ba.buckets {
		for node := ba.buckets[i].head.Load(); node != nil; node = node.next.Load() {
			got = append(got, asEntry(node).key)
		}
	}
	sort.Ints(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("reachable keys after shrink don't match the inserted set (-want +got):\n%s", diff)
	}
}

func TestShrink2xRepeatedDownToOne(t *testing.T) {
	tbl := New(Config{NrBuckets: 4})
	e := &intEntry{key: 1}
	tbl.InsertNoDup(&e.NodeHeader, hashInt(1))

	require.True(t, tbl.Shrink2x())
	require.Equal(t, 2, tbl.NumBuckets())
	require.True(t, tbl.Shrink2x())
	require.Equal(t, 1, tbl.NumBuckets())
	require.False(t, tbl.Shrink2x())
	require.Equal(t, 1, tbl.NumBuckets())

	require.NotNil(t, tbl.Find(hashInt(1), func(n *NodeHeader) bool { return true }))
}
