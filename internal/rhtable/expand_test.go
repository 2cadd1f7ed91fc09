package rhtable

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// buildChain links entries in the given order onto a single bucket's head,
// bypassing the Table, so tests can set up a known pre-unzip chain shape.
func buildChain(b *bucket, entries ...*intEntry) {
	var head *NodeHeader
	for i := len(entries) - 1; i >= 0; i-- {
		entries[i].next.Store(head)
		head = &entries[i].NodeHeader
	}
	b.head.Store(head)
}

func chainKeys(b *bucket) []int {
	var keys []int
	for n := b.head.Load(); n != nil; n = n.next.Load() {
		keys = append(keys, asEntry(n).key)
	}
	return keys
}

func TestInitTwinDstBucketsFindsFirstOfEach(t *testing.T) {
	// Two entries hash into dstID0 (even), two into dstID1 (odd), under
	// maskNew = 3 (4 buckets), interleaved.
	e0 := &intEntry{key: 0}
	e0.Hash = 0
	e1 := &intEntry{key: 1}
	e1.Hash = 1
	e2 := &intEntry{key: 2}
	e2.Hash = 4
	e3 := &intEntry{key: 3}
	e3.Hash = 5

	var src, dst0, dst1 bucket
	buildChain(&src, e0, e1, e2, e3)

	initTwinDstBuckets(&src, &dst0, &dst1, 0, 1, 3)

	require.Same(t, &e0.NodeHeader, dst0.head.Load())
	require.Same(t, &e1.NodeHeader, dst1.head.Load())
}

func TestFindFirstUnzipPointNoChangeReportsDone(t *testing.T) {
	e0 := &intEntry{key: 0}
	e0.Hash = 0
	e1 := &intEntry{key: 1}
	e1.Hash = 4
	var b bucket
	buildChain(&b, e0, e1)

	needsUnzip := findFirstUnzipPoint(&b, 3)
	require.False(t, needsUnzip)
	require.Nil(t, b.head.Load())
}

func TestFindFirstUnzipPointLocatesBoundary(t *testing.T) {
	e0 := &intEntry{key: 0} // bucket 0
	e0.Hash = 0
	e1 := &intEntry{key: 1} // bucket 1, boundary
	e1.Hash = 1
	var b bucket
	buildChain(&b, e0, e1)

	needsUnzip := findFirstUnzipPoint(&b, 3)
	require.True(t, needsUnzip)
	require.Same(t, &e0.NodeHeader, b.head.Load())
}

func TestUnzipOneSegmentSplitsRunsApart(t *testing.T) {
	// Under new mask 3 the chain alternates buckets 0,1,0,1; the helper
	// compares only new-mask ids.
	e0 := &intEntry{key: 0}
	e0.Hash = 0
	e1 := &intEntry{key: 1}
	e1.Hash = 1
	e2 := &intEntry{key: 2}
	e2.Hash = 4
	e3 := &intEntry{key: 3}
	e3.Hash = 5
	var src bucket
	buildChain(&src, e0, e1, e2, e3)

	require.True(t, findFirstUnzipPoint(&src, 3))
	require.Same(t, &e0.NodeHeader, src.head.Load())

	unzipOneSegment(&src, 3)
	// e0 -> e2 now (both bucket 0), e1 -> e3 unaffected by this helper
	// directly but verified by full Expand2x below.
	require.Same(t, &e2.NodeHeader, e0.next.Load())
	// The cursor left in b.head must be e1, the last node of the run just
	// jumped over, not e2: the next call resumes splitting e1's sibling
	// (id 1) out of what remains of the shared chain.
	require.Same(t, &e1.NodeHeader, src.head.Load())
}

// TestUnzipOneSegmentMultipleRunsPerSibling exercises a chain with several
// runs interleaved per sibling, the shape a single-run toy chain can't
// distinguish: splicing from the wrong node here either strands nodes
// permanently or splices sibling-owned nodes into the wrong new bucket.
func TestUnzipOneSegmentMultipleRunsPerSibling(t *testing.T) {
	ids := []int{0, 0, 0, 1, 1, 1, 1, 0, 0, 1, 1, 1, 0, 1, 0, 0, 1}
	entries := make([]*intEntry, len(ids))
	for i, id := range ids {
		entries[i] = &intEntry{key: i}
		entries[i].Hash = uint64(id)
	}
	var src bucket
	buildChain(&src, entries...)

	const maskNew = 1
	for findFirstUnzipPoint(&src, maskNew) {
		unzipOneSegment(&src, maskNew)
	}

	// Walk what remains of the shared chain starting from each sibling's
	// first node (found the same way initTwinDstBuckets would) and confirm
	// every node of that id is reachable, none of the other id leaked in,
	// and the two sibling chains together are exactly the original set.
	var head0, head1 *NodeHeader
	for _, e := range entries {
		if e.Hash == 0 && head0 == nil {
			head0 = &e.NodeHeader
		}
		if e.Hash == 1 && head1 == nil {
			head1 = &e.NodeHeader
		}
	}

	var reached []int
	for _, head := range []*NodeHeader{head0, head1} {
		wantID := head.Hash
		for n := head; n != nil; n = n.next.Load() {
			require.Equalf(t, wantID, n.Hash, "node %d leaked into the wrong sibling's chain", asEntry(n).key)
			reached = append(reached, asEntry(n).key)
		}
	}

	var want []int
	for i := range ids {
		want = append(want, i)
	}
	sort.Ints(reached)
	sort.Ints(want)
	if diff := cmp.Diff(want, reached); diff != "" {
		t.Fatalf("reachable keys after unzip don't match the original set (-want +got):\n%s", diff)
	}
}

func TestExpand2xSeparatesInterleavedChain(t *testing.T) {
	tbl := New(Config{NrBuckets: 4, ExpandFactor: 1000})
	keys := []int{0, 4, 8, 1, 5, 9, 2, 6}
	entries := make([]*intEntry, len(keys))
	for i, k := range keys {
		entries[i] = &intEntry{key: k}
		tbl.InsertNoDup(&entries[i].NodeHeader, hashInt(k))
	}

	tbl.Expand2x()
	require.Equal(t, 8, tbl.NumBuckets())

	ba := tbl.buckets.Load()
	wantByBucket := make(map[uint64][]int)
	for _, k := range keys {
		idx := ba.index(hashInt(k))
		wantByBucket[idx] = append(wantByBucket[idx], k)
	}
	gotByBucket := make(map[uint64][]int)
	for i := range ba.buckets {
		for n := ba.buckets[i].head.Load(); n != nil; n = n.next.Load() {
			gotByBucket[uint64(i)] = append(gotByBucket[uint64(i)], asEntry(n).key)
		}
	}
	for idx := range wantByBucket {
		sort.Ints(wantByBucket[idx])
		sort.Ints(gotByBucket[idx])
	}
	if diff := cmp.Diff(wantByBucket, gotByBucket); diff != "" {
		t.Fatalf("bucket membership after expand doesn't match expected hashes (-want +got):\n%s", diff)
	}
}

func TestExpand2xOnEmptyTableOnlyDoublesBuckets(t *testing.T) {
	tbl := New(Config{NrBuckets: 4})
	tbl.Expand2x()
	require.Equal(t, 8, tbl.NumBuckets())
	require.Equal(t, 0, tbl.Len())
}

func TestExpand2xHandlesUniformSingleBucketChain(t *testing.T) {
	// Every key hashes to the same old bucket and stays in the same new
	// bucket too (findFirstUnzipStarts should report allDone for it).
	tbl := New(Config{NrBuckets: 2})
	e0 := &intEntry{key: 0}
	e1 := &intEntry{key: 1}
	tbl.InsertNoDup(&e0.NodeHeader, 0)
	tbl.InsertNoDup(&e1.NodeHeader, 4) // same bucket under mask 1, and under mask 3 both land bucket 0

	tbl.Expand2x()
	require.Equal(t, 4, tbl.NumBuckets())
	require.NotNil(t, tbl.Find(0, func(n *NodeHeader) bool { return true }))
	require.NotNil(t, tbl.Find(4, func(n *NodeHeader) bool { return true }))
}
