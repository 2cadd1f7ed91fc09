package rhtable

import "github.com/go-kit/log/level"

// Expand2x doubles the bucket count via the unzip protocol: publish a
// finer bucket array that is still a valid (if interleaved) view of the
// same chains, drain readers of the old array, then iteratively split
// each old chain into its two sibling chains — one RCU grace period per
// split step — before finally dropping the old array.
func (t *Table) Expand2x() {
	old := t.buckets.Load()
	fresh := newBucketArray(uint32(old.n() * 2))

	// Phase A: pre-link. Every old bucket's chain is scanned once to find
	// the first node belonging to each of its two new sibling buckets; no
	// node's next pointer is touched yet, so a reader still walking the
	// old array sees nothing different, and a reader that jumps to the
	// new array via either sibling head reaches every node it owns,
	// interleaved with nodes of the other sibling it will skip on the
	// equality test.
	for i := uint64(0); i < old.n(); i++ {
		initTwinDstBuckets(&old.buckets[i], &fresh.buckets[i], &fresh.buckets[i+old.n()], i, i+old.n(), fresh.mask)
	}

	// Phase B: publish.
	t.buckets.Store(fresh)

	// Phase C: drain readers of the old array. After this, every reader
	// is traversing through the new array's heads, though the chains
	// they walk are still shared with their sibling bucket.
	t.zone.Synchronize()

	// Phase D: find the first unzip point in every old bucket (used only
	// as writer-private scratch storage from here on).
	allDone := findFirstUnzipStarts(old, fresh.mask)

	// Phase E: iteratively unzip until every old bucket's scratch cursor
	// is exhausted, synchronizing once per pass so that readers stranded
	// mid-run by one step's unlink have drained before the next step
	// mutates anything further downstream.
	for !allDone {
		allDone = true
		for i := range old.buckets {
			if old.buckets[i].head.Load() != nil {
				allDone = false
				unzipOneSegment(&old.buckets[i], fresh.mask)
			}
		}
		if !allDone {
			t.zone.Synchronize()
		}
	}

	level.Debug(t.logger).Log("msg", "expand2x", "old_buckets", old.n(), "new_buckets", fresh.n(), "size", t.Len())
	// Phase F: old is no longer referenced by the table or by any reader
	// past the last Synchronize call above; it becomes ordinary garbage.
}

// initTwinDstBuckets scans src's chain once, finds the first node
// belonging to each of the two new sibling buckets (dstID0 under the
// expanded mask, dstID1 = dstID0 | old.n()), and stores those as the
// initial heads of dst0 and dst1. src's own chain is left untouched.
func initTwinDstBuckets(src, dst0, dst1 *bucket, dstID0, dstID1, maskNew uint64) {
	var first0, first1 *NodeHeader
	for n := src.head.Load(); n != nil; n = n.next.Load() {
		id := n.Hash & maskNew
		switch {
		case first0 == nil && id == dstID0:
			first0 = n
		case first1 == nil && id == dstID1:
			first1 = n
		}
		if first0 != nil && first1 != nil {
			break
		}
	}
	dst0.head.Store(first0)
	dst1.head.Store(first1)
}

// findFirstUnzipStarts walks each old bucket's chain (still reachable
// through old, now used purely as writer scratch space) to the last node
// before the bucket index changes under maskNew, and repurposes that old
// bucket's head pointer as a cursor to that node. Buckets whose chain
// never changes index need no unzip and are left nil (already "done").
// Reports whether every bucket needs no unzip at all, letting Expand2x
// skip phase E entirely.
func findFirstUnzipStarts(old *bucketArray, maskNew uint64) bool {
	allDone := true
	for i := range old.buckets {
		if old.buckets[i].head.Load() != nil {
			if findFirstUnzipPoint(&old.buckets[i], maskNew) {
				allDone = false
			}
		}
	}
	return allDone
}

// findFirstUnzipPoint walks from b's current head until the node whose
// maskNew-bucket differs from the head's, storing the last node before
// that change back into b's head as a cursor. Returns true if such a
// change exists (an unzip step is needed), false if the chain is empty or
// already uniform under maskNew (b's head is nil: done).
func findFirstUnzipPoint(b *bucket, maskNew uint64) bool {
	p := b.head.Load()
	if p == nil {
		return false
	}
	initialID := p.Hash & maskNew
	for {
		next := p.next.Load()
		if next == nil {
			b.head.Store(nil)
			return false
		}
		if next.Hash&maskNew != initialID {
			b.head.Store(p)
			return true
		}
		p = next
	}
}

// unzipOneSegment performs one unzip step for the old bucket whose cursor
// C is stored in b's head. C belongs to one sibling bucket; C's next, the
// run about to be jumped over, belongs to the other sibling. Given a
// chain C(x) y y y Y(y) x x x ..., where x marks C's own sibling and y
// the other, unzipOneSegment walks from C's next forward to the last
// node of that y-run (call it R), then:
//
//  1. stores C.next = R.next, the first x after the run, so a reader
//     scanning from C's own sibling head now skips straight past the
//     y-run it doesn't own;
//  2. stores b.head = R, repurposing the old bucket's head as the cursor
//     for the next unzip step on this bucket — R is still of the
//     y-sibling's id, so the next call correctly resumes splitting y's
//     remaining runs out of the shared chain.
//
// An RCU grace period is required between successive calls to this
// function for the same bucket, because step 1 can strand a reader that
// entered through the y-sibling's head and is still walking the run
// being unlinked; that reader must drain before a further unzip step
// mutates pointers further down the chain.
func unzipOneSegment(b *bucket, maskNew uint64) {
	cursor := b.head.Load()
	jumpStartID := cursor.Hash & maskNew
	runTail := cursor.next.Load()

	var next *NodeHeader
	for {
		next = runTail.next.Load()
		if next == nil {
			runTail = nil
			break
		}
		if next.Hash&maskNew == jumpStartID {
			break
		}
		runTail = next
	}

	cursor.next.Store(next)
	b.head.Store(runTail)
}
