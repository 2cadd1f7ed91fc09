package rhtable

import "github.com/go-kit/log/level"

// Shrink2x halves the bucket count by splicing each pair of sibling
// chains back into one. Unlike expand, no cross-chain reader confusion is
// possible here: a reader that keeps walking past the end of one
// sibling's run lands on nodes of the other sibling, which are still
// hash-valid under the coarser mask, so a single publish plus one
// Synchronize suffices. Returns false, touching nothing, if the table is
// already at its minimum bucket count of 1.
func (t *Table) Shrink2x() bool {
	old := t.buckets.Load()
	if old.n() == 1 {
		return false
	}

	fresh := newBucketArray(uint32(old.n() / 2))
	for i := uint64(0); i < fresh.n(); i++ {
		spliceSiblingChains(&old.buckets[i], &old.buckets[i+fresh.n()], &fresh.buckets[i])
	}

	t.buckets.Store(fresh)
	t.zone.Synchronize()

	level.Debug(t.logger).Log("msg", "shrink2x", "old_buckets", old.n(), "new_buckets", fresh.n(), "size", t.Len())
	return true
}

// spliceSiblingChains merges src0 and src1 — the two buckets that collapse
// into dst under the halved mask — by walking src0 to its tail and
// pointing it at src1's head, then making dst's head src0's head. Either
// side may be empty, in which case dst simply takes the other's head.
func spliceSiblingChains(src0, src1, dst *bucket) {
	first0 := src0.head.Load()
	first1 := src1.head.Load()

	if first1 == nil {
		dst.head.Store(first0)
		return
	}
	if first0 == nil {
		dst.head.Store(first1)
		return
	}

	tail := first0
	for next := tail.next.Load(); next != nil; next = tail.next.Load() {
		tail = next
	}
	tail.next.Store(first1)
	dst.head.Store(first0)
}
