// Package rht provides a relativistic, RCU-based concurrent hash table.
//
// A Table supports wait-free, lock-free lookups from any number of
// concurrent reader goroutines running alongside a single serialized
// writer performing inserts, detaches, and resizes. The writer never
// blocks readers; the writer's Synchronize waits for the reader critical
// sections open at the time of the call to close. The two sides
// coordinate only through the underlying RCU zone's grace periods, which
// bound how long a detached or superseded node must stay alive before
// the writer may reuse or free it.
//
// # Quick Start
//
// The table never hashes; hashID below stands for the caller's own hash
// function.
//
//	type widget struct {
//		hdr rht.NodeHeader
//		id  int
//	}
//	var widgetHdrOffset = unsafe.Offsetof(widget{}.hdr)
//
//	tbl := rht.NewDefault()
//	w := &widget{id: 7}
//	tbl.TryInsert(&w.hdr, hashID(7), func(a, b *rht.NodeHeader) bool {
//		return rht.EntryOf[widget](a, widgetHdrOffset).id == rht.EntryOf[widget](b, widgetHdrOffset).id
//	})
//
//	sess := tbl.EnterRead(nil)
//	defer sess.Exit()
//	if n := tbl.Find(hashID(7), func(n *rht.NodeHeader) bool {
//		return rht.EntryOf[widget](n, widgetHdrOffset).id == 7
//	}); n != nil {
//		found := rht.EntryOf[widget](n, widgetHdrOffset)
//		_ = found
//	}
//
// # Ownership
//
// The table never allocates or frees an entry. A caller embeds
// [NodeHeader] in its own struct, inserts a pointer to that header, and
// is responsible for freeing the enclosing struct only after the RCU
// grace period following its detach has elapsed — TryDetachAndSynchronize
// guarantees that period has already passed by the time it returns.
//
// # Concurrency contract
//
// Exactly one goroutine at a time may call a mutating method
// (TryInsert, InsertNoDup, the TryDetach family, Expand2x, Shrink2x,
// Synchronize) on a given Table. Any number of goroutines may call Find
// concurrently with each other and with that writer, provided each
// brackets its call with EnterRead/Exit (or the lower-level
// ReaderEnter/ReaderExit pair). Readers that want to amortize
// registration across many lookups call TryRegisterReader once and pass
// the handle to every bracket.
package rht
