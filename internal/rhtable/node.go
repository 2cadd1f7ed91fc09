package rhtable

import "sync/atomic"

// NodeHeader is the intrusive chain link a caller embeds in its own
// record. The table never allocates or frees a NodeHeader: it is owned by
// the surrounding record, created by the caller before insertion, and
// must not be reclaimed until the RCU synchronization following its
// detach has completed.
type NodeHeader struct {
	// Hash is the value the table was told to index this node under. It
	// is set by TryInsert/InsertNoDup and is stable until the node is
	// detached.
	Hash uint64

	next atomic.Pointer[NodeHeader]
}

// Next returns the next node in this node's chain, or nil at the tail.
// Safe to call from a reader critical section; the returned pointer is
// valid for the duration of that section.
func (n *NodeHeader) Next() *NodeHeader {
	return n.next.Load()
}
