// Package rhtable implements a relativistic, RCU-protected chained hash
// table: lock-free lookup, writer-serialized insert/detach, and
// power-of-two expand/shrink that never blocks a concurrent reader.
//
// The table holds borrowed NodeHeader pointers embedded in caller records;
// it never allocates node storage itself, and the reader-side Find path
// allocates nothing on its own either. All mutation — TryInsert, the
// Detach family, Expand2x, Shrink2x — must be externally serialized to a
// single goroutine; the table does not arbitrate between writers.
//
// Expand doubles the bucket array with the "unzip" protocol: a new, finer
// bucket array is published while bucket chains are still shared between
// the old coarse view and the new fine view, then the writer iteratively
// splits each shared chain into its two sibling chains across one RCU
// grace period per unzip step, so that any reader walking through either
// view at any point during the split still reaches every node it is
// looking for. Shrink is the cheaper inverse: splicing sibling chains back
// together needs no such iteration, since a reader that keeps walking past
// the end of one sibling's run lands on hash-valid nodes of the other.
package rhtable
