// Package rcu implements a minimal userspace Read-Copy-Update primitive.
//
// A Zone is a quiescence-detection unit: readers bracket a critical section
// with ReaderEnter/ReaderExit, and a single externally-serialized writer
// calls Synchronize to block until every reader critical section that was
// open at the time of the call has closed. No reader ever blocks on a
// writer, and readers never allocate.
//
// The scheme follows an epoch ring of size two: the writer advances a
// monotonic epoch counter and then drains exactly the ref-count slot the
// advanced epoch vacated. Readers increment a per-(epoch, bucket) counter
// on entry and decrement it on exit; a reader that straddles an epoch
// advance revalidates and retries rather than stranding its count in a
// slot the writer has already finished draining.
//
// Reader registration is optional. A goroutine that expects to read
// repeatedly can call TryRegisterReader to obtain a ReaderHandle pointing
// at a contention-free counter slot; unregistered readers fall back to a
// slot chosen by hashing their goroutine identity into a shared pool, at
// the cost of contention with other unregistered readers.
package rcu
