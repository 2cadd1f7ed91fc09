package rcu

import "sync/atomic"

// maxEpochs is the size of the epoch ring. The source library fixes this
// at two: a writer only ever needs to drain the slot the epoch it just
// retired from occupies, since any reader that enters after the advance
// lands in the other slot and cannot have observed the pointers the
// writer is about to retire.
const maxEpochs = 2

// cacheLinePadding sizes refCell so consecutive cells don't share a cache
// line: under contention, readers in adjacent buckets incrementing and
// decrementing their own counters would otherwise ping-pong the same line.
const cacheLinePadding = 64 - 4 // refCell's atomic.Int32 occupies 4 bytes.

// refCell is one reader reference count, padded to a full cache line.
type refCell struct {
	count atomic.Int32
	_     [cacheLinePadding]byte
}

// Token is returned by ReaderEnter and must be passed unchanged to the
// matching ReaderExit. It records the epoch the reader's critical section
// was attributed to.
type Token int64

// Zone is one RCU synchronization domain. Readers and the writer must
// agree on a Zone instance; two different Zones are independent and may
// be nested, though nesting a zone's own read side inside itself, or
// calling Synchronize from within that zone's read side, deadlocks exactly
// like nesting a reader-writer lock incorrectly would.
//
// There is no Release: a Zone's counter storage is an ordinary Go slice,
// and once the last reference to the Zone itself goes away the garbage
// collector reclaims it along with everything it points to. The source
// library's explicit counter-storage free is a manual-memory-management
// concern that has no counterpart here.
type Zone struct {
	nrHashBuckets int32 // power of two; bucket pool size for unregistered readers.
	bucketsPerRow int32 // nrHashBuckets + nrRegisteredSlots.

	epochs [maxEpochs][]refCell

	epochLatest atomic.Int64
	epochOldest int64 // writer-only; the writer is externally serialized.
}

// NewZone allocates a Zone sized to serve nrHashBucketsForUnregistered
// unregistered readers (rounded up to a power of two) in addition to the
// process's registered reader slots.
func NewZone(nrHashBucketsForUnregistered int) *Zone {
	if nrHashBucketsForUnregistered < 1 {
		nrHashBucketsForUnregistered = 1
	}
	z := &Zone{
		nrHashBuckets: upperBoundPowerOfTwo(uint32(nrHashBucketsForUnregistered)),
	}
	z.bucketsPerRow = z.nrHashBuckets + nrRegisteredSlots
	for e := range z.epochs {
		z.epochs[e] = make([]refCell, z.bucketsPerRow)
	}
	return z
}

// bucketFor resolves the reader's counter-cell column: a registered
// handle indexes directly into its private slot, an unregistered reader
// (h == nil) hashes its goroutine identity into the shared pool that
// follows the registered slots.
func (z *Zone) bucketFor(h *ReaderHandle) int32 {
	if h != nil {
		return h.slot
	}
	hashed := fnv1a64(callerID()) & uint64(z.nrHashBuckets-1)
	return nrRegisteredSlots + int32(hashed)
}

// ReaderEnter opens a reader critical section and returns a Token that
// must be handed back to ReaderExit. It never blocks and never allocates.
//
// The algorithm is lock-free with bounded retry: the reader speculatively
// joins the latest epoch's counter, then revalidates that the epoch has
// not advanced underneath it. If it has, the writer's Synchronize may
// already have stopped waiting on the slot the reader just bumped, so the
// reader backs its count out and retries against the now-current epoch.
func (z *Zone) ReaderEnter(h *ReaderHandle) Token {
	bucket := z.bucketFor(h)
	for {
		epoch := z.epochLatest.Load()
		cell := &z.epochs[epoch%maxEpochs][bucket]
		cell.count.Add(1)

		if z.epochLatest.Load() == epoch {
			return Token(epoch)
		}
		cell.count.Add(-1)
	}
}

// ReaderExit closes the critical section opened by the matching
// ReaderEnter call. tok and h must be the exact pair passed to and
// returned from that call.
func (z *Zone) ReaderExit(h *ReaderHandle, tok Token) {
	bucket := z.bucketFor(h)
	cell := &z.epochs[int64(tok)%maxEpochs][bucket]
	cell.count.Add(-1)
}

// Synchronize blocks until every reader critical section open at the time
// of the call has closed. The caller (the single serialized writer) may
// then safely reclaim anything those readers could have been observing.
//
// Spinning here is unbounded by design: a reader that enters and never
// exits stalls Synchronize forever. Reader critical sections are expected
// to be short.
func (z *Zone) Synchronize() {
	lastEpoch := z.epochLatest.Add(1) - 1
	for e := z.epochOldest; e <= lastEpoch; e++ {
		row := z.epochs[e%maxEpochs]
		for i := range row {
			for row[i].count.Load() > 0 {
				// Spin; the writer is externally serialized so there is
				// exactly one Synchronize in flight on this Zone.
			}
		}
		z.epochOldest = e + 1
	}
}
