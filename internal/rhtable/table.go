package rhtable

import (
	"sync/atomic"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/longpractice/Relativistic-Hash-Table/internal/rcu"
)

// shrinkFloor is the minimum element count below which Shrink2x is never
// triggered automatically, regardless of ShrinkFactor. It prevents
// oscillation and pointless resize work at tiny table sizes.
const shrinkFloor = 128

// Config configures a Table at construction. Zero-valued fields are
// replaced with spec defaults by New.
type Config struct {
	// NrBuckets is the initial bucket count, rounded up to a power of two.
	NrBuckets int
	// NrRCUBucketsForUnregisteredThreads sizes the shared hashed bucket
	// pool unregistered readers fall back to.
	NrRCUBucketsForUnregisteredThreads int
	// ExpandFactor is the load ratio above which an insert triggers
	// Expand2x.
	ExpandFactor float64
	// ShrinkFactor is the load ratio below which a detach triggers
	// Shrink2x, subject to the shrinkFloor element-count guard.
	ShrinkFactor float64
	// Logger receives one debug line per Expand2x/Shrink2x/Synchronize
	// call. Never invoked from the reader hot path. Defaults to a no-op
	// logger.
	Logger log.Logger
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		NrBuckets:                          64,
		NrRCUBucketsForUnregisteredThreads: 128,
		ExpandFactor:                       1.1,
		ShrinkFactor:                       0.25,
		Logger:                             log.NewNopLogger(),
	}
}

// Stats summarizes a Table's internal shape at the instant it was taken.
type Stats struct {
	NumBuckets     int
	Len            int
	EmptyBuckets   int
	MaxChainLength int
	// ChainLengthHistogram maps a chain length to the number of buckets
	// holding a chain of exactly that length.
	ChainLengthHistogram map[int]int
}

// Table is the relativistic hash table core. All mutating methods must be
// called from a single externally-serialized writer; Find is safe from any
// number of concurrent readers, each bracketing the call with
// Zone.ReaderEnter/ReaderExit.
type Table struct {
	buckets atomic.Pointer[bucketArray]
	size    atomic.Int64

	expandFactor float64
	shrinkFactor float64

	zone   *rcu.Zone
	logger log.Logger
}

// New constructs a Table from cfg, filling unset fields with
// DefaultConfig's values.
func New(cfg Config) *Table {
	d := DefaultConfig()
	if cfg.NrBuckets <= 0 {
		cfg.NrBuckets = d.NrBuckets
	}
	if cfg.NrRCUBucketsForUnregisteredThreads <= 0 {
		cfg.NrRCUBucketsForUnregisteredThreads = d.NrRCUBucketsForUnregisteredThreads
	}
	if cfg.ExpandFactor <= 0 {
		cfg.ExpandFactor = d.ExpandFactor
	}
	if cfg.ShrinkFactor <= 0 {
		cfg.ShrinkFactor = d.ShrinkFactor
	}
	if cfg.Logger == nil {
		cfg.Logger = d.Logger
	}

	t := &Table{
		expandFactor: cfg.ExpandFactor,
		shrinkFactor: cfg.ShrinkFactor,
		zone:         rcu.NewZone(cfg.NrRCUBucketsForUnregisteredThreads),
		logger:       cfg.Logger,
	}
	t.buckets.Store(newBucketArray(uint32(cfg.NrBuckets)))
	return t
}

// Zone returns the table's RCU zone, for readers that need to bracket
// Find calls with ReaderEnter/ReaderExit.
func (t *Table) Zone() *rcu.Zone {
	return t.zone
}

// Len returns the advisory element count. It is eventually consistent:
// transient drift under concurrent writers racing readers (which never
// mutate it) is not possible, but a reader observing it concurrently with
// a writer's insert/detach may see a slightly stale value.
func (t *Table) Len() int {
	return int(t.size.Load())
}

// NumBuckets returns the current bucket count.
func (t *Table) NumBuckets() int {
	return int(t.buckets.Load().n())
}

// Find performs a lock-free chain walk for the first node whose hash
// equals the given hash and for which eq returns true. Must be called
// from within a reader critical section (see Zone/ReaderEnter). Returns
// nil if no such node exists.
func (t *Table) Find(hash uint64, eq func(*NodeHeader) bool) *NodeHeader {
	ba := t.buckets.Load()
	b := &ba.buckets[ba.index(hash)]
	for n := b.head.Load(); n != nil; n = n.next.Load() {
		if n.Hash == hash && eq(n) {
			return n
		}
	}
	return nil
}

// TryInsertNoExpand inserts node under hash, first scanning the target
// bucket for a duplicate via eq. It returns false without modifying the
// table if eq reports a duplicate (node.Hash is still set to hash). It never triggers Expand2x; callers
// that want automatic growth should use TryInsert.
func (t *Table) TryInsertNoExpand(node *NodeHeader, hash uint64, eq func(a, b *NodeHeader) bool) bool {
	node.Hash = hash
	ba := t.buckets.Load()
	b := &ba.buckets[ba.index(hash)]

	first := b.head.Load()
	for n := first; n != nil; n = n.next.Load() {
		if n.Hash == hash && eq(node, n) {
			return false
		}
	}

	node.next.Store(first)
	b.head.Store(node)
	t.size.Add(1)
	return true
}

// TryInsert is TryInsertNoExpand followed by an automatic Expand2x when
// the load factor now exceeds ExpandFactor.
func (t *Table) TryInsert(node *NodeHeader, hash uint64, eq func(a, b *NodeHeader) bool) bool {
	if !t.TryInsertNoExpand(node, hash, eq) {
		return false
	}
	t.expandIfNecessary()
	return true
}

// InsertNoDup prepends node unconditionally; the caller asserts no
// duplicate exists. It never triggers Expand2x.
func (t *Table) InsertNoDup(node *NodeHeader, hash uint64) {
	node.Hash = hash
	ba := t.buckets.Load()
	b := &ba.buckets[ba.index(hash)]
	node.next.Store(b.head.Load())
	b.head.Store(node)
	t.size.Add(1)
}

// TryDetachNoShrink scans the bucket for hash, unlinks the first node for
// which pred returns true, and returns it. It does not synchronize: the
// unlinked node's next field may still be observed by a reader that
// entered before the unlink, until the next Synchronize call. It never
// triggers Shrink2x.
func (t *Table) TryDetachNoShrink(hash uint64, pred func(*NodeHeader) bool) *NodeHeader {
	ba := t.buckets.Load()
	b := &ba.buckets[ba.index(hash)]

	prev := &b.head
	for n := prev.Load(); n != nil; n = n.next.Load() {
		if n.Hash == hash && pred(n) {
			prev.Store(n.next.Load())
			t.size.Add(-1)
			return n
		}
		prev = &n.next
	}
	return nil
}

// TryDetachAutoShrink is TryDetachNoShrink followed by an automatic
// Shrink2x when the load factor has fallen below ShrinkFactor (and the
// table holds more than shrinkFloor elements). alreadySynced reports
// whether that shrink already performed an RCU synchronization, sparing
// the caller a redundant one before reclaiming the detached node.
func (t *Table) TryDetachAutoShrink(hash uint64, pred func(*NodeHeader) bool) (node *NodeHeader, alreadySynced bool) {
	n := t.TryDetachNoShrink(hash, pred)
	if n == nil {
		return nil, false
	}
	return n, t.shrinkIfNecessary()
}

// TryDetachAndSynchronize detaches the matching node and guarantees at
// least one RCU synchronization has completed before it returns, so the
// caller may immediately reclaim the node.
func (t *Table) TryDetachAndSynchronize(hash uint64, pred func(*NodeHeader) bool) *NodeHeader {
	n, synced := t.TryDetachAutoShrink(hash, pred)
	if n == nil {
		return nil
	}
	if !synced {
		t.zone.Synchronize()
	}
	return n
}

// Synchronize delegates to the table's RCU zone.
func (t *Table) Synchronize() {
	t.zone.Synchronize()
	level.Debug(t.logger).Log("msg", "synchronize", "size", t.Len(), "buckets", t.NumBuckets())
}

func (t *Table) expandIfNecessary() {
	size := float64(t.size.Load())
	n := float64(t.buckets.Load().n())
	if size > t.expandFactor*n {
		t.Expand2x()
	}
}

// Stats walks every bucket's chain and reports the table's current shape:
// bucket count, element count, empty bucket count, longest chain, and a
// histogram of chain length to bucket count. It is the queryable
// replacement for a debug dump over the bucket array, intended for
// diagnostics and tests rather than the hot path.
func (t *Table) Stats() Stats {
	ba := t.buckets.Load()
	s := Stats{
		NumBuckets:           int(ba.n()),
		Len:                  t.Len(),
		ChainLengthHistogram: make(map[int]int),
	}
	for i := range ba.buckets {
		length := 0
		for n := ba.buckets[i].head.Load(); n != nil; n = n.next.Load() {
			length++
		}
		if length == 0 {
			s.EmptyBuckets++
		}
		if length > s.MaxChainLength {
			s.MaxChainLength = length
		}
		s.ChainLengthHistogram[length]++
	}
	return s
}

func (t *Table) shrinkIfNecessary() bool {
	size := t.size.Load()
	n := float64(t.buckets.Load().n())
	if float64(size) < t.shrinkFactor*n && size > shrinkFloor {
		return t.Shrink2x()
	}
	return false
}
