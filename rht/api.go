package rht

import (
	"fmt"
	"unsafe"

	"github.com/go-kit/log"

	"github.com/longpractice/Relativistic-Hash-Table/internal/rcu"
	"github.com/longpractice/Relativistic-Hash-Table/internal/rhtable"
)

// NodeHeader is the intrusive chain link a caller embeds in its own
// record. See package doc for the ownership contract.
type NodeHeader = rhtable.NodeHeader

// Token identifies the RCU epoch a reader critical section was attributed
// to; it must be passed from ReaderEnter to the matching ReaderExit.
type Token = rcu.Token

// Config configures a Table at construction. Zero-valued fields fall back
// to DefaultConfig's values.
type Config struct {
	NrBuckets                          int
	NrRCUBucketsForUnregisteredThreads int
	ExpandFactor                       float64
	ShrinkFactor                       float64
	Logger                             log.Logger
}

// DefaultConfig returns the documented defaults: 64 initial buckets, 128
// hashed buckets for unregistered readers, expand at a 1.1 load factor,
// shrink at a 0.25 load factor, no-op logging.
func DefaultConfig() Config {
	d := rhtable.DefaultConfig()
	return Config{
		NrBuckets:                          d.NrBuckets,
		NrRCUBucketsForUnregisteredThreads: d.NrRCUBucketsForUnregisteredThreads,
		ExpandFactor:                       d.ExpandFactor,
		ShrinkFactor:                       d.ShrinkFactor,
		Logger:                             d.Logger,
	}
}

// ConfigError reports a Config field that cannot be honored. NrBuckets and
// NrRCUBucketsForUnregisteredThreads are always roundable to a power of
// two and never fail; ExpandFactor/ShrinkFactor must not be negative
// (zero means unset and falls back to the default), and ShrinkFactor must
// be below ExpandFactor when both are set.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rht: invalid Config.%s: %s", e.Field, e.Reason)
}

func validate(cfg Config) error {
	if cfg.ExpandFactor < 0 {
		return &ConfigError{Field: "ExpandFactor", Reason: "must not be negative"}
	}
	if cfg.ShrinkFactor < 0 {
		return &ConfigError{Field: "ShrinkFactor", Reason: "must not be negative"}
	}
	if cfg.ExpandFactor > 0 && cfg.ShrinkFactor > 0 && cfg.ShrinkFactor >= cfg.ExpandFactor {
		return &ConfigError{Field: "ShrinkFactor", Reason: "must be smaller than ExpandFactor"}
	}
	return nil
}

// Table is a relativistic, RCU-based concurrent hash table. All mutating
// methods (TryInsert, InsertNoDup, the TryDetach family, Expand2x,
// Shrink2x, Synchronize) must be called from a single externally
// serialized writer. Find and the ReaderEnter/ReaderExit pair are safe
// for any number of concurrent callers, including callers concurrent
// with the writer.
type Table struct {
	core *rhtable.Table
}

// New constructs a Table from cfg, returning a *ConfigError if cfg holds
// an unsatisfiable combination of factors. Unset fields fall back to
// DefaultConfig's values, so the zero Config is always valid.
func New(cfg Config) (*Table, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return &Table{core: rhtable.New(rhtable.Config{
		NrBuckets:                          cfg.NrBuckets,
		NrRCUBucketsForUnregisteredThreads: cfg.NrRCUBucketsForUnregisteredThreads,
		ExpandFactor:                       cfg.ExpandFactor,
		ShrinkFactor:                       cfg.ShrinkFactor,
		Logger:                             cfg.Logger,
	})}, nil
}

// NewDefault constructs a Table with DefaultConfig, which always validates.
func NewDefault() *Table {
	t, err := New(DefaultConfig())
	if err != nil {
		panic(fmt.Sprintf("rht: DefaultConfig unexpectedly invalid: %v", err))
	}
	return t
}

// Find performs a lock-free chain walk for the first node whose hash
// equals the given hash and for which eq returns true. Must be called
// from within a reader critical section (see EnterRead or
// ReaderEnter/ReaderExit). Returns nil if no such node exists.
func (t *Table) Find(hash uint64, eq func(*NodeHeader) bool) *NodeHeader {
	return t.core.Find(hash, eq)
}

// TryInsert inserts n under hash unless eq reports an existing duplicate,
// in which case it returns false without modifying the table. On success
// it triggers Expand2x automatically once the load factor exceeds
// Config.ExpandFactor.
func (t *Table) TryInsert(n *NodeHeader, hash uint64, eq func(a, b *NodeHeader) bool) bool {
	return t.core.TryInsert(n, hash, eq)
}

// InsertNoDup prepends n unconditionally; the caller asserts no duplicate
// exists. It never triggers Expand2x.
func (t *Table) InsertNoDup(n *NodeHeader, hash uint64) {
	t.core.InsertNoDup(n, hash)
}

// TryDetachNoShrink unlinks and returns the first node under hash for
// which pred returns true, or nil if none matches. It does not
// synchronize and never triggers Shrink2x: the caller must not reclaim
// the returned node until a subsequent Synchronize (or
// TryDetachAndSynchronize) call completes.
func (t *Table) TryDetachNoShrink(hash uint64, pred func(*NodeHeader) bool) *NodeHeader {
	return t.core.TryDetachNoShrink(hash, pred)
}

// TryDetachAutoShrink is TryDetachNoShrink followed by an automatic
// Shrink2x once the load factor falls below Config.ShrinkFactor and the
// table still holds more than 128 elements. alreadySynced reports whether that shrink already performed an RCU
// synchronization, sparing the caller a redundant one before reclaiming
// node.
func (t *Table) TryDetachAutoShrink(hash uint64, pred func(*NodeHeader) bool) (node *NodeHeader, alreadySynced bool) {
	return t.core.TryDetachAutoShrink(hash, pred)
}

// TryDetachAndSynchronize detaches the matching node and guarantees an
// RCU grace period has elapsed before returning, so the caller may
// immediately reclaim it.
func (t *Table) TryDetachAndSynchronize(hash uint64, pred func(*NodeHeader) bool) *NodeHeader {
	return t.core.TryDetachAndSynchronize(hash, pred)
}

// Expand2x doubles the bucket count via the unzip protocol.
func (t *Table) Expand2x() {
	t.core.Expand2x()
}

// Shrink2x halves the bucket count via chain splicing. Returns false,
// touching nothing, if the table is already at its minimum bucket count
// of 1. Shrinking from 2 buckets to 1 is allowed; at 1 bucket every key
// shares bucket 0.
func (t *Table) Shrink2x() bool {
	return t.core.Shrink2x()
}

// Synchronize blocks until every reader critical section open at the
// time of the call has closed.
func (t *Table) Synchronize() {
	t.core.Synchronize()
}

// Len returns the advisory element count.
func (t *Table) Len() int {
	return t.core.Len()
}

// NumBuckets returns the current bucket count.
func (t *Table) NumBuckets() int {
	return t.core.NumBuckets()
}

// TryRegisterReader reserves one of the process's contention-free reader
// slots for the calling goroutine. Long-lived reader goroutines should
// register once and reuse the returned handle across every
// ReaderEnter/ReaderExit pair; short-lived or numerous readers can pass a
// nil handle throughout and fall back to the shared hashed bucket pool.
func (t *Table) TryRegisterReader() (*rcu.ReaderHandle, bool) {
	return rcu.TryRegisterReader()
}

// ReaderEnter opens a reader critical section and returns a Token that
// must be handed back to the matching ReaderExit. h may be nil.
func (t *Table) ReaderEnter(h *rcu.ReaderHandle) Token {
	return t.core.Zone().ReaderEnter(h)
}

// ReaderExit closes the critical section opened by the matching
// ReaderEnter call.
func (t *Table) ReaderExit(h *rcu.ReaderHandle, tok Token) {
	t.core.Zone().ReaderExit(h, tok)
}

// ReadSession is a RAII-style wrapper bracketing a reader critical
// section, for callers that prefer defer sess.Exit() over manually
// pairing ReaderEnter/ReaderExit calls.
type ReadSession struct {
	t   *Table
	h   *rcu.ReaderHandle
	tok Token
}

// EnterRead opens a reader critical section using h (which may be nil)
// and returns a session that must be closed with Exit.
func (t *Table) EnterRead(h *rcu.ReaderHandle) *ReadSession {
	return &ReadSession{t: t, h: h, tok: t.ReaderEnter(h)}
}

// Exit closes the reader critical section opened by EnterRead.
func (s *ReadSession) Exit() {
	s.t.ReaderExit(s.h, s.tok)
}

// EntryOf recovers a pointer to the enclosing entry of type T from one of
// its embedded NodeHeader fields, given that field's byte offset within
// T. Go has no pointer-to-member arithmetic, so the offset is computed
// once by the caller via unsafe.Offsetof and reused on every call; this
// is the same offset trick the original C++ library performs with
// offsetof/CONTAINING_RECORD-style macros.
//
//	type widget struct {
//		hdr rht.NodeHeader
//		id  int
//	}
//	var widgetHdrOffset = unsafe.Offsetof(widget{}.hdr)
//	w := rht.EntryOf[widget](node, widgetHdrOffset)
func EntryOf[T any](n *NodeHeader, headerOffset uintptr) *T {
	if n == nil {
		return nil
	}
	return (*T)(unsafe.Pointer(uintptr(unsafe.Pointer(n)) - headerOffset))
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

// Stats computes a snapshot of the table's bucket distribution. It is
// intended for diagnostics and tests, not the hot path: it walks every
// bucket's full chain without any reader-side synchronization, so it must
// either be called by the single writer or bracketed like any other
// reader (EnterRead/ReaderEnter).
func (t *Table) Stats() Stats {
	s := t.core.Stats()
	return Stats{
		NumBuckets:           s.NumBuckets,
		Len:                  s.Len,
		EmptyBuckets:         s.EmptyBuckets,
		MaxChainLength:       s.MaxChainLength,
		ChainLengthHistogram: s.ChainLengthHistogram,
	}
}
