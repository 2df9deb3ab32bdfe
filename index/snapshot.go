package index

import (
	"sync"

	"go.uber.org/atomic"
)

// IndexSnapshot is one immutable, point-in-time view across every live
// segment (C4), the unit a Reader actually holds: opening a Reader takes a
// ref on the Writer's current IndexSnapshot, so merges and flushes that
// happen afterward never change what that Reader sees (spec §5's "readers
// observe a frozen past snapshot").
type IndexSnapshot struct {
	generation uint64
	segments   []*SegmentSnapshot
	// offsets[i] is the global doc number of segment i's local doc 0,
	// rebasing segment-local numbers into one flat global doc-number
	// space, the same scheme bluge's postingsIterator uses via
	// snapshot.offsets (index/postings.go in the teacher).
	offsets []uint64
	total   uint64
	// schema is the generation's field schema, carried on the snapshot
	// (rather than only on the Writer that produced it) so a lock-free
	// OpenReader can report field names without ever opening a Writer
	// (spec §5: "Readers do not lock").
	schema []SchemaField

	refs atomic.Int64
	once sync.Once
}

// newIndexSnapshot builds an IndexSnapshot from an ordered segment list,
// computing doc-number offsets.
func newIndexSnapshot(generation uint64, segs []*SegmentSnapshot, schema []SchemaField) *IndexSnapshot {
	offsets := make([]uint64, len(segs))
	var total uint64
	for i, s := range segs {
		offsets[i] = total
		total += s.FullSize()
	}
	snap := &IndexSnapshot{generation: generation, segments: segs, offsets: offsets, total: total, schema: schema}
	snap.refs.Store(1)
	return snap
}

// Generation returns the TOC generation number this snapshot was built
// from, used for the out-of-date check on commit (spec §5).
func (s *IndexSnapshot) Generation() uint64 { return s.generation }

// Schema returns the field schema in force for this generation.
func (s *IndexSnapshot) Schema() []SchemaField { return s.schema }

// Segments returns every segment in this snapshot, in the order their doc
// numbers were rebased (ascending offset order).
func (s *IndexSnapshot) Segments() []*SegmentSnapshot { return s.segments }

// Offset returns the global doc number that segment index i's local doc 0
// maps to.
func (s *IndexSnapshot) Offset(i int) uint64 { return s.offsets[i] }

// TotalDocCount returns the total document count across all segments,
// including deleted ones (used to size global doc-number arrays).
func (s *IndexSnapshot) TotalDocCount() uint64 { return s.total }

// LiveCount returns the number of live (non-deleted) documents across the
// whole snapshot.
func (s *IndexSnapshot) LiveCount() uint64 {
	var n uint64
	for _, seg := range s.segments {
		n += seg.Count()
	}
	return n
}

// Localize converts a global doc number into its owning segment's index
// and local doc number, binary-searching the offsets table.
func (s *IndexSnapshot) Localize(globalDoc uint64) (segIdx int, localDoc uint32) {
	lo, hi := 0, len(s.offsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if s.offsets[mid] <= globalDoc {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, uint32(globalDoc - s.offsets[lo])
}

// addRef increments the snapshot's reference count; called whenever a
// Reader or another IndexSnapshot (during merge introduction) takes a
// hold on it.
func (s *IndexSnapshot) addRef() { s.refs.Inc() }

// Close releases one reference; once the count reaches zero every segment
// held exclusively by this snapshot is closed. Safe to call more than the
// matching addRef count would require only once, via sync.Once guarding
// the actual segment-close pass.
func (s *IndexSnapshot) Close() error {
	if s.refs.Dec() > 0 {
		return nil
	}
	var firstErr error
	s.once.Do(func() {
		for _, seg := range s.segments {
			if err := seg.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}
