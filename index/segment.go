package index

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/weftsearch/weft/index/codec"
)

// SegmentSnapshot pairs one immutable, on-disk segment with the live-docs
// bitmap in force for a particular reader snapshot (spec §4.4's
// copy-on-write deletion bitmaps), exactly shaped like bluge's
// segmentSnapshot in index/segment.go.
type SegmentSnapshot struct {
	id      uint64
	wrapper *segmentWrapper
	deleted *roaring.Bitmap // nil means nothing is deleted
	creator string          // "flush" or "merge", for diagnostics/logging
}

// ID returns the segment's globally unique identifier (spec §3).
func (s *SegmentSnapshot) ID() uint64 { return s.id }

// Deleted returns the bitmap of segment-local doc numbers no longer live,
// or nil if none are deleted.
func (s *SegmentSnapshot) Deleted() *roaring.Bitmap { return s.deleted }

// Count returns the number of live documents: total minus deleted.
func (s *SegmentSnapshot) Count() uint64 {
	n := s.wrapper.Count()
	if s.deleted != nil {
		n -= s.deleted.GetCardinality()
	}
	return n
}

// FullSize returns the segment's total document count, ignoring deletions.
func (s *SegmentSnapshot) FullSize() uint64 { return s.wrapper.Count() }

// DocNumbersLive returns a bitmap of every live segment-local doc number.
func (s *SegmentSnapshot) DocNumbersLive() *roaring.Bitmap {
	rv := roaring.New()
	rv.AddRange(0, s.wrapper.Count())
	if s.deleted != nil {
		rv.AndNot(s.deleted)
	}
	return rv
}

// IsLive reports whether segment-local doc number n is not in the deleted
// bitmap.
func (s *SegmentSnapshot) IsLive(n uint32) bool {
	return s.deleted == nil || !s.deleted.Contains(n)
}

// WithDeletions returns a new SegmentSnapshot sharing the same underlying
// segment but with an updated deleted bitmap, the copy-on-write step a
// Writer performs when a delete lands on a previously flushed segment
// (spec §5): the old SegmentSnapshot, and any reader still holding it,
// is untouched.
func (s *SegmentSnapshot) WithDeletions(deleted *roaring.Bitmap) *SegmentSnapshot {
	s.wrapper.addRef()
	return &SegmentSnapshot{id: s.id, wrapper: s.wrapper, deleted: deleted, creator: s.creator}
}

// Close releases this snapshot's reference to the underlying segment file.
func (s *SegmentSnapshot) Close() error {
	return s.wrapper.decRef()
}

func (s *SegmentSnapshot) Fields() []string { return s.wrapper.Fields() }

func (s *SegmentSnapshot) Dictionary(field string) (*codec.TermDictionary, error) {
	return s.wrapper.Dictionary(field)
}

func (s *SegmentSnapshot) PostingsList(field string, offset uint64) (*codec.PostingsList, error) {
	return s.wrapper.PostingsList(field, offset)
}

func (s *SegmentSnapshot) Column(field string) (*codec.Column, error) {
	return s.wrapper.Column(field)
}

func (s *SegmentSnapshot) StoredFields() (*codec.StoredFields, error) {
	return s.wrapper.StoredFields()
}

// Vectors opens the segment's per-document forward-vector reader (spec
// §4.2's optional Vectors component).
func (s *SegmentSnapshot) Vectors() (*codec.Vectors, error) {
	return s.wrapper.Vectors()
}

// FieldLengthStats returns this segment's contribution to field's
// collection-wide average-length aggregate (spec §4.2's Lengths
// component).
func (s *SegmentSnapshot) FieldLengthStats(field string) (sum, docs uint64) {
	return s.wrapper.FieldLengthStats(field)
}

// Size estimates the segment's on-disk/in-memory footprint, used by the
// merge policy's size-tiering.
func (s *SegmentSnapshot) Size() int { return s.wrapper.Size() }

// Creator reports what produced this segment ("flush" or "merge"), for
// diagnostics and logging.
func (s *SegmentSnapshot) Creator() string { return s.creator }
