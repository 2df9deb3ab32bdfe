package index

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/weftsearch/weft/index/codec"
	"github.com/weftsearch/weft/search"
)

// Reader is the read-side handle over one IndexSnapshot (C4): it answers
// term lookups, postings iteration, and stored-field/doc-values access
// across every live segment in the snapshot, rebasing segment-local doc
// numbers into one flat, strictly ascending global doc-number space
// exactly as bluge's Snapshot.segmentIndexAndLocalDocNumFromGlobal does.
// A Reader is a snapshot: it keeps returning the same answers no matter
// how many commits happen afterward, until Refresh is called (spec §5).
type Reader struct {
	idx  *indexHandle
	snap *IndexSnapshot
}

// indexHandle is the minimal surface Reader needs from the top-level
// Index (defined in the root weft package) to take a new snapshot on
// Refresh, without Reader importing the root package (index is a leaf
// package; weft imports index, never the reverse).
type indexHandle struct {
	currentSnapshot func() *IndexSnapshot
}

// NewReader wraps snap as a Reader. The caller (the root weft package's
// Index.Reader/Writer.Reader) retains ownership of taking/releasing
// snap's reference.
func NewReader(snap *IndexSnapshot, refresh func() *IndexSnapshot) *Reader {
	return &Reader{idx: &indexHandle{currentSnapshot: refresh}, snap: snap}
}

// Snapshot returns the IndexSnapshot this Reader is pinned to.
func (r *Reader) Snapshot() *IndexSnapshot { return r.snap }

// Close releases this Reader's hold on its snapshot's segments.
func (r *Reader) Close() error { return r.snap.Close() }

// Refresh returns a new Reader pinned to the index's current snapshot,
// reusing any segment handles still referenced by both the old and new
// snapshot (spec §5: "refresh() ... reuses any still-referenced segment
// handles" — automatic, since segments are reference-counted and a
// segment present in both snapshots simply carries an extra ref rather
// than being reopened).
func (r *Reader) Refresh() (*Reader, error) {
	if r.idx.currentSnapshot == nil {
		return nil, fmt.Errorf("index: reader has no refresh source")
	}
	snap := r.idx.currentSnapshot()
	snap.addRef()
	return &Reader{idx: r.idx, snap: snap}, nil
}

// DocCount returns the total number of live documents across the
// snapshot.
func (r *Reader) DocCount() uint64 { return r.snap.LiveCount() }

// HasDeletions reports whether any segment in the snapshot carries a
// non-empty deleted-docs bitmap.
func (r *Reader) HasDeletions() bool {
	for _, seg := range r.snap.Segments() {
		if seg.Deleted() != nil && !seg.Deleted().IsEmpty() {
			return true
		}
	}
	return false
}

// IsDeleted reports whether the global doc number refers to a document
// marked deleted (or out of range).
func (r *Reader) IsDeleted(globalDoc uint64) bool {
	if globalDoc >= r.snap.TotalDocCount() {
		return true
	}
	segIdx, local := r.snap.Localize(globalDoc)
	return !r.snap.Segments()[segIdx].IsLive(local)
}

// AllDocIDs returns every live global doc number in ascending order (spec
// §4.4's all_doc_ids), filtered by each segment's live-docs bitmap.
func (r *Reader) AllDocIDs() []uint64 {
	var out []uint64
	for i, seg := range r.snap.Segments() {
		base := r.snap.Offset(i)
		live := seg.DocNumbersLive()
		it := live.Iterator()
		for it.HasNext() {
			out = append(out, base+uint64(it.Next()))
		}
	}
	return out
}

// StoredFields returns docNum's stored field values.
func (r *Reader) StoredFields(globalDoc uint64) ([]codec.StoredField, error) {
	segIdx, local := r.snap.Localize(globalDoc)
	seg := r.snap.Segments()[segIdx]
	sf, err := seg.StoredFields()
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, nil
	}
	return sf.Document(uint64(local))
}

// VectorTerms returns globalDoc's forward vector (spec §4.2's optional
// Vectors component), or nil if the document has none — either because no
// field of it was indexed with FieldVector, or the segment predates this
// document having any indexed content.
func (r *Reader) VectorTerms(globalDoc uint64) ([]codec.VectorTerm, error) {
	segIdx, local := r.snap.Localize(globalDoc)
	seg := r.snap.Segments()[segIdx]
	vecs, err := seg.Vectors()
	if err != nil {
		return nil, err
	}
	terms, ok, err := vecs.Document(uint64(local))
	if err != nil || !ok {
		return nil, err
	}
	return terms, nil
}

// TermDocFreq returns how many documents across the whole snapshot
// contain term in field, summing each segment's postings-list document
// frequency (documents deleted after their segment was written still
// count) — the collection-wide statistic Searcher.CorrectQuery uses to
// decide a term is absent (df == 0) and Searcher.KeyTerms uses for its
// idf weighting (spec §4.8 reuses the same figure BM25F computes from).
func (r *Reader) TermDocFreq(field, term string) (uint64, error) {
	var total uint64
	for _, seg := range r.snap.Segments() {
		dict, err := seg.Dictionary(field)
		if err != nil {
			return 0, err
		}
		if dict == nil {
			continue
		}
		offset, found, err := dict.Lookup([]byte(term))
		if err != nil {
			return 0, err
		}
		if !found {
			continue
		}
		pl, err := seg.PostingsList(field, offset)
		if err != nil {
			return 0, err
		}
		total += pl.DocFreq()
	}
	return total, nil
}

// DocFieldLength returns docNum's indexed length for field, or (0, false)
// if the document carries no value for it. It is an O(1) lookup via the
// field's doc-values-backed length column when present, falling back to
// scanning the field's postings only if the segment predates a length
// column (never true for segments this writer produces, kept for codec
// forward-compatibility).
func (r *Reader) DocFieldLength(globalDoc uint64, field string) (uint32, bool) {
	segIdx, local := r.snap.Localize(globalDoc)
	seg := r.snap.Segments()[segIdx]
	col, err := seg.Column(field)
	if err != nil || col == nil {
		return 0, false
	}
	raw, err := col.Value(uint64(local))
	if err != nil {
		return 0, false
	}
	return decodeLengthBytes(raw), true
}

// ColumnReader returns random access to field's doc-values column across
// the whole snapshot, rebased to global doc numbers.
func (r *Reader) ColumnReader(field string) *MultiColumn {
	cols := make([]*codec.Column, len(r.snap.Segments()))
	for i, seg := range r.snap.Segments() {
		c, err := seg.Column(field)
		if err == nil {
			cols[i] = c
		}
	}
	return &MultiColumn{snap: r.snap, cols: cols}
}

// MultiColumn is a random-access, rebased view of one field's doc-values
// column across every segment in a snapshot (spec §4.4's column_reader).
type MultiColumn struct {
	snap *IndexSnapshot
	cols []*codec.Column
}

// Value returns globalDoc's raw sortable bytes for the column, or
// (nil, false) if the document or segment has no value.
func (m *MultiColumn) Value(globalDoc uint64) ([]byte, bool) {
	segIdx, local := m.snap.Localize(globalDoc)
	col := m.cols[segIdx]
	if col == nil {
		return nil, false
	}
	v, err := col.Value(uint64(local))
	if err != nil {
		return nil, false
	}
	return v, true
}

// segmentReaderAdapter presents one segment of a snapshot, rebased by
// base, as a search.Reader, the interface the matcher-building layer
// consumes (spec §4.4's SegmentReader). FieldStats is shared across every
// segment adapter built for the same query so BM25F's idf uses one
// collection-wide figure, not a per-segment one.
type segmentReaderAdapter struct {
	seg   *SegmentSnapshot
	base  uint64
	stats map[string]search.FieldStats
}

func (a *segmentReaderAdapter) Dictionary(field string) (*codec.TermDictionary, error) {
	return a.seg.Dictionary(field)
}

func (a *segmentReaderAdapter) PostingsList(field string, offset uint64) (*codec.PostingsList, error) {
	return a.seg.PostingsList(field, offset)
}

func (a *segmentReaderAdapter) Column(field string) (*codec.Column, error) {
	return a.seg.Column(field)
}

func (a *segmentReaderAdapter) StoredFields() (*codec.StoredFields, error) {
	return a.seg.StoredFields()
}

func (a *segmentReaderAdapter) Vectors() (*codec.Vectors, error) {
	return a.seg.Vectors()
}

func (a *segmentReaderAdapter) DocCount() uint64 {
	return a.stats[""].DocCount
}

func (a *segmentReaderAdapter) FieldStats(field string) search.FieldStats {
	return a.stats[field]
}

func (a *segmentReaderAdapter) Deleted() *roaring.Bitmap { return a.seg.Deleted() }

func (a *segmentReaderAdapter) FullSize() uint64 { return a.seg.FullSize() }

// FieldStats computes the collection-wide statistics (live document count
// and average field length) a Similarity needs for field, scanning every
// segment's precomputed length aggregates rather than any posting list.
func (r *Reader) FieldStats(field string) search.FieldStats {
	var sum, docs uint64
	for _, seg := range r.snap.Segments() {
		s, d := seg.FieldLengthStats(field)
		sum += s
		docs += d
	}
	avg := 0.0
	if docs > 0 {
		avg = float64(sum) / float64(docs)
	}
	return search.FieldStats{DocCount: r.snap.LiveCount(), AvgFieldLen: avg}
}

// SegmentAdapters returns one search.Reader per live segment, rebased to
// global doc numbers, sharing the snapshot-wide FieldStats for the given
// set of fields a query touches (computed once, not per segment).
func (r *Reader) SegmentAdapters(fields []string) []search.Reader {
	stats := make(map[string]search.FieldStats, len(fields)+1)
	stats[""] = search.FieldStats{DocCount: r.snap.LiveCount()}
	for _, f := range fields {
		stats[f] = r.FieldStats(f)
	}
	out := make([]search.Reader, len(r.snap.Segments()))
	for i, seg := range r.snap.Segments() {
		out[i] = &segmentReaderAdapter{seg: seg, base: r.snap.Offset(i), stats: stats}
	}
	return out
}

// SegmentBase returns the global doc-number base of the i'th segment in
// the snapshot, so a caller combining per-segment Searchers can rebase
// their doc numbers.
func (r *Reader) SegmentBase(i int) uint64 { return r.snap.Offset(i) }

// NumSegments returns the number of live segments in the snapshot.
func (r *Reader) NumSegments() int { return len(r.snap.Segments()) }

func decodeLengthBytes(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}
