package index

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/weftsearch/weft/index/codec"
)

// segmentWrapper owns one open segment's backing file handle and parsed
// directory, reference-counted so the last snapshot referencing it closes
// the handle, mirroring bluge's closeOnLastRefCounter pattern used by
// segmentSnapshot/segmentWrapper in index/segment.go.
type segmentWrapper struct {
	id     uint64
	reader IndexReaderAt
	seg    *codec.Segment

	refs atomic.Int64

	dictCacheMu sync.Mutex
	dictCache   map[string]*codec.TermDictionary
}

func openSegmentWrapper(id uint64, r IndexReaderAt) (*segmentWrapper, error) {
	buf := make([]byte, r.Size())
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("index: reading segment %d: %w", id, err)
	}
	seg, err := codec.Open(buf)
	if err != nil {
		return nil, fmt.Errorf("index: parsing segment %d: %w", id, err)
	}
	w := &segmentWrapper{
		id:        id,
		reader:    r,
		seg:       seg,
		dictCache: make(map[string]*codec.TermDictionary),
	}
	w.refs.Store(1)
	return w, nil
}

func (w *segmentWrapper) addRef() { w.refs.Inc() }

func (w *segmentWrapper) decRef() error {
	if w.refs.Dec() == 0 {
		return w.reader.Close()
	}
	return nil
}

// Count returns the total number of documents the segment was built with,
// ignoring deletions.
func (w *segmentWrapper) Count() uint64 { return w.seg.NumDocs }

// Fields returns every field name with a section in this segment.
func (w *segmentWrapper) Fields() []string { return w.seg.Order }

// Dictionary returns (and caches) the parsed term dictionary for field,
// or nil if the segment has no section for it.
func (w *segmentWrapper) Dictionary(field string) (*codec.TermDictionary, error) {
	w.dictCacheMu.Lock()
	defer w.dictCacheMu.Unlock()
	if d, ok := w.dictCache[field]; ok {
		return d, nil
	}
	section, ok := w.seg.Sections[field]
	if !ok {
		return nil, nil
	}
	d, err := codec.OpenTermDictionary(field, section.Dict)
	if err != nil {
		return nil, err
	}
	w.dictCache[field] = d
	return d, nil
}

// PostingsList opens the posting list at a given offset within field's
// postings blob, as returned by a TermDictionary lookup.
func (w *segmentWrapper) PostingsList(field string, offset uint64) (*codec.PostingsList, error) {
	section, ok := w.seg.Sections[field]
	if !ok {
		return nil, fmt.Errorf("index: no such field %q in segment %d", field, w.id)
	}
	if offset > uint64(len(section.Postings)) {
		return nil, fmt.Errorf("index: postings offset %d out of range for field %q", offset, field)
	}
	return codec.OpenPostingsList(section.Postings[offset:])
}

// Column opens field's doc-values column, or nil if the field has none.
func (w *segmentWrapper) Column(field string) (*codec.Column, error) {
	section, ok := w.seg.Sections[field]
	if !ok || section.Column == nil {
		return nil, nil
	}
	return codec.OpenColumn(section.Column)
}

// StoredFields opens the segment's stored-fields reader.
func (w *segmentWrapper) StoredFields() (*codec.StoredFields, error) {
	return codec.OpenStoredFields(w.seg.Stored)
}

// Vectors opens the segment's per-document forward-vector reader (spec
// §4.2's optional Vectors component), used by Searcher.KeyTerms and the
// vector-based phrase matcher.
func (w *segmentWrapper) Vectors() (*codec.Vectors, error) {
	return codec.OpenVectors(w.seg.Vectors)
}

// FieldLengthStats returns this segment's contribution to field's
// collection-wide length aggregate, or (0, 0) if the segment has no
// section for field.
func (w *segmentWrapper) FieldLengthStats(field string) (sum, docs uint64) {
	section, ok := w.seg.Sections[field]
	if !ok {
		return 0, 0
	}
	return section.LengthSum, section.LengthDocs
}

// Size estimates the open segment's byte size; the writer's merge planning
// uses it as the segment's LiveSize.
func (w *segmentWrapper) Size() int {
	return len(w.seg.Stored) + int(w.reader.Size())
}
