package weft

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/weftsearch/weft/analysis"
	"github.com/weftsearch/weft/index"
	"github.com/weftsearch/weft/search"
	"github.com/weftsearch/weft/search/searcher"
	"github.com/weftsearch/weft/search/similarity"
)

// Writer is the single mutation point against an Index (spec §6's
// Index.writer()): AddDocument/UpdateDocument/DeleteByTerm/DeleteByQuery/
// Group buffer changes against the writer's own current snapshot, and
// Commit publishes them atomically as a new generation.
type Writer struct {
	iw       *index.Writer
	analyzer analysis.Analyzer
}

func newWriter(iw *index.Writer, analyzer analysis.Analyzer) *Writer {
	return &Writer{iw: iw, analyzer: analyzer}
}

// Existed reports whether a committed generation was already present when
// this Writer was opened.
func (w *Writer) Existed() bool { return w.iw.Existed() }

// convertField lowers a root Field into the index package's
// already-analyzed shape. A field marked FieldIndexed but carrying no
// TokenStream of its own (a plain NewTextField) falls back to w.analyzer,
// matching spec §1's "tokenization is an external collaborator; the core
// only consumes the resulting stream."
func (w *Writer) convertField(f Field) index.IndexableField {
	opts := f.Options()
	var tokens analysis.TokenStream
	if opts&FieldIndexed != 0 {
		tokens = f.Analyze()
		if tokens == nil {
			tokens = w.analyzer.Analyze(f.Value())
		}
	}
	out := index.IndexableField{
		Name:    f.Name(),
		Options: uint8(opts),
		Boost:   f.Boost(),
		Tokens:  tokens,
		Value:   f.Value(),
	}
	if opts&FieldSortable != 0 {
		out.SortValue = f.Value()
	}
	return out
}

// convertDocument analyzes every field of doc, fanned out across
// w.iw.AnalysisWorkers() goroutines when doc carries enough fields to make
// that worthwhile (grounded on bluge's Config.NumAnalysisWorkers channel
// pool in index/writer.go; analyzing a field is pure and independent of
// every other field on the same document, so there is no ordering to
// preserve beyond writing each result back to its own slot).
func (w *Writer) convertDocument(doc *Document) index.IndexableDocument {
	fields := doc.Fields()
	out := index.IndexableDocument{Fields: make([]index.IndexableField, len(fields))}

	workers := w.iw.AnalysisWorkers()
	if workers <= 1 || len(fields) < 2 {
		for i, f := range fields {
			out.Fields[i] = w.convertField(f)
		}
		return out
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				out.Fields[idx] = w.convertField(fields[idx])
			}
		}()
	}
	for i := range fields {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out
}

// AddDocument buffers doc for indexing; it takes effect only once Commit
// succeeds (spec §4.5's add).
func (w *Writer) AddDocument(doc *Document) error {
	if err := w.iw.AddDocument(w.convertDocument(doc)); err != nil {
		return fmt.Errorf("weft: %w: %v", ErrIndexing, err)
	}
	return nil
}

// uniqueField returns the first field on doc marked FieldUnique, the
// identity term UpdateDocument resolves conflicts against (spec §3's
// unique flag; a document should carry at most one).
func uniqueField(doc *Document) (Field, bool) {
	for _, f := range doc.Fields() {
		if f.Options()&FieldUnique != 0 {
			return f, true
		}
	}
	return nil, false
}

// UpdateDocument replaces any existing live document sharing doc's unique
// field value with doc, atomically within the next Commit (spec §4.5:
// "Update: delete any document whose unique field matches, then add").
// doc must carry exactly one field built with WithUnique.
func (w *Writer) UpdateDocument(doc *Document) error {
	uf, ok := uniqueField(doc)
	if !ok {
		return fmt.Errorf("weft: %w: UpdateDocument requires a field built with WithUnique", ErrQueryError)
	}
	if err := w.DeleteByTerm(uf.Name(), string(uf.Value())); err != nil {
		return err
	}
	return w.AddDocument(doc)
}

// snapshotReader wraps the writer's own current (uncommitted-deletes-
// aside) snapshot as a Reader, so DeleteByQuery can run an ordinary Query
// against it without needing a second open Reader.
func (w *Writer) snapshotReader() *Reader {
	ir := index.NewReader(w.iw.Snapshot(), w.iw.Snapshot)
	return newReader(ir, nil)
}

// DeleteByTerm deletes every live document containing term in field (spec
// §4.5's delete-by-term), expanded to whole structural groups per
// DeleteByQuery.
func (w *Writer) DeleteByTerm(field, term string) error {
	return w.DeleteByQuery(NewTermQuery(field, term))
}

// DeleteByQuery deletes every live document q matches (spec §4.5's
// delete-by-query). When a matched document is part of a structural group
// (added via Group), the entire contiguous parent+children block is
// deleted atomically, never a partial group (DESIGN.md's Open Question
// decision): a group's documents only make sense together, so a delete
// that kept half of one would leave a NestedChildren query walking into a
// parent-less orphan range.
func (w *Writer) DeleteByQuery(q Query) error {
	r := w.snapshotReader()
	defer r.Close()

	matches, err := w.matchedGlobalDocs(r, q)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}

	toDelete, err := w.expandToGroups(r, matches)
	if err != nil {
		return err
	}
	for _, d := range toDelete {
		w.iw.DeleteDocument(d)
	}
	return nil
}

// matchedGlobalDocs runs q against every live segment of r, unscored and
// unlimited, returning every matching document's global doc number.
func (w *Writer) matchedGlobalDocs(r *Reader, q Query) ([]uint64, error) {
	segReaders := r.ir.SegmentAdapters(nil)
	var out []uint64
	ctx := search.NewContext(context.Background())
	for i, sr := range segReaders {
		base := r.ir.SegmentBase(i)
		m, err := q.Searcher(sr, similarity.NewBM25F(), search.SearcherOptions{})
		if err != nil {
			return nil, err
		}
		dm, err := m.Next(ctx)
		for dm != nil && err == nil {
			out = append(out, dm.Number+base)
			dm, err = m.Next(ctx)
		}
		m.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// expandToGroups widens matched global doc numbers to cover every document
// in the structural group (parent + contiguous children, spec §4.9) any of
// them belongs to, deduplicated. A document outside any group expands to
// itself.
func (w *Writer) expandToGroups(r *Reader, matched []uint64) ([]uint64, error) {
	snap := r.ir.Snapshot()
	segParents := make(map[int][]uint64)
	seen := make(map[uint64]bool, len(matched))
	var out []uint64

	for _, doc := range matched {
		segIdx, local := snap.Localize(doc)
		parents, ok := segParents[segIdx]
		if !ok {
			seg := snap.Segments()[segIdx]
			col, err := seg.Column(searcher.GroupParentField)
			if err != nil {
				return nil, err
			}
			parents = segmentGroupParents(col)
			segParents[segIdx] = parents
		}
		base := snap.Offset(segIdx)
		lo, hi := groupRange(parents, uint64(local), seg0Size(snap, segIdx))
		for d := lo; d < hi; d++ {
			g := base + d
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func seg0Size(snap *index.IndexSnapshot, segIdx int) uint64 {
	return snap.Segments()[segIdx].FullSize()
}

// segmentGroupParents reads one segment's $group_parent doc-values column
// into a sorted local doc-number slice (nil column means no Group calls
// ever touched this segment).
func segmentGroupParents(col interface {
	Len() uint64
	Value(uint64) ([]byte, error)
}) []uint64 {
	if col == nil {
		return nil
	}
	n := col.Len()
	var parents []uint64
	for i := uint64(0); i < n; i++ {
		v, err := col.Value(i)
		if err == nil && len(v) > 0 && v[0] == 1 {
			parents = append(parents, i)
		}
	}
	return parents
}

// groupRange returns the [lo, hi) local doc-number block doc belongs to:
// its structural group's range if parents is non-empty and doc falls
// within one, otherwise the single-document range [doc, doc+1).
func groupRange(parents []uint64, doc uint64, segSize uint64) (uint64, uint64) {
	if len(parents) == 0 {
		return doc, doc + 1
	}
	i := sort.Search(len(parents), func(i int) bool { return parents[i] > doc })
	if i == 0 {
		return doc, doc + 1
	}
	lo := parents[i-1]
	hi := segSize
	if i < len(parents) {
		hi = parents[i]
	}
	return lo, hi
}

// Group buffers parent and every child as one structural group (spec
// §4.9's Nested queries precondition: "added as a group ... in contiguous
// docnums"). Every document in the group is marked via the reserved
// $group_parent doc-values column so NestedParent/NestedChildren queries
// can later walk the block. Children inherit no fields from parent; each
// Document still carries whatever fields the caller gave it.
func (w *Writer) Group(parent *Document, children ...*Document) error {
	parentDoc := NewDocument()
	for _, f := range parent.Fields() {
		parentDoc.AddField(f)
	}
	parentDoc.AddField(groupParentMarkerField(true))
	if err := w.AddDocument(parentDoc); err != nil {
		return err
	}
	for _, c := range children {
		childDoc := NewDocument()
		for _, f := range c.Fields() {
			childDoc.AddField(f)
		}
		childDoc.AddField(groupParentMarkerField(false))
		if err := w.AddDocument(childDoc); err != nil {
			return err
		}
	}
	return nil
}

// MergeMode selects how aggressively Commit merges segments.
type MergeMode = index.MergeMode

const (
	// MergeAuto runs the configured tiered merge policy (the default).
	MergeAuto = index.MergeAuto
	// MergeNone skips merge planning.
	MergeNone = index.MergeNone
	// MergeForce merges every live segment down to one.
	MergeForce = index.MergeForce
)

// Commit flushes buffered documents and pending deletions into a new
// generation (spec §4.5/§5's commit protocol).
func (w *Writer) Commit(mode MergeMode) error {
	return w.iw.Commit(mode)
}

// Cancel discards any buffered documents and pending deletions without
// committing them.
func (w *Writer) Cancel() { w.iw.Cancel() }

// Reader opens a point-in-time Reader over this Writer's own most recent
// commit (spec §5's "a Writer can also hand out a Reader over its own
// most recent commit"), refreshed via the Writer rather than re-reading
// the TOC from disk.
func (w *Writer) Reader() *Reader {
	return w.snapshotReader()
}

// Close releases the writer's advisory lock. Any unflushed buffered
// documents are discarded.
func (w *Writer) Close() error { return w.iw.Close() }
