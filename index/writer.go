package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/weftsearch/weft/index/codec"
	"github.com/weftsearch/weft/index/mergeplan"
)

// ErrWriterClosed is returned by any Writer method called after Close.
var ErrWriterClosed = errors.New("index: writer is closed")

// Writer is the single mutation point against an index (C5): it buffers
// analyzed documents, flushes them into immutable segments, and commits new
// generations via the atomic TOC rename protocol, matching spec §5's
// single-writer/many-reader discipline. It is grounded on bluge's
// index/scorch.go writer loop, collapsed into one synchronous path per
// DESIGN.md's decision to skip bluge's async introducer/persister
// goroutines.
type Writer struct {
	mu  sync.Mutex
	dir Directory
	cfg Config
	lck Lock
	log *zap.Logger

	schema    []SchemaField
	schemaIdx map[string]int

	// usedSegmentIDs tracks every segment ID already on disk (live or not
	// yet swept) plus every ID newSegmentID has handed out this process,
	// so a freshly generated random ID is checked against it before use.
	usedSegmentIDs map[uint64]bool
	snapshot       *IndexSnapshot // one ref held on behalf of the writer

	// shards partitions buffered documents across cfg.SegmentsPerCommit
	// independent builders (round-robin by insertion order), each flushed
	// into its own segment at Commit and introduced together in the same
	// TOC generation — SPEC_FULL.md's supplemented multi-segment commit.
	// A document's membership in one shard or another has no bearing on
	// correctness: each flushed segment is fully self-contained, and
	// global doc numbers are assigned from the segment's position in the
	// TOC, not from insertion order.
	shards       []*pendingShard
	pendingCount int

	// pendingDeletes maps a live segment ID to the segment-local doc
	// numbers marked for deletion since the last commit; applied
	// copy-on-write when Commit runs (spec §5's "never mutates a
	// committed segment in place").
	pendingDeletes map[uint64]*roaring.Bitmap

	// existed records whether OpenWriter found a prior committed TOC,
	// letting the root package's OpenIndex distinguish "opened an
	// existing index" from "initialized a brand-new one" without
	// re-listing the directory itself.
	existed bool

	closed bool
}

// Existed reports whether a committed TOC was already present when this
// Writer was opened.
func (w *Writer) Existed() bool { return w.existed }

// newSegmentID draws a random 64-bit segment ID via gofrs/uuid (spec §3:
// "Segment ID is globally unique (e.g. random 64-bit)"), retrying against
// w.usedSegmentIDs on the astronomically unlikely collision.
func (w *Writer) newSegmentID() (uint64, error) {
	for attempt := 0; attempt < 16; attempt++ {
		u, err := uuid.NewV4()
		if err != nil {
			return 0, fmt.Errorf("index: generating segment id: %w", err)
		}
		id := binary.LittleEndian.Uint64(u.Bytes()[:8])
		if id == 0 || w.usedSegmentIDs[id] {
			continue
		}
		w.usedSegmentIDs[id] = true
		return id, nil
	}
	return 0, fmt.Errorf("index: could not allocate a unique segment id")
}

// AnalysisWorkers returns the configured analysis worker-pool size (spec's
// supplemented AnalysisWorkers feature), at least 1, for the root package's
// Writer to size its own field-analysis pool against.
func (w *Writer) AnalysisWorkers() int {
	if w.cfg.AnalysisWorkers > 1 {
		return w.cfg.AnalysisWorkers
	}
	return 1
}

// pendingShard buffers one shard's worth of documents into its own segment
// builder, with its own column-width declarations and backfill bookkeeping
// (a column only needs to stay dense within the single segment it ends up
// in, not across sibling shards).
type pendingShard struct {
	builder *codec.Builder
	count   int
	widths  map[string]int
}

// shardCount returns how many parallel segment builders Commit should flush
// into, at least one.
func (w *Writer) shardCount() int {
	if w.cfg.SegmentsPerCommit > 1 {
		return w.cfg.SegmentsPerCommit
	}
	return 1
}

// shardFor returns the pendingShard a newly buffered document should land
// in, round-robin by overall insertion order, creating it lazily.
func (w *Writer) shardFor(n int) *pendingShard {
	if w.shards == nil {
		w.shards = make([]*pendingShard, w.shardCount())
	}
	idx := n % len(w.shards)
	s := w.shards[idx]
	if s == nil {
		s = &pendingShard{builder: codec.NewBuilder(0), widths: make(map[string]int)}
		w.shards[idx] = s
	}
	return s
}

// OpenWriter opens (or creates) an index at cfg.DirectoryFunc's location,
// acquiring the single-writer advisory lock and loading the latest TOC, or
// starting a brand-new generation 0 if none exists.
func OpenWriter(cfg Config) (*Writer, error) {
	dir, err := cfg.DirectoryFunc()
	if err != nil {
		return nil, fmt.Errorf("index: opening directory: %w", err)
	}
	lck, err := dir.Lock()
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	existingSegIDs, err := dir.List(ItemKindSegment)
	if err != nil {
		lck.Unlock()
		return nil, err
	}
	used := make(map[uint64]bool, len(existingSegIDs))
	for _, id := range existingSegIDs {
		used[id] = true
	}

	w := &Writer{
		dir:            dir,
		cfg:            cfg,
		lck:            lck,
		log:            log,
		schemaIdx:      make(map[string]int),
		pendingDeletes: make(map[uint64]*roaring.Bitmap),
		usedSegmentIDs: used,
	}

	gen, exists, err := latestGeneration(dir)
	if err != nil {
		lck.Unlock()
		return nil, err
	}
	if !exists {
		w.snapshot = newIndexSnapshot(0, nil, nil)
		return w, nil
	}

	toc, err := readTOC(dir, gen)
	if err != nil {
		lck.Unlock()
		return nil, err
	}
	w.existed = true
	for _, f := range toc.Schema {
		w.schemaIdx[f.Name] = len(w.schema)
		w.schema = append(w.schema, f)
	}

	segs, err := openTOCSegments(dir, toc)
	if err != nil {
		lck.Unlock()
		return nil, err
	}
	w.snapshot = newIndexSnapshot(toc.Generation, segs, w.schema)
	return w, nil
}

// openTOCSegments opens every segment a TOC references, read-only. It
// takes a bare Directory rather than a *Writer so the lock-free OpenReader
// path (reader_open.go) can reuse it without acquiring the write lock
// (spec §5: "Readers do not lock").
func openTOCSegments(dir Directory, toc TOC) ([]*SegmentSnapshot, error) {
	segs := make([]*SegmentSnapshot, 0, len(toc.Segments))
	for _, ts := range toc.Segments {
		r, err := dir.Open(ItemKindSegment, ts.ID)
		if err != nil {
			return nil, fmt.Errorf("index: opening segment %d: %w", ts.ID, err)
		}
		wrap, err := openSegmentWrapper(ts.ID, r)
		if err != nil {
			return nil, err
		}
		deleted, err := decodeDeletedBitmap(ts.Deleted)
		if err != nil {
			return nil, err
		}
		segs = append(segs, &SegmentSnapshot{id: ts.ID, wrapper: wrap, deleted: deleted, creator: ts.Creator})
	}
	return segs, nil
}

// Generation returns the TOC generation the writer last committed (or
// loaded at open).
func (w *Writer) Generation() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot.Generation()
}

// Schema returns the field schema accumulated so far.
func (w *Writer) Schema() []SchemaField {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]SchemaField, len(w.schema))
	copy(out, w.schema)
	return out
}

// Snapshot returns a referenced handle on the writer's current committed
// IndexSnapshot, for building a Reader (spec §5's "a Writer can also hand
// out a Reader over its own most recent commit").
func (w *Writer) Snapshot() *IndexSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snapshot.addRef()
	return w.snapshot
}

func (w *Writer) mergeSchema(fields []IndexableField) {
	for _, f := range fields {
		if idx, ok := w.schemaIdx[f.Name]; ok {
			// Widen options with anything new seen on a later document;
			// boost/first-wins otherwise, matching how a schema is
			// usually only read from the first document of a given shape.
			w.schema[idx].Options |= f.Options
			continue
		}
		w.schemaIdx[f.Name] = len(w.schema)
		w.schema = append(w.schema, SchemaField{Name: f.Name, Options: f.Options, Boost: f.Boost})
	}
}

// AddDocument buffers doc into the writer's in-memory segment builder. It
// takes effect only once Commit succeeds.
func (w *Writer) AddDocument(doc IndexableDocument) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	s := w.shardFor(w.pendingCount)
	w.mergeSchema(doc.Fields)

	docNum := uint32(s.count)

	// First pass: total each indexed field's length across every
	// occurrence of that field name, so every posting for the field
	// carries the document's final length (BM25F's normalization needs
	// the whole field, not a running partial across repeated values).
	length := make(map[string]int)
	for _, f := range doc.Fields {
		if f.Options&optIndexed != 0 {
			length[f.Name] += len(f.Tokens)
		}
	}

	var stored []codec.StoredField
	var vectors []codec.VectorTerm
	touchedColumns := make(map[string]bool, len(doc.Fields))
	for _, f := range doc.Fields {
		if f.Options&optStored != 0 {
			stored = append(stored, codec.StoredField{Name: f.Name, Value: f.Value})
		}
		if f.Options&optSortable != 0 {
			width, declared := s.widths[f.Name]
			if !declared {
				width = len(f.SortValue)
				s.widths[f.Name] = width
				s.builder.SetColumnWidth(f.Name, width)
				// Every document flushed into this shard before this field
				// was first seen never called AddColumnValue for it;
				// backfill those rows now so the column stays dense
				// (doc-number-addressable) once this one is appended.
				for i := 0; i < s.count; i++ {
					s.builder.AddColumnMissing(f.Name)
				}
			}
			if len(f.SortValue) != width {
				return fmt.Errorf("index: field %q column width changed from %d to %d", f.Name, width, len(f.SortValue))
			}
			if err := s.builder.AddColumnValue(f.Name, f.SortValue); err != nil {
				return fmt.Errorf("index: %w", err)
			}
			touchedColumns[f.Name] = true
		}
		if f.Options&optIndexed != 0 && len(f.Tokens) > 0 {
			fieldLen := uint32(length[f.Name])
			// Group this field occurrence's tokens by term so repeated
			// terms within the same field value collapse into a single
			// posting carrying every position, rather than one posting
			// per occurrence.
			byTerm := make(map[string][]uint32, len(f.Tokens))
			weight := make(map[string]float64, len(f.Tokens))
			var order []string
			for _, tok := range f.Tokens {
				key := string(tok.Term)
				if _, ok := byTerm[key]; !ok {
					order = append(order, key)
				}
				byTerm[key] = append(byTerm[key], uint32(tok.Position))
				weight[key] += f.Boost * tok.Boost
			}
			for _, term := range order {
				positions := byTerm[term]
				s.builder.AddPosting(f.Name, []byte(term), codec.Posting{
					DocNum:    docNum,
					Freq:      uint32(len(positions)),
					Positions: positions,
					Weight:    float32(weight[term]),
					FieldLen:  fieldLen,
				})
				if f.Options&optVector != 0 {
					vectors = append(vectors, codec.VectorTerm{
						Field:     f.Name,
						Term:      []byte(term),
						Positions: append([]uint32(nil), positions...),
					})
				}
			}
		}
	}
	for field, n := range length {
		s.builder.AddFieldLength(field, uint32(n))
	}
	// Any column declared by an earlier document in this shard but absent
	// from this one still needs a placeholder row so every column stays
	// aligned doc-number-for-doc-number within the shard's own segment.
	for field := range s.widths {
		if !touchedColumns[field] {
			s.builder.AddColumnMissing(field)
		}
	}
	s.builder.AddVectors(uint64(docNum), vectors)
	s.builder.AddStored(stored)
	s.count++
	w.pendingCount++
	return nil
}

// DeleteDocument marks globalDoc (resolved against the writer's own current
// snapshot, not any reader's) as deleted, applied at the next Commit. It is
// the low-level primitive query-driven deletes (DeleteByTerm/DeleteByQuery
// in the root package) translate down to after running a search against the
// writer's own reader.
func (w *Writer) DeleteDocument(globalDoc uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	segIdx, local := w.snapshot.Localize(globalDoc)
	seg := w.snapshot.Segments()[segIdx]
	bm, ok := w.pendingDeletes[seg.ID()]
	if !ok {
		bm = roaring.New()
		w.pendingDeletes[seg.ID()] = bm
	}
	bm.Add(local)
}

// Cancel discards any buffered documents and pending deletions without
// committing them.
func (w *Writer) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shards = nil
	w.pendingCount = 0
	w.pendingDeletes = make(map[uint64]*roaring.Bitmap)
}

// MergeMode selects how aggressively Commit merges segments.
type MergeMode int

const (
	// MergeAuto runs the configured tiered merge policy (the default).
	MergeAuto MergeMode = iota
	// MergeNone skips merge planning; the new flush segment (if any) is
	// simply added to the segment list.
	MergeNone
	// MergeForce merges every live segment (including the new flush, if
	// any) down to one.
	MergeForce
)

// Commit flushes any buffered documents into a new segment, applies pending
// deletions copy-on-write, runs the merge policy, and atomically publishes
// a new TOC generation (spec §5's commit protocol). On success the
// writer's current snapshot is updated; previously opened Readers keep
// seeing their own frozen snapshot.
func (w *Writer) Commit(mode MergeMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}

	segs := append([]*SegmentSnapshot(nil), w.snapshot.Segments()...)

	// Apply pending deletions copy-on-write: any segment with a pending
	// bitmap is replaced by a new SegmentSnapshot sharing the same
	// wrapper but a merged (old ∪ new) deleted bitmap.
	if len(w.pendingDeletes) > 0 {
		for i, s := range segs {
			add, ok := w.pendingDeletes[s.ID()]
			if !ok {
				continue
			}
			merged := roaring.New()
			if s.Deleted() != nil {
				merged.Or(s.Deleted())
			}
			merged.Or(add)
			segs[i] = s.WithDeletions(merged)
			s.Close()
		}
	}

	// Flush every non-empty shard's in-memory builder into its own
	// segment; all of them are introduced together in the TOC generation
	// written below, so a multi-segment commit is still one atomic
	// publish (spec §5's commit protocol, unaffected by how many segments
	// it happens to produce).
	for _, s := range w.shards {
		if s == nil || s.count == 0 {
			continue
		}
		data, err := s.builder.Close()
		if err != nil {
			return fmt.Errorf("index: flushing segment: %w", err)
		}
		seg, err := w.writeSegment(data, "flush")
		if err != nil {
			return err
		}
		segs = append(segs, seg)
	}
	w.shards = nil
	w.pendingCount = 0
	w.pendingDeletes = make(map[uint64]*roaring.Bitmap)

	segs, err := w.runMerges(segs, mode)
	if err != nil {
		return err
	}

	newGen := w.snapshot.Generation() + 1
	toc := TOC{
		Generation: newGen,
		Schema:     append([]SchemaField(nil), w.schema...),
		Segments:   make([]TOCSegment, len(segs)),
	}
	for i, s := range segs {
		toc.Segments[i] = TOCSegment{
			ID:      s.ID(),
			NumDocs: s.FullSize(),
			Deleted: encodeDeletedBitmap(s.Deleted()),
			Creator: s.Creator(),
		}
	}
	if err := writeTOC(w.dir, toc); err != nil {
		return err
	}

	newSnapshot := newIndexSnapshot(newGen, segs, toc.Schema)
	old := w.snapshot
	w.snapshot = newSnapshot
	old.Close()

	return w.sweep()
}

// runMerges executes zero or more merges over segs according to mode,
// returning the resulting segment list (merged segments replacing their
// inputs, untouched segments passed through unchanged).
func (w *Writer) runMerges(segs []*SegmentSnapshot, mode MergeMode) ([]*SegmentSnapshot, error) {
	if mode == MergeNone || len(segs) == 0 {
		return segs, nil
	}

	var plans []mergeplan.Plan
	if mode == MergeForce {
		if len(segs) > 1 {
			ids := make([]uint64, len(segs))
			for i, s := range segs {
				ids[i] = s.ID()
			}
			plans = []mergeplan.Plan{{Inputs: ids}}
		}
	} else {
		candidates := make([]mergeplan.Segment, len(segs))
		for i, s := range segs {
			candidates[i] = mergeplan.Segment{ID: s.ID(), LiveSize: int64(s.Size())}
		}
		plans = mergeplan.FindMerges(w.cfg.MergePlanOptions, candidates)
	}
	if len(plans) == 0 {
		return segs, nil
	}

	byID := make(map[uint64]*SegmentSnapshot, len(segs))
	for _, s := range segs {
		byID[s.ID()] = s
	}

	merged := make(map[uint64]bool)
	var out []*SegmentSnapshot
	for _, plan := range plans {
		inputs := make([]*SegmentSnapshot, 0, len(plan.Inputs))
		for _, id := range plan.Inputs {
			inputs = append(inputs, byID[id])
			merged[id] = true
		}
		data, liveDocs, err := mergeSegments(inputs)
		if err != nil {
			return nil, fmt.Errorf("index: merging segments: %w", err)
		}
		if liveDocs == 0 {
			// every input's documents were deleted; drop the merge result
			// entirely rather than writing an empty segment.
			for _, in := range inputs {
				w.log.Info("merge dropped empty segment set", zap.Uint64("first_input", in.ID()))
				break
			}
			continue
		}
		newSeg, err := w.writeSegment(data, "merge")
		if err != nil {
			return nil, err
		}
		out = append(out, newSeg)
	}
	for _, s := range segs {
		if !merged[s.ID()] {
			out = append(out, s)
		}
	}
	return out, nil
}

// writeSegment assigns a fresh globally-unique segment ID, writes data to
// the directory under it, and opens a SegmentSnapshot over the freshly
// written file.
func (w *Writer) writeSegment(data []byte, creator string) (*SegmentSnapshot, error) {
	id, err := w.newSegmentID()
	if err != nil {
		return nil, err
	}

	iw, err := w.dir.Create(ItemKindSegment, id)
	if err != nil {
		return nil, fmt.Errorf("index: creating segment %d: %w", id, err)
	}
	if _, err := iw.Write(data); err != nil {
		iw.Close()
		return nil, fmt.Errorf("index: writing segment %d: %w", id, err)
	}
	if err := iw.Sync(); err != nil {
		iw.Close()
		return nil, fmt.Errorf("index: syncing segment %d: %w", id, err)
	}
	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("index: closing segment %d: %w", id, err)
	}
	if err := w.dir.Rename(ItemKindSegment, id); err != nil {
		return nil, fmt.Errorf("index: promoting segment %d: %w", id, err)
	}

	r, err := w.dir.Open(ItemKindSegment, id)
	if err != nil {
		return nil, fmt.Errorf("index: reopening segment %d: %w", id, err)
	}
	wrap, err := openSegmentWrapper(id, r)
	if err != nil {
		return nil, err
	}
	return &SegmentSnapshot{id: id, wrapper: wrap, creator: creator}, nil
}

// sweep removes TOC generations and segment files the configured
// DeletionPolicy no longer wants kept, matching spec §4.5/§9's requirement
// that old generations not pile up once no reader can still need them.
// This is a best-effort, same-process cleanup: it does not attempt to
// detect readers opened by a separate process against the same directory.
func (w *Writer) sweep() error {
	if w.cfg.DeletionPolicy == nil {
		return nil
	}
	gens, err := w.dir.List(ItemKindTOC)
	if err != nil {
		return err
	}
	keep := make(map[uint64]bool)
	for _, g := range w.cfg.DeletionPolicy(gens) {
		keep[g] = true
	}
	liveSegments := make(map[uint64]bool)
	for _, s := range w.snapshot.Segments() {
		liveSegments[s.ID()] = true
	}

	for _, g := range gens {
		if keep[g] || g == w.snapshot.Generation() {
			continue
		}
		toc, err := readTOC(w.dir, g)
		if err != nil {
			continue
		}
		if err := w.dir.Remove(ItemKindTOC, g); err != nil {
			w.log.Warn("removing stale TOC", zap.Uint64("generation", g), zap.Error(err))
			continue
		}
		for _, ts := range toc.Segments {
			if liveSegments[ts.ID] {
				continue
			}
			if err := w.dir.Remove(ItemKindSegment, ts.ID); err != nil {
				w.log.Warn("removing orphaned segment", zap.Uint64("segment", ts.ID), zap.Error(err))
			}
		}
	}
	return nil
}

// Close releases the writer's advisory lock and its hold on the current
// snapshot. Any unflushed buffered documents are discarded.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.shards = nil
	w.snapshot.Close()
	return w.lck.Unlock()
}
