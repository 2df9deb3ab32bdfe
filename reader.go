package weft

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/blevesearch/vellum/levenshtein"

	"github.com/weftsearch/weft/index"
	"github.com/weftsearch/weft/index/codec"
	"github.com/weftsearch/weft/search"
	"github.com/weftsearch/weft/search/collector"
	"github.com/weftsearch/weft/search/similarity"
)

// Reader is a point-in-time view over an Index's committed documents (C4,
// as exposed at the root package level): spec §6's Index.reader(). It
// never goes stale on its own; call Refresh to observe later commits.
type Reader struct {
	ir     *index.Reader
	fields []string
}

// newReader wraps an already-opened *index.Reader, deriving its field list
// from the snapshot's own schema rather than from a *index.Writer: an
// index.Reader carries its own refresh closure (see index.NewReader and
// index.OpenReader), so a root Reader never needs to hold a Writer
// reference, keeping Index.Reader lock-free (spec §5: "Readers do not
// lock").
func newReader(ir *index.Reader, fields []string) *Reader {
	if fields == nil {
		fields = schemaNames(ir.Snapshot().Schema())
	}
	return &Reader{ir: ir, fields: fields}
}

// DocCount returns the number of live documents visible to this Reader.
func (r *Reader) DocCount() uint64 { return r.ir.DocCount() }

// Refresh returns a new Reader pinned to the Index's latest commit,
// reusing segment handles still shared with this Reader's snapshot (spec
// §5: "refresh() ... reuses any still-referenced segment handles").
func (r *Reader) Refresh() (*Reader, error) {
	next, err := r.ir.Refresh()
	if err != nil {
		return nil, err
	}
	return &Reader{ir: next, fields: schemaNames(next.Snapshot().Schema())}, nil
}

// Close releases this Reader's hold on its snapshot's segments.
func (r *Reader) Close() error { return r.ir.Close() }

// AllDocIDs returns every live global document number, ascending.
func (r *Reader) AllDocIDs() []uint64 { return r.ir.AllDocIDs() }

// StoredDocument is a document's retrievable field values plus its global
// document number, the shape spec §6's `document`/`documents` return.
type StoredDocument struct {
	Number uint64
	Fields []codec.StoredField
}

// Value returns the first stored value for name, or (nil, false).
func (d *StoredDocument) Value(name string) ([]byte, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Document returns globalDoc's stored fields, or nil if it no longer
// exists.
func (r *Reader) Document(globalDoc uint64) (*StoredDocument, error) {
	if r.ir.IsDeleted(globalDoc) {
		return nil, nil
	}
	fields, err := r.ir.StoredFields(globalDoc)
	if err != nil {
		return nil, err
	}
	return &StoredDocument{Number: globalDoc, Fields: fields}, nil
}

// Documents returns the stored documents for every doc number in ids, in
// the same order, skipping any that no longer exist (spec §6's
// `documents`).
func (r *Reader) Documents(ids []uint64) ([]*StoredDocument, error) {
	out := make([]*StoredDocument, 0, len(ids))
	for _, id := range ids {
		d, err := r.Document(id)
		if err != nil {
			return nil, err
		}
		if d != nil {
			out = append(out, d)
		}
	}
	return out, nil
}

// Searcher pairs a Reader with a Similarity, the combination spec §6's
// Index.searcher(weighting?) returns: search, document, documents,
// correct_query, key_terms all live here.
type Searcher struct {
	*Reader
	sim similarity.Similarity
}

// NewSearcher builds a Searcher over reader using sim, or BM25F if sim is
// nil.
func NewSearcher(reader *Reader, sim similarity.Similarity) *Searcher {
	if sim == nil {
		sim = similarity.NewBM25F()
	}
	return &Searcher{Reader: reader, sim: sim}
}

// FacetMapMode selects one of collector's pluggable FacetMap strategies
// for a grouped search's Results.Groups (spec §4.9's "ordered list /
// unordered list / count / best").
type FacetMapMode int

const (
	// FacetMapNone skips group/document-membership bookkeeping; only
	// Results.Facets (bucket counts) is populated. The default.
	FacetMapNone FacetMapMode = iota
	// FacetMapOrderedList keeps every member document per bucket, in
	// ascending visit order.
	FacetMapOrderedList
	// FacetMapUnorderedList keeps every member document per bucket with
	// no ordering guarantee (cheaper bookkeeping).
	FacetMapUnorderedList
	// FacetMapBest keeps only the FacetMapBestN highest-scoring member
	// documents per bucket.
	FacetMapBest
)

func newFacetMap(mode FacetMapMode, bestN int) collector.FacetMap {
	switch mode {
	case FacetMapOrderedList:
		return collector.NewOrderedListFacetMap()
	case FacetMapUnorderedList:
		return collector.NewUnorderedListFacetMap()
	case FacetMapBest:
		if bestN < 1 {
			bestN = 1
		}
		return collector.NewBestFacetMap(bestN)
	default:
		return nil
	}
}

// SearchAfter carries the (score, docnum) cursor for search-after
// pagination (spec §4.9's TopK collector's "after" support).
type SearchAfter struct {
	Score float64
	Doc   uint64
}

// SearchRequest configures one Search call, matching spec §6's
// `search(query, limit, sortedby?, groupedby?, filter?, mask?, terms?,
// collapse?)` surface.
type SearchRequest struct {
	Query Query
	Limit int

	// Filter additionally restricts matches (an implicit AND), Mask
	// additionally excludes them (an implicit AND NOT) — spec §4.9's
	// "Filter / Mask: restrict/exclude documents by an allow/deny Query
	// executed as a bitmap."
	Filter Query
	Mask   Query

	// SortedBy, if non-empty, orders hits by the named doc-values column
	// instead of by score; this forces an Unlimited collection pass since
	// quality-based pruning only applies to score order (spec §4.9's
	// Unlimited/Sorted collectors).
	SortedBy string
	SortDesc bool

	// GroupedBy names a facet field; when set, Results.Facets holds
	// bucket counts (spec §4.9's FacetCollector).
	GroupedBy string

	// FacetMap selects which pluggable per-bucket membership strategy
	// backs Results.Groups (spec §4.9's "ordered list / unordered list /
	// count / best"); the zero value, FacetMapNone, skips group
	// bookkeeping entirely — Facets (bucket counts) is always populated
	// regardless of this setting. FacetMapBestN is the N kept per bucket
	// when FacetMap is FacetMapBest (default 1).
	FacetMap      FacetMapMode
	FacetMapBestN int

	// CollapseBy names a field to deduplicate on, keeping at most
	// CollapseMax (default 1) best-scoring hits per distinct value (spec
	// §4.9's CollapseCollector).
	CollapseBy  string
	CollapseMax int

	// Terms requests that each hit record which (field, term) pairs
	// matched (spec §4.9's TermsCollector).
	Terms bool

	Explain bool

	After     *SearchAfter
	TimeLimit time.Duration
	Ctx       context.Context
}

func (req SearchRequest) effectiveQuery() (Query, error) {
	if req.Query == nil {
		return nil, fmt.Errorf("weft: %w: SearchRequest.Query is nil", ErrQueryError)
	}
	q := req.Query
	if req.Filter != nil {
		q = NewAndQuery(q, req.Filter)
	}
	if req.Mask != nil {
		q = NewAndNotQuery(q, req.Mask)
	}
	return q, nil
}

func (req SearchRequest) limit() int {
	if req.Limit <= 0 {
		return 10
	}
	return req.Limit
}

// Search runs req against the Searcher's Reader, building one Searcher per
// live segment and combining their results according to spec §4.9's
// per-collector semantics.
func (s *Searcher) Search(req SearchRequest) (*Results, error) {
	q, err := req.effectiveQuery()
	if err != nil {
		return nil, err
	}
	ctx := req.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if req.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.TimeLimit)
		defer cancel()
	}

	opts := search.SearcherOptions{Explain: req.Explain, IncludePositions: req.Terms}

	segReaders := s.ir.SegmentAdapters(s.fields)
	bases := make([]uint64, len(segReaders))
	for i := range segReaders {
		bases[i] = s.ir.SegmentBase(i)
	}

	switch {
	case req.SortedBy != "":
		return s.searchSorted(ctx, q, opts, segReaders, bases, req)
	case req.GroupedBy != "" || req.CollapseBy != "":
		return s.searchGrouped(ctx, q, opts, segReaders, bases, req)
	case req.Terms:
		return s.searchWithTerms(ctx, q, opts, segReaders, bases, req)
	default:
		return s.searchTopN(ctx, q, opts, segReaders, bases, req)
	}
}

// searchTopN is the common case: one rebased Searcher per segment, all
// feeding a single shared TopN so the top-size cutoff applies across the
// whole index rather than per segment (spec §4.9's TopK collector).
func (s *Searcher) searchTopN(ctx context.Context, q Query, opts search.SearcherOptions, segReaders []search.Reader, bases []uint64, req SearchRequest) (*Results, error) {
	var tn *collector.TopN
	if req.After != nil {
		tn = collector.NewTopNAfter(req.limit(), req.After.Score, req.After.Doc)
	} else {
		tn = collector.NewTopN(req.limit())
	}
	if req.TimeLimit > 0 {
		tn = tn.WithTimeLimit(req.TimeLimit)
	}
	for i, sr := range segReaders {
		m, err := q.Searcher(sr, s.sim, opts)
		if err != nil {
			return nil, err
		}
		rebased := &rebaseSearcher{inner: m, base: bases[i]}
		if err := tn.Collect(ctx, rebased, opts); err != nil {
			rebased.Close()
			return nil, err
		}
		rebased.Close()
	}
	hits := tn.Results()
	raw := make([]rawHit, len(hits))
	for i, h := range hits {
		raw[i] = rawHit{Number: h.Number, Score: h.Score, Explanation: h.Explanation}
	}
	return rawHitsToResults(raw, tn.Total(), tn.TimedOut(), nil), nil
}

// searchWithTerms bypasses collector.TopN, which discards a DocumentMatch's
// FieldTermLocations once it becomes a Hit: it collects every match (no
// quality pruning, matching spec §4.9's Unlimited collector), keeping each
// one's locations, then sorts by score and truncates — acceptable since a
// terms=true request is typically a small, already-narrow query.
func (s *Searcher) searchWithTerms(ctx context.Context, q Query, opts search.SearcherOptions, segReaders []search.Reader, bases []uint64, req SearchRequest) (*Results, error) {
	var all []rawHit
	visited := 0
	timedOut := false
	deadline, hasDeadline := ctx.Deadline()
	for i, sr := range segReaders {
		m, err := q.Searcher(sr, s.sim, opts)
		if err != nil {
			return nil, err
		}
		sctx := search.NewContext(ctx)
		dm, err := m.Next(sctx)
		for dm != nil && err == nil {
			visited++
			if hasDeadline && time.Now().After(deadline) {
				timedOut = true
				break
			}
			all = append(all, rawHit{
				Number:      dm.Number + bases[i],
				Score:       dm.Score,
				Explanation: dm.Explanation,
				Locations:   append([]search.FieldTermLocation(nil), dm.FieldTermLocations...),
			})
			dm, err = m.Next(sctx)
		}
		m.Close()
		if err != nil {
			return nil, err
		}
		if timedOut {
			break
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Number < all[j].Number
	})
	if len(all) > req.limit() {
		all = all[:req.limit()]
	}
	return rawHitsToResults(all, visited, timedOut, nil), nil
}

// searchSorted collects every match via searchWithTerms, which never calls
// search.SetThreshold: block-max pruning bounds a document's *score*, and
// this collector discards score ordering entirely in favor of the named
// doc-values column, so a document scoring below any threshold could
// still sort ahead of everything else (spec §4.9's Sorted collector).
func (s *Searcher) searchSorted(ctx context.Context, q Query, opts search.SearcherOptions, segReaders []search.Reader, bases []uint64, req SearchRequest) (*Results, error) {
	res, err := s.searchWithTerms(ctx, q, opts, segReaders, bases, SearchRequest{Limit: 1 << 30, Terms: req.Terms, TimeLimit: req.TimeLimit, Ctx: ctx})
	if err != nil {
		return nil, err
	}
	col := s.ir.ColumnReader(req.SortedBy)
	hits := make([]rawHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, rawHit{Number: h.Number, Score: h.Score, Explanation: h.Explanation})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		vi, oki := col.Value(hits[i].Number)
		vj, okj := col.Value(hits[j].Number)
		switch {
		case oki && !okj:
			return true
		case !oki && okj:
			return false
		case !oki && !okj:
			return hits[i].Number < hits[j].Number
		}
		c := compareBytes(vi, vj)
		if req.SortDesc {
			return c > 0
		}
		return c < 0
	})
	if len(hits) > req.limit() {
		hits = hits[:req.limit()]
	}
	return rawHitsToResults(hits, res.Total, res.TimedOut, nil), nil
}

// searchGrouped runs independent TopN+Facet/Collapse collection per
// segment (since FacetCollector/Collapse key off a segment-local
// doc-values column), then merges the per-segment ranked hits and facet
// tallies — a scatter-gather approximation of the spec's single
// cross-segment collector: collapse groups are only enforced within a
// segment, not across segments, and the merged ranking can very rarely
// include more than CollapseMax hits for one value if its best scorers
// are split across segments.
func (s *Searcher) searchGrouped(ctx context.Context, q Query, opts search.SearcherOptions, segReaders []search.Reader, bases []uint64, req SearchRequest) (*Results, error) {
	limit := req.limit()
	facetCounts := map[string]int{}
	groupDocs := map[string][]uint64{}
	var merged []rawHit
	visited := 0
	timedOut := false

	for i, sr := range segReaders {
		m, err := q.Searcher(sr, s.sim, opts)
		if err != nil {
			return nil, err
		}
		inner := collector.NewTopN(limit)
		if req.TimeLimit > 0 {
			inner = inner.WithTimeLimit(req.TimeLimit)
		}

		var hits []collector.Hit
		switch {
		case req.GroupedBy != "":
			col, cerr := sr.Column(req.GroupedBy)
			if cerr != nil {
				m.Close()
				return nil, cerr
			}
			fmap := newFacetMap(req.FacetMap, req.FacetMapBestN)
			fc := collector.NewFacetCollector(inner, col, func(_ uint64, raw []byte) string { return string(raw) }, fmap)
			if err := fc.Collect(ctx, m, opts); err != nil {
				m.Close()
				return nil, err
			}
			for _, fcount := range fc.Facets() {
				facetCounts[fcount.Term] += fcount.Count
			}
			// Per-segment group membership is merged by concatenation,
			// rebasing each doc number into global space; like
			// CollapseCollector above, a FacetMapBest cutoff is only
			// enforced within a segment here, not re-trimmed globally
			// (the same scatter-gather approximation this function's
			// doc comment already notes for collapse).
			for key, docs := range fc.Groups() {
				rebased := make([]uint64, len(docs))
				for j, d := range docs {
					rebased[j] = d + bases[i]
				}
				groupDocs[key] = append(groupDocs[key], rebased...)
			}
			hits = fc.Results()
			visited += fc.Visited()
		default:
			col, cerr := sr.Column(req.CollapseBy)
			if cerr != nil {
				m.Close()
				return nil, cerr
			}
			cmax := req.CollapseMax
			if cmax < 1 {
				cmax = 1
			}
			cc := collector.NewCollapse(inner, col, cmax)
			if err := cc.Collect(ctx, m, opts); err != nil {
				m.Close()
				return nil, err
			}
			hits = cc.Results()
			visited += cc.Visited()
		}
		m.Close()

		for _, h := range hits {
			merged = append(merged, rawHit{Number: h.Number + bases[i], Score: h.Score, Explanation: h.Explanation})
		}
		if inner.TimedOut() {
			timedOut = true
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Number < merged[j].Number
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	var facets []collector.FacetCount
	var groups map[string][]uint64
	if req.GroupedBy != "" {
		for term, count := range facetCounts {
			facets = append(facets, collector.FacetCount{Term: term, Count: count})
		}
		sort.Slice(facets, func(i, j int) bool {
			if facets[i].Count != facets[j].Count {
				return facets[i].Count > facets[j].Count
			}
			return facets[i].Term < facets[j].Term
		})
		if req.FacetMap != FacetMapNone {
			groups = groupDocs
		}
	}

	res := rawHitsToResults(merged, visited, timedOut, facets)
	res.Groups = groups
	return res, nil
}

// rebaseSearcher shifts every DocumentMatch.Number an inner, segment-local
// Searcher produces by base (the global doc number its segment's local
// doc 0 maps to), so a collector shared across every segment of a query
// sees one flat, strictly ascending numbering (spec §5's MultiReader
// rebasing, applied at the Searcher layer here rather than the postings
// layer: weft queries one Searcher per segment rather than building a
// true cross-segment merge matcher).
type rebaseSearcher struct {
	inner search.Searcher
	base  uint64
}

func (r *rebaseSearcher) Count() uint64 { return r.inner.Count() }

func (r *rebaseSearcher) Min() uint64 {
	m := r.inner.Min()
	if m == ^uint64(0) {
		return m
	}
	return m + r.base
}

func (r *rebaseSearcher) Size() int    { return r.inner.Size() }
func (r *rebaseSearcher) Close() error { return r.inner.Close() }

// SetThreshold implements search.ThresholdAware, forwarding to inner
// unchanged (rebasing only shifts document numbers, never scores).
func (r *rebaseSearcher) SetThreshold(threshold float64) { search.SetThreshold(r.inner, threshold) }

func (r *rebaseSearcher) Next(ctx *search.Context) (*search.DocumentMatch, error) {
	dm, err := r.inner.Next(ctx)
	if dm != nil {
		dm.Number += r.base
	}
	return dm, err
}

func (r *rebaseSearcher) Advance(ctx *search.Context, docNum uint64) (*search.DocumentMatch, error) {
	local := uint64(0)
	if docNum > r.base {
		local = docNum - r.base
	}
	dm, err := r.inner.Advance(ctx, local)
	if dm != nil {
		dm.Number += r.base
	}
	return dm, err
}

// KeyTermScore is one term's key-term-extraction weight for a document
// (spec §6's key_terms, a Whoosh-derived feature supplementing the core
// spec — see SPEC_FULL.md).
type KeyTermScore struct {
	Term  string
	Score float64
}

// KeyTerms ranks globalDoc's most distinctive terms in field, using the
// document's stored forward vector (spec §4.2's optional Vectors,
// populated only for fields indexed with Field.WithVector) weighted by
// BM25F's idf, whichever Similarity the Searcher ranks with, so a
// term that is rare across the collection but frequent in this document
// scores highest. Returns an empty slice, not an error, if field carries
// no vector for this document.
func (s *Searcher) KeyTerms(globalDoc uint64, field string, limit int) ([]KeyTermScore, error) {
	vec, err := s.ir.VectorTerms(globalDoc)
	if err != nil {
		return nil, err
	}
	bm := similarity.NewBM25F()
	docCount := s.ir.DocCount()
	scores := make([]KeyTermScore, 0, len(vec))
	for _, t := range vec {
		if t.Field != field {
			continue
		}
		df, err := s.ir.TermDocFreq(field, string(t.Term))
		if err != nil {
			return nil, err
		}
		if df == 0 {
			continue
		}
		score := float64(len(t.Positions)) * bm.Idf(df, docCount)
		scores = append(scores, KeyTermScore{Term: string(t.Term), Score: score})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Term < scores[j].Term
	})
	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

// QuerySuggestion records one Term leaf CorrectQuery found absent from the
// dictionary and the nearest replacement it found instead.
type QuerySuggestion struct {
	Field        string
	Original     string
	Suggested    string
	EditDistance int
}

// CorrectQuery walks q's Term leaves (spec §6's correct_query, a
// Whoosh-derived feature — see SPEC_FULL.md) and, for any with zero
// collection-wide document frequency, substitutes the closest in-dictionary
// term by Levenshtein edit distance, reusing the same vellum automaton
// FuzzyTermQuery drives (query.go). Returns the corrected query (identical
// to q, by value, if nothing needed correcting) plus the substitutions it
// made. Only TermQuery and PhraseQuery leaves, and the And/Or/AndNot/
// AndMaybe/Not/DisjunctionMax combinators wrapping them, are corrected;
// other query kinds (expanding queries, Range, Nested, ...) pass through
// unchanged since they do not name a single literal term that could be a
// typo.
func (s *Searcher) CorrectQuery(q Query) (Query, []QuerySuggestion, error) {
	var suggestions []QuerySuggestion
	corrected, err := s.correctNode(q, &suggestions)
	if err != nil {
		return nil, nil, err
	}
	return corrected, suggestions, nil
}

func (s *Searcher) correctNode(q Query, out *[]QuerySuggestion) (Query, error) {
	switch v := q.(type) {
	case *TermQuery:
		fixed, err := s.correctTerm(v.Field, v.Term, out)
		if err != nil {
			return nil, err
		}
		cp := *v
		cp.Term = fixed
		return &cp, nil
	case *PhraseQuery:
		cp := *v
		cp.Terms = append([]string(nil), v.Terms...)
		for i, t := range cp.Terms {
			fixed, err := s.correctTerm(v.Field, t, out)
			if err != nil {
				return nil, err
			}
			cp.Terms[i] = fixed
		}
		return &cp, nil
	case *AndQuery:
		musts, err := s.correctChildren(v.Must, out)
		if err != nil {
			return nil, err
		}
		return &AndQuery{Must: musts}, nil
	case *OrQuery:
		shoulds, err := s.correctChildren(v.Should, out)
		if err != nil {
			return nil, err
		}
		return &OrQuery{Should: shoulds, MinShould: v.MinShould}, nil
	case *AndNotQuery:
		must, err := s.correctNode(v.Must, out)
		if err != nil {
			return nil, err
		}
		mustNot := v.MustNot
		if mustNot != nil {
			mustNot, err = s.correctNode(v.MustNot, out)
			if err != nil {
				return nil, err
			}
		}
		return &AndNotQuery{Must: must, MustNot: mustNot}, nil
	case *AndMaybeQuery:
		must, err := s.correctNode(v.Must, out)
		if err != nil {
			return nil, err
		}
		should, err := s.correctNode(v.Should, out)
		if err != nil {
			return nil, err
		}
		return &AndMaybeQuery{Must: must, Should: should}, nil
	case *NotQuery:
		inner, err := s.correctNode(v.Query, out)
		if err != nil {
			return nil, err
		}
		return &NotQuery{Query: inner}, nil
	case *DisjunctionMaxQuery:
		disjuncts, err := s.correctChildren(v.Disjuncts, out)
		if err != nil {
			return nil, err
		}
		return &DisjunctionMaxQuery{Disjuncts: disjuncts, TieBreak: v.TieBreak}, nil
	default:
		return q, nil
	}
}

func (s *Searcher) correctChildren(children []Query, out *[]QuerySuggestion) ([]Query, error) {
	fixed := make([]Query, len(children))
	for i, c := range children {
		var err error
		fixed[i], err = s.correctNode(c, out)
		if err != nil {
			return nil, err
		}
	}
	return fixed, nil
}

// correctTerm returns term unchanged if it is present, exactly as given,
// in field's dictionary; otherwise it searches for the
// closest present term at edit distance 1, then 2, recording a suggestion
// and returning the replacement if one is found, or term unchanged (no
// suggestion recorded) if the dictionary has nothing close.
func (s *Searcher) correctTerm(field, term string, out *[]QuerySuggestion) (string, error) {
	df, err := s.ir.TermDocFreq(field, term)
	if err != nil {
		return term, err
	}
	if df > 0 {
		return term, nil
	}
	for edits := uint8(1); edits <= 2; edits++ {
		candidate, found, err := s.nearestTerm(field, term, edits)
		if err != nil {
			return term, err
		}
		if found {
			*out = append(*out, QuerySuggestion{
				Field: field, Original: term, Suggested: candidate, EditDistance: int(edits),
			})
			return candidate, nil
		}
	}
	return term, nil
}

// nearestTerm walks every segment's dictionary for field through a
// Levenshtein automaton at the given edit distance (the same
// blevesearch/vellum/levenshtein.NewLevenshteinAutomatonBuilder FuzzyTermQuery
// uses in query.go), returning the candidate with the highest combined
// document frequency if more than one term in the dictionary is within
// range.
func (s *Searcher) nearestTerm(field, term string, edits uint8) (string, bool, error) {
	builder, err := levenshtein.NewLevenshteinAutomatonBuilder(edits, true)
	if err != nil {
		return "", false, fmt.Errorf("weft: building correction automaton: %w", err)
	}
	dfa, err := builder.BuildDfa(term, edits)
	if err != nil {
		return "", false, fmt.Errorf("weft: building correction automaton for %q: %w", term, err)
	}
	best := ""
	bestFreq := uint64(0)
	found := false
	for _, sr := range s.ir.SegmentAdapters([]string{field}) {
		dict, err := sr.Dictionary(field)
		if err != nil {
			return "", false, err
		}
		if dict == nil {
			continue
		}
		it, err := dict.Automaton(dfa, nil, nil)
		if err != nil {
			return "", false, err
		}
		for it.Next() {
			cand := string(it.Term())
			if cand == term {
				continue
			}
			df, err := s.ir.TermDocFreq(field, cand)
			if err != nil {
				return "", false, err
			}
			if !found || df > bestFreq || (df == bestFreq && cand < best) {
				best, bestFreq, found = cand, df, true
			}
		}
	}
	return best, found, nil
}

func schemaNames(fields []index.SchemaField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}
