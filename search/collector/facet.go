package collector

import (
	"context"
	"sort"

	"github.com/weftsearch/weft/index/codec"
	"github.com/weftsearch/weft/search"
)

// FacetValue extracts the bucket a document belongs to from its sort
// column value, used by FacetCollector to tally counts per bucket (spec
// §4.9's facet collector). Callers typically decode the raw column bytes
// with package numeric or treat them as an opaque keyword.
type FacetValue func(docNum uint64, raw []byte) string

// FacetMap accumulates, per bucket key, the member documents a
// FacetCollector visits, implementing one of spec §4.9's pluggable
// strategies ("ordered list / unordered list / count / best"). A
// FacetCollector always tracks plain counts itself (Facets/FacetCount);
// FacetMap is the additional, optional per-key document membership a
// caller asks for via Results.Groups, so a count-only facet (the common
// case, and the cheapest) need not pay for list bookkeeping it never
// reads.
type FacetMap interface {
	// Add records that docNum (with the given score) belongs to key, in
	// the order the collector visits documents (ascending doc number,
	// since every Matcher yields ascending IDs).
	Add(key string, docNum uint64, score float64)
	// Groups returns each key's member documents, ordering and
	// truncation defined by the concrete implementation.
	Groups() map[string][]uint64
}

// OrderedListFacetMap keeps every document per bucket, in the ascending
// visit order a Matcher naturally produces — spec's "ordered list"
// FacetMap.
type OrderedListFacetMap struct {
	groups map[string][]uint64
}

func NewOrderedListFacetMap() *OrderedListFacetMap {
	return &OrderedListFacetMap{groups: make(map[string][]uint64)}
}

func (m *OrderedListFacetMap) Add(key string, docNum uint64, _ float64) {
	m.groups[key] = append(m.groups[key], docNum)
}

func (m *OrderedListFacetMap) Groups() map[string][]uint64 { return m.groups }

// UnorderedListFacetMap keeps every document per bucket with no ordering
// guarantee — spec's "unordered list" FacetMap, offered as the cheaper
// sibling of OrderedListFacetMap for callers who only care about
// membership, not visit order (e.g. a caller that will re-sort the
// group's documents itself).
type UnorderedListFacetMap struct {
	groups map[string]map[uint64]struct{}
}

func NewUnorderedListFacetMap() *UnorderedListFacetMap {
	return &UnorderedListFacetMap{groups: make(map[string]map[uint64]struct{})}
}

func (m *UnorderedListFacetMap) Add(key string, docNum uint64, _ float64) {
	set, ok := m.groups[key]
	if !ok {
		set = make(map[uint64]struct{})
		m.groups[key] = set
	}
	set[docNum] = struct{}{}
}

func (m *UnorderedListFacetMap) Groups() map[string][]uint64 {
	out := make(map[string][]uint64, len(m.groups))
	for k, set := range m.groups {
		docs := make([]uint64, 0, len(set))
		for d := range set {
			docs = append(docs, d)
		}
		out[k] = docs
	}
	return out
}

// CountFacetMap discards membership entirely and only tracks how many
// documents fell into each bucket — spec's "count" FacetMap, the
// cheapest-memory option for a caller that only wants FacetCollector's
// own Facets() counts and has no use for Results.Groups.
type CountFacetMap struct {
	counts map[string]int
}

func NewCountFacetMap() *CountFacetMap {
	return &CountFacetMap{counts: make(map[string]int)}
}

func (m *CountFacetMap) Add(key string, _ uint64, _ float64) { m.counts[key]++ }

// Groups returns an empty list per key (the document identities were
// never retained); callers that need document membership should use
// OrderedListFacetMap or UnorderedListFacetMap instead.
func (m *CountFacetMap) Groups() map[string][]uint64 {
	out := make(map[string][]uint64, len(m.counts))
	for k := range m.counts {
		out[k] = nil
	}
	return out
}

// bestEntry is one candidate kept by a BestFacetMap bucket.
type bestEntry struct {
	docNum uint64
	score  float64
}

// BestFacetMap keeps only the N highest-scoring documents per bucket —
// spec's "best" FacetMap, the grouping-equivalent of CollapseCollector's
// per-key retention policy (search/collector/collapse.go), reused here so
// a facet and a collapse can share the same "keep the best N" semantics
// instead of inventing a second one.
type BestFacetMap struct {
	n      int
	groups map[string][]bestEntry
}

func NewBestFacetMap(n int) *BestFacetMap {
	if n < 1 {
		n = 1
	}
	return &BestFacetMap{n: n, groups: make(map[string][]bestEntry)}
}

func (m *BestFacetMap) Add(key string, docNum uint64, score float64) {
	entries := append(m.groups[key], bestEntry{docNum: docNum, score: score})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].docNum < entries[j].docNum
	})
	if len(entries) > m.n {
		entries = entries[:m.n]
	}
	m.groups[key] = entries
}

func (m *BestFacetMap) Groups() map[string][]uint64 {
	out := make(map[string][]uint64, len(m.groups))
	for k, entries := range m.groups {
		docs := make([]uint64, len(entries))
		for i, e := range entries {
			docs[i] = e.docNum
		}
		out[k] = docs
	}
	return out
}

// FacetCollector wraps a TopN collector (so the same search still returns
// ranked hits) with per-bucket counts over a chosen field's doc-values
// column, mirroring the collectorStore-sibling shape bluge's own facet
// collector takes alongside topn.go's TopNCollector, without importing
// bluge's aggregations package (not read in depth; reconstructed from its
// stated role in SPEC_FULL.md's DOMAIN STACK).
type FacetCollector struct {
	inner  *TopN
	column *codec.Column
	pick   FacetValue
	counts map[string]int
	fmap   FacetMap
}

// NewFacetCollector builds a facet-counting wrapper around a TopN
// collector. column is the segment-local doc-values column for the facet
// field (nil if the field has no values in this segment, in which case
// Collect simply skips faceting). Counts are always tracked; fmap is
// optional (nil skips group/document-membership bookkeeping) and selects
// which of the four pluggable FacetMap strategies above backs
// Results.Groups.
func NewFacetCollector(inner *TopN, column *codec.Column, pick FacetValue, fmap FacetMap) *FacetCollector {
	return &FacetCollector{inner: inner, column: column, pick: pick, counts: make(map[string]int), fmap: fmap}
}

// Collect drains matcher to its end, offering each document to the wrapped
// TopN, additionally tallying one bucket count (and, if a FacetMap was
// supplied, one group membership entry) per visited live document. Unlike
// TopN.Collect, it does not check ctx or a time limit, applies no
// search-after cursor, and never calls search.SetThreshold: Facets() must report an exact count
// per bucket, and block-max pruning would silently undercount any bucket
// whose members happen to score below the ranked hits' current cutoff.
func (f *FacetCollector) Collect(ctx context.Context, matcher search.Matcher, opts search.SearcherOptions) error {
	sctx := search.NewContext(ctx)
	dm, err := matcher.Next(sctx)
	for dm != nil && err == nil {
		if f.column != nil {
			if raw, cerr := f.column.Value(dm.Number); cerr == nil {
				key := f.pick(dm.Number, raw)
				f.counts[key]++
				if f.fmap != nil {
					f.fmap.Add(key, dm.Number, dm.Score)
				}
			}
		}
		if worst, full := f.inner.worstScore(); !full || dm.Score > worst {
			f.inner.add(Hit{Number: dm.Number, Score: dm.Score, Explanation: dm.Explanation})
		}
		f.inner.visited++
		sctx.Put(dm)
		dm, err = matcher.Next(sctx)
	}
	return err
}

// Results returns the ranked hits, unchanged from the wrapped TopN.
func (f *FacetCollector) Results() []Hit { return f.inner.Results() }

// Visited returns the number of documents this collector has seen,
// forwarded from the wrapped TopN.
func (f *FacetCollector) Visited() int { return f.inner.Total() }

// Facets returns bucket->count pairs sorted by descending count, then
// ascending bucket name for ties.
func (f *FacetCollector) Facets() []FacetCount {
	out := make([]FacetCount, 0, len(f.counts))
	for k, v := range f.counts {
		out = append(out, FacetCount{Term: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	return out
}

// Groups returns the per-bucket document membership the configured
// FacetMap accumulated, or nil if this collector was built without one.
func (f *FacetCollector) Groups() map[string][]uint64 {
	if f.fmap == nil {
		return nil
	}
	return f.fmap.Groups()
}

// FacetCount is one bucket's tally.
type FacetCount struct {
	Term  string
	Count int
}
