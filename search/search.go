// Package search implements the matcher/searcher algebra (C7), the
// similarity/scoring interface (C8), and the collector interface (C9). It
// is grounded on the teacher's vendored bluge/search package: the
// Next/Advance cursor contract in search_conjunction.go, the Explanation
// tree in similarity/bm25.go, and the collectorStore shape in
// collector/topn.go.
package search

import (
	"context"

	"github.com/RoaringBitmap/roaring"

	"github.com/weftsearch/weft/index/codec"
)

// DocumentMatch is one hit produced by a Searcher: a document number
// (segment-local to the Reader that produced it; callers rebase to global
// numbers when combining segments), its score, and optionally its
// Explanation and sort/stored values once Collector asks for them.
type DocumentMatch struct {
	Number uint64
	Score  float64

	// FieldTermLocations is populated only when the query requested
	// highlighting/position info; nil otherwise to avoid the allocation
	// on the hot path.
	FieldTermLocations []FieldTermLocation

	Explanation *Explanation

	// SortValue holds the raw doc-values bytes the active sort ordering
	// needs for this document, filled in by the Collector once Next
	// returns it a candidate.
	SortValue [][]byte
}

// FieldTermLocation is one matched term occurrence, field and position,
// used to build highlighted snippets.
type FieldTermLocation struct {
	Field string
	Term  string
	Start int
	End   int
	Pos   int
	// TermIndex is which phrase slot produced this location (0 for the
	// first term in a Phrase query), letting Phrase regroup positions by
	// term after its children's locations have been merged.
	TermIndex int
}

// Explanation documents how a DocumentMatch's score was computed, built
// lazily only when a query runs with explain enabled, mirroring bluge's
// search.Explanation tree built in similarity/bm25.go's Explain.
type Explanation struct {
	Value    float64
	Message  string
	Children []*Explanation
}

// Context carries the per-search mutable state a tree of Searchers shares:
// a pool of reusable DocumentMatch values (so a deep conjunction doesn't
// allocate one per node per document) and a deadline for cooperative
// cancellation, the same role bluge's search.Context/DocumentMatchPool
// play.
type Context struct {
	Ctx context.Context

	pool []*DocumentMatch
}

// NewContext returns a Context bound to ctx, which Matchers should check
// periodically (spec §4.9's TimeLimitCollector, §7's ErrTimeLimit).
func NewContext(ctx context.Context) *Context {
	return &Context{Ctx: ctx}
}

// DocumentMatchPool is the interface Searcher implementations use to
// borrow a scratch DocumentMatch instead of allocating one per posting
// visited, then return it once a parent combinator decides the candidate
// doesn't survive (e.g. a Conjunction child rejected by a sibling).
type DocumentMatchPool interface {
	Get() *DocumentMatch
	Put(*DocumentMatch)
}

func (c *Context) Get() *DocumentMatch {
	if n := len(c.pool); n > 0 {
		dm := c.pool[n-1]
		c.pool = c.pool[:n-1]
		*dm = DocumentMatch{}
		return dm
	}
	return &DocumentMatch{}
}

func (c *Context) Put(dm *DocumentMatch) {
	c.pool = append(c.pool, dm)
}

// Matcher is the minimal posting-list cursor contract every leaf and
// combinator searcher implements (spec §4.7's Next/Advance/eof), lifted
// directly from bluge's search.Searcher.Next/Advance signatures in
// search_conjunction.go.
type Matcher interface {
	// Next returns the next matching document in ascending doc-number
	// order, or nil (with a nil error) once exhausted.
	Next(ctx *Context) (*DocumentMatch, error)
	// Advance moves the cursor to the first matching document with
	// number >= docNum, or nil once no such document exists. Calling
	// Advance with a docNum at or before the current position is a
	// no-op that just returns the current document.
	Advance(ctx *Context, docNum uint64) (*DocumentMatch, error)
	// Count returns an upper bound on the number of documents this
	// Matcher can still produce, used for cost-based query planning
	// (cheapest-first ordering in Conjunction).
	Count() uint64
	// Close releases any resources (open posting-list blocks) the
	// Matcher holds.
	Close() error
}

// Searcher extends Matcher with the metadata a combinator needs to order
// and budget its children: Min (smallest doc number it could still
// produce) and Size (approximate memory footprint, for pool sizing).
type Searcher interface {
	Matcher
	// Min returns the smallest doc number this Searcher could still
	// return, used by Conjunction/Disjunction to pick their next
	// candidate without visiting every child.
	Min() uint64
	Size() int
}

// Reader is the read-only view over one segment's postings/dictionary/
// doc-values/stored-fields that a Query's Searcher-builder consumes. It is
// implemented by *index.SegmentSnapshot (via a thin adapter) so that
// package search never imports package index, keeping the dependency
// direction one-way as the teacher's own search/index package split does.
type Reader interface {
	Dictionary(field string) (*codec.TermDictionary, error)
	PostingsList(field string, offset uint64) (*codec.PostingsList, error)
	Column(field string) (*codec.Column, error)
	StoredFields() (*codec.StoredFields, error)
	// Vectors opens the segment's per-document forward-vector reader
	// (spec §4.2's optional Vectors component), used by Searcher.KeyTerms
	// and the vector-based Phrase variant.
	Vectors() (*codec.Vectors, error)
	DocCount() uint64
	// FieldStats returns the collection-wide document frequency for a
	// term and the average field length, the two numbers BM25F needs;
	// it is computed once per Reader open and cached, not per query.
	FieldStats(field string) FieldStats
	// Deleted returns the bitmap of this segment's local doc numbers that
	// are no longer live, or nil if none are deleted. Every leaf searcher
	// reading a postings list must skip doc numbers this bitmap contains,
	// the same obligation bluge's Snapshot.PostingsIterator meets by
	// passing the segment's deleted bitmap into dict.PostingsList.
	Deleted() *roaring.Bitmap
	// FullSize returns the segment's total local doc-number range,
	// ignoring deletions, so a query like MatchAll can enumerate
	// [0, FullSize) and rely on Deleted to skip what no longer lives
	// there, rather than enumerating the collection-wide live count
	// DocCount reports.
	FullSize() uint64
}

// FieldStats holds the aggregate statistics a Similarity needs: how many
// documents carry a value for the field, and their average indexed
// length, the same two numbers bluge's bm25.go pulls from its norm
// calculator.
type FieldStats struct {
	DocCount    uint64
	AvgFieldLen float64
}

// SearcherOptions configures how a Query builds its Searcher tree: whether
// to compute Explanations (expensive) and whether position information is
// required (phrase queries need it, term queries don't).
type SearcherOptions struct {
	Explain          bool
	IncludePositions bool
	// ScoreThreshold, when non-zero, lets a Searcher short-circuit
	// candidates it can statically prove cannot beat it (block-max
	// pruning's entry point — see searcher.Conjunction/Disjunction). A
	// Searcher built with this already non-zero starts pruning from its
	// very first block; a running search instead raises it over time by
	// calling SetThreshold (see ThresholdAware below).
	ScoreThreshold float64
}

// ThresholdAware is implemented by Matchers that support block-max
// quality pruning (spec §4.7's skip_to_quality): SetThreshold tells the
// matcher the current K-th best score a collector still keeps, so leaf
// searchers can skip blocks, and combinators can skip candidates, that
// their own bound proves cannot beat it. Not every Matcher benefits —
// Everything and the Nested structural joins have no per-block bound to
// tighten — so this is an optional interface rather than part of Matcher
// itself.
type ThresholdAware interface {
	SetThreshold(threshold float64)
}

// SetThreshold calls m.SetThreshold(threshold) if m implements
// ThresholdAware, a no-op otherwise. Collectors and combinators alike use
// this to forward a skip_to_quality call without type-asserting at every
// call site.
func SetThreshold(m Matcher, threshold float64) {
	if ta, ok := m.(ThresholdAware); ok {
		ta.SetThreshold(threshold)
	}
}
