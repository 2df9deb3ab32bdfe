package weft

import (
	"github.com/weftsearch/weft/search"
	"github.com/weftsearch/weft/search/collector"
)

// DocumentResult is one hit within Results: a global document number, its
// score, and whatever extras the request asked for (spec §4.9's Result
// object: "an ordered list of (docnum, score, extras)").
type DocumentResult struct {
	Number      uint64
	Score       float64
	Explanation *search.Explanation
	// MatchedTerms lists the distinct (field, term) pairs that contributed
	// to this hit, populated only when SearchRequest.Terms is set (spec
	// §4.9's TermsCollector).
	MatchedTerms []MatchedTerm
}

// MatchedTerm is one (field, term) pair a query leaf matched within a hit.
type MatchedTerm struct {
	Field string
	Term  string
}

// Results is the outcome of a Searcher.Search call (spec §4.9's Result
// object): the ranked hit window, how many of the total matches are
// actually scored and returned, the visited-document count, and optional
// facet groupings.
type Results struct {
	Hits []*DocumentResult

	// ScoredLength is len(Hits): how many of the matching documents were
	// actually scored and returned, as distinct from Total.
	ScoredLength int

	// Total is the number of documents the search visited. It is exact
	// when the query ran to completion; TimedOut signals it may be a
	// partial count instead (spec §4.9: "an optional exact total ... or
	// estimated min/max totals").
	Total int

	// TimedOut reports whether a TimeLimit cut the search short; Hits and
	// Total still reflect whatever was collected before the cutoff (spec
	// §5's "the current partial top-K is retrievable").
	TimedOut bool

	// Facets holds bucket->count pairs when SearchRequest.GroupedBy named
	// a facet field, nil otherwise.
	Facets []collector.FacetCount

	// Groups holds each facet bucket's member document numbers (global,
	// rebased) when SearchRequest.GroupedBy named a field AND
	// SearchRequest.FacetMap selected one of the pluggable membership
	// strategies (spec §4.9's "groups(name) → {key: [doc,…]}"); nil when
	// FacetMap is the default FacetMapNone, since membership bookkeeping
	// is skipped entirely in that case.
	Groups map[string][]uint64
}

// rawHit is the Searcher's internal, not-yet-trimmed notion of a match:
// collector.Hit plus the FieldTermLocations a terms=true request needs,
// which collector.Hit itself does not retain (spec §4.9's TermsCollector
// is layered on top of collection here rather than inside package
// collector, since it needs the DocumentMatch collector.TopN discards
// once a candidate is turned into a Hit).
type rawHit struct {
	Number      uint64
	Score       float64
	Explanation *search.Explanation
	Locations   []search.FieldTermLocation
}

func dedupMatchedTerms(locs []search.FieldTermLocation) []MatchedTerm {
	if len(locs) == 0 {
		return nil
	}
	seen := make(map[MatchedTerm]bool, len(locs))
	var out []MatchedTerm
	for _, l := range locs {
		mt := MatchedTerm{Field: l.Field, Term: l.Term}
		if !seen[mt] {
			seen[mt] = true
			out = append(out, mt)
		}
	}
	return out
}

func rawHitsToResults(hits []rawHit, total int, timedOut bool, facets []collector.FacetCount) *Results {
	out := make([]*DocumentResult, len(hits))
	for i, h := range hits {
		out[i] = &DocumentResult{
			Number:       h.Number,
			Score:        h.Score,
			Explanation:  h.Explanation,
			MatchedTerms: dedupMatchedTerms(h.Locations),
		}
	}
	return &Results{Hits: out, ScoredLength: len(out), Total: total, TimedOut: timedOut, Facets: facets}
}
