package weft

import (
	"fmt"
	"regexp"
	"time"

	"github.com/blevesearch/vellum/levenshtein"

	"github.com/weftsearch/weft/numeric"
	"github.com/weftsearch/weft/search"
	"github.com/weftsearch/weft/search/searcher"
	"github.com/weftsearch/weft/search/similarity"
)

// defaultTermExpansionLimit bounds how many terms a Prefix/Wildcard/Regex/
// Range/FuzzyTerm query may expand to before it fails with
// ErrTooManyTerms, protecting a wide-open pattern like "*" from building a
// Disjunction over an entire term dictionary (spec §4.6's expanding-query
// term cap).
const defaultTermExpansionLimit = 1024

// Query is the algebra of searchable expressions (C6): every Query knows
// how to build a per-segment search.Searcher against a single segment's
// search.Reader, the same per-segment builder contract bluge's
// search.Query interface exposes (query_term.go's Searcher method in the
// teacher).
type Query interface {
	Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error)
}

// termSearcher builds a leaf TermSearcher, tolerating a missing field or
// term by returning a zero-result searcher rather than an error (matching
// bluge's convention that an absent term is simply "no matches", not a
// query error).
func termSearcher(reader search.Reader, field, term string, sim similarity.Similarity, boost float64, opts search.SearcherOptions) (search.Searcher, error) {
	ts, err := searcher.NewTermSearcher(reader, field, term, sim, boost, opts)
	if err != nil {
		return nil, fmt.Errorf("weft: %w: %v", ErrQueryError, err)
	}
	return ts, nil
}

// TermQuery matches documents containing an exact, unanalyzed term in
// field (spec §4.6's TermQuery: the base case every other query builds on
// top of).
type TermQuery struct {
	Field string
	Term  string
	Boost float64
}

// NewTermQuery returns a TermQuery with the default boost of 1.0.
func NewTermQuery(field, term string) *TermQuery {
	return &TermQuery{Field: field, Term: term, Boost: 1.0}
}

func (q *TermQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	return termSearcher(reader, q.Field, q.Term, sim, q.Boost, opts)
}

// AndQuery matches documents every one of Must matches, scoring as the sum
// of each child's contribution (spec §4.6's AndQuery/BooleanQuery with
// every clause required).
type AndQuery struct {
	Must []Query
}

func NewAndQuery(must ...Query) *AndQuery { return &AndQuery{Must: must} }

func (q *AndQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	if len(q.Must) == 0 {
		return nil, fmt.Errorf("weft: %w: AndQuery requires at least one clause", ErrQueryError)
	}
	children := make([]search.Searcher, 0, len(q.Must))
	for _, sub := range q.Must {
		s, err := sub.Searcher(reader, sim, opts)
		if err != nil {
			return nil, err
		}
		children = append(children, s)
	}
	sortCheapestFirst(children)
	return searcher.NewConjunction(children), nil
}

// OrQuery matches documents at least MinShould of Should matches (spec
// §4.6's OrQuery/BooleanQuery's "minimum should match"). MinShould of 0
// defaults to 1.
type OrQuery struct {
	Should    []Query
	MinShould int
}

func NewOrQuery(should ...Query) *OrQuery { return &OrQuery{Should: should, MinShould: 1} }

func (q *OrQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	if len(q.Should) == 0 {
		return nil, fmt.Errorf("weft: %w: OrQuery requires at least one clause", ErrQueryError)
	}
	children := make([]search.Searcher, 0, len(q.Should))
	for _, sub := range q.Should {
		s, err := sub.Searcher(reader, sim, opts)
		if err != nil {
			return nil, err
		}
		children = append(children, s)
	}
	min := q.MinShould
	if min < 1 {
		min = 1
	}
	return searcher.NewDisjunction(children, min), nil
}

// AndNotQuery matches documents Must matches and MustNot does not (spec
// §4.6's AndNotQuery).
type AndNotQuery struct {
	Must    Query
	MustNot Query
}

func NewAndNotQuery(must, mustNot Query) *AndNotQuery {
	return &AndNotQuery{Must: must, MustNot: mustNot}
}

func (q *AndNotQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	pos, err := q.Must.Searcher(reader, sim, opts)
	if err != nil {
		return nil, err
	}
	var neg search.Searcher
	if q.MustNot != nil {
		neg, err = q.MustNot.Searcher(reader, sim, opts)
		if err != nil {
			return nil, err
		}
	}
	return searcher.NewAndNot(pos, neg), nil
}

// NotQuery matches every live document inner does not (spec §4.6's
// NotQuery), built as AndNot(Everything, inner).
type NotQuery struct {
	Query Query
}

func NewNotQuery(inner Query) *NotQuery { return &NotQuery{Query: inner} }

func (q *NotQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	inner, err := q.Query.Searcher(reader, sim, opts)
	if err != nil {
		return nil, err
	}
	return searcher.NewAndNot(searcher.NewEverything(reader.FullSize(), reader.Deleted()), inner), nil
}

// AndMaybeQuery matches every document Must matches, with its score
// boosted by Should's contribution when Should also matches (spec §4.6's
// AndMaybeQuery).
type AndMaybeQuery struct {
	Must   Query
	Should Query
}

func NewAndMaybeQuery(must, should Query) *AndMaybeQuery {
	return &AndMaybeQuery{Must: must, Should: should}
}

func (q *AndMaybeQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	req, err := q.Must.Searcher(reader, sim, opts)
	if err != nil {
		return nil, err
	}
	opt, err := q.Should.Searcher(reader, sim, opts)
	if err != nil {
		return nil, err
	}
	return searcher.NewAndMaybe(req, opt), nil
}

// DisjunctionMaxQuery scores a document by its single best-matching clause,
// the remainder contributing only TieBreak times their score (spec §4.6's
// DisjunctionMaxQuery, typically one clause per field for a multi-field
// match).
type DisjunctionMaxQuery struct {
	Disjuncts []Query
	TieBreak  float64
}

func NewDisjunctionMaxQuery(tieBreak float64, disjuncts ...Query) *DisjunctionMaxQuery {
	return &DisjunctionMaxQuery{Disjuncts: disjuncts, TieBreak: tieBreak}
}

func (q *DisjunctionMaxQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	children := make([]search.Searcher, 0, len(q.Disjuncts))
	for _, sub := range q.Disjuncts {
		s, err := sub.Searcher(reader, sim, opts)
		if err != nil {
			return nil, err
		}
		children = append(children, s)
	}
	return searcher.NewDisjunctionMax(children, q.TieBreak), nil
}

// PhraseQuery matches documents where Terms occur, in order, within Slop
// positions of each other (spec §4.6's PhraseQuery). Slop 0 requires the
// terms to be exactly consecutive.
type PhraseQuery struct {
	Field string
	Terms []string
	Slop  int
}

func NewPhraseQuery(field string, slop int, terms ...string) *PhraseQuery {
	return &PhraseQuery{Field: field, Terms: terms, Slop: slop}
}

func (q *PhraseQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	if len(q.Terms) == 0 {
		return nil, fmt.Errorf("weft: %w: PhraseQuery requires at least one term", ErrQueryError)
	}
	phraseOpts := opts
	phraseOpts.IncludePositions = true
	children := make([]search.Searcher, len(q.Terms))
	offsets := make([]int, len(q.Terms))
	for i, term := range q.Terms {
		ts, err := searcher.NewTermSearcher(reader, q.Field, term, sim, 1.0, phraseOpts)
		if err != nil {
			return nil, fmt.Errorf("weft: %w: %v", ErrQueryError, err)
		}
		children[i] = ts.WithPhraseSlot(i)
		offsets[i] = i
	}
	return searcher.NewPhrase(children, offsets, q.Slop), nil
}

// EveryQuery matches every live document with a constant score (spec
// §4.6's MatchAll).
type EveryQuery struct{}

func (EveryQuery) Searcher(reader search.Reader, _ similarity.Similarity, _ search.SearcherOptions) (search.Searcher, error) {
	return searcher.NewEverything(reader.FullSize(), reader.Deleted()), nil
}

// ConstantScoreQuery wraps Query, discarding whatever score it computed and
// substituting Score for every match (spec §4.6's filter-only use case: a
// clause that should gate results without affecting ranking).
type ConstantScoreQuery struct {
	Query Query
	Score float64
}

func NewConstantScoreQuery(inner Query, score float64) *ConstantScoreQuery {
	return &ConstantScoreQuery{Query: inner, Score: score}
}

func (q *ConstantScoreQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	inner, err := q.Query.Searcher(reader, sim, opts)
	if err != nil {
		return nil, err
	}
	return &constantScoreSearcher{inner: inner, score: q.Score}, nil
}

type constantScoreSearcher struct {
	inner search.Searcher
	score float64
}

func (c *constantScoreSearcher) Count() uint64 { return c.inner.Count() }
func (c *constantScoreSearcher) Min() uint64    { return c.inner.Min() }
func (c *constantScoreSearcher) Size() int      { return c.inner.Size() }
func (c *constantScoreSearcher) Close() error   { return c.inner.Close() }

func (c *constantScoreSearcher) rescore(dm *search.DocumentMatch) *search.DocumentMatch {
	if dm != nil {
		dm.Score = c.score
	}
	return dm
}

func (c *constantScoreSearcher) Next(ctx *search.Context) (*search.DocumentMatch, error) {
	dm, err := c.inner.Next(ctx)
	return c.rescore(dm), err
}

func (c *constantScoreSearcher) Advance(ctx *search.Context, docNum uint64) (*search.DocumentMatch, error) {
	dm, err := c.inner.Advance(ctx, docNum)
	return c.rescore(dm), err
}

// sortCheapestFirst reorders children ascending by Count(), the same
// heuristic bluge's conjunction construction applies so the cursor-advance
// loop's early disagreements are driven by the searcher likeliest to skip
// the furthest ahead.
func sortCheapestFirst(children []search.Searcher) {
	for i := 1; i < len(children); i++ {
		for j := i; j > 0 && children[j].Count() < children[j-1].Count(); j-- {
			children[j], children[j-1] = children[j-1], children[j]
		}
	}
}

// expandTerms walks field's term dictionary and returns the terms accepted
// by accept, bounded by defaultTermExpansionLimit.
func expandTerms(reader search.Reader, field string, accept func(term []byte) bool) ([]string, error) {
	dict, err := reader.Dictionary(field)
	if err != nil {
		return nil, err
	}
	if dict == nil {
		return nil, nil
	}
	it, err := dict.Iterator(nil, nil)
	if err != nil {
		return nil, err
	}
	var terms []string
	for it.Next() {
		if accept(it.Term()) {
			terms = append(terms, string(it.Term()))
			if len(terms) > defaultTermExpansionLimit {
				return nil, ErrTooManyTerms
			}
		}
	}
	return terms, nil
}

func expandSearcher(reader search.Reader, field string, terms []string, sim similarity.Similarity, boost float64, opts search.SearcherOptions) (search.Searcher, error) {
	if len(terms) == 0 {
		return searcher.MatchNone{}, nil
	}
	children := make([]search.Searcher, 0, len(terms))
	for _, t := range terms {
		s, err := termSearcher(reader, field, t, sim, boost, opts)
		if err != nil {
			return nil, err
		}
		children = append(children, s)
	}
	return searcher.NewDisjunction(children, 1), nil
}

// PrefixQuery matches documents containing any term in field starting with
// Prefix (spec §4.6's PrefixQuery).
type PrefixQuery struct {
	Field  string
	Prefix string
	Boost  float64
}

func NewPrefixQuery(field, prefix string) *PrefixQuery {
	return &PrefixQuery{Field: field, Prefix: prefix, Boost: 1.0}
}

func (q *PrefixQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	prefix := []byte(q.Prefix)
	terms, err := expandTerms(reader, q.Field, func(term []byte) bool {
		return len(term) >= len(prefix) && string(term[:len(prefix)]) == q.Prefix
	})
	if err != nil {
		return nil, fmt.Errorf("weft: prefix query on %q: %w", q.Field, err)
	}
	return expandSearcher(reader, q.Field, terms, sim, q.Boost, opts)
}

// WildcardQuery matches documents containing any term in field matching
// Pattern, a glob with '*' (any run of characters) and '?' (any single
// character) (spec §4.6's WildcardQuery). It is implemented as a full
// dictionary scan rather than an FST-driven automaton walk: hand-rolling a
// correct vellum.Automaton for glob matching without being able to run it
// risked a subtly wrong DFA, so this trades dictionary-scan cost for
// certainty.
type WildcardQuery struct {
	Field   string
	Pattern string
	Boost   float64
}

func NewWildcardQuery(field, pattern string) *WildcardQuery {
	return &WildcardQuery{Field: field, Pattern: pattern, Boost: 1.0}
}

func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var re []byte
	re = append(re, '^')
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			re = append(re, '.', '*')
		case '?':
			re = append(re, '.')
		default:
			re = append(re, regexp.QuoteMeta(string(c))...)
		}
	}
	re = append(re, '$')
	return regexp.Compile(string(re))
}

func (q *WildcardQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	re, err := globToRegexp(q.Pattern)
	if err != nil {
		return nil, fmt.Errorf("weft: %w: bad wildcard pattern %q: %v", ErrQueryError, q.Pattern, err)
	}
	terms, err := expandTerms(reader, q.Field, func(term []byte) bool { return re.Match(term) })
	if err != nil {
		return nil, fmt.Errorf("weft: wildcard query on %q: %w", q.Field, err)
	}
	return expandSearcher(reader, q.Field, terms, sim, q.Boost, opts)
}

// RegexQuery matches documents containing any term in field matching the
// regular expression Pattern (spec §4.6's RegexQuery), anchored at both
// ends the way a term-level regex match is normally expected to behave.
type RegexQuery struct {
	Field   string
	Pattern string
	Boost   float64
}

func NewRegexQuery(field, pattern string) *RegexQuery {
	return &RegexQuery{Field: field, Pattern: pattern, Boost: 1.0}
}

func (q *RegexQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	re, err := regexp.Compile("^(?:" + q.Pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("weft: %w: bad regex %q: %v", ErrQueryError, q.Pattern, err)
	}
	terms, err := expandTerms(reader, q.Field, func(term []byte) bool { return re.Match(term) })
	if err != nil {
		return nil, fmt.Errorf("weft: regex query on %q: %w", q.Field, err)
	}
	return expandSearcher(reader, q.Field, terms, sim, q.Boost, opts)
}

// RangeQuery matches documents containing a term in field lexicographically
// between Min and Max, inclusive/exclusive per MinInclusive/MaxInclusive
// (spec §4.6's RangeQuery). NumericRangeQuery and DateRangeQuery build one
// of these with package numeric's sortable encoding as the bounds, so the
// same dictionary-range-iteration machinery serves both text and numeric
// ranges.
type RangeQuery struct {
	Field                      string
	Min, Max                   []byte
	MinInclusive, MaxInclusive bool
	Boost                      float64
}

// NewRangeQuery builds a lexical range query over raw term bytes. A nil
// Min or Max leaves that side unbounded.
func NewRangeQuery(field string, min, max []byte, minInclusive, maxInclusive bool) *RangeQuery {
	return &RangeQuery{Field: field, Min: min, Max: max, MinInclusive: minInclusive, MaxInclusive: maxInclusive, Boost: 1.0}
}

// NewNumericRangeQuery builds a RangeQuery over a NUMERIC field's sortable
// encoding, matching documents with min <= value < max.
func NewNumericRangeQuery(field string, min, max float64) *RangeQuery {
	return NewRangeQuery(field, numeric.EncodeFloat64(min), numeric.EncodeFloat64(max), true, false)
}

// NewDateRangeQuery builds a RangeQuery over a DATETIME field's sortable
// encoding, matching documents with min <= value < max.
func NewDateRangeQuery(field string, min, max time.Time) *RangeQuery {
	return NewRangeQuery(field, numeric.EncodeInt64(min.UnixNano()), numeric.EncodeInt64(max.UnixNano()), true, false)
}

func (q *RangeQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	terms, err := expandTerms(reader, q.Field, func(term []byte) bool {
		if q.Min != nil {
			cmp := compareBytes(term, q.Min)
			if cmp < 0 || (cmp == 0 && !q.MinInclusive) {
				return false
			}
		}
		if q.Max != nil {
			cmp := compareBytes(term, q.Max)
			if cmp > 0 || (cmp == 0 && !q.MaxInclusive) {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("weft: range query on %q: %w", q.Field, err)
	}
	return expandSearcher(reader, q.Field, terms, sim, q.Boost, opts)
}

// NestedParentQuery matches the structural parent of every document Child
// matches, restricted to parents also matching ParentFilter (spec §4.6's
// NestedParent(parent_q, child_q)). It only finds parents within the same
// segment as their children, since grouping is a per-segment contiguity
// invariant (spec §4.9).
type NestedParentQuery struct {
	ParentFilter Query
	Child        Query
}

func NewNestedParentQuery(parentFilter, child Query) *NestedParentQuery {
	return &NestedParentQuery{ParentFilter: parentFilter, Child: child}
}

func (q *NestedParentQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	pf, err := q.ParentFilter.Searcher(reader, sim, opts)
	if err != nil {
		return nil, err
	}
	child, err := q.Child.Searcher(reader, sim, opts)
	if err != nil {
		pf.Close()
		return nil, err
	}
	return searcher.NewNestedParent(reader, pf, child)
}

// NestedChildrenQuery matches every document within a matching structural
// parent's child range, optionally narrowed by ChildFilter (spec §4.6's
// NestedChildren(parent_q, child_q); a nil ChildFilter returns the whole
// range).
type NestedChildrenQuery struct {
	Parent      Query
	ChildFilter Query
}

func NewNestedChildrenQuery(parent Query, childFilter Query) *NestedChildrenQuery {
	return &NestedChildrenQuery{Parent: parent, ChildFilter: childFilter}
}

func (q *NestedChildrenQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	p, err := q.Parent.Searcher(reader, sim, opts)
	if err != nil {
		return nil, err
	}
	var cf search.Searcher
	if q.ChildFilter != nil {
		cf, err = q.ChildFilter.Searcher(reader, sim, opts)
		if err != nil {
			p.Close()
			return nil, err
		}
	}
	return searcher.NewNestedChildren(reader, p, cf, reader.DocCount())
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// FuzzyTermQuery matches documents containing any term in field within
// Fuzziness edit distance of Term (spec §4.6's FuzzyTerm), driven by a
// vellum Levenshtein automaton walked directly against the FST rather than
// a dictionary scan, since the examples' vellum dependency ships exactly
// this automaton (grounded on blevesearch/vellum/levenshtein).
type FuzzyTermQuery struct {
	Field     string
	Term      string
	Fuzziness int
	Boost     float64
}

func NewFuzzyTermQuery(field, term string, fuzziness int) *FuzzyTermQuery {
	return &FuzzyTermQuery{Field: field, Term: term, Fuzziness: fuzziness, Boost: 1.0}
}

func (q *FuzzyTermQuery) Searcher(reader search.Reader, sim similarity.Similarity, opts search.SearcherOptions) (search.Searcher, error) {
	dict, err := reader.Dictionary(q.Field)
	if err != nil {
		return nil, err
	}
	if dict == nil {
		return searcher.MatchNone{}, nil
	}
	edits := uint8(q.Fuzziness)
	builder, err := levenshtein.NewLevenshteinAutomatonBuilder(edits, true)
	if err != nil {
		return nil, fmt.Errorf("weft: building fuzzy automaton: %w", err)
	}
	dfa, err := builder.BuildDfa(q.Term, edits)
	if err != nil {
		return nil, fmt.Errorf("weft: building fuzzy automaton for %q: %w", q.Term, err)
	}
	it, err := dict.Automaton(dfa, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("weft: fuzzy query on %q: %w", q.Field, err)
	}
	var terms []string
	for it.Next() {
		terms = append(terms, string(it.Term()))
		if len(terms) > defaultTermExpansionLimit {
			return nil, ErrTooManyTerms
		}
	}
	return expandSearcher(reader, q.Field, terms, sim, q.Boost, opts)
}
