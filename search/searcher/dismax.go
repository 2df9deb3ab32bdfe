package searcher

import "github.com/weftsearch/weft/search"

// DisjunctionMax scores a document by its single best-matching child,
// with the remaining matching children contributing only tieBreak times
// their score (spec §4.6's DisjunctionMaxQuery — the classic "best field
// wins, other fields nudge ties" multi-field query shape). It reuses
// Disjunction's cursor-advance logic and only changes how matched children
// combine into a score.
type DisjunctionMax struct {
	*Disjunction
	tieBreak float64
}

// NewDisjunctionMax builds a DisjunctionMax over children with the given
// tie-break multiplier (0 disables all but the best match's contribution
// entirely; 1 makes it behave like a Disjunction with minMatch 1).
func NewDisjunctionMax(children []search.Searcher, tieBreak float64) *DisjunctionMax {
	return &DisjunctionMax{Disjunction: NewDisjunction(children, 1), tieBreak: tieBreak}
}

func (d *DisjunctionMax) rescore(dm *search.DocumentMatch, matched []*search.DocumentMatch) {
	best := 0.0
	rest := 0.0
	for _, m := range matched {
		if m.Score > best {
			rest += best
			best = m.Score
		} else {
			rest += m.Score
		}
	}
	dm.Score = best + d.tieBreak*rest
}

func (d *DisjunctionMax) Next(ctx *search.Context) (*search.DocumentMatch, error) {
	target := uint64(0)
	if d.started {
		target = d.last + 1
	}
	return d.Advance(ctx, target)
}

func (d *DisjunctionMax) Advance(ctx *search.Context, docNum uint64) (*search.DocumentMatch, error) {
	doc, matched, err := d.collectAt(ctx, docNum)
	if err != nil || matched == nil {
		return nil, err
	}
	d.started = true
	d.last = doc
	dm := buildDisjunctionMatch(ctx, doc, matched)
	d.rescore(dm, matched)
	return dm, nil
}
