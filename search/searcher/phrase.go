package searcher

import "github.com/weftsearch/weft/search"

// Phrase matches documents where its term searchers' positions occur
// within slop edit distance of the phrase's term order — slop 0 requires
// exact consecutive positions. It is built as a Conjunction over the
// per-term searchers (so it inherits their doc-level agreement logic) and
// adds a position-proximity check once a candidate document is found,
// which the teacher's own bluge package also layers as a second pass on
// top of a conjunction-like search (phrase searchers hold position-aware
// term searchers and post-filter, per the IncludePositions contract in
// SearcherOptions).
type Phrase struct {
	conj *Conjunction
	// offsets[i] is term i's position offset within the phrase: "quick
	// brown fox" has offsets 0,1,2; a skipped slot for an unpositioned
	// wildcard would use a larger offset.
	offsets []int
	slop    int
}

// NewPhrase builds a Phrase combinator. termSearchers must have been built
// with SearcherOptions.IncludePositions set so their DocumentMatch values
// carry FieldTermLocations to check proximity against.
func NewPhrase(termSearchers []search.Searcher, offsets []int, slop int) *Phrase {
	return &Phrase{conj: NewConjunction(termSearchers), offsets: offsets, slop: slop}
}

func (p *Phrase) Count() uint64 { return p.conj.Count() }
func (p *Phrase) Min() uint64   { return p.conj.Min() }
func (p *Phrase) Size() int     { return p.conj.Size() }
func (p *Phrase) Close() error  { return p.conj.Close() }

// SetThreshold implements search.ThresholdAware, forwarding to the
// underlying Conjunction (a phrase still requires every term present, so
// the same intersection block-max rule applies).
func (p *Phrase) SetThreshold(threshold float64) { p.conj.SetThreshold(threshold) }

// matchesProximity reports whether dm's per-term positions admit an
// assignment where, for every term i, its position minus offsets[i] lies
// at or after term 0's shifted position and at most slop beyond it.
func (p *Phrase) matchesProximity(dm *search.DocumentMatch) bool {
	if len(p.offsets) == 0 {
		return true
	}
	positions := make([][]uint32, len(p.offsets))
	for _, loc := range dm.FieldTermLocations {
		if loc.TermIndex < 0 || loc.TermIndex >= len(positions) {
			continue
		}
		adjusted := loc.Pos - p.offsets[loc.TermIndex]
		positions[loc.TermIndex] = append(positions[loc.TermIndex], uint32(adjusted))
	}
	for _, ps := range positions {
		if len(ps) == 0 {
			return false
		}
	}
	return MatchPositions(positions, p.slop)
}

// MatchPositions is the precise version of the proximity check, taking
// each term's position list already normalized by its phrase offset (so
// an exact, consecutive match collapses to the same value for every
// term), as matchesProximity above produces.
func MatchPositions(positions [][]uint32, slop int) bool {
	if len(positions) == 0 {
		return false
	}
	for _, base := range positions[0] {
		if matchesFrom(positions, base, slop) {
			return true
		}
	}
	return false
}

func matchesFrom(positions [][]uint32, base uint32, slop int) bool {
	for i := 1; i < len(positions); i++ {
		found := false
		for _, pos := range positions[i] {
			if d := int(pos) - int(base); d >= 0 && d <= slop {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (p *Phrase) Next(ctx *search.Context) (*search.DocumentMatch, error) {
	for {
		dm, err := p.conj.Next(ctx)
		if err != nil || dm == nil {
			return nil, err
		}
		if p.matchesProximity(dm) {
			return dm, nil
		}
	}
}

func (p *Phrase) Advance(ctx *search.Context, docNum uint64) (*search.DocumentMatch, error) {
	dm, err := p.conj.Advance(ctx, docNum)
	if err != nil || dm == nil {
		return nil, err
	}
	if p.matchesProximity(dm) {
		return dm, nil
	}
	return p.Next(ctx)
}
