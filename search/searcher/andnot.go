package searcher

import "github.com/weftsearch/weft/search"

// AndNot implements "must AND NOT mustNot": documents matching positive
// are returned unless negative also matches them, following the same
// advance-the-laggard-until-they-agree shape as Conjunction but inverting
// the agreement test on the negative side (spec §4.6's AndNotQuery).
type AndNot struct {
	positive search.Searcher
	negative search.Searcher
}

// NewAndNot builds an AndNot combinator; negative may be nil, in which
// case AndNot behaves exactly like positive.
func NewAndNot(positive, negative search.Searcher) *AndNot {
	return &AndNot{positive: positive, negative: negative}
}

func (a *AndNot) Count() uint64 { return a.positive.Count() }
func (a *AndNot) Min() uint64   { return a.positive.Min() }
func (a *AndNot) Size() int {
	n := a.positive.Size()
	if a.negative != nil {
		n += a.negative.Size()
	}
	return n
}

func (a *AndNot) Close() error {
	err := a.positive.Close()
	if a.negative != nil {
		if err2 := a.negative.Close(); err == nil {
			err = err2
		}
	}
	return err
}

// SetThreshold implements search.ThresholdAware. AndNot's score is
// exactly positive's score (negative only filters, never contributes), so
// the bound forwards to positive alone.
func (a *AndNot) SetThreshold(threshold float64) {
	search.SetThreshold(a.positive, threshold)
}

func (a *AndNot) excluded(ctx *search.Context, docNum uint64) (bool, error) {
	if a.negative == nil {
		return false, nil
	}
	dm, err := a.negative.Advance(ctx, docNum)
	if err != nil {
		return false, err
	}
	return dm != nil && dm.Number == docNum, nil
}

func (a *AndNot) Next(ctx *search.Context) (*search.DocumentMatch, error) {
	for {
		dm, err := a.positive.Next(ctx)
		if err != nil || dm == nil {
			return nil, err
		}
		ex, err := a.excluded(ctx, dm.Number)
		if err != nil {
			return nil, err
		}
		if !ex {
			return dm, nil
		}
	}
}

func (a *AndNot) Advance(ctx *search.Context, docNum uint64) (*search.DocumentMatch, error) {
	dm, err := a.positive.Advance(ctx, docNum)
	if err != nil || dm == nil {
		return nil, err
	}
	ex, err := a.excluded(ctx, dm.Number)
	if err != nil {
		return nil, err
	}
	if !ex {
		return dm, nil
	}
	return a.Next(ctx)
}

// AndMaybe implements "must AND boost if should also matches": every
// document the required Searcher matches is returned, with its score
// boosted by the optional Searcher's contribution when present (spec
// §4.6's AndMaybeQuery — required ranking signal plus an optional
// tie-breaker, the same role DisjunctionMax's tiebreak multiplier plays
// for alternate-field matches).
type AndMaybe struct {
	required search.Searcher
	optional search.Searcher
}

func NewAndMaybe(required, optional search.Searcher) *AndMaybe {
	return &AndMaybe{required: required, optional: optional}
}

func (a *AndMaybe) Count() uint64 { return a.required.Count() }
func (a *AndMaybe) Min() uint64   { return a.required.Min() }
func (a *AndMaybe) Size() int     { return a.required.Size() + a.optional.Size() }
func (a *AndMaybe) Close() error {
	err := a.required.Close()
	if err2 := a.optional.Close(); err == nil {
		err = err2
	}
	return err
}

// SetThreshold implements search.ThresholdAware. A document matches
// AndMaybe whenever required matches, regardless of optional, so the
// bound can only be safely pushed onto required; optional merely adds to
// a score that's already guaranteed, and tightening its own threshold
// could drop a contribution a document needed to clear the bar.
func (a *AndMaybe) SetThreshold(threshold float64) {
	search.SetThreshold(a.required, threshold)
}

func (a *AndMaybe) augment(ctx *search.Context, dm *search.DocumentMatch) (*search.DocumentMatch, error) {
	opt, err := a.optional.Advance(ctx, dm.Number)
	if err != nil {
		return nil, err
	}
	if opt != nil && opt.Number == dm.Number {
		dm.Score += opt.Score
		dm.FieldTermLocations = append(dm.FieldTermLocations, opt.FieldTermLocations...)
	}
	return dm, nil
}

func (a *AndMaybe) Next(ctx *search.Context) (*search.DocumentMatch, error) {
	dm, err := a.required.Next(ctx)
	if err != nil || dm == nil {
		return nil, err
	}
	return a.augment(ctx, dm)
}

func (a *AndMaybe) Advance(ctx *search.Context, docNum uint64) (*search.DocumentMatch, error) {
	dm, err := a.required.Advance(ctx, docNum)
	if err != nil || dm == nil {
		return nil, err
	}
	return a.augment(ctx, dm)
}
