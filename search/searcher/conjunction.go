package searcher

import "github.com/weftsearch/weft/search"

// Conjunction implements AND: a document matches only if every child
// matches it, summing their scores. The cursor-advance algorithm —
// repeatedly advancing the child currently behind the highest min-doc seen
// so far until all children agree — is lifted directly from bluge's
// ConjunctionSearcher.Next/advanceChild in search_conjunction.go.
type Conjunction struct {
	children  []search.Searcher
	current   []*search.DocumentMatch
	threshold float64
}

// NewConjunction builds an AND combinator over children. Children should
// be ordered cheapest-first (smallest Count() first) by the caller for
// best performance, matching bluge's unadorned-searcher-list optimization.
func NewConjunction(children []search.Searcher) *Conjunction {
	return &Conjunction{children: children, current: make([]*search.DocumentMatch, len(children))}
}

func (c *Conjunction) Count() uint64 {
	min := ^uint64(0)
	for _, ch := range c.children {
		if n := ch.Count(); n < min {
			min = n
		}
	}
	return min
}

func (c *Conjunction) Min() uint64 {
	max := uint64(0)
	for _, ch := range c.children {
		if m := ch.Min(); m > max {
			max = m
		}
	}
	return max
}

func (c *Conjunction) Size() int {
	n := 0
	for _, ch := range c.children {
		n += ch.Size()
	}
	return n
}

// SetThreshold implements search.ThresholdAware. Spec §4.7 defines an
// intersection's own block-max bound as the minimum of its children's
// bounds: every child must match for the conjunction to produce a
// document at all, so the weakest-bounded child limits what the combined
// score can reach in the current region. Tightening that shared bound
// also tightens every child's own pruning, so SetThreshold forwards it
// unchanged to each one.
func (c *Conjunction) SetThreshold(threshold float64) {
	c.threshold = threshold
	for _, ch := range c.children {
		search.SetThreshold(ch, threshold)
	}
}

func (c *Conjunction) Close() error {
	var firstErr error
	for _, ch := range c.children {
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// advanceAll drives every child to or past target, returning the
// documents reached and whether they all landed on the same doc number.
func (c *Conjunction) advanceAll(ctx *search.Context, target uint64) (bool, error) {
	for {
		agree := true
		maxDoc := target
		for i, ch := range c.children {
			dm := c.current[i]
			if dm == nil || dm.Number < target {
				var err error
				dm, err = ch.Advance(ctx, target)
				if err != nil {
					return false, err
				}
				c.current[i] = dm
			}
			if dm == nil {
				return false, nil
			}
			if dm.Number != target {
				agree = false
			}
			if dm.Number > maxDoc {
				maxDoc = dm.Number
			}
		}
		if agree {
			return true, nil
		}
		target = maxDoc
	}
}

func (c *Conjunction) buildMatch(ctx *search.Context) *search.DocumentMatch {
	dm := ctx.Get()
	dm.Number = c.current[0].Number
	var children []*search.Explanation
	for _, child := range c.current {
		dm.Score += child.Score
		if child.Explanation != nil {
			children = append(children, child.Explanation)
		}
		dm.FieldTermLocations = append(dm.FieldTermLocations, child.FieldTermLocations...)
	}
	if children != nil {
		dm.Explanation = &search.Explanation{Value: dm.Score, Message: "sum of:", Children: children}
	}
	return dm
}

func (c *Conjunction) Next(ctx *search.Context) (*search.DocumentMatch, error) {
	target := uint64(0)
	for _, dm := range c.current {
		if dm != nil && dm.Number+1 > target {
			target = dm.Number + 1
		}
	}
	ok, err := c.advanceAll(ctx, target)
	if err != nil || !ok {
		return nil, err
	}
	return c.buildMatch(ctx), nil
}

func (c *Conjunction) Advance(ctx *search.Context, docNum uint64) (*search.DocumentMatch, error) {
	ok, err := c.advanceAll(ctx, docNum)
	if err != nil || !ok {
		return nil, err
	}
	return c.buildMatch(ctx), nil
}
