package collector

import (
	"context"
	"sort"
	"time"

	"github.com/weftsearch/weft/index/codec"
	"github.com/weftsearch/weft/search"
)

// Collapse wraps a TopN collector so that at most maxPerGroup documents
// sharing the same collapse-field value survive, keeping the
// highest-scoring ones per group — spec §4.9's collapse collector, used
// to, e.g., show only the best-scoring chapter per book in a result page.
//
// Group membership for a given key can change as better-scoring documents
// arrive (a later hit can bump an earlier one out of its group), so
// Collapse keeps its own per-group bests during Collect and only builds
// the final ranked, size-bounded list in Results — feeding a hit straight
// into inner.size as it arrives would leave a since-evicted group member
// stranded in size's top-N with no way to take it back out.
type Collapse struct {
	inner       *TopN
	column      *codec.Column
	maxPerGroup int
	size        int
	groupBest   map[string][]Hit
	visited     int

	// globalBest tracks the overall top-size scores seen so far across
	// every group, ignoring the per-group cap, purely to derive a safe
	// block-max threshold (spec §4.7's skip_to_quality): since Results
	// only ever keeps size hits total, once globalBest already holds size
	// entries, no candidate scoring at or below its worst can appear in
	// the final output regardless of which group it falls in. It is a
	// looser bound than the per-group groupBest state actually needs
	// (groupBest can end up keeping a lower-scoring hit than globalBest's
	// worst, if its group has spare capacity under maxPerGroup), so this
	// only ever under-prunes, never incorrectly drops a surviving hit.
	globalBest *TopN
}

// NewCollapse builds a Collapse wrapper over inner, grouping by the raw
// bytes of column (nil disables collapsing and behaves like a plain
// TopN). inner is used only for its configured size and time limit; its
// own add/Results bookkeeping is not used for collapsed collection.
func NewCollapse(inner *TopN, column *codec.Column, maxPerGroup int) *Collapse {
	if maxPerGroup < 1 {
		maxPerGroup = 1
	}
	return &Collapse{
		inner: inner, column: column, maxPerGroup: maxPerGroup, size: inner.size,
		groupBest: make(map[string][]Hit), globalBest: NewTopN(inner.size),
	}
}

func (c *Collapse) Collect(ctx context.Context, matcher search.Matcher, opts search.SearcherOptions) error {
	sctx := search.NewContext(ctx)

	if worst, full := c.globalBest.worstScore(); full {
		search.SetThreshold(matcher, worst)
	}

	dm, err := matcher.Next(sctx)
	for dm != nil && err == nil {
		c.visited++
		if c.visited%CheckDoneEvery == 0 {
			select {
			case <-ctx.Done():
				c.inner.timedOut = true
				sctx.Put(dm)
				return nil
			default:
			}
			if c.inner.timeLimit > 0 && time.Since(c.inner.start) > c.inner.timeLimit {
				c.inner.timedOut = true
				sctx.Put(dm)
				return nil
			}
		}
		key := ""
		if c.column != nil {
			if raw, cerr := c.column.Value(dm.Number); cerr == nil {
				key = string(raw)
			}
		}
		hit := Hit{Number: dm.Number, Score: dm.Score, Explanation: dm.Explanation}
		c.globalBest.add(hit)
		group := c.groupBest[key]
		if len(group) < c.maxPerGroup {
			c.groupBest[key] = append(group, hit)
		} else {
			worstIdx, worst := 0, group[0].Score
			for i, h := range group {
				if h.Score < worst {
					worstIdx, worst = i, h.Score
				}
			}
			if hit.Score > worst {
				group[worstIdx] = hit
			}
		}
		if worst, full := c.globalBest.worstScore(); full {
			search.SetThreshold(matcher, worst)
		}
		sctx.Put(dm)
		dm, err = matcher.Next(sctx)
	}
	return err
}

// Results returns the collapsed, ranked hits: every group's surviving
// members, sorted by descending score (ties broken by ascending document
// number) and trimmed to the collector's configured size.
func (c *Collapse) Results() []Hit {
	var all []Hit
	for _, group := range c.groupBest {
		all = append(all, group...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Number < all[j].Number
	})
	if c.size > 0 && len(all) > c.size {
		all = all[:c.size]
	}
	return all
}

// Visited returns the number of documents this collector has seen.
func (c *Collapse) Visited() int { return c.visited }

// TimedOut reports whether Collect stopped early because of its time
// limit or the passed-in context's deadline.
func (c *Collapse) TimedOut() bool { return c.inner.timedOut }
