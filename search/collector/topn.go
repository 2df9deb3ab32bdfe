// Package collector implements the collector algebra (C9): TopN with
// search-after pagination, a time-limited variant, and facet/collapse
// collectors layered on the same collectorStore shape. Grounded on the
// teacher's vendored bluge/search/collector/topn.go: the slice-to-heap
// switch once a result set grows past a threshold, and the periodic
// deadline check every CheckDoneEvery documents so a Collector doesn't pay
// a context.Err() call on every single candidate.
package collector

import (
	"container/heap"
	"context"
	"sort"
	"time"

	"github.com/weftsearch/weft/search"
)

// CheckDoneEvery mirrors bluge's constant of the same name: how many
// documents a Collector visits between checks of ctx.Done(), bounding how
// late a cancelled search notices without making every single document
// pay a channel-select's cost.
const CheckDoneEvery = 1024

// switchFromSliceToHeap mirrors bluge's constant of the same name: below
// this many results, a plain slice with linear "is this better than our
// current worst" scanning beats the overhead of heap operations; above it,
// a heap's O(log n) replace wins.
const switchFromSliceToHeap = 10

// Hit is one collected result, analogous to bluge's DocumentMatch once it
// has survived collection (as opposed to search.DocumentMatch, which is
// reused by the matcher tree and still holds a pool-borrowed value).
type Hit struct {
	Number      uint64
	Score       float64
	Explanation *search.Explanation
}

type hitHeap []Hit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score } // worst (smallest) at root
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TopN collects the size highest-scoring documents from a Matcher tree,
// optionally skipping every document at or before an "after" cursor for
// search-after pagination (spec §4.9).
type TopN struct {
	size int

	afterScore float64
	afterDoc   uint64
	hasAfter   bool

	slice []Hit
	h     *hitHeap

	visited    int
	timeLimit  time.Duration
	start      time.Time
	timedOut   bool
}

// NewTopN returns a collector for the top size results.
func NewTopN(size int) *TopN {
	return &TopN{size: size, slice: make([]Hit, 0, size)}
}

// NewTopNAfter returns a collector for the top size results strictly after
// (afterScore, afterDoc) in the collector's sort order, implementing
// search-after pagination exactly as bluge's NewTopNCollectorAfter does.
func NewTopNAfter(size int, afterScore float64, afterDoc uint64) *TopN {
	t := NewTopN(size)
	t.afterScore = afterScore
	t.afterDoc = afterDoc
	t.hasAfter = true
	return t
}

// WithTimeLimit bounds how long Collect runs; once exceeded, Collect
// returns the best results found so far along with ErrTimeLimit-wrapping
// behavior left to the caller (spec §7/§9's TimeLimitCollector).
func (t *TopN) WithTimeLimit(d time.Duration) *TopN {
	t.timeLimit = d
	return t
}

func (t *TopN) worstScore() (float64, bool) {
	if t.h != nil {
		if len(*t.h) < t.size {
			return 0, false
		}
		return (*t.h)[0].Score, true
	}
	if len(t.slice) < t.size {
		return 0, false
	}
	worst := t.slice[0].Score
	for _, h := range t.slice[1:] {
		if h.Score < worst {
			worst = h.Score
		}
	}
	return worst, true
}

func (t *TopN) add(hit Hit) {
	if t.h != nil {
		if len(*t.h) < t.size {
			heap.Push(t.h, hit)
			return
		}
		if hit.Score > (*t.h)[0].Score {
			heap.Pop(t.h)
			heap.Push(t.h, hit)
		}
		return
	}

	t.slice = append(t.slice, hit)
	if len(t.slice) > switchFromSliceToHeap {
		h := hitHeap(t.slice)
		heap.Init(&h)
		for len(h) > t.size {
			heap.Pop(&h)
		}
		t.h = &h
		t.slice = nil
		return
	}
	if len(t.slice) > t.size {
		worstIdx := 0
		for i, hh := range t.slice {
			if hh.Score < t.slice[worstIdx].Score {
				worstIdx = i
			}
		}
		t.slice = append(t.slice[:worstIdx], t.slice[worstIdx+1:]...)
	}
}

// Collect drains matcher, keeping the best size documents. It honors
// ctx's deadline, polling every CheckDoneEvery documents rather than on
// every single candidate. Each time the kept set's worst score rises, it
// calls search.SetThreshold on matcher (spec §4.9's "emits
// skip_to_quality(heap_min) to the matcher after each displacement"), so
// a matcher tree whose leaves and combinators implement
// search.ThresholdAware prunes more aggressively as the heap fills; a
// matcher already holding state from a previous segment's Collect call
// picks its threshold back up immediately, before scanning a single
// document, rather than waiting for its own first displacement.
func (t *TopN) Collect(ctx context.Context, matcher search.Matcher, opts search.SearcherOptions) error {
	t.start = time.Now()
	sctx := search.NewContext(ctx)

	if worst, full := t.worstScore(); full {
		search.SetThreshold(matcher, worst)
	}

	dm, err := matcher.Next(sctx)
	for dm != nil && err == nil {
		t.visited++
		if t.visited%CheckDoneEvery == 0 {
			select {
			case <-ctx.Done():
				t.timedOut = true
				return nil
			default:
			}
			if t.timeLimit > 0 && time.Since(t.start) > t.timeLimit {
				t.timedOut = true
				return nil
			}
		}

		if !t.hasAfter || dm.Score < t.afterScore || (dm.Score == t.afterScore && dm.Number > t.afterDoc) {
			if worst, full := t.worstScore(); !full || dm.Score > worst {
				t.add(Hit{Number: dm.Number, Score: dm.Score, Explanation: dm.Explanation})
				if worst, full := t.worstScore(); full {
					search.SetThreshold(matcher, worst)
				}
			}
		}

		sctx.Put(dm)
		dm, err = matcher.Next(sctx)
	}
	return err
}

// TimedOut reports whether Collect stopped early because of its time
// limit or the passed-in context's deadline.
func (t *TopN) TimedOut() bool { return t.timedOut }

// Results returns the collected hits sorted by descending score (ties
// broken by ascending document number, the spec §9 Open Question
// decision), matching the final reversal bluge's finalizeResults performs
// since the heap/slice store the worst-size invariant rather than sorted
// order.
func (t *TopN) Results() []Hit {
	var all []Hit
	if t.h != nil {
		all = []Hit(*t.h)
	} else {
		all = t.slice
	}
	out := make([]Hit, len(all))
	copy(out, all)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Number < out[j].Number
	})
	return out
}

// Total returns the number of documents visited, the count spec §4.9's
// TopNSearch result reports alongside the returned hit window.
func (t *TopN) Total() int { return t.visited }
