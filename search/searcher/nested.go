package searcher

import (
	"context"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/weftsearch/weft/search"
)

// GroupParentField is the reserved doc-values column Writer.Group writes a
// single byte into (1 for the parent document, 0 for each child), marking
// the structural contiguous-block invariant spec §4.9's Nested queries
// depend on: "when a parent and its children were indexed, they were
// added as a group... the writer emits them into one segment in
// contiguous docnums and marks the parent-set as a bitmap." It is a
// reserved field name, not a user-visible schema field.
const GroupParentField = "$group_parent"

// groupParents returns the sorted, segment-local doc numbers the writer
// marked as structural group parents, read from reader's GroupParentField
// column (absent entirely in an index with no Writer.Group calls).
func groupParents(reader search.Reader) ([]uint64, error) {
	col, err := reader.Column(GroupParentField)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, nil
	}
	n := col.Len()
	parents := make([]uint64, 0, n/4+1)
	for i := uint64(0); i < n; i++ {
		v, err := col.Value(i)
		if err != nil {
			return nil, err
		}
		if len(v) > 0 && v[0] == 1 {
			parents = append(parents, i)
		}
	}
	return parents, nil
}

// nearestParentAtOrBefore returns the largest entry in the ascending,
// sorted parents slice that is <= docNum, or (0, false) if none qualifies.
func nearestParentAtOrBefore(parents []uint64, docNum uint64) (uint64, bool) {
	i := sort.Search(len(parents), func(i int) bool { return parents[i] > docNum })
	if i == 0 {
		return 0, false
	}
	return parents[i-1], true
}

// nearestParentAfter returns the smallest entry in parents strictly
// greater than docNum, or (0, false) if docNum's group runs to the end of
// the segment.
func nearestParentAfter(parents []uint64, docNum uint64) (uint64, bool) {
	i := sort.Search(len(parents), func(i int) bool { return parents[i] > docNum })
	if i >= len(parents) {
		return 0, false
	}
	return parents[i], true
}

// materializeBitmap drains s (closing it) into a roaring.Bitmap of every
// doc number it matches. Nested combinators need full membership tests
// rather than a single forward sweep, so unlike every other combinator in
// this package they give up streaming in exchange for O(1) "is docnum in
// this query's result" checks (noted in DESIGN.md: nested queries are a
// structural join, not a ranked scan, so this cost is paid once per
// query, not per candidate).
func materializeBitmap(s search.Searcher) (*roaring.Bitmap, error) {
	bm := roaring.New()
	ctx := search.NewContext(context.Background())
	dm, err := s.Next(ctx)
	for dm != nil && err == nil {
		bm.Add(uint32(dm.Number))
		dm, err = s.Next(ctx)
	}
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return bm, err
}

// NestedParent matches the structural parent of every document child
// matches, provided that parent also satisfies parentFilter (spec §4.6's
// NestedParent(parent_q, child_q); "parent_q" here narrows which
// structural parents qualify, e.g. Term(kind,"class")). It cannot span
// segments: reader, parentFilter, and child must all come from the same
// segment (spec §4.9's nested-group contiguity limitation).
type NestedParent struct {
	parents      []uint64
	parentFilter *roaring.Bitmap
	child        search.Searcher

	emitted bool
	last    uint64
	done    bool
}

// NewNestedParent builds a NestedParent searcher. It fully drains
// parentFilter up front (see materializeBitmap); child is driven lazily.
func NewNestedParent(reader search.Reader, parentFilter, child search.Searcher) (*NestedParent, error) {
	parents, err := groupParents(reader)
	if err != nil {
		child.Close()
		parentFilter.Close()
		return nil, err
	}
	bm, err := materializeBitmap(parentFilter)
	if err != nil {
		child.Close()
		return nil, err
	}
	return &NestedParent{parents: parents, parentFilter: bm, child: child}, nil
}

func (n *NestedParent) Count() uint64 { return n.parentFilter.GetCardinality() }

func (n *NestedParent) Min() uint64 {
	if len(n.parents) == 0 {
		return ^uint64(0)
	}
	return n.parents[0]
}

func (n *NestedParent) Size() int    { return 32 }
func (n *NestedParent) Close() error { return n.child.Close() }

func (n *NestedParent) Next(ctx *search.Context) (*search.DocumentMatch, error) {
	if n.done {
		return nil, nil
	}
	for {
		dm, err := n.child.Next(ctx)
		if err != nil {
			return nil, err
		}
		if dm == nil {
			n.done = true
			return nil, nil
		}
		childDoc := dm.Number
		ctx.Put(dm)

		parent, ok := nearestParentAtOrBefore(n.parents, childDoc)
		if !ok || !n.parentFilter.Contains(uint32(parent)) {
			continue
		}
		if n.emitted && parent == n.last {
			continue
		}
		n.emitted = true
		n.last = parent
		out := ctx.Get()
		out.Number = parent
		out.Score = 1.0
		return out, nil
	}
}

func (n *NestedParent) Advance(ctx *search.Context, docNum uint64) (*search.DocumentMatch, error) {
	if n.emitted && !n.done && n.last >= docNum {
		out := ctx.Get()
		out.Number = n.last
		out.Score = 1.0
		return out, nil
	}
	for {
		dm, err := n.Next(ctx)
		if err != nil || dm == nil {
			return dm, err
		}
		if dm.Number >= docNum {
			return dm, nil
		}
		ctx.Put(dm)
	}
}

// NestedChildren is the inverse of NestedParent: for every structural
// parent matching the parent query, it emits every document in that
// parent's contiguous child range (the doc range up to, but excluding,
// the next structural parent, or end of segment) that also matches
// childFilter — or every document in the range when childFilter is nil
// (spec §4.9's "for each parent that matches, return the doc range
// between it and the next parent").
type NestedChildren struct {
	parents     []uint64
	parent      search.Searcher
	childFilter *roaring.Bitmap // nil means "every doc in range"
	totalDocs   uint64

	inRange bool
	cur     uint64
	curHi   uint64
	done    bool
}

// NewNestedChildren builds a NestedChildren searcher. childFilter may be
// nil (no per-child filtering within a matched parent's range).
func NewNestedChildren(reader search.Reader, parent search.Searcher, childFilter search.Searcher, totalDocs uint64) (*NestedChildren, error) {
	parents, err := groupParents(reader)
	if err != nil {
		parent.Close()
		if childFilter != nil {
			childFilter.Close()
		}
		return nil, err
	}
	var bm *roaring.Bitmap
	if childFilter != nil {
		bm, err = materializeBitmap(childFilter)
		if err != nil {
			parent.Close()
			return nil, err
		}
	}
	return &NestedChildren{parents: parents, parent: parent, childFilter: bm, totalDocs: totalDocs}, nil
}

func (n *NestedChildren) Count() uint64 { return n.totalDocs }

func (n *NestedChildren) Min() uint64 {
	if len(n.parents) == 0 {
		return ^uint64(0)
	}
	return n.parents[0] + 1
}

func (n *NestedChildren) Size() int    { return 32 }
func (n *NestedChildren) Close() error { return n.parent.Close() }

func (n *NestedChildren) Next(ctx *search.Context) (*search.DocumentMatch, error) {
	if n.done {
		return nil, nil
	}
	for {
		if n.inRange {
			for n.cur < n.curHi {
				d := n.cur
				n.cur++
				if n.childFilter != nil && !n.childFilter.Contains(uint32(d)) {
					continue
				}
				dm := ctx.Get()
				dm.Number = d
				dm.Score = 1.0
				return dm, nil
			}
			n.inRange = false
		}

		dm, err := n.parent.Next(ctx)
		if err != nil {
			return nil, err
		}
		if dm == nil {
			n.done = true
			return nil, nil
		}
		p := dm.Number
		ctx.Put(dm)

		i := sort.Search(len(n.parents), func(i int) bool { return n.parents[i] >= p })
		if i >= len(n.parents) || n.parents[i] != p {
			continue // p is not itself a structural parent; no child range
		}
		hi, ok := nearestParentAfter(n.parents, p)
		if !ok {
			hi = n.totalDocs
		}
		n.cur = p + 1
		n.curHi = hi
		n.inRange = true
	}
}

func (n *NestedChildren) Advance(ctx *search.Context, docNum uint64) (*search.DocumentMatch, error) {
	if !n.done && n.inRange && n.cur > 0 && n.cur-1 >= docNum {
		dm := ctx.Get()
		dm.Number = n.cur - 1
		dm.Score = 1.0
		return dm, nil
	}
	for {
		dm, err := n.Next(ctx)
		if err != nil || dm == nil {
			return dm, err
		}
		if dm.Number >= docNum {
			return dm, nil
		}
		ctx.Put(dm)
	}
}
