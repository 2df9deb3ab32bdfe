package searcher

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/weftsearch/weft/search"
)

// Everything matches every live document in a segment with a constant
// score, backing spec §4.6's MatchAll (used for filter-only queries and
// "match everything, sort by date" style browsing).
type Everything struct {
	next    uint64
	total   uint64
	deleted *roaring.Bitmap
}

// NewEverything builds a searcher over segment-local doc numbers
// [0, totalDocs), skipping any doc number deleted contains. totalDocs must
// be the segment's full doc-number range (reader.FullSize()), not its live
// count: deleted is what excludes the no-longer-live ones from the range.
func NewEverything(totalDocs uint64, deleted *roaring.Bitmap) *Everything {
	return &Everything{total: totalDocs, deleted: deleted}
}

// Count returns an upper bound: the full range, including any deleted docs
// this searcher will actually skip over.
func (e *Everything) Count() uint64 { return e.total }
func (e *Everything) Min() uint64   { return 0 }
func (e *Everything) Size() int     { return 16 }
func (e *Everything) Close() error  { return nil }

func (e *Everything) Next(ctx *search.Context) (*search.DocumentMatch, error) {
	for e.next < e.total {
		doc := e.next
		e.next++
		if e.deleted != nil && e.deleted.Contains(uint32(doc)) {
			continue
		}
		dm := ctx.Get()
		dm.Number = doc
		dm.Score = 1.0
		return dm, nil
	}
	return nil, nil
}

func (e *Everything) Advance(ctx *search.Context, docNum uint64) (*search.DocumentMatch, error) {
	if e.next > 0 && docNum < e.next && e.next <= e.total {
		if cur := e.next - 1; e.deleted == nil || !e.deleted.Contains(uint32(cur)) {
			dm := ctx.Get()
			dm.Number = cur
			dm.Score = 1.0
			return dm, nil
		}
	}
	if docNum > e.next {
		e.next = docNum
	}
	return e.Next(ctx)
}

// MatchNone matches no documents, the identity element for a Disjunction
// with zero live children (e.g. a term that doesn't occur in any segment).
type MatchNone struct{}

func (MatchNone) Count() uint64                                       { return 0 }
func (MatchNone) Min() uint64                                         { return ^uint64(0) }
func (MatchNone) Size() int                                           { return 0 }
func (MatchNone) Close() error                                        { return nil }
func (MatchNone) Next(*search.Context) (*search.DocumentMatch, error) { return nil, nil }
func (MatchNone) Advance(*search.Context, uint64) (*search.DocumentMatch, error) {
	return nil, nil
}
