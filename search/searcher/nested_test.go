package searcher

import (
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftsearch/weft/index/codec"
	"github.com/weftsearch/weft/search"
)

// fakeListSearcher streams a fixed, ascending list of doc numbers, the
// simplest possible search.Searcher stand-in for driving NestedParent/
// NestedChildren in isolation without a full segment.
type fakeListSearcher struct {
	docs []uint64
	pos  int
}

func newFakeListSearcher(docs ...uint64) *fakeListSearcher { return &fakeListSearcher{docs: docs} }

func (f *fakeListSearcher) Count() uint64 { return uint64(len(f.docs)) }
func (f *fakeListSearcher) Min() uint64 {
	if f.pos >= len(f.docs) {
		return ^uint64(0)
	}
	return f.docs[f.pos]
}
func (f *fakeListSearcher) Size() int    { return 8 }
func (f *fakeListSearcher) Close() error { return nil }

func (f *fakeListSearcher) Next(ctx *search.Context) (*search.DocumentMatch, error) {
	if f.pos >= len(f.docs) {
		return nil, nil
	}
	dm := ctx.Get()
	dm.Number = f.docs[f.pos]
	dm.Score = 1.0
	f.pos++
	return dm, nil
}

func (f *fakeListSearcher) Advance(ctx *search.Context, docNum uint64) (*search.DocumentMatch, error) {
	for f.pos < len(f.docs) && f.docs[f.pos] < docNum {
		f.pos++
	}
	return f.Next(ctx)
}

// fakeGroupReader exposes only the GroupParentField column a test needs;
// every other search.Reader method is unused by nested.go and panics if
// ever called, flagging a test that outgrew this stub.
type fakeGroupReader struct {
	parentCol *codec.Column
}

func newFakeGroupReader(t *testing.T, isParent ...bool) *fakeGroupReader {
	t.Helper()
	b := codec.NewColumnBuilder(1)
	for _, p := range isParent {
		v := byte(0)
		if p {
			v = 1
		}
		require.NoError(t, b.Add([]byte{v}))
	}
	col, err := codec.OpenColumn(b.Close())
	require.NoError(t, err)
	return &fakeGroupReader{parentCol: col}
}

func (r *fakeGroupReader) Dictionary(string) (*codec.TermDictionary, error) { panic("unused") }
func (r *fakeGroupReader) PostingsList(string, uint64) (*codec.PostingsList, error) {
	panic("unused")
}
func (r *fakeGroupReader) Column(field string) (*codec.Column, error) {
	if field == GroupParentField {
		return r.parentCol, nil
	}
	return nil, nil
}
func (r *fakeGroupReader) StoredFields() (*codec.StoredFields, error) { panic("unused") }
func (r *fakeGroupReader) Vectors() (*codec.Vectors, error)            { panic("unused") }
func (r *fakeGroupReader) DocCount() uint64                           { return r.parentCol.Len() }
func (r *fakeGroupReader) FieldStats(string) search.FieldStats        { return search.FieldStats{} }
func (r *fakeGroupReader) Deleted() *roaring.Bitmap                   { return nil }
func (r *fakeGroupReader) FullSize() uint64                           { return r.parentCol.Len() }

func drain(t *testing.T, s search.Searcher) []uint64 {
	t.Helper()
	ctx := search.NewContext(nil)
	var out []uint64
	dm, err := s.Next(ctx)
	for dm != nil {
		require.NoError(t, err)
		out = append(out, dm.Number)
		dm, err = s.Next(ctx)
	}
	require.NoError(t, err)
	require.NoError(t, s.Close())
	return out
}

// Docs 0 and 4 are structural parents; [1,2,3] belong to 0's group and
// [5,6] belong to 4's group.
func groupFixture(t *testing.T) *fakeGroupReader {
	return newFakeGroupReader(t, true, false, false, false, true, false, false)
}

func TestNestedParent_MatchesOwningParent(t *testing.T) {
	reader := groupFixture(t)
	parentFilter := newFakeListSearcher(0, 4) // every structural parent qualifies
	child := newFakeListSearcher(2, 5)        // one child from each group

	n, err := NewNestedParent(reader, parentFilter, child)
	require.NoError(t, err)

	got := drain(t, n)
	assert.Equal(t, []uint64{0, 4}, got)
}

func TestNestedParent_DedupesMultipleChildrenInSameGroup(t *testing.T) {
	reader := groupFixture(t)
	parentFilter := newFakeListSearcher(0, 4)
	child := newFakeListSearcher(1, 2, 3) // three children, same group

	n, err := NewNestedParent(reader, parentFilter, child)
	require.NoError(t, err)

	got := drain(t, n)
	assert.Equal(t, []uint64{0}, got)
}

func TestNestedParent_FiltersOutNonQualifyingParent(t *testing.T) {
	reader := groupFixture(t)
	parentFilter := newFakeListSearcher(4) // only parent 4 qualifies
	child := newFakeListSearcher(2, 5)      // matches both groups' children

	n, err := NewNestedParent(reader, parentFilter, child)
	require.NoError(t, err)

	got := drain(t, n)
	assert.Equal(t, []uint64{4}, got)
}

func TestNestedChildren_ReturnsWholeRangeWithNoFilter(t *testing.T) {
	reader := groupFixture(t)
	parent := newFakeListSearcher(0)

	n, err := NewNestedChildren(reader, parent, nil, 7)
	require.NoError(t, err)

	got := drain(t, n)
	assert.Equal(t, []uint64{1, 2, 3}, got)
}

func TestNestedChildren_AppliesChildFilter(t *testing.T) {
	reader := groupFixture(t)
	parent := newFakeListSearcher(4)
	childFilter := newFakeListSearcher(6)

	n, err := NewNestedChildren(reader, parent, childFilter, 7)
	require.NoError(t, err)

	got := drain(t, n)
	assert.Equal(t, []uint64{6}, got)
}

func TestNestedChildren_NonParentDocHasNoRange(t *testing.T) {
	reader := groupFixture(t)
	parent := newFakeListSearcher(2) // doc 2 is a child, not a structural parent

	n, err := NewNestedChildren(reader, parent, nil, 7)
	require.NoError(t, err)

	got := drain(t, n)
	assert.Empty(t, got)
}
