package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftsearch/weft/index/codec"
	"github.com/weftsearch/weft/search"
)

// fakeMatcher replays a fixed list of DocumentMatch values in ascending
// doc-number order, enough of search.Matcher for a Collector under test.
type fakeMatcher struct {
	hits []search.DocumentMatch
	pos  int
}

func (m *fakeMatcher) Next(ctx *search.Context) (*search.DocumentMatch, error) {
	if m.pos >= len(m.hits) {
		return nil, nil
	}
	dm := m.hits[m.pos]
	m.pos++
	return &dm, nil
}

func (m *fakeMatcher) Advance(ctx *search.Context, docNum uint64) (*search.DocumentMatch, error) {
	for m.pos < len(m.hits) && m.hits[m.pos].Number < docNum {
		m.pos++
	}
	return m.Next(ctx)
}

func (m *fakeMatcher) Count() uint64 { return uint64(len(m.hits)) }
func (m *fakeMatcher) Min() uint64   { return 0 }
func (m *fakeMatcher) Size() int     { return 8 }
func (m *fakeMatcher) Close() error  { return nil }

func groupColumn(t *testing.T, groups []string) *codec.Column {
	t.Helper()
	width := 0
	for _, g := range groups {
		if len(g) > width {
			width = len(g)
		}
	}
	b := codec.NewColumnBuilder(width)
	for _, g := range groups {
		padded := make([]byte, width)
		copy(padded, g)
		require.NoError(t, b.Add(padded))
	}
	col, err := codec.OpenColumn(b.Close())
	require.NoError(t, err)
	return col
}

// TestCollapse_LaterHigherScoreReplacesEarlierGroupMember exercises the
// case a naive "add to the wrapped TopN as each hit arrives" collapse
// implementation gets wrong: a later, higher-scoring document bumping an
// earlier one out of its group must not leave the earlier one stranded in
// the final ranked results.
func TestCollapse_LaterHigherScoreReplacesEarlierGroupMember(t *testing.T) {
	col := groupColumn(t, []string{"g", "g"})
	m := &fakeMatcher{hits: []search.DocumentMatch{
		{Number: 0, Score: 10},
		{Number: 1, Score: 20},
	}}

	inner := NewTopN(10)
	cc := NewCollapse(inner, col, 1)
	require.NoError(t, cc.Collect(context.Background(), m, search.SearcherOptions{}))

	hits := cc.Results()
	require.Len(t, hits, 1)
	assert.Equal(t, uint64(1), hits[0].Number)
	assert.Equal(t, 20.0, hits[0].Score)
	assert.Equal(t, 2, cc.Visited())
}

func TestCollapse_RespectsMaxPerGroupAcrossDistinctGroups(t *testing.T) {
	col := groupColumn(t, []string{"a", "b", "a", "b"})
	m := &fakeMatcher{hits: []search.DocumentMatch{
		{Number: 0, Score: 5},
		{Number: 1, Score: 9},
		{Number: 2, Score: 7},
		{Number: 3, Score: 1},
	}}

	inner := NewTopN(10)
	cc := NewCollapse(inner, col, 1)
	require.NoError(t, cc.Collect(context.Background(), m, search.SearcherOptions{}))

	hits := cc.Results()
	require.Len(t, hits, 2)
	assert.Equal(t, uint64(1), hits[0].Number)
	assert.Equal(t, uint64(2), hits[1].Number)
}

func TestCollapse_TrimsToCollectorSize(t *testing.T) {
	col := groupColumn(t, []string{"a", "b", "c"})
	m := &fakeMatcher{hits: []search.DocumentMatch{
		{Number: 0, Score: 5},
		{Number: 1, Score: 9},
		{Number: 2, Score: 7},
	}}

	inner := NewTopN(2)
	cc := NewCollapse(inner, col, 1)
	require.NoError(t, cc.Collect(context.Background(), m, search.SearcherOptions{}))

	hits := cc.Results()
	require.Len(t, hits, 2)
	assert.Equal(t, uint64(1), hits[0].Number)
	assert.Equal(t, uint64(2), hits[1].Number)
}
