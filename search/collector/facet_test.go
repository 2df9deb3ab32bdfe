package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftsearch/weft/search"
)

func pickRaw(_ uint64, raw []byte) string { return string(raw) }

func TestFacetCollector_CountsByBucket(t *testing.T) {
	col := groupColumn(t, []string{"a", "b", "a"})
	m := &fakeMatcher{hits: []search.DocumentMatch{
		{Number: 0, Score: 3},
		{Number: 1, Score: 1},
		{Number: 2, Score: 2},
	}}

	fc := NewFacetCollector(NewTopN(10), col, pickRaw, nil)
	require.NoError(t, fc.Collect(context.Background(), m, search.SearcherOptions{}))

	facets := fc.Facets()
	require.Len(t, facets, 2)
	assert.Equal(t, FacetCount{Term: "a", Count: 2}, facets[0])
	assert.Equal(t, FacetCount{Term: "b", Count: 1}, facets[1])
	assert.Nil(t, fc.Groups())
}

func TestFacetCollector_OrderedListFacetMap_PreservesVisitOrder(t *testing.T) {
	col := groupColumn(t, []string{"a", "b", "a"})
	m := &fakeMatcher{hits: []search.DocumentMatch{
		{Number: 0, Score: 3},
		{Number: 1, Score: 1},
		{Number: 2, Score: 2},
	}}

	fc := NewFacetCollector(NewTopN(10), col, pickRaw, NewOrderedListFacetMap())
	require.NoError(t, fc.Collect(context.Background(), m, search.SearcherOptions{}))

	groups := fc.Groups()
	assert.Equal(t, []uint64{0, 2}, groups["a"])
	assert.Equal(t, []uint64{1}, groups["b"])
}

func TestFacetCollector_UnorderedListFacetMap_TracksMembership(t *testing.T) {
	col := groupColumn(t, []string{"a", "b", "a"})
	m := &fakeMatcher{hits: []search.DocumentMatch{
		{Number: 0, Score: 3},
		{Number: 1, Score: 1},
		{Number: 2, Score: 2},
	}}

	fc := NewFacetCollector(NewTopN(10), col, pickRaw, NewUnorderedListFacetMap())
	require.NoError(t, fc.Collect(context.Background(), m, search.SearcherOptions{}))

	groups := fc.Groups()
	assert.ElementsMatch(t, []uint64{0, 2}, groups["a"])
	assert.ElementsMatch(t, []uint64{1}, groups["b"])
}

func TestFacetCollector_BestFacetMap_KeepsOnlyTopScoringPerBucket(t *testing.T) {
	col := groupColumn(t, []string{"a", "a", "a"})
	m := &fakeMatcher{hits: []search.DocumentMatch{
		{Number: 0, Score: 3},
		{Number: 1, Score: 9},
		{Number: 2, Score: 5},
	}}

	fc := NewFacetCollector(NewTopN(10), col, pickRaw, NewBestFacetMap(2))
	require.NoError(t, fc.Collect(context.Background(), m, search.SearcherOptions{}))

	groups := fc.Groups()
	assert.Equal(t, []uint64{1, 2}, groups["a"])
}

func TestCountFacetMap_TracksCountsNotMembership(t *testing.T) {
	cm := NewCountFacetMap()
	cm.Add("a", 0, 1.0)
	cm.Add("a", 1, 1.0)
	cm.Add("b", 2, 1.0)

	groups := cm.Groups()
	require.Contains(t, groups, "a")
	require.Contains(t, groups, "b")
	assert.Nil(t, groups["a"])
}
