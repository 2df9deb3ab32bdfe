package weft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftsearch/weft/index"
	"github.com/weftsearch/weft/search/collector"
	"github.com/weftsearch/weft/search/similarity"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	return New(index.InMemoryOnlyConfig())
}

func TestWriteAndSearch(t *testing.T) {
	idx := openTestIndex(t)

	w, err := idx.Writer()
	require.NoError(t, err)

	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewTextField("title", "the quick brown fox")).
		AddField(NewKeywordField("kind", "animal"))))
	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewTextField("title", "a slow green turtle")).
		AddField(NewKeywordField("kind", "animal"))))
	require.NoError(t, w.Commit(MergeNone))
	require.NoError(t, w.Close())

	s, err := idx.Searcher(nil)
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Search(SearchRequest{Query: NewTermQuery("title", "fox"), Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, uint64(0), res.Hits[0].Number)
}

func TestReaderIsLockFreeAgainstOpenWriter(t *testing.T) {
	idx := openTestIndex(t)

	w, err := idx.Writer()
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(NewDocument().AddField(NewTextField("title", "hello world"))))
	require.NoError(t, w.Commit(MergeNone))

	// w is still open (holds the write lock); Index.Reader must still
	// succeed (spec §5: "Readers do not lock").
	r, err := idx.Reader()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.DocCount())
	require.NoError(t, r.Close())
	require.NoError(t, w.Close())
}

func TestReaderOnEmptyIndex(t *testing.T) {
	idx := openTestIndex(t)
	_, err := idx.Reader()
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestUpdateDocumentReplacesByUniqueField(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	doc1 := NewDocument().
		AddField(NewKeywordField("id", "user-1").WithUnique()).
		AddField(NewTextField("name", "original name"))
	require.NoError(t, w.AddDocument(doc1))
	require.NoError(t, w.Commit(MergeNone))

	doc2 := NewDocument().
		AddField(NewKeywordField("id", "user-1").WithUnique()).
		AddField(NewTextField("name", "updated name"))
	require.NoError(t, w.UpdateDocument(doc2))
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	assert.Equal(t, uint64(1), r.DocCount())
}

func TestDeleteByTerm(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddDocument(NewDocument().AddField(NewKeywordField("kind", "a"))))
	require.NoError(t, w.AddDocument(NewDocument().AddField(NewKeywordField("kind", "b"))))
	require.NoError(t, w.Commit(MergeNone))

	require.NoError(t, w.DeleteByTerm("kind", "a"))
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	assert.Equal(t, uint64(1), r.DocCount())
}

// TestDeleteByTerm_RemovedDocumentIsInvisibleToSearch guards against a
// leaf searcher that still walks a deleted doc's posting: DocCount alone
// doesn't prove a term search, MatchAll, or NotQuery actually stop
// returning it.
func TestDeleteByTerm_RemovedDocumentIsInvisibleToSearch(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddDocument(NewDocument().AddField(NewKeywordField("kind", "a"))))
	require.NoError(t, w.AddDocument(NewDocument().AddField(NewKeywordField("kind", "b"))))
	require.NoError(t, w.Commit(MergeNone))

	require.NoError(t, w.DeleteByTerm("kind", "a"))
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	s := NewSearcher(r, nil)

	res, err := s.Search(SearchRequest{Query: NewTermQuery("kind", "a"), Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	res, err = s.Search(SearchRequest{Query: EveryQuery{}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	for _, h := range res.Hits {
		doc, err := r.Document(h.Number)
		require.NoError(t, err)
		require.NotNil(t, doc)
		v, ok := doc.Value("kind")
		require.True(t, ok)
		assert.Equal(t, "b", string(v))
	}

	res, err = s.Search(SearchRequest{Query: NewNotQuery(NewTermQuery("kind", "b")), Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

// TestDeleteByTerm_MultiSegmentDoesNotLeakDeletedAcrossSegments exercises
// MatchAll/NotQuery over several single-document segments (no merge), so a
// searcher that enumerates by the collection-wide live count instead of a
// segment's own local doc-number range would overrun into the next
// segment's doc numbers once rebased, rather than just skipping the
// deleted one.
func TestDeleteByTerm_MultiSegmentDoesNotLeakDeletedAcrossSegments(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	for _, kind := range []string{"a", "b", "c"} {
		require.NoError(t, w.AddDocument(NewDocument().AddField(NewKeywordField("kind", kind))))
		require.NoError(t, w.Commit(MergeNone))
	}

	require.NoError(t, w.DeleteByTerm("kind", "b"))
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	s := NewSearcher(r, nil)

	res, err := s.Search(SearchRequest{Query: EveryQuery{}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	var kinds []string
	for _, h := range res.Hits {
		doc, err := r.Document(h.Number)
		require.NoError(t, err)
		require.NotNil(t, doc)
		v, _ := doc.Value("kind")
		kinds = append(kinds, string(v))
	}
	assert.ElementsMatch(t, []string{"a", "c"}, kinds)
}

func TestGroupAndNestedQueries(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	parent := NewDocument().AddField(NewKeywordField("kind", "order"))
	child1 := NewDocument().
		AddField(NewKeywordField("kind", "line_item")).
		AddField(NewKeywordField("sku", "widget"))
	child2 := NewDocument().
		AddField(NewKeywordField("kind", "line_item")).
		AddField(NewKeywordField("sku", "gadget"))
	require.NoError(t, w.Group(parent, child1, child2))
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	assert.Equal(t, uint64(3), r.DocCount())

	s := NewSearcher(r, nil)
	nestedParent := NewNestedParentQuery(NewTermQuery("kind", "order"), NewTermQuery("sku", "widget"))
	res, err := s.Search(SearchRequest{Query: nestedParent, Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, uint64(0), res.Hits[0].Number)

	nestedChildren := NewNestedChildrenQuery(NewTermQuery("kind", "order"), nil)
	res, err = s.Search(SearchRequest{Query: nestedChildren, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 2)
}

func TestPhraseQuerySlopBoundary(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewTextField("content", "Mary had a little lamb"))))
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	s := NewSearcher(r, nil)

	res, err := s.Search(SearchRequest{Query: NewPhraseQuery("content", 1, "little", "lamb"), Limit: 10})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)

	res, err = s.Search(SearchRequest{Query: NewPhraseQuery("content", 1, "mary", "lamb"), Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	res, err = s.Search(SearchRequest{Query: NewPhraseQuery("content", 4, "mary", "lamb"), Limit: 10})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)
}

func TestPhraseQuery_ExactMatchAtZeroSlop(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewTextField("content", "the quick brown fox jumps"))))
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	s := NewSearcher(r, nil)

	res, err := s.Search(SearchRequest{Query: NewPhraseQuery("content", 0, "quick", "brown"), Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)

	res, err = s.Search(SearchRequest{Query: NewPhraseQuery("content", 0, "brown", "quick"), Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	res, err = s.Search(SearchRequest{Query: NewPhraseQuery("content", 0, "quick", "fox"), Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestPhraseQuery_ThreeTermExactMatchAtZeroSlop(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewTextField("content", "the quick brown fox jumps over"))))
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	s := NewSearcher(r, nil)

	res, err := s.Search(SearchRequest{Query: NewPhraseQuery("content", 0, "quick", "brown", "fox"), Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)

	res, err = s.Search(SearchRequest{Query: NewPhraseQuery("content", 0, "quick", "fox", "brown"), Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	res, err = s.Search(SearchRequest{Query: NewPhraseQuery("content", 0, "quick", "brown", "jumps"), Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestSortByNumericField(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	for _, price := range []float64{20, 10, 15} {
		require.NoError(t, w.AddDocument(NewDocument().
			AddField(NewKeywordField("kind", "item")).
			AddField(NewNumericField("price", price))))
	}
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	s := NewSearcher(r, nil)

	res, err := s.Search(SearchRequest{
		Query:    NewTermQuery("kind", "item"),
		Limit:    10,
		SortedBy: "price",
	})
	require.NoError(t, err)
	require.Len(t, res.Hits, 3)
	gotAsc := []uint64{res.Hits[0].Number, res.Hits[1].Number, res.Hits[2].Number}
	assert.Equal(t, []uint64{1, 2, 0}, gotAsc)

	res, err = s.Search(SearchRequest{
		Query:    NewTermQuery("kind", "item"),
		Limit:    10,
		SortedBy: "price",
		SortDesc: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Hits, 3)
	gotDesc := []uint64{res.Hits[0].Number, res.Hits[1].Number, res.Hits[2].Number}
	assert.Equal(t, []uint64{0, 2, 1}, gotDesc)
}

func TestSearchGroupedByFacetWithDocumentGroups(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewKeywordField("kind", "item")).
		AddField(NewKeywordField("color", "red"))))
	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewKeywordField("kind", "item")).
		AddField(NewKeywordField("color", "tan"))))
	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewKeywordField("kind", "item")).
		AddField(NewKeywordField("color", "red"))))
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	s := NewSearcher(r, nil)

	res, err := s.Search(SearchRequest{
		Query:     NewTermQuery("kind", "item"),
		Limit:     10,
		GroupedBy: "color",
		FacetMap:  FacetMapOrderedList,
	})
	require.NoError(t, err)
	require.Len(t, res.Facets, 2)
	assert.Equal(t, collector.FacetCount{Term: "red", Count: 2}, res.Facets[0])
	assert.Equal(t, collector.FacetCount{Term: "tan", Count: 1}, res.Facets[1])
	assert.Equal(t, []uint64{0, 2}, res.Groups["red"])
	assert.Equal(t, []uint64{1}, res.Groups["tan"])
}

func TestSearchGroupedByFacetDefaultsToNoGroups(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewKeywordField("kind", "item")).
		AddField(NewKeywordField("color", "red"))))
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	s := NewSearcher(r, nil)

	res, err := s.Search(SearchRequest{
		Query:     NewTermQuery("kind", "item"),
		Limit:     10,
		GroupedBy: "color",
	})
	require.NoError(t, err)
	require.Len(t, res.Facets, 1)
	assert.Nil(t, res.Groups)
}

func TestKeyTerms(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewTextField("body", "the quick brown fox jumps over the lazy dog").WithVector())))
	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewTextField("body", "the dog sleeps").WithVector())))
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	s := NewSearcher(r, nil)

	terms, err := s.KeyTerms(0, "body", 3)
	require.NoError(t, err)
	require.NotEmpty(t, terms)
	found := map[string]bool{}
	for _, kt := range terms {
		found[kt.Term] = true
	}
	// "fox" is unique to doc 0 and should outrank "the", which appears in
	// both documents and carries a lower idf.
	assert.True(t, found["fox"])
	assert.False(t, found["the"])
}

func TestCorrectQuery(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewTextField("body", "the quick brown fox"))))
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	s := NewSearcher(r, nil)

	corrected, suggestions, err := s.CorrectQuery(NewTermQuery("body", "foks"))
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "foks", suggestions[0].Original)
	assert.Equal(t, "fox", suggestions[0].Suggested)

	res, err := s.Search(SearchRequest{Query: corrected, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)

	// An in-dictionary term needs no correction.
	_, noSuggestions, err := s.CorrectQuery(NewTermQuery("body", "fox"))
	require.NoError(t, err)
	assert.Empty(t, noSuggestions)
}

func TestDeleteByQueryRemovesWholeGroup(t *testing.T) {
	idx := openTestIndex(t)
	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	parent := NewDocument().AddField(NewKeywordField("kind", "order")).AddField(NewKeywordField("id", "o1").WithUnique())
	child := NewDocument().AddField(NewKeywordField("kind", "line_item"))
	require.NoError(t, w.Group(parent, child))
	require.NoError(t, w.Commit(MergeNone))

	require.NoError(t, w.DeleteByTerm("id", "o1"))
	require.NoError(t, w.Commit(MergeNone))

	r := w.Reader()
	defer r.Close()
	assert.Equal(t, uint64(0), r.DocCount())
}

func TestSearchWithAlternativeSimilarity(t *testing.T) {
	idx := openTestIndex(t)

	w, err := idx.Writer()
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewTextField("title", "fox fox fox")).
		AddField(NewTextField("body", "a story about a fox"))))
	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewTextField("title", "turtle")).
		AddField(NewTextField("body", "fox"))))
	require.NoError(t, w.Commit(MergeNone))
	require.NoError(t, w.Close())

	s, err := idx.Searcher(similarity.Frequency{})
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Search(SearchRequest{Query: NewTermQuery("title", "fox"), Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, float64(3), res.Hits[0].Score)
}

func TestSearchWithMultiWeightingPerField(t *testing.T) {
	idx := openTestIndex(t)

	w, err := idx.Writer()
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(NewDocument().
		AddField(NewTextField("title", "fox fox")).
		AddField(NewTextField("body", "fox fox fox fox"))))
	require.NoError(t, w.Commit(MergeNone))
	require.NoError(t, w.Close())

	mw := similarity.MultiWeighting{
		Default: similarity.Frequency{},
		ByField: map[string]similarity.Similarity{"body": similarity.Frequency{}},
	}
	s, err := idx.Searcher(mw)
	require.NoError(t, err)
	defer s.Close()

	titleRes, err := s.Search(SearchRequest{Query: NewTermQuery("title", "fox"), Limit: 10})
	require.NoError(t, err)
	require.Len(t, titleRes.Hits, 1)
	assert.Equal(t, float64(2), titleRes.Hits[0].Score)

	bodyRes, err := s.Search(SearchRequest{Query: NewTermQuery("body", "fox"), Limit: 10})
	require.NoError(t, err)
	require.Len(t, bodyRes.Hits, 1)
	assert.Equal(t, float64(4), bodyRes.Hits[0].Score)
}
