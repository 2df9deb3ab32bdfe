package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftsearch/weft/analysis"
)

func tokens(words ...string) analysis.TokenStream {
	var ts analysis.TokenStream
	for i, w := range words {
		ts = append(ts, &analysis.Token{Term: []byte(w), Start: 0, End: len(w), Position: i, Boost: 1.0})
	}
	return ts
}

func textDoc(title, body string, score []byte) IndexableDocument {
	return IndexableDocument{Fields: []IndexableField{
		{Name: "title", Options: optIndexed | optStored, Tokens: tokens(title), Value: []byte(title), Boost: 1.0},
		{Name: "body", Options: optIndexed, Tokens: tokens(splitWords(body)...), Boost: 1.0},
		{Name: "score", Options: optSortable | optStored, SortValue: score, Value: score, Boost: 1.0},
	}}
}

func splitWords(s string) []string {
	var out []string
	start := -1
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != ' ' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, s[start:i])
			start = -1
		}
	}
	return out
}

func TestWriter_AddCommitReopen(t *testing.T) {
	cfg := InMemoryOnlyConfig()

	w, err := OpenWriter(cfg)
	require.NoError(t, err)
	assert.False(t, w.Existed())

	require.NoError(t, w.AddDocument(textDoc("alpha", "the quick fox", []byte{0, 1})))
	require.NoError(t, w.AddDocument(textDoc("beta", "the lazy dog", []byte{0, 2})))
	require.NoError(t, w.Commit(MergeNone))
	require.NoError(t, w.Close())

	w2, err := OpenWriter(cfg)
	require.NoError(t, err)
	assert.True(t, w2.Existed())
	assert.Equal(t, uint64(1), w2.Generation())

	snap := w2.Snapshot()
	defer snap.Close()
	assert.Equal(t, uint64(2), snap.LiveCount())
	require.NoError(t, w2.Close())
}

func TestWriter_DeleteDocumentAppliesOnCommit(t *testing.T) {
	cfg := InMemoryOnlyConfig()
	w, err := OpenWriter(cfg)
	require.NoError(t, err)

	require.NoError(t, w.AddDocument(textDoc("alpha", "one two", []byte{0, 1})))
	require.NoError(t, w.AddDocument(textDoc("beta", "two three", []byte{0, 2})))
	require.NoError(t, w.Commit(MergeNone))

	w.DeleteDocument(0)
	require.NoError(t, w.Commit(MergeNone))

	snap := w.Snapshot()
	defer snap.Close()
	assert.Equal(t, uint64(1), snap.LiveCount())
	require.NoError(t, w.Close())
}

func TestWriter_HeterogeneousSortableColumnsStayAligned(t *testing.T) {
	// Doc 0 has no "rank" field; doc 1 declares it for the first time; doc
	// 2 omits it again. The column must still be addressable doc-number
	// for doc-number across all three once flushed.
	cfg := InMemoryOnlyConfig()
	w, err := OpenWriter(cfg)
	require.NoError(t, err)

	require.NoError(t, w.AddDocument(IndexableDocument{Fields: []IndexableField{
		{Name: "title", Options: optIndexed, Tokens: tokens("a"), Boost: 1.0},
	}}))
	require.NoError(t, w.AddDocument(IndexableDocument{Fields: []IndexableField{
		{Name: "title", Options: optIndexed, Tokens: tokens("b"), Boost: 1.0},
		{Name: "rank", Options: optSortable, SortValue: []byte{0, 5}, Boost: 1.0},
	}}))
	require.NoError(t, w.AddDocument(IndexableDocument{Fields: []IndexableField{
		{Name: "title", Options: optIndexed, Tokens: tokens("c"), Boost: 1.0},
	}}))
	require.NoError(t, w.Commit(MergeNone))
	defer w.Close()

	snap := w.Snapshot()
	defer snap.Close()
	require.Len(t, snap.Segments(), 1)
	col, err := snap.Segments()[0].Column("rank")
	require.NoError(t, err)
	require.NotNil(t, col)
	assert.Equal(t, uint64(3), col.Len())

	v0, err := col.Value(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, v0)

	v1, err := col.Value(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 5}, v1)

	v2, err := col.Value(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, v2)
}

func TestOpenReader_LockFree(t *testing.T) {
	cfg := InMemoryOnlyConfig()
	w, err := OpenWriter(cfg)
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(textDoc("alpha", "one two", []byte{0, 1})))
	require.NoError(t, w.Commit(MergeNone))
	// Keep the write lock held while opening a lock-free Reader.
	r, err := OpenReader(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.DocCount())
	require.NoError(t, r.Close())
	require.NoError(t, w.Close())
}

func TestOpenReader_EmptyIndex(t *testing.T) {
	cfg := InMemoryOnlyConfig()
	_, err := OpenReader(cfg)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestWriter_VectorSurvivesFlushAndMerge(t *testing.T) {
	cfg := InMemoryOnlyConfig()
	w, err := OpenWriter(cfg)
	require.NoError(t, err)

	doc := func(body string) IndexableDocument {
		return IndexableDocument{Fields: []IndexableField{
			{Name: "body", Options: optIndexed | optVector, Tokens: tokens(splitWords(body)...), Boost: 1.0},
		}}
	}
	require.NoError(t, w.AddDocument(doc("the quick brown fox")))
	require.NoError(t, w.Commit(MergeNone))
	require.NoError(t, w.AddDocument(doc("a slow green turtle")))
	require.NoError(t, w.Commit(MergeNone))

	r := NewReader(w.Snapshot(), w.Snapshot)
	defer r.Close()

	v0, err := r.VectorTerms(0)
	require.NoError(t, err)
	require.NotEmpty(t, v0)
	terms0 := map[string]bool{}
	for _, vt := range v0 {
		terms0[string(vt.Term)] = true
	}
	assert.True(t, terms0["fox"])

	v1, err := r.VectorTerms(1)
	require.NoError(t, err)
	terms1 := map[string]bool{}
	for _, vt := range v1 {
		terms1[string(vt.Term)] = true
	}
	assert.True(t, terms1["turtle"])

	require.NoError(t, w.Commit(MergeForce))
	r2 := NewReader(w.Snapshot(), w.Snapshot)
	defer r2.Close()

	snap := r2.Snapshot()
	require.Len(t, snap.Segments(), 1)

	// After a full merge, doc numbers are reassigned in input order; both
	// vectors must still be reachable by their new (global) doc number.
	found := map[string]bool{}
	for docNum := uint64(0); docNum < snap.LiveCount(); docNum++ {
		v, err := r2.VectorTerms(docNum)
		require.NoError(t, err)
		for _, vt := range v {
			found[string(vt.Term)] = true
		}
	}
	assert.True(t, found["fox"])
	assert.True(t, found["turtle"])
	require.NoError(t, w.Close())
}

func TestWriter_SegmentsPerCommitShardsAcrossSegments(t *testing.T) {
	cfg := InMemoryOnlyConfig().WithSegmentsPerCommit(3)
	w, err := OpenWriter(cfg)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.NoError(t, w.AddDocument(IndexableDocument{Fields: []IndexableField{
			{Name: "title", Options: optIndexed, Tokens: tokens("doc"), Boost: 1.0},
		}}))
	}
	require.NoError(t, w.Commit(MergeNone))

	snap := w.Snapshot()
	defer snap.Close()
	require.Len(t, snap.Segments(), 3)
	assert.Equal(t, uint64(6), snap.LiveCount())
	require.NoError(t, w.Close())
}
