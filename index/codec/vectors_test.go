package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorsRoundTrip(t *testing.T) {
	b := NewVectorsBuilder()
	b.Add(0, []VectorTerm{
		{Field: "body", Term: []byte("quick"), Positions: []uint32{1}},
		{Field: "body", Term: []byte("fox"), Positions: []uint32{3, 7}},
	})
	// doc 1 has no vector-bearing field at all.
	b.Add(2, []VectorTerm{
		{Field: "title", Term: []byte("turtle"), Positions: []uint32{0}},
	})

	v, err := OpenVectors(b.Close())
	require.NoError(t, err)

	terms, ok, err := v.Document(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, terms, 2)
	assert.Equal(t, "body", terms[0].Field)
	assert.Equal(t, "quick", string(terms[0].Term))
	assert.Equal(t, []uint32{1}, terms[0].Positions)
	assert.Equal(t, []uint32{3, 7}, terms[1].Positions)

	_, ok, err = v.Document(1)
	require.NoError(t, err)
	assert.False(t, ok)

	terms, ok, err = v.Document(2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, terms, 1)
	assert.Equal(t, "turtle", string(terms[0].Term))
}

func TestVectorsEmptyBlob(t *testing.T) {
	b := NewVectorsBuilder()
	v, err := OpenVectors(b.Close())
	require.NoError(t, err)
	_, ok, err := v.Document(0)
	require.NoError(t, err)
	assert.False(t, ok)
}
