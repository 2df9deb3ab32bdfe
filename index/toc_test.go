package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOCRoundTrip(t *testing.T) {
	toc := TOC{
		Generation: 3,
		Schema: []SchemaField{
			{Name: "title", Options: optIndexed | optStored, Boost: 1.5},
		},
		Segments: []TOCSegment{
			{ID: 0x1234, NumDocs: 10, Creator: "flush"},
		},
	}

	data := encodeTOC(toc)
	got, err := decodeTOC(data)
	require.NoError(t, err)
	assert.Equal(t, toc, got)
}

func TestTOCChecksumDetectsCorruption(t *testing.T) {
	toc := TOC{Generation: 1, Segments: []TOCSegment{{ID: 1, NumDocs: 1}}}
	data := encodeTOC(toc)

	// Flip a bit in the body, leaving the trailing checksum untouched.
	data[len(data)-9] ^= 0xFF

	_, err := decodeTOC(data)
	assert.ErrorIs(t, err, ErrTOCChecksum)
}

func TestWriter_SegmentIDsAreUniqueAcrossCommits(t *testing.T) {
	cfg := InMemoryOnlyConfig()
	w, err := OpenWriter(cfg)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, w.AddDocument(textDoc("t", "body", []byte{0, 1})))
		require.NoError(t, w.Commit(MergeNone))
	}

	snap := w.Snapshot()
	defer snap.Close()
	seen := map[uint64]bool{}
	for _, s := range snap.Segments() {
		assert.False(t, seen[s.ID()], "segment id %d reused across commits", s.ID())
		seen[s.ID()] = true
	}
	assert.Len(t, seen, 5)
}
