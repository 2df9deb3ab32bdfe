package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleAnalyzer_SplitsAndLowercases(t *testing.T) {
	ts := SimpleAnalyzer{}.Analyze([]byte("The Quick, Brown-Fox!"))
	require.Len(t, ts, 4)
	words := make([]string, len(ts))
	for i, tok := range ts {
		words[i] = string(tok.Term)
	}
	assert.Equal(t, []string{"the", "quick", "brown", "fox"}, words)
}

func TestSimpleAnalyzer_AssignsSequentialPositions(t *testing.T) {
	ts := SimpleAnalyzer{}.Analyze([]byte("a b c"))
	require.Len(t, ts, 3)
	for i, tok := range ts {
		assert.Equal(t, i, tok.Position)
	}
}

func TestSimpleAnalyzer_EmptyInput(t *testing.T) {
	ts := SimpleAnalyzer{}.Analyze([]byte(""))
	assert.Empty(t, ts)
}

func TestSimpleAnalyzer_OnlyPunctuation(t *testing.T) {
	ts := SimpleAnalyzer{}.Analyze([]byte("!!! --- ,,,"))
	assert.Empty(t, ts)
}
