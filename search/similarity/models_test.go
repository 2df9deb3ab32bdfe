package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrequency_ScoresByRawTermFreq(t *testing.T) {
	sc := Frequency{}.Scorer(1, 10, 5, 1.0)
	assert.Equal(t, float64(3), sc.Score(3, 100))
	assert.Equal(t, float64(7), sc.Score(7, 1))
}

func TestFrequency_AppliesFieldBoost(t *testing.T) {
	sc := Frequency{}.Scorer(1, 10, 5, 2.0)
	assert.Equal(t, float64(6), sc.Score(3, 100))
}

func TestTFIDF_RarerTermsScoreHigher(t *testing.T) {
	common := TFIDF{}.Scorer(9, 10, 5, 1.0)
	rare := TFIDF{}.Scorer(1, 10, 5, 1.0)
	assert.Greater(t, rare.Score(2, 10), common.Score(2, 10))
}

func TestTFIDF_MonotonicInTermFreq(t *testing.T) {
	sc := TFIDF{}.Scorer(2, 10, 5, 1.0)
	assert.Greater(t, sc.Score(4, 10), sc.Score(1, 10))
}

func TestReverseWeighting_NegatesInner(t *testing.T) {
	inner := BM25F{B: defaultB, K1: defaultK1}
	rev := ReverseWeighting{Inner: inner}
	a := inner.Scorer(2, 10, 5, 1.0)
	b := rev.Scorer(2, 10, 5, 1.0)
	assert.Equal(t, -a.Score(3, 5), b.Score(3, 5))
}

func TestFunctionWeighting_CallsFn(t *testing.T) {
	w := FunctionWeighting{Fn: func(termFreq uint32, fieldLen uint64) float64 {
		return float64(termFreq) * 10
	}}
	sc := w.Scorer(1, 10, 5, 1.0)
	assert.Equal(t, float64(40), sc.Score(4, 99))
}

func TestFunctionWeighting_AppliesFieldBoost(t *testing.T) {
	w := FunctionWeighting{Fn: func(termFreq uint32, fieldLen uint64) float64 {
		return float64(termFreq)
	}}
	sc := w.Scorer(1, 10, 5, 2.0)
	assert.Equal(t, float64(8), sc.Score(4, 99))
}

func TestMultiWeighting_DispatchesByField(t *testing.T) {
	m := MultiWeighting{
		Default: Frequency{},
		ByField: map[string]Similarity{
			"title": TFIDF{},
		},
	}

	assert.IsType(t, TFIDF{}, m.ForField("title"))
	assert.IsType(t, Frequency{}, m.ForField("body"))
}

func TestMultiWeighting_ScorerUsesDefaultDirectly(t *testing.T) {
	m := MultiWeighting{Default: Frequency{}, ByField: map[string]Similarity{"title": TFIDF{}}}
	sc := m.Scorer(1, 10, 5, 1.0)
	assert.Equal(t, float64(6), sc.Score(6, 5))
}
