package similarity

import (
	"fmt"
	"math"

	"github.com/weftsearch/weft/search"
)

// FieldAware is implemented by a Similarity whose scorer selection varies
// by field (MultiWeighting's per-field model table). TermSearcher checks
// for this optional interface before calling Scorer so that field-specific
// dispatch doesn't have to be threaded through the Similarity interface
// every other implementation (BM25F, Constant, TFIDF, ...) ignores.
type FieldAware interface {
	ForField(field string) Similarity
}

// Frequency scores a posting by its raw, unweighted term frequency: the
// simplest model spec §4.8 names, useful as a baseline or where the
// caller's own FieldTermLocations-based re-ranking makes BM25's
// saturation curve unnecessary.
type Frequency struct{}

type frequencyScorer struct{ fieldBoost float64 }

func (Frequency) Scorer(_, _ uint64, _ float64, fieldBoost float64) Scorer {
	return frequencyScorer{fieldBoost: fieldBoost}
}

func (s frequencyScorer) Score(termFreq uint32, _ uint64) float64 {
	return float64(termFreq) * s.fieldBoost
}

func (s frequencyScorer) Explain(termFreq uint32, fieldLen uint64) *search.Explanation {
	return &search.Explanation{
		Value:   s.Score(termFreq, fieldLen),
		Message: fmt.Sprintf("frequency, termFreq=%d, fieldBoost=%.4f", termFreq, s.fieldBoost),
	}
}

// TFIDF implements the classic (non-BM25) tf-idf scoring formula: sqrt(tf)
// * idf, with idf = 1 + log(docCount / (docFreq + 1)). Provided per spec
// §4.8 as an alternative to the default BM25F for callers whose
// collection statistics don't fit BM25's saturation assumptions (e.g.
// very short fields where length normalization misbehaves).
type TFIDF struct{}

type tfidfScorer struct {
	idf        float64
	fieldBoost float64
}

func (TFIDF) Scorer(docFreq, docCount uint64, _ float64, fieldBoost float64) Scorer {
	idf := 1 + math.Log(float64(docCount)/(float64(docFreq)+1))
	return &tfidfScorer{idf: idf, fieldBoost: fieldBoost}
}

func (s *tfidfScorer) Score(termFreq uint32, _ uint64) float64 {
	return math.Sqrt(float64(termFreq)) * s.idf * s.fieldBoost
}

func (s *tfidfScorer) Explain(termFreq uint32, fieldLen uint64) *search.Explanation {
	return &search.Explanation{
		Value:   s.Score(termFreq, fieldLen),
		Message: fmt.Sprintf("tf-idf, idf=%.4f, termFreq=%d, fieldBoost=%.4f", s.idf, termFreq, s.fieldBoost),
	}
}

// ReverseWeighting wraps another Similarity and negates its scores,
// inverting the ranking order it would otherwise produce. Whoosh names
// this as a way to surface the *least* relevant matches first (e.g. to
// audit a corpus for documents barely touching a term); this module
// offers the same wrapper rather than asking every collector to support a
// separate "ascending score" mode.
type ReverseWeighting struct {
	Inner Similarity
}

type reverseScorer struct{ inner Scorer }

func (s ReverseWeighting) Scorer(docFreq, docCount uint64, avgFieldLen, fieldBoost float64) Scorer {
	return reverseScorer{inner: s.Inner.Scorer(docFreq, docCount, avgFieldLen, fieldBoost)}
}

func (s reverseScorer) Score(termFreq uint32, fieldLen uint64) float64 {
	return -s.inner.Score(termFreq, fieldLen)
}

func (s reverseScorer) Explain(termFreq uint32, fieldLen uint64) *search.Explanation {
	inner := s.inner.Explain(termFreq, fieldLen)
	return &search.Explanation{
		Value:    -inner.Value,
		Message:  "reverse of:",
		Children: []*search.Explanation{inner},
	}
}

// FunctionWeighting scores every posting with a user-supplied callback
// receiving the same (termFreq, fieldLen) matcher state every other
// Scorer sees, per spec §4.8's "user callback receiving matcher state".
// Fn is called once per Score/Explain, not cached, since the whole point
// is letting the caller define an arbitrary function of these two numbers
// (e.g. a step function, a field-length penalty curve bluge's own models
// don't express).
type FunctionWeighting struct {
	Fn func(termFreq uint32, fieldLen uint64) float64
}

type functionScorer struct {
	fn         func(termFreq uint32, fieldLen uint64) float64
	fieldBoost float64
}

func (s FunctionWeighting) Scorer(_, _ uint64, _ float64, fieldBoost float64) Scorer {
	return functionScorer{fn: s.Fn, fieldBoost: fieldBoost}
}

func (s functionScorer) Score(termFreq uint32, fieldLen uint64) float64 {
	return s.fn(termFreq, fieldLen) * s.fieldBoost
}

func (s functionScorer) Explain(termFreq uint32, fieldLen uint64) *search.Explanation {
	return &search.Explanation{
		Value:   s.Score(termFreq, fieldLen),
		Message: fmt.Sprintf("function weighting, termFreq=%d, fieldLen=%d", termFreq, fieldLen),
	}
}

// MultiWeighting dispatches to a different Similarity per field (spec
// §4.8's "per-field model selection"), falling back to Default for any
// field not named in ByField. TermSearcher resolves this via the
// FieldAware interface before calling Scorer, since Scorer itself has no
// field argument.
type MultiWeighting struct {
	Default Similarity
	ByField map[string]Similarity
}

func (m MultiWeighting) ForField(field string) Similarity {
	if sim, ok := m.ByField[field]; ok {
		return sim
	}
	return m.Default
}

// Scorer satisfies the Similarity interface for a caller that invokes
// MultiWeighting directly without going through ForField first (e.g. a
// Searcher built outside searcher.NewTermSearcher); it scores as the
// Default model, since no field is known at this call site.
func (m MultiWeighting) Scorer(docFreq, docCount uint64, avgFieldLen, fieldBoost float64) Scorer {
	return m.Default.Scorer(docFreq, docCount, avgFieldLen, fieldBoost)
}
