package weft

import (
	"errors"
	"fmt"

	"github.com/weftsearch/weft/analysis"
	"github.com/weftsearch/weft/index"
	"github.com/weftsearch/weft/search/similarity"
)

// Index is the top-level handle spec §6 describes (C10): it opens Writers
// and Readers/Searchers against one index.Config and tracks the
// generation they observe, mirroring the teacher's bluge.NewWriter/
// bluge.OpenReader convenience layer over index.Config.
type Index struct {
	cfg      index.Config
	analyzer analysis.Analyzer
	sim      similarity.Similarity
}

// New wraps cfg as an Index, ready for Writer/Reader/Searcher. It performs
// no I/O itself — opening happens lazily in Writer/Reader, matching spec
// §6's split between `create_index`/`open_index` (which this package does
// not distinguish: OpenWriter below creates generation 0 if none exists,
// same as bluge.OpenWriter) and the handle they both return.
func New(cfg index.Config) *Index {
	return &Index{cfg: cfg, analyzer: analysis.SimpleAnalyzer{}, sim: similarity.NewBM25F()}
}

// CreateIndex wraps cfg as an Index exactly as New does (spec §6's
// create_index); it performs no I/O, and the first Writer creates
// generation 0 if none exists. It does not error if an index
// already exists there — callers wanting strict "must not already exist"
// semantics should check Writer.Existed().
func CreateIndex(cfg index.Config) *Index { return New(cfg) }

// OpenIndex is CreateIndex's synonym at this layer (spec §6's open_index):
// the two differ only in caller intent, not in Go API shape, since both
// eventually call index.OpenWriter, which already handles "no TOC yet".
func OpenIndex(cfg index.Config) *Index { return New(cfg) }

// WithAnalyzer returns a copy of idx whose Writer analyzes any indexed
// field lacking its own TokenStream (Field.Analyze returning nil) with a,
// instead of the default SimpleAnalyzer (spec §1: analyzers are an
// external collaborator the core only consumes tokens from).
func (idx *Index) WithAnalyzer(a analysis.Analyzer) *Index {
	cp := *idx
	cp.analyzer = a
	return &cp
}

// WithSimilarity returns a copy of idx whose Searcher defaults to sim
// instead of BM25F (spec §4.8's pluggable Scorer).
func (idx *Index) WithSimilarity(sim similarity.Similarity) *Index {
	cp := *idx
	cp.sim = sim
	return &cp
}

// Writer opens the index's single writer (spec §6's Index.writer()),
// acquiring the advisory write lock; it fails with ErrLocked if another
// Writer already holds it.
func (idx *Index) Writer() (*Writer, error) {
	iw, err := index.OpenWriter(idx.cfg)
	if err != nil {
		if errors.Is(err, index.ErrLocked) {
			return nil, fmt.Errorf("weft: %w", ErrLocked)
		}
		if errors.Is(err, index.ErrIncompatibleFormat) {
			return nil, fmt.Errorf("weft: %w: %v", ErrIncompatibleFormat, err)
		}
		return nil, err
	}
	return newWriter(iw, idx.analyzer), nil
}

// Reader opens a point-in-time Reader over the index's latest committed
// generation (spec §6's Index.reader()), without ever touching the
// advisory write lock: it reads the current TOC straight off disk through
// index.OpenReader, so it succeeds even while another process (or this
// one) holds an open Writer (spec §5: "Readers do not lock"). Returns
// ErrEmptyIndex if the directory has never been committed to.
func (idx *Index) Reader() (*Reader, error) {
	ir, err := index.OpenReader(idx.cfg)
	if err != nil {
		if errors.Is(err, index.ErrEmptyIndex) {
			return nil, fmt.Errorf("weft: %w", ErrEmptyIndex)
		}
		if errors.Is(err, index.ErrIncompatibleFormat) {
			return nil, fmt.Errorf("weft: %w: %v", ErrIncompatibleFormat, err)
		}
		return nil, err
	}
	return newReader(ir, nil), nil
}

// Searcher opens a Reader and pairs it with sim (nil selects the Index's
// configured default, BM25F unless WithSimilarity overrode it) — spec
// §6's Index.searcher(weighting?).
func (idx *Index) Searcher(sim similarity.Similarity) (*Searcher, error) {
	r, err := idx.Reader()
	if err != nil {
		return nil, err
	}
	if sim == nil {
		sim = idx.sim
	}
	return NewSearcher(r, sim), nil
}
