// Package searcher implements the Matcher/Searcher algebra (C7): leaf term
// matchers and the Boolean/DisjunctionMax combinators built on top of
// them, grounded on the teacher's vendored
// bluge/search/searcher/search_conjunction.go for the cursor-advance
// contract and extended with the block-max quality pruning spec §4.3
// requires, which bluge's own searchers never implement (see DESIGN.md).
package searcher

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/weftsearch/weft/index/codec"
	"github.com/weftsearch/weft/search"
	"github.com/weftsearch/weft/search/similarity"
)

// TermSearcher is the leaf of the matcher algebra: it walks one term's
// block-encoded posting list, skipping whole blocks whose BlockHeader.MaxWeight
// cannot beat opts.ScoreThreshold (block-max pruning), decoding and
// scanning only the blocks that might still matter, and silently passing
// over any posting whose doc number reader.Deleted() now contains.
type TermSearcher struct {
	field string
	term  string

	pl      *codec.PostingsList
	deleted *roaring.Bitmap
	scorer  similarity.Scorer
	opts    search.SearcherOptions

	blockIdx   int
	block      []codec.Posting
	posInBlock int
	count      uint64

	// phraseSlot tags every FieldTermLocation this searcher emits, so a
	// Phrase combinator built over several TermSearchers can regroup
	// positions by which term produced them after Conjunction merges all
	// children's locations into one DocumentMatch.
	phraseSlot int
}

// WithPhraseSlot tags this searcher's emitted locations with slot, for use
// as one term of a Phrase query.
func (s *TermSearcher) WithPhraseSlot(slot int) *TermSearcher {
	s.phraseSlot = slot
	return s
}

// NewTermSearcher builds a TermSearcher for term in field, looking it up
// via dict and scoring with sim given the field's collection statistics.
func NewTermSearcher(reader search.Reader, field, term string, sim similarity.Similarity, fieldBoost float64, opts search.SearcherOptions) (*TermSearcher, error) {
	dict, err := reader.Dictionary(field)
	if err != nil {
		return nil, err
	}
	if dict == nil {
		return &TermSearcher{field: field, term: term, opts: opts}, nil
	}
	offset, found, err := dict.Lookup([]byte(term))
	if err != nil {
		return nil, err
	}
	if !found {
		return &TermSearcher{field: field, term: term, opts: opts}, nil
	}
	pl, err := reader.PostingsList(field, offset)
	if err != nil {
		return nil, err
	}
	stats := reader.FieldStats(field)
	effSim := sim
	if fa, ok := sim.(similarity.FieldAware); ok {
		effSim = fa.ForField(field)
	}
	scorer := effSim.Scorer(pl.DocFreq(), stats.DocCount, stats.AvgFieldLen, fieldBoost)

	ts := &TermSearcher{field: field, term: term, pl: pl, deleted: reader.Deleted(), scorer: scorer, opts: opts}
	ts.count = ts.computeCount()
	return ts, nil
}

func (s *TermSearcher) computeCount() uint64 {
	if s.pl == nil {
		return 0
	}
	return s.pl.DocFreq()
}

func (s *TermSearcher) Count() uint64 { return s.count }

func (s *TermSearcher) Min() uint64 {
	if s.pl == nil || s.pl.NumBlocks() == 0 {
		return ^uint64(0)
	}
	return uint64(s.pl.BlockHeader(0).MinDoc)
}

func (s *TermSearcher) Size() int { return 64 }

func (s *TermSearcher) Close() error { return nil }

// loadBlock decodes blockIdx if it hasn't been already and positions
// posInBlock at 0.
func (s *TermSearcher) loadBlock(idx int) error {
	postings, err := s.pl.DecodeBlock(idx)
	if err != nil {
		return err
	}
	s.block = postings
	s.blockIdx = idx
	s.posInBlock = 0
	return nil
}

// skippable reports whether block i can be skipped entirely because its
// best possible score is still below the active threshold (block-max
// pruning, spec §4.3).
func (s *TermSearcher) skippable(i int) bool {
	if s.opts.ScoreThreshold <= 0 {
		return false
	}
	hdr := s.pl.BlockHeader(i)
	return float64(hdr.MaxWeight) < s.opts.ScoreThreshold
}

// SetThreshold implements search.ThresholdAware: raising the active
// block-max bound lets skippable skip more blocks as a collector's top-K
// heap fills (spec §4.7's skip_to_quality). Thresholds only ever rise over
// one collection pass, so a lower value than what's already active is
// ignored.
func (s *TermSearcher) SetThreshold(threshold float64) {
	if threshold > s.opts.ScoreThreshold {
		s.opts.ScoreThreshold = threshold
	}
}

// isDeleted reports whether segment-local doc number doc was deleted after
// this postings list was written.
func (s *TermSearcher) isDeleted(doc uint32) bool {
	return s.deleted != nil && s.deleted.Contains(doc)
}

func (s *TermSearcher) buildMatch(ctx *search.Context, p codec.Posting) *search.DocumentMatch {
	dm := ctx.Get()
	dm.Number = uint64(p.DocNum)
	dm.Score = s.scorer.Score(p.Freq, uint64(p.FieldLen))
	if s.opts.Explain {
		dm.Explanation = s.scorer.Explain(p.Freq, uint64(p.FieldLen))
	}
	if s.opts.IncludePositions {
		for _, pos := range p.Positions {
			dm.FieldTermLocations = append(dm.FieldTermLocations, search.FieldTermLocation{
				Field: s.field, Term: s.term, Pos: int(pos), TermIndex: s.phraseSlot,
			})
		}
	}
	return dm
}

func (s *TermSearcher) Next(ctx *search.Context) (*search.DocumentMatch, error) {
	if s.pl == nil {
		return nil, nil
	}
	for {
		if s.block == nil || s.posInBlock >= len(s.block) {
			next := s.blockIdx
			if s.block != nil {
				next++
			}
			for next < s.pl.NumBlocks() && s.skippable(next) {
				next++
			}
			if next >= s.pl.NumBlocks() {
				s.block = nil
				return nil, nil
			}
			if err := s.loadBlock(next); err != nil {
				return nil, err
			}
		}
		p := s.block[s.posInBlock]
		s.posInBlock++
		if s.isDeleted(p.DocNum) {
			continue
		}
		return s.buildMatch(ctx, p), nil
	}
}

func (s *TermSearcher) Advance(ctx *search.Context, docNum uint64) (*search.DocumentMatch, error) {
	if s.pl == nil {
		return nil, nil
	}
	// A target at or before the current document leaves the cursor where it is.
	if s.block != nil && s.posInBlock > 0 {
		if cur := s.block[s.posInBlock-1]; uint64(cur.DocNum) >= docNum {
			return s.buildMatch(ctx, cur), nil
		}
	}
	// Find the first block whose range could contain docNum.
	start := s.blockIdx
	if s.block == nil {
		start = 0
	}
	for i := start; i < s.pl.NumBlocks(); i++ {
		hdr := s.pl.BlockHeader(i)
		if uint64(hdr.MaxDoc) < docNum {
			continue
		}
		if s.skippable(i) {
			continue
		}
		if s.block == nil || s.blockIdx != i {
			if err := s.loadBlock(i); err != nil {
				return nil, err
			}
		}
		for s.posInBlock < len(s.block) && uint64(s.block[s.posInBlock].DocNum) < docNum {
			s.posInBlock++
		}
		if s.posInBlock >= len(s.block) {
			continue
		}
		p := s.block[s.posInBlock]
		s.posInBlock++
		if s.isDeleted(p.DocNum) {
			return s.Next(ctx)
		}
		return s.buildMatch(ctx, p), nil
	}
	s.block = nil
	return nil, nil
}
