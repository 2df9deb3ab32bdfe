package index

import (
	"fmt"

	"github.com/weftsearch/weft/index/codec"
)

// mergeSegments reads every live document out of inputs (dropping deleted
// ones) and writes one new, deletion-free segment combining them, matching
// spec §4.5's merge policy contract: "reads N old segments and produces
// one new segment, dropping deleted docs in the process." It is grounded
// on the teacher's vendored ice/v2/merge.go shape (enumerate fields, merge
// per-field dictionaries, remap doc numbers) generalized to this module's
// own block-postings/column/stored-fields codec.
func mergeSegments(inputs []*SegmentSnapshot) ([]byte, uint64, error) {
	var fieldNames []string
	seen := make(map[string]bool)
	for _, seg := range inputs {
		for _, f := range seg.Fields() {
			if !seen[f] {
				seen[f] = true
				fieldNames = append(fieldNames, f)
			}
		}
	}

	// docMaps[i][oldLocal] = newGlobalWithinMergedSegment, or -1 if the
	// document was deleted and should be dropped.
	docMaps := make([][]int64, len(inputs))
	var totalLive uint64
	for i, seg := range inputs {
		full := seg.FullSize()
		m := make([]int64, full)
		for local := uint64(0); local < full; local++ {
			if seg.IsLive(uint32(local)) {
				m[local] = int64(totalLive)
				totalLive++
			} else {
				m[local] = -1
			}
		}
		docMaps[i] = m
	}

	b := codec.NewBuilder(int(totalLive))

	// Stored fields, vectors, and columns are appended strictly in
	// new-doc-number order, so every segment's live docs must be walked
	// before the next segment's, exactly the order docMaps assigned.
	for i, seg := range inputs {
		sf, err := seg.StoredFields()
		if err != nil {
			return nil, 0, fmt.Errorf("index: opening stored fields for merge: %w", err)
		}
		vecs, err := seg.Vectors()
		if err != nil {
			return nil, 0, fmt.Errorf("index: opening vectors for merge: %w", err)
		}
		full := seg.FullSize()
		for local := uint64(0); local < full; local++ {
			newLocal := docMaps[i][local]
			if newLocal < 0 {
				continue
			}
			var fields []codec.StoredField
			if sf != nil {
				fields, err = sf.Document(local)
				if err != nil {
					return nil, 0, fmt.Errorf("index: reading stored doc %d during merge: %w", local, err)
				}
			}
			b.AddStored(fields)
			if vecs != nil {
				if terms, ok, err := vecs.Document(local); err != nil {
					return nil, 0, fmt.Errorf("index: reading vector for doc %d during merge: %w", local, err)
				} else if ok {
					b.AddVectors(uint64(newLocal), terms)
				}
			}
		}
	}

	for _, field := range fieldNames {
		if err := mergeFieldColumn(b, inputs, docMaps, field); err != nil {
			return nil, 0, err
		}
		if err := mergeFieldPostings(b, inputs, docMaps, field); err != nil {
			return nil, 0, err
		}
		mergeFieldLengths(b, inputs, field)
	}

	out, err := b.Close()
	return out, totalLive, err
}

func mergeFieldLengths(b *codec.Builder, inputs []*SegmentSnapshot, field string) {
	// FieldLength aggregates are summed verbatim; deleted documents'
	// contributions are not subtracted since they were never broken out
	// per-document in the segment's header (spec §9's acceptable
	// approximation for a norm average, the same imprecision Lucene-family
	// engines tolerate by not re-deriving norms on delete).
	for _, seg := range inputs {
		sum, docs := seg.FieldLengthStats(field)
		if docs == 0 {
			continue
		}
		avg := uint32(sum / docs)
		for i := uint64(0); i < docs; i++ {
			b.AddFieldLength(field, avg)
		}
	}
}

func mergeFieldColumn(b *codec.Builder, inputs []*SegmentSnapshot, docMaps [][]int64, field string) error {
	width := -1
	for _, seg := range inputs {
		col, err := seg.Column(field)
		if err != nil {
			return fmt.Errorf("index: opening column %q during merge: %w", field, err)
		}
		if col != nil {
			width = columnWidth(col)
			break
		}
	}
	if width < 0 {
		return nil
	}
	b.SetColumnWidth(field, width)

	for i, seg := range inputs {
		col, err := seg.Column(field)
		if err != nil {
			return err
		}
		full := seg.FullSize()
		for local := uint64(0); local < full; local++ {
			if docMaps[i][local] < 0 {
				continue
			}
			if col == nil {
				b.AddColumnMissing(field)
				continue
			}
			v, err := col.Value(local)
			if err != nil {
				b.AddColumnMissing(field)
				continue
			}
			if err := b.AddColumnValue(field, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// columnWidth returns a column's fixed element width, as codec.Column's
// Width reports it.
func columnWidth(c *codec.Column) int {
	return c.Width()
}

func mergeFieldPostings(b *codec.Builder, inputs []*SegmentSnapshot, docMaps [][]int64, field string) error {
	// Collect every distinct term across all input segments' dictionaries
	// for this field via a k-way merge of their sorted term iterators.
	type src struct {
		seg    *SegmentSnapshot
		dict   *codec.TermDictionary
		it     *codec.DictIterator
		docMap []int64
		valid  bool
		term   []byte
	}
	var srcs []*src
	for i, seg := range inputs {
		dict, err := seg.Dictionary(field)
		if err != nil {
			return fmt.Errorf("index: opening dictionary %q during merge: %w", field, err)
		}
		if dict == nil {
			continue
		}
		it, err := dict.Iterator(nil, nil)
		if err != nil {
			return fmt.Errorf("index: iterating dictionary %q during merge: %w", field, err)
		}
		s := &src{seg: seg, dict: dict, it: it, docMap: docMaps[i]}
		s.valid = it.Next()
		if s.valid {
			s.term = append([]byte(nil), it.Term()...)
		}
		srcs = append(srcs, s)
	}

	for {
		// find the lexicographically smallest current term among sources
		var minTerm []byte
		for _, s := range srcs {
			if !s.valid {
				continue
			}
			if minTerm == nil || bytesLess(s.term, minTerm) {
				minTerm = s.term
			}
		}
		if minTerm == nil {
			break
		}

		for _, s := range srcs {
			if !s.valid || !bytesEqual(s.term, minTerm) {
				continue
			}
			offset := s.it.PostingsOffset()
			pl, err := s.seg.PostingsList(field, offset)
			if err != nil {
				return fmt.Errorf("index: reading postings for merge: %w", err)
			}
			for bi := 0; bi < pl.NumBlocks(); bi++ {
				postings, err := pl.DecodeBlock(bi)
				if err != nil {
					return err
				}
				for _, p := range postings {
					newLocal := s.docMap[p.DocNum]
					if newLocal < 0 {
						continue
					}
					p.DocNum = uint32(newLocal)
					b.AddPosting(field, minTerm, p)
				}
			}
			s.valid = s.it.Next()
			if s.valid {
				s.term = append([]byte(nil), s.it.Term()...)
			}
		}
	}
	return nil
}

func bytesLess(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
