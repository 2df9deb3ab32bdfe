package codec

import (
	"encoding/binary"
	"fmt"
)

// VectorTerm is one field's term occurrence list within a single document's
// forward vector (spec §4.2's optional Vectors component): the term bytes
// plus every 0-based position it occurred at, mirroring the positions a
// posting already carries but addressed by document instead of by term, so
// a phrase-highlighter or key-term extractor can walk one document's terms
// without decompressing the inverted postings (spec §4.7's vector-based
// phrase variant, spec §6's key_terms).
type VectorTerm struct {
	Field     string
	Term      []byte
	Positions []uint32
}

// VectorsBuilder accumulates one forward vector per document, for whatever
// subset of documents actually had a FieldVector field (most documents
// have none, so the builder only spends space on the ones that do).
// Structurally this is StoredFieldsBuilder's chunk-free sibling: vectors
// are read far less often than stored fields (only by KeyTerms and the
// vector-based phrase matcher), so there is no benefit to StoredFields'
// compressed-chunk batching here, just a flat per-doc offset table.
type VectorsBuilder struct {
	docs    []uint64 // docNum of each entry, ascending
	entries [][]VectorTerm
}

// NewVectorsBuilder starts an empty builder.
func NewVectorsBuilder() *VectorsBuilder {
	return &VectorsBuilder{}
}

// Add records docNum's vector. Skip documents with no vector-bearing field
// entirely; Vectors.Document returns "not found" for any docNum never
// added, which is indistinguishable from "has an empty vector" to a
// caller and correctly so (spec §4.2: "optional per-field column").
func (b *VectorsBuilder) Add(docNum uint64, terms []VectorTerm) {
	if len(terms) == 0 {
		return
	}
	b.docs = append(b.docs, docNum)
	b.entries = append(b.entries, terms)
}

func encodeVectorEntry(terms []VectorTerm) []byte {
	var buf []byte
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(terms)))
	buf = append(buf, tmp[:n]...)
	for _, t := range terms {
		n = binary.PutUvarint(tmp[:], uint64(len(t.Field)))
		buf = append(buf, tmp[:n]...)
		buf = append(buf, t.Field...)
		n = binary.PutUvarint(tmp[:], uint64(len(t.Term)))
		buf = append(buf, tmp[:n]...)
		buf = append(buf, t.Term...)
		n = binary.PutUvarint(tmp[:], uint64(len(t.Positions)))
		buf = append(buf, tmp[:n]...)
		var prev uint32
		for _, p := range t.Positions {
			n = binary.PutUvarint(tmp[:], uint64(p-prev))
			buf = append(buf, tmp[:n]...)
			prev = p
		}
	}
	return buf
}

// Close serializes every recorded document's vector: an entry count, a
// parallel (docNum, byte-offset) table, then the entries themselves.
func (b *VectorsBuilder) Close() []byte {
	var payload []byte
	offsets := make([]uint64, len(b.entries))
	for i, terms := range b.entries {
		offsets[i] = uint64(len(payload))
		payload = append(payload, encodeVectorEntry(terms)...)
	}

	var out []byte
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(len(b.entries)))
	out = append(out, header...)
	for i := range b.entries {
		var tmp [16]byte
		binary.LittleEndian.PutUint64(tmp[0:], b.docs[i])
		binary.LittleEndian.PutUint64(tmp[8:], offsets[i])
		out = append(out, tmp[:]...)
	}
	out = append(out, payload...)
	return out
}

// Vectors is a read handle over a serialized per-document forward-vector
// blob.
type Vectors struct {
	data    []byte
	docs    []uint64
	offsets []uint64
	base    int
}

// OpenVectors parses the (docNum, offset) table without decoding any
// document's entry.
func OpenVectors(data []byte) (*Vectors, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("codec: vectors blob truncated")
	}
	count := int(binary.LittleEndian.Uint32(data[0:]))
	base := 4 + 16*count
	if base > len(data) {
		return nil, fmt.Errorf("codec: vectors offset table truncated")
	}
	docs := make([]uint64, count)
	offsets := make([]uint64, count)
	for i := 0; i < count; i++ {
		docs[i] = binary.LittleEndian.Uint64(data[4+i*16:])
		offsets[i] = binary.LittleEndian.Uint64(data[4+i*16+8:])
	}
	return &Vectors{data: data, docs: docs, offsets: offsets, base: base}, nil
}

// Document returns docNum's forward vector, or (nil, false) if it was never
// recorded (no FieldVector field, or a document with no indexed terms).
func (v *Vectors) Document(docNum uint64) ([]VectorTerm, bool, error) {
	lo, hi := 0, len(v.docs)
	for lo < hi {
		mid := (lo + hi) / 2
		if v.docs[mid] < docNum {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= len(v.docs) || v.docs[lo] != docNum {
		return nil, false, nil
	}
	start := v.base + int(v.offsets[lo])
	end := len(v.data)
	if lo+1 < len(v.docs) {
		end = v.base + int(v.offsets[lo+1])
	}
	terms, err := decodeVectorEntry(v.data[start:end])
	if err != nil {
		return nil, false, fmt.Errorf("codec: decoding vector for doc %d: %w", docNum, err)
	}
	return terms, true, nil
}

func decodeVectorEntry(buf []byte) ([]VectorTerm, error) {
	pos := 0
	count, n := binary.Uvarint(buf[pos:])
	pos += n
	terms := make([]VectorTerm, 0, count)
	for i := uint64(0); i < count; i++ {
		fieldLen, n := binary.Uvarint(buf[pos:])
		pos += n
		field := string(buf[pos : pos+int(fieldLen)])
		pos += int(fieldLen)
		termLen, n := binary.Uvarint(buf[pos:])
		pos += n
		term := append([]byte(nil), buf[pos:pos+int(termLen)]...)
		pos += int(termLen)
		posCount, n := binary.Uvarint(buf[pos:])
		pos += n
		positions := make([]uint32, posCount)
		var prev uint32
		for j := uint64(0); j < posCount; j++ {
			delta, n := binary.Uvarint(buf[pos:])
			pos += n
			prev += uint32(delta)
			positions[j] = prev
		}
		terms = append(terms, VectorTerm{Field: field, Term: term, Positions: positions})
	}
	return terms, nil
}
