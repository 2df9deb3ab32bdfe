package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"
	"github.com/klauspost/compress/s2"
)

// BlockSize is the number of postings grouped into one block. Each block
// carries its own header so a Matcher can skip an entire block without
// decompressing it when the block's max weight cannot beat the current
// collection threshold (spec §4.3's block-max pruning requirement; bluge's
// ice/v2 chunked int coder has no such header, so this block layout is an
// original construction in the chunked-coder idiom — see DESIGN.md).
const BlockSize = 128

// Posting is one (docNum, term frequency, positions, weight) occurrence
// used while building a postings list in memory, before it is
// block-encoded. FieldLen is the document's total indexed length for the
// field this posting belongs to, captured at index time so a Scorer can
// compute BM25F's length normalization without a separate doc-values
// lookup per candidate.
type Posting struct {
	DocNum    uint32
	Freq      uint32
	Positions []uint32
	Weight    float32
	FieldLen  uint32
}

// BlockHeader is the per-block skip metadata spec §4.3 requires: the
// doc-number range the block covers, how many postings it holds, the
// largest weight any posting in the block can score, and a flags byte
// reserved for future block variants (e.g. "positions omitted").
type BlockHeader struct {
	MinDoc    uint32
	MaxDoc    uint32
	DocCount  uint32
	MaxWeight float32
	Flags     uint8
}

const blockHeaderSize = 4 + 4 + 4 + 4 + 1

func (h BlockHeader) encode() []byte {
	buf := make([]byte, blockHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.MinDoc)
	binary.LittleEndian.PutUint32(buf[4:], h.MaxDoc)
	binary.LittleEndian.PutUint32(buf[8:], h.DocCount)
	binary.LittleEndian.PutUint32(buf[12:], f32bits(h.MaxWeight))
	buf[16] = h.Flags
	return buf
}

func decodeBlockHeader(buf []byte) BlockHeader {
	return BlockHeader{
		MinDoc:    binary.LittleEndian.Uint32(buf[0:]),
		MaxDoc:    binary.LittleEndian.Uint32(buf[4:]),
		DocCount:  binary.LittleEndian.Uint32(buf[8:]),
		MaxWeight: f32frombits(binary.LittleEndian.Uint32(buf[12:])),
		Flags:     buf[16],
	}
}

func f32bits(f float32) uint32 {
	return math.Float32bits(f)
}

func f32frombits(u uint32) float32 {
	return math.Float32frombits(u)
}

// PostingsListBuilder accumulates postings for one term, sorted by
// ascending doc number (a writer hands them over already sorted, since
// documents are assigned doc numbers in flush order), and serializes them
// into BlockSize-sized, individually compressed blocks.
type PostingsListBuilder struct {
	postings []Posting
	docFreq  *roaring.Bitmap
}

// NewPostingsListBuilder starts a postings list.
func NewPostingsListBuilder() *PostingsListBuilder {
	return &PostingsListBuilder{docFreq: roaring.New()}
}

// Add appends one document's occurrence of the term. Callers must add in
// ascending DocNum order.
func (b *PostingsListBuilder) Add(p Posting) {
	b.postings = append(b.postings, p)
	b.docFreq.Add(p.DocNum)
}

// DocFreq returns the number of distinct documents containing the term,
// used directly by BM25's idf term.
func (b *PostingsListBuilder) DocFreq() uint64 {
	return b.docFreq.GetCardinality()
}

// Close serializes the accumulated postings into blocks and returns the
// encoded bytes, written verbatim into the segment's postings blob at the
// offset recorded in the term dictionary.
func (b *PostingsListBuilder) Close() []byte {
	var out []byte
	numBlocks := (len(b.postings) + BlockSize - 1) / BlockSize
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(numBlocks))
	out = append(out, header...)

	for i := 0; i < len(b.postings); i += BlockSize {
		end := i + BlockSize
		if end > len(b.postings) {
			end = len(b.postings)
		}
		block := b.postings[i:end]
		out = append(out, encodeBlock(block)...)
	}
	return out
}

func encodeBlock(block []Posting) []byte {
	hdr := BlockHeader{
		MinDoc:   block[0].DocNum,
		MaxDoc:   block[len(block)-1].DocNum,
		DocCount: uint32(len(block)),
	}
	var payload []byte
	prevDoc := uint32(0)
	for _, p := range block {
		if p.Weight > hdr.MaxWeight {
			hdr.MaxWeight = p.Weight
		}
		var tmp [binary.MaxVarintLen32]byte
		n := binary.PutUvarint(tmp[:], uint64(p.DocNum-prevDoc))
		payload = append(payload, tmp[:n]...)
		prevDoc = p.DocNum

		n = binary.PutUvarint(tmp[:], uint64(p.Freq))
		payload = append(payload, tmp[:n]...)

		n = binary.PutUvarint(tmp[:], uint64(f32bits(p.Weight)))
		payload = append(payload, tmp[:n]...)

		n = binary.PutUvarint(tmp[:], uint64(p.FieldLen))
		payload = append(payload, tmp[:n]...)

		prevPos := uint32(0)
		for _, pos := range p.Positions {
			n = binary.PutUvarint(tmp[:], uint64(pos-prevPos))
			payload = append(payload, tmp[:n]...)
			prevPos = pos
		}
	}

	compressed := s2.Encode(nil, payload)
	lenBuf := make([]byte, 8)
	binary.LittleEndian.PutUint32(lenBuf[0:], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(lenBuf[4:], uint32(len(payload)))

	out := hdr.encode()
	out = append(out, lenBuf...)
	out = append(out, compressed...)
	return out
}

// PostingsList is a read handle over a term's serialized block postings.
type PostingsList struct {
	blockHeaders []BlockHeader
	blockData    [][]byte // decompressed payloads, lazily filled
	rawBlocks    []rawBlock
}

type rawBlock struct {
	compressed   []byte
	originalSize uint32
}

// OpenPostingsList parses the block headers from serialized bytes without
// eagerly decompressing any block payload, so a Matcher can use
// BlockHeader.MaxWeight to skip blocks entirely (block-max pruning).
func OpenPostingsList(data []byte) (*PostingsList, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("codec: postings list truncated")
	}
	numBlocks := int(binary.LittleEndian.Uint32(data[0:]))
	off := 4
	pl := &PostingsList{
		blockHeaders: make([]BlockHeader, numBlocks),
		blockData:    make([][]byte, numBlocks),
		rawBlocks:    make([]rawBlock, numBlocks),
	}
	for i := 0; i < numBlocks; i++ {
		if off+blockHeaderSize+8 > len(data) {
			return nil, fmt.Errorf("codec: postings block %d header truncated", i)
		}
		hdr := decodeBlockHeader(data[off : off+blockHeaderSize])
		off += blockHeaderSize
		compLen := binary.LittleEndian.Uint32(data[off:])
		origLen := binary.LittleEndian.Uint32(data[off+4:])
		off += 8
		if off+int(compLen) > len(data) {
			return nil, fmt.Errorf("codec: postings block %d payload truncated", i)
		}
		pl.blockHeaders[i] = hdr
		pl.rawBlocks[i] = rawBlock{compressed: data[off : off+int(compLen)], originalSize: origLen}
		off += int(compLen)
	}
	return pl, nil
}

// DocFreq returns the total number of postings (one per document) across
// every block, without decompressing any of them, since BlockHeader
// already carries each block's DocCount.
func (pl *PostingsList) DocFreq() uint64 {
	var n uint64
	for _, h := range pl.blockHeaders {
		n += uint64(h.DocCount)
	}
	return n
}

// NumBlocks returns the number of blocks in the list.
func (pl *PostingsList) NumBlocks() int { return len(pl.blockHeaders) }

// BlockHeader returns the i'th block's skip metadata without decoding it.
func (pl *PostingsList) BlockHeader(i int) BlockHeader { return pl.blockHeaders[i] }

// DecodeBlock lazily decompresses and decodes block i into Postings,
// caching the decompressed payload for subsequent calls.
func (pl *PostingsList) DecodeBlock(i int) ([]Posting, error) {
	if pl.blockData[i] == nil {
		raw := pl.rawBlocks[i]
		out := make([]byte, raw.originalSize)
		decoded, err := s2.Decode(out, raw.compressed)
		if err != nil {
			return nil, fmt.Errorf("codec: decompressing postings block %d: %w", i, err)
		}
		pl.blockData[i] = decoded
	}

	hdr := pl.blockHeaders[i]
	buf := pl.blockData[i]
	postings := make([]Posting, 0, hdr.DocCount)
	pos := 0
	prevDoc := uint32(0)
	for j := uint32(0); j < hdr.DocCount; j++ {
		delta, n := binary.Uvarint(buf[pos:])
		pos += n
		doc := prevDoc + uint32(delta)
		prevDoc = doc

		freq, n := binary.Uvarint(buf[pos:])
		pos += n

		wbits, n := binary.Uvarint(buf[pos:])
		pos += n

		fieldLen, n := binary.Uvarint(buf[pos:])
		pos += n

		positions := make([]uint32, 0, freq)
		prevPos := uint32(0)
		for k := uint64(0); k < freq; k++ {
			pdelta, n := binary.Uvarint(buf[pos:])
			pos += n
			prevPos += uint32(pdelta)
			positions = append(positions, prevPos)
		}

		postings = append(postings, Posting{
			DocNum:    doc,
			Freq:      uint32(freq),
			Positions: positions,
			Weight:    f32frombits(uint32(wbits)),
			FieldLen:  uint32(fieldLen),
		})
	}
	return postings, nil
}
