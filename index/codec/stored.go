package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/s2"
)

// StoredFieldsChunkSize is the number of documents grouped into one
// compressed stored-fields chunk, following ice/v2/new.go's chunked
// document coder: compressing many small documents together amortizes
// the compressor's fixed overhead far better than per-document blocks.
const StoredFieldsChunkSize = 1024

// StoredField is one field value captured for a document at the point it
// was added, kept verbatim so it can be returned from DocumentMatch.
type StoredField struct {
	Name  string
	Value []byte
}

// StoredFieldsBuilder accumulates whole documents' stored field sets,
// chunking and compressing them as full chunks accumulate.
type StoredFieldsBuilder struct {
	pending [][]StoredField
	chunks  [][]byte
	offsets []uint64
}

// NewStoredFieldsBuilder starts an empty builder.
func NewStoredFieldsBuilder() *StoredFieldsBuilder {
	return &StoredFieldsBuilder{}
}

// Add appends one document's stored fields, in the doc-number order the
// writer assigns doc numbers.
func (b *StoredFieldsBuilder) Add(fields []StoredField) {
	b.pending = append(b.pending, fields)
	if len(b.pending) == StoredFieldsChunkSize {
		b.flushChunk()
	}
}

func encodeDoc(fields []StoredField) []byte {
	var buf []byte
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(fields)))
	buf = append(buf, tmp[:n]...)
	for _, f := range fields {
		n = binary.PutUvarint(tmp[:], uint64(len(f.Name)))
		buf = append(buf, tmp[:n]...)
		buf = append(buf, f.Name...)
		n = binary.PutUvarint(tmp[:], uint64(len(f.Value)))
		buf = append(buf, tmp[:n]...)
		buf = append(buf, f.Value...)
	}
	return buf
}

func (b *StoredFieldsBuilder) flushChunk() {
	if len(b.pending) == 0 {
		return
	}
	var raw []byte
	var tmp [binary.MaxVarintLen64]byte
	for _, doc := range b.pending {
		enc := encodeDoc(doc)
		n := binary.PutUvarint(tmp[:], uint64(len(enc)))
		raw = append(raw, tmp[:n]...)
		raw = append(raw, enc...)
	}
	compressed := s2.Encode(nil, raw)
	chunk := make([]byte, 8+len(compressed))
	binary.LittleEndian.PutUint32(chunk[0:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(chunk[4:], uint32(len(b.pending)))
	copy(chunk[8:], compressed)
	b.chunks = append(b.chunks, chunk)
	b.pending = nil
}

// Close flushes any partial final chunk and returns the serialized blob:
// a chunk count, a chunk-offset table, then the chunks themselves.
func (b *StoredFieldsBuilder) Close() []byte {
	b.flushChunk()

	var out []byte
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(len(b.chunks)))
	out = append(out, header...)

	offTable := make([]byte, 8*len(b.chunks))
	off := uint64(0)
	for i, c := range b.chunks {
		binary.LittleEndian.PutUint64(offTable[i*8:], off)
		off += uint64(len(c))
	}
	out = append(out, offTable...)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}

// StoredFields is a read handle over a serialized stored-fields blob.
type StoredFields struct {
	data      []byte
	numChunks int
	offsets   []uint64
	chunkBase int
}

// OpenStoredFields parses the chunk table without decompressing any chunk.
func OpenStoredFields(data []byte) (*StoredFields, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("codec: stored fields blob truncated")
	}
	numChunks := int(binary.LittleEndian.Uint32(data[0:]))
	offsets := make([]uint64, numChunks)
	base := 4 + 8*numChunks
	if base > len(data) {
		return nil, fmt.Errorf("codec: stored fields offset table truncated")
	}
	for i := 0; i < numChunks; i++ {
		offsets[i] = binary.LittleEndian.Uint64(data[4+i*8:])
	}
	return &StoredFields{data: data, numChunks: numChunks, offsets: offsets, chunkBase: base}, nil
}

// Document decodes and returns docNum's stored fields (docNum is local to
// the segment, counted from 0 in the order documents were added).
func (s *StoredFields) Document(docNum uint64) ([]StoredField, error) {
	chunkIdx := int(docNum / StoredFieldsChunkSize)
	inChunkIdx := int(docNum % StoredFieldsChunkSize)
	if chunkIdx >= s.numChunks {
		return nil, fmt.Errorf("codec: doc number %d out of range", docNum)
	}
	start := s.chunkBase + int(s.offsets[chunkIdx])
	var end int
	if chunkIdx+1 < s.numChunks {
		end = s.chunkBase + int(s.offsets[chunkIdx+1])
	} else {
		end = len(s.data)
	}
	chunk := s.data[start:end]
	if len(chunk) < 8 {
		return nil, fmt.Errorf("codec: stored chunk %d truncated", chunkIdx)
	}
	origLen := binary.LittleEndian.Uint32(chunk[0:])
	raw := make([]byte, origLen)
	raw, err := s2.Decode(raw, chunk[8:])
	if err != nil {
		return nil, fmt.Errorf("codec: decompressing stored chunk %d: %w", chunkIdx, err)
	}

	pos := 0
	for doc := 0; doc <= inChunkIdx; doc++ {
		docLen, n := binary.Uvarint(raw[pos:])
		pos += n
		if doc == inChunkIdx {
			return decodeDoc(raw[pos : pos+int(docLen)])
		}
		pos += int(docLen)
	}
	return nil, fmt.Errorf("codec: doc %d not found in chunk %d", docNum, chunkIdx)
}

func decodeDoc(buf []byte) ([]StoredField, error) {
	pos := 0
	count, n := binary.Uvarint(buf[pos:])
	pos += n
	fields := make([]StoredField, 0, count)
	for i := uint64(0); i < count; i++ {
		nameLen, n := binary.Uvarint(buf[pos:])
		pos += n
		name := string(buf[pos : pos+int(nameLen)])
		pos += int(nameLen)
		valLen, n := binary.Uvarint(buf[pos:])
		pos += n
		val := buf[pos : pos+int(valLen)]
		pos += int(valLen)
		fields = append(fields, StoredField{Name: name, Value: val})
	}
	return fields, nil
}
