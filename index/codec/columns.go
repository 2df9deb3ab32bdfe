package codec

import (
	"encoding/binary"
	"fmt"
)

// Column is a per-field, per-document array of sortable fixed-width
// values (numeric/datetime fields already sortably encoded by package
// numeric, or raw bytes for keyword fields truncated/padded to a common
// width), grounded on ice/v2/docvalues.go's columnar doc-values file.
// Unlike postings, a Column is addressed directly by doc number with no
// decompression required, which is what lets a Sorted collector (spec
// §4.9) avoid touching the inverted index at all.
type Column struct {
	width int
	data  []byte
}

// ColumnBuilder accumulates one fixed-width value per document for a
// single field, in doc-number order. Every value must be exactly width
// bytes; callers padding variable-length values are responsible for
// choosing a width wide enough up front.
type ColumnBuilder struct {
	width int
	data  []byte
}

// NewColumnBuilder starts a column whose values are all exactly width
// bytes, matching package numeric's 8-byte sortable encodings for numeric
// and datetime fields.
func NewColumnBuilder(width int) *ColumnBuilder {
	return &ColumnBuilder{width: width}
}

// Add appends docNum's value. Documents must be added in ascending,
// contiguous doc-number order; any gap (a document with no value for this
// field) must still append a zero-filled placeholder so offsets stay
// aligned, exactly like a dense doc-values column.
func (b *ColumnBuilder) Add(value []byte) error {
	if len(value) != b.width {
		return fmt.Errorf("codec: column value has width %d, want %d", len(value), b.width)
	}
	b.data = append(b.data, value...)
	return nil
}

// AddMissing appends a zero-filled placeholder for a document with no
// value in this field.
func (b *ColumnBuilder) AddMissing() {
	b.data = append(b.data, make([]byte, b.width)...)
}

// Close serializes the column: a 4-byte width header, then the packed
// values.
func (b *ColumnBuilder) Close() []byte {
	out := make([]byte, 4, 4+len(b.data))
	binary.LittleEndian.PutUint32(out, uint32(b.width))
	return append(out, b.data...)
}

// OpenColumn loads a serialized column for reading.
func OpenColumn(data []byte) (*Column, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("codec: column blob truncated")
	}
	width := int(binary.LittleEndian.Uint32(data[0:]))
	return &Column{width: width, data: data[4:]}, nil
}

// Value returns docNum's raw value bytes. The caller decodes them with
// package numeric or compares them directly for keyword sort fields.
func (c *Column) Value(docNum uint64) ([]byte, error) {
	start := docNum * uint64(c.width)
	end := start + uint64(c.width)
	if end > uint64(len(c.data)) {
		return nil, fmt.Errorf("codec: doc number %d out of range for column", docNum)
	}
	return c.data[start:end], nil
}

// Len returns the number of documents this column covers.
func (c *Column) Len() uint64 {
	if c.width == 0 {
		return 0
	}
	return uint64(len(c.data)) / uint64(c.width)
}

// Width returns the fixed element width every value in this column was
// encoded with, needed when a merge re-emits a column without re-deriving
// its width from a fresh value.
func (c *Column) Width() int { return c.width }
