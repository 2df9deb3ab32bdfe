package codec

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// MagicNumber tags the start of every segment file, letting Open reject a
// file that isn't a weft segment before it tries to interpret anything
// else, the same defensive first check bluge's segment loader performs.
const MagicNumber = 0x57465447 // "WFTG"

// FormatVersion is bumped whenever the on-disk segment layout changes in a
// way older readers cannot interpret (spec §7's ErrIncompatibleFormat).
// Version 2 appended the per-document forward-vectors section after stored
// fields.
const FormatVersion = 2

// Builder assembles one immutable Segment from per-field term postings,
// stored document fields, and doc-values columns, generalizing
// ice/v2/new.go's interim struct (FieldsMap/Dicts/Postings/Locs) to the
// block-postings format in postings.go.
type Builder struct {
	numDocs uint64
	fields  map[string]*fieldBuilder
	order   []string
	stored  *StoredFieldsBuilder
	vectors *VectorsBuilder
}

type fieldBuilder struct {
	terms      map[string]*PostingsListBuilder
	column     *ColumnBuilder
	lengthSum  uint64
	lengthDocs uint64
}

// NewBuilder starts a segment. numDocsHint, the expected document count,
// is accepted but not used.
func NewBuilder(numDocsHint int) *Builder {
	return &Builder{
		fields:  make(map[string]*fieldBuilder, 16),
		stored:  NewStoredFieldsBuilder(),
		vectors: NewVectorsBuilder(),
	}
}

func (b *Builder) field(name string) *fieldBuilder {
	fb, ok := b.fields[name]
	if !ok {
		fb = &fieldBuilder{terms: make(map[string]*PostingsListBuilder)}
		b.fields[name] = fb
		b.order = append(b.order, name)
	}
	return fb
}

// AddPosting records one document's occurrence of term in field. docNum
// must be the segment-local doc number (0-based, in the order AddStored is
// called for each document).
func (b *Builder) AddPosting(field string, term []byte, p Posting) {
	fb := b.field(field)
	tb, ok := fb.terms[string(term)]
	if !ok {
		tb = NewPostingsListBuilder()
		fb.terms[string(term)] = tb
	}
	tb.Add(p)
}

// SetColumnWidth declares that field carries a fixed-width doc-values
// column, lazily creating its builder.
func (b *Builder) SetColumnWidth(field string, width int) {
	fb := b.field(field)
	if fb.column == nil {
		fb.column = NewColumnBuilder(width)
	}
}

// AddColumnValue appends docNum's sortable value for field. Callers must
// call this once per document, in doc-number order, for every field that
// had SetColumnWidth called, using AddColumnMissing for documents lacking
// a value.
func (b *Builder) AddColumnValue(field string, value []byte) error {
	fb := b.fields[field]
	if fb == nil || fb.column == nil {
		return fmt.Errorf("codec: field %q has no column", field)
	}
	return fb.column.Add(value)
}

// AddColumnMissing records a placeholder for a document with no value in
// field's column.
func (b *Builder) AddColumnMissing(field string) {
	if fb := b.fields[field]; fb != nil && fb.column != nil {
		fb.column.AddMissing()
	}
}

// AddFieldLength records one document's indexed length for field, used to
// compute the collection-wide average field length BM25F needs (spec
// §4.2's Lengths component). Call it once per document that has any
// indexed content for field, in any order relative to AddPosting.
func (b *Builder) AddFieldLength(field string, length uint32) {
	fb := b.field(field)
	fb.lengthSum += uint64(length)
	fb.lengthDocs++
}

// AddStored appends one document's stored fields and advances the
// builder's document count; it must be called exactly once per document,
// in the order that document's postings/column values were added.
func (b *Builder) AddStored(fields []StoredField) {
	b.stored.Add(fields)
	b.numDocs++
}

// AddVectors records the current document's forward vector (one entry per
// FieldVector field, already grouped by term with positions) — spec
// §4.2's optional Vectors component. Call at most once per document, using
// the same docNum AddStored's call for that document will use (docNum is
// numDocs *before* AddStored increments it, so callers that add vectors
// before calling AddStored for the same document should pass b.numDocs
// explicitly rather than assume ordering).
func (b *Builder) AddVectors(docNum uint64, terms []VectorTerm) {
	b.vectors.Add(docNum, terms)
}

// Close serializes the whole segment: a header, a directory of field
// sections plus the stored-fields blob, followed by the bytes themselves.
func (b *Builder) Close() ([]byte, error) {
	sort.Strings(b.order)

	type sectionBytes struct {
		name       string
		dict       []byte
		postings   []byte
		column     []byte
		lengthSum  uint64
		lengthDocs uint64
	}
	var sections []sectionBytes

	for _, name := range b.order {
		fb := b.fields[name]

		terms := make([]string, 0, len(fb.terms))
		for t := range fb.terms {
			terms = append(terms, t)
		}
		sort.Strings(terms)

		tb, err := NewTermDictionaryBuilder(name)
		if err != nil {
			return nil, err
		}
		var postings []byte
		for _, t := range terms {
			off := uint64(len(postings))
			postings = append(postings, fb.terms[t].Close()...)
			if err := tb.Insert([]byte(t), off); err != nil {
				return nil, err
			}
		}
		dictBytes, err := tb.Close()
		if err != nil {
			return nil, err
		}

		var column []byte
		if fb.column != nil {
			column = fb.column.Close()
		}

		sections = append(sections, sectionBytes{
			name: name, dict: dictBytes, postings: postings, column: column,
			lengthSum: fb.lengthSum, lengthDocs: fb.lengthDocs,
		})
	}

	storedBlob := b.stored.Close()

	var out []byte
	hdr := make([]byte, 16)
	binary.LittleEndian.PutUint32(hdr[0:], MagicNumber)
	binary.LittleEndian.PutUint32(hdr[4:], FormatVersion)
	binary.LittleEndian.PutUint64(hdr[8:], b.numDocs)
	out = append(out, hdr...)

	out = append(out, encodeUvarint(uint64(len(sections)))...)
	for _, s := range sections {
		out = append(out, encodeUvarint(uint64(len(s.name)))...)
		out = append(out, s.name...)
		out = append(out, encodeUvarint(uint64(len(s.dict)))...)
		out = append(out, s.dict...)
		out = append(out, encodeUvarint(uint64(len(s.postings)))...)
		out = append(out, s.postings...)
		if s.column != nil {
			out = append(out, 1)
			out = append(out, encodeUvarint(uint64(len(s.column)))...)
			out = append(out, s.column...)
		} else {
			out = append(out, 0)
		}
		out = append(out, encodeUvarint(s.lengthSum)...)
		out = append(out, encodeUvarint(s.lengthDocs)...)
	}

	out = append(out, encodeUvarint(uint64(len(storedBlob)))...)
	out = append(out, storedBlob...)

	vectorsBlob := b.vectors.Close()
	out = append(out, encodeUvarint(uint64(len(vectorsBlob)))...)
	out = append(out, vectorsBlob...)

	return out, nil
}

func encodeUvarint(v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return tmp[:n]
}

// Section is one field's decoded sub-blobs, as returned by Open.
type Section struct {
	Name     string
	Dict     []byte
	Postings []byte
	Column   []byte // nil if the field has no doc-values column

	// LengthSum/LengthDocs are this segment's contribution to the
	// field's collection-wide average length (spec §4.2's Lengths
	// component): LengthSum/LengthDocs, summed across every live
	// segment, is the AvgFieldLen a Similarity needs.
	LengthSum  uint64
	LengthDocs uint64
}

// Segment is the parsed, read-only view of one immutable segment file,
// parsed by Open. Dict/Postings/Column bytes are handed to
// OpenTermDictionary/OpenPostingsList/OpenColumn on demand by the segment
// wrapper in package index rather than eagerly here, so opening a segment
// never decodes more than its directory.
type Segment struct {
	NumDocs  uint64
	Sections map[string]*Section
	Order    []string
	Stored   []byte
	Vectors  []byte
}

// Open parses a segment file's directory structure. It does not validate
// every field's FST/postings contents; a corrupt block surfaces lazily
// when that field is actually queried.
func Open(data []byte) (*Segment, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("codec: segment truncated")
	}
	magic := binary.LittleEndian.Uint32(data[0:])
	if magic != MagicNumber {
		return nil, fmt.Errorf("codec: bad magic number %x", magic)
	}
	version := binary.LittleEndian.Uint32(data[4:])
	if version != FormatVersion {
		return nil, fmt.Errorf("codec: unsupported segment format version %d", version)
	}
	numDocs := binary.LittleEndian.Uint64(data[8:])

	pos := 16
	numFields, n := binary.Uvarint(data[pos:])
	pos += n

	seg := &Segment{NumDocs: numDocs, Sections: make(map[string]*Section, numFields)}
	for i := uint64(0); i < numFields; i++ {
		nameLen, n := binary.Uvarint(data[pos:])
		pos += n
		name := string(data[pos : pos+int(nameLen)])
		pos += int(nameLen)

		dictLen, n := binary.Uvarint(data[pos:])
		pos += n
		dict := data[pos : pos+int(dictLen)]
		pos += int(dictLen)

		postingsLen, n := binary.Uvarint(data[pos:])
		pos += n
		postings := data[pos : pos+int(postingsLen)]
		pos += int(postingsLen)

		hasColumn := data[pos]
		pos++
		var column []byte
		if hasColumn == 1 {
			colLen, n := binary.Uvarint(data[pos:])
			pos += n
			column = data[pos : pos+int(colLen)]
			pos += int(colLen)
		}

		lengthSum, n := binary.Uvarint(data[pos:])
		pos += n
		lengthDocs, n := binary.Uvarint(data[pos:])
		pos += n

		seg.Sections[name] = &Section{
			Name: name, Dict: dict, Postings: postings, Column: column,
			LengthSum: lengthSum, LengthDocs: lengthDocs,
		}
		seg.Order = append(seg.Order, name)
	}

	storedLen, n := binary.Uvarint(data[pos:])
	pos += n
	seg.Stored = data[pos : pos+int(storedLen)]
	pos += int(storedLen)

	vectorsLen, n := binary.Uvarint(data[pos:])
	pos += n
	seg.Vectors = data[pos : pos+int(vectorsLen)]

	return seg, nil
}
