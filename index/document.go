package index

import "github.com/weftsearch/weft/analysis"

// IndexableField is one field of a document already analyzed and ready for
// the flush pipeline: the root weft package owns tokenization (via a
// Field's Analyze method) and hands the index package only the result, so
// this package never needs to import the analysis-driving Field interface
// from the root package and risk a cycle (weft -> index -> weft).
type IndexableField struct {
	Name    string
	Options uint8 // bit-identical to the root package's FieldOptions
	Boost   float64
	// Tokens is nil for fields that are not indexed.
	Tokens analysis.TokenStream
	// Value is the field's stored representation, used when FieldStored
	// is set in Options.
	Value []byte
	// SortValue is the fixed-width sortable encoding used for a doc-values
	// column, set when FieldSortable is in Options. Every occurrence of a
	// given field name across a document's fields must carry the same
	// width, matching package numeric's 8-byte encodings.
	SortValue []byte
}

// IndexableDocument is a Document reduced to what the flush pipeline needs:
// every field already analyzed, in the order AddField was called.
type IndexableDocument struct {
	Fields []IndexableField
}

// The bit values below mirror the root package's FieldOptions exactly;
// kept as unexported constants here rather than imported so this package
// has zero dependency on the root package.
const (
	optIndexed uint8 = 1 << iota
	optStored
	optSortable
	optAggregatable
	optVector
	optUnique
)
