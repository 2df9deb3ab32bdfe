package weft

import (
	"time"

	"github.com/weftsearch/weft/analysis"
	"github.com/weftsearch/weft/numeric"
	"github.com/weftsearch/weft/search/searcher"
)

// FieldOptions controls how a single Field is indexed, stored, and made
// sortable. Zero value indexes nothing; set the bits you need.
type FieldOptions uint8

const (
	// FieldIndexed makes the field's terms searchable.
	FieldIndexed FieldOptions = 1 << iota
	// FieldStored makes the field's original value retrievable from a
	// DocumentMatch (spec §4.2's stored-fields facility).
	FieldStored
	// FieldSortable builds a doc-values column for the field so it can
	// be used by a Sorted collector or a numeric Range query without
	// decompressing postings.
	FieldSortable
	// FieldAggregatable makes the field eligible as a facet dimension.
	FieldAggregatable
	// FieldVector stores a per-document forward term vector, required
	// by Searcher.KeyTerms and by MoreLikeThis-style queries.
	FieldVector
	// FieldUnique marks a field whose value may appear in at most one live
	// document across an index (spec §3's unique flag): Writer.Update
	// resolves it by deleting any existing document with the same term
	// before adding the replacement.
	FieldUnique
)

// Field is one named value attached to a Document. A Document may repeat a
// field name any number of times (spec §3's multi-valued fields).
type Field interface {
	Name() string
	Options() FieldOptions
	Boost() float64
	// Analyze tokenizes the field's contents. Fields that are not
	// FieldIndexed may return nil.
	Analyze() analysis.TokenStream
	// Value returns the field's stored representation, used when
	// FieldStored is set.
	Value() []byte
}

type baseField struct {
	name    string
	opts    FieldOptions
	boost   float64
	analyze analysis.TokenStream
	value   []byte
}

func (f *baseField) Name() string                    { return f.name }
func (f *baseField) Options() FieldOptions            { return f.opts }
func (f *baseField) Boost() float64                   { return f.boost }
func (f *baseField) Analyze() analysis.TokenStream    { return f.analyze }
func (f *baseField) Value() []byte                    { return f.value }

// NewTextField builds an analyzed, indexed field from a string. It carries
// no TokenStream of its own, so the Writer analyzes it at index time with
// the Index's analyzer (SimpleAnalyzer unless WithAnalyzer chose another).
func NewTextField(name, value string) *baseField {
	return &baseField{
		name:  name,
		opts:  FieldIndexed | FieldStored,
		boost: 1.0,
		value: []byte(value),
	}
}

// singleTermStream wraps raw bytes as a one-token stream at position 0, for
// field kinds that are exact-match rather than analyzer-driven (Keyword,
// Numeric, DateTime): the stored value bytes double as the indexed term.
func singleTermStream(term []byte) analysis.TokenStream {
	return analysis.TokenStream{{Term: term, Start: 0, End: len(term), Position: 0, Boost: 1.0}}
}

// NewKeywordField builds an unanalyzed, exact-match indexed field: the
// whole value is a single term, as with bluge's NewKeywordField.
func NewKeywordField(name, value string) *baseField {
	v := []byte(value)
	return &baseField{
		name:    name,
		opts:    FieldIndexed | FieldStored | FieldSortable | FieldAggregatable,
		boost:   1.0,
		value:   v,
		analyze: singleTermStream(v),
	}
}

// NewStoredOnlyField builds a field retrievable from DocumentMatch but not
// searchable.
func NewStoredOnlyField(name string, value []byte) *baseField {
	return &baseField{name: name, opts: FieldStored, boost: 1.0, value: value}
}

// NewNumericField builds a sortable, range-queryable numeric field using
// the fixed-width sortable encoding in package numeric (spec §9 Open
// Question, decided in DESIGN.md).
func NewNumericField(name string, value float64) *baseField {
	v := numeric.EncodeFloat64(value)
	return &baseField{
		name:    name,
		opts:    FieldIndexed | FieldStored | FieldSortable | FieldAggregatable,
		boost:   1.0,
		value:   v,
		analyze: singleTermStream(v),
	}
}

// NewDateTimeField builds a sortable date field, encoded as Unix
// nanoseconds through the same sortable fixed-width transform as numeric
// fields.
func NewDateTimeField(name string, value time.Time) *baseField {
	v := numeric.EncodeInt64(value.UnixNano())
	return &baseField{
		name:    name,
		opts:    FieldIndexed | FieldStored | FieldSortable | FieldAggregatable,
		boost:   1.0,
		value:   v,
		analyze: singleTermStream(v),
	}
}

// WithBoost returns a copy of the field with its per-field weight set,
// consumed by the BM25F scorer (spec §4.8).
func (f *baseField) WithBoost(boost float64) *baseField {
	cp := *f
	cp.boost = boost
	return &cp
}

// WithVector returns a copy of the field with FieldVector set, so the
// Writer also persists a per-document forward term vector for it (spec
// §4.2's optional Vectors), consumed by Searcher.KeyTerms. The field must
// already be FieldIndexed.
func (f *baseField) WithVector() *baseField {
	cp := *f
	cp.opts |= FieldVector | FieldIndexed
	return &cp
}

// groupParentMarkerField builds the reserved, internal doc-values field
// Writer.Group writes for every document in a group, recording the
// structural parent-set bitmap spec §4.9's Nested queries walk
// (search/searcher.GroupParentField).
func groupParentMarkerField(isParent bool) *baseField {
	v := byte(0)
	if isParent {
		v = 1
	}
	return &baseField{name: searcher.GroupParentField, opts: FieldSortable, boost: 1.0, value: []byte{v}}
}

// WithUnique returns a copy of the field with FieldUnique set, so
// Writer.UpdateDocument treats it as the document's identity term (spec
// §3's unique flag). The field must already be FieldIndexed.
func (f *baseField) WithUnique() *baseField {
	cp := *f
	cp.opts |= FieldUnique | FieldIndexed
	return &cp
}
