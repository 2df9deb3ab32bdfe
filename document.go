package weft

// Document is an ordered collection of Fields presented to a Writer for
// indexing (spec §3). Field names may repeat.
type Document struct {
	fields []Field
}

// NewDocument returns an empty Document.
func NewDocument() *Document {
	return &Document{}
}

// AddField appends a field and returns the receiver, so construction can
// be chained: weft.NewDocument().AddField(...).AddField(...).
func (d *Document) AddField(f Field) *Document {
	d.fields = append(d.fields, f)
	return d
}

// Fields returns every field on the document, in insertion order.
func (d *Document) Fields() []Field {
	return d.fields
}

// EachField calls visit for every field whose name matches; an empty name
// matches every field.
func (d *Document) EachField(name string, visit func(Field)) {
	for _, f := range d.fields {
		if name == "" || f.Name() == name {
			visit(f)
		}
	}
}
