package compress

// Descriptor ids of the default schema set.
const (
	SchemaElement  = 1
	SchemaRange    = 2
	SchemaVertex   = 3
	SchemaPosition = 4
	SchemaSpan     = 5
)

var labelForms = shortForms(
	"metaData", "$event", "source", "project", "document", "range", "resultSet",
	"moniker", "packageInformation", "hoverResult", "declarationResult",
	"definitionResult", "typeDefinitionResult", "referenceResult",
	"implementationResult", "documentSymbolResult", "foldingRangeResult",
	"diagnosticResult", "contains", "item", "next", "refersTo", "attach",
	"textDocument/documentSymbol", "textDocument/foldingRange",
	"textDocument/diagnostic", "textDocument/hover", "textDocument/declaration",
	"textDocument/definition", "textDocument/typeDefinition",
	"textDocument/references", "textDocument/implementation",
)

func shortForms(longs ...string) []ShortForm {
	out := make([]ShortForm, len(longs))
	for i, l := range longs {
		out[i] = ShortForm{Long: l, Short: int64(i + 1)}
	}
	return out
}

func parent(id int) *int { return &id }

// DefaultSchemas returns the descriptor set used when writing vertex rows:
// a shared element header, a specialised range layout, a generic vertex
// layout, and literal layouts for positions and spans.
func DefaultSchemas() []Descriptor {
	return []Descriptor{
		{
			ID: SchemaElement,
			Properties: []Property{
				{Name: "id", Index: 1, Kind: KindID},
				{Name: "type", Index: 2, Kind: KindScalar, ShortForm: shortForms("vertex", "edge")},
				{Name: "label", Index: 3, Kind: KindScalar, ShortForm: labelForms},
			},
		},
		{
			ID:     SchemaRange,
			Parent: parent(SchemaElement),
			Properties: []Property{
				{Name: "start", Index: 4, Kind: KindLiteral, Schema: SchemaPosition},
				{Name: "end", Index: 5, Kind: KindLiteral, Schema: SchemaPosition},
				{Name: "tag.type", Index: 6, Kind: KindScalar, ShortForm: shortForms("declaration", "definition", "reference", "unknown")},
				{Name: "tag.text", Index: 7, Kind: KindRaw},
				{Name: "tag.kind", Index: 8, Kind: KindRaw},
				{Name: "tag.fullRange", Index: 9, Kind: KindLiteral, Schema: SchemaSpan},
				{Name: "tag.detail", Index: 10, Kind: KindRaw},
				{Name: "tag.deprecated", Index: 11, Kind: KindRaw},
			},
		},
		{
			ID:     SchemaVertex,
			Parent: parent(SchemaElement),
			Properties: []Property{
				{Name: "version", Index: 4, Kind: KindRaw},
				{Name: "projectRoot", Index: 5, Kind: KindRaw},
				{Name: "positionEncoding", Index: 6, Kind: KindRaw},
				{Name: "kind", Index: 7, Kind: KindScalar, ShortForm: shortForms("import", "export", "local", "begin", "end")},
				{Name: "name", Index: 8, Kind: KindRaw},
				{Name: "scope", Index: 9, Kind: KindScalar, ShortForm: shortForms("document", "project")},
				{Name: "data", Index: 10, Kind: KindID},
				{Name: "uri", Index: 11, Kind: KindRaw},
				{Name: "languageId", Index: 12, Kind: KindRaw},
				{Name: "contents", Index: 13, Kind: KindRaw},
				{Name: "scheme", Index: 14, Kind: KindRaw},
				{Name: "identifier", Index: 15, Kind: KindRaw},
				{Name: "unique", Index: 16, Kind: KindScalar, ShortForm: shortForms("document", "project", "group", "scheme", "global")},
				{Name: "result", Index: 17, Kind: KindAny},
				{Name: "declarations", Index: 18, Kind: KindArray},
				{Name: "definitions", Index: 19, Kind: KindArray},
				{Name: "references", Index: 20, Kind: KindArray},
				{Name: "referenceResults", Index: 21, Kind: KindIDs},
			},
		},
		{
			ID: SchemaPosition,
			Properties: []Property{
				{Name: "line", Index: 1, Kind: KindRaw},
				{Name: "character", Index: 2, Kind: KindRaw},
			},
		},
		{
			ID: SchemaSpan,
			Properties: []Property{
				{Name: "start", Index: 1, Kind: KindLiteral, Schema: SchemaPosition},
				{Name: "end", Index: 2, Kind: KindLiteral, Schema: SchemaPosition},
			},
		},
	}
}

// NewDefaultRegistry compiles DefaultSchemas.
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultSchemas())
	if err != nil {
		panic("compress: invalid default schemas: " + err.Error())
	}
	return r
}
