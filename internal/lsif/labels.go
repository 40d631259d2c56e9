package lsif

// ElementType distinguishes vertices from edges.
type ElementType string

const (
	ElementVertex ElementType = "vertex"
	ElementEdge   ElementType = "edge"
)

// Vertex labels.
const (
	VertexMetaData             = "metaData"
	VertexEvent                = "$event"
	VertexSource               = "source"
	VertexProject              = "project"
	VertexDocument             = "document"
	VertexRange                = "range"
	VertexResultSet            = "resultSet"
	VertexMoniker              = "moniker"
	VertexPackageInformation   = "packageInformation"
	VertexHoverResult          = "hoverResult"
	VertexDeclarationResult    = "declarationResult"
	VertexDefinitionResult     = "definitionResult"
	VertexTypeDefinitionResult = "typeDefinitionResult"
	VertexReferenceResult      = "referenceResult"
	VertexImplementationResult = "implementationResult"
	VertexDocumentSymbolResult = "documentSymbolResult"
	VertexFoldingRangeResult   = "foldingRangeResult"
	VertexDiagnosticResult     = "diagnosticResult"
)

// Edge labels.
const (
	EdgeContains           = "contains"
	EdgeItem               = "item"
	EdgeNext               = "next"
	EdgeRefersTo           = "refersTo"
	EdgeMoniker            = "moniker"
	EdgeAttach             = "attach"
	EdgePackageInformation = "packageInformation"
	EdgeDocumentSymbol     = "textDocument/documentSymbol"
	EdgeFoldingRange       = "textDocument/foldingRange"
	EdgeDiagnostic         = "textDocument/diagnostic"
	EdgeHover              = "textDocument/hover"
	EdgeDeclaration        = "textDocument/declaration"
	EdgeDefinition         = "textDocument/definition"
	EdgeTypeDefinition     = "textDocument/typeDefinition"
	EdgeReferences         = "textDocument/references"
	EdgeImplementation     = "textDocument/implementation"
)

// Item edge properties.
const (
	PropertyDeclarations          = "declarations"
	PropertyDefinitions           = "definitions"
	PropertyReferences            = "references"
	PropertyReferenceResults      = "referenceResults"
	PropertyReferenceLinks        = "referenceLinks"
	PropertyImplementationResults = "implementationResults"
)

// Range tag types that mark a range as a symbol.
const (
	TagDeclaration = "declaration"
	TagDefinition  = "definition"
	TagReference   = "reference"
	TagUnknown     = "unknown"
)
