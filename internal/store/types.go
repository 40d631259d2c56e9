package store

// Graph format rows

type VertexRow struct {
	ID    string
	Label string
	Value []byte
}

type EdgeRow struct {
	ID       string
	Label    string
	OutV     string
	InV      string
	Property string
	Shard    string
}

type RangeRow struct {
	ID             string
	BelongsTo      string
	StartLine      uint32
	StartCharacter uint32
	EndLine        uint32
	EndCharacter   uint32
}

type DocumentRow struct {
	ID         string
	URI        string
	LanguageID string
	Hash       string
}

type MonikerRow struct {
	ID         string
	Scheme     string
	Identifier string
	Kind       string
	Uniqueness string
}

// RangeLocation is a range joined with its document's URI.
type RangeLocation struct {
	RangeRow
	URI string
}

// Blob format rows

// RefKind is the role flag on a cross-document reference row.
type RefKind int

const (
	RefDeclaration RefKind = 1
	RefDefinition  RefKind = 2
	RefReference   RefKind = 3
)

// CrossRow is one moniker-indexed location in decls, defs or refs.
type CrossRow struct {
	Scheme         string
	Identifier     string
	DocumentHash   string
	Kind           RefKind
	StartLine      uint32
	StartCharacter uint32
	EndLine        uint32
	EndCharacter   uint32
}

// CrossLocation is a cross-document row joined with the URI of its document.
type CrossLocation struct {
	CrossRow
	URI string
}

type BlobDocumentRow struct {
	URI          string
	DocumentHash string
	LanguageID   string
}

type VersionTag struct {
	ID       int64
	Tag      string
	DateTime int64
}
