// Package lsif defines the wire model of an LSIF dump: vertices, edges, the
// typed views the query engines work with, and the small normalizations
// shared by every backend.
package lsif

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.lsp.dev/protocol"
)

// Element is the union of every vertex and edge shape a dump may contain.
// Fields that do not apply to an element's label stay zero.
type Element struct {
	ID    ID          `json:"id"`
	Type  ElementType `json:"type"`
	Label string      `json:"label"`

	// Edges.
	OutV     ID     `json:"outV,omitempty"`
	InV      ID     `json:"inV,omitempty"`
	InVs     []ID   `json:"inVs,omitempty"`
	Property string `json:"property,omitempty"`
	Shard    ID     `json:"shard,omitempty"`
	Document ID     `json:"document,omitempty"`

	// metaData.
	Version          string `json:"version,omitempty"`
	ProjectRoot      string `json:"projectRoot,omitempty"`
	PositionEncoding string `json:"positionEncoding,omitempty"`

	// project, document, moniker, $event.
	Kind       string `json:"kind,omitempty"`
	Name       string `json:"name,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Data       ID     `json:"data,omitempty"`
	URI        string `json:"uri,omitempty"`
	LanguageID string `json:"languageId,omitempty"`
	Contents   string `json:"contents,omitempty"`

	// range.
	Start *protocol.Position `json:"start,omitempty"`
	End   *protocol.Position `json:"end,omitempty"`
	Tag   *RangeTag          `json:"tag,omitempty"`

	// moniker.
	Scheme     string `json:"scheme,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Unique     string `json:"unique,omitempty"`

	// Result vertices. Result carries the payload of hover, documentSymbol,
	// foldingRange and diagnostic results; the remaining fields are the
	// legacy inline forms of declaration, definition and reference results.
	Result           json.RawMessage   `json:"result,omitempty"`
	Declarations     []json.RawMessage `json:"declarations,omitempty"`
	Definitions      []json.RawMessage `json:"definitions,omitempty"`
	References       []json.RawMessage `json:"references,omitempty"`
	ReferenceResults []ID              `json:"referenceResults,omitempty"`
}

// ParseElement decodes one serialized element.
func ParseElement(data []byte) (*Element, error) {
	var e Element
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.Type != ElementVertex && e.Type != ElementEdge {
		return nil, fmt.Errorf("%w: element %s has type %q", ErrMalformed, e.ID, e.Type)
	}
	return &e, nil
}

// IsVertex reports whether e is a vertex.
func (e *Element) IsVertex() bool { return e.Type == ElementVertex }

// IsEdge reports whether e is an edge.
func (e *Element) IsEdge() bool { return e.Type == ElementEdge }

// Targets returns the in-vertices of an edge in declaration order.
func (e *Element) Targets() []ID {
	if e.InV != "" {
		return []ID{e.InV}
	}
	return e.InVs
}

// ItemShard returns the document an item edge is scoped to, accepting both
// the shard and the older document property.
func (e *Element) ItemShard() ID {
	if e.Shard != "" {
		return e.Shard
	}
	return e.Document
}

// HasInlineResults reports whether a result vertex lists its targets itself
// instead of through item edges.
func (e *Element) HasInlineResults() bool {
	return e.Declarations != nil || e.Definitions != nil || e.References != nil || e.ReferenceResults != nil
}

// RangeTag is the optional symbol annotation on a range vertex.
type RangeTag struct {
	Type       string              `json:"type"`
	Text       string              `json:"text,omitempty"`
	Kind       protocol.SymbolKind `json:"kind,omitempty"`
	FullRange  *protocol.Range     `json:"fullRange,omitempty"`
	Detail     string              `json:"detail,omitempty"`
	Deprecated bool                `json:"deprecated,omitempty"`
}

// IsSymbol reports whether the tag marks a declaration or definition.
func (t *RangeTag) IsSymbol() bool {
	return t != nil && (t.Type == TagDeclaration || t.Type == TagDefinition)
}

// Range is the typed view of a range vertex.
type Range struct {
	ID   ID
	Span protocol.Range
	Tag  *RangeTag
}

// AsRange returns the range view of e, or false when e is not a range.
func (e *Element) AsRange() (*Range, bool) {
	if !e.IsVertex() || e.Label != VertexRange || e.Start == nil || e.End == nil {
		return nil, false
	}
	return &Range{
		ID:   e.ID,
		Span: protocol.Range{Start: *e.Start, End: *e.End},
		Tag:  e.Tag,
	}, true
}

// Document is the typed view of a document vertex.
type Document struct {
	ID         ID
	URI        string
	LanguageID string
	Contents   string
}

// AsDocument returns the document view of e.
func (e *Element) AsDocument() (*Document, bool) {
	if !e.IsVertex() || e.Label != VertexDocument {
		return nil, false
	}
	return &Document{ID: e.ID, URI: e.URI, LanguageID: e.LanguageID, Contents: e.Contents}, true
}

// DecodeContents returns the base64-decoded document text. Documents
// without embedded contents return nil.
func DecodeContents(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode contents: %w", err)
	}
	return b, nil
}

// MonikerKind is the role a moniker plays for its symbol.
type MonikerKind string

const (
	MonikerImport MonikerKind = "import"
	MonikerExport MonikerKind = "export"
	MonikerLocal  MonikerKind = "local"
)

// Moniker is the typed view of a moniker vertex.
type Moniker struct {
	ID         ID
	Scheme     string
	Identifier string
	Kind       MonikerKind
	Unique     Uniqueness
}

// AsMoniker returns the moniker view of e.
func (e *Element) AsMoniker() (*Moniker, bool) {
	if !e.IsVertex() || e.Label != VertexMoniker {
		return nil, false
	}
	return &Moniker{
		ID:         e.ID,
		Scheme:     e.Scheme,
		Identifier: e.Identifier,
		Kind:       MonikerKind(e.Kind),
		Unique:     Uniqueness(e.Unique),
	}, true
}

// MetaData is the typed view of the metaData vertex.
type MetaData struct {
	Version          string
	ProjectRoot      string
	PositionEncoding string
}

// AsMetaData returns the metaData view of e.
func (e *Element) AsMetaData() (*MetaData, bool) {
	if !e.IsVertex() || e.Label != VertexMetaData {
		return nil, false
	}
	return &MetaData{Version: e.Version, ProjectRoot: e.ProjectRoot, PositionEncoding: e.PositionEncoding}, true
}

// DocumentInfo describes one indexed document.
type DocumentInfo struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId,omitempty"`
	Hash       string `json:"hash,omitempty"`
}
