// Package blob serves queries from the blob format of a SQLite database:
// one self-contained JSON document per indexed file and build version,
// plus moniker-keyed tables for everything that crosses documents.
package blob

import (
	"encoding/json"
	"sort"
	"strconv"

	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/lsif"
)

// Blob is the per-document payload. Result ids and range ids are local to
// the blob; targets outside the document are reached through monikers.
// PartialResults marks declaration and definition results that also
// pointed outside the document. Order lists the ranges in contains-edge
// order; blobs written without it fall back to id order.
type Blob struct {
	Ranges             map[lsif.ID]*RangeData           `json:"ranges"`
	ResultSets         map[lsif.ID]*ResultSetData       `json:"resultSets,omitempty"`
	Monikers           map[lsif.ID]*MonikerData         `json:"monikers,omitempty"`
	Hovers             map[lsif.ID]*protocol.Hover      `json:"hovers,omitempty"`
	DeclarationResults map[lsif.ID][]lsif.ID            `json:"declarationResults,omitempty"`
	DefinitionResults  map[lsif.ID][]lsif.ID            `json:"definitionResults,omitempty"`
	ReferenceResults   map[lsif.ID]*ReferenceResultData `json:"referenceResults,omitempty"`
	PartialResults     map[lsif.ID]bool                 `json:"partialResults,omitempty"`
	Order              []lsif.ID                        `json:"order,omitempty"`
	FoldingRanges      json.RawMessage                  `json:"foldingRanges,omitempty"`
	DocumentSymbols    json.RawMessage                  `json:"documentSymbols,omitempty"`
	Diagnostics        json.RawMessage                  `json:"diagnostics,omitempty"`

	order []lsif.ID
}

// ResultSetData is a chain node: its successor, moniker and result ids.
type ResultSetData struct {
	Next              lsif.ID `json:"next,omitempty"`
	Moniker           lsif.ID `json:"moniker,omitempty"`
	DeclarationResult lsif.ID `json:"declarationResult,omitempty"`
	DefinitionResult  lsif.ID `json:"definitionResult,omitempty"`
	ReferenceResult   lsif.ID `json:"referenceResult,omitempty"`
	HoverResult       lsif.ID `json:"hoverResult,omitempty"`
}

// RangeData is a range and the chain node it starts.
type RangeData struct {
	Start protocol.Position `json:"start"`
	End   protocol.Position `json:"end"`
	Tag   *lsif.RangeTag    `json:"tag,omitempty"`
	ResultSetData
}

// Span returns the range as a protocol.Range.
func (r *RangeData) Span() protocol.Range {
	return protocol.Range{Start: r.Start, End: r.End}
}

type MonikerData struct {
	Scheme     string          `json:"scheme"`
	Identifier string          `json:"identifier"`
	Kind       string          `json:"kind,omitempty"`
	Unique     lsif.Uniqueness `json:"unique,omitempty"`
	Attach     lsif.ID         `json:"attach,omitempty"`
}

// ReferenceResultData holds the local targets of a reference result.
// Partial is set when the result also had targets in other documents.
type ReferenceResultData struct {
	Declarations []lsif.ID `json:"declarations,omitempty"`
	Definitions  []lsif.ID `json:"definitions,omitempty"`
	References   []lsif.ID `json:"references,omitempty"`
	Partial      bool      `json:"partial,omitempty"`
}

// Parse decodes a serialized blob.
func Parse(data []byte) (*Blob, error) {
	var b Blob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	if len(b.Order) == len(b.Ranges) {
		b.order = b.Order
		return &b, nil
	}
	b.order = make([]lsif.ID, 0, len(b.Ranges))
	for id := range b.Ranges {
		b.order = append(b.order, id)
	}
	sort.Slice(b.order, func(i, j int) bool { return lessID(b.order[i], b.order[j]) })
	return &b, nil
}

// node returns the chain node with the given id: a range or a result set.
func (b *Blob) node(id lsif.ID) *ResultSetData {
	if r, ok := b.Ranges[id]; ok {
		return &r.ResultSetData
	}
	return b.ResultSets[id]
}

// lessID orders numeric ids numerically and everything else lexically,
// numbers first.
func lessID(a, b lsif.ID) bool {
	na, errA := strconv.ParseInt(string(a), 10, 64)
	nb, errB := strconv.ParseInt(string(b), 10, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
