package resolve

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/lsif"
)

// RangeSymbol is the range-based form of a document symbol: a range id
// plus nested children.
type RangeSymbol struct {
	ID       lsif.ID       `json:"id"`
	Children []RangeSymbol `json:"children,omitempty"`
}

// IsRangeBased reports whether a documentSymbolResult payload uses the
// range-based form. An entry with an id and no name is range-based.
func IsRangeBased(raw json.RawMessage) (bool, error) {
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return false, fmt.Errorf("%w: document symbols: %v", lsif.ErrMalformed, err)
	}
	if len(entries) == 0 {
		return false, nil
	}
	_, hasID := entries[0]["id"]
	_, hasName := entries[0]["name"]
	return hasID && !hasName, nil
}

// DocumentSymbols decodes a documentSymbolResult payload. Full symbols pass
// through; range-based entries are resolved through rangeOf, and entries
// whose range is missing or lacks a declaration or definition tag are
// dropped together with their children.
func DocumentSymbols(raw json.RawMessage, rangeOf func(lsif.ID) (*lsif.Range, error)) ([]protocol.DocumentSymbol, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	rangeBased, err := IsRangeBased(raw)
	if err != nil {
		return nil, err
	}
	if !rangeBased {
		var syms []protocol.DocumentSymbol
		if err := json.Unmarshal(raw, &syms); err != nil {
			return nil, fmt.Errorf("%w: document symbols: %v", lsif.ErrMalformed, err)
		}
		return syms, nil
	}

	var entries []RangeSymbol
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: document symbols: %v", lsif.ErrMalformed, err)
	}
	return BuildSymbolTree(entries, rangeOf)
}

// BuildSymbolTree converts range-based symbols into document symbols.
func BuildSymbolTree(entries []RangeSymbol, rangeOf func(lsif.ID) (*lsif.Range, error)) ([]protocol.DocumentSymbol, error) {
	var out []protocol.DocumentSymbol
	for _, e := range entries {
		r, err := rangeOf(e.ID)
		if err != nil {
			return nil, fmt.Errorf("symbol range %s: %w", e.ID, err)
		}
		if r == nil || !r.Tag.IsSymbol() {
			continue
		}
		sym := protocol.DocumentSymbol{
			Name:           r.Tag.Text,
			Detail:         r.Tag.Detail,
			Kind:           r.Tag.Kind,
			Deprecated:     r.Tag.Deprecated,
			Range:          r.Span,
			SelectionRange: r.Span,
		}
		if r.Tag.FullRange != nil {
			sym.Range = *r.Tag.FullRange
		}
		children, err := BuildSymbolTree(e.Children, rangeOf)
		if err != nil {
			return nil, err
		}
		sym.Children = children
		out = append(out, sym)
	}
	return out, nil
}
