package lsif

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.lsp.dev/protocol"
)

type hoverPayload struct {
	Contents json.RawMessage `json:"contents"`
	Range    *protocol.Range `json:"range,omitempty"`
}

type markedString struct {
	Kind     string `json:"kind"`
	Language string `json:"language"`
	Value    string `json:"value"`
}

// ParseHover decodes a hoverResult payload. Legacy MarkedString contents are
// folded into a single markdown MarkupContent.
func ParseHover(raw json.RawMessage) (*protocol.Hover, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var p hoverPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: hover: %v", ErrMalformed, err)
	}
	contents, err := NormalizeHoverContents(p.Contents)
	if err != nil {
		return nil, err
	}
	return &protocol.Hover{Contents: contents, Range: p.Range}, nil
}

// NormalizeHoverContents converts any of the hover content encodings to
// MarkupContent.
func NormalizeHoverContents(raw json.RawMessage) (protocol.MarkupContent, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return protocol.MarkupContent{Kind: protocol.Markdown}, nil
	}
	switch raw[0] {
	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil {
			return protocol.MarkupContent{}, fmt.Errorf("%w: hover contents: %v", ErrMalformed, err)
		}
		values := make([]string, 0, len(parts))
		for _, part := range parts {
			mc, err := NormalizeHoverContents(part)
			if err != nil {
				return protocol.MarkupContent{}, err
			}
			if mc.Value != "" {
				values = append(values, mc.Value)
			}
		}
		return protocol.MarkupContent{Kind: protocol.Markdown, Value: strings.Join(values, "\n\n")}, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return protocol.MarkupContent{}, fmt.Errorf("%w: hover contents: %v", ErrMalformed, err)
		}
		return protocol.MarkupContent{Kind: protocol.Markdown, Value: s}, nil
	}

	var ms markedString
	if err := json.Unmarshal(raw, &ms); err != nil {
		return protocol.MarkupContent{}, fmt.Errorf("%w: hover contents: %v", ErrMalformed, err)
	}
	if ms.Kind != "" {
		return protocol.MarkupContent{Kind: protocol.MarkupKind(ms.Kind), Value: ms.Value}, nil
	}
	return protocol.MarkupContent{
		Kind:  protocol.Markdown,
		Value: "```" + ms.Language + "\n" + ms.Value + "\n```",
	}, nil
}
