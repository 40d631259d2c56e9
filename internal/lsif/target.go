package lsif

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.lsp.dev/protocol"
)

// TargetKind classifies an entry of a declaration, definition or reference result.
type TargetKind int

const (
	TargetDeclaration TargetKind = iota + 1
	TargetDefinition
	TargetReference
	TargetReferenceResult
)

func (k TargetKind) String() string {
	switch k {
	case TargetDeclaration:
		return "declaration"
	case TargetDefinition:
		return "definition"
	case TargetReference:
		return "reference"
	case TargetReferenceResult:
		return "referenceResult"
	default:
		return "unknown"
	}
}

// TargetKindForProperty maps an item edge property to its target kind.
func TargetKindForProperty(property string) (TargetKind, bool) {
	switch property {
	case PropertyDeclarations:
		return TargetDeclaration, true
	case PropertyDefinitions:
		return TargetDefinition, true
	case PropertyReferences:
		return TargetReference, true
	case PropertyReferenceResults, PropertyReferenceLinks, PropertyImplementationResults:
		return TargetReferenceResult, true
	default:
		return 0, false
	}
}

func targetKindForTag(tag string) (TargetKind, bool) {
	switch tag {
	case TagDeclaration:
		return TargetDeclaration, true
	case TagDefinition:
		return TargetDefinition, true
	case TagReference:
		return TargetReference, true
	case VertexReferenceResult:
		return TargetReferenceResult, true
	default:
		return 0, false
	}
}

// Target is one entry of a result. Exactly one of RangeID or Location is
// set; reference-result targets carry the child result in RangeID.
type Target struct {
	Kind     TargetKind
	RangeID  ID
	Location *protocol.Location
}

type inlineTarget struct {
	Type   string          `json:"type"`
	URI    string          `json:"uri"`
	Range  json.RawMessage `json:"range"`
	Result ID              `json:"result"`
}

// ParseTarget decodes one inline result entry. Entries are a bare range id,
// an inline {uri, range} location, or a tagged {type, range} or
// {type: "referenceResult", result} literal whose type overrides kind.
func ParseTarget(kind TargetKind, raw json.RawMessage) (Target, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Target{}, fmt.Errorf("%w: empty result entry", ErrMalformed)
	}
	if raw[0] != '{' {
		var id ID
		if err := json.Unmarshal(raw, &id); err != nil {
			return Target{}, fmt.Errorf("%w: result entry: %v", ErrMalformed, err)
		}
		return Target{Kind: kind, RangeID: id}, nil
	}

	var it inlineTarget
	if err := json.Unmarshal(raw, &it); err != nil {
		return Target{}, fmt.Errorf("%w: result entry: %v", ErrMalformed, err)
	}
	if it.Type != "" {
		if k, ok := targetKindForTag(it.Type); ok {
			kind = k
		}
	}
	if kind == TargetReferenceResult && it.Result != "" {
		return Target{Kind: kind, RangeID: it.Result}, nil
	}
	rng := bytes.TrimSpace(it.Range)
	if len(rng) == 0 {
		return Target{}, fmt.Errorf("%w: result entry without range", ErrMalformed)
	}
	if rng[0] != '{' {
		var id ID
		if err := json.Unmarshal(rng, &id); err != nil {
			return Target{}, fmt.Errorf("%w: result entry range: %v", ErrMalformed, err)
		}
		return Target{Kind: kind, RangeID: id}, nil
	}
	var r protocol.Range
	if err := json.Unmarshal(rng, &r); err != nil {
		return Target{}, fmt.Errorf("%w: result entry range: %v", ErrMalformed, err)
	}
	return Target{Kind: kind, Location: &protocol.Location{URI: protocol.DocumentURI(it.URI), Range: r}}, nil
}

// InlineTargets returns the targets a legacy result vertex lists itself.
func (e *Element) InlineTargets() ([]Target, error) {
	var out []Target
	add := func(kind TargetKind, entries []json.RawMessage) error {
		for _, raw := range entries {
			t, err := ParseTarget(kind, raw)
			if err != nil {
				return fmt.Errorf("vertex %s: %w", e.ID, err)
			}
			out = append(out, t)
		}
		return nil
	}
	if err := add(TargetDeclaration, e.Declarations); err != nil {
		return nil, err
	}
	if err := add(TargetDefinition, e.Definitions); err != nil {
		return nil, err
	}
	if err := add(TargetReference, e.References); err != nil {
		return nil, err
	}
	for _, id := range e.ReferenceResults {
		out = append(out, Target{Kind: TargetReferenceResult, RangeID: id})
	}
	return out, nil
}
