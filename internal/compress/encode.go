package compress

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Compress packs value into a compact record using descriptor id. Every
// field of value must be covered by the descriptor chain.
func (r *Registry) Compress(id int, value map[string]any) ([]any, error) {
	s, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	covered := make(map[string]bool)
	record := make([]any, s.width)
	record[0] = id
	for _, link := range s.chain() {
		for _, p := range link.props {
			covered[p.Name] = true
			v, ok := getPath(value, p.path)
			if !ok || v == nil {
				continue
			}
			enc, err := r.encodeValue(&p, v)
			if err != nil {
				return nil, fmt.Errorf("schema %d property %s: %w", link.desc.ID, p.Name, err)
			}
			record[p.Index] = enc
		}
	}
	if missing := uncovered(value, "", covered); len(missing) > 0 {
		return nil, fmt.Errorf("%w: schema %d does not cover %s", ErrMalformedRecord, id, strings.Join(missing, ", "))
	}
	end := len(record)
	for end > 1 && record[end-1] == nil {
		end--
	}
	return record[:end], nil
}

// CompressJSON packs value and serializes the record.
func (r *Registry) CompressJSON(id int, value map[string]any) ([]byte, error) {
	record, err := r.Compress(id, value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(record)
}

func (r *Registry) encodeValue(p *compiledProperty, v any) (any, error) {
	switch p.Kind {
	case KindRaw, KindID, KindIDs:
		return v, nil
	case KindScalar:
		if s, ok := v.(string); ok && p.toShort != nil {
			if short, ok := p.toShort[s]; ok {
				return short, nil
			}
		}
		return v, nil
	case KindLiteral:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: literal value is %T", ErrMalformedRecord, v)
		}
		return r.Compress(p.Schema, m)
	case KindArray:
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: array value is %T", ErrMalformedRecord, v)
		}
		return r.encodeElements(p, arr)
	case KindAny:
		switch x := v.(type) {
		case []any:
			return r.encodeElements(p, x)
		case map[string]any:
			if p.Schema != 0 {
				return r.Compress(p.Schema, x)
			}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
	}
}

func (r *Registry) encodeElements(p *compiledProperty, arr []any) ([]any, error) {
	out := make([]any, len(arr))
	for i, e := range arr {
		m, ok := e.(map[string]any)
		if !ok || p.Schema == 0 {
			out[i] = e
			continue
		}
		enc, err := r.Compress(p.Schema, m)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = enc
	}
	return out, nil
}

// uncovered lists the field paths of value that no property names. Nested
// objects are only descended into when some property addresses a field
// inside them.
func uncovered(value map[string]any, prefix string, covered map[string]bool) []string {
	var missing []string
	for key, v := range value {
		name := prefix + key
		if covered[name] {
			continue
		}
		if nested, ok := v.(map[string]any); ok && hasPrefix(covered, name+".") {
			missing = append(missing, uncovered(nested, name+".", covered)...)
			continue
		}
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return missing
}

func hasPrefix(covered map[string]bool, prefix string) bool {
	for name := range covered {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
