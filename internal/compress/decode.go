package compress

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DecompressJSON decodes a serialized record. Numbers are kept as
// json.Number so integer ids survive unchanged.
func (r *Registry) DecompressJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var record []any
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return r.Decompress(record)
}

// Decompress expands a compact record into a structured map. The schema id
// at element 0 selects the descriptor; parent descriptors are applied first.
func (r *Registry) Decompress(record []any) (map[string]any, error) {
	if len(record) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrMalformedRecord)
	}
	id, ok := schemaID(record[0])
	if !ok {
		return nil, fmt.Errorf("%w: record does not start with a schema id", ErrMalformedRecord)
	}
	s, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for _, link := range s.chain() {
		for _, p := range link.props {
			if p.Index >= len(record) || record[p.Index] == nil {
				continue
			}
			v, err := r.decodeValue(&p, record[p.Index])
			if err != nil {
				return nil, fmt.Errorf("schema %d property %s: %w", link.desc.ID, p.Name, err)
			}
			setPath(out, p.path, v)
		}
	}
	return out, nil
}

func (r *Registry) decodeValue(p *compiledProperty, v any) (any, error) {
	switch p.Kind {
	case KindRaw, KindID, KindIDs:
		return v, nil
	case KindScalar:
		if p.toLong != nil {
			if code, ok := integer(v); ok {
				if long, ok := p.toLong[code]; ok {
					return long, nil
				}
			}
		}
		return v, nil
	case KindLiteral:
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: literal value is not an array", ErrMalformedRecord)
		}
		return r.Decompress(arr)
	case KindArray:
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: array value is %T", ErrMalformedRecord, v)
		}
		return r.decodeElements(arr)
	case KindAny:
		if arr, ok := v.([]any); ok {
			return r.decodeElements(arr)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
	}
}

// decodeElements classifies each element independently: nested arrays are
// compact records, everything else passes through.
func (r *Registry) decodeElements(arr []any) ([]any, error) {
	out := make([]any, len(arr))
	for i, e := range arr {
		nested, ok := e.([]any)
		if !ok {
			out[i] = e
			continue
		}
		m, err := r.Decompress(nested)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = m
	}
	return out, nil
}

func splitPath(name string) []string {
	return strings.Split(name, ".")
}

func setPath(m map[string]any, path []string, v any) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

func getPath(m map[string]any, path []string) (any, bool) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			return nil, false
		}
		m = next
	}
	v, ok := m[path[len(path)-1]]
	return v, ok
}

func schemaID(v any) (int, bool) {
	n, ok := integer(v)
	if !ok || n <= 0 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
