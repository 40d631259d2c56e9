// Package compress decodes and encodes compact array records driven by a
// compression schema. A record is a JSON array whose first element names the
// descriptor that lays out the remaining slots.
//
// The package knows nothing about graph element labels. Callers interpret
// the structured maps it produces.
package compress

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownSchema means a record names a descriptor the registry does not hold.
	ErrUnknownSchema = errors.New("compress: unknown schema id")
	// ErrUnknownKind means a property uses an unrecognized compression kind.
	ErrUnknownKind = errors.New("compress: unknown compression kind")
	// ErrMalformedRecord means a record or nested value has the wrong shape.
	ErrMalformedRecord = errors.New("compress: malformed record")
)

// Kind selects how a property value is packed.
type Kind string

const (
	KindRaw     Kind = "raw"
	KindScalar  Kind = "scalar"
	KindLiteral Kind = "literal"
	KindArray   Kind = "array"
	KindAny     Kind = "any"
	KindID      Kind = "id"
	KindIDs     Kind = "ids"
)

func (k Kind) valid() bool {
	switch k {
	case KindRaw, KindScalar, KindLiteral, KindArray, KindAny, KindID, KindIDs:
		return true
	}
	return false
}

// ShortForm maps a long scalar value to its compact numeric code. It is
// serialized as a [long, short] pair.
type ShortForm struct {
	Long  string
	Short int64
}

func (s ShortForm) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Long, s.Short})
}

func (s *ShortForm) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil || len(pair) != 2 {
		return fmt.Errorf("%w: shortForm entry %s", ErrMalformedRecord, b)
	}
	if err := json.Unmarshal(pair[0], &s.Long); err != nil {
		return fmt.Errorf("%w: shortForm long value: %v", ErrMalformedRecord, err)
	}
	if err := json.Unmarshal(pair[1], &s.Short); err != nil {
		return fmt.Errorf("%w: shortForm short value: %v", ErrMalformedRecord, err)
	}
	return nil
}

// Property places one field of a record at a fixed array index. Dotted names
// address nested objects. Schema names the descriptor used to encode
// literal values and the object elements of array and any values.
type Property struct {
	Name      string      `json:"name"`
	Index     int         `json:"index"`
	Kind      Kind        `json:"compressionKind"`
	ShortForm []ShortForm `json:"shortForm,omitempty"`
	Schema    int         `json:"schema,omitempty"`
}

// Descriptor is one compression schema. Parent properties are decoded
// before the descriptor's own.
type Descriptor struct {
	ID         int        `json:"id"`
	Parent     *int       `json:"parent,omitempty"`
	Properties []Property `json:"properties"`
}

type compiledProperty struct {
	Property
	path    []string
	toLong  map[int64]string
	toShort map[string]int64
}

type schema struct {
	desc   Descriptor
	parent *schema
	props  []compiledProperty
	width  int
}

// chain returns the descriptor's ancestry, root first.
func (s *schema) chain() []*schema {
	var out []*schema
	for cur := s; cur != nil; cur = cur.parent {
		out = append(out, cur)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Registry holds the descriptors of one database. Registries are immutable
// after construction and safe for concurrent use.
type Registry struct {
	byID map[int]*schema
}

// NewRegistry compiles and validates a descriptor set. Parents must exist
// and parent chains must not loop.
func NewRegistry(descs []Descriptor) (*Registry, error) {
	r := &Registry{byID: make(map[int]*schema, len(descs))}
	for _, d := range descs {
		if d.ID <= 0 {
			return nil, fmt.Errorf("%w: descriptor id %d", ErrMalformedRecord, d.ID)
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate descriptor %d", ErrMalformedRecord, d.ID)
		}
		s := &schema{desc: d, width: 1}
		for _, p := range d.Properties {
			if !p.Kind.valid() {
				return nil, fmt.Errorf("%w: %q on %s in schema %d", ErrUnknownKind, p.Kind, p.Name, d.ID)
			}
			if p.Index < 1 {
				return nil, fmt.Errorf("%w: property %s in schema %d has index %d", ErrMalformedRecord, p.Name, d.ID, p.Index)
			}
			cp := compiledProperty{Property: p, path: splitPath(p.Name)}
			if len(p.ShortForm) > 0 {
				cp.toLong = make(map[int64]string, len(p.ShortForm))
				cp.toShort = make(map[string]int64, len(p.ShortForm))
				for _, sf := range p.ShortForm {
					cp.toLong[sf.Short] = sf.Long
					cp.toShort[sf.Long] = sf.Short
				}
			}
			s.props = append(s.props, cp)
		}
		r.byID[d.ID] = s
	}

	for id, s := range r.byID {
		if s.desc.Parent == nil {
			continue
		}
		parent, ok := r.byID[*s.desc.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: schema %d names parent %d", ErrUnknownSchema, id, *s.desc.Parent)
		}
		s.parent = parent
	}
	for id, s := range r.byID {
		seen := map[int]bool{}
		for cur := s; cur != nil; cur = cur.parent {
			if seen[cur.desc.ID] {
				return nil, fmt.Errorf("%w: parent cycle through schema %d", ErrMalformedRecord, id)
			}
			seen[cur.desc.ID] = true
		}
	}
	for _, s := range r.byID {
		for _, link := range s.chain() {
			for _, p := range link.props {
				if p.Index+1 > s.width {
					s.width = p.Index + 1
				}
			}
		}
	}
	return r, nil
}

// ParseRegistry builds a registry from a JSON array of descriptors.
func ParseRegistry(data []byte) (*Registry, error) {
	var descs []Descriptor
	if err := json.Unmarshal(data, &descs); err != nil {
		return nil, fmt.Errorf("parse compressors: %w", err)
	}
	return NewRegistry(descs)
}

// Descriptors returns the registry's descriptors ordered by id.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarshalJSON serializes the registry as its descriptor list.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Descriptors())
}

func (r *Registry) lookup(id int) (*schema, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSchema, id)
	}
	return s, nil
}
