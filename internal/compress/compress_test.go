package compress

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, r *Registry, id int, value map[string]any) map[string]any {
	t.Helper()
	data, err := r.CompressJSON(id, value)
	require.NoError(t, err)
	out, err := r.DecompressJSON(data)
	require.NoError(t, err)
	return out
}

func assertSameJSON(t *testing.T, want, got any) {
	t.Helper()
	w, err := json.Marshal(want)
	require.NoError(t, err)
	g, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(w), string(g))
}

// =============================================================================
// Round trips per kind
// =============================================================================

func TestRoundTrip_EachKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		prop  Property
		value any
	}{
		{"raw", Property{Name: "f", Index: 1, Kind: KindRaw}, map[string]any{"nested": true}},
		{"id", Property{Name: "f", Index: 1, Kind: KindID}, 42},
		{"ids", Property{Name: "f", Index: 1, Kind: KindIDs}, []any{1, "two", 3}},
		{"scalar", Property{Name: "f", Index: 1, Kind: KindScalar, ShortForm: shortForms("alpha", "beta")}, "beta"},
		{"scalar without short form", Property{Name: "f", Index: 1, Kind: KindScalar, ShortForm: shortForms("alpha")}, "gamma"},
		{"literal", Property{Name: "f", Index: 1, Kind: KindLiteral, Schema: 2}, map[string]any{"x": 1, "y": 2}},
		{"array", Property{Name: "f", Index: 1, Kind: KindArray, Schema: 2}, []any{map[string]any{"x": 1, "y": 2}, 7}},
		{"any scalar", Property{Name: "f", Index: 1, Kind: KindAny}, "text"},
		{"any list", Property{Name: "f", Index: 1, Kind: KindAny, Schema: 2}, []any{"a", map[string]any{"x": 3, "y": 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := NewRegistry([]Descriptor{
				{ID: 1, Properties: []Property{tt.prop}},
				{ID: 2, Properties: []Property{{Name: "x", Index: 1, Kind: KindRaw}, {Name: "y", Index: 2, Kind: KindRaw}}},
			})
			require.NoError(t, err)
			in := map[string]any{"f": tt.value}
			assertSameJSON(t, in, roundTrip(t, r, 1, in))
		})
	}
}

func TestScalar_UsesShortCode(t *testing.T) {
	t.Parallel()
	r, err := NewRegistry([]Descriptor{{ID: 1, Properties: []Property{
		{Name: "type", Index: 1, Kind: KindScalar, ShortForm: shortForms("vertex", "edge")},
	}}})
	require.NoError(t, err)

	record, err := r.Compress(1, map[string]any{"type": "edge"})
	require.NoError(t, err)
	assert.Equal(t, []any{1, int64(2)}, record)
}

func TestDottedNames_BuildNestedObjects(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	out, err := r.Decompress([]any{SchemaRange, 7, 1, 6, []any{SchemaPosition, 1, 0}, []any{SchemaPosition, 1, 3}, 2, "foo"})
	require.NoError(t, err)

	assert.Equal(t, "vertex", out["type"])
	assert.Equal(t, "range", out["label"])
	tag, ok := out["tag"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "definition", tag["type"])
	assert.Equal(t, "foo", tag["text"])
	start, ok := out["start"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, start["line"])
}

// =============================================================================
// Composition
// =============================================================================

func TestParentComposition(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	in := map[string]any{
		"id":    12,
		"type":  "vertex",
		"label": "range",
		"start": map[string]any{"line": 5, "character": 0},
		"end":   map[string]any{"line": 5, "character": 3},
		"tag": map[string]any{
			"type": "definition",
			"text": "foo",
			"kind": 12,
			"fullRange": map[string]any{
				"start": map[string]any{"line": 4, "character": 0},
				"end":   map[string]any{"line": 8, "character": 1},
			},
		},
	}
	assertSameJSON(t, in, roundTrip(t, r, SchemaRange, in))
}

func TestDefaultSchemas_VertexWithResult(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	in := map[string]any{
		"id": 40, "type": "vertex", "label": "hoverResult",
		"result": map[string]any{"contents": []any{"a", map[string]any{"language": "go", "value": "x"}}},
	}
	assertSameJSON(t, in, roundTrip(t, r, SchemaVertex, in))
}

func TestRegistry_SerializesDescriptors(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(NewDefaultRegistry())
	require.NoError(t, err)

	r, err := ParseRegistry(data)
	require.NoError(t, err)
	assert.Equal(t, DefaultSchemas(), r.Descriptors())
}

// =============================================================================
// Failures
// =============================================================================

func TestDecompress_UnknownSchema(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	_, err := r.Decompress([]any{99, 1})
	assert.ErrorIs(t, err, ErrUnknownSchema)

	_, err = r.Decompress([]any{SchemaRange, 1, 1, 6, []any{99, 0, 0}})
	assert.ErrorIs(t, err, ErrUnknownSchema)
}

func TestDecompress_Malformed(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	_, err := r.Decompress(nil)
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = r.Decompress([]any{"range"})
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = r.Decompress([]any{SchemaRange, 1, 1, 6, 12})
	assert.ErrorIs(t, err, ErrMalformedRecord, "literal must be an array")

	_, err = r.DecompressJSON([]byte(`{"not":"array"}`))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestNewRegistry_Validation(t *testing.T) {
	t.Parallel()
	_, err := NewRegistry([]Descriptor{{ID: 1, Properties: []Property{{Name: "a", Index: 1, Kind: "zip"}}}})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = NewRegistry([]Descriptor{{ID: 1, Parent: parent(7)}})
	assert.ErrorIs(t, err, ErrUnknownSchema)

	_, err = NewRegistry([]Descriptor{{ID: 1, Parent: parent(2)}, {ID: 2, Parent: parent(1)}})
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = NewRegistry([]Descriptor{{ID: 1}, {ID: 1}})
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestCompress_RejectsUncoveredFields(t *testing.T) {
	t.Parallel()
	r := NewDefaultRegistry()
	_, err := r.Compress(SchemaRange, map[string]any{
		"id": 1, "type": "vertex", "label": "range",
		"tag": map[string]any{"type": "definition", "color": "red"},
	})
	require.ErrorIs(t, err, ErrMalformedRecord)
	assert.Contains(t, err.Error(), "tag.color")
}
