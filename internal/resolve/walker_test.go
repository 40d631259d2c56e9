package resolve

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/lsif"
)

// =============================================================================
// Chains
// =============================================================================

func TestChain_FollowsNextAndRefersTo(t *testing.T) {
	t.Parallel()
	g := newFakeGraph()
	g.edge(lsif.EdgeNext, "1", "2")
	g.edge(lsif.EdgeRefersTo, "2", "3")

	chain, err := NewWalker(g, 0).Chain("1")
	require.NoError(t, err)
	assert.Equal(t, []lsif.ID{"1", "2", "3"}, chain)
}

func TestChain_DetectsCycle(t *testing.T) {
	t.Parallel()
	g := newFakeGraph()
	g.edge(lsif.EdgeNext, "1", "2")
	g.edge(lsif.EdgeNext, "2", "3")
	g.edge(lsif.EdgeNext, "3", "2")

	_, err := NewWalker(g, 0).Chain("1")
	assert.ErrorIs(t, err, lsif.ErrCycle)
}

func TestChain_DepthBound(t *testing.T) {
	t.Parallel()
	g := newFakeGraph()
	g.edge(lsif.EdgeNext, "1", "2")
	g.edge(lsif.EdgeNext, "2", "3")
	g.edge(lsif.EdgeNext, "3", "4")

	_, err := NewWalker(g, 3).Chain("1")
	assert.ErrorIs(t, err, lsif.ErrCycle)

	chain, err := NewWalker(g, 4).Chain("1")
	require.NoError(t, err)
	assert.Len(t, chain, 4)
}

func TestResult_FirstCarrierWins(t *testing.T) {
	t.Parallel()
	g := newFakeGraph()
	g.edge(lsif.EdgeDefinition, "2", "50")
	g.edge(lsif.EdgeDefinition, "3", "60")

	id, idx, err := NewWalker(g, 0).Result([]lsif.ID{"1", "2", "3"}, lsif.EdgeDefinition)
	require.NoError(t, err)
	assert.Equal(t, lsif.ID("50"), id)
	assert.Equal(t, 1, idx)

	id, idx, err = NewWalker(g, 0).Result([]lsif.ID{"1"}, lsif.EdgeHover)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, -1, idx)
}

// =============================================================================
// References
// =============================================================================

func TestReferences_DedupAcrossPaths(t *testing.T) {
	t.Parallel()
	g := newFakeGraph()
	g.document("1", "file:///a.ts")
	g.rng("10", "1", 1, 0, 1, 3)
	g.rng("11", "1", 2, 0, 2, 3)
	g.vertex("30", lsif.VertexReferenceResult)
	g.vertex("31", lsif.VertexReferenceResult)
	g.item("30", lsif.PropertyReferences, "10")
	g.item("30", lsif.PropertyReferenceResults, "31")
	g.item("31", lsif.PropertyReferences, "10", "11")

	locs, err := NewWalker(g, 0).References("30", false)
	require.NoError(t, err)
	assert.Equal(t, []protocol.Location{
		loc("file:///a.ts", 1, 0, 1, 3),
		loc("file:///a.ts", 2, 0, 2, 3),
	}, locs)
}

func TestReferences_ChildCycleVisitedOnce(t *testing.T) {
	t.Parallel()
	g := newFakeGraph()
	g.document("1", "file:///a.ts")
	g.rng("10", "1", 1, 0, 1, 3)
	g.vertex("30", lsif.VertexReferenceResult)
	g.vertex("31", lsif.VertexReferenceResult)
	g.item("30", lsif.PropertyReferenceResults, "31")
	g.item("31", lsif.PropertyReferenceResults, "30")
	g.item("31", lsif.PropertyReferences, "10")

	locs, err := NewWalker(g, 0).References("30", true)
	require.NoError(t, err)
	assert.Len(t, locs, 1)
}

func TestReferences_IncludeDeclarationGate(t *testing.T) {
	t.Parallel()
	g := twoFileGraph()
	w := NewWalker(g, 0)

	without, err := w.References("31", false)
	require.NoError(t, err)
	assert.Equal(t, []protocol.Location{loc("file:///b.ts", 1, 0, 1, 3)}, without)

	with, err := w.References("31", true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []protocol.Location{
		loc("file:///a.ts", 5, 0, 5, 3),
		loc("file:///b.ts", 1, 0, 1, 3),
	}, with)
}

func TestReferences_InlineFieldsWinOverItems(t *testing.T) {
	t.Parallel()
	g := newFakeGraph()
	g.document("1", "file:///a.ts")
	g.rng("10", "1", 1, 0, 1, 3)
	g.rng("11", "1", 2, 0, 2, 3)
	v := g.vertex("30", lsif.VertexReferenceResult)
	v.References = []json.RawMessage{json.RawMessage(`10`), json.RawMessage(`{"uri":"file:///z.ts","range":{"start":{"line":0,"character":0},"end":{"line":0,"character":1}}}`)}
	g.item("30", lsif.PropertyReferences, "11")

	locs, err := NewWalker(g, 0).References("30", false)
	require.NoError(t, err)
	assert.Equal(t, []protocol.Location{
		loc("file:///a.ts", 1, 0, 1, 3),
		loc("file:///z.ts", 0, 0, 0, 1),
	}, locs)
}

func TestLocations_FollowImplementationChildren(t *testing.T) {
	t.Parallel()
	g := newFakeGraph()
	g.document("1", "file:///a.ts")
	g.rng("10", "1", 1, 0, 1, 3)
	g.rng("11", "1", 2, 0, 2, 3)
	g.vertex("40", lsif.VertexImplementationResult)
	g.vertex("41", lsif.VertexImplementationResult)
	g.item("40", "", "10")
	g.item("40", lsif.PropertyImplementationResults, "41")
	g.item("41", "", "11", "10")

	locs, err := NewWalker(g, 0).Locations("40")
	require.NoError(t, err)
	assert.Len(t, locs, 2)
}

// =============================================================================
// Hover
// =============================================================================

func TestHover_FallsBackToDefinition(t *testing.T) {
	t.Parallel()
	g := newFakeGraph()
	g.document("1", "file:///a.ts")
	g.rng("10", "1", 5, 0, 5, 3)
	g.rng("11", "1", 9, 0, 9, 3)
	g.result("32", lsif.VertexHoverResult, map[string]any{
		"contents": "decl hover",
		"range":    map[string]any{"start": map[string]any{"line": 5, "character": 0}, "end": map[string]any{"line": 5, "character": 3}},
	})
	g.edge(lsif.EdgeHover, "10", "32")
	g.vertex("30", lsif.VertexDefinitionResult)
	g.edge(lsif.EdgeDefinition, "11", "30")
	g.item("30", "", "10")

	h, err := NewWalker(g, 0).Hover([]lsif.ID{"11"})
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "decl hover", h.Contents.Value)
	assert.Nil(t, h.Range, "definition's range must not leak")
}

// =============================================================================
// Document symbols
// =============================================================================

func TestDocumentSymbols_RangeBasedDropsUntagged(t *testing.T) {
	t.Parallel()
	g := newFakeGraph()
	g.document("1", "file:///a.ts")
	full := protocol.Range{Start: at(0, 0), End: at(10, 1)}
	g.rng("10", "1", 0, 6, 0, 9).Tag = &lsif.RangeTag{Type: lsif.TagDefinition, Text: "Foo", Kind: protocol.SymbolKindClass, FullRange: &full}
	g.rng("11", "1", 2, 2, 2, 5).Tag = &lsif.RangeTag{Type: lsif.TagDeclaration, Text: "bar", Kind: protocol.SymbolKindMethod}
	g.rng("12", "1", 4, 2, 4, 5)
	g.rng("13", "1", 6, 2, 6, 5).Tag = &lsif.RangeTag{Type: lsif.TagReference, Text: "ref"}

	raw := json.RawMessage(`[{"id":10,"children":[{"id":11},{"id":12,"children":[{"id":11}]},{"id":13}]},{"id":99}]`)
	syms, err := DocumentSymbols(raw, func(id lsif.ID) (*lsif.Range, error) {
		v := g.vertices[id]
		if v == nil {
			return nil, nil
		}
		r, _ := v.AsRange()
		return r, nil
	})
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "Foo", syms[0].Name)
	assert.Equal(t, full, syms[0].Range)
	assert.Equal(t, uint32(6), syms[0].SelectionRange.Start.Character)
	require.Len(t, syms[0].Children, 1)
	assert.Equal(t, "bar", syms[0].Children[0].Name)
}

func TestDocumentSymbols_FullSymbolsPassThrough(t *testing.T) {
	t.Parallel()
	raw := json.RawMessage(`[{"name":"main","kind":12,"range":{"start":{"line":0,"character":0},"end":{"line":3,"character":1}},"selectionRange":{"start":{"line":0,"character":5},"end":{"line":0,"character":9}}}]`)
	syms, err := DocumentSymbols(raw, nil)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "main", syms[0].Name)
	assert.Equal(t, protocol.SymbolKindFunction, syms[0].Kind)
}
