package resolve

import (
	"encoding/json"
	"fmt"

	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/geometry"
	"github.com/jward/lsifq/internal/lsif"
)

// fakeGraph is an in-memory Source and Locator for walker tests.
type fakeGraph struct {
	vertices map[lsif.ID]*lsif.Element
	out      map[string]map[lsif.ID][]lsif.ID
	items    map[lsif.ID][]Item
	owner    map[lsif.ID]string
	docs     map[string][]lsif.ID
	ranges   map[lsif.ID][]lsif.ID
	failOn   lsif.ID
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		vertices: map[lsif.ID]*lsif.Element{},
		out:      map[string]map[lsif.ID][]lsif.ID{},
		items:    map[lsif.ID][]Item{},
		owner:    map[lsif.ID]string{},
		docs:     map[string][]lsif.ID{},
		ranges:   map[lsif.ID][]lsif.ID{},
	}
}

func (g *fakeGraph) vertex(id lsif.ID, label string) *lsif.Element {
	v := &lsif.Element{ID: id, Type: lsif.ElementVertex, Label: label}
	g.vertices[id] = v
	return v
}

func (g *fakeGraph) document(id lsif.ID, uri string) {
	g.vertex(id, lsif.VertexDocument).URI = uri
	g.docs[uri] = append(g.docs[uri], id)
}

func (g *fakeGraph) rng(id, doc lsif.ID, sl, sc, el, ec uint32) *lsif.Element {
	v := g.vertex(id, lsif.VertexRange)
	v.Start = &protocol.Position{Line: sl, Character: sc}
	v.End = &protocol.Position{Line: el, Character: ec}
	g.owner[id] = g.vertices[doc].URI
	g.ranges[doc] = append(g.ranges[doc], id)
	return v
}

func (g *fakeGraph) edge(label string, from lsif.ID, to ...lsif.ID) {
	if g.out[label] == nil {
		g.out[label] = map[lsif.ID][]lsif.ID{}
	}
	g.out[label][from] = append(g.out[label][from], to...)
}

func (g *fakeGraph) item(from lsif.ID, property string, to ...lsif.ID) {
	for _, t := range to {
		g.items[from] = append(g.items[from], Item{Target: t, Property: property})
	}
}

func (g *fakeGraph) result(id lsif.ID, label string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	g.vertex(id, label).Result = b
}

func (g *fakeGraph) Vertex(id lsif.ID) (*lsif.Element, error) {
	if id == g.failOn && id != "" {
		return nil, fmt.Errorf("%w: corrupt vertex %s", lsif.ErrMalformed, id)
	}
	return g.vertices[id], nil
}

func (g *fakeGraph) Out(id lsif.ID, label string) ([]lsif.ID, error) {
	return g.out[label][id], nil
}

func (g *fakeGraph) Items(id lsif.ID) ([]Item, error) {
	return g.items[id], nil
}

func (g *fakeGraph) Location(rangeID lsif.ID) (*protocol.Location, error) {
	v := g.vertices[rangeID]
	if v == nil {
		return nil, nil
	}
	r, ok := v.AsRange()
	if !ok {
		return nil, nil
	}
	return &protocol.Location{URI: protocol.DocumentURI(g.owner[rangeID]), Range: r.Span}, nil
}

func (g *fakeGraph) Documents(uri string) ([]lsif.ID, error) {
	return g.docs[uri], nil
}

func (g *fakeGraph) RangesAt(docs []lsif.ID, pos protocol.Position) ([]*lsif.Range, error) {
	var out []*lsif.Range
	for _, d := range docs {
		for _, id := range g.ranges[d] {
			r, _ := g.vertices[id].AsRange()
			if geometry.ContainsPosition(r.Span, pos) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func loc(uri string, sl, sc, el, ec uint32) protocol.Location {
	return protocol.Location{
		URI: protocol.DocumentURI(uri),
		Range: protocol.Range{
			Start: protocol.Position{Line: sl, Character: sc},
			End:   protocol.Position{Line: el, Character: ec},
		},
	}
}

func at(line, char uint32) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

// twoFileGraph builds a.ts defining foo at [5,0]-[5,3] and b.ts
// referencing it at [1,0]-[1,3] through a shared result set.
func twoFileGraph() *fakeGraph {
	g := newFakeGraph()
	g.document("1", "file:///a.ts")
	g.document("2", "file:///b.ts")
	g.rng("10", "1", 5, 0, 5, 3).Tag = &lsif.RangeTag{Type: lsif.TagDefinition, Text: "foo", Kind: protocol.SymbolKindFunction}
	g.rng("11", "2", 1, 0, 1, 3)
	g.vertex("20", lsif.VertexResultSet)
	g.edge(lsif.EdgeNext, "10", "20")
	g.edge(lsif.EdgeNext, "11", "20")
	g.vertex("30", lsif.VertexDefinitionResult)
	g.edge(lsif.EdgeDefinition, "20", "30")
	g.item("30", "", "10")
	g.vertex("31", lsif.VertexReferenceResult)
	g.edge(lsif.EdgeReferences, "20", "31")
	g.item("31", lsif.PropertyDefinitions, "10")
	g.item("31", lsif.PropertyReferences, "11")
	g.result("32", lsif.VertexHoverResult, map[string]any{"contents": map[string]any{"kind": "markdown", "value": "foo()"}})
	g.edge(lsif.EdgeHover, "20", "32")
	return g
}
