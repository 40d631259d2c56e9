// Package lsiftest builds small dumps for tests.
package lsiftest

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/lsif"
)

// Dump accumulates elements with increasing numeric ids.
type Dump struct {
	Elements []*lsif.Element
	next     int
}

// New starts a dump with a metaData vertex and one project.
func New(projectRoot string) *Dump {
	d := &Dump{}
	d.add(&lsif.Element{Type: lsif.ElementVertex, Label: lsif.VertexMetaData, Version: "0.6.0", ProjectRoot: projectRoot, PositionEncoding: "utf-16"})
	d.add(&lsif.Element{Type: lsif.ElementVertex, Label: lsif.VertexProject, Kind: "typescript"})
	return d
}

func (d *Dump) add(e *lsif.Element) lsif.ID {
	d.next++
	e.ID = lsif.ID(strconv.Itoa(d.next))
	d.Elements = append(d.Elements, e)
	return e.ID
}

// Vertex adds a bare vertex.
func (d *Dump) Vertex(label string) lsif.ID {
	return d.add(&lsif.Element{Type: lsif.ElementVertex, Label: label})
}

// Document adds a document vertex. Non-empty contents are embedded base64.
func (d *Dump) Document(uri, contents string) lsif.ID {
	e := &lsif.Element{Type: lsif.ElementVertex, Label: lsif.VertexDocument, URI: uri, LanguageID: "typescript"}
	if contents != "" {
		e.Contents = base64.StdEncoding.EncodeToString([]byte(contents))
	}
	return d.add(e)
}

// Range adds a range vertex and the contains edge from doc.
func (d *Dump) Range(doc lsif.ID, sl, sc, el, ec uint32, tag *lsif.RangeTag) lsif.ID {
	id := d.add(&lsif.Element{
		Type:  lsif.ElementVertex,
		Label: lsif.VertexRange,
		Start: &protocol.Position{Line: sl, Character: sc},
		End:   &protocol.Position{Line: el, Character: ec},
		Tag:   tag,
	})
	d.Edge(lsif.EdgeContains, doc, id)
	return id
}

// Result adds a result vertex carrying payload in its result field.
func (d *Dump) Result(label string, payload any) lsif.ID {
	b, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return d.add(&lsif.Element{Type: lsif.ElementVertex, Label: label, Result: b})
}

// Moniker adds a moniker vertex.
func (d *Dump) Moniker(scheme, identifier string, kind lsif.MonikerKind, unique lsif.Uniqueness) lsif.ID {
	return d.add(&lsif.Element{
		Type:       lsif.ElementVertex,
		Label:      lsif.VertexMoniker,
		Scheme:     scheme,
		Identifier: identifier,
		Kind:       string(kind),
		Unique:     string(unique),
	})
}

// Edge adds an edge. A single target is written as inV.
func (d *Dump) Edge(label string, from lsif.ID, to ...lsif.ID) lsif.ID {
	e := &lsif.Element{Type: lsif.ElementEdge, Label: label, OutV: from}
	if len(to) == 1 && label != lsif.EdgeContains {
		e.InV = to[0]
	} else {
		e.InVs = to
	}
	return d.add(e)
}

// Item adds an item edge scoped to shard.
func (d *Dump) Item(from, shard lsif.ID, property string, to ...lsif.ID) lsif.ID {
	return d.add(&lsif.Element{Type: lsif.ElementEdge, Label: lsif.EdgeItem, OutV: from, InVs: to, Shard: shard, Property: property})
}

// JSONL serializes the dump one element per line.
func (d *Dump) JSONL() []byte {
	var out []byte
	for _, e := range d.Elements {
		b, err := json.Marshal(e)
		if err != nil {
			panic(err)
		}
		out = append(out, b...)
		out = append(out, '\n')
	}
	return out
}

// WriteFile writes the dump under t.TempDir and returns its path.
func (d *Dump) WriteFile(t testing.TB, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, d.JSONL(), 0o644); err != nil {
		t.Fatalf("write dump: %v", err)
	}
	return path
}

// Fixture ids of TwoFile.
type TwoFileIDs struct {
	A, B              lsif.ID
	Def, Ref          lsif.ID
	ResultSet         lsif.ID
	DefResult         lsif.ID
	RefResult         lsif.ID
	Hover             lsif.ID
	Symbols, Folding  lsif.ID
	Untagged, Moniker lsif.ID
}

// Root is the project root of the fixtures.
const Root = "file:///work"

// TwoFile builds the reference scenario: a.ts defines foo at [5,0]-[5,3]
// and b.ts references it at [1,0]-[1,3] through a shared result set. a.ts
// also carries a hover, a range-based outline with one untagged range,
// folding ranges and embedded contents.
func TwoFile() (*Dump, TwoFileIDs) {
	var ids TwoFileIDs
	d := New(Root)
	ids.A = d.Document(Root+"/a.ts", "export function foo() {}\n")
	ids.B = d.Document(Root+"/b.ts", "")

	full := protocol.Range{Start: protocol.Position{Line: 5}, End: protocol.Position{Line: 7, Character: 1}}
	ids.Def = d.Range(ids.A, 5, 0, 5, 3, &lsif.RangeTag{Type: lsif.TagDefinition, Text: "foo", Kind: protocol.SymbolKindFunction, FullRange: &full})
	ids.Untagged = d.Range(ids.A, 6, 2, 6, 4, nil)
	ids.Ref = d.Range(ids.B, 1, 0, 1, 3, nil)

	ids.ResultSet = d.Vertex(lsif.VertexResultSet)
	d.Edge(lsif.EdgeNext, ids.Def, ids.ResultSet)
	d.Edge(lsif.EdgeNext, ids.Ref, ids.ResultSet)

	ids.DefResult = d.Vertex(lsif.VertexDefinitionResult)
	d.Edge(lsif.EdgeDefinition, ids.ResultSet, ids.DefResult)
	d.Item(ids.DefResult, ids.A, "", ids.Def)

	ids.RefResult = d.Vertex(lsif.VertexReferenceResult)
	d.Edge(lsif.EdgeReferences, ids.ResultSet, ids.RefResult)
	d.Item(ids.RefResult, ids.A, lsif.PropertyDefinitions, ids.Def)
	d.Item(ids.RefResult, ids.B, lsif.PropertyReferences, ids.Ref)

	ids.Hover = d.Result(lsif.VertexHoverResult, map[string]any{
		"contents": []any{map[string]any{"language": "typescript", "value": "function foo(): void"}},
	})
	d.Edge(lsif.EdgeHover, ids.ResultSet, ids.Hover)

	ids.Moniker = d.Moniker("tsc", "a:foo", lsif.MonikerExport, lsif.UniqueGroup)
	d.Edge(lsif.EdgeMoniker, ids.ResultSet, ids.Moniker)

	ids.Symbols = d.Result(lsif.VertexDocumentSymbolResult, []map[string]any{
		{"id": ids.Def, "children": []map[string]any{{"id": ids.Untagged}}},
	})
	d.Edge(lsif.EdgeDocumentSymbol, ids.A, ids.Symbols)

	ids.Folding = d.Result(lsif.VertexFoldingRangeResult, []map[string]any{
		{"startLine": 5, "endLine": 7, "kind": "region"},
	})
	d.Edge(lsif.EdgeFoldingRange, ids.A, ids.Folding)
	return d, ids
}

// MonikerPair builds two documents whose symbols connect only through
// monikers: lib.ts exports bar at [2,9]-[2,12] and app.ts imports it at
// [0,9]-[0,12]. The import side carries no definition or hover.
func MonikerPair() *Dump {
	d := New(Root)
	lib := d.Document(Root+"/lib.ts", "")
	app := d.Document(Root+"/app.ts", "")

	def := d.Range(lib, 2, 9, 2, 12, &lsif.RangeTag{Type: lsif.TagDefinition, Text: "bar", Kind: protocol.SymbolKindFunction})
	libSet := d.Vertex(lsif.VertexResultSet)
	d.Edge(lsif.EdgeNext, def, libSet)
	defResult := d.Vertex(lsif.VertexDefinitionResult)
	d.Edge(lsif.EdgeDefinition, libSet, defResult)
	d.Item(defResult, lib, "", def)
	refResult := d.Vertex(lsif.VertexReferenceResult)
	d.Edge(lsif.EdgeReferences, libSet, refResult)
	d.Item(refResult, lib, lsif.PropertyDefinitions, def)
	hover := d.Result(lsif.VertexHoverResult, map[string]any{"contents": "bar docs"})
	d.Edge(lsif.EdgeHover, libSet, hover)
	export := d.Moniker("npm", "lib:bar", lsif.MonikerExport, lsif.UniqueScheme)
	d.Edge(lsif.EdgeMoniker, libSet, export)

	use := d.Range(app, 0, 9, 0, 12, nil)
	appSet := d.Vertex(lsif.VertexResultSet)
	d.Edge(lsif.EdgeNext, use, appSet)
	appRefs := d.Vertex(lsif.VertexReferenceResult)
	d.Edge(lsif.EdgeReferences, appSet, appRefs)
	d.Item(appRefs, app, lsif.PropertyReferences, use)
	local := d.Moniker("tsc", "app:bar", lsif.MonikerImport, lsif.UniqueDocument)
	d.Edge(lsif.EdgeMoniker, appSet, local)
	imported := d.Moniker("npm", "lib:bar", lsif.MonikerImport, lsif.UniqueScheme)
	d.Edge(lsif.EdgeAttach, local, imported)
	return d
}

// Cyclic builds a dump whose only range sits on a next cycle.
func Cyclic() *Dump {
	d := New(Root)
	doc := d.Document(Root+"/loop.ts", "")
	r := d.Range(doc, 0, 0, 0, 4, nil)
	s1 := d.Vertex(lsif.VertexResultSet)
	s2 := d.Vertex(lsif.VertexResultSet)
	d.Edge(lsif.EdgeNext, r, s1)
	d.Edge(lsif.EdgeNext, s1, s2)
	d.Edge(lsif.EdgeNext, s2, s1)
	return d
}

// Overlapping builds one document with two ranges that overlap without
// nesting: first at [0,0]-[0,6] and second at [0,4]-[0,10]. The second
// range gets the lower id but the contains edge lists first before it.
// Each carries its own hover, "first" or "second".
func Overlapping() *Dump {
	d := New(Root)
	doc := d.Document(Root+"/overlap.ts", "")
	span := func(sl, sc, el, ec uint32) *lsif.Element {
		return &lsif.Element{
			Type:  lsif.ElementVertex,
			Label: lsif.VertexRange,
			Start: &protocol.Position{Line: sl, Character: sc},
			End:   &protocol.Position{Line: el, Character: ec},
		}
	}
	second := d.add(span(0, 4, 0, 10))
	first := d.add(span(0, 0, 0, 6))
	d.Edge(lsif.EdgeContains, doc, first, second)
	d.Edge(lsif.EdgeHover, first, d.Result(lsif.VertexHoverResult, map[string]any{"contents": "first"}))
	d.Edge(lsif.EdgeHover, second, d.Result(lsif.VertexHoverResult, map[string]any{"contents": "second"}))
	return d
}
