// Package graph is the in-memory index over a line-delimited (or array)
// JSON dump. The whole graph is materialized by a single streaming pass.
package graph

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/geometry"
	"github.com/jward/lsifq/internal/lsif"
	"github.com/jward/lsifq/internal/resolve"
	"github.com/jward/lsifq/internal/uris"
)

// Graph holds identity maps for vertices, projects, documents and ranges,
// per-label adjacency keyed by out-vertex, and the owning document of
// every contained range.
type Graph struct {
	meta lsif.MetaData

	vertices  map[lsif.ID]*lsif.Element
	projects  map[lsif.ID]*lsif.Element
	documents map[lsif.ID]*lsif.Document
	docsByURI map[string][]lsif.ID
	docOrder  []lsif.ID
	ranges    map[lsif.ID]*lsif.Range

	out      map[string]map[lsif.ID][]lsif.ID
	items    map[lsif.ID][]resolve.Item
	owner    map[lsif.ID]lsif.ID
	contains map[lsif.ID][]lsif.ID

	edgeCount int
}

// Stats summarizes a loaded graph.
type Stats struct {
	Vertices  int
	Edges     int
	Documents int
	Ranges    int
}

func newGraph() *Graph {
	return &Graph{
		vertices:  make(map[lsif.ID]*lsif.Element),
		projects:  make(map[lsif.ID]*lsif.Element),
		documents: make(map[lsif.ID]*lsif.Document),
		docsByURI: make(map[string][]lsif.ID),
		ranges:    make(map[lsif.ID]*lsif.Range),
		out:       make(map[string]map[lsif.ID][]lsif.ID),
		items:     make(map[lsif.ID][]resolve.Item),
		owner:     make(map[lsif.ID]lsif.ID),
		contains:  make(map[lsif.ID][]lsif.ID),
	}
}

// LoadFile loads the dump at path.
func LoadFile(ctx context.Context, path string, log *slog.Logger) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()
	g, err := Load(ctx, f, log)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return g, nil
}

// Load builds a graph from r in one forward pass. r holds either one JSON
// element per line or a single JSON array of elements. The first element
// must be the metaData vertex, and every edge must name vertices already
// seen.
func Load(ctx context.Context, r io.Reader, log *slog.Logger) (*Graph, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	start := time.Now()
	g := newGraph()
	err := Scan(ctx, r, func(e *lsif.Element) error {
		if md, ok := e.AsMetaData(); ok && g.meta.Version == "" {
			g.meta = *md
		}
		return g.add(e, log)
	})
	if err != nil {
		return nil, err
	}

	st := g.Stats()
	log.Info("loaded graph",
		"vertices", st.Vertices, "edges", st.Edges,
		"documents", st.Documents, "ranges", st.Ranges,
		"elapsed", time.Since(start))
	return g, nil
}

// Scan decodes the elements of a dump in order and passes each to fn. The
// first element must be a valid metaData vertex.
func Scan(ctx context.Context, r io.Reader, fn func(*lsif.Element) error) error {
	br := bufio.NewReaderSize(r, 1<<16)
	array, err := startsWithArray(br)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(br)
	if array {
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("%w: %v", lsif.ErrMalformed, err)
		}
	}

	haveMeta := false
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if array && !dec.More() {
			break
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) && !array {
				break
			}
			return fmt.Errorf("%w: element %d: %v", lsif.ErrMalformed, n, err)
		}
		e, err := lsif.ParseElement(raw)
		if err != nil {
			return fmt.Errorf("element %d: %w", n, err)
		}
		if !haveMeta {
			md, ok := e.AsMetaData()
			if !ok {
				return fmt.Errorf("%w: first element is %s %q", lsif.ErrMissingMetaData, e.Type, e.Label)
			}
			if err := md.Validate(); err != nil {
				return err
			}
			haveMeta = true
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if !haveMeta {
		return lsif.ErrMissingMetaData
	}
	return nil
}

func startsWithArray(br *bufio.Reader) (bool, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, lsif.ErrMissingMetaData
			}
			return false, fmt.Errorf("read dump: %w", err)
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF:
			if _, err := br.ReadByte(); err != nil {
				return false, fmt.Errorf("read dump: %w", err)
			}
		default:
			return b[0] == '[', nil
		}
	}
}

func (g *Graph) add(e *lsif.Element, log *slog.Logger) error {
	if e.IsVertex() {
		g.addVertex(e, log)
		return nil
	}
	return g.addEdge(e, log)
}

func (g *Graph) addVertex(e *lsif.Element, log *slog.Logger) {
	if e.Label == lsif.VertexEvent {
		log.Debug("skipping event", "id", e.ID, "kind", e.Kind)
		return
	}
	g.vertices[e.ID] = e
	switch e.Label {
	case lsif.VertexProject:
		g.projects[e.ID] = e
	case lsif.VertexDocument:
		d, _ := e.AsDocument()
		d.URI = uris.Normalize(d.URI)
		g.documents[e.ID] = d
		g.docsByURI[d.URI] = append(g.docsByURI[d.URI], e.ID)
		g.docOrder = append(g.docOrder, e.ID)
	case lsif.VertexRange:
		if r, ok := e.AsRange(); ok {
			g.ranges[e.ID] = r
		} else {
			log.Debug("range without span", "id", e.ID)
		}
	}
}

func (g *Graph) addEdge(e *lsif.Element, log *slog.Logger) error {
	if _, ok := g.vertices[e.OutV]; !ok {
		return fmt.Errorf("%w: edge %s (%s) from %s", lsif.ErrDanglingEdge, e.ID, e.Label, e.OutV)
	}
	targets := e.Targets()
	for _, in := range targets {
		if _, ok := g.vertices[in]; !ok {
			return fmt.Errorf("%w: edge %s (%s) to %s", lsif.ErrDanglingEdge, e.ID, e.Label, in)
		}
	}
	g.edgeCount++

	switch e.Label {
	case lsif.EdgeItem:
		shard := e.ItemShard()
		for _, in := range targets {
			g.items[e.OutV] = append(g.items[e.OutV], resolve.Item{Target: in, Property: e.Property, Shard: shard})
		}
	case lsif.EdgeContains:
		g.contains[e.OutV] = append(g.contains[e.OutV], targets...)
		for _, in := range targets {
			g.owner[in] = e.OutV
		}
	default:
		m := g.out[e.Label]
		if m == nil {
			m = make(map[lsif.ID][]lsif.ID)
			g.out[e.Label] = m
		}
		m[e.OutV] = append(m[e.OutV], targets...)
		if len(targets) == 0 {
			log.Debug("edge without targets", "id", e.ID, "label", e.Label)
		}
	}
	return nil
}

// MetaData returns the dump's metaData.
func (g *Graph) MetaData() lsif.MetaData { return g.meta }

// Stats reports element counts.
func (g *Graph) Stats() Stats {
	return Stats{
		Vertices:  len(g.vertices),
		Edges:     g.edgeCount,
		Documents: len(g.documents),
		Ranges:    len(g.ranges),
	}
}

// Vertex implements resolve.Source.
func (g *Graph) Vertex(id lsif.ID) (*lsif.Element, error) {
	return g.vertices[id], nil
}

// Out implements resolve.Source.
func (g *Graph) Out(id lsif.ID, label string) ([]lsif.ID, error) {
	return g.out[label][id], nil
}

// Items implements resolve.Source.
func (g *Graph) Items(id lsif.ID) ([]resolve.Item, error) {
	return g.items[id], nil
}

// Location implements resolve.Source.
func (g *Graph) Location(rangeID lsif.ID) (*protocol.Location, error) {
	r, ok := g.ranges[rangeID]
	if !ok {
		return nil, nil
	}
	doc, ok := g.documents[g.owner[rangeID]]
	if !ok {
		return nil, nil
	}
	return &protocol.Location{URI: protocol.DocumentURI(doc.URI), Range: r.Span}, nil
}

// Documents implements resolve.Locator.
func (g *Graph) Documents(uri string) ([]lsif.ID, error) {
	return g.docsByURI[uri], nil
}

// RangesAt implements resolve.Locator.
func (g *Graph) RangesAt(docs []lsif.ID, pos protocol.Position) ([]*lsif.Range, error) {
	var out []*lsif.Range
	for _, doc := range docs {
		for _, id := range g.contains[doc] {
			r, ok := g.ranges[id]
			if ok && geometry.ContainsPosition(r.Span, pos) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// DocumentList returns the documents in load order.
func (g *Graph) DocumentList() []*lsif.Document {
	out := make([]*lsif.Document, 0, len(g.docOrder))
	for _, id := range g.docOrder {
		out = append(out, g.documents[id])
	}
	return out
}

// Contains returns the ids a document contains, in edge order.
func (g *Graph) Contains(doc lsif.ID) []lsif.ID {
	return g.contains[doc]
}

// Owner returns the document containing id, or "".
func (g *Graph) Owner(id lsif.ID) lsif.ID {
	return g.owner[id]
}

var (
	_ resolve.Source  = (*Graph)(nil)
	_ resolve.Locator = (*Graph)(nil)
)
