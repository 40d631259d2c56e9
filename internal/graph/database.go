package graph

import (
	"context"
	"sort"
	"sync/atomic"

	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/lsif"
	"github.com/jward/lsifq/internal/resolve"
	"github.com/jward/lsifq/internal/uris"
)

// Database serves queries from a loaded Graph.
type Database struct {
	loaded atomic.Pointer[loaded]
	uris   uris.Transformer
}

// loaded is what Close drops.
type loaded struct {
	graph  *Graph
	engine *resolve.Engine
}

// Open loads the dump at path.
func Open(ctx context.Context, path string, opts resolve.Options) (*Database, error) {
	opts = opts.WithDefaults()
	g, err := LoadFile(ctx, path, opts.Logger)
	if err != nil {
		return nil, err
	}
	return New(g, opts), nil
}

// New wraps an already loaded graph.
func New(g *Graph, opts resolve.Options) *Database {
	opts = opts.WithDefaults()
	d := &Database{uris: opts.URIs}
	d.loaded.Store(&loaded{graph: g, engine: resolve.NewEngine(g, g, opts.EngineOptions()...)})
	return d
}

// Close drops the graph so it can be collected once in-flight queries
// return. Queries after Close fail with lsif.ErrClosed.
func (d *Database) Close() error {
	d.loaded.Store(nil)
	return nil
}

func (d *Database) load() (*loaded, error) {
	l := d.loaded.Load()
	if l == nil {
		return nil, lsif.ErrClosed
	}
	return l, nil
}

// ProjectRoot returns the indexed project root.
func (d *Database) ProjectRoot() (string, error) {
	l, err := d.load()
	if err != nil {
		return "", err
	}
	return d.uris.FromDatabase(l.graph.meta.ProjectRoot), nil
}

// Documents lists the indexed documents, one entry per URI.
func (d *Database) Documents() ([]lsif.DocumentInfo, error) {
	l, err := d.load()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []lsif.DocumentInfo
	for _, doc := range l.graph.DocumentList() {
		if seen[doc.URI] {
			continue
		}
		seen[doc.URI] = true
		out = append(out, lsif.DocumentInfo{URI: d.uris.FromDatabase(doc.URI), LanguageID: doc.LanguageID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}

// Content returns the embedded text of uri, or nil when the dump carries none.
func (d *Database) Content(uri string) ([]byte, error) {
	l, err := d.load()
	if err != nil {
		return nil, err
	}
	for _, id := range l.graph.docsByURI[uris.Normalize(d.uris.ToDatabase(uri))] {
		if doc := l.graph.documents[id]; doc.Contents != "" {
			return lsif.DecodeContents(doc.Contents)
		}
	}
	return nil, nil
}

func (d *Database) DocumentSymbols(uri string) ([]protocol.DocumentSymbol, error) {
	l, err := d.load()
	if err != nil {
		return nil, err
	}
	return l.engine.DocumentSymbols(uri)
}

func (d *Database) FoldingRanges(uri string) ([]protocol.FoldingRange, error) {
	l, err := d.load()
	if err != nil {
		return nil, err
	}
	return l.engine.FoldingRanges(uri)
}

func (d *Database) Diagnostics(uri string) ([]protocol.Diagnostic, error) {
	l, err := d.load()
	if err != nil {
		return nil, err
	}
	return l.engine.Diagnostics(uri)
}

func (d *Database) Hover(uri string, pos protocol.Position) (*protocol.Hover, error) {
	l, err := d.load()
	if err != nil {
		return nil, err
	}
	return l.engine.Hover(uri, pos)
}

func (d *Database) Declarations(uri string, pos protocol.Position) ([]protocol.Location, error) {
	l, err := d.load()
	if err != nil {
		return nil, err
	}
	return l.engine.Declarations(uri, pos)
}

func (d *Database) Definitions(uri string, pos protocol.Position) ([]protocol.Location, error) {
	l, err := d.load()
	if err != nil {
		return nil, err
	}
	return l.engine.Definitions(uri, pos)
}

func (d *Database) TypeDefinitions(uri string, pos protocol.Position) ([]protocol.Location, error) {
	l, err := d.load()
	if err != nil {
		return nil, err
	}
	return l.engine.TypeDefinitions(uri, pos)
}

func (d *Database) Implementations(uri string, pos protocol.Position) ([]protocol.Location, error) {
	l, err := d.load()
	if err != nil {
		return nil, err
	}
	return l.engine.Implementations(uri, pos)
}

func (d *Database) References(uri string, pos protocol.Position, ctx protocol.ReferenceContext) ([]protocol.Location, error) {
	l, err := d.load()
	if err != nil {
		return nil, err
	}
	return l.engine.References(uri, pos, ctx)
}
