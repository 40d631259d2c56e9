package relational

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/compress"
	"github.com/jward/lsifq/internal/lsif"
	"github.com/jward/lsifq/internal/resolve"
	"github.com/jward/lsifq/internal/store"
	"github.com/jward/lsifq/internal/uris"
)

// Database serves queries from a graph-format SQLite file.
type Database struct {
	store  *store.Store
	src    *Source
	engine *resolve.Engine
	uris   uris.Transformer
	root   string
	closed atomic.Bool
}

// Open opens the database at path read-only and validates its metadata.
func Open(ctx context.Context, path string, opts resolve.Options) (*Database, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := store.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	db, err := New(s, opts)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return db, nil
}

// New serves queries from an open store. The store is owned by the
// returned Database and closed with it.
func New(s *store.Store, opts resolve.Options) (*Database, error) {
	opts = opts.WithDefaults()
	format, err := s.Format()
	if err != nil {
		return nil, err
	}
	if format != store.FormatGraph {
		return nil, fmt.Errorf("%w: %q is not a graph database", store.ErrUnknownFormat, format)
	}
	md, err := readMeta(s)
	if err != nil {
		return nil, err
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	reg, err := readRegistry(s)
	if err != nil {
		return nil, err
	}

	src := NewSource(s, reg, opts.Logger)
	linker := NewLinker(src, resolve.NewWalker(src, opts.MaxChainDepth))
	engine := resolve.NewEngine(src, src, append(opts.EngineOptions(), resolve.WithLinker(linker))...)
	opts.Logger.Info("opened database", "format", format, "version", md.Version, "projectRoot", md.ProjectRoot)
	return &Database{
		store:  s,
		src:    src,
		engine: engine,
		uris:   opts.URIs,
		root:   md.ProjectRoot,
	}, nil
}

func readMeta(s *store.Store) (*lsif.MetaData, error) {
	var md lsif.MetaData
	for key, dst := range map[string]*string{
		store.MetaVersion:          &md.Version,
		store.MetaProjectRoot:      &md.ProjectRoot,
		store.MetaPositionEncoding: &md.PositionEncoding,
	} {
		v, err := s.Meta(key)
		if err != nil {
			return nil, err
		}
		*dst = v
	}
	return &md, nil
}

func readRegistry(s *store.Store) (*compress.Registry, error) {
	raw, err := s.Meta(store.MetaCompressors)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return compress.NewDefaultRegistry(), nil
	}
	reg, err := compress.ParseRegistry([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("compressors: %w", err)
	}
	return reg, nil
}

// Close releases the database handle. Queries after Close fail with
// lsif.ErrClosed.
func (d *Database) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.store.Close()
}

func (d *Database) check() error {
	if d.closed.Load() {
		return lsif.ErrClosed
	}
	return nil
}

// ProjectRoot returns the indexed project root.
func (d *Database) ProjectRoot() (string, error) {
	if err := d.check(); err != nil {
		return "", err
	}
	return d.uris.FromDatabase(d.root), nil
}

// Documents lists the indexed documents, one entry per URI.
func (d *Database) Documents() ([]lsif.DocumentInfo, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	rows, err := d.store.Documents()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []lsif.DocumentInfo
	for _, r := range rows {
		if seen[r.URI] {
			continue
		}
		seen[r.URI] = true
		out = append(out, lsif.DocumentInfo{URI: d.uris.FromDatabase(r.URI), LanguageID: r.LanguageID, Hash: r.Hash})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}

// Content returns the stored text of uri, or nil.
func (d *Database) Content(uri string) ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.store.DocumentContent(uris.Normalize(d.uris.ToDatabase(uri)))
}

func (d *Database) DocumentSymbols(uri string) ([]protocol.DocumentSymbol, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.engine.DocumentSymbols(uri)
}

func (d *Database) FoldingRanges(uri string) ([]protocol.FoldingRange, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.engine.FoldingRanges(uri)
}

func (d *Database) Diagnostics(uri string) ([]protocol.Diagnostic, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.engine.Diagnostics(uri)
}

func (d *Database) Hover(uri string, pos protocol.Position) (*protocol.Hover, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.engine.Hover(uri, pos)
}

func (d *Database) Declarations(uri string, pos protocol.Position) ([]protocol.Location, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.engine.Declarations(uri, pos)
}

func (d *Database) Definitions(uri string, pos protocol.Position) ([]protocol.Location, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.engine.Definitions(uri, pos)
}

func (d *Database) TypeDefinitions(uri string, pos protocol.Position) ([]protocol.Location, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.engine.TypeDefinitions(uri, pos)
}

func (d *Database) Implementations(uri string, pos protocol.Position) ([]protocol.Location, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.engine.Implementations(uri, pos)
}

func (d *Database) References(uri string, pos protocol.Position, ctx protocol.ReferenceContext) ([]protocol.Location, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return d.engine.References(uri, pos, ctx)
}
