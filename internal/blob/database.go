package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/geometry"
	"github.com/jward/lsifq/internal/lsif"
	"github.com/jward/lsifq/internal/memo"
	"github.com/jward/lsifq/internal/resolve"
	"github.com/jward/lsifq/internal/store"
	"github.com/jward/lsifq/internal/uris"
)

// ErrUnknownVersion means the requested build version is not recorded.
var ErrUnknownVersion = errors.New("blob: unknown version")

// Database serves queries from a blob-format SQLite file at one build
// version.
type Database struct {
	store    *store.Store
	version  int64
	root     string
	uris     uris.Transformer
	log      *slog.Logger
	maxDepth int

	hashes *memo.Cache[string]
	blobs  *memo.Cache[*Blob]
	closed atomic.Bool
}

// Open opens the database at path read-only at opts.VersionTag, or at the
// newest version when the tag is empty.
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

// New serves queries from an open store, which the Database then owns.
func New(s *store.Store, opts resolve.Options) (*Database, error) {
	opts = opts.WithDefaults()
	format, err := s.Format()
	if err != nil {
		return nil, err
	}
	if format != store.FormatBlob {
		return nil, fmt.Errorf("%w: %q is not a blob database", store.ErrUnknownFormat, format)
	}
	var md lsif.MetaData
	if md.Version, err = s.Meta(store.MetaVersion); err != nil {
		return nil, err
	}
	if md.ProjectRoot, err = s.Meta(store.MetaProjectRoot); err != nil {
		return nil, err
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	version, ok, err := s.ResolveVersion(opts.VersionTag)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, opts.VersionTag)
	}
	opts.Logger.Info("opened database", "format", format, "version", md.Version, "build", version, "projectRoot", md.ProjectRoot)
	return &Database{
		store:    s,
		version:  version,
		root:     md.ProjectRoot,
		uris:     opts.URIs,
		log:      opts.Logger,
		maxDepth: opts.MaxChainDepth,
		hashes:   memo.New[string](),
		blobs:    memo.New[*Blob](),
	}, nil
}

// Close releases the database handle and the decoded blobs. Queries after
// Close fail with lsif.ErrClosed.
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

func (d *Database) fail(op, uri string, err error) error {
	d.log.Warn("query failed", "op", op, "uri", uri, "err", err)
	return fmt.Errorf("%s %s: %w", op, uri, err)
}

// document returns the database URI, hash and decoded blob of uri. A
// document missing from the version returns a nil blob.
func (d *Database) document(uri string) (string, string, *Blob, error) {
	dbURI := uris.Normalize(d.uris.ToDatabase(uri))
	hash, err := d.hashes.Do(dbURI, func() (string, error) {
		return d.store.DocumentHash(dbURI, d.version)
	})
	if err != nil || hash == "" {
		return dbURI, "", nil, err
	}
	b, err := d.blobs.Do(hash, func() (*Blob, error) {
		raw, err := d.store.Blob(hash)
		if err != nil || raw == nil {
			return nil, err
		}
		b, err := Parse(raw)
		if err != nil {
			d.log.Warn("corrupt blob", "uri", dbURI, "hash", hash, "err", err)
			return nil, fmt.Errorf("%w: blob %s: %v", lsif.ErrMalformed, hash, err)
		}
		return b, nil
	})
	return dbURI, hash, b, err
}

// rangesAt returns the most specific ranges of b containing pos.
func rangesAt(b *Blob, pos protocol.Position) []lsif.ID {
	var candidates []lsif.ID
	for _, id := range b.order {
		if geometry.ContainsPosition(b.Ranges[id].Span(), pos) {
			candidates = append(candidates, id)
		}
	}
	return geometry.MostSpecific(candidates, func(id lsif.ID) protocol.Range { return b.Ranges[id].Span() }, pos)
}

// chain follows next pointers inside the blob.
func (d *Database) chain(b *Blob, start lsif.ID) ([]lsif.ID, error) {
	var out []lsif.ID
	seen := map[lsif.ID]bool{}
	for id := start; id != ""; {
		if seen[id] || len(out) >= d.maxDepth {
			return nil, fmt.Errorf("%w: from %s", lsif.ErrCycle, start)
		}
		seen[id] = true
		node := b.node(id)
		if node == nil {
			break
		}
		out = append(out, id)
		id = node.Next
	}
	return out, nil
}

// query runs fn for each most specific range at pos and unions the
// locations it returns.
func (d *Database) query(op, uri string, pos protocol.Position, fn func(dbURI string, b *Blob, chain []lsif.ID) ([]protocol.Location, error)) ([]protocol.Location, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	dbURI, _, b, err := d.document(uri)
	if err != nil {
		return nil, d.fail(op, uri, err)
	}
	if b == nil {
		return nil, nil
	}
	var out []protocol.Location
	for _, id := range rangesAt(b, pos) {
		chain, err := d.chain(b, id)
		if err != nil {
			return nil, d.fail(op, uri, err)
		}
		locs, err := fn(dbURI, b, chain)
		if err != nil {
			return nil, d.fail(op, uri, err)
		}
		out = append(out, locs...)
	}
	return resolve.ExportLocations(resolve.Dedup(out), d.uris), nil
}

func localLocations(dbURI string, b *Blob, ids []lsif.ID) []protocol.Location {
	out := make([]protocol.Location, 0, len(ids))
	for _, id := range ids {
		if r, ok := b.Ranges[id]; ok {
			out = append(out, protocol.Location{URI: protocol.DocumentURI(dbURI), Range: r.Span()})
		}
	}
	return out
}

func crossLocations(rows []*store.CrossLocation) []protocol.Location {
	out := make([]protocol.Location, 0, len(rows))
	for _, r := range rows {
		out = append(out, protocol.Location{
			URI: protocol.DocumentURI(r.URI),
			Range: protocol.Range{
				Start: protocol.Position{Line: r.StartLine, Character: r.StartCharacter},
				End:   protocol.Position{Line: r.EndLine, Character: r.EndCharacter},
			},
		})
	}
	return out
}

// Declarations returns the declarations at pos: the local result when the
// chain carries one, otherwise the declarations indexed under its moniker.
// A local result that also pointed into other documents is completed from
// the moniker rows.
func (d *Database) Declarations(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return d.query("declarations", uri, pos, func(dbURI string, b *Blob, chain []lsif.ID) ([]protocol.Location, error) {
		var out []protocol.Location
		for _, id := range chain {
			if n := b.node(id); n.DeclarationResult != "" {
				out = localLocations(dbURI, b, b.DeclarationResults[n.DeclarationResult])
				if !b.PartialResults[n.DeclarationResult] {
					return out, nil
				}
				break
			}
		}
		m := crossMoniker(chain, b)
		if m == nil {
			return out, nil
		}
		rows, err := d.store.Declarations(m.Scheme, m.Identifier, d.version)
		return append(out, crossLocations(rows)...), err
	})
}

// Definitions returns the definitions at pos, falling back to the
// definitions indexed under the chain's moniker.
func (d *Database) Definitions(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return d.query("definitions", uri, pos, func(dbURI string, b *Blob, chain []lsif.ID) ([]protocol.Location, error) {
		var out []protocol.Location
		for _, id := range chain {
			if n := b.node(id); n.DefinitionResult != "" {
				out = localLocations(dbURI, b, b.DefinitionResults[n.DefinitionResult])
				if !b.PartialResults[n.DefinitionResult] {
					return out, nil
				}
				break
			}
		}
		m := crossMoniker(chain, b)
		if m == nil {
			return out, nil
		}
		rows, err := d.store.Definitions(m.Scheme, m.Identifier, d.version)
		return append(out, crossLocations(rows)...), err
	})
}

// References returns the references at pos, falling back to the reference
// rows indexed under the chain's moniker. The role flag on those rows
// gates declarations and definitions.
func (d *Database) References(uri string, pos protocol.Position, ctx protocol.ReferenceContext) ([]protocol.Location, error) {
	return d.query("references", uri, pos, func(dbURI string, b *Blob, chain []lsif.ID) ([]protocol.Location, error) {
		var out []protocol.Location
		for _, id := range chain {
			n := b.node(id)
			if n.ReferenceResult == "" {
				continue
			}
			r := b.ReferenceResults[n.ReferenceResult]
			if r == nil {
				return nil, nil
			}
			var ids []lsif.ID
			if ctx.IncludeDeclaration {
				ids = append(ids, r.Declarations...)
				ids = append(ids, r.Definitions...)
			}
			ids = append(ids, r.References...)
			out = localLocations(dbURI, b, ids)
			if !r.Partial {
				return out, nil
			}
			break
		}
		m := crossMoniker(chain, b)
		if m == nil {
			return out, nil
		}
		rows, err := d.store.References(m.Scheme, m.Identifier, d.version, ctx.IncludeDeclaration)
		return append(out, crossLocations(rows)...), err
	})
}

// TypeDefinitions always misses: blobs carry no type definitions.
func (d *Database) TypeDefinitions(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return nil, d.check()
}

// Implementations always misses: blobs carry no implementations.
func (d *Database) Implementations(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return nil, d.check()
}

// Hover returns the hover at pos, falling back to the hover indexed under
// the chain's moniker. The range defaults to the range at pos.
func (d *Database) Hover(uri string, pos protocol.Position) (*protocol.Hover, error) {
	const op = "hover"
	if err := d.check(); err != nil {
		return nil, err
	}
	_, _, b, err := d.document(uri)
	if err != nil {
		return nil, d.fail(op, uri, err)
	}
	if b == nil {
		return nil, nil
	}
	for _, id := range rangesAt(b, pos) {
		chain, err := d.chain(b, id)
		if err != nil {
			return nil, d.fail(op, uri, err)
		}
		h, err := d.hoverOn(b, chain)
		if err != nil {
			return nil, d.fail(op, uri, err)
		}
		if h != nil {
			if h.Range == nil {
				span := b.Ranges[id].Span()
				h.Range = &span
			}
			return h, nil
		}
	}
	return nil, nil
}

func (d *Database) hoverOn(b *Blob, chain []lsif.ID) (*protocol.Hover, error) {
	for _, id := range chain {
		n := b.node(id)
		if n.HoverResult == "" {
			continue
		}
		if h := b.Hovers[n.HoverResult]; h != nil {
			cp := *h
			return &cp, nil
		}
	}
	m := crossMoniker(chain, b)
	if m == nil {
		return nil, nil
	}
	content, err := d.store.Hover(m.Scheme, m.Identifier)
	if err != nil || content == "" {
		return nil, err
	}
	h, err := lsif.ParseHover(json.RawMessage(content))
	if h != nil {
		h.Range = nil
	}
	return h, err
}

// DocumentSymbols returns the outline of uri.
func (d *Database) DocumentSymbols(uri string) ([]protocol.DocumentSymbol, error) {
	const op = "document symbols"
	if err := d.check(); err != nil {
		return nil, err
	}
	_, _, b, err := d.document(uri)
	if err != nil {
		return nil, d.fail(op, uri, err)
	}
	if b == nil || len(b.DocumentSymbols) == 0 {
		return nil, nil
	}
	rangeOf := func(id lsif.ID) (*lsif.Range, error) {
		r, ok := b.Ranges[id]
		if !ok {
			return nil, nil
		}
		return &lsif.Range{ID: id, Span: r.Span(), Tag: r.Tag}, nil
	}
	syms, err := resolve.DocumentSymbols(b.DocumentSymbols, rangeOf)
	if err != nil {
		return nil, d.fail(op, uri, err)
	}
	return syms, nil
}

// FoldingRanges returns the folding ranges of uri.
func (d *Database) FoldingRanges(uri string) ([]protocol.FoldingRange, error) {
	var out []protocol.FoldingRange
	if err := d.payload("folding ranges", uri, func(b *Blob) json.RawMessage { return b.FoldingRanges }, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Diagnostics returns the diagnostics stored for uri.
func (d *Database) Diagnostics(uri string) ([]protocol.Diagnostic, error) {
	var out []protocol.Diagnostic
	if err := d.payload("diagnostics", uri, func(b *Blob) json.RawMessage { return b.Diagnostics }, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Database) payload(op, uri string, field func(*Blob) json.RawMessage, dst any) error {
	if err := d.check(); err != nil {
		return err
	}
	_, _, b, err := d.document(uri)
	if err != nil {
		return d.fail(op, uri, err)
	}
	if b == nil || len(field(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(field(b), dst); err != nil {
		return d.fail(op, uri, fmt.Errorf("%w: %v", lsif.ErrMalformed, err))
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

// Documents lists the documents of the selected version.
func (d *Database) Documents() ([]lsif.DocumentInfo, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	rows, err := d.store.BlobDocuments(d.version)
	if err != nil {
		return nil, err
	}
	out := make([]lsif.DocumentInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, lsif.DocumentInfo{URI: d.uris.FromDatabase(r.URI), LanguageID: r.LanguageID, Hash: r.DocumentHash})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}

// Content returns the stored text of uri, or nil.
func (d *Database) Content(uri string) ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	_, hash, _, err := d.document(uri)
	if err != nil || hash == "" {
		return nil, err
	}
	return d.store.BlobContent(hash)
}
