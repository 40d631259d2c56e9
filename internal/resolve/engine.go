package resolve

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/geometry"
	"github.com/jward/lsifq/internal/lsif"
	"github.com/jward/lsifq/internal/uris"
)

// Engine answers the position queries shared by graph-shaped backends.
type Engine struct {
	src    Source
	loc    Locator
	linker Linker
	walker *Walker
	uris   uris.Transformer
	log    *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLinker adds cross-document chain linking, such as moniker matching.
func WithLinker(l Linker) EngineOption {
	return func(e *Engine) { e.linker = l }
}

// WithTransformer sets the URI transform applied at the query boundary.
func WithTransformer(t uris.Transformer) EngineOption {
	return func(e *Engine) { e.uris = t }
}

// WithMaxChainDepth bounds next chains.
func WithMaxChainDepth(n int) EngineOption {
	return func(e *Engine) { e.walker = NewWalker(e.src, n) }
}

// WithLogger sets the logger used for failed queries.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// NewEngine returns an engine over src and loc.
func NewEngine(src Source, loc Locator, opts ...EngineOption) *Engine {
	e := &Engine{
		src:    src,
		loc:    loc,
		walker: NewWalker(src, DefaultMaxChainDepth),
		uris:   uris.Identity{},
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Walker exposes the engine's chain walker.
func (e *Engine) Walker() *Walker { return e.walker }

// Transformer returns the engine's URI transform.
func (e *Engine) Transformer() uris.Transformer { return e.uris }

func (e *Engine) documents(uri string) ([]lsif.ID, error) {
	return e.loc.Documents(uris.Normalize(e.uris.ToDatabase(uri)))
}

// RangesAt returns the most specific ranges containing pos. Equal spans
// from several document copies are all returned.
func (e *Engine) RangesAt(uri string, pos protocol.Position) ([]*lsif.Range, error) {
	docs, err := e.documents(uri)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	candidates, err := e.loc.RangesAt(docs, pos)
	if err != nil {
		return nil, fmt.Errorf("ranges at %s:%d:%d: %w", uri, pos.Line, pos.Character, err)
	}
	return geometry.MostSpecific(candidates, func(r *lsif.Range) protocol.Range { return r.Span }, pos), nil
}

// chains returns the local chain of every range at pos.
func (e *Engine) chains(uri string, pos protocol.Position) ([]*lsif.Range, [][]lsif.ID, error) {
	ranges, err := e.RangesAt(uri, pos)
	if err != nil {
		return nil, nil, err
	}
	chains := make([][]lsif.ID, 0, len(ranges))
	for _, r := range ranges {
		c, err := e.walker.Chain(r.ID)
		if err != nil {
			return nil, nil, err
		}
		chains = append(chains, c)
	}
	return ranges, chains, nil
}

// linked returns chain followed by the chains the linker connects to it.
func (e *Engine) linked(chain []lsif.ID, label string) ([][]lsif.ID, error) {
	all := [][]lsif.ID{chain}
	if e.linker == nil {
		return all, nil
	}
	_, idx, err := e.walker.Result(chain, label)
	if err != nil {
		return nil, err
	}
	more, err := e.linker.Linked(chain, idx)
	if err != nil {
		return nil, fmt.Errorf("link chain of %s: %w", chain[0], err)
	}
	return append(all, more...), nil
}

func (e *Engine) fail(op, uri string, err error) error {
	e.log.Warn("query failed", "op", op, "uri", uri, "err", err)
	return fmt.Errorf("%s %s: %w", op, uri, err)
}

// Declarations returns the declaration locations at pos.
func (e *Engine) Declarations(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return e.locations("declarations", lsif.EdgeDeclaration, uri, pos)
}

// Definitions returns the definition locations at pos.
func (e *Engine) Definitions(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return e.locations("definitions", lsif.EdgeDefinition, uri, pos)
}

// TypeDefinitions returns the type definition locations at pos.
func (e *Engine) TypeDefinitions(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return e.locations("type definitions", lsif.EdgeTypeDefinition, uri, pos)
}

// Implementations returns the implementation locations at pos.
func (e *Engine) Implementations(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return e.locations("implementations", lsif.EdgeImplementation, uri, pos)
}

func (e *Engine) locations(op, label, uri string, pos protocol.Position) ([]protocol.Location, error) {
	_, chains, err := e.chains(uri, pos)
	if err != nil {
		return nil, e.fail(op, uri, err)
	}
	var out []protocol.Location
	for _, local := range chains {
		all, err := e.linked(local, label)
		if err != nil {
			return nil, e.fail(op, uri, err)
		}
		for _, chain := range all {
			res, _, err := e.walker.Result(chain, label)
			if err != nil {
				return nil, e.fail(op, uri, err)
			}
			if res == "" {
				continue
			}
			locs, err := e.walker.Locations(res)
			if err != nil {
				return nil, e.fail(op, uri, err)
			}
			out = append(out, locs...)
		}
	}
	return ExportLocations(Dedup(out), e.uris), nil
}

// References returns the reference locations at pos.
func (e *Engine) References(uri string, pos protocol.Position, ctx protocol.ReferenceContext) ([]protocol.Location, error) {
	const op = "references"
	_, chains, err := e.chains(uri, pos)
	if err != nil {
		return nil, e.fail(op, uri, err)
	}
	var out []protocol.Location
	for _, local := range chains {
		all, err := e.linked(local, lsif.EdgeReferences)
		if err != nil {
			return nil, e.fail(op, uri, err)
		}
		for _, chain := range all {
			res, _, err := e.walker.Result(chain, lsif.EdgeReferences)
			if err != nil {
				return nil, e.fail(op, uri, err)
			}
			if res == "" {
				continue
			}
			locs, err := e.walker.References(res, ctx.IncludeDeclaration)
			if err != nil {
				return nil, e.fail(op, uri, err)
			}
			out = append(out, locs...)
		}
	}
	return ExportLocations(Dedup(out), e.uris), nil
}

// Hover returns the hover at pos. The hover range defaults to the range
// the position resolved to.
func (e *Engine) Hover(uri string, pos protocol.Position) (*protocol.Hover, error) {
	const op = "hover"
	ranges, chains, err := e.chains(uri, pos)
	if err != nil {
		return nil, e.fail(op, uri, err)
	}
	for i, local := range chains {
		h, err := e.walker.Hover(local)
		if err != nil {
			return nil, e.fail(op, uri, err)
		}
		if h == nil && e.linker != nil {
			h, err = e.linkedHover(local)
			if err != nil {
				return nil, e.fail(op, uri, err)
			}
		}
		if h != nil {
			if h.Range == nil {
				span := ranges[i].Span
				h.Range = &span
			}
			return h, nil
		}
	}
	return nil, nil
}

func (e *Engine) linkedHover(local []lsif.ID) (*protocol.Hover, error) {
	all, err := e.linked(local, lsif.EdgeHover)
	if err != nil {
		return nil, err
	}
	for _, chain := range all[1:] {
		h, err := e.walker.hoverOn(chain)
		if err != nil || h != nil {
			if h != nil {
				h.Range = nil
			}
			return h, err
		}
	}
	return nil, nil
}

// DocumentSymbols returns the outline of uri.
func (e *Engine) DocumentSymbols(uri string) ([]protocol.DocumentSymbol, error) {
	const op = "document symbols"
	raw, err := e.payload(uri, lsif.EdgeDocumentSymbol)
	if err != nil || raw == nil {
		return nil, e.failIf(op, uri, err)
	}
	syms, err := DocumentSymbols(raw, e.rangeOf)
	if err != nil {
		return nil, e.fail(op, uri, err)
	}
	return syms, nil
}

// FoldingRanges returns the folding ranges of uri.
func (e *Engine) FoldingRanges(uri string) ([]protocol.FoldingRange, error) {
	const op = "folding ranges"
	raw, err := e.payload(uri, lsif.EdgeFoldingRange)
	if err != nil || raw == nil {
		return nil, e.failIf(op, uri, err)
	}
	var out []protocol.FoldingRange
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, e.fail(op, uri, fmt.Errorf("%w: %v", lsif.ErrMalformed, err))
	}
	return out, nil
}

// Diagnostics returns the diagnostics stored for uri.
func (e *Engine) Diagnostics(uri string) ([]protocol.Diagnostic, error) {
	const op = "diagnostics"
	raw, err := e.payload(uri, lsif.EdgeDiagnostic)
	if err != nil || raw == nil {
		return nil, e.failIf(op, uri, err)
	}
	var out []protocol.Diagnostic
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, e.fail(op, uri, fmt.Errorf("%w: %v", lsif.ErrMalformed, err))
	}
	return out, nil
}

// payload returns the first document-level result found among the
// documents sharing uri.
func (e *Engine) payload(uri, label string) (json.RawMessage, error) {
	docs, err := e.documents(uri)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		raw, err := e.walker.DocumentPayload(doc, label)
		if err != nil {
			return nil, err
		}
		if raw != nil {
			return raw, nil
		}
	}
	return nil, nil
}

func (e *Engine) failIf(op, uri string, err error) error {
	if err == nil {
		return nil
	}
	return e.fail(op, uri, err)
}

func (e *Engine) rangeOf(id lsif.ID) (*lsif.Range, error) {
	v, err := e.src.Vertex(id)
	if err != nil || v == nil {
		return nil, err
	}
	r, _ := v.AsRange()
	return r, nil
}
