package lsifq

import (
	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/translate"
)

// PositionTranslator maps between the text a client is editing and the
// snapshot that was indexed. A false result means the position or range
// falls inside edited text and has no counterpart.
type PositionTranslator interface {
	ToIndexed(uri string, p protocol.Position) (protocol.Position, bool)
	RangeToCurrent(uri string, r protocol.Range) (protocol.Range, bool)
}

var _ PositionTranslator = (*translate.Tracker)(nil)

type translating struct {
	Database
	tr PositionTranslator
}

// NewTranslatingDatabase wraps db so queries are asked in current
// coordinates. Query positions inside edited text are misses and result
// ranges that cannot be mapped back are dropped.
func NewTranslatingDatabase(db Database, tr PositionTranslator) Database {
	return &translating{Database: db, tr: tr}
}

func (d *translating) locations(uri string, pos protocol.Position, fn func(string, protocol.Position) ([]protocol.Location, error)) ([]protocol.Location, error) {
	p, ok := d.tr.ToIndexed(uri, pos)
	if !ok {
		return nil, nil
	}
	locs, err := fn(uri, p)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.Location, 0, len(locs))
	for _, l := range locs {
		r, ok := d.tr.RangeToCurrent(string(l.URI), l.Range)
		if !ok {
			continue
		}
		l.Range = r
		out = append(out, l)
	}
	return out, nil
}

func (d *translating) Declarations(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return d.locations(uri, pos, d.Database.Declarations)
}

func (d *translating) Definitions(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return d.locations(uri, pos, d.Database.Definitions)
}

func (d *translating) TypeDefinitions(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return d.locations(uri, pos, d.Database.TypeDefinitions)
}

func (d *translating) Implementations(uri string, pos protocol.Position) ([]protocol.Location, error) {
	return d.locations(uri, pos, d.Database.Implementations)
}

func (d *translating) References(uri string, pos protocol.Position, ctx protocol.ReferenceContext) ([]protocol.Location, error) {
	return d.locations(uri, pos, func(u string, p protocol.Position) ([]protocol.Location, error) {
		return d.Database.References(u, p, ctx)
	})
}

// Hover keeps the contents when the hovered range cannot be mapped and
// reports no range instead.
func (d *translating) Hover(uri string, pos protocol.Position) (*protocol.Hover, error) {
	p, ok := d.tr.ToIndexed(uri, pos)
	if !ok {
		return nil, nil
	}
	h, err := d.Database.Hover(uri, p)
	if err != nil || h == nil || h.Range == nil {
		return h, err
	}
	out := *h
	if r, ok := d.tr.RangeToCurrent(uri, *h.Range); ok {
		out.Range = &r
	} else {
		out.Range = nil
	}
	return &out, nil
}

func (d *translating) DocumentSymbols(uri string) ([]protocol.DocumentSymbol, error) {
	syms, err := d.Database.DocumentSymbols(uri)
	if err != nil {
		return nil, err
	}
	return d.symbols(uri, syms), nil
}

func (d *translating) symbols(uri string, syms []protocol.DocumentSymbol) []protocol.DocumentSymbol {
	if len(syms) == 0 {
		return nil
	}
	out := make([]protocol.DocumentSymbol, 0, len(syms))
	for _, s := range syms {
		r, ok := d.tr.RangeToCurrent(uri, s.Range)
		if !ok {
			continue
		}
		sel, ok := d.tr.RangeToCurrent(uri, s.SelectionRange)
		if !ok {
			continue
		}
		s.Range, s.SelectionRange = r, sel
		s.Children = d.symbols(uri, s.Children)
		out = append(out, s)
	}
	return out
}

func (d *translating) FoldingRanges(uri string) ([]protocol.FoldingRange, error) {
	folds, err := d.Database.FoldingRanges(uri)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.FoldingRange, 0, len(folds))
	for _, f := range folds {
		r, ok := d.tr.RangeToCurrent(uri, protocol.Range{
			Start: protocol.Position{Line: f.StartLine, Character: f.StartCharacter},
			End:   protocol.Position{Line: f.EndLine, Character: f.EndCharacter},
		})
		if !ok {
			continue
		}
		f.StartLine, f.StartCharacter = r.Start.Line, r.Start.Character
		f.EndLine, f.EndCharacter = r.End.Line, r.End.Character
		out = append(out, f)
	}
	return out, nil
}

func (d *translating) Diagnostics(uri string) ([]protocol.Diagnostic, error) {
	diags, err := d.Database.Diagnostics(uri)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, diag := range diags {
		r, ok := d.tr.RangeToCurrent(uri, diag.Range)
		if !ok {
			continue
		}
		diag.Range = r
		out = append(out, diag)
	}
	return out, nil
}
