// Package relational serves queries from the graph format of a SQLite
// database: vertices stored as compressed records, flattened edges, ranges,
// documents and monikers. Symbols of separate compilation units connect
// through matching monikers.
package relational

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/compress"
	"github.com/jward/lsifq/internal/lsif"
	"github.com/jward/lsifq/internal/memo"
	"github.com/jward/lsifq/internal/resolve"
	"github.com/jward/lsifq/internal/store"
)

// Source implements resolve.Source and resolve.Locator over the graph
// tables. Decoded vertices are memoized for the Source's lifetime.
type Source struct {
	store    *store.Store
	reg      *compress.Registry
	vertices *memo.Cache[*lsif.Element]
	log      *slog.Logger
}

// NewSource returns a Source decoding vertex rows with reg.
func NewSource(s *store.Store, reg *compress.Registry, log *slog.Logger) *Source {
	return &Source{store: s, reg: reg, vertices: memo.New[*lsif.Element](), log: log}
}

// Vertex implements resolve.Source.
func (s *Source) Vertex(id lsif.ID) (*lsif.Element, error) {
	return s.vertices.Do(string(id), func() (*lsif.Element, error) {
		row, err := s.store.Vertex(string(id))
		if err != nil || row == nil {
			return nil, err
		}
		e, err := s.decode(row.Value)
		if err != nil {
			s.log.Warn("corrupt vertex", "id", id, "err", err)
			return nil, fmt.Errorf("decode vertex %s: %w", id, err)
		}
		return e, nil
	})
}

// decode accepts compressed records and plain JSON objects.
func (s *Source) decode(value []byte) (*lsif.Element, error) {
	if len(value) == 0 || value[0] != '[' {
		return lsif.ParseElement(value)
	}
	m, err := s.reg.DecompressJSON(value)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return lsif.ParseElement(raw)
}

// Out implements resolve.Source.
func (s *Source) Out(id lsif.ID, label string) ([]lsif.ID, error) {
	ids, err := s.store.Out(string(id), label)
	if err != nil {
		return nil, err
	}
	return toIDs(ids), nil
}

// In returns the out-vertices of edges labelled label entering id.
func (s *Source) In(id lsif.ID, label string) ([]lsif.ID, error) {
	ids, err := s.store.In(string(id), label)
	if err != nil {
		return nil, err
	}
	return toIDs(ids), nil
}

// Items implements resolve.Source.
func (s *Source) Items(id lsif.ID) ([]resolve.Item, error) {
	rows, err := s.store.Items(string(id))
	if err != nil {
		return nil, err
	}
	out := make([]resolve.Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, resolve.Item{Target: lsif.ID(r.InV), Property: r.Property, Shard: lsif.ID(r.Shard)})
	}
	return out, nil
}

// Location implements resolve.Source.
func (s *Source) Location(rangeID lsif.ID) (*protocol.Location, error) {
	loc, err := s.store.RangeLocation(string(rangeID))
	if err != nil || loc == nil {
		return nil, err
	}
	return &protocol.Location{URI: protocol.DocumentURI(loc.URI), Range: span(&loc.RangeRow)}, nil
}

// Documents implements resolve.Locator.
func (s *Source) Documents(uri string) ([]lsif.ID, error) {
	ids, err := s.store.DocumentIDs(uri)
	if err != nil {
		return nil, err
	}
	return toIDs(ids), nil
}

// RangesAt implements resolve.Locator.
func (s *Source) RangesAt(docs []lsif.ID, pos protocol.Position) ([]*lsif.Range, error) {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = string(d)
	}
	rows, err := s.store.RangesAt(ids, pos.Line, pos.Character)
	if err != nil {
		return nil, err
	}
	out := make([]*lsif.Range, 0, len(rows))
	for _, r := range rows {
		out = append(out, &lsif.Range{ID: lsif.ID(r.ID), Span: span(r)})
	}
	return out, nil
}

func span(r *store.RangeRow) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: r.StartLine, Character: r.StartCharacter},
		End:   protocol.Position{Line: r.EndLine, Character: r.EndCharacter},
	}
}

func toIDs(ids []string) []lsif.ID {
	if ids == nil {
		return nil
	}
	out := make([]lsif.ID, len(ids))
	for i, id := range ids {
		out[i] = lsif.ID(id)
	}
	return out
}

var (
	_ resolve.Source  = (*Source)(nil)
	_ resolve.Locator = (*Source)(nil)
)
