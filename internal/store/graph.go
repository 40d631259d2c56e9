package store

import (
	"database/sql"
	"fmt"
)

// Read queries over the graph format.

// Vertex returns the vertex row for id, or nil when absent.
func (s *Store) Vertex(id string) (*VertexRow, error) {
	v := &VertexRow{}
	err := s.db.QueryRow("SELECT id, label, value FROM vertices WHERE id = ?", id).Scan(&v.ID, &v.Label, &v.Value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vertex %s: %w", id, err)
	}
	return v, nil
}

// Out returns the in-vertices of edges labelled label leaving outV, in
// insertion order.
func (s *Store) Out(outV, label string) ([]string, error) {
	ids, err := queryStrings(s.db, "SELECT inV FROM edges WHERE outV = ? AND label = ? ORDER BY seq", outV, label)
	if err != nil {
		return nil, fmt.Errorf("out %s %s: %w", outV, label, err)
	}
	return ids, nil
}

// In returns the out-vertices of edges labelled label entering inV.
func (s *Store) In(inV, label string) ([]string, error) {
	ids, err := queryStrings(s.db, "SELECT outV FROM edges WHERE inV = ? AND label = ? ORDER BY seq", inV, label)
	if err != nil {
		return nil, fmt.Errorf("in %s %s: %w", inV, label, err)
	}
	return ids, nil
}

// Items returns the item edges leaving outV.
func (s *Store) Items(outV string) ([]*EdgeRow, error) {
	rows, err := s.db.Query(
		`SELECT id, label, outV, inV, COALESCE(property, ''), COALESCE(shard, '')
		 FROM edges WHERE outV = ? AND label = 'item' ORDER BY seq`, outV)
	if err != nil {
		return nil, fmt.Errorf("items %s: %w", outV, err)
	}
	defer rows.Close()
	var out []*EdgeRow
	for rows.Next() {
		e := &EdgeRow{}
		if err := rows.Scan(&e.ID, &e.Label, &e.OutV, &e.InV, &e.Property, &e.Shard); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const rangeCols = "r.id, r.belongsTo, r.startLine, r.startCharacter, r.endLine, r.endCharacter"

func scanRange(sc scanner, extra ...any) (*RangeRow, error) {
	r := &RangeRow{}
	dest := append([]any{&r.ID, &r.BelongsTo, &r.StartLine, &r.StartCharacter, &r.EndLine, &r.EndCharacter}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	return r, nil
}

// RangesAt returns the ranges of the given documents containing the
// position, in the order the dump's contains edges listed them.
func (s *Store) RangesAt(docIDs []string, line, character uint32) ([]*RangeRow, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}
	query := "SELECT " + rangeCols + " FROM ranges r WHERE r.belongsTo IN (" + placeholderList(len(docIDs)) + ") AND " +
		containsPositionSQL + " ORDER BY (SELECT MIN(e.seq) FROM edges e WHERE e.inV = r.id AND e.label = 'contains'), r.rowid"
	args := append(stringsToArgs(docIDs), positionArgs(line, character)...)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ranges at %d:%d: %w", line, character, err)
	}
	defer rows.Close()
	var out []*RangeRow
	for rows.Next() {
		r, err := scanRange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan range: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RangeLocation returns a range and the URI of its document, or nil.
func (s *Store) RangeLocation(id string) (*RangeLocation, error) {
	var uri string
	row := s.db.QueryRow("SELECT "+rangeCols+", d.uri FROM ranges r JOIN documents d ON d.id = r.belongsTo WHERE r.id = ?", id)
	r, err := scanRange(row, &uri)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", id, err)
	}
	return &RangeLocation{RangeRow: *r, URI: uri}, nil
}

// DocumentIDs returns the ids of every document with the given URI.
func (s *Store) DocumentIDs(uri string) ([]string, error) {
	ids, err := queryStrings(s.db, "SELECT id FROM documents WHERE uri = ? ORDER BY rowid", uri)
	if err != nil {
		return nil, fmt.Errorf("documents %s: %w", uri, err)
	}
	return ids, nil
}

// Documents returns every document row ordered by URI.
func (s *Store) Documents() ([]*DocumentRow, error) {
	rows, err := s.db.Query("SELECT id, uri, COALESCE(languageId, ''), COALESCE(hash, '') FROM documents ORDER BY uri, rowid")
	if err != nil {
		return nil, fmt.Errorf("documents: %w", err)
	}
	defer rows.Close()
	var out []*DocumentRow
	for rows.Next() {
		d := &DocumentRow{}
		if err := rows.Scan(&d.ID, &d.URI, &d.LanguageID, &d.Hash); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DocumentContent returns the stored text of the first document with uri
// that has any, or nil.
func (s *Store) DocumentContent(uri string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRow(
		`SELECT c.content FROM contents c JOIN documents d ON d.id = c.id
		 WHERE d.uri = ? ORDER BY d.rowid LIMIT 1`, uri).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", uri, err)
	}
	return content, nil
}

const monikerCols = "id, scheme, identifier, COALESCE(kind, ''), COALESCE(uniqueness, '')"

func scanMoniker(sc scanner) (*MonikerRow, error) {
	m := &MonikerRow{}
	if err := sc.Scan(&m.ID, &m.Scheme, &m.Identifier, &m.Kind, &m.Uniqueness); err != nil {
		return nil, err
	}
	return m, nil
}

// Moniker returns the moniker with the given id, or nil.
func (s *Store) Moniker(id string) (*MonikerRow, error) {
	m, err := scanMoniker(s.db.QueryRow("SELECT "+monikerCols+" FROM monikers WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("moniker %s: %w", id, err)
	}
	return m, nil
}

// MonikersByKey returns every moniker sharing (scheme, identifier), in
// insertion order.
func (s *Store) MonikersByKey(scheme, identifier string) ([]*MonikerRow, error) {
	rows, err := s.db.Query("SELECT "+monikerCols+" FROM monikers WHERE scheme = ? AND identifier = ? ORDER BY rowid", scheme, identifier)
	if err != nil {
		return nil, fmt.Errorf("monikers %s %s: %w", scheme, identifier, err)
	}
	defer rows.Close()
	var out []*MonikerRow
	for rows.Next() {
		m, err := scanMoniker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan moniker: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
