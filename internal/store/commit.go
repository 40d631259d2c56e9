package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CommitGraph inserts everything buffered in w into the graph tables
// within a single transaction, then records the dump metadata and the
// compression schemas the vertex rows were written with.
//
// Insert order:
//  1. Vertices
//  2. Documents and their contents
//  3. Ranges (owning document resolved from contains edges)
//  4. Monikers
//  5. Edges, one row per in-vertex
//  6. Meta
func (s *Store) CommitGraph(w *Writer) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit graph: begin: %w", err)
	}
	defer tx.Rollback()

	// 1. Vertices
	stmt, err := tx.Prepare("INSERT INTO vertices (id, label, value) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("commit graph: %w", err)
	}
	for _, v := range w.Vertices {
		if _, err := stmt.Exec(v.ID, v.Label, string(v.Value)); err != nil {
			return fmt.Errorf("commit graph: vertex %s: %w", v.ID, err)
		}
	}
	stmt.Close()

	// 2. Documents
	for _, d := range w.Documents {
		if _, err := tx.Exec("INSERT INTO documents (id, uri, languageId, hash) VALUES (?, ?, ?, ?)",
			d.ID, d.URI, nullString(d.LanguageID), nullString(d.Hash)); err != nil {
			return fmt.Errorf("commit graph: document %s: %w", d.URI, err)
		}
		if content, ok := w.Contents[d.ID]; ok {
			if _, err := tx.Exec("INSERT INTO contents (id, content) VALUES (?, ?)", d.ID, content); err != nil {
				return fmt.Errorf("commit graph: content %s: %w", d.URI, err)
			}
		}
	}

	// 3. Ranges
	stmt, err = tx.Prepare(`INSERT INTO ranges (id, belongsTo, startLine, startCharacter, endLine, endCharacter)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("commit graph: %w", err)
	}
	for _, r := range w.Ranges {
		if _, err := stmt.Exec(r.ID, r.BelongsTo, r.StartLine, r.StartCharacter, r.EndLine, r.EndCharacter); err != nil {
			return fmt.Errorf("commit graph: range %s: %w", r.ID, err)
		}
	}
	stmt.Close()

	// 4. Monikers
	for _, m := range w.Monikers {
		if _, err := tx.Exec("INSERT INTO monikers (id, scheme, identifier, kind, uniqueness) VALUES (?, ?, ?, ?, ?)",
			m.ID, m.Scheme, m.Identifier, nullString(m.Kind), nullString(m.Uniqueness)); err != nil {
			return fmt.Errorf("commit graph: moniker %s: %w", m.ID, err)
		}
	}

	// 5. Edges
	stmt, err = tx.Prepare("INSERT INTO edges (id, label, outV, inV, property, shard) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("commit graph: %w", err)
	}
	for _, e := range w.Edges {
		if _, err := stmt.Exec(e.ID, e.Label, e.OutV, e.InV, nullString(e.Property), nullString(e.Shard)); err != nil {
			return fmt.Errorf("commit graph: edge %s: %w", e.ID, err)
		}
	}
	stmt.Close()

	// 6. Meta
	compressors, err := json.Marshal(w.reg)
	if err != nil {
		return fmt.Errorf("commit graph: compressors: %w", err)
	}
	meta := map[string]string{
		MetaVersion:          w.meta.Version,
		MetaProjectRoot:      w.meta.ProjectRoot,
		MetaPositionEncoding: w.meta.PositionEncoding,
		MetaCompressors:      string(compressors),
	}
	if err := setMetaTx(tx, meta); err != nil {
		return fmt.Errorf("commit graph: %w", err)
	}

	return tx.Commit()
}

// BlobDocument is one document of a blob version ready to be written.
type BlobDocument struct {
	URI        string
	LanguageID string
	Blob       []byte
	Content    []byte
	Decls      []CrossRow
	Defs       []CrossRow
	Refs       []CrossRow
	Hovers     []HoverRow
}

// HoverRow is a hover indexed by moniker.
type HoverRow struct {
	Scheme     string
	Identifier string
	Content    string
}

// CommitVersion records a new build under tag and writes its documents
// within a single transaction. Blobs and contents already stored under the
// same hash are shared with earlier versions. Returns the version id.
func (s *Store) CommitVersion(tag string, at time.Time, meta map[string]string, docs []*BlobDocument) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("commit version: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("INSERT INTO versionTags (tag, dateTime) VALUES (?, ?)", tag, at.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("commit version %q: %w", tag, err)
	}
	version, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("commit version %q: %w", tag, err)
	}

	for _, d := range docs {
		hash := BlobHash(d.URI, d.Blob)
		if err := insertBlobDocumentTx(tx, version, hash, d); err != nil {
			return 0, fmt.Errorf("commit version: document %s: %w", d.URI, err)
		}
	}

	if err := setMetaTx(tx, meta); err != nil {
		return 0, fmt.Errorf("commit version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

func insertBlobDocumentTx(tx *sql.Tx, version int64, hash string, d *BlobDocument) error {
	if _, err := tx.Exec("INSERT INTO versions (version, hash) VALUES (?, ?)", version, hash); err != nil {
		return err
	}
	var n int
	if err := tx.QueryRow("SELECT COUNT(*) FROM blobs WHERE hash = ?", hash).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		// Shared with an earlier version; the rows below already exist.
		return nil
	}
	if _, err := tx.Exec("INSERT INTO blobs (hash, content) VALUES (?, ?)", hash, string(d.Blob)); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO documents (uri, documentHash, languageId) VALUES (?, ?, ?)",
		d.URI, hash, nullString(d.LanguageID)); err != nil {
		return err
	}
	if d.Content != nil {
		if _, err := tx.Exec("INSERT INTO contents (hash, content) VALUES (?, ?)", hash, d.Content); err != nil {
			return err
		}
	}
	for _, table := range []struct {
		name string
		rows []CrossRow
	}{{"decls", d.Decls}, {"defs", d.Defs}} {
		for _, r := range table.rows {
			if _, err := tx.Exec("INSERT INTO "+table.name+
				" (scheme, identifier, documentHash, startLine, startCharacter, endLine, endCharacter) VALUES (?, ?, ?, ?, ?, ?, ?)",
				r.Scheme, r.Identifier, hash, r.StartLine, r.StartCharacter, r.EndLine, r.EndCharacter); err != nil {
				return err
			}
		}
	}
	for _, r := range d.Refs {
		if _, err := tx.Exec(`INSERT INTO refs (scheme, identifier, documentHash, kind, startLine, startCharacter, endLine, endCharacter)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Scheme, r.Identifier, hash, r.Kind, r.StartLine, r.StartCharacter, r.EndLine, r.EndCharacter); err != nil {
			return err
		}
	}
	for _, h := range d.Hovers {
		if _, err := tx.Exec(`INSERT INTO hovers (scheme, identifier, content)
			SELECT ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM hovers WHERE scheme = ? AND identifier = ?)`,
			h.Scheme, h.Identifier, h.Content, h.Scheme, h.Identifier); err != nil {
			return err
		}
	}
	return nil
}

func setMetaTx(tx *sql.Tx, meta map[string]string) error {
	for key, value := range meta {
		if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("meta %s: %w", key, err)
		}
	}
	return nil
}
