package store

import (
	"database/sql"
	"fmt"
)

// Read queries over the blob format.

// VersionTags returns the recorded builds, newest first.
func (s *Store) VersionTags() ([]*VersionTag, error) {
	rows, err := s.db.Query("SELECT id, tag, dateTime FROM versionTags ORDER BY dateTime DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("version tags: %w", err)
	}
	defer rows.Close()
	var out []*VersionTag
	for rows.Next() {
		v := &VersionTag{}
		if err := rows.Scan(&v.ID, &v.Tag, &v.DateTime); err != nil {
			return nil, fmt.Errorf("scan version tag: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ResolveVersion returns the version id for tag, or the newest version when
// tag is empty. A missing tag returns (0, false, nil).
func (s *Store) ResolveVersion(tag string) (int64, bool, error) {
	var id int64
	var err error
	if tag == "" {
		err = s.db.QueryRow("SELECT id FROM versionTags ORDER BY dateTime DESC, id DESC LIMIT 1").Scan(&id)
	} else {
		err = s.db.QueryRow("SELECT id FROM versionTags WHERE tag = ?", tag).Scan(&id)
	}
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve version %q: %w", tag, err)
	}
	return id, true, nil
}

// BlobDocuments returns the documents of a version ordered by URI.
func (s *Store) BlobDocuments(version int64) ([]*BlobDocumentRow, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT d.uri, d.documentHash, COALESCE(d.languageId, '')
		 FROM documents d JOIN versions v ON v.hash = d.documentHash
		 WHERE v.version = ? ORDER BY d.uri`, version)
	if err != nil {
		return nil, fmt.Errorf("blob documents: %w", err)
	}
	defer rows.Close()
	var out []*BlobDocumentRow
	for rows.Next() {
		d := &BlobDocumentRow{}
		if err := rows.Scan(&d.URI, &d.DocumentHash, &d.LanguageID); err != nil {
			return nil, fmt.Errorf("scan blob document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DocumentHash returns the blob hash of uri in a version, or "".
func (s *Store) DocumentHash(uri string, version int64) (string, error) {
	var hash string
	err := s.db.QueryRow(
		`SELECT d.documentHash FROM documents d JOIN versions v ON v.hash = d.documentHash
		 WHERE d.uri = ? AND v.version = ? LIMIT 1`, uri, version).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("document hash %s: %w", uri, err)
	}
	return hash, nil
}

// Blob returns the serialized blob with the given hash, or nil.
func (s *Store) Blob(hash string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRow("SELECT content FROM blobs WHERE hash = ?", hash).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", hash, err)
	}
	return content, nil
}

// BlobContent returns the document text stored for a blob hash, or nil.
func (s *Store) BlobContent(hash string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRow("SELECT content FROM contents WHERE hash = ?", hash).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", hash, err)
	}
	return content, nil
}

const crossCols = "x.scheme, x.identifier, x.documentHash, x.startLine, x.startCharacter, x.endLine, x.endCharacter"

func (s *Store) crossLocations(table, kindCol, where string, version int64, args ...any) ([]*CrossLocation, error) {
	query := "SELECT DISTINCT " + crossCols + ", " + kindCol + ", d.uri FROM " + table + " x" +
		" JOIN versions v ON v.hash = x.documentHash AND v.version = ?" +
		" JOIN documents d ON d.documentHash = x.documentHash" +
		" WHERE x.scheme = ? AND x.identifier = ?" + where +
		" ORDER BY d.uri, x.startLine, x.startCharacter"
	rows, err := s.db.Query(query, append([]any{version}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	defer rows.Close()
	var out []*CrossLocation
	for rows.Next() {
		c := &CrossLocation{}
		if err := rows.Scan(&c.Scheme, &c.Identifier, &c.DocumentHash,
			&c.StartLine, &c.StartCharacter, &c.EndLine, &c.EndCharacter, &c.Kind, &c.URI); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Declarations returns the declaration rows indexed under a moniker.
func (s *Store) Declarations(scheme, identifier string, version int64) ([]*CrossLocation, error) {
	return s.crossLocations("decls", "1", "", version, scheme, identifier)
}

// Definitions returns the definition rows indexed under a moniker.
func (s *Store) Definitions(scheme, identifier string, version int64) ([]*CrossLocation, error) {
	return s.crossLocations("defs", "2", "", version, scheme, identifier)
}

// References returns the reference rows indexed under a moniker. Rows
// flagged as declarations or definitions are included only when
// includeDeclaration is set.
func (s *Store) References(scheme, identifier string, version int64, includeDeclaration bool) ([]*CrossLocation, error) {
	where := ""
	args := []any{scheme, identifier}
	if !includeDeclaration {
		where = " AND x.kind = ?"
		args = append(args, RefReference)
	}
	return s.crossLocations("refs", "x.kind", where, version, args...)
}

// Hover returns the hover stored for a moniker, or "".
func (s *Store) Hover(scheme, identifier string) (string, error) {
	var content string
	err := s.db.QueryRow("SELECT content FROM hovers WHERE scheme = ? AND identifier = ? LIMIT 1", scheme, identifier).Scan(&content)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("hover %s %s: %w", scheme, identifier, err)
	}
	return content, nil
}
