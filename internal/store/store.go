package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Database formats recorded in the format table.
const (
	FormatGraph = "graph"
	FormatBlob  = "blob"
)

// ErrUnknownFormat means the file carries no recognizable format marker.
var ErrUnknownFormat = errors.New("store: unknown database format")

// Store is the SQLite data access layer for both relational formats: the
// vertex/edge graph tables and the per-document blob tables.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	return open(dbPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
}

// OpenReadOnly opens an existing database without write access.
func OpenReadOnly(dbPath string) (*Store, error) {
	return open("file:" + dbPath + "?mode=ro&_busy_timeout=30000")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables of the given format and records the format
// marker. Idempotent.
func (s *Store) Migrate(format string) error {
	var ddl string
	switch format {
	case FormatGraph:
		ddl = graphDDL
	case FormatBlob:
		ddl = blobDDL
	default:
		return fmt.Errorf("migrate: %w: %q", ErrUnknownFormat, format)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(commonDDL + ddl); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM format"); err != nil {
		return fmt.Errorf("migrate: clear format: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO format (format) VALUES (?)", format); err != nil {
		return fmt.Errorf("migrate: set format: %w", err)
	}
	return tx.Commit()
}

// Format returns the format recorded in the database.
func (s *Store) Format() (string, error) {
	var format string
	err := s.db.QueryRow("SELECT format FROM format LIMIT 1").Scan(&format)
	if err != nil {
		if err == sql.ErrNoRows || strings.Contains(err.Error(), "no such table") {
			return "", ErrUnknownFormat
		}
		return "", fmt.Errorf("read format: %w", err)
	}
	if format != FormatGraph && format != FormatBlob {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return format, nil
}

// Meta returns the metadata value for key, or "" when unset.
func (s *Store) Meta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("meta %s: %w", key, err)
	}
	return value, nil
}

// Metadata keys.
const (
	MetaVersion          = "version"
	MetaProjectRoot      = "projectRoot"
	MetaPositionEncoding = "positionEncoding"
	MetaCompressors      = "compressors"
)

const commonDDL = `
CREATE TABLE IF NOT EXISTS format (
  format          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);
`

const graphDDL = `
CREATE TABLE IF NOT EXISTS vertices (
  id              TEXT PRIMARY KEY,
  label           TEXT NOT NULL,
  value           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS edges (
  seq             INTEGER PRIMARY KEY,
  id              TEXT NOT NULL,
  label           TEXT NOT NULL,
  outV            TEXT NOT NULL,
  inV             TEXT NOT NULL,
  property        TEXT,
  shard           TEXT
);

CREATE TABLE IF NOT EXISTS ranges (
  id              TEXT PRIMARY KEY,
  belongsTo       TEXT NOT NULL,
  startLine       INTEGER NOT NULL,
  startCharacter  INTEGER NOT NULL,
  endLine         INTEGER NOT NULL,
  endCharacter    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
  id              TEXT PRIMARY KEY,
  uri             TEXT NOT NULL,
  languageId      TEXT,
  hash            TEXT
);

CREATE TABLE IF NOT EXISTS contents (
  id              TEXT PRIMARY KEY REFERENCES documents(id),
  content         BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS monikers (
  id              TEXT PRIMARY KEY,
  scheme          TEXT NOT NULL,
  identifier      TEXT NOT NULL,
  kind            TEXT,
  uniqueness      TEXT
);

CREATE INDEX IF NOT EXISTS idx_edges_out ON edges(outV, label);
CREATE INDEX IF NOT EXISTS idx_edges_in ON edges(inV, label);
CREATE INDEX IF NOT EXISTS idx_ranges_doc ON ranges(belongsTo, startLine, endLine);
CREATE INDEX IF NOT EXISTS idx_documents_uri ON documents(uri);
CREATE INDEX IF NOT EXISTS idx_monikers_key ON monikers(scheme, identifier);
`

const blobDDL = `
CREATE TABLE IF NOT EXISTS versionTags (
  id              INTEGER PRIMARY KEY,
  tag             TEXT NOT NULL UNIQUE,
  dateTime        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS versions (
  version         INTEGER NOT NULL REFERENCES versionTags(id),
  hash            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
  uri             TEXT NOT NULL,
  documentHash    TEXT NOT NULL,
  languageId      TEXT
);

CREATE TABLE IF NOT EXISTS blobs (
  hash            TEXT PRIMARY KEY,
  content         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS contents (
  hash            TEXT PRIMARY KEY,
  content         BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS decls (
  scheme          TEXT NOT NULL,
  identifier      TEXT NOT NULL,
  documentHash    TEXT NOT NULL,
  startLine       INTEGER NOT NULL,
  startCharacter  INTEGER NOT NULL,
  endLine         INTEGER NOT NULL,
  endCharacter    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS defs (
  scheme          TEXT NOT NULL,
  identifier      TEXT NOT NULL,
  documentHash    TEXT NOT NULL,
  startLine       INTEGER NOT NULL,
  startCharacter  INTEGER NOT NULL,
  endLine         INTEGER NOT NULL,
  endCharacter    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS refs (
  scheme          TEXT NOT NULL,
  identifier      TEXT NOT NULL,
  documentHash    TEXT NOT NULL,
  kind            INTEGER NOT NULL,
  startLine       INTEGER NOT NULL,
  startCharacter  INTEGER NOT NULL,
  endLine         INTEGER NOT NULL,
  endCharacter    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS hovers (
  scheme          TEXT NOT NULL,
  identifier      TEXT NOT NULL,
  content         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_versions_version ON versions(version, hash);
CREATE INDEX IF NOT EXISTS idx_documents_uri ON documents(uri);
CREATE INDEX IF NOT EXISTS idx_decls_key ON decls(scheme, identifier);
CREATE INDEX IF NOT EXISTS idx_defs_key ON defs(scheme, identifier);
CREATE INDEX IF NOT EXISTS idx_refs_key ON refs(scheme, identifier);
CREATE INDEX IF NOT EXISTS idx_hovers_key ON hovers(scheme, identifier);
`
