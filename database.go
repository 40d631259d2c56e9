package lsifq

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/blob"
	"github.com/jward/lsifq/internal/graph"
	"github.com/jward/lsifq/internal/relational"
	"github.com/jward/lsifq/internal/resolve"
	"github.com/jward/lsifq/internal/store"
	"github.com/jward/lsifq/internal/uris"
)

// Backend formats.
const (
	// FormatLSIF is a JSON dump loaded into memory.
	FormatLSIF = "lsif"
	// FormatGraph is a SQLite file of compressed vertices and edges.
	FormatGraph = store.FormatGraph
	// FormatBlob is a SQLite file of per-document blobs.
	FormatBlob = store.FormatBlob
)

// Database is the query contract every backend implements. Positions are
// zero-based; URIs pass through the configured URITransform in both
// directions. A query that finds nothing returns an empty result and a nil
// error.
type Database interface {
	ProjectRoot() (string, error)
	Documents() ([]DocumentInfo, error)
	Content(uri string) ([]byte, error)

	DocumentSymbols(uri string) ([]protocol.DocumentSymbol, error)
	FoldingRanges(uri string) ([]protocol.FoldingRange, error)
	Diagnostics(uri string) ([]protocol.Diagnostic, error)

	Hover(uri string, pos protocol.Position) (*protocol.Hover, error)
	Declarations(uri string, pos protocol.Position) ([]protocol.Location, error)
	Definitions(uri string, pos protocol.Position) ([]protocol.Location, error)
	TypeDefinitions(uri string, pos protocol.Position) ([]protocol.Location, error)
	Implementations(uri string, pos protocol.Position) ([]protocol.Location, error)
	References(uri string, pos protocol.Position, ctx protocol.ReferenceContext) ([]protocol.Location, error)

	Close() error
}

var (
	_ Database = (*graph.Database)(nil)
	_ Database = (*relational.Database)(nil)
	_ Database = (*blob.Database)(nil)
)

type options struct {
	log           *slog.Logger
	uris          uris.Transformer
	metrics       prometheus.Registerer
	versionTag    string
	format        string
	maxChainDepth int
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger backends report loading and decode failures
// to. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithURITransform sets the transform applied to URIs entering and leaving
// the database.
func WithURITransform(t URITransform) Option {
	return func(o *options) {
		o.uris = t
	}
}

// WithMetrics instruments the opened database, registering its collectors
// with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.metrics = reg
	}
}

// WithVersionTag selects the build version of a blob database. The default
// is the most recent version.
func WithVersionTag(tag string) Option {
	return func(o *options) {
		o.versionTag = tag
	}
}

// WithFormat forces a backend instead of detecting it.
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithMaxChainDepth bounds result-set chain walks. Longer chains fail
// with ErrCycle.
func WithMaxChainDepth(n int) Option {
	return func(o *options) {
		o.maxChainDepth = n
	}
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

func (o *options) resolve() resolve.Options {
	return resolve.Options{
		Logger:        o.log,
		URIs:          o.uris,
		MaxChainDepth: o.maxChainDepth,
		VersionTag:    o.versionTag,
	}.WithDefaults()
}

// Open loads the index at path. The backend follows WithFormat when set,
// otherwise the file extension, otherwise the file contents.
func Open(ctx context.Context, path string, opts ...Option) (Database, error) {
	o := buildOptions(opts)
	format := o.format
	if format == "" {
		var err error
		if format, err = DetectFormat(path); err != nil {
			return nil, fmt.Errorf("lsifq: %w", err)
		}
	}

	var (
		db  Database
		err error
	)
	switch format {
	case FormatLSIF:
		db, err = graph.Open(ctx, path, o.resolve())
	case FormatGraph:
		db, err = relational.Open(ctx, path, o.resolve())
	case FormatBlob:
		db, err = blob.Open(ctx, path, o.resolve())
	default:
		return nil, fmt.Errorf("lsifq: %w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("lsifq: %w", err)
	}
	if o.metrics != nil {
		db = Instrument(db, NewMetrics(o.metrics), format)
	}
	return db, nil
}

var sqliteHeader = []byte("SQLite format 3\x00")

// DetectFormat names the backend for path: dump extensions are FormatLSIF,
// SQLite files report the format recorded inside them.
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lsif", ".json", ".jsonl", ".ndjson":
		return FormatLSIF, nil
	case ".db", ".sqlite", ".sqlite3":
		return storeFormat(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("detect format: %w", err)
	}
	defer f.Close()
	head := make([]byte, len(sqliteHeader))
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("detect format: %w", err)
	}
	if bytes.Equal(head[:n], sqliteHeader) {
		return storeFormat(path)
	}
	return FormatLSIF, nil
}

func storeFormat(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("detect format: %w", err)
	}
	s, err := store.OpenReadOnly(path)
	if err != nil {
		return "", err
	}
	defer s.Close()
	return s.Format()
}
