// Package runtime runs Risor scripts against a loaded database. Scripts
// see the query contract as global functions returning plain maps and
// lists.
package runtime

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/lsif"
)

// Querier is the query surface exposed to scripts.
type Querier interface {
	ProjectRoot() (string, error)
	Documents() ([]lsif.DocumentInfo, error)
	Content(uri string) ([]byte, error)
	Declarations(uri string, pos protocol.Position) ([]protocol.Location, error)
	Definitions(uri string, pos protocol.Position) ([]protocol.Location, error)
	TypeDefinitions(uri string, pos protocol.Position) ([]protocol.Location, error)
	Implementations(uri string, pos protocol.Position) ([]protocol.Location, error)
	References(uri string, pos protocol.Position, ctx protocol.ReferenceContext) ([]protocol.Location, error)
	Hover(uri string, pos protocol.Position) (*protocol.Hover, error)
	DocumentSymbols(uri string) ([]protocol.DocumentSymbol, error)
	FoldingRanges(uri string) ([]protocol.FoldingRange, error)
	Diagnostics(uri string) ([]protocol.Diagnostic, error)
}

// Runtime embeds a Risor VM and exposes a Querier to scripts.
type Runtime struct {
	db         Querier
	scriptsDir string
	fsys       fs.FS
	log        *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithRuntimeLogger sends the script log global to l.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.log = l
	}
}

// NewRuntime creates a Runtime wired to db and a scripts directory. db may
// be nil, in which case only the log global is available.
func NewRuntime(db Querier, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		db:         db,
		scriptsDir: scriptsDir,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller. It returns the value of
// the script's last expression converted to Go.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) (any, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) (any, error) {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) (any, error) {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	if result == nil || result == object.Nil {
		return nil, nil
	}
	return result.Interface(), nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on that filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log": mustProxy(&logObject{log: r.log}),
	}

	if r.db != nil {
		globals["definitions"] = makeLocationsFn("definitions", r.db.Definitions)
		globals["declarations"] = makeLocationsFn("declarations", r.db.Declarations)
		globals["type_definitions"] = makeLocationsFn("type_definitions", r.db.TypeDefinitions)
		globals["implementations"] = makeLocationsFn("implementations", r.db.Implementations)
		globals["references"] = makeReferencesFn(r.db)
		globals["hover"] = makeHoverFn(r.db)
		globals["document_symbols"] = makeDocumentSymbolsFn(r.db)
		globals["folding_ranges"] = makeFoldingRangesFn(r.db)
		globals["diagnostics"] = makeDiagnosticsFn(r.db)
		globals["documents"] = makeDocumentsFn(r.db)
		globals["content"] = makeContentFn(r.db)
		globals["project_root"] = makeProjectRootFn(r.db)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
