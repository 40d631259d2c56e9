package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jward/lsifq"
	"github.com/jward/lsifq/internal/config"
	"github.com/jward/lsifq/internal/uris"
)

func main() {
	a := &app{out: os.Stdout, errOut: os.Stderr}
	if err := newRootCmd(a).Execute(); err != nil {
		if !a.errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// app holds the flags and output streams shared by every command.
type app struct {
	db          string
	config      string
	root        string
	format      string
	logLevel    string
	versionTag  string
	dbFormat    string
	metricsFile string

	out    io.Writer
	errOut io.Writer

	log      *slog.Logger
	registry *prometheus.Registry

	// errorHandled is set by outputError so main doesn't double-print.
	errorHandled bool
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "lsifq",
		Short:         "Query LSIF code-intelligence indexes",
		Long:          "lsifq answers definition, reference, hover and outline queries from LSIF dumps and the SQLite databases converted from them.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(a.format); err != nil {
				return err
			}
			a.log = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: config.ParseLevel(a.logLevel)}))
			if a.metricsFile != "" {
				a.registry = prometheus.NewRegistry()
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.registry == nil {
				return nil
			}
			return prometheus.WriteToTextfile(a.metricsFile, a.registry)
		},
		// No Run, prints help by default.
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	f := root.PersistentFlags()
	f.StringVar(&a.db, "db", "", "index path: an LSIF dump or a converted SQLite database")
	f.StringVar(&a.config, "config", "", "workspace config file (alternative to --db)")
	f.StringVar(&a.root, "root", "", "serve the --db index under this directory or URI")
	f.StringVar(&a.format, "format", "json", "output format: json|text")
	f.StringVar(&a.logLevel, "log-level", "warn", "log level: debug|info|warn|error")
	f.StringVar(&a.versionTag, "version-tag", "", "build version of a blob database (default: latest)")
	f.StringVar(&a.dbFormat, "db-format", "", "force the --db backend: lsif|graph|blob")
	f.StringVar(&a.metricsFile, "metrics-file", "", "write query metrics in Prometheus text format to this file")

	root.AddCommand(newQueryCmd(a))
	root.AddCommand(newDocsCmd(a))
	root.AddCommand(newCatCmd(a))
	root.AddCommand(newInfoCmd(a))
	root.AddCommand(newScriptCmd(a))
	root.AddCommand(newConvertCmd(a))
	return root
}

func (a *app) options() []lsifq.Option {
	opts := []lsifq.Option{lsifq.WithLogger(a.log)}
	if a.versionTag != "" {
		opts = append(opts, lsifq.WithVersionTag(a.versionTag))
	}
	if a.registry != nil {
		opts = append(opts, lsifq.WithMetrics(a.registry))
	}
	return opts
}

// openWorkspace opens the index named by --db or --config. A --db index
// is served under --root when set, otherwise under its project root.
func (a *app) openWorkspace(ctx context.Context) (*lsifq.Workspace, error) {
	switch {
	case a.db != "" && a.config != "":
		return nil, fmt.Errorf("--db and --config are mutually exclusive")
	case a.config != "":
		return lsifq.LoadWorkspace(ctx, a.config, a.options()...)
	case a.db == "":
		return nil, fmt.Errorf("no index: pass --db or --config")
	}

	if _, err := os.Stat(a.db); err != nil {
		return nil, fmt.Errorf("database not found: %s", a.db)
	}
	if a.root != "" {
		return lsifq.OpenWorkspace(ctx, []lsifq.WorkspaceFolder{{
			Root:     uris.FromPath(a.root),
			Database: a.db,
			Format:   a.dbFormat,
			Version:  a.versionTag,
		}}, a.options()...)
	}

	opts := a.options()
	if a.dbFormat != "" {
		opts = append(opts, lsifq.WithFormat(a.dbFormat))
	}
	db, err := lsifq.Open(ctx, a.db, opts...)
	if err != nil {
		return nil, err
	}
	projectRoot, err := db.ProjectRoot()
	if err != nil {
		db.Close()
		return nil, err
	}
	w := lsifq.NewWorkspace()
	if err := w.Add(projectRoot, db); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

// lookup returns the database serving the document named by arg, a URI or
// a file path, together with its URI.
func lookup(w *lsifq.Workspace, arg string) (lsifq.Database, string, error) {
	uri, err := resolveURI(arg)
	if err != nil {
		return nil, "", err
	}
	db, _, ok := w.Lookup(uri)
	if !ok {
		return nil, "", fmt.Errorf("no index serves %s", uri)
	}
	return db, uri, nil
}

// resolveURI converts a file argument to a URI. Arguments with a scheme
// are taken as URIs.
func resolveURI(arg string) (string, error) {
	if strings.Contains(arg, "://") {
		return uris.Normalize(arg), nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", arg, err)
	}
	return uris.FromPath(abs), nil
}

// parseUintArg parses a positional argument as a zero-based coordinate.
func parseUintArg(value, name string) (uint32, error) {
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	return uint32(n), nil
}
