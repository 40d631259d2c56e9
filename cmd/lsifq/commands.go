package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jward/lsifq"
	"github.com/jward/lsifq/internal/runtime"
)

func newDocsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "List the indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.openWorkspace(context.Background())
			if err != nil {
				return a.outputError("docs", err)
			}
			defer w.Close()

			var docs []CLIDocument
			for _, root := range w.Roots() {
				db, _, _ := w.Lookup(root)
				infos, err := db.Documents()
				if err != nil {
					return a.outputError("docs", fmt.Errorf("%s: %w", root, err))
				}
				docs = append(docs, documentsToCLI(infos)...)
			}
			sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
			return a.outputResult(CLIResult{Command: "docs", Results: docs, TotalCount: countOf(len(docs))})
		},
	}
}

func newCatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <document>",
		Short: "Print the indexed contents of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.openWorkspace(context.Background())
			if err != nil {
				return a.outputError("cat", err)
			}
			defer w.Close()

			db, uri, err := lookup(w, args[0])
			if err != nil {
				return a.outputError("cat", err)
			}
			content, err := db.Content(uri)
			if err != nil {
				return a.outputError("cat", err)
			}
			if content == nil {
				return a.outputError("cat", fmt.Errorf("no contents indexed for %s", uri))
			}
			return a.outputResult(CLIResult{Command: "cat", Results: string(content)})
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the opened indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.openWorkspace(context.Background())
			if err != nil {
				return a.outputError("info", err)
			}
			defer w.Close()

			var infos []CLIWorkspace
			for _, root := range w.Roots() {
				db, _, _ := w.Lookup(root)
				docs, err := db.Documents()
				if err != nil {
					return a.outputError("info", fmt.Errorf("%s: %w", root, err))
				}
				infos = append(infos, CLIWorkspace{Root: root, Documents: len(docs)})
			}
			return a.outputResult(CLIResult{Command: "info", Results: infos, TotalCount: countOf(len(infos))})
		},
	}
}

func newScriptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "script <file.risor> [args...]",
		Short: "Run a Risor script against the index",
		Long:  "Runs a Risor script with the query functions as globals. Extra arguments are available to the script as the args list; the value of its last expression is printed.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			w, err := a.openWorkspace(ctx)
			if err != nil {
				return a.outputError("script", err)
			}
			defer w.Close()

			roots := w.Roots()
			if len(roots) != 1 {
				return a.outputError("script", fmt.Errorf("scripts need a single index, got %d", len(roots)))
			}
			db, _, _ := w.Lookup(roots[0])

			path, err := filepath.Abs(args[0])
			if err != nil {
				return a.outputError("script", err)
			}
			scriptArgs := make([]any, 0, len(args)-1)
			for _, arg := range args[1:] {
				scriptArgs = append(scriptArgs, arg)
			}

			rt := runtime.NewRuntime(db, filepath.Dir(path), runtime.WithRuntimeLogger(a.log))
			result, err := rt.RunScript(ctx, filepath.Base(path), map[string]any{"args": scriptArgs})
			if err != nil {
				return a.outputError("script", err)
			}
			return a.outputResult(CLIResult{Command: "script", Results: result})
		},
	}
}

func newConvertCmd(a *app) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "convert <dump> <out.db>",
		Short: "Convert an LSIF dump into a SQLite database",
		Long:  "Writes a graph database (vertices and edges) or appends a build version to a blob database (one record per document). Blob versions are tagged with --version-tag.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := lsifq.Convert(context.Background(), args[0], args[1], to, a.options()...); err != nil {
				return a.outputError("convert", err)
			}
			return a.outputResult(CLIResult{Command: "convert", Results: args[1]})
		},
	}
	cmd.Flags().StringVar(&to, "to", lsifq.FormatBlob, "database format: graph|blob")
	return cmd
}
