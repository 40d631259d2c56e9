package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	"github.com/jward/lsifq"
)

func newQueryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the index",
		Long:  "Run queries against an index. Documents are file paths or URIs; all line and column numbers are 0-based.",
	}

	cmd.AddCommand(newLocationCmd(a, "definition", "Find the definitions of the symbol at a position", lsifq.Database.Definitions))
	cmd.AddCommand(newLocationCmd(a, "declaration", "Find the declarations of the symbol at a position", lsifq.Database.Declarations))
	cmd.AddCommand(newLocationCmd(a, "type-definition", "Find the type definitions of the symbol at a position", lsifq.Database.TypeDefinitions))
	cmd.AddCommand(newLocationCmd(a, "implementation", "Find the implementations of the symbol at a position", lsifq.Database.Implementations))
	cmd.AddCommand(newReferencesCmd(a))
	cmd.AddCommand(newHoverCmd(a))
	cmd.AddCommand(newDocumentCmd(a, "symbols", "List the outline of a document", func(db lsifq.Database, uri string) (any, int, error) {
		syms, err := db.DocumentSymbols(uri)
		return symbolsToCLI(syms), len(syms), err
	}))
	cmd.AddCommand(newDocumentCmd(a, "folding", "List the folding ranges of a document", func(db lsifq.Database, uri string) (any, int, error) {
		folds, err := db.FoldingRanges(uri)
		return foldingRangesToCLI(folds), len(folds), err
	}))
	cmd.AddCommand(newDocumentCmd(a, "diagnostics", "List the diagnostics of a document", func(db lsifq.Database, uri string) (any, int, error) {
		diags, err := db.Diagnostics(uri)
		return diagnosticsToCLI(diags), len(diags), err
	}))
	return cmd
}

// positionQuery opens the index and resolves <document> <line> <col> before
// running fn.
func (a *app) positionQuery(command string, args []string, fn func(db lsifq.Database, uri string, pos protocol.Position) (CLIResult, error)) error {
	ctx := context.Background()
	line, err := parseUintArg(args[1], "line")
	if err != nil {
		return a.outputError(command, err)
	}
	col, err := parseUintArg(args[2], "col")
	if err != nil {
		return a.outputError(command, err)
	}

	w, err := a.openWorkspace(ctx)
	if err != nil {
		return a.outputError(command, err)
	}
	defer w.Close()

	db, uri, err := lookup(w, args[0])
	if err != nil {
		return a.outputError(command, err)
	}
	result, err := fn(db, uri, protocol.Position{Line: line, Character: col})
	if err != nil {
		return a.outputError(command, err)
	}
	result.Command = command
	return a.outputResult(result)
}

type locationQuery func(db lsifq.Database, uri string, pos protocol.Position) ([]protocol.Location, error)

func newLocationCmd(a *app, name, short string, query locationQuery) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <document> <line> <col>",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.positionQuery(name, args, func(db lsifq.Database, uri string, pos protocol.Position) (CLIResult, error) {
				locs, err := query(db, uri, pos)
				if err != nil {
					return CLIResult{}, err
				}
				return CLIResult{Results: locationsToCLI(locs), TotalCount: countOf(len(locs))}, nil
			})
		},
	}
}

func newReferencesCmd(a *app) *cobra.Command {
	var includeDeclaration bool
	cmd := &cobra.Command{
		Use:   "references <document> <line> <col>",
		Short: "Find the references of the symbol at a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.positionQuery("references", args, func(db lsifq.Database, uri string, pos protocol.Position) (CLIResult, error) {
				locs, err := db.References(uri, pos, protocol.ReferenceContext{IncludeDeclaration: includeDeclaration})
				if err != nil {
					return CLIResult{}, err
				}
				return CLIResult{Results: locationsToCLI(locs), TotalCount: countOf(len(locs))}, nil
			})
		},
	}
	cmd.Flags().BoolVar(&includeDeclaration, "include-declaration", false, "also list the definitions and declarations")
	return cmd
}

func newHoverCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hover <document> <line> <col>",
		Short: "Show the hover text of the symbol at a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.positionQuery("hover", args, func(db lsifq.Database, uri string, pos protocol.Position) (CLIResult, error) {
				h, err := db.Hover(uri, pos)
				if err != nil {
					return CLIResult{}, err
				}
				return CLIResult{Results: hoverToCLI(uri, h)}, nil
			})
		},
	}
}

type documentQuery func(db lsifq.Database, uri string) (any, int, error)

func newDocumentCmd(a *app, name, short string, query documentQuery) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <document>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			w, err := a.openWorkspace(ctx)
			if err != nil {
				return a.outputError(name, err)
			}
			defer w.Close()

			db, uri, err := lookup(w, args[0])
			if err != nil {
				return a.outputError(name, err)
			}
			results, n, err := query(db, uri)
			if err != nil {
				return a.outputError(name, err)
			}
			return a.outputResult(CLIResult{Command: name, Results: results, TotalCount: countOf(n)})
		},
	}
}
