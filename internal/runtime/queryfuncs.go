package runtime

import (
	"context"

	"github.com/risor-io/risor/object"
	"go.lsp.dev/protocol"
)

type locationQuery func(uri string, pos protocol.Position) ([]protocol.Location, error)

// makeLocationsFn wraps a positional location query as name(uri, line, character).
func makeLocationsFn(name string, query locationQuery) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError(name, 3, len(args))
		}
		uri, pos, err := positionArgs(args)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		locs, err := query(uri, pos)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		return locationsToList(locs)
	})
}

// makeReferencesFn exposes references(uri, line, character[, include_declaration]).
// include_declaration defaults to true.
func makeReferencesFn(db Querier) *object.Builtin {
	return object.NewBuiltin("references", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 && len(args) != 4 {
			return object.Errorf("references: expected 3 or 4 arguments, got %d", len(args))
		}
		uri, pos, err := positionArgs(args)
		if err != nil {
			return object.Errorf("references: %v", err)
		}
		include := true
		if len(args) == 4 {
			if include, err = toBool(args[3]); err != nil {
				return object.Errorf("references: include_declaration: %v", err)
			}
		}
		locs, err := db.References(uri, pos, protocol.ReferenceContext{IncludeDeclaration: include})
		if err != nil {
			return object.Errorf("references: %v", err)
		}
		return locationsToList(locs)
	})
}

func makeHoverFn(db Querier) *object.Builtin {
	return object.NewBuiltin("hover", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("hover", 3, len(args))
		}
		uri, pos, err := positionArgs(args)
		if err != nil {
			return object.Errorf("hover: %v", err)
		}
		h, err := db.Hover(uri, pos)
		if err != nil {
			return object.Errorf("hover: %v", err)
		}
		return hoverToObject(h)
	})
}

// makeDocumentFn wraps a per-document query as name(uri).
func makeDocumentFn(name string, query func(uri string) (object.Object, error)) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		uri, err := toString(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		out, err := query(uri)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		return out
	})
}

func makeDocumentSymbolsFn(db Querier) *object.Builtin {
	return makeDocumentFn("document_symbols", func(uri string) (object.Object, error) {
		syms, err := db.DocumentSymbols(uri)
		if err != nil {
			return nil, err
		}
		return symbolsToList(syms), nil
	})
}

func makeFoldingRangesFn(db Querier) *object.Builtin {
	return makeDocumentFn("folding_ranges", func(uri string) (object.Object, error) {
		folds, err := db.FoldingRanges(uri)
		if err != nil {
			return nil, err
		}
		return foldingRangesToList(folds), nil
	})
}

func makeDiagnosticsFn(db Querier) *object.Builtin {
	return makeDocumentFn("diagnostics", func(uri string) (object.Object, error) {
		diags, err := db.Diagnostics(uri)
		if err != nil {
			return nil, err
		}
		return diagnosticsToList(diags), nil
	})
}

func makeContentFn(db Querier) *object.Builtin {
	return makeDocumentFn("content", func(uri string) (object.Object, error) {
		data, err := db.Content(uri)
		if err != nil {
			return nil, err
		}
		if data == nil {
			return object.Nil, nil
		}
		return object.NewString(string(data)), nil
	})
}

func makeDocumentsFn(db Querier) *object.Builtin {
	return object.NewBuiltin("documents", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("documents", 0, len(args))
		}
		docs, err := db.Documents()
		if err != nil {
			return object.Errorf("documents: %v", err)
		}
		results := make([]object.Object, 0, len(docs))
		for _, d := range docs {
			results = append(results, object.NewMap(map[string]object.Object{
				"uri":         object.NewString(d.URI),
				"language_id": object.NewString(d.LanguageID),
				"hash":        object.NewString(d.Hash),
			}))
		}
		return object.NewList(results)
	})
}

func makeProjectRootFn(db Querier) *object.Builtin {
	return object.NewBuiltin("project_root", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("project_root", 0, len(args))
		}
		root, err := db.ProjectRoot()
		if err != nil {
			return object.Errorf("project_root: %v", err)
		}
		return object.NewString(root)
	})
}
