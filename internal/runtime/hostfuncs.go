package runtime

import (
	"fmt"
	"log/slog"

	"github.com/risor-io/risor/object"
	"go.lsp.dev/protocol"
)

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	log *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.log.Info(msg, "source", "script")
}

func (l *logObject) Warn(msg string) {
	l.log.Warn(msg, "source", "script")
}

func (l *logObject) Error(msg string) {
	l.log.Error(msg, "source", "script")
}

// --- Argument helpers ---

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

func toBool(obj object.Object) (bool, error) {
	if b, ok := obj.(*object.Bool); ok {
		return b.Value(), nil
	}
	return false, fmt.Errorf("expected bool, got %s", obj.Type())
}

// positionArgs reads the (uri, line, character) triple every positional
// query takes.
func positionArgs(args []object.Object) (string, protocol.Position, error) {
	uri, err := toString(args[0])
	if err != nil {
		return "", protocol.Position{}, fmt.Errorf("uri: %w", err)
	}
	line, err := toInt64(args[1])
	if err != nil {
		return "", protocol.Position{}, fmt.Errorf("line: %w", err)
	}
	char, err := toInt64(args[2])
	if err != nil {
		return "", protocol.Position{}, fmt.Errorf("character: %w", err)
	}
	if line < 0 || char < 0 {
		return "", protocol.Position{}, fmt.Errorf("negative position %d:%d", line, char)
	}
	return uri, protocol.Position{Line: uint32(line), Character: uint32(char)}, nil
}

// --- Result conversion ---

func positionToObject(p protocol.Position) object.Object {
	return object.NewMap(map[string]object.Object{
		"line":      object.NewInt(int64(p.Line)),
		"character": object.NewInt(int64(p.Character)),
	})
}

func rangeToObject(r protocol.Range) object.Object {
	return object.NewMap(map[string]object.Object{
		"start": positionToObject(r.Start),
		"end":   positionToObject(r.End),
	})
}

func locationsToList(locs []protocol.Location) object.Object {
	results := make([]object.Object, 0, len(locs))
	for _, l := range locs {
		results = append(results, object.NewMap(map[string]object.Object{
			"uri":   object.NewString(string(l.URI)),
			"range": rangeToObject(l.Range),
		}))
	}
	return object.NewList(results)
}

func hoverToObject(h *protocol.Hover) object.Object {
	if h == nil {
		return object.Nil
	}
	m := map[string]object.Object{
		"kind":  object.NewString(string(h.Contents.Kind)),
		"value": object.NewString(h.Contents.Value),
	}
	if h.Range != nil {
		m["range"] = rangeToObject(*h.Range)
	}
	return object.NewMap(m)
}

func symbolsToList(syms []protocol.DocumentSymbol) object.Object {
	results := make([]object.Object, 0, len(syms))
	for _, s := range syms {
		results = append(results, object.NewMap(map[string]object.Object{
			"name":            object.NewString(s.Name),
			"detail":          object.NewString(s.Detail),
			"kind":            object.NewInt(int64(s.Kind)),
			"range":           rangeToObject(s.Range),
			"selection_range": rangeToObject(s.SelectionRange),
			"children":        symbolsToList(s.Children),
		}))
	}
	return object.NewList(results)
}

func foldingRangesToList(folds []protocol.FoldingRange) object.Object {
	results := make([]object.Object, 0, len(folds))
	for _, f := range folds {
		results = append(results, object.NewMap(map[string]object.Object{
			"start_line":      object.NewInt(int64(f.StartLine)),
			"start_character": object.NewInt(int64(f.StartCharacter)),
			"end_line":        object.NewInt(int64(f.EndLine)),
			"end_character":   object.NewInt(int64(f.EndCharacter)),
			"kind":            object.NewString(string(f.Kind)),
		}))
	}
	return object.NewList(results)
}

func diagnosticsToList(diags []protocol.Diagnostic) object.Object {
	results := make([]object.Object, 0, len(diags))
	for _, d := range diags {
		results = append(results, object.NewMap(map[string]object.Object{
			"message":  object.NewString(d.Message),
			"severity": object.NewInt(int64(d.Severity)),
			"source":   object.NewString(d.Source),
			"range":    rangeToObject(d.Range),
		}))
	}
	return object.NewList(results)
}
