package main

import (
	"fmt"

	"go.lsp.dev/protocol"

	"github.com/jward/lsifq"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLILocation is a JSON-friendly location.
type CLILocation struct {
	URI       string `json:"uri"`
	StartLine uint32 `json:"start_line"`
	StartCol  uint32 `json:"start_col"`
	EndLine   uint32 `json:"end_line"`
	EndCol    uint32 `json:"end_col"`
}

// CLIHover is a JSON-friendly hover. Range is omitted when unknown.
type CLIHover struct {
	Kind     string       `json:"kind"`
	Contents string       `json:"contents"`
	Range    *CLILocation `json:"range,omitempty"`
}

// CLISymbol is a JSON-friendly document symbol.
type CLISymbol struct {
	Name      string      `json:"name"`
	Detail    string      `json:"detail,omitempty"`
	Kind      string      `json:"kind"`
	StartLine uint32      `json:"start_line"`
	StartCol  uint32      `json:"start_col"`
	EndLine   uint32      `json:"end_line"`
	EndCol    uint32      `json:"end_col"`
	Children  []CLISymbol `json:"children,omitempty"`
}

// CLIFoldingRange is a JSON-friendly folding range.
type CLIFoldingRange struct {
	StartLine uint32 `json:"start_line"`
	EndLine   uint32 `json:"end_line"`
	Kind      string `json:"kind,omitempty"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	Severity  string `json:"severity,omitempty"`
	Code      string `json:"code,omitempty"`
	Source    string `json:"source,omitempty"`
	Message   string `json:"message"`
	StartLine uint32 `json:"start_line"`
	StartCol  uint32 `json:"start_col"`
	EndLine   uint32 `json:"end_line"`
	EndCol    uint32 `json:"end_col"`
}

// CLIDocument is a JSON-friendly indexed document.
type CLIDocument struct {
	URI        string `json:"uri"`
	LanguageID string `json:"language_id,omitempty"`
	Hash       string `json:"hash,omitempty"`
}

// CLIWorkspace describes one opened index.
type CLIWorkspace struct {
	Root      string `json:"root"`
	Documents int    `json:"documents"`
}

func locationToCLI(l protocol.Location) CLILocation {
	return CLILocation{
		URI:       string(l.URI),
		StartLine: l.Range.Start.Line,
		StartCol:  l.Range.Start.Character,
		EndLine:   l.Range.End.Line,
		EndCol:    l.Range.End.Character,
	}
}

func locationsToCLI(locs []protocol.Location) []CLILocation {
	out := make([]CLILocation, len(locs))
	for i, l := range locs {
		out[i] = locationToCLI(l)
	}
	return out
}

func hoverToCLI(uri string, h *protocol.Hover) *CLIHover {
	if h == nil {
		return nil
	}
	out := &CLIHover{Kind: string(h.Contents.Kind), Contents: h.Contents.Value}
	if h.Range != nil {
		loc := locationToCLI(protocol.Location{URI: protocol.DocumentURI(uri), Range: *h.Range})
		out.Range = &loc
	}
	return out
}

func symbolsToCLI(syms []protocol.DocumentSymbol) []CLISymbol {
	if len(syms) == 0 {
		return nil
	}
	out := make([]CLISymbol, len(syms))
	for i, s := range syms {
		out[i] = CLISymbol{
			Name:      s.Name,
			Detail:    s.Detail,
			Kind:      s.Kind.String(),
			StartLine: s.Range.Start.Line,
			StartCol:  s.Range.Start.Character,
			EndLine:   s.Range.End.Line,
			EndCol:    s.Range.End.Character,
			Children:  symbolsToCLI(s.Children),
		}
	}
	return out
}

func foldingRangesToCLI(folds []protocol.FoldingRange) []CLIFoldingRange {
	out := make([]CLIFoldingRange, len(folds))
	for i, f := range folds {
		out[i] = CLIFoldingRange{StartLine: f.StartLine, EndLine: f.EndLine, Kind: string(f.Kind)}
	}
	return out
}

func diagnosticsToCLI(diags []protocol.Diagnostic) []CLIDiagnostic {
	out := make([]CLIDiagnostic, len(diags))
	for i, d := range diags {
		out[i] = CLIDiagnostic{
			Source:    d.Source,
			Message:   d.Message,
			StartLine: d.Range.Start.Line,
			StartCol:  d.Range.Start.Character,
			EndLine:   d.Range.End.Line,
			EndCol:    d.Range.End.Character,
		}
		if d.Severity != 0 {
			out[i].Severity = d.Severity.String()
		}
		if d.Code != nil {
			out[i].Code = fmt.Sprint(d.Code)
		}
	}
	return out
}

func documentsToCLI(docs []lsifq.DocumentInfo) []CLIDocument {
	out := make([]CLIDocument, len(docs))
	for i, d := range docs {
		out[i] = CLIDocument{URI: d.URI, LanguageID: d.LanguageID, Hash: d.Hash}
	}
	return out
}
