package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatLocationsText formats locations as "uri:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.URI, loc.StartLine, loc.StartCol)
	}
}

func formatHoverText(w io.Writer, h *CLIHover) {
	if h.Range != nil {
		fmt.Fprintf(w, "%d:%d-%d:%d\n\n", h.Range.StartLine, h.Range.StartCol, h.Range.EndLine, h.Range.EndCol)
	}
	fmt.Fprintln(w, h.Contents)
}

// formatSymbolsText prints the outline indented by depth.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tLINE\tCOL")
	var walk func([]CLISymbol, int)
	walk = func(syms []CLISymbol, depth int) {
		for _, s := range syms {
			fmt.Fprintf(tw, "%s%s\t%s\t%d\t%d\n", strings.Repeat("  ", depth), s.Name, s.Kind, s.StartLine, s.StartCol)
			walk(s.Children, depth+1)
		}
	}
	walk(syms, 0)
	tw.Flush()
}

func formatFoldingText(w io.Writer, folds []CLIFoldingRange) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tKIND")
	for _, f := range folds {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", f.StartLine, f.EndLine, f.Kind)
	}
	tw.Flush()
}

func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%d:%d: %s: %s\n", d.StartLine, d.StartCol, strings.ToLower(d.Severity), d.Message)
	}
}

func formatDocumentsText(w io.Writer, docs []CLIDocument) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "URI\tLANGUAGE")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\n", d.URI, d.LanguageID)
	}
	tw.Flush()
}

func formatWorkspacesText(w io.Writer, infos []CLIWorkspace) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOT\tDOCUMENTS")
	for _, i := range infos {
		fmt.Fprintf(tw, "%s\t%d\n", i.Root, i.Documents)
	}
	tw.Flush()
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case *CLIHover:
		if v != nil {
			formatHoverText(w, v)
		}
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []CLIFoldingRange:
		formatFoldingText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case []CLIDocument:
		formatDocumentsText(w, v)
	case []CLIWorkspace:
		formatWorkspacesText(w, v)
	case string:
		fmt.Fprint(w, v)
	case nil:
		// No output for a miss.
	default:
		// Script results have no fixed shape.
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

// outputResult writes result to the app's stdout in the selected format.
func (a *app) outputResult(result CLIResult) error {
	if a.format == "text" {
		return outputResultText(a.out, result)
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func (a *app) outputError(command string, err error) error {
	a.errorHandled = true
	if a.format == "text" {
		fmt.Fprintf(a.errOut, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// countOf returns a pointer to n for the total_count field.
func countOf(n int) *int {
	return &n
}
