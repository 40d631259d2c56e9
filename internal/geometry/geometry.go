// Package geometry implements position ordering and range containment over
// LSP positions, and the most-specific range selection used by every backend.
package geometry

import "go.lsp.dev/protocol"

// Compare orders positions line-major, then by character. It returns -1, 0 or 1.
func Compare(a, b protocol.Position) int {
	switch {
	case a.Line < b.Line:
		return -1
	case a.Line > b.Line:
		return 1
	case a.Character < b.Character:
		return -1
	case a.Character > b.Character:
		return 1
	default:
		return 0
	}
}

// ContainsPosition reports whether p lies within r, inclusive at both ends.
func ContainsPosition(r protocol.Range, p protocol.Position) bool {
	return Compare(r.Start, p) <= 0 && Compare(p, r.End) <= 0
}

// ContainsRange reports whether inner is nested in outer. Equal ranges
// contain each other.
func ContainsRange(outer, inner protocol.Range) bool {
	return Compare(outer.Start, inner.Start) <= 0 && Compare(inner.End, outer.End) <= 0
}

// Equal reports whether two ranges cover the same span.
func Equal(a, b protocol.Range) bool {
	return Compare(a.Start, b.Start) == 0 && Compare(a.End, b.End) == 0
}

// MostSpecific scans candidates in order and returns the innermost ones that
// contain p. A candidate replaces the current best only when it is strictly
// nested inside it; candidates with the same span as the best are kept as
// aliases. Candidates that overlap the best without nesting are ignored, so
// the first-seen range wins ties.
func MostSpecific[T any](candidates []T, span func(T) protocol.Range, p protocol.Position) []T {
	var best []T
	var bestSpan protocol.Range
	for _, c := range candidates {
		r := span(c)
		if !ContainsPosition(r, p) {
			continue
		}
		switch {
		case len(best) == 0:
			best = []T{c}
			bestSpan = r
		case Equal(r, bestSpan):
			best = append(best, c)
		case ContainsRange(bestSpan, r):
			best = []T{c}
			bestSpan = r
		}
	}
	return best
}
