// Package translate maps positions between the indexed snapshot of a
// document and its current, edited text.
package translate

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/sourcegraph/go-diff/diff"
	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/geometry"
)

// Edit replaces Range, expressed in the text as it was before the edit,
// with Text.
type Edit struct {
	Range protocol.Range
	Text  string
}

// end returns where the replacement text ends once applied.
func (e Edit) end() protocol.Position {
	lines := strings.Split(e.Text, "\n")
	last := utf16Len(lines[len(lines)-1])
	if len(lines) == 1 {
		return protocol.Position{Line: e.Range.Start.Line, Character: e.Range.Start.Character + last}
	}
	return protocol.Position{Line: e.Range.Start.Line + uint32(len(lines)-1), Character: last}
}

func utf16Len(s string) uint32 {
	var n int
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return uint32(n)
}

// shift moves p from a text ending a region at from to one ending it at to.
// p must not precede from.
func shift(p, from, to protocol.Position) protocol.Position {
	if p.Line == from.Line {
		return protocol.Position{Line: to.Line, Character: to.Character + p.Character - from.Character}
	}
	return protocol.Position{Line: p.Line - from.Line + to.Line, Character: p.Character}
}

// forward maps a pre-edit position to the post-edit text. Positions
// inside the replaced region do not survive the edit.
func (e Edit) forward(p protocol.Position) (protocol.Position, bool) {
	switch {
	case geometry.Compare(p, e.Range.Start) < 0:
		return p, true
	case geometry.Compare(p, e.Range.End) >= 0:
		return shift(p, e.Range.End, e.end()), true
	default:
		return p, false
	}
}

// backward maps a post-edit position to the pre-edit text. Positions
// inside the inserted text have no indexed counterpart.
func (e Edit) backward(p protocol.Position) (protocol.Position, bool) {
	end := e.end()
	switch {
	case geometry.Compare(p, e.Range.Start) < 0:
		return p, true
	case geometry.Compare(p, end) >= 0:
		return shift(p, end, e.Range.End), true
	default:
		return p, false
	}
}

// Tracker records the edits made to each document since it was indexed.
// It is safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	edits   map[string][]Edit
	removed map[string]bool
}

func NewTracker() *Tracker {
	return &Tracker{edits: map[string][]Edit{}, removed: map[string]bool{}}
}

// Apply records incremental content changes to uri, in the order the
// client sent them.
func (t *Tracker) Apply(uri string, changes ...protocol.TextDocumentContentChangeEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range changes {
		t.edits[uri] = append(t.edits[uri], Edit{Range: c.Range, Text: c.Text})
	}
}

// Reset forgets the edits of uri, after it was saved and re-indexed.
func (t *Tracker) Reset(uri string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.edits, uri)
	delete(t.removed, uri)
}

// Edited reports whether uri has recorded edits or was removed.
func (t *Tracker) Edited(uri string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.edits[uri]) > 0 || t.removed[uri]
}

// ToIndexed maps a position in the current text of uri to the indexed
// text. It reports false when the position lies in edited text.
func (t *Tracker) ToIndexed(uri string, p protocol.Position) (protocol.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.removed[uri] {
		return p, false
	}
	edits := t.edits[uri]
	for i := len(edits) - 1; i >= 0; i-- {
		var ok bool
		if p, ok = edits[i].backward(p); !ok {
			return p, false
		}
	}
	return p, true
}

// ToCurrent maps an indexed position of uri to its current text. It
// reports false when the indexed text at p was replaced.
func (t *Tracker) ToCurrent(uri string, p protocol.Position) (protocol.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.removed[uri] {
		return p, false
	}
	for _, e := range t.edits[uri] {
		var ok bool
		if p, ok = e.forward(p); !ok {
			return p, false
		}
	}
	return p, true
}

// RangeToCurrent maps both ends of an indexed range.
func (t *Tracker) RangeToCurrent(uri string, r protocol.Range) (protocol.Range, bool) {
	start, ok := t.ToCurrent(uri, r.Start)
	if !ok {
		return r, false
	}
	end, ok := t.ToCurrent(uri, r.End)
	if !ok {
		return r, false
	}
	return protocol.Range{Start: start, End: end}, true
}

// FromUnifiedDiff builds a tracker from a diff between the indexed tree
// and the working tree. File paths are resolved against root, a URI.
// Deleted files map nothing; added files are ignored.
func FromUnifiedDiff(root string, patch []byte) (*Tracker, error) {
	files, err := diff.ParseMultiFileDiff(patch)
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}
	t := NewTracker()
	for _, fd := range files {
		if fd.OrigName == "/dev/null" {
			continue
		}
		uri := strings.TrimSuffix(root, "/") + "/" + stripPrefix(fd.OrigName)
		if fd.NewName == "/dev/null" {
			t.removed[uri] = true
			continue
		}
		edits, err := hunkEdits(fd.Hunks)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fd.OrigName, err)
		}
		t.edits[uri] = append(t.edits[uri], edits...)
	}
	return t, nil
}

func stripPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

// hunkEdits turns hunks into whole-line edits. Each edit is expressed in
// the text left by the edits before it.
func hunkEdits(hunks []*diff.Hunk) ([]Edit, error) {
	var out []Edit
	delta := 0
	for _, h := range hunks {
		if h.OrigStartLine < 0 {
			return nil, fmt.Errorf("hunk starts at line %d", h.OrigStartLine)
		}
		line := int(h.OrigStartLine) - 1
		if h.OrigLines == 0 {
			// Pure insertions name the line they follow.
			line++
		}
		var removed int
		var added []string
		flush := func() {
			if removed == 0 && len(added) == 0 {
				return
			}
			start := uint32(line - removed + delta)
			text := ""
			if len(added) > 0 {
				text = strings.Join(added, "\n") + "\n"
			}
			out = append(out, Edit{
				Range: protocol.Range{
					Start: protocol.Position{Line: start},
					End:   protocol.Position{Line: start + uint32(removed)},
				},
				Text: text,
			})
			delta += len(added) - removed
			removed, added = 0, nil
		}
		body := strings.TrimSuffix(string(h.Body), "\n")
		for _, l := range strings.Split(body, "\n") {
			switch {
			case strings.HasPrefix(l, "-"):
				if len(added) > 0 {
					flush()
				}
				removed++
				line++
			case strings.HasPrefix(l, "+"):
				added = append(added, l[1:])
			case strings.HasPrefix(l, `\`):
			default:
				flush()
				line++
			}
		}
		flush()
	}
	return out, nil
}
