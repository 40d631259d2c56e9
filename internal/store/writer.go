package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jward/lsifq/internal/compress"
	"github.com/jward/lsifq/internal/lsif"
	"github.com/jward/lsifq/internal/uris"
)

// Writer buffers the elements of a dump in memory and writes them to the
// graph tables in a single transaction on Commit. Vertices are stored as
// compressed records; edges, ranges, documents and monikers are flattened
// into their own tables for the read queries.
//
// Thread safety: the mutex protects the buffers. Commit must not race with
// Add.
type Writer struct {
	store *Store
	reg   *compress.Registry
	mu    sync.Mutex

	Vertices  []VertexRow
	Edges     []EdgeRow
	Ranges    []RangeRow
	Documents []DocumentRow
	Monikers  []MonikerRow
	Contents  map[string][]byte // document id -> text

	meta     *lsif.MetaData
	owner    map[string]string
	vertices map[string]bool
}

// NewWriter creates a Writer that commits into s using the default
// compression schemas.
func NewWriter(s *Store) *Writer {
	return &Writer{
		store:    s,
		reg:      compress.NewDefaultRegistry(),
		Contents: make(map[string][]byte),
		owner:    make(map[string]string),
		vertices: make(map[string]bool),
	}
}

// Add buffers one element. The first element must be the metaData vertex;
// edges must reference vertices added before them.
func (w *Writer) Add(e *lsif.Element) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.meta == nil {
		md, ok := e.AsMetaData()
		if !ok {
			return fmt.Errorf("%w: first element is %s %q", lsif.ErrMissingMetaData, e.Type, e.Label)
		}
		if err := md.Validate(); err != nil {
			return err
		}
		w.meta = md
	}
	if e.IsVertex() {
		return w.addVertex(e)
	}
	return w.addEdge(e)
}

func (w *Writer) addVertex(e *lsif.Element) error {
	if e.Label == lsif.VertexEvent {
		return nil
	}
	value, err := w.encode(e)
	if err != nil {
		return fmt.Errorf("vertex %s: %w", e.ID, err)
	}
	id := string(e.ID)
	w.vertices[id] = true
	w.Vertices = append(w.Vertices, VertexRow{ID: id, Label: e.Label, Value: value})

	switch e.Label {
	case lsif.VertexDocument:
		d, _ := e.AsDocument()
		uri := uris.Normalize(d.URI)
		content, err := lsif.DecodeContents(d.Contents)
		if err != nil {
			return fmt.Errorf("document %s: %w", e.ID, err)
		}
		if content != nil {
			w.Contents[id] = content
		}
		w.Documents = append(w.Documents, DocumentRow{
			ID:         id,
			URI:        uri,
			LanguageID: d.LanguageID,
			Hash:       ContentHash(uri, content),
		})
	case lsif.VertexRange:
		if r, ok := e.AsRange(); ok {
			w.Ranges = append(w.Ranges, RangeRow{
				ID:             id,
				StartLine:      r.Span.Start.Line,
				StartCharacter: r.Span.Start.Character,
				EndLine:        r.Span.End.Line,
				EndCharacter:   r.Span.End.Character,
			})
		}
	case lsif.VertexMoniker:
		m, _ := e.AsMoniker()
		w.Monikers = append(w.Monikers, MonikerRow{
			ID:         id,
			Scheme:     m.Scheme,
			Identifier: m.Identifier,
			Kind:       string(m.Kind),
			Uniqueness: string(m.Unique),
		})
	}
	return nil
}

func (w *Writer) addEdge(e *lsif.Element) error {
	if !w.vertices[string(e.OutV)] {
		return fmt.Errorf("%w: edge %s (%s) from %s", lsif.ErrDanglingEdge, e.ID, e.Label, e.OutV)
	}
	for _, in := range e.Targets() {
		if !w.vertices[string(in)] {
			return fmt.Errorf("%w: edge %s (%s) to %s", lsif.ErrDanglingEdge, e.ID, e.Label, in)
		}
		if e.Label == lsif.EdgeContains {
			w.owner[string(in)] = string(e.OutV)
		}
		w.Edges = append(w.Edges, EdgeRow{
			ID:       string(e.ID),
			Label:    e.Label,
			OutV:     string(e.OutV),
			InV:      string(in),
			Property: e.Property,
			Shard:    string(e.ItemShard()),
		})
	}
	return nil
}

// encode compresses a vertex. Vertices the default schemas cannot cover
// are stored as plain JSON objects.
func (w *Writer) encode(e *lsif.Element) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	schema := compress.SchemaVertex
	if e.Label == lsif.VertexRange {
		schema = compress.SchemaRange
	}
	record, err := w.reg.CompressJSON(schema, m)
	if errors.Is(err, compress.ErrMalformedRecord) {
		return raw, nil
	}
	return record, err
}

// Commit writes every buffered row in one transaction.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.meta == nil {
		return lsif.ErrMissingMetaData
	}
	for i := range w.Ranges {
		w.Ranges[i].BelongsTo = w.owner[w.Ranges[i].ID]
	}
	return w.store.CommitGraph(w)
}
