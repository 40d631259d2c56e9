package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/graph"
	"github.com/jward/lsifq/internal/lsif"
	"github.com/jward/lsifq/internal/resolve"
	"github.com/jward/lsifq/internal/store"
	"github.com/jward/lsifq/internal/uris"
)

// Build splits a loaded graph into per-document blobs and the moniker
// rows that connect them.
func Build(ctx context.Context, g *graph.Graph) ([]*store.BlobDocument, error) {
	w := resolve.NewWalker(g, 0)
	var out []*store.BlobDocument
	for _, doc := range g.DocumentList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := buildDocument(g, w, doc)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.URI, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Write builds the blobs of g and commits them as a new version of s.
func Write(ctx context.Context, s *store.Store, g *graph.Graph, tag string, log *slog.Logger) (int64, error) {
	docs, err := Build(ctx, g)
	if err != nil {
		return 0, err
	}
	md := g.MetaData()
	meta := map[string]string{
		store.MetaVersion:          md.Version,
		store.MetaProjectRoot:      md.ProjectRoot,
		store.MetaPositionEncoding: md.PositionEncoding,
	}
	version, err := s.CommitVersion(tag, time.Now(), meta, docs)
	if err != nil {
		return 0, err
	}
	if log != nil {
		log.Info("wrote blob version", "tag", tag, "version", version, "documents", len(docs))
	}
	return version, nil
}

type builder struct {
	g    *graph.Graph
	w    *resolve.Walker
	doc  lsif.ID
	blob *Blob
	out  *store.BlobDocument
}

func buildDocument(g *graph.Graph, w *resolve.Walker, doc *lsif.Document) (*store.BlobDocument, error) {
	content, err := lsif.DecodeContents(doc.Contents)
	if err != nil {
		return nil, err
	}
	b := &builder{
		g:   g,
		w:   w,
		doc: doc.ID,
		blob: &Blob{
			Ranges:             map[lsif.ID]*RangeData{},
			ResultSets:         map[lsif.ID]*ResultSetData{},
			Monikers:           map[lsif.ID]*MonikerData{},
			Hovers:             map[lsif.ID]*protocol.Hover{},
			DeclarationResults: map[lsif.ID][]lsif.ID{},
			DefinitionResults:  map[lsif.ID][]lsif.ID{},
			ReferenceResults:   map[lsif.ID]*ReferenceResultData{},
			PartialResults:     map[lsif.ID]bool{},
		},
		out: &store.BlobDocument{URI: uris.Normalize(doc.URI), LanguageID: doc.LanguageID, Content: content},
	}
	for _, id := range g.Contains(doc.ID) {
		v, err := g.Vertex(id)
		if err != nil || v == nil {
			continue
		}
		r, ok := v.AsRange()
		if !ok {
			continue
		}
		if err := b.addRange(r); err != nil {
			return nil, err
		}
	}
	for label, dst := range map[string]*json.RawMessage{
		lsif.EdgeFoldingRange:   &b.blob.FoldingRanges,
		lsif.EdgeDocumentSymbol: &b.blob.DocumentSymbols,
		lsif.EdgeDiagnostic:     &b.blob.Diagnostics,
	} {
		raw, err := w.DocumentPayload(doc.ID, label)
		if err != nil {
			return nil, err
		}
		*dst = raw
	}
	data, err := json.Marshal(b.blob)
	if err != nil {
		return nil, err
	}
	b.out.Blob = data
	return b.out, nil
}

func (b *builder) addRange(r *lsif.Range) error {
	chain, err := b.w.Chain(r.ID)
	if err != nil {
		return err
	}
	if _, ok := b.blob.Ranges[r.ID]; ok {
		return nil
	}
	rd := &RangeData{Start: r.Span.Start, End: r.Span.End, Tag: r.Tag}
	b.blob.Ranges[r.ID] = rd
	b.blob.Order = append(b.blob.Order, r.ID)
	for i, id := range chain {
		node := &rd.ResultSetData
		if i > 0 {
			if _, ok := b.blob.ResultSets[id]; ok {
				// Built from an earlier range, along with the rest of the chain.
				break
			}
			node = &ResultSetData{}
			b.blob.ResultSets[id] = node
		}
		if i+1 < len(chain) {
			node.Next = chain[i+1]
		}
		if err := b.fill(node, id); err != nil {
			return err
		}
	}
	return b.crossRows(r, chain)
}

// fill records the results hanging off one chain vertex.
func (b *builder) fill(node *ResultSetData, id lsif.ID) error {
	first := func(label string) (lsif.ID, error) {
		out, err := b.g.Out(id, label)
		if err != nil || len(out) == 0 {
			return "", err
		}
		return out[0], nil
	}

	if res, err := first(lsif.EdgeDeclaration); err != nil {
		return err
	} else if res != "" {
		ids, partial, err := b.locals(res)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			b.blob.DeclarationResults[res] = ids
			node.DeclarationResult = res
			if partial {
				b.blob.PartialResults[res] = true
			}
		}
	}
	if res, err := first(lsif.EdgeDefinition); err != nil {
		return err
	} else if res != "" {
		ids, partial, err := b.locals(res)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			b.blob.DefinitionResults[res] = ids
			node.DefinitionResult = res
			if partial {
				b.blob.PartialResults[res] = true
			}
		}
	}
	if res, err := first(lsif.EdgeReferences); err != nil {
		return err
	} else if res != "" {
		refs, err := b.references(res)
		if err != nil {
			return err
		}
		if len(refs.Declarations)+len(refs.Definitions)+len(refs.References) > 0 {
			b.blob.ReferenceResults[res] = refs
			node.ReferenceResult = res
		}
	}
	if res, err := first(lsif.EdgeHover); err != nil {
		return err
	} else if res != "" {
		h, err := b.hover(res)
		if err != nil {
			return err
		}
		if h != nil {
			b.blob.Hovers[res] = h
			node.HoverResult = res
		}
	}
	if m, err := first(lsif.EdgeMoniker); err != nil {
		return err
	} else if m != "" {
		node.Moniker = m
		b.addMoniker(m)
	}
	return nil
}

func (b *builder) hover(id lsif.ID) (*protocol.Hover, error) {
	v, err := b.g.Vertex(id)
	if err != nil || v == nil {
		return nil, err
	}
	return lsif.ParseHover(v.Result)
}

func (b *builder) addMoniker(id lsif.ID) {
	if _, ok := b.blob.Monikers[id]; ok {
		return
	}
	v, _ := b.g.Vertex(id)
	if v == nil {
		return
	}
	m, ok := v.AsMoniker()
	if !ok {
		return
	}
	data := &MonikerData{Scheme: m.Scheme, Identifier: m.Identifier, Kind: string(m.Kind), Unique: m.Unique}
	b.blob.Monikers[id] = data
	if attached, _ := b.g.Out(id, lsif.EdgeAttach); len(attached) > 0 {
		data.Attach = attached[0]
		b.addMoniker(attached[0])
	}
}

// locals returns the range targets of a result that live in this
// document, following child results, and whether any target lived
// elsewhere.
func (b *builder) locals(result lsif.ID) ([]lsif.ID, bool, error) {
	refs, err := b.references(result)
	if err != nil {
		return nil, false, err
	}
	ids := append(append(refs.Declarations, refs.Definitions...), refs.References...)
	return dedupIDs(ids), refs.Partial, nil
}

// references classifies the local range targets of a result forest.
// Targets owned by other documents only mark the result partial.
func (b *builder) references(result lsif.ID) (*ReferenceResultData, error) {
	out := &ReferenceResultData{}
	visited := map[lsif.ID]bool{}
	var walk func(id lsif.ID) error
	walk = func(id lsif.ID) error {
		if visited[id] {
			return nil
		}
		visited[id] = true
		targets, err := b.w.Targets(id)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if t.Kind == lsif.TargetReferenceResult {
				if err := walk(t.RangeID); err != nil {
					return err
				}
				continue
			}
			if t.RangeID == "" {
				continue
			}
			if b.g.Owner(t.RangeID) != b.doc {
				out.Partial = true
				continue
			}
			switch t.Kind {
			case lsif.TargetDeclaration:
				out.Declarations = append(out.Declarations, t.RangeID)
			case lsif.TargetDefinition:
				out.Definitions = append(out.Definitions, t.RangeID)
			default:
				out.References = append(out.References, t.RangeID)
			}
		}
		return nil
	}
	if err := walk(result); err != nil {
		return nil, err
	}
	out.Declarations = dedupIDs(out.Declarations)
	out.Definitions = dedupIDs(out.Definitions)
	out.References = dedupIDs(out.References)
	return out, nil
}

// crossRows indexes a range under the moniker of its chain.
func (b *builder) crossRows(r *lsif.Range, chain []lsif.ID) error {
	key := crossMoniker(chain, b.blob)
	if key == nil {
		return nil
	}
	row := store.CrossRow{
		Scheme:         key.Scheme,
		Identifier:     key.Identifier,
		StartLine:      r.Span.Start.Line,
		StartCharacter: r.Span.Start.Character,
		EndLine:        r.Span.End.Line,
		EndCharacter:   r.Span.End.Character,
	}
	switch {
	case r.Tag != nil && r.Tag.Type == lsif.TagDefinition:
		row.Kind = store.RefDefinition
		b.out.Defs = append(b.out.Defs, row)
	case r.Tag != nil && r.Tag.Type == lsif.TagDeclaration:
		row.Kind = store.RefDeclaration
		b.out.Decls = append(b.out.Decls, row)
	default:
		row.Kind = store.RefReference
	}
	b.out.Refs = append(b.out.Refs, row)

	if !r.Tag.IsSymbol() {
		return nil
	}
	for _, id := range chain {
		node := b.blob.node(id)
		if node == nil || node.HoverResult == "" {
			continue
		}
		content, err := json.Marshal(b.blob.Hovers[node.HoverResult])
		if err != nil {
			return err
		}
		b.out.Hovers = append(b.out.Hovers, store.HoverRow{Scheme: key.Scheme, Identifier: key.Identifier, Content: string(content)})
		break
	}
	return nil
}

// crossMoniker returns the moniker a chain is indexed under: the moniker
// nearest the end of the chain, or the moniker it is attached to when that
// one is only unique within its document. Chains without a cross-document
// moniker return nil.
func crossMoniker(chain []lsif.ID, blob *Blob) *MonikerData {
	for i := len(chain) - 1; i >= 0; i-- {
		node := blob.node(chain[i])
		if node == nil || node.Moniker == "" {
			continue
		}
		seen := map[lsif.ID]bool{}
		for id := node.Moniker; id != "" && !seen[id]; {
			seen[id] = true
			m := blob.Monikers[id]
			if m == nil {
				return nil
			}
			if m.Unique != lsif.UniqueDocument {
				return m
			}
			id = m.Attach
		}
		return nil
	}
	return nil
}

func dedupIDs(ids []lsif.ID) []lsif.ID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[lsif.ID]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
