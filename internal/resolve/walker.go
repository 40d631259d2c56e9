package resolve

import (
	"encoding/json"
	"fmt"

	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/lsif"
)

// DefaultMaxChainDepth bounds next chains.
const DefaultMaxChainDepth = 1024

// Walker follows result chains over a Source.
type Walker struct {
	src      Source
	maxDepth int
}

// NewWalker returns a walker over src. maxDepth <= 0 selects DefaultMaxChainDepth.
func NewWalker(src Source, maxDepth int) *Walker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxChainDepth
	}
	return &Walker{src: src, maxDepth: maxDepth}
}

// Chain returns start followed by each vertex reached through next or
// refersTo edges. Loops and chains longer than the depth bound fail with
// lsif.ErrCycle.
func (w *Walker) Chain(start lsif.ID) ([]lsif.ID, error) {
	chain := []lsif.ID{start}
	seen := map[lsif.ID]bool{start: true}
	for cur := start; ; {
		next, err := w.next(cur)
		if err != nil {
			return nil, err
		}
		if next == "" {
			return chain, nil
		}
		if seen[next] {
			return nil, fmt.Errorf("%w: vertex %s revisited from %s", lsif.ErrCycle, next, start)
		}
		if len(chain) >= w.maxDepth {
			return nil, fmt.Errorf("%w: chain from %s exceeds %d vertices", lsif.ErrCycle, start, w.maxDepth)
		}
		seen[next] = true
		chain = append(chain, next)
		cur = next
	}
}

func (w *Walker) next(id lsif.ID) (lsif.ID, error) {
	for _, label := range []string{lsif.EdgeNext, lsif.EdgeRefersTo} {
		out, err := w.src.Out(id, label)
		if err != nil {
			return "", fmt.Errorf("next of %s: %w", id, err)
		}
		if len(out) > 0 {
			return out[0], nil
		}
	}
	return "", nil
}

// Result returns the first result vertex on chain reached through label,
// and the chain index that carried it. A miss returns ("", -1, nil).
func (w *Walker) Result(chain []lsif.ID, label string) (lsif.ID, int, error) {
	for i, id := range chain {
		out, err := w.src.Out(id, label)
		if err != nil {
			return "", -1, fmt.Errorf("%s of %s: %w", label, id, err)
		}
		if len(out) > 0 {
			return out[0], i, nil
		}
	}
	return "", -1, nil
}

// Targets lists the entries of a result vertex. Inline result fields win;
// otherwise item edges are classified by their property, or by the result
// label when the property is absent.
func (w *Walker) Targets(result lsif.ID) ([]lsif.Target, error) {
	v, err := w.src.Vertex(result)
	if err != nil {
		return nil, fmt.Errorf("result %s: %w", result, err)
	}
	if v == nil {
		return nil, nil
	}
	if v.HasInlineResults() {
		return v.InlineTargets()
	}
	items, err := w.src.Items(result)
	if err != nil {
		return nil, fmt.Errorf("items of %s: %w", result, err)
	}
	targets := make([]lsif.Target, 0, len(items))
	for _, it := range items {
		kind, ok := lsif.TargetKindForProperty(it.Property)
		if !ok {
			kind = defaultKind(v.Label)
		}
		targets = append(targets, lsif.Target{Kind: kind, RangeID: it.Target})
	}
	return targets, nil
}

func defaultKind(label string) lsif.TargetKind {
	switch label {
	case lsif.VertexDeclarationResult:
		return lsif.TargetDeclaration
	case lsif.VertexReferenceResult:
		return lsif.TargetReference
	default:
		return lsif.TargetDefinition
	}
}

// Locations materializes a declaration, definition, type definition or
// implementation result. Child results are followed once; range targets
// are emitted once per range id.
func (w *Walker) Locations(result lsif.ID) ([]protocol.Location, error) {
	c := newCollector(w.src)
	visited := map[lsif.ID]bool{}
	var walk func(id lsif.ID) error
	walk = func(id lsif.ID) error {
		if visited[id] {
			return nil
		}
		visited[id] = true
		targets, err := w.Targets(id)
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
			if err := c.add(t); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(result); err != nil {
		return nil, err
	}
	return c.locs, nil
}

// References materializes a reference result forest. Declarations and
// definitions are included only when includeDeclaration is set. Child
// results are visited after the direct entries of their parent.
func (w *Walker) References(result lsif.ID, includeDeclaration bool) ([]protocol.Location, error) {
	c := newCollector(w.src)
	visited := map[lsif.ID]bool{}
	var walk func(id lsif.ID) error
	walk = func(id lsif.ID) error {
		if visited[id] {
			return nil
		}
		visited[id] = true
		targets, err := w.Targets(id)
		if err != nil {
			return err
		}
		var children []lsif.ID
		for _, t := range targets {
			switch t.Kind {
			case lsif.TargetReferenceResult:
				children = append(children, t.RangeID)
			case lsif.TargetDeclaration, lsif.TargetDefinition:
				if !includeDeclaration {
					continue
				}
				if err := c.add(t); err != nil {
					return err
				}
			default:
				if err := c.add(t); err != nil {
					return err
				}
			}
		}
		for _, child := range children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(result); err != nil {
		return nil, err
	}
	return c.locs, nil
}

// Hover returns the hover on chain. When the chain carries none, the hover
// of its definition targets is used, since older indexers attach hovers to
// declarations only. The returned hover's Range is nil unless the payload
// set one.
func (w *Walker) Hover(chain []lsif.ID) (*protocol.Hover, error) {
	h, err := w.hoverOn(chain)
	if err != nil || h != nil {
		return h, err
	}
	def, _, err := w.Result(chain, lsif.EdgeDefinition)
	if err != nil || def == "" {
		return nil, err
	}
	targets, err := w.Targets(def)
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		if t.RangeID == "" || t.Kind == lsif.TargetReferenceResult || t.RangeID == chain[0] {
			continue
		}
		defChain, err := w.Chain(t.RangeID)
		if err != nil {
			return nil, err
		}
		h, err := w.hoverOn(defChain)
		if err != nil || h != nil {
			if h != nil {
				h.Range = nil
			}
			return h, err
		}
	}
	return nil, nil
}

func (w *Walker) hoverOn(chain []lsif.ID) (*protocol.Hover, error) {
	id, _, err := w.Result(chain, lsif.EdgeHover)
	if err != nil || id == "" {
		return nil, err
	}
	v, err := w.src.Vertex(id)
	if err != nil || v == nil {
		return nil, err
	}
	h, err := lsif.ParseHover(v.Result)
	if err != nil {
		return nil, fmt.Errorf("hover %s: %w", id, err)
	}
	return h, nil
}

// DocumentPayload returns the raw result of the first result vertex
// reached from doc through label.
func (w *Walker) DocumentPayload(doc lsif.ID, label string) (json.RawMessage, error) {
	out, err := w.src.Out(doc, label)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	v, err := w.src.Vertex(out[0])
	if err != nil || v == nil {
		return nil, err
	}
	return v.Result, nil
}

// collector accumulates locations, emitting each range id and each inline
// location once.
type collector struct {
	src    Source
	ranges map[lsif.ID]bool
	inline map[LocationKey]bool
	locs   []protocol.Location
}

func newCollector(src Source) *collector {
	return &collector{src: src, ranges: map[lsif.ID]bool{}, inline: map[LocationKey]bool{}}
}

func (c *collector) add(t lsif.Target) error {
	if t.Location != nil {
		key := KeyOf(*t.Location)
		if c.inline[key] {
			return nil
		}
		c.inline[key] = true
		c.locs = append(c.locs, *t.Location)
		return nil
	}
	if t.RangeID == "" || c.ranges[t.RangeID] {
		return nil
	}
	c.ranges[t.RangeID] = true
	loc, err := c.src.Location(t.RangeID)
	if err != nil {
		return fmt.Errorf("location of range %s: %w", t.RangeID, err)
	}
	if loc != nil {
		c.locs = append(c.locs, *loc)
	}
	return nil
}
