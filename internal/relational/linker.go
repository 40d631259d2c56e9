package relational

import (
	"sort"

	"github.com/jward/lsifq/internal/lsif"
	"github.com/jward/lsifq/internal/resolve"
	"github.com/jward/lsifq/internal/store"
)

// Linker connects a local chain to the chains of symbols carrying an
// equivalent moniker elsewhere in the database.
type Linker struct {
	src    *Source
	walker *resolve.Walker
}

// NewLinker returns a Linker walking chains with w.
func NewLinker(src *Source, w *resolve.Walker) *Linker {
	return &Linker{src: src, walker: w}
}

type match struct {
	moniker *store.MonikerRow
	rank    int
}

// Linked implements resolve.Linker. The moniker closest to resultIndex is
// expanded through attach edges; every other moniker sharing a scheme and
// identifier with the expansion contributes the chain of its owner. Chains
// are ordered by descending uniqueness of the matched moniker, then by scan
// order.
func (l *Linker) Linked(chain []lsif.ID, resultIndex int) ([][]lsif.ID, error) {
	start, err := l.closestMoniker(chain, resultIndex)
	if err != nil || start == "" {
		return nil, err
	}
	closure, err := l.attachClosure(start)
	if err != nil {
		return nil, err
	}
	inClosure := make(map[string]bool, len(closure))
	for _, m := range closure {
		inClosure[m.ID] = true
	}

	var matches []match
	seen := map[string]bool{}
	for _, m := range closure {
		if lsif.Uniqueness(m.Uniqueness) == lsif.UniqueDocument {
			continue
		}
		rows, err := l.src.store.MonikersByKey(m.Scheme, m.Identifier)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if inClosure[r.ID] || seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			matches = append(matches, match{moniker: r, rank: lsif.Uniqueness(r.Uniqueness).Rank()})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].rank > matches[j].rank })

	local := make(map[lsif.ID]bool, len(chain))
	for _, id := range chain {
		local[id] = true
	}
	var out [][]lsif.ID
	for _, m := range matches {
		owners, err := l.owners(lsif.ID(m.moniker.ID))
		if err != nil {
			return nil, err
		}
		for _, owner := range owners {
			if local[owner] {
				continue
			}
			c, err := l.walker.Chain(owner)
			if err != nil {
				return nil, err
			}
			for _, id := range c {
				local[id] = true
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// closestMoniker searches the chain backwards from resultIndex (the end of
// the chain when -1), then forwards, for the first vertex with a moniker.
func (l *Linker) closestMoniker(chain []lsif.ID, resultIndex int) (lsif.ID, error) {
	if resultIndex < 0 || resultIndex >= len(chain) {
		resultIndex = len(chain) - 1
	}
	order := make([]int, 0, len(chain))
	for i := resultIndex; i >= 0; i-- {
		order = append(order, i)
	}
	for i := resultIndex + 1; i < len(chain); i++ {
		order = append(order, i)
	}
	for _, i := range order {
		ids, err := l.src.Out(chain[i], lsif.EdgeMoniker)
		if err != nil {
			return "", err
		}
		if len(ids) > 0 {
			return ids[0], nil
		}
	}
	return "", nil
}

// attachClosure returns every moniker reachable from start through attach
// edges in either direction, start first.
func (l *Linker) attachClosure(start lsif.ID) ([]*store.MonikerRow, error) {
	var out []*store.MonikerRow
	seen := map[lsif.ID]bool{start: true}
	queue := []lsif.ID{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		row, err := l.src.store.Moniker(string(id))
		if err != nil {
			return nil, err
		}
		if row != nil {
			out = append(out, row)
		}
		fwd, err := l.src.Out(id, lsif.EdgeAttach)
		if err != nil {
			return nil, err
		}
		back, err := l.src.In(id, lsif.EdgeAttach)
		if err != nil {
			return nil, err
		}
		for _, next := range append(fwd, back...) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return out, nil
}

// owners returns the vertices a moniker is attached to, looking through
// attach edges when the moniker hangs off another moniker.
func (l *Linker) owners(moniker lsif.ID) ([]lsif.ID, error) {
	direct, err := l.src.In(moniker, lsif.EdgeMoniker)
	if err != nil || len(direct) > 0 {
		return direct, err
	}
	var out []lsif.ID
	attached, err := l.src.In(moniker, lsif.EdgeAttach)
	if err != nil {
		return nil, err
	}
	for _, m := range attached {
		ids, err := l.src.In(m, lsif.EdgeMoniker)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	return out, nil
}

var _ resolve.Linker = (*Linker)(nil)
