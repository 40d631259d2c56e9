// Package resolve walks result chains over any graph source: it follows
// next edges to the vertex carrying a result, materializes locations,
// resolves reference forests and builds document symbol trees. Backends
// supply the graph through Source and position lookup through Locator.
package resolve

import (
	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/lsif"
)

// Item is one target of an item edge.
type Item struct {
	Target   lsif.ID
	Property string
	Shard    lsif.ID
}

// Source is read access to a loaded graph. Lookups of unknown ids return
// zero values and a nil error.
type Source interface {
	// Vertex returns the vertex with the given id.
	Vertex(id lsif.ID) (*lsif.Element, error)
	// Out returns the in-vertices of edges labelled label leaving id, in
	// edge order.
	Out(id lsif.ID, label string) ([]lsif.ID, error)
	// Items returns the item edge targets leaving a result vertex.
	Items(id lsif.ID) ([]Item, error)
	// Location returns the database URI and span of a range.
	Location(rangeID lsif.ID) (*protocol.Location, error)
}

// Locator resolves documents and position candidates.
type Locator interface {
	// Documents returns every document vertex with the given database URI.
	Documents(uri string) ([]lsif.ID, error)
	// RangesAt returns the ranges of the given documents that contain pos.
	RangesAt(docs []lsif.ID, pos protocol.Position) ([]*lsif.Range, error)
}

// Linker supplies chains equivalent to a local one, such as chains reached
// through matching monikers. resultIndex is the chain position that
// carried the requested result, or -1.
type Linker interface {
	Linked(chain []lsif.ID, resultIndex int) ([][]lsif.ID, error)
}
