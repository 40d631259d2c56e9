package resolve

import (
	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/uris"
)

// LocationKey identifies a location by content rather than by vertex id.
type LocationKey struct {
	URI   protocol.DocumentURI
	Range protocol.Range
}

// KeyOf returns the content key of loc.
func KeyOf(loc protocol.Location) LocationKey {
	return LocationKey{URI: loc.URI, Range: loc.Range}
}

// Dedup drops locations whose (uri, range) was already seen, keeping order.
func Dedup(locs []protocol.Location) []protocol.Location {
	if len(locs) < 2 {
		return locs
	}
	seen := make(map[LocationKey]bool, len(locs))
	out := locs[:0:0]
	for _, l := range locs {
		k := KeyOf(l)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, l)
	}
	return out
}

// ExportLocations maps database URIs to client URIs.
func ExportLocations(locs []protocol.Location, tr uris.Transformer) []protocol.Location {
	for i := range locs {
		locs[i].URI = protocol.DocumentURI(tr.FromDatabase(string(locs[i].URI)))
	}
	return locs
}
