// Package lsifq answers code-intelligence queries (definitions,
// references, hover, outlines) from precomputed LSIF indexes. An index is
// served by one of three backends behind the same [Database] contract:
//
//   - a line-delimited or array JSON dump, loaded into memory in one pass;
//   - a graph-format SQLite file holding compressed vertices and edges;
//   - a blob-format SQLite file holding one JSON document per file and
//     build version, plus moniker tables for cross-file lookups.
//
// # Usage
//
// Open picks the backend from the file extension or the format marker
// stored in the database:
//
//	db, err := lsifq.Open(ctx, "index.lsif")
//	if err != nil { ... }
//	defer db.Close()
//
//	locs, err := db.Definitions("file:///work/b.ts", protocol.Position{Line: 1, Character: 1})
//
// Queries that find nothing return an empty result and a nil error. Errors
// are reserved for unreadable indexes ([ErrUnsupportedVersion],
// [ErrMissingProjectRoot]), corrupt records ([IsDecodeError]) and use
// after [Database.Close] ([ErrClosed]).
//
// # URIs
//
// Every URI crossing the contract passes through a [URITransform]. Use
// [PrefixURIs] to serve an index built under one root from another, and
// [SchemeURIs] to expose documents under a virtual scheme.
//
// # Decorators
//
// [Instrument] records per-query Prometheus metrics, and
// [NewTranslatingDatabase] maps positions of edited documents back to
// the indexed snapshot. [Workspace] dispatches across several databases
// by longest root prefix.
package lsifq
