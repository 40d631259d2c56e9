package lsif

import "errors"

var (
	// ErrClosed is returned by queries issued after Close.
	ErrClosed = errors.New("lsif: database is closed")
	// ErrMissingMetaData means the dump does not start with a metaData vertex.
	ErrMissingMetaData = errors.New("lsif: missing metaData vertex")
	// ErrUnsupportedVersion means the dump format version is outside the supported range.
	ErrUnsupportedVersion = errors.New("lsif: unsupported format version")
	// ErrMissingProjectRoot means metaData carries no projectRoot.
	ErrMissingProjectRoot = errors.New("lsif: missing project root")
	// ErrDanglingEdge means an edge names a vertex that does not exist.
	ErrDanglingEdge = errors.New("lsif: edge references unknown vertex")
	// ErrCycle means a next chain loops or exceeds the depth limit.
	ErrCycle = errors.New("lsif: cycle in result set chain")
	// ErrMalformed means an element could not be interpreted.
	ErrMalformed = errors.New("lsif: malformed element")
)
