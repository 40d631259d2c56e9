package lsifq

import (
	"errors"

	"github.com/jward/lsifq/internal/blob"
	"github.com/jward/lsifq/internal/compress"
	"github.com/jward/lsifq/internal/lsif"
	"github.com/jward/lsifq/internal/store"
)

var (
	// ErrClosed is returned by every query on a closed Database.
	ErrClosed = lsif.ErrClosed

	// Load failures.
	ErrMissingMetaData    = lsif.ErrMissingMetaData
	ErrUnsupportedVersion = lsif.ErrUnsupportedVersion
	ErrMissingProjectRoot = lsif.ErrMissingProjectRoot
	ErrDanglingEdge       = lsif.ErrDanglingEdge
	ErrUnknownFormat      = store.ErrUnknownFormat
	ErrUnknownVersion     = blob.ErrUnknownVersion

	// Decode failures, scoped to the query that hit them.
	ErrCycle           = lsif.ErrCycle
	ErrMalformed       = lsif.ErrMalformed
	ErrUnknownSchema   = compress.ErrUnknownSchema
	ErrUnknownKind     = compress.ErrUnknownKind
	ErrMalformedRecord = compress.ErrMalformedRecord
)

// IsDecodeError reports whether err comes from a corrupt record or chain.
// The database that returned it stays usable for other queries.
func IsDecodeError(err error) bool {
	for _, target := range []error{ErrCycle, ErrMalformed, ErrUnknownSchema, ErrUnknownKind, ErrMalformedRecord} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
