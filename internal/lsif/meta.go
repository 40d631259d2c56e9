package lsif

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// MinVersion is the oldest dump format accepted.
const MinVersion = "0.4.0"

// CheckVersion validates a dump's format version. Versions older than
// MinVersion and any later major version are rejected.
func CheckVersion(version string) error {
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
	if semver.Compare(v, "v"+MinVersion) < 0 || semver.Major(v) != "v0" {
		return fmt.Errorf("%w: %s (need >= %s)", ErrUnsupportedVersion, version, MinVersion)
	}
	return nil
}

// Validate checks the fields every database requires of its metaData.
func (m *MetaData) Validate() error {
	if err := CheckVersion(m.Version); err != nil {
		return err
	}
	if m.ProjectRoot == "" {
		return ErrMissingProjectRoot
	}
	return nil
}

// Uniqueness is the scope in which a moniker identifier is unique.
type Uniqueness string

const (
	UniqueDocument Uniqueness = "document"
	UniqueProject  Uniqueness = "project"
	UniqueGroup    Uniqueness = "group"
	UniqueScheme   Uniqueness = "scheme"
	UniqueGlobal   Uniqueness = "global"
)

// Rank orders uniqueness levels from document (0) to global (4). Unknown
// values rank below document.
func (u Uniqueness) Rank() int {
	switch u {
	case UniqueDocument:
		return 0
	case UniqueProject:
		return 1
	case UniqueGroup:
		return 2
	case UniqueScheme:
		return 3
	case UniqueGlobal:
		return 4
	default:
		return -1
	}
}

// CrossDocument reports whether monikers of this uniqueness can match
// symbols in other documents.
func (u Uniqueness) CrossDocument() bool {
	return u.Rank() > UniqueDocument.Rank()
}
