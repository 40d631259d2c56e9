package lsifq

import (
	"github.com/jward/lsifq/internal/config"
	"github.com/jward/lsifq/internal/lsif"
)

// Public type aliases for internal types used in the Database API.
// These are Go type aliases (=) and need no conversion.

type DocumentInfo = lsif.DocumentInfo
type WorkspaceFolder = config.Workspace
