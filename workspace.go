package lsifq

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/jward/lsifq/internal/config"
	"github.com/jward/lsifq/internal/uris"
)

// ErrNoWorkspace is returned by OpenWorkspace when no folder could be opened.
var ErrNoWorkspace = errors.New("no workspace database opened")

type workspaceEntry struct {
	root string
	db   Database
}

// Workspace routes documents to the database serving the longest root
// that contains them.
type Workspace struct {
	mu      sync.RWMutex
	entries []workspaceEntry
}

// NewWorkspace returns an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{}
}

// Add serves root from db. Each root may be added once.
func (w *Workspace) Add(root string, db Database) error {
	root = strings.TrimSuffix(root, "/")
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range w.entries {
		if e.root == root {
			return fmt.Errorf("workspace %s already added", root)
		}
	}
	w.entries = append(w.entries, workspaceEntry{root: root, db: db})
	// Longest root first, so the first match in Lookup is the closest.
	sort.SliceStable(w.entries, func(i, j int) bool {
		return len(w.entries[i].root) > len(w.entries[j].root)
	})
	return nil
}

// Lookup returns the database and root serving uri.
func (w *Workspace) Lookup(uri string) (Database, string, bool) {
	uri = uris.Normalize(uri)
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, e := range w.entries {
		if uris.HasRoot(uri, e.root) {
			return e.db, e.root, true
		}
	}
	return nil, "", false
}

// Roots lists the served roots, longest first.
func (w *Workspace) Roots() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	roots := make([]string, len(w.entries))
	for i, e := range w.entries {
		roots[i] = e.root
	}
	return roots
}

// Close closes every database.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, e := range w.entries {
		if err := e.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", e.root, err))
		}
	}
	w.entries = nil
	return errors.Join(errs...)
}

// deferredURIs lets a database be opened before its project root, and
// with it the final transform, is known.
type deferredURIs struct {
	t uris.Transformer
}

func (d *deferredURIs) ToDatabase(u string) string {
	if d.t == nil {
		return u
	}
	return d.t.ToDatabase(u)
}

func (d *deferredURIs) FromDatabase(u string) string {
	if d.t == nil {
		return u
	}
	return d.t.FromDatabase(u)
}

// clientRoot is the root clients address folder under.
func clientRoot(f WorkspaceFolder) string {
	root := strings.TrimSuffix(f.Root, "/")
	if f.Scheme == "" {
		return root
	}
	u, err := url.Parse(root)
	if err != nil || u.Scheme == "" {
		return root
	}
	return f.Scheme + root[len(u.Scheme):]
}

// OpenWorkspace opens a database per folder. Each folder's documents are
// served under its root, whatever project root they were indexed under.
// Folders that fail to open are logged and skipped.
func OpenWorkspace(ctx context.Context, folders []WorkspaceFolder, opts ...Option) (*Workspace, error) {
	o := buildOptions(opts)
	w := NewWorkspace()
	for _, f := range folders {
		root := clientRoot(f)
		tr := &deferredURIs{}
		folderOpts := append(append([]Option(nil), opts...),
			WithURITransform(tr),
			WithFormat(f.Format),
			WithVersionTag(f.Version),
		)
		db, err := Open(ctx, f.Database, folderOpts...)
		if err != nil {
			if ctx.Err() != nil {
				w.Close()
				return nil, ctx.Err()
			}
			o.log.Warn("skipping workspace", "root", root, "database", f.Database, "error", err)
			continue
		}
		projectRoot, err := db.ProjectRoot()
		if err != nil {
			db.Close()
			o.log.Warn("skipping workspace", "root", root, "database", f.Database, "error", err)
			continue
		}
		tr.t = uris.NewPrefix(root, projectRoot)
		if err := w.Add(root, db); err != nil {
			db.Close()
			o.log.Warn("skipping workspace", "root", root, "error", err)
			continue
		}
		o.log.Info("workspace opened", "root", root, "database", f.Database, "projectRoot", projectRoot)
	}
	if len(w.Roots()) == 0 {
		return nil, ErrNoWorkspace
	}
	return w, nil
}

// LoadWorkspace opens the workspaces listed in the config file at path.
func LoadWorkspace(ctx context.Context, path string, opts ...Option) (*Workspace, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.MaxChainDepth > 0 {
		opts = append([]Option{WithMaxChainDepth(cfg.MaxChainDepth)}, opts...)
	}
	return OpenWorkspace(ctx, cfg.Workspaces, opts...)
}
