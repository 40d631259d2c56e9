package lsifq

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/lsiftest"
)

type stubDB struct {
	Database
	name     string
	closeErr error
	closed   bool
}

func (s *stubDB) Close() error {
	s.closed = true
	return s.closeErr
}

// =============================================================================
// Dispatch
// =============================================================================

func TestWorkspace_LongestRootWins(t *testing.T) {
	t.Parallel()
	w := NewWorkspace()
	outer := &stubDB{name: "outer"}
	inner := &stubDB{name: "inner"}
	require.NoError(t, w.Add("file:///work", outer))
	require.NoError(t, w.Add("file:///work/sub/", inner))

	tests := []struct {
		uri  string
		want *stubDB
		root string
	}{
		{"file:///work/a.ts", outer, "file:///work"},
		{"file:///work/sub/b.ts", inner, "file:///work/sub"},
		{"file:///work/subway/c.ts", outer, "file:///work"},
		{"file:///work/sub", inner, "file:///work/sub"},
	}
	for _, tt := range tests {
		db, root, ok := w.Lookup(tt.uri)
		require.True(t, ok, tt.uri)
		assert.Same(t, tt.want, db, tt.uri)
		assert.Equal(t, tt.root, root, tt.uri)
	}

	_, _, ok := w.Lookup("file:///workshop/a.ts")
	assert.False(t, ok)
	assert.Equal(t, []string{"file:///work/sub", "file:///work"}, w.Roots())
}

func TestWorkspace_DuplicateRoot(t *testing.T) {
	t.Parallel()
	w := NewWorkspace()
	require.NoError(t, w.Add("file:///work", &stubDB{}))
	assert.Error(t, w.Add("file:///work/", &stubDB{}))
}

func TestWorkspace_CloseJoinsErrors(t *testing.T) {
	t.Parallel()
	w := NewWorkspace()
	boom := errors.New("boom")
	a := &stubDB{closeErr: boom}
	b := &stubDB{}
	require.NoError(t, w.Add("file:///a", a))
	require.NoError(t, w.Add("file:///b", b))

	err := w.Close()
	assert.ErrorIs(t, err, boom)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Empty(t, w.Roots())
}

// =============================================================================
// Opening
// =============================================================================

func TestOpenWorkspace_RemapsRoots(t *testing.T) {
	t.Parallel()
	paths := fixtures(t)
	pair := lsiftest.MonikerPair().WriteFile(t, "pair.lsif")

	w, err := OpenWorkspace(context.Background(), []WorkspaceFolder{
		{Root: "file:///home/me/proj", Database: paths[FormatGraph]},
		{Root: "file:///home/me/lib", Database: pair, Scheme: "lsif"},
		{Root: "file:///home/me/broken", Database: filepath.Join(t.TempDir(), "missing.lsif")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	assert.ElementsMatch(t, []string{"file:///home/me/proj", "lsif:///home/me/lib"}, w.Roots())

	db, _, ok := w.Lookup("file:///home/me/proj/b.ts")
	require.True(t, ok)
	locs, err := db.Definitions("file:///home/me/proj/b.ts", at(1, 1))
	require.NoError(t, err)
	assert.Equal(t, []protocol.Location{{URI: "file:///home/me/proj/a.ts", Range: span(5, 0, 5, 3)}}, locs)

	root, err := db.ProjectRoot()
	require.NoError(t, err)
	assert.Equal(t, "file:///home/me/proj", root)

	db, _, ok = w.Lookup("lsif:///home/me/lib/lib.ts")
	require.True(t, ok)
	locs, err = db.Definitions("lsif:///home/me/lib/lib.ts", at(2, 10))
	require.NoError(t, err)
	assert.Equal(t, []protocol.Location{{URI: "lsif:///home/me/lib/lib.ts", Range: span(2, 9, 2, 12)}}, locs)

	_, _, ok = w.Lookup("file:///home/me/broken/x.ts")
	assert.False(t, ok)
}

func TestOpenWorkspace_NothingOpened(t *testing.T) {
	t.Parallel()
	_, err := OpenWorkspace(context.Background(), []WorkspaceFolder{
		{Root: "file:///x", Database: filepath.Join(t.TempDir(), "missing.lsif")},
	})
	assert.ErrorIs(t, err, ErrNoWorkspace)
}

func TestLoadWorkspace(t *testing.T) {
	t.Parallel()
	paths := fixtures(t)
	dir := filepath.Dir(paths[FormatBlob])
	cfg := "maxChainDepth: 16\nworkspaces:\n  - root: file:///srv/app\n    database: blob.db\n    version: v1\n"
	cfgPath := filepath.Join(dir, "lsifq.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	w, err := LoadWorkspace(context.Background(), cfgPath)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	db, root, ok := w.Lookup("file:///srv/app/b.ts")
	require.True(t, ok)
	assert.Equal(t, "file:///srv/app", root)
	h, err := db.Hover("file:///srv/app/b.ts", at(1, 1))
	require.NoError(t, err)
	require.NotNil(t, h)
}
