package relational

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/jward/lsifq/internal/compress"
	"github.com/jward/lsifq/internal/graph"
	"github.com/jward/lsifq/internal/lsif"
	"github.com/jward/lsifq/internal/lsiftest"
	"github.com/jward/lsifq/internal/resolve"
	"github.com/jward/lsifq/internal/store"
	"github.com/jward/lsifq/internal/uris"
)

// writeDB commits d into a new graph-format file. mutate, when set, runs
// against the writable store before it is closed.
func writeDB(t *testing.T, d *lsiftest.Dump, mutate func(*store.Store)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.db")
	s, err := store.NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(store.FormatGraph))
	w := store.NewWriter(s)
	for _, e := range d.Elements {
		require.NoError(t, w.Add(e))
	}
	require.NoError(t, w.Commit())
	if mutate != nil {
		mutate(s)
	}
	require.NoError(t, s.Close())
	return path
}

func openDB(t *testing.T, d *lsiftest.Dump, opts resolve.Options) *Database {
	t.Helper()
	db, err := Open(context.Background(), writeDB(t, d, nil), opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func at(line, char uint32) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

func rng(sl, sc, el, ec uint32) protocol.Range {
	return protocol.Range{Start: at(sl, sc), End: at(el, ec)}
}

const (
	aTS   = lsiftest.Root + "/a.ts"
	bTS   = lsiftest.Root + "/b.ts"
	libTS = lsiftest.Root + "/lib.ts"
	appTS = lsiftest.Root + "/app.ts"
)

// =============================================================================
// Open
// =============================================================================

func TestOpen_Metadata(t *testing.T) {
	t.Parallel()
	d, _ := lsiftest.TwoFile()
	db := openDB(t, d, resolve.Options{})

	root, err := db.ProjectRoot()
	require.NoError(t, err)
	assert.Equal(t, lsiftest.Root, root)
}

func TestOpen_RejectsBlobFormat(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "blob.db")
	s, err := store.NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(store.FormatBlob))
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), path, resolve.Options{})
	assert.ErrorIs(t, err, store.ErrUnknownFormat)
}

func TestOpen_MetadataFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		key   string
		value string
		want  error
	}{
		{"old version", store.MetaVersion, "0.3.0", lsif.ErrUnsupportedVersion},
		{"missing root", store.MetaProjectRoot, "", lsif.ErrMissingProjectRoot},
		{"bad compressors", store.MetaCompressors, `[{"id":1,"properties":[{"name":"x","index":1,"compressionKind":"weird"}]}]`, compress.ErrUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, _ := lsiftest.TwoFile()
			path := writeDB(t, d, func(s *store.Store) {
				_, err := s.DB().Exec("UPDATE meta SET value = ? WHERE key = ?", tt.value, tt.key)
				require.NoError(t, err)
			})
			_, err := Open(context.Background(), path, resolve.Options{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpen_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Open(ctx, "unused.db", resolve.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Local resolution
// =============================================================================

func TestDefinitions_AcrossDocuments(t *testing.T) {
	t.Parallel()
	d, _ := lsiftest.TwoFile()
	db := openDB(t, d, resolve.Options{})

	locs, err := db.Definitions(bTS, at(1, 1))
	require.NoError(t, err)
	assert.Equal(t, []protocol.Location{{URI: aTS, Range: rng(5, 0, 5, 3)}}, locs)
}

func TestReferences_IncludeDeclaration(t *testing.T) {
	t.Parallel()
	d, _ := lsiftest.TwoFile()
	db := openDB(t, d, resolve.Options{})

	locs, err := db.References(aTS, at(5, 1), protocol.ReferenceContext{IncludeDeclaration: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []protocol.Location{
		{URI: aTS, Range: rng(5, 0, 5, 3)},
		{URI: bTS, Range: rng(1, 0, 1, 3)},
	}, locs)

	locs, err = db.References(aTS, at(5, 1), protocol.ReferenceContext{})
	require.NoError(t, err)
	assert.Equal(t, []protocol.Location{{URI: bTS, Range: rng(1, 0, 1, 3)}}, locs)
}

func TestHoverAndSymbols(t *testing.T) {
	t.Parallel()
	d, _ := lsiftest.TwoFile()
	db := openDB(t, d, resolve.Options{})

	h, err := db.Hover(bTS, at(1, 2))
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "```typescript\nfunction foo(): void\n```", h.Contents.Value)
	assert.Equal(t, rng(1, 0, 1, 3), *h.Range)

	syms, err := db.DocumentSymbols(aTS)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "foo", syms[0].Name)
	assert.Empty(t, syms[0].Children)

	folds, err := db.FoldingRanges(aTS)
	require.NoError(t, err)
	require.Len(t, folds, 1)
	assert.Equal(t, protocol.RegionFoldingRange, folds[0].Kind)
}

func TestDocumentsAndContent(t *testing.T) {
	t.Parallel()
	d, _ := lsiftest.TwoFile()
	db := openDB(t, d, resolve.Options{URIs: uris.NewScheme("lsif", "file")})

	docs, err := db.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "lsif:///work/a.ts", docs[0].URI)
	assert.NotEmpty(t, docs[0].Hash)

	content, err := db.Content("lsif:///work/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "export function foo() {}\n", string(content))
}

// The same logical graph answers identically from memory and from SQL.
func TestMatchesGraphBackend(t *testing.T) {
	t.Parallel()
	d, _ := lsiftest.TwoFile()
	db := openDB(t, d, resolve.Options{})
	g, err := graph.Load(context.Background(), bytes.NewReader(d.JSONL()), nil)
	require.NoError(t, err)
	mem := graph.New(g, resolve.Options{})

	queries := []struct {
		uri string
		pos protocol.Position
	}{
		{aTS, at(5, 0)}, {aTS, at(5, 3)}, {aTS, at(6, 3)}, {bTS, at(1, 1)}, {bTS, at(4, 0)},
	}
	for _, q := range queries {
		want, err := mem.Definitions(q.uri, q.pos)
		require.NoError(t, err)
		got, err := db.Definitions(q.uri, q.pos)
		require.NoError(t, err)
		assert.Equal(t, want, got, "definitions %s %v", q.uri, q.pos)

		ctx := protocol.ReferenceContext{IncludeDeclaration: true}
		wantRefs, err := mem.References(q.uri, q.pos, ctx)
		require.NoError(t, err)
		gotRefs, err := db.References(q.uri, q.pos, ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, wantRefs, gotRefs, "references %s %v", q.uri, q.pos)

		wantHover, err := mem.Hover(q.uri, q.pos)
		require.NoError(t, err)
		gotHover, err := db.Hover(q.uri, q.pos)
		require.NoError(t, err)
		assert.Equal(t, wantHover, gotHover, "hover %s %v", q.uri, q.pos)
	}
}

func TestRepeatedQueriesAreStable(t *testing.T) {
	t.Parallel()
	d, _ := lsiftest.TwoFile()
	db := openDB(t, d, resolve.Options{})

	first, err := db.Definitions(bTS, at(1, 1))
	require.NoError(t, err)
	for range 3 {
		again, err := db.Definitions(bTS, at(1, 1))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Positive(t, db.src.vertices.Len())
}

// =============================================================================
// Moniker linking
// =============================================================================

func TestMonikers_DefinitionThroughImport(t *testing.T) {
	t.Parallel()
	db := openDB(t, lsiftest.MonikerPair(), resolve.Options{})

	locs, err := db.Definitions(appTS, at(0, 10))
	require.NoError(t, err)
	assert.Equal(t, []protocol.Location{{URI: libTS, Range: rng(2, 9, 2, 12)}}, locs)
}

func TestMonikers_ReferencesBothWays(t *testing.T) {
	t.Parallel()
	db := openDB(t, lsiftest.MonikerPair(), resolve.Options{})
	both := []protocol.Location{
		{URI: libTS, Range: rng(2, 9, 2, 12)},
		{URI: appTS, Range: rng(0, 9, 0, 12)},
	}

	fromApp, err := db.References(appTS, at(0, 10), protocol.ReferenceContext{IncludeDeclaration: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, both, fromApp)

	fromLib, err := db.References(libTS, at(2, 10), protocol.ReferenceContext{IncludeDeclaration: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, both, fromLib)

	noDecl, err := db.References(libTS, at(2, 10), protocol.ReferenceContext{})
	require.NoError(t, err)
	assert.Equal(t, []protocol.Location{{URI: appTS, Range: rng(0, 9, 0, 12)}}, noDecl)
}

func TestMonikers_HoverThroughImport(t *testing.T) {
	t.Parallel()
	db := openDB(t, lsiftest.MonikerPair(), resolve.Options{})

	h, err := db.Hover(appTS, at(0, 10))
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "bar docs", h.Contents.Value)
	assert.Equal(t, rng(0, 9, 0, 12), *h.Range)
}

func TestLinker_RanksByUniqueness(t *testing.T) {
	t.Parallel()
	d := lsiftest.New(lsiftest.Root)
	use := d.Document(lsiftest.Root+"/use.ts", "")
	r := d.Range(use, 0, 0, 0, 3, nil)
	set := d.Vertex(lsif.VertexResultSet)
	d.Edge(lsif.EdgeNext, r, set)
	d.Edge(lsif.EdgeMoniker, set, d.Moniker("npm", "x", lsif.MonikerImport, lsif.UniqueProject))

	var owners []lsif.ID
	for _, u := range []lsif.Uniqueness{lsif.UniqueProject, lsif.UniqueGlobal, lsif.UniqueDocument} {
		owner := d.Vertex(lsif.VertexResultSet)
		d.Edge(lsif.EdgeMoniker, owner, d.Moniker("npm", "x", lsif.MonikerExport, u))
		owners = append(owners, owner)
	}
	db := openDB(t, d, resolve.Options{})

	linker := NewLinker(db.src, resolve.NewWalker(db.src, 0))
	chains, err := linker.Linked([]lsif.ID{r, set}, -1)
	require.NoError(t, err)
	require.Len(t, chains, 3)
	assert.Equal(t, []lsif.ID{owners[1]}, chains[0], "global first")
	assert.Equal(t, []lsif.ID{owners[0]}, chains[1], "project before document")
	assert.Equal(t, []lsif.ID{owners[2]}, chains[2])
}

func TestLinker_NoMoniker(t *testing.T) {
	t.Parallel()
	d, ids := lsiftest.TwoFile()
	db := openDB(t, d, resolve.Options{})

	linker := NewLinker(db.src, resolve.NewWalker(db.src, 0))
	chains, err := linker.Linked([]lsif.ID{ids.Untagged}, -1)
	require.NoError(t, err)
	assert.Empty(t, chains)
}

// =============================================================================
// Failure modes
// =============================================================================

func TestPlainJSONVertexRows(t *testing.T) {
	t.Parallel()
	d, ids := lsiftest.TwoFile()
	path := writeDB(t, d, func(s *store.Store) {
		var def *lsif.Element
		for _, e := range d.Elements {
			if e.ID == ids.Def {
				def = e
			}
		}
		raw, err := json.Marshal(def)
		require.NoError(t, err)
		_, err = s.DB().Exec("UPDATE vertices SET value = ? WHERE id = ?", string(raw), string(ids.Def))
		require.NoError(t, err)
	})
	db, err := Open(context.Background(), path, resolve.Options{})
	require.NoError(t, err)
	defer db.Close()

	syms, err := db.DocumentSymbols(aTS)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "foo", syms[0].Name)
}

func TestCorruptRecordFailsOnlyThatQuery(t *testing.T) {
	t.Parallel()
	d, ids := lsiftest.TwoFile()
	path := writeDB(t, d, func(s *store.Store) {
		_, err := s.DB().Exec("UPDATE vertices SET value = '[99]' WHERE id = ?", string(ids.DefResult))
		require.NoError(t, err)
	})
	db, err := Open(context.Background(), path, resolve.Options{})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Definitions(bTS, at(1, 1))
	assert.ErrorIs(t, err, compress.ErrUnknownSchema)

	folds, err := db.FoldingRanges(aTS)
	require.NoError(t, err)
	assert.Len(t, folds, 1)
}

func TestCycleFailsOnlyThatQuery(t *testing.T) {
	t.Parallel()
	db := openDB(t, lsiftest.Cyclic(), resolve.Options{})

	_, err := db.Definitions(lsiftest.Root+"/loop.ts", at(0, 1))
	assert.ErrorIs(t, err, lsif.ErrCycle)

	docs, err := db.Documents()
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestClosed(t *testing.T) {
	t.Parallel()
	d, _ := lsiftest.TwoFile()
	db := openDB(t, d, resolve.Options{})
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err := db.Definitions(bTS, at(1, 1))
	assert.ErrorIs(t, err, lsif.ErrClosed)
	_, err = db.Content(aTS)
	assert.ErrorIs(t, err, lsif.ErrClosed)
	_, err = db.ProjectRoot()
	assert.ErrorIs(t, err, lsif.ErrClosed)
}
