package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/lsifq/internal/compress"
	"github.com/jward/lsifq/internal/lsif"
	"github.com/jward/lsifq/internal/lsiftest"
)

func newTestStore(t *testing.T, format string) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(format))
	t.Cleanup(func() { s.Close() })
	return s
}

// writeDump commits every element of d into a fresh graph-format store.
func writeDump(t *testing.T, d *lsiftest.Dump) *Store {
	t.Helper()
	s := newTestStore(t, FormatGraph)
	w := NewWriter(s)
	for _, e := range d.Elements {
		require.NoError(t, w.Add(e))
	}
	require.NoError(t, w.Commit())
	return s
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_GraphTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, FormatGraph)

	for _, table := range []string{"format", "meta", "vertices", "edges", "ranges", "documents", "contents", "monikers"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_BlobTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, FormatBlob)

	for _, table := range []string{"versionTags", "versions", "documents", "blobs", "contents", "decls", "defs", "refs", "hovers"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, FormatGraph)
	require.NoError(t, s.Migrate(FormatGraph))

	format, err := s.Format()
	require.NoError(t, err)
	assert.Equal(t, FormatGraph, format)
}

func TestMigrate_UnknownFormat(t *testing.T) {
	t.Parallel()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	assert.ErrorIs(t, s.Migrate("columnar"), ErrUnknownFormat)
}

func TestFormat_EmptyDatabase(t *testing.T) {
	t.Parallel()
	s, err := NewStore(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Format()
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestOpenReadOnly(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ro.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(FormatBlob))
	require.NoError(t, s.Close())

	ro, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer ro.Close()

	format, err := ro.Format()
	require.NoError(t, err)
	assert.Equal(t, FormatBlob, format)
	assert.Error(t, ro.Migrate(FormatBlob))
}

// =============================================================================
// Graph writer
// =============================================================================

func TestWriter_RequiresMetaDataFirst(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, FormatGraph)
	w := NewWriter(s)

	err := w.Add(&lsif.Element{ID: "1", Type: lsif.ElementVertex, Label: lsif.VertexDocument, URI: "file:///a.ts"})
	assert.ErrorIs(t, err, lsif.ErrMissingMetaData)
	assert.ErrorIs(t, w.Commit(), lsif.ErrMissingMetaData)
}

func TestWriter_DanglingEdge(t *testing.T) {
	t.Parallel()
	d := lsiftest.New(lsiftest.Root)
	doc := d.Document("file:///work/a.ts", "")
	w := NewWriter(newTestStore(t, FormatGraph))
	for _, e := range d.Elements {
		require.NoError(t, w.Add(e))
	}

	err := w.Add(&lsif.Element{ID: "99", Type: lsif.ElementEdge, Label: lsif.EdgeContains, OutV: doc, InVs: []lsif.ID{"404"}})
	assert.ErrorIs(t, err, lsif.ErrDanglingEdge)
}

func TestWriter_Meta(t *testing.T) {
	t.Parallel()
	d, _ := lsiftest.TwoFile()
	s := writeDump(t, d)

	root, err := s.Meta(MetaProjectRoot)
	require.NoError(t, err)
	assert.Equal(t, lsiftest.Root, root)

	version, err := s.Meta(MetaVersion)
	require.NoError(t, err)
	assert.Equal(t, "0.6.0", version)

	raw, err := s.Meta(MetaCompressors)
	require.NoError(t, err)
	reg, err := compress.ParseRegistry([]byte(raw))
	require.NoError(t, err)
	assert.Len(t, reg.Descriptors(), len(compress.DefaultSchemas()))

	missing, err := s.Meta("nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestWriter_VerticesAreCompressed(t *testing.T) {
	t.Parallel()
	d, ids := lsiftest.TwoFile()
	s := writeDump(t, d)

	v, err := s.Vertex(string(ids.Def))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, lsif.VertexRange, v.Label)
	assert.Equal(t, byte('['), v.Value[0])

	reg := compress.NewDefaultRegistry()
	m, err := reg.DecompressJSON(v.Value)
	require.NoError(t, err)
	assert.Equal(t, "range", m["label"])
	tag := m["tag"].(map[string]any)
	assert.Equal(t, "definition", tag["type"])
	assert.Equal(t, "foo", tag["text"])

	none, err := s.Vertex("404")
	require.NoError(t, err)
	assert.Nil(t, none)
}

// =============================================================================
// Graph reads
// =============================================================================

func TestGraph_OutAndItems(t *testing.T) {
	t.Parallel()
	d, ids := lsiftest.TwoFile()
	s := writeDump(t, d)

	next, err := s.Out(string(ids.Def), lsif.EdgeNext)
	require.NoError(t, err)
	assert.Equal(t, []string{string(ids.ResultSet)}, next)

	in, err := s.In(string(ids.ResultSet), lsif.EdgeNext)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{string(ids.Def), string(ids.Ref)}, in)

	items, err := s.Items(string(ids.RefResult))
	require.NoError(t, err)
	require.NotEmpty(t, items)
	props := map[string]int{}
	for _, it := range items {
		props[it.Property]++
		assert.NotEmpty(t, it.Shard)
	}
	assert.Equal(t, 1, props[lsif.PropertyDefinitions])
	assert.Equal(t, 1, props[lsif.PropertyReferences])
}

func TestGraph_RangesAt(t *testing.T) {
	t.Parallel()
	d, ids := lsiftest.TwoFile()
	s := writeDump(t, d)

	docs, err := s.DocumentIDs("file:///work/a.ts")
	require.NoError(t, err)
	assert.Equal(t, []string{string(ids.A)}, docs)

	got, err := s.RangesAt(docs, 5, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, string(ids.Def), got[0].ID)
	assert.Equal(t, string(ids.A), got[0].BelongsTo)

	// Both ends are inclusive.
	end, err := s.RangesAt(docs, 5, 3)
	require.NoError(t, err)
	assert.Len(t, end, 1)

	miss, err := s.RangesAt(docs, 4, 0)
	require.NoError(t, err)
	assert.Empty(t, miss)

	none, err := s.RangesAt(nil, 5, 1)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGraph_RangesAtFollowContainsOrder(t *testing.T) {
	t.Parallel()
	s := writeDump(t, lsiftest.Overlapping())

	docs, err := s.DocumentIDs("file:///work/overlap.ts")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	got, err := s.RangesAt(docs, 0, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(0), got[0].StartCharacter, "first listed range leads")
	assert.Equal(t, uint32(4), got[1].StartCharacter)
}

func TestGraph_RangeLocation(t *testing.T) {
	t.Parallel()
	d, ids := lsiftest.TwoFile()
	s := writeDump(t, d)

	loc, err := s.RangeLocation(string(ids.Ref))
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "file:///work/b.ts", loc.URI)
	assert.Equal(t, uint32(1), loc.StartLine)
	assert.Equal(t, uint32(3), loc.EndCharacter)

	missing, err := s.RangeLocation("404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGraph_DocumentsAndContent(t *testing.T) {
	t.Parallel()
	d, _ := lsiftest.TwoFile()
	s := writeDump(t, d)

	docs, err := s.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "file:///work/a.ts", docs[0].URI)
	assert.Equal(t, "typescript", docs[0].LanguageID)
	assert.Len(t, docs[0].Hash, 64)

	content, err := s.DocumentContent("file:///work/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "export function foo() {}\n", string(content))

	none, err := s.DocumentContent("file:///work/b.ts")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGraph_Monikers(t *testing.T) {
	t.Parallel()
	d, ids := lsiftest.TwoFile()
	s := writeDump(t, d)

	m, err := s.Moniker(string(ids.Moniker))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "tsc", m.Scheme)
	assert.Equal(t, "a:foo", m.Identifier)
	assert.Equal(t, "export", m.Kind)

	byKey, err := s.MonikersByKey("tsc", "a:foo")
	require.NoError(t, err)
	require.Len(t, byKey, 1)
	assert.Equal(t, m.ID, byKey[0].ID)

	none, err := s.MonikersByKey("tsc", "nope")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// Blob format
// =============================================================================

func commitTestVersion(t *testing.T, s *Store, tag string, at time.Time, blob string) int64 {
	t.Helper()
	docs := []*BlobDocument{
		{
			URI:        "file:///work/a.ts",
			LanguageID: "typescript",
			Blob:       []byte(blob),
			Content:    []byte("export function foo() {}\n"),
			Defs: []CrossRow{
				{Scheme: "npm", Identifier: "lib:foo", StartLine: 5, EndLine: 5, EndCharacter: 3},
			},
			Decls: []CrossRow{
				{Scheme: "npm", Identifier: "lib:foo", StartLine: 5, EndLine: 5, EndCharacter: 3},
			},
			Refs: []CrossRow{
				{Scheme: "npm", Identifier: "lib:foo", Kind: RefDefinition, StartLine: 5, EndLine: 5, EndCharacter: 3},
				{Scheme: "npm", Identifier: "lib:foo", Kind: RefReference, StartLine: 9, StartCharacter: 2, EndLine: 9, EndCharacter: 5},
			},
			Hovers: []HoverRow{{Scheme: "npm", Identifier: "lib:foo", Content: `{"kind":"markdown","value":"foo"}`}},
		},
	}
	version, err := s.CommitVersion(tag, at, map[string]string{MetaProjectRoot: lsiftest.Root}, docs)
	require.NoError(t, err)
	return version
}

func TestBlob_Versions(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, FormatBlob)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	v1 := commitTestVersion(t, s, "v1", base, `{"ranges":{}}`)
	v2 := commitTestVersion(t, s, "v2", base.Add(time.Hour), `{"ranges":{"1":{}}}`)

	tags, err := s.VersionTags()
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "v2", tags[0].Tag)

	latest, ok, err := s.ResolveVersion("")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v2, latest)

	byTag, ok, err := s.ResolveVersion("v1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v1, byTag)

	_, ok, err = s.ResolveVersion("v3")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.CommitVersion("v1", base, nil, nil)
	assert.Error(t, err, "duplicate tag")
}

func TestBlob_DocumentsAndBlob(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, FormatBlob)
	version := commitTestVersion(t, s, "v1", time.Now(), `{"ranges":{}}`)

	docs, err := s.BlobDocuments(version)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "file:///work/a.ts", docs[0].URI)

	hash, err := s.DocumentHash("file:///work/a.ts", version)
	require.NoError(t, err)
	assert.Equal(t, docs[0].DocumentHash, hash)

	blob, err := s.Blob(hash)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ranges":{}}`, string(blob))

	content, err := s.BlobContent(hash)
	require.NoError(t, err)
	assert.Equal(t, "export function foo() {}\n", string(content))

	missing, err := s.DocumentHash("file:///work/z.ts", version)
	require.NoError(t, err)
	assert.Empty(t, missing)

	root, err := s.Meta(MetaProjectRoot)
	require.NoError(t, err)
	assert.Equal(t, lsiftest.Root, root)
}

func TestBlob_SharedBlobAcrossVersions(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, FormatBlob)
	base := time.Now()
	v1 := commitTestVersion(t, s, "v1", base, `{"ranges":{}}`)
	v2 := commitTestVersion(t, s, "v2", base.Add(time.Second), `{"ranges":{}}`)

	var blobs int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM blobs").Scan(&blobs))
	assert.Equal(t, 1, blobs)

	for _, v := range []int64{v1, v2} {
		defs, err := s.Definitions("npm", "lib:foo", v)
		require.NoError(t, err)
		assert.Len(t, defs, 1, "version %d", v)
	}
}

func TestBlob_CrossTables(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, FormatBlob)
	version := commitTestVersion(t, s, "v1", time.Now(), `{}`)

	defs, err := s.Definitions("npm", "lib:foo", version)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "file:///work/a.ts", defs[0].URI)
	assert.Equal(t, RefDefinition, defs[0].Kind)

	decls, err := s.Declarations("npm", "lib:foo", version)
	require.NoError(t, err)
	assert.Len(t, decls, 1)

	all, err := s.References("npm", "lib:foo", version, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	refsOnly, err := s.References("npm", "lib:foo", version, false)
	require.NoError(t, err)
	require.Len(t, refsOnly, 1)
	assert.Equal(t, uint32(9), refsOnly[0].StartLine)

	other, err := s.Definitions("npm", "lib:foo", version+1)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestBlob_Hover(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, FormatBlob)
	commitTestVersion(t, s, "v1", time.Now(), `{}`)
	commitTestVersion(t, s, "v2", time.Now().Add(time.Second), `{"x":1}`)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM hovers").Scan(&n))
	assert.Equal(t, 1, n)

	h, err := s.Hover("npm", "lib:foo")
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"markdown","value":"foo"}`, h)

	none, err := s.Hover("npm", "lib:bar")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestContentHash(t *testing.T) {
	t.Parallel()
	a := ContentHash("file:///a.ts", []byte("x"))
	b := ContentHash("file:///b.ts", []byte("x"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, ContentHash("file:///a.ts", []byte("x")))
	assert.NotEqual(t, BlobHash("file:///a.ts", []byte("x")), BlobHash("file:///a.ts", []byte("y")))
}
