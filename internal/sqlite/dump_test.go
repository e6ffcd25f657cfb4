package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/shelf/pkg/schema"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

func TestExportImport(t *testing.T) {
	src := setupBackend(t)
	ada := createUser(t, src, "Ada", "ada@example.com")
	goTag := createItem(t, src, schema.Tag, map[string]any{"name": "go"})
	post := createItem(t, src, schema.Post, map[string]any{"title": "Hello", "author": ada, "tags": []string{goTag}})

	dir := t.TempDir()
	require.NoError(t, src.Export(sudo, dir))

	for _, name := range []string{"User.jsonl", "Post.jsonl", "Tag.jsonl", "Todo.jsonl", "_Post_tags.jsonl"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	dst := setupBackend(t)
	stats, err := dst.Import(sudo, dir)
	require.NoError(t, err)

	loaded := map[string]int{}
	for _, st := range stats {
		assert.False(t, st.Missing, st.Table)
		assert.Zero(t, st.Skipped, st.Table)
		loaded[st.Table] = st.Loaded
	}
	assert.Equal(t, map[string]int{"User": 1, "Post": 1, "Tag": 1, "Todo": 0, "_Post_tags": 1}, loaded)

	got := getItem(t, dst, schema.Post, post)
	assert.Equal(t, "Hello", got.String("title"))
	assert.Equal(t, ada, got.Values["author"])
	assert.Equal(t, []string{goTag}, got.IDs("tags"))
	assert.Equal(t, []string{post}, getItem(t, dst, schema.User, ada).IDs("posts"))

	// Hashes travel with the export.
	_, err = dst.VerifyPassword(sudo, schema.User, "email", "ada@example.com", "password", "correct horse")
	assert.NoError(t, err)

	// Importing again replaces rows instead of duplicating them.
	_, err = dst.Import(sudo, dir)
	require.NoError(t, err)
	n, err := mustTable(t, dst, schema.User).Count(sudo, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImportSkipsBadRows(t *testing.T) {
	dir := t.TempDir()
	lines := `{"id":"t1","name":"go"}
not json
{"id":"t2","name":"db","color":"blue"}
{"name":null}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Tag.jsonl"), []byte(lines), 0o644))

	b := NewBackend(schema.Lists(), WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	defer b.Detach()

	stats, err := b.Import(sudo, dir)
	require.NoError(t, err)

	byTable := map[string]ImportStats{}
	for _, st := range stats {
		byTable[st.Table] = st
	}
	assert.True(t, byTable["User"].Missing)
	assert.Equal(t, 2, byTable["Tag"].Loaded)
	assert.Equal(t, 2, byTable["Tag"].Skipped)

	items, err := mustTable(t, b, schema.Tag).Fetch(sudo, nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "go", items[0].String("name"))
}

func importStats(t *testing.T, b *Backend, dir string) map[string]ImportStats {
	t.Helper()
	stats, err := b.Import(sudo, dir)
	require.NoError(t, err)
	byTable := map[string]ImportStats{}
	for _, st := range stats {
		byTable[st.Table] = st
	}
	return byTable
}

func TestImportSkipsDanglingReference(t *testing.T) {
	b := setupBackend(t)
	ada := createUser(t, b, "Ada", "ada@example.com")

	dir := t.TempDir()
	lines := `{"id":"p1","title":"orphan","author":"nope"}
{"id":"p2","title":"kept","author":"` + ada + `"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Post.jsonl"), []byte(lines), 0o644))

	byTable := importStats(t, b, dir)
	assert.Equal(t, 1, byTable["Post"].Loaded)
	assert.Equal(t, 1, byTable["Post"].Skipped)

	_, err := mustTable(t, b, schema.Post).Get(sudo, "p1")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, ada, getItem(t, b, schema.Post, "p2").Values["author"])

	// The backend still accepts writes afterwards.
	_, err = mustTable(t, b, schema.Tag).Set(sudo, "", types.NewItem(schema.Tag, map[string]any{"name": "after"}))
	assert.NoError(t, err)
}

func TestImportKeepsOtherUniqueRows(t *testing.T) {
	b := setupBackend(t)
	ada := createUser(t, b, "Ada", "ada@example.com")

	dir := t.TempDir()
	lines := `{"id":"other","name":"Impostor","email":"ada@example.com","isAdmin":true}
{"id":"` + ada + `","name":"Ada Lovelace","email":"ada@example.com"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "User.jsonl"), []byte(lines), 0o644))

	byTable := importStats(t, b, dir)
	assert.Equal(t, 1, byTable["User"].Loaded)
	assert.Equal(t, 1, byTable["User"].Skipped)

	got := getItem(t, b, schema.User, ada)
	assert.Equal(t, "Ada Lovelace", got.String("name"), "same id updates in place")
	_, err := mustTable(t, b, schema.User).Get(sudo, "other")
	assert.ErrorIs(t, err, types.ErrNotFound)

	// The stored hash survives an update that does not carry one.
	_, err = b.VerifyPassword(sudo, schema.User, "email", "ada@example.com", "password", "correct horse")
	assert.NoError(t, err)
}

func TestLoadOrder(t *testing.T) {
	// Book holds a key to Shelf, which is declared after it.
	s, err := types.NewSchema(
		&types.List{Name: "Book", Fields: []types.Field{
			{Name: "title", Type: types.FieldText},
			{Name: "shelf", Type: types.FieldRelationship, Ref: "Shelf.books"},
			{Name: "readers", Type: types.FieldRelationship, Ref: "Reader.books", Many: true},
		}},
		&types.List{Name: "Shelf", Fields: []types.Field{
			{Name: "books", Type: types.FieldRelationship, Ref: "Book.shelf", Many: true},
		}},
		&types.List{Name: "Reader", Fields: []types.Field{
			{Name: "books", Type: types.FieldRelationship, Ref: "Book.readers", Many: true},
		}},
	)
	require.NoError(t, err)
	models, err := buildModels(s)
	require.NoError(t, err)

	var names []string
	for _, m := range loadOrder(models) {
		names = append(names, m.name)
	}
	assert.Equal(t, []string{"Shelf", "Reader", "Book", "_Book_readers"}, names)
}
