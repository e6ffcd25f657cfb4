package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/shelf/pkg/schema"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// setupBackend creates an attached Backend over the content schema with a
// cheap password cost. The backend is detached when the test ends.
func setupBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	b := NewBackend(schema.Lists(), append([]Option{WithPasswordCost(bcrypt.MinCost)}, opts...)...)
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	require.NoError(t, b.Attach(config))
	t.Cleanup(func() { b.Detach() })
	return b
}

func mustTable(t *testing.T, b *Backend, name string) types.ListTable {
	t.Helper()
	table, err := b.GetTable(name)
	require.NoError(t, err)
	return table
}

func TestBackend_Attach(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend(schema.Lists())
	config := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	require.NoError(t, b.Attach(config))
	defer b.Detach()

	_, err := os.Stat(filepath.Join(dir, DBFileName))
	assert.NoError(t, err, "database file should exist")

	assert.ErrorIs(t, b.Attach(config), types.ErrAlreadyAttached)
}

func TestBackend_AttachRejectsBadConfig(t *testing.T) {
	b := NewBackend(schema.Lists())
	assert.ErrorIs(t, b.Attach(types.Config{DataDir: t.TempDir()}), types.ErrBackendEmpty)
	assert.ErrorIs(t, b.Attach(types.Config{Backend: "postgres", DataDir: t.TempDir()}), types.ErrBackendUnknown)
}

func TestBackend_Detach(t *testing.T) {
	b := setupBackend(t)
	table := mustTable(t, b, schema.Tag)

	require.NoError(t, b.Detach())
	assert.NoError(t, b.Detach(), "second Detach should succeed")

	_, err := b.GetTable(schema.Tag)
	assert.ErrorIs(t, err, types.ErrStoreDetached)

	_, err = table.Fetch(types.Sudo(context.Background()), nil)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestBackend_GetTable(t *testing.T) {
	b := setupBackend(t)

	for _, name := range []string{schema.User, schema.Post, schema.Tag, schema.Todo} {
		table, err := b.GetTable(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, table.(*Table).List().Name)
	}

	_, err := b.GetTable("Comment")
	assert.ErrorIs(t, err, types.ErrListNotFound)

	// Join tables are storage details, not lists.
	_, err = b.GetTable("_Post_tags")
	assert.ErrorIs(t, err, types.ErrListNotFound)
}

func TestBackend_DataPersistsAcrossAttach(t *testing.T) {
	dir := t.TempDir()
	config := types.Config{Backend: types.BackendSQLite, DataDir: dir}
	ctx := types.Sudo(context.Background())

	b := NewBackend(schema.Lists(), WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, b.Attach(config))
	id, err := mustTable(t, b, schema.Tag).Set(ctx, "", types.NewItem(schema.Tag, map[string]any{"name": "go"}))
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	b2 := NewBackend(schema.Lists(), WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, b2.Attach(config))
	defer b2.Detach()

	got, err := mustTable(t, b2, schema.Tag).Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "go", got.String("name"))
}

func TestBackend_FailedCommitReleasesConnection(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	err := b.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO "Post" ("id", "title", "author") VALUES ('p1', 'x', 'nope')`)
		return err
	})
	require.Error(t, err, "commit should fail on the deferred foreign key")

	for i := 0; i < 3; i++ {
		_, err := mustTable(t, b, schema.Tag).Set(types.Sudo(ctx), "", types.NewItem(schema.Tag, map[string]any{"name": "after"}))
		require.NoError(t, err)
	}
	_, err = mustTable(t, b, schema.Post).Get(types.Sudo(ctx), "p1")
	assert.ErrorIs(t, err, types.ErrNotFound)
}
