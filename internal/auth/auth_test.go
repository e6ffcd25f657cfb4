package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/shelf/internal/sqlite"
	"github.com/mesh-intelligence/shelf/pkg/schema"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

var sudo = types.Sudo(context.Background())

func setup(t *testing.T) (*sqlite.Backend, *Manager) {
	t.Helper()
	b := sqlite.NewBackend(schema.Lists(), sqlite.WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })
	return b, NewManager(b, DefaultConfig())
}

func addUser(t *testing.T, b *sqlite.Backend, email string, isAdmin bool) string {
	t.Helper()
	users, err := b.GetTable(schema.User)
	require.NoError(t, err)
	id, err := users.Set(sudo, "", types.NewItem(schema.User, map[string]any{
		"name":     email,
		"email":    email,
		"password": "correct horse",
		"isAdmin":  isAdmin,
	}))
	require.NoError(t, err)
	return id
}

func TestSignIn(t *testing.T) {
	b, m := setup(t)
	id := addUser(t, b, "ada@example.com", true)

	token, session, err := m.SignIn(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, &types.Session{Data: &types.SessionData{ID: id, IsAdmin: true}}, session)

	// The raw token is never stored.
	_, err = b.LookupSession(sudo, token)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, _, err = m.SignIn(context.Background(), "ada@example.com", "wrong password")
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)
	_, _, err = m.SignIn(context.Background(), "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		check func(t *testing.T, b *sqlite.Backend, m *Manager)
	}{
		{
			name: "token resolves to the signed-in user",
			check: func(t *testing.T, b *sqlite.Backend, m *Manager) {
				id := addUser(t, b, "bob@example.com", false)
				token, _, err := m.SignIn(context.Background(), "bob@example.com", "correct horse")
				require.NoError(t, err)

				session, err := m.Resolve(context.Background(), token)
				require.NoError(t, err)
				assert.Equal(t, id, session.Data.ID)
				assert.False(t, session.Data.IsAdmin)
			},
		},
		{
			name: "admin flag follows the stored user",
			check: func(t *testing.T, b *sqlite.Backend, m *Manager) {
				id := addUser(t, b, "ada@example.com", true)
				token, _, err := m.SignIn(context.Background(), "ada@example.com", "correct horse")
				require.NoError(t, err)

				users, err := b.GetTable(schema.User)
				require.NoError(t, err)
				_, err = users.Set(sudo, id, types.NewItem(schema.User, map[string]any{"isAdmin": false}))
				require.NoError(t, err)

				session, err := m.Resolve(context.Background(), token)
				require.NoError(t, err)
				assert.False(t, session.Data.IsAdmin)
			},
		},
		{
			name: "unknown and empty tokens are invalid",
			check: func(t *testing.T, b *sqlite.Backend, m *Manager) {
				_, err := m.Resolve(context.Background(), "made-up")
				assert.ErrorIs(t, err, ErrInvalidSession)
				_, err = m.Resolve(context.Background(), "")
				assert.ErrorIs(t, err, ErrInvalidSession)
			},
		},
		{
			name: "signed out token is invalid",
			check: func(t *testing.T, b *sqlite.Backend, m *Manager) {
				addUser(t, b, "ada@example.com", false)
				token, _, err := m.SignIn(context.Background(), "ada@example.com", "correct horse")
				require.NoError(t, err)

				require.NoError(t, m.SignOut(context.Background(), token))
				_, err = m.Resolve(context.Background(), token)
				assert.ErrorIs(t, err, ErrInvalidSession)
				assert.NoError(t, m.SignOut(context.Background(), token))
			},
		},
		{
			name: "deleted user invalidates the token",
			check: func(t *testing.T, b *sqlite.Backend, m *Manager) {
				id := addUser(t, b, "ada@example.com", false)
				token, _, err := m.SignIn(context.Background(), "ada@example.com", "correct horse")
				require.NoError(t, err)

				users, err := b.GetTable(schema.User)
				require.NoError(t, err)
				require.NoError(t, users.Delete(sudo, id))

				_, err = m.Resolve(context.Background(), token)
				assert.ErrorIs(t, err, ErrInvalidSession)
			},
		},
		{
			name: "expired token is invalid",
			check: func(t *testing.T, b *sqlite.Backend, m *Manager) {
				addUser(t, b, "ada@example.com", false)
				m.now = func() time.Time { return time.Now().Add(-2 * DefaultMaxAge) }
				token, _, err := m.SignIn(context.Background(), "ada@example.com", "correct horse")
				require.NoError(t, err)

				_, err = m.Resolve(context.Background(), token)
				assert.ErrorIs(t, err, ErrInvalidSession)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, m := setup(t)
			tt.check(t, b, m)
		})
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := generateToken()
	require.NoError(t, err)
	b, err := generateToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, digest(a))
}

func TestNewManagerDefaultsMaxAge(t *testing.T) {
	m := NewManager(nil, Config{})
	assert.Equal(t, DefaultMaxAge, m.MaxAge())
}
