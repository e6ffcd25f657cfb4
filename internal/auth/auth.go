// Package auth signs users in with a password and maps session tokens back
// to the session data that access rules read.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/shelf/internal/logging"
	"github.com/mesh-intelligence/shelf/internal/sqlite"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// DefaultMaxAge is how long a session stays valid after sign-in.
const DefaultMaxAge = 30 * 24 * time.Hour

// tokenLength is the number of random bytes in a session token.
const tokenLength = 32

// ErrInvalidSession is returned for unknown, expired or orphaned tokens.
var ErrInvalidSession = errors.New("invalid or expired session")

// Store is the storage the Manager needs. *sqlite.Backend implements it.
type Store interface {
	GetTable(name string) (types.ListTable, error)
	VerifyPassword(ctx context.Context, list, identityField, identity, secretField, secret string) (*types.Item, error)
	CreateSession(ctx context.Context, rec sqlite.SessionRecord) error
	LookupSession(ctx context.Context, token string) (sqlite.SessionRecord, error)
	DeleteSession(ctx context.Context, token string) error
}

// Config names the list and fields used for password sign-in.
type Config struct {
	List          string
	IdentityField string
	SecretField   string
	AdminField    string
	MaxAge        time.Duration
}

// DefaultConfig signs users in from the User list by email and password.
func DefaultConfig() Config {
	return Config{
		List:          "User",
		IdentityField: "email",
		SecretField:   "password",
		AdminField:    "isAdmin",
		MaxAge:        DefaultMaxAge,
	}
}

// Manager issues, resolves and revokes session tokens.
type Manager struct {
	store  Store
	config Config
	now    func() time.Time
}

// NewManager returns a Manager over store. A zero MaxAge uses DefaultMaxAge.
func NewManager(store Store, config Config) *Manager {
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultMaxAge
	}
	return &Manager{store: store, config: config, now: time.Now}
}

// MaxAge returns the session lifetime.
func (m *Manager) MaxAge() time.Duration {
	return m.config.MaxAge
}

// SignIn verifies the password of the item identified by identity and
// returns a new session token with its session. Returns
// types.ErrInvalidCredentials when the identity or password is wrong.
func (m *Manager) SignIn(ctx context.Context, identity, secret string) (string, *types.Session, error) {
	item, err := m.store.VerifyPassword(ctx, m.config.List, m.config.IdentityField, identity, m.config.SecretField, secret)
	if err != nil {
		return "", nil, err
	}

	token, err := generateToken()
	if err != nil {
		return "", nil, fmt.Errorf("generating session token: %w", err)
	}
	now := m.now()
	err = m.store.CreateSession(ctx, sqlite.SessionRecord{
		Token:     digest(token),
		List:      m.config.List,
		ItemID:    item.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.config.MaxAge),
	})
	if err != nil {
		return "", nil, err
	}

	logging.Info().Str("list", m.config.List).Str("id", item.ID).Msg("signed in")
	return token, m.session(item), nil
}

// Resolve returns the session for a token. The admin flag is read from the
// current item, so revoking admin takes effect on the next request.
func (m *Manager) Resolve(ctx context.Context, token string) (*types.Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	rec, err := m.store.LookupSession(ctx, digest(token))
	if errors.Is(err, types.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}

	table, err := m.store.GetTable(rec.List)
	if err != nil {
		return nil, err
	}
	item, err := table.Get(types.Sudo(ctx), rec.ItemID)
	if errors.Is(err, types.ErrNotFound) {
		if err := m.store.DeleteSession(ctx, rec.Token); err != nil {
			return nil, err
		}
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	return m.session(item), nil
}

// SignOut revokes the token. Unknown tokens are ignored.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.store.DeleteSession(ctx, digest(token))
}

func (m *Manager) session(item *types.Item) *types.Session {
	return types.NewSession(item.ID, item.Bool(m.config.AdminField))
}

// generateToken returns 32 random bytes, URL-safe base64 encoded.
func generateToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// digest is what the store keeps instead of the raw token.
func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
