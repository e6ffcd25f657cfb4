package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/shelf/internal/logging"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "shelf.db"

// dsnPragmas are applied to every connection opened by the driver.
const dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"

// Compile-time interface check.
var _ types.Store = (*Backend)(nil)

// Backend implements types.Store on a SQLite database whose tables are
// derived from the schema.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	schema   *types.Schema
	models   []tableModel
	tables   map[string]*Table

	passwordCost int
	now          func() time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithPasswordCost sets the bcrypt cost used to hash password fields.
func WithPasswordCost(cost int) Option {
	return func(b *Backend) {
		b.passwordCost = cost
	}
}

// WithClock sets the time source used for session expiry.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// NewBackend creates a backend for the schema. The backend is not attached;
// call Attach with a Config to open the database.
func NewBackend(schema *types.Schema, opts ...Option) *Backend {
	b := &Backend{
		schema:       schema,
		tables:       make(map[string]*Table),
		passwordCost: bcrypt.DefaultCost,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Schema returns the declaration the backend was built from.
func (b *Backend) Schema() *types.Schema {
	return b.schema
}

// GetTable returns the ListTable for the named list.
// Returns ErrStoreDetached if the backend is not attached and
// ErrListNotFound if the schema has no such list.
func (b *Backend) GetTable(name string) (types.ListTable, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	table, ok := b.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrListNotFound, name)
	}
	return table, nil
}

// Attach opens <DataDir>/shelf.db, creating DataDir if needed, and migrates
// the storage schema. Migration only creates missing tables and indexes, so
// existing data survives repeated attaches.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	models, err := buildModels(b.schema)
	if err != nil {
		return err
	}
	stmts, err := SchemaDDL(b.schema)
	if err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)
	db, err := sql.Open("sqlite", "file:"+dbPath+dsnPragmas)
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("migrating schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.models = models
	b.tables = make(map[string]*Table, len(models))
	for _, m := range models {
		if m.list != nil {
			b.tables[m.name] = newTable(b, m)
		}
	}
	b.attached = true

	logging.Debug().Str("path", dbPath).Int("tables", len(models)).Msg("sqlite backend attached")
	return nil
}

// Detach closes the database. After Detach, all operations return
// ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.tables = make(map[string]*Table)
	return nil
}

// withDB runs fn with the open database while holding the read lock, so
// Detach cannot close it underneath a running operation.
func (b *Backend) withDB(fn func(db *sql.DB) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	return fn(b.db)
}

// inTx runs fn inside a transaction on a dedicated connection and commits
// when it returns nil. A failed commit is rolled back before the connection
// goes back to the pool, so the pool never holds an open transaction.
func (b *Backend) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return b.withDB(func(db *sql.DB) error {
		conn, err := db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("acquiring connection: %w", err)
		}
		defer conn.Close()

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			// database/sql marks the Tx done even when SQLite keeps it open.
			if _, rbErr := conn.ExecContext(context.Background(), "ROLLBACK"); rbErr != nil {
				return fmt.Errorf("commit: %w (rollback: %v)", err, rbErr)
			}
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}

// generateUUID generates a new UUID v7 for item IDs.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
