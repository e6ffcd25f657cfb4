package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// SessionRecord is a stored session token. Token holds whatever the caller
// chose to persist (the auth package stores a digest, never the raw token).
type SessionRecord struct {
	Token     string
	List      string
	ItemID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CreateSession stores a session record.
func (b *Backend) CreateSession(ctx context.Context, rec SessionRecord) error {
	if rec.Token == "" || rec.List == "" || rec.ItemID == "" {
		return types.ErrInvalidData
	}
	ins := sb.Insert(quote(sessionTable)).
		Columns(`"token"`, `"list"`, `"item_id"`, `"created_at"`, `"expires_at"`).
		Values(rec.Token, rec.List, rec.ItemID,
			rec.CreatedAt.UTC().Format(timeLayout), rec.ExpiresAt.UTC().Format(timeLayout))
	return b.withDB(func(db *sql.DB) error {
		if err := execBuilder(ctx, db, ins); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		return nil
	})
}

// LookupSession returns the session stored under token. Expired sessions
// are removed and reported as ErrNotFound.
func (b *Backend) LookupSession(ctx context.Context, token string) (SessionRecord, error) {
	query, args, err := sb.Select(`"token"`, `"list"`, `"item_id"`, `"created_at"`, `"expires_at"`).
		From(quote(sessionTable)).
		Where(sq.Eq{`"token"`: token}).
		ToSql()
	if err != nil {
		return SessionRecord{}, err
	}

	var rec SessionRecord
	err = b.withDB(func(db *sql.DB) error {
		var created, expires string
		err := db.QueryRowContext(ctx, query, args...).Scan(&rec.Token, &rec.List, &rec.ItemID, &created, &expires)
		if err == sql.ErrNoRows {
			return types.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("looking up session: %w", err)
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return fmt.Errorf("decoding session: %w", err)
		}
		if rec.ExpiresAt, err = time.Parse(timeLayout, expires); err != nil {
			return fmt.Errorf("decoding session: %w", err)
		}
		return nil
	})
	if err != nil {
		return SessionRecord{}, err
	}

	if !b.now().Before(rec.ExpiresAt) {
		if err := b.DeleteSession(ctx, token); err != nil {
			return SessionRecord{}, err
		}
		return SessionRecord{}, types.ErrNotFound
	}
	return rec, nil
}

// DeleteSession removes the session stored under token. Deleting an
// unknown token succeeds.
func (b *Backend) DeleteSession(ctx context.Context, token string) error {
	return b.withDB(func(db *sql.DB) error {
		if err := execBuilder(ctx, db, sb.Delete(quote(sessionTable)).Where(sq.Eq{`"token"`: token})); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
		return nil
	})
}

// PruneSessions removes expired sessions and returns how many were removed.
func (b *Backend) PruneSessions(ctx context.Context) (int64, error) {
	query, args, err := sb.Delete(quote(sessionTable)).
		Where(sq.LtOrEq{`"expires_at"`: b.now().UTC().Format(timeLayout)}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var n int64
	err = b.withDB(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("pruning sessions: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// dummyHash is compared against when no item matches, so a sign-in for an
// unknown identity costs the same as a wrong secret.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("shelf-dummy-secret"), bcrypt.MinCost)

// VerifyPassword finds the item of list whose identityField equals identity
// and checks secret against its secretField hash. Access rules are not
// applied. Returns ErrInvalidCredentials when either check fails.
func (b *Backend) VerifyPassword(ctx context.Context, list, identityField, identity, secretField, secret string) (*types.Item, error) {
	l, err := b.schema.List(list)
	if err != nil {
		return nil, err
	}
	if f, ok := l.Field(identityField); !ok || f.Type != types.FieldText {
		return nil, fmt.Errorf("%w: %s.%s is not a text field", types.ErrInvalidSchema, list, identityField)
	}
	if f, ok := l.Field(secretField); !ok || f.Type != types.FieldPassword {
		return nil, fmt.Errorf("%w: %s.%s is not a password field", types.ErrInvalidSchema, list, secretField)
	}

	query, args, err := sb.Select(quote(colID), quote(secretField)).
		From(quote(list)).
		Where(sq.Eq{quote(identityField): identity}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var id string
	var hash sql.NullString
	err = b.withDB(func(db *sql.DB) error {
		return db.QueryRowContext(ctx, query, args...).Scan(&id, &hash)
	})
	switch {
	case err == sql.ErrNoRows:
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return nil, types.ErrInvalidCredentials
	case err != nil:
		return nil, fmt.Errorf("verifying credentials: %w", err)
	}
	if !hash.Valid || bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(secret)) != nil {
		return nil, types.ErrInvalidCredentials
	}

	table, err := b.GetTable(list)
	if err != nil {
		return nil, err
	}
	return table.Get(types.Sudo(ctx), id)
}
