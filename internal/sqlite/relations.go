package sqlite

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// joinSides returns the join table columns holding this side's ID and the
// other side's ID.
func joinSides(r types.Relation) (string, string) {
	if r.Owner {
		return joinColA, joinColB
	}
	return joinColB, joinColA
}

// readRelation returns the value of a relationship that is not stored in the
// item's own row: a list of IDs for many relationships, an ID or nil for a
// one-to-one relationship owned by the other side.
func readRelation(ctx context.Context, q querier, r types.Relation, id string) (any, error) {
	var qb sq.SelectBuilder
	switch {
	case r.Kind == types.ManyToMany:
		this, other := joinSides(r)
		qb = sb.Select(quote(other)).From(quote(r.JoinTable())).
			Where(sq.Eq{quote(this): id}).
			OrderBy(quote(other))
	default:
		qb = sb.Select(quote(colID)).From(quote(r.Other.Name)).
			Where(sq.Eq{quote(r.OtherField.Name): id}).
			OrderBy(quote(colID))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var related string
		if err := rows.Scan(&related); err != nil {
			return nil, err
		}
		ids = append(ids, related)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if r.Field.Many {
		return ids, nil
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids[0], nil
}

// checkTargets verifies that every ID names an item of the related list.
func checkTargets(ctx context.Context, q querier, r types.Relation, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sb.Select("COUNT(*)").From(quote(r.Other.Name)).
		Where(sq.Eq{quote(colID): ids}).
		ToSql()
	if err != nil {
		return err
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return fmt.Errorf("checking %s: %w", r.Other.Name, err)
	}
	if n != len(ids) {
		return fmt.Errorf("%w: %w: %s", types.ErrInvalidValue, types.ErrNotFound, r.Other.Name)
	}
	return nil
}

// writeRelation replaces the related items of id with ids and keeps the
// other side consistent.
func writeRelation(ctx context.Context, q querier, r types.Relation, id string, ids []string) error {
	switch {
	case ownsColumn(r):
		var target any
		if len(ids) > 0 {
			target = ids[0]
			if r.Kind == types.OneToOne {
				// The target can be linked from one item only.
				steal := sb.Update(quote(r.List.Name)).Set(quote(r.Field.Name), nil).
					Where(sq.Eq{quote(r.Field.Name): target}).
					Where(sq.NotEq{quote(colID): id})
				if err := execBuilder(ctx, q, steal); err != nil {
					return err
				}
			}
		}
		return execBuilder(ctx, q, sb.Update(quote(r.List.Name)).
			Set(quote(r.Field.Name), target).
			Where(sq.Eq{quote(colID): id}))

	case r.Kind == types.ManyToMany:
		this, other := joinSides(r)
		if err := execBuilder(ctx, q, sb.Delete(quote(r.JoinTable())).Where(sq.Eq{quote(this): id})); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		ins := sb.Insert(quote(r.JoinTable())).Columns(quote(this), quote(other))
		for _, related := range ids {
			ins = ins.Values(id, related)
		}
		return execBuilder(ctx, q, ins)

	default:
		// One-to-many, or one-to-one stored on the other side.
		unlink := sb.Update(quote(r.Other.Name)).Set(quote(r.OtherField.Name), nil).
			Where(sq.Eq{quote(r.OtherField.Name): id})
		if len(ids) > 0 {
			unlink = unlink.Where(sq.NotEq{quote(colID): ids})
		}
		if err := execBuilder(ctx, q, unlink); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return execBuilder(ctx, q, sb.Update(quote(r.Other.Name)).
			Set(quote(r.OtherField.Name), id).
			Where(sq.Eq{quote(colID): ids}))
	}
}

// clearReferences removes links to id held outside its own row: join rows
// and foreign keys on the other side are nulled.
func clearReferences(ctx context.Context, q querier, r types.Relation, id string) error {
	switch {
	case ownsColumn(r):
		return nil
	case r.Kind == types.ManyToMany:
		this, _ := joinSides(r)
		return execBuilder(ctx, q, sb.Delete(quote(r.JoinTable())).Where(sq.Eq{quote(this): id}))
	default:
		return execBuilder(ctx, q, sb.Update(quote(r.Other.Name)).
			Set(quote(r.OtherField.Name), nil).
			Where(sq.Eq{quote(r.OtherField.Name): id}))
	}
}
