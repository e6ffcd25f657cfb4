package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"slices"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

var sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Compile-time interface check.
var _ types.ListTable = (*Table)(nil)

// Table implements types.ListTable for one list. Every operation checks the
// list's access rule against the session carried by ctx, unless ctx was
// derived with types.Sudo.
type Table struct {
	backend *Backend
	list    *types.List
	model   tableModel
	columns []string
}

func newTable(b *Backend, m tableModel) *Table {
	cols := make([]string, len(m.columns))
	for i, c := range m.columns {
		cols[i] = quote(c.name)
	}
	return &Table{backend: b, list: m.list, model: m, columns: cols}
}

// List returns the declaration of the table's list.
func (t *Table) List() *types.List {
	return t.list
}

func (t *Table) authorize(ctx context.Context, op types.Operation) error {
	if types.IsSudo(ctx) {
		return nil
	}
	if !t.list.Access.Allowed(op, types.SessionFromContext(ctx)) {
		return fmt.Errorf("%w: %s %s", types.ErrAccessDenied, op, t.list.Name)
	}
	return nil
}

// Get retrieves the item with the given ID.
func (t *Table) Get(ctx context.Context, id string) (*types.Item, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	if err := t.authorize(ctx, types.OperationQuery); err != nil {
		return nil, err
	}

	var item *types.Item
	err := t.backend.withDB(func(db *sql.DB) error {
		items, err := t.selectItems(ctx, db, sq.Eq{quote(colID): id}, 0, 0)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return types.ErrNotFound
		}
		item = items[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Set creates the item when id is empty, otherwise merges the item's values
// into the stored item. Omitted fields get their initial value on create
// and are left untouched on update.
func (t *Table) Set(ctx context.Context, id string, item *types.Item) (string, error) {
	if item == nil {
		return "", types.ErrInvalidData
	}
	if item.List != "" && item.List != t.list.Name {
		return "", fmt.Errorf("%w: item of %s stored in %s", types.ErrInvalidData, item.List, t.list.Name)
	}

	create := id == ""
	op := types.OperationUpdate
	if create {
		op = types.OperationCreate
	}
	if err := t.authorize(ctx, op); err != nil {
		return "", err
	}

	values := item.Values
	if create {
		id = generateUUID()
		values = t.withInitialValues(values)
	}

	err := t.backend.inTx(ctx, func(tx *sql.Tx) error {
		if !create {
			exists, err := t.exists(ctx, tx, id)
			if err != nil {
				return err
			}
			if !exists {
				return types.ErrNotFound
			}
		}

		cols, links, err := t.prepare(ctx, tx, id, values)
		if err != nil {
			return err
		}

		if create {
			ins := sb.Insert(quote(t.model.name)).Columns(quote(colID))
			vals := []any{id}
			for _, c := range t.model.columns[1:] {
				if v, ok := cols[c.name]; ok {
					ins = ins.Columns(quote(c.name))
					vals = append(vals, v)
				}
			}
			if err := execBuilder(ctx, tx, ins.Values(vals...)); err != nil {
				return fmt.Errorf("inserting %s: %w", t.list.Name, err)
			}
		} else if len(cols) > 0 {
			upd := sb.Update(quote(t.model.name)).Where(sq.Eq{quote(colID): id})
			for _, c := range t.model.columns[1:] {
				if v, ok := cols[c.name]; ok {
					upd = upd.Set(quote(c.name), v)
				}
			}
			if err := execBuilder(ctx, tx, upd); err != nil {
				return fmt.Errorf("updating %s %s: %w", t.list.Name, id, err)
			}
		}

		for _, l := range links {
			if err := writeRelation(ctx, tx, l.relation, id, l.ids); err != nil {
				return fmt.Errorf("linking %s: %w", l.relation.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes the item, clears references to it from related lists and
// drops its sessions.
func (t *Table) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if err := t.authorize(ctx, types.OperationDelete); err != nil {
		return err
	}

	return t.backend.inTx(ctx, func(tx *sql.Tx) error {
		exists, err := t.exists(ctx, tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return types.ErrNotFound
		}
		for _, r := range t.model.relations {
			if err := clearReferences(ctx, tx, r, id); err != nil {
				return fmt.Errorf("unlinking %s: %w", r.Key(), err)
			}
		}
		del := sb.Delete(quote(sessionTable)).Where(sq.Eq{`"list"`: t.list.Name, `"item_id"`: id})
		if err := execBuilder(ctx, tx, del); err != nil {
			return fmt.Errorf("deleting sessions: %w", err)
		}
		if err := execBuilder(ctx, tx, sb.Delete(quote(t.model.name)).Where(sq.Eq{quote(colID): id})); err != nil {
			return fmt.Errorf("deleting %s %s: %w", t.list.Name, id, err)
		}
		return nil
	})
}

// Fetch returns the items matching filter ordered by ID, which for UUID v7
// IDs is creation order.
func (t *Table) Fetch(ctx context.Context, filter types.Filter) ([]*types.Item, error) {
	if err := t.authorize(ctx, types.OperationQuery); err != nil {
		return nil, err
	}
	where, limit, offset, err := t.buildFilter(filter)
	if err != nil {
		return nil, err
	}

	var items []*types.Item
	err = t.backend.withDB(func(db *sql.DB) error {
		items, err = t.selectItems(ctx, db, where, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Count returns the number of items matching filter. Limit and offset are
// ignored.
func (t *Table) Count(ctx context.Context, filter types.Filter) (int, error) {
	if err := t.authorize(ctx, types.OperationQuery); err != nil {
		return 0, err
	}
	where, _, _, err := t.buildFilter(filter)
	if err != nil {
		return 0, err
	}

	var n int
	err = t.backend.withDB(func(db *sql.DB) error {
		query, args, err := sb.Select("COUNT(*)").From(quote(t.model.name)).Where(where).ToSql()
		if err != nil {
			return err
		}
		return db.QueryRowContext(ctx, query, args...).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", t.list.Name, err)
	}
	return n, nil
}

// withInitialValues returns values completed with the initial value of
// every omitted field.
func (t *Table) withInitialValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(t.list.Fields))
	for i := range t.list.Fields {
		f := &t.list.Fields[i]
		out[f.Name] = f.InitialValue()
	}
	for k, v := range values {
		out[k] = v
	}
	return out
}

// relationWrite is a validated relationship assignment.
type relationWrite struct {
	relation types.Relation
	ids      []string
}

// prepare validates values and converts them into column values and
// relationship writes. All problems are collected into one ValidationError.
func (t *Table) prepare(ctx context.Context, q querier, id string, values map[string]any) (map[string]any, []relationWrite, error) {
	ve := &types.ValidationError{}
	cols := make(map[string]any, len(values))
	var links []relationWrite

	for i := range t.list.Fields {
		f := &t.list.Fields[i]
		v, ok := values[f.Name]
		if !ok {
			continue
		}

		if f.IsRelationship() {
			r := t.relation(f.Name)
			ids, err := relationIDs(f, v)
			if err == nil {
				err = checkTargets(ctx, q, r, ids)
			}
			if err != nil {
				ve.Add(t.list.Name, f.Name, err)
				continue
			}
			links = append(links, relationWrite{relation: r, ids: ids})
			continue
		}

		enc, err := t.backend.encodeValue(f, v)
		if err != nil {
			ve.Add(t.list.Name, f.Name, err)
			continue
		}
		if f.IsIndexed == types.IndexUnique && enc != nil {
			taken, err := t.taken(ctx, q, f.Name, enc, id)
			if err != nil {
				return nil, nil, err
			}
			if taken {
				ve.Add(t.list.Name, f.Name, types.ErrDuplicate)
				continue
			}
		}
		cols[f.Name] = enc
	}

	var unknown []string
	for k := range values {
		if _, ok := t.list.Field(k); !ok {
			unknown = append(unknown, k)
		}
	}
	slices.Sort(unknown)
	for _, k := range unknown {
		ve.Add(t.list.Name, k, types.ErrUnknownField)
	}

	if err := ve.OrNil(); err != nil {
		return nil, nil, err
	}
	return cols, links, nil
}

func (t *Table) relation(field string) types.Relation {
	for _, r := range t.model.relations {
		if r.Field.Name == field {
			return r
		}
	}
	panic(fmt.Sprintf("sqlite: %s.%s is not a relationship", t.list.Name, field))
}

func (t *Table) exists(ctx context.Context, q querier, id string) (bool, error) {
	query, args, err := sb.Select("1").From(quote(t.model.name)).Where(sq.Eq{quote(colID): id}).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = q.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up %s %s: %w", t.list.Name, id, err)
	}
	return true, nil
}

// taken reports whether another item already stores value in column.
func (t *Table) taken(ctx context.Context, q querier, column string, value any, id string) (bool, error) {
	query, args, err := sb.Select("COUNT(*)").From(quote(t.model.name)).
		Where(sq.Eq{quote(column): value}).
		Where(sq.NotEq{quote(colID): id}).
		ToSql()
	if err != nil {
		return false, err
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("checking %s.%s: %w", t.list.Name, column, err)
	}
	return n > 0, nil
}

// buildFilter converts a filter into a WHERE clause plus limit and offset.
func (t *Table) buildFilter(filter types.Filter) (sq.And, uint64, uint64, error) {
	where := sq.And{}
	var limit, offset uint64
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		v := filter[k]
		switch k {
		case types.FilterLimit:
			n, err := toCount(v)
			if err != nil {
				return nil, 0, 0, fmt.Errorf("%w: limit: %v", types.ErrInvalidFilter, err)
			}
			limit = n
		case types.FilterOffset:
			n, err := toCount(v)
			if err != nil {
				return nil, 0, 0, fmt.Errorf("%w: offset: %v", types.ErrInvalidFilter, err)
			}
			offset = n
		case colID:
			s, ok := v.(string)
			if !ok {
				return nil, 0, 0, fmt.Errorf("%w: id wants text, got %T", types.ErrInvalidFilter, v)
			}
			where = append(where, sq.Eq{quote(colID): s})
		default:
			f, ok := t.list.Field(k)
			if !ok || !f.Filterable() || (f.IsRelationship() && !ownsColumn(t.relation(k))) {
				return nil, 0, 0, fmt.Errorf("%w: %s.%s is not filterable", types.ErrInvalidFilter, t.list.Name, k)
			}
			fv, err := filterValue(f, v)
			if err != nil {
				return nil, 0, 0, err
			}
			where = append(where, sq.Eq{quote(k): fv})
		}
	}
	return where, limit, offset, nil
}

// toCount accepts non-negative integers as Go ints, JSON numbers or
// decimal strings.
func toCount(v any) (uint64, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		n = int64(x)
	case string:
		parsed, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	default:
		return 0, fmt.Errorf("want an integer, got %T", v)
	}
	if n < 0 {
		return 0, fmt.Errorf("%d is negative", n)
	}
	return uint64(n), nil
}

// selectItems loads the rows matching where, then their relationships.
func (t *Table) selectItems(ctx context.Context, q querier, where sq.Sqlizer, limit, offset uint64) ([]*types.Item, error) {
	qb := sb.Select(t.columns...).From(quote(t.model.name)).Where(where).OrderBy(quote(colID))
	if offset > 0 && limit == 0 {
		// SQLite only accepts OFFSET after LIMIT.
		limit = math.MaxInt64
	}
	if limit > 0 {
		qb = qb.Limit(limit)
	}
	if offset > 0 {
		qb = qb.Offset(offset)
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", t.list.Name, err)
	}
	var items []*types.Item
	for rows.Next() {
		item, err := t.scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying %s: %w", t.list.Name, err)
	}

	for _, item := range items {
		for _, r := range t.model.relations {
			if ownsColumn(r) {
				continue
			}
			v, err := readRelation(ctx, q, r, item.ID)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", r.Key(), err)
			}
			item.Values[r.Field.Name] = v
		}
	}
	if items == nil {
		items = []*types.Item{}
	}
	return items, nil
}

func (t *Table) scanItem(rows *sql.Rows) (*types.Item, error) {
	raw := make([]any, len(t.model.columns))
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", t.list.Name, err)
	}

	item := types.NewItem(t.list.Name, make(map[string]any, len(t.list.Fields)))
	for i, c := range t.model.columns {
		if c.field == nil {
			item.ID = asString(raw[i])
			continue
		}
		v, err := decodeValue(c.field, raw[i])
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", t.list.Name, item.ID, err)
		}
		item.Values[c.name] = v
	}
	return item, nil
}

func execBuilder(ctx context.Context, q querier, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, query, args...)
	return err
}
