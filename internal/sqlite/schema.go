// Package sqlite implements the SQLite storage backend for shelf.
// The storage schema is derived from the content declaration: one table per
// list, foreign key columns for single-valued relationships, and join tables
// for many-to-many relationships.
package sqlite

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Column and table names used by join and session tables.
const (
	colID        = "id"
	joinColA     = "A"
	joinColB     = "B"
	sessionTable = "_session"
)

// column describes one stored column of a generated table.
type column struct {
	name  string
	ddl   string       // column definition after the quoted name
	field *types.Field // nil for id and join columns
}

// tableModel describes one generated table. Tables are listed in the order
// they are created and loaded.
type tableModel struct {
	name      string
	list      *types.List // nil for join tables
	columns   []column
	indexes   []string
	relations []types.Relation
}

// columnNames returns the column names in declaration order.
func (m tableModel) columnNames() []string {
	names := make([]string, len(m.columns))
	for i, c := range m.columns {
		names[i] = c.name
	}
	return names
}

// quote returns a double-quoted SQL identifier.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// buildModels derives the storage tables from the schema: list tables first
// (in declaration order), then join tables.
func buildModels(s *types.Schema) ([]tableModel, error) {
	var lists, joins []tableModel
	for _, l := range s.Lists() {
		m := tableModel{
			name:    l.Name,
			list:    l,
			columns: []column{{name: colID, ddl: "TEXT PRIMARY KEY"}},
		}
		for i := range l.Fields {
			f := &l.Fields[i]
			def, ok, err := columnDDL(s, l, f)
			if err != nil {
				return nil, err
			}
			if !f.IsRelationship() {
				if ok {
					m.columns = append(m.columns, column{name: f.Name, ddl: def, field: f})
					if f.IsIndexed != types.IndexNone {
						m.indexes = append(m.indexes, indexDDL(l.Name, f.Name, f.IsIndexed == types.IndexUnique))
					}
				}
				continue
			}

			r, err := s.Relation(l.Name, f.Name)
			if err != nil {
				return nil, err
			}
			m.relations = append(m.relations, r)
			if ok {
				// Foreign key columns are always indexed; one-to-one keys are unique.
				m.columns = append(m.columns, column{name: f.Name, ddl: def, field: f})
				m.indexes = append(m.indexes, indexDDL(l.Name, f.Name, r.Kind == types.OneToOne))
			}
			if r.Kind == types.ManyToMany && r.Owner {
				joins = append(joins, joinModel(r))
			}
		}
		lists = append(lists, m)
	}
	return append(lists, joins...), nil
}

// columnDDL returns the column definition of a field, and false when the
// field is not stored in its own list table.
func columnDDL(s *types.Schema, l *types.List, f *types.Field) (string, bool, error) {
	switch f.Type {
	case types.FieldText:
		return "TEXT NOT NULL DEFAULT ''", true, nil
	case types.FieldPassword, types.FieldSelect, types.FieldTimestamp:
		return "TEXT", true, nil
	case types.FieldCheckbox:
		return "INTEGER NOT NULL DEFAULT 0", true, nil
	case types.FieldDocument:
		return "TEXT NOT NULL DEFAULT '[]'", true, nil
	case types.FieldRelationship:
		r, err := s.Relation(l.Name, f.Name)
		if err != nil {
			return "", false, err
		}
		if ownsColumn(r) {
			return fmt.Sprintf("TEXT REFERENCES %s(%s)", quote(r.Other.Name), quote(colID)), true, nil
		}
		return "", false, nil
	default:
		return "", false, fmt.Errorf("%w: %s.%s has unknown type %q", types.ErrInvalidSchema, l.Name, f.Name, f.Type)
	}
}

// ownsColumn reports whether the relation is stored as a foreign key column
// on this side.
func ownsColumn(r types.Relation) bool {
	return r.Owner && (r.Kind == types.ManyToOne || r.Kind == types.OneToOne)
}

// indexDDL returns the CREATE INDEX statement for one column.
func indexDDL(table, col string, unique bool) string {
	kind, suffix := "INDEX", "idx"
	if unique {
		kind, suffix = "UNIQUE INDEX", "key"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s(%s);",
		kind, quote(table+"_"+col+"_"+suffix), quote(table), quote(col))
}

// joinModel describes the join table of an owned many-to-many relation.
func joinModel(r types.Relation) tableModel {
	name := r.JoinTable()
	return tableModel{
		name: name,
		columns: []column{
			{name: joinColA, ddl: fmt.Sprintf("TEXT NOT NULL REFERENCES %s(%s)", quote(r.List.Name), quote(colID))},
			{name: joinColB, ddl: fmt.Sprintf("TEXT NOT NULL REFERENCES %s(%s)", quote(r.Other.Name), quote(colID))},
		},
		indexes: []string{
			fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s(%s, %s);",
				quote(name+"_AB_unique"), quote(name), quote(joinColA), quote(joinColB)),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s);",
				quote(name+"_B_index"), quote(name), quote(joinColB)),
		},
	}
}

// createTableDDL renders the CREATE TABLE statement of a model.
func createTableDDL(m tableModel) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quote(m.name))
	for i, c := range m.columns {
		fmt.Fprintf(&b, "    %s %s", quote(c.name), c.ddl)
		if i < len(m.columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")
	return b.String()
}

// Session table DDL. Sessions reference items of the list that
// authenticates, so no foreign key is declared.
const (
	createSessions = `CREATE TABLE IF NOT EXISTS "_session" (
    "token" TEXT PRIMARY KEY,
    "list" TEXT NOT NULL,
    "item_id" TEXT NOT NULL,
    "created_at" TEXT NOT NULL,
    "expires_at" TEXT NOT NULL
);`

	idxSessionsItem = `CREATE INDEX IF NOT EXISTS "_session_item_idx" ON "_session"("list", "item_id");`
)

// SchemaDDL returns the statements that create the storage schema for s:
// all CREATE TABLE statements in dependency order, followed by indexes.
func SchemaDDL(s *types.Schema) ([]string, error) {
	models, err := buildModels(s)
	if err != nil {
		return nil, err
	}
	stmts := make([]string, 0, len(models)*2+2)
	for _, m := range models {
		stmts = append(stmts, createTableDDL(m))
	}
	stmts = append(stmts, createSessions)
	for _, m := range models {
		stmts = append(stmts, m.indexes...)
	}
	stmts = append(stmts, idxSessionsItem)
	return stmts, nil
}
