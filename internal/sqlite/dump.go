package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/shelf/internal/logging"
)

// ImportStats reports the outcome of loading one JSONL file.
type ImportStats struct {
	Table    string `json:"table"`
	FileName string `json:"file"`
	Loaded   int    `json:"loaded"`
	Skipped  int    `json:"skipped"`
	Missing  bool   `json:"missing,omitempty"`
}

// dumpFile returns the JSONL file name of a table.
func dumpFile(table string) string {
	return table + ".jsonl"
}

// Export writes every list table and join table to <dir>/<table>.jsonl, one
// JSON object per row keyed by column name. Password hashes are exported
// as stored. Access rules are not applied.
func (b *Backend) Export(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}

	return b.withDB(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning export transaction: %w", err)
		}
		defer tx.Rollback()

		for _, m := range b.models {
			records, err := exportTable(ctx, tx, m)
			if err != nil {
				return fmt.Errorf("exporting %s: %w", m.name, err)
			}
			if err := writeJSONL(filepath.Join(dir, dumpFile(m.name)), records); err != nil {
				return fmt.Errorf("writing %s: %w", dumpFile(m.name), err)
			}
			logging.Debug().Str("table", m.name).Int("rows", len(records)).Msg("exported")
		}
		return nil
	})
}

func exportTable(ctx context.Context, q querier, m tableModel) ([]json.RawMessage, error) {
	names := m.columnNames()
	cols := make([]string, len(names))
	for i, n := range names {
		cols[i] = quote(n)
	}
	query, args, err := sb.Select(cols...).From(quote(m.name)).OrderBy(cols...).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []json.RawMessage{}
	for rows.Next() {
		raw := make([]any, len(names))
		dest := make([]any, len(names))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		obj := make(map[string]any, len(names))
		for i, n := range names {
			if bs, ok := raw[i].([]byte); ok {
				raw[i] = string(bs)
			}
			obj[n] = raw[i]
		}
		rec, err := json.Marshal(obj)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Import loads <dir>/<table>.jsonl files written by Export, replacing rows
// with the same key. Tables load in dependency order inside one
// transaction, so foreign keys are checked row by row. Unknown keys are ignored;
// malformed lines and rows that violate constraints are skipped and
// counted. A missing file leaves its table untouched.
func (b *Backend) Import(ctx context.Context, dir string) ([]ImportStats, error) {
	var stats []ImportStats
	err := b.inTx(ctx, func(tx *sql.Tx) error {
		for _, m := range loadOrder(b.models) {
			st := ImportStats{Table: m.name, FileName: dumpFile(m.name)}
			records, skipped, err := readJSONL(filepath.Join(dir, st.FileName))
			if errors.Is(err, os.ErrNotExist) {
				st.Missing = true
				stats = append(stats, st)
				continue
			}
			if err != nil {
				return err
			}
			st.Skipped = skipped
			loaded, rejected, err := insertRecords(ctx, tx, m, records)
			if err != nil {
				return fmt.Errorf("loading %s: %w", st.FileName, err)
			}
			st.Loaded = loaded
			st.Skipped += rejected
			stats = append(stats, st)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// loadOrder returns the models with every list table after the lists its
// foreign keys point at, keeping declaration order otherwise. Lists caught
// in a cycle keep their declaration order. Join tables come last.
func loadOrder(models []tableModel) []tableModel {
	var lists, joins []tableModel
	deps := make(map[string][]string)
	for _, m := range models {
		if m.list == nil {
			joins = append(joins, m)
			continue
		}
		lists = append(lists, m)
		for _, r := range m.relations {
			if ownsColumn(r) && r.Other.Name != m.name {
				deps[m.name] = append(deps[m.name], r.Other.Name)
			}
		}
	}

	done := make(map[string]bool)
	out := make([]tableModel, 0, len(models))
	for len(out) < len(lists) {
		progress := false
		for _, m := range lists {
			if done[m.name] || !allDone(deps[m.name], done) {
				continue
			}
			out = append(out, m)
			done[m.name] = true
			progress = true
		}
		if !progress {
			for _, m := range lists {
				if !done[m.name] {
					out = append(out, m)
					done[m.name] = true
				}
			}
		}
	}
	return append(out, joins...)
}

func allDone(names []string, done map[string]bool) bool {
	for _, n := range names {
		if !done[n] {
			return false
		}
	}
	return true
}

// insertRecords inserts records into a table. Only the table's columns are
// read from each record; absent columns take their column default. A row
// whose key already exists is updated in place; any other constraint
// violation rejects the row.
func insertRecords(ctx context.Context, tx *sql.Tx, m tableModel, records []json.RawMessage) (int, int, error) {
	loaded, rejected := 0, 0
	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			rejected++
			continue
		}

		if m.list != nil {
			if id, _ := obj[colID].(string); id == "" {
				rejected++
				continue
			}
		}

		ins := sb.Insert(quote(m.name))
		var vals []any
		var updates []string
		for _, n := range m.columnNames() {
			v, ok := obj[n]
			if !ok {
				continue
			}
			switch x := v.(type) {
			case map[string]any, []any:
				// Document columns are stored as JSON text.
				data, err := json.Marshal(x)
				if err != nil {
					return loaded, rejected, err
				}
				v = string(data)
			}
			ins = ins.Columns(quote(n))
			vals = append(vals, v)
			if n != colID {
				updates = append(updates, fmt.Sprintf("%s = excluded.%s", quote(n), quote(n)))
			}
		}
		if len(vals) == 0 {
			rejected++
			continue
		}
		ins = ins.Values(vals...).Suffix(upsertClause(m, updates))

		// A savepoint keeps a rejected row from aborting the transaction.
		if _, err := tx.ExecContext(ctx, "SAVEPOINT import_row"); err != nil {
			return loaded, rejected, err
		}
		if err := execBuilder(ctx, tx, ins); err != nil {
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO import_row"); rbErr != nil {
				return loaded, rejected, rbErr
			}
			rejected++
		} else {
			loaded++
		}
		if _, err := tx.ExecContext(ctx, "RELEASE import_row"); err != nil {
			return loaded, rejected, err
		}
	}
	return loaded, rejected, nil
}

// upsertClause resolves key conflicts only: list rows are updated by id and
// duplicate join rows are ignored. Other unique constraints still fail.
func upsertClause(m tableModel, updates []string) string {
	if m.list == nil {
		return fmt.Sprintf("ON CONFLICT (%s, %s) DO NOTHING", quote(joinColA), quote(joinColB))
	}
	if len(updates) == 0 {
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", quote(colID))
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", quote(colID), strings.Join(updates, ", "))
}
