// Package sqlstore implements the record store on SQLite through sqlx.
//
// Two drivers are supported: "sqlite" (modernc.org/sqlite, pure Go) and
// "sqlite3" (mattn/go-sqlite3, cgo). Each logical table becomes one SQL
// table holding the JSON document plus one lowercased shadow column per
// indexed field:
//
//	CREATE TABLE products (
//	    id   INTEGER PRIMARY KEY AUTOINCREMENT,
//	    data TEXT NOT NULL,
//	    "idx_name" TEXT, "idx_batch" TEXT, ...
//	)
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/pharmadist/internal/core"
)

// scanPage is how many rows Scan reads per query.
const scanPage = 500

// Store is a core.Store backed by SQLite.
type Store struct {
	db     *sqlx.DB
	tables map[string]*Table
}

// Open opens the database file at path with driver "sqlite" or "sqlite3" and
// creates the tables and indexes for defs.
func Open(ctx context.Context, driver, path string, defs []core.TableDefinition) (*Store, error) {
	var dsn string
	switch driver {
	case "sqlite":
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	case "sqlite3":
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	// SQLite allows one writer; a single connection avoids lock errors.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{db: db, tables: make(map[string]*Table, len(defs))}
	for _, def := range defs {
		t := &Table{db: db, name: def.Info.Key, indexes: def.Indexes}
		if err := t.migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		s.tables[def.Info.Key] = t
	}
	return s, nil
}

// Table returns the named table.
func (s *Store) Table(name string) (core.Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownTable, name)
	}
	return t, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Table is one SQL table.
type Table struct {
	db      *sqlx.DB
	name    string
	indexes []string
}

// quoteIdentifier escapes a SQL identifier by wrapping in double quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func indexColumn(field string) string {
	return quoteIdentifier("idx_" + field)
}

func (t *Table) migrate(ctx context.Context) error {
	cols := []string{"id INTEGER PRIMARY KEY AUTOINCREMENT", "data TEXT NOT NULL"}
	for _, f := range t.indexes {
		cols = append(cols, indexColumn(f)+" TEXT")
	}
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdentifier(t.name), strings.Join(cols, ", ")),
	}
	for _, f := range t.indexes {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s, id)",
			quoteIdentifier(t.name+"_"+f+"_idx"), quoteIdentifier(t.name), indexColumn(f)))
	}
	for _, stmt := range stmts {
		if _, err := t.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", t.name, err)
		}
	}
	return nil
}

func (t *Table) Name() string { return t.name }

func (t *Table) indexed(field string) bool {
	for _, f := range t.indexes {
		if f == field {
			return true
		}
	}
	return false
}

type row struct {
	ID   int64  `db:"id"`
	Data string `db:"data"`
}

func (t *Table) toRecords(rows []row) ([]core.Record, error) {
	out := make([]core.Record, len(rows))
	for i, r := range rows {
		var vals core.Values
		if err := json.Unmarshal([]byte(r.Data), &vals); err != nil {
			return nil, fmt.Errorf("decode %s %d: %w", t.name, r.ID, err)
		}
		if vals == nil {
			vals = core.Values{}
		}
		out[i] = core.Record{ID: r.ID, Values: vals}
	}
	return out, nil
}

// upperBound returns the smallest string greater than every string with
// prefix p under byte-wise comparison, or "" when there is none.
func upperBound(p string) string {
	b := []byte(p)
	for i := len(b) - 1; i >= 0; i-- {
		b[i]++
		if b[i] != 0 {
			return string(b[:i+1])
		}
	}
	return ""
}

func (t *Table) PrefixScan(ctx context.Context, field, prefix string, limit int) ([]core.Record, error) {
	if !t.indexed(field) {
		return nil, fmt.Errorf("%s.%s: %w", t.name, field, core.ErrNotIndexed)
	}
	col := indexColumn(field)
	lower := strings.ToLower(prefix)

	var (
		q    string
		args []any
	)
	if upper := upperBound(lower); upper != "" {
		q = fmt.Sprintf("SELECT id, data FROM %s WHERE %s >= ? AND %s < ? LIMIT ?", quoteIdentifier(t.name), col, col)
		args = []any{lower, upper, limit}
	} else {
		q = fmt.Sprintf("SELECT id, data FROM %s WHERE %s >= ? LIMIT ?", quoteIdentifier(t.name), col)
		args = []any{lower, limit}
	}

	var rows []row
	if err := t.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("prefix scan %s.%s: %w", t.name, field, err)
	}
	return t.toRecords(rows)
}

func (t *Table) OrderedScan(ctx context.Context, field string, limit int) ([]core.Record, error) {
	if !t.indexed(field) {
		return nil, fmt.Errorf("%s.%s: %w", t.name, field, core.ErrNotIndexed)
	}
	col := indexColumn(field)
	q := fmt.Sprintf("SELECT id, data FROM %s WHERE %s IS NOT NULL ORDER BY %s, id LIMIT ?",
		quoteIdentifier(t.name), col, col)

	var rows []row
	if err := t.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, fmt.Errorf("ordered scan %s.%s: %w", t.name, field, err)
	}
	return t.toRecords(rows)
}

// columnArgs returns the document and shadow column values for vals.
func (t *Table) columnArgs(vals core.Values) ([]any, error) {
	data, err := json.Marshal(vals)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t.name, err)
	}
	args := []any{string(data)}
	for _, f := range t.indexes {
		if v, ok := core.IndexValue(vals[f]); ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	return args, nil
}

func (t *Table) BulkInsert(ctx context.Context, rows []core.Values) ([]int64, error) {
	if len(rows) == 0 {
		return []int64{}, nil
	}

	cols := []string{"data"}
	marks := []string{"?"}
	for _, f := range t.indexes {
		cols = append(cols, indexColumn(f))
		marks = append(marks, "?")
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(t.name), strings.Join(cols, ", "), strings.Join(marks, ", "))

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("prepare insert %s: %w", t.name, err)
	}
	defer stmt.Close()

	ids := make([]int64, len(rows))
	for i, vals := range rows {
		args, err := t.columnArgs(vals)
		if err != nil {
			return nil, err
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return nil, fmt.Errorf("insert %s row %d: %w", t.name, i+1, err)
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

func (t *Table) get(ctx context.Context, q sqlx.QueryerContext, id int64) (core.Record, error) {
	var r row
	err := sqlx.GetContext(ctx, q, &r, fmt.Sprintf("SELECT id, data FROM %s WHERE id = ?", quoteIdentifier(t.name)), id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.ErrNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("get %s %d: %w", t.name, id, err)
	}
	recs, err := t.toRecords([]row{r})
	if err != nil {
		return core.Record{}, err
	}
	return recs[0], nil
}

func (t *Table) Get(ctx context.Context, id int64) (core.Record, error) {
	return t.get(ctx, t.db, id)
}

func (t *Table) Update(ctx context.Context, id int64, changes core.Values) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	rec, err := t.get(ctx, tx, id)
	if err != nil {
		return err
	}
	for k, v := range changes {
		rec.Values[k] = v
	}

	sets := []string{"data = ?"}
	for _, f := range t.indexes {
		sets = append(sets, indexColumn(f)+" = ?")
	}
	args, err := t.columnArgs(rec.Values)
	if err != nil {
		return err
	}
	args = append(args, id)

	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", quoteIdentifier(t.name), strings.Join(sets, ", "))
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("update %s %d: %w", t.name, id, err)
	}
	return tx.Commit()
}

func (t *Table) Delete(ctx context.Context, id int64) error {
	res, err := t.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", quoteIdentifier(t.name)), id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", t.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Scan reads in id-ordered pages so fn never runs while a cursor is open.
func (t *Table) Scan(ctx context.Context, fn func(core.Record) error) error {
	q := fmt.Sprintf("SELECT id, data FROM %s WHERE id > ? ORDER BY id LIMIT ?", quoteIdentifier(t.name))
	var after int64
	for {
		var rows []row
		if err := t.db.SelectContext(ctx, &rows, q, after, scanPage); err != nil {
			return fmt.Errorf("scan %s: %w", t.name, err)
		}
		recs, err := t.toRecords(rows)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if err := fn(rec); err != nil {
				return err
			}
		}
		if len(rows) < scanPage {
			return nil
		}
		after = rows[len(rows)-1].ID
	}
}

func (t *Table) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := t.db.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdentifier(t.name))); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}

// Clear deletes every row. AUTOINCREMENT keeps ids from being reused.
func (t *Table) Clear(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", quoteIdentifier(t.name))); err != nil {
		return fmt.Errorf("clear %s: %w", t.name, err)
	}
	return nil
}
