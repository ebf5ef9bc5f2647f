// Package pgstore implements the record store on PostgreSQL through a pgx
// connection pool.
//
// Each logical table is a SQL table with a JSONB document and one lowercased
// shadow column per indexed field. Shadow columns carry text_pattern_ops
// indexes so prefix lookups with LIKE 'abc%' stay index scans under any
// database collation.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/pharmadist/internal/config"
	"github.com/JonMunkholm/pharmadist/internal/core"
	"github.com/JonMunkholm/pharmadist/internal/logging"
)

// Store is a core.Store backed by PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	tables map[string]*Table
}

// Open connects using cfg, verifies the connection and creates the tables
// for defs.
func Open(ctx context.Context, cfg config.StoreConfig, defs []core.TableDefinition) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		logging.FromContext(ctx).Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	s := &Store{pool: pool, tables: make(map[string]*Table, len(defs))}
	for _, def := range defs {
		t := &Table{pool: pool, name: def.Info.Key, indexes: def.Indexes}
		if err := t.migrate(ctx); err != nil {
			pool.Close()
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

// Drop removes every table this store created.
func (s *Store) Drop(ctx context.Context) error {
	for name := range s.tables {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(name))); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Table is one PostgreSQL table.
type Table struct {
	pool    *pgxpool.Pool
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

// likePrefix escapes LIKE metacharacters in p and appends the wildcard.
func likePrefix(p string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(p) + "%"
}

func (t *Table) migrate(ctx context.Context) error {
	cols := []string{"id BIGSERIAL PRIMARY KEY", "data JSONB NOT NULL"}
	for _, f := range t.indexes {
		cols = append(cols, indexColumn(f)+" TEXT")
	}
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdentifier(t.name), strings.Join(cols, ", ")),
	}
	for _, f := range t.indexes {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s text_pattern_ops, id)",
			quoteIdentifier(t.name+"_"+f+"_idx"), quoteIdentifier(t.name), indexColumn(f)))
	}
	for _, stmt := range stmts {
		if _, err := t.pool.Exec(ctx, stmt); err != nil {
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

func (t *Table) collect(rows pgx.Rows) ([]core.Record, error) {
	defer rows.Close()
	var out []core.Record
	for rows.Next() {
		var (
			id   int64
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		var vals core.Values
		if err := json.Unmarshal(data, &vals); err != nil {
			return nil, fmt.Errorf("decode %s %d: %w", t.name, id, err)
		}
		if vals == nil {
			vals = core.Values{}
		}
		out = append(out, core.Record{ID: id, Values: vals})
	}
	return out, rows.Err()
}

func (t *Table) PrefixScan(ctx context.Context, field, prefix string, limit int) ([]core.Record, error) {
	if !t.indexed(field) {
		return nil, fmt.Errorf("%s.%s: %w", t.name, field, core.ErrNotIndexed)
	}
	q := fmt.Sprintf(`SELECT id, data::text FROM %s WHERE %s LIKE $1 ESCAPE '\' LIMIT $2`,
		quoteIdentifier(t.name), indexColumn(field))
	rows, err := t.pool.Query(ctx, q, likePrefix(strings.ToLower(prefix)), limit)
	if err != nil {
		return nil, fmt.Errorf("prefix scan %s.%s: %w", t.name, field, err)
	}
	return t.collect(rows)
}

func (t *Table) OrderedScan(ctx context.Context, field string, limit int) ([]core.Record, error) {
	if !t.indexed(field) {
		return nil, fmt.Errorf("%s.%s: %w", t.name, field, core.ErrNotIndexed)
	}
	col := indexColumn(field)
	q := fmt.Sprintf(`SELECT id, data::text FROM %s WHERE %s IS NOT NULL ORDER BY %s COLLATE "C", id LIMIT $1`,
		quoteIdentifier(t.name), col, col)
	rows, err := t.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("ordered scan %s.%s: %w", t.name, field, err)
	}
	return t.collect(rows)
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
	marks := []string{"$1::jsonb"}
	for i, f := range t.indexes {
		cols = append(cols, indexColumn(f))
		marks = append(marks, fmt.Sprintf("$%d", i+2))
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		quoteIdentifier(t.name), strings.Join(cols, ", "), strings.Join(marks, ", "))

	batch := &pgx.Batch{}
	for _, vals := range rows {
		args, err := t.columnArgs(vals)
		if err != nil {
			return nil, err
		}
		batch.Queue(q, args...)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	ids := make([]int64, len(rows))
	for i := range rows {
		if err := br.QueryRow().Scan(&ids[i]); err != nil {
			br.Close()
			return nil, fmt.Errorf("insert %s row %d: %w", t.name, i+1, err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("insert %s: %w", t.name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

func (t *Table) get(ctx context.Context, q pgx.Tx, id int64, forUpdate bool) (core.Record, error) {
	sql := fmt.Sprintf("SELECT id, data::text FROM %s WHERE id = $1", quoteIdentifier(t.name))
	var row pgx.Row
	if q != nil {
		if forUpdate {
			sql += " FOR UPDATE"
		}
		row = q.QueryRow(ctx, sql, id)
	} else {
		row = t.pool.QueryRow(ctx, sql, id)
	}

	var data []byte
	if err := row.Scan(&id, &data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Record{}, core.ErrNotFound
		}
		return core.Record{}, fmt.Errorf("get %s %d: %w", t.name, id, err)
	}
	var vals core.Values
	if err := json.Unmarshal(data, &vals); err != nil {
		return core.Record{}, fmt.Errorf("decode %s %d: %w", t.name, id, err)
	}
	if vals == nil {
		vals = core.Values{}
	}
	return core.Record{ID: id, Values: vals}, nil
}

func (t *Table) Get(ctx context.Context, id int64) (core.Record, error) {
	return t.get(ctx, nil, id, false)
}

func (t *Table) Update(ctx context.Context, id int64, changes core.Values) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := t.get(ctx, tx, id, true)
	if err != nil {
		return err
	}
	for k, v := range changes {
		rec.Values[k] = v
	}

	sets := []string{"data = $1::jsonb"}
	for i, f := range t.indexes {
		sets = append(sets, fmt.Sprintf("%s = $%d", indexColumn(f), i+2))
	}
	args, err := t.columnArgs(rec.Values)
	if err != nil {
		return err
	}
	args = append(args, id)

	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		quoteIdentifier(t.name), strings.Join(sets, ", "), len(args))
	if _, err := tx.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("update %s %d: %w", t.name, id, err)
	}
	return tx.Commit(ctx)
}

func (t *Table) Delete(ctx context.Context, id int64) error {
	tag, err := t.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", quoteIdentifier(t.name)), id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", t.name, id, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (t *Table) Scan(ctx context.Context, fn func(core.Record) error) error {
	const page = 500
	q := fmt.Sprintf("SELECT id, data::text FROM %s WHERE id > $1 ORDER BY id LIMIT $2", quoteIdentifier(t.name))
	var after int64
	for {
		rows, err := t.pool.Query(ctx, q, after, page)
		if err != nil {
			return fmt.Errorf("scan %s: %w", t.name, err)
		}
		recs, err := t.collect(rows)
		if err != nil {
			return fmt.Errorf("scan %s: %w", t.name, err)
		}
		for _, rec := range recs {
			if err := fn(rec); err != nil {
				return err
			}
		}
		if len(recs) < page {
			return nil
		}
		after = recs[len(recs)-1].ID
	}
}

func (t *Table) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := t.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdentifier(t.name))).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}

// Clear truncates the table. The id sequence continues.
func (t *Table) Clear(ctx context.Context) error {
	if _, err := t.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", quoteIdentifier(t.name))); err != nil {
		return fmt.Errorf("clear %s: %w", t.name, err)
	}
	return nil
}
