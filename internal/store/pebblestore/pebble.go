// Package pebblestore implements the record store on an embedded Pebble
// key-value database.
//
// Key layout per table:
//
//	t/<table>/seq                              last assigned id
//	t/<table>/r/<id:8 bytes BE>                JSON-encoded values
//	t/<table>/i/<field>/<value>\x00<id:8 BE>   index entry, value lowercased
//
// The \x00 separator sorts a value before any longer value it prefixes, so
// index iteration yields field order with ties broken by id.
package pebblestore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/JonMunkholm/pharmadist/internal/core"
)

// Store is a core.Store backed by Pebble.
type Store struct {
	db     *pebble.DB
	tables map[string]*Table

	// mu serializes writers; the sequence and index maintenance are
	// read-modify-write.
	mu sync.Mutex
}

// Open opens (or creates) the database in dir with one table per definition.
func Open(dir string, defs []core.TableDefinition) (*Store, error) {
	opts := &pebble.Options{
		MemTableSize:          64 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}

	s := &Store{db: db, tables: make(map[string]*Table, len(defs))}
	for _, def := range defs {
		s.tables[def.Info.Key] = &Table{
			store:   s,
			name:    def.Info.Key,
			indexes: def.Indexes,
			prefix:  []byte("t/" + def.Info.Key + "/"),
		}
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

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Table is one logical table inside the shared keyspace.
type Table struct {
	store   *Store
	name    string
	indexes []string
	prefix  []byte
}

func (t *Table) Name() string { return t.name }

func (t *Table) seqKey() []byte {
	return append(bytes.Clone(t.prefix), "seq"...)
}

func (t *Table) recordPrefix() []byte {
	return append(bytes.Clone(t.prefix), "r/"...)
}

func (t *Table) recordKey(id int64) []byte {
	return binary.BigEndian.AppendUint64(t.recordPrefix(), uint64(id))
}

func (t *Table) indexRoot() []byte {
	return append(bytes.Clone(t.prefix), "i/"...)
}

func (t *Table) indexPrefix(field string) []byte {
	return append(append(t.indexRoot(), field...), '/')
}

func (t *Table) indexKey(field, value string, id int64) []byte {
	k := append(t.indexPrefix(field), value...)
	k = append(k, 0)
	return binary.BigEndian.AppendUint64(k, uint64(id))
}

func (t *Table) indexed(field string) bool {
	for _, f := range t.indexes {
		if f == field {
			return true
		}
	}
	return false
}

// upperBound returns the smallest key greater than every key with prefix p.
func upperBound(p []byte) []byte {
	end := bytes.Clone(p)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (t *Table) PrefixScan(ctx context.Context, field, prefix string, limit int) ([]core.Record, error) {
	if !t.indexed(field) {
		return nil, fmt.Errorf("%s.%s: %w", t.name, field, core.ErrNotIndexed)
	}
	lower := append(t.indexPrefix(field), strings.ToLower(prefix)...)
	return t.scanIndex(ctx, lower, upperBound(lower), limit)
}

func (t *Table) OrderedScan(ctx context.Context, field string, limit int) ([]core.Record, error) {
	if !t.indexed(field) {
		return nil, fmt.Errorf("%s.%s: %w", t.name, field, core.ErrNotIndexed)
	}
	lower := t.indexPrefix(field)
	return t.scanIndex(ctx, lower, upperBound(lower), limit)
}

func (t *Table) scanIndex(ctx context.Context, lower, upper []byte, limit int) ([]core.Record, error) {
	it, err := t.store.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()

	var out []core.Record
	for it.First(); it.Valid() && len(out) < limit; it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := it.Key()
		if len(key) < 8 {
			continue
		}
		id := int64(binary.BigEndian.Uint64(key[len(key)-8:]))
		rec, err := t.Get(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	return out, nil
}

func (t *Table) BulkInsert(ctx context.Context, rows []core.Values) ([]int64, error) {
	if len(rows) == 0 {
		return []int64{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	seq, err := t.lastID()
	if err != nil {
		return nil, err
	}

	b := t.store.db.NewBatch()
	defer b.Close()

	ids := make([]int64, len(rows))
	for i, row := range rows {
		seq++
		ids[i] = seq
		if err := t.put(b, seq, row); err != nil {
			return nil, err
		}
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(seq))
	if err := b.Set(t.seqKey(), buf[:], nil); err != nil {
		return nil, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("pebble commit: %w", err)
	}
	return ids, nil
}

func (t *Table) lastID() (int64, error) {
	v, closer, err := t.store.db.Get(t.seqKey())
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read sequence: %w", err)
	}
	defer closer.Close()
	if len(v) != 8 {
		return 0, fmt.Errorf("corrupt sequence for %s", t.name)
	}
	return int64(binary.BigEndian.Uint64(v)), nil
}

// put writes a record and its index entries into b.
func (t *Table) put(b *pebble.Batch, id int64, vals core.Values) error {
	data, err := json.Marshal(vals)
	if err != nil {
		return fmt.Errorf("encode %s %d: %w", t.name, id, err)
	}
	if err := b.Set(t.recordKey(id), data, nil); err != nil {
		return err
	}
	for _, field := range t.indexes {
		if v, ok := core.IndexValue(vals[field]); ok {
			if err := b.Set(t.indexKey(field, v, id), nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// unindex deletes the index entries of vals from b.
func (t *Table) unindex(b *pebble.Batch, id int64, vals core.Values) error {
	for _, field := range t.indexes {
		if v, ok := core.IndexValue(vals[field]); ok {
			if err := b.Delete(t.indexKey(field, v, id), nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Table) Get(ctx context.Context, id int64) (core.Record, error) {
	v, closer, err := t.store.db.Get(t.recordKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return core.Record{}, core.ErrNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()

	vals, err := decode(v)
	if err != nil {
		return core.Record{}, fmt.Errorf("decode %s %d: %w", t.name, id, err)
	}
	return core.Record{ID: id, Values: vals}, nil
}

func decode(data []byte) (core.Values, error) {
	var vals core.Values
	if err := json.Unmarshal(data, &vals); err != nil {
		return nil, err
	}
	if vals == nil {
		vals = core.Values{}
	}
	return vals, nil
}

func (t *Table) Update(ctx context.Context, id int64, changes core.Values) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	rec, err := t.Get(ctx, id)
	if err != nil {
		return err
	}

	b := t.store.db.NewBatch()
	defer b.Close()

	if err := t.unindex(b, id, rec.Values); err != nil {
		return err
	}
	merged := rec.Values
	for k, v := range changes {
		merged[k] = v
	}
	if err := t.put(b, id, merged); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (t *Table) Delete(ctx context.Context, id int64) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	rec, err := t.Get(ctx, id)
	if err != nil {
		return err
	}

	b := t.store.db.NewBatch()
	defer b.Close()

	if err := t.unindex(b, id, rec.Values); err != nil {
		return err
	}
	if err := b.Delete(t.recordKey(id), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (t *Table) Scan(ctx context.Context, fn func(core.Record) error) error {
	lower := t.recordPrefix()
	it, err := t.store.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upperBound(lower)})
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := it.Key()
		id := int64(binary.BigEndian.Uint64(key[len(key)-8:]))
		vals, err := decode(it.Value())
		if err != nil {
			return fmt.Errorf("decode %s %d: %w", t.name, id, err)
		}
		if err := fn(core.Record{ID: id, Values: vals}); err != nil {
			return err
		}
	}
	return it.Error()
}

func (t *Table) Count(ctx context.Context) (int64, error) {
	lower := t.recordPrefix()
	it, err := t.store.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upperBound(lower)})
	if err != nil {
		return 0, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()

	var n int64
	for it.First(); it.Valid(); it.Next() {
		n++
	}
	return n, it.Error()
}

// Clear drops all records and index entries. The sequence is kept so ids
// are never reused.
func (t *Table) Clear(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	b := t.store.db.NewBatch()
	defer b.Close()

	for _, p := range [][]byte{t.recordPrefix(), t.indexRoot()} {
		if err := b.DeleteRange(p, upperBound(p), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}
