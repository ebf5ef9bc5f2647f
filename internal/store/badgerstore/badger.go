// Package badgerstore implements the record store on an embedded Badger
// database. It uses the same key layout as pebblestore:
//
//	t/<table>/seq                              last assigned id
//	t/<table>/r/<id:8 bytes BE>                JSON-encoded values
//	t/<table>/i/<field>/<value>\x00<id:8 BE>   index entry, value lowercased
//
// Every operation runs in a single Badger transaction, so an index lookup
// never sees a record half written.
package badgerstore

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

	badger "github.com/dgraph-io/badger/v4"

	"github.com/JonMunkholm/pharmadist/internal/core"
)

// Store is a core.Store backed by Badger.
type Store struct {
	db     *badger.DB
	tables map[string]*Table

	// mu serializes writers so sequence allocation never conflicts.
	mu sync.Mutex
}

// Open opens (or creates) the database in dir with one table per definition.
func Open(dir string, defs []core.TableDefinition) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir)).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
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

// Close closes the database.
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

func (t *Table) PrefixScan(ctx context.Context, field, prefix string, limit int) ([]core.Record, error) {
	if !t.indexed(field) {
		return nil, fmt.Errorf("%s.%s: %w", t.name, field, core.ErrNotIndexed)
	}
	return t.scanIndex(ctx, append(t.indexPrefix(field), strings.ToLower(prefix)...), limit)
}

func (t *Table) OrderedScan(ctx context.Context, field string, limit int) ([]core.Record, error) {
	if !t.indexed(field) {
		return nil, fmt.Errorf("%s.%s: %w", t.name, field, core.ErrNotIndexed)
	}
	return t.scanIndex(ctx, t.indexPrefix(field), limit)
}

// scanIndex resolves up to limit index entries under prefix to records.
func (t *Table) scanIndex(ctx context.Context, prefix []byte, limit int) ([]core.Record, error) {
	var out []core.Record
	err := t.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()
			if len(key) < 8 {
				continue
			}
			id := int64(binary.BigEndian.Uint64(key[len(key)-8:]))
			rec, err := t.get(txn, id)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
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

	ids := make([]int64, len(rows))
	err := t.store.db.Update(func(txn *badger.Txn) error {
		seq, err := t.lastID(txn)
		if err != nil {
			return err
		}
		for i, row := range rows {
			seq++
			ids[i] = seq
			if err := t.put(txn, seq, row); err != nil {
				return err
			}
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(seq))
		return txn.Set(t.seqKey(), buf[:])
	})
	if err != nil {
		return nil, fmt.Errorf("badger insert %s: %w", t.name, err)
	}
	return ids, nil
}

func (t *Table) lastID(txn *badger.Txn) (int64, error) {
	item, err := txn.Get(t.seqKey())
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read sequence: %w", err)
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return 0, fmt.Errorf("read sequence: %w", err)
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("corrupt sequence for %s", t.name)
	}
	return int64(binary.BigEndian.Uint64(v)), nil
}

// put writes a record and its index entries.
func (t *Table) put(txn *badger.Txn, id int64, vals core.Values) error {
	data, err := json.Marshal(vals)
	if err != nil {
		return fmt.Errorf("encode %s %d: %w", t.name, id, err)
	}
	if err := txn.Set(t.recordKey(id), data); err != nil {
		return err
	}
	for _, field := range t.indexes {
		if v, ok := core.IndexValue(vals[field]); ok {
			if err := txn.Set(t.indexKey(field, v, id), nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// unindex deletes the index entries of vals.
func (t *Table) unindex(txn *badger.Txn, id int64, vals core.Values) error {
	for _, field := range t.indexes {
		if v, ok := core.IndexValue(vals[field]); ok {
			if err := txn.Delete(t.indexKey(field, v, id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Table) get(txn *badger.Txn, id int64) (core.Record, error) {
	item, err := txn.Get(t.recordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return core.Record{}, core.ErrNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("badger get: %w", err)
	}

	var vals core.Values
	err = item.Value(func(v []byte) error {
		vals, err = decode(v)
		return err
	})
	if err != nil {
		return core.Record{}, fmt.Errorf("decode %s %d: %w", t.name, id, err)
	}
	return core.Record{ID: id, Values: vals}, nil
}

func (t *Table) Get(ctx context.Context, id int64) (core.Record, error) {
	var rec core.Record
	err := t.store.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = t.get(txn, id)
		return err
	})
	return rec, err
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

	return t.store.db.Update(func(txn *badger.Txn) error {
		rec, err := t.get(txn, id)
		if err != nil {
			return err
		}
		if err := t.unindex(txn, id, rec.Values); err != nil {
			return err
		}
		merged := rec.Values
		for k, v := range changes {
			merged[k] = v
		}
		return t.put(txn, id, merged)
	})
}

func (t *Table) Delete(ctx context.Context, id int64) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	return t.store.db.Update(func(txn *badger.Txn) error {
		rec, err := t.get(txn, id)
		if err != nil {
			return err
		}
		if err := t.unindex(txn, id, rec.Values); err != nil {
			return err
		}
		return txn.Delete(t.recordKey(id))
	})
}

func (t *Table) Scan(ctx context.Context, fn func(core.Record) error) error {
	prefix := t.recordPrefix()
	return t.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := item.Key()
			id := int64(binary.BigEndian.Uint64(key[len(key)-8:]))

			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			vals, err := decode(data)
			if err != nil {
				return fmt.Errorf("decode %s %d: %w", t.name, id, err)
			}
			if err := fn(core.Record{ID: id, Values: vals}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *Table) Count(ctx context.Context) (int64, error) {
	prefix := t.recordPrefix()
	var n int64
	err := t.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Clear drops all records and index entries. The sequence is kept so ids
// are never reused.
func (t *Table) Clear(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if err := t.store.db.DropPrefix(t.recordPrefix(), t.indexRoot()); err != nil {
		return fmt.Errorf("badger clear %s: %w", t.name, err)
	}
	return nil
}
