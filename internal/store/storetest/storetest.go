// Package storetest is a conformance suite every core.Store backend runs in
// its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/pharmadist/internal/core"
)

// Items is the table definition the suite opens stores with.
var Items = core.TableDefinition{
	Info:         core.TableInfo{Key: "items", Label: "Items"},
	Indexes:      []string{"name", "batch"},
	SearchFields: []string{"name", "batch"},
}

// Opener returns a fresh, empty store for defs. It should register cleanup
// with t.
type Opener func(t *testing.T, defs []core.TableDefinition) core.Store

// Run exercises the core.Table contract against a backend.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, tbl core.Table)
	}{
		{"BulkInsertAssignsIDs", testBulkInsert},
		{"PrefixScanIgnoresCase", testPrefixScan},
		{"PrefixScanSkipsAbsentField", testPrefixScanAbsent},
		{"PrefixScanRespectsLimit", testPrefixScanLimit},
		{"OrderedScan", testOrderedScan},
		{"UnindexedField", testUnindexed},
		{"GetUpdateDelete", testGetUpdateDelete},
		{"UpdateMovesIndexEntry", testUpdateReindexes},
		{"ScanAndCount", testScanCount},
		{"ClearKeepsSequence", testClear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t, []core.TableDefinition{Items})
			tbl, err := s.Table(Items.Info.Key)
			if err != nil {
				t.Fatalf("Table(%q) error = %v", Items.Info.Key, err)
			}
			tt.fn(t, tbl)
		})
	}

	t.Run("UnknownTable", func(t *testing.T) {
		s := open(t, []core.TableDefinition{Items})
		if _, err := s.Table("nope"); !errors.Is(err, core.ErrUnknownTable) {
			t.Errorf("Table(nope) error = %v, want ErrUnknownTable", err)
		}
	})
}

func insert(t *testing.T, tbl core.Table, rows ...core.Values) []int64 {
	t.Helper()
	ids, err := tbl.BulkInsert(context.Background(), rows)
	if err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}
	if len(ids) != len(rows) {
		t.Fatalf("BulkInsert() returned %d ids for %d rows", len(ids), len(rows))
	}
	return ids
}

func names(recs []core.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Text("name")
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testBulkInsert(t *testing.T, tbl core.Table) {
	ids := insert(t, tbl,
		core.Values{"name": "Paracetamol", "batch": "B1", "stock": 10.0},
		core.Values{"name": "Panadol", "batch": "B2"},
	)
	if ids[0] <= 0 || ids[1] <= ids[0] {
		t.Errorf("ids = %v, want positive and increasing", ids)
	}

	rec, err := tbl.Get(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Text("name") != "Paracetamol" {
		t.Errorf("name = %q, want Paracetamol", rec.Text("name"))
	}
	if stock, _ := core.ParseNumber(rec.Values["stock"]); stock != 10 {
		t.Errorf("stock = %v, want 10", rec.Values["stock"])
	}

	empty, err := tbl.BulkInsert(context.Background(), nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("BulkInsert(nil) = %v, %v; want empty, nil", empty, err)
	}
}

func testPrefixScan(t *testing.T, tbl core.Table) {
	insert(t, tbl,
		core.Values{"name": "Paracetamol", "batch": "B1"},
		core.Values{"name": "Panadol", "batch": "B2"},
		core.Values{"name": "PARA-X", "batch": "c3"},
	)

	got, err := tbl.PrefixScan(context.Background(), "name", "PaRa", 10)
	if err != nil {
		t.Fatalf("PrefixScan() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("PrefixScan(para) = %v, want 2 records", names(got))
	}
	for _, r := range got {
		if n := r.Text("name"); n != "Paracetamol" && n != "PARA-X" {
			t.Errorf("unexpected match %q", n)
		}
	}

	got, err = tbl.PrefixScan(context.Background(), "batch", "C", 10)
	if err != nil {
		t.Fatalf("PrefixScan() error = %v", err)
	}
	if !equal(names(got), []string{"PARA-X"}) {
		t.Errorf("PrefixScan(batch, C) = %v, want [PARA-X]", names(got))
	}

	got, err = tbl.PrefixScan(context.Background(), "name", "zz", 10)
	if err != nil {
		t.Fatalf("PrefixScan() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("PrefixScan(zz) = %v, want none", names(got))
	}
}

func testPrefixScanAbsent(t *testing.T, tbl core.Table) {
	insert(t, tbl,
		core.Values{"name": "Amoxicillin"},
		core.Values{"name": "Azithromycin", "batch": "A1"},
	)

	got, err := tbl.PrefixScan(context.Background(), "batch", "", 10)
	if err != nil {
		t.Fatalf("PrefixScan() error = %v", err)
	}
	if !equal(names(got), []string{"Azithromycin"}) {
		t.Errorf("PrefixScan(batch, \"\") = %v, want [Azithromycin]", names(got))
	}
}

func testPrefixScanLimit(t *testing.T, tbl core.Table) {
	rows := make([]core.Values, 7)
	for i := range rows {
		rows[i] = core.Values{"name": "Cetirizine"}
	}
	insert(t, tbl, rows...)

	got, err := tbl.PrefixScan(context.Background(), "name", "cet", 3)
	if err != nil {
		t.Fatalf("PrefixScan() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
}

func testOrderedScan(t *testing.T, tbl core.Table) {
	insert(t, tbl,
		core.Values{"name": "zinc"},
		core.Values{"name": "Aspirin"},
		core.Values{"name": "aspirin"},
		core.Values{"name": "Ascorbic"},
		core.Values{"batch": "no name"},
	)

	got, err := tbl.OrderedScan(context.Background(), "name", 10)
	if err != nil {
		t.Fatalf("OrderedScan() error = %v", err)
	}
	want := []string{"Ascorbic", "Aspirin", "aspirin", "zinc"}
	if !equal(names(got), want) {
		t.Errorf("OrderedScan() = %v, want %v", names(got), want)
	}

	got, err = tbl.OrderedScan(context.Background(), "name", 2)
	if err != nil {
		t.Fatalf("OrderedScan() error = %v", err)
	}
	if !equal(names(got), want[:2]) {
		t.Errorf("OrderedScan(limit 2) = %v, want %v", names(got), want[:2])
	}
}

func testUnindexed(t *testing.T, tbl core.Table) {
	if _, err := tbl.PrefixScan(context.Background(), "stock", "1", 10); !errors.Is(err, core.ErrNotIndexed) {
		t.Errorf("PrefixScan(stock) error = %v, want ErrNotIndexed", err)
	}
	if _, err := tbl.OrderedScan(context.Background(), "stock", 10); !errors.Is(err, core.ErrNotIndexed) {
		t.Errorf("OrderedScan(stock) error = %v, want ErrNotIndexed", err)
	}
}

func testGetUpdateDelete(t *testing.T, tbl core.Table) {
	ctx := context.Background()
	ids := insert(t, tbl, core.Values{"name": "Ibuprofen", "batch": "I1", "stock": 20.0})

	if err := tbl.Update(ctx, ids[0], core.Values{"stock": 15.0}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	rec, err := tbl.Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stock, _ := core.ParseNumber(rec.Values["stock"]); stock != 15 {
		t.Errorf("stock = %v, want 15", rec.Values["stock"])
	}
	if rec.Text("batch") != "I1" {
		t.Errorf("Update dropped batch: %v", rec.Values)
	}

	if err := tbl.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := tbl.Get(ctx, ids[0]); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
	if err := tbl.Delete(ctx, ids[0]); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
	if err := tbl.Update(ctx, ids[0], core.Values{"stock": 1.0}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Update missing error = %v, want ErrNotFound", err)
	}

	got, err := tbl.PrefixScan(ctx, "name", "ibu", 10)
	if err != nil {
		t.Fatalf("PrefixScan() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("deleted record still indexed: %v", names(got))
	}
}

func testUpdateReindexes(t *testing.T, tbl core.Table) {
	ctx := context.Background()
	ids := insert(t, tbl, core.Values{"name": "Old Name"})

	if err := tbl.Update(ctx, ids[0], core.Values{"name": "New Name"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	old, err := tbl.PrefixScan(ctx, "name", "old", 10)
	if err != nil {
		t.Fatalf("PrefixScan() error = %v", err)
	}
	if len(old) != 0 {
		t.Errorf("stale index entry: %v", names(old))
	}
	got, err := tbl.PrefixScan(ctx, "name", "new", 10)
	if err != nil {
		t.Fatalf("PrefixScan() error = %v", err)
	}
	if !equal(names(got), []string{"New Name"}) {
		t.Errorf("PrefixScan(new) = %v, want [New Name]", names(got))
	}
}

func testScanCount(t *testing.T, tbl core.Table) {
	ctx := context.Background()
	ids := insert(t, tbl,
		core.Values{"name": "a"},
		core.Values{"name": "b"},
		core.Values{"name": "c"},
	)

	var seen []int64
	err := tbl.Scan(ctx, func(r core.Record) error {
		seen = append(seen, r.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(seen) != 3 || seen[0] != ids[0] || seen[2] != ids[2] {
		t.Errorf("Scan ids = %v, want %v", seen, ids)
	}

	stop := errors.New("stop")
	calls := 0
	err = tbl.Scan(ctx, func(core.Record) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("Scan stop: err=%v calls=%d", err, calls)
	}

	n, err := tbl.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
}

func testClear(t *testing.T, tbl core.Table) {
	ctx := context.Background()
	ids := insert(t, tbl, core.Values{"name": "a"}, core.Values{"name": "b"})

	if err := tbl.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	n, err := tbl.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Count after Clear = %d, want 0", n)
	}
	got, err := tbl.OrderedScan(ctx, "name", 10)
	if err != nil {
		t.Fatalf("OrderedScan() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("index survived Clear: %v", names(got))
	}

	next := insert(t, tbl, core.Values{"name": "c"})
	if next[0] <= ids[1] {
		t.Errorf("id after Clear = %d, want > %d", next[0], ids[1])
	}
}
