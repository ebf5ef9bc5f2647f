package sqlstore_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/pharmadist/internal/core"
	"github.com/JonMunkholm/pharmadist/internal/store/sqlstore"
	"github.com/JonMunkholm/pharmadist/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	for _, driver := range []string{"sqlite", "sqlite3"} {
		t.Run(driver, func(t *testing.T) {
			storetest.Run(t, func(t *testing.T, defs []core.TableDefinition) core.Store {
				path := filepath.Join(t.TempDir(), "test.db")
				s, err := sqlstore.Open(context.Background(), driver, path, defs)
				if err != nil {
					// go-sqlite3 is a stub without cgo.
					if driver == "sqlite3" && strings.Contains(err.Error(), "cgo") {
						t.Skipf("sqlite3 unavailable: %v", err)
					}
					t.Fatalf("Open() error = %v", err)
				}
				t.Cleanup(func() { s.Close() })
				return s
			})
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := sqlstore.Open(context.Background(), "mysql", "x.db", nil)
	if err == nil {
		t.Fatal("Open(mysql) succeeded, want error")
	}
}

func TestPrefixScanLikeMetacharacters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := sqlstore.Open(context.Background(), "sqlite", path, []core.TableDefinition{storetest.Items})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	tbl, _ := s.Table("items")

	ctx := context.Background()
	if _, err := tbl.BulkInsert(ctx, []core.Values{
		{"name": "50% Dextrose"},
		{"name": "500 mg"},
		{"name": "5_ml"},
	}); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}

	got, err := tbl.PrefixScan(ctx, "name", "50%", 10)
	if err != nil {
		t.Fatalf("PrefixScan() error = %v", err)
	}
	if len(got) != 1 || got[0].Text("name") != "50% Dextrose" {
		t.Errorf("PrefixScan(50%%) = %v, want only 50%% Dextrose", got)
	}
}
