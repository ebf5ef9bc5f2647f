package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/pharmadist/internal/config"
	"github.com/JonMunkholm/pharmadist/internal/core"
	"github.com/JonMunkholm/pharmadist/internal/store"
	"github.com/JonMunkholm/pharmadist/internal/store/storetest"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		path   string
	}{
		{"default driver is pebble", "", "pebble"},
		{"pebble", "PEBBLE", "pebble"},
		{"badger", "badger", "badger"},
		{"pure-go sqlite creates its directory", "sqlite", filepath.Join("nested", "dir", "db.sqlite")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.StoreConfig{Driver: tt.driver, Path: filepath.Join(t.TempDir(), tt.path)}
			s, err := store.Open(context.Background(), cfg, []core.TableDefinition{storetest.Items})
			if err != nil {
				t.Fatalf("Open(%q) error = %v", tt.driver, err)
			}
			defer s.Close()

			tbl, err := s.Table("items")
			if err != nil {
				t.Fatalf("Table(items) error = %v", err)
			}
			ids, err := tbl.BulkInsert(context.Background(), []core.Values{{"name": "Dolo"}})
			if err != nil || len(ids) != 1 {
				t.Fatalf("BulkInsert = %v, %v", ids, err)
			}

			if _, err := s.Table("missing"); !errors.Is(err, core.ErrUnknownTable) {
				t.Errorf("Table(missing) error = %v, want ErrUnknownTable", err)
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := store.Open(context.Background(), config.StoreConfig{Driver: "mongodb"}, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown store driver") {
		t.Errorf("Open(mongodb) error = %v, want unknown store driver", err)
	}
}
