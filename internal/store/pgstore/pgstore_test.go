package pgstore_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/JonMunkholm/pharmadist/internal/config"
	"github.com/JonMunkholm/pharmadist/internal/core"
	"github.com/JonMunkholm/pharmadist/internal/store/pgstore"
	"github.com/JonMunkholm/pharmadist/internal/store/storetest"
)

// TestConformance needs a scratch database; set TEST_DATABASE_URL to run it.
func TestConformance(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	storetest.Run(t, func(t *testing.T, defs []core.TableDefinition) core.Store {
		// Unique table names keep subtests isolated in a shared database.
		suffix := uuid.NewString()[:8]
		renamed := make([]core.TableDefinition, len(defs))
		for i, d := range defs {
			d.Info.Key = fmt.Sprintf("%s_%s", d.Info.Key, suffix)
			renamed[i] = d
		}

		cfg := config.StoreConfig{Driver: "postgres", URL: url, MaxConns: 4}
		s, err := pgstore.Open(context.Background(), cfg, renamed)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		t.Cleanup(func() {
			s.Drop(context.Background())
			s.Close()
		})
		return aliased{Store: s, names: renamed, defs: defs}
	})
}

// aliased maps the suite's table names onto the suffixed ones.
type aliased struct {
	*pgstore.Store
	names []core.TableDefinition
	defs  []core.TableDefinition
}

func (a aliased) Table(name string) (core.Table, error) {
	for i, d := range a.defs {
		if d.Info.Key == name {
			return a.Store.Table(a.names[i].Info.Key)
		}
	}
	return a.Store.Table(name)
}
