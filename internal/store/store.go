// Package store opens the record store backend selected by configuration.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/pharmadist/internal/config"
	"github.com/JonMunkholm/pharmadist/internal/core"
	"github.com/JonMunkholm/pharmadist/internal/logging"
	"github.com/JonMunkholm/pharmadist/internal/store/badgerstore"
	"github.com/JonMunkholm/pharmadist/internal/store/pebblestore"
	"github.com/JonMunkholm/pharmadist/internal/store/pgstore"
	"github.com/JonMunkholm/pharmadist/internal/store/sqlstore"
)

// Open returns the store for cfg.Driver with a table per definition.
func Open(ctx context.Context, cfg config.StoreConfig, defs []core.TableDefinition) (core.Store, error) {
	log := logging.FromContext(ctx)

	switch driver := strings.ToLower(cfg.Driver); driver {
	case "pebble", "":
		s, err := pebblestore.Open(cfg.Path, defs)
		if err != nil {
			return nil, err
		}
		log.Info("store opened", "driver", "pebble", "path", cfg.Path, "tables", len(defs))
		return s, nil

	case "badger":
		s, err := badgerstore.Open(cfg.Path, defs)
		if err != nil {
			return nil, err
		}
		log.Info("store opened", "driver", "badger", "path", cfg.Path, "tables", len(defs))
		return s, nil

	case "sqlite", "sqlite3":
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
		s, err := sqlstore.Open(ctx, driver, cfg.Path, defs)
		if err != nil {
			return nil, err
		}
		log.Info("store opened", "driver", driver, "path", cfg.Path, "tables", len(defs))
		return s, nil

	case "postgres":
		s, err := pgstore.Open(ctx, cfg, defs)
		if err != nil {
			return nil, err
		}
		log.Info("store opened", "driver", "postgres", "tables", len(defs))
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
