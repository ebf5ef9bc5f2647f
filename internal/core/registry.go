package core

import (
	"fmt"
	"sort"
	"sync"
)

// Logical table keys.
const (
	TableProducts = "products"
	TableParties  = "parties"
	TableInvoices = "invoices"
	TableSettings = "settings"
)

// TableInfo holds display metadata for a table.
type TableInfo struct {
	Key   string
	Label string
}

// TableDefinition describes one logical table: which fields the store must
// index, which fields live search covers, and the import schema when rows of
// this table can be loaded from spreadsheets.
type TableDefinition struct {
	Info TableInfo

	// Indexes lists the fields backends build prefix/ordered indexes for.
	Indexes []string

	// SearchFields is the default field list for Search. The first entry is
	// the order field for empty queries and listings.
	SearchFields []string

	// Import is nil for tables that are not spreadsheet-importable.
	Import *ImportSchema
}

// Indexed reports whether field has an index.
func (d TableDefinition) Indexed(field string) bool {
	for _, f := range d.Indexes {
		if f == field {
			return true
		}
	}
	return false
}

var (
	registry   = make(map[string]TableDefinition)
	registryMu sync.RWMutex
)

// Register adds a table definition to the registry.
// Panics if a table with the same key is already registered.
func Register(def TableDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("table already registered: %s", def.Info.Key))
	}
	for _, f := range def.SearchFields {
		if !def.Indexed(f) {
			panic(fmt.Sprintf("table %s: search field %s is not indexed", def.Info.Key, f))
		}
	}

	registry[def.Info.Key] = def
}

// Get returns a table definition by key.
// Returns false if not found.
func Get(key string) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// ForKind returns the table that imports of kind are stored in.
func ForKind(kind Kind) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, def := range registry {
		if def.Import != nil && def.Import.Kind == kind {
			return def, true
		}
	}
	return TableDefinition{}, false
}

// All returns all registered table definitions sorted by key.
func All() []TableDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TableDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// TableCount returns the number of registered tables.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Unregister removes the table registered under key, if any.
func Unregister(key string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, key)
}
