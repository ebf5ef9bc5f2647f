// Package core holds the business logic of the distribution back office:
// spreadsheet import normalization, live search, billing, dashboard figures
// and company settings. It has no transport of its own; the web package and
// tests drive it through [Service].
//
// # Tables
//
// Logical tables (products, parties, invoices, settings) are registered at
// init time by the tables package using [Register]. A [TableDefinition]
// names the indexed fields, the default search fields and, for importable
// tables, the [ImportSchema]:
//
//	core.Register(core.TableDefinition{
//	    Info:         core.TableInfo{Key: core.TableProducts, Label: "Inventory"},
//	    Indexes:      []string{"name", "manufacturer", "batch", "hsn"},
//	    SearchFields: []string{"name", "batch", "manufacturer"},
//	    Import:       core.ProductSchema,
//	})
//
// Storage is abstracted behind [Store] and [Table]; the store package opens
// a Pebble, SQLite or PostgreSQL backend from configuration.
//
// # Import
//
// [Normalize] maps [RawRow] values onto the target schema of a [Kind] by
// header synonyms. It never fails: unparseable numbers take a per-field
// fallback and unmatched fields keep their seeded default. The first
// matching column in row order wins when several match.
// [Service.ImportRows] wraps it with chunked bulk inserts and a concurrency
// limit.
//
// # Search
//
// [Search] treats the first query token as a prefix over each search field
// (looked up concurrently) and the remaining tokens as substrings of the
// record's combined values. Store faults yield an empty result.
//
// # Error Handling
//
// Technical errors map to user-facing messages with support codes through
// [MapError]; see error_messages.go for the code reference.
package core
