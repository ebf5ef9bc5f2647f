// Package tables registers all table definitions with the core registry.
// Import this package to ensure all tables are registered.
package tables

// Each table file uses init() to register its tables.
