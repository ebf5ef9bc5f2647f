package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the target schema an import is normalized onto.
type Kind string

const (
	KindProduct Kind = "PRODUCT"
	KindParty   Kind = "PARTY"
)

// ParseKind accepts "product", "PRODUCT", "products" and the party equivalents.
func ParseKind(s string) (Kind, error) {
	switch strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(s)), "S") {
	case "PRODUCT":
		return KindProduct, nil
	case "PARTY", "PARTIE":
		return KindParty, nil
	}
	return "", fmt.Errorf("invalid kind %q: must be PRODUCT or PARTY", s)
}

// Cell is one header/value pair of a raw spreadsheet row.
type Cell struct {
	Header string
	Value  any
}

// RawRow is an untyped spreadsheet row. Cells keep the column order of the
// source file; header matching depends on that order.
type RawRow []Cell

// Get returns the value stored under an exact header.
func (r RawRow) Get(header string) (any, bool) {
	for _, c := range r {
		if c.Header == header {
			return c.Value, true
		}
	}
	return nil, false
}

// Values holds field values keyed by target field name. A missing key means
// the field is absent, which is distinct from a present zero value.
type Values map[string]any

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Record is a row as held by a store: the primary key it assigned plus the
// field values.
type Record struct {
	ID     int64
	Values Values
}

// Text returns the string form of a field, or "" when absent.
func (r Record) Text(field string) string {
	return FormatScalar(r.Values[field])
}

// MarshalJSON flattens the record so the id sits next to the fields.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Values)+1)
	for k, v := range r.Values {
		out[k] = v
	}
	out["id"] = r.ID
	return json.Marshal(out)
}

var (
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNotIndexed is returned for lookups on a field without an index.
	ErrNotIndexed = errors.New("field is not indexed")

	// ErrUnknownTable is returned when a table name is not registered.
	ErrUnknownTable = errors.New("unknown table")
)

// Table is one logical table of the indexed record store.
//
// Index lookups compare the lowercased string form of a field (see
// IndexValue). Records whose field is absent are not part of that field's
// index, so they never appear in PrefixScan or OrderedScan for it.
type Table interface {
	// Name returns the registered table key.
	Name() string

	// PrefixScan returns up to limit records whose field value starts with
	// prefix, case-insensitively. Order is unspecified.
	PrefixScan(ctx context.Context, field, prefix string, limit int) ([]Record, error)

	// OrderedScan returns up to limit records ordered by field ascending.
	OrderedScan(ctx context.Context, field string, limit int) ([]Record, error)

	// BulkInsert appends rows and returns the assigned ids in input order.
	BulkInsert(ctx context.Context, rows []Values) ([]int64, error)

	// Get returns a record by id, or ErrNotFound.
	Get(ctx context.Context, id int64) (Record, error)

	// Update merges changes into an existing record.
	Update(ctx context.Context, id int64, changes Values) error

	// Delete removes a record. Deleting a missing id returns ErrNotFound.
	Delete(ctx context.Context, id int64) error

	// Scan visits every record in id order until fn returns an error.
	Scan(ctx context.Context, fn func(Record) error) error

	// Count returns the number of records.
	Count(ctx context.Context) (int64, error)

	// Clear removes all records. Ids are not reused afterwards.
	Clear(ctx context.Context) error
}

// Store opens tables by registered name.
type Store interface {
	Table(name string) (Table, error)
	Close() error
}
