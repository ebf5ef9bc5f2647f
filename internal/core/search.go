package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/pharmadist/internal/logging"
)

// DefaultSearchLimit applies when a caller passes a non-positive limit.
const DefaultSearchLimit = 50

// Search runs a live search and degrades any store fault to an empty result.
// See TrySearch for the matching rules.
func Search(ctx context.Context, table Table, query string, fields []string, limit int) []Record {
	recs, err := TrySearch(ctx, table, query, fields, limit)
	return failSoft(ctx, recs, err, "query", query)
}

// failSoft returns recs, or an empty result after logging err.
func failSoft(ctx context.Context, recs []Record, err error, attrs ...any) []Record {
	if err == nil {
		return recs
	}
	logging.FromContext(ctx).Warn("search failed, returning no results", append(attrs, "error", err)...)
	return []Record{}
}

// TrySearch matches query against table.
//
// The first token must be a case-insensitive prefix of at least one of
// fields; every further token must occur somewhere in the record's combined
// field values. An empty query lists the table ordered by fields[0]. At most
// limit records are returned, in no particular ranking.
func TrySearch(ctx context.Context, table Table, query string, fields []string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if len(fields) == 0 {
		return []Record{}, nil
	}

	tokens := Tokenize(query)
	if len(tokens) == 0 {
		recs, err := table.OrderedScan(ctx, fields[0], limit)
		if err != nil {
			return nil, fmt.Errorf("ordered scan %s.%s: %w", table.Name(), fields[0], err)
		}
		return truncate(recs, limit), nil
	}

	primary := tokens[0]
	perField := make([][]Record, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	for i, field := range fields {
		g.Go(func() error {
			recs, err := table.PrefixScan(gctx, field, primary, limit*2)
			if err != nil {
				return fmt.Errorf("prefix scan %s.%s: %w", table.Name(), field, err)
			}
			perField[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unique := dedupe(perField)

	if len(tokens) > 1 {
		rest := tokens[1:]
		filtered := unique[:0]
		for _, rec := range unique {
			if containsAll(haystack(rec), rest) {
				filtered = append(filtered, rec)
			}
		}
		unique = filtered
	}

	return truncate(unique, limit), nil
}

// Tokenize lowercases query and splits it on whitespace runs.
func Tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// dedupe flattens per-field results keyed by id. A repeated id keeps the
// position of its first occurrence and the value of its last.
func dedupe(groups [][]Record) []Record {
	pos := make(map[int64]int)
	var out []Record
	for _, group := range groups {
		for _, rec := range group {
			if i, seen := pos[rec.ID]; seen {
				out[i] = rec
				continue
			}
			pos[rec.ID] = len(out)
			out = append(out, rec)
		}
	}
	return out
}

// haystack joins every field value of rec, in key order, lowercased.
func haystack(rec Record) string {
	keys := make([]string, 0, len(rec.Values))
	for k := range rec.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = FormatScalar(rec.Values[k])
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func containsAll(s string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}

func truncate(recs []Record, limit int) []Record {
	if recs == nil {
		return []Record{}
	}
	if len(recs) > limit {
		return recs[:limit]
	}
	return recs
}
