package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/pharmadist/internal/logging"
)

// SearchRequest describes a live search against one table.
type SearchRequest struct {
	Table string
	Query string

	// Fields defaults to the table's search fields.
	Fields []string

	// Limit defaults to Search.DefaultLimit and is capped at Search.MaxLimit.
	Limit int

	// Session, when set, cancels the previous search of the same session.
	Session string
}

// SearchResult is the outcome of a live search.
type SearchResult struct {
	Table   string   `json:"table"`
	Query   string   `json:"query"`
	Records []Record `json:"records"`

	// Superseded is set when a newer search of the same session replaced
	// this one before it finished; Records is then empty.
	Superseded bool `json:"superseded,omitempty"`
}

// Search runs a live search. Unknown tables and unindexed fields are caller
// errors; store faults degrade to an empty result.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	def, table, err := s.table(req.Table)
	if err != nil {
		return nil, err
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = def.SearchFields
	}
	for _, f := range fields {
		if !def.Indexed(f) {
			return nil, fmt.Errorf("search %s by %s: %w", req.Table, f, ErrNotIndexed)
		}
	}

	limit := s.clampLimit(req.Limit)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Search.Timeout)
	defer cancel()

	run := func(ctx context.Context) ([]Record, error) {
		return TrySearch(ctx, table, req.Query, fields, limit)
	}

	start := time.Now()
	var recs []Record
	if req.Session != "" {
		recs, err = s.live.Run(ctx, req.Table+"/"+req.Session, run)
	} else {
		recs, err = run(ctx)
	}

	result := &SearchResult{Table: req.Table, Query: req.Query, Records: []Record{}}
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		result.Superseded = true
		return result, nil
	}
	if err != nil {
		s.rec.SearchFault(req.Table)
	} else {
		s.rec.Searched(req.Table, len(recs), time.Since(start))
	}
	result.Records = failSoft(ctx, recs, err, "table", req.Table, "query", req.Query)
	return result, nil
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		limit = s.cfg.Search.DefaultLimit
	}
	if s.cfg.Search.MaxLimit > 0 && limit > s.cfg.Search.MaxLimit {
		limit = s.cfg.Search.MaxLimit
	}
	return limit
}

// ListRequest pages through a table in index order.
type ListRequest struct {
	Table string

	// OrderBy defaults to the table's first search field.
	OrderBy string
	Desc    bool
	Limit   int
}

// List returns records ordered by an indexed field. Descending listings
// reverse the first Limit ascending records.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Record, error) {
	def, table, err := s.table(req.Table)
	if err != nil {
		return nil, err
	}

	field := req.OrderBy
	if field == "" {
		field = def.SearchFields[0]
	}
	if !def.Indexed(field) {
		return nil, fmt.Errorf("list %s by %s: %w", req.Table, field, ErrNotIndexed)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	limit = s.clampLimit(limit)

	recs, err := table.OrderedScan(ctx, field, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", req.Table, err)
	}
	if req.Desc {
		for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
			recs[i], recs[j] = recs[j], recs[i]
		}
	}
	return recs, nil
}

// GetRecord fetches one record by id.
func (s *Service) GetRecord(ctx context.Context, tableName string, id int64) (Record, error) {
	_, table, err := s.table(tableName)
	if err != nil {
		return Record{}, err
	}
	rec, err := table.Get(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("get %s %d: %w", tableName, id, err)
	}
	return rec, nil
}

// DeleteRecord removes one record by id.
func (s *Service) DeleteRecord(ctx context.Context, tableName string, id int64) error {
	_, table, err := s.table(tableName)
	if err != nil {
		return err
	}
	if err := table.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s %d: %w", tableName, id, err)
	}
	logging.FromContext(ctx).Info("record deleted", "table", tableName, "id", id)
	return nil
}

// CreateParty validates and stores a party. Empty type and tier default to
// WHOLESALE.
func (s *Service) CreateParty(ctx context.Context, p Party) (Party, error) {
	if p.Type == "" {
		p.Type = PartyWholesale
	}
	if p.PricingTier == "" {
		p.PricingTier = TierWholesale
	}
	if err := p.Validate(); err != nil {
		return Party{}, err
	}

	vals, err := ToValues(p)
	if err != nil {
		return Party{}, err
	}
	_, table, err := s.table(TableParties)
	if err != nil {
		return Party{}, err
	}
	ids, err := table.BulkInsert(ctx, []Values{vals})
	if err != nil {
		return Party{}, fmt.Errorf("insert party: %w", err)
	}
	p.ID = ids[0]
	return p, nil
}
