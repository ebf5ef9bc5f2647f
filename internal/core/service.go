package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/pharmadist/internal/config"
)

// Recorder receives operational measurements from the service. The metrics
// package provides the Prometheus implementation.
type Recorder interface {
	ImportedRows(kind Kind, n int)
	ImportFailed(kind Kind)
	Searched(table string, results int, elapsed time.Duration)
	SearchFault(table string)
}

type nopRecorder struct{}

func (nopRecorder) ImportedRows(Kind, int) {}
func (nopRecorder) ImportFailed(Kind) {}
func (nopRecorder) Searched(string, int, time.Duration) {}
func (nopRecorder) SearchFault(string) {}

// Service ties the registered tables to a store and exposes the operations
// the web layer calls.
type Service struct {
	store   Store
	cfg     *config.Config
	limiter *ImportLimiter
	live    *LiveSearch
	rec     Recorder
	now     func() time.Time

	// stockMu spans the read and write of every stock draw.
	stockMu sync.Mutex
}

// Option customizes a Service.
type Option func(*Service)

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithClock overrides time.Now, for invoice numbering and dashboards in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service over store. A nil cfg uses config.Default().
func NewService(store Store, cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Service{
		store:   store,
		cfg:     cfg,
		limiter: NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		live:    NewLiveSearch(),
		rec:     nopRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportLimiter exposes the limiter for shutdown draining and status.
func (s *Service) ImportLimiter() *ImportLimiter {
	return s.limiter
}

// ListTables returns information about all registered tables.
func (s *Service) ListTables() []TableInfo {
	defs := All()
	infos := make([]TableInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// table resolves a registered table name to its definition and store handle.
func (s *Service) table(name string) (TableDefinition, Table, error) {
	def, ok := Get(name)
	if !ok {
		return TableDefinition{}, nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	t, err := s.store.Table(name)
	if err != nil {
		return TableDefinition{}, nil, fmt.Errorf("open table %s: %w", name, err)
	}
	return def, t, nil
}
