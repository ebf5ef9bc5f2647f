package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/pharmadist/internal/logging"
)

// ImportProgress is reported after every inserted chunk.
type ImportProgress struct {
	ImportID  string `json:"importId"`
	Kind      Kind   `json:"kind"`
	TotalRows int    `json:"totalRows"`
	Inserted  int    `json:"inserted"`
}

// ImportResult summarizes a finished import.
type ImportResult struct {
	ImportID  string        `json:"importId"`
	Kind      Kind          `json:"kind"`
	Table     string        `json:"table"`
	TotalRows int           `json:"totalRows"`
	Inserted  int           `json:"inserted"`
	IDs       []int64       `json:"ids"`
	Duration  time.Duration `json:"duration"`
}

// ImportRows normalizes rows for kind and bulk inserts them in chunks of
// Import.BatchSize, yielding between chunks. At most Import.MaxConcurrent
// imports run at once.
//
// A failure part way leaves earlier chunks in place; the returned result
// reports how many rows made it in.
func (s *Service) ImportRows(ctx context.Context, kind Kind, rows []RawRow, onProgress func(ImportProgress)) (*ImportResult, error) {
	def, ok := ForKind(kind)
	if !ok {
		return nil, fmt.Errorf("invalid kind %q: no table imports it", kind)
	}
	_, table, err := s.table(def.Info.Key)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		s.rec.ImportFailed(kind)
		return nil, fmt.Errorf("acquire import slot: %w", err)
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Import.Timeout)
	defer cancel()

	start := time.Now()
	result := &ImportResult{
		ImportID:  uuid.New().String(),
		Kind:      kind,
		Table:     def.Info.Key,
		TotalRows: len(rows),
		IDs:       make([]int64, 0, len(rows)),
	}

	log := logging.WithFields(ctx, "import_id", result.ImportID, "kind", kind, "table", def.Info.Key)
	log.Info("import started", "rows", len(rows))

	normalized := make([]Values, len(rows))
	for i, row := range rows {
		normalized[i] = NormalizeRow(row, def.Import)
	}

	batch := s.cfg.Import.BatchSize
	if batch <= 0 {
		batch = 500
	}

	for startIdx := 0; startIdx < len(normalized); startIdx += batch {
		if err := ctx.Err(); err != nil {
			s.rec.ImportFailed(kind)
			result.Duration = time.Since(start)
			log.Warn("import cancelled", "inserted", result.Inserted, "error", err)
			return result, fmt.Errorf("import cancelled after %d rows: %w", result.Inserted, err)
		}

		end := min(startIdx+batch, len(normalized))
		ids, err := table.BulkInsert(ctx, normalized[startIdx:end])
		if err != nil {
			s.rec.ImportFailed(kind)
			result.Duration = time.Since(start)
			log.Error("import chunk failed", "offset", startIdx, "inserted", result.Inserted, "error", err)
			return result, fmt.Errorf("insert rows %d-%d: %w", startIdx+1, end, err)
		}

		result.IDs = append(result.IDs, ids...)
		result.Inserted += len(ids)
		s.rec.ImportedRows(kind, len(ids))

		if onProgress != nil {
			onProgress(ImportProgress{
				ImportID:  result.ImportID,
				Kind:      kind,
				TotalRows: result.TotalRows,
				Inserted:  result.Inserted,
			})
		}

		if pause := s.cfg.Import.ChunkPause; pause > 0 && end < len(normalized) {
			select {
			case <-ctx.Done():
			case <-time.After(pause):
			}
		}
	}

	result.Duration = time.Since(start)
	log.Info("import completed", "inserted", result.Inserted, "duration", result.Duration)
	return result, nil
}
