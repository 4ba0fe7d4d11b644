package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenderscout/sync-service/internal/model"
)

// SearchJobName is the checkpoint id for the project-search pagination.
const SearchJobName = "simap_search"

// CheckpointStore persists sync progress in the sync_state table so an
// interrupted run can resume without reprocessing or skipping records.
// When disabled (dry-run or --no-checkpoint) every method is a no-op.
type CheckpointStore struct {
	pool     *pgxpool.Pool
	disabled bool
}

// NewCheckpointStore returns a store backed by pool. Pass disabled=true to
// turn all operations into no-ops.
func NewCheckpointStore(pool *pgxpool.Pool, disabled bool) *CheckpointStore {
	return &CheckpointStore{pool: pool, disabled: disabled}
}

// Load returns the checkpoint for jobName, or nil when none exists.
func (s *CheckpointStore) Load(ctx context.Context, jobName string) (*model.Checkpoint, error) {
	if s.disabled {
		return nil, nil
	}

	var cp model.Checkpoint
	err := s.pool.QueryRow(ctx,
		`SELECT id, last_cursor, last_run_at, last_run_status, records_processed, metadata
		 FROM sync_state
		 WHERE id = $1`,
		jobName,
	).Scan(&cp.ID, &cp.LastCursor, &cp.LastRunAt, &cp.LastRunStatus, &cp.RecordsProcessed, &cp.Metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", jobName, err)
	}
	return &cp, nil
}

// Save upserts the checkpoint row for jobName. Callers must only invoke
// Save with a cursor whose page has already been durably written — cursor
// advancement is strictly downstream of the writer commit.
func (s *CheckpointStore) Save(ctx context.Context, jobName string, cursor *string, runStatus string, records int, metadata map[string]any) error {
	if s.disabled {
		return nil
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_state (id, last_cursor, last_run_at, last_run_status, records_processed, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   last_cursor       = EXCLUDED.last_cursor,
		   last_run_at       = EXCLUDED.last_run_at,
		   last_run_status   = EXCLUDED.last_run_status,
		   records_processed = EXCLUDED.records_processed,
		   metadata          = EXCLUDED.metadata`,
		jobName, cursor, time.Now().UTC(), runStatus, records, metadata,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", jobName, err)
	}
	return nil
}

// Clear removes the checkpoint after a run completes normally.
func (s *CheckpointStore) Clear(ctx context.Context, jobName string) error {
	if s.disabled {
		return nil
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM sync_state WHERE id = $1`, jobName); err != nil {
		return fmt.Errorf("clear checkpoint %s: %w", jobName, err)
	}
	return nil
}
