// Package sync implements the SIMAP tender sync job: resumable search
// pagination, checkpointing, concurrent detail fetching and idempotent
// persistence.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"tenderscout/sync-service/internal/config"
	"tenderscout/sync-service/internal/model"
	"tenderscout/sync-service/internal/simap"
	"tenderscout/sync-service/internal/status"
)

// detailScanBatchSize bounds the detail backfill's database pagination.
const detailScanBatchSize = 100

// Stats is the end-of-run summary. It is always produced, even on partial
// failure, so operators can tell "completed with some errors" from
// "aborted".
type Stats struct {
	Fetched        int
	Inserted       int
	Updated        int
	DetailsFetched int
	DetailErrors   int
	Errors         int
}

// searchClient is the slice of the SIMAP client the pagination loop needs.
type searchClient interface {
	SearchPage(ctx context.Context, filter simap.SearchFilter, cursor string) ([]simap.Project, string, error)
}

// checkpointStore persists pagination progress between runs.
type checkpointStore interface {
	Load(ctx context.Context, jobName string) (*model.Checkpoint, error)
	Save(ctx context.Context, jobName string, cursor *string, runStatus string, records int, metadata map[string]any) error
	Clear(ctx context.Context, jobName string) error
}

// tenderWriter persists search results and detail updates.
type tenderWriter interface {
	UpsertTenders(ctx context.Context, tenders []model.Tender) (UpsertResult, error)
	ApplyDetails(ctx context.Context, tenderID string, u DetailUpdate) error
}

// Runner executes one sync run: search pagination → upsert → status pass →
// detail backfill. It is a batch job, not a server — construct, Run, done.
type Runner struct {
	cfg    *config.Config
	pool   *pgxpool.Pool
	rdb    *redis.Client
	logger *slog.Logger
	runID  string

	search      searchClient
	checkpoints checkpointStore
	writer      tenderWriter
	fetcher     *DetailFetcher

	now   func() time.Time
	stats Stats
}

// NewRunner wires a Runner from configuration and shared connections.
func NewRunner(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger) *Runner {
	client := simap.NewClient(cfg.SimapSearchBaseURL, cfg.SimapDetailBaseURL)
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	return &Runner{
		cfg:         cfg,
		pool:        pool,
		rdb:         rdb,
		logger:      logger,
		runID:       runID,
		search:      client,
		checkpoints: NewCheckpointStore(pool, cfg.NoCheckpoint || cfg.DryRun),
		writer:      NewWriter(pool, logger, cfg.DryRun),
		fetcher: &DetailFetcher{
			Client:      client,
			Concurrency: cfg.MaxConcurrent,
			Delay:       cfg.DetailDelay,
			Logger:      logger,
		},
		now: time.Now,
	}
}

// Run executes the full sync and returns the summary. The returned error
// is non-nil for unrecoverable conditions (lock held, aborted pagination,
// cancellation); per-record failures only show up in the stats.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	lock := &runLock{rdb: r.rdb, runID: r.runID}
	if err := lock.acquire(ctx); err != nil {
		return r.stats, err
	}
	// Release with a fresh context so an aborted run still unlocks.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		lock.release(releaseCtx)
	}()

	r.logger.Info("sync run starting",
		"dry_run", r.cfg.DryRun,
		"details_only", r.cfg.DetailsOnly,
		"skip_details", r.cfg.SkipDetails,
		"resume", r.cfg.Resume)

	var runErr error
	if !r.cfg.DetailsOnly {
		runErr = r.syncSearch(ctx)
		if runErr == nil && !r.cfg.DryRun {
			transitioned, err := status.Apply(ctx, r.pool, r.now().UTC())
			if err != nil {
				r.logger.Error("status pass failed", "error", err)
				r.stats.Errors++
			} else if transitioned > 0 {
				r.logger.Info("status pass complete", "transitioned", transitioned)
			}
		}
	}

	if runErr == nil && !r.cfg.SkipDetails {
		runErr = r.syncDetails(ctx)
	}

	r.publishSynced(ctx)
	r.logSummary()
	return r.stats, runErr
}

// searchFilter builds the page filter from configuration. Search language
// is German (SIMAP's primary language) and results are restricted to
// Switzerland; both can only be widened by code, not flags.
func (r *Runner) searchFilter() simap.SearchFilter {
	types := r.cfg.Types
	if len(types) == 0 {
		types = simap.ProjectSubTypes
	}
	filter := simap.SearchFilter{
		Lang:            "de",
		SwissOnly:       true,
		ProjectSubTypes: types,
	}
	if r.cfg.Days > 0 {
		filter.PublicationFrom = r.now().UTC().AddDate(0, 0, -r.cfg.Days).Format("2006-01-02")
	}
	return filter
}

// syncSearch drives the rolling pagination. The core invariant is the
// write-then-checkpoint ordering: a cursor is saved only after the page it
// follows has been durably upserted, so resuming never skips records.
func (r *Runner) syncSearch(ctx context.Context) error {
	filter := r.searchFilter()
	if err := filter.Validate(); err != nil {
		// Validation errors are fatal before any work begins.
		r.stats.Errors++
		return fmt.Errorf("invalid search filter: %w", err)
	}

	cursor := ""
	processed := 0
	if r.cfg.Resume {
		cp, err := r.checkpoints.Load(ctx, SearchJobName)
		if err != nil {
			r.logger.Warn("could not load checkpoint", "error", err)
		} else if cp.Resumable() {
			cursor = *cp.LastCursor
			processed = cp.RecordsProcessed
			r.logger.Info("resuming from checkpoint",
				"status", cp.LastRunStatus, "records", processed, "cursor", cursor)
		}
	}

	meta := map[string]any{"run_id": r.runID, "types": filter.ProjectSubTypes}

	interrupted := func(err error) error {
		r.stats.Errors++
		r.saveCheckpoint(cursor, model.CheckpointInterrupted, processed, meta)
		return err
	}

	for page := 1; page <= simap.MaxSearchPages; page++ {
		if ctx.Err() != nil {
			return interrupted(ctx.Err())
		}

		projects, next, err := r.search.SearchPage(ctx, filter, cursor)
		if err != nil {
			return interrupted(fmt.Errorf("search page %d: %w", page, err))
		}
		if len(projects) == 0 {
			r.logger.Info("no more projects", "pages", page-1)
			break
		}

		tenders := make([]model.Tender, 0, len(projects))
		for _, p := range projects {
			tenders = append(tenders, TenderFromProject(p))
		}
		if r.cfg.Limit > 0 && r.stats.Fetched+len(tenders) > r.cfg.Limit {
			tenders = tenders[:r.cfg.Limit-r.stats.Fetched]
		}

		res, err := r.writer.UpsertTenders(ctx, tenders)
		r.stats.Fetched += len(tenders)
		r.stats.Inserted += res.Inserted
		r.stats.Updated += res.Updated
		r.stats.Errors += res.Errored
		processed += len(tenders)
		if err != nil {
			return interrupted(fmt.Errorf("upsert page %d: %w", page, err))
		}

		r.logger.Info("page synced", "page", page,
			"fetched", len(tenders), "inserted", res.Inserted, "updated", res.Updated)

		if next == "" || next == cursor {
			break // end of stream
		}
		cursor = next
		meta["page"] = page

		// Page is committed; only now may the cursor advance.
		r.saveCheckpoint(cursor, model.CheckpointInProgress, processed, meta)

		if r.cfg.Limit > 0 && r.stats.Fetched >= r.cfg.Limit {
			r.logger.Info("reached fetch limit", "limit", r.cfg.Limit)
			break
		}
		if page == simap.MaxSearchPages {
			r.logger.Warn("reached page ceiling", "pages", simap.MaxSearchPages)
		}
	}

	if err := r.checkpoints.Clear(ctx, SearchJobName); err != nil {
		r.logger.Warn("could not clear checkpoint", "error", err)
	}
	return nil
}

func (r *Runner) saveCheckpoint(cursor, runStatus string, records int, meta map[string]any) {
	// Use a detached context so an interrupted run can still flush its
	// final checkpoint.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var c *string
	if cursor != "" {
		c = &cursor
	}
	if err := r.checkpoints.Save(ctx, SearchJobName, c, runStatus, records, meta); err != nil {
		r.logger.Warn("could not save checkpoint", "status", runStatus, "error", err)
	}
}

// syncDetails backfills extended records for tenders that don't have them
// yet, batch by batch. Successful fetches stamp details_fetched_at, so the
// same query naturally pages through the remaining work.
func (r *Runner) syncDetails(ctx context.Context) error {
	if r.cfg.DryRun {
		r.logger.Info("dry run: skipping detail fetch")
		return nil
	}

	r.logger.Info("fetching publication details",
		"max_concurrent", r.cfg.MaxConcurrent, "delay", r.cfg.DetailDelay)

	total := 0
	for {
		batchSize := detailScanBatchSize
		if r.cfg.DetailsLimit > 0 {
			remaining := r.cfg.DetailsLimit - total
			if remaining <= 0 {
				r.logger.Info("reached details limit", "limit", r.cfg.DetailsLimit)
				return nil
			}
			if remaining < batchSize {
				batchSize = remaining
			}
		}

		jobs, err := r.scanMissingDetails(ctx, batchSize)
		if err != nil {
			r.stats.Errors++
			return fmt.Errorf("scan tenders missing details: %w", err)
		}
		if len(jobs) == 0 {
			if total == 0 {
				r.logger.Info("no tenders missing details")
			}
			return nil
		}

		applied := 0
		for res := range r.fetcher.Fetch(ctx, jobs) {
			if res.Err != nil {
				r.stats.DetailErrors++
				continue
			}
			if err := r.writer.ApplyDetails(ctx, res.TenderID, res.Update); err != nil {
				r.logger.Error("detail update failed", "tender_id", res.TenderID, "error", err)
				r.stats.DetailErrors++
				continue
			}
			r.stats.DetailsFetched++
			applied++
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		total += len(jobs)
		r.logger.Info("detail batch done", "batch", len(jobs), "applied", applied, "total", total)

		// Rows that keep failing stay unstamped and would be re-selected
		// forever; stop once a batch makes no progress.
		if applied == 0 || len(jobs) < batchSize {
			return nil
		}
	}
}

func (r *Runner) scanMissingDetails(ctx context.Context, limit int) ([]DetailJob, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, external_id, publication_id
		 FROM tenders
		 WHERE source = $1
		   AND deleted_at IS NULL
		   AND details_fetched_at IS NULL
		   AND publication_id <> ''
		 ORDER BY publication_date DESC NULLS LAST
		 LIMIT $2`,
		Source, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []DetailJob
	for rows.Next() {
		var j DetailJob
		if err := rows.Scan(&j.TenderID, &j.ExternalID, &j.PublicationID); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// publishSynced notifies downstream consumers (gateway SSE) that a sync
// finished. Non-fatal.
func (r *Runner) publishSynced(ctx context.Context) {
	if r.rdb == nil || r.cfg.DryRun {
		return
	}
	event, _ := json.Marshal(map[string]any{
		"type":     "EVENT_TENDERS_SYNCED",
		"runId":    r.runID,
		"fetched":  r.stats.Fetched,
		"inserted": r.stats.Inserted,
		"updated":  r.stats.Updated,
	})
	if err := r.rdb.Publish(ctx, "EVENT_TENDERS_SYNCED", event).Err(); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("publish EVENT_TENDERS_SYNCED failed", "error", err)
	}
}

func (r *Runner) logSummary() {
	r.logger.Info("run summary",
		"dry_run", r.cfg.DryRun,
		"fetched", r.stats.Fetched,
		"inserted", r.stats.Inserted,
		"updated", r.stats.Updated,
		"details_fetched", r.stats.DetailsFetched,
		"detail_errors", r.stats.DetailErrors,
		"errors", r.stats.Errors)
}
