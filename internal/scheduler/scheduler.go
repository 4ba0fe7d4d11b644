// Package scheduler wires up the cron job that periodically runs a full
// sync followed by a matching pass (serve mode).
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"tenderscout/sync-service/internal/config"
	"tenderscout/sync-service/internal/matching"
	"tenderscout/sync-service/internal/sync"
)

// Scheduler wraps robfig/cron and manages the recurring sync cycle.
type Scheduler struct {
	cron   *cron.Cron
	cfg    *config.Config
	pool   *pgxpool.Pool
	rdb    *redis.Client
	logger *slog.Logger
	spec   string // cron spec, e.g. "@every 6h"
}

// New creates a Scheduler firing on the configured cron spec.
func New(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		cfg:    cfg,
		pool:   pool,
		rdb:    rdb,
		logger: logger,
		spec:   cfg.Schedule,
	}
}

// Start registers the job and starts the scheduler. Also runs one cycle
// immediately so the store is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "spec", s.spec)

	// Run immediately on startup (non-blocking).
	go s.runCycle(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a running job.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
}

// runCycle executes one sync run followed by a matching pass. The Redis
// run lock inside the Runner keeps overlapping ticks from double-syncing.
func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info("sync cycle started")

	runner := sync.NewRunner(s.cfg, s.pool, s.rdb, s.logger)
	if _, err := runner.Run(ctx); err != nil {
		if errors.Is(err, sync.ErrAlreadyRunning) {
			s.logger.Warn("previous sync still running — skipping this tick")
			return
		}
		s.logger.Error("sync run failed", "error", err)
		// A failed sync still leaves previously stored tenders scorable.
	}

	engine := matching.NewEngine(s.pool, s.rdb, s.cfg.MatchThreshold, s.logger, s.cfg.DryRun)
	if _, err := engine.Run(ctx); err != nil {
		s.logger.Error("matching pass failed", "error", err)
	}

	s.logger.Info("sync cycle complete")
}
