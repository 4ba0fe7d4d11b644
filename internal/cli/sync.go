package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tenderscout/sync-service/internal/simap"
	"tenderscout/sync-service/internal/sync"
)

var (
	syncDays          int
	syncTypes         []string
	syncLimit         int
	syncDetailsLimit  int
	syncSkipDetails   bool
	syncDetailsOnly   bool
	syncRateLimit     time.Duration
	syncMaxConcurrent int
	syncResume        bool
	syncNoCheckpoint  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync against the SIMAP API",
	Long: `Fetch tenders from the SIMAP project search, upsert them into the
local store, advance lifecycle statuses, and backfill publication details.

Examples:
  tendersync sync --days 1                          daily incremental sync
  tendersync sync --days 7 --type construction      weekly, construction only
  tendersync sync --limit 10 --dry-run              preview without writes
  tendersync sync --details-only --details-limit 100  backfill missing details
  tendersync sync --resume                          continue an interrupted run`,
	RunE: runSync,
}

func init() {
	f := syncCmd.Flags()
	f.IntVar(&syncDays, "days", 0, "only fetch publications from the last N days")
	f.StringArrayVar(&syncTypes, "type", nil,
		fmt.Sprintf("project sub-type filter, repeatable (one of: %v)", simap.ProjectSubTypes))
	f.IntVar(&syncLimit, "limit", 0, "max tenders to fetch from search (for testing)")
	f.IntVar(&syncDetailsLimit, "details-limit", 0, "max publication details to fetch (for testing)")
	f.BoolVar(&syncSkipDetails, "skip-details", false, "skip fetching publication details")
	f.BoolVar(&syncDetailsOnly, "details-only", false, "only backfill details for existing tenders, skip search")
	f.DurationVar(&syncRateLimit, "rate-limit", 0, "delay between detail API calls per worker (default 500ms)")
	f.IntVar(&syncMaxConcurrent, "max-concurrent", 0, "max concurrent detail API calls (default 10)")
	f.BoolVar(&syncResume, "resume", false, "resume from the last interrupted checkpoint")
	f.BoolVar(&syncNoCheckpoint, "no-checkpoint", false, "disable checkpoint saving (for testing)")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg.Days = syncDays
	cfg.Types = syncTypes
	cfg.Limit = syncLimit
	cfg.DetailsLimit = syncDetailsLimit
	cfg.SkipDetails = syncSkipDetails
	cfg.DetailsOnly = syncDetailsOnly
	cfg.Resume = syncResume
	cfg.NoCheckpoint = syncNoCheckpoint
	if syncRateLimit > 0 {
		cfg.DetailDelay = syncRateLimit
	}
	if syncMaxConcurrent > 0 {
		cfg.MaxConcurrent = syncMaxConcurrent
	}
	if cfg.DetailsOnly && cfg.SkipDetails {
		return fmt.Errorf("--details-only conflicts with --skip-details")
	}

	ctx, stop := signalContext(context.Background())
	defer stop()

	pool, rdb, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer rdb.Close()

	stats, err := sync.NewRunner(cfg, pool, rdb, logger).Run(ctx)
	switch {
	case errors.Is(err, sync.ErrAlreadyRunning):
		return err
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("sync interrupted — resume with --resume")
	case err != nil:
		return fmt.Errorf("sync aborted: %w", err)
	}

	if stats.Errors > 0 {
		return fmt.Errorf("sync completed with %d errors", stats.Errors)
	}
	return nil
}
