package cli

import (
	"context"

	"github.com/spf13/cobra"

	"tenderscout/sync-service/internal/scheduler"
)

var (
	serveSchedule string
	serveDays     int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run sync and matching on a recurring schedule",
	Long: `Run as a long-lived process: a cron scheduler triggers a full sync
followed by a matching pass on the configured schedule (default every 6h),
with one cycle run immediately at startup. Stops cleanly on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "",
		`cron spec for the sync cycle (default "@every 6h", or SYNC_SCHEDULE env var)`)
	serveCmd.Flags().IntVar(&serveDays, "days", 1, "lookback window in days for each scheduled sync")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("schedule") {
		cfg.Schedule = serveSchedule
	}
	cfg.Days = serveDays

	ctx, stop := signalContext(context.Background())
	defer stop()

	pool, rdb, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer rdb.Close()

	sched := scheduler.New(cfg, pool, rdb, logger)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")
	sched.Stop()
	return nil
}
