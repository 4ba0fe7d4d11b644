package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tenderscout/sync-service/internal/matching"
)

var matchThreshold int

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score all open tenders against active matching profiles",
	Long: `Run one scoring pass: every active matching profile against every
open or closing-soon tender. Scores at or above the threshold create or
refresh match records; user flags and notes are never touched.

Run this after a sync, or whenever profiles changed.`,
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().IntVar(&matchThreshold, "threshold", 0,
		"minimum score that creates a match record (default 50)")

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("threshold") {
		if matchThreshold < 0 || matchThreshold > 100 {
			return fmt.Errorf("--threshold must be in [0,100], got %d", matchThreshold)
		}
		cfg.MatchThreshold = matchThreshold
	}

	ctx, stop := signalContext(context.Background())
	defer stop()

	pool, rdb, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer rdb.Close()

	engine := matching.NewEngine(pool, rdb, cfg.MatchThreshold, logger, cfg.DryRun)
	stats, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("matching pass aborted: %w", err)
	}
	if stats.Errors > 0 {
		return fmt.Errorf("matching completed with %d errors", stats.Errors)
	}
	return nil
}
