// Package cli implements the tendersync command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"tenderscout/sync-service/internal/config"
	"tenderscout/sync-service/internal/db"
)

// Shared state wired by the root command's PersistentPreRunE.
var (
	cfg        *config.Config
	logger     *slog.Logger
	logCleanup func() error

	flagDatabaseURL string
	flagRedisURL    string
	flagLogFile     string
	flagNoLogFile   bool
	flagVerbose     bool
	flagDryRun      bool
)

var rootCmd = &cobra.Command{
	Use:   "tendersync",
	Short: "Sync SIMAP public procurement tenders and score matching profiles",
	Long: `tendersync keeps a local tender store in sync with the Swiss SIMAP
procurement platform and scores tenders against user matching profiles.

It is a batch job: invoke "sync" or "match" from a scheduler (cron, CI),
or run "serve" to let the built-in cron scheduler drive both.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		// Flags override environment.
		if cmd.Flags().Changed("database-url") {
			cfg.DatabaseURL = flagDatabaseURL
		}
		if cmd.Flags().Changed("redis-url") {
			cfg.RedisURL = flagRedisURL
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = flagLogFile
		}
		cfg.NoLogFile = flagNoLogFile
		cfg.Verbose = flagVerbose
		cfg.DryRun = flagDryRun

		logFile := cfg.LogFile
		if cfg.NoLogFile {
			logFile = ""
		}
		logger, logCleanup = config.SetupLogger(logFile, cfg.Verbose)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env var)")
	pf.StringVar(&flagRedisURL, "redis-url", "", "Redis connection URL (or REDIS_URL env var)")
	pf.StringVar(&flagLogFile, "log-file", "", "log file path (default tendersync.log, or SYNC_LOG_FILE env var)")
	pf.BoolVar(&flagNoLogFile, "no-log-file", false, "disable file logging (console only)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&flagDryRun, "dry-run", false, "fetch from the API but skip all database writes")
}

// Execute runs the CLI; a non-nil return maps to a non-zero exit code so
// schedulers can alert on failed runs.
func Execute() error {
	return rootCmd.Execute()
}

// connect opens the shared PostgreSQL pool and Redis client.
func connect(ctx context.Context) (*pgxpool.Pool, *redis.Client, error) {
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return pool, rdb, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, so runs
// finish their current unit of work and flush checkpoints before exiting.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
