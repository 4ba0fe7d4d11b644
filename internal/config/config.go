// Package config loads and validates runtime configuration.
// Fail-fast: if a required value is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults mirroring the SIMAP worker's tuning constants.
const (
	DefaultDetailDelay    = 500 * time.Millisecond // between detail API calls per worker slot
	DefaultMaxConcurrent  = 10                     // max in-flight detail requests
	DefaultMatchThreshold = 50                     // minimum score that creates a match row
	DefaultSchedule       = "@every 6h"            // serve-mode cron spec
)

// Config holds all runtime configuration for the sync service. It is built
// once at startup (env vars first, CLI flags override) and passed to each
// component at construction — never read ad hoc mid-pipeline.
type Config struct {
	DatabaseURL string
	RedisURL    string

	// SIMAP API base URLs; overridable for tests and staging mirrors.
	SimapSearchBaseURL string
	SimapDetailBaseURL string

	// Filtering
	Days  int      // lookback window in days; 0 means no date filter
	Types []string // project sub-type filters; empty means all

	// Limits (for testing)
	Limit        int
	DetailsLimit int

	// Modes
	DryRun       bool
	SkipDetails  bool
	DetailsOnly  bool
	Resume       bool
	NoCheckpoint bool

	// Performance
	MaxConcurrent int
	DetailDelay   time.Duration

	// Matching
	MatchThreshold int

	// Scheduling (serve mode)
	Schedule string

	// Logging
	Verbose   bool
	LogFile   string
	NoLogFile bool
}

// Load reads environment variables and returns a validated Config.
// A .env file in the working directory is honoured when present.
func Load() (*Config, error) {
	_ = godotenv.Load() // best-effort; env vars win over .env

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	threshold := DefaultMatchThreshold
	if s := os.Getenv("MATCH_THRESHOLD"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 || v > 100 {
			return nil, fmt.Errorf("MATCH_THRESHOLD must be an integer in [0,100], got %q", s)
		}
		threshold = v
	}

	return &Config{
		DatabaseURL:        dbURL,
		RedisURL:           redisURL,
		SimapSearchBaseURL: getEnv("SIMAP_API_BASE_V2", "https://www.simap.ch/api/publications/v2/project"),
		SimapDetailBaseURL: getEnv("SIMAP_API_BASE_V1", "https://www.simap.ch/api/publications/v1/project"),
		MaxConcurrent:      DefaultMaxConcurrent,
		DetailDelay:        DefaultDetailDelay,
		MatchThreshold:     threshold,
		Schedule:           getEnv("SYNC_SCHEDULE", DefaultSchedule),
		LogFile:            getEnv("SYNC_LOG_FILE", "tendersync.log"),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
