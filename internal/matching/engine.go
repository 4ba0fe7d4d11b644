package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"tenderscout/sync-service/internal/model"
	"tenderscout/sync-service/internal/status"
)

// EngineStats summarises one scoring pass.
type EngineStats struct {
	Profiles int
	Tenders  int
	Scored   int
	Created  int
	Updated  int
	Errors   int
}

// Engine runs the full scoring pass: every active profile against every
// open tender. It is independent of the sync job and safe to run
// concurrently with it — both sides only touch fields they own.
type Engine struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	persister *Persister
	logger    *slog.Logger
	dryRun    bool
}

// NewEngine wires an Engine from shared connections.
func NewEngine(pool *pgxpool.Pool, rdb *redis.Client, threshold int, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		pool:      pool,
		rdb:       rdb,
		persister: NewPersister(pool, threshold),
		logger:    logger,
		dryRun:    dryRun,
	}
}

// Run scores profiles × tenders and persists results above threshold.
// Per-pair persistence failures are counted, not fatal; cancellation is
// observed between tenders.
func (e *Engine) Run(ctx context.Context) (EngineStats, error) {
	var stats EngineStats

	profiles, err := e.loadActiveProfiles(ctx)
	if err != nil {
		return stats, fmt.Errorf("load matching profiles: %w", err)
	}
	stats.Profiles = len(profiles)
	if len(profiles) == 0 {
		e.logger.Info("no active matching profiles — nothing to score")
		return stats, nil
	}

	rows, err := e.pool.Query(ctx,
		`SELECT id, title, description, region, cpv_codes, bkp_codes
		 FROM tenders
		 WHERE deleted_at IS NULL
		   AND status IN ($1, $2)`,
		string(status.StatusOpen), string(status.StatusClosingSoon),
	)
	if err != nil {
		return stats, fmt.Errorf("query open tenders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		var t model.Tender
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Region, &t.CPVCodes, &t.BKPCodes); err != nil {
			return stats, fmt.Errorf("scan tender: %w", err)
		}
		stats.Tenders++

		for _, p := range profiles {
			score := Score(p, t)
			stats.Scored++
			if e.dryRun {
				continue
			}

			created, err := e.persister.Persist(ctx, p.ID, t.ID, score)
			if err != nil {
				e.logger.Error("persist match failed",
					"profile_id", p.ID, "tender_id", t.ID, "error", err)
				stats.Errors++
				continue
			}
			if created {
				stats.Created++
			} else if score >= e.persister.threshold {
				stats.Updated++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate tenders: %w", err)
	}

	e.publishNewMatches(ctx, stats)

	e.logger.Info("matching pass complete",
		"profiles", stats.Profiles,
		"tenders", stats.Tenders,
		"scored", stats.Scored,
		"created", stats.Created,
		"updated", stats.Updated,
		"errors", stats.Errors)
	return stats, nil
}

// loadActiveProfiles fetches all is_active = true matching profiles. The
// profile table is owned by the profile-management service; this is a
// read-only view of it.
func (e *Engine) loadActiveProfiles(ctx context.Context) ([]model.MatchingProfile, error) {
	rows, err := e.pool.Query(ctx,
		`SELECT id, keywords, exclusion_keywords, regions, cpv_codes, bkp_codes
		 FROM matching_profiles
		 WHERE is_active = true`,
	)
	if err != nil {
		return nil, fmt.Errorf("query matching_profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.MatchingProfile
	for rows.Next() {
		var p model.MatchingProfile
		if err := rows.Scan(&p.ID, &p.Keywords, &p.ExclusionKeywords, &p.Regions, &p.CPVCodes, &p.BKPCodes); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// publishNewMatches notifies the gateway that new matches exist (SSE
// fan-out to users). Non-fatal.
func (e *Engine) publishNewMatches(ctx context.Context, stats EngineStats) {
	if e.rdb == nil || e.dryRun || stats.Created == 0 {
		return
	}
	event, _ := json.Marshal(map[string]any{
		"type":    "EVENT_NEW_MATCHES",
		"created": stats.Created,
		"updated": stats.Updated,
	})
	if err := e.rdb.Publish(ctx, "EVENT_NEW_MATCHES", event).Err(); err != nil {
		e.logger.Warn("publish EVENT_NEW_MATCHES failed", "error", err)
	}
}
