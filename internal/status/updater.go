package status

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Apply runs the deadline-driven status pass over all tenders as two
// set-based updates, mirroring ForDeadline: open → closing_soon when the
// deadline falls within the horizon, and open/closing_soon → closed once
// it has passed. Tenders without a deadline are left alone.
//
// Returns the total number of rows transitioned.
func Apply(ctx context.Context, pool *pgxpool.Pool, now time.Time) (int64, error) {
	horizon := now.Add(ClosingSoonHorizon)

	tag, err := pool.Exec(ctx,
		`UPDATE tenders
		 SET status = $1, status_changed_at = $2, updated_at = $2
		 WHERE status = $3
		   AND deadline IS NOT NULL
		   AND deadline > $2
		   AND deadline <= $4`,
		string(StatusClosingSoon), now, string(StatusOpen), horizon,
	)
	if err != nil {
		return 0, fmt.Errorf("mark closing_soon: %w", err)
	}
	updated := tag.RowsAffected()

	tag, err = pool.Exec(ctx,
		`UPDATE tenders
		 SET status = $1, status_changed_at = $2, updated_at = $2
		 WHERE status IN ($3, $4)
		   AND deadline IS NOT NULL
		   AND deadline <= $2`,
		string(StatusClosed), now, string(StatusOpen), string(StatusClosingSoon),
	)
	if err != nil {
		return updated, fmt.Errorf("mark closed: %w", err)
	}
	return updated + tag.RowsAffected(), nil
}
