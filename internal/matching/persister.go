package matching

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Persister records scores in tender_matches, keyed by (profile, tender).
// It only ever touches score and matched_at — the bookmarked/applied/
// hidden flags and the notes column are user-owned and must survive every
// re-scoring pass byte for byte.
type Persister struct {
	pool      *pgxpool.Pool
	threshold int
}

// NewPersister returns a Persister that creates match rows at or above
// threshold.
func NewPersister(pool *pgxpool.Pool, threshold int) *Persister {
	return &Persister{pool: pool, threshold: threshold}
}

// Persist applies one (profile, tender, score) result:
//   - score ≥ threshold: upsert the row, updating score and matched_at;
//   - score < threshold and the row exists: update the stale score in
//     place (a profile edit that lowers relevance is still reflected);
//   - score < threshold and no row: do nothing.
//
// Rows are never deleted here. Returns whether a new match was created.
func (p *Persister) Persist(ctx context.Context, profileID, tenderID string, score int) (bool, error) {
	if score >= p.threshold {
		var inserted bool
		err := p.pool.QueryRow(ctx,
			`INSERT INTO tender_matches (profile_id, tender_id, score, matched_at)
			 VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (profile_id, tender_id) DO UPDATE SET
			   score      = EXCLUDED.score,
			   matched_at = NOW()
			 RETURNING (xmax = 0) AS inserted`,
			profileID, tenderID, score,
		).Scan(&inserted)
		if err != nil {
			return false, fmt.Errorf("upsert match %s/%s: %w", profileID, tenderID, err)
		}
		return inserted, nil
	}

	_, err := p.pool.Exec(ctx,
		`UPDATE tender_matches
		 SET score = $3, matched_at = NOW()
		 WHERE profile_id = $1 AND tender_id = $2`,
		profileID, tenderID, score,
	)
	if err != nil {
		return false, fmt.Errorf("update match %s/%s: %w", profileID, tenderID, err)
	}
	return false, nil
}
