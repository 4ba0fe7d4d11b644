package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenderscout/sync-service/internal/model"
)

// UpsertBatchSize bounds the transaction size of a single batched write.
const UpsertBatchSize = 100

// UpsertResult reports what a write pass did, for the end-of-run summary.
type UpsertResult struct {
	Inserted int
	Updated  int
	Errored  int
}

func (r *UpsertResult) add(other UpsertResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Errored += other.Errored
}

const upsertSQL = `
	INSERT INTO tenders (
	  external_id, source, source_url, title, authority, project_number,
	  publication_id, project_type, project_sub_type, process_type, pub_type,
	  corrected, language, region, country, publication_date, status,
	  cpv_codes, bkp_codes, raw_data, updated_at, deleted_at
	) VALUES (
	  $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
	  $12, $13, $14, $15, $16, $17, $18, $19, $20, NOW(), NULL
	)
	ON CONFLICT (external_id, source) DO UPDATE SET
	  source_url       = EXCLUDED.source_url,
	  title            = EXCLUDED.title,
	  authority        = EXCLUDED.authority,
	  project_number   = EXCLUDED.project_number,
	  publication_id   = EXCLUDED.publication_id,
	  project_type     = EXCLUDED.project_type,
	  project_sub_type = EXCLUDED.project_sub_type,
	  process_type     = EXCLUDED.process_type,
	  pub_type         = EXCLUDED.pub_type,
	  corrected        = EXCLUDED.corrected,
	  language         = EXCLUDED.language,
	  region           = EXCLUDED.region,
	  country          = EXCLUDED.country,
	  publication_date = EXCLUDED.publication_date,
	  cpv_codes        = EXCLUDED.cpv_codes,
	  bkp_codes        = EXCLUDED.bkp_codes,
	  raw_data         = EXCLUDED.raw_data,
	  updated_at       = NOW(),
	  deleted_at       = NULL
	RETURNING (xmax = 0) AS inserted`

// Writer idempotently persists tenders keyed by (external_id, source).
// Writes are chunked; a failing chunk degrades to per-row writes so one
// malformed record does not block its siblings. Re-running with the same
// input never creates duplicates. Note that status is only set on insert:
// the status column belongs to the transitioner and must not regress.
type Writer struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	dryRun bool
}

// NewWriter returns a Writer backed by pool.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger, dryRun bool) *Writer {
	return &Writer{pool: pool, logger: logger, dryRun: dryRun}
}

// UpsertTenders writes the batch in chunks of UpsertBatchSize and returns
// per-row counts. Row-level failures are counted, not fatal.
func (w *Writer) UpsertTenders(ctx context.Context, tenders []model.Tender) (UpsertResult, error) {
	var result UpsertResult
	if len(tenders) == 0 {
		return result, nil
	}
	if w.dryRun {
		w.logger.Info("dry run: skipping upsert", "tenders", len(tenders))
		return result, nil
	}

	for _, chunk := range chunkTenders(tenders, UpsertBatchSize) {
		res, err := w.upsertChunk(ctx, chunk)
		if err != nil {
			// Chunk-level failure: degrade to per-row writes so one bad
			// record doesn't take down its siblings.
			w.logger.Warn("batch upsert failed, falling back to per-row writes",
				"chunk_size", len(chunk), "error", err)
			res = w.upsertRows(ctx, chunk)
		}
		result.add(res)
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}
	return result, nil
}

// upsertChunk writes one chunk through a pgx batch pipeline. Any error
// aborts the whole chunk so the caller can retry it row by row.
func (w *Writer) upsertChunk(ctx context.Context, tenders []model.Tender) (UpsertResult, error) {
	batch := &pgx.Batch{}
	for _, t := range tenders {
		batch.Queue(upsertSQL, upsertArgs(t)...)
	}

	br := w.pool.SendBatch(ctx, batch)
	defer br.Close()

	var result UpsertResult
	for range tenders {
		var inserted bool
		if err := br.QueryRow().Scan(&inserted); err != nil {
			return UpsertResult{}, fmt.Errorf("batch upsert: %w", err)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

// upsertRows is the per-row fallback: each failure is logged and counted,
// the rest of the chunk still goes through.
func (w *Writer) upsertRows(ctx context.Context, tenders []model.Tender) UpsertResult {
	var result UpsertResult
	for _, t := range tenders {
		var inserted bool
		err := w.pool.QueryRow(ctx, upsertSQL, upsertArgs(t)...).Scan(&inserted)
		if err != nil {
			w.logger.Error("upsert tender failed", "external_id", t.ExternalID, "error", err)
			result.Errored++
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}
	return result
}

func upsertArgs(t model.Tender) []any {
	return []any{
		t.ExternalID, t.Source, t.SourceURL, t.Title, t.Authority, t.ProjectNumber,
		t.PublicationID, t.ProjectType, t.ProjectSubType, t.ProcessType, t.PubType,
		t.Corrected, t.Language, t.Region, t.Country, t.PublicationDate, t.Status,
		t.CPVCodes, t.BKPCodes, t.RawData,
	}
}

// ApplyDetails merges a detail fetch into an existing tender row. Absent
// values keep the stored column (COALESCE / cardinality guards) so a
// sparse detail response never erases earlier data, and the fetch is
// stamped in details_fetched_at.
func (w *Writer) ApplyDetails(ctx context.Context, tenderID string, u DetailUpdate) error {
	if w.dryRun {
		w.logger.Debug("dry run: skipping detail update", "tender_id", tenderID)
		return nil
	}

	_, err := w.pool.Exec(ctx,
		`UPDATE tenders SET
		   description        = COALESCE($2, description),
		   deadline           = COALESCE($3, deadline),
		   cpv_codes          = CASE WHEN cardinality($4::text[]) > 0 THEN $4 ELSE cpv_codes END,
		   bkp_codes          = CASE WHEN cardinality($5::text[]) > 0 THEN $5 ELSE bkp_codes END,
		   price_min          = COALESCE($6, price_min),
		   price_max          = COALESCE($7, price_max),
		   currency           = COALESCE(NULLIF($8, ''), currency),
		   region             = COALESCE(NULLIF($9, ''), region),
		   country            = COALESCE(NULLIF($10, ''), country),
		   raw_detail_data    = $11,
		   details_fetched_at = NOW(),
		   updated_at         = NOW()
		 WHERE id = $1`,
		tenderID, u.Description, u.Deadline, u.CPVCodes, u.BKPCodes,
		u.PriceMin, u.PriceMax, u.Currency, u.Region, u.Country, u.Raw,
	)
	if err != nil {
		return fmt.Errorf("apply details for %s: %w", tenderID, err)
	}
	return nil
}

// chunkTenders splits tenders into slices of at most size elements.
func chunkTenders(tenders []model.Tender, size int) [][]model.Tender {
	if size <= 0 {
		size = UpsertBatchSize
	}
	chunks := make([][]model.Tender, 0, (len(tenders)+size-1)/size)
	for start := 0; start < len(tenders); start += size {
		end := start + size
		if end > len(tenders) {
			end = len(tenders)
		}
		chunks = append(chunks, tenders[start:end])
	}
	return chunks
}
