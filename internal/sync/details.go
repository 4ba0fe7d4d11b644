package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tenderscout/sync-service/internal/simap"
)

// DetailJob identifies one tender whose extended record should be fetched.
type DetailJob struct {
	TenderID      string // database id
	ExternalID    string // SIMAP project UUID
	PublicationID string
}

// DetailResult is one element of the fetcher's output stream.
type DetailResult struct {
	TenderID string
	Update   DetailUpdate
	Err      error
}

// DetailFetcher retrieves extended records under a bounded worker pool.
// Each worker sleeps Delay between calls, so Concurrency × 1/Delay bounds
// the request pressure on the source API. Results are streamed over a
// bounded channel so the writer consumes them incrementally — nothing is
// lost wholesale if the run is interrupted mid-stream.
type DetailFetcher struct {
	Client      *simap.Client
	Concurrency int
	Delay       time.Duration
	Logger      *slog.Logger
}

// Fetch starts the worker pool over jobs and returns the result stream.
// The channel is closed once every job is either done or abandoned due to
// ctx cancellation. In-flight requests finish or fail cleanly; queued jobs
// are dropped on cancellation.
func (f *DetailFetcher) Fetch(ctx context.Context, jobs []DetailJob) <-chan DetailResult {
	concurrency := f.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	jobCh := make(chan DetailJob)
	results := make(chan DetailResult, concurrency)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.worker(ctx, jobCh, results)
		}()
	}

	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (f *DetailFetcher) worker(ctx context.Context, jobs <-chan DetailJob, results chan<- DetailResult) {
	for job := range jobs {
		if ctx.Err() != nil {
			return
		}

		details, err := f.Client.PublicationDetails(ctx, job.ExternalID, job.PublicationID)
		if err != nil {
			// Retries already happened inside the client; whatever is left
			// is either permanent (4xx) or exhausted. Skip the record.
			f.Logger.Warn("detail fetch failed",
				"external_id", job.ExternalID, "publication_id", job.PublicationID, "error", err)
			if !send(ctx, results, DetailResult{TenderID: job.TenderID, Err: err}) {
				return
			}
		} else {
			res := DetailResult{TenderID: job.TenderID, Update: DetailUpdateFromDetails(details)}
			if !send(ctx, results, res) {
				return
			}
		}

		// Per-slot rate limit between calls.
		if f.Delay > 0 {
			select {
			case <-time.After(f.Delay):
			case <-ctx.Done():
				return
			}
		}
	}
}

func send(ctx context.Context, results chan<- DetailResult, r DetailResult) bool {
	select {
	case results <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
