package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tenderscout/sync-service/internal/simap"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDetailFetcher_FetchesAllJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path]++
		mu.Unlock()
		fmt.Fprint(w, `{"procurement":{"cpvCode":"45210000"}}`)
	}))
	defer srv.Close()

	fetcher := &DetailFetcher{
		Client:      simap.NewClient(srv.URL, srv.URL),
		Concurrency: 3,
		Logger:      discardLogger(),
	}

	jobs := make([]DetailJob, 10)
	for i := range jobs {
		jobs[i] = DetailJob{
			TenderID:      fmt.Sprintf("tender-%d", i),
			ExternalID:    fmt.Sprintf("proj-%d", i),
			PublicationID: fmt.Sprintf("pub-%d", i),
		}
	}

	got := 0
	for res := range fetcher.Fetch(context.Background(), jobs) {
		if res.Err != nil {
			t.Errorf("unexpected fetch error for %s: %v", res.TenderID, res.Err)
			continue
		}
		if len(res.Update.CPVCodes) != 1 || res.Update.CPVCodes[0] != "45210000" {
			t.Errorf("update for %s = %+v", res.TenderID, res.Update)
		}
		got++
	}
	if got != len(jobs) {
		t.Errorf("got %d results, want %d", got, len(jobs))
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(jobs) {
		t.Errorf("server saw %d distinct paths, want %d", len(seen), len(jobs))
	}
}

// Permanent failures surface as per-job errors in the stream; the rest of
// the batch still goes through.
func TestDetailFetcher_PermanentFailureSkipsRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "proj-bad") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	fetcher := &DetailFetcher{
		Client:      simap.NewClient(srv.URL, srv.URL),
		Concurrency: 2,
		Logger:      discardLogger(),
	}

	jobs := []DetailJob{
		{TenderID: "t1", ExternalID: "proj-ok", PublicationID: "p1"},
		{TenderID: "t2", ExternalID: "proj-bad", PublicationID: "p2"},
		{TenderID: "t3", ExternalID: "proj-ok-too", PublicationID: "p3"},
	}

	failed, succeeded := 0, 0
	for res := range fetcher.Fetch(context.Background(), jobs) {
		if res.Err != nil {
			failed++
			if res.TenderID != "t2" {
				t.Errorf("error attributed to %s, want t2", res.TenderID)
			}
		} else {
			succeeded++
		}
	}
	if failed != 1 || succeeded != 2 {
		t.Errorf("failed=%d succeeded=%d, want 1/2", failed, succeeded)
	}
}

func TestDetailFetcher_CancellationClosesStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	fetcher := &DetailFetcher{
		Client:      simap.NewClient(srv.URL, srv.URL),
		Concurrency: 1,
		Logger:      discardLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []DetailJob{{TenderID: "t1", ExternalID: "proj", PublicationID: "p"}}
	results := fetcher.Fetch(ctx, jobs)

	// The stream must close even though the context is already cancelled;
	// ranging over it must not hang.
	for range results {
	}
}

func TestDetailFetcher_DefaultsToOneWorker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	fetcher := &DetailFetcher{
		Client: simap.NewClient(srv.URL, srv.URL),
		Logger: discardLogger(),
	}

	got := 0
	for range fetcher.Fetch(context.Background(), []DetailJob{
		{TenderID: "t1", ExternalID: "proj", PublicationID: "p"},
	}) {
		got++
	}
	if got != 1 {
		t.Errorf("got %d results, want 1", got)
	}
}
