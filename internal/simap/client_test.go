package simap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(searchURL, detailURL string) *Client {
	c := NewClient(searchURL, detailURL)
	c.retryBase = time.Millisecond
	return c
}

func TestSearchPage_RequiresFilter(t *testing.T) {
	c := newTestClient("http://localhost", "http://localhost")
	_, _, err := c.SearchPage(context.Background(), SearchFilter{Lang: "de"}, "")
	if err == nil {
		t.Fatal("SearchPage accepted a filterless query")
	}
}

func TestSearchFilter_Validate(t *testing.T) {
	cases := []struct {
		name    string
		filter  SearchFilter
		wantErr bool
	}{
		{"sub-types only", SearchFilter{ProjectSubTypes: []string{"construction"}}, false},
		{"swiss only", SearchFilter{SwissOnly: true}, false},
		{"publication window", SearchFilter{PublicationFrom: "2026-08-01"}, false},
		{"lang is not a filter", SearchFilter{Lang: "de"}, true},
		{"unknown sub-type", SearchFilter{ProjectSubTypes: []string{"bogus"}}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.filter.Validate()
			if (err != nil) != c.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestSearchPage_PassesCursorAndFilters(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"projects":[],"pagination":{"lastItem":""}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	filter := SearchFilter{
		Lang:            "de",
		ProjectSubTypes: []string{"construction", "service"},
		SwissOnly:       true,
		PublicationFrom: "2026-08-16",
	}
	if _, _, err := c.SearchPage(context.Background(), filter, "20260815|12345"); err != nil {
		t.Fatalf("SearchPage: %v", err)
	}

	want := map[string]string{
		"lang":                               "de",
		"projectSubTypes":                    "construction,service",
		"orderAddressCountryOnlySwitzerland": "true",
		"newestPublicationFrom":              "2026-08-16",
		"lastItem":                           "20260815|12345",
	}
	for key, val := range want {
		if got := gotQuery[key]; len(got) != 1 || got[0] != val {
			t.Errorf("query[%s] = %v, want %q", key, got, val)
		}
	}
}

func TestSearchPage_DecodesProjectsAndCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"projects": [
				{"id":"aaa","projectNumber":"100","title":{"de":"Sanierung A"}},
				{"id":"bbb","projectNumber":"101","title":{"fr":"Rénovation B"}}
			],
			"pagination": {"lastItem": "20260820|101"}
		}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	projects, next, err := c.SearchPage(context.Background(), SearchFilter{SwissOnly: true}, "")
	if err != nil {
		t.Fatalf("SearchPage: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("got %d projects, want 2", len(projects))
	}
	if next != "20260820|101" {
		t.Errorf("next cursor = %q, want %q", next, "20260820|101")
	}
	if projects[0].ID != "aaa" || projects[0].Title["de"] != "Sanierung A" {
		t.Errorf("first project decoded wrong: %+v", projects[0])
	}
	// Raw must carry the untouched per-project payload.
	if len(projects[1].Raw) == 0 {
		t.Error("project Raw payload not preserved")
	}
}

func TestSearchPage_EmptyPageMeansEndOfStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"projects":[],"pagination":{}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	projects, next, err := c.SearchPage(context.Background(), SearchFilter{SwissOnly: true}, "")
	if err != nil {
		t.Fatalf("SearchPage: %v", err)
	}
	if len(projects) != 0 || next != "" {
		t.Errorf("got %d projects, cursor %q; want empty page and cursor", len(projects), next)
	}
}

func TestSearchPage_NoRetryOnServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, _, err := c.SearchPage(context.Background(), SearchFilter{SwissOnly: true}, "")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("SearchPage returned %v, want 502 StatusError", err)
	}
	if calls != 1 {
		t.Errorf("search endpoint called %d times, want 1 (page failures are not retried)", calls)
	}
}

func TestPublicationDetails_RetriesRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{
			"procurement": {
				"cpvCode": "45210000",
				"bkpCodes": [{"code":"211","label":{"de":"Baumeisterarbeiten"}}],
				"orderValue": {"from": 100000, "to": 500000, "currency": "CHF"}
			},
			"dates": {"offerDeadline": "2026-09-30"}
		}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	details, err := c.PublicationDetails(context.Background(), "proj-1", "pub-1")
	if err != nil {
		t.Fatalf("PublicationDetails: %v", err)
	}
	if calls != 3 {
		t.Errorf("detail endpoint called %d times, want 3", calls)
	}
	if details.Procurement == nil || details.Procurement.CPVCode != "45210000" {
		t.Errorf("procurement decoded wrong: %+v", details.Procurement)
	}
	if details.Dates == nil || details.Dates.OfferDeadline != "2026-09-30" {
		t.Errorf("dates decoded wrong: %+v", details.Dates)
	}
	if len(details.Raw) == 0 {
		t.Error("detail Raw payload not preserved")
	}
}

func TestPublicationDetails_NoRetryOnNotFound(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.PublicationDetails(context.Background(), "proj-1", "pub-1")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("PublicationDetails returned %v, want 404 StatusError", err)
	}
	if calls != 1 {
		t.Errorf("detail endpoint called %d times, want 1", calls)
	}
}

func TestPublicationDetails_NullSections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"project-info": null, "procurement": null, "terms": null, "dates": null}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	details, err := c.PublicationDetails(context.Background(), "proj-1", "pub-1")
	if err != nil {
		t.Fatalf("PublicationDetails: %v", err)
	}
	if details.Procurement != nil || details.Dates != nil {
		t.Errorf("null sections should decode to nil pointers: %+v", details)
	}
}
