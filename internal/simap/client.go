// Package simap implements the client for the public SIMAP procurement API.
//
// SIMAP (Système d'information sur les marchés publics) is the official
// Swiss public procurement platform. The API is public and requires no
// authentication. Search uses "rolling pagination": each page carries a
// lastItem cursor of the form YYYYMMDD|projectNumber which is passed back
// verbatim to get the next page.
package simap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	httpTimeout = 30 * time.Second

	// MaxSearchPages is a hard ceiling on the pagination loop, guarding
	// against a misbehaving source that keeps returning fresh cursors.
	MaxSearchPages = 1000

	// Detail endpoint retry tuning.
	DetailMaxRetries = 3
	DetailRetryBase  = 2 * time.Second
)

// SearchFilter holds the filter parameters for the project-search endpoint.
// The API rejects unfiltered queries, so at least one filter must be set.
type SearchFilter struct {
	Lang            string   // search language, e.g. "de"
	ProjectSubTypes []string // construction, service, supply, …
	ProcessTypes    []string // open, selective, invitation, direct
	FullText        string
	CPVCodes        []string
	Cantons         []string
	PublicationFrom string // YYYY-MM-DD
	PublicationTo   string // YYYY-MM-DD
	SwissOnly       bool
}

// Validate checks that the filter would be accepted by the API: at least
// one real filter dimension must be present, and sub-types must be known.
func (f SearchFilter) Validate() error {
	for _, t := range f.ProjectSubTypes {
		if !IsProjectSubType(t) {
			return fmt.Errorf("unknown project sub-type %q", t)
		}
	}
	if len(f.ProjectSubTypes) == 0 && len(f.ProcessTypes) == 0 && f.FullText == "" &&
		len(f.CPVCodes) == 0 && len(f.Cantons) == 0 &&
		f.PublicationFrom == "" && f.PublicationTo == "" && !f.SwissOnly {
		return fmt.Errorf("at least one search filter is required")
	}
	return nil
}

func (f SearchFilter) values() url.Values {
	params := url.Values{}
	if f.Lang != "" {
		params.Set("lang", f.Lang)
	}
	if len(f.ProjectSubTypes) > 0 {
		params.Set("projectSubTypes", strings.Join(f.ProjectSubTypes, ","))
	}
	if len(f.ProcessTypes) > 0 {
		params.Set("processTypes", strings.Join(f.ProcessTypes, ","))
	}
	if f.FullText != "" {
		params.Set("fullText", f.FullText)
	}
	if len(f.CPVCodes) > 0 {
		params.Set("cpvCodes", strings.Join(f.CPVCodes, ","))
	}
	if len(f.Cantons) > 0 {
		params.Set("orderAddressCantons", strings.Join(f.Cantons, ","))
	}
	if f.SwissOnly {
		params.Set("orderAddressCountryOnlySwitzerland", "true")
	}
	if f.PublicationFrom != "" {
		params.Set("newestPublicationFrom", f.PublicationFrom)
	}
	if f.PublicationTo != "" {
		params.Set("newestPublicationUntil", f.PublicationTo)
	}
	return params
}

// Client talks to the SIMAP publications API.
type Client struct {
	searchBase string // …/api/publications/v2/project
	detailBase string // …/api/publications/v1/project
	client     *http.Client

	retries   int
	retryBase time.Duration
}

// NewClient constructs a Client with a shared HTTP client. The base URLs
// come from configuration so tests can point at a local server.
func NewClient(searchBase, detailBase string) *Client {
	return &Client{
		searchBase: strings.TrimRight(searchBase, "/"),
		detailBase: strings.TrimRight(detailBase, "/"),
		client:     &http.Client{Timeout: httpTimeout},
		retries:    DetailMaxRetries,
		retryBase:  DetailRetryBase,
	}
}

// SearchPage fetches one page of the project search. cursor is empty for
// the first page. It returns the page's projects and the cursor for the
// next page; an empty next cursor means end of stream. SearchPage performs
// no retries — page-level failures abort the run and the checkpoint keeps
// it resumable.
func (c *Client) SearchPage(ctx context.Context, filter SearchFilter, cursor string) ([]Project, string, error) {
	if err := filter.Validate(); err != nil {
		return nil, "", err
	}

	params := filter.values()
	if cursor != "" {
		params.Set("lastItem", cursor)
	}

	reqURL := c.searchBase + "/project-search?" + params.Encode()
	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, "", err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("decode search response: %w", err)
	}

	projects := make([]Project, 0, len(resp.Projects))
	for _, raw := range resp.Projects {
		var p Project
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", fmt.Errorf("decode project: %w", err)
		}
		p.Raw = raw
		projects = append(projects, p)
	}

	return projects, resp.Pagination.LastItem, nil
}

// PublicationDetails fetches the extended record for one publication:
// GET /project/{projectId}/publication-details/{publicationId}.
// Transient failures (429, 5xx, timeouts) are retried with exponential
// backoff; other 4xx responses are returned as-is for the caller to skip.
func (c *Client) PublicationDetails(ctx context.Context, projectID, publicationID string) (*PublicationDetails, error) {
	reqURL := fmt.Sprintf("%s/%s/publication-details/%s",
		c.detailBase, url.PathEscape(projectID), url.PathEscape(publicationID))

	var body []byte
	err := Retry(ctx, c.retries, c.retryBase, func() error {
		var err error
		body, err = c.get(ctx, reqURL)
		return err
	})
	if err != nil {
		return nil, err
	}

	var details PublicationDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("decode publication details: %w", err)
	}
	details.Raw = body
	return &details, nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: reqURL}
	}
	return body, nil
}
