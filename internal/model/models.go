// Package model defines shared data structures for the sync service.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// LocalizedText mirrors SIMAP's multilingual field shape:
//
//	{"de": "Fassadensanierung", "fr": null, "it": null, "en": null}
//
// It is stored as-is in JSONB columns; languages with no content are empty.
type LocalizedText map[string]string

// langPriority is the Swiss language preference order used to pick a
// primary language for a record.
var langPriority = []string{"de", "fr", "it", "en"}

// Primary returns the first language (de > fr > it > en) that has content,
// defaulting to "de" when every field is empty.
func (t LocalizedText) Primary() string {
	for _, lang := range langPriority {
		if t[lang] != "" {
			return lang
		}
	}
	return "de"
}

// Get returns the text for lang, falling back through the language priority
// order when that language has no content.
func (t LocalizedText) Get(lang string) string {
	if s := t[lang]; s != "" {
		return s
	}
	for _, l := range langPriority {
		if t[l] != "" {
			return t[l]
		}
	}
	return ""
}

// Join concatenates all non-empty language variants, separated by sep.
// Used by the match scorer, which searches every language at once.
func (t LocalizedText) Join(sep string) string {
	parts := make([]string, 0, len(t))
	for _, lang := range langPriority {
		if t[lang] != "" {
			parts = append(parts, t[lang])
		}
	}
	return strings.Join(parts, sep)
}

// Tender mirrors a row of the tenders table. Identity is the pair
// (ExternalID, Source) — globally unique and never reassigned.
type Tender struct {
	ID         string
	ExternalID string // SIMAP project UUID
	Source     string // "simap"
	SourceURL  string

	Title       LocalizedText
	Authority   LocalizedText
	Description LocalizedText

	ProjectNumber  string
	PublicationID  string // needed for the publication-details endpoint
	ProjectType    string // tender, competition, study
	ProjectSubType string // construction, service, supply, …
	ProcessType    string // open, selective, invitation, direct
	PubType        string // tender, award, revocation, …
	Corrected      bool

	Language string
	Region   string // canton code: BE, ZH, …
	Country  string

	PriceMin *float64
	PriceMax *float64
	Currency string

	Deadline        *time.Time
	PublicationDate *time.Time

	Status string // lifecycle status, owned by the status package

	// Classification code sets. Never nil — only empty.
	CPVCodes []string // EU procurement vocabulary
	BKPCodes []string // Swiss construction-works vocabulary

	RawData       json.RawMessage // original search payload
	RawDetailData json.RawMessage // original detail payload

	DetailsFetchedAt *time.Time
	DeletedAt        *time.Time
	UpdatedAt        time.Time
}

// Checkpoint run statuses persisted in sync_state.last_run_status.
const (
	CheckpointInProgress  = "in_progress"
	CheckpointCompleted   = "completed"
	CheckpointInterrupted = "interrupted"
	CheckpointFailed      = "failed"
)

// Checkpoint mirrors a sync_state row: resumable progress for one sync job.
type Checkpoint struct {
	ID               string // job name, e.g. "simap_search"
	LastCursor       *string
	LastRunAt        time.Time
	LastRunStatus    string
	RecordsProcessed int
	Metadata         map[string]any
}

// Resumable reports whether a fresh run may continue from this checkpoint's
// cursor instead of starting over.
func (c *Checkpoint) Resumable() bool {
	if c == nil || c.LastCursor == nil || *c.LastCursor == "" {
		return false
	}
	return c.LastRunStatus == CheckpointInProgress || c.LastRunStatus == CheckpointInterrupted
}

// MatchingProfile mirrors the matching_profiles table row relevant to
// scoring. Profiles are owned by the profile-management service; the sync
// service only reads them.
type MatchingProfile struct {
	ID                string
	Keywords          []string // positive keywords, substring match
	ExclusionKeywords []string // any match applies a flat penalty
	Regions           []string // target canton codes
	CPVCodes          []string
	BKPCodes          []string
}

// TenderMatch mirrors a tender_matches row. The scoring engine only ever
// writes Score and MatchedAt; the remaining fields belong to the user.
type TenderMatch struct {
	ProfileID  string
	TenderID   string
	Score      int
	MatchedAt  time.Time
	Bookmarked bool
	Applied    bool
	Hidden     bool
	Notes      *string
}
