package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"tenderscout/sync-service/internal/model"
	"tenderscout/sync-service/internal/simap"
	"tenderscout/sync-service/internal/status"
)

// Source is the data-source identifier stored with every record.
const Source = "simap"

// TenderFromProject maps a raw search result to the tenders schema.
// Multilingual fields are kept whole; optional nested fields are validated
// and defaulted here, at the ingestion boundary, so nothing loosely typed
// leaks into scoring.
func TenderFromProject(p simap.Project) model.Tender {
	t := model.Tender{
		ExternalID:     p.ID,
		Source:         Source,
		SourceURL:      fmt.Sprintf("https://www.simap.ch/project/%s", p.ProjectNumber),
		Title:          p.Title,
		Authority:      p.ProcOfficeName,
		ProjectNumber:  p.ProjectNumber,
		PublicationID:  p.PublicationID,
		ProjectType:    p.ProjectType,
		ProjectSubType: p.ProjectSubType,
		ProcessType:    p.ProcessType,
		PubType:        p.PubType,
		Corrected:      p.Corrected,
		Language:       p.Title.Primary(),
		Country:        "CH",
		Status:         string(status.StatusOpen),
		CPVCodes:       []string{},
		BKPCodes:       []string{},
		RawData:        p.Raw,
	}

	if p.OrderAddress != nil {
		t.Region = p.OrderAddress.CantonID
		if p.OrderAddress.CountryID != "" {
			t.Country = p.OrderAddress.CountryID
		}
	}

	t.PublicationDate = parseDate(p.PublicationDate)

	return t
}

// DetailUpdate carries the columns refreshed from the publication-details
// endpoint. Zero-value fields (nil pointers, empty slices and strings) are
// left untouched in the database so a sparse detail response never erases
// data an earlier fetch delivered.
type DetailUpdate struct {
	Description model.LocalizedText
	Deadline    *time.Time
	CPVCodes    []string
	BKPCodes    []string
	PriceMin    *float64
	PriceMax    *float64
	Currency    string
	Region      string
	Country     string
	Raw         json.RawMessage
}

// DetailUpdateFromDetails flattens a detail response into the column set
// the writer applies.
func DetailUpdateFromDetails(d *simap.PublicationDetails) DetailUpdate {
	u := DetailUpdate{
		CPVCodes: []string{},
		BKPCodes: []string{},
		Raw:      d.Raw,
	}

	if proc := d.Procurement; proc != nil {
		u.Description = proc.OrderDescription
		if proc.CPVCode != "" {
			u.CPVCodes = append(u.CPVCodes, proc.CPVCode)
		}
		for _, c := range proc.AdditionalCPVCodes {
			if c.Code != "" {
				u.CPVCodes = append(u.CPVCodes, c.Code)
			}
		}
		for _, c := range proc.BKPCodes {
			if c.Code != "" {
				u.BKPCodes = append(u.BKPCodes, c.Code)
			}
		}
		if v := proc.OrderValue; v != nil {
			u.PriceMin = v.From
			u.PriceMax = v.To
			u.Currency = v.Currency
		}
		if addr := proc.OrderAddress; addr != nil {
			u.Region = addr.CantonID
			u.Country = addr.CountryID
		}
	}

	if d.Dates != nil {
		u.Deadline = parseDate(d.Dates.OfferDeadline)
	}

	return u
}

// parseDate accepts the two timestamp shapes SIMAP emits: RFC 3339 and
// plain YYYY-MM-DD. Returns nil for anything else.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}
