package simap

import (
	"encoding/json"

	"tenderscout/sync-service/internal/model"
)

// searchResponse mirrors the top-level v2 project-search JSON response.
// Projects are kept raw so the original payload can be preserved per record.
type searchResponse struct {
	Projects   []json.RawMessage `json:"projects"`
	Pagination paginationInfo    `json:"pagination"`
}

// paginationInfo carries the rolling cursor for the next page.
// Format: YYYYMMDD|projectNumber (e.g. "20260119|26624").
type paginationInfo struct {
	LastItem string `json:"lastItem"`
}

// Project mirrors a single project entry from the search endpoint.
type Project struct {
	ID                string              `json:"id"` // SIMAP project UUID
	ProjectNumber     string              `json:"projectNumber"`
	PublicationNumber string              `json:"publicationNumber"`
	PublicationID     string              `json:"publicationId"`
	PublicationDate   string              `json:"publicationDate"` // YYYY-MM-DD
	Title             model.LocalizedText `json:"title"`
	ProcOfficeName    model.LocalizedText `json:"procOfficeName"`
	ProjectType       string              `json:"projectType"`
	ProjectSubType    string              `json:"projectSubType"`
	ProcessType       string              `json:"processType"`
	PubType           string              `json:"pubType"`
	Corrected         bool                `json:"corrected"`
	OrderAddress      *OrderAddress       `json:"orderAddress"`

	// Raw is the untouched source payload, preserved into tenders.raw_data.
	Raw json.RawMessage `json:"-"`
}

// OrderAddress carries the location fields the sync cares about.
type OrderAddress struct {
	CantonID  string `json:"cantonId"`
	CountryID string `json:"countryId"`
}

// Code is a classification code entry: {"code": "45210000", "label": {...}}.
type Code struct {
	Code  string              `json:"code"`
	Label model.LocalizedText `json:"label"`
}

// PriceRange is the estimated order value from the detail endpoint.
type PriceRange struct {
	From     *float64 `json:"from"`
	To       *float64 `json:"to"`
	Currency string   `json:"currency"`
}

// PublicationDetails mirrors the v1 publication-details response. Sections
// may be explicit null; callers must treat every pointer as optional.
type PublicationDetails struct {
	ProjectInfo *ProjectInfo `json:"project-info"`
	Procurement *Procurement `json:"procurement"`
	Terms       *Terms       `json:"terms"`
	Dates       *Dates       `json:"dates"`

	// Raw is the untouched detail payload, preserved into
	// tenders.raw_detail_data.
	Raw json.RawMessage `json:"-"`
}

// ProjectInfo is the project-info section of the detail response.
type ProjectInfo struct {
	PublicationLanguages []string `json:"publicationLanguages"`
	StateContractArea    bool     `json:"stateContractArea"`
}

// Procurement is the procurement section of the detail response.
type Procurement struct {
	OrderDescription   model.LocalizedText `json:"orderDescription"`
	CPVCode            string              `json:"cpvCode"`
	AdditionalCPVCodes []Code              `json:"additionalCpvCodes"`
	BKPCodes           []Code              `json:"bkpCodes"`
	OrderValue         *PriceRange         `json:"orderValue"`
	OrderAddress       *OrderAddress       `json:"orderAddress"`
}

// Terms is the terms section of the detail response.
type Terms struct {
	ConsortiumAllowed    string `json:"consortiumAllowed"`
	SubContractorAllowed string `json:"subContractorAllowed"`
}

// Dates is the dates section of the detail response.
type Dates struct {
	OfferDeadline string `json:"offerDeadline"` // RFC 3339 or YYYY-MM-DD
}

// ProjectSubTypes lists every project sub-type accepted by the search
// endpoint as a filter value.
var ProjectSubTypes = []string{
	"construction",
	"service",
	"supply",
	"project_competition",
	"idea_competition",
	"overall_performance_competition",
	"project_study",
	"idea_study",
	"overall_performance_study",
	"request_for_information",
}

// IsProjectSubType reports whether s is a known project sub-type.
func IsProjectSubType(s string) bool {
	for _, t := range ProjectSubTypes {
		if t == s {
			return true
		}
	}
	return false
}
