// Package matching scores tenders against user matching profiles and
// persists the results.
package matching

import (
	"strings"

	"tenderscout/sync-service/internal/model"
)

// Component weights of the relevance score. The ratio components divide by
// the profile's set size, not the tender's: a profile with many codes is
// not penalised for partial overlap with a narrowly classified tender.
const (
	weightCPV      = 40.0
	weightKeywords = 25.0
	weightRegion   = 20.0
	weightBKP      = 15.0

	// Flat penalty when any exclusion keyword matches, applied once
	// regardless of how many exclusion terms hit.
	exclusionPenalty = 20.0
)

// Score computes the weighted relevance of a tender for a profile as an
// integer in [0,100]. It is deterministic and side-effect free.
func Score(p model.MatchingProfile, t model.Tender) int {
	text := strings.ToLower(t.Title.Join(" ") + " " + t.Description.Join(" "))

	score := weightCPV*overlapRatio(p.CPVCodes, t.CPVCodes) +
		weightKeywords*keywordRatio(p.Keywords, text) +
		weightRegion*regionMatch(p.Regions, t.Region) +
		weightBKP*overlapRatio(p.BKPCodes, t.BKPCodes)

	if containsAny(text, p.ExclusionKeywords) {
		score -= exclusionPenalty
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score) // truncate
}

// overlapRatio returns |profile ∩ tender| / |profile|, or 0 when either
// set is empty.
func overlapRatio(profileCodes, tenderCodes []string) float64 {
	if len(profileCodes) == 0 || len(tenderCodes) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(tenderCodes))
	for _, c := range tenderCodes {
		set[c] = struct{}{}
	}
	matched := 0
	for _, c := range profileCodes {
		if _, ok := set[c]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(profileCodes))
}

// keywordRatio returns the fraction of keywords found as case-insensitive
// substrings of text.
func keywordRatio(keywords []string, text string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	matched := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

func regionMatch(regions []string, region string) float64 {
	if region == "" {
		return 0
	}
	for _, r := range regions {
		if r == region {
			return 1
		}
	}
	return 0
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
