// Package platform searches the licensing platform and deep-analyzes candidate
// footage pages. All DOM extraction is done through named strategies over a
// parsed document so the logic is testable without a live browser.
package platform

import (
	"clipmatch/internal/scoring"
	"clipmatch/internal/visual"
)

// Candidate is one footage item returned by a platform search, progressively
// enriched as it moves through the pipeline. Identity is the platform URL.
type Candidate struct {
	URL             string
	Title           string
	Description     string
	VideoInfo       string
	ShotList        string
	MandatoryCredit string
	Duration        string
	PageText        string
	Screenshot      []byte

	// SourceQuery is the cleaned query that produced the candidate;
	// QueryPriority is that query's rank in the generated list (0 = most
	// specific). The caller running multiple queries stamps the priority.
	SourceQuery   string
	QueryPriority int

	TextScore  *scoring.Result
	Visual     *visual.Analysis
	FinalScore int
}

// ScoreFields exposes the candidate text the relevance scorer reads.
func (c *Candidate) ScoreFields() scoring.Fields {
	return scoring.Fields{
		Title:       c.Title,
		Description: c.Description,
		ShotList:    c.ShotList,
		PageText:    c.PageText,
	}
}

// MergeCandidates appends more onto existing, de-duplicating by URL. The first
// occurrence wins, so candidates from earlier (more specific) queries keep
// their priority.
func MergeCandidates(existing, more []*Candidate) []*Candidate {
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c.URL] = true
	}
	merged := existing
	for _, c := range more {
		if c.URL == "" || seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		merged = append(merged, c)
	}
	return merged
}
