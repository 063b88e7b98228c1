// Package ranking combines text and visual scores into a final candidate
// order. Scores are combined once per candidate; ranked lists are never
// re-scored.
package ranking

import (
	"math"
	"sort"

	"clipmatch/internal/platform"
	"clipmatch/internal/visual"
)

const (
	textWeight   = 0.6
	visualWeight = 0.4

	personConfirmedBonus = 25
	personPossibleBonus  = 10
	personMismatchMalus  = 30
	possibleMinConf      = 0.6

	strongVisualBonus = 15
	weakVisualMalus   = 20
	personInTextBonus = 20
)

// Finalize computes and stores the candidate's final score. Text-only
// candidates keep their text score; validated candidates blend 60/40 with
// mode-specific adjustments.
func Finalize(c *platform.Candidate) int {
	if c.TextScore == nil {
		c.FinalScore = 0
		return 0
	}
	text := c.TextScore.Score

	score := text
	if c.Visual != nil {
		score = int(math.Round(float64(text)*textWeight + float64(c.Visual.RelevanceScore)*visualWeight))
		switch c.Visual.Mode {
		case "person":
			switch {
			case c.Visual.PersonMatch == visual.PersonYes:
				score += personConfirmedBonus
			case c.Visual.PersonMatch == visual.PersonPossible && c.Visual.Confidence >= possibleMinConf:
				score += personPossibleBonus
			case c.Visual.PersonMatch == visual.PersonNo && !c.Visual.Degraded:
				score -= personMismatchMalus
			}
		default:
			if c.Visual.RelevanceScore >= 80 {
				score += strongVisualBonus
			} else if c.Visual.RelevanceScore < 60 {
				score -= weakVisualMalus
			}
		}
	}
	if c.TextScore.PersonMatchInText {
		score += personInTextBonus
	}

	score = clamp(score, 0, 100)
	c.FinalScore = score
	return score
}

// personTier buckets candidates for the person-mode hard ordering override:
// a confirmed identity match always outranks a possible one, which outranks
// everything else, regardless of raw score.
func personTier(c *platform.Candidate) int {
	if c.Visual == nil || c.Visual.Degraded {
		return 2
	}
	switch c.Visual.PersonMatch {
	case visual.PersonYes:
		return 0
	case visual.PersonPossible:
		return 1
	default:
		return 2
	}
}

// Sort orders candidates best-first in place. Ties break on URL so the order
// is deterministic.
func Sort(candidates []*platform.Candidate, personMode bool) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if personMode {
			if ta, tb := personTier(a), personTier(b); ta != tb {
				return ta < tb
			}
		}
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		return a.URL < b.URL
	})
}

// Rank finalizes every candidate and returns them sorted best-first.
func Rank(candidates []*platform.Candidate, personMode bool) []*platform.Candidate {
	for _, c := range candidates {
		Finalize(c)
	}
	Sort(candidates, personMode)
	return candidates
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
