// Package scoring implements the deterministic text relevance scorer. Score
// is pure: fixed inputs always produce the same result, and the breakdown
// records every rule that fired so callers can log or display it separately.
package scoring

import (
	"fmt"
	"strings"

	"clipmatch/internal/analysis"
	"clipmatch/internal/textutil"
)

// Fields is the candidate text visible to the scorer.
type Fields struct {
	Title       string
	Description string
	ShotList    string
	PageText    string
}

// Result is the outcome of scoring one candidate against one analysis.
type Result struct {
	Score             int
	PersonMatchInText bool
	Breakdown         []string
}

const (
	subjectThreeWords = 40
	subjectTwoWords   = 25
	subjectOneWord    = 10

	countryPresent = 20
	countryInTitle = 10

	keyVisualPhrase = 20
	keyVisualWord   = 8

	mustShowPhrase   = 30
	mustShowTwoWords = 20
	mustShowOneWord  = 10

	topicKeywordBonus = 10
	topicBonusCap     = 25

	hotTopicPenalty = 25

	personFullName = 60
	personSurname  = 50
	personFragment = 40
	personMissing  = 20
)

// Score rates candidate text against the analysis on a 0-100 scale.
func Score(f Fields, a *analysis.SearchAnalysis) Result {
	var res Result
	if a == nil {
		return res
	}

	haystack := strings.ToLower(strings.Join([]string{f.Title, f.Description, f.ShotList, f.PageText}, "\n"))
	title := strings.ToLower(f.Title)
	score := 0
	fire := func(delta int, format string, args ...any) {
		score += delta
		res.Breakdown = append(res.Breakdown, fmt.Sprintf("%+d %s", delta, fmt.Sprintf(format, args...)))
	}

	// Subject overlap only matters when no named person is demanded; person
	// segments are judged on the person rules below.
	if !a.HasImportantPerson {
		subjectWords := textutil.SignificantWords(a.MainSubject)
		matched := countPresent(subjectWords, haystack)
		switch {
		case matched >= 3:
			fire(subjectThreeWords, "subject: %d words", matched)
		case matched == 2:
			fire(subjectTwoWords, "subject: 2 words")
		case matched == 1:
			fire(subjectOneWord, "subject: 1 word")
		}
	}

	if a.Country != "" && textutil.ContainsFold(haystack, a.Country) {
		fire(countryPresent, "country: %s", a.Country)
		if textutil.ContainsFold(title, a.Country) {
			fire(countryInTitle, "country in title")
		}
	}

	for _, visual := range a.KeyVisuals {
		if visual == "" {
			continue
		}
		if textutil.ContainsFold(haystack, visual) {
			fire(keyVisualPhrase, "key visual: %q", visual)
			continue
		}
		for _, word := range textutil.SignificantWords(visual) {
			if strings.Contains(haystack, word) {
				fire(keyVisualWord, "key visual word: %q", word)
			}
		}
	}

	for _, must := range a.MustShow {
		if must == "" {
			continue
		}
		if textutil.ContainsFold(haystack, must) {
			fire(mustShowPhrase, "must show: %q", must)
			continue
		}
		matched := countPresent(textutil.SignificantWords(must), haystack)
		switch {
		case matched >= 2:
			fire(mustShowTwoWords, "must show words: %q", must)
		case matched == 1:
			fire(mustShowOneWord, "must show word: %q", must)
		}
	}

	score += topicBonus(haystack, a, &res)
	score -= hotTopicPenalties(title, a, &res)

	if a.HasImportantPerson {
		delta, matched, label := personScore(haystack, a.PersonName)
		res.PersonMatchInText = matched
		if matched {
			fire(delta, "person %s: %q", label, a.PersonName)
		} else {
			fire(-personMissing, "person missing: %q", a.PersonName)
		}
	}

	res.Score = clamp(score, 0, 100)
	return res
}

func countPresent(words []string, haystack string) int {
	count := 0
	for _, w := range words {
		if strings.Contains(haystack, w) {
			count++
		}
	}
	return count
}

// topicBonus rewards topical keyword hits, but only for keywords the analysis
// itself declares as the main subject; a protest clip does not get military
// points for mentioning soldiers in passing. Recorded deltas shrink at the
// cap so the breakdown always sums to the applied bonus.
func topicBonus(haystack string, a *analysis.SearchAnalysis, res *Result) int {
	subject := strings.ToLower(a.MainSubject)
	bonus := 0
	for topic, keywords := range topicKeywords {
		for _, kw := range keywords {
			if !strings.Contains(subject, kw) {
				continue
			}
			if !strings.Contains(haystack, kw) {
				continue
			}
			delta := topicKeywordBonus
			if bonus+delta > topicBonusCap {
				delta = topicBonusCap - bonus
			}
			if delta <= 0 {
				return topicBonusCap
			}
			bonus += delta
			res.Breakdown = append(res.Breakdown, fmt.Sprintf("+%d topic %s: %q", delta, topic, kw))
			if bonus >= topicBonusCap {
				return topicBonusCap
			}
		}
	}
	return bonus
}

// hotTopicPenalties punishes titles dragging in unrelated geopolitical
// flashpoints: they attract clicks on the platform but rarely match the
// segment.
func hotTopicPenalties(title string, a *analysis.SearchAnalysis, res *Result) int {
	declared := strings.ToLower(strings.Join([]string{
		a.MainSubject, a.Country, a.PersonName,
		strings.Join(a.KeyVisuals, " "), strings.Join(a.MustShow, " "),
	}, " "))
	penalty := 0
	for _, topic := range HotTopics {
		if !strings.Contains(title, topic) {
			continue
		}
		if strings.Contains(declared, topic) {
			continue
		}
		penalty += hotTopicPenalty
		res.Breakdown = append(res.Breakdown, fmt.Sprintf("-%d unrelated hot topic: %q", hotTopicPenalty, topic))
	}
	return penalty
}

func personScore(haystack, name string) (delta int, matched bool, label string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return 0, false, ""
	}
	if strings.Contains(haystack, name) {
		return personFullName, true, "full name"
	}
	parts := strings.Fields(name)
	if len(parts) > 1 {
		surname := parts[len(parts)-1]
		if len(surname) >= 3 && strings.Contains(haystack, surname) {
			return personSurname, true, "surname"
		}
	}
	for _, part := range parts {
		if len(part) >= 3 && strings.Contains(haystack, part) {
			return personFragment, true, "name fragment"
		}
	}
	return 0, false, ""
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
