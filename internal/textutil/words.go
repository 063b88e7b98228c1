// Package textutil provides text normalization helpers shared by the
// scoring, ranking, and retrieval packages.
package textutil

import (
	"regexp"
	"strings"
)

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "that": {},
	"this": {}, "his": {}, "her": {}, "its": {}, "are": {}, "was": {},
	"were": {}, "has": {}, "have": {}, "had": {}, "not": {}, "but": {},
	"into": {}, "over": {}, "after": {}, "before": {}, "during": {},
	"about": {}, "against": {}, "between": {}, "amid": {}, "says": {},
	"new": {}, "video": {}, "footage": {},
}

// NormalizeWords lowercases text and splits it into plain alphanumeric words.
func NormalizeWords(text string) []string {
	cleaned := nonWordRe.ReplaceAllString(strings.ToLower(text), " ")
	return strings.Fields(cleaned)
}

// SignificantWords returns normalized words of at least three characters with
// stopwords removed.
func SignificantWords(text string) []string {
	words := NormalizeWords(text)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		out = append(out, w)
	}
	return out
}

// ExtractKeywords returns up to max significant words, preserving order and
// dropping duplicates. Used for fuzzy title matching against library entries.
func ExtractKeywords(text string, max int) []string {
	if max <= 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, w := range SignificantWords(text) {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) == max {
			break
		}
	}
	return out
}

// KeywordOverlap counts how many keywords appear as whole words in text.
func KeywordOverlap(keywords []string, text string) int {
	if len(keywords) == 0 {
		return 0
	}
	present := map[string]struct{}{}
	for _, w := range NormalizeWords(text) {
		present[w] = struct{}{}
	}
	matches := 0
	for _, kw := range keywords {
		if _, ok := present[kw]; ok {
			matches++
		}
	}
	return matches
}

// ContainsFold reports whether substr occurs in s, case-insensitively.
func ContainsFold(s, substr string) bool {
	if substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
