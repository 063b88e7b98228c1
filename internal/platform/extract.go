package platform

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extraction strategies. Each strategy takes a parsed document and returns
// (value, ok); callers try them in a fixed priority order and treat !ok as a
// clean "no match". Keeping them as named funcs over goquery documents means
// they run against static HTML fixtures in tests.

var (
	shotListMarkerRe  = regexp.MustCompile(`(?i)shot\s*list`)
	metaMarkerRe      = regexp.MustCompile(`(?i)meta\s*data|metadata`)
	numberedLineRe    = regexp.MustCompile(`(?m)^\s*\d{1,3}[.)]\s+\S.*$`)
	durationTokenRe   = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
	durationLabeledRe = regexp.MustCompile(`(?i)duration[:\s]+(\d{1,2}:\d{2}(?::\d{2})?)`)
	creditLabelRe     = regexp.MustCompile(`(?i)mandatory\s+credit[:\s]+`)
	whitespaceRe      = regexp.MustCompile(`\s+`)
)

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// pageText flattens the document body into normalized plain text.
func pageText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		return collapse(doc.Text())
	}
	body.Find("script, style, noscript").Remove()
	return collapse(body.Text())
}

func extractTitle(doc *goquery.Document) (string, bool) {
	if h1 := collapse(doc.Find("h1").First().Text()); h1 != "" {
		return h1, true
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if og = collapse(og); og != "" {
			return og, true
		}
	}
	if title := collapse(doc.Find("title").First().Text()); title != "" {
		return title, true
	}
	return "", false
}

// extractDescription takes the text block between the title and the shot-list
// marker. Without a marker it falls back to the first long paragraph.
func extractDescription(doc *goquery.Document, title string) (string, bool) {
	text := pageText(doc)
	start := 0
	if title != "" {
		if idx := strings.Index(strings.ToLower(text), strings.ToLower(title)); idx >= 0 {
			start = idx + len(title)
		}
	}
	rest := text[start:]
	if loc := shotListMarkerRe.FindStringIndex(rest); loc != nil {
		if desc := collapse(rest[:loc[0]]); desc != "" {
			return desc, true
		}
		return "", false
	}
	best := ""
	doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if p := collapse(sel.Text()); len(p) >= 40 {
			best = p
			return false
		}
		return true
	})
	return best, best != ""
}

// extractShotList takes the block between the shot-list and metadata markers,
// falling back to any run of numbered lines when the markers are missing.
func extractShotList(doc *goquery.Document) (string, bool) {
	text := pageText(doc)
	if start := shotListMarkerRe.FindStringIndex(text); start != nil {
		rest := text[start[1]:]
		if end := metaMarkerRe.FindStringIndex(rest); end != nil {
			rest = rest[:end[0]]
		}
		if list := collapse(rest); list != "" {
			return list, true
		}
	}
	raw, err := doc.Html()
	if err != nil {
		return "", false
	}
	if lines := numberedLineRe.FindAllString(stripTags(raw), -1); len(lines) >= 2 {
		return collapse(strings.Join(lines, " ")), true
	}
	return "", false
}

func extractVideoInfo(doc *goquery.Document) (string, bool) {
	for _, sel := range []string{".video-info", "#video-info", `[class*="videoInfo"]`} {
		if info := collapse(doc.Find(sel).First().Text()); info != "" {
			return info, true
		}
	}
	return "", false
}

func extractDuration(doc *goquery.Document) (string, bool) {
	text := pageText(doc)
	if m := durationLabeledRe.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if tok := durationTokenRe.FindString(text); tok != "" {
		return tok, true
	}
	return "", false
}

// extractMandatoryCredit pulls the credit string after its label, truncated at
// the first separator or usage-restriction clause.
func extractMandatoryCredit(doc *goquery.Document) (string, bool) {
	text := pageText(doc)
	loc := creditLabelRe.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	credit := text[loc[1]:]
	for _, stop := range []string{";", " - ", "|"} {
		if idx := strings.Index(credit, stop); idx >= 0 {
			credit = credit[:idx]
		}
	}
	if idx := strings.Index(strings.ToLower(credit), "not to be used"); idx >= 0 {
		credit = credit[:idx]
	}
	credit = collapse(credit)
	if credit == "" {
		return "", false
	}
	const maxCredit = 160
	if len(credit) > maxCredit {
		credit = collapse(credit[:maxCredit])
	}
	return credit, true
}

// extractResultLinks collects candidate detail URLs from a search-results
// page, resolved against the page URL and de-duplicated in document order.
func extractResultLinks(doc *goquery.Document, base *url.URL, limit int) []string {
	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !looksLikeDetailLink(href) {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(ref)
		resolved.Fragment = ""
		abs := resolved.String()
		if seen[abs] {
			return true
		}
		seen[abs] = true
		links = append(links, abs)
		return limit <= 0 || len(links) < limit
	})
	return links
}

func looksLikeDetailLink(href string) bool {
	href = strings.ToLower(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return false
	}
	for _, marker := range []string{"/video/", "/clip/", "/detail/"} {
		if strings.Contains(href, marker) {
			return true
		}
	}
	return false
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(html string) string {
	return tagRe.ReplaceAllString(html, "\n")
}
