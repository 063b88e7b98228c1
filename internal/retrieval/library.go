package retrieval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"clipmatch/internal/textutil"
)

// LibraryStatus is the verdict of one library poll for one candidate.
type LibraryStatus interface{ libraryStatus() }

// LibraryReady carries the selector of the matched entry's download control.
type LibraryReady struct {
	DownloadSelector string
	EntryTitle       string
}

// LibraryPreparing means the entry exists but is still being processed.
type LibraryPreparing struct{}

// LibraryNotFound means no entry matched the candidate yet.
type LibraryNotFound struct{}

func (LibraryReady) libraryStatus()     {}
func (LibraryPreparing) libraryStatus() {}
func (LibraryNotFound) libraryStatus()  {}

const maxTitleKeywords = 5

var videoIDRe = regexp.MustCompile(`(\d{3,})`)

// VideoIDFromURL extracts the platform video ID from a candidate detail URL.
// Returns "" when the URL carries no numeric ID.
func VideoIDFromURL(candidateURL string) string {
	segments := strings.Split(strings.TrimRight(candidateURL, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if m := videoIDRe.FindString(segments[i]); m != "" {
			return m
		}
	}
	return ""
}

var preparingTextRe = regexp.MustCompile(`(?i)preparing|processing|in\s+progress`)

// parseLibrary inspects the personal-library page for the candidate. Matching
// prefers the exact platform video ID; without one it falls back to fuzzy
// title keywords (at least 2 of up to 5 significant words). The function is
// pure over the HTML so the polling loop stays fake-clock testable.
func parseLibrary(html, videoID, title string) (LibraryStatus, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	keywords := textutil.ExtractKeywords(title, maxTitleKeywords)
	var exact, fuzzy *goquery.Selection

	doc.Find(`[data-video-id], .library-item, [class*="library-entry"]`).EachWithBreak(func(_ int, entry *goquery.Selection) bool {
		if id, ok := entry.Attr("data-video-id"); ok && videoID != "" && id == videoID {
			exact = entry
			return false
		}
		// The first fuzzy match sticks; only an exact ID match later in
		// the scan may supersede it.
		if fuzzy == nil && len(keywords) > 0 && textutil.KeywordOverlap(keywords, entry.Text()) >= 2 {
			fuzzy = entry
		}
		return true
	})

	matched := exact
	if matched == nil {
		matched = fuzzy
	}
	if matched == nil {
		return LibraryNotFound{}, nil
	}
	if preparingTextRe.MatchString(matched.Text()) {
		return LibraryPreparing{}, nil
	}

	selector := entrySelector(matched)
	entryTitle := strings.TrimSpace(matched.Find("h3, h4, .title").First().Text())
	return LibraryReady{
		DownloadSelector: selector + ` a[download], ` + selector + ` [class*="download"]`,
		EntryTitle:       entryTitle,
	}, nil
}

// entrySelector builds a selector that re-locates the matched entry on the
// live page. Without a data-video-id the entry is addressed by its first
// class combined with its position among all sibling elements, which is the
// count nth-child uses.
func entrySelector(entry *goquery.Selection) string {
	if id, ok := entry.Attr("data-video-id"); ok {
		return fmt.Sprintf(`[data-video-id=%q]`, id)
	}
	position := entry.Index() + 1
	if class, ok := entry.Attr("class"); ok {
		if fields := strings.Fields(class); len(fields) > 0 {
			return fmt.Sprintf(".%s:nth-child(%d)", fields[0], position)
		}
	}
	return fmt.Sprintf(":nth-child(%d)", position)
}
