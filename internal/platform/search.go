package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"clipmatch/internal/logging"
	"clipmatch/internal/services"
)

// PageDriver is the browser surface the searcher needs. *browser.Page
// satisfies it; tests substitute a fake serving static HTML.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	ClickIfPresent(ctx context.Context, selector string) (bool, error)
	Screenshot(ctx context.Context) ([]byte, error)
	ScreenshotElement(ctx context.Context, selector string) ([]byte, error)
}

// Selectors tried in order when capturing a candidate screenshot.
var screenshotSelectors = []string{
	"video",
	".video-player",
	".preview-player",
	`[class*="player"]`,
}

const expandShotListSelector = `[class*="shot-list"] button, [class*="shotlist"] button, button[aria-expanded="false"]`

// Config holds the platform endpoints the searcher talks to.
type Config struct {
	BaseURL    string
	SearchPath string
}

// Searcher issues platform searches and deep-analyzes result pages.
type Searcher struct {
	page     PageDriver
	cfg      Config
	cache    *ScreenshotCache
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
	sleeper  func(context.Context, time.Duration) error
}

// SearcherOption customizes a Searcher.
type SearcherOption func(*Searcher)

// WithSearchLogger attaches a logger.
func WithSearchLogger(logger *slog.Logger) SearcherOption {
	return func(s *Searcher) { s.logger = logging.WithComponent(logger, "search") }
}

// WithSearchAttempts sets the per-request retry budget for transient
// platform errors.
func WithSearchAttempts(attempts int) SearcherOption {
	return func(s *Searcher) {
		if attempts >= 1 {
			s.attempts = attempts
		}
	}
}

// WithSearchBackoff overrides the base retry backoff.
func WithSearchBackoff(d time.Duration) SearcherOption {
	return func(s *Searcher) { s.backoff = d }
}

// WithSearchSleeper overrides how retry backoffs sleep (useful for tests).
func WithSearchSleeper(sleeper func(context.Context, time.Duration) error) SearcherOption {
	return func(s *Searcher) { s.sleeper = sleeper }
}

// NewSearcher constructs a Searcher over an authenticated page.
func NewSearcher(page PageDriver, cfg Config, cache *ScreenshotCache, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		page:     page,
		cfg:      cfg,
		cache:    cache,
		logger:   logging.NewNop(),
		attempts: 3,
		backoff:  2 * time.Second,
		sleeper:  sleepWithContext,
	}
	if s.cache == nil {
		s.cache = NewScreenshotCache()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache exposes the searcher's screenshot cache so callers can clear it
// between runs.
func (s *Searcher) Cache() *ScreenshotCache { return s.cache }

var (
	labelPrefixRe = regexp.MustCompile(`^\s*[A-Za-z][\w-]*:\s*`)
	queryJunkRe   = regexp.MustCompile(`[^\p{L}\p{N}\s-]+`)
)

// CleanQuery normalizes a generated search query: strips one leading
// "label:" prefix, drops punctuation, and collapses whitespace. Idempotent.
func CleanQuery(q string) string {
	q = labelPrefixRe.ReplaceAllString(q, "")
	q = queryJunkRe.ReplaceAllString(q, " ")
	return collapse(q)
}

// Search runs one platform search and deep-analyzes up to limit results.
// Transient platform errors retry within the configured attempt budget with
// backoff; a candidate page that exhausts its own budget is skipped, never
// fatal to the batch.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]*Candidate, error) {
	cleaned := CleanQuery(query)
	if cleaned == "" {
		return nil, services.Wrap(services.ErrValidation, "search", "search", "query is empty after cleaning", nil)
	}
	if limit <= 0 {
		limit = 8
	}

	searchURL, err := s.searchURL(cleaned)
	if err != nil {
		return nil, err
	}

	html, err := s.loadWithRetry(ctx, searchURL, s.attempts)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "search", "search", fmt.Sprintf("search for %q failed", cleaned), err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, services.Wrap(services.ErrParse, "search", "search", "results page did not parse", err)
	}

	base, _ := url.Parse(searchURL)
	links := extractResultLinks(doc, base, limit)
	s.logger.Info("search results collected",
		logging.String("query", cleaned),
		logging.Int("links", len(links)))

	candidates := make([]*Candidate, 0, len(links))
	for _, link := range links {
		candidate, analyzeErr := s.deepAnalyze(ctx, link)
		if analyzeErr != nil {
			if ctx.Err() != nil {
				return candidates, ctx.Err()
			}
			s.logger.Warn("candidate skipped",
				logging.String("url", link),
				logging.Error(analyzeErr))
			continue
		}
		candidate.SourceQuery = cleaned
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// SearchWithScreenshots runs Search and captures one representative
// screenshot per candidate, cached by URL for the run.
func (s *Searcher) SearchWithScreenshots(ctx context.Context, query string, limit int) ([]*Candidate, error) {
	candidates, err := s.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if img, ok := s.cache.Get(c.URL); ok {
			c.Screenshot = img
			continue
		}
		img, capErr := s.captureScreenshot(ctx, c.URL)
		if capErr != nil {
			if ctx.Err() != nil {
				return candidates, ctx.Err()
			}
			s.logger.Warn("screenshot capture failed",
				logging.String("url", c.URL),
				logging.Error(capErr))
			continue
		}
		c.Screenshot = img
		s.cache.Put(c.URL, img)
	}
	return candidates, nil
}

func (s *Searcher) searchURL(query string) (string, error) {
	base, err := url.Parse(s.cfg.BaseURL)
	if err != nil || !base.IsAbs() {
		return "", services.Wrap(services.ErrConfig, "search", "search", "platform base URL is invalid", err)
	}
	ref := &url.URL{Path: s.cfg.SearchPath, RawQuery: url.Values{"query": {query}}.Encode()}
	return base.ResolveReference(ref).String(), nil
}

// loadWithRetry navigates and returns the page HTML, retrying transient
// failures with backoff that scales with the attempt number.
func (s *Searcher) loadWithRetry(ctx context.Context, pageURL string, attempts int) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := s.sleeper(ctx, time.Duration(attempt-1)*s.backoff); err != nil {
				return "", err
			}
		}
		if err := s.page.Navigate(ctx, pageURL); err != nil {
			lastErr = err
			if !services.IsRetriable(err) {
				return "", err
			}
			continue
		}
		html, err := s.page.HTML(ctx)
		if err != nil {
			lastErr = err
			if !services.IsRetriable(err) {
				return "", err
			}
			continue
		}
		return html, nil
	}
	return "", lastErr
}

// deepAnalyze visits a candidate detail page and extracts its metadata.
func (s *Searcher) deepAnalyze(ctx context.Context, candidateURL string) (*Candidate, error) {
	html, err := s.loadWithRetry(ctx, candidateURL, s.attempts)
	if err != nil {
		return nil, err
	}

	// Best effort: some pages collapse the shot list behind a toggle.
	if expanded, _ := s.page.ClickIfPresent(ctx, expandShotListSelector); expanded {
		if fresh, freshErr := s.page.HTML(ctx); freshErr == nil {
			html = fresh
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, services.Wrap(services.ErrParse, "search", "deep_analyze", "candidate page did not parse", err)
	}
	return analyzeDocument(doc, candidateURL), nil
}

// analyzeDocument runs the extraction strategies in priority order. Missing
// sections leave fields empty rather than failing the candidate.
func analyzeDocument(doc *goquery.Document, candidateURL string) *Candidate {
	c := &Candidate{URL: candidateURL, PageText: pageText(doc)}
	if title, ok := extractTitle(doc); ok {
		c.Title = title
	}
	if desc, ok := extractDescription(doc, c.Title); ok {
		c.Description = desc
	}
	if list, ok := extractShotList(doc); ok {
		c.ShotList = list
	}
	if info, ok := extractVideoInfo(doc); ok {
		c.VideoInfo = info
	}
	if dur, ok := extractDuration(doc); ok {
		c.Duration = dur
	}
	if credit, ok := extractMandatoryCredit(doc); ok {
		c.MandatoryCredit = credit
	}
	return c
}

func (s *Searcher) captureScreenshot(ctx context.Context, candidateURL string) ([]byte, error) {
	if err := s.page.Navigate(ctx, candidateURL); err != nil {
		return nil, err
	}
	for _, selector := range screenshotSelectors {
		img, err := s.page.ScreenshotElement(ctx, selector)
		if err == nil && len(img) > 0 {
			return img, nil
		}
	}
	return s.page.Screenshot(ctx)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
