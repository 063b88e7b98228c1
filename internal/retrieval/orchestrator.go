// Package retrieval drives the platform's download protocol: immediate
// transfers, asynchronous "prepare with watermark" flows with bounded library
// polling, and ranked fallback across candidates.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clipmatch/internal/logging"
	"clipmatch/internal/platform"
)

// Download protocol states, logged as the orchestrator advances.
const (
	stateOpeningPage           = "opening_page"
	stateSubmittingDownload    = "submitting_download"
	stateDetectingPreparation  = "detecting_preparation"
	stateDirectDownload        = "direct_download"
	stateWaitingInLibrary      = "waiting_in_library"
	stateDownloadedFromLibrary = "downloaded_from_library"
	stateTimedOut              = "timed_out"
)

// PageDriver is the browser surface the orchestrator needs. *browser.Page
// satisfies it.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	ClickIfPresent(ctx context.Context, selector string) (bool, error)
	Exists(ctx context.Context, selector string) (bool, error)
	Evaluate(ctx context.Context, js string, out any) error
	WaitDownload(ctx context.Context, timeout time.Duration) (string, error)
}

var interstitialSelectors = []string{
	`[class*="cookie"] button`,
	`[class*="modal"] button[class*="close"]`,
	`button[aria-label="Close"]`,
}

var downloadAffordanceSelectors = []string{
	`button[class*="download"]`,
	`a[class*="download"]`,
	`[data-action="download"]`,
}

const preparingModalSelector = `[class*="preparing"], [class*="processing-modal"]`

// Config tunes the orchestrator's waiting behavior.
type Config struct {
	LibraryURL      string
	PollInterval    time.Duration // default 5s
	MaxWait         time.Duration // default 4m
	DownloadTimeout time.Duration // default 2m
}

// Options control one download attempt.
type Options struct {
	// SkipWait disables library polling: an async-preparation candidate is
	// reported immediately instead of waited for.
	SkipWait bool
}

// Orchestrator runs the download protocol for ranked candidates.
type Orchestrator struct {
	page    PageDriver
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	sleeper func(context.Context, time.Duration) error
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRetrievalLogger attaches a logger.
func WithRetrievalLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logging.WithComponent(logger, "retrieval") }
}

// WithClock overrides the time source and sleeper together so polling loops
// can run against a fake clock.
func WithClock(now func() time.Time, sleeper func(context.Context, time.Duration) error) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
		o.sleeper = sleeper
	}
}

// NewOrchestrator constructs an Orchestrator over an authenticated page.
func NewOrchestrator(page PageDriver, cfg Config, opts ...OrchestratorOption) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 4 * time.Minute
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 2 * time.Minute
	}
	o := &Orchestrator{
		page:    page,
		cfg:     cfg,
		logger:  logging.NewNop(),
		now:     time.Now,
		sleeper: sleepWithContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Download runs the protocol for one candidate. Problems with the candidate
// come back as Outcome values; the error return is reserved for context
// cancellation and driver-level failures that invalidate the whole run.
func (o *Orchestrator) Download(ctx context.Context, c *platform.Candidate, opts Options) (Outcome, error) {
	log := o.logger.With(logging.String("url", c.URL))

	log.Info("download started", logging.String("state", stateOpeningPage))
	if err := o.page.Navigate(ctx, c.URL); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return Failure{Reason: fmt.Sprintf("candidate page failed to open: %v", err)}, nil
	}
	o.dismissInterstitials(ctx)

	log.Info("submitting download", logging.String("state", stateSubmittingDownload))
	if !o.clickDownloadAffordance(ctx) {
		return Failure{Reason: "no download affordance found"}, nil
	}

	if !o.acceptRestrictions(ctx) {
		log.Warn("usage-restrictions checkbox not accepted, proceeding best effort")
	}
	o.clickConfirm(ctx)

	// Let the platform react before inspecting for a preparation modal.
	if err := o.sleeper(ctx, 500*time.Millisecond); err != nil {
		return nil, err
	}

	preparing, err := o.detectPreparation(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		preparing = false
	}

	if !preparing {
		log.Info("direct download", logging.String("state", stateDirectDownload))
		return o.awaitTransfer(ctx, false)
	}

	videoID := VideoIDFromURL(c.URL)
	log.Info("preparation detected",
		logging.String("state", stateDetectingPreparation),
		logging.String("video_id", videoID))
	if opts.SkipWait {
		return NeedsAsyncPreparation{VideoID: videoID, Title: c.Title}, nil
	}
	return o.waitInLibrary(ctx, videoID, c.Title, log)
}

func (o *Orchestrator) dismissInterstitials(ctx context.Context) {
	for _, selector := range interstitialSelectors {
		if _, err := o.page.ClickIfPresent(ctx, selector); err != nil {
			return
		}
	}
}

func (o *Orchestrator) clickDownloadAffordance(ctx context.Context) bool {
	for _, selector := range downloadAffordanceSelectors {
		if clicked, err := o.page.ClickIfPresent(ctx, selector); err == nil && clicked {
			return true
		}
	}
	return false
}

// acceptRestrictions tries four escalating strategies against the
// usage-restrictions checkbox; the first success wins.
func (o *Orchestrator) acceptRestrictions(ctx context.Context) bool {
	// 1. Direct click on the checkbox.
	if clicked, err := o.page.ClickIfPresent(ctx, `input[type="checkbox"]:not(:checked)`); err == nil && clicked {
		return true
	}
	// 2. Click the associated label.
	var ok bool
	if err := o.page.Evaluate(ctx, jsClickCheckboxLabel, &ok); err == nil && ok {
		return true
	}
	// 3. Force the DOM state and dispatch a change event.
	if err := o.page.Evaluate(ctx, jsForceCheckboxState, &ok); err == nil && ok {
		return true
	}
	// 4. Click the row containing the checkbox.
	if err := o.page.Evaluate(ctx, jsClickCheckboxRow, &ok); err == nil && ok {
		return true
	}
	return false
}

func (o *Orchestrator) clickConfirm(ctx context.Context) {
	var ok bool
	_ = o.page.Evaluate(ctx, jsClickConfirmButton, &ok)
}

func (o *Orchestrator) detectPreparation(ctx context.Context) (bool, error) {
	if present, err := o.page.Exists(ctx, preparingModalSelector); err == nil && present {
		return true, nil
	}
	html, err := o.page.HTML(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(html), "preparing your video"), nil
}

func (o *Orchestrator) awaitTransfer(ctx context.Context, fromLibrary bool) (Outcome, error) {
	path, err := o.page.WaitDownload(ctx, o.cfg.DownloadTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return Failure{Reason: fmt.Sprintf("transfer did not complete: %v", err)}, nil
	}
	filename := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		filename = path[idx+1:]
	}
	return Success{Path: path, Filename: filename, FromLibrary: fromLibrary}, nil
}

// waitInLibrary polls the personal library until the candidate is ready, the
// wait window elapses, or the context is canceled.
func (o *Orchestrator) waitInLibrary(ctx context.Context, videoID, title string, log *slog.Logger) (Outcome, error) {
	log.Info("waiting in library",
		logging.String("state", stateWaitingInLibrary),
		logging.Duration("max_wait", o.cfg.MaxWait))

	start := o.now()
	for {
		waited := o.now().Sub(start)
		if waited >= o.cfg.MaxWait {
			log.Warn("library wait elapsed",
				logging.String("state", stateTimedOut),
				logging.Duration("waited", waited))
			return Timeout{Waited: waited}, nil
		}

		status, err := o.pollLibrary(ctx, videoID, title)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("library poll failed", logging.Error(err))
		}

		if ready, ok := status.(LibraryReady); ok {
			log.Info("library entry ready",
				logging.String("state", stateDownloadedFromLibrary),
				logging.String("entry", ready.EntryTitle))
			if err := o.page.Click(ctx, ready.DownloadSelector); err != nil {
				return Failure{Reason: fmt.Sprintf("library download control: %v", err)}, nil
			}
			return o.awaitTransfer(ctx, true)
		}

		if err := o.sleeper(ctx, o.cfg.PollInterval); err != nil {
			return nil, err
		}
	}
}

func (o *Orchestrator) pollLibrary(ctx context.Context, videoID, title string) (LibraryStatus, error) {
	if err := o.page.Navigate(ctx, o.cfg.LibraryURL); err != nil {
		return LibraryNotFound{}, err
	}
	html, err := o.page.HTML(ctx)
	if err != nil {
		return LibraryNotFound{}, err
	}
	return parseLibrary(html, videoID, title)
}

// DownloadBest tries the ranked candidates in order: the best with waiting
// allowed, the rest direct-download only. It stops at the first success and
// otherwise aggregates per-candidate reasons.
func (o *Orchestrator) DownloadBest(ctx context.Context, ranked []*platform.Candidate) (*Result, error) {
	if len(ranked) == 0 {
		return &Result{Outcome: Failure{Reason: "no candidates to download"}}, nil
	}

	result := &Result{}
	for i, c := range ranked {
		outcome, err := o.Download(ctx, c, Options{SkipWait: i > 0})
		if err != nil {
			return nil, err
		}
		if success, ok := outcome.(Success); ok {
			result.Outcome = success
			result.URL = c.URL
			return result, nil
		}
		reason := outcome.Summary()
		result.Attempts = append(result.Attempts, Attempt{URL: c.URL, Reason: reason})
		o.logger.Warn("candidate skipped",
			logging.String("url", c.URL),
			logging.String("reason", reason))
	}

	result.Outcome = Failure{
		Reason: fmt.Sprintf("all %d ranked candidates failed", len(ranked)),
	}
	return result, nil
}

const (
	jsClickCheckboxLabel = `(() => {
  const box = document.querySelector('input[type="checkbox"]');
  if (!box) return false;
  const label = box.id ? document.querySelector('label[for="' + box.id + '"]') : box.closest('label');
  if (!label) return false;
  label.click();
  return box.checked;
})()`

	jsForceCheckboxState = `(() => {
  const box = document.querySelector('input[type="checkbox"]');
  if (!box) return false;
  box.checked = true;
  box.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})()`

	jsClickCheckboxRow = `(() => {
  const box = document.querySelector('input[type="checkbox"]');
  if (!box) return false;
  const row = box.closest('div, li, tr');
  if (!row) return false;
  row.click();
  return box.checked;
})()`

	jsClickConfirmButton = `(() => {
  const wanted = ['download', 'confirm', 'agree', 'continue'];
  for (const btn of document.querySelectorAll('button, [role="button"]')) {
    const text = (btn.textContent || '').trim().toLowerCase();
    if (wanted.some(w => text.includes(w))) { btn.click(); return true; }
  }
  return false;
})()`
)

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
