package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clipmatch/internal/platform"
)

const libraryURL = "https://platform.example.com/library"

type fakePage struct {
	htmlByURL    map[string]string
	htmlSeq      map[string][]string // consumed first, then htmlByURL
	preparingOn  map[string]bool     // candidate URLs showing the preparing modal
	downloadPath string
	downloadErr  error

	current   string
	navs      []string
	clicks    []string
	downloads int
}

func newFakePage() *fakePage {
	return &fakePage{
		htmlByURL:    map[string]string{},
		htmlSeq:      map[string][]string{},
		preparingOn:  map[string]bool{},
		downloadPath: "/downloads/clip.mp4",
	}
}

func (f *fakePage) Navigate(_ context.Context, url string) error {
	f.current = url
	f.navs = append(f.navs, url)
	return nil
}

func (f *fakePage) HTML(context.Context) (string, error) {
	if seq := f.htmlSeq[f.current]; len(seq) > 0 {
		html := seq[0]
		if len(seq) > 1 {
			f.htmlSeq[f.current] = seq[1:]
		}
		return html, nil
	}
	return f.htmlByURL[f.current], nil
}

func (f *fakePage) Click(_ context.Context, selector string) error {
	f.clicks = append(f.clicks, selector)
	return nil
}

func (f *fakePage) ClickIfPresent(_ context.Context, selector string) (bool, error) {
	if strings.Contains(selector, "download") {
		f.clicks = append(f.clicks, selector)
		return true, nil
	}
	return false, nil
}

func (f *fakePage) Exists(_ context.Context, selector string) (bool, error) {
	if strings.Contains(selector, "preparing") {
		return f.preparingOn[f.current], nil
	}
	return false, nil
}

func (f *fakePage) Evaluate(_ context.Context, _ string, out any) error {
	if b, ok := out.(*bool); ok {
		*b = false
	}
	return nil
}

func (f *fakePage) WaitDownload(context.Context, time.Duration) (string, error) {
	f.downloads++
	return f.downloadPath, f.downloadErr
}

func (f *fakePage) navCount(url string) int {
	count := 0
	for _, nav := range f.navs {
		if nav == url {
			count++
		}
	}
	return count
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.t = c.t.Add(d)
	return nil
}

func newTestOrchestrator(page *fakePage, maxWait time.Duration) (*Orchestrator, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	o := NewOrchestrator(page, Config{
		LibraryURL:   libraryURL,
		PollInterval: 5 * time.Second,
		MaxWait:      maxWait,
	}, WithClock(clock.now, clock.sleep))
	return o, clock
}

const preparingEntryHTML = `<html><body>
<div class="library-item" data-video-id="4512"><h3>Tanks on Red Square</h3><span>Preparing your file</span></div>
</body></html>`

const readyEntryHTML = `<html><body>
<div class="library-item" data-video-id="4512"><h3>Tanks on Red Square</h3><a download href="/dl/4512">Get file</a></div>
</body></html>`

func candidate(url, title string) *platform.Candidate {
	return &platform.Candidate{URL: url, Title: title}
}

func TestDownloadDirect(t *testing.T) {
	page := newFakePage()
	page.htmlByURL["https://p/video/4512"] = "<html><body>detail</body></html>"
	o, _ := newTestOrchestrator(page, time.Minute)

	outcome, err := o.Download(context.Background(), candidate("https://p/video/4512", "Tanks"), Options{})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	success, ok := outcome.(Success)
	if !ok {
		t.Fatalf("outcome = %T (%s), want Success", outcome, outcome.Summary())
	}
	if success.FromLibrary || success.Filename != "clip.mp4" {
		t.Errorf("unexpected success %+v", success)
	}
}

func TestDownloadFailsWithoutAffordance(t *testing.T) {
	page := newFakePage()
	page.htmlByURL["https://p/video/1"] = "<html></html>"

	// Make every ClickIfPresent miss.
	clock := &fakeClock{t: time.Now()}
	o := NewOrchestrator(&noAffordancePage{fakePage: page},
		Config{LibraryURL: libraryURL}, WithClock(clock.now, clock.sleep))

	outcome, err := o.Download(context.Background(), candidate("https://p/video/1", "x"), Options{})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	failure, ok := outcome.(Failure)
	if !ok || !strings.Contains(failure.Reason, "affordance") {
		t.Errorf("outcome = %#v, want affordance failure", outcome)
	}
}

type noAffordancePage struct{ *fakePage }

func (n *noAffordancePage) ClickIfPresent(context.Context, string) (bool, error) {
	return false, nil
}

func TestDownloadSkipWaitReportsPreparation(t *testing.T) {
	page := newFakePage()
	page.htmlByURL["https://p/video/4512"] = "<html></html>"
	page.preparingOn["https://p/video/4512"] = true
	o, _ := newTestOrchestrator(page, time.Minute)

	outcome, err := o.Download(context.Background(), candidate("https://p/video/4512", "Tanks on Red Square"), Options{SkipWait: true})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	prep, ok := outcome.(NeedsAsyncPreparation)
	if !ok {
		t.Fatalf("outcome = %T, want NeedsAsyncPreparation", outcome)
	}
	if prep.VideoID != "4512" || prep.Title != "Tanks on Red Square" {
		t.Errorf("unexpected preparation outcome %+v", prep)
	}
	if page.navCount(libraryURL) != 0 {
		t.Error("SkipWait should never poll the library")
	}
}

func TestDownloadWaitsForLibraryEntry(t *testing.T) {
	page := newFakePage()
	page.htmlByURL["https://p/video/4512"] = "<html></html>"
	page.preparingOn["https://p/video/4512"] = true
	page.htmlSeq[libraryURL] = []string{preparingEntryHTML, readyEntryHTML}
	o, clock := newTestOrchestrator(page, 4*time.Minute)
	start := clock.t

	outcome, err := o.Download(context.Background(), candidate("https://p/video/4512", "Tanks on Red Square"), Options{})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	success, ok := outcome.(Success)
	if !ok {
		t.Fatalf("outcome = %T (%s), want Success", outcome, outcome.Summary())
	}
	if !success.FromLibrary {
		t.Error("expected a library download")
	}
	if page.navCount(libraryURL) != 2 {
		t.Errorf("polled library %d times, want 2", page.navCount(libraryURL))
	}
	if elapsed := clock.t.Sub(start); elapsed > 10*time.Second {
		t.Errorf("simulated wait = %v, want one poll interval plus submit delay", elapsed)
	}
	if len(page.clicks) == 0 || !strings.Contains(page.clicks[len(page.clicks)-1], "4512") {
		t.Errorf("ready entry's download control not clicked: %v", page.clicks)
	}
}

func TestDownloadTimesOutAfterMaxWait(t *testing.T) {
	page := newFakePage()
	page.htmlByURL["https://p/video/4512"] = "<html></html>"
	page.preparingOn["https://p/video/4512"] = true
	page.htmlByURL[libraryURL] = preparingEntryHTML
	o, _ := newTestOrchestrator(page, time.Minute)

	outcome, err := o.Download(context.Background(), candidate("https://p/video/4512", "Tanks on Red Square"), Options{})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	timeout, ok := outcome.(Timeout)
	if !ok {
		t.Fatalf("outcome = %T (%s), want Timeout", outcome, outcome.Summary())
	}
	if timeout.Waited < time.Minute || timeout.Waited > 65*time.Second {
		t.Errorf("waited %v, want between 1m0s and 1m5s of simulated time", timeout.Waited)
	}
	if polls := page.navCount(libraryURL); polls < 11 || polls > 13 {
		t.Errorf("polled library %d times, want ~12 at a 5s interval", polls)
	}
}

func TestDownloadBestFallsBackWithoutWaiting(t *testing.T) {
	page := newFakePage()
	page.htmlByURL["https://p/video/1"] = "<html></html>"
	page.htmlByURL["https://p/video/2"] = "<html></html>"
	page.preparingOn["https://p/video/1"] = true
	page.htmlByURL[libraryURL] = preparingEntryHTML
	o, _ := newTestOrchestrator(page, 10*time.Second)

	ranked := []*platform.Candidate{
		candidate("https://p/video/1", "Primary"),
		candidate("https://p/video/2", "Fallback"),
	}
	result, err := o.DownloadBest(context.Background(), ranked)
	if err != nil {
		t.Fatalf("DownloadBest returned error: %v", err)
	}
	if _, ok := result.Outcome.(Success); !ok {
		t.Fatalf("outcome = %T (%s), want Success", result.Outcome, result.Outcome.Summary())
	}
	if result.URL != "https://p/video/2" {
		t.Errorf("success URL = %s, want the fallback candidate", result.URL)
	}
	if len(result.Attempts) != 1 || result.Attempts[0].URL != "https://p/video/1" {
		t.Fatalf("want exactly one skip reason for the primary, got %+v", result.Attempts)
	}
	if !strings.Contains(result.Attempts[0].Reason, "timed out") {
		t.Errorf("primary skip reason = %q", result.Attempts[0].Reason)
	}
}

func TestDownloadBestSkipWaitOnFallbackPreparation(t *testing.T) {
	page := newFakePage()
	page.htmlByURL["https://p/video/1"] = "<html></html>"
	page.htmlByURL["https://p/video/2"] = "<html></html>"
	page.preparingOn["https://p/video/1"] = true
	page.preparingOn["https://p/video/2"] = true
	page.htmlByURL[libraryURL] = preparingEntryHTML
	o, _ := newTestOrchestrator(page, 10*time.Second)

	result, err := o.DownloadBest(context.Background(), []*platform.Candidate{
		candidate("https://p/video/1", "Primary"),
		candidate("https://p/video/2", "Fallback"),
	})
	if err != nil {
		t.Fatalf("DownloadBest returned error: %v", err)
	}
	if _, ok := result.Outcome.(Failure); !ok {
		t.Fatalf("outcome = %T, want aggregate Failure", result.Outcome)
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("want 2 skip reasons, got %+v", result.Attempts)
	}
	if !strings.Contains(result.Attempts[1].Reason, "async preparation") {
		t.Errorf("fallback should be reported without waiting: %q", result.Attempts[1].Reason)
	}
	// Library polls all belong to the primary's wait; the fallback must not add any.
	if polls := page.navCount(libraryURL); polls > 3 {
		t.Errorf("library polled %d times, fallback must not wait", polls)
	}
}

func TestDownloadBestNoCandidates(t *testing.T) {
	o, _ := newTestOrchestrator(newFakePage(), time.Minute)
	result, err := o.DownloadBest(context.Background(), nil)
	if err != nil {
		t.Fatalf("DownloadBest returned error: %v", err)
	}
	if _, ok := result.Outcome.(Failure); !ok {
		t.Errorf("outcome = %T, want Failure", result.Outcome)
	}
}

func TestDownloadTransferFailure(t *testing.T) {
	page := newFakePage()
	page.htmlByURL["https://p/video/1"] = "<html></html>"
	page.downloadErr = errors.New("no file appeared")
	o, _ := newTestOrchestrator(page, time.Minute)

	outcome, err := o.Download(context.Background(), candidate("https://p/video/1", "x"), Options{})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	failure, ok := outcome.(Failure)
	if !ok || !strings.Contains(failure.Reason, "transfer") {
		t.Errorf("outcome = %#v, want transfer failure", outcome)
	}
}
