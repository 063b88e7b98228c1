package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Cookie is the persisted form of a browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// Page is a single browser tab. Operations are bounded by the configured
// per-operation timeout; cancellation of the passed context is honored
// between operations, not mid-call.
type Page struct {
	ctx         context.Context
	cancel      context.CancelFunc
	opTimeout   time.Duration
	downloadDir string
}

// Close releases the tab.
func (p *Page) Close() {
	if p != nil && p.cancel != nil {
		p.cancel()
	}
}

func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(p.ctx, p.opTimeout)
	defer cancel()
	return chromedp.Run(tctx, actions...)
}

// Navigate loads url and waits for the document body.
func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// CurrentURL returns the page's current location.
func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, chromedp.Location(&loc))
	return loc, err
}

// HTML returns the full document markup.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Click clicks the first element matching selector, failing if absent.
func (p *Page) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// ClickIfPresent clicks the first matching element if one exists, reporting
// whether a click happened. Missing elements are not an error.
func (p *Page) ClickIfPresent(ctx context.Context, selector string) (bool, error) {
	var clicked bool
	js := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); if (!el) return false; el.click(); return true; })()`,
		selector,
	)
	if err := p.run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return false, err
	}
	return clicked, nil
}

// Exists reports whether any element matches selector.
func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	js := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := p.run(ctx, chromedp.Evaluate(js, &found)); err != nil {
		return false, err
	}
	return found, nil
}

// Evaluate runs a JavaScript expression and decodes its result into out.
func (p *Page) Evaluate(ctx context.Context, js string, out any) error {
	return p.run(ctx, chromedp.Evaluate(js, out))
}

// Screenshot captures the visible viewport as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// ScreenshotElement captures the first element matching selector as PNG.
func (p *Page) ScreenshotElement(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.Screenshot(selector, &buf, chromedp.NodeVisible, chromedp.ByQuery))
	return buf, err
}

// Cookies returns all cookies visible to the browser.
func (p *Page) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		cookies = make([]Cookie, 0, len(raw))
		for _, c := range raw {
			cookies = append(cookies, Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
			})
		}
		return nil
	}))
	return cookies, err
}

// SetCookies loads the supplied cookies into the browser.
func (p *Page) SetCookies(ctx context.Context, cookies []Cookie) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			param := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				param = param.WithExpires(&expires)
			}
			if err := param.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

// WaitDownload waits until a new completed file appears in the download
// directory and returns its path. Files are considered in-flight while a
// matching partial download marker exists.
func (p *Page) WaitDownload(ctx context.Context, timeout time.Duration) (string, error) {
	if p.downloadDir == "" {
		return "", fmt.Errorf("download: no download directory configured")
	}
	before, err := snapshotDir(p.downloadDir)
	if err != nil {
		return "", err
	}
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		path, err := newCompletedFile(p.downloadDir, before)
		if err != nil {
			return "", err
		}
		if path != "" {
			return path, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("download: no file completed within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func snapshotDir(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("download: read dir: %w", err)
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Name()] = struct{}{}
	}
	return seen, nil
}

func newCompletedFile(dir string, before map[string]struct{}) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("download: read dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	if name := pickCompletedDownload(names, before); name != "" {
		return filepath.Join(dir, name), nil
	}
	return "", nil
}

// pickCompletedDownload returns the first name not present in before that is
// neither a partial download nor shadowed by one.
func pickCompletedDownload(names []string, before map[string]struct{}) string {
	partial := map[string]struct{}{}
	for _, name := range names {
		if strings.HasSuffix(name, ".crdownload") || strings.HasSuffix(name, ".part") {
			partial[strings.TrimSuffix(strings.TrimSuffix(name, ".crdownload"), ".part")] = struct{}{}
		}
	}
	for _, name := range names {
		if strings.HasSuffix(name, ".crdownload") || strings.HasSuffix(name, ".part") {
			continue
		}
		if _, existed := before[name]; existed {
			continue
		}
		if _, inFlight := partial[name]; inFlight {
			continue
		}
		return name
	}
	return ""
}
