package browser

import (
	"context"
	"errors"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

const defaultOpTimeout = 20 * time.Second

// Config describes a browser instance.
type Config struct {
	Headless    bool
	UserAgent   string
	DownloadDir string
	// OpTimeout bounds each page operation (navigation, click, screenshot).
	OpTimeout time.Duration
}

// Browser owns a Chrome process and its root automation context.
type Browser struct {
	cfg         Config
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// New launches a browser process. Callers must Close it.
func New(cfg Config) (*Browser, error) {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaultOpTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Start the process eagerly so construction fails fast when Chrome is
	// missing.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, err
	}

	b := &Browser{cfg: cfg, allocCancel: allocCancel, ctx: ctx, cancel: cancel}
	if cfg.DownloadDir != "" {
		if err := b.allowDownloads(cfg.DownloadDir); err != nil {
			b.Close()
			return nil, err
		}
	}
	return b, nil
}

func (b *Browser) allowDownloads(dir string) error {
	return chromedp.Run(b.ctx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir),
	)
}

// NewPage opens a fresh tab. Callers must Close it.
func (b *Browser) NewPage() (*Page, error) {
	if b == nil || b.ctx == nil {
		return nil, errors.New("browser: not started")
	}
	ctx, cancel := chromedp.NewContext(b.ctx)
	return &Page{
		ctx:         ctx,
		cancel:      cancel,
		opTimeout:   b.cfg.OpTimeout,
		downloadDir: b.cfg.DownloadDir,
	}, nil
}

// Close tears down the page contexts and the browser process.
func (b *Browser) Close() {
	if b == nil {
		return
	}
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}
