package session

import (
	"context"
	"log/slog"
	"os"
	"time"

	"clipmatch/internal/browser"
	"clipmatch/internal/logging"
	"clipmatch/internal/services"
)

// Selectors distinguishing a signed-in page from one demanding login. The
// platform renders exactly one of the two affordances in its header.
const (
	signInSelector  = `a[href*="sign-in"], button[data-testid="sign-in"]`
	profileSelector = `[data-testid="account-menu"], a[href*="/account"]`
)

// Page is the subset of browser operations session management needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Exists(ctx context.Context, selector string) (bool, error)
	Cookies(ctx context.Context) ([]browser.Cookie, error)
	SetCookies(ctx context.Context, cookies []browser.Cookie) error
}

// HeadlessFactory produces a disposable page in a headless browser for
// invisible verification. The returned func tears everything down.
type HeadlessFactory func() (Page, func(), error)

// Config describes session manager construction.
type Config struct {
	BaseURL      string
	LoginPath    string
	JarPath      string
	LoginTimeout time.Duration
	PollInterval time.Duration
}

// Status reports the outcome of a headless verification.
type Status struct {
	Valid      bool
	NeedsLogin bool
}

// Manager owns the persisted platform session.
type Manager struct {
	cfg      Config
	page     Page
	headless HeadlessFactory
	sleeper  func(context.Context, time.Duration) error
	logger   *slog.Logger
}

// Option customizes the manager.
type Option func(*Manager)

// WithHeadlessFactory supplies the disposable-browser constructor used by
// VerifyHeadless.
func WithHeadlessFactory(factory HeadlessFactory) Option {
	return func(m *Manager) { m.headless = factory }
}

// WithSleeper overrides how poll sleeps are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(m *Manager) { m.sleeper = sleeper }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logging.WithComponent(logger, "session") }
}

// NewManager constructs a session manager bound to a visible page.
func NewManager(cfg Config, page Page, opts ...Option) *Manager {
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	m := &Manager{
		cfg:     cfg,
		page:    page,
		sleeper: sleepWithContext,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HasSession reports whether a persisted cookie jar exists for the profile.
func (m *Manager) HasSession() bool {
	info, err := os.Stat(m.cfg.JarPath)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// Verify navigates to an authenticated page on the visible browser and
// inspects the DOM for sign-in versus profile affordances. A valid session
// refreshes the cookie jar.
func (m *Manager) Verify(ctx context.Context) (bool, error) {
	if err := m.restoreCookies(ctx, m.page); err != nil {
		return false, err
	}
	valid, err := m.checkAuthenticated(ctx, m.page, m.cfg.BaseURL)
	if err != nil {
		return false, err
	}
	if valid {
		if err := m.persistCookies(ctx, m.page); err != nil {
			return false, err
		}
	}
	return valid, nil
}

// VerifyHeadless validates the saved session in a disposable headless
// browser so the visible window is never disturbed. The headless context is
// always torn down, regardless of outcome.
func (m *Manager) VerifyHeadless(ctx context.Context) (Status, error) {
	if m.headless == nil {
		return Status{}, services.Wrap(services.ErrConfig, "session", "verify-headless", "no headless factory configured", nil)
	}
	if !m.HasSession() {
		return Status{NeedsLogin: true}, nil
	}
	page, teardown, err := m.headless()
	if err != nil {
		return Status{}, services.Wrap(services.ErrTransient, "session", "verify-headless", "start headless browser", err)
	}
	defer teardown()

	if err := m.restoreCookies(ctx, page); err != nil {
		return Status{}, err
	}
	valid, err := m.checkAuthenticated(ctx, page, m.cfg.BaseURL)
	if err != nil {
		return Status{}, err
	}
	return Status{Valid: valid, NeedsLogin: !valid}, nil
}

// Login drives the interactive login flow on the visible page. When already
// authenticated it persists cookies and returns immediately; otherwise it
// polls the authentication state, invoking onStatus on each poll. Timeout is
// not fatal: cookies captured so far are saved and false is returned, meaning
// "retry later".
func (m *Manager) Login(ctx context.Context, onStatus func(string)) (bool, error) {
	if onStatus == nil {
		onStatus = func(string) {}
	}
	loginURL := m.cfg.BaseURL + m.cfg.LoginPath
	if err := m.page.Navigate(ctx, loginURL); err != nil {
		return false, services.Wrap(services.ErrTransient, "session", "login", "open login page", err)
	}

	attempts := int(m.cfg.LoginTimeout / m.cfg.PollInterval)
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		authed, err := m.isAuthenticated(ctx, m.page)
		if err != nil {
			return false, err
		}
		if authed {
			onStatus("login detected, saving session")
			if err := m.persistCookies(ctx, m.page); err != nil {
				return false, err
			}
			m.logger.Info("login complete", logging.Int("polls", attempt))
			return true, nil
		}
		onStatus("waiting for login...")
		if err := m.sleeper(ctx, m.cfg.PollInterval); err != nil {
			return false, err
		}
	}

	// Save whatever the browser holds; a later Verify decides if it is
	// enough.
	onStatus("login timed out, saving partial session")
	if err := m.persistCookies(ctx, m.page); err != nil {
		return false, err
	}
	m.logger.Warn("login timed out", logging.Duration("waited", m.cfg.LoginTimeout))
	return false, nil
}

func (m *Manager) checkAuthenticated(ctx context.Context, page Page, url string) (bool, error) {
	if err := page.Navigate(ctx, url); err != nil {
		return false, services.Wrap(services.ErrTransient, "session", "verify", "navigate", err)
	}
	return m.isAuthenticated(ctx, page)
}

func (m *Manager) isAuthenticated(ctx context.Context, page Page) (bool, error) {
	profile, err := page.Exists(ctx, profileSelector)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "session", "verify", "inspect profile affordance", err)
	}
	if profile {
		return true, nil
	}
	signIn, err := page.Exists(ctx, signInSelector)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "session", "verify", "inspect sign-in affordance", err)
	}
	return !signIn, nil
}

func (m *Manager) restoreCookies(ctx context.Context, page Page) error {
	cookies, err := loadCookies(m.cfg.JarPath)
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return nil
	}
	if err := page.SetCookies(ctx, cookies); err != nil {
		return services.Wrap(services.ErrTransient, "session", "restore", "set cookies", err)
	}
	return nil
}

func (m *Manager) persistCookies(ctx context.Context, page Page) error {
	cookies, err := page.Cookies(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "session", "persist", "read cookies", err)
	}
	return saveCookies(m.cfg.JarPath, cookies)
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
