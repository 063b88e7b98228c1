package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clipmatch/internal/analysis"
	"clipmatch/internal/browser"
	"clipmatch/internal/config"
	"clipmatch/internal/history"
	"clipmatch/internal/logging"
	"clipmatch/internal/pipeline"
	"clipmatch/internal/platform"
	"clipmatch/internal/retrieval"
	"clipmatch/internal/services/llm"
	"clipmatch/internal/session"
	"clipmatch/internal/visual"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) buildLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stderr",
			filepath.Join(cfg.Paths.LogDir, "clipmatch.log"),
		},
	})
}

func (c *commandContext) modelClient(cfg *config.Config) *llm.Client {
	return llm.NewClient(llm.Config{
		APIKey:               cfg.LLM.APIKey,
		BaseURL:              cfg.LLM.BaseURL,
		Model:                cfg.LLM.Model,
		VisionModel:          cfg.Vision.Model,
		Referer:              cfg.LLM.Referer,
		Title:                cfg.LLM.Title,
		TimeoutSeconds:       cfg.LLM.TimeoutSeconds,
		VisionTimeoutSeconds: cfg.Vision.TimeoutSeconds,
	})
}

// openPage launches a browser and opens one page on it. The returned cleanup
// tears both down.
func openPage(cfg *config.Config, headless bool) (*browser.Page, func(), error) {
	b, err := browser.New(browser.Config{
		Headless:    headless,
		DownloadDir: cfg.Paths.DownloadDir,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}
	page, err := b.NewPage()
	if err != nil {
		b.Close()
		return nil, nil, fmt.Errorf("open page: %w", err)
	}
	cleanup := func() {
		page.Close()
		b.Close()
	}
	return page, cleanup, nil
}

func sessionManager(cfg *config.Config, page session.Page, logger *slog.Logger) *session.Manager {
	return session.NewManager(session.Config{
		BaseURL:      cfg.Platform.BaseURL,
		LoginPath:    cfg.Platform.LoginPath,
		JarPath:      cfg.CookieJarPath(),
		LoginTimeout: time.Duration(cfg.Session.LoginTimeoutMinutes) * time.Minute,
		PollInterval: time.Duration(cfg.Session.PollSeconds) * time.Second,
	}, page,
		session.WithLogger(logger),
		session.WithHeadlessFactory(func() (session.Page, func(), error) {
			return openPage(cfg, true)
		}))
}

// runtime bundles everything a pipeline command needs.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	pipe    *pipeline.Pipeline
	store   *history.Store
	cleanup func()
}

// buildRuntime wires the full pipeline over one shared browser page.
func (c *commandContext) buildRuntime(ctx context.Context, progress pipeline.Progress) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.buildLogger(cfg)
	if err != nil {
		return nil, err
	}

	page, pageCleanup, err := openPage(cfg, true)
	if err != nil {
		return nil, err
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(ctx, cfg.HistoryPath())
		if err != nil {
			pageCleanup()
			return nil, err
		}
	}

	model := c.modelClient(cfg)
	searcher := platform.NewSearcher(page, platform.Config{
		BaseURL:    cfg.Platform.BaseURL,
		SearchPath: cfg.Platform.SearchPath,
	}, platform.NewScreenshotCache(),
		platform.WithSearchLogger(logger),
		platform.WithSearchAttempts(cfg.Search.MaxAttempts))

	validator := visual.NewValidator(model,
		visual.WithPace(time.Duration(cfg.Visual.PaceMillis)*time.Millisecond),
		visual.WithLogger(logger))

	orchestrator := retrieval.NewOrchestrator(page, retrieval.Config{
		LibraryURL:      platformURL(cfg, cfg.Platform.LibraryPath),
		PollInterval:    time.Duration(cfg.Retrieval.PollIntervalSeconds) * time.Second,
		MaxWait:         time.Duration(cfg.Retrieval.MaxWaitMinutes) * time.Minute,
		DownloadTimeout: time.Duration(cfg.Retrieval.DownloadTimeoutSeconds) * time.Second,
	}, retrieval.WithRetrievalLogger(logger))

	popts := []pipeline.PipelineOption{
		pipeline.WithLogger(logger),
		pipeline.WithProgress(progress),
	}
	if store != nil {
		popts = append(popts, pipeline.WithHistory(store))
	}
	pipe := pipeline.New(
		analysis.NewGenerator(model, logger),
		searcher,
		validator,
		orchestrator,
		sessionManager(cfg, page, logger),
		pipeline.Options{
			ResultLimit:         cfg.Search.ResultLimit,
			MaxVisualCandidates: cfg.Visual.MaxCandidates,
			WithScreenshots:     cfg.Search.WithScreenshots,
		},
		popts...,
	)

	cleanup := func() {
		if store != nil {
			store.Close()
		}
		pageCleanup()
	}
	return &runtime{cfg: cfg, logger: logger, pipe: pipe, store: store, cleanup: cleanup}, nil
}

func platformURL(cfg *config.Config, path string) string {
	return strings.TrimRight(cfg.Platform.BaseURL, "/") + path
}
