// Package pipeline wires the discovery stages together: analysis, per-query
// search, text scoring, visual validation, ranking, and retrieval. One
// pipeline run processes one segment sequentially; the browser page and the
// hosted models are shared, rate-limited resources.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"clipmatch/internal/analysis"
	"clipmatch/internal/history"
	"clipmatch/internal/logging"
	"clipmatch/internal/platform"
	"clipmatch/internal/ranking"
	"clipmatch/internal/retrieval"
	"clipmatch/internal/scoring"
	"clipmatch/internal/services"
	"clipmatch/internal/session"
	"clipmatch/internal/visual"
)

// Analyzer produces the per-segment search analysis.
type Analyzer interface {
	Analyze(ctx context.Context, headline, text string) (*analysis.SearchAnalysis, error)
}

// Searcher finds and deep-analyzes candidates for one query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]*platform.Candidate, error)
	SearchWithScreenshots(ctx context.Context, query string, limit int) ([]*platform.Candidate, error)
	Cache() *platform.ScreenshotCache
}

// Validator runs the vision check on one candidate screenshot.
type Validator interface {
	Validate(ctx context.Context, screenshot []byte, title string, a *analysis.SearchAnalysis, requiresPerson bool) (*visual.Analysis, error)
}

// Retriever downloads the best ranked candidate with fallback.
type Retriever interface {
	DownloadBest(ctx context.Context, ranked []*platform.Candidate) (*retrieval.Result, error)
}

// SessionChecker verifies platform session validity without a visible browser.
type SessionChecker interface {
	VerifyHeadless(ctx context.Context) (session.Status, error)
}

// Options tune one pipeline run.
type Options struct {
	ResultLimit         int // candidates per query
	MaxVisualCandidates int // top-N sent to the vision model
	WithScreenshots     bool
}

// MatchResult is the ranked output of MatchSegment.
type MatchResult struct {
	Analysis   *analysis.SearchAnalysis
	Candidates []*platform.Candidate
}

// Pipeline runs segments through the full discovery flow.
type Pipeline struct {
	analyzer  Analyzer
	searcher  Searcher
	validator Validator
	retriever Retriever
	sessions  SessionChecker
	store     *history.Store // optional
	logger    *slog.Logger
	progress  Progress
	opts      Options
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithHistory records runs into the store.
func WithHistory(store *history.Store) PipelineOption {
	return func(p *Pipeline) { p.store = store }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logging.WithComponent(logger, "pipeline") }
}

// WithProgress installs a progress callback.
func WithProgress(progress Progress) PipelineOption {
	return func(p *Pipeline) { p.progress = progress }
}

// New constructs a Pipeline.
func New(analyzer Analyzer, searcher Searcher, validator Validator, retriever Retriever, sessions SessionChecker, opts Options, popts ...PipelineOption) *Pipeline {
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = 8
	}
	if opts.MaxVisualCandidates <= 0 {
		opts.MaxVisualCandidates = 3
	}
	p := &Pipeline{
		analyzer:  analyzer,
		searcher:  searcher,
		validator: validator,
		retriever: retriever,
		sessions:  sessions,
		logger:    logging.NewNop(),
		progress:  NopProgress,
		opts:      opts,
	}
	for _, opt := range popts {
		opt(p)
	}
	return p
}

// MatchSegment runs analysis, search, scoring, validation, and ranking for
// one segment and returns the ranked candidates.
func (p *Pipeline) MatchSegment(ctx context.Context, headline, text string) (*MatchResult, error) {
	match, err := p.match(ctx, headline, text)
	if err != nil {
		runID := p.beginRun(ctx, headline, false)
		p.finishRun(ctx, runID, "failed", err.Error())
		return nil, err
	}
	runID := p.beginRun(ctx, headline, match.Analysis.HasImportantPerson)
	if len(match.Candidates) == 0 {
		p.finishRun(ctx, runID, "no_candidates", "")
		return match, nil
	}
	p.recordCandidates(ctx, runID, match.Candidates, nil)
	p.finishRun(ctx, runID, "matched", fmt.Sprintf("%d candidates ranked", len(match.Candidates)))
	return match, nil
}

// DownloadBest matches the segment and retrieves the best ranked candidate,
// falling back through the rest on failure. Match and retrieval share one
// history run.
func (p *Pipeline) DownloadBest(ctx context.Context, headline, text string) (*retrieval.Result, error) {
	match, err := p.match(ctx, headline, text)
	if err != nil {
		runID := p.beginRun(ctx, headline, false)
		p.finishRun(ctx, runID, "failed", err.Error())
		return nil, err
	}
	runID := p.beginRun(ctx, headline, match.Analysis.HasImportantPerson)
	if len(match.Candidates) == 0 {
		p.finishRun(ctx, runID, "no_candidates", "")
		return &retrieval.Result{Outcome: retrieval.Failure{Reason: "no candidates found"}}, nil
	}

	p.progress(StageRetrieval, 0, len(match.Candidates), "downloading best candidate")
	result, err := p.retriever.DownloadBest(ctx, match.Candidates)
	if err != nil {
		p.finishRun(ctx, runID, "failed", err.Error())
		return nil, err
	}

	p.recordCandidates(ctx, runID, match.Candidates, result.Attempts)
	switch result.Outcome.(type) {
	case retrieval.Success:
		p.finishRun(ctx, runID, "downloaded", result.Outcome.Summary())
	default:
		p.finishRun(ctx, runID, "download_failed", result.Outcome.Summary())
	}
	p.progress(StageRetrieval, len(match.Candidates), len(match.Candidates), result.Outcome.Summary())
	return result, nil
}

// match runs the discovery stages shared by MatchSegment and DownloadBest.
func (p *Pipeline) match(ctx context.Context, headline, text string) (*MatchResult, error) {
	if err := p.checkSession(ctx); err != nil {
		return nil, err
	}
	p.searcher.Cache().Clear()

	p.progress(StageAnalysis, 0, 1, "analyzing segment")
	a, err := p.analyzer.Analyze(ctx, headline, text)
	if err != nil {
		return nil, err
	}
	p.progress(StageAnalysis, 1, 1, fmt.Sprintf("%d queries generated", len(a.Queries)))

	candidates, err := p.searchAll(ctx, a)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &MatchResult{Analysis: a}, nil
	}

	p.scoreAll(candidates, a)
	if err := p.validateTop(ctx, candidates, a); err != nil {
		return nil, err
	}

	p.progress(StageRanking, 0, 1, "ranking candidates")
	ranking.Rank(candidates, a.HasImportantPerson)
	p.progress(StageRanking, 1, 1, fmt.Sprintf("best: %s", candidates[0].Title))

	return &MatchResult{Analysis: a, Candidates: candidates}, nil
}

func (p *Pipeline) checkSession(ctx context.Context) error {
	if p.sessions == nil {
		return nil
	}
	p.progress(StageSession, 0, 1, "verifying session")
	status, err := p.sessions.VerifyHeadless(ctx)
	if err != nil {
		return err
	}
	if !status.Valid {
		return services.Wrap(services.ErrSessionInvalid, "pipeline", "check_session", "platform session is not valid, login required", nil)
	}
	p.progress(StageSession, 1, 1, "session valid")
	return nil
}

// searchAll runs every generated query and merges results de-duplicated by
// URL, keeping each candidate's earliest query priority.
func (p *Pipeline) searchAll(ctx context.Context, a *analysis.SearchAnalysis) ([]*platform.Candidate, error) {
	var merged []*platform.Candidate
	total := len(a.Queries)
	for i, query := range a.Queries {
		p.progress(StageSearch, i, total, fmt.Sprintf("searching %q", query))
		var (
			found []*platform.Candidate
			err   error
		)
		if p.opts.WithScreenshots {
			found, err = p.searcher.SearchWithScreenshots(ctx, query, p.opts.ResultLimit)
		} else {
			found, err = p.searcher.Search(ctx, query, p.opts.ResultLimit)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("query failed",
				logging.String("query", query),
				logging.Error(err))
			continue
		}
		// Queries are ordered specific to generic; candidates carry their
		// generating query's rank, and dedup keeps the earliest.
		for _, c := range found {
			c.QueryPriority = i
		}
		merged = platform.MergeCandidates(merged, found)
	}
	p.progress(StageSearch, total, total, fmt.Sprintf("%d unique candidates", len(merged)))
	return merged, nil
}

func (p *Pipeline) scoreAll(candidates []*platform.Candidate, a *analysis.SearchAnalysis) {
	for _, c := range candidates {
		res := scoring.Score(c.ScoreFields(), a)
		c.TextScore = &res
		p.logger.Debug("text scored",
			logging.String("url", c.URL),
			logging.Int("score", res.Score))
	}
}

// validateTop sends the top-N text-scored candidates with screenshots to the
// vision model. Validation errors skip the candidate, not the run.
func (p *Pipeline) validateTop(ctx context.Context, candidates []*platform.Candidate, a *analysis.SearchAnalysis) error {
	if p.validator == nil {
		return nil
	}
	top := topByTextScore(candidates, p.opts.MaxVisualCandidates)
	for i, c := range top {
		p.progress(StageVisual, i, len(top), fmt.Sprintf("validating %s", c.Title))
		v, err := p.validator.Validate(ctx, c.Screenshot, c.Title, a, a.HasImportantPerson)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("visual validation failed",
				logging.String("url", c.URL),
				logging.Error(err))
			continue
		}
		c.Visual = v
	}
	p.progress(StageVisual, len(top), len(top), "visual validation done")
	return nil
}

// topByTextScore returns up to n candidates ordered by text score descending
// without disturbing the input slice.
func topByTextScore(candidates []*platform.Candidate, n int) []*platform.Candidate {
	sorted := make([]*platform.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := 0, 0
		if sorted[i].TextScore != nil {
			si = sorted[i].TextScore.Score
		}
		if sorted[j].TextScore != nil {
			sj = sorted[j].TextScore.Score
		}
		if si != sj {
			return si > sj
		}
		return sorted[i].URL < sorted[j].URL
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// beginRun starts a history row. Called once match results (and the person
// flag) are known; a failed match records with personMode=false.
func (p *Pipeline) beginRun(ctx context.Context, headline string, personMode bool) string {
	if p.store == nil {
		return ""
	}
	id, err := p.store.BeginRun(ctx, headline, personMode)
	if err != nil {
		p.logger.Warn("history run insert failed", logging.Error(err))
		return ""
	}
	return id
}

func (p *Pipeline) finishRun(ctx context.Context, runID, outcome, detail string) {
	if p.store == nil || runID == "" {
		return
	}
	if err := p.store.FinishRun(ctx, runID, outcome, detail); err != nil {
		p.logger.Warn("history run update failed", logging.Error(err))
	}
}

func (p *Pipeline) recordCandidates(ctx context.Context, runID string, candidates []*platform.Candidate, attempts []retrieval.Attempt) {
	if p.store == nil || runID == "" {
		return
	}
	reasons := make(map[string]string, len(attempts))
	for _, attempt := range attempts {
		reasons[attempt.URL] = attempt.Reason
	}
	records := make([]history.CandidateRecord, 0, len(candidates))
	for i, c := range candidates {
		rec := history.CandidateRecord{
			Rank:       i,
			URL:        c.URL,
			Title:      c.Title,
			FinalScore: c.FinalScore,
			SkipReason: reasons[c.URL],
		}
		if c.TextScore != nil {
			rec.TextScore = c.TextScore.Score
		}
		if c.Visual != nil {
			rec.VisualScore = c.Visual.RelevanceScore
		}
		records = append(records, rec)
	}
	if err := p.store.RecordCandidates(ctx, runID, records); err != nil {
		p.logger.Warn("history candidate insert failed", logging.Error(err))
	}
}
