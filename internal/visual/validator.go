package visual

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clipmatch/internal/analysis"
	"clipmatch/internal/logging"
	"clipmatch/internal/services/llm"
)

// Recommendation values returned by footage-mode validation.
const (
	RecommendAccept = "ACCEPT"
	RecommendReview = "REVIEW"
	RecommendReject = "REJECT"
)

// PersonMatch values returned by person-mode validation.
const (
	PersonYes      = "yes"
	PersonPossible = "possible"
	PersonNo       = "no"
)

// Context match categories for footage mode.
const (
	ContextExact   = "exact"
	ContextRelated = "related"
	ContextLoose   = "loose"
	ContextNone    = "none"
)

// Analysis is the vision model's verdict on one candidate screenshot.
type Analysis struct {
	Mode           string  // "person" or "footage"
	PersonMatch    string  // yes | possible | no (person mode)
	Confidence     float64 // person mode
	ContextMatch   string  // exact | related | loose | none (footage mode)
	CountryMatch   bool    // footage mode
	RelevanceScore int     // 0-100
	Recommendation string  // ACCEPT | REVIEW | REJECT
	Reason         string
	Degraded       bool // true when the model payload could not be parsed
}

type visionCompleter interface {
	CompleteVisionJSON(ctx context.Context, systemPrompt, userPrompt string, imagePNG []byte) (string, error)
}

// Validator runs vision-model checks over candidate screenshots. Calls are
// paced to respect hosted-model rate limits.
type Validator struct {
	model   visionCompleter
	pace    time.Duration
	sleeper func(context.Context, time.Duration) error
	logger  *slog.Logger

	calls int
}

// Option customizes the validator.
type Option func(*Validator)

// WithPace overrides the delay between consecutive vision calls.
func WithPace(pace time.Duration) Option {
	return func(v *Validator) { v.pace = pace }
}

// WithSleeper overrides how pacing sleeps are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(v *Validator) { v.sleeper = sleeper }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) { v.logger = logging.WithComponent(logger, "visual") }
}

// NewValidator constructs a Validator around the shared model client.
func NewValidator(model *llm.Client, opts ...Option) *Validator {
	return newValidator(model, opts...)
}

func newValidator(model visionCompleter, opts ...Option) *Validator {
	v := &Validator{
		model:   model,
		pace:    1500 * time.Millisecond,
		sleeper: sleepWithContext,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// conservativeDefault is returned whenever the model output cannot be
// trusted; a human-review verdict never promotes or buries a candidate.
func conservativeDefault(mode, reason string) *Analysis {
	return &Analysis{
		Mode:           mode,
		PersonMatch:    PersonNo,
		ContextMatch:   ContextLoose,
		RelevanceScore: 30,
		Recommendation: RecommendReview,
		Reason:         reason,
		Degraded:       true,
	}
}

// Validate runs one vision check for the candidate screenshot. In person mode
// it asks an identity question; in footage mode it judges topical relevance
// against the analysis. Parse failures degrade to a conservative default
// rather than failing the candidate.
func (v *Validator) Validate(ctx context.Context, screenshot []byte, title string, a *analysis.SearchAnalysis, requiresPerson bool) (*Analysis, error) {
	mode := "footage"
	if requiresPerson {
		mode = "person"
	}
	if len(screenshot) == 0 {
		return conservativeDefault(mode, "no screenshot captured"), nil
	}

	if v.calls > 0 && v.pace > 0 {
		if err := v.sleeper(ctx, v.pace); err != nil {
			return nil, err
		}
	}
	v.calls++

	if requiresPerson {
		return v.validatePerson(ctx, screenshot, title, a)
	}
	return v.validateFootage(ctx, screenshot, title, a)
}

func (v *Validator) validatePerson(ctx context.Context, screenshot []byte, title string, a *analysis.SearchAnalysis) (*Analysis, error) {
	userPrompt := fmt.Sprintf(
		"Candidate title: %s\nIs the person pictured %s (%s)? Answer in JSON.",
		title, a.PersonName, a.PersonDescription,
	)
	content, err := v.model.CompleteVisionJSON(ctx, personSystemPrompt, userPrompt, screenshot)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		PersonMatch    string  `json:"person_match"`
		Confidence     float64 `json:"confidence"`
		RelevanceScore int     `json:"relevance_score"`
		Reason         string  `json:"reason"`
	}
	if decodeErr := llm.DecodeJSON(content, &parsed); decodeErr != nil {
		v.logger.Warn("person validation payload unparseable", logging.Error(decodeErr))
		return conservativeDefault("person", "unparseable model payload"), nil
	}

	result := &Analysis{
		Mode:           "person",
		PersonMatch:    normalizePersonMatch(parsed.PersonMatch),
		Confidence:     clampFloat(parsed.Confidence, 0, 1),
		RelevanceScore: clampInt(parsed.RelevanceScore, 0, 100),
		Reason:         strings.TrimSpace(parsed.Reason),
	}
	switch result.PersonMatch {
	case PersonYes:
		result.Recommendation = RecommendAccept
	case PersonPossible:
		result.Recommendation = RecommendReview
	default:
		result.Recommendation = RecommendReject
	}
	v.logger.Info("person validated",
		logging.String("match", result.PersonMatch),
		logging.Float64("confidence", result.Confidence),
		logging.Int("score", result.RelevanceScore))
	return result, nil
}

func (v *Validator) validateFootage(ctx context.Context, screenshot []byte, title string, a *analysis.SearchAnalysis) (*Analysis, error) {
	userPrompt := fmt.Sprintf(
		"Candidate title: %s\nStory subject: %s\nCountry: %s\nExpected visuals: %s\nMust avoid: %s\nJudge the screenshot in JSON.",
		title, a.MainSubject, a.Country,
		strings.Join(a.KeyVisuals, ", "), strings.Join(a.Avoid, ", "),
	)
	content, err := v.model.CompleteVisionJSON(ctx, footageSystemPrompt, userPrompt, screenshot)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ContextMatch   string `json:"context_match"`
		CountryMatch   bool   `json:"country_match"`
		RelevanceScore int    `json:"relevance_score"`
		Recommendation string `json:"recommendation"`
		Reason         string `json:"reason"`
	}
	if decodeErr := llm.DecodeJSON(content, &parsed); decodeErr != nil {
		v.logger.Warn("footage validation payload unparseable", logging.Error(decodeErr))
		return conservativeDefault("footage", "unparseable model payload"), nil
	}

	result := &Analysis{
		Mode:           "footage",
		ContextMatch:   normalizeContextMatch(parsed.ContextMatch),
		CountryMatch:   parsed.CountryMatch,
		RelevanceScore: clampInt(parsed.RelevanceScore, 0, 100),
		Recommendation: normalizeRecommendation(parsed.Recommendation),
		Reason:         strings.TrimSpace(parsed.Reason),
	}

	// Trust exact-context hits in the right country a little more than the
	// raw number; distrust high numbers when the country is visibly wrong.
	if result.ContextMatch == ContextExact && result.CountryMatch {
		result.RelevanceScore = clampInt(result.RelevanceScore+10, 0, 100)
	}
	if !result.CountryMatch && a.Country != "" && result.RelevanceScore >= 70 {
		result.RelevanceScore = clampInt(result.RelevanceScore-15, 0, 100)
	}

	v.logger.Info("footage validated",
		logging.String("context", result.ContextMatch),
		logging.Bool("country", result.CountryMatch),
		logging.Int("score", result.RelevanceScore),
		logging.String("recommendation", result.Recommendation))
	return result, nil
}

func normalizePersonMatch(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "true":
		return PersonYes
	case "possible", "maybe", "unsure":
		return PersonPossible
	default:
		return PersonNo
	}
}

func normalizeContextMatch(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case ContextExact:
		return ContextExact
	case ContextRelated:
		return ContextRelated
	case ContextLoose:
		return ContextLoose
	default:
		return ContextNone
	}
}

func normalizeRecommendation(value string) string {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case RecommendAccept:
		return RecommendAccept
	case RecommendReject:
		return RecommendReject
	default:
		return RecommendReview
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
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
