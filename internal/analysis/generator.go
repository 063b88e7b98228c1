package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"clipmatch/internal/logging"
	"clipmatch/internal/services"
	"clipmatch/internal/services/llm"
)

// SearchAnalysis is the model's reading of one news segment: what to search
// for, what the footage must show, and whether a specific named person has to
// appear on screen. Generated once per segment and read-only thereafter.
type SearchAnalysis struct {
	MainSubject        string   `json:"main_subject"`
	Country            string   `json:"country"`
	HasImportantPerson bool     `json:"has_important_person"`
	PersonName         string   `json:"person_name"`
	PersonDescription  string   `json:"person_description"`
	KeyVisuals         []string `json:"key_visuals"`
	MustShow           []string `json:"must_show"`
	Avoid              []string `json:"avoid"`
	Queries            []string `json:"queries"`
}

// PersonCheck is the advisory result of confirming a person against a segment
// screenshot before any platform search has run.
type PersonCheck struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type jsonCompleter interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteVisionJSON(ctx context.Context, systemPrompt, userPrompt string, imagePNG []byte) (string, error)
}

// Generator turns segments into search analyses via a single hosted-model
// call per segment.
type Generator struct {
	model  jsonCompleter
	logger *slog.Logger
}

// NewGenerator constructs a Generator. A nil logger disables logging.
func NewGenerator(model *llm.Client, logger *slog.Logger) *Generator {
	return newGenerator(model, logger)
}

func newGenerator(model jsonCompleter, logger *slog.Logger) *Generator {
	return &Generator{model: model, logger: logging.WithComponent(logger, "analysis")}
}

// Analyze issues one model call for the segment and decodes the structured
// analysis. Parse failures are not retried here; malformed output surfaces as
// a pipeline-level failure for the segment.
func (g *Generator) Analyze(ctx context.Context, headline, text string) (*SearchAnalysis, error) {
	headline = strings.TrimSpace(headline)
	text = strings.TrimSpace(text)
	if headline == "" && text == "" {
		return nil, services.Wrap(services.ErrValidation, "analysis", "analyze", "empty segment", nil)
	}

	userPrompt := fmt.Sprintf("HEADLINE: %s\n\nTEXT: %s", headline, text)
	content, err := g.model.CompleteJSON(ctx, analysisSystemPrompt, userPrompt)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "analysis", "analyze", "model call", err)
	}

	var parsed SearchAnalysis
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return nil, services.Wrap(services.ErrParse, "analysis", "analyze", "decode model payload", err)
	}
	normalizeAnalysis(&parsed)
	if len(parsed.Queries) == 0 {
		return nil, services.Wrap(services.ErrParse, "analysis", "analyze", "model returned no queries", nil)
	}

	g.logger.Info("segment analyzed",
		logging.String("subject", parsed.MainSubject),
		logging.Bool("person_required", parsed.HasImportantPerson),
		logging.Int("queries", len(parsed.Queries)))
	return &parsed, nil
}

// ConfirmPerson asks the vision model a direct yes/no identity question about
// a segment screenshot. The result is advisory context for the ranker, never
// a hard filter.
func (g *Generator) ConfirmPerson(ctx context.Context, screenshot []byte, personName string) (*PersonCheck, error) {
	personName = strings.TrimSpace(personName)
	if personName == "" {
		return nil, services.Wrap(services.ErrValidation, "analysis", "confirm-person", "person name required", nil)
	}
	if len(screenshot) == 0 {
		return nil, services.Wrap(services.ErrValidation, "analysis", "confirm-person", "screenshot required", nil)
	}

	userPrompt := fmt.Sprintf("Is the person pictured %s? Answer in JSON.", personName)
	content, err := g.model.CompleteVisionJSON(ctx, personCheckSystemPrompt, userPrompt, screenshot)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "analysis", "confirm-person", "model call", err)
	}
	var parsed PersonCheck
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return nil, services.Wrap(services.ErrParse, "analysis", "confirm-person", "decode model payload", err)
	}
	return &parsed, nil
}

func normalizeAnalysis(a *SearchAnalysis) {
	a.MainSubject = strings.TrimSpace(a.MainSubject)
	a.Country = strings.TrimSpace(a.Country)
	a.PersonName = strings.TrimSpace(a.PersonName)
	a.PersonDescription = strings.TrimSpace(a.PersonDescription)
	a.KeyVisuals = trimAll(a.KeyVisuals)
	a.MustShow = trimAll(a.MustShow)
	a.Avoid = trimAll(a.Avoid)
	a.Queries = trimAll(a.Queries)
	if a.PersonName == "" {
		a.HasImportantPerson = false
	}
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
