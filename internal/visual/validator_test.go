package visual

import (
	"context"
	"strings"
	"testing"
	"time"

	"clipmatch/internal/analysis"
)

type fakeVision struct {
	responses []string
	err       error
	calls     int
	lastUser  string
	lastImage []byte
}

func (f *fakeVision) CompleteVisionJSON(_ context.Context, _, userPrompt string, image []byte) (string, error) {
	f.lastUser = userPrompt
	f.lastImage = image
	if f.err != nil {
		return "", f.err
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func footageStory() *analysis.SearchAnalysis {
	return &analysis.SearchAnalysis{
		MainSubject: "military parade moscow",
		Country:     "Russia",
		KeyVisuals:  []string{"tanks on square"},
		Avoid:       []string{"file photos"},
		Queries:     []string{"moscow parade"},
	}
}

func personStory() *analysis.SearchAnalysis {
	return &analysis.SearchAnalysis{
		MainSubject:        "diplomatic meeting",
		HasImportantPerson: true,
		PersonName:         "Vladimir Putin",
		PersonDescription:  "President of Russia",
		Queries:            []string{"putin meeting"},
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestValidateFootageAcceptWithCountryBoost(t *testing.T) {
	model := &fakeVision{responses: []string{
		`{"context_match":"exact","country_match":true,"relevance_score":85,"recommendation":"ACCEPT","reason":"parade on red square"}`,
	}}
	v := newValidator(model, WithSleeper(noSleep))

	res, err := v.Validate(context.Background(), []byte{1}, "Parade", footageStory(), false)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if res.Recommendation != RecommendAccept || res.ContextMatch != ContextExact {
		t.Errorf("unexpected verdict %+v", res)
	}
	if res.RelevanceScore != 95 {
		t.Errorf("exact+country should add 10: got %d, want 95", res.RelevanceScore)
	}
	if !strings.Contains(model.lastUser, "military parade moscow") {
		t.Errorf("prompt missing subject: %q", model.lastUser)
	}
}

func TestValidateFootageCountryMismatchDiscount(t *testing.T) {
	model := &fakeVision{responses: []string{
		`{"context_match":"related","country_match":false,"relevance_score":80,"recommendation":"REVIEW","reason":"similar parade elsewhere"}`,
	}}
	v := newValidator(model, WithSleeper(noSleep))

	res, err := v.Validate(context.Background(), []byte{1}, "Parade", footageStory(), false)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if res.RelevanceScore != 65 {
		t.Errorf("high score with wrong country should drop by 15: got %d", res.RelevanceScore)
	}
}

func TestValidatePersonVerdictDrivesRecommendation(t *testing.T) {
	tests := []struct {
		name     string
		response string
		match    string
		rec      string
	}{
		{"confirmed", `{"person_match":"yes","confidence":0.9,"relevance_score":90,"reason":"clear face"}`, PersonYes, RecommendAccept},
		{"possible", `{"person_match":"maybe","confidence":0.5,"relevance_score":60,"reason":"side profile"}`, PersonPossible, RecommendReview},
		{"rejected", `{"person_match":"no","confidence":0.95,"relevance_score":10,"reason":"different person"}`, PersonNo, RecommendReject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator(&fakeVision{responses: []string{tt.response}}, WithSleeper(noSleep))
			res, err := v.Validate(context.Background(), []byte{1}, "Clip", personStory(), true)
			if err != nil {
				t.Fatalf("Validate returned error: %v", err)
			}
			if res.PersonMatch != tt.match || res.Recommendation != tt.rec {
				t.Errorf("got (%s, %s), want (%s, %s)", res.PersonMatch, res.Recommendation, tt.match, tt.rec)
			}
		})
	}
}

func TestValidateDegradesOnUnparseablePayload(t *testing.T) {
	v := newValidator(&fakeVision{responses: []string{"the model apologizes at length"}}, WithSleeper(noSleep))
	res, err := v.Validate(context.Background(), []byte{1}, "Clip", footageStory(), false)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !res.Degraded || res.Recommendation != RecommendReview || res.RelevanceScore != 30 {
		t.Errorf("expected conservative default, got %+v", res)
	}
}

func TestValidateMissingScreenshotSkipsModel(t *testing.T) {
	model := &fakeVision{responses: []string{`{}`}}
	v := newValidator(model, WithSleeper(noSleep))
	res, err := v.Validate(context.Background(), nil, "Clip", footageStory(), false)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !res.Degraded || model.calls != 0 {
		t.Errorf("missing screenshot should degrade without a model call: %+v calls=%d", res, model.calls)
	}
}

func TestValidatePacesBetweenCalls(t *testing.T) {
	var slept []time.Duration
	model := &fakeVision{responses: []string{
		`{"context_match":"exact","country_match":true,"relevance_score":80,"recommendation":"ACCEPT"}`,
		`{"context_match":"loose","country_match":true,"relevance_score":40,"recommendation":"REVIEW"}`,
		`{"context_match":"none","country_match":false,"relevance_score":5,"recommendation":"REJECT"}`,
	}}
	v := newValidator(model,
		WithPace(1500*time.Millisecond),
		WithSleeper(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}))

	for i := 0; i < 3; i++ {
		if _, err := v.Validate(context.Background(), []byte{1}, "Clip", footageStory(), false); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 pacing sleeps for 3 calls, got %d", len(slept))
	}
	for _, d := range slept {
		if d != 1500*time.Millisecond {
			t.Errorf("pacing sleep = %v, want 1.5s", d)
		}
	}
}

func TestValidateSleepCancellation(t *testing.T) {
	model := &fakeVision{responses: []string{
		`{"context_match":"exact","country_match":true,"relevance_score":80,"recommendation":"ACCEPT"}`,
		`{}`,
	}}
	v := newValidator(model, WithSleeper(func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}))

	if _, err := v.Validate(context.Background(), []byte{1}, "Clip", footageStory(), false); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := v.Validate(context.Background(), []byte{1}, "Clip", footageStory(), false); err != context.Canceled {
		t.Fatalf("expected context.Canceled from pacing sleep, got %v", err)
	}
}
