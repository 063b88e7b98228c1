package ranking

import (
	"testing"

	"clipmatch/internal/platform"
	"clipmatch/internal/scoring"
	"clipmatch/internal/visual"
)

func textScored(url string, score int) *platform.Candidate {
	return &platform.Candidate{
		URL:       url,
		TextScore: &scoring.Result{Score: score},
	}
}

func TestFinalizeTextOnly(t *testing.T) {
	c := textScored("u", 72)
	if got := Finalize(c); got != 72 {
		t.Errorf("Finalize = %d, want text score passthrough 72", got)
	}
	if c.FinalScore != 72 {
		t.Error("FinalScore not stored on the candidate")
	}
}

func TestFinalizeWithoutTextScore(t *testing.T) {
	c := &platform.Candidate{URL: "u"}
	if got := Finalize(c); got != 0 {
		t.Errorf("unscored candidate finalized to %d, want 0", got)
	}
}

func TestFinalizeBlendsAndAdjustsFootage(t *testing.T) {
	strong := textScored("a", 70)
	strong.Visual = &visual.Analysis{Mode: "footage", RelevanceScore: 90}
	// 70*0.6 + 90*0.4 = 78, +15 strong visual = 93
	if got := Finalize(strong); got != 93 {
		t.Errorf("strong visual = %d, want 93", got)
	}

	weak := textScored("b", 70)
	weak.Visual = &visual.Analysis{Mode: "footage", RelevanceScore: 40}
	// 70*0.6 + 40*0.4 = 58, -20 weak visual = 38
	if got := Finalize(weak); got != 38 {
		t.Errorf("weak visual = %d, want 38", got)
	}
}

func TestFinalizePersonAdjustments(t *testing.T) {
	confirmed := textScored("a", 50)
	confirmed.Visual = &visual.Analysis{Mode: "person", PersonMatch: visual.PersonYes, RelevanceScore: 80}
	// 50*0.6 + 80*0.4 = 62, +25 confirmed = 87
	if got := Finalize(confirmed); got != 87 {
		t.Errorf("confirmed = %d, want 87", got)
	}

	possibleLow := textScored("b", 50)
	possibleLow.Visual = &visual.Analysis{Mode: "person", PersonMatch: visual.PersonPossible, Confidence: 0.4, RelevanceScore: 80}
	// low confidence gets no bonus: 62
	if got := Finalize(possibleLow); got != 62 {
		t.Errorf("low-confidence possible = %d, want 62", got)
	}

	mismatch := textScored("c", 50)
	mismatch.Visual = &visual.Analysis{Mode: "person", PersonMatch: visual.PersonNo, RelevanceScore: 80}
	// 62 - 30 mismatch = 32
	if got := Finalize(mismatch); got != 32 {
		t.Errorf("mismatch = %d, want 32", got)
	}

	degraded := textScored("d", 50)
	degraded.Visual = &visual.Analysis{Mode: "person", PersonMatch: visual.PersonNo, RelevanceScore: 30, Degraded: true}
	// 50*0.6 + 30*0.4 = 42, no mismatch malus when the verdict is degraded
	if got := Finalize(degraded); got != 42 {
		t.Errorf("degraded = %d, want 42", got)
	}
}

func TestFinalizePersonInTextBonusAndClamp(t *testing.T) {
	c := textScored("a", 95)
	c.TextScore.PersonMatchInText = true
	c.Visual = &visual.Analysis{Mode: "person", PersonMatch: visual.PersonYes, Confidence: 0.9, RelevanceScore: 95}
	if got := Finalize(c); got != 100 {
		t.Errorf("stacked bonuses should clamp to 100, got %d", got)
	}
}

func TestPersonModeHardOrderingOverride(t *testing.T) {
	// Inverted raw scores: the rejected candidate has the best text score, the
	// confirmed one the worst. Tiering must still win.
	confirmed := textScored("https://p/video/1", 40)
	confirmed.Visual = &visual.Analysis{Mode: "person", PersonMatch: visual.PersonYes, Confidence: 0.9, RelevanceScore: 70}
	possible := textScored("https://p/video/2", 60)
	possible.Visual = &visual.Analysis{Mode: "person", PersonMatch: visual.PersonPossible, Confidence: 0.7, RelevanceScore: 60}
	rejected := textScored("https://p/video/3", 90)
	rejected.Visual = &visual.Analysis{Mode: "person", PersonMatch: visual.PersonNo, RelevanceScore: 85}

	ranked := Rank([]*platform.Candidate{rejected, possible, confirmed}, true)

	want := []string{"https://p/video/1", "https://p/video/2", "https://p/video/3"}
	for i, c := range ranked {
		if c.URL != want[i] {
			t.Fatalf("rank %d = %s, want %s (order %v)", i, c.URL, want[i], urls(ranked))
		}
	}
}

func TestFootageModeSortsByScore(t *testing.T) {
	low := textScored("https://p/video/1", 30)
	high := textScored("https://p/video/2", 80)
	mid := textScored("https://p/video/3", 55)

	ranked := Rank([]*platform.Candidate{low, high, mid}, false)
	if ranked[0].URL != high.URL || ranked[2].URL != low.URL {
		t.Errorf("unexpected order %v", urls(ranked))
	}
}

func TestSortTiesBreakOnURL(t *testing.T) {
	a := textScored("https://p/video/b", 50)
	b := textScored("https://p/video/a", 50)
	ranked := Rank([]*platform.Candidate{a, b}, false)
	if ranked[0].URL != "https://p/video/a" {
		t.Errorf("tie should order by URL, got %v", urls(ranked))
	}
}

func urls(cands []*platform.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.URL
	}
	return out
}
