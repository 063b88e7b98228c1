package scoring

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"clipmatch/internal/analysis"
)

func footageAnalysis() *analysis.SearchAnalysis {
	return &analysis.SearchAnalysis{
		MainSubject: "military parade moscow",
		Country:     "Russia",
		KeyVisuals:  []string{"tanks on square", "marching soldiers"},
		MustShow:    []string{"red square"},
		Queries:     []string{"moscow parade"},
	}
}

func personAnalysis() *analysis.SearchAnalysis {
	return &analysis.SearchAnalysis{
		MainSubject:        "diplomatic meeting",
		Country:            "Russia",
		HasImportantPerson: true,
		PersonName:         "Vladimir Putin",
		KeyVisuals:         []string{"handshake"},
		MustShow:           []string{"Putin"},
		Queries:            []string{"putin meeting"},
	}
}

func TestScoreIsDeterministicAndBounded(t *testing.T) {
	f := Fields{
		Title:       "Military parade on Red Square, Moscow, Russia",
		Description: "Tanks and marching soldiers cross Red Square during the parade.",
		ShotList:    "1. tanks on square 2. soldiers marching 3. crowd watching",
		PageText:    "military parade moscow russia red square",
	}
	a := footageAnalysis()

	first := Score(f, a)
	second := Score(f, a)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Score not deterministic: %+v vs %+v", first, second)
	}
	if first.Score < 0 || first.Score > 100 {
		t.Fatalf("score out of range: %d", first.Score)
	}
	if first.Score != 100 {
		t.Errorf("strong match should clamp to 100, got %d (breakdown %v)", first.Score, first.Breakdown)
	}
	if len(first.Breakdown) == 0 {
		t.Error("expected a rule breakdown")
	}
}

func TestScoreNilAnalysis(t *testing.T) {
	res := Score(Fields{Title: "anything"}, nil)
	if res.Score != 0 || res.PersonMatchInText {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPersonAbsencePenalty(t *testing.T) {
	a := personAnalysis()
	base := Fields{
		Title:    "Officials meet in Moscow",
		ShotList: "1. delegates arrive 2. handshake in hall",
	}
	withName := base
	withName.ShotList += " 3. Vladimir Putin greets delegation"

	absent := Score(base, a)
	present := Score(withName, a)

	if absent.PersonMatchInText {
		t.Error("expected no person match in base text")
	}
	if !present.PersonMatchInText {
		t.Error("expected person match with name injected")
	}
	if present.Score-absent.Score < 20 {
		t.Errorf("name injection should raise the score by at least 20: %d vs %d", present.Score, absent.Score)
	}
}

func TestPersonMatchTiers(t *testing.T) {
	a := personAnalysis()
	tests := []struct {
		name string
		text string
		want int // expected person delta before other rules
	}{
		{"full name", "vladimir putin enters", personFullName},
		{"surname only", "president putin enters", personSurname},
		{"fragment only", "vladimir enters the hall", personFragment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, matched, _ := personScore(tt.text, a.PersonName)
			if !matched || delta != tt.want {
				t.Errorf("personScore(%q) = (%d, %v), want (%d, true)", tt.text, delta, matched, tt.want)
			}
		})
	}
}

func TestSubjectOverlapSkippedInPersonMode(t *testing.T) {
	a := personAnalysis()
	f := Fields{Title: "diplomatic meeting", PageText: "diplomatic meeting coverage"}
	res := Score(f, a)
	for _, line := range res.Breakdown {
		if strings.Contains(line, "subject") {
			t.Errorf("subject rule fired in person mode: %v", res.Breakdown)
		}
	}
}

func TestCountryBonusStacksWithTitle(t *testing.T) {
	a := footageAnalysis()
	inBody := Score(Fields{PageText: "parade filmed in russia"}, a)
	inTitle := Score(Fields{Title: "Russia parade coverage"}, a)
	if inTitle.Score-inBody.Score != countryInTitle {
		t.Errorf("title country bonus = %d, want %d", inTitle.Score-inBody.Score, countryInTitle)
	}
}

func TestHotTopicPenaltyOnlyWhenUnrelated(t *testing.T) {
	a := footageAnalysis() // declared country Russia
	unrelated := Score(Fields{Title: "Gaza aftermath drone view"}, a)
	if len(unrelated.Breakdown) == 0 {
		t.Fatal("expected penalty breakdown entry")
	}
	found := false
	for _, line := range unrelated.Breakdown {
		if line == "-25 unrelated hot topic: \"gaza\"" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing gaza penalty in %v", unrelated.Breakdown)
	}

	related := Score(Fields{Title: "Russia parade highlights"}, a)
	for _, line := range related.Breakdown {
		if line == "-25 unrelated hot topic: \"russia\"" {
			t.Errorf("russia is the declared country, should not be penalized: %v", related.Breakdown)
		}
	}
}

func TestTopicBonusRequiresSubjectMention(t *testing.T) {
	offSubject := &analysis.SearchAnalysis{
		MainSubject: "fashion week",
		Queries:     []string{"fashion"},
	}
	res := Score(Fields{PageText: "soldiers and missile launchers on display"}, offSubject)
	if res.Score != 0 {
		t.Errorf("military vocabulary without military subject scored %d, want 0 (breakdown %v)", res.Score, res.Breakdown)
	}

	onSubject := &analysis.SearchAnalysis{
		MainSubject: "military buildup with troops and missile systems",
		Queries:     []string{"military"},
	}
	capped := Score(Fields{PageText: "military troops missile soldiers army navy"}, onSubject)
	topicTotal := 0
	for _, line := range capped.Breakdown {
		if !strings.Contains(line, "topic") {
			continue
		}
		var delta int
		if _, err := fmt.Sscanf(line, "%d", &delta); err != nil {
			t.Fatalf("unparseable breakdown line %q", line)
		}
		topicTotal += delta
	}
	if topicTotal != topicBonusCap {
		t.Errorf("recorded topic deltas sum to %d, want the cap %d (breakdown %v)",
			topicTotal, topicBonusCap, capped.Breakdown)
	}
}

func TestBreakdownSumsToScore(t *testing.T) {
	// Three topic keyword hits run past the cap, so the last recorded
	// delta shrinks; the ledger must still add up to the applied score.
	a := &analysis.SearchAnalysis{
		MainSubject: "military buildup with troops and missile systems",
		Queries:     []string{"military"},
	}
	res := Score(Fields{PageText: "military troops missile on the move"}, a)
	sum := 0
	for _, line := range res.Breakdown {
		var delta int
		if _, err := fmt.Sscanf(line, "%d", &delta); err != nil {
			t.Fatalf("unparseable breakdown line %q", line)
		}
		sum += delta
	}
	if sum != res.Score {
		t.Errorf("breakdown sums to %d but score is %d (breakdown %v)", sum, res.Score, res.Breakdown)
	}
}

func TestMustShowWordTiers(t *testing.T) {
	a := &analysis.SearchAnalysis{
		MainSubject: "flood rescue",
		MustShow:    []string{"rescue boat volunteers"},
		Queries:     []string{"flood"},
	}
	full := Score(Fields{PageText: "rescue boat volunteers wade through water"}, a)
	two := Score(Fields{PageText: "a rescue boat in the street"}, a)
	one := Score(Fields{PageText: "volunteers hand out food"}, a)

	if full.Score <= two.Score || two.Score <= one.Score {
		t.Errorf("must-show tiers not ordered: full=%d two=%d one=%d", full.Score, two.Score, one.Score)
	}
}
