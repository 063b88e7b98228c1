package retrieval

import (
	"strings"
	"testing"
)

func TestVideoIDFromURL(t *testing.T) {
	tests := []struct {
		url, want string
	}{
		{"https://p/video/4512", "4512"},
		{"https://p/video/4512/", "4512"},
		{"https://p/clip/detail-99871?ref=x", "99871"},
		{"https://p/video/preview", ""},
	}
	for _, tt := range tests {
		if got := VideoIDFromURL(tt.url); got != tt.want {
			t.Errorf("VideoIDFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestParseLibraryExactIDMatch(t *testing.T) {
	html := `<html><body>
<div class="library-item" data-video-id="100"><h3>Other clip</h3><a download>dl</a></div>
<div class="library-item" data-video-id="4512"><h3>Completely different words</h3><a download>dl</a></div>
</body></html>`

	status, err := parseLibrary(html, "4512", "Tanks on Red Square")
	if err != nil {
		t.Fatalf("parseLibrary: %v", err)
	}
	ready, ok := status.(LibraryReady)
	if !ok {
		t.Fatalf("status = %T, want LibraryReady", status)
	}
	if !strings.Contains(ready.DownloadSelector, `"4512"`) {
		t.Errorf("selector should target the ID-matched entry: %q", ready.DownloadSelector)
	}
}

func TestParseLibraryFuzzyTitleMatch(t *testing.T) {
	html := `<html><body>
<div class="library-item"><h3>Weather report</h3></div>
<div class="library-item"><h3>Tanks cross Red Square rehearsal</h3><a download>dl</a></div>
</body></html>`

	status, err := parseLibrary(html, "", "Tanks on Red Square")
	if err != nil {
		t.Fatalf("parseLibrary: %v", err)
	}
	ready, ok := status.(LibraryReady)
	if !ok {
		t.Fatalf("status = %T, want LibraryReady", status)
	}
	if ready.EntryTitle != "Tanks cross Red Square rehearsal" {
		t.Errorf("matched entry = %q", ready.EntryTitle)
	}
}

func TestParseLibraryFirstFuzzyMatchSticks(t *testing.T) {
	html := `<html><body>
<div class="library-item"><h3>Tanks roll across Red Square</h3><a download>dl</a></div>
<div class="library-item"><h3>Red Square tanks aerial view</h3><a download>dl</a></div>
</body></html>`

	status, err := parseLibrary(html, "", "Tanks on Red Square")
	if err != nil {
		t.Fatalf("parseLibrary: %v", err)
	}
	ready, ok := status.(LibraryReady)
	if !ok {
		t.Fatalf("status = %T, want LibraryReady", status)
	}
	if ready.EntryTitle != "Tanks roll across Red Square" {
		t.Errorf("a later fuzzy match must not displace the first: %q", ready.EntryTitle)
	}
}

func TestParseLibraryExactIDSupersedesFuzzy(t *testing.T) {
	html := `<html><body>
<div class="library-item"><h3>Tanks roll across Red Square</h3><a download>dl</a></div>
<div class="library-item" data-video-id="4512"><h3>Completely different words</h3><a download>dl</a></div>
</body></html>`

	status, err := parseLibrary(html, "4512", "Tanks on Red Square")
	if err != nil {
		t.Fatalf("parseLibrary: %v", err)
	}
	ready, ok := status.(LibraryReady)
	if !ok {
		t.Fatalf("status = %T, want LibraryReady", status)
	}
	if !strings.Contains(ready.DownloadSelector, `"4512"`) {
		t.Errorf("exact ID match must win over an earlier fuzzy match: %q", ready.DownloadSelector)
	}
}

func TestParseLibraryFallbackSelectorCountsSiblings(t *testing.T) {
	// The matched entry is the third child of its parent; a heading sibling
	// precedes the entries, so class position and child position differ.
	html := `<html><body><div class="shelf">
<h2>Your library</h2>
<div class="library-item"><h3>Weather report</h3></div>
<div class="library-item"><h3>Tanks cross Red Square rehearsal</h3><a download>dl</a></div>
</div></body></html>`

	status, err := parseLibrary(html, "", "Tanks on Red Square")
	if err != nil {
		t.Fatalf("parseLibrary: %v", err)
	}
	ready, ok := status.(LibraryReady)
	if !ok {
		t.Fatalf("status = %T, want LibraryReady", status)
	}
	if !strings.Contains(ready.DownloadSelector, ".library-item:nth-child(3)") {
		t.Errorf("selector must count all sibling elements: %q", ready.DownloadSelector)
	}
}

func TestParseLibraryFuzzyNeedsTwoKeywords(t *testing.T) {
	html := `<html><body>
<div class="library-item"><h3>Tanks museum tour</h3></div>
</body></html>`

	status, err := parseLibrary(html, "", "Tanks on Red Square")
	if err != nil {
		t.Fatalf("parseLibrary: %v", err)
	}
	if _, ok := status.(LibraryNotFound); !ok {
		t.Errorf("one overlapping keyword should not match: %T", status)
	}
}

func TestParseLibraryPreparing(t *testing.T) {
	status, err := parseLibrary(preparingEntryHTML, "4512", "Tanks on Red Square")
	if err != nil {
		t.Fatalf("parseLibrary: %v", err)
	}
	if _, ok := status.(LibraryPreparing); !ok {
		t.Errorf("status = %T, want LibraryPreparing", status)
	}
}

func TestParseLibraryNotFound(t *testing.T) {
	status, err := parseLibrary("<html><body><p>empty library</p></body></html>", "4512", "Tanks")
	if err != nil {
		t.Fatalf("parseLibrary: %v", err)
	}
	if _, ok := status.(LibraryNotFound); !ok {
		t.Errorf("status = %T, want LibraryNotFound", status)
	}
}
