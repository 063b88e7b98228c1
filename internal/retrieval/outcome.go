package retrieval

import (
	"fmt"
	"time"
)

// Outcome is the result of one candidate download attempt. Exactly one of the
// concrete types below is returned; callers switch on the type.
type Outcome interface {
	outcome()
	Summary() string
}

// Success means a completed transfer on disk.
type Success struct {
	Path        string
	Filename    string
	FromLibrary bool
}

// NeedsAsyncPreparation means the platform queued the candidate for watermark
// preparation and waiting was not allowed.
type NeedsAsyncPreparation struct {
	VideoID string
	Title   string
}

// Timeout means the library wait window elapsed before the candidate became
// available. Not fatal; the caller skips to the next ranked candidate.
type Timeout struct {
	Waited time.Duration
}

// Failure is any other terminal problem with this candidate.
type Failure struct {
	Reason string
}

func (Success) outcome()               {}
func (NeedsAsyncPreparation) outcome() {}
func (Timeout) outcome()               {}
func (Failure) outcome()               {}

func (o Success) Summary() string {
	if o.FromLibrary {
		return fmt.Sprintf("downloaded from library: %s", o.Filename)
	}
	return fmt.Sprintf("downloaded: %s", o.Filename)
}

func (o NeedsAsyncPreparation) Summary() string {
	return fmt.Sprintf("needs async preparation (video %s)", o.VideoID)
}

func (o Timeout) Summary() string {
	return fmt.Sprintf("timed out after %s waiting for library availability", o.Waited)
}

func (o Failure) Summary() string {
	return o.Reason
}

// Attempt records why one ranked candidate did not produce a download.
type Attempt struct {
	URL    string
	Reason string
}

// Result is the outcome of a full ranked-fallback download run.
type Result struct {
	Outcome  Outcome
	URL      string    // candidate that produced the outcome
	Attempts []Attempt // per-candidate skip reasons, in rank order
}
