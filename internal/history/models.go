package history

import "time"

// Run is one recorded pipeline run.
type Run struct {
	ID         string
	Headline   string
	PersonMode bool
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	Detail     string
}

// CandidateRecord is one ranked candidate belonging to a run.
type CandidateRecord struct {
	Rank        int
	URL         string
	Title       string
	TextScore   int
	VisualScore int
	FinalScore  int
	SkipReason  string
}
