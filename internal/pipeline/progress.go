package pipeline

// Stage names reported to the progress callback, in pipeline order.
const (
	StageSession   = "session"
	StageAnalysis  = "analysis"
	StageSearch    = "search"
	StageVisual    = "visual"
	StageRanking   = "ranking"
	StageRetrieval = "retrieval"
)

// Progress receives incremental status: the current stage, a current/total
// counter within it, and a free-text message suitable for a UI.
type Progress func(stage string, current, total int, message string)

// NopProgress discards progress updates.
func NopProgress(string, int, int, string) {}
