package runstore

import (
	"time"

	"reelsmith/internal/assembly"
)

// Run is one row of run history.
type Run struct {
	ID            string
	OutputID      string
	Source        string
	Status        assembly.Stage
	SentenceCount int
	Audio         string
	RequestJSON   string

	OutputPath        string
	Seconds           float64
	Segments          int
	IncludedSentences []int
	AudioApplied      bool
	Degraded          bool

	FailedStage  assembly.Stage
	ErrorClass   string
	ErrorMessage string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
}

// Active reports whether the run has not reached a terminal stage.
func (r Run) Active() bool {
	return !r.Status.Terminal()
}

// Elapsed returns how long the run took, or has taken so far.
func (r Run) Elapsed(now time.Time) time.Duration {
	end := now
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	if r.CreatedAt.IsZero() || end.Before(r.CreatedAt) {
		return 0
	}
	return end.Sub(r.CreatedAt)
}

// Summary counts runs by status.
type Summary struct {
	Total  int
	Active int
	Done   int
	Failed int
}
