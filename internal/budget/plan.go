package budget

import (
	"fmt"
	"strings"

	"reelsmith/internal/services"
)

// Tolerance absorbs floating point drift when comparing totals against the cap.
const Tolerance = 1e-6

// BudgetViolation reports a plan or accumulated total that exceeds the cap.
// It indicates a defect: a correctly rescaled plan never produces one.
type BudgetViolation struct {
	Total float64
	Cap   float64
}

func (e *BudgetViolation) Error() string {
	return fmt.Sprintf("duration budget violated: %.3fs exceeds cap %.3fs", e.Total, e.Cap)
}

// Plan holds the target duration for each sentence, indexed by sentence order.
type Plan struct {
	Durations []float64
	Cap       float64
	// Scaled is true when the raw estimate exceeded Cap and was rescaled.
	Scaled      bool
	ScaleFactor float64
}

// WordCount counts whitespace separated words. Every sentence counts as at
// least one word so no planned duration is ever zero.
func WordCount(text string) int {
	if n := len(strings.Fields(text)); n > 0 {
		return n
	}
	return 1
}

// NewPlan estimates durations from word counts at wordsPerSecond and rescales
// them uniformly when their sum exceeds capSeconds.
func NewPlan(texts []string, wordsPerSecond, capSeconds float64) (Plan, error) {
	if wordsPerSecond <= 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "planning", "budget", fmt.Sprintf("words per second must be positive, got %v", wordsPerSecond), nil)
	}
	if capSeconds <= 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "planning", "budget", fmt.Sprintf("duration cap must be positive, got %v", capSeconds), nil)
	}

	plan := Plan{
		Durations:   make([]float64, len(texts)),
		Cap:         capSeconds,
		ScaleFactor: 1,
	}
	total := 0.0
	for i, text := range texts {
		plan.Durations[i] = float64(WordCount(text)) / wordsPerSecond
		total += plan.Durations[i]
	}

	if total > capSeconds {
		plan.Scaled = true
		plan.ScaleFactor = capSeconds / total
		for i := range plan.Durations {
			plan.Durations[i] *= plan.ScaleFactor
		}
	}

	if sum := plan.Total(); sum > capSeconds+Tolerance {
		return Plan{}, &BudgetViolation{Total: sum, Cap: capSeconds}
	}
	return plan, nil
}

// Total returns the sum of all planned durations.
func (p Plan) Total() float64 {
	total := 0.0
	for _, d := range p.Durations {
		total += d
	}
	return total
}

// Duration returns the planned duration for sentence i, or 0 when out of range.
func (p Plan) Duration(i int) float64 {
	if i < 0 || i >= len(p.Durations) {
		return 0
	}
	return p.Durations[i]
}

// Split divides sentence i's duration evenly across n clips.
func (p Plan) Split(i, n int) float64 {
	if n <= 0 {
		return 0
	}
	return p.Duration(i) / float64(n)
}
