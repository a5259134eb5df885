package budget

import (
	"math"
	"sync/atomic"
)

// Tracker accumulates accepted segment durations for one run. It is safe for
// concurrent use by normalize workers and only ever grows.
type Tracker struct {
	cap  float64
	bits atomic.Uint64
}

// NewTracker returns a tracker bounded by capSeconds.
func NewTracker(capSeconds float64) *Tracker {
	return &Tracker{cap: capSeconds}
}

// Accept records seconds against the budget. It returns a *BudgetViolation,
// and records nothing, when the new total would exceed the cap.
func (t *Tracker) Accept(seconds float64) error {
	if seconds <= 0 {
		return nil
	}
	for {
		old := t.bits.Load()
		next := math.Float64frombits(old) + seconds
		if next > t.cap+Tolerance {
			return &BudgetViolation{Total: next, Cap: t.cap}
		}
		if t.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return nil
		}
	}
}

// Total returns the accepted seconds so far.
func (t *Tracker) Total() float64 {
	return math.Float64frombits(t.bits.Load())
}

// Remaining returns how many seconds can still be accepted.
func (t *Tracker) Remaining() float64 {
	return math.Max(0, t.cap-t.Total())
}
