// Package budget converts narration text into per-sentence durations that fit
// the total duration cap.
//
// NewPlan estimates each sentence from its word count and, when the sum would
// exceed the cap, rescales every sentence by one uniform factor so relative
// proportions survive. The plan-time rescale is the only place clips are
// shortened to honour the cap; Tracker then verifies at render time that the
// accepted segment durations never add up past it.
package budget
