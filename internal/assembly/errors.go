package assembly

import (
	"errors"
	"fmt"
)

// ErrNoSegments is wrapped by a ConcatError when no sentence kept a segment.
var ErrNoSegments = errors.New("no sentence produced a usable segment")

// FetchError reports a candidate clip that could not be retrieved.
// The candidate is skipped; the run continues.
type FetchError struct {
	Sentence int
	Ordinal  int
	Locator  string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch sentence %d clip %d (%s): %v", e.Sentence, e.Ordinal, e.Locator, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NormalizeError reports a fetched clip that could not be trimmed or conformed.
// The clip is skipped; the run continues.
type NormalizeError struct {
	Sentence int
	Ordinal  int
	Path     string
	Err      error
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("normalize sentence %d clip %d: %v", e.Sentence, e.Ordinal, e.Err)
}

func (e *NormalizeError) Unwrap() error { return e.Err }

// ConcatError ends the run. Sentence is -1 for the master timeline.
type ConcatError struct {
	Sentence int
	Err      error
}

func (e *ConcatError) Error() string {
	if e.Sentence < 0 {
		return fmt.Sprintf("concatenate master timeline: %v", e.Err)
	}
	return fmt.Sprintf("concatenate sentence %d: %v", e.Sentence, e.Err)
}

func (e *ConcatError) Unwrap() error { return e.Err }

// CompositeError ends the run; there is no fallback without the face cam.
type CompositeError struct {
	FaceCam string
	Err     error
}

func (e *CompositeError) Error() string {
	return fmt.Sprintf("stack face cam %s: %v", e.FaceCam, e.Err)
}

func (e *CompositeError) Unwrap() error { return e.Err }

// OverlayError ends the run unless the caller accepts a video-only result.
type OverlayError struct {
	Audio string
	Err   error
}

func (e *OverlayError) Error() string {
	return fmt.Sprintf("overlay audio %s: %v", e.Audio, e.Err)
}

func (e *OverlayError) Unwrap() error { return e.Err }

// StageError attaches the failing stage to a fatal run error.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage a run error came from, or "" when unknown.
func FailedStage(err error) Stage {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}
