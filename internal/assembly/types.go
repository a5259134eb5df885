package assembly

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"reelsmith/internal/services"
	"reelsmith/internal/transcode"
)

// Stage names a step of the run state machine.
type Stage string

const (
	StagePlanning      Stage = "planning"
	StageFetching      Stage = "fetching"
	StageNormalizing   Stage = "normalizing"
	StageConcatenating Stage = "concatenating"
	StageCompositing   Stage = "compositing"
	StageOverlaying    Stage = "overlaying"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// ParseStage matches value against the known stages, ignoring case and
// surrounding space.
func ParseStage(value string) (Stage, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch stage := Stage(value); stage {
	case StagePlanning, StageFetching, StageNormalizing, StageConcatenating,
		StageCompositing, StageOverlaying, StageDone, StageFailed:
		return stage, true
	}
	return "", false
}

// Sentence is one narration sentence with its ordered candidate clip locators.
type Sentence struct {
	Index int      `json:"index" yaml:"index"`
	Text  string   `json:"text" yaml:"text"`
	Clips []string `json:"clips" yaml:"clips"`
}

// Request is the caller-facing description of a run.
type Request struct {
	// OutputID names the published file. A UUID is generated when empty.
	OutputID  string     `json:"output_id,omitempty" yaml:"output_id,omitempty"`
	Sentences []Sentence `json:"sentences" yaml:"sentences"`
	// FaceCam is an optional locator of a presenter recording stacked under
	// the timeline, which then fills the top two thirds of the canvas.
	FaceCam string `json:"face_cam,omitempty" yaml:"face_cam,omitempty"`
	// Audio is an optional background track locator.
	Audio string `json:"audio,omitempty" yaml:"audio,omitempty"`
	// AcceptVideoOnly publishes the silent master when the overlay fails.
	AcceptVideoOnly bool `json:"accept_video_only,omitempty" yaml:"accept_video_only,omitempty"`
}

// Validate checks the request shape. Sentence indexes must be unique and
// non-negative; when every sentence leaves Index at zero the slice position
// is used instead.
func (r Request) Validate() error {
	if len(r.Sentences) == 0 {
		return services.Wrap(services.ErrValidation, string(StagePlanning), "request", "no sentences", nil)
	}
	if id := strings.TrimSpace(r.OutputID); id != "" {
		if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
			return services.Wrap(services.ErrValidation, string(StagePlanning), "request", fmt.Sprintf("invalid output id %q", r.OutputID), nil)
		}
	}
	if positional(r.Sentences) {
		return nil
	}
	seen := make(map[int]struct{}, len(r.Sentences))
	for _, s := range r.Sentences {
		if s.Index < 0 {
			return services.Wrap(services.ErrValidation, string(StagePlanning), "request", fmt.Sprintf("negative sentence index %d", s.Index), nil)
		}
		if _, dup := seen[s.Index]; dup {
			return services.Wrap(services.ErrValidation, string(StagePlanning), "request", fmt.Sprintf("duplicate sentence index %d", s.Index), nil)
		}
		seen[s.Index] = struct{}{}
	}
	return nil
}

// Ordered returns the sentences in narration order with indexes filled in.
// The request itself is not modified.
func (r Request) Ordered() []Sentence {
	out := make([]Sentence, len(r.Sentences))
	copy(out, r.Sentences)
	if positional(out) {
		for i := range out {
			out[i].Index = i
		}
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func positional(sentences []Sentence) bool {
	if len(sentences) <= 1 {
		return true
	}
	for _, s := range sentences {
		if s.Index != 0 {
			return false
		}
	}
	return true
}

// LocalClip is a candidate clip that was fetched into the workspace.
type LocalClip struct {
	Sentence int
	Ordinal  int
	Locator  string
	Path     string
}

// Segment is a clip trimmed to its planned share and rendered on the canvas.
type Segment struct {
	Sentence int     `json:"sentence"`
	Ordinal  int     `json:"ordinal"`
	Path     string  `json:"-"`
	Seconds  float64 `json:"seconds"`
}

// Entry returns the concat reference for the segment.
func (s Segment) Entry() transcode.Entry {
	return transcode.Entry{Path: s.Path, Sentence: s.Sentence, Ordinal: s.Ordinal}
}

// SentenceTimeline is the concatenation of one sentence's segments.
type SentenceTimeline struct {
	Sentence int
	Path     string
	Segments []Segment
	Seconds  float64
}

// Result describes the published asset of a successful run.
type Result struct {
	RunID    string  `json:"run_id"`
	OutputID string  `json:"output_id"`
	Path     string  `json:"path"`
	Seconds  float64 `json:"seconds"`
	// Sentences lists the sentence indexes that made it into the video, in order.
	Sentences []int `json:"sentences"`
	Segments  int   `json:"segments"`
	// Manifest is the flattened clip order of the master timeline.
	Manifest       []transcode.Entry `json:"manifest"`
	PlanScaled     bool              `json:"plan_scaled"`
	FaceCamApplied bool              `json:"face_cam_applied"`
	AudioApplied   bool              `json:"audio_applied"`
	// Degraded is set when the overlay failed and the silent master was published.
	Degraded bool `json:"degraded"`
}

// Reporter observes run progress. Reporter errors are logged and never fail a run.
type Reporter interface {
	Started(ctx context.Context, runID string, req Request) error
	Transition(ctx context.Context, runID string, stage Stage) error
	Finished(ctx context.Context, runID string, result *Result, runErr error) error
}

// Fetcher retrieves a clip or audio locator into a local file.
type Fetcher interface {
	Fetch(ctx context.Context, locator, dest string) (int64, error)
}
