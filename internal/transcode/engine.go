package transcode

import "context"

// Engine performs the frame-level media work for an assembly run.
type Engine interface {
	// ProbeDuration returns the media duration in seconds, or 0 when unknown.
	ProbeDuration(ctx context.Context, path string) (float64, error)
	// TrimAndNormalize renders at most req.Seconds of req.Input onto the canvas.
	TrimAndNormalize(ctx context.Context, req NormalizeRequest) error
	// Concatenate joins entries in order into output using a manifest written to manifestPath.
	Concatenate(ctx context.Context, entries []Entry, manifestPath, output string) error
	// StackFaceCam renders req.Main above req.FaceCam on the canvas, trimmed to
	// req.Seconds.
	StackFaceCam(ctx context.Context, req StackRequest) error
	// MuxAudio combines the video stream of video with the audio stream of audio.
	// The result ends when the shorter input ends.
	MuxAudio(ctx context.Context, video, audio, output string) error
}

// NormalizeRequest describes one clip to trim and conform.
type NormalizeRequest struct {
	Input   string
	Output  string
	Seconds float64
}

// StackRequest describes a face-cam composition.
type StackRequest struct {
	Main    string
	FaceCam string
	Output  string
	Seconds float64
}

// Canvas is the canonical frame every segment of a run shares.
type Canvas struct {
	Width       int
	Height      int
	PixelFormat string
	FrameRate   int
}
