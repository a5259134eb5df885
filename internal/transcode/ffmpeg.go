package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/services"
)

// maxErrorOutput bounds how much ffmpeg output is folded into an error.
const maxErrorOutput = 2048

// CommandRunner executes a binary and returns an error that includes its output on failure.
type CommandRunner func(ctx context.Context, binary string, args ...string) error

// Options configures the ffmpeg engine.
type Options struct {
	FFmpegBinary  string
	FFprobeBinary string
	Canvas        Canvas
	VideoCodec    string
	Preset        string
	CRF           int
	AudioCodec    string
	AudioBitrate  string
	// Timeout bounds every individual ffmpeg or ffprobe invocation.
	Timeout time.Duration
}

// OptionsFromConfig maps configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FFmpegBinary:  cfg.Transcode.FFmpegBinary,
		FFprobeBinary: cfg.Transcode.FFprobeBinary,
		Canvas: Canvas{
			Width:       cfg.Canvas.Width,
			Height:      cfg.Canvas.Height,
			PixelFormat: cfg.Canvas.PixelFormat,
			FrameRate:   cfg.Canvas.FrameRate,
		},
		VideoCodec:   cfg.Transcode.VideoCodec,
		Preset:       cfg.Transcode.Preset,
		CRF:          cfg.Transcode.CRF,
		AudioCodec:   cfg.Transcode.AudioCodec,
		AudioBitrate: cfg.Transcode.AudioBitrate,
		Timeout:      cfg.CommandTimeout(),
	}
}

// FFmpeg implements Engine with the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	opts   Options
	logger *slog.Logger
	run    CommandRunner
	probe  ffprobe.Runner
}

// NewFFmpeg constructs an engine.
func NewFFmpeg(opts Options, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(opts.FFmpegBinary) == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(opts.FFprobeBinary) == "" {
		opts.FFprobeBinary = "ffprobe"
	}
	return &FFmpeg{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "ffmpeg"),
		run:    defaultCommandRunner,
		probe:  ffprobe.ExecRunner,
	}
}

// WithCommandRunner allows injecting a custom ffmpeg runner for tests.
func (f *FFmpeg) WithCommandRunner(r CommandRunner) {
	if f != nil && r != nil {
		f.run = r
	}
}

// WithProbeRunner allows injecting a custom ffprobe runner for tests.
func (f *FFmpeg) WithProbeRunner(r ffprobe.Runner) {
	if f != nil && r != nil {
		f.probe = r
	}
}

// ProbeDuration implements Engine.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := f.deadline(ctx)
	defer cancel()

	result, err := ffprobe.InspectWith(ctx, f.probe, f.opts.FFprobeBinary, path)
	if err != nil {
		return 0, f.classify(ctx, "ffprobe", err)
	}
	if video, ok := result.PrimaryVideo(); ok {
		f.logger.Debug("measured clip",
			logging.String("path", path),
			logging.Float64("duration_seconds", result.DurationSeconds()),
			logging.Int("width", video.Width),
			logging.Int("height", video.Height),
			logging.Float64("frame_rate", video.FrameRate()),
		)
	}
	return result.DurationSeconds(), nil
}

// TrimAndNormalize implements Engine.
func (f *FFmpeg) TrimAndNormalize(ctx context.Context, req NormalizeRequest) error {
	if req.Seconds <= 0 {
		return services.Wrap(services.ErrValidation, "normalize", "trim", fmt.Sprintf("non-positive duration %.3f", req.Seconds), nil)
	}
	return f.produce(ctx, "normalize", req.Output, func(tmp string) []string {
		return f.normalizeArgs(req.Input, tmp, req.Seconds)
	})
}

// Concatenate implements Engine.
func (f *FFmpeg) Concatenate(ctx context.Context, entries []Entry, manifestPath, output string) error {
	if err := WriteManifest(manifestPath, entries); err != nil {
		return services.Wrap(services.ErrValidation, "concat", "manifest", "", err)
	}
	return f.produce(ctx, "concat", output, func(tmp string) []string {
		return f.concatArgs(manifestPath, tmp)
	})
}

// StackFaceCam implements Engine.
func (f *FFmpeg) StackFaceCam(ctx context.Context, req StackRequest) error {
	if req.Seconds <= 0 {
		return services.Wrap(services.ErrValidation, "composite", "stack", fmt.Sprintf("non-positive duration %.3f", req.Seconds), nil)
	}
	return f.produce(ctx, "composite", req.Output, func(tmp string) []string {
		return f.stackArgs(req.Main, req.FaceCam, tmp, req.Seconds)
	})
}

// MuxAudio implements Engine.
func (f *FFmpeg) MuxAudio(ctx context.Context, video, audio, output string) error {
	return f.produce(ctx, "mux", output, func(tmp string) []string {
		return f.muxArgs(video, audio, tmp)
	})
}

// produce runs an ffmpeg command that writes to a temporary sibling of output
// and renames it into place only when ffmpeg succeeded.
func (f *FFmpeg) produce(ctx context.Context, operation, output string, build func(tmp string) []string) error {
	tmp := partialPath(output)
	args := build(tmp)

	f.logger.Debug("executing ffmpeg",
		logging.String("operation", operation),
		logging.String("output", output),
		logging.String("args", strings.Join(args, " ")),
	)

	runCtx, cancel := f.deadline(ctx)
	defer cancel()

	if err := f.run(runCtx, f.opts.FFmpegBinary, args...); err != nil {
		_ = os.Remove(tmp)
		return f.classify(runCtx, operation, err)
	}
	if info, err := os.Stat(tmp); err != nil || info.Size() == 0 {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrExternalTool, operation, "verify", "ffmpeg produced no output", err)
	}
	if err := os.Rename(tmp, output); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%s: move output into place: %w", operation, err)
	}
	return nil
}

func (f *FFmpeg) normalizeArgs(input, output string, seconds float64) []string {
	kwargs := ffmpeg.KwArgs{
		"t":       formatSeconds(seconds),
		"vf":      f.canvasFilter(),
		"c:v":     f.opts.VideoCodec,
		"pix_fmt": f.opts.Canvas.PixelFormat,
		"crf":     strconv.Itoa(f.opts.CRF),
		"an":      "",
	}
	if preset := strings.TrimSpace(f.opts.Preset); preset != "" {
		kwargs["preset"] = preset
	}
	stream := ffmpeg.Input(input).Output(output, kwargs)
	return withGlobalArgs(stream.OverWriteOutput().GetArgs())
}

func (f *FFmpeg) concatArgs(manifestPath, output string) []string {
	stream := ffmpeg.Input(manifestPath, ffmpeg.KwArgs{
		"f":    "concat",
		"safe": "0",
	}).Output(output, ffmpeg.KwArgs{
		"c":        "copy",
		"movflags": "+faststart",
	})
	return withGlobalArgs(stream.OverWriteOutput().GetArgs())
}

// stackArgs letterboxes main into the top two thirds of the canvas and face
// into the rest, then stacks them. Both bands keep even heights for yuv420p.
func (f *FFmpeg) stackArgs(main, face, output string, seconds float64) []string {
	c := f.opts.Canvas
	topHeight := (c.Height * 2 / 3) &^ 1
	top := f.band(ffmpeg.Input(main).Video(), topHeight)
	bottom := f.band(ffmpeg.Input(face).Video(), c.Height-topHeight)

	kwargs := ffmpeg.KwArgs{
		"t":        formatSeconds(seconds),
		"c:v":      f.opts.VideoCodec,
		"pix_fmt":  c.PixelFormat,
		"crf":      strconv.Itoa(f.opts.CRF),
		"an":       "",
		"movflags": "+faststart",
	}
	if preset := strings.TrimSpace(f.opts.Preset); preset != "" {
		kwargs["preset"] = preset
	}
	stream := ffmpeg.Filter([]*ffmpeg.Stream{top, bottom}, "vstack", ffmpeg.Args{"inputs=2"}).
		Filter("fps", ffmpeg.Args{strconv.Itoa(c.FrameRate)}).
		Filter("format", ffmpeg.Args{c.PixelFormat}).
		Output(output, kwargs)
	return withGlobalArgs(stream.OverWriteOutput().GetArgs())
}

// band fits s into a canvas-wide strip of the given height.
func (f *FFmpeg) band(s *ffmpeg.Stream, height int) *ffmpeg.Stream {
	width := strconv.Itoa(f.opts.Canvas.Width)
	h := strconv.Itoa(height)
	return s.
		Filter("scale", ffmpeg.Args{width, h}, ffmpeg.KwArgs{"force_original_aspect_ratio": "decrease"}).
		Filter("pad", ffmpeg.Args{width, h, "(ow-iw)/2", "(oh-ih)/2"}).
		Filter("setsar", ffmpeg.Args{"1"})
}

func (f *FFmpeg) muxArgs(video, audio, output string) []string {
	stream := ffmpeg.Output([]*ffmpeg.Stream{
		ffmpeg.Input(video).Video(),
		ffmpeg.Input(audio).Audio(),
	}, output, ffmpeg.KwArgs{
		"c:v":      "copy",
		"c:a":      f.opts.AudioCodec,
		"b:a":      f.opts.AudioBitrate,
		"shortest": "",
		"movflags": "+faststart",
	})
	return withGlobalArgs(stream.OverWriteOutput().GetArgs())
}

// canvasFilter letterboxes or pillarboxes any source onto the canvas.
func (f *FFmpeg) canvasFilter() string {
	c := f.opts.Canvas
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d,format=%s",
		c.Width, c.Height, c.Width, c.Height, c.FrameRate, c.PixelFormat,
	)
}

func (f *FFmpeg) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.opts.Timeout)
}

func (f *FFmpeg) classify(ctx context.Context, operation string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, operation, "ffmpeg", fmt.Sprintf("exceeded %s", f.opts.Timeout), err)
		}
		return fmt.Errorf("%s: %w", operation, ctxErr)
	}
	return services.Wrap(services.ErrExternalTool, operation, "ffmpeg", "", err)
}

func withGlobalArgs(args []string) []string {
	return append([]string{"-hide_banner", "-nostdin", "-loglevel", "error"}, args...)
}

func partialPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".partial" + ext
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		text := strings.TrimSpace(string(output))
		if len(text) > maxErrorOutput {
			text = "..." + text[len(text)-maxErrorOutput:]
		}
		return fmt.Errorf("%w: %s", err, text)
	}
	return nil
}
