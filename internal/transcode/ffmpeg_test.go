package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

func testOptions() Options {
	return Options{
		Canvas:       Canvas{Width: 1080, Height: 1920, PixelFormat: "yuv420p", FrameRate: 30},
		VideoCodec:   "libx264",
		Preset:       "fast",
		CRF:          23,
		AudioCodec:   "aac",
		AudioBitrate: "192k",
		Timeout:      time.Second,
	}
}

func hasPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func hasArg(args []string, want string) bool {
	for _, arg := range args {
		if arg == want {
			return true
		}
	}
	return false
}

// writingRunner emulates ffmpeg by writing to the partial output argument.
func writingRunner(t *testing.T, calls *[][]string) CommandRunner {
	t.Helper()
	return func(_ context.Context, _ string, args ...string) error {
		*calls = append(*calls, args)
		for _, arg := range args {
			if strings.Contains(arg, ".partial") {
				return os.WriteFile(arg, []byte("media"), 0o644)
			}
		}
		return errors.New("no output argument")
	}
}

func TestNormalizeArgsConformToCanvas(t *testing.T) {
	engine := NewFFmpeg(testOptions(), logging.NewNop())
	args := engine.normalizeArgs("/in/clip.mp4", "/out/seg.mp4", 2.5)

	if !hasPair(args, "-i", "/in/clip.mp4") {
		t.Fatalf("expected input pair, got %v", args)
	}
	if !hasPair(args, "-t", "2.500") {
		t.Fatalf("expected trim duration, got %v", args)
	}
	wantFilter := "scale=1080:1920:force_original_aspect_ratio=decrease,pad=1080:1920:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=30,format=yuv420p"
	if !hasPair(args, "-vf", wantFilter) {
		t.Fatalf("expected canvas filter, got %v", args)
	}
	for _, pair := range [][2]string{{"-c:v", "libx264"}, {"-preset", "fast"}, {"-crf", "23"}, {"-pix_fmt", "yuv420p"}} {
		if !hasPair(args, pair[0], pair[1]) {
			t.Fatalf("expected %s %s in %v", pair[0], pair[1], args)
		}
	}
	if !hasArg(args, "-an") {
		t.Fatalf("expected audio stripped, got %v", args)
	}
	if !hasArg(args, "/out/seg.mp4") {
		t.Fatalf("expected output path, got %v", args)
	}
	if args[0] != "-hide_banner" {
		t.Fatalf("expected global args first, got %v", args)
	}
}

func TestConcatArgsUseDemuxerAndStreamCopy(t *testing.T) {
	engine := NewFFmpeg(testOptions(), logging.NewNop())
	args := engine.concatArgs("/w/list.txt", "/w/master.mp4")

	if !hasPair(args, "-f", "concat") || !hasPair(args, "-safe", "0") {
		t.Fatalf("expected concat demuxer flags, got %v", args)
	}
	if !hasPair(args, "-i", "/w/list.txt") {
		t.Fatalf("expected manifest input, got %v", args)
	}
	if !hasPair(args, "-c", "copy") {
		t.Fatalf("expected stream copy, got %v", args)
	}
}

func TestMuxArgsEndWithShorterInput(t *testing.T) {
	engine := NewFFmpeg(testOptions(), logging.NewNop())
	args := engine.muxArgs("/w/master.mp4", "/w/audio.mp3", "/w/final.mp4")

	if !hasPair(args, "-i", "/w/master.mp4") || !hasPair(args, "-i", "/w/audio.mp3") {
		t.Fatalf("expected both inputs, got %v", args)
	}
	if !hasArg(args, "-shortest") {
		t.Fatalf("expected -shortest, got %v", args)
	}
	for _, pair := range [][2]string{{"-c:v", "copy"}, {"-c:a", "aac"}, {"-b:a", "192k"}, {"-movflags", "+faststart"}} {
		if !hasPair(args, pair[0], pair[1]) {
			t.Fatalf("expected %s %s in %v", pair[0], pair[1], args)
		}
	}
}

func filterGraph(t *testing.T, args []string) string {
	t.Helper()
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-filter_complex" {
			return args[i+1]
		}
	}
	t.Fatalf("expected -filter_complex in %v", args)
	return ""
}

func TestStackArgsSplitCanvasTwoThirdsOneThird(t *testing.T) {
	engine := NewFFmpeg(testOptions(), logging.NewNop())
	args := engine.stackArgs("/w/master.mp4", "/w/facecam.mov", "/w/composite.mp4", 12)

	if !hasPair(args, "-i", "/w/master.mp4") || !hasPair(args, "-i", "/w/facecam.mov") {
		t.Fatalf("expected both inputs, got %v", args)
	}
	graph := filterGraph(t, args)
	for _, want := range []string{
		"scale=1080:1280:force_original_aspect_ratio=decrease",
		"pad=1080:1280:(ow-iw)/2:(oh-ih)/2",
		"scale=1080:640:force_original_aspect_ratio=decrease",
		"pad=1080:640:(ow-iw)/2:(oh-ih)/2",
		"vstack=inputs=2",
		"format=yuv420p",
	} {
		if !strings.Contains(graph, want) {
			t.Fatalf("filter graph missing %q: %s", want, graph)
		}
	}
	if !hasPair(args, "-t", "12.000") || !hasArg(args, "-an") {
		t.Fatalf("expected timeline trim without audio, got %v", args)
	}
	for _, pair := range [][2]string{{"-c:v", "libx264"}, {"-preset", "fast"}, {"-crf", "23"}} {
		if !hasPair(args, pair[0], pair[1]) {
			t.Fatalf("expected %s %s in %v", pair[0], pair[1], args)
		}
	}
}

func TestStackFaceCamRejectsNonPositiveDuration(t *testing.T) {
	engine := NewFFmpeg(testOptions(), logging.NewNop())
	engine.WithCommandRunner(func(context.Context, string, ...string) error {
		t.Fatal("runner should not be called")
		return nil
	})
	err := engine.StackFaceCam(context.Background(), StackRequest{Main: "m.mp4", FaceCam: "f.mp4", Output: "c.mp4"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTrimAndNormalizeMovesOutputIntoPlace(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "segment.mp4")

	var calls [][]string
	engine := NewFFmpeg(testOptions(), logging.NewNop())
	engine.WithCommandRunner(writingRunner(t, &calls))

	err := engine.TrimAndNormalize(context.Background(), NormalizeRequest{Input: filepath.Join(dir, "clip.mp4"), Output: output, Seconds: 1.25})
	if err != nil {
		t.Fatalf("TrimAndNormalize: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected one ffmpeg call, got %d", len(calls))
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if _, err := os.Stat(partialPath(output)); !os.IsNotExist(err) {
		t.Fatalf("expected partial file to be gone, got %v", err)
	}
}

func TestTrimAndNormalizeRejectsNonPositiveDuration(t *testing.T) {
	engine := NewFFmpeg(testOptions(), logging.NewNop())
	engine.WithCommandRunner(func(context.Context, string, ...string) error {
		t.Fatal("runner should not be called")
		return nil
	})
	err := engine.TrimAndNormalize(context.Background(), NormalizeRequest{Input: "a", Output: "b.mp4", Seconds: 0})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFailedCommandLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "segment.mp4")

	engine := NewFFmpeg(testOptions(), logging.NewNop())
	engine.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		for _, arg := range args {
			if strings.Contains(arg, ".partial") {
				_ = os.WriteFile(arg, []byte("half"), 0o644)
			}
		}
		return errors.New("exit status 1: Invalid data found when processing input")
	})

	err := engine.TrimAndNormalize(context.Background(), NormalizeRequest{Input: "clip.mp4", Output: output, Seconds: 1})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("expected ffmpeg output in error, got %v", err)
	}
	for _, path := range []string{output, partialPath(output)} {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			t.Fatalf("expected %s to be absent, got %v", path, statErr)
		}
	}
}

func TestEmptyOutputIsAnError(t *testing.T) {
	dir := t.TempDir()
	engine := NewFFmpeg(testOptions(), logging.NewNop())
	engine.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		for _, arg := range args {
			if strings.Contains(arg, ".partial") {
				return os.WriteFile(arg, nil, 0o644)
			}
		}
		return nil
	})
	err := engine.MuxAudio(context.Background(), "v.mp4", "a.mp3", filepath.Join(dir, "final.mp4"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error for empty output, got %v", err)
	}
}

func TestCommandTimeoutIsClassified(t *testing.T) {
	opts := testOptions()
	opts.Timeout = 20 * time.Millisecond
	engine := NewFFmpeg(opts, logging.NewNop())
	engine.WithCommandRunner(func(ctx context.Context, _ string, _ ...string) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := engine.TrimAndNormalize(context.Background(), NormalizeRequest{Input: "clip.mp4", Output: filepath.Join(t.TempDir(), "s.mp4"), Seconds: 1})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
}

func TestConcatenateWritesManifestInOrder(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "concat.txt")
	output := filepath.Join(dir, "sentence.mp4")

	var calls [][]string
	engine := NewFFmpeg(testOptions(), logging.NewNop())
	engine.WithCommandRunner(writingRunner(t, &calls))

	entries := []Entry{
		{Path: filepath.Join(dir, "b.mp4"), Sentence: 0, Ordinal: 0},
		{Path: filepath.Join(dir, "a.mp4"), Sentence: 0, Ordinal: 1},
	}
	if err := engine.Concatenate(context.Background(), entries, manifest, output); err != nil {
		t.Fatalf("Concatenate: %v", err)
	}

	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	text := string(data)
	if strings.Index(text, "b.mp4") > strings.Index(text, "a.mp4") {
		t.Fatalf("manifest order does not follow entries: %q", text)
	}
}

func TestConcatenateRejectsEmptyEntries(t *testing.T) {
	engine := NewFFmpeg(testOptions(), logging.NewNop())
	err := engine.Concatenate(context.Background(), nil, filepath.Join(t.TempDir(), "c.txt"), "out.mp4")
	if !errors.Is(err, ErrEmptyManifest) {
		t.Fatalf("expected empty manifest error, got %v", err)
	}
}

func TestProbeDurationUsesProbeRunner(t *testing.T) {
	engine := NewFFmpeg(testOptions(), logging.NewNop())
	engine.WithProbeRunner(func(_ context.Context, binary string, _ ...string) ([]byte, error) {
		if binary != "ffprobe" {
			t.Fatalf("unexpected ffprobe binary %q", binary)
		}
		return []byte(`{"streams":[{"codec_type":"video","width":1920,"height":1080}],"format":{"duration":"7.75"}}`), nil
	})

	got, err := engine.ProbeDuration(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("ProbeDuration: %v", err)
	}
	if got != 7.75 {
		t.Fatalf("expected 7.75, got %v", got)
	}
}
