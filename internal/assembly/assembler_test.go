package assembly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"reelsmith/internal/fetch"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/staging"
)

type harness struct {
	t       *testing.T
	sources string
	staging string
	output  string
	music   string
	opts    Options
	engine  *fakeEngine
	fetcher Fetcher
	reports Reporter

	mu  sync.Mutex
	ids int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	base := t.TempDir()
	h := &harness{
		t:       t,
		sources: filepath.Join(base, "sources"),
		staging: filepath.Join(base, "staging"),
		output:  filepath.Join(base, "output"),
		music:   filepath.Join(base, "music"),
		engine:  newFakeEngine(),
		fetcher: fetch.New(fetch.Options{}, nil, logging.NewNop()),
	}
	h.opts = Options{
		StagingDir:          h.staging,
		OutputDir:           h.output,
		AudioDir:            h.music,
		WordsPerSecond:      2.5,
		MaxTotalSeconds:     180,
		MaxClipsPerSentence: 3,
		FetchWorkers:        4,
		NormalizeWorkers:    2,
		ConcatWorkers:       2,
	}
	return h
}

func (h *harness) nextID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids++
	return fmt.Sprintf("id-%d", h.ids)
}

func (h *harness) run(ctx context.Context, req Request) (Result, error) {
	asm := New(h.opts, h.engine, h.fetcher, logging.NewNop())
	asm.WithIDGenerator(h.nextID)
	if h.reports != nil {
		asm.WithReporter(h.reports)
	}
	return asm.Run(ctx, req)
}

// clip writes a source clip tagged with name and returns its locator.
func (h *harness) clip(name string, seconds float64) string {
	path := filepath.Join(h.sources, name+".mp4")
	writeMedia(h.t, path, fakeMedia{Tags: []string{name}, Seconds: seconds})
	return path
}

func (h *harness) assertNoWorkspaces() {
	h.t.Helper()
	dirs, err := staging.ListDirectories(h.staging)
	if err != nil {
		h.t.Fatalf("list workspaces: %v", err)
	}
	if len(dirs) != 0 {
		h.t.Fatalf("expected no workspaces left behind, found %d (%s)", len(dirs), dirs[0].Path)
	}
}

func (h *harness) assertNoOutputs() {
	h.t.Helper()
	entries, err := os.ReadDir(h.output)
	if err != nil && !os.IsNotExist(err) {
		h.t.Fatal(err)
	}
	if len(entries) != 0 {
		h.t.Fatalf("expected no published outputs, found %d", len(entries))
	}
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestRunBudgetsSentencesFromWordCounts(t *testing.T) {
	h := newHarness(t)
	req := Request{Sentences: []Sentence{
		{Text: words(10), Clips: []string{h.clip("a", 30)}},
		{Text: words(5), Clips: []string{h.clip("b", 30)}},
		{Text: words(20), Clips: []string{h.clip("c", 30)}},
	}}

	result, err := h.run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[string]float64{"a": 4, "b": 2, "c": 8}
	for tag, seconds := range want {
		got, ok := h.engine.normalizedSeconds(tag)
		if !ok || !approx(got, seconds) {
			t.Fatalf("clip %s normalized to %v, want %v", tag, got, seconds)
		}
	}
	if !approx(result.Seconds, 14) {
		t.Fatalf("expected 14s result, got %v", result.Seconds)
	}
	if result.Segments != 3 {
		t.Fatalf("expected 3 segments, got %d", result.Segments)
	}
	if fmt.Sprint(result.Sentences) != "[0 1 2]" {
		t.Fatalf("unexpected sentences %v", result.Sentences)
	}
	if result.AudioApplied || result.Degraded || result.PlanScaled {
		t.Fatalf("unexpected flags %+v", result)
	}
	if result.RunID != "id-1" || result.OutputID != "id-2" {
		t.Fatalf("unexpected ids run=%q output=%q", result.RunID, result.OutputID)
	}
	if result.Path != filepath.Join(h.output, "id-2.mp4") {
		t.Fatalf("unexpected output path %q", result.Path)
	}

	published, err := readMedia(result.Path)
	if err != nil {
		t.Fatalf("read published asset: %v", err)
	}
	if strings.Join(published.Tags, ",") != "a,b,c" {
		t.Fatalf("unexpected clip order %v", published.Tags)
	}
	h.assertNoWorkspaces()

	encoded, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if strings.Contains(string(encoded), h.staging) {
		t.Fatalf("result leaks workspace paths: %s", encoded)
	}
	if !strings.Contains(string(encoded), `"manifest":[{"sentence":0,"ordinal":0}`) {
		t.Fatalf("expected manifest order in result, got %s", encoded)
	}
}

func TestRunRescalesLongScripts(t *testing.T) {
	h := newHarness(t)
	h.opts.MaxTotalSeconds = 10
	req := Request{Sentences: []Sentence{
		{Text: words(25), Clips: []string{h.clip("a", 60)}},
		{Text: words(75), Clips: []string{h.clip("b", 60)}},
	}}

	result, err := h.run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.PlanScaled {
		t.Fatal("expected the plan to be rescaled")
	}
	if result.Seconds > 10+1e-6 {
		t.Fatalf("result %v exceeds cap", result.Seconds)
	}
	a, _ := h.engine.normalizedSeconds("a")
	b, _ := h.engine.normalizedSeconds("b")
	if !approx(a, 2.5) || !approx(b, 7.5) {
		t.Fatalf("expected proportional 2.5/7.5 split, got %v/%v", a, b)
	}
}

func TestRunKeepsNarrationAndCandidateOrder(t *testing.T) {
	h := newHarness(t)
	h.opts.FetchWorkers = 8
	h.opts.NormalizeWorkers = 8
	h.opts.ConcatWorkers = 3

	var sentences []Sentence
	var want []string
	for s := range 3 {
		var clips []string
		for o := range 4 {
			name := fmt.Sprintf("s%dc%d", s, o)
			clips = append(clips, h.clip(name, 30))
			if o < 3 {
				want = append(want, name)
			}
		}
		sentences = append(sentences, Sentence{Index: s + 1, Text: words(6), Clips: clips})
	}
	// Submit out of order; indexes decide narration order.
	sentences[0], sentences[2] = sentences[2], sentences[0]

	result, err := h.run(context.Background(), Request{OutputID: "ordered", Sentences: sentences})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	published, err := readMedia(result.Path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(published.Tags, ",") != strings.Join(want, ",") {
		t.Fatalf("clip order mismatch\n got %v\nwant %v", published.Tags, want)
	}

	if len(result.Manifest) != 9 {
		t.Fatalf("expected 9 manifest entries, got %d", len(result.Manifest))
	}
	for i, entry := range result.Manifest {
		if entry.Sentence != i/3+1 || entry.Ordinal != i%3 {
			t.Fatalf("manifest entry %d is %s", i, entry.Tag())
		}
	}
	if _, ok := h.engine.normalizedSeconds("s0c3"); ok {
		t.Fatal("fourth candidate should not have been used")
	}
	if got, _ := h.engine.normalizedSeconds("s1c1"); !approx(got, 0.8) {
		t.Fatalf("expected 2.4s sentence split three ways, got %v", got)
	}
}

func TestRunClampsToShortClips(t *testing.T) {
	h := newHarness(t)
	req := Request{Sentences: []Sentence{
		{Text: words(10), Clips: []string{h.clip("short", 1.5), h.clip("long", 30)}},
	}}

	result, err := h.run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	short, _ := h.engine.normalizedSeconds("short")
	long, _ := h.engine.normalizedSeconds("long")
	if !approx(short, 1.5) || !approx(long, 2) {
		t.Fatalf("expected 1.5s and 2s segments, got %v and %v", short, long)
	}
	if !approx(result.Seconds, 3.5) {
		t.Fatalf("expected 3.5s result, got %v", result.Seconds)
	}
}

func TestRunSkipsFailedCandidates(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness) string
	}{
		{"fetch failure", func(h *harness) string {
			return filepath.Join(h.sources, "missing.mp4")
		}},
		{"normalize failure", func(h *harness) string {
			h.engine.failNormalize["broken"] = true
			return h.clip("broken", 30)
		}},
		{"unsupported locator", func(*harness) string {
			return "ftp://example.com/clip.mp4"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := Request{Sentences: []Sentence{
				{Text: words(10), Clips: []string{h.clip("a", 30)}},
				{Text: words(5), Clips: []string{tt.setup(h)}},
				{Text: words(20), Clips: []string{h.clip("c", 30)}},
			}}

			result, err := h.run(context.Background(), req)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if result.Segments != 2 {
				t.Fatalf("expected 2 segments, got %d", result.Segments)
			}
			if fmt.Sprint(result.Sentences) != "[0 2]" {
				t.Fatalf("expected sentence 1 omitted, got %v", result.Sentences)
			}
			if !approx(result.Seconds, 12) {
				t.Fatalf("expected 12s, got %v", result.Seconds)
			}
			h.assertNoWorkspaces()
		})
	}
}

func TestRunFailsWhenNoSentenceSurvives(t *testing.T) {
	h := newHarness(t)
	req := Request{Sentences: []Sentence{
		{Text: words(3), Clips: []string{filepath.Join(h.sources, "gone.mp4")}},
		{Text: words(3)},
	}}

	_, err := h.run(context.Background(), req)
	var concatErr *ConcatError
	if !errors.As(err, &concatErr) {
		t.Fatalf("expected ConcatError, got %v", err)
	}
	if !errors.Is(err, ErrNoSegments) {
		t.Fatalf("expected ErrNoSegments, got %v", err)
	}
	if FailedStage(err) != StageConcatenating {
		t.Fatalf("expected concatenating stage, got %q", FailedStage(err))
	}
	h.assertNoWorkspaces()
	h.assertNoOutputs()
}

func TestRunAudioShorterThanVideo(t *testing.T) {
	h := newHarness(t)
	track := filepath.Join(h.music, "track.mp3")
	writeMedia(t, track, fakeMedia{Tags: []string{"track"}, Seconds: 3})

	req := Request{
		Audio: "track.mp3",
		Sentences: []Sentence{
			{Text: words(10), Clips: []string{h.clip("a", 30)}},
			{Text: words(5), Clips: []string{h.clip("b", 30)}},
			{Text: words(20), Clips: []string{h.clip("c", 30)}},
		},
	}
	result, err := h.run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.AudioApplied {
		t.Fatal("expected audio to be applied")
	}
	if !approx(result.Seconds, 3) {
		t.Fatalf("expected result trimmed to 3s audio, got %v", result.Seconds)
	}
	published, err := readMedia(result.Path)
	if err != nil {
		t.Fatal(err)
	}
	if published.Audio != track {
		t.Fatalf("expected audio %s, got %q", track, published.Audio)
	}
	if _, err := os.Stat(track); err != nil {
		t.Fatalf("local audio must not be consumed: %v", err)
	}
	h.assertNoWorkspaces()
}

func TestRunFetchesRemoteAudio(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/song.mp3" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(fakeMedia{Tags: []string{"song"}, Seconds: 5})
	}))
	defer srv.Close()

	req := Request{
		Audio:     srv.URL + "/song.mp3",
		Sentences: []Sentence{{Text: words(25), Clips: []string{h.clip("a", 30)}}},
	}
	result, err := h.run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.AudioApplied || !approx(result.Seconds, 5) {
		t.Fatalf("expected 5s muxed result, got %+v", result)
	}
}

func TestRunVideoOnlyFallback(t *testing.T) {
	h := newHarness(t)
	req := Request{
		Audio:           "missing.mp3",
		AcceptVideoOnly: true,
		Sentences:       []Sentence{{Text: words(10), Clips: []string{h.clip("a", 30)}}},
	}
	result, err := h.run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Degraded || result.AudioApplied {
		t.Fatalf("expected degraded video-only result, got %+v", result)
	}
	if !approx(result.Seconds, 4) {
		t.Fatalf("expected 4s, got %v", result.Seconds)
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Fatalf("expected published asset: %v", err)
	}
}

type cancelingFetcher struct {
	cancel context.CancelFunc
}

func (f cancelingFetcher) Fetch(ctx context.Context, _, _ string) (int64, error) {
	f.cancel()
	<-ctx.Done()
	return 0, ctx.Err()
}

type panickingFetcher struct{}

func (panickingFetcher) Fetch(context.Context, string, string) (int64, error) {
	panic("fetcher fault")
}

func expectWorkerPanic(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "panic") {
		t.Fatalf("expected panic in error text, got %v", err)
	}
}

func TestRunReleasesWorkspaceOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		stage Stage
		setup func(h *harness, req *Request, cancel context.CancelFunc)
		check func(t *testing.T, err error)
	}{
		{
			name:  "planning",
			stage: StagePlanning,
			setup: func(h *harness, _ *Request, _ context.CancelFunc) { h.opts.WordsPerSecond = 0 },
			check: func(t *testing.T, err error) {
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
			},
		},
		{
			name:  "fetching",
			stage: StageFetching,
			setup: func(h *harness, _ *Request, cancel context.CancelFunc) {
				h.fetcher = cancelingFetcher{cancel: cancel}
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, context.Canceled) {
					t.Fatalf("expected cancellation, got %v", err)
				}
			},
		},
		{
			name:  "normalizing",
			stage: StageNormalizing,
			setup: func(h *harness, _ *Request, cancel context.CancelFunc) {
				h.engine.onNormalize = func(ctx context.Context) error {
					cancel()
					return ctx.Err()
				}
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, context.Canceled) {
					t.Fatalf("expected cancellation, got %v", err)
				}
			},
		},
		{
			name:  "fetching panic",
			stage: StageFetching,
			setup: func(h *harness, _ *Request, _ context.CancelFunc) { h.fetcher = panickingFetcher{} },
			check: expectWorkerPanic,
		},
		{
			name:  "normalizing panic",
			stage: StageNormalizing,
			setup: func(h *harness, _ *Request, _ context.CancelFunc) {
				h.engine.onNormalize = func(context.Context) error { panic("engine fault") }
			},
			check: expectWorkerPanic,
		},
		{
			name:  "concatenating panic",
			stage: StageConcatenating,
			setup: func(h *harness, _ *Request, _ context.CancelFunc) {
				h.engine.onConcat = func(string) { panic("concat fault") }
			},
			check: expectWorkerPanic,
		},
		{
			name:  "master concat panic",
			stage: StageConcatenating,
			setup: func(h *harness, _ *Request, _ context.CancelFunc) {
				h.engine.onConcat = func(output string) {
					if filepath.Base(output) == "master.mp4" {
						panic("master concat fault")
					}
				}
			},
			check: expectWorkerPanic,
		},
		{
			name:  "concatenating",
			stage: StageConcatenating,
			setup: func(h *harness, _ *Request, _ context.CancelFunc) { h.engine.failConcat = true },
			check: func(t *testing.T, err error) {
				var concatErr *ConcatError
				if !errors.As(err, &concatErr) {
					t.Fatalf("expected ConcatError, got %v", err)
				}
			},
		},
		{
			name:  "compositing",
			stage: StageCompositing,
			setup: func(h *harness, req *Request, _ context.CancelFunc) {
				req.FaceCam = h.clip("presenter", 30)
				h.engine.failStack = true
			},
			check: func(t *testing.T, err error) {
				var compositeErr *CompositeError
				if !errors.As(err, &compositeErr) {
					t.Fatalf("expected CompositeError, got %v", err)
				}
			},
		},
		{
			name:  "compositing missing face cam",
			stage: StageCompositing,
			setup: func(h *harness, req *Request, _ context.CancelFunc) {
				req.FaceCam = filepath.Join(h.sources, "absent.mp4")
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, services.ErrNotFound) {
					t.Fatalf("expected not found marker, got %v", err)
				}
			},
		},
		{
			name:  "overlaying",
			stage: StageOverlaying,
			setup: func(_ *harness, req *Request, _ context.CancelFunc) { req.Audio = "nowhere.mp3" },
			check: func(t *testing.T, err error) {
				var overlayErr *OverlayError
				if !errors.As(err, &overlayErr) {
					t.Fatalf("expected OverlayError, got %v", err)
				}
				if !errors.Is(err, services.ErrNotFound) {
					t.Fatalf("expected not found marker, got %v", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			req := Request{Sentences: []Sentence{
				{Text: words(10), Clips: []string{h.clip("a", 30), h.clip("b", 30)}},
				{Text: words(5), Clips: []string{h.clip("c", 30)}},
			}}
			tt.setup(h, &req, cancel)

			_, err := h.run(ctx, req)
			if err == nil {
				t.Fatal("expected run to fail")
			}
			if got := FailedStage(err); got != tt.stage {
				t.Fatalf("expected failure in %s, got %q (%v)", tt.stage, got, err)
			}
			tt.check(t, err)
			h.assertNoWorkspaces()
			h.assertNoOutputs()
		})
	}
}

func TestRunRefusesToOverwriteOutput(t *testing.T) {
	h := newHarness(t)
	existing := filepath.Join(h.output, "dup.mp4")
	writeMedia(t, existing, fakeMedia{Tags: []string{"old"}, Seconds: 1})

	_, err := h.run(context.Background(), Request{
		OutputID:  "dup",
		Sentences: []Sentence{{Text: words(4), Clips: []string{h.clip("a", 30)}}},
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	kept, err := readMedia(existing)
	if err != nil || len(kept.Tags) != 1 || kept.Tags[0] != "old" {
		t.Fatalf("existing output was modified: %+v %v", kept, err)
	}
	h.assertNoWorkspaces()
}

type recordingReporter struct {
	mu       sync.Mutex
	started  int
	stages   []Stage
	result   *Result
	finalErr error
}

func (r *recordingReporter) Started(context.Context, string, Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	return nil
}

func (r *recordingReporter) Transition(_ context.Context, _ string, stage Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	return nil
}

func (r *recordingReporter) Finished(_ context.Context, _ string, result *Result, runErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = result
	r.finalErr = runErr
	return errors.New("store unavailable")
}

func TestRunReportsTransitions(t *testing.T) {
	h := newHarness(t)
	rec := &recordingReporter{}
	h.reports = rec
	writeMedia(t, filepath.Join(h.music, "bed.mp3"), fakeMedia{Seconds: 60})

	_, err := h.run(context.Background(), Request{
		Audio:     "bed.mp3",
		Sentences: []Sentence{{Text: words(4), Clips: []string{h.clip("a", 30)}}},
	})
	if err != nil {
		t.Fatalf("reporter errors must not fail the run: %v", err)
	}
	want := []Stage{StagePlanning, StageFetching, StageNormalizing, StageConcatenating, StageOverlaying}
	if fmt.Sprint(rec.stages) != fmt.Sprint(want) {
		t.Fatalf("unexpected transitions %v", rec.stages)
	}
	if rec.started != 1 || rec.result == nil || rec.finalErr != nil {
		t.Fatalf("unexpected report %+v", rec)
	}

	h.engine.failConcat = true
	_, err = h.run(context.Background(), Request{
		Sentences: []Sentence{{Text: words(4), Clips: []string{h.clip("b", 30)}}},
	})
	if err == nil || rec.finalErr == nil || rec.result != nil {
		t.Fatalf("expected failure to be reported, got err=%v report=%+v", err, rec)
	}
}

func TestRunStacksFaceCamUnderTimeline(t *testing.T) {
	h := newHarness(t)
	rec := &recordingReporter{}
	h.reports = rec
	writeMedia(t, filepath.Join(h.music, "bed.mp3"), fakeMedia{Seconds: 60})

	result, err := h.run(context.Background(), Request{
		Audio:   "bed.mp3",
		FaceCam: h.clip("presenter", 90),
		Sentences: []Sentence{
			{Text: words(10), Clips: []string{h.clip("a", 30)}},
			{Text: words(5), Clips: []string{h.clip("b", 30)}},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.FaceCamApplied || !result.AudioApplied {
		t.Fatalf("expected face cam and audio applied, got %+v", result)
	}
	if !approx(result.Seconds, 6) {
		t.Fatalf("expected the timeline length to win over the face cam, got %v", result.Seconds)
	}
	published, err := readMedia(result.Path)
	if err != nil {
		t.Fatalf("read published asset: %v", err)
	}
	if strings.Join(published.Tags, ",") != "a,b" || strings.Join(published.FaceCam, ",") != "presenter" {
		t.Fatalf("unexpected composition %+v", published)
	}
	want := []Stage{StagePlanning, StageFetching, StageNormalizing, StageConcatenating, StageCompositing, StageOverlaying}
	if fmt.Sprint(rec.stages) != fmt.Sprint(want) {
		t.Fatalf("unexpected transitions %v", rec.stages)
	}
	h.assertNoWorkspaces()
}

func TestRunFansOutToEveryReporter(t *testing.T) {
	h := newHarness(t)
	first, second := &recordingReporter{}, &recordingReporter{}
	asm := New(h.opts, h.engine, h.fetcher, logging.NewNop())
	asm.WithIDGenerator(h.nextID)
	asm.WithReporter(first)
	asm.WithReporter(nil)
	asm.WithReporter(second)

	h.engine.failConcat = true
	_, err := asm.Run(context.Background(), Request{
		Sentences: []Sentence{{Text: words(4), Clips: []string{h.clip("a", 30)}}},
	})
	if err == nil {
		t.Fatal("expected run to fail")
	}
	for i, rec := range []*recordingReporter{first, second} {
		if rec.started != 1 || len(rec.stages) != 4 || rec.finalErr == nil {
			t.Fatalf("reporter %d: unexpected report %+v", i, rec)
		}
		if FailedStage(rec.finalErr) != StageConcatenating {
			t.Fatalf("reporter %d: expected concat failure, got %v", i, rec.finalErr)
		}
	}
}

func TestRequestValidateAndOrder(t *testing.T) {
	invalid := []Request{
		{},
		{Sentences: []Sentence{{Index: 1}, {Index: 1}}},
		{Sentences: []Sentence{{Index: -1}, {Index: 2}}},
		{OutputID: "../escape", Sentences: []Sentence{{Text: "hi"}}},
	}
	for i, req := range invalid {
		if err := req.Validate(); !errors.Is(err, services.ErrValidation) {
			t.Errorf("request %d: expected validation error, got %v", i, err)
		}
	}

	req := Request{Sentences: []Sentence{{Index: 7, Text: "c"}, {Index: 2, Text: "a"}, {Index: 5, Text: "b"}}}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	ordered := req.Ordered()
	if ordered[0].Text != "a" || ordered[1].Text != "b" || ordered[2].Text != "c" {
		t.Fatalf("unexpected order %+v", ordered)
	}
	if req.Sentences[0].Index != 7 {
		t.Fatal("Ordered must not mutate the request")
	}

	positional := Request{Sentences: []Sentence{{Text: "x"}, {Text: "y"}}}.Ordered()
	if positional[0].Index != 0 || positional[1].Index != 1 || positional[1].Text != "y" {
		t.Fatalf("expected positional indexes, got %+v", positional)
	}
}
