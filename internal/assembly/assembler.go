package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/budget"
	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/staging"
	"reelsmith/internal/transcode"
)

const (
	defaultWorkers = 2
	outputExt      = ".mp4"
)

// Options configures an Assembler.
type Options struct {
	StagingDir string
	OutputDir  string
	// AudioDir resolves relative local audio locators.
	AudioDir string

	WordsPerSecond      float64
	MaxTotalSeconds     float64
	MaxClipsPerSentence int

	FetchWorkers     int
	NormalizeWorkers int
	ConcatWorkers    int

	// AcceptVideoOnly applies the video-only fallback to every request.
	AcceptVideoOnly bool
}

// OptionsFromConfig maps configuration onto assembler options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StagingDir:          cfg.Paths.StagingDir,
		OutputDir:           cfg.Paths.OutputDir,
		AudioDir:            cfg.Paths.AudioDir,
		WordsPerSecond:      cfg.Assembly.WordsPerSecond,
		MaxTotalSeconds:     cfg.Assembly.MaxTotalSeconds,
		MaxClipsPerSentence: cfg.Assembly.MaxClipsPerSentence,
		FetchWorkers:        cfg.Assembly.FetchWorkers,
		NormalizeWorkers:    cfg.Assembly.NormalizeWorkers,
		ConcatWorkers:       cfg.Assembly.ConcatWorkers,
		AcceptVideoOnly:     cfg.Assembly.AcceptVideoOnlyFallback,
	}
}

// Assembler runs the assembly pipeline. A single Assembler may serve
// concurrent runs; each run gets its own workspace.
type Assembler struct {
	opts      Options
	engine    transcode.Engine
	fetcher   Fetcher
	reporters []Reporter
	logger    *slog.Logger
	newID     func() string
}

// New constructs an Assembler.
func New(opts Options, engine transcode.Engine, fetcher Fetcher, logger *slog.Logger) *Assembler {
	for _, workers := range []*int{&opts.FetchWorkers, &opts.NormalizeWorkers, &opts.ConcatWorkers} {
		if *workers <= 0 {
			*workers = defaultWorkers
		}
	}
	return &Assembler{
		opts:    opts,
		engine:  engine,
		fetcher: fetcher,
		logger:  logging.NewComponentLogger(logger, "assembler"),
		newID:   uuid.NewString,
	}
}

// WithReporter registers an observer for run transitions. Observers are
// called in registration order.
func (a *Assembler) WithReporter(r Reporter) {
	if a != nil && r != nil {
		a.reporters = append(a.reporters, r)
	}
}

// WithIDGenerator replaces the run and output id source, mainly for tests.
func (a *Assembler) WithIDGenerator(fn func() string) {
	if a != nil && fn != nil {
		a.newID = fn
	}
}

// run carries per-run state between stages.
type run struct {
	id        string
	outputID  string
	req       Request
	sentences []Sentence
	ws        *staging.Workspace
	plan      budget.Plan
	tracker   *budget.Tracker
	stage     Stage
	logger    *slog.Logger
}

// Run executes one assembly request end to end and returns the published asset.
// Any returned error is a *StageError naming where the run stopped; the
// result then carries only the run id.
func (a *Assembler) Run(ctx context.Context, req Request) (Result, error) {
	if a.engine == nil || a.fetcher == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "assembly", "run", "engine and fetcher are required", nil)
	}

	r := &run{id: a.newID(), req: req, stage: StagePlanning}
	ctx = services.WithRunID(ctx, r.id)
	r.logger = logging.WithContext(ctx, a.logger)
	reportCtx := context.WithoutCancel(ctx)

	start := time.Now()
	a.report(r, "start", func(rep Reporter) error { return rep.Started(reportCtx, r.id, req) })

	result, err := a.safeExecute(ctx, r)
	if err != nil {
		err = &StageError{Stage: r.stage, Err: err}
		logging.ErrorWithContext(r.logger, "assembly run failed", "run_failed",
			logging.String(logging.FieldStage, string(r.stage)),
			logging.String("classification", string(services.Classify(err))),
			logging.Duration("elapsed", time.Since(start)),
			logging.Error(err),
		)
		a.report(r, "finish", func(rep Reporter) error { return rep.Finished(reportCtx, r.id, nil, err) })
		return Result{RunID: r.id}, err
	}

	r.logger.Info("assembly run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("output", result.Path),
		logging.Float64("seconds", result.Seconds),
		logging.Int("segments", result.Segments),
		logging.Int("sentences", len(result.Sentences)),
		logging.Bool("audio_applied", result.AudioApplied),
		logging.Bool("degraded", result.Degraded),
		logging.Duration("elapsed", time.Since(start)),
	)
	a.report(r, "finish", func(rep Reporter) error { return rep.Finished(reportCtx, r.id, &result, nil) })
	return result, nil
}

// safeExecute converts a panic on the run goroutine into a stage failure.
// The workspace release deferred by execute runs while the panic unwinds.
func (a *Assembler) safeExecute(ctx context.Context, r *run) (result Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			result, err = Result{}, recovered(r, r.stage, p)
		}
	}()
	return a.execute(ctx, r)
}

func (a *Assembler) execute(ctx context.Context, r *run) (Result, error) {
	if err := r.req.Validate(); err != nil {
		return Result{}, err
	}
	r.outputID = strings.TrimSpace(r.req.OutputID)
	if r.outputID == "" {
		r.outputID = a.newID()
	}
	dst := a.outputPath(r.outputID)
	if _, err := os.Stat(dst); err == nil {
		return Result{}, services.Wrap(services.ErrValidation, string(StagePlanning), "output", fmt.Sprintf("%s already exists", dst), os.ErrExist)
	}

	ws, err := staging.Acquire(a.opts.StagingDir, r.id)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, string(StagePlanning), "workspace", "", err)
	}
	r.ws = ws
	defer func() {
		if err := ws.Release(); err != nil {
			logging.WarnWithContext(r.logger, "failed to release workspace", "workspace_release_failed",
				logging.String("path", ws.Root),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run reelsmith staging clean"),
				logging.String(logging.FieldImpact, "disk space held until the next stale sweep"),
			)
		}
	}()

	a.transition(ctx, r, StagePlanning)
	if err := a.planStage(r); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	a.transition(ctx, r, StageFetching)
	clips, err := a.fetchStage(ctx, r)
	if err != nil {
		return Result{}, err
	}

	a.transition(ctx, r, StageNormalizing)
	segments, err := a.normalizeStage(ctx, r, clips)
	if err != nil {
		return Result{}, err
	}

	a.transition(ctx, r, StageConcatenating)
	timelines, err := a.concatSentences(ctx, r, segments)
	if err != nil {
		return Result{}, err
	}
	master, manifest, err := a.concatMaster(ctx, r, timelines)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		RunID:      r.id,
		OutputID:   r.outputID,
		Manifest:   manifest,
		Segments:   len(manifest),
		PlanScaled: r.plan.Scaled,
	}
	expected := 0.0
	for _, tl := range timelines {
		result.Sentences = append(result.Sentences, tl.Sentence)
		expected += tl.Seconds
	}

	if strings.TrimSpace(r.req.FaceCam) != "" {
		a.transition(ctx, r, StageCompositing)
		composite, err := a.compositeStage(ctx, r, master, expected)
		if err != nil {
			return Result{}, err
		}
		master = composite
		result.FaceCamApplied = true
	}

	final := master
	if strings.TrimSpace(r.req.Audio) != "" {
		a.transition(ctx, r, StageOverlaying)
		muxed, err := a.overlayStage(ctx, r, master)
		switch {
		case err == nil:
			final = muxed
			result.AudioApplied = true
		case ctx.Err() == nil && (r.req.AcceptVideoOnly || a.opts.AcceptVideoOnly):
			logging.WarnWithContext(r.logger, "audio overlay failed; publishing video-only result", "overlay_fallback",
				logging.String("audio", r.req.Audio),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the audio locator"),
				logging.String(logging.FieldImpact, "output has no background audio"),
			)
			result.Degraded = true
		default:
			return Result{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	result.Seconds = a.measure(ctx, r, final, expected)
	if err := a.publish(final, dst); err != nil {
		return Result{}, err
	}
	result.Path = dst
	return result, nil
}

func (a *Assembler) planStage(r *run) error {
	r.sentences = r.req.Ordered()
	texts := make([]string, len(r.sentences))
	for i, s := range r.sentences {
		texts[i] = s.Text
	}
	plan, err := budget.NewPlan(texts, a.opts.WordsPerSecond, a.opts.MaxTotalSeconds)
	if err != nil {
		return err
	}
	r.plan = plan
	r.tracker = budget.NewTracker(plan.Cap)

	r.logger.Info("timing plan ready",
		logging.String(logging.FieldEventType, "plan_ready"),
		logging.Int("sentences", len(plan.Durations)),
		logging.Float64("total_seconds", plan.Total()),
		logging.Float64("cap_seconds", plan.Cap),
		logging.Bool("scaled", plan.Scaled),
		logging.Float64("scale_factor", plan.ScaleFactor),
	)
	for i, s := range r.sentences {
		r.logger.Debug("sentence budget",
			logging.Int(logging.FieldSentence, s.Index),
			logging.Float64("seconds", plan.Durations[i]),
			logging.Int("candidates", len(s.Clips)),
		)
	}
	return nil
}

// measure reads the final file duration, falling back to the planned sum.
func (a *Assembler) measure(ctx context.Context, r *run, path string, expected float64) float64 {
	seconds, err := a.engine.ProbeDuration(ctx, path)
	if err != nil || seconds <= 0 {
		r.logger.Debug("final duration unavailable; using timeline sum",
			logging.Float64("seconds", expected),
			logging.Error(err),
		)
		return expected
	}
	return seconds
}

func (a *Assembler) outputPath(outputID string) string {
	return filepath.Join(a.opts.OutputDir, outputID+outputExt)
}

func (a *Assembler) publish(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "publish", "output dir", "", err)
	}
	if err := fileutil.Publish(src, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return services.Wrap(services.ErrValidation, "publish", "output", fmt.Sprintf("%s already exists", dst), err)
		}
		return services.Wrap(services.ErrTransient, "publish", "output", "", err)
	}
	return nil
}

func (a *Assembler) transition(ctx context.Context, r *run, stage Stage) {
	r.stage = stage
	r.logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String(logging.FieldStage, string(stage)),
	)
	reportCtx := context.WithoutCancel(ctx)
	a.report(r, "transition", func(rep Reporter) error { return rep.Transition(reportCtx, r.id, stage) })
}

// report calls fn for every registered reporter. A failing reporter is
// logged and does not stop the others.
func (a *Assembler) report(r *run, operation string, fn func(Reporter) error) {
	for _, rep := range a.reporters {
		if err := fn(rep); err != nil {
			logging.WarnWithContext(r.logger, "run reporter failed", "run_report_failed",
				logging.String("operation", operation),
				logging.String("reporter", fmt.Sprintf("%T", rep)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check run store access and notification settings"),
				logging.String(logging.FieldImpact, "run history or notifications may be incomplete"),
			)
		}
	}
}
