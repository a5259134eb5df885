package runstore_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"reelsmith/internal/assembly"
	"reelsmith/internal/config"
	"reelsmith/internal/runstore"
	"reelsmith/internal/services"
)

func openStore(t *testing.T) *runstore.Store {
	t.Helper()
	store, err := runstore.OpenPath(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRequest() assembly.Request {
	return assembly.Request{
		OutputID: "clip-42",
		Audio:    "bed.mp3",
		Sentences: []assembly.Sentence{
			{Text: "one two", Clips: []string{"a.mp4"}},
			{Text: "three", Clips: []string{"b.mp4"}},
		},
	}
}

func TestOpenUsesConfigPath(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	store, err := runstore.Open(&cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if store.Path() != cfg.RunStorePath() {
		t.Fatalf("unexpected db path %q", store.Path())
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	// Reopening an initialized database keeps the schema.
	again, err := runstore.OpenPath(cfg.RunStorePath())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = again.Close()
}

func TestReporterRecordsSuccessfulRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	rep := store.Reporter("cli")

	if err := rep.Started(ctx, "run-1", sampleRequest()); err != nil {
		t.Fatalf("Started: %v", err)
	}
	run, err := store.Get(ctx, "run-1")
	if err != nil || run == nil {
		t.Fatalf("Get: %v %v", run, err)
	}
	if run.Status != assembly.StagePlanning || run.Source != "cli" || run.SentenceCount != 2 {
		t.Fatalf("unexpected new run %+v", run)
	}
	if run.OutputID != "clip-42" || run.Audio != "bed.mp3" || run.RequestJSON == "" {
		t.Fatalf("request details missing: %+v", run)
	}
	if !run.Active() {
		t.Fatal("new run should be active")
	}

	if err := rep.Transition(ctx, "run-1", assembly.StageNormalizing); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	run, _ = store.Get(ctx, "run-1")
	if run.Status != assembly.StageNormalizing {
		t.Fatalf("expected normalizing, got %s", run.Status)
	}

	result := &assembly.Result{
		RunID:        "run-1",
		OutputID:     "clip-42",
		Path:         "/out/clip-42.mp4",
		Seconds:      3,
		Segments:     2,
		Sentences:    []int{0, 1},
		AudioApplied: true,
	}
	if err := rep.Finished(ctx, "run-1", result, nil); err != nil {
		t.Fatalf("Finished: %v", err)
	}
	run, _ = store.Get(ctx, "run-1")
	if run.Status != assembly.StageDone || run.Active() {
		t.Fatalf("expected done, got %s", run.Status)
	}
	if run.OutputPath != "/out/clip-42.mp4" || run.Seconds != 3 || run.Segments != 2 || !run.AudioApplied {
		t.Fatalf("unexpected completed run %+v", run)
	}
	if fmt.Sprint(run.IncludedSentences) != "[0 1]" {
		t.Fatalf("unexpected sentences %v", run.IncludedSentences)
	}
	if run.FinishedAt == nil || run.Elapsed(time.Now()) < 0 {
		t.Fatal("expected finish time")
	}

	// Terminal runs ignore late transitions.
	if err := rep.Transition(ctx, "run-1", assembly.StageFetching); err != nil {
		t.Fatal(err)
	}
	run, _ = store.Get(ctx, "run-1")
	if run.Status != assembly.StageDone {
		t.Fatalf("terminal status changed to %s", run.Status)
	}
}

func TestReporterRecordsFailure(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	rep := store.Reporter("api")

	if err := rep.Started(ctx, "run-2", sampleRequest()); err != nil {
		t.Fatal(err)
	}
	runErr := &assembly.StageError{
		Stage: assembly.StageOverlaying,
		Err:   &assembly.OverlayError{Audio: "bed.mp3", Err: services.Wrap(services.ErrNotFound, "overlaying", "audio", "bed.mp3", nil)},
	}
	if err := rep.Finished(ctx, "run-2", nil, runErr); err != nil {
		t.Fatalf("Finished: %v", err)
	}
	run, err := store.Get(ctx, "run-2")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != assembly.StageFailed || run.FailedStage != assembly.StageOverlaying {
		t.Fatalf("unexpected failed run %+v", run)
	}
	if run.ErrorClass != string(services.ClassNotFound) || run.ErrorMessage == "" {
		t.Fatalf("unexpected error fields %+v", run)
	}
}

func TestCompleteClearsEarlierFailure(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	rep := store.Reporter("cli")
	if err := rep.Started(ctx, "run-late", sampleRequest()); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ResetInterrupted(ctx); err != nil {
		t.Fatalf("ResetInterrupted: %v", err)
	}
	if err := rep.Finished(ctx, "run-late", &assembly.Result{OutputID: "clip-42", Path: "/out/clip-42.mp4", Seconds: 3}, nil); err != nil {
		t.Fatalf("Finished: %v", err)
	}

	run, err := store.Get(ctx, "run-late")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != assembly.StageDone || run.OutputPath != "/out/clip-42.mp4" {
		t.Fatalf("expected completed run, got %+v", run)
	}
	if run.FailedStage != "" || run.ErrorClass != "" || run.ErrorMessage != "" {
		t.Fatalf("expected failure fields cleared, got stage=%q class=%q message=%q", run.FailedStage, run.ErrorClass, run.ErrorMessage)
	}
}

func TestGetMissingRun(t *testing.T) {
	store := openStore(t)
	run, err := store.Get(context.Background(), "nope")
	if err != nil || run != nil {
		t.Fatalf("expected nil run, got %+v %v", run, err)
	}
}

func TestListSummaryAndReset(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	rep := store.Reporter("kafka")

	for i := range 3 {
		if err := rep.Started(ctx, fmt.Sprintf("run-%d", i), sampleRequest()); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := rep.Finished(ctx, "run-0", &assembly.Result{Path: "x"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := rep.Finished(ctx, "run-1", nil, errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	if err := rep.Transition(ctx, "run-2", assembly.StageFetching); err != nil {
		t.Fatal(err)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "run-2" || all[2].ID != "run-0" {
		t.Fatalf("expected newest first, got %d runs", len(all))
	}
	limited, _ := store.List(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
	failed, _ := store.List(ctx, 0, assembly.StageFailed)
	if len(failed) != 1 || failed[0].ID != "run-1" {
		t.Fatalf("unexpected failed filter result %v", failed)
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary != (runstore.Summary{Total: 3, Active: 1, Done: 1, Failed: 1}) {
		t.Fatalf("unexpected summary %+v", summary)
	}

	cli := store.Reporter("cli")
	if err := cli.Started(ctx, "run-cli", sampleRequest()); err != nil {
		t.Fatal(err)
	}
	if err := cli.Transition(ctx, "run-cli", assembly.StageNormalizing); err != nil {
		t.Fatal(err)
	}

	reset, err := store.ResetInterrupted(ctx, "api", "kafka")
	if err != nil || reset != 1 {
		t.Fatalf("expected one interrupted run, got %d %v", reset, err)
	}
	run, _ := store.Get(ctx, "run-2")
	if run.Status != assembly.StageFailed || run.FailedStage != assembly.StageFetching || run.ErrorClass != string(services.ClassCanceled) {
		t.Fatalf("unexpected interrupted run %+v", run)
	}
	inflight, _ := store.Get(ctx, "run-cli")
	if inflight.Status != assembly.StageNormalizing || inflight.ErrorClass != "" {
		t.Fatalf("reset must leave runs of other sources alone, got %+v", inflight)
	}
	if err := cli.Finished(ctx, "run-cli", &assembly.Result{Path: "y"}, nil); err != nil {
		t.Fatal(err)
	}

	pruned, err := store.Prune(ctx, time.Now().Add(time.Hour))
	if err != nil || pruned != 4 {
		t.Fatalf("expected all finished runs pruned, got %d %v", pruned, err)
	}
}
