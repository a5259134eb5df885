package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"reelsmith/internal/assembly"
	"reelsmith/internal/runstore"
	"reelsmith/internal/services"
	"reelsmith/internal/transcode"
)

func TestFromRun(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := created.Add(90 * time.Second)
	dto := FromRun(&runstore.Run{
		ID:           "r1",
		Status:       assembly.StageDone,
		Seconds:      14,
		FailedStage:  "",
		CreatedAt:    created,
		FinishedAt:   &finished,
		AudioApplied: true,
	})
	if dto.Status != "done" || dto.Active {
		t.Fatalf("unexpected status %q active=%v", dto.Status, dto.Active)
	}
	if dto.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected createdAt %q", dto.CreatedAt)
	}
	if dto.ElapsedSeconds != 90 {
		t.Fatalf("expected 90s elapsed, got %v", dto.ElapsedSeconds)
	}
	if FromRun(nil).ID != "" {
		t.Fatal("expected zero value for nil run")
	}
}

func TestNewSubmitResponse(t *testing.T) {
	ok := NewSubmitResponse(assembly.Result{
		RunID:          "r1",
		OutputID:       "o1",
		Path:           "/out/o1.mp4",
		Manifest:       []transcode.Entry{{Path: "/staging/run-r1/trimmed0-0.mp4", Sentence: 0, Ordinal: 0}, {Sentence: 2, Ordinal: 1}},
		FaceCamApplied: true,
	}, nil)
	if ok.RunID != "r1" || ok.Asset == nil || ok.Error != "" || !ok.Asset.FaceCam {
		t.Fatalf("unexpected success response %+v", ok)
	}
	if len(ok.Asset.Manifest) != 2 || ok.Asset.Manifest[1].Sentence != 2 {
		t.Fatalf("unexpected manifest %+v", ok.Asset.Manifest)
	}
	encoded, err := json.Marshal(ok)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(encoded), "/staging/") {
		t.Fatalf("submit response leaks workspace paths: %s", encoded)
	}

	runErr := &assembly.StageError{
		Stage: assembly.StageOverlaying,
		Err:   &assembly.OverlayError{Audio: "x", Err: services.Wrap(services.ErrNotFound, "overlaying", "audio", "x", nil)},
	}
	failed := NewSubmitResponse(assembly.Result{}, runErr)
	if failed.Asset != nil || failed.FailedStage != "overlaying" || failed.Classification != "not_found" {
		t.Fatalf("unexpected failure response %+v", failed)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, http.StatusCreated},
		{"validation", services.Wrap(services.ErrValidation, "planning", "request", "", nil), http.StatusUnprocessableEntity},
		{"no segments", &assembly.StageError{Stage: assembly.StageConcatenating, Err: &assembly.ConcatError{Sentence: -1, Err: assembly.ErrNoSegments}}, http.StatusUnprocessableEntity},
		{"timeout", services.Wrap(services.ErrTimeout, "normalize", "ffmpeg", "", nil), http.StatusGatewayTimeout},
		{"canceled", context.Canceled, http.StatusServiceUnavailable},
		{"tool", services.Wrap(services.ErrExternalTool, "concat", "ffmpeg", "", nil), http.StatusBadGateway},
		{"unmarked", errors.New("boom"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("HTTPStatus = %d, want %d", got, tt.want)
			}
		})
	}
}

type runReaderStub struct {
	runs []*runstore.Run
}

func (s *runReaderStub) List(_ context.Context, limit int, _ ...assembly.Stage) ([]*runstore.Run, error) {
	if limit > 0 && limit < len(s.runs) {
		return s.runs[:limit], nil
	}
	return s.runs, nil
}

func (s *runReaderStub) Get(_ context.Context, id string) (*runstore.Run, error) {
	for _, run := range s.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, nil
}

func (s *runReaderStub) Summary(context.Context) (runstore.Summary, error) {
	return runstore.Summary{Total: len(s.runs), Active: len(s.runs)}, nil
}

func TestRunService(t *testing.T) {
	if NewRunService(nil) != nil {
		t.Fatal("expected nil service for nil store")
	}
	svc := NewRunService(&runReaderStub{runs: []*runstore.Run{
		{ID: "a", Status: assembly.StageFetching},
		{ID: "b", Status: assembly.StagePlanning},
	}})
	ctx := context.Background()

	runs, err := svc.List(ctx, 1)
	if err != nil || len(runs) != 1 || runs[0].ID != "a" || !runs[0].Active {
		t.Fatalf("unexpected list %+v %v", runs, err)
	}
	run, err := svc.Describe(ctx, "b")
	if err != nil || run == nil || run.Status != "planning" {
		t.Fatalf("unexpected describe %+v %v", run, err)
	}
	missing, err := svc.Describe(ctx, "zzz")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing run, got %+v %v", missing, err)
	}
	summary, err := svc.Summary(ctx)
	if err != nil || summary.Total != 2 {
		t.Fatalf("unexpected summary %+v %v", summary, err)
	}
}
