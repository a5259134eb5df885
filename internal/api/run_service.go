package api

import (
	"context"

	"reelsmith/internal/assembly"
	"reelsmith/internal/runstore"
)

// RunReader abstracts run store interactions needed for API queries.
type RunReader interface {
	List(ctx context.Context, limit int, statuses ...assembly.Stage) ([]*runstore.Run, error)
	Get(ctx context.Context, runID string) (*runstore.Run, error)
	Summary(ctx context.Context) (runstore.Summary, error)
}

// RunService exposes read-only run history operations returning API DTOs.
type RunService struct {
	store RunReader
}

// NewRunService constructs a RunService around the provided reader.
func NewRunService(store RunReader) *RunService {
	if store == nil {
		return nil
	}
	return &RunService{store: store}
}

// List returns the most recent runs, optionally filtered by status.
func (s *RunService) List(ctx context.Context, limit int, statuses ...assembly.Stage) ([]Run, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	runs, err := s.store.List(ctx, limit, statuses...)
	if err != nil {
		return nil, err
	}
	return FromRuns(runs), nil
}

// Describe fetches a single run, or nil when it does not exist.
func (s *RunService) Describe(ctx context.Context, runID string) (*Run, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	run, err := s.store.Get(ctx, runID)
	if err != nil || run == nil {
		return nil, err
	}
	dto := FromRun(run)
	return &dto, nil
}

// Summary returns run counts by lifecycle state.
func (s *RunService) Summary(ctx context.Context) (RunSummary, error) {
	if s == nil || s.store == nil {
		return RunSummary{}, nil
	}
	summary, err := s.store.Summary(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	return FromSummary(summary), nil
}
