package runstore

import (
	"context"

	"reelsmith/internal/assembly"
)

// Reporter records assembler progress for runs submitted through one source
// such as "cli", "api" or "kafka".
type Reporter struct {
	store  *Store
	source string
}

// Reporter returns an assembly.Reporter that tags new runs with source.
func (s *Store) Reporter(source string) *Reporter {
	return &Reporter{store: s, source: source}
}

var _ assembly.Reporter = (*Reporter)(nil)

// Started implements assembly.Reporter.
func (r *Reporter) Started(ctx context.Context, runID string, req assembly.Request) error {
	return r.store.Create(ctx, runID, r.source, req)
}

// Transition implements assembly.Reporter.
func (r *Reporter) Transition(ctx context.Context, runID string, stage assembly.Stage) error {
	return r.store.SetStage(ctx, runID, stage)
}

// Finished implements assembly.Reporter.
func (r *Reporter) Finished(ctx context.Context, runID string, result *assembly.Result, runErr error) error {
	if runErr != nil || result == nil {
		return r.store.Fail(ctx, runID, runErr)
	}
	return r.store.Complete(ctx, runID, *result)
}
