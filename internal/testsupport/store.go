package testsupport

import (
	"context"
	"testing"

	"reelsmith/internal/assembly"
	"reelsmith/internal/config"
	"reelsmith/internal/runstore"
)

// MustOpenStore opens the run store for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg)
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// Request returns a minimal valid request with one clip per sentence.
func Request(outputID string, sentences ...string) assembly.Request {
	if len(sentences) == 0 {
		sentences = []string{"a short sentence"}
	}
	req := assembly.Request{OutputID: outputID}
	for _, text := range sentences {
		req.Sentences = append(req.Sentences, assembly.Sentence{Text: text, Clips: []string{"clip.mp4"}})
	}
	return req
}

// NewRun records an active run created by source.
func NewRun(t testing.TB, store *runstore.Store, runID, source string) *runstore.Run {
	t.Helper()

	ctx := context.Background()
	if err := store.Create(ctx, runID, source, Request("")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	run, err := store.Get(ctx, runID)
	if err != nil || run == nil {
		t.Fatalf("Get %s: %v", runID, err)
	}
	return run
}
