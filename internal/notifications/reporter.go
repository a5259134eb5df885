package notifications

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"reelsmith/internal/assembly"
	"reelsmith/internal/services"
)

// Reporter turns finished runs into notifications. Only Finished sends
// anything; Started remembers the requested output id so failures can name it.
type Reporter struct {
	notifier  Notifier
	source    string
	onSuccess bool
	onFailure bool

	mu      sync.Mutex
	pending map[string]string
}

// NewReporter returns a Reporter that tags messages with the run source.
func NewReporter(n Notifier, source string, onSuccess, onFailure bool) *Reporter {
	if n == nil {
		n = noopNotifier{}
	}
	return &Reporter{
		notifier:  n,
		source:    source,
		onSuccess: onSuccess,
		onFailure: onFailure,
		pending:   make(map[string]string),
	}
}

var _ assembly.Reporter = (*Reporter)(nil)

// Started implements assembly.Reporter.
func (r *Reporter) Started(_ context.Context, runID string, req assembly.Request) error {
	r.mu.Lock()
	r.pending[runID] = strings.TrimSpace(req.OutputID)
	r.mu.Unlock()
	return nil
}

// Transition implements assembly.Reporter.
func (r *Reporter) Transition(context.Context, string, assembly.Stage) error {
	return nil
}

// Finished implements assembly.Reporter.
func (r *Reporter) Finished(ctx context.Context, runID string, result *assembly.Result, runErr error) error {
	r.mu.Lock()
	outputID := r.pending[runID]
	delete(r.pending, runID)
	r.mu.Unlock()

	if runErr != nil || result == nil {
		if !r.onFailure {
			return nil
		}
		return r.notifier.Publish(ctx, r.failureMessage(runID, outputID, runErr))
	}
	if !r.onSuccess {
		return nil
	}
	return r.notifier.Publish(ctx, r.successMessage(*result))
}

func (r *Reporter) successMessage(result assembly.Result) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 Video ready: %s\n", result.OutputID)
	fmt.Fprintf(&b, "File: %s\n", result.Path)
	fmt.Fprintf(&b, "Duration: %.1fs from %d clips", result.Seconds, result.Segments)
	tags := []string{"reelsmith", "assembly", "completed"}
	if result.Degraded {
		b.WriteString("\nAudio overlay failed; published without background audio")
		tags = append(tags, "degraded")
	}
	r.appendSource(&b)
	return Message{
		Title: "Reelsmith - Video Ready",
		Body:  b.String(),
		Tags:  tags,
	}
}

func (r *Reporter) failureMessage(runID, outputID string, runErr error) Message {
	stage := assembly.FailedStage(runErr)
	if stage == "" {
		stage = "unknown stage"
	}
	name := outputID
	if name == "" {
		name = runID
	}
	detail := "unknown"
	if runErr != nil {
		detail = strings.TrimSpace(runErr.Error())
	}
	class := string(services.Classify(runErr))
	if class == "" {
		class = "unclassified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "❌ Run failed: %s\n", name)
	fmt.Fprintf(&b, "Stage: %s (%s)\n", stage, class)
	fmt.Fprintf(&b, "Error: %s", detail)
	r.appendSource(&b)
	return Message{
		Title:    "Reelsmith - Run Failed",
		Body:     b.String(),
		Tags:     []string{"reelsmith", "error", class},
		Priority: "high",
	}
}

func (r *Reporter) appendSource(b *strings.Builder) {
	if r.source != "" {
		fmt.Fprintf(b, "\nSource: %s", r.source)
	}
}
