package api

import (
	"errors"
	"net/http"
	"time"

	"reelsmith/internal/assembly"
	"reelsmith/internal/deps"
	"reelsmith/internal/fetch"
	"reelsmith/internal/preflight"
	"reelsmith/internal/runstore"
	"reelsmith/internal/services"
)

// FromRun converts a run store row into its API representation.
func FromRun(run *runstore.Run) Run {
	if run == nil {
		return Run{}
	}
	dto := Run{
		ID:                run.ID,
		OutputID:          run.OutputID,
		Source:            run.Source,
		Status:            string(run.Status),
		Active:            run.Active(),
		SentenceCount:     run.SentenceCount,
		Audio:             run.Audio,
		OutputPath:        run.OutputPath,
		Seconds:           run.Seconds,
		Segments:          run.Segments,
		IncludedSentences: run.IncludedSentences,
		AudioApplied:      run.AudioApplied,
		Degraded:          run.Degraded,
		FailedStage:       string(run.FailedStage),
		ErrorClass:        run.ErrorClass,
		ErrorMessage:      run.ErrorMessage,
		ElapsedSeconds:    run.Elapsed(time.Now()).Seconds(),
	}
	if !run.CreatedAt.IsZero() {
		dto.CreatedAt = run.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !run.UpdatedAt.IsZero() {
		dto.UpdatedAt = run.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if run.FinishedAt != nil {
		dto.FinishedAt = run.FinishedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromRuns converts a list of rows, preserving order.
func FromRuns(runs []*runstore.Run) []Run {
	out := make([]Run, 0, len(runs))
	for _, run := range runs {
		if run == nil {
			continue
		}
		out = append(out, FromRun(run))
	}
	return out
}

// FromResult converts an assembly result into a published asset description.
func FromResult(result assembly.Result) Asset {
	manifest := make([]ManifestEntry, len(result.Manifest))
	for i, entry := range result.Manifest {
		manifest[i] = ManifestEntry{Sentence: entry.Sentence, Ordinal: entry.Ordinal}
	}
	return Asset{
		OutputID:     result.OutputID,
		Path:         result.Path,
		Seconds:      result.Seconds,
		Segments:     result.Segments,
		Sentences:    result.Sentences,
		Manifest:     manifest,
		PlanScaled:   result.PlanScaled,
		FaceCam:      result.FaceCamApplied,
		AudioApplied: result.AudioApplied,
		Degraded:     result.Degraded,
	}
}

// NewSubmitResponse builds the response for a finished assembly request.
func NewSubmitResponse(result assembly.Result, err error) SubmitResponse {
	if err != nil {
		return SubmitResponse{
			RunID:          result.RunID,
			Error:          err.Error(),
			FailedStage:    string(assembly.FailedStage(err)),
			Classification: string(services.Classify(err)),
		}
	}
	asset := FromResult(result)
	return SubmitResponse{RunID: result.RunID, Asset: &asset}
}

// HTTPStatus maps a run error onto an HTTP status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusCreated
	}
	var concatErr *assembly.ConcatError
	if errors.As(err, &concatErr) && errors.Is(err, assembly.ErrNoSegments) {
		return http.StatusUnprocessableEntity
	}
	switch services.Classify(err) {
	case services.ClassValidation, services.ClassNotFound:
		return http.StatusUnprocessableEntity
	case services.ClassTimeout:
		return http.StatusGatewayTimeout
	case services.ClassCanceled:
		return http.StatusServiceUnavailable
	case services.ClassConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// FromSummary converts run counts.
func FromSummary(summary runstore.Summary) RunSummary {
	return RunSummary{
		Total:  summary.Total,
		Active: summary.Active,
		Done:   summary.Done,
		Failed: summary.Failed,
	}
}

// FromDependencies converts dependency statuses.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckStatus {
	out := make([]CheckStatus, len(results))
	for i, r := range results {
		out[i] = CheckStatus{Name: r.Name, Passed: r.Passed, Detail: r.Detail}
	}
	return out
}

// FromAudioFiles converts library tracks into their API representation. The
// result is never nil.
func FromAudioFiles(files []fetch.AudioFile) []AudioFile {
	out := make([]AudioFile, 0, len(files))
	for _, f := range files {
		dto := AudioFile{Name: f.Name, Locator: f.Locator, SizeBytes: f.Size}
		if !f.Modified.IsZero() {
			dto.ModifiedAt = f.Modified.UTC().Format(dateTimeFormat)
		}
		out = append(out, dto)
	}
	return out
}
