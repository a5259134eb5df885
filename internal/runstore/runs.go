package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"reelsmith/internal/assembly"
	"reelsmith/internal/services"
)

const runColumns = "id, output_id, source, status, sentence_count, audio, request_json, output_path, seconds, segments, included_sentences, audio_applied, degraded, failed_stage, error_class, error_message, created_at, updated_at, finished_at"

// interruptedMessage is recorded for runs that were active when the process died.
const interruptedMessage = "interrupted before completion"

// Create records a new run in the planning stage.
func (s *Store) Create(ctx context.Context, runID, source string, req assembly.Request) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("run id is required")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	now := timestamp(time.Now())
	_, err = s.execWithRetry(ctx,
		`INSERT INTO runs (
            id, output_id, source, status, sentence_count, audio, request_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		nullableString(strings.TrimSpace(req.OutputID)),
		nullableString(source),
		assembly.StagePlanning,
		len(req.Sentences),
		nullableString(strings.TrimSpace(req.Audio)),
		string(payload),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SetStage moves an active run to stage.
func (s *Store) SetStage(ctx context.Context, runID string, stage assembly.Stage) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ? AND status NOT IN (?, ?)`,
		stage, timestamp(time.Now()), runID, assembly.StageDone, assembly.StageFailed,
	)
	if err != nil {
		return fmt.Errorf("update run stage: %w", err)
	}
	return nil
}

// Complete records the published asset of a successful run.
func (s *Store) Complete(ctx context.Context, runID string, result assembly.Result) error {
	included, err := json.Marshal(result.Sentences)
	if err != nil {
		return fmt.Errorf("marshal sentences: %w", err)
	}
	now := timestamp(time.Now())
	_, err = s.execWithRetry(ctx,
		`UPDATE runs SET
            status = ?, output_id = ?, output_path = ?, seconds = ?, segments = ?,
            included_sentences = ?, audio_applied = ?, degraded = ?,
            failed_stage = NULL, error_class = NULL, error_message = NULL,
            updated_at = ?, finished_at = ?
        WHERE id = ?`,
		assembly.StageDone,
		nullableString(result.OutputID),
		nullableString(result.Path),
		result.Seconds,
		result.Segments,
		string(included),
		boolToInt(result.AudioApplied),
		boolToInt(result.Degraded),
		now,
		now,
		runID,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// Fail records the terminal error of a run.
func (s *Store) Fail(ctx context.Context, runID string, runErr error) error {
	message := "failed without error detail"
	if runErr != nil {
		message = strings.TrimSpace(runErr.Error())
	}
	now := timestamp(time.Now())
	_, err := s.execWithRetry(ctx,
		`UPDATE runs SET
            status = ?, failed_stage = COALESCE(?, status), error_class = ?, error_message = ?,
            updated_at = ?, finished_at = ?
        WHERE id = ?`,
		assembly.StageFailed,
		nullableString(string(assembly.FailedStage(runErr))),
		nullableString(string(services.Classify(runErr))),
		message,
		now,
		now,
		runID,
	)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return nil
}

// Get returns the run with id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+runColumns+" FROM runs WHERE id = ?", runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first. A limit <= 0 returns every run.
// When statuses are given only runs in those statuses are returned.
func (s *Store) List(ctx context.Context, limit int, statuses ...assembly.Stage) ([]*Run, error) {
	query := "SELECT " + runColumns + " FROM runs"
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Summary counts runs by lifecycle state.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("run summary: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var status assembly.Stage
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, err
		}
		summary.Total += count
		switch status {
		case assembly.StageDone:
			summary.Done += count
		case assembly.StageFailed:
			summary.Failed += count
		default:
			summary.Active += count
		}
	}
	return summary, rows.Err()
}

// ResetInterrupted fails every run that is still active and was started by
// one of sources; with no sources every active run is failed. Call it once at
// startup, before any new run begins. Runs owned by other processes, such as
// a concurrent CLI assembly, are left alone when sources is narrowed.
func (s *Store) ResetInterrupted(ctx context.Context, sources ...string) (int64, error) {
	now := timestamp(time.Now())
	query := `UPDATE runs SET
            failed_stage = status, status = ?, error_class = ?, error_message = ?,
            updated_at = ?, finished_at = ?
        WHERE status NOT IN (?, ?)`
	args := []any{
		assembly.StageFailed,
		string(services.ClassCanceled),
		interruptedMessage,
		now,
		now,
		assembly.StageDone,
		assembly.StageFailed,
	}
	if len(sources) > 0 {
		query += ` AND source IN (?` + strings.Repeat(", ?", len(sources)-1) + `)`
		for _, source := range sources {
			args = append(args, source)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes finished runs older than cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM runs WHERE status IN (?, ?) AND created_at < ?`,
		assembly.StageDone, assembly.StageFailed, timestamp(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id            string
		outputID      sql.NullString
		source        sql.NullString
		status        string
		sentenceCount int
		audio         sql.NullString
		requestJSON   sql.NullString
		outputPath    sql.NullString
		seconds       float64
		segments      int
		included      sql.NullString
		audioApplied  int
		degraded      int
		failedStage   sql.NullString
		errorClass    sql.NullString
		errorMessage  sql.NullString
		createdRaw    string
		updatedRaw    string
		finishedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id, &outputID, &source, &status, &sentenceCount, &audio, &requestJSON,
		&outputPath, &seconds, &segments, &included, &audioApplied, &degraded,
		&failedStage, &errorClass, &errorMessage, &createdRaw, &updatedRaw, &finishedRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:            id,
		OutputID:      outputID.String,
		Source:        source.String,
		Status:        assembly.Stage(status),
		SentenceCount: sentenceCount,
		Audio:         audio.String,
		RequestJSON:   requestJSON.String,
		OutputPath:    outputPath.String,
		Seconds:       seconds,
		Segments:      segments,
		AudioApplied:  audioApplied != 0,
		Degraded:      degraded != 0,
		FailedStage:   assembly.Stage(failedStage.String),
		ErrorClass:    errorClass.String,
		ErrorMessage:  errorMessage.String,
	}
	if included.Valid && included.String != "" {
		_ = json.Unmarshal([]byte(included.String), &run.IncludedSentences)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		run.UpdatedAt = updated
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}

// timeLayout is fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func timestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
