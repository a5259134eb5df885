package intake

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"reelsmith/internal/assembly"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

// Runner executes one assembly request.
type Runner interface {
	Run(ctx context.Context, req assembly.Request) (assembly.Result, error)
}

// MessageHandler processes one consumed message and reports whether it should
// be marked as processed.
type MessageHandler interface {
	HandleMessage(ctx context.Context, key, value []byte) (shouldMark bool, err error)
}

// Handler decodes assembly requests and hands them to a Runner.
type Handler struct {
	runner Runner
	logger *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(runner Runner, logger *slog.Logger) *Handler {
	return &Handler{
		runner: runner,
		logger: logging.NewComponentLogger(logger, "intake"),
	}
}

// HandleMessage implements MessageHandler.
func (h *Handler) HandleMessage(ctx context.Context, key, value []byte) (bool, error) {
	if len(key) > 0 {
		ctx = services.WithRequestID(ctx, string(key))
	}
	logger := logging.WithContext(ctx, h.logger)

	var req assembly.Request
	if err := json.Unmarshal(value, &req); err != nil {
		logging.WarnWithContext(logger, "discarding malformed request", "intake_decode_failed",
			logging.Error(err),
			logging.Int("bytes", len(value)),
			logging.String(logging.FieldErrorHint, "publish a JSON assembly request"),
			logging.String(logging.FieldImpact, "message skipped"),
		)
		return true, nil
	}
	if err := req.Validate(); err != nil {
		logging.WarnWithContext(logger, "discarding invalid request", "intake_invalid_request",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the request and publish it again"),
			logging.String(logging.FieldImpact, "message skipped"),
		)
		return true, nil
	}

	result, err := h.runner.Run(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return false, err
		}
		logging.WarnWithContext(logger, "queued run failed", "intake_run_failed",
			logging.Error(err),
			logging.String(logging.FieldStage, string(assembly.FailedStage(err))),
			logging.String("error_class", string(services.Classify(err))),
			logging.String(logging.FieldImpact, "no video published for this request"),
		)
		return true, err
	}

	logger.Info("queued run published",
		logging.String(logging.FieldRunID, result.RunID),
		logging.String("output_id", result.OutputID),
		logging.String("path", result.Path),
		logging.Float64("seconds", result.Seconds),
	)
	return true, nil
}
