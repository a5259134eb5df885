package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classification names the marker carried by err. Run records and API
// responses persist this value so callers can tell bad input from tool failures.
type Classification string

const (
	ClassNone          Classification = ""
	ClassValidation    Classification = "validation"
	ClassConfiguration Classification = "configuration"
	ClassNotFound      Classification = "not_found"
	ClassTimeout       Classification = "timeout"
	ClassExternalTool  Classification = "external_tool"
	ClassCanceled      Classification = "canceled"
	ClassTransient     Classification = "transient"
)

// Classify maps an error to the most specific marker it carries. Unmarked
// errors are treated as transient.
func Classify(err error) Classification {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrValidation):
		return ClassValidation
	case errors.Is(err, ErrConfiguration):
		return ClassConfiguration
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, ErrExternalTool):
		return ClassExternalTool
	default:
		return ClassTransient
	}
}

// IsCallerError reports whether err stems from the request itself rather than
// the environment, so the caller should fix its input instead of retrying.
func IsCallerError(err error) bool {
	switch Classify(err) {
	case ClassValidation, ClassNotFound:
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
