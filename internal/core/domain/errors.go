package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrInputTooLarge         = errors.New("input too large")
	ErrNotFound              = errors.New("object not found")
	ErrTransient             = errors.New("transient failure")
	ErrDimensionMismatch     = errors.New("embedding dimension mismatch")
	ErrIndexUnavailable      = errors.New("vector index unavailable")
	ErrModelUnavailable      = errors.New("model unavailable")
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrRateLimited           = errors.New("rate limited")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ErrorKind reduces an error to the short code reported to operators and
// callers. The full error text stays in logs only.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInputTooLarge):
		return "input_too_large"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrGenerationUnavailable):
		return "generation_unavailable"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrIndexUnavailable):
		return "index_unavailable"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "internal"
	}
}
