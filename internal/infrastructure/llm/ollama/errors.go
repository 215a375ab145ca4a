package ollama

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/avetisov/ragline/internal/core/domain"
)

// wrapModelError maps transport failures onto the domain taxonomy. Rate
// limiting stays distinguishable from an outage so callers can apply
// their own single-retry policy.
func wrapModelError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTransient, operation, err)
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return domain.WrapError(domain.ErrRateLimited, operation, err)
		case statusErr.StatusCode == http.StatusRequestEntityTooLarge:
			return domain.WrapError(domain.ErrInputTooLarge, operation, err)
		case statusErr.StatusCode >= 500:
			return domain.WrapError(domain.ErrModelUnavailable, operation, err)
		default:
			return domain.WrapError(domain.ErrInvalidInput, operation, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrModelUnavailable, operation, err)
	}

	return domain.WrapError(domain.ErrModelUnavailable, operation, err)
}
