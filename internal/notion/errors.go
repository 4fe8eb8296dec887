package notion

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`

	// RetryAfterDelay is parsed from the Retry-After header, if any.
	RetryAfterDelay time.Duration `json:"-"`
}

// RetryAfter implements the throttle's server-hint interface.
func (e *APIError) RetryAfter() time.Duration { return e.RetryAfterDelay }

func (e *APIError) Error() string {
	return fmt.Sprintf("notion: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsRetryable reports whether err is a rate-limit, transient server error or
// network failure that is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsRateLimited reports whether err is a 429 response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}
