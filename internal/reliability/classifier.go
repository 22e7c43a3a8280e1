package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// HTTPStatusError is returned by gateway clients when the upstream answered
// with a non-2xx status.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.Status)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether a later identical request could plausibly
// succeed. Timeouts and transient upstream statuses qualify; auth and
// malformed-request failures do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return IsRetryableHTTPStatus(statusErr.Status)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// ClassifyGatewayError buckets a gateway failure for metrics labels and logs.
// The turn pipeline treats every class the same way (timeout == failure); the
// class only feeds observability.
func ClassifyGatewayError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.Status >= 500 {
			return "http_5xx"
		}
		if statusErr.Status >= 400 {
			return "http_4xx"
		}
		return "http_other"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "network"
	}

	return "unknown"
}
