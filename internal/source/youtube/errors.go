package youtube

import (
	"errors"
	"fmt"
	"net/http"

	"video_ingestor/internal/domain"
)

var errTransport = errors.New("transport error")

// APIError is a non-2xx answer from the video API.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("youtube api status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("youtube api status %d (%s): %s", e.StatusCode, e.Reason, e.Message)
}

// Is lets errors.Is(err, domain.ErrQuotaExceeded) match quota rejections.
func (e *APIError) Is(target error) bool {
	return target == domain.ErrQuotaExceeded && e.QuotaExceeded()
}

func (e *APIError) QuotaExceeded() bool {
	if e.StatusCode != http.StatusForbidden {
		return false
	}
	return e.Reason == "quotaExceeded" || e.Reason == "dailyLimitExceeded"
}

// Temporary reports whether repeating the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return errors.Is(err, errTransport)
}
