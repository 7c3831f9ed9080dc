package atlassian

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// APIError represents a non-2xx answer from Confluence or Jira.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
	Retry      time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("atlassian: API error %d (URL: %s)", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("atlassian: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// HTTPStatus returns the response status.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Is matches domain.ErrRateLimited for a 429 answer.
func (e *APIError) Is(target error) bool {
	return target == domain.ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// RetryAfter returns the Retry-After hint, zero if none was sent.
func (e *APIError) RetryAfter() time.Duration {
	return e.Retry
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden checks if the error indicates a forbidden resource.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, domain.ErrRateLimited)
}

func hasStatus(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == code
	}
	return false
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// errorMessage extracts a readable message from an Atlassian error body.
// Confluence uses {"message": ...}; Jira uses {"errorMessages": [...]}.
func errorMessage(body errorBody) string {
	if body.Message != "" {
		return body.Message
	}
	if len(body.ErrorMessages) > 0 {
		return strings.Join(body.ErrorMessages, "; ")
	}
	return ""
}

type errorBody struct {
	Message       string   `json:"message"`
	ErrorMessages []string `json:"errorMessages"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02",
}

// ParseTime parses the timestamp formats used by Confluence and Jira.
// Returns the zero time for empty or unrecognised values.
func ParseTime(v string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
