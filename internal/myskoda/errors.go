package myskoda

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents a non-2xx response from the MySkoda API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsPreconditionFailed reports whether err is an HTTP 412 response. The API
// uses 412 to reject security-sensitive commands with a wrong S-PIN.
func IsPreconditionFailed(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusPreconditionFailed
}

// IsTransient reports whether err is a rate-limit or server-side error that
// the caller should log and ignore, keeping any previous value.
func IsTransient(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
}

// IsAPIError reports whether err carries an HTTP status from the API, as
// opposed to a transport-level failure.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
