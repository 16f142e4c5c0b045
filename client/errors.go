package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport matches every *TransportError via errors.Is.
var ErrTransport = errors.New("transport error")

// TransportError describes a failed request to the web service.
type TransportError struct {
	Method string
	URL    string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Retryable reports whether the failure was considered transient.
	Retryable bool

	Err error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("a server error occurred when invoking %s %s: %d %s",
			e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// retryableStatus reports whether a response status is worth retrying.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
