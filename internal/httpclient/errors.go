package httpclient

import (
	"fmt"
	"net/http"
	"strings"
)

// StatusError is returned when the server answers with a status code other
// than the one the operation expects. Body holds the response body verbatim.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return fmt.Sprintf("unexpected status code %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// TransportError wraps resolution, connect, write and read failures.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("unable to connect to server: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a response body does not have the expected
// JSON shape.
type DecodeError struct {
	Operation string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unable to understand server response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
