package lightsched

import (
	"net/http"

	"github.com/lightsched/lightsched-go/internal/httpclient"
	"github.com/pkg/errors"
)

var (
	// ErrNotConnected is returned by every operation on a gateway whose
	// construction could not reach the scheduler, and by Job handles bound
	// to such a gateway.
	ErrNotConnected = errors.New("not connected to a scheduler")

	// ErrValidation marks caller input rejected before any request is sent.
	ErrValidation = errors.New("invalid request")
)

type (
	// StatusError reports an HTTP status other than the one the operation
	// expects. Its message is the response body verbatim.
	StatusError = httpclient.StatusError

	// TransportError reports a failure to reach the scheduler or to read
	// its response.
	TransportError = httpclient.TransportError

	// DecodeError reports a response body that is not the expected JSON shape.
	DecodeError = httpclient.DecodeError
)

func validationError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// IsNotFound reports whether err is a 404 from the scheduler.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// IsValidation reports whether err was produced by input validation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func resultOf(err error) string {
	var (
		statusErr    *StatusError
		transportErr *TransportError
		decodeErr    *DecodeError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &decodeErr):
		return "decode"
	default:
		return "error"
	}
}
