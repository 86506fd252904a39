// Request body decoding follows https://www.alexedwards.net/blog/how-to-properly-parse-a-json-request-body

package jsonbody

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const maxBodySize = 1 * 1024 * 1024

// MalformedBodyError is a request body the server refuses. StatusCode is
// the response status to send back.
type MalformedBodyError struct {
	StatusCode int
	Message    string
}

func (mr *MalformedBodyError) Error() string {
	return mr.Message
}

// Decode reads a single JSON object from the request into dst. Unknown
// members are rejected so that a client sending a misspelled member fails
// loudly.
func Decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	contentType := r.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
		return &MalformedBodyError{StatusCode: http.StatusUnsupportedMediaType, Message: "Content-Type header is not application/json"}
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return badRequest("body contains badly-formed JSON (at position %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return badRequest("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			return badRequest("body contains an invalid value for the %q member (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return badRequest("body contains unknown member %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		case errors.Is(err, io.EOF):
			return badRequest("body must not be empty")
		case errors.As(err, &maxBytesError):
			return &MalformedBodyError{StatusCode: http.StatusRequestEntityTooLarge, Message: "body must not be larger than 1MB"}
		default:
			return err
		}
	}

	if dec.More() {
		return badRequest("body must only contain a single JSON object")
	}
	return nil
}

// Write sends v as a JSON response with the given status.
func Write(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Unable to write response")
	}
}

// WriteError answers a failed Decode. Errors that are not a
// MalformedBodyError become a 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var mb *MalformedBodyError
	if errors.As(err, &mb) {
		http.Error(w, mb.Message, mb.StatusCode)
		return
	}
	log.Ctx(r.Context()).Error().Err(err).Msg("Unable to decode request body")
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func badRequest(format string, args ...interface{}) error {
	return &MalformedBodyError{StatusCode: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}
