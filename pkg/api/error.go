package api

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/djarekg/tampa-taffy/internal/errors"
)

// Error is a non-2xx response.
type Error struct {
	Status  int
	Message string
	Data    Payload

	cause *errors.Error
}

func newError(status int, body Payload) *Error {
	msg := body.Get("error").String()
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = "HTTP Error"
	}
	data := body
	if d := body.Get("data"); d.Exists() {
		data = Payload{raw: []byte(d.Raw)}
	}
	return &Error{
		Status:  status,
		Message: msg,
		Data:    data,
		cause:   errors.New(errors.CodeRequestFailed).WithDetailf("HTTP %d", status),
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Unwrap exposes the coded error so errors.CodeOf reports CodeRequestFailed.
func (e *Error) Unwrap() error {
	return e.cause
}

// StatusOf returns the HTTP status of an *Error in err's chain, or 0.
func StatusOf(err error) int {
	var ae *Error
	if stderrors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}
