package apiserver

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/djarekg/tampa-taffy/internal/store"
)

// httpError is an error with an HTTP status and optional payload.
type httpError struct {
	Status  int
	Message string
	Data    any
}

func (e *httpError) Error() string {
	return e.Message
}

func newHTTPError(status int, msg string) *httpError {
	return &httpError{Status: status, Message: msg}
}

func (e *httpError) withData(data any) *httpError {
	e.Data = data
	return e
}

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
	Data   any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handlerFunc is an http handler that returns its failure.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts fn, rendering any returned error as JSON. Unknown errors
// become 500s whose message is hidden in production.
func (s *Server) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		var he *httpError
		switch {
		case stderrors.As(err, &he):
		case stderrors.Is(err, store.ErrNotFound):
			he = newHTTPError(http.StatusNotFound, "Not found")
		default:
			msg := err.Error()
			if s.config.Production {
				msg = http.StatusText(http.StatusInternalServerError)
			}
			he = newHTTPError(http.StatusInternalServerError, msg)
		}

		log := s.logger.Warn
		if he.Status >= http.StatusInternalServerError {
			log = s.logger.Error
		}
		log("request failed", "method", r.Method, "path", r.URL.Path, "status", he.Status, "error", err)

		writeJSON(w, he.Status, errorBody{Error: he.Message, Status: he.Status, Data: he.Data})
	}
}
