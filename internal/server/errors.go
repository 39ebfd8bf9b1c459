package server

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds surfaced by the handlers. Causes are wrapped with %w so callers
// can match the kind with errors.Is and still log the underlying failure.
var (
	ErrRouteNotFound    = errors.New("route not found")
	ErrParse            = errors.New("malformed multipart body")
	ErrMissingFile      = errors.New("no file supplied")
	ErrInstall          = errors.New("artifact install failed")
	ErrArtifactNotFound = errors.New("no artifact stored")
)

// statusFor maps an error kind to the HTTP status returned to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRouteNotFound), errors.Is(err, ErrArtifactNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrParse), errors.Is(err, ErrMissingFile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// messageFor is the short human-readable text shown for an error kind.
func messageFor(err error) string {
	switch {
	case errors.Is(err, ErrRouteNotFound):
		return "Not found"
	case errors.Is(err, ErrArtifactNotFound):
		return "Nothing uploaded yet"
	case errors.Is(err, ErrMissingFile):
		return "No file uploaded"
	case errors.Is(err, ErrParse):
		return "Bad upload"
	case errors.Is(err, ErrInstall):
		return "Upload could not be stored"
	default:
		return "Internal error"
	}
}

// writeError terminates the response with the status and text for err.
// Callers must not have written anything yet.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "%d %s", status, messageFor(err))
}
