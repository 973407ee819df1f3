package errors

import (
	"net/http"

	"github.com/offerboard/backend/internal/logger"
)

const (
	// RequestIDHeader is the HTTP header for request ID
	RequestIDHeader = "X-Request-ID"
)

// Handler wraps an http.HandlerFunc with error handling capabilities
type Handler func(w http.ResponseWriter, r *http.Request) error

// HandleFunc converts a Handler to a standard http.HandlerFunc. It is the one
// place where returned errors become HTTP responses; server errors are logged
// with their cause before the envelope is written.
func HandleFunc(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		if IsServerError(err) {
			logger.Default().WithComponent("http").Error(r.Context(), "request failed", err, logger.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			})
		}
		WriteError(w, logger.RequestID(r.Context()), err)
	}
}
