package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Recovery converts a handler panic into a logged 500 problem and records it
// on the request span. http.ErrAbortHandler is re-raised untouched.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}
				if errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				trace.SpanFromContext(r.Context()).RecordError(err)
				log.Error().
					Err(err).
					Str("request_id", GetRequestID(r.Context())).
					Str("method", r.Method).
					Str("route", routePattern(r)).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				writeProblem(w, r, http.StatusInternalServerError, "an unexpected error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
