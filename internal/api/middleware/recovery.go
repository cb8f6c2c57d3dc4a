package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/alexvand/supportcrew/internal/api/response"
)

// Recovery turns a handler panic into a 500 response instead of a dropped
// connection. Runs inside Logger, so the request id is already on the response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", w.Header().Get("X-Request-ID"),
				)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
