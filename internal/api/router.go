// Package api assembles the HTTP router for the support gateway.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/alexvand/supportcrew/internal/api/middleware"
	"github.com/alexvand/supportcrew/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	SupportHandler http.HandlerFunc
	StatusHandler  http.HandlerFunc
	WebhookHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/health", orNotImplemented(deps.HealthHandler))

	// Rate-limited gateway routes
	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/support", orNotImplemented(deps.SupportHandler))
		r.Get("/api/support/status/{jobID}", orNotImplemented(deps.StatusHandler))
		r.Post("/api/webhook", orNotImplemented(deps.WebhookHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
