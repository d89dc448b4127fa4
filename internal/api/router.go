package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"mindscribe.app/journal-assistant/internal/metrics"
)

func NewRouter(apiHandler *APIHandler, collector *metrics.Collector) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Handle("/metrics", collector.Handler())

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/signup", apiHandler.SignupHandler)
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			// Journal routes
			r.Post("/journal", apiHandler.SubmitEntryHandler)
			r.Get("/journal", apiHandler.ListEntriesHandler)
			r.Post("/journal/{entryID}/analysis", apiHandler.RunAnalysisHandler)

			// Other modes
			r.Post("/chat", apiHandler.ChatHandler)
			r.Post("/extract-text", apiHandler.ExtractTextHandler)

			// Account routes
			r.Get("/usage", apiHandler.UsageHandler)
			r.Put("/profile", apiHandler.UpdateProfileHandler)
			r.Get("/prompts/daily", apiHandler.DailyPromptHandler)
			r.Post("/feedback", apiHandler.FeedbackHandler)
		})
	})

	return r
}
