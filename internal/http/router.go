// Package http exposes the service's status and notes API.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"meeting-audio-pipeline/internal/app"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{
				"meetingId": application.Aggregator.MeetingID(),
				"state":     application.Aggregator.State(),
				"startedAt": application.StartupTime,
				"pipelines": application.Snapshot(),
			})
		})

		// Markdown notes from the most recently ended meeting.
		r.Get("/notes", func(w http.ResponseWriter, _ *http.Request) {
			result := application.LastResult()
			if result == nil {
				http.Error(w, "no meeting has ended yet", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(result.Markdown))
		})

		r.Get("/actions", func(w http.ResponseWriter, _ *http.Request) {
			result := application.LastResult()
			if result == nil {
				http.Error(w, "no meeting has ended yet", http.StatusNotFound)
				return
			}
			writeJSON(w, result.ActionItems)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
