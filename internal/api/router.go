package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router assembles the HTTP surface: the alert query, supervisor
// commands, the websocket upgrade, health and metrics.
func (s *Server) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Session-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/ws", s.handleWebsocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/alerts", s.handleListAlerts)
		r.Get("/alerts/{id}", s.handleGetAlert)

		r.Post("/alerts/{id}/acknowledge", s.handleAcknowledge)
		r.Post("/alerts/{id}/priority", s.handleSetPriority)
		r.Post("/alerts/{id}/note", s.handleAddNote)
		r.Post("/alerts/{id}/dismiss", s.handleDismiss)
		r.Post("/alerts/{id}/lock", s.handleLock)
		r.Post("/broadcasts", s.handleBroadcast)
	})

	return r
}
