// Package api provides the HTTP server for Lumen. It exposes the
// progression engine as a local REST API for the mobile client.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumen-app/lumen/internal/app/progression"
	"github.com/lumen-app/lumen/internal/infra/sqlite"
)

// Server is the Lumen HTTP API server.
type Server struct {
	db             *sqlite.DB
	svc            *progression.Service
	corsOrigins    []string
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(db *sqlite.DB, svc *progression.Service, corsOrigins []string) *Server {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	return &Server{db: db, svc: svc, corsOrigins: corsOrigins}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1/users/{userID}", func(r chi.Router) {
		r.Get("/stats", s.handleGetStats)
		r.Post("/xp", s.handleAwardXP)
		r.Get("/xp/history", s.handleXPHistory)
		r.Post("/reconcile", s.handleReconcile)

		r.Get("/badges", s.handleListBadges)
		r.Post("/badges/active", s.handleSetActiveBadge)

		r.Get("/quests/daily", s.handleQuestStatus)
		r.Post("/quests/daily", s.handleRunQuests)

		r.Post("/moments", s.handleLogMoment)
		r.Get("/moments", s.handleListMoments)

		r.Get("/reflections/{date}", s.handleGetReflection)
		r.Put("/reflections/{date}", s.handleSaveReflection)

		r.Post("/patterns/viewed", s.handlePatternsViewed)

		r.Get("/notifications", s.handleListNotifications)
		r.Post("/notifications/{id}/shown", s.handleNotificationShown)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}
