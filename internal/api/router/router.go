// Package router assembles the HTTP surface of the agenda service.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/carelink-health/agenda-platform/internal/appointments"
	"github.com/carelink-health/agenda-platform/internal/groups"
	httpmiddleware "github.com/carelink-health/agenda-platform/internal/http/middleware"
	"github.com/carelink-health/agenda-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *appointments.Handler
	GroupsHandler       *groups.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1/groups/{groupID}", func(g chi.Router) {
		if cfg.AppointmentsHandler != nil {
			cfg.AppointmentsHandler.RegisterRoutes(g)
		}
		if cfg.GroupsHandler != nil {
			g.Get("/members", cfg.GroupsHandler.ListMembers)
		}
	})

	return r
}
