package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jdavido74/medical-pro/internal/appointments"
	"github.com/jdavido74/medical-pro/internal/audit"
	"github.com/jdavido74/medical-pro/internal/availability"
	"github.com/jdavido74/medical-pro/internal/clinic"
	httpmiddleware "github.com/jdavido74/medical-pro/internal/http/middleware"
	"github.com/jdavido74/medical-pro/internal/http/respond"
	"github.com/jdavido74/medical-pro/pkg/logging"
)

// Config holds router configuration. Nil handlers are not mounted.
type Config struct {
	Logger *logging.Logger
	Env    string

	Appointments *appointments.Handler
	Availability *availability.Handler
	Clinic       *clinic.Handler
	Audit        *audit.Handler
	Realtime     http.Handler

	HealthChecks   map[string]Check
	MetricsHandler http.Handler

	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	AdminAuthSecret    string
}

// New creates the chi router with every scheduling route configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", healthHandler(cfg.Env, cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.RateLimiter != nil {
			v1.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		if cfg.Realtime != nil {
			v1.Handle("/ws", cfg.Realtime)
		}
		if cfg.Availability != nil {
			v1.Get("/availability/templates", cfg.Availability.ListTemplates)
		}
		if cfg.Appointments != nil {
			v1.Mount("/", cfg.Appointments.Routes())
		}
	})

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Use(middleware.AllowContentType("application/json"))
			if cfg.Clinic != nil {
				admin.Mount("/clinic", cfg.Clinic.Routes())
			}
			if cfg.Availability != nil {
				admin.Mount("/practitioners", cfg.Availability.Routes())
			}
			if cfg.Audit != nil {
				admin.Mount("/audit", cfg.Audit.Routes())
			}
		})
	}

	return r
}
