package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/account-registry/internal/account"
	"github.com/frahmantamala/account-registry/internal/auth"
	"github.com/frahmantamala/account-registry/internal/manage"
	"github.com/frahmantamala/account-registry/internal/transport"
	"github.com/frahmantamala/account-registry/internal/transport/middleware"
	"github.com/frahmantamala/account-registry/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	AllowedOrigins []string
	MetricsEnabled bool
	MetricsPath    string
	OpenAPIPath    string
}

type Handlers struct {
	Auth   *auth.Handler
	Manage *manage.Handler
}

// RegisterAllRoutes mounts the API under /api/v1. db may be nil when the
// registry runs without persistence.
func RegisterAllRoutes(router chi.Router, cfg RouterConfig, registry *account.Registry, db *sql.DB, handlers Handlers, logger *slog.Logger) {
	healthHandler := NewHealthHandler(registry, db)
	base := transport.NewBaseHandler(logger)

	// Apply global middleware
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.ClientIP)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	if cfg.MetricsEnabled {
		router.Use(middleware.Metrics)
		router.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	openAPIPath := cfg.OpenAPIPath
	if openAPIPath == "" {
		openAPIPath = "./api/openapi.yml"
	}
	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, openAPIPath)
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		base.WriteError(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		base.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if handlers.Auth != nil {
			r.Route("/auth", func(ar chi.Router) {
				ar.Post("/login", handlers.Auth.Login)
				ar.With(middleware.Credentials(base)).Post("/logout", handlers.Auth.Logout)
			})
		}

		if handlers.Manage != nil {
			r.Route("/account/manage", func(mr chi.Router) {
				mr.Use(middleware.Credentials(base))
				mr.Post("/create", handlers.Manage.Create)
				mr.Post("/view", handlers.Manage.View)
				mr.Post("/modify", handlers.Manage.Modify)
			})
		}
	})
}
