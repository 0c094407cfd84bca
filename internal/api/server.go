// Package api provides the HTTP API server and handlers of the library rental service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/alquilibros/alquilibros-server/internal/config"
	"github.com/alquilibros/alquilibros-server/internal/ratelimit"
	"github.com/alquilibros/alquilibros-server/internal/service"
)

// Paths of the endpoints that take credentials.
const (
	loginPath    = "/api/auth/login"
	registerPath = "/api/auth/register"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	services        *service.Services
	cfg             *config.Config
	router          *chi.Mux
	api             huma.API
	authRateLimiter *ratelimit.KeyedRateLimiter
	logger          *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg *config.Config, services *service.Services, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		services:        services,
		cfg:             cfg,
		router:          router,
		authRateLimiter: ratelimit.PerMinute(cfg.Server.AuthRatePerMinute, cfg.Server.AuthRateBurst),
		logger:          logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Alquilibros API", "1.0.0")
	humaConfig.Info.Description = "Catálogo, usuarios y alquileres de la biblioteca."
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	// Bodies are returned as-is; no $schema links.
	humaConfig.CreateHooks = nil

	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, e.g. for OpenAPI generation.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work of the server.
func (s *Server) Close() {
	s.authRateLimiter.Stop()
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Total-Count", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(rateLimitPaths(s.authRateLimiter, s.logger, loginPath, registerPath))
	s.router.Use(authMiddleware(s.services.Auth))
	s.router.Use(writeGuard(s.logger))

	s.router.NotFound(notFound(s.logger))
	s.router.MethodNotAllowed(methodNotAllowed(s.logger))
}

// registerRoutes configures all HTTP routes.
func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerConfigRoutes()
	s.registerAuthRoutes()
	s.registerProfileRoutes()
	s.registerRentalRoutes()
	s.registerSearchRoutes()
	s.registerRecordRoutes()
}
