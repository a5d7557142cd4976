package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sundayezeilo/linkshield/internal/config"
	"github.com/sundayezeilo/linkshield/internal/httpx"
	"github.com/sundayezeilo/linkshield/internal/metrics"
	"github.com/sundayezeilo/linkshield/internal/shortener"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the handlers and health dependencies the router serves.
type Deps struct {
	Links      *shortener.Handler
	Admin      *shortener.AdminHandler
	Redirector *shortener.Redirector
	DB         Pinger
}

// Server represents the HTTP server with all dependencies.
type Server struct {
	config *config.Config
	logger *slog.Logger
	deps   Deps
	server *http.Server
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		logger: logger,
		deps:   deps,
	}
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.setupRoutes())
}

// Start starts the HTTP server and blocks until ctx is cancelled, a shutdown
// signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         net.JoinHostPort(s.config.Server.Host, s.config.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	// Listen for errors from the server
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting http server",
			"addr", s.server.Addr,
			"env", s.config.App.Environment,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	// Listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.logger.Info("received shutdown signal", "signal", sig.String())

	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// route registers h under pattern, tagged for per-route metrics.
func route(mux *http.ServeMux, pattern string, h http.HandlerFunc, mws ...httpx.Middleware) {
	mux.Handle(pattern, httpx.TagRoute(httpx.Chain(mws...)(h)))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	rl := s.config.RateLimit

	route(mux, "GET /x/health", s.healthCheckHandler)

	if obs := s.config.Observability; obs.MetricsEnabled {
		route(mux, "GET "+obs.MetricsPath, metrics.Handler().ServeHTTP)
	}

	route(mux, "POST /api/links", s.deps.Links.CreateLink,
		httpx.RequireOwner, httpx.RateLimit("create", rl.Create, rl.Window))
	route(mux, "POST /api/links/anonymous", s.deps.Links.CreateAnonymousLink,
		httpx.RateLimit("create_anonymous", rl.Create, rl.Window))

	route(mux, "GET /api/links", s.deps.Links.ListLinks, httpx.RequireOwner)
	route(mux, "GET /api/links/{id}", s.deps.Links.GetLink, httpx.RequireOwner)
	route(mux, "PATCH /api/links/{id}", s.deps.Links.UpdateLink, httpx.RequireOwner)
	route(mux, "DELETE /api/links/{id}", s.deps.Links.DeleteLink, httpx.RequireOwner)
	route(mux, "GET /api/links/{id}/stats", s.deps.Links.LinkStats, httpx.RequireOwner)

	route(mux, "GET /api/stats", s.deps.Links.Overview, httpx.RequireOwner)

	if a := s.deps.Admin; a != nil {
		route(mux, "GET /api/admin/dashboard", a.Dashboard, httpx.RequireAdmin)
		route(mux, "GET /api/admin/links", a.ListLinks, httpx.RequireAdmin)
		route(mux, "GET /api/admin/links/{id}", a.GetLink, httpx.RequireAdmin)
		route(mux, "PATCH /api/admin/links/{id}", a.ModerateLink, httpx.RequireAdmin)
		route(mux, "DELETE /api/admin/links/{id}", a.DeleteLink, httpx.RequireAdmin)
		route(mux, "GET /api/admin/links/{id}/clicks", a.LinkClicks, httpx.RequireAdmin)
	}

	route(mux, "GET /r/{shortCode}", s.deps.Redirector.Redirect)
	route(mux, "GET /{shortCode}", s.deps.Redirector.Redirect)

	return mux
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	return httpx.Chain(
		httpx.Recovery(s.logger), // Outermost: catch panics
		httpx.RequestID,          // Add request ID
		httpx.Logger(s.logger),   // Log requests
		httpx.Metrics,            // Per-route counters and latency
		httpx.CORS(corsOrigins(s.config.Server.CORSOrigin)),
		httpx.Authenticate(httpx.AuthConfig{
			Secret: []byte(s.config.Auth.JWTSecret),
			Issuer: s.config.Auth.JWTIssuer,
		}),
	)(handler)
}

// corsOrigins splits a comma separated origin list; "*" allows all.
func corsOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(o)
		if o == "*" {
			return nil
		}
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// healthCheckHandler handles health check requests.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.deps.DB != nil {
		if err := s.deps.DB.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "health check: database unreachable", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	httpx.WriteJSON(w, code, map[string]string{
		"status":  status,
		"service": s.config.Observability.ServiceName,
		"version": s.config.Observability.ServiceVersion,
	})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}
