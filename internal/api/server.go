// Package api provides the HTTP gateway in front of the multi-tenant RAG
// engine: login and auth-status endpoints, and query/document endpoints that
// operate through the workspace-bound proxies.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/raggate/raggate/internal/auth"
	"github.com/raggate/raggate/internal/tenant"
)

// ServerConfig contains configuration for creating the gateway server.
type ServerConfig struct {
	Logger  *slog.Logger
	Auth    *auth.Handler   // Required
	Manager *tenant.Manager // Required
	Version string          // Reported by /health
}

// Server is the JSON API HTTP server.
type Server struct {
	handler http.Handler
}

// NewServer creates the gateway server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Auth == nil {
		return nil, errors.New("auth handler is required")
	}
	if cfg.Manager == nil {
		return nil, errors.New("tenant manager is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := tenant.NewEngineProxy(cfg.Manager)
	docs := tenant.NewDocManagerProxy(cfg.Manager)

	lh := &loginHandler{auth: cfg.Auth, logger: logger}
	qh := &queryHandler{engine: engine, logger: logger}
	dh := &documentHandler{engine: engine, docs: docs, logger: logger}
	hh := &healthHandler{version: cfg.Version, logger: logger}

	// Public routes.
	public := http.NewServeMux()
	public.HandleFunc("POST /login", lh.login)
	public.HandleFunc("GET /auth-status", lh.status)
	public.HandleFunc("GET /health", hh.health)

	// Tenant routes: everything behind authentication and workspace
	// resolution.
	protected := http.NewServeMux()
	protected.HandleFunc("POST /query", qh.query)
	protected.HandleFunc("POST /documents/text", dh.insertText)
	protected.HandleFunc("POST /documents/upload/{name}", dh.upload)
	protected.HandleFunc("GET /documents", dh.list)
	protected.HandleFunc("DELETE /documents/{source}", dh.remove)

	mux := http.NewServeMux()
	mux.Handle("/", public)
	withAuth := authMiddleware(cfg.Auth, cfg.Manager, logger)
	for _, route := range []string{"/query", "/documents", "/documents/"} {
		mux.Handle(route, withAuth(protected))
	}

	// Middleware stack (outermost first): Recovery → RequestID → Logging.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	return &Server{handler: handler}, nil
}

// Handler returns the root http.Handler of the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
