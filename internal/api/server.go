// Package api provides the read-only management/observability REST API
// for the LDAP fallback proxy: liveness, runtime stats, a sanitized
// config dump, and a tail of the audit log, via a Gin-based HTTP
// server. There are no write endpoints — every mutation the proxy
// supports happens through its config file and a restart.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sonroyaalmerol/ldap-proxy/internal/api/handlers"
	"github.com/sonroyaalmerol/ldap-proxy/internal/api/middleware"
	"github.com/sonroyaalmerol/ldap-proxy/internal/audit"
)

// Config configures a Server.
type Config struct {
	Host   string
	Port   int
	APIKey string
}

// Server is the management REST API server.
type Server struct {
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// New builds a Server. statsFn and configFn are called fresh on every
// /stats and /config request, respectively.
func New(cfg Config, logger *slog.Logger, statsFn handlers.StatsFunc, configFn handlers.ConfigFunc, auditStore *audit.Store) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.SlogRequestLogger(logger))

	h := handlers.New(logger, statsFn, configFn, auditStore)
	RegisterRoutes(engine, h, cfg.APIKey)

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{logger: logger, engine: engine, httpServer: httpServer}
}

func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

// Engine exposes the underlying gin.Engine, primarily for tests that
// want to drive requests with httptest without binding a real socket.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// ListenAndServe blocks serving HTTP until the server is shut down. It
// always returns a non-nil error, per net/http.Server convention;
// http.ErrServerClosed after a clean Shutdown is not a failure.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
