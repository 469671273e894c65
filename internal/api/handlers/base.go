// Package handlers implements the management API's endpoint handlers.
//
// @title ldap-proxy Management API
// @version 1.0
// @description Read-only observability API for the LDAP fallback proxy: liveness, runtime stats, a sanitized config dump, and a tail of the audit log.
//
// @license.name MIT
//
// @host localhost:8080
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package handlers

import (
	"log/slog"
	"time"

	"github.com/sonroyaalmerol/ldap-proxy/internal/api/models"
	"github.com/sonroyaalmerol/ldap-proxy/internal/audit"
)

// StatsFunc produces a fresh runtime stats snapshot on each call.
type StatsFunc func() models.StatsResponse

// ConfigFunc produces the sanitized config snapshot.
type ConfigFunc func() models.ConfigSnapshot

// Handler holds dependencies shared by every API endpoint. It is built
// with plain function values rather than concrete package types so this
// package never needs to import internal/config, internal/session, or
// internal/upstream directly — the entrypoint wires those up once at
// startup.
type Handler struct {
	logger    *slog.Logger
	startTime time.Time

	stats     StatsFunc
	configure ConfigFunc
	auditLog  *audit.Store
}

// New creates a Handler. statsFn and configFn must not be nil;
// auditStore may be nil, in which case /audit/recent reports an empty
// page rather than failing.
func New(logger *slog.Logger, statsFn StatsFunc, configFn ConfigFunc, auditStore *audit.Store) *Handler {
	return &Handler{
		logger:    logger,
		startTime: time.Now(),
		stats:     statsFn,
		configure: configFn,
		auditLog:  auditStore,
	}
}
