package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sonroyaalmerol/ldap-proxy/internal/api/models"
)

// RecentAudit godoc
// @Summary Tail of the audit log
// @Description Read-only; the audit log has no write or delete endpoints.
// @Tags audit
// @Produce json
// @Param limit query int false "max events to return (default 100)"
// @Success 200 {object} models.AuditRecentResponse
// @Security ApiKeyAuth
// @Router /audit/recent [get]
func (h *Handler) RecentAudit(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	if h.auditLog == nil {
		c.JSON(http.StatusOK, models.AuditRecentResponse{Events: []models.AuditEvent{}})
		return
	}

	events, err := h.auditLog.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	out := make([]models.AuditEvent, len(events))
	for i, e := range events {
		out[i] = models.AuditEvent{
			OccurredAt: e.OccurredAt,
			ConnID:     e.ConnID,
			RemoteAddr: e.RemoteAddr,
			Kind:       string(e.Kind),
			BindDN:     e.BindDN,
			Base:       e.Base,
			Scope:      e.Scope,
			Filter:     e.Filter,
			Decision:   string(e.Decision),
			Detail:     e.Detail,
		}
	}

	c.JSON(http.StatusOK, models.AuditRecentResponse{Events: out})
}
