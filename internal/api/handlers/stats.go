package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sonroyaalmerol/ldap-proxy/internal/api/models"
)

// Stats godoc
// @Summary Runtime statistics
// @Description Active session count, cache hit/miss counters, upstream health state.
// @Tags system
// @Produce json
// @Success 200 {object} models.StatsResponse
// @Security ApiKeyAuth
// @Router /stats [get]
func (h *Handler) Stats(c *gin.Context) {
	resp := h.stats()

	uptime := time.Since(h.startTime)
	resp.Uptime = uptime.Round(time.Second).String()
	resp.UptimeSeconds = int64(uptime.Seconds())
	resp.StartTime = h.startTime
	resp.NumCPU = runtime.NumCPU()
	resp.NumGoroutine = runtime.NumGoroutine()

	c.JSON(http.StatusOK, resp)
}
