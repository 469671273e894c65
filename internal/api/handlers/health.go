package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sonroyaalmerol/ldap-proxy/internal/api/models"
)

// Healthz godoc
// @Summary Process liveness
// @Tags system
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.StatusResponse
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}
