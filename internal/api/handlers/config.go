package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetConfig godoc
// @Summary Sanitized config dump
// @Description Never includes the API key or TLS private key — both are redacted.
// @Tags system
// @Produce json
// @Success 200 {object} models.ConfigSnapshot
// @Security ApiKeyAuth
// @Router /config [get]
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.configure())
}
