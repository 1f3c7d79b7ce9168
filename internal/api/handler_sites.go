package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetSites handles the GET /api/sites request.
func (h *Handler) GetSites(c *gin.Context) {
	sites, err := h.sites.Sites(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve sites"})
		return
	}
	c.JSON(http.StatusOK, sites)
}
