package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"geoattend-backend/internal/model"
	"geoattend-backend/internal/session"
	"geoattend-backend/internal/store"
)

// GetAttendanceLogs handles GET /api/attendance/:user_id.
func (h *Handler) GetAttendanceLogs(c *gin.Context) {
	userID := c.Param("user_id")

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	records, err := h.store.QueryByUser(c.Request.Context(), userID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve attendance logs"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// sessionResponse is the controller's externally visible state.
type sessionResponse struct {
	State      session.State `json:"state"`
	TargetSite *int64        `json:"targetSiteId,omitempty"`
	InsideSite *int64        `json:"insideSiteId,omitempty"`
}

// GetSession handles GET /api/attendance/:user_id/session.
func (h *Handler) GetSession(c *gin.Context) {
	ctrl, err := h.controller(c)
	if err != nil {
		return
	}

	resp := sessionResponse{State: ctrl.State()}
	if target := ctrl.Target(); target != nil {
		resp.TargetSite = &target.ID
	}
	if inside := ctrl.Inside(); inside != nil {
		resp.InsideSite = &inside.ID
	}
	c.JSON(http.StatusOK, resp)
}

type selectSiteRequest struct {
	SiteID int64 `json:"site_id" binding:"required"`
}

// SelectSite handles POST /api/attendance/:user_id/select-site.
func (h *Handler) SelectSite(c *gin.Context) {
	var req selectSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	siteList, err := h.sites.Sites(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve sites"})
		return
	}
	var target *model.Site
	for i := range siteList {
		if siteList[i].ID == req.SiteID {
			target = &siteList[i]
			break
		}
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
		return
	}

	ctrl, err := h.controller(c)
	if err != nil {
		return
	}
	if err := ctrl.SelectSite(*target); err != nil {
		respondSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CheckIn handles POST /api/attendance/:user_id/checkin.
func (h *Handler) CheckIn(c *gin.Context) {
	ctrl, err := h.controller(c)
	if err != nil {
		return
	}

	record, err := ctrl.CheckIn(c.Request.Context())
	if err != nil {
		respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// CheckOut handles POST /api/attendance/:user_id/checkout.
func (h *Handler) CheckOut(c *gin.Context) {
	ctrl, err := h.controller(c)
	if err != nil {
		return
	}
	if err := ctrl.CheckOut(c.Request.Context()); err != nil {
		respondSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ConfirmCheckOut handles POST /api/attendance/:user_id/checkout/confirm.
func (h *Handler) ConfirmCheckOut(c *gin.Context) {
	ctrl, err := h.controller(c)
	if err != nil {
		return
	}
	if err := ctrl.ConfirmCheckOut(c.Request.Context()); err != nil {
		respondSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeclineCheckOut handles POST /api/attendance/:user_id/checkout/decline.
func (h *Handler) DeclineCheckOut(c *gin.Context) {
	ctrl, err := h.controller(c)
	if err != nil {
		return
	}
	if err := ctrl.DeclineCheckOut(); err != nil {
		respondSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// controller resolves the session controller for the path's user,
// writing the error response itself on failure.
func (h *Handler) controller(c *gin.Context) (*session.Controller, error) {
	userID := c.Param("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return nil, errors.New("missing user_id")
	}

	ctrl, err := h.sessions.Get(c.Request.Context(), userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
		return nil, err
	}
	return ctrl, nil
}

// respondSessionError maps controller and store errors onto HTTP codes.
func respondSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotInZone):
		c.JSON(http.StatusConflict, gin.H{"error": "Not within geofence"})
	case errors.Is(err, session.ErrAlreadyCheckedIn):
		c.JSON(http.StatusConflict, gin.H{"error": "Already checked in"})
	case errors.Is(err, session.ErrNoOpenSession):
		c.JSON(http.StatusConflict, gin.H{"error": "No open session"})
	case errors.Is(err, session.ErrCheckoutNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "No checkout awaiting confirmation"})
	case errors.Is(err, session.ErrNoTargetSite):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No target site selected"})
	case errors.Is(err, store.ErrDuplicateRecord):
		c.JSON(http.StatusConflict, gin.H{"error": "Duplicate record"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Check-in/out failed - try again"})
	}
}
