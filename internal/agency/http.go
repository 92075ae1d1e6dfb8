package agency

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tourplanner/tourplanner-backend/internal/auth"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

type Handler struct {
	store Store
}

func Register(rg *gin.RouterGroup, store Store) {
	h := &Handler{store: store}

	rg.GET("/:agency_id/branding", h.get)
	rg.PUT("/:agency_id/branding", h.put)
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.store.Get(c.Request.Context(), c.Param("agency_id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "agency not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "agency": p})
}

func (h *Handler) put(c *gin.Context) {
	var req Profile
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	req.ID = c.Param("agency_id")
	req.OwnerID = auth.UserID(c)
	if req.OwnerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthenticated"})
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "display_name is required"})
		return
	}
	for _, col := range []string{req.PrimaryColor, req.SecondaryColor} {
		if col != "" && !domain.IsHexColor(col) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "colours must be hex values like #1F4E79"})
			return
		}
	}

	p, err := h.store.Upsert(c.Request.Context(), req)
	if errors.Is(err, ErrNotOwner) {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "agency": p})
}
