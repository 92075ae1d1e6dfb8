package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tourplanner/tourplanner-backend/internal/users"
)

type Handler struct {
	dir users.Directory
}

// Register attaches the caller's profile routes. rg must run WithUser.
func Register(rg *gin.RouterGroup, dir users.Directory) {
	h := &Handler{dir: dir}

	rg.GET("/me", h.getProfile)
	rg.PUT("/me", h.updateProfile)
}

func (h *Handler) getProfile(c *gin.Context) {
	contact, err := h.dir.Contact(c.Request.Context(), UserID(c))
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": contact})
}

type profileReq struct {
	Email          string `json:"email"`
	DisplayName    string `json:"display_name"`
	WhatsAppNumber string `json:"whatsapp_number"`
}

// updateProfile sets contact fields used for notifications. Empty fields
// keep their stored value.
func (h *Handler) updateProfile(c *gin.Context) {
	var req profileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid email"})
		return
	}

	contact, err := h.dir.EnsureUser(c.Request.Context(), users.UpsertUser{
		ID:             UserID(c),
		Email:          email,
		DisplayName:    strings.TrimSpace(req.DisplayName),
		WhatsAppNumber: strings.TrimSpace(req.WhatsAppNumber),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": contact})
}
