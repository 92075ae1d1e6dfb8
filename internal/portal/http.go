package portal

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tourplanner/tourplanner-backend/internal/auth"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
	itineraryhttp "github.com/tourplanner/tourplanner-backend/internal/itinerary/http"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/render"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterInvitations attaches the agent-side routes. rg must sit behind
// the auth middleware.
func (h *Handler) RegisterInvitations(rg *gin.RouterGroup) {
	rg.POST("/itineraries/:id/invitations", h.invite)
	rg.GET("/itineraries/:id/invitations", h.list)
	rg.DELETE("/itineraries/:id/invitations/:token", h.revoke)
}

// RegisterPublic attaches the traveler routes. The token is the only
// credential. renderMW runs in front of the document endpoints.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup, renderMW ...gin.HandlerFunc) {
	rg.GET("/:token", h.view)
	rg.GET("/:token/page", chain(renderMW, h.page)...)
	rg.GET("/:token/document", chain(renderMW, h.document)...)
	rg.POST("/:token/decision", h.decide)
}

func chain(mw []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	return append(append(out, mw...), h)
}

type inviteReq struct {
	Version     int    `json:"version"`
	ClientEmail string `json:"client_email"`
	TTLHours    int    `json:"ttl_hours"`
}

func (h *Handler) invite(c *gin.Context) {
	var req inviteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	if req.Version < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "version must not be negative"})
		return
	}

	inv, err := h.svc.Invite(c.Request.Context(), auth.UserID(c), c.Param("id"), InviteRequest{
		Version:     req.Version,
		ClientEmail: req.ClientEmail,
		TTL:         time.Duration(req.TTLHours) * time.Hour,
	})
	if err != nil {
		itineraryhttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "invitation": inv, "url": h.svc.Link(inv.Token)})
}

func (h *Handler) list(c *gin.Context) {
	invs, err := h.svc.List(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		itineraryhttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "invitations": invs})
}

func (h *Handler) revoke(c *gin.Context) {
	if err := h.svc.Revoke(c.Request.Context(), auth.UserID(c), c.Param("id"), c.Param("token")); err != nil {
		itineraryhttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) view(c *gin.Context) {
	v, err := h.svc.View(c.Request.Context(), c.Param("token"))
	if err != nil {
		itineraryhttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "portal": v})
}

// page is the browser entry point the printed link and QR code lead to.
func (h *Handler) page(c *gin.Context) {
	h.serve(c, c.DefaultQuery("layout", "classic"), render.FormatHTML)
}

func (h *Handler) document(c *gin.Context) {
	format, err := render.ParseFormat(c.Query("format"))
	if err != nil {
		itineraryhttp.WriteError(c, err)
		return
	}
	h.serve(c, c.DefaultQuery("layout", "classic"), format)
}

func (h *Handler) serve(c *gin.Context, layout string, format render.Format) {
	doc, err := h.svc.Document(c.Request.Context(), c.Param("token"), layout, format)
	if err != nil {
		itineraryhttp.WriteError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

type decisionReq struct {
	Decision string `json:"decision"`
	Note     string `json:"note"`
}

func (h *Handler) decide(c *gin.Context) {
	var req decisionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	d := Decision(strings.ToLower(strings.TrimSpace(req.Decision)))
	if d != DecisionApproved && d != DecisionDeclined {
		itineraryhttp.WriteError(c, fmt.Errorf("%w: decision must be approved or declined", domain.ErrValidation))
		return
	}

	inv, err := h.svc.Decide(c.Request.Context(), c.Param("token"), d, req.Note)
	if err != nil {
		itineraryhttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "invitation": inv})
}
