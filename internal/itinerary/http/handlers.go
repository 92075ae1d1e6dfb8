package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tourplanner/tourplanner-backend/internal/auth"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/render"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/service"
)

func (h *Handler) create(c *gin.Context) {
	var req itineraryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	v, err := h.svc.CreateItinerary(c.Request.Context(), auth.UserID(c), req.toDomain())
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "version": v})
}

func (h *Handler) list(c *gin.Context) {
	agencyID := strings.TrimSpace(c.Query("agency_id"))
	if agencyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "agency_id is required"})
		return
	}
	items, err := h.svc.ListItineraries(c.Request.Context(), auth.UserID(c), agencyID)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "itineraries": items})
}

func (h *Handler) get(c *gin.Context) {
	it, err := h.svc.GetItinerary(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "itinerary": it})
}

func (h *Handler) update(c *gin.Context) {
	var req itineraryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	v, err := h.svc.UpdateItinerary(c.Request.Context(), auth.UserID(c), c.Param("id"), req.toDomain())
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "version": v})
}

func (h *Handler) archive(c *gin.Context) {
	if err := h.svc.ArchiveItinerary(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) duplicate(c *gin.Context) {
	v, err := h.svc.DuplicateItinerary(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "version": v})
}

func (h *Handler) pricing(c *gin.Context) {
	snap, err := h.svc.ComputePricing(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "pricing": snap})
}

func (h *Handler) commitVersion(c *gin.Context) {
	v, err := h.svc.CommitVersion(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "version": v})
}

func (h *Handler) listVersions(c *gin.Context) {
	seq, err := h.svc.ListVersions(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	versions := []domain.Version{}
	for v, err := range seq {
		if err != nil {
			WriteError(c, err)
			return
		}
		versions = append(versions, v)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "versions": versions})
}

func (h *Handler) getVersion(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "version must be a positive integer"})
		return
	}
	v, err := h.svc.GetVersion(c.Request.Context(), auth.UserID(c), c.Param("id"), n)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "version": v})
}

// print streams one rendered document. version is optional and defaults to
// the latest.
func (h *Handler) print(c *gin.Context) {
	req, err := renderRequest(c)
	if err != nil {
		WriteError(c, err)
		return
	}

	doc, err := h.svc.RenderDocument(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

func (h *Handler) preview(c *gin.Context) {
	format, err := render.ParseFormat(c.Query("format"))
	if err != nil {
		WriteError(c, err)
		return
	}
	docs, err := h.svc.PreviewLayouts(c.Request.Context(), auth.UserID(c), c.Param("id"), format)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "documents": docs})
}

func renderRequest(c *gin.Context) (service.RenderRequest, error) {
	req := service.RenderRequest{
		ItineraryID: c.Param("id"),
		Layout:      c.DefaultQuery("layout", "classic"),
		Branding: domain.BrandingOverride{
			LogoURL:        c.Query("logo_url"),
			PrimaryColor:   c.Query("primary_color"),
			SecondaryColor: c.Query("secondary_color"),
		},
	}

	format, err := render.ParseFormat(c.Query("format"))
	if err != nil {
		return req, err
	}
	req.Format = format

	if raw := c.Query("version"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return req, fmt.Errorf("%w: version must be a positive integer", domain.ErrValidation)
		}
		req.Version = n
	}
	for _, col := range []string{req.Branding.PrimaryColor, req.Branding.SecondaryColor} {
		if col != "" && !domain.IsHexColor(col) {
			return req, fmt.Errorf("%w: colour %q must be a hex value", domain.ErrValidation, col)
		}
	}
	return req, nil
}

func (h *Handler) transition(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	it, err := h.svc.TransitionStatus(c.Request.Context(), auth.UserID(c), c.Param("id"), req.Status)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "itinerary": it})
}

func (h *Handler) upsertCollaborator(c *gin.Context) {
	var req collaboratorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	collab, err := h.svc.AddCollaborator(c.Request.Context(), auth.UserID(c), c.Param("id"), c.Param("user_id"), req.Role)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "collaborator": collab})
}

func (h *Handler) listCollaborators(c *gin.Context) {
	list, err := h.svc.ListCollaborators(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "collaborators": list})
}

func (h *Handler) addComment(c *gin.Context) {
	var req commentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	comment, err := h.svc.AddComment(c.Request.Context(), auth.UserID(c), c.Param("id"), req.VersionNumber, req.Body)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "comment": comment})
}

func (h *Handler) listComments(c *gin.Context) {
	list, err := h.svc.ListComments(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "comments": list})
}

func (h *Handler) resolveComment(c *gin.Context) {
	comment, err := h.svc.ResolveComment(c.Request.Context(), auth.UserID(c), c.Param("comment_id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "comment": comment})
}
