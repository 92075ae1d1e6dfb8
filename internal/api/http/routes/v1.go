package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/tourplanner/tourplanner-backend/internal/agency"
	"github.com/tourplanner/tourplanner-backend/internal/api/http/middleware"
	"github.com/tourplanner/tourplanner-backend/internal/auth"
	itineraryhttp "github.com/tourplanner/tourplanner-backend/internal/itinerary/http"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/service"
	"github.com/tourplanner/tourplanner-backend/internal/platform/logger"
	"github.com/tourplanner/tourplanner-backend/internal/portal"
	"github.com/tourplanner/tourplanner-backend/internal/users"
)

type V1Deps struct {
	Itineraries *service.ItineraryService
	Users       users.Directory
	Agencies    agency.Store
	Portal      *portal.Service
	Auth        auth.Options
	// RenderLimiter throttles document rendering. Nil disables it.
	RenderLimiter *middleware.RateLimiter
	Logger        *logger.Logger
}

func RegisterV1(r *gin.Engine, dep V1Deps) {
	var renderMW []gin.HandlerFunc
	if dep.RenderLimiter != nil {
		renderMW = append(renderMW, dep.RenderLimiter.Middleware())
	}

	// Travelers have no account; the invitation token is their credential.
	portalHandler := portal.NewHandler(dep.Portal)
	portalHandler.RegisterPublic(r.Group("/api/v1/portal"), renderMW...)

	api := r.Group("/api/v1")
	api.Use(auth.WithUser(dep.Users, dep.Auth, dep.Logger))

	auth.Register(api, dep.Users)
	agency.Register(api.Group("/agencies"), dep.Agencies)
	itineraryhttp.New(dep.Itineraries).Register(api, renderMW...)
	portalHandler.RegisterInvitations(api)
}

// ActorKey charges rate limits to the authenticated user, falling back to
// the client address.
func ActorKey(c *gin.Context) string {
	if id := auth.UserID(c); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}
