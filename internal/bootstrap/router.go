package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/tourplanner/tourplanner-backend/internal/api/http"
	"github.com/tourplanner/tourplanner-backend/internal/api/http/middleware"
	"github.com/tourplanner/tourplanner-backend/internal/api/http/routes"
	"github.com/tourplanner/tourplanner-backend/internal/auth"
	"github.com/tourplanner/tourplanner-backend/internal/platform/logger"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	CORSOrigins []string
	DB          *pgxpool.Pool
	Redis       *redis.Client
	Components  Components
	Auth        auth.Options
	// RenderRate is requests per second per actor; zero disables limiting.
	RenderRate  float64
	RenderBurst int
	Logger      *logger.Logger
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware(dep.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     dep.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id", "X-User-Id", "X-User-Email", "X-User-Name", "X-User-WhatsApp"},
		ExposeHeaders:    []string{"X-Request-Id", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	var limiter *middleware.RateLimiter
	if dep.RenderRate > 0 {
		limiter = middleware.NewRateLimiter(dep.RenderRate, dep.RenderBurst, routes.ActorKey)
	}

	routes.RegisterV1(r, routes.V1Deps{
		Itineraries:   dep.Components.Itineraries,
		Users:         dep.Components.Users,
		Agencies:      dep.Components.Agencies,
		Portal:        dep.Components.Portal,
		Auth:          dep.Auth,
		RenderLimiter: limiter,
		Logger:        dep.Logger,
	})

	return r
}
