package bootstrap

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/tourplanner/tourplanner-backend/config"
	"github.com/tourplanner/tourplanner-backend/internal/agency"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/collab"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/pricing"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/render"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/repository"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/service"
	"github.com/tourplanner/tourplanner-backend/internal/notification"
	"github.com/tourplanner/tourplanner-backend/internal/platform/logger"
	"github.com/tourplanner/tourplanner-backend/internal/portal"
	"github.com/tourplanner/tourplanner-backend/internal/users"
)

// Components is the wired application graph shared by the API and tests.
type Components struct {
	Itineraries *service.ItineraryService
	Users       users.Directory
	Agencies    agency.Store
	Portal      *portal.Service
}

type itineraryStores interface {
	repository.ItineraryStore
	repository.VersionStore
	repository.CollabStore
}

// NewComponents wires the service graph. A nil db selects in-memory stores;
// a nil rdb disables caching and notifications.
func NewComponents(cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client, log *logger.Logger) Components {
	var (
		stores   itineraryStores
		dir      users.Directory
		agencies agency.Store
		invites  portal.Store
	)
	if db != nil {
		stores = repository.NewPostgres(db)
		dir = users.NewRepo(db)
		agencies = agency.NewRepo(db)
		invites = portal.NewRepo(db)
	} else {
		log.Warn("no database configured, using in-memory stores")
		stores = repository.NewMemory()
		dir = users.NewMemory()
		agencies = agency.NewMemory()
		invites = portal.NewMemory()
	}

	ledger := collab.NewLedger(stores, stores, stores)
	renderer := render.NewRenderer(render.DefaultLayouts())

	deps := service.Deps{
		Itineraries: stores,
		Versions:    stores,
		Ledger:      ledger,
		Calculator: pricing.NewCalculator(pricing.Options{
			AllowPremium:  cfg.Pricing.AllowPremium,
			MaxPercentage: decimal.NewFromFloat(cfg.Pricing.MaxPercentage),
		}),
		Renderer:      renderer,
		Agencies:      agencies,
		NotifyTimeout: cfg.Notify.EnqueueTimeout,
		Logger:        log,
	}
	if rdb != nil {
		deps.Renderer = render.NewCachedRenderer(renderer, rdb, cfg.Render.CacheTTL, log)
		agencies = agency.NewCachedStore(agencies, rdb, cfg.Render.CacheTTL, log)
		deps.Agencies = agencies
		deps.Notifier = notification.NewDispatcher(notification.NewQueue(rdb), ledger, log)
	}

	itineraries := service.NewItineraryService(deps)
	return Components{
		Itineraries: itineraries,
		Users:       dir,
		Agencies:    agencies,
		Portal: portal.NewService(invites, itineraries, portal.Options{
			BaseURL:   cfg.Portal.BaseURL,
			InviteTTL: cfg.Portal.InviteTTL,
			MaxTTL:    cfg.Portal.MaxInviteTTL,
		}, log),
	}
}
