package http

import (
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/service"
)

// Handler bundles the dependencies for itinerary HTTP endpoints.
type Handler struct {
	svc *service.ItineraryService
}

func New(svc *service.ItineraryService) *Handler {
	return &Handler{svc: svc}
}

// itineraryReq carries the editable fields. Workflow fields are owned by the
// server and ignored if sent.
type itineraryReq struct {
	AgencyID  string                  `json:"agency_id"`
	ClientRef string                  `json:"client_ref"`
	Title     string                  `json:"title"`
	StartDate string                  `json:"start_date"`
	EndDate   string                  `json:"end_date"`
	Currency  string                  `json:"currency"`
	Days      []domain.DayPlan        `json:"days"`
	Notes     []domain.Note           `json:"notes"`
	Markup    domain.MarkupPolicy     `json:"markup"`
	Branding  domain.BrandingOverride `json:"branding"`
}

func (r itineraryReq) toDomain() domain.Itinerary {
	return domain.Itinerary{
		AgencyID:  r.AgencyID,
		ClientRef: r.ClientRef,
		Title:     r.Title,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Currency:  r.Currency,
		Days:      r.Days,
		Notes:     r.Notes,
		Markup:    r.Markup,
		Branding:  r.Branding,
	}
}

type statusReq struct {
	Status domain.Status `json:"status"`
}

type collaboratorReq struct {
	Role domain.Role `json:"role"`
}

type commentReq struct {
	VersionNumber int    `json:"version_number"`
	Body          string `json:"body"`
}
