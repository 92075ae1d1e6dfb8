package portal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionDeclined Decision = "declined"
)

// Invitation lets a traveler without an account review one version of an
// itinerary and approve or decline it. The token is the only credential.
type Invitation struct {
	Token         string     `json:"token"`
	ItineraryID   string     `json:"itinerary_id"`
	VersionNumber int        `json:"version_number"`
	ClientEmail   string     `json:"client_email,omitempty"`
	InvitedBy     string     `json:"invited_by"`
	ExpiresAt     time.Time  `json:"expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
	ViewCount     int        `json:"view_count"`
	LastViewedAt  *time.Time `json:"last_viewed_at,omitempty"`
	Decision      Decision   `json:"decision"`
	DecisionNote  string     `json:"decision_note,omitempty"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
}

func (inv Invitation) Expired(now time.Time) bool {
	return !now.Before(inv.ExpiresAt)
}

// Store persists invitations. Lookups by unknown token fail with
// domain.ErrNotFound.
type Store interface {
	Create(ctx context.Context, inv Invitation) error
	Get(ctx context.Context, token string) (Invitation, error)
	ListByItinerary(ctx context.Context, itineraryID string) ([]Invitation, error)
	RecordView(ctx context.Context, token string, at time.Time) (Invitation, error)
	// Decide records d once. A second decision fails with
	// domain.ErrInvalidStateTransition.
	Decide(ctx context.Context, token string, d Decision, note string, at time.Time) (Invitation, error)
	Delete(ctx context.Context, token string) error
}

// View is what the traveler sees: the itinerary without supplier costs,
// the client price and the invitation state.
type View struct {
	Token           string          `json:"token"`
	Decision        Decision        `json:"decision"`
	ExpiresAt       time.Time       `json:"expires_at"`
	Status          domain.Status   `json:"status"`
	VersionNumber   int             `json:"version_number"`
	Itinerary       TravelerPlan    `json:"itinerary"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	ExtensionsTotal decimal.Decimal `json:"extensions_total"`
	Currency        string          `json:"currency"`
	Layouts         []string        `json:"available_documents"`
}

type TravelerPlan struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	StartDate  string             `json:"start_date,omitempty"`
	EndDate    string             `json:"end_date,omitempty"`
	Days       []TravelerDay      `json:"days"`
	Notes      []domain.Note      `json:"notes,omitempty"`
	Extensions []domain.Extension `json:"extensions,omitempty"`
}

type TravelerDay struct {
	Position int            `json:"position"`
	Date     string         `json:"date,omitempty"`
	Title    string         `json:"title"`
	ImageURL string         `json:"image_url,omitempty"`
	Items    []TravelerItem `json:"items"`
}

type TravelerItem struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Category    string `json:"category"`
}

// travelerPlan drops line costs and supplier references.
func travelerPlan(it domain.Itinerary) TravelerPlan {
	out := TravelerPlan{
		ID:         it.ID,
		Title:      it.Title,
		StartDate:  it.StartDate,
		EndDate:    it.EndDate,
		Days:       make([]TravelerDay, 0, len(it.Days)),
		Notes:      it.Notes,
		Extensions: it.Extensions,
	}
	for _, d := range it.Days {
		day := TravelerDay{Position: d.Position, Date: d.Date, Title: d.Title, ImageURL: d.ImageURL,
			Items: make([]TravelerItem, 0, len(d.Items))}
		for _, item := range d.Items {
			day.Items = append(day.Items, TravelerItem{
				Title:       item.Title,
				Description: item.Description,
				Location:    item.Location,
				StartTime:   item.StartTime,
				EndTime:     item.EndTime,
				Category:    item.Category,
			})
		}
		out.Days = append(out.Days, day)
	}
	return out
}
