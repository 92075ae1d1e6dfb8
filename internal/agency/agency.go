package agency

import (
	"context"
	"errors"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

var (
	ErrNotFound = errors.New("agency not found")
	// ErrNotOwner means the profile was claimed by another user.
	ErrNotOwner = errors.New("agency profile belongs to another user")
)

// Profile is an agency's branding as stored.
type Profile struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	LogoURL        string `json:"logo_url,omitempty"`
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	FooterNote     string `json:"footer_note,omitempty"`
	PoweredBy      string `json:"powered_by,omitempty"`
	OwnerID        string `json:"owner_id,omitempty"`
}

func (p Profile) Branding() domain.Branding {
	return domain.Branding{
		DisplayName:    p.DisplayName,
		LogoURL:        p.LogoURL,
		PrimaryColor:   p.PrimaryColor,
		SecondaryColor: p.SecondaryColor,
		FooterNote:     p.FooterNote,
		PoweredBy:      p.PoweredBy,
	}
}

// Store persists agency profiles.
type Store interface {
	Get(ctx context.Context, id string) (Profile, error)
	// Upsert creates the profile owned by p.OwnerID, or updates it when
	// p.OwnerID already owns it. Anyone else gets ErrNotOwner.
	Upsert(ctx context.Context, p Profile) (Profile, error)
}
