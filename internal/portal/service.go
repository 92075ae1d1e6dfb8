package portal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/render"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/service"
	"github.com/tourplanner/tourplanner-backend/internal/platform/logger"
)

// Itineraries is the part of the itinerary service the portal drives.
// Traveler requests run with the rights of the agent who sent the invitation.
type Itineraries interface {
	Authorize(ctx context.Context, actor, id string, need domain.Role) (domain.Itinerary, error)
	GetVersion(ctx context.Context, actor, id string, n int) (domain.Version, error)
	RenderDocument(ctx context.Context, actor string, req service.RenderRequest) (render.Document, error)
	TransitionStatus(ctx context.Context, actor, id string, to domain.Status) (domain.Itinerary, error)
	Layouts() []string
}

type Options struct {
	BaseURL   string
	InviteTTL time.Duration
	MaxTTL    time.Duration
}

type Service struct {
	store       Store
	itineraries Itineraries
	opts        Options
	log         *logger.Logger
	now         func() time.Time
}

func NewService(store Store, itineraries Itineraries, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if opts.InviteTTL <= 0 {
		opts.InviteTTL = 7 * 24 * time.Hour
	}
	if opts.MaxTTL < opts.InviteTTL {
		opts.MaxTTL = opts.InviteTTL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Service{store: store, itineraries: itineraries, opts: opts, log: log, now: time.Now}
}

type InviteRequest struct {
	Version     int
	ClientEmail string
	TTL         time.Duration
}

// Invite issues a token for one version of a sent itinerary. Version 0
// means the latest. Only approvers can invite, since the traveler's answer
// is recorded in their name.
func (s *Service) Invite(ctx context.Context, actor, itineraryID string, req InviteRequest) (Invitation, error) {
	it, err := s.itineraries.Authorize(ctx, actor, itineraryID, domain.RoleApprover)
	if err != nil {
		return Invitation{}, err
	}
	if it.Archived {
		return Invitation{}, fmt.Errorf("%w: itinerary is archived", domain.ErrNotFound)
	}
	if it.Status != domain.StatusSent {
		return Invitation{}, fmt.Errorf("%w: only sent itineraries can be shared, status is %s",
			domain.ErrInvalidStateTransition, it.Status)
	}

	ttl := req.TTL
	switch {
	case ttl < 0:
		return Invitation{}, fmt.Errorf("%w: ttl must be positive", domain.ErrValidation)
	case ttl == 0:
		ttl = s.opts.InviteTTL
	case ttl > s.opts.MaxTTL:
		return Invitation{}, fmt.Errorf("%w: ttl exceeds %s", domain.ErrValidation, s.opts.MaxTTL)
	}

	v, err := s.itineraries.GetVersion(ctx, actor, itineraryID, req.Version)
	if err != nil {
		return Invitation{}, err
	}

	now := s.now().UTC()
	inv := Invitation{
		Token:         uuid.NewString(),
		ItineraryID:   itineraryID,
		VersionNumber: v.Number,
		ClientEmail:   strings.TrimSpace(req.ClientEmail),
		InvitedBy:     actor,
		ExpiresAt:     now.Add(ttl),
		CreatedAt:     now,
		Decision:      DecisionPending,
	}
	if err := s.store.Create(ctx, inv); err != nil {
		return Invitation{}, err
	}
	logger.FromContext(ctx, s.log).Info("portal invitation issued",
		"itinerary_id", itineraryID, "version", v.Number, "invited_by", actor)
	return inv, nil
}

func (s *Service) List(ctx context.Context, actor, itineraryID string) ([]Invitation, error) {
	if _, err := s.itineraries.Authorize(ctx, actor, itineraryID, domain.RoleViewer); err != nil {
		return nil, err
	}
	return s.store.ListByItinerary(ctx, itineraryID)
}

func (s *Service) Revoke(ctx context.Context, actor, itineraryID, token string) error {
	if _, err := s.itineraries.Authorize(ctx, actor, itineraryID, domain.RoleApprover); err != nil {
		return err
	}
	inv, err := s.store.Get(ctx, token)
	if err != nil {
		return err
	}
	if inv.ItineraryID != itineraryID {
		return fmt.Errorf("%w: invitation", domain.ErrNotFound)
	}
	return s.store.Delete(ctx, token)
}

// Link is the traveler-facing page URL for token.
func (s *Service) Link(token string) string {
	return s.opts.BaseURL + "/portal/" + token + "/page"
}

// open resolves a live invitation.
func (s *Service) open(ctx context.Context, token string) (Invitation, error) {
	inv, err := s.store.Get(ctx, token)
	if err != nil {
		return Invitation{}, err
	}
	if inv.Expired(s.now()) {
		return Invitation{}, fmt.Errorf("%w: invitation expired at %s", domain.ErrExpired, inv.ExpiresAt.Format(time.RFC3339))
	}
	return inv, nil
}

// View returns the shared version without supplier costs and counts the
// visit.
func (s *Service) View(ctx context.Context, token string) (View, error) {
	inv, err := s.open(ctx, token)
	if err != nil {
		return View{}, err
	}
	it, err := s.itineraries.Authorize(ctx, inv.InvitedBy, inv.ItineraryID, domain.RoleViewer)
	if err != nil {
		return View{}, err
	}
	v, err := s.itineraries.GetVersion(ctx, inv.InvitedBy, inv.ItineraryID, inv.VersionNumber)
	if err != nil {
		return View{}, err
	}
	if inv, err = s.store.RecordView(ctx, token, s.now()); err != nil {
		return View{}, err
	}
	return View{
		Token:           inv.Token,
		Decision:        inv.Decision,
		ExpiresAt:       inv.ExpiresAt,
		Status:          it.Status,
		VersionNumber:   v.Number,
		Itinerary:       travelerPlan(v.Content),
		TotalPrice:      v.Pricing.SellPrice,
		ExtensionsTotal: v.Pricing.ExtensionsTotal,
		Currency:        v.Pricing.Currency,
		Layouts:         s.itineraries.Layouts(),
	}, nil
}

// Document renders the shared version with the portal link printed on it.
func (s *Service) Document(ctx context.Context, token, layout string, format render.Format) (render.Document, error) {
	inv, err := s.open(ctx, token)
	if err != nil {
		return render.Document{}, err
	}
	return s.itineraries.RenderDocument(ctx, inv.InvitedBy, service.RenderRequest{
		ItineraryID: inv.ItineraryID,
		Version:     inv.VersionNumber,
		Layout:      layout,
		Format:      format,
		PortalURL:   s.Link(token),
	})
}

// Decide records the traveler's answer. Approval moves the itinerary from
// sent to approved; a decline sends it back to draft. The answer only
// counts for the version the traveler was shown.
func (s *Service) Decide(ctx context.Context, token string, d Decision, note string) (Invitation, error) {
	if d != DecisionApproved && d != DecisionDeclined {
		return Invitation{}, fmt.Errorf("%w: decision must be approved or declined", domain.ErrValidation)
	}
	inv, err := s.open(ctx, token)
	if err != nil {
		return Invitation{}, err
	}
	if inv.Decision != DecisionPending {
		return Invitation{}, fmt.Errorf("%w: invitation already %s", domain.ErrInvalidStateTransition, inv.Decision)
	}
	latest, err := s.itineraries.GetVersion(ctx, inv.InvitedBy, inv.ItineraryID, 0)
	if err != nil {
		return Invitation{}, err
	}
	if latest.Number != inv.VersionNumber {
		return Invitation{}, fmt.Errorf("%w: itinerary changed since version %d was shared",
			domain.ErrInvalidStateTransition, inv.VersionNumber)
	}

	it, err := s.itineraries.Authorize(ctx, inv.InvitedBy, inv.ItineraryID, domain.RoleViewer)
	if err != nil {
		return Invitation{}, err
	}
	// The ledger only allows each transition once, so two answers racing on
	// the same itinerary cannot both move it.
	switch {
	case d == DecisionApproved:
		_, err = s.itineraries.TransitionStatus(ctx, inv.InvitedBy, inv.ItineraryID, domain.StatusApproved)
	case it.Status == domain.StatusSent:
		_, err = s.itineraries.TransitionStatus(ctx, inv.InvitedBy, inv.ItineraryID, domain.StatusDraft)
	case it.Status == domain.StatusApproved:
		err = domain.ErrItineraryLocked
	}
	if err != nil {
		return Invitation{}, err
	}

	inv, err = s.store.Decide(ctx, token, d, strings.TrimSpace(note), s.now())
	if err != nil {
		return Invitation{}, err
	}
	logger.FromContext(ctx, s.log).Info("portal decision recorded",
		"itinerary_id", inv.ItineraryID, "version", inv.VersionNumber, "decision", string(d))
	return inv, nil
}
