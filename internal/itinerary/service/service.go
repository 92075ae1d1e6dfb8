package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/tourplanner/tourplanner-backend/internal/agency"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/collab"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/pricing"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/render"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/repository"
	"github.com/tourplanner/tourplanner-backend/internal/notification"
	"github.com/tourplanner/tourplanner-backend/internal/platform/logger"
)

const (
	// commitAttempts bounds retries on ErrConcurrentCommitConflict.
	commitAttempts = 3

	defaultNotifyTimeout = 2 * time.Second
)

type Deps struct {
	Itineraries repository.ItineraryStore
	Versions    repository.VersionStore
	Ledger      *collab.Ledger
	Calculator  *pricing.Calculator
	Renderer    render.DocumentRenderer
	Agencies    agency.Store          // optional; nil renders default branding
	Notifier    notification.Notifier // optional
	// NotifyTimeout bounds how long a request waits on the notifier.
	NotifyTimeout time.Duration
	Logger        *logger.Logger
}

// ItineraryService orchestrates pricing, versioning, rendering and
// collaboration for the HTTP layer. Every method takes the acting user.
type ItineraryService struct {
	itineraries repository.ItineraryStore
	versions    repository.VersionStore
	ledger      *collab.Ledger
	calc        *pricing.Calculator
	renderer    render.DocumentRenderer
	agencies    agency.Store
	notifier    notification.Notifier
	notifyWait  time.Duration
	log         *logger.Logger
}

func NewItineraryService(d Deps) *ItineraryService {
	if d.Notifier == nil {
		d.Notifier = notification.NopNotifier{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.NotifyTimeout <= 0 {
		d.NotifyTimeout = defaultNotifyTimeout
	}
	return &ItineraryService{
		itineraries: d.Itineraries,
		versions:    d.Versions,
		ledger:      d.Ledger,
		calc:        d.Calculator,
		renderer:    d.Renderer,
		agencies:    d.Agencies,
		notifier:    d.Notifier,
		notifyWait:  d.NotifyTimeout,
		log:         d.Logger,
	}
}

// Authorize returns the itinerary when actor holds at least need on it.
func (s *ItineraryService) Authorize(ctx context.Context, actor, id string, need domain.Role) (domain.Itinerary, error) {
	return s.authorize(ctx, id, actor, need)
}

// authorize fails with ErrForbidden unless actor holds at least need on the
// itinerary. It also reports ErrNotFound for unknown itineraries.
func (s *ItineraryService) authorize(ctx context.Context, itineraryID, actor string, need domain.Role) (domain.Itinerary, error) {
	it, err := s.itineraries.GetItinerary(ctx, itineraryID)
	if err != nil {
		return domain.Itinerary{}, err
	}
	role, err := s.ledger.RoleOf(ctx, itineraryID, actor)
	if err != nil {
		return domain.Itinerary{}, err
	}
	if !role.AtLeast(need) {
		return domain.Itinerary{}, fmt.Errorf("%w: %s role required", domain.ErrForbidden, need)
	}
	return it, nil
}

func editable(it domain.Itinerary) error {
	if it.Status == domain.StatusApproved {
		return fmt.Errorf("%w: %s", domain.ErrItineraryLocked, it.ID)
	}
	if it.Archived {
		return fmt.Errorf("%w: %s is archived", domain.ErrItineraryLocked, it.ID)
	}
	return nil
}

func (s *ItineraryService) price(it domain.Itinerary) (domain.PricingSnapshot, error) {
	return s.calc.Quote(it)
}

// CreateItinerary stores a new draft, makes actor its approver and commits
// version 1.
func (s *ItineraryService) CreateItinerary(ctx context.Context, actor string, in domain.Itinerary) (domain.Version, error) {
	if strings.TrimSpace(actor) == "" {
		return domain.Version{}, fmt.Errorf("%w: actor is required", domain.ErrValidation)
	}
	in.ID = ""
	in.OwnerID = actor
	in.Status = domain.StatusDraft
	in.Archived = false
	in.CreatedAt, in.UpdatedAt = time.Time{}, time.Time{}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Version{}, err
	}
	snap, err := s.price(in)
	if err != nil {
		return domain.Version{}, err
	}

	v, err := s.itineraries.CreateWithFirstVersion(ctx, in, snap, actor)
	if err != nil {
		return domain.Version{}, err
	}

	logger.FromContext(ctx, s.log).Info("itinerary created", "itinerary_id", v.ItineraryID, "agency_id", in.AgencyID)
	s.notifyCommitted(ctx, actor, v)
	return v, nil
}

func (s *ItineraryService) GetItinerary(ctx context.Context, actor, id string) (domain.Itinerary, error) {
	return s.authorize(ctx, id, actor, domain.RoleViewer)
}

// ListItineraries returns the agency's live itineraries on which actor
// holds any role.
func (s *ItineraryService) ListItineraries(ctx context.Context, actor, agencyID string) ([]domain.Itinerary, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("%w: actor is required", domain.ErrValidation)
	}
	return s.itineraries.ListItineraries(ctx, agencyID, actor)
}

// UpdateItinerary replaces the editable content, reprices it and commits a
// new version in one step. Approved itineraries are locked.
func (s *ItineraryService) UpdateItinerary(ctx context.Context, actor, id string, in domain.Itinerary) (domain.Version, error) {
	cur, err := s.authorize(ctx, id, actor, domain.RoleEditor)
	if err != nil {
		return domain.Version{}, err
	}
	if err := editable(cur); err != nil {
		return domain.Version{}, err
	}

	in.ID = cur.ID
	in.AgencyID = cur.AgencyID
	in.OwnerID = cur.OwnerID
	in.Status = cur.Status
	in.Archived = cur.Archived
	in.CreatedAt = cur.CreatedAt
	in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Version{}, err
	}

	v, err := s.commit(ctx, actor, func() (domain.Itinerary, error) { return in, nil })
	if err != nil {
		return domain.Version{}, err
	}
	s.notifyCommitted(ctx, actor, v)
	return v, nil
}

// CommitVersion snapshots the live itinerary as a new version.
func (s *ItineraryService) CommitVersion(ctx context.Context, actor, id string) (domain.Version, error) {
	cur, err := s.authorize(ctx, id, actor, domain.RoleEditor)
	if err != nil {
		return domain.Version{}, err
	}
	if err := editable(cur); err != nil {
		return domain.Version{}, err
	}

	v, err := s.commit(ctx, actor, func() (domain.Itinerary, error) {
		return s.itineraries.GetItinerary(ctx, id)
	})
	if err != nil {
		return domain.Version{}, err
	}
	s.notifyCommitted(ctx, actor, v)
	return v, nil
}

// commit prices and stores the itinerary returned by load, retrying when a
// concurrent writer took the version number.
func (s *ItineraryService) commit(ctx context.Context, actor string, load func() (domain.Itinerary, error)) (domain.Version, error) {
	var lastErr error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		it, err := load()
		if err != nil {
			return domain.Version{}, err
		}
		snap, err := s.price(it)
		if err != nil {
			return domain.Version{}, err
		}
		v, err := s.versions.Commit(ctx, it, snap, actor)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, domain.ErrConcurrentCommitConflict) {
			return domain.Version{}, err
		}
		lastErr = err
		logger.FromContext(ctx, s.log).Warn("commit conflict, retrying", "itinerary_id", it.ID, "attempt", attempt)
	}
	return domain.Version{}, lastErr
}

// DuplicateItinerary copies the live content into a new draft owned by
// actor, titled "<title> (Copy)".
func (s *ItineraryService) DuplicateItinerary(ctx context.Context, actor, id string) (domain.Version, error) {
	src, err := s.authorize(ctx, id, actor, domain.RoleViewer)
	if err != nil {
		return domain.Version{}, err
	}
	cp := src.Clone()
	cp.Title = src.Title + " (Copy)"
	return s.CreateItinerary(ctx, actor, cp)
}

// ArchiveItinerary is the logical delete. Versions stay readable.
func (s *ItineraryService) ArchiveItinerary(ctx context.Context, actor, id string) error {
	if _, err := s.authorize(ctx, id, actor, domain.RoleApprover); err != nil {
		return err
	}
	return s.itineraries.Archive(ctx, id)
}

// ComputePricing returns the pricing of the latest version.
func (s *ItineraryService) ComputePricing(ctx context.Context, actor, id string) (domain.PricingSnapshot, error) {
	if _, err := s.authorize(ctx, id, actor, domain.RoleViewer); err != nil {
		return domain.PricingSnapshot{}, err
	}
	v, err := s.versions.Latest(ctx, id)
	if err != nil {
		return domain.PricingSnapshot{}, err
	}
	return v.Pricing, nil
}

func (s *ItineraryService) ListVersions(ctx context.Context, actor, id string) (iter.Seq2[domain.Version, error], error) {
	if _, err := s.authorize(ctx, id, actor, domain.RoleViewer); err != nil {
		return nil, err
	}
	return s.versions.List(ctx, id), nil
}

// GetVersion returns version n, or the latest when n is 0.
func (s *ItineraryService) GetVersion(ctx context.Context, actor, id string, n int) (domain.Version, error) {
	if _, err := s.authorize(ctx, id, actor, domain.RoleViewer); err != nil {
		return domain.Version{}, err
	}
	if n == 0 {
		return s.versions.Latest(ctx, id)
	}
	return s.versions.Get(ctx, id, n)
}

// RenderRequest selects what to print. Version 0 means the latest. Branding
// is applied on top of the agency profile and the itinerary's own override.
// PortalURL, when set, adds the traveler portal link and QR code.
type RenderRequest struct {
	ItineraryID string
	Version     int
	Layout      string
	Format      render.Format
	Branding    domain.BrandingOverride
	PortalURL   string
}

func (s *ItineraryService) RenderDocument(ctx context.Context, actor string, req RenderRequest) (render.Document, error) {
	v, err := s.GetVersion(ctx, actor, req.ItineraryID, req.Version)
	if err != nil {
		return render.Document{}, err
	}
	b := s.branding(ctx, v.Content).Merge(req.Branding)
	if req.PortalURL != "" {
		return s.renderer.RenderPortal(ctx, v, req.Layout, b, req.Format, req.PortalURL)
	}
	return s.renderer.Render(ctx, v, req.Layout, b, req.Format)
}

// Layouts lists the registered layout names.
func (s *ItineraryService) Layouts() []string {
	return s.renderer.Layouts()
}

// PreviewLayouts renders the latest version in every layout.
func (s *ItineraryService) PreviewLayouts(ctx context.Context, actor, id string, format render.Format) ([]render.Document, error) {
	v, err := s.GetVersion(ctx, actor, id, 0)
	if err != nil {
		return nil, err
	}
	return render.RenderAll(ctx, s.renderer, v, s.branding(ctx, v.Content), format)
}

// branding resolves the agency profile and applies the itinerary override.
// Lookup failures fall back to default branding.
func (s *ItineraryService) branding(ctx context.Context, it domain.Itinerary) domain.Branding {
	b := render.DefaultBranding()
	if s.agencies != nil && it.AgencyID != "" {
		p, err := s.agencies.Get(ctx, it.AgencyID)
		switch {
		case err == nil:
			b = p.Branding()
		case !errors.Is(err, agency.ErrNotFound):
			logger.FromContext(ctx, s.log).Warn("agency branding lookup failed", "agency_id", it.AgencyID, "error", err)
		}
	}
	return b.Merge(it.Branding)
}

// TransitionStatus changes workflow status without creating a version.
func (s *ItineraryService) TransitionStatus(ctx context.Context, actor, id string, to domain.Status) (domain.Itinerary, error) {
	it, err := s.ledger.Transition(ctx, id, actor, to)
	if err != nil {
		return domain.Itinerary{}, err
	}
	s.notify(ctx, notification.Event{
		Type:           notification.EventStatusChanged,
		ItineraryID:    id,
		ItineraryTitle: it.Title,
		Actor:          actor,
		Status:         string(to),
	})
	return it, nil
}

// AddCollaborator grants or changes a role. Only approvers manage access.
func (s *ItineraryService) AddCollaborator(ctx context.Context, actor, id, userID string, role domain.Role) (domain.Collaborator, error) {
	it, err := s.authorize(ctx, id, actor, domain.RoleApprover)
	if err != nil {
		return domain.Collaborator{}, err
	}
	c, err := s.ledger.AddCollaborator(ctx, id, userID, role)
	if err != nil {
		return domain.Collaborator{}, err
	}
	s.notify(ctx, notification.Event{
		Type:           notification.EventCollaboratorAdded,
		ItineraryID:    id,
		ItineraryTitle: it.Title,
		Actor:          actor,
		Subject:        c.UserID,
	})
	return c, nil
}

func (s *ItineraryService) ListCollaborators(ctx context.Context, actor, id string) ([]domain.Collaborator, error) {
	if _, err := s.authorize(ctx, id, actor, domain.RoleViewer); err != nil {
		return nil, err
	}
	return s.ledger.ListCollaborators(ctx, id)
}

func (s *ItineraryService) AddComment(ctx context.Context, actor, id string, version int, body string) (domain.Comment, error) {
	it, err := s.authorize(ctx, id, actor, domain.RoleViewer)
	if err != nil {
		return domain.Comment{}, err
	}
	c, err := s.ledger.AddComment(ctx, id, version, actor, body)
	if err != nil {
		return domain.Comment{}, err
	}
	s.notify(ctx, notification.Event{
		Type:           notification.EventCommentAdded,
		ItineraryID:    id,
		ItineraryTitle: it.Title,
		Actor:          actor,
		VersionNumber:  version,
		CommentID:      c.ID,
	})
	return c, nil
}

func (s *ItineraryService) ListComments(ctx context.Context, actor, id string) ([]domain.Comment, error) {
	if _, err := s.authorize(ctx, id, actor, domain.RoleViewer); err != nil {
		return nil, err
	}
	return s.ledger.ListComments(ctx, id)
}

// ResolveComment may be called by the author or any editor.
func (s *ItineraryService) ResolveComment(ctx context.Context, actor, commentID string) (domain.Comment, error) {
	c, err := s.ledger.GetComment(ctx, commentID)
	if err != nil {
		return domain.Comment{}, err
	}
	need := domain.RoleEditor
	if c.Author == actor {
		need = domain.RoleViewer
	}
	if _, err := s.authorize(ctx, c.ItineraryID, actor, need); err != nil {
		return domain.Comment{}, err
	}
	return s.ledger.Resolve(ctx, commentID)
}

func (s *ItineraryService) notifyCommitted(ctx context.Context, actor string, v domain.Version) {
	s.notify(ctx, notification.Event{
		Type:           notification.EventVersionCommitted,
		ItineraryID:    v.ItineraryID,
		ItineraryTitle: v.Content.Title,
		Actor:          actor,
		VersionNumber:  v.Number,
	})
}

// notify hands ev to the notifier with its own deadline, so a slow queue
// delays the response by at most notifyWait.
func (s *ItineraryService) notify(ctx context.Context, ev notification.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyWait)
	defer cancel()
	s.notifier.Notify(ctx, ev)
}
