package collab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/repository"
)

// Ledger records collaborators and review comments and drives the status
// workflow.
type Ledger struct {
	store       repository.CollabStore
	versions    repository.VersionStore
	itineraries repository.ItineraryStore
	now         func() time.Time
}

func NewLedger(store repository.CollabStore, versions repository.VersionStore, itineraries repository.ItineraryStore) *Ledger {
	return &Ledger{store: store, versions: versions, itineraries: itineraries, now: time.Now}
}

// AddCollaborator is an upsert: repeating it with the same role is a no-op,
// with another role it replaces the role.
func (l *Ledger) AddCollaborator(ctx context.Context, itineraryID, userID string, role domain.Role) (domain.Collaborator, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Collaborator{}, fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}
	if !role.Valid() {
		return domain.Collaborator{}, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
	return l.store.UpsertCollaborator(ctx, domain.Collaborator{ItineraryID: itineraryID, UserID: userID, Role: role})
}

// RoleOf returns "" with a nil error for users who are not collaborators.
func (l *Ledger) RoleOf(ctx context.Context, itineraryID, userID string) (domain.Role, error) {
	role, err := l.store.Role(ctx, itineraryID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	return role, err
}

func (l *Ledger) ListCollaborators(ctx context.Context, itineraryID string) ([]domain.Collaborator, error) {
	return l.store.ListCollaborators(ctx, itineraryID)
}

// AddComment attaches a comment to an existing version.
func (l *Ledger) AddComment(ctx context.Context, itineraryID string, versionNumber int, author, body string) (domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Comment{}, fmt.Errorf("%w: comment body is required", domain.ErrValidation)
	}
	if _, err := l.versions.Get(ctx, itineraryID, versionNumber); err != nil {
		return domain.Comment{}, err
	}

	c := domain.Comment{
		ID:            uuid.New().String(),
		ItineraryID:   itineraryID,
		VersionNumber: versionNumber,
		Author:        author,
		Body:          body,
		CreatedAt:     l.now().UTC(),
	}
	if err := l.store.InsertComment(ctx, c); err != nil {
		return domain.Comment{}, err
	}
	return c, nil
}

// Resolve is idempotent.
func (l *Ledger) Resolve(ctx context.Context, commentID string) (domain.Comment, error) {
	return l.store.ResolveComment(ctx, commentID, l.now())
}

func (l *Ledger) ListComments(ctx context.Context, itineraryID string) ([]domain.Comment, error) {
	return l.store.ListComments(ctx, itineraryID)
}

// Transition moves the itinerary to status to on behalf of actor. Status
// changes never create versions.
func (l *Ledger) Transition(ctx context.Context, itineraryID, actor string, to domain.Status) (domain.Itinerary, error) {
	it, err := l.itineraries.GetItinerary(ctx, itineraryID)
	if err != nil {
		return domain.Itinerary{}, err
	}
	role, err := l.RoleOf(ctx, itineraryID, actor)
	if err != nil {
		return domain.Itinerary{}, err
	}
	if err := CheckTransition(it.Status, to, role); err != nil {
		return domain.Itinerary{}, err
	}
	// SetStatus re-checks from, so a racing transition fails instead of
	// being applied twice.
	if err := l.itineraries.SetStatus(ctx, itineraryID, it.Status, to); err != nil {
		return domain.Itinerary{}, err
	}
	return l.itineraries.GetItinerary(ctx, itineraryID)
}

func (l *Ledger) GetComment(ctx context.Context, commentID string) (domain.Comment, error) {
	return l.store.GetComment(ctx, commentID)
}

// Recipients lists every collaborator's user id. It lets the ledger feed the
// notification dispatcher.
func (l *Ledger) Recipients(ctx context.Context, itineraryID string) ([]string, error) {
	list, err := l.store.ListCollaborators(ctx, itineraryID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.UserID)
	}
	return out, nil
}
