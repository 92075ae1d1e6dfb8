package repository

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

// ItineraryStore persists the live, editable itinerary.
type ItineraryStore interface {
	// CreateWithFirstVersion stores it, makes actor its approver and commits
	// version 1 in one atomic step.
	CreateWithFirstVersion(ctx context.Context, it domain.Itinerary, snap domain.PricingSnapshot, actor string) (domain.Version, error)
	GetItinerary(ctx context.Context, id string) (domain.Itinerary, error)
	// ListItineraries returns non-archived itineraries, optionally filtered by
	// agency and by a user holding any role on them.
	ListItineraries(ctx context.Context, agencyID, memberID string) ([]domain.Itinerary, error)
	// SetStatus moves the itinerary from one status to another. It fails with
	// ErrInvalidStateTransition if the current status is not from.
	SetStatus(ctx context.Context, id string, from, to domain.Status) error
	Archive(ctx context.Context, id string) error
}

// VersionStore is the append-only version sequence of each itinerary.
type VersionStore interface {
	// Commit stores it as the live content and appends a new Version holding a
	// deep copy of it and snap. Numbers are previous max + 1, starting at 1.
	// It fails with ErrItineraryLocked when the stored itinerary is approved
	// or archived at the moment of the write.
	Commit(ctx context.Context, it domain.Itinerary, snap domain.PricingSnapshot, actor string) (domain.Version, error)
	Latest(ctx context.Context, itineraryID string) (domain.Version, error)
	Get(ctx context.Context, itineraryID string, number int) (domain.Version, error)
	// List yields versions in ascending order. Each range over the returned
	// sequence starts from version 1 again.
	List(ctx context.Context, itineraryID string) iter.Seq2[domain.Version, error]
}

// CollabStore persists collaborators and comments.
type CollabStore interface {
	UpsertCollaborator(ctx context.Context, c domain.Collaborator) (domain.Collaborator, error)
	Role(ctx context.Context, itineraryID, userID string) (domain.Role, error)
	ListCollaborators(ctx context.Context, itineraryID string) ([]domain.Collaborator, error)
	InsertComment(ctx context.Context, c domain.Comment) error
	GetComment(ctx context.Context, commentID string) (domain.Comment, error)
	ResolveComment(ctx context.Context, commentID string, at time.Time) (domain.Comment, error)
	ListComments(ctx context.Context, itineraryID string) ([]domain.Comment, error)
}

// lockedErr reports whether the stored itinerary accepts new versions.
func lockedErr(it domain.Itinerary) error {
	if it.Status == domain.StatusApproved {
		return fmt.Errorf("%w: %s", domain.ErrItineraryLocked, it.ID)
	}
	if it.Archived {
		return fmt.Errorf("%w: %s is archived", domain.ErrItineraryLocked, it.ID)
	}
	return nil
}
