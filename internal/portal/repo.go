package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const invitationColumns = `
token, itinerary_id, version_number, coalesce(client_email,''), invited_by,
expires_at, created_at, view_count, last_viewed_at, decision, coalesce(decision_note,''), decided_at
`

func scanInvitation(row pgx.Row) (Invitation, error) {
	var (
		inv      Invitation
		decision string
	)
	if err := row.Scan(&inv.Token, &inv.ItineraryID, &inv.VersionNumber, &inv.ClientEmail, &inv.InvitedBy,
		&inv.ExpiresAt, &inv.CreatedAt, &inv.ViewCount, &inv.LastViewedAt, &decision, &inv.DecisionNote, &inv.DecidedAt); err != nil {
		return Invitation{}, err
	}
	inv.Decision = Decision(decision)
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	inv.CreatedAt = inv.CreatedAt.UTC()
	return inv, nil
}

func (r *Repo) Create(ctx context.Context, inv Invitation) error {
	const q = `
insert into portal_invitations (token, itinerary_id, version_number, client_email, invited_by, expires_at, created_at, decision)
values ($1, $2, $3, nullif($4,''), $5, $6, $7, $8)
`
	if _, err := r.db.Exec(ctx, q, inv.Token, inv.ItineraryID, inv.VersionNumber, inv.ClientEmail,
		inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt, string(inv.Decision)); err != nil {
		return fmt.Errorf("failed to insert invitation: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, token string) (Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRow(ctx, `select `+invitationColumns+` from portal_invitations where token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invitation{}, fmt.Errorf("%w: invitation", domain.ErrNotFound)
	}
	if err != nil {
		return Invitation{}, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

func (r *Repo) ListByItinerary(ctx context.Context, itineraryID string) ([]Invitation, error) {
	rows, err := r.db.Query(ctx, `select `+invitationColumns+`
from portal_invitations
where itinerary_id = $1
order by created_at, token`, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	out := make([]Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *Repo) RecordView(ctx context.Context, token string, at time.Time) (Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRow(ctx, `
update portal_invitations
set view_count = view_count + 1, last_viewed_at = $2
where token = $1
returning `+invitationColumns, token, at.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invitation{}, fmt.Errorf("%w: invitation", domain.ErrNotFound)
	}
	if err != nil {
		return Invitation{}, fmt.Errorf("failed to record view: %w", err)
	}
	return inv, nil
}

func (r *Repo) Decide(ctx context.Context, token string, d Decision, note string, at time.Time) (Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRow(ctx, `
update portal_invitations
set decision = $2, decision_note = nullif($3,''), decided_at = $4
where token = $1 and decision = 'pending'
returning `+invitationColumns, token, string(d), note, at.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		cur, getErr := r.Get(ctx, token)
		if getErr != nil {
			return Invitation{}, getErr
		}
		return Invitation{}, fmt.Errorf("%w: invitation already %s", domain.ErrInvalidStateTransition, cur.Decision)
	}
	if err != nil {
		return Invitation{}, fmt.Errorf("failed to record decision: %w", err)
	}
	return inv, nil
}

func (r *Repo) Delete(ctx context.Context, token string) error {
	tag, err := r.db.Exec(ctx, `delete from portal_invitations where token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invitation", domain.ErrNotFound)
	}
	return nil
}
