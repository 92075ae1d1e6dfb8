package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

const versionPageSize = 50

// Postgres implements ItineraryStore, VersionStore and CollabStore on a pgx
// pool. The schema lives in internal/storage/postgres/migrations.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// querier is the part of pgxpool.Pool and pgx.Tx the inserts need.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (p *Postgres) CreateItinerary(ctx context.Context, it domain.Itinerary) (domain.Itinerary, error) {
	return insertItinerary(ctx, p.db, it)
}

// CreateWithFirstVersion inserts the itinerary, its approver and version 1
// in one transaction.
func (p *Postgres) CreateWithFirstVersion(ctx context.Context, it domain.Itinerary, snap domain.PricingSnapshot, actor string) (domain.Version, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return domain.Version{}, fmt.Errorf("failed to begin create: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	it, err = insertItinerary(ctx, tx, it)
	if err != nil {
		return domain.Version{}, err
	}
	if _, err := tx.Exec(ctx, `
insert into itinerary_collaborators (itinerary_id, user_id, role, updated_at)
values ($1, $2, $3, $4)
`, it.ID, actor, string(domain.RoleApprover), it.UpdatedAt); err != nil {
		return domain.Version{}, fmt.Errorf("failed to insert approver: %w", err)
	}

	v := domain.Version{
		ItineraryID: it.ID,
		Number:      1,
		Content:     it,
		Pricing:     snap,
		CreatedAt:   it.UpdatedAt,
		CreatedBy:   actor,
	}
	if err := insertVersion(ctx, tx, v); err != nil {
		return domain.Version{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Version{}, fmt.Errorf("failed to commit create: %w", err)
	}
	return v, nil
}

func insertItinerary(ctx context.Context, q querier, it domain.Itinerary) (domain.Itinerary, error) {
	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	content, err := json.Marshal(it)
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("failed to encode itinerary: %w", err)
	}

	const stmt = `
insert into itineraries (id, agency_id, owner_id, status, archived, content)
values ($1, $2, nullif($3,''), $4, false, $5::jsonb)
returning created_at, updated_at
`
	if err := q.QueryRow(ctx, stmt, it.ID, it.AgencyID, it.OwnerID, string(it.Status), content).
		Scan(&it.CreatedAt, &it.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.Itinerary{}, fmt.Errorf("itinerary %s already exists", it.ID)
		}
		return domain.Itinerary{}, fmt.Errorf("failed to insert itinerary: %w", err)
	}
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	return it, nil
}

func insertVersion(ctx context.Context, q querier, v domain.Version) error {
	content, err := json.Marshal(v.Content)
	if err != nil {
		return fmt.Errorf("failed to encode itinerary: %w", err)
	}
	pricing, err := json.Marshal(v.Pricing)
	if err != nil {
		return fmt.Errorf("failed to encode pricing: %w", err)
	}
	if _, err := q.Exec(ctx, `
insert into itinerary_versions (itinerary_id, version_number, content, pricing, created_by, created_at)
values ($1, $2, $3::jsonb, $4::jsonb, $5, $6)
`, v.ItineraryID, v.Number, content, pricing, v.CreatedBy, v.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: itinerary %s version %d", domain.ErrConcurrentCommitConflict, v.ItineraryID, v.Number)
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}

func scanItinerary(row pgx.Row) (domain.Itinerary, error) {
	var (
		it      domain.Itinerary
		content []byte
		status  string
	)
	var created, updated time.Time
	var archived bool
	if err := row.Scan(&content, &status, &archived, &created, &updated); err != nil {
		return domain.Itinerary{}, err
	}
	if err := json.Unmarshal(content, &it); err != nil {
		return domain.Itinerary{}, fmt.Errorf("failed to decode itinerary: %w", err)
	}
	// columns are authoritative for workflow fields
	it.Status = domain.Status(status)
	it.Archived = archived
	it.CreatedAt = created.UTC()
	it.UpdatedAt = updated.UTC()
	return it, nil
}

func (p *Postgres) GetItinerary(ctx context.Context, id string) (domain.Itinerary, error) {
	const q = `
select content, status, archived, created_at, updated_at
from itineraries
where id = $1
`
	it, err := scanItinerary(p.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Itinerary{}, fmt.Errorf("%w: itinerary %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("failed to get itinerary: %w", err)
	}
	return it, nil
}

func (p *Postgres) ListItineraries(ctx context.Context, agencyID, memberID string) ([]domain.Itinerary, error) {
	const q = `
select content, status, archived, created_at, updated_at
from itineraries i
where archived = false
  and ($1 = '' or agency_id = $1)
  and ($2 = '' or exists (
    select 1 from itinerary_collaborators c
    where c.itinerary_id = i.id and c.user_id = $2
  ))
order by content->>'start_date', id
`
	rows, err := p.db.Query(ctx, q, agencyID, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list itineraries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Itinerary, 0)
	for rows.Next() {
		it, err := scanItinerary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan itinerary: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (p *Postgres) SetStatus(ctx context.Context, id string, from, to domain.Status) error {
	tag, err := p.db.Exec(ctx, `
update itineraries
set status = $3, updated_at = now()
where id = $1 and status = $2
`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	cur, err := p.GetItinerary(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: itinerary is %s, not %s", domain.ErrInvalidStateTransition, cur.Status, from)
}

func (p *Postgres) Archive(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, `update itineraries set archived = true, updated_at = now() where id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive itinerary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: itinerary %s", domain.ErrNotFound, id)
	}
	return nil
}

func (p *Postgres) Commit(ctx context.Context, it domain.Itinerary, snap domain.PricingSnapshot, actor string) (domain.Version, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return domain.Version{}, fmt.Errorf("failed to begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		status   string
		archived bool
		created  time.Time
	)
	err = tx.QueryRow(ctx, `
select status, archived, created_at
from itineraries
where id = $1
for update
`, it.ID).Scan(&status, &archived, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Version{}, fmt.Errorf("%w: itinerary %s", domain.ErrNotFound, it.ID)
	}
	if err != nil {
		return domain.Version{}, fmt.Errorf("failed to lock itinerary: %w", err)
	}
	if err := lockedErr(domain.Itinerary{ID: it.ID, Status: domain.Status(status), Archived: archived}); err != nil {
		return domain.Version{}, err
	}

	var next int
	if err := tx.QueryRow(ctx, `
select coalesce(max(version_number), 0) + 1
from itinerary_versions
where itinerary_id = $1
`, it.ID).Scan(&next); err != nil {
		return domain.Version{}, fmt.Errorf("failed to allocate version number: %w", err)
	}

	var now time.Time
	if err := tx.QueryRow(ctx, `select now()`).Scan(&now); err != nil {
		return domain.Version{}, fmt.Errorf("failed to read clock: %w", err)
	}
	now = now.UTC()

	live := it.Clone()
	live.Status = domain.Status(status)
	live.Archived = archived
	live.CreatedAt = created.UTC()
	live.UpdatedAt = now

	content, err := json.Marshal(live)
	if err != nil {
		return domain.Version{}, fmt.Errorf("failed to encode itinerary: %w", err)
	}
	if _, err := tx.Exec(ctx, `
update itineraries
set content = $2::jsonb, agency_id = $3, updated_at = $4
where id = $1
`, it.ID, content, it.AgencyID, now); err != nil {
		return domain.Version{}, fmt.Errorf("failed to save itinerary: %w", err)
	}

	v := domain.Version{
		ItineraryID: it.ID,
		Number:      next,
		Content:     live,
		Pricing:     snap,
		CreatedAt:   now,
		CreatedBy:   actor,
	}
	if err := insertVersion(ctx, tx, v); err != nil {
		return domain.Version{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Version{}, fmt.Errorf("%w: itinerary %s version %d", domain.ErrConcurrentCommitConflict, it.ID, next)
		}
		return domain.Version{}, fmt.Errorf("failed to commit version: %w", err)
	}
	return v, nil
}

func scanVersion(row pgx.Row) (domain.Version, error) {
	var (
		v       domain.Version
		content []byte
		pricing []byte
	)
	if err := row.Scan(&v.ItineraryID, &v.Number, &content, &pricing, &v.CreatedBy, &v.CreatedAt); err != nil {
		return domain.Version{}, err
	}
	if err := json.Unmarshal(content, &v.Content); err != nil {
		return domain.Version{}, fmt.Errorf("failed to decode version content: %w", err)
	}
	if err := json.Unmarshal(pricing, &v.Pricing); err != nil {
		return domain.Version{}, fmt.Errorf("failed to decode version pricing: %w", err)
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return v, nil
}

const versionColumns = `itinerary_id, version_number, content, pricing, created_by, created_at`

func (p *Postgres) Latest(ctx context.Context, itineraryID string) (domain.Version, error) {
	v, err := scanVersion(p.db.QueryRow(ctx, `
select `+versionColumns+`
from itinerary_versions
where itinerary_id = $1
order by version_number desc
limit 1
`, itineraryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Version{}, fmt.Errorf("%w: itinerary %s has no committed version", domain.ErrNotFound, itineraryID)
	}
	if err != nil {
		return domain.Version{}, fmt.Errorf("failed to get latest version: %w", err)
	}
	return v, nil
}

func (p *Postgres) Get(ctx context.Context, itineraryID string, number int) (domain.Version, error) {
	v, err := scanVersion(p.db.QueryRow(ctx, `
select `+versionColumns+`
from itinerary_versions
where itinerary_id = $1 and version_number = $2
`, itineraryID, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Version{}, fmt.Errorf("%w: itinerary %s version %d", domain.ErrNotFound, itineraryID, number)
	}
	if err != nil {
		return domain.Version{}, fmt.Errorf("failed to get version: %w", err)
	}
	return v, nil
}

// List pages through versions with a keyset on version_number so a long
// history is never held in memory at once.
func (p *Postgres) List(ctx context.Context, itineraryID string) iter.Seq2[domain.Version, error] {
	return func(yield func(domain.Version, error) bool) {
		after := 0
		for {
			page, err := p.versionPage(ctx, itineraryID, after)
			if err != nil {
				yield(domain.Version{}, err)
				return
			}
			if after == 0 && len(page) == 0 {
				if _, err := p.GetItinerary(ctx, itineraryID); err != nil {
					yield(domain.Version{}, err)
				}
				return
			}
			for _, v := range page {
				if !yield(v, nil) {
					return
				}
			}
			if len(page) < versionPageSize {
				return
			}
			after = page[len(page)-1].Number
		}
	}
}

func (p *Postgres) versionPage(ctx context.Context, itineraryID string, after int) ([]domain.Version, error) {
	rows, err := p.db.Query(ctx, `
select `+versionColumns+`
from itinerary_versions
where itinerary_id = $1 and version_number > $2
order by version_number
limit $3
`, itineraryID, after, versionPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	page := make([]domain.Version, 0, versionPageSize)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		page = append(page, v)
	}
	return page, rows.Err()
}

func (p *Postgres) UpsertCollaborator(ctx context.Context, c domain.Collaborator) (domain.Collaborator, error) {
	const q = `
insert into itinerary_collaborators (itinerary_id, user_id, role, updated_at)
values ($1, $2, $3, now())
on conflict (itinerary_id, user_id) do update
set role = excluded.role, updated_at = now()
returning updated_at
`
	if err := p.db.QueryRow(ctx, q, c.ItineraryID, c.UserID, string(c.Role)).Scan(&c.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.Collaborator{}, fmt.Errorf("%w: itinerary %s", domain.ErrNotFound, c.ItineraryID)
		}
		return domain.Collaborator{}, fmt.Errorf("failed to upsert collaborator: %w", err)
	}
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func (p *Postgres) Role(ctx context.Context, itineraryID, userID string) (domain.Role, error) {
	var role string
	err := p.db.QueryRow(ctx, `
select role from itinerary_collaborators where itinerary_id = $1 and user_id = $2
`, itineraryID, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s is not a collaborator on %s", domain.ErrNotFound, userID, itineraryID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get role: %w", err)
	}
	return domain.Role(role), nil
}

func (p *Postgres) ListCollaborators(ctx context.Context, itineraryID string) ([]domain.Collaborator, error) {
	rows, err := p.db.Query(ctx, `
select itinerary_id, user_id, role, updated_at
from itinerary_collaborators
where itinerary_id = $1
order by user_id
`, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collaborators: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Collaborator, 0)
	for rows.Next() {
		var c domain.Collaborator
		var role string
		if err := rows.Scan(&c.ItineraryID, &c.UserID, &role, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collaborator: %w", err)
		}
		c.Role = domain.Role(role)
		c.UpdatedAt = c.UpdatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) InsertComment(ctx context.Context, c domain.Comment) error {
	_, err := p.db.Exec(ctx, `
insert into itinerary_comments (id, itinerary_id, version_number, author, body, resolved, created_at)
values ($1, $2, $3, $4, $5, false, $6)
`, c.ID, c.ItineraryID, c.VersionNumber, c.Author, c.Body, c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: itinerary %s version %d", domain.ErrNotFound, c.ItineraryID, c.VersionNumber)
		}
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

const commentColumns = `id, itinerary_id, version_number, author, body, resolved, created_at, resolved_at`

func scanComment(row pgx.Row) (domain.Comment, error) {
	var c domain.Comment
	if err := row.Scan(&c.ID, &c.ItineraryID, &c.VersionNumber, &c.Author, &c.Body, &c.Resolved, &c.CreatedAt, &c.ResolvedAt); err != nil {
		return domain.Comment{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	if c.ResolvedAt != nil {
		t := c.ResolvedAt.UTC()
		c.ResolvedAt = &t
	}
	return c, nil
}

func (p *Postgres) GetComment(ctx context.Context, commentID string) (domain.Comment, error) {
	c, err := scanComment(p.db.QueryRow(ctx, `select `+commentColumns+` from itinerary_comments where id = $1`, commentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, fmt.Errorf("%w: comment %s", domain.ErrNotFound, commentID)
	}
	if err != nil {
		return domain.Comment{}, fmt.Errorf("failed to get comment: %w", err)
	}
	return c, nil
}

// ResolveComment keeps the first resolution timestamp on repeated calls.
func (p *Postgres) ResolveComment(ctx context.Context, commentID string, at time.Time) (domain.Comment, error) {
	c, err := scanComment(p.db.QueryRow(ctx, `
update itinerary_comments
set resolved = true, resolved_at = coalesce(resolved_at, $2)
where id = $1
returning `+commentColumns, commentID, at.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, fmt.Errorf("%w: comment %s", domain.ErrNotFound, commentID)
	}
	if err != nil {
		return domain.Comment{}, fmt.Errorf("failed to resolve comment: %w", err)
	}
	return c, nil
}

func (p *Postgres) ListComments(ctx context.Context, itineraryID string) ([]domain.Comment, error) {
	rows, err := p.db.Query(ctx, `
select `+commentColumns+`
from itinerary_comments
where itinerary_id = $1
order by created_at, id
`, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
