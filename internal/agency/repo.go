package agency

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Get(ctx context.Context, id string) (Profile, error) {
	const q = `
select id, display_name, coalesce(logo_url,''), coalesce(primary_color,''),
       coalesce(secondary_color,''), coalesce(footer_note,''), coalesce(powered_by,''), owner_id
from agencies
where id = $1
`
	var p Profile
	err := r.db.QueryRow(ctx, q, id).Scan(&p.ID, &p.DisplayName, &p.LogoURL, &p.PrimaryColor,
		&p.SecondaryColor, &p.FooterNote, &p.PoweredBy, &p.OwnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to get agency: %w", err)
	}
	return p, nil
}

func (r *Repo) Upsert(ctx context.Context, p Profile) (Profile, error) {
	const q = `
insert into agencies (id, display_name, logo_url, primary_color, secondary_color, footer_note, powered_by, owner_id, updated_at)
values ($1, $2, nullif($3,''), nullif($4,''), nullif($5,''), nullif($6,''), nullif($7,''), $8, now())
on conflict (id) do update
set display_name = excluded.display_name,
    logo_url = excluded.logo_url,
    primary_color = excluded.primary_color,
    secondary_color = excluded.secondary_color,
    footer_note = excluded.footer_note,
    powered_by = excluded.powered_by,
    owner_id = excluded.owner_id,
    updated_at = now()
where agencies.owner_id = '' or agencies.owner_id = excluded.owner_id
`
	tag, err := r.db.Exec(ctx, q, p.ID, p.DisplayName, p.LogoURL, p.PrimaryColor,
		p.SecondaryColor, p.FooterNote, p.PoweredBy, p.OwnerID)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to upsert agency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotOwner, p.ID)
	}
	return p, nil
}
