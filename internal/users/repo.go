package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("user not found")

// Contact is how a user is reached by notifications.
type Contact struct {
	ID             string `json:"id"`
	Email          string `json:"email,omitempty"`
	DisplayName    string `json:"display_name,omitempty"`
	WhatsAppNumber string `json:"whatsapp_number,omitempty"`
}

// Directory stores user contacts.
type Directory interface {
	EnsureUser(ctx context.Context, u UpsertUser) (Contact, error)
	Contact(ctx context.Context, id string) (Contact, error)
}

type UpsertUser struct {
	ID             string
	Email          string
	DisplayName    string
	WhatsAppNumber string
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// EnsureUser creates the user or fills in contact fields. Empty fields never
// overwrite stored values.
func (r *Repo) EnsureUser(ctx context.Context, u UpsertUser) (Contact, error) {
	if strings.TrimSpace(u.ID) == "" {
		return Contact{}, fmt.Errorf("user id required")
	}

	const q = `
insert into users (id, email, display_name, whatsapp_number, updated_at)
values ($1, nullif($2,''), nullif($3,''), nullif($4,''), now())
on conflict (id) do update
set
  email = coalesce(excluded.email, users.email),
  display_name = coalesce(excluded.display_name, users.display_name),
  whatsapp_number = coalesce(excluded.whatsapp_number, users.whatsapp_number),
  updated_at = now()
returning id, coalesce(email,''), coalesce(display_name,''), coalesce(whatsapp_number,'');
`
	var c Contact
	if err := r.db.QueryRow(ctx, q, u.ID, u.Email, u.DisplayName, u.WhatsAppNumber).
		Scan(&c.ID, &c.Email, &c.DisplayName, &c.WhatsAppNumber); err != nil {
		return Contact{}, err
	}
	return c, nil
}

func (r *Repo) Contact(ctx context.Context, id string) (Contact, error) {
	const q = `
select id, coalesce(email,''), coalesce(display_name,''), coalesce(whatsapp_number,'')
from users
where id = $1
`
	var c Contact
	err := r.db.QueryRow(ctx, q, id).Scan(&c.ID, &c.Email, &c.DisplayName, &c.WhatsAppNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Contact{}, err
	}
	return c, nil
}
