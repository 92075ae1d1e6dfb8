package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the workflow state of an itinerary.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusApproved Status = "approved"
)

// Item categories carried over from the supplier inventory.
const (
	CategoryActivity      = "activity"
	CategoryAccommodation = "accommodation"
	CategoryTransport     = "transport"
	CategoryMeal          = "meal"
	CategoryFlight        = "flight"
)

// Itinerary is the live, editable travel proposal for a client.
type Itinerary struct {
	ID         string           `json:"id"`
	AgencyID   string           `json:"agency_id"`
	ClientRef  string           `json:"client_ref"`
	OwnerID    string           `json:"owner_id"`
	Title      string           `json:"title"`
	StartDate  string           `json:"start_date"` // YYYY-MM-DD
	EndDate    string           `json:"end_date"`   // YYYY-MM-DD
	Currency   string           `json:"currency"`
	Days       []DayPlan        `json:"days"`
	Notes      []Note           `json:"notes"`
	Extensions []Extension      `json:"extensions"` // quoted outside the sell price
	Markup     MarkupPolicy     `json:"markup"`
	Branding   BrandingOverride `json:"branding"`
	Status     Status           `json:"status"`
	Archived   bool             `json:"archived"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// DayPlan is one day of an itinerary.
type DayPlan struct {
	Position int        `json:"position"`
	Date     string     `json:"date,omitempty"`
	Title    string     `json:"title"`
	Items    []LineItem `json:"items"`
	ImageURL string     `json:"image_url,omitempty"`
}

// LineItem is a single priced activity, stay or transfer within a day.
type LineItem struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	StartTime   string          `json:"start_time,omitempty"`
	EndTime     string          `json:"end_time,omitempty"`
	Category    string          `json:"category"`
	SupplierRef string          `json:"supplier_ref,omitempty"`
	Cost        decimal.Decimal `json:"cost"`
}

// Note is free-form traveller information (packing list, visa, terms).
type Note struct {
	Category string `json:"category"`
	Title    string `json:"title,omitempty"`
	Content  string `json:"content"`
}

// Extension is an optional add-on (extra nights, a side trip) offered to
// the client at AdditionalCost.
type Extension struct {
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	AdditionalCost decimal.Decimal `json:"additional_cost"`
}

type MarkupKind string

const (
	MarkupFlat       MarkupKind = "flat"
	MarkupPercentage MarkupKind = "percentage"
)

// MarkupPolicy derives the sell price from the summed base cost.
type MarkupPolicy struct {
	Kind       MarkupKind      `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// FlatMarkup and PercentageMarkup are convenience constructors.
func FlatMarkup(amount decimal.Decimal) MarkupPolicy {
	return MarkupPolicy{Kind: MarkupFlat, Amount: amount}
}

func PercentageMarkup(p decimal.Decimal) MarkupPolicy {
	return MarkupPolicy{Kind: MarkupPercentage, Percentage: p}
}

// PricingSnapshot is derived from DayPlans + MarkupPolicy and only ever
// persisted as part of a Version.
type PricingSnapshot struct {
	BaseCost    decimal.Decimal `json:"base_cost"`
	MarkupValue decimal.Decimal `json:"markup_value"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	Margin      decimal.Decimal `json:"margin"`
	MarginRatio decimal.Decimal `json:"margin_ratio"`
	Currency    string          `json:"currency"`
	// ExtensionsTotal is the sum of every optional add-on. It is not part
	// of SellPrice.
	ExtensionsTotal decimal.Decimal `json:"extensions_total"`
}

// Version is an immutable numbered snapshot of itinerary content and pricing.
type Version struct {
	ItineraryID string          `json:"itinerary_id"`
	Number      int             `json:"version_number"`
	Content     Itinerary       `json:"content"`
	Pricing     PricingSnapshot `json:"pricing"`
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by"`
}

// Clone returns a copy of v that shares no mutable state with it.
func (v Version) Clone() Version {
	v.Content = v.Content.Clone()
	return v
}

type Role string

const (
	RoleViewer   Role = "viewer"
	RoleEditor   Role = "editor"
	RoleApprover Role = "approver"
)

// Rank orders roles; zero means "no role".
func (r Role) Rank() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleEditor:
		return 2
	case RoleApprover:
		return 3
	}
	return 0
}

func (r Role) Valid() bool { return r.Rank() > 0 }

// AtLeast reports whether r grants everything min grants.
func (r Role) AtLeast(min Role) bool { return r.Rank() >= min.Rank() && r.Valid() }

type Collaborator struct {
	ItineraryID string    `json:"itinerary_id"`
	UserID      string    `json:"user_id"`
	Role        Role      `json:"role"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Comment struct {
	ID            string     `json:"id"`
	ItineraryID   string     `json:"itinerary_id"`
	VersionNumber int        `json:"version_number"`
	Author        string     `json:"author"`
	Body          string     `json:"body"`
	Resolved      bool       `json:"resolved"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// BrandingOverride is the per-itinerary branding set by the agent; empty
// fields inherit the agency profile.
type BrandingOverride struct {
	LogoURL        string `json:"logo_url,omitempty"`
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	FooterNote     string `json:"footer_note,omitempty"`
}

// Branding is the resolved agency look used by the layout renderer.
type Branding struct {
	DisplayName    string `json:"display_name"`
	LogoURL        string `json:"logo_url"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
	FooterNote     string `json:"footer_note"`
	PoweredBy      string `json:"powered_by"`
}

// Merge returns b with every non-empty override field applied.
func (b Branding) Merge(o BrandingOverride) Branding {
	if o.LogoURL != "" {
		b.LogoURL = o.LogoURL
	}
	if o.PrimaryColor != "" {
		b.PrimaryColor = o.PrimaryColor
	}
	if o.SecondaryColor != "" {
		b.SecondaryColor = o.SecondaryColor
	}
	if o.FooterNote != "" {
		b.FooterNote = o.FooterNote
	}
	return b
}

// Clone deep-copies the itinerary so later edits cannot leak into a stored
// Version.
func (it Itinerary) Clone() Itinerary {
	out := it
	if it.Days != nil {
		out.Days = make([]DayPlan, len(it.Days))
		for i, d := range it.Days {
			out.Days[i] = d
			if d.Items != nil {
				out.Days[i].Items = append([]LineItem(nil), d.Items...)
			}
		}
	}
	if it.Notes != nil {
		out.Notes = append([]Note(nil), it.Notes...)
	}
	if it.Extensions != nil {
		out.Extensions = append([]Extension(nil), it.Extensions...)
	}
	return out
}
