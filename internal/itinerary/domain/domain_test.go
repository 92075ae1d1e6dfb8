package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItinerary() Itinerary {
	return Itinerary{
		AgencyID:  "agency-1",
		Title:     "  Kenya Safari ",
		StartDate: "2026-03-01",
		EndDate:   "2026-03-03",
		Currency:  "usd",
		Markup:    FlatMarkup(decimal.NewFromInt(20)),
		Days: []DayPlan{
			{Position: 2, Title: "Mara", Items: []LineItem{{Title: "Game drive", Cost: decimal.NewFromInt(50)}}},
			{Position: 1, Title: "Nairobi", Items: []LineItem{{Title: "Lodge", Category: "Accommodation", Cost: decimal.NewFromInt(100)}}},
		},
	}
}

func TestNormalize(t *testing.T) {
	it := validItinerary()
	it.Normalize()

	assert.Equal(t, "Kenya Safari", it.Title)
	assert.Equal(t, "USD", it.Currency)
	assert.Equal(t, StatusDraft, it.Status)
	require.Len(t, it.Days, 2)
	assert.Equal(t, 1, it.Days[0].Position)
	assert.Equal(t, CategoryAccommodation, it.Days[0].Items[0].Category)
	assert.Equal(t, CategoryActivity, it.Days[1].Items[0].Category)
}

func TestValidate(t *testing.T) {
	t.Run("accepts a normalized itinerary", func(t *testing.T) {
		it := validItinerary()
		it.Normalize()
		assert.NoError(t, it.Validate())
	})

	t.Run("collects every structural problem", func(t *testing.T) {
		it := validItinerary()
		it.Normalize()
		it.Title = ""
		it.EndDate = "2026-02-01"
		it.Days = append(it.Days, DayPlan{Position: 1, Items: []LineItem{{Category: "spa"}}})
		it.Branding.PrimaryColor = "blue"

		err := it.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))
		msg := err.Error()
		assert.Contains(t, msg, "title is required")
		assert.Contains(t, msg, "end_date must not be before start_date")
		assert.Contains(t, msg, "duplicate day position 1")
		assert.Contains(t, msg, `unknown category "spa"`)
		assert.Contains(t, msg, "primary_color")
	})

	t.Run("rejects unknown markup kind", func(t *testing.T) {
		it := validItinerary()
		it.Normalize()
		it.Markup.Kind = "tiered"
		assert.ErrorIs(t, it.Validate(), ErrValidation)
	})
}

func TestCloneIsDeep(t *testing.T) {
	it := validItinerary()
	it.Notes = []Note{{Category: "visa", Content: "e-Visa required"}}
	c := it.Clone()

	c.Days[0].Items[0].Cost = decimal.NewFromInt(999)
	c.Days[0].Title = "changed"
	c.Notes[0].Content = "changed"

	assert.True(t, it.Days[0].Items[0].Cost.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "Mara", it.Days[0].Title)
	assert.Equal(t, "e-Visa required", it.Notes[0].Content)
}

func TestRoleAtLeast(t *testing.T) {
	assert.True(t, RoleApprover.AtLeast(RoleEditor))
	assert.True(t, RoleEditor.AtLeast(RoleEditor))
	assert.False(t, RoleViewer.AtLeast(RoleEditor))
	assert.False(t, Role("").AtLeast(Role("")))
	assert.False(t, Role("owner").Valid())
}

func TestBrandingMerge(t *testing.T) {
	base := Branding{DisplayName: "Acme", PrimaryColor: "#000000", LogoURL: "a.png"}
	out := base.Merge(BrandingOverride{PrimaryColor: "#ffffff"})
	assert.Equal(t, "#ffffff", out.PrimaryColor)
	assert.Equal(t, "a.png", out.LogoURL)
	assert.Equal(t, "Acme", out.DisplayName)
}
