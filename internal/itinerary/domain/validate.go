package domain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)
	hexColorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

	validCategories = map[string]bool{
		CategoryActivity:      true,
		CategoryAccommodation: true,
		CategoryTransport:     true,
		CategoryMeal:          true,
		CategoryFlight:        true,
	}
)

// Normalize fills defaults in place: currency, item category, day ordering.
func (it *Itinerary) Normalize() {
	it.Title = strings.TrimSpace(it.Title)
	it.Currency = strings.ToUpper(strings.TrimSpace(it.Currency))
	if it.Currency == "" {
		it.Currency = "USD"
	}
	if it.Status == "" {
		it.Status = StatusDraft
	}
	for i := range it.Days {
		for j := range it.Days[i].Items {
			item := &it.Days[i].Items[j]
			item.Category = strings.ToLower(strings.TrimSpace(item.Category))
			if item.Category == "" {
				item.Category = CategoryActivity
			}
		}
	}
	sort.SliceStable(it.Days, func(a, b int) bool {
		return it.Days[a].Position < it.Days[b].Position
	})
	for i := range it.Extensions {
		it.Extensions[i].Title = strings.TrimSpace(it.Extensions[i].Title)
	}
	for i := range it.Notes {
		if it.Notes[i].Category == "" {
			it.Notes[i].Category = "custom"
		}
	}
}

// Validate checks the structural shape of an itinerary at the API boundary.
// Cost and markup values are checked by the pricing calculator, which owns
// ErrInvalidCost and ErrInvalidPolicy.
func (it Itinerary) Validate() error {
	var errs []error

	if it.Title == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if it.AgencyID == "" {
		errs = append(errs, errors.New("agency_id is required"))
	}
	if !currencyRe.MatchString(it.Currency) {
		errs = append(errs, fmt.Errorf("currency %q must be a 3-letter ISO code", it.Currency))
	}

	start, startErr := parseDate("start_date", it.StartDate)
	end, endErr := parseDate("end_date", it.EndDate)
	if startErr != nil {
		errs = append(errs, startErr)
	}
	if endErr != nil {
		errs = append(errs, endErr)
	}
	if startErr == nil && endErr == nil && !start.IsZero() && !end.IsZero() && end.Before(start) {
		errs = append(errs, errors.New("end_date must not be before start_date"))
	}

	seen := make(map[int]bool, len(it.Days))
	for _, d := range it.Days {
		if d.Position < 1 {
			errs = append(errs, fmt.Errorf("day position %d must be >= 1", d.Position))
		}
		if seen[d.Position] {
			errs = append(errs, fmt.Errorf("duplicate day position %d", d.Position))
		}
		seen[d.Position] = true
		for j, item := range d.Items {
			if strings.TrimSpace(item.Title) == "" {
				errs = append(errs, fmt.Errorf("day %d item %d: title is required", d.Position, j+1))
			}
			if !validCategories[item.Category] {
				errs = append(errs, fmt.Errorf("day %d item %d: unknown category %q", d.Position, j+1, item.Category))
			}
		}
	}

	for i, n := range it.Notes {
		if strings.TrimSpace(n.Content) == "" {
			errs = append(errs, fmt.Errorf("note %d: content is required", i+1))
		}
	}

	for i, e := range it.Extensions {
		if e.Title == "" {
			errs = append(errs, fmt.Errorf("extension %d: title is required", i+1))
		}
	}

	switch it.Markup.Kind {
	case MarkupFlat, MarkupPercentage:
	default:
		errs = append(errs, fmt.Errorf("markup kind %q must be flat or percentage", it.Markup.Kind))
	}

	if c := it.Branding.PrimaryColor; c != "" && !hexColorRe.MatchString(c) {
		errs = append(errs, fmt.Errorf("branding primary_color %q must be a hex colour", c))
	}
	if c := it.Branding.SecondaryColor; c != "" && !hexColorRe.MatchString(c) {
		errs = append(errs, fmt.Errorf("branding secondary_color %q must be a hex colour", c))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, errors.Join(errs...))
}

// IsHexColor reports whether c is a #rgb or #rrggbb colour.
func IsHexColor(c string) bool {
	return hexColorRe.MatchString(c)
}

func parseDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q must be YYYY-MM-DD", field, v)
	}
	return t, nil
}
