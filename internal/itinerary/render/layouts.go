package render

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

// LayoutFunc maps a version and resolved branding to a document model. It
// must be pure: same inputs, same model, no mutation.
type LayoutFunc func(v domain.Version, b domain.Branding) Model

// DefaultLayouts is the registry handed to NewRenderer by the API.
func DefaultLayouts() map[string]LayoutFunc {
	return map[string]LayoutFunc{
		"classic": Classic,
		"modern":  Modern,
		"gallery": Gallery,
	}
}

func base(layout string, v domain.Version, b domain.Branding) Model {
	it := v.Content
	return Model{
		Layout:    layout,
		Title:     it.Title,
		Subtitle:  dateRange(it.StartDate, it.EndDate),
		Brand:     b.DisplayName,
		LogoURL:   b.LogoURL,
		Palette:   Palette{Primary: b.PrimaryColor, Secondary: b.SecondaryColor},
		Footer:    b.FooterNote,
		PoweredBy: b.PoweredBy,
		Generated: v.CreatedAt.UTC(),
	}
}

// Classic lists every day with every item in order, then notes and the
// proposal total.
func Classic(v domain.Version, b domain.Branding) Model {
	m := base("classic", v, b)
	for _, d := range v.Content.Days {
		s := Section{Heading: dayHeading(d), Caption: d.Date, ImageURL: d.ImageURL}
		for _, item := range d.Items {
			s.Blocks = append(s.Blocks, Block{
				Label:  timeRange(item.StartTime, item.EndTime),
				Title:  item.Title,
				Detail: joinNonEmpty(" · ", item.Location, item.Description),
			})
		}
		m.Sections = append(m.Sections, s)
	}
	m.Notes = noteSections(v.Content.Notes)
	m.Extensions = extensionBlocks(v)
	m.Pricing = totalRows(v)
	return m
}

// Modern opens with an at-a-glance summary and groups each day's items by
// category.
func Modern(v domain.Version, b domain.Branding) Model {
	m := base("modern", v, b)
	m.Summary = append(m.Summary, fmt.Sprintf("%d days", len(v.Content.Days)))
	for _, d := range v.Content.Days {
		m.Summary = append(m.Summary, dayHeading(d))

		byCat := make(map[string][]domain.LineItem)
		for _, item := range d.Items {
			byCat[item.Category] = append(byCat[item.Category], item)
		}
		cats := make([]string, 0, len(byCat))
		for c := range byCat {
			cats = append(cats, c)
		}
		sort.Strings(cats)

		s := Section{Heading: dayHeading(d), Caption: d.Date}
		for _, c := range cats {
			for _, item := range byCat[c] {
				s.Blocks = append(s.Blocks, Block{
					Label:  strings.ToUpper(c),
					Title:  item.Title,
					Detail: joinNonEmpty(" · ", timeRange(item.StartTime, item.EndTime), item.Location),
				})
			}
		}
		m.Sections = append(m.Sections, s)
	}
	m.Notes = noteSections(v.Content.Notes)
	m.Extensions = extensionBlocks(v)
	m.Pricing = totalRows(v)
	return m
}

// Gallery gives each day a card led by its image with a one-line digest of
// the items.
func Gallery(v domain.Version, b domain.Branding) Model {
	m := base("gallery", v, b)
	for _, d := range v.Content.Days {
		titles := make([]string, 0, len(d.Items))
		for _, item := range d.Items {
			titles = append(titles, item.Title)
		}
		m.Sections = append(m.Sections, Section{
			Heading:  dayHeading(d),
			Caption:  d.Date,
			ImageURL: d.ImageURL,
			Blocks:   []Block{{Title: strings.Join(titles, ", ")}},
		})
	}
	m.Extensions = extensionBlocks(v)
	m.Pricing = totalRows(v)
	return m
}

func dayHeading(d domain.DayPlan) string {
	if d.Title == "" {
		return fmt.Sprintf("Day %d", d.Position)
	}
	return fmt.Sprintf("Day %d: %s", d.Position, d.Title)
}

func noteSections(notes []domain.Note) []Section {
	out := make([]Section, 0, len(notes))
	for _, n := range notes {
		heading := n.Title
		if heading == "" && n.Category != "" {
			heading = capitalize(n.Category)
		}
		out = append(out, Section{Heading: heading, Blocks: []Block{{Detail: n.Content}}})
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func extensionBlocks(v domain.Version) []Block {
	if len(v.Content.Extensions) == 0 {
		return nil
	}
	currency := priceCurrency(v)
	out := make([]Block, 0, len(v.Content.Extensions))
	for _, e := range v.Content.Extensions {
		out = append(out, Block{
			Label:  "+" + e.AdditionalCost.StringFixed(2) + " " + currency,
			Title:  e.Title,
			Detail: e.Description,
		})
	}
	return out
}

func priceCurrency(v domain.Version) string {
	if v.Pricing.Currency != "" {
		return v.Pricing.Currency
	}
	return v.Content.Currency
}

// totalRows shows the client-facing price only; base cost and margin stay
// internal.
func totalRows(v domain.Version) []Row {
	p := v.Pricing
	currency := priceCurrency(v)
	return []Row{
		{Label: "Proposal", Value: fmt.Sprintf("Version %d", v.Number)},
		{Label: "Total price", Value: p.SellPrice.StringFixed(2) + " " + currency, Strong: true},
	}
}

func dateRange(start, end string) string {
	switch {
	case start != "" && end != "" && start != end:
		return start + " to " + end
	case start != "":
		return start
	default:
		return end
	}
}

func timeRange(start, end string) string {
	switch {
	case start != "" && end != "":
		return start + "-" + end
	case start != "":
		return start
	default:
		return end
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
