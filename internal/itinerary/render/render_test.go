package render

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

func sampleVersion() domain.Version {
	return domain.Version{
		ItineraryID: "it-1",
		Number:      3,
		CreatedAt:   time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		CreatedBy:   "alice",
		Content: domain.Itinerary{
			ID:        "it-1",
			Title:     "Cape Town & Winelands",
			StartDate: "2026-05-01",
			EndDate:   "2026-05-02",
			Currency:  "USD",
			Days: []domain.DayPlan{
				{Position: 1, Title: "Arrival", Date: "2026-05-01", Items: []domain.LineItem{
					{Title: "Airport transfer", Category: domain.CategoryTransport, StartTime: "10:00", Cost: decimal.NewFromInt(50)},
					{Title: "Hotel", Category: domain.CategoryAccommodation, Location: "V&A Waterfront", Cost: decimal.NewFromInt(100)},
				}},
				{Position: 2, Title: "Winelands", ImageURL: "https://img.example/wine.jpg", Items: []domain.LineItem{
					{Title: "Wine tasting", Category: domain.CategoryActivity, Cost: decimal.NewFromInt(40)},
				}},
			},
			Notes: []domain.Note{{Category: "packing", Content: "Bring a light jacket."}},
			Extensions: []domain.Extension{
				{Title: "Garden Route add-on", Description: "Two nights in Knysna.", AdditionalCost: decimal.NewFromInt(540)},
			},
		},
		Pricing: domain.PricingSnapshot{
			BaseCost:  decimal.NewFromInt(190),
			SellPrice: decimal.NewFromInt(210),
			Currency:  "USD",
		},
	}
}

func newTestRenderer() *Renderer {
	return NewRenderer(DefaultLayouts())
}

func TestRender_Deterministic(t *testing.T) {
	r := newTestRenderer()
	ctx := context.Background()
	b := domain.Branding{DisplayName: "Safari Co", PrimaryColor: "#112233"}

	for _, layout := range r.Layouts() {
		for _, format := range []Format{FormatPDF, FormatHTML} {
			first, err := r.Render(ctx, sampleVersion(), layout, b, format)
			require.NoError(t, err)
			second, err := r.Render(ctx, sampleVersion(), layout, b, format)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(first.Body, second.Body), "%s/%s output differs between runs", layout, format)
		}
	}
}

func TestRender_PDFDatesComeFromVersion(t *testing.T) {
	r := newTestRenderer()
	v := sampleVersion()

	first, err := r.Render(context.Background(), v, "modern", domain.Branding{}, FormatPDF)
	require.NoError(t, err)

	// cross a wall-clock second so any time.Now leak shows up
	time.Sleep(1100 * time.Millisecond)
	second, err := r.Render(context.Background(), v, "modern", domain.Branding{}, FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first.Body, second.Body))

	stamp := "D:" + v.CreatedAt.Format("20060102150405")
	assert.Equal(t, 2, strings.Count(string(first.Body), stamp), "creation and modification dates should both be the version timestamp")
}

func TestRender_PDF(t *testing.T) {
	doc, err := newTestRenderer().Render(context.Background(), sampleVersion(), "classic", domain.Branding{}, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "itinerary-it-1-v3-classic.pdf", doc.Filename)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF-")))
}

func TestRender_UnknownLayout(t *testing.T) {
	_, err := newTestRenderer().Render(context.Background(), sampleVersion(), "brochure", domain.Branding{}, FormatPDF)
	assert.ErrorIs(t, err, domain.ErrUnknownLayout)
}

func TestRender_LayoutNameIsCaseInsensitive(t *testing.T) {
	doc, err := newTestRenderer().Render(context.Background(), sampleVersion(), "Modern", domain.Branding{}, FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "modern", doc.Layout)
	assert.Contains(t, string(doc.Body), `class="layout-modern"`)
	assert.Contains(t, string(doc.Body), "At a glance")
}

func TestRender_BrandingFallback(t *testing.T) {
	r := newTestRenderer()
	doc, err := r.Render(context.Background(), sampleVersion(), "classic",
		domain.Branding{PrimaryColor: "not-a-colour"}, FormatHTML)
	require.NoError(t, err)

	html := string(doc.Body)
	assert.Contains(t, html, DefaultPrimaryColor)
	assert.Contains(t, html, DefaultSecondaryColor)
	assert.Contains(t, html, DefaultPoweredBy)
	assert.Contains(t, html, "<strong>Tour Planner</strong>")
	assert.NotContains(t, html, "not-a-colour")
}

func TestRender_HTMLContent(t *testing.T) {
	doc, err := newTestRenderer().Render(context.Background(), sampleVersion(), "classic",
		domain.Branding{DisplayName: "Safari Co", FooterNote: "Licensed operator"}, FormatHTML)
	require.NoError(t, err)

	html := string(doc.Body)
	assert.Contains(t, html, "Cape Town &amp; Winelands")
	assert.Contains(t, html, "Day 1: Arrival")
	assert.Contains(t, html, "210.00 USD")
	assert.Contains(t, html, "Licensed operator")
	assert.Contains(t, html, "Safari Co • Powered by Tour Planner")
	assert.Contains(t, html, "Optional extensions")
	assert.Contains(t, html, "Garden Route add-on")
	assert.Contains(t, html, "+540.00 USD")
	// internal cost figures never reach the client document
	assert.NotContains(t, html, "190.00")
	// agency prints carry no portal link
	assert.NotContains(t, html, "View and approve online")
}

func TestRenderPortal_AddsLinkAndQR(t *testing.T) {
	r := newTestRenderer()
	link := "https://api.example/api/v1/portal/tok-1/page"

	doc, err := r.RenderPortal(context.Background(), sampleVersion(), "classic", domain.Branding{}, FormatHTML, link)
	require.NoError(t, err)
	html := string(doc.Body)
	assert.Contains(t, html, link)
	assert.Contains(t, html, "View and approve online")
	assert.Contains(t, html, "data:image/png;base64,")

	pdf, err := r.RenderPortal(context.Background(), sampleVersion(), "modern", domain.Branding{}, FormatPDF, link)
	require.NoError(t, err)
	plain, err := r.Render(context.Background(), sampleVersion(), "modern", domain.Branding{}, FormatPDF)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(pdf.Body, plain.Body))
}

func TestRender_DoesNotMutateInput(t *testing.T) {
	v := sampleVersion()
	b := domain.Branding{PrimaryColor: "bad"}
	_, err := newTestRenderer().Render(context.Background(), v, "modern", b, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, sampleVersion(), v)
	assert.Equal(t, "bad", b.PrimaryColor)
}

func TestLayouts_DifferInStructure(t *testing.T) {
	v := sampleVersion()
	b := ResolveBranding(domain.Branding{})

	classic := Classic(v, b)
	require.Len(t, classic.Sections, 2)
	assert.Len(t, classic.Sections[0].Blocks, 2)
	assert.Len(t, classic.Notes, 1)
	assert.Equal(t, "Packing", classic.Notes[0].Heading)

	modern := Modern(v, b)
	assert.Equal(t, []string{"2 days", "Day 1: Arrival", "Day 2: Winelands"}, modern.Summary)
	// categories sorted: accommodation before transport
	assert.Equal(t, "ACCOMMODATION", modern.Sections[0].Blocks[0].Label)

	gallery := Gallery(v, b)
	assert.Empty(t, gallery.Notes)
	assert.Equal(t, "https://img.example/wine.jpg", gallery.Sections[1].ImageURL)
	assert.Equal(t, "Airport transfer, Hotel", gallery.Sections[0].Blocks[0].Title)
}

func TestResolveBranding(t *testing.T) {
	b := ResolveBranding(domain.Branding{DisplayName: "  Acme  ", PrimaryColor: "#abc", SecondaryColor: "#zzzzzz", PoweredBy: "Acme Travel"})
	assert.Equal(t, "Acme", b.DisplayName)
	assert.Equal(t, "#ABC", b.PrimaryColor)
	assert.Equal(t, DefaultSecondaryColor, b.SecondaryColor)
	assert.Equal(t, "Acme Travel", b.PoweredBy)

	r, g, bl := hexToRGB("#abc")
	assert.Equal(t, []int{0xaa, 0xbb, 0xcc}, []int{r, g, bl})
	r, g, bl = hexToRGB(DefaultPrimaryColor)
	assert.Equal(t, []int{0x1f, 0x4e, 0x79}, []int{r, g, bl})
	r, g, bl = hexToRGB("#FFfF00")
	assert.Equal(t, []int{0xff, 0xff, 0x00}, []int{r, g, bl})
}

func TestNoteSections_CapitalizesFirstRune(t *testing.T) {
	got := noteSections([]domain.Note{
		{Category: "étapes", Content: "a"},
		{Category: "visa", Content: "b"},
		{Title: "Own title", Category: "terms", Content: "c"},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "Étapes", got[0].Heading)
	assert.True(t, utf8.ValidString(got[0].Heading))
	assert.Equal(t, "Visa", got[1].Heading)
	assert.Equal(t, "Own title", got[2].Heading)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	f, err = ParseFormat("HTML")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, f)
	_, err = ParseFormat("docx")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRenderAll(t *testing.T) {
	docs, err := RenderAll(context.Background(), newTestRenderer(), sampleVersion(), domain.Branding{}, FormatHTML)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "classic", docs[0].Layout)
	assert.Equal(t, "gallery", docs[1].Layout)
	assert.Equal(t, "modern", docs[2].Layout)
}

func TestCachedRenderer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cached := NewCachedRenderer(newTestRenderer(), client, time.Hour, nil)
	ctx := context.Background()

	first, err := cached.Render(ctx, sampleVersion(), "classic", domain.Branding{}, FormatPDF)
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "render:it-1:3:"))
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))

	second, err := cached.Render(ctx, sampleVersion(), "classic", domain.Branding{}, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = cached.Render(ctx, sampleVersion(), "modern", domain.Branding{}, FormatPDF)
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 2)

	// a portal link is part of the key
	withLink, err := cached.RenderPortal(ctx, sampleVersion(), "classic", domain.Branding{}, FormatPDF, "https://api.example/p/1")
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 3)
	assert.NotEqual(t, first.Body, withLink.Body)

	// status changes on the live itinerary do not invalidate the entry
	v := sampleVersion()
	v.Content.Status = domain.StatusApproved
	_, err = cached.Render(ctx, v, "classic", domain.Branding{}, FormatPDF)
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 3)
}

func TestCachedRenderer_DegradesWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	cached := NewCachedRenderer(newTestRenderer(), client, time.Hour, nil)
	doc, err := cached.Render(context.Background(), sampleVersion(), "gallery", domain.Branding{}, FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, string(doc.Body), "layout-gallery")

	_, err = cached.Render(context.Background(), sampleVersion(), "nope", domain.Branding{}, FormatHTML)
	assert.ErrorIs(t, err, domain.ErrUnknownLayout)
}
