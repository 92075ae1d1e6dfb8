package render

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// ParseFormat defaults to PDF.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatHTML:
		return FormatHTML, nil
	}
	return "", fmt.Errorf("%w: unsupported format %q", domain.ErrValidation, s)
}

// Document is a rendered, printable artifact.
type Document struct {
	Layout      string `json:"layout"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
	Body        []byte `json:"body"`
}

// Serializer writes a Model in one output format.
type Serializer interface {
	ContentType() string
	Extension() string
	Serialize(m Model) ([]byte, error)
}

// Renderer maps a version to a document through a named layout. It keeps no
// mutable state after construction and is safe for concurrent use.
type Renderer struct {
	layouts     map[string]LayoutFunc
	serializers map[Format]Serializer
}

func NewRenderer(layouts map[string]LayoutFunc) *Renderer {
	reg := make(map[string]LayoutFunc, len(layouts))
	for name, fn := range layouts {
		reg[strings.ToLower(name)] = fn
	}
	return &Renderer{
		layouts: reg,
		serializers: map[Format]Serializer{
			FormatPDF:  pdfSerializer{},
			FormatHTML: newHTMLSerializer(),
		},
	}
}

// Layouts returns the registered layout names in sorted order.
func (r *Renderer) Layouts() []string {
	names := make([]string, 0, len(r.layouts))
	for name := range r.layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render is deterministic: identical inputs give identical bytes.
func (r *Renderer) Render(_ context.Context, v domain.Version, layout string, b domain.Branding, format Format) (Document, error) {
	return r.render(v, layout, b, format, "")
}

// RenderPortal is Render plus a "view and approve online" link and QR code
// pointing at portalURL.
func (r *Renderer) RenderPortal(_ context.Context, v domain.Version, layout string, b domain.Branding, format Format, portalURL string) (Document, error) {
	return r.render(v, layout, b, format, portalURL)
}

func (r *Renderer) render(v domain.Version, layout string, b domain.Branding, format Format, portalURL string) (Document, error) {
	name := strings.ToLower(strings.TrimSpace(layout))
	fn, ok := r.layouts[name]
	if !ok {
		return Document{}, fmt.Errorf("%w: %q", domain.ErrUnknownLayout, layout)
	}
	ser, ok := r.serializers[format]
	if !ok {
		return Document{}, fmt.Errorf("%w: unsupported format %q", domain.ErrValidation, format)
	}

	m := fn(v.Clone(), ResolveBranding(b))
	m.PortalURL = portalURL

	body, err := ser.Serialize(m)
	if err != nil {
		return Document{}, fmt.Errorf("failed to serialize %s document: %w", format, err)
	}
	return Document{
		Layout:      name,
		ContentType: ser.ContentType(),
		Filename:    fmt.Sprintf("itinerary-%s-v%d-%s.%s", v.ItineraryID, v.Number, name, ser.Extension()),
		Body:        body,
	}, nil
}
