package render

import (
	"strconv"
	"strings"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

const (
	DefaultDisplayName    = "Tour Planner"
	DefaultPrimaryColor   = "#1F4E79"
	DefaultSecondaryColor = "#F2A900"
	DefaultPoweredBy      = "Powered by " + DefaultDisplayName
)

// DefaultBranding is used when an agency has no profile.
func DefaultBranding() domain.Branding {
	return domain.Branding{
		DisplayName:    DefaultDisplayName,
		PrimaryColor:   DefaultPrimaryColor,
		SecondaryColor: DefaultSecondaryColor,
		PoweredBy:      DefaultPoweredBy,
	}
}

// ResolveBranding replaces missing or malformed fields with defaults. A named
// agency without its own label gets "<name> • Powered by Tour Planner".
func ResolveBranding(b domain.Branding) domain.Branding {
	b.DisplayName = strings.TrimSpace(b.DisplayName)
	named := b.DisplayName != ""
	if !named {
		b.DisplayName = DefaultDisplayName
	}
	if !domain.IsHexColor(b.PrimaryColor) {
		b.PrimaryColor = DefaultPrimaryColor
	}
	if !domain.IsHexColor(b.SecondaryColor) {
		b.SecondaryColor = DefaultSecondaryColor
	}
	if strings.TrimSpace(b.PoweredBy) == "" {
		if named && b.DisplayName != DefaultDisplayName {
			b.PoweredBy = b.DisplayName + " • " + DefaultPoweredBy
		} else {
			b.PoweredBy = DefaultPoweredBy
		}
	}
	b.PrimaryColor = strings.ToUpper(b.PrimaryColor)
	b.SecondaryColor = strings.ToUpper(b.SecondaryColor)
	return b
}

// hexToRGB expects a colour already accepted by domain.IsHexColor.
func hexToRGB(c string) (int, int, int) {
	c = strings.TrimPrefix(c, "#")
	if len(c) == 3 {
		c = string([]byte{c[0], c[0], c[1], c[1], c[2], c[2]})
	}
	if len(c) != 6 {
		return 0, 0, 0
	}
	return hexByte(c[0:2]), hexByte(c[2:4]), hexByte(c[4:6])
}

func hexByte(s string) int {
	n, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return int(n)
}
