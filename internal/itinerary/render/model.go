package render

import "time"

// Model is the presentation-agnostic document a layout produces. Serializers
// turn it into bytes without knowing which layout built it.
type Model struct {
	Layout    string
	Title     string
	Subtitle  string
	Brand     string
	LogoURL   string
	Palette   Palette
	Summary   []string
	Sections  []Section
	Notes     []Section
	// Extensions lists optional add-ons, one block each with its price as
	// the label.
	Extensions []Block
	Pricing    []Row
	PortalURL  string
	Footer     string
	PoweredBy  string
	Generated  time.Time
}

type Palette struct {
	Primary   string
	Secondary string
}

// Section is one heading with its content blocks: a day, a note, a gallery
// card.
type Section struct {
	Heading  string
	Caption  string
	ImageURL string
	Blocks   []Block
}

type Block struct {
	Label  string // time range or category tag
	Title  string
	Detail string
}

type Row struct {
	Label  string
	Value  string
	Strong bool
}
