// Package render projects catalog state into platform-neutral view models.
// Every function here is pure: the same inputs always produce the same view.
package render

import (
	"strconv"
	"strings"

	"cardmarket/internal/action"
	"cardmarket/internal/model"
)

// Platform ceilings for interactive controls on one message.
const (
	MaxAffordancesPerGroup = 5
	MaxGroupsPerMessage    = 5
)

// Page sizes for browse mode.
const (
	DefaultPageSize = 9
	CompactPageSize = 4
)

// DefaultColor is the embed accent used when settings carry none.
const DefaultColor = 0x0099ff

// Mode selects how a ViewModel was produced.
type Mode int

const (
	ModeFull Mode = iota + 1
	ModePaged
	ModeCart
	ModeNotice
)

// Style is the visual weight of an affordance.
type Style int

const (
	StylePrimary Style = iota + 1
	StyleSecondary
	StyleSuccess
	StyleDanger
)

// Affordance is one interactive control.
type Affordance struct {
	Label    string
	Style    Style
	Disabled bool
	Action   action.Action
}

// Row is one listed card (or claim, in cart mode).
type Row struct {
	CardID    string
	Name      string
	Price     float64
	ClaimedBy string
	Paid      bool
	Text      string
}

// ViewModel is everything a gateway needs to draw a message.
type ViewModel struct {
	Mode       Mode
	Title      string
	Category   string
	Page       int
	TotalPages int
	Rows       []Row
	EmptyText  string
	CoverImage string
	Groups     [][]Affordance
	Color      int
	Footer     string
}

// Empty reports whether the view lists nothing.
func (v ViewModel) Empty() bool {
	return len(v.Rows) == 0
}

// Affordances returns all controls in display order.
func (v ViewModel) Affordances() []Affordance {
	var out []Affordance
	for _, g := range v.Groups {
		out = append(out, g...)
	}
	return out
}

// Options carries presentation settings that are not catalog state.
type Options struct {
	Color  int
	Footer string
	// Column gives each card's toggles their own group.
	Column bool
}

// DefaultOptions returns the options used when no settings are stored.
func DefaultOptions() Options {
	return Options{Color: DefaultColor, Footer: "RTCO Bot"}
}

// OptionsFromSettings derives render options from stored settings.
func OptionsFromSettings(s model.Settings) Options {
	opts := DefaultOptions()
	if c, ok := ParseColor(s.EmbedColor); ok {
		opts.Color = c
	}
	opts.Column = s.ButtonLayout == model.LayoutColumn
	return opts
}

// Notice is a content-only view with no controls.
func Notice(text string, opts Options) ViewModel {
	return ViewModel{
		Mode:       ModeNotice,
		TotalPages: 1,
		EmptyText:  text,
		Color:      opts.Color,
		Footer:     opts.Footer,
	}
}

// ParseColor parses "#rrggbb" or "rrggbb".
func ParseColor(s string) (int, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, false
	}
	return int(v), true
}

// FormatPrice renders a price without trailing zeros.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
