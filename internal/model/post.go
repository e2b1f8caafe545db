package model

import "time"

// CategoryPost maps a (category, channel) pair to its live rendered message.
type CategoryPost struct {
	Category  string    `json:"category"`
	ChannelID string    `json:"channelId"`
	MessageID string    `json:"messageId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Button layouts for category posts.
const (
	LayoutRow    = "row"
	LayoutColumn = "column"
)

// Settings holds presentation preferences edited from the dashboard.
// EmbedTitleSize is only read by the dashboard; chat embeds have a fixed
// title size.
type Settings struct {
	EmbedTitleSize int    `json:"embedTitleSize"`
	ButtonLayout   string `json:"buttonLayout"`
	EmbedColor     string `json:"embedColor"`
}

// DefaultSettings returns the settings used before any are saved.
func DefaultSettings() Settings {
	return Settings{
		EmbedTitleSize: 16,
		ButtonLayout:   LayoutRow,
		EmbedColor:     "#2b2d31",
	}
}
