// Package gateway is the boundary to the messaging platform. Services talk to
// the Gateway interface; adapters translate view models into platform
// messages and platform failures into domain errors.
package gateway

import (
	"context"
	"time"

	"cardmarket/internal/render"
)

// Message is a platform message as far as the bot cares.
type Message struct {
	ID        string
	ChannelID string
	View      render.ViewModel
	EditedAt  time.Time
}

// Gateway sends and edits rendered messages.
//
// Implementations return errors wrapping model.ErrNotFound when the target
// message or channel no longer exists, and model.ErrExternalUnavailable for
// every other platform failure.
type Gateway interface {
	SendMessage(ctx context.Context, channelID string, view render.ViewModel) (string, error)
	EditMessage(ctx context.Context, channelID, messageID string, view render.ViewModel) error
	FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error)
}
