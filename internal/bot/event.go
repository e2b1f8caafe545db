// Package bot turns platform events into service calls and replies.
package bot

import (
	"cardmarket/internal/action"
	"cardmarket/internal/render"
)

// Event is a control pressed on a bot message.
type Event struct {
	Action    action.Action
	ActorID   string
	ActorName string
	ChannelID string
	MessageID string
	// Compact is set for viewers on constrained clients.
	Compact bool
}

// Reply is what the actor sees after an event or command.
type Reply struct {
	Content string
	View    *render.ViewModel
	// Ephemeral replies are shown to the actor only.
	Ephemeral bool
	// Update replaces the message the event came from instead of posting.
	Update bool
	// Clear removes the view and controls from the updated message.
	Clear bool
}

// Empty reports whether there is nothing to show.
func (r Reply) Empty() bool {
	return r.Content == "" && r.View == nil && !r.Clear
}

// RespondsInPlace reports whether events of kind answer by updating the
// message they came from. The platform adapter acknowledges such events
// before the reply is known.
func RespondsInPlace(k action.Kind) bool {
	return k.Navigational() || k == action.Refresh || k == action.MarkPaid
}

func notice(content string) Reply {
	return Reply{Content: content, Ephemeral: true}
}
