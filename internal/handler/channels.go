package handler

import (
	"net/http"
	"strings"

	"cardmarket/internal/bot"
	"cardmarket/pkg/apierror"
	"cardmarket/pkg/response"
)

// ChannelHandler searches the chat server's channels for the dashboard.
type ChannelHandler struct {
	channels bot.ChannelDirectory
	guildID  string
}

// NewChannelHandler creates a channel handler. guildID is searched when a
// request names none. channels is nil without a chat connection, and every
// search then answers 503.
func NewChannelHandler(channels bot.ChannelDirectory, guildID string) *ChannelHandler {
	return &ChannelHandler{channels: channels, guildID: guildID}
}

// SearchResponse lists matching channels.
type SearchResponse struct {
	Channels []bot.Channel `json:"channels"`
}

// Search handles GET /api/v1/channels/search?query=&guildId=
func (h *ChannelHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		response.Error(w, apierror.ValidationError("query is required"))
		return
	}
	guildID := r.URL.Query().Get("guildId")
	if guildID == "" {
		guildID = h.guildID
	}
	if guildID == "" {
		response.Error(w, apierror.ValidationError("guildId is required when no default guild is configured"))
		return
	}
	if h.channels == nil {
		response.Error(w, apierror.ServiceUnavailable("channel search needs a chat connection"))
		return
	}

	found, err := h.channels.FindChannels(r.Context(), guildID, query)
	if err != nil {
		respondError(w, err)
		return
	}
	response.OK(w, SearchResponse{Channels: nonNil(found)})
}
