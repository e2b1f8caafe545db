// Package discord adapts the bot to Discord through discordgo.
package discord

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"cardmarket/internal/gateway"
	"cardmarket/internal/render"
)

// Intents the bot needs: guild messages for commands and presences for
// compact-mode detection.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildPresences

// Gateway implements gateway.Gateway on a discordgo session.
type Gateway struct {
	session *discordgo.Session
}

// New creates a session for the bot token. Call Open to connect.
func New(token string) (*Gateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = Intents
	s.StateEnabled = true
	return &Gateway{session: s}, nil
}

// Session exposes the underlying session for event registration.
func (g *Gateway) Session() *discordgo.Session {
	return g.session
}

// Open connects to the gateway websocket.
func (g *Gateway) Open() error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	if u := g.session.State.User; u != nil {
		log.Printf("[DiscordGateway] Logged in as %s", u.Username)
	}
	return nil
}

// Close disconnects.
func (g *Gateway) Close() error {
	return g.session.Close()
}

// SendMessage posts a rendered view and returns the new message id.
func (g *Gateway) SendMessage(ctx context.Context, channelID string, view render.ViewModel) (string, error) {
	msg, err := g.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{toEmbed(view)},
		Components: toComponents(view),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError("send message", err)
	}
	return msg.ID, nil
}

// EditMessage replaces the content of a posted message.
func (g *Gateway) EditMessage(ctx context.Context, channelID, messageID string, view render.ViewModel) error {
	embeds := []*discordgo.MessageEmbed{toEmbed(view)}
	components := toComponents(view)
	_, err := g.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return mapError("edit message", err)
}

// FetchMessage checks that a message exists. The returned view is empty;
// platform messages are not parsed back into view models.
func (g *Gateway) FetchMessage(ctx context.Context, channelID, messageID string) (*gateway.Message, error) {
	msg, err := g.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError("fetch message", err)
	}
	out := &gateway.Message{ID: msg.ID, ChannelID: msg.ChannelID}
	if msg.EditedTimestamp != nil {
		out.EditedAt = *msg.EditedTimestamp
	} else {
		out.EditedAt = msg.Timestamp
	}
	return out, nil
}

// Ensure Gateway implements gateway.Gateway
var _ gateway.Gateway = (*Gateway)(nil)
