package discord

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"cardmarket/internal/bot"
)

// Channels looks up guild text channels for the setup flows.
type Channels struct {
	session *discordgo.Session
}

// NewChannels creates a channel directory on the gateway's session.
func NewChannels(g *Gateway) *Channels {
	return &Channels{session: g.session}
}

// FindChannels returns the text channels of guildID whose id equals query or
// whose name contains it. An exact id or name match is returned alone.
func (c *Channels) FindChannels(ctx context.Context, guildID, query string) ([]bot.Channel, error) {
	chans, err := c.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError("list channels", err)
	}
	return matchChannels(chans, query), nil
}

func matchChannels(chans []*discordgo.Channel, query string) []bot.Channel {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var out []bot.Channel
	for _, ch := range chans {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		name := strings.ToLower(ch.Name)
		if ch.ID == q || name == q {
			return []bot.Channel{{ID: ch.ID, Name: ch.Name}}
		}
		if strings.Contains(name, q) {
			out = append(out, bot.Channel{ID: ch.ID, Name: ch.Name})
		}
	}
	return out
}

var _ bot.ChannelDirectory = (*Channels)(nil)
