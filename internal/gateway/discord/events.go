package discord

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"cardmarket/internal/action"
	"cardmarket/internal/bot"
)

// Handlers feeds Discord events to the dispatcher and the command handler.
// Every event runs as its own scheduler task.
type Handlers struct {
	session    *discordgo.Session
	dispatcher *bot.Dispatcher
	commands   *bot.Commands
	scheduler  *bot.Scheduler
	admins     map[string]bool
}

// NewHandlers creates the inbound side of the adapter. adminIDs are always
// treated as administrators; anyone else needs the Administrator permission.
func NewHandlers(g *Gateway, d *bot.Dispatcher, c *bot.Commands, s *bot.Scheduler, adminIDs []string) *Handlers {
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = true
		}
	}
	return &Handlers{
		session:    g.session,
		dispatcher: d,
		commands:   c,
		scheduler:  s,
		admins:     admins,
	}
}

// Register attaches the handlers to the session. Call before Open.
func (h *Handlers) Register() {
	h.session.AddHandler(h.onInteraction)
	h.session.AddHandler(h.onMessage)
	h.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Printf("[DiscordGateway] Ready in %d guilds", len(r.Guilds))
	})
}

func (h *Handlers) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	user := interactionUser(i)
	if user == nil {
		return
	}

	a, err := action.Decode(i.MessageComponentData().CustomID)
	if err != nil {
		log.Printf("[DiscordGateway] Undecodable control from %s: %v", user.ID, err)
		h.respondNow(i.Interaction, "❌ This control is no longer supported.")
		return
	}

	inPlace := bot.RespondsInPlace(a.Kind)
	if err := h.acknowledge(i.Interaction, inPlace); err != nil {
		log.Printf("[DiscordGateway] Failed to acknowledge %s: %v", a.Kind, err)
		return
	}

	ev := bot.Event{
		Action:    a,
		ActorID:   user.ID,
		ActorName: user.Username,
		ChannelID: i.ChannelID,
		Compact:   h.isMobile(i.GuildID, user.ID),
	}
	if i.Message != nil {
		ev.MessageID = i.Message.ID
	}

	err = h.scheduler.Submit(func(ctx context.Context) {
		reply := h.dispatcher.Handle(ctx, ev)
		h.deliver(ctx, i.Interaction, inPlace, reply)
	})
	if err != nil {
		log.Printf("[DiscordGateway] Dropped %s from %s: %v", a.Kind, user.ID, err)
		h.deliver(context.Background(), i.Interaction, inPlace, bot.Reply{
			Content:   busyText(err),
			Ephemeral: true,
		})
	}
}

// acknowledge defers the interaction. In-place kinds defer as a message
// update; the rest open a private reply that deliver fills in.
func (h *Handlers) acknowledge(i *discordgo.Interaction, inPlace bool) error {
	resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	if !inPlace {
		resp = &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
		}
	}
	return h.session.InteractionRespond(i, resp)
}

func (h *Handlers) deliver(ctx context.Context, i *discordgo.Interaction, inPlace bool, reply bot.Reply) {
	var err error
	switch {
	case !inPlace:
		if reply.Empty() {
			reply.Content = "Done."
		}
		_, err = h.session.InteractionResponseEdit(i, webhookEdit(reply), discordgo.WithContext(ctx))
	case reply.Update:
		_, err = h.session.InteractionResponseEdit(i, webhookEdit(reply), discordgo.WithContext(ctx))
	case !reply.Empty():
		_, err = h.session.FollowupMessageCreate(i, false, followup(reply), discordgo.WithContext(ctx))
	}
	if err != nil {
		log.Printf("[DiscordGateway] Failed to deliver reply: %v", mapError("reply", err))
	}
}

func (h *Handlers) respondNow(i *discordgo.Interaction, content string) {
	err := h.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Printf("[DiscordGateway] Failed to respond: %v", err)
	}
}

func (h *Handlers) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	msg := bot.Message{
		ID:         m.ID,
		GuildID:    m.GuildID,
		ChannelID:  m.ChannelID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		Content:    m.Content,
		IsAdmin:    h.isAdmin(m.ChannelID, m.Author.ID),
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, bot.Attachment{Filename: a.Filename, ContentType: a.ContentType})
	}

	err := h.scheduler.Submit(func(ctx context.Context) {
		reply, ok := h.commands.Handle(ctx, msg)
		if !ok || reply.Empty() {
			return
		}
		if _, err := h.session.ChannelMessageSendComplex(msg.ChannelID, messageSend(reply), discordgo.WithContext(ctx)); err != nil {
			log.Printf("[DiscordGateway] Failed to answer %s: %v", msg.AuthorID, mapError("send reply", err))
		}
	})
	if err != nil {
		log.Printf("[DiscordGateway] Dropped message from %s: %v", msg.AuthorID, err)
	}
}

func (h *Handlers) isAdmin(channelID, userID string) bool {
	if h.admins[userID] {
		return true
	}
	perms, err := h.session.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

// isMobile reports whether the user is online on a phone. Unknown presence
// means the full page size.
func (h *Handlers) isMobile(guildID, userID string) bool {
	if guildID == "" || h.session.State == nil {
		return false
	}
	p, err := h.session.State.Presence(guildID, userID)
	if err != nil {
		return false
	}
	return p.ClientStatus.Mobile != "" && p.ClientStatus.Mobile != discordgo.StatusOffline
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func busyText(err error) string {
	if errors.Is(err, bot.ErrSchedulerClosed) {
		return "⚠️ The bot is shutting down. Please try again in a minute."
	}
	return "⚠️ The bot is busy right now. Please try again shortly."
}

// webhookEdit replaces the content, embeds and controls of a message.
func webhookEdit(r bot.Reply) *discordgo.WebhookEdit {
	content := r.Content
	embeds := []*discordgo.MessageEmbed{}
	components := []discordgo.MessageComponent{}
	if r.View != nil && !r.Clear {
		embeds = append(embeds, toEmbed(*r.View))
		components = toComponents(*r.View)
	}
	return &discordgo.WebhookEdit{Content: &content, Embeds: &embeds, Components: &components}
}

func followup(r bot.Reply) *discordgo.WebhookParams {
	p := &discordgo.WebhookParams{Content: r.Content, Flags: discordgo.MessageFlagsEphemeral}
	if r.View != nil {
		p.Embeds = []*discordgo.MessageEmbed{toEmbed(*r.View)}
		p.Components = toComponents(*r.View)
	}
	return p
}

func messageSend(r bot.Reply) *discordgo.MessageSend {
	m := &discordgo.MessageSend{Content: r.Content}
	if r.View != nil {
		m.Embeds = []*discordgo.MessageEmbed{toEmbed(*r.View)}
		m.Components = toComponents(*r.View)
	}
	return m
}
