package discord

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"cardmarket/internal/model"
	"cardmarket/internal/render"
)

// maxDescription is the platform limit on embed descriptions.
const maxDescription = 4096

var buttonStyles = map[render.Style]discordgo.ButtonStyle{
	render.StylePrimary:   discordgo.PrimaryButton,
	render.StyleSecondary: discordgo.SecondaryButton,
	render.StyleSuccess:   discordgo.SuccessButton,
	render.StyleDanger:    discordgo.DangerButton,
}

// toEmbed draws the text part of a view.
func toEmbed(v render.ViewModel) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(v.Rows))
	for _, r := range v.Rows {
		lines = append(lines, r.Text)
	}
	desc := fitDescription(lines, maxDescription)
	if desc == "" {
		desc = truncateRunes(v.EmptyText, maxDescription)
	}

	embed := &discordgo.MessageEmbed{
		Title:       v.Title,
		Description: desc,
		Color:       v.Color,
	}
	if v.CoverImage != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: v.CoverImage}
	}

	footer := v.Footer
	if v.Mode == render.ModePaged {
		footer = strings.TrimSpace(fmt.Sprintf("Page %d/%d %s", v.Page+1, v.TotalPages, footer))
	}
	if footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	}
	return embed
}

// fitDescription joins whole lines while they fit in limit characters. Lines
// that do not fit are counted in a closing "…and N more" line.
func fitDescription(lines []string, limit int) string {
	if all := strings.Join(lines, "\n"); utf8.RuneCountInString(all) <= limit {
		return all
	}

	var b strings.Builder
	used := 0
	for i, line := range lines {
		n := utf8.RuneCountInString(line)
		if i > 0 {
			n++
		}
		rest := len(lines) - i - 1
		reserve := 0
		if rest > 0 {
			reserve = utf8.RuneCountInString(moreLine(rest)) + 1
		}
		if used+n+reserve > limit {
			if i == 0 {
				if rest == 0 {
					return truncateRunes(line, limit)
				}
				more := moreLine(rest)
				return truncateRunes(line, limit-utf8.RuneCountInString(more)-1) + "\n" + more
			}
			b.WriteString("\n" + moreLine(len(lines)-i))
			return b.String()
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		used += n
	}
	return b.String()
}

func moreLine(n int) string {
	return fmt.Sprintf("…and %d more", n)
}

// truncateRunes cuts s to at most limit characters on a rune boundary.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 1 {
		return "…"
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

// toComponents draws the interactive part of a view, one action row per group.
func toComponents(v render.ViewModel) []discordgo.MessageComponent {
	rows := make([]discordgo.MessageComponent, 0, len(v.Groups))
	for _, group := range v.Groups {
		buttons := make([]discordgo.MessageComponent, 0, len(group))
		for _, a := range group {
			id, err := a.Action.Encode()
			if err != nil {
				log.Printf("[DiscordGateway] Skipping control %q: %v", a.Label, err)
				continue
			}
			buttons = append(buttons, discordgo.Button{
				Label:    a.Label,
				Style:    buttonStyles[a.Style],
				Disabled: a.Disabled,
				CustomID: id,
			})
		}
		if len(buttons) > 0 {
			rows = append(rows, discordgo.ActionsRow{Components: buttons})
		}
	}
	return rows
}

// mapError translates a discordgo failure into the domain vocabulary.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
				return fmt.Errorf("%s: %w: %v", op, model.ErrNotFound, err)
			}
		}
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w: %v", op, model.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, model.ErrExternalUnavailable, err)
}
