package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"cardmarket/internal/model"
	"cardmarket/internal/render"
	"cardmarket/internal/service"
)

// Message is an inbound chat message.
type Message struct {
	ID          string
	GuildID     string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	Content     string
	Attachments []Attachment
	// IsAdmin is resolved by the platform adapter.
	IsAdmin bool
}

// Attachment is a file uploaded with a message.
type Attachment struct {
	Filename    string
	ContentType string
}

// Channel is a text channel the bot can post in.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChannelDirectory finds channels by name or id for setup flows.
type ChannelDirectory interface {
	FindChannels(ctx context.Context, guildID, query string) ([]Channel, error)
}

// DefaultPrefix starts every command.
const DefaultPrefix = "!"

// Commands handles prefixed chat commands and the setup flows they start.
type Commands struct {
	prefix   string
	catalog  *service.Catalog
	ledger   *service.Ledger
	sync     *service.Synchronizer
	setups   *SetupStore
	channels ChannelDirectory
	limiter  Limiter
}

// NewCommands creates a command handler. channels and limiter may be nil.
func NewCommands(prefix string, catalog *service.Catalog, ledger *service.Ledger, sync *service.Synchronizer, setups *SetupStore, channels ChannelDirectory, limiter Limiter) *Commands {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if limiter == nil {
		limiter = allowAll{}
	}
	return &Commands{
		prefix:   prefix,
		catalog:  catalog,
		ledger:   ledger,
		sync:     sync,
		setups:   setups,
		channels: channels,
		limiter:  limiter,
	}
}

// Handle answers m. The bool is false when the message is not for the bot.
func (c *Commands) Handle(ctx context.Context, m Message) (Reply, bool) {
	if st, ok := c.setups.Get(m.AuthorID); ok {
		if strings.EqualFold(strings.TrimSpace(m.Content), c.prefix+"cancel") {
			c.setups.Delete(m.AuthorID)
			return Reply{Content: "Setup cancelled."}, true
		}
		return c.continueSetup(ctx, m, st), true
	}

	if !strings.HasPrefix(m.Content, c.prefix) {
		return Reply{}, false
	}
	args := Tokenize(strings.TrimPrefix(m.Content, c.prefix))
	if len(args) == 0 {
		return Reply{}, false
	}
	if !c.limiter.Allow(m.AuthorID) {
		return Reply{Content: "⏳ You're doing that too fast. Please wait a moment."}, true
	}

	command, args := strings.ToLower(args[0]), args[1:]
	reply, err := c.run(ctx, m, command, args)
	if err != nil {
		outcome, text := describe(err)
		if outcome == "error" {
			log.Printf("[Commands] %s by %s failed: %v", command, m.AuthorID, err)
		}
		return Reply{Content: text}, true
	}
	return reply, true
}

func (c *Commands) run(ctx context.Context, m Message, command string, args []string) (Reply, error) {
	switch command {
	case "register":
		created, err := c.catalog.RegisterUser(ctx, m.AuthorID, m.AuthorName)
		if err != nil {
			return Reply{}, err
		}
		if !created {
			return Reply{Content: "You are already registered."}, nil
		}
		return Reply{Content: "You have been successfully registered!"}, nil

	case "cart":
		claims, err := c.ledger.Cart(ctx, m.AuthorID)
		if err != nil {
			return Reply{}, err
		}
		if len(claims) == 0 {
			return Reply{Content: render.EmptyCartText}, nil
		}
		settings, err := c.catalog.Settings(ctx)
		if err != nil {
			return Reply{}, err
		}
		view := render.Cart(m.AuthorName, claims, render.OptionsFromSettings(settings))
		return Reply{View: &view}, nil

	case "claim":
		if len(args) == 0 {
			return Reply{Content: "Please provide a card ID to claim."}, nil
		}
		claim, err := c.ledger.Claim(ctx, m.AuthorID, m.AuthorName, args[0])
		if err != nil {
			return Reply{}, err
		}
		return Reply{Content: fmt.Sprintf("You have successfully claimed **%s**!", claim.CardName)}, nil

	case "setup":
		isSeller, err := c.catalog.IsSeller(ctx, m.AuthorID)
		if err != nil {
			return Reply{}, err
		}
		if isSeller {
			return Reply{Content: fmt.Sprintf("You are already set up as a seller. Use `%smyinfo` to see your details.", c.prefix)}, nil
		}
		c.setups.Save(m.AuthorID, Setup{Kind: SetupSeller, Step: StepName})
		return Reply{Content: "**Welcome to Seller Setup!**\nThis will guide you through setting up your seller profile.\n\nFirst, what is your seller name?"}, nil

	case "myinfo":
		seller, err := c.requireSeller(ctx, m.AuthorID)
		if err != nil {
			return Reply{}, err
		}
		if seller == nil {
			return c.sellersOnly(), nil
		}
		view := sellerInfoView(*seller)
		return Reply{View: &view}, nil

	case "addcard":
		seller, err := c.requireSeller(ctx, m.AuthorID)
		if err != nil {
			return Reply{}, err
		}
		if seller == nil {
			return c.sellersOnly(), nil
		}
		if len(args) < 3 {
			return Reply{Content: fmt.Sprintf("**Usage:** `%saddcard <Price> \"<Category>\" \"<Name>\"`", c.prefix)}, nil
		}
		price, err := strconv.ParseFloat(args[0], 64)
		if err != nil || !model.ValidPrice(price) {
			return Reply{Content: "Price must be a valid number."}, nil
		}
		c.setups.Save(m.AuthorID, Setup{
			Kind: SetupCard,
			Step: StepFrontImage,
			Card: model.NewCard{SellerID: seller.ID, Price: price, Category: args[1], Name: args[2]},
		})
		return Reply{Content: "✅ Card details staged. **Please upload the FRONT image now.**"}, nil

	case "delcard":
		if len(args) == 0 {
			return Reply{Content: fmt.Sprintf("**Usage:** `%sdelcard <Card_ID>`", c.prefix)}, nil
		}
		if err := c.catalog.DeleteCard(ctx, m.AuthorID, m.IsAdmin, args[0]); err != nil {
			return Reply{}, err
		}
		return Reply{Content: fmt.Sprintf("✅ Card `%s` has been deleted.", args[0])}, nil

	case "postcategory":
		if !m.IsAdmin {
			return Reply{Content: "This is an admin-only command."}, nil
		}
		if len(args) == 0 {
			return Reply{Content: fmt.Sprintf("**Usage:** `%spostcategory <Category> [Channel_ID]`", c.prefix)}, nil
		}
		channelID := m.ChannelID
		if len(args) > 1 {
			channelID = channelMentionID(args[1])
		}
		id, err := c.sync.UpsertCategoryPost(ctx, args[0], channelID)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Content: fmt.Sprintf("Category post sent with message ID `%s`.", id)}, nil

	case "rtcohelp":
		isSeller, err := c.catalog.IsSeller(ctx, m.AuthorID)
		if err != nil {
			return Reply{}, err
		}
		view := c.helpView(isSeller, m.IsAdmin)
		return Reply{View: &view}, nil
	}
	return Reply{Content: fmt.Sprintf("Unknown command. Type `%srtcohelp` to see a list of available commands.", c.prefix)}, nil
}

// requireSeller returns the actor's seller profile. A nil seller with a nil
// error means the actor is not a seller.
func (c *Commands) requireSeller(ctx context.Context, discordID string) (*model.Seller, error) {
	seller, err := c.catalog.SellerByDiscordID(ctx, discordID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	return seller, err
}

func (c *Commands) sellersOnly() Reply {
	return Reply{Content: fmt.Sprintf("This command is for sellers only. Use `%ssetup` to get started.", c.prefix)}
}

func (c *Commands) continueSetup(ctx context.Context, m Message, st Setup) Reply {
	switch st.Kind {
	case SetupSeller:
		return c.sellerStep(ctx, m, st)
	case SetupCard:
		return c.cardStep(ctx, m, st)
	}
	c.setups.Delete(m.AuthorID)
	return Reply{}
}

func (c *Commands) sellerStep(ctx context.Context, m Message, st Setup) Reply {
	input := strings.TrimSpace(m.Content)

	switch st.Step {
	case StepName:
		if input == "" {
			return Reply{Content: "Please type your seller name."}
		}
		st.SellerName = input
		st.Step = StepPostingChannel
		c.setups.Save(m.AuthorID, st)
		return Reply{Content: fmt.Sprintf("✅ Seller name set to **%s**. **Now, please type the name or paste the mention of your POSTING channel.** (e.g., `item-sales` or `#item-sales`)", input)}

	case StepPostingChannel, StepTrackingChannel:
		ch, candidates, problem := c.resolveChannel(ctx, m.GuildID, input)
		if problem != "" {
			return Reply{Content: problem}
		}
		if ch == nil {
			st.Candidates = candidates
			role := "POSTING"
			if st.Step == StepTrackingChannel {
				role = "TRACKING"
				st.Step = StepConfirmTrackingChannel
			} else {
				st.Step = StepConfirmPostingChannel
			}
			c.setups.Save(m.AuthorID, st)
			return Reply{Content: fmt.Sprintf("I found the following channels for \"%s\":\n%s\nPlease type the **exact ID** of the channel you want to set as your %s channel.",
				input, channelList(candidates), role)}
		}
		return c.acceptChannel(ctx, m, st, *ch)

	case StepConfirmPostingChannel, StepConfirmTrackingChannel:
		id := channelMentionID(input)
		for _, ch := range st.Candidates {
			if ch.ID == id {
				return c.acceptChannel(ctx, m, st, ch)
			}
		}
		return Reply{Content: "❌ Invalid channel ID. Please type one of the IDs from the list above."}
	}

	c.setups.Delete(m.AuthorID)
	return Reply{}
}

func (c *Commands) acceptChannel(ctx context.Context, m Message, st Setup, ch Channel) Reply {
	st.Candidates = nil
	if st.Step == StepPostingChannel || st.Step == StepConfirmPostingChannel {
		st.PostingChannelID = ch.ID
		st.Step = StepTrackingChannel
		c.setups.Save(m.AuthorID, st)
		return Reply{Content: fmt.Sprintf("✅ Posting channel set to **#%s**. **Now, please type the name or paste the mention of your TRACKING channel.** (e.g., `seller-tracking` or `#seller-tracking`)", ch.Name)}
	}

	defer c.setups.Delete(m.AuthorID)
	seller, err := c.catalog.RegisterSeller(ctx, m.AuthorID, st.SellerName, st.PostingChannelID, ch.ID)
	if err != nil {
		_, text := describe(err)
		return Reply{Content: text}
	}
	return Reply{Content: fmt.Sprintf("🎉 **Success!** You are now registered as seller **%s**. Posting: <#%s>. Tracking: <#%s>. You can now use seller commands like `%saddcard`.",
		seller.Name, seller.PostingChannelID, seller.TrackingChannelID, c.prefix)}
}

// resolveChannel returns the single channel input names, or the candidates
// when the input is ambiguous. problem is the text to show when neither.
func (c *Commands) resolveChannel(ctx context.Context, guildID, input string) (ch *Channel, candidates []Channel, problem string) {
	query := channelMentionID(input)
	if query == "" {
		return nil, nil, "Please provide a channel name or ID."
	}
	if c.channels == nil {
		if !isSnowflake(query) {
			return nil, nil, "❌ Please paste the channel mention or type the channel ID."
		}
		return &Channel{ID: query, Name: query}, nil, ""
	}

	found, err := c.channels.FindChannels(ctx, guildID, query)
	if err != nil {
		log.Printf("[Commands] Channel lookup for %q failed: %v", query, err)
		return nil, nil, "❌ Could not look up channels right now. Please try again."
	}
	if len(found) == 0 {
		return nil, nil, fmt.Sprintf("❌ No text channels found matching \"%s\". Please try again or type the exact channel ID.", input)
	}
	if len(found) == 1 && (found[0].ID == query || strings.EqualFold(found[0].Name, query)) {
		return &found[0], nil, ""
	}
	return nil, found, ""
}

func (c *Commands) cardStep(ctx context.Context, m Message, st Setup) Reply {
	var image *Attachment
	for i := range m.Attachments {
		if strings.HasPrefix(m.Attachments[i].ContentType, "image/") {
			image = &m.Attachments[i]
			break
		}
	}
	if image == nil {
		return Reply{Content: "That was not an image. Please upload an image file."}
	}
	ref := model.ImageRef{ChannelID: m.ChannelID, MessageID: m.ID, Filename: image.Filename}

	if st.Step == StepFrontImage {
		st.Card.FrontImage = ref
		st.Step = StepBackImage
		c.setups.Save(m.AuthorID, st)
		return Reply{Content: "✅ Front image received. **Please upload the BACK image now.**"}
	}

	defer c.setups.Delete(m.AuthorID)
	st.Card.BackImage = ref
	card, err := c.catalog.AddCard(ctx, st.Card)
	if err != nil {
		_, text := describe(err)
		return Reply{Content: text}
	}
	return Reply{Content: fmt.Sprintf("🎉 **Success!** New card **%s** (ID: `%s`) has been added to **%s**.", card.DisplayName(), card.ID, card.Category)}
}

func (c *Commands) helpView(isSeller, isAdmin bool) render.ViewModel {
	p := c.prefix
	rows := []render.Row{{Text: fmt.Sprintf("**User Commands**\n`%sregister` (register with bot)\n`%ssetup` (start seller setup)\n`%scart` (view claims)\n`%sclaim <ID>` (claim)\n`%srtcohelp` (help)", p, p, p, p, p)}}
	if isSeller {
		rows = append(rows, render.Row{Text: fmt.Sprintf("**Seller Commands**\n`%smyinfo` (seller info)\n`%saddcard <Price> \"<Category>\" \"<Name>\"` (add card)\n`%sdelcard <ID>` (delete your card)", p, p, p)})
	}
	if isAdmin {
		rows = append(rows, render.Row{Text: fmt.Sprintf("**Admin Commands**\n`%sdelcard <ID>` (delete card)\n`%spostcategory <Category> [Channel_ID]` (post category embed)", p, p)})
	}
	return render.ViewModel{Title: "RTCO Bot Command List", Rows: rows, Color: 0xb91c1c, TotalPages: 1}
}

func sellerInfoView(s model.Seller) render.ViewModel {
	name := s.Name
	if name == "" {
		name = "Unknown Seller"
	}
	return render.ViewModel{
		Title:      name + "'s Info",
		Color:      0xffeb3b,
		TotalPages: 1,
		Rows: []render.Row{
			{Text: "**Seller Name:** " + name},
			{Text: fmt.Sprintf("**Discord ID:** `%s`", s.DiscordID)},
			{Text: "**Posting Channel:** " + channelOrNotSet(s.PostingChannelID)},
			{Text: "**Tracking Channel:** " + channelOrNotSet(s.TrackingChannelID)},
		},
	}
}

func channelOrNotSet(id string) string {
	if id == "" {
		return "Not Set"
	}
	return "<#" + id + ">"
}

func channelList(chs []Channel) string {
	const shown = 5
	var b strings.Builder
	for i, ch := range chs {
		if i == shown {
			fmt.Fprintf(&b, "...and %d more.", len(chs)-shown)
			break
		}
		fmt.Fprintf(&b, "**#%s** (ID: `%s`)\n", ch.Name, ch.ID)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

var mentionPattern = regexp.MustCompile(`^<#(\d+)>$`)

// channelMentionID strips mention syntax and a leading '#'.
func channelMentionID(s string) string {
	s = strings.TrimSpace(s)
	if m := mentionPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.TrimPrefix(s, "#")
}

func isSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Tokenize splits a command line on whitespace. Double quotes group words
// and are removed.
func Tokenize(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case unicode.IsSpace(r) && !inQuote:
			if started {
				out = append(out, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		out = append(out, cur.String())
	}
	return out
}
