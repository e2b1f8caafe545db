package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cardmarket/internal/model"
	"cardmarket/internal/notify"
	"cardmarket/internal/render"
	"cardmarket/internal/repository"
	"cardmarket/pkg/uid"
)

// Catalog manages cards, sellers, users and settings.
type Catalog struct {
	store     repository.Store
	refresher CategoryRefresher
	publisher notify.Publisher
}

// NewCatalog creates a Catalog. refresher and publisher may be nil.
func NewCatalog(store repository.Store, refresher CategoryRefresher, publisher notify.Publisher) *Catalog {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &Catalog{store: store, refresher: refresher, publisher: publisher}
}

// AddCard lists a new card for an existing seller.
func (c *Catalog) AddCard(ctx context.Context, in model.NewCard) (*model.Card, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := c.store.GetSeller(ctx, in.SellerID); err != nil {
		return nil, err
	}

	card := model.Card{
		ID:          uid.NewPrefixed(uid.PrefixCard),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		SellerID:    in.SellerID,
		FrontImage:  in.FrontImage,
		BackImage:   in.BackImage,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.store.CreateCard(ctx, card); err != nil {
		return nil, err
	}

	log.Printf("[Catalog] Card %s (%q) added to %q by seller %s", card.ID, card.DisplayName(), card.Category, card.SellerID)
	c.afterChange(ctx, notify.CardAdded, card.Category, card.ID)
	return &card, nil
}

// DeleteCard removes a card. Only admins and the card's seller may delete it.
// Claims on the card are kept.
func (c *Catalog) DeleteCard(ctx context.Context, actorID string, isAdmin bool, cardID string) error {
	card, err := c.store.GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	if !isAdmin {
		seller, err := c.store.GetSeller(ctx, card.SellerID)
		if err != nil || seller.DiscordID != actorID {
			return fmt.Errorf("delete card %q: %w", cardID, model.ErrPermission)
		}
	}

	if err := c.store.DeleteCard(ctx, cardID); err != nil {
		return err
	}
	log.Printf("[Catalog] Card %s deleted by %s", cardID, actorID)
	c.afterChange(ctx, notify.CardDeleted, card.Category, cardID)
	return nil
}

// Cards returns every card.
func (c *Catalog) Cards(ctx context.Context) ([]model.Card, error) {
	return c.store.ListCards(ctx)
}

// Categories returns the categories that have cards.
func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	return c.store.ListCategories(ctx)
}

// RegisterSeller creates a seller profile for a chat user.
func (c *Catalog) RegisterSeller(ctx context.Context, discordID, name, postingChannelID, trackingChannelID string) (*model.Seller, error) {
	name = strings.TrimSpace(name)
	if discordID == "" {
		return nil, model.Invalid("discord id is required")
	}
	if name == "" {
		return nil, model.Invalid("seller name is required")
	}

	seller := model.Seller{
		ID:                uid.NewPrefixed(uid.PrefixSeller),
		DiscordID:         discordID,
		Name:              name,
		PostingChannelID:  postingChannelID,
		TrackingChannelID: trackingChannelID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := c.store.CreateSeller(ctx, seller); err != nil {
		return nil, err
	}

	log.Printf("[Catalog] Seller %s (%q) registered for %s", seller.ID, seller.Name, discordID)
	c.afterChange(ctx, notify.SellerChanged, "", seller.ID)
	return &seller, nil
}

// UpdateSellerChannels changes where a seller posts and tracks.
func (c *Catalog) UpdateSellerChannels(ctx context.Context, sellerID, postingChannelID, trackingChannelID string) (*model.Seller, error) {
	seller, err := c.store.UpdateSellerChannels(ctx, sellerID, postingChannelID, trackingChannelID)
	if err != nil {
		return nil, err
	}
	c.afterChange(ctx, notify.SellerChanged, "", sellerID)
	return seller, nil
}

// SellerByDiscordID returns the seller profile of a chat user.
func (c *Catalog) SellerByDiscordID(ctx context.Context, discordID string) (*model.Seller, error) {
	return c.store.GetSellerByDiscordID(ctx, discordID)
}

// IsSeller reports whether the chat user has a seller profile.
func (c *Catalog) IsSeller(ctx context.Context, discordID string) (bool, error) {
	_, err := c.store.GetSellerByDiscordID(ctx, discordID)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// RegisterUser records a chat user. It reports whether the user is new.
func (c *Catalog) RegisterUser(ctx context.Context, id, username string) (bool, error) {
	_, created, err := c.store.FindOrCreateUser(ctx, model.User{ID: id, Username: username})
	return created, err
}

// Settings returns presentation settings.
func (c *Catalog) Settings(ctx context.Context) (model.Settings, error) {
	return c.store.GetSettings(ctx)
}

// SaveSettings validates and stores presentation settings, then redraws
// every live category post.
func (c *Catalog) SaveSettings(ctx context.Context, s model.Settings) (model.Settings, error) {
	if _, ok := render.ParseColor(s.EmbedColor); !ok {
		return model.Settings{}, model.Invalid(fmt.Sprintf("embed color %q is not #rrggbb", s.EmbedColor))
	}
	if s.EmbedTitleSize < 8 || s.EmbedTitleSize > 64 {
		return model.Settings{}, model.Invalid("embed title size must be between 8 and 64")
	}
	switch s.ButtonLayout {
	case model.LayoutRow, model.LayoutColumn:
	default:
		return model.Settings{}, model.Invalid(fmt.Sprintf("button layout %q must be row or column", s.ButtonLayout))
	}

	if err := c.store.SaveSettings(ctx, s); err != nil {
		return model.Settings{}, err
	}

	categories := map[string]bool{}
	if posts, err := c.store.ListCategoryPosts(ctx); err == nil {
		for _, p := range posts {
			categories[p.Category] = true
		}
	}
	for category := range categories {
		c.refresh(ctx, category)
	}
	if err := c.publisher.Publish(ctx, notify.Event{Kind: notify.SettingsSaved, At: time.Now().UTC()}); err != nil {
		log.Printf("[Catalog] Failed to publish %s: %v", notify.SettingsSaved, err)
	}
	return s, nil
}

// Snapshot is everything the dashboard shows.
type Snapshot struct {
	Cards    []model.Card         `json:"cards"`
	Users    []model.User         `json:"users"`
	Claims   []model.Claim        `json:"claims"`
	Sellers  []model.Seller       `json:"sellers"`
	Posts    []model.CategoryPost `json:"posts"`
	Settings model.Settings       `json:"settings"`
}

// Snapshot reads the whole catalog.
func (c *Catalog) Snapshot(ctx context.Context) (*Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.Cards, err = c.store.ListCards(ctx); err != nil {
		return nil, err
	}
	if snap.Users, err = c.store.ListUsers(ctx); err != nil {
		return nil, err
	}
	if snap.Claims, err = c.store.ListClaims(ctx); err != nil {
		return nil, err
	}
	if snap.Sellers, err = c.store.ListSellers(ctx); err != nil {
		return nil, err
	}
	if snap.Posts, err = c.store.ListCategoryPosts(ctx); err != nil {
		return nil, err
	}
	if snap.Settings, err = c.store.GetSettings(ctx); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Catalog) refresh(ctx context.Context, category string) {
	if category == "" || c.refresher == nil {
		return
	}
	if err := c.refresher.RefreshCategory(ctx, category); err != nil {
		log.Printf("[Catalog] Re-sync of %q failed: %v", category, err)
	}
}

func (c *Catalog) afterChange(ctx context.Context, kind notify.Kind, category, id string) {
	c.refresh(ctx, category)
	if err := c.publisher.Publish(ctx, notify.Event{Kind: kind, Category: category, ID: id, At: time.Now().UTC()}); err != nil {
		log.Printf("[Catalog] Failed to publish %s: %v", kind, err)
	}
}
