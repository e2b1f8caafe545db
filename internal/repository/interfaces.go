package repository

import (
	"context"

	"cardmarket/internal/model"
)

// CardRepository defines card data access methods.
type CardRepository interface {
	// ListCards returns all cards in listing order.
	ListCards(ctx context.Context) ([]model.Card, error)

	// ListCardsByCategory returns the cards of one category in listing order.
	ListCardsByCategory(ctx context.Context, category string) ([]model.Card, error)

	// ListCategories returns the distinct categories that have cards.
	ListCategories(ctx context.Context) ([]string, error)

	// GetCard returns model.ErrNotFound when the id is unknown.
	GetCard(ctx context.Context, id string) (*model.Card, error)

	CreateCard(ctx context.Context, card model.Card) error

	// DeleteCard returns model.ErrNotFound when the id is unknown.
	DeleteCard(ctx context.Context, id string) error
}

// SellerRepository defines seller data access methods.
type SellerRepository interface {
	ListSellers(ctx context.Context) ([]model.Seller, error)
	GetSeller(ctx context.Context, id string) (*model.Seller, error)
	GetSellerByDiscordID(ctx context.Context, discordID string) (*model.Seller, error)

	// CreateSeller fails with model.ErrInvalidInput when the chat user already
	// has a seller profile.
	CreateSeller(ctx context.Context, seller model.Seller) error

	UpdateSellerChannels(ctx context.Context, id, postingChannelID, trackingChannelID string) (*model.Seller, error)
}

// ClaimRepository defines claim data access methods.
type ClaimRepository interface {
	// ListClaims returns all claims, newest first.
	ListClaims(ctx context.Context) ([]model.Claim, error)
	ListClaimsByUser(ctx context.Context, userID string) ([]model.Claim, error)
	GetClaim(ctx context.Context, id string) (*model.Claim, error)

	// InsertClaim checks that the card has no claim and inserts c as one
	// uninterruptible step. It returns model.ErrAlreadyClaimed otherwise.
	InsertClaim(ctx context.Context, c model.Claim) error

	// DeleteClaim removes the claim userID holds on cardID, or returns
	// model.ErrNotClaimed.
	DeleteClaim(ctx context.Context, userID, cardID string) error

	// UpdateClaim applies patch and returns the updated claim.
	UpdateClaim(ctx context.Context, claimID string, patch model.ClaimPatch) (*model.Claim, error)
}

// PostRepository defines category post data access methods.
type PostRepository interface {
	// GetCategoryPost returns model.ErrNotFound when no post is recorded.
	GetCategoryPost(ctx context.Context, category, channelID string) (*model.CategoryPost, error)

	// UpsertCategoryPost records the message for (category, channel),
	// replacing any previous message id for the pair.
	UpsertCategoryPost(ctx context.Context, post model.CategoryPost) error

	ListCategoryPosts(ctx context.Context) ([]model.CategoryPost, error)
	ListPostsForCategory(ctx context.Context, category string) ([]model.CategoryPost, error)
}

// UserRepository defines registered user data access methods.
type UserRepository interface {
	// FindOrCreateUser returns the stored user and whether it was created.
	FindOrCreateUser(ctx context.Context, user model.User) (*model.User, bool, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

// SettingsRepository stores presentation settings.
type SettingsRepository interface {
	// GetSettings returns model.DefaultSettings until settings are saved.
	GetSettings(ctx context.Context) (model.Settings, error)
	SaveSettings(ctx context.Context, s model.Settings) error
}

// Store is the catalog store: it owns every durable record.
type Store interface {
	CardRepository
	SellerRepository
	ClaimRepository
	PostRepository
	UserRepository
	SettingsRepository

	// Stats returns statistics about the store.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the store connection.
	Close() error
}
