package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cardmarket/internal/model"
)

// MemoryStore implements Store in process memory. Nothing survives a restart;
// it backs tests and the "memory" store type.
type MemoryStore struct {
	mu       sync.RWMutex
	cards    []model.Card
	sellers  []model.Seller
	claims   []model.Claim // newest first
	posts    []model.CategoryPost
	users    []model.User
	settings *model.Settings

	cardLocks *KeyMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cardLocks: NewKeyMutex()}
}

// ListCards returns all cards in insertion order.
func (s *MemoryStore) ListCards(ctx context.Context) ([]model.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Card(nil), s.cards...), nil
}

// ListCardsByCategory returns the cards of one category.
func (s *MemoryStore) ListCardsByCategory(ctx context.Context, category string) ([]model.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Card
	for _, c := range s.cards {
		if c.Category == category {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListCategories returns the sorted distinct categories.
func (s *MemoryStore) ListCategories(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, c := range s.cards {
		if !seen[c.Category] {
			seen[c.Category] = true
			out = append(out, c.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

// GetCard returns the card with id.
func (s *MemoryStore) GetCard(ctx context.Context, id string) (*model.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cards {
		if c.ID == id {
			card := c
			return &card, nil
		}
	}
	return nil, model.NotFound("card", id)
}

// CreateCard appends a card.
func (s *MemoryStore) CreateCard(ctx context.Context, card model.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cards {
		if c.ID == card.ID {
			return model.Invalid(fmt.Sprintf("card %q already exists", card.ID))
		}
	}
	s.cards = append(s.cards, card)
	return nil
}

// DeleteCard removes the card with id.
func (s *MemoryStore) DeleteCard(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cards {
		if c.ID == id {
			s.cards = append(s.cards[:i], s.cards[i+1:]...)
			return nil
		}
	}
	return model.NotFound("card", id)
}

// ListSellers returns all sellers.
func (s *MemoryStore) ListSellers(ctx context.Context) ([]model.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Seller(nil), s.sellers...), nil
}

// GetSeller returns the seller with id.
func (s *MemoryStore) GetSeller(ctx context.Context, id string) (*model.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sl := range s.sellers {
		if sl.ID == id {
			seller := sl
			return &seller, nil
		}
	}
	return nil, model.NotFound("seller", id)
}

// GetSellerByDiscordID returns the seller profile of a chat user.
func (s *MemoryStore) GetSellerByDiscordID(ctx context.Context, discordID string) (*model.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sl := range s.sellers {
		if sl.DiscordID == discordID {
			seller := sl
			return &seller, nil
		}
	}
	return nil, model.NotFound("seller for user", discordID)
}

// CreateSeller adds a seller profile.
func (s *MemoryStore) CreateSeller(ctx context.Context, seller model.Seller) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.sellers {
		if sl.DiscordID == seller.DiscordID {
			return model.Invalid("user is already registered as a seller")
		}
	}
	s.sellers = append(s.sellers, seller)
	return nil
}

// UpdateSellerChannels sets the posting and tracking channels of a seller.
func (s *MemoryStore) UpdateSellerChannels(ctx context.Context, id, postingChannelID, trackingChannelID string) (*model.Seller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sellers {
		if s.sellers[i].ID == id {
			s.sellers[i].PostingChannelID = postingChannelID
			s.sellers[i].TrackingChannelID = trackingChannelID
			seller := s.sellers[i]
			return &seller, nil
		}
	}
	return nil, model.NotFound("seller", id)
}

// ListClaims returns all claims, newest first.
func (s *MemoryStore) ListClaims(ctx context.Context) ([]model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Claim(nil), s.claims...), nil
}

// ListClaimsByUser returns a user's claims, newest first.
func (s *MemoryStore) ListClaimsByUser(ctx context.Context, userID string) ([]model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Claim
	for _, c := range s.claims {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetClaim returns the claim with id.
func (s *MemoryStore) GetClaim(ctx context.Context, id string) (*model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.claims {
		if c.ID == id {
			claim := c
			return &claim, nil
		}
	}
	return nil, model.NotFound("claim", id)
}

// InsertClaim inserts c unless its card is already claimed.
func (s *MemoryStore) InsertClaim(ctx context.Context, c model.Claim) error {
	unlock := s.cardLocks.Lock(c.CardID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.claims {
		if existing.CardID == c.CardID {
			return fmt.Errorf("card %q: %w", c.CardID, model.ErrAlreadyClaimed)
		}
	}
	s.claims = append([]model.Claim{c}, s.claims...)
	return nil
}

// DeleteClaim removes userID's claim on cardID.
func (s *MemoryStore) DeleteClaim(ctx context.Context, userID, cardID string) error {
	unlock := s.cardLocks.Lock(cardID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.claims {
		if c.UserID == userID && c.CardID == cardID {
			s.claims = append(s.claims[:i], s.claims[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("card %q: %w", cardID, model.ErrNotClaimed)
}

// UpdateClaim applies patch to the claim with claimID.
func (s *MemoryStore) UpdateClaim(ctx context.Context, claimID string, patch model.ClaimPatch) (*model.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.claims {
		if s.claims[i].ID == claimID {
			if patch.Paid != nil {
				s.claims[i].Paid = *patch.Paid
			}
			claim := s.claims[i]
			return &claim, nil
		}
	}
	return nil, model.NotFound("claim", claimID)
}

// GetCategoryPost returns the post recorded for (category, channel).
func (s *MemoryStore) GetCategoryPost(ctx context.Context, category, channelID string) (*model.CategoryPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.posts {
		if p.Category == category && p.ChannelID == channelID {
			post := p
			return &post, nil
		}
	}
	return nil, model.NotFound("category post", category+"@"+channelID)
}

// UpsertCategoryPost records post, replacing the message id of an existing pair.
func (s *MemoryStore) UpsertCategoryPost(ctx context.Context, post model.CategoryPost) error {
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].Category == post.Category && s.posts[i].ChannelID == post.ChannelID {
			s.posts[i].MessageID = post.MessageID
			s.posts[i].UpdatedAt = post.UpdatedAt
			return nil
		}
	}
	s.posts = append(s.posts, post)
	return nil
}

// ListCategoryPosts returns all recorded posts.
func (s *MemoryStore) ListCategoryPosts(ctx context.Context) ([]model.CategoryPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.CategoryPost(nil), s.posts...), nil
}

// ListPostsForCategory returns the posts of one category across channels.
func (s *MemoryStore) ListPostsForCategory(ctx context.Context, category string) ([]model.CategoryPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CategoryPost
	for _, p := range s.posts {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

// FindOrCreateUser registers user unless already known.
func (s *MemoryStore) FindOrCreateUser(ctx context.Context, user model.User) (*model.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == user.ID {
			found := u
			return &found, false, nil
		}
	}
	s.users = append(s.users, user)
	return &user, true, nil
}

// ListUsers returns registered users.
func (s *MemoryStore) ListUsers(ctx context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.User(nil), s.users...), nil
}

// GetSettings returns the stored settings or the defaults.
func (s *MemoryStore) GetSettings(ctx context.Context) (model.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return model.DefaultSettings(), nil
	}
	return *s.settings, nil
}

// SaveSettings replaces the stored settings.
func (s *MemoryStore) SaveSettings(ctx context.Context, settings model.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}

// Stats returns record counts.
func (s *MemoryStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"driver":  "memory",
		"cards":   len(s.cards),
		"sellers": len(s.sellers),
		"claims":  len(s.claims),
		"posts":   len(s.posts),
		"users":   len(s.users),
	}, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
