package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"cardmarket/internal/gateway"
	"cardmarket/internal/metrics"
	"cardmarket/internal/model"
	"cardmarket/internal/notify"
	"cardmarket/internal/render"
	"cardmarket/internal/repository"
)

// CategoryRefresher re-renders every live post of a category.
type CategoryRefresher interface {
	RefreshCategory(ctx context.Context, category string) error
}

// Synchronizer keeps exactly one live listing message per (category, channel)
// in step with the catalog.
type Synchronizer struct {
	store     repository.Store
	gw        gateway.Gateway
	publisher notify.Publisher
	metrics   metrics.Recorder
	locks     *repository.KeyMutex
}

// NewSynchronizer creates a Synchronizer. publisher and rec may be nil.
func NewSynchronizer(store repository.Store, gw gateway.Gateway, publisher notify.Publisher, rec metrics.Recorder) *Synchronizer {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Synchronizer{
		store:     store,
		gw:        gw,
		publisher: publisher,
		metrics:   rec,
		locks:     repository.NewKeyMutex(),
	}
}

// UpsertCategoryPost renders the category and edits its recorded message in
// channelID, or posts a new one. It returns the id of the live message.
// Calls for the same pair are serialized, so repeated calls leave one message.
func (s *Synchronizer) UpsertCategoryPost(ctx context.Context, category, channelID string) (string, error) {
	return s.sync(ctx, category, channelID, "")
}

// Refresh is UpsertCategoryPost for a refresh pressed on messageID. When no
// post is recorded for the pair the pressed message is adopted.
func (s *Synchronizer) Refresh(ctx context.Context, category, channelID, messageID string) (string, error) {
	return s.sync(ctx, category, channelID, messageID)
}

// RefreshCategory re-syncs every channel that shows category.
func (s *Synchronizer) RefreshCategory(ctx context.Context, category string) error {
	posts, err := s.store.ListPostsForCategory(ctx, category)
	if err != nil {
		return fmt.Errorf("list posts for %q: %w", category, err)
	}

	var errs []error
	for _, p := range posts {
		if _, err := s.sync(ctx, category, p.ChannelID, ""); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// View renders the full listing of category from current state.
func (s *Synchronizer) View(ctx context.Context, category string) (render.ViewModel, error) {
	cards, err := s.store.ListCardsByCategory(ctx, category)
	if err != nil {
		return render.ViewModel{}, fmt.Errorf("list cards: %w", err)
	}
	claims, err := s.store.ListClaims(ctx)
	if err != nil {
		return render.ViewModel{}, fmt.Errorf("list claims: %w", err)
	}
	return render.Full(category, cards, claims, renderOptions(ctx, s.store)), nil
}

func (s *Synchronizer) sync(ctx context.Context, category, channelID, hint string) (string, error) {
	unlock := s.locks.Lock(category + "\x00" + channelID)
	defer unlock()

	view, err := s.View(ctx, category)
	if err != nil {
		s.metrics.PostSynced(metrics.PostFailed)
		return "", fmt.Errorf("render category %q: %w", category, err)
	}

	messageID := hint
	recorded := false
	post, err := s.store.GetCategoryPost(ctx, category, channelID)
	switch {
	case err == nil:
		messageID = post.MessageID
		recorded = true
	case errors.Is(err, model.ErrNotFound):
	default:
		s.metrics.PostSynced(metrics.PostFailed)
		return "", fmt.Errorf("lookup category post: %w", err)
	}

	outcome := metrics.PostCreated
	if messageID != "" {
		err := s.gw.EditMessage(ctx, channelID, messageID, view)
		switch {
		case err == nil:
			return s.record(ctx, category, channelID, messageID, metrics.PostEdited)
		case errors.Is(err, model.ErrNotFound):
			log.Printf("[Synchronizer] Message %s for %q in %s is gone, posting a new one", messageID, category, channelID)
			if recorded {
				outcome = metrics.PostRecreated
			}
		default:
			s.metrics.PostSynced(metrics.PostFailed)
			return "", fmt.Errorf("edit category post %q in %s: %w", category, channelID, err)
		}
	}

	newID, err := s.gw.SendMessage(ctx, channelID, view)
	if err != nil {
		s.metrics.PostSynced(metrics.PostFailed)
		return "", fmt.Errorf("post category %q in %s: %w", category, channelID, err)
	}
	return s.record(ctx, category, channelID, newID, outcome)
}

func (s *Synchronizer) record(ctx context.Context, category, channelID, messageID, outcome string) (string, error) {
	err := s.store.UpsertCategoryPost(ctx, model.CategoryPost{
		Category:  category,
		ChannelID: channelID,
		MessageID: messageID,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.metrics.PostSynced(metrics.PostFailed)
		return "", fmt.Errorf("record category post: %w", err)
	}
	s.metrics.PostSynced(outcome)

	if outcome != metrics.PostEdited {
		if err := s.publisher.Publish(ctx, notify.Event{Kind: notify.PostSynced, Category: category, ID: messageID}); err != nil {
			log.Printf("[Synchronizer] Failed to publish post change: %v", err)
		}
	}
	return messageID, nil
}

// MaxAnnouncementLength bounds Announce text to what one message can carry.
const MaxAnnouncementLength = 4000

// Announce posts a plain text message to channelID and returns its id.
func (s *Synchronizer) Announce(ctx context.Context, channelID, text string) (string, error) {
	switch {
	case channelID == "" || text == "":
		return "", model.Invalid("channel id and content are required")
	case utf8.RuneCountInString(text) > MaxAnnouncementLength:
		return "", model.Invalid(fmt.Sprintf("content must be at most %d characters", MaxAnnouncementLength))
	}

	id, err := s.gw.SendMessage(ctx, channelID, render.Notice(text, renderOptions(ctx, s.store)))
	if err != nil {
		return "", fmt.Errorf("announce in %s: %w", channelID, err)
	}
	log.Printf("[Synchronizer] Announcement %s sent to %s", id, channelID)
	return id, nil
}

// renderOptions reads presentation settings, falling back to defaults.
func renderOptions(ctx context.Context, store repository.SettingsRepository) render.Options {
	settings, err := store.GetSettings(ctx)
	if err != nil {
		log.Printf("[Render] Using default settings: %v", err)
		return render.DefaultOptions()
	}
	return render.OptionsFromSettings(settings)
}
