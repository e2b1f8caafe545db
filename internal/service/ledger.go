package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cardmarket/internal/metrics"
	"cardmarket/internal/model"
	"cardmarket/internal/notify"
	"cardmarket/internal/repository"
	"cardmarket/pkg/uid"
)

// Ledger owns claim state. Every mutation is followed by a re-sync of the
// affected category; re-sync failures are logged and never undo the mutation.
type Ledger struct {
	store     repository.Store
	refresher CategoryRefresher
	publisher notify.Publisher
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewLedger creates a Ledger. refresher, publisher and rec may be nil.
func NewLedger(store repository.Store, refresher CategoryRefresher, publisher notify.Publisher, rec metrics.Recorder) *Ledger {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Ledger{
		store:     store,
		refresher: refresher,
		publisher: publisher,
		metrics:   rec,
		now:       time.Now,
	}
}

// Claim reserves cardID for userID.
func (l *Ledger) Claim(ctx context.Context, userID, username, cardID string) (*model.Claim, error) {
	card, err := l.store.GetCard(ctx, cardID)
	if err != nil {
		l.metrics.ClaimResult("not_found")
		return nil, err
	}

	claim := model.Claim{
		ID:        uid.NewPrefixed(uid.PrefixClaim),
		UserID:    userID,
		Username:  username,
		CardID:    card.ID,
		CardName:  card.DisplayName(),
		Price:     card.Price,
		Paid:      false,
		Timestamp: l.now().UTC(),
	}
	if err := l.store.InsertClaim(ctx, claim); err != nil {
		if errors.Is(err, model.ErrAlreadyClaimed) {
			l.metrics.ClaimResult("already_claimed")
		}
		return nil, err
	}

	log.Printf("[Ledger] %s (%s) claimed %s", username, userID, cardID)
	l.metrics.ClaimResult("claimed")
	l.afterChange(ctx, notify.ClaimCreated, card.Category, claim.ID)
	return &claim, nil
}

// Unclaim releases userID's claim on cardID.
func (l *Ledger) Unclaim(ctx context.Context, userID, cardID string) error {
	if err := l.store.DeleteClaim(ctx, userID, cardID); err != nil {
		if errors.Is(err, model.ErrNotClaimed) {
			l.metrics.ClaimResult("not_claimed")
		}
		return err
	}

	log.Printf("[Ledger] %s released %s", userID, cardID)
	l.metrics.ClaimResult("unclaimed")
	l.afterChange(ctx, notify.ClaimRemoved, l.categoryOf(ctx, cardID), cardID)
	return nil
}

// MarkPaid flags userID's claim as paid. Marking a paid claim again is a no-op.
// A claim held by someone else is reported as not found.
func (l *Ledger) MarkPaid(ctx context.Context, userID, claimID string) error {
	claim, err := l.store.GetClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if claim.UserID != userID {
		return model.NotFound("claim", claimID)
	}
	if claim.Paid {
		return nil
	}

	if _, err := l.setPaid(ctx, claimID, true); err != nil {
		return err
	}
	l.metrics.ClaimResult("paid")
	return nil
}

// SetPaid overrides the paid flag of any claim. Used from the dashboard.
func (l *Ledger) SetPaid(ctx context.Context, claimID string, paid bool) (*model.Claim, error) {
	return l.setPaid(ctx, claimID, paid)
}

func (l *Ledger) setPaid(ctx context.Context, claimID string, paid bool) (*model.Claim, error) {
	updated, err := l.store.UpdateClaim(ctx, claimID, model.ClaimPatch{Paid: &paid})
	if err != nil {
		return nil, err
	}
	log.Printf("[Ledger] Claim %s paid=%t", claimID, paid)
	l.afterChange(ctx, notify.ClaimPaid, l.categoryOf(ctx, updated.CardID), claimID)
	return updated, nil
}

// Cart returns userID's claims, newest first.
func (l *Ledger) Cart(ctx context.Context, userID string) ([]model.Claim, error) {
	claims, err := l.store.ListClaimsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

// categoryOf returns "" when the card is gone; claims outlive deleted cards.
func (l *Ledger) categoryOf(ctx context.Context, cardID string) string {
	card, err := l.store.GetCard(ctx, cardID)
	if err != nil {
		return ""
	}
	return card.Category
}

func (l *Ledger) afterChange(ctx context.Context, kind notify.Kind, category, id string) {
	if category != "" && l.refresher != nil {
		if err := l.refresher.RefreshCategory(ctx, category); err != nil {
			log.Printf("[Ledger] Re-sync of %q failed: %v", category, err)
		}
	}
	if err := l.publisher.Publish(ctx, notify.Event{Kind: kind, Category: category, ID: id, At: l.now().UTC()}); err != nil {
		log.Printf("[Ledger] Failed to publish %s: %v", kind, err)
	}
}
