package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cardmarket/internal/action"
	"cardmarket/internal/metrics"
	"cardmarket/internal/model"
	"cardmarket/internal/render"
	"cardmarket/internal/service"
)

// Limiter throttles actors.
type Limiter interface {
	Allow(key string) bool
}

type allowAll struct{}

func (allowAll) Allow(string) bool { return true }

// Dispatcher routes events to the services by action kind.
type Dispatcher struct {
	ledger  *service.Ledger
	browser *service.Browser
	sync    *service.Synchronizer
	catalog *service.Catalog
	limiter Limiter
	metrics metrics.Recorder
}

// NewDispatcher creates a Dispatcher. limiter and rec may be nil.
func NewDispatcher(ledger *service.Ledger, browser *service.Browser, sync *service.Synchronizer, catalog *service.Catalog, limiter Limiter, rec metrics.Recorder) *Dispatcher {
	if limiter == nil {
		limiter = allowAll{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Dispatcher{
		ledger:  ledger,
		browser: browser,
		sync:    sync,
		catalog: catalog,
		limiter: limiter,
		metrics: rec,
	}
}

// Handle performs ev and returns the reply for the actor. Failures become
// private notices; shared posts are never changed by a failed action.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) Reply {
	kind := ev.Action.Kind.String()
	if !d.limiter.Allow(ev.ActorID) {
		d.metrics.ActionHandled(kind, "rate_limited")
		return notice("⏳ You're doing that too fast. Please wait a moment.")
	}

	reply, err := d.handle(ctx, ev)
	if err != nil {
		outcome, text := describe(err)
		if outcome == "error" {
			log.Printf("[Dispatcher] %s by %s on %q failed: %v", kind, ev.ActorID, ev.Action.Target, err)
		}
		d.metrics.ActionHandled(kind, outcome)
		return notice(text)
	}
	d.metrics.ActionHandled(kind, "ok")
	return reply
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) (Reply, error) {
	target := ev.Action.Target
	switch ev.Action.Kind {
	case action.Claim:
		claim, err := d.ledger.Claim(ctx, ev.ActorID, ev.ActorName, target)
		if err != nil {
			return Reply{}, err
		}
		return notice(fmt.Sprintf("✅ You have claimed **%s**!", claim.CardName)), nil

	case action.Unclaim:
		if err := d.ledger.Unclaim(ctx, ev.ActorID, target); err != nil {
			return Reply{}, err
		}
		return notice(fmt.Sprintf("✅ You have unclaimed `%s`.", target)), nil

	case action.MarkPaid:
		if err := d.ledger.MarkPaid(ctx, ev.ActorID, target); err != nil {
			return Reply{}, err
		}
		view, err := d.cartView(ctx, ev.ActorID, ev.ActorName)
		if err != nil {
			return Reply{}, err
		}
		return Reply{View: &view, Update: true}, nil

	case action.Refresh:
		if _, err := d.sync.Refresh(ctx, target, ev.ChannelID, ev.MessageID); err != nil {
			return Reply{}, err
		}
		return Reply{}, nil

	case action.Explore:
		view, err := d.browser.Explore(ctx, ev.ActorID, target, ev.Compact)
		if err != nil {
			return Reply{}, err
		}
		return Reply{View: &view, Ephemeral: true}, nil

	case action.Next, action.Prev:
		view, err := d.browser.Navigate(ctx, ev.ActorID, target, ev.Action.Kind)
		if err != nil {
			return Reply{}, err
		}
		return Reply{View: &view, Ephemeral: true, Update: true}, nil

	case action.Close:
		d.browser.Close(ev.ActorID, target)
		return Reply{Content: "Closed.", Ephemeral: true, Update: true, Clear: true}, nil
	}
	return Reply{}, model.Invalid(fmt.Sprintf("unsupported action %s", ev.Action.Kind))
}

// cartView renders a user's cart.
func (d *Dispatcher) cartView(ctx context.Context, userID, username string) (render.ViewModel, error) {
	claims, err := d.ledger.Cart(ctx, userID)
	if err != nil {
		return render.ViewModel{}, err
	}
	settings, err := d.catalog.Settings(ctx)
	if err != nil {
		return render.ViewModel{}, err
	}
	return render.Cart(username, claims, render.OptionsFromSettings(settings)), nil
}

// describe maps an error to a metric outcome and a notice for the actor.
func describe(err error) (outcome, text string) {
	switch {
	case errors.Is(err, model.ErrAlreadyClaimed):
		return "already_claimed", "❌ This item has already been claimed!"
	case errors.Is(err, model.ErrNotClaimed):
		return "not_claimed", "❌ You have not claimed this item."
	case errors.Is(err, model.ErrNotFound):
		return "not_found", "❌ That item could not be found."
	case errors.Is(err, model.ErrPermission):
		return "permission", "❌ You do not have permission to do that."
	case errors.Is(err, model.ErrExternalUnavailable):
		return "unavailable", "⚠️ Discord is not responding right now. Please try again shortly."
	case errors.Is(err, model.ErrInvalidInput):
		return "invalid", "❌ " + err.Error()
	}
	return "error", "❌ Something went wrong. Please try again."
}
