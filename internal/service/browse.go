package service

import (
	"context"
	"fmt"

	"cardmarket/internal/action"
	"cardmarket/internal/metrics"
	"cardmarket/internal/model"
	"cardmarket/internal/render"
	"cardmarket/internal/repository"
	"cardmarket/internal/session"
)

// BrowseConfig holds page sizes for browse mode.
type BrowseConfig struct {
	PageSize        int
	CompactPageSize int
}

// Browser serves private, paged views of a category.
type Browser struct {
	store   repository.Store
	tracker *session.Tracker
	metrics metrics.Recorder
	config  BrowseConfig
}

// NewBrowser creates a Browser. rec may be nil.
func NewBrowser(store repository.Store, tracker *session.Tracker, config BrowseConfig, rec metrics.Recorder) *Browser {
	if config.PageSize <= 0 {
		config.PageSize = render.DefaultPageSize
	}
	if config.CompactPageSize <= 0 {
		config.CompactPageSize = render.CompactPageSize
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Browser{store: store, tracker: tracker, metrics: rec, config: config}
}

// Explore starts (or restarts) a viewer's browse of category at page 0.
// compact selects the small page size used for mobile clients.
func (b *Browser) Explore(ctx context.Context, viewerID, category string, compact bool) (render.ViewModel, error) {
	size := b.config.PageSize
	if compact {
		size = b.config.CompactPageSize
	}
	sess := b.tracker.Start(viewerID, category, size)
	b.metrics.SessionsActive(b.tracker.Len())
	return b.page(ctx, sess)
}

// Navigate moves a viewer's browse one page forward (action.Next) or back
// (action.Prev), wrapping at both ends. A viewer without a session starts
// from page 0 at the default size.
func (b *Browser) Navigate(ctx context.Context, viewerID, category string, dir action.Kind) (render.ViewModel, error) {
	var delta int
	switch dir {
	case action.Next:
		delta = 1
	case action.Prev:
		delta = -1
	default:
		return render.ViewModel{}, model.Invalid(fmt.Sprintf("cannot navigate with %s", dir))
	}

	sess, ok := b.tracker.Get(viewerID, category)
	if !ok {
		sess = session.Session{
			Key:      session.Key{ViewerID: viewerID, Category: category},
			PageSize: b.config.PageSize,
		}
	}

	cards, err := b.store.ListCardsByCategory(ctx, category)
	if err != nil {
		return render.ViewModel{}, fmt.Errorf("list cards: %w", err)
	}
	total := render.TotalPages(len(cards), sess.PageSize)
	sess.Page = render.NormalizePage(sess.Page+delta, total)
	b.tracker.Save(sess)
	b.metrics.SessionsActive(b.tracker.Len())

	claims, err := b.store.ListClaims(ctx)
	if err != nil {
		return render.ViewModel{}, fmt.Errorf("list claims: %w", err)
	}
	return render.Page(category, cards, claims, sess.Page, sess.PageSize, renderOptions(ctx, b.store)), nil
}

// Close ends a viewer's browse. It reports whether a session existed.
func (b *Browser) Close(viewerID, category string) bool {
	ok := b.tracker.Close(viewerID, category)
	b.metrics.SessionsActive(b.tracker.Len())
	return ok
}

func (b *Browser) page(ctx context.Context, sess session.Session) (render.ViewModel, error) {
	cards, err := b.store.ListCardsByCategory(ctx, sess.Category)
	if err != nil {
		return render.ViewModel{}, fmt.Errorf("list cards: %w", err)
	}
	claims, err := b.store.ListClaims(ctx)
	if err != nil {
		return render.ViewModel{}, fmt.Errorf("list claims: %w", err)
	}
	return render.Page(sess.Category, cards, claims, sess.Page, sess.PageSize, renderOptions(ctx, b.store)), nil
}
