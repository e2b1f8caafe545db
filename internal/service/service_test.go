package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardmarket/internal/action"
	"cardmarket/internal/gateway"
	"cardmarket/internal/model"
	"cardmarket/internal/notify"
	"cardmarket/internal/render"
	"cardmarket/internal/repository"
	"cardmarket/internal/session"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) kinds() []notify.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []notify.Kind
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

type fixture struct {
	store   *repository.MemoryStore
	gw      *gateway.MemoryGateway
	pub     *recordingPublisher
	sync    *Synchronizer
	ledger  *Ledger
	browser *Browser
	catalog *Catalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: repository.NewMemoryStore(),
		gw:    gateway.NewMemoryGateway(),
		pub:   &recordingPublisher{},
	}
	f.sync = NewSynchronizer(f.store, f.gw, f.pub, nil)
	f.ledger = NewLedger(f.store, f.sync, f.pub, nil)
	f.browser = NewBrowser(f.store, session.NewTracker(), BrowseConfig{}, nil)
	f.catalog = NewCatalog(f.store, f.sync, f.pub)

	require.NoError(t, f.store.CreateSeller(context.Background(), model.Seller{ID: "seller_1", DiscordID: "owner", Name: "Shop"}))
	return f
}

func (f *fixture) seed(t *testing.T, category string, n int) []model.Card {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var cards []model.Card
	for i := 1; i <= n; i++ {
		c := model.Card{
			ID:         fmt.Sprintf("card_%d", i),
			Name:       fmt.Sprintf("Card %d", i),
			Price:      10,
			Category:   category,
			SellerID:   "seller_1",
			FrontImage: model.ImageRef{ChannelID: "img", MessageID: fmt.Sprint(i), Filename: "f.png"},
			BackImage:  model.ImageRef{ChannelID: "img", MessageID: fmt.Sprint(i), Filename: "b.png"},
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, f.store.CreateCard(context.Background(), c))
		cards = append(cards, c)
	}
	return cards
}

func TestLedger_ClaimScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 1)

	claim, err := f.ledger.Claim(ctx, "U1", "alice", "card_1")
	require.NoError(t, err)
	assert.False(t, claim.Paid)
	assert.Equal(t, 10.0, claim.Price)
	assert.Equal(t, "Card 1", claim.CardName)

	_, err = f.ledger.Claim(ctx, "U2", "bob", "card_1")
	assert.ErrorIs(t, err, model.ErrAlreadyClaimed)

	require.NoError(t, f.ledger.MarkPaid(ctx, "U1", claim.ID))
	claims, err := f.store.ListClaims(ctx)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.True(t, claims[0].Paid)

	require.NoError(t, f.ledger.Unclaim(ctx, "U1", "card_1"))
	claims, err = f.store.ListClaims(ctx)
	require.NoError(t, err)
	assert.Empty(t, claims)

	_, err = f.ledger.Claim(ctx, "U2", "bob", "card_1")
	assert.NoError(t, err)
}

func TestLedger_ClaimUnknownCard(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Claim(context.Background(), "U1", "alice", "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLedger_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 3)

	const attempts = 25
	var wg sync.WaitGroup
	var won atomic.Int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.ledger.Claim(ctx, fmt.Sprintf("U%d", i), "user", "card_2")
			if err == nil {
				won.Add(1)
				return
			}
			assert.ErrorIs(t, err, model.ErrAlreadyClaimed)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
	claims, err := f.store.ListClaims(ctx)
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestLedger_UnclaimByOtherUserDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 1)

	_, err := f.ledger.Claim(ctx, "U1", "alice", "card_1")
	require.NoError(t, err)

	assert.ErrorIs(t, f.ledger.Unclaim(ctx, "U2", "card_1"), model.ErrNotClaimed)

	claims, err := f.store.ListClaims(ctx)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "U1", claims[0].UserID)
}

func TestLedger_MarkPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 1)

	claim, err := f.ledger.Claim(ctx, "U1", "alice", "card_1")
	require.NoError(t, err)

	assert.ErrorIs(t, f.ledger.MarkPaid(ctx, "U2", claim.ID), model.ErrNotFound, "someone else's claim")
	assert.ErrorIs(t, f.ledger.MarkPaid(ctx, "U1", "claim_missing"), model.ErrNotFound)

	require.NoError(t, f.ledger.MarkPaid(ctx, "U1", claim.ID))
	require.NoError(t, f.ledger.MarkPaid(ctx, "U1", claim.ID), "idempotent")

	updated, err := f.ledger.SetPaid(ctx, claim.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Paid)

	cart, err := f.ledger.Cart(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.False(t, cart[0].Paid)
}

func TestLedger_ClaimRefreshesLivePost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 2)

	msgID, err := f.sync.UpsertCategoryPost(ctx, "A", "ch")
	require.NoError(t, err)

	_, err = f.ledger.Claim(ctx, "U1", "alice", "card_1")
	require.NoError(t, err)

	msg, err := f.gw.FetchMessage(ctx, "ch", msgID)
	require.NoError(t, err)
	assert.Contains(t, msg.View.Rows[0].Text, "Claimed by alice")
	assert.Contains(t, f.pub.kinds(), notify.ClaimCreated)
}

func TestLedger_ResyncFailureDoesNotFailClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 1)

	_, err := f.sync.UpsertCategoryPost(ctx, "A", "ch")
	require.NoError(t, err)
	f.gw.Fail(gateway.OpEdit, errors.New("missing access"))

	_, err = f.ledger.Claim(ctx, "U1", "alice", "card_1")
	assert.NoError(t, err)
}

func TestSynchronizer_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 3)

	first, err := f.sync.UpsertCategoryPost(ctx, "A", "ch")
	require.NoError(t, err)
	second, err := f.sync.UpsertCategoryPost(ctx, "A", "ch")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, f.gw.Messages("ch"), 1)

	posts, err := f.store.ListCategoryPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, first, posts[0].MessageID)
}

func TestSynchronizer_ConcurrentUpsertsLeaveOneMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 3)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sync.UpsertCategoryPost(ctx, "A", "ch")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.gw.Messages("ch"), 1)
	assert.Equal(t, 1, f.gw.Calls(gateway.OpSend))
}

func TestSynchronizer_RecreatesDeletedMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 1)

	oldID, err := f.sync.UpsertCategoryPost(ctx, "A", "ch")
	require.NoError(t, err)
	f.gw.DeleteMessage("ch", oldID)

	newID, err := f.sync.UpsertCategoryPost(ctx, "A", "ch")
	require.NoError(t, err)
	assert.NotEqual(t, oldID, newID)

	post, err := f.store.GetCategoryPost(ctx, "A", "ch")
	require.NoError(t, err)
	assert.Equal(t, newID, post.MessageID)
	assert.Len(t, f.gw.Messages("ch"), 1)
}

func TestSynchronizer_EditFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 1)

	oldID, err := f.sync.UpsertCategoryPost(ctx, "A", "ch")
	require.NoError(t, err)

	f.gw.Fail(gateway.OpEdit, errors.New("missing permissions"))
	_, err = f.sync.UpsertCategoryPost(ctx, "A", "ch")
	assert.ErrorIs(t, err, model.ErrExternalUnavailable)

	// No replacement was posted and the record still points at the old message.
	assert.Equal(t, 1, f.gw.Calls(gateway.OpSend))
	post, err := f.store.GetCategoryPost(ctx, "A", "ch")
	require.NoError(t, err)
	assert.Equal(t, oldID, post.MessageID)
}

func TestSynchronizer_SendFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.gw.Fail(gateway.OpSend, errors.New("channel locked"))

	_, err := f.sync.UpsertCategoryPost(context.Background(), "A", "ch")
	assert.ErrorIs(t, err, model.ErrExternalUnavailable)

	_, err = f.store.GetCategoryPost(context.Background(), "A", "ch")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSynchronizer_RefreshAdoptsPressedMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 1)

	pressed, err := f.gw.SendMessage(ctx, "ch", render.ViewModel{Title: "stale"})
	require.NoError(t, err)

	id, err := f.sync.Refresh(ctx, "A", "ch", pressed)
	require.NoError(t, err)
	assert.Equal(t, pressed, id)

	msg, err := f.gw.FetchMessage(ctx, "ch", pressed)
	require.NoError(t, err)
	assert.Equal(t, "Category: A Items", msg.View.Title)
}

func TestSynchronizer_RefreshCategoryCoversChannels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 1)

	id1, err := f.sync.UpsertCategoryPost(ctx, "A", "ch1")
	require.NoError(t, err)
	id2, err := f.sync.UpsertCategoryPost(ctx, "A", "ch2")
	require.NoError(t, err)

	require.NoError(t, f.store.InsertClaim(ctx, model.Claim{ID: "c", UserID: "U1", Username: "alice", CardID: "card_1"}))
	require.NoError(t, f.sync.RefreshCategory(ctx, "A"))

	for ch, id := range map[string]string{"ch1": id1, "ch2": id2} {
		msg, err := f.gw.FetchMessage(ctx, ch, id)
		require.NoError(t, err)
		assert.Contains(t, msg.View.Rows[0].Text, "Claimed by alice")
	}
}

func TestBrowser_Pagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 10)

	view, err := f.browser.Explore(ctx, "viewer", "A", false)
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalPages)
	assert.Equal(t, 0, view.Page)
	assert.Len(t, view.Rows, 9)

	view, err = f.browser.Navigate(ctx, "viewer", "A", action.Next)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Page)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "card_10", view.Rows[0].CardID)

	view, err = f.browser.Navigate(ctx, "viewer", "A", action.Next)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Page, "wraps forward")

	view, err = f.browser.Navigate(ctx, "viewer", "A", action.Prev)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Page, "wraps backward")
}

func TestBrowser_CompactAndWrapOverThreePages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 12)

	view, err := f.browser.Explore(ctx, "phone", "A", true)
	require.NoError(t, err)
	assert.Equal(t, 3, view.TotalPages)
	assert.Len(t, view.Rows, 4)

	view, err = f.browser.Navigate(ctx, "phone", "A", action.Prev)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Page)

	view, err = f.browser.Navigate(ctx, "phone", "A", action.Next)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Page)
}

func TestBrowser_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 20)

	_, err := f.browser.Explore(ctx, "v1", "A", false)
	require.NoError(t, err)
	_, err = f.browser.Explore(ctx, "v2", "A", false)
	require.NoError(t, err)

	_, err = f.browser.Navigate(ctx, "v1", "A", action.Next)
	require.NoError(t, err)

	view, err := f.browser.Navigate(ctx, "v2", "A", action.Next)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Page)
}

func TestBrowser_NavigateWithoutSessionUsesDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 10)

	view, err := f.browser.Navigate(ctx, "stranger", "A", action.Next)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Page)
	assert.Equal(t, 2, view.TotalPages)
}

func TestBrowser_Close(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 1)

	_, err := f.browser.Explore(ctx, "v", "A", false)
	require.NoError(t, err)
	assert.True(t, f.browser.Close("v", "A"))
	assert.False(t, f.browser.Close("v", "A"))

	_, err = f.browser.Navigate(ctx, "v", "A", action.Claim)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestCatalog_AddAndDeleteCard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	msgID, err := f.sync.UpsertCategoryPost(ctx, "Pokemon", "ch")
	require.NoError(t, err)

	card, err := f.catalog.AddCard(ctx, model.NewCard{
		Name:       "Pikachu",
		Price:      4.5,
		Category:   "Pokemon",
		SellerID:   "seller_1",
		FrontImage: model.ImageRef{ChannelID: "c", MessageID: "1", Filename: "f.png"},
		BackImage:  model.ImageRef{ChannelID: "c", MessageID: "2", Filename: "b.png"},
	})
	require.NoError(t, err)

	msg, err := f.gw.FetchMessage(ctx, "ch", msgID)
	require.NoError(t, err)
	require.Len(t, msg.View.Rows, 1)
	assert.Equal(t, card.ID, msg.View.Rows[0].CardID)

	assert.ErrorIs(t, f.catalog.DeleteCard(ctx, "stranger", false, card.ID), model.ErrPermission)
	require.NoError(t, f.catalog.DeleteCard(ctx, "owner", false, card.ID))
	assert.ErrorIs(t, f.catalog.DeleteCard(ctx, "admin", true, card.ID), model.ErrNotFound)

	msg, err = f.gw.FetchMessage(ctx, "ch", msgID)
	require.NoError(t, err)
	assert.True(t, msg.View.Empty())
	assert.Equal(t, []notify.Kind{notify.PostSynced, notify.CardAdded, notify.CardDeleted}, f.pub.kinds())
}

func TestCatalog_AddCardValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.catalog.AddCard(ctx, model.NewCard{Category: "A", SellerID: "seller_1"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.catalog.AddCard(ctx, model.NewCard{
		Category:   "A",
		SellerID:   "ghost",
		FrontImage: model.ImageRef{ChannelID: "c", MessageID: "1"},
		BackImage:  model.ImageRef{ChannelID: "c", MessageID: "2"},
	})
	assert.ErrorIs(t, err, model.ErrNotFound)

	for _, price := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1} {
		_, err = f.catalog.AddCard(ctx, model.NewCard{
			Category:   "A",
			SellerID:   "seller_1",
			Price:      price,
			FrontImage: model.ImageRef{ChannelID: "c", MessageID: "1"},
			BackImage:  model.ImageRef{ChannelID: "c", MessageID: "2"},
		})
		assert.ErrorIs(t, err, model.ErrInvalidInput, "price %v", price)
	}
	cards, err := f.store.ListCardsByCategory(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestCatalog_SellersAndSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	seller, err := f.catalog.RegisterSeller(ctx, "u2", " Bob's Cards ", "post", "track")
	require.NoError(t, err)
	assert.Equal(t, "Bob's Cards", seller.Name)

	_, err = f.catalog.RegisterSeller(ctx, "u2", "Again", "", "")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	ok, err := f.catalog.IsSeller(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.catalog.IsSeller(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.catalog.SaveSettings(ctx, model.Settings{EmbedColor: "blue", EmbedTitleSize: 16, ButtonLayout: "row"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	saved, err := f.catalog.SaveSettings(ctx, model.Settings{EmbedColor: "#ff0000", EmbedTitleSize: 20, ButtonLayout: "column"})
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", saved.EmbedColor)

	snap, err := f.catalog.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Sellers, 2)
	assert.Equal(t, "column", snap.Settings.ButtonLayout)
}

func TestCatalog_SettingsRecolorLivePosts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 1)

	msgID, err := f.sync.UpsertCategoryPost(ctx, "A", "ch")
	require.NoError(t, err)

	_, err = f.catalog.SaveSettings(ctx, model.Settings{EmbedColor: "#123456", EmbedTitleSize: 16, ButtonLayout: "row"})
	require.NoError(t, err)

	msg, err := f.gw.FetchMessage(ctx, "ch", msgID)
	require.NoError(t, err)
	assert.Equal(t, 0x123456, msg.View.Color)
}

func TestCatalog_ColumnLayoutRedrawsLivePosts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", 3)

	msgID, err := f.sync.UpsertCategoryPost(ctx, "A", "ch")
	require.NoError(t, err)
	msg, err := f.gw.FetchMessage(ctx, "ch", msgID)
	require.NoError(t, err)
	require.Len(t, msg.View.Groups, 3, "six toggles in two groups plus controls")

	_, err = f.catalog.SaveSettings(ctx, model.Settings{EmbedColor: "#123456", EmbedTitleSize: 16, ButtonLayout: model.LayoutColumn})
	require.NoError(t, err)

	msg, err = f.gw.FetchMessage(ctx, "ch", msgID)
	require.NoError(t, err)
	require.Len(t, msg.View.Groups, 4, "one group per card plus controls")
	assert.Len(t, msg.View.Groups[0], 2)
}

func TestSessionJanitor_EvictsIdle(t *testing.T) {
	tracker := session.NewTracker()
	tracker.Start("v", "A", 9)

	busy := NewSessionJanitor(tracker, JanitorConfig{MaxIdle: time.Hour, Interval: time.Hour}, nil)
	assert.Equal(t, 0, busy.RunNow())

	time.Sleep(5 * time.Millisecond)
	j := NewSessionJanitor(tracker, JanitorConfig{MaxIdle: time.Millisecond, Interval: time.Hour}, nil)
	assert.Equal(t, 1, j.RunNow())
	assert.Equal(t, 0, tracker.Len())

	j.Start()
	j.Stop()
	j.Stop()
}

type countingEvicter struct{ calls, evict int }

func (c *countingEvicter) EvictIdle(maxIdle time.Duration) int {
	c.calls++
	return c.evict
}

func TestSessionJanitor_SweepsExtraState(t *testing.T) {
	extra := &countingEvicter{evict: 2}
	j := NewSessionJanitor(session.NewTracker(), JanitorConfig{MaxIdle: time.Minute, Interval: time.Hour}, nil)
	j.Sweep(extra)

	assert.Equal(t, 2, j.RunNow())
	assert.Equal(t, 1, extra.calls)
}
