package render

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardmarket/internal/action"
	"cardmarket/internal/model"
)

func makeCards(category string, n int) []model.Card {
	cards := make([]model.Card, n)
	for i := range cards {
		cards[i] = model.Card{
			ID:         fmt.Sprintf("card_%d", i+1),
			Name:       fmt.Sprintf("Card %d", i+1),
			Price:      10,
			Category:   category,
			FrontImage: model.ImageRef{ChannelID: "img", MessageID: fmt.Sprintf("m%d", i+1), Filename: "f.png"},
		}
	}
	return cards
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		n, size, want int
	}{
		{0, 9, 1},
		{1, 9, 1},
		{9, 9, 1},
		{10, 9, 2},
		{18, 9, 2},
		{19, 9, 3},
		{10, 4, 3},
		{5, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.n, tt.size), "n=%d size=%d", tt.n, tt.size)
	}
}

func TestNormalizePage_Wraps(t *testing.T) {
	assert.Equal(t, 2, NormalizePage(-1, 3))
	assert.Equal(t, 0, NormalizePage(3, 3))
	assert.Equal(t, 1, NormalizePage(-5, 3))
	assert.Equal(t, 0, NormalizePage(7, 1))
	assert.Equal(t, 0, NormalizePage(4, 0))
}

func TestPage_TenItemsNinePerPage(t *testing.T) {
	cards := makeCards("A", 10)

	first := Page("A", cards, nil, 0, DefaultPageSize, DefaultOptions())
	assert.Equal(t, 2, first.TotalPages)
	assert.Equal(t, 0, first.Page)
	require.Len(t, first.Rows, 9)
	assert.Equal(t, "card_1", first.Rows[0].CardID)
	assert.Equal(t, "card_9", first.Rows[8].CardID)
	assert.Equal(t, "Browse A (1/2)", first.Title)

	second := Page("A", cards, nil, 1, DefaultPageSize, DefaultOptions())
	require.Len(t, second.Rows, 1)
	assert.Equal(t, "card_10", second.Rows[0].CardID)
	assert.Contains(t, second.CoverImage, "/m10/")
}

func TestPage_WrapAround(t *testing.T) {
	cards := makeCards("A", 25) // 3 pages of 9

	prev := Page("A", cards, nil, 0-1, 9, DefaultOptions())
	assert.Equal(t, 2, prev.Page)

	next := Page("A", cards, nil, 2+1, 9, DefaultOptions())
	assert.Equal(t, 0, next.Page)
}

func TestPage_ControlGroup(t *testing.T) {
	v := Page("A", makeCards("A", 2), nil, 0, CompactPageSize, DefaultOptions())

	last := v.Groups[len(v.Groups)-1]
	require.Len(t, last, 3)
	assert.Equal(t, action.Prev, last[0].Action.Kind)
	assert.Equal(t, action.Close, last[1].Action.Kind)
	assert.Equal(t, action.Next, last[2].Action.Kind)
	assert.Equal(t, "A", last[2].Action.Target)
}

func TestPage_EmptyCategory(t *testing.T) {
	v := Page("Empty", nil, nil, 5, 9, DefaultOptions())
	assert.Equal(t, 0, v.Page)
	assert.Equal(t, 1, v.TotalPages)
	assert.True(t, v.Empty())
	assert.Equal(t, EmptyCategoryText, v.EmptyText)
	assert.Empty(t, v.CoverImage)
}

func TestFull_ListsOnlyCategory(t *testing.T) {
	cards := append(makeCards("A", 3), model.Card{ID: "other", Category: "B"})

	v := Full("A", cards, nil, DefaultOptions())
	assert.Equal(t, ModeFull, v.Mode)
	assert.Len(t, v.Rows, 3)
	assert.Equal(t, "Category: A Items", v.Title)
	assert.Contains(t, v.CoverImage, "/m1/")
}

func TestFull_ClaimAnnotationAndToggles(t *testing.T) {
	cards := makeCards("A", 2)
	claims := []model.Claim{{ID: "claim_1", UserID: "u1", Username: "alice", CardID: "card_2"}}

	v := Full("A", cards, claims, DefaultOptions())

	assert.Equal(t, "**Card 1** - $10 (ID: `card_1`)", v.Rows[0].Text)
	assert.Equal(t, "**Card 2** - $10 (ID: `card_2`) - Claimed by alice", v.Rows[1].Text)
	assert.Equal(t, "alice", v.Rows[1].ClaimedBy)

	toggles := v.Groups[0]
	require.Len(t, toggles, 4)
	assert.False(t, toggles[0].Disabled, "claim on unclaimed card")
	assert.True(t, toggles[1].Disabled, "unclaim on unclaimed card")
	assert.True(t, toggles[2].Disabled, "claim on claimed card")
	assert.Equal(t, "Claimed!", toggles[2].Label)
	assert.False(t, toggles[3].Disabled, "unclaim on claimed card")

	// Unclaiming removes the annotation on the next render.
	v = Full("A", cards, nil, DefaultOptions())
	assert.NotContains(t, v.Rows[1].Text, "Claimed by")
}

func TestFull_AffordanceCeiling(t *testing.T) {
	cards := makeCards("A", 30)

	v := Full("A", cards, nil, DefaultOptions())

	assert.Len(t, v.Rows, 30, "every card stays listed")
	assert.LessOrEqual(t, len(v.Groups), MaxGroupsPerMessage)
	for _, g := range v.Groups {
		assert.LessOrEqual(t, len(g), MaxAffordancesPerGroup)
	}

	toggled := map[string]bool{}
	for _, a := range v.Affordances() {
		if a.Action.Kind == action.Claim {
			toggled[a.Action.Target] = true
		}
	}
	assert.Len(t, toggled, 10)
	assert.True(t, toggled["card_10"])
	assert.False(t, toggled["card_11"])

	last := v.Groups[len(v.Groups)-1]
	require.Len(t, last, 2)
	assert.Equal(t, action.Explore, last[0].Action.Kind)
	assert.Equal(t, action.Refresh, last[1].Action.Kind)
}

func TestFull_EmptyCategoryKeepsControls(t *testing.T) {
	v := Full("A", nil, nil, DefaultOptions())
	assert.True(t, v.Empty())
	require.Len(t, v.Groups, 1)
	assert.Equal(t, action.Refresh, v.Groups[0][1].Action.Kind)
}

func TestRender_IsPure(t *testing.T) {
	cards := makeCards("A", 12)
	claims := []model.Claim{{ID: "c", UserID: "u", Username: "bob", CardID: "card_3"}}
	cardsCopy := append([]model.Card(nil), cards...)

	assert.Equal(t, Full("A", cards, claims, DefaultOptions()), Full("A", cards, claims, DefaultOptions()))
	assert.Equal(t, Page("A", cards, claims, 1, 9, DefaultOptions()), Page("A", cards, claims, 1, 9, DefaultOptions()))
	assert.Equal(t, cardsCopy, cards, "inputs are not mutated")
}

func TestCart(t *testing.T) {
	claims := []model.Claim{
		{ID: "claim_1", CardID: "card_1", CardName: "Pikachu", Price: 10, Username: "alice"},
		{ID: "claim_2", CardID: "card_2", CardName: "Mew", Price: 12.5, Username: "alice", Paid: true},
	}

	v := Cart("alice", claims, DefaultOptions())
	assert.Equal(t, "alice's Cart", v.Title)
	require.Len(t, v.Rows, 2)
	assert.Equal(t, "- **Mew** (ID: `card_2`) - $12.5 - paid", v.Rows[1].Text)

	affs := v.Affordances()
	require.Len(t, affs, 1)
	assert.Equal(t, action.Action{Kind: action.MarkPaid, Target: "claim_1"}, affs[0].Action)

	empty := Cart("bob", nil, DefaultOptions())
	assert.Equal(t, EmptyCartText, empty.EmptyText)
}

func TestOptionsFromSettings(t *testing.T) {
	opts := OptionsFromSettings(model.Settings{EmbedColor: "#2b2d31"})
	assert.Equal(t, 0x2b2d31, opts.Color)

	opts = OptionsFromSettings(model.Settings{EmbedColor: "nope"})
	assert.Equal(t, DefaultColor, opts.Color)
	assert.False(t, opts.Column)

	opts = OptionsFromSettings(model.Settings{EmbedColor: "#2b2d31", ButtonLayout: model.LayoutColumn})
	assert.True(t, opts.Column)
}

func TestFull_ColumnLayout(t *testing.T) {
	opts := DefaultOptions()
	opts.Column = true

	v := Full("A", makeCards("A", 6), nil, opts)

	assert.Len(t, v.Rows, 6)
	require.Len(t, v.Groups, MaxGroupsPerMessage)
	for i, g := range v.Groups[:4] {
		require.Len(t, g, 2)
		id := fmt.Sprintf("card_%d", i+1)
		assert.Equal(t, id, g[0].Action.Target)
		assert.Equal(t, id, g[1].Action.Target)
	}
	assert.Equal(t, action.Explore, v.Groups[4][0].Action.Kind)

	paged := Page("A", makeCards("A", 2), nil, 0, CompactPageSize, opts)
	require.Len(t, paged.Groups, 3)
	assert.Len(t, paged.Groups[0], 2)
}

func TestNotice(t *testing.T) {
	v := Notice("Shop opens at noon", DefaultOptions())
	assert.Equal(t, ModeNotice, v.Mode)
	assert.Equal(t, "Shop opens at noon", v.EmptyText)
	assert.Empty(t, v.Groups)
	assert.True(t, v.Empty())
}
