package render

import (
	"fmt"

	"cardmarket/internal/action"
	"cardmarket/internal/model"
)

// affordancesPerCard is the claim/unclaim pair.
const affordancesPerCard = 2

// EmptyCategoryText is shown when a category has no cards.
const EmptyCategoryText = "No items currently in this category."

// TotalPages returns max(1, ceil(n/pageSize)).
func TotalPages(n, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := (n + pageSize - 1) / pageSize
	if total < 1 {
		return 1
	}
	return total
}

// NormalizePage wraps page into [0, totalPages).
func NormalizePage(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	return ((page % totalPages) + totalPages) % totalPages
}

// Full renders the live category post: every card of the category is listed,
// toggles are attached while the platform ceiling allows, and the control
// group carries Explore and Refresh.
func Full(category string, cards []model.Card, claims []model.Claim, opts Options) ViewModel {
	inCategory := filterCategory(cards, category)
	byCard := model.ClaimsByCard(claims)

	v := ViewModel{
		Mode:       ModeFull,
		Title:      fmt.Sprintf("Category: %s Items", category),
		Category:   category,
		Page:       0,
		TotalPages: 1,
		Rows:       cardRows(inCategory, byCard),
		Color:      opts.Color,
		Footer:     opts.Footer,
	}
	if len(inCategory) == 0 {
		v.EmptyText = EmptyCategoryText
	} else {
		v.CoverImage = inCategory[0].FrontImage.URL()
	}

	v.Groups = append(packToggles(inCategory, byCard, opts.Column), []Affordance{
		{Label: "Explore", Style: StylePrimary, Action: action.Action{Kind: action.Explore, Target: category}},
		{Label: "Refresh", Style: StyleSecondary, Action: action.Action{Kind: action.Refresh, Target: category}},
	})
	return v
}

// Page renders one page of browse mode. page may be any integer; it is
// wrapped into range and the normalized index is reported in the view.
func Page(category string, cards []model.Card, claims []model.Claim, page, pageSize int, opts Options) ViewModel {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	inCategory := filterCategory(cards, category)
	byCard := model.ClaimsByCard(claims)

	total := TotalPages(len(inCategory), pageSize)
	page = NormalizePage(page, total)
	start := page * pageSize
	end := min(start+pageSize, len(inCategory))
	pageCards := inCategory[start:end]

	v := ViewModel{
		Mode:       ModePaged,
		Title:      fmt.Sprintf("Browse %s (%d/%d)", category, page+1, total),
		Category:   category,
		Page:       page,
		TotalPages: total,
		Rows:       cardRows(pageCards, byCard),
		Color:      opts.Color,
		Footer:     opts.Footer,
	}
	if len(pageCards) == 0 {
		v.EmptyText = EmptyCategoryText
	} else {
		v.CoverImage = pageCards[0].FrontImage.URL()
	}

	v.Groups = append(packToggles(pageCards, byCard, opts.Column), []Affordance{
		{Label: "←", Style: StyleSecondary, Action: action.Action{Kind: action.Prev, Target: category}},
		{Label: "Back", Style: StyleDanger, Action: action.Action{Kind: action.Close, Target: category}},
		{Label: "→", Style: StyleSecondary, Action: action.Action{Kind: action.Next, Target: category}},
	})
	return v
}

// RowText is the listing line for a card.
func RowText(c model.Card, claim *model.Claim) string {
	text := fmt.Sprintf("**%s** - $%s (ID: `%s`)", c.DisplayName(), FormatPrice(c.Price), c.ID)
	if claim != nil {
		text += " - Claimed by " + claim.Username
	}
	return text
}

func filterCategory(cards []model.Card, category string) []model.Card {
	out := make([]model.Card, 0, len(cards))
	for _, c := range cards {
		if c.Category == category {
			out = append(out, c)
		}
	}
	return out
}

func cardRows(cards []model.Card, byCard map[string]model.Claim) []Row {
	rows := make([]Row, 0, len(cards))
	for _, c := range cards {
		row := Row{CardID: c.ID, Name: c.DisplayName(), Price: c.Price}
		if claim, ok := byCard[c.ID]; ok {
			row.ClaimedBy = claim.Username
			row.Paid = claim.Paid
			row.Text = RowText(c, &claim)
		} else {
			row.Text = RowText(c, nil)
		}
		rows = append(rows, row)
	}
	return rows
}

// packToggles builds the claim/unclaim pairs for as many cards as fit next to
// one control group, in groups of MaxAffordancesPerGroup. In column layout
// each card gets a group of its own. Cards past the ceiling get no toggles.
func packToggles(cards []model.Card, byCard map[string]model.Claim, column bool) [][]Affordance {
	perGroup := MaxAffordancesPerGroup
	if column {
		perGroup = affordancesPerCard
	}
	maxCards := (MaxGroupsPerMessage - 1) * perGroup / affordancesPerCard

	var flat []Affordance
	for i, c := range cards {
		if i >= maxCards {
			break
		}
		_, claimed := byCard[c.ID]
		claimLabel, claimStyle := "Claim", StylePrimary
		if claimed {
			claimLabel, claimStyle = "Claimed!", StyleSecondary
		}
		flat = append(flat,
			Affordance{Label: claimLabel, Style: claimStyle, Disabled: claimed,
				Action: action.Action{Kind: action.Claim, Target: c.ID}},
			Affordance{Label: "Unclaim", Style: StyleDanger, Disabled: !claimed,
				Action: action.Action{Kind: action.Unclaim, Target: c.ID}},
		)
	}
	return chunk(flat, perGroup)
}

func chunk(in []Affordance, size int) [][]Affordance {
	var out [][]Affordance
	for len(in) > 0 {
		n := min(size, len(in))
		out = append(out, in[:n:n])
		in = in[n:]
	}
	return out
}
