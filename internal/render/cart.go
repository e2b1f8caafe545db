package render

import (
	"fmt"

	"cardmarket/internal/action"
	"cardmarket/internal/model"
)

// EmptyCartText is shown to a user without claims.
const EmptyCartText = "You have not claimed any items yet."

// Cart renders a user's claims with a mark-paid control for each unpaid one.
func Cart(username string, claims []model.Claim, opts Options) ViewModel {
	v := ViewModel{
		Mode:       ModeCart,
		Title:      fmt.Sprintf("%s's Cart", username),
		TotalPages: 1,
		Color:      0x57f287,
		Footer:     opts.Footer,
	}
	if len(claims) == 0 {
		v.EmptyText = EmptyCartText
		return v
	}

	var flat []Affordance
	for _, c := range claims {
		status := "unpaid"
		if c.Paid {
			status = "paid"
		}
		v.Rows = append(v.Rows, Row{
			CardID:    c.CardID,
			Name:      c.CardName,
			Price:     c.Price,
			ClaimedBy: c.Username,
			Paid:      c.Paid,
			Text:      fmt.Sprintf("- **%s** (ID: `%s`) - $%s - %s", c.CardName, c.CardID, FormatPrice(c.Price), status),
		})
		if !c.Paid && len(flat) < MaxGroupsPerMessage*MaxAffordancesPerGroup {
			flat = append(flat, Affordance{
				Label:  "Paid: " + truncate(c.CardName, 60),
				Style:  StyleSuccess,
				Action: action.Action{Kind: action.MarkPaid, Target: c.ID},
			})
		}
	}
	v.Groups = chunk(flat, MaxAffordancesPerGroup)
	return v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
