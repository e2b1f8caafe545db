package model

import "time"

// Claim reserves a card for a buyer. At most one exists per card.
type Claim struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	CardID    string    `json:"cardId"`
	CardName  string    `json:"cardName"`
	Price     float64   `json:"price"`
	Paid      bool      `json:"paid"`
	Timestamp time.Time `json:"timestamp"`
}

// ClaimPatch lists the mutable fields of a live claim.
type ClaimPatch struct {
	Paid *bool `json:"paid,omitempty"`
}

// ClaimsByCard indexes claims by card id.
func ClaimsByCard(claims []Claim) map[string]Claim {
	out := make(map[string]Claim, len(claims))
	for _, c := range claims {
		out[c.CardID] = c
	}
	return out
}
