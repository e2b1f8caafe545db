package model

import (
	"math"
	"time"

	"cardmarket/pkg/imageref"
)

// ImageRef locates an uploaded image. It is opaque to everything except the
// image resolver.
type ImageRef struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
	Filename  string `json:"filename"`
}

// IsZero reports whether the reference points nowhere.
func (r ImageRef) IsZero() bool {
	return r.ChannelID == "" || r.MessageID == ""
}

// URL resolves the reference to its CDN address, or "" when it points nowhere.
func (r ImageRef) URL() string {
	return imageref.Resolve(r.ChannelID, r.MessageID, r.Filename)
}

// Card is a catalog listing.
type Card struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	SellerID    string    `json:"sellerId"`
	FrontImage  ImageRef  `json:"frontImage"`
	BackImage   ImageRef  `json:"backImage"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DisplayName returns the card name or a placeholder for unnamed cards.
func (c Card) DisplayName() string {
	if c.Name == "" {
		return "Untitled Card"
	}
	return c.Name
}

// NewCard holds the fields a seller submits when listing a card.
type NewCard struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	SellerID    string   `json:"sellerId"`
	FrontImage  ImageRef `json:"frontImage"`
	BackImage   ImageRef `json:"backImage"`
}

// ValidPrice reports whether p can be listed and encoded.
func ValidPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0
}

// Validate checks the submission before it reaches the store.
func (n NewCard) Validate() error {
	switch {
	case n.SellerID == "":
		return Invalid("seller id is required")
	case n.Category == "":
		return Invalid("category is required")
	case !ValidPrice(n.Price):
		return Invalid("price must be a finite, non-negative number")
	case n.FrontImage.IsZero() || n.BackImage.IsZero():
		return Invalid("front and back images are required")
	}
	return nil
}
