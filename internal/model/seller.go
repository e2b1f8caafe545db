package model

import "time"

// Seller is a registered seller profile. One per chat user.
type Seller struct {
	ID                string    `json:"id"`
	DiscordID         string    `json:"discordId"`
	Name              string    `json:"name"`
	PostingChannelID  string    `json:"postingChannelId,omitempty"`
	TrackingChannelID string    `json:"trackingChannelId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// User is a chat user that registered with the bot.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
