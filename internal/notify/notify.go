// Package notify announces catalog changes to out-of-process listeners such
// as the dashboard.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Kind is the type of change.
type Kind string

const (
	ClaimCreated  Kind = "claim.created"
	ClaimRemoved  Kind = "claim.removed"
	ClaimPaid     Kind = "claim.paid"
	CardAdded     Kind = "card.added"
	CardDeleted   Kind = "card.deleted"
	SellerChanged Kind = "seller.changed"
	PostSynced    Kind = "post.synced"
	SettingsSaved Kind = "settings.saved"
)

// Event is one change notification.
type Event struct {
	Kind     Kind      `json:"kind"`
	Category string    `json:"category,omitempty"`
	ID       string    `json:"id,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher announces changes. Publish failures never fail the change itself.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// DefaultChannel is used when RedisConfig.Channel is empty.
const DefaultChannel = "cardmarket:data_update"

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	log.Printf("[RedisPublisher] Connected to %s, channel=%s", cfg.Addr, channel)
	return &RedisPublisher{client: client, channel: channel}, nil
}

// Publish sends e to the channel.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Kind, err)
	}
	return nil
}

// Subscribe returns a subscription to the publisher's channel.
func (p *RedisPublisher) Subscribe(ctx context.Context) *redis.PubSub {
	return p.client.Subscribe(ctx, p.channel)
}

// Ping checks the connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// NopPublisher drops every event. Used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, e Event) error { return nil }
func (NopPublisher) Close() error                               { return nil }

var (
	_ Publisher = (*RedisPublisher)(nil)
	_ Publisher = NopPublisher{}
)
