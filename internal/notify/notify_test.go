package notify

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{Kind: ClaimCreated}))
	assert.NoError(t, p.Close())
}

func TestRedisPublisher_RoundTrip(t *testing.T) {
	addr := os.Getenv("MARKET_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MARKET_TEST_REDIS_ADDR not set; skipping Redis integration test")
	}

	p, err := NewRedisPublisher(RedisConfig{Addr: addr, Channel: "cardmarket:test"})
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := p.Subscribe(ctx)
	defer sub.Close()
	_, err = sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, Event{Kind: ClaimPaid, Category: "Pokemon", ID: "claim_1"}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, ClaimPaid, got.Kind)
	assert.Equal(t, "Pokemon", got.Category)
	assert.False(t, got.At.IsZero())
}

func TestNewRedisPublisher_Unreachable(t *testing.T) {
	_, err := NewRedisPublisher(RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
