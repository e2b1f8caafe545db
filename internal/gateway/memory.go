package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"cardmarket/internal/model"
	"cardmarket/internal/render"
)

// Op names a gateway operation for failure injection.
type Op string

const (
	OpSend  Op = "send"
	OpEdit  Op = "edit"
	OpFetch Op = "fetch"
)

// MemoryGateway keeps messages in process. It backs tests and console mode,
// where the bot runs without a platform connection.
type MemoryGateway struct {
	mu       sync.Mutex
	nextID   int
	channels map[string]map[string]*Message
	failures map[Op]error
	calls    map[Op]int
	echo     bool
}

// NewMemoryGateway creates an empty gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		channels: make(map[string]map[string]*Message),
		failures: make(map[Op]error),
		calls:    make(map[Op]int),
	}
}

// NewConsoleGateway creates a MemoryGateway that logs every message it draws.
func NewConsoleGateway() *MemoryGateway {
	g := NewMemoryGateway()
	g.echo = true
	return g
}

// SendMessage stores a new message and returns its id.
func (g *MemoryGateway) SendMessage(ctx context.Context, channelID string, view render.ViewModel) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[OpSend]++
	if err := g.failures[OpSend]; err != nil {
		return "", err
	}

	g.nextID++
	id := "msg-" + strconv.Itoa(g.nextID)
	if g.channels[channelID] == nil {
		g.channels[channelID] = make(map[string]*Message)
	}
	g.channels[channelID][id] = &Message{ID: id, ChannelID: channelID, View: view, EditedAt: time.Now()}

	if g.echo {
		log.Printf("[ConsoleGateway] send %s/%s: %s (%d rows)", channelID, id, view.Title, len(view.Rows))
	}
	return id, nil
}

// EditMessage replaces the view of an existing message.
func (g *MemoryGateway) EditMessage(ctx context.Context, channelID, messageID string, view render.ViewModel) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[OpEdit]++
	if err := g.failures[OpEdit]; err != nil {
		return err
	}

	msg, ok := g.channels[channelID][messageID]
	if !ok {
		return model.NotFound("message", channelID+"/"+messageID)
	}
	msg.View = view
	msg.EditedAt = time.Now()

	if g.echo {
		log.Printf("[ConsoleGateway] edit %s/%s: %s (%d rows)", channelID, messageID, view.Title, len(view.Rows))
	}
	return nil
}

// FetchMessage returns a copy of a stored message.
func (g *MemoryGateway) FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[OpFetch]++
	if err := g.failures[OpFetch]; err != nil {
		return nil, err
	}

	msg, ok := g.channels[channelID][messageID]
	if !ok {
		return nil, model.NotFound("message", channelID+"/"+messageID)
	}
	out := *msg
	return &out, nil
}

// DeleteMessage removes a message, as a moderator deleting it would.
func (g *MemoryGateway) DeleteMessage(channelID, messageID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.channels[channelID], messageID)
}

// Fail makes every call of op return err until Fail(op, nil).
func (g *MemoryGateway) Fail(op Op, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failures, op)
		return
	}
	g.failures[op] = fmt.Errorf("%w: %w", model.ErrExternalUnavailable, err)
}

// FailWith makes every call of op return err exactly as given.
func (g *MemoryGateway) FailWith(op Op, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = err
}

// Messages returns the live messages of a channel.
func (g *MemoryGateway) Messages(channelID string) []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Message, 0, len(g.channels[channelID]))
	for _, m := range g.channels[channelID] {
		out = append(out, *m)
	}
	return out
}

// Calls returns how many times op was attempted.
func (g *MemoryGateway) Calls(op Op) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Ensure MemoryGateway implements Gateway
var _ Gateway = (*MemoryGateway)(nil)
