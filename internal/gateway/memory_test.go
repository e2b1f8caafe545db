package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardmarket/internal/model"
	"cardmarket/internal/render"
)

func TestMemoryGateway_SendEditFetch(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()

	id, err := g.SendMessage(ctx, "ch", render.ViewModel{Title: "first"})
	require.NoError(t, err)

	require.NoError(t, g.EditMessage(ctx, "ch", id, render.ViewModel{Title: "second"}))

	msg, err := g.FetchMessage(ctx, "ch", id)
	require.NoError(t, err)
	assert.Equal(t, "second", msg.View.Title)
	assert.Len(t, g.Messages("ch"), 1)
	assert.Equal(t, 1, g.Calls(OpSend))
	assert.Equal(t, 1, g.Calls(OpEdit))
}

func TestMemoryGateway_DeletedMessageIsNotFound(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()

	id, err := g.SendMessage(ctx, "ch", render.ViewModel{})
	require.NoError(t, err)
	g.DeleteMessage("ch", id)

	assert.ErrorIs(t, g.EditMessage(ctx, "ch", id, render.ViewModel{}), model.ErrNotFound)
	_, err = g.FetchMessage(ctx, "ch", id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, g.Messages("ch"))
}

func TestMemoryGateway_FailureInjection(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()

	g.Fail(OpSend, errors.New("rate limited"))
	_, err := g.SendMessage(ctx, "ch", render.ViewModel{})
	assert.ErrorIs(t, err, model.ErrExternalUnavailable)

	g.Fail(OpSend, nil)
	_, err = g.SendMessage(ctx, "ch", render.ViewModel{})
	assert.NoError(t, err)
}
