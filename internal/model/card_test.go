package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPrice(t *testing.T) {
	tests := []struct {
		price float64
		want  bool
	}{
		{0, true},
		{12.5, true},
		{-1, false},
		{math.NaN(), false},
		{math.Inf(1), false},
		{math.Inf(-1), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPrice(tt.price), "price %v", tt.price)
	}
}

func TestImageRefURL(t *testing.T) {
	ref := ImageRef{ChannelID: "c", MessageID: "m1", Filename: "front.png"}
	assert.Equal(t, "https://cdn.discordapp.com/attachments/c/m1/front.png", ref.URL())
	assert.Empty(t, ImageRef{ChannelID: "c"}.URL())
}
