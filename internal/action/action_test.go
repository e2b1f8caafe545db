package action

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	tests := []Action{
		{Kind: Claim, Target: "card_1"},
		{Kind: Unclaim, Target: "card_1"},
		{Kind: MarkPaid, Target: "claim_9"},
		{Kind: Refresh, Target: "Pokemon"},
		{Kind: Explore, Target: "Yu-Gi-Oh"},
		{Kind: Next, Target: "A"},
		{Kind: Prev, Target: "A"},
		{Kind: Close, Target: "category: with colon"},
	}
	for _, a := range tests {
		t.Run(a.Kind.String(), func(t *testing.T) {
			id, err := a.Encode()
			require.NoError(t, err)

			got, err := Decode(id)
			require.NoError(t, err)
			assert.Equal(t, a, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("claim")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode("claim:")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode("steal:card_1")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestEncode_Errors(t *testing.T) {
	_, err := Action{Kind: Kind(99), Target: "x"}.Encode()
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Action{Kind: Refresh, Target: strings.Repeat("x", MaxEncodedLen)}.Encode()
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestNavigational(t *testing.T) {
	assert.True(t, Next.Navigational())
	assert.True(t, Close.Navigational())
	assert.False(t, Claim.Navigational())
	assert.False(t, Explore.Navigational())
}
