package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func TestShufflePreservesCards(t *testing.T) {
	deck := Deck()
	shuffled := Shuffle(deck, newRNG(1))

	require.Len(t, shuffled, len(deck))
	seen := map[string]bool{}
	for _, c := range shuffled {
		seen[c.ID] = true
	}
	assert.Len(t, seen, len(deck), "shuffle must be a permutation")

	// Original slice untouched.
	assert.Equal(t, "the-fool", deck[0].ID)
}

func TestCutThreeTimesPreservesCards(t *testing.T) {
	deck := Deck()
	cut := CutThreeTimes(deck, newRNG(7))

	require.Len(t, cut, len(deck))
	seen := map[string]bool{}
	for _, c := range cut {
		seen[c.ID] = true
	}
	assert.Len(t, seen, len(deck))
}

func TestRemoveCard(t *testing.T) {
	deck := Deck()
	king, ok := CardByName("King of Wands")
	require.True(t, ok)

	remaining, err := RemoveCard(deck, king)
	require.NoError(t, err)
	assert.Len(t, remaining, DeckSize-1)
	for _, c := range remaining {
		assert.NotEqual(t, king.ID, c.ID)
	}

	_, err = RemoveCard(remaining, king)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestDrawInvariants(t *testing.T) {
	tests := []struct {
		name   string
		spread SpreadType
		size   int
	}{
		{name: "three card", spread: SpreadThreeCard, size: 3},
		{name: "celtic cross", spread: SpreadCelticCross, size: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := newRNG(42)
			for trial := 0; trial < 50; trial++ {
				selected, err := Draw(Deck(), tt.spread, rng)
				require.NoError(t, err)
				require.Len(t, selected, tt.size)

				orders := map[int]bool{}
				ids := map[string]bool{}
				for _, sc := range selected {
					assert.GreaterOrEqual(t, sc.PositionOrder, 0)
					assert.Less(t, sc.PositionOrder, tt.size)
					assert.False(t, orders[sc.PositionOrder], "duplicate order %d", sc.PositionOrder)
					orders[sc.PositionOrder] = true
					assert.False(t, ids[sc.ID], "duplicate card %s", sc.ID)
					ids[sc.ID] = true
				}

				// Dealt in template order.
				for i, sc := range selected {
					assert.Equal(t, i, sc.PositionOrder)
				}
			}
		})
	}
}

func TestDrawReversalRate(t *testing.T) {
	rng := newRNG(99)
	total, reversed := 0, 0
	for trial := 0; trial < 2000; trial++ {
		selected, err := Draw(Deck(), SpreadThreeCard, rng)
		require.NoError(t, err)
		for _, sc := range selected {
			total++
			if sc.Reversed {
				reversed++
			}
		}
	}

	rate := float64(reversed) / float64(total)
	assert.InDelta(t, ReversalRate, rate, 0.03, "observed reversal rate %.3f", rate)
}

func TestDrawUnknownSpread(t *testing.T) {
	_, err := Draw(Deck(), SpreadType("pentagram"), newRNG(1))
	assert.ErrorIs(t, err, ErrUnknownSpread)
}

func TestDrawDeckExhausted(t *testing.T) {
	_, err := Draw(Deck()[:5], SpreadCelticCross, newRNG(1))
	assert.ErrorIs(t, err, ErrDeckExhausted)
}

func TestValidateSelection(t *testing.T) {
	rng := newRNG(3)
	good, err := Draw(Deck(), SpreadThreeCard, rng)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateSelection(good, SpreadThreeCard))
	})

	t.Run("wrong count", func(t *testing.T) {
		assert.Error(t, ValidateSelection(good[:2], SpreadThreeCard))
	})

	t.Run("duplicate order", func(t *testing.T) {
		bad := append([]SelectedCard(nil), good...)
		bad[2].PositionOrder = 0
		assert.Error(t, ValidateSelection(bad, SpreadThreeCard))
	})

	t.Run("duplicate card", func(t *testing.T) {
		bad := append([]SelectedCard(nil), good...)
		bad[2].Card = bad[0].Card
		assert.ErrorIs(t, ValidateSelection(bad, SpreadThreeCard), ErrDuplicateCard)
	})

	t.Run("order out of range", func(t *testing.T) {
		bad := append([]SelectedCard(nil), good...)
		bad[1].PositionOrder = 7
		assert.Error(t, ValidateSelection(bad, SpreadThreeCard))
	})
}

func TestResolveSpread(t *testing.T) {
	tests := []struct {
		name        string
		selected    string
		recommended SpreadType
		want        SpreadType
	}{
		{name: "explicit choice wins", selected: "celtic_cross", recommended: SpreadThreeCard, want: SpreadCelticCross},
		{name: "auto falls back to recommendation", selected: "auto", recommended: SpreadCelticCross, want: SpreadCelticCross},
		{name: "empty falls back to recommendation", selected: "", recommended: SpreadCelticCross, want: SpreadCelticCross},
		{name: "no recommendation defaults to three card", selected: "auto", recommended: "", want: SpreadThreeCard},
		{name: "garbage recommendation defaults", selected: "", recommended: SpreadType("star"), want: SpreadThreeCard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSpread(tt.selected, tt.recommended))
		})
	}
}
