package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeckComposition(t *testing.T) {
	deck := Deck()
	require.Len(t, deck, DeckSize)

	majors := 0
	suitCounts := map[Suit]int{}
	seenIDs := map[string]bool{}
	for _, c := range deck {
		require.False(t, seenIDs[c.ID], "duplicate card id %s", c.ID)
		seenIDs[c.ID] = true
		if c.Arcana == ArcanaMajor {
			majors++
			assert.Equal(t, SuitNone, c.Suit)
		} else {
			suitCounts[c.Suit]++
		}
	}

	assert.Equal(t, 22, majors)
	for _, s := range []Suit{SuitWands, SuitCups, SuitSwords, SuitPentacles} {
		assert.Equal(t, 14, suitCounts[s], "suit %s", s)
	}
}

func TestCardByName(t *testing.T) {
	tests := []struct {
		name    string
		lookup  string
		wantID  string
		wantOK  bool
		isCourt bool
		arcana  Arcana
	}{
		{name: "major", lookup: "The Fool", wantID: "the-fool", wantOK: true, arcana: ArcanaMajor},
		{name: "court card", lookup: "Queen of Cups", wantID: "queen-of-cups", wantOK: true, isCourt: true, arcana: ArcanaMinor},
		{name: "pip card", lookup: "Three of Swords", wantID: "three-of-swords", wantOK: true, arcana: ArcanaMinor},
		{name: "unknown", lookup: "Five of Stars", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, ok := CardByName(tt.lookup)
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantID, card.ID)
			assert.Equal(t, tt.arcana, card.Arcana)
			assert.Equal(t, tt.isCourt, card.IsCourt())
		})
	}
}
