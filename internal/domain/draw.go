package domain

import "fmt"

// RNG abstracts random number generation so draws are deterministic in tests.
type RNG interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
	// Float64 returns a random float in [0.0, 1.0).
	Float64() float64
}

// ReversalRate is the independent probability that a drawn card is reversed.
const ReversalRate = 0.30

// SelectedCard is one card placed into a spread.
type SelectedCard struct {
	Card
	Position            string `json:"position"`
	PositionOrder       int    `json:"position_order"`
	PositionDescription string `json:"position_description,omitempty"`
	Reversed            bool   `json:"is_reversed"`
}

// Shuffle returns a Fisher-Yates shuffled copy of the deck.
func Shuffle(cards []Card, rng RNG) []Card {
	shuffled := make([]Card, len(cards))
	copy(shuffled, cards)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

// CutThreeTimes performs the traditional triple cut: three times, a cut point
// is picked between a quarter and three quarters of the pile and the lower
// half is moved on top.
func CutThreeTimes(cards []Card, rng RNG) []Card {
	cut := make([]Card, len(cards))
	copy(cut, cards)
	for i := 0; i < 3; i++ {
		n := len(cut)
		point := n/4 + rng.Intn(n/2+1)
		cut = append(cut[point:], cut[:point]...)
	}
	return cut
}

// RemoveCard returns a copy of the deck without the given card.
func RemoveCard(cards []Card, remove Card) ([]Card, error) {
	remaining := make([]Card, 0, len(cards))
	for _, c := range cards {
		if c.ID != remove.ID {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == len(cards) {
		return nil, fmt.Errorf("%w: %s", ErrCardNotFound, remove.ID)
	}
	return remaining, nil
}

// Draw shuffles and triple-cuts the deck, then deals cards without
// replacement into the spread's positions. Each dealt card is independently
// reversed with probability ReversalRate.
func Draw(cards []Card, spread SpreadType, rng RNG) ([]SelectedCard, error) {
	positions, err := SpreadPositions(spread)
	if err != nil {
		return nil, err
	}
	if len(cards) < len(positions) {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrDeckExhausted, len(positions), len(cards))
	}

	pile := CutThreeTimes(Shuffle(cards, rng), rng)

	selected := make([]SelectedCard, len(positions))
	for i, pos := range positions {
		selected[i] = SelectedCard{
			Card:                pile[i],
			Position:            pos.Name,
			PositionOrder:       pos.Order,
			PositionDescription: pos.Description,
			Reversed:            rng.Float64() < ReversalRate,
		}
	}

	if err := ValidateSelection(selected, spread); err != nil {
		return nil, err
	}
	return selected, nil
}

// ValidateSelection checks the structural invariants of a dealt spread:
// correct count, position orders exactly {0..N-1}, and no repeated card.
func ValidateSelection(selected []SelectedCard, spread SpreadType) error {
	size, err := SpreadSize(spread)
	if err != nil {
		return err
	}
	if len(selected) != size {
		return fmt.Errorf("spread %s: expected %d cards, got %d", spread, size, len(selected))
	}
	seenOrder := make(map[int]bool, size)
	seenCard := make(map[string]bool, size)
	for _, sc := range selected {
		if sc.PositionOrder < 0 || sc.PositionOrder >= size {
			return fmt.Errorf("spread %s: position order %d out of range", spread, sc.PositionOrder)
		}
		if seenOrder[sc.PositionOrder] {
			return fmt.Errorf("spread %s: duplicate position order %d", spread, sc.PositionOrder)
		}
		seenOrder[sc.PositionOrder] = true
		if seenCard[sc.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateCard, sc.ID)
		}
		seenCard[sc.ID] = true
	}
	return nil
}
