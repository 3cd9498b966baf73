package domain

import (
	"fmt"
	"strings"
)

// Arcana distinguishes the major and minor halves of the deck.
type Arcana string

const (
	ArcanaMajor Arcana = "major"
	ArcanaMinor Arcana = "minor"
)

// Suit identifies the minor-arcana suit. Major arcana cards carry SuitNone.
type Suit string

const (
	SuitNone      Suit = ""
	SuitWands     Suit = "wands"
	SuitCups      Suit = "cups"
	SuitSwords    Suit = "swords"
	SuitPentacles Suit = "pentacles"
)

// Court ranks within a suit.
const (
	numberPage   = 11
	numberKnight = 12
	numberQueen  = 13
	numberKing   = 14
)

// Card is one card in the 78-card reference deck.
type Card struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Suit   Suit   `json:"suit,omitempty"`
	Number int    `json:"number"`
	Arcana Arcana `json:"arcana"`
}

// IsCourt reports whether the card is a court card (Page through King).
func (c Card) IsCourt() bool {
	return c.Arcana == ArcanaMinor && c.Number >= numberPage
}

// DeckSize is the number of cards in a full tarot deck.
const DeckSize = 78

var majorNames = []string{
	"The Fool", "The Magician", "The High Priestess", "The Empress",
	"The Emperor", "The Hierophant", "The Lovers", "The Chariot",
	"Strength", "The Hermit", "Wheel of Fortune", "Justice",
	"The Hanged Man", "Death", "Temperance", "The Devil",
	"The Tower", "The Star", "The Moon", "The Sun",
	"Judgement", "The World",
}

var minorRanks = []string{
	"", "Ace", "Two", "Three", "Four", "Five", "Six", "Seven",
	"Eight", "Nine", "Ten", "Page", "Knight", "Queen", "King",
}

var suitTitles = map[Suit]string{
	SuitWands:     "Wands",
	SuitCups:      "Cups",
	SuitSwords:    "Swords",
	SuitPentacles: "Pentacles",
}

var deck = buildDeck()

// Deck returns the full 78-card reference set in canonical order.
// The returned slice is shared; callers must not mutate it.
func Deck() []Card {
	return deck
}

// CardByName looks up a card by its display name, e.g. "Queen of Cups".
func CardByName(name string) (Card, bool) {
	for _, c := range deck {
		if c.Name == name {
			return c, true
		}
	}
	return Card{}, false
}

func buildDeck() []Card {
	cards := make([]Card, 0, DeckSize)
	for i, name := range majorNames {
		cards = append(cards, Card{
			ID:     slugify(name),
			Name:   name,
			Number: i,
			Arcana: ArcanaMajor,
		})
	}
	for _, suit := range []Suit{SuitWands, SuitCups, SuitSwords, SuitPentacles} {
		for n := 1; n <= numberKing; n++ {
			name := fmt.Sprintf("%s of %s", minorRanks[n], suitTitles[suit])
			cards = append(cards, Card{
				ID:     slugify(name),
				Name:   name,
				Suit:   suit,
				Number: n,
				Arcana: ArcanaMinor,
			})
		}
	}
	return cards
}

func slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}
