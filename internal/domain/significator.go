package domain

import (
	"fmt"
	"strings"
)

// Profile carries the optional querent preferences consumed by card
// selection. All fields may be empty.
type Profile struct {
	Age                  int    `json:"age,omitempty"`
	Gender               string `json:"gender,omitempty"`
	ZodiacSign           string `json:"zodiac_sign,omitempty"`
	PersonalityType      string `json:"personality_type,omitempty"`
	SignificatorPriority string `json:"significator_priority,omitempty"`
	InterpretationModel  string `json:"interpretation_model,omitempty"`
}

// Significator priority orders.
const (
	PriorityQuestionFirst    = "question_first"
	PriorityPersonalityFirst = "personality_first"
	PriorityZodiacFirst      = "zodiac_first"
)

var zodiacToSuit = map[string]Suit{
	"aries": SuitWands, "leo": SuitWands, "sagittarius": SuitWands,
	"cancer": SuitCups, "scorpio": SuitCups, "pisces": SuitCups,
	"gemini": SuitSwords, "libra": SuitSwords, "aquarius": SuitSwords,
	"taurus": SuitPentacles, "virgo": SuitPentacles, "capricorn": SuitPentacles,
}

var domainToSuit = map[string]Suit{
	"love":            SuitCups,
	"career":          SuitWands,
	"health":          SuitPentacles,
	"finance":         SuitPentacles,
	"personal_growth": SuitSwords,
	"general":         SuitWands,
}

// suitResolver is one link in the significator strategy chain: it either
// produces a determinate suit or declines.
type suitResolver struct {
	name    string
	resolve func(p Profile, questionDomain string) (Suit, bool)
}

var questionResolver = suitResolver{
	name: "question domain",
	resolve: func(_ Profile, questionDomain string) (Suit, bool) {
		s, ok := domainToSuit[questionDomain]
		return s, ok
	},
}

var personalityResolver = suitResolver{
	name: "personality type",
	resolve: func(p Profile, _ string) (Suit, bool) {
		switch Suit(p.PersonalityType) {
		case SuitWands, SuitCups, SuitSwords, SuitPentacles:
			return Suit(p.PersonalityType), true
		}
		return SuitNone, false
	},
}

var zodiacResolver = suitResolver{
	name: "zodiac sign",
	resolve: func(p Profile, _ string) (Suit, bool) {
		s, ok := zodiacToSuit[strings.ToLower(p.ZodiacSign)]
		return s, ok
	},
}

func resolverChain(priority string) []suitResolver {
	switch priority {
	case PriorityPersonalityFirst:
		return []suitResolver{personalityResolver, questionResolver, zodiacResolver}
	case PriorityZodiacFirst:
		return []suitResolver{zodiacResolver, questionResolver, personalityResolver}
	default:
		return []suitResolver{questionResolver, personalityResolver, zodiacResolver}
	}
}

// courtLevel applies the PKT rule: men under forty are Kings, forty and over
// Knights; women under forty are Pages, forty and over Queens. Missing or
// other demographics default to King.
func courtLevel(age int, gender string) string {
	switch gender {
	case "male":
		if age >= 40 {
			return "Knight"
		}
		return "King"
	case "female":
		if age >= 40 {
			return "Queen"
		}
		return "Page"
	default:
		return "King"
	}
}

// SelectSignificator deterministically picks the querent's representative
// card. The suit comes from the first resolver in the configured priority
// chain that yields a determinate choice, falling back to Wands when every
// factor declines. Returns the card and a human-readable reason.
func SelectSignificator(p Profile, questionDomain string) (Card, string) {
	level := courtLevel(p.Age, p.Gender)

	suit := SuitWands
	source := "default (Wands)"
	for _, r := range resolverChain(p.SignificatorPriority) {
		if s, ok := r.resolve(p, questionDomain); ok {
			suit = s
			source = r.name
			break
		}
	}

	name := fmt.Sprintf("%s of %s", level, suitTitles[suit])
	card, ok := CardByName(name)
	if !ok {
		// Every court card exists in the reference deck; reaching here is a
		// programming error in the deck table.
		card, _ = CardByName("King of Wands")
		name = card.Name
	}

	reason := fmt.Sprintf("%s chosen by %s; court level %s from demographics", name, source, level)
	return card, reason
}
