package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSelect(t *testing.T, name, position string, order int, reversed bool) SelectedCard {
	t.Helper()
	card, ok := CardByName(name)
	require.True(t, ok, "unknown card %q", name)
	return SelectedCard{Card: card, Position: position, PositionOrder: order, Reversed: reversed}
}

func TestAnalyzePatternThreeCard(t *testing.T) {
	cards := []SelectedCard{
		mustSelect(t, "Two of Cups", "past", 0, false),
		mustSelect(t, "Three of Cups", "present", 1, true),
		mustSelect(t, "Seven of Cups", "future", 2, false),
	}

	pa := AnalyzePattern(cards, SpreadThreeCard)

	assert.Equal(t, "code_based", pa.AnalysisMethod)
	assert.Equal(t,
		"Past → Present → Future: Two of Cups → Three of Cups → Seven of Cups",
		pa.PositionRelationships.TimeFlow)
	assert.Equal(t, []string{"past → present", "present → future"},
		pa.PositionRelationships.CausalRelationships)
	assert.Contains(t, pa.PositionRelationships.SupportConflict, "All cards are Cups suit")

	assert.Contains(t, pa.NumberPatterns.NumberSequences, "Number sequence: 2 → 3")
	assert.Contains(t, pa.NumberPatterns.NumberJumps, "Number jump: 3 → 7 (gap: 4)")
	assert.Empty(t, pa.NumberPatterns.SameNumbers)
	assert.Empty(t, pa.NumberPatterns.MajorNumbers)

	assert.Equal(t, 3, pa.SuitDistribution.CupsCount)
	assert.Equal(t, 0, pa.SuitDistribution.MajorCount)
	assert.Contains(t, pa.SuitDistribution.Interpretation, "Cups element is more prominent")

	assert.Equal(t, 0, pa.MajorArcanaPatterns.Count)
	assert.Contains(t, pa.MajorArcanaPatterns.Meaning, "No Major Arcana")

	assert.Equal(t, 1, pa.ReversedPatterns.Count)
	assert.Equal(t, []string{"present"}, pa.ReversedPatterns.Positions)
	assert.Contains(t, pa.ReversedPatterns.Interpretation, "Moderate number of reversed cards")

	assert.Contains(t, pa.SpecialCombinations[0], "Cups suit dominant (3 cards)")
}

func TestAnalyzePatternMajorsAndCourts(t *testing.T) {
	cards := []SelectedCard{
		mustSelect(t, "The Tower", "past", 0, true),
		mustSelect(t, "Death", "present", 1, true),
		mustSelect(t, "Queen of Wands", "future", 2, true),
	}

	pa := AnalyzePattern(cards, SpreadThreeCard)

	assert.Equal(t, 2, pa.MajorArcanaPatterns.Count)
	assert.Equal(t, []string{"past", "present"}, pa.MajorArcanaPatterns.Positions)
	assert.Contains(t, pa.MajorArcanaPatterns.Meaning, "Major Arcana in majority")
	assert.ElementsMatch(t, []int{16, 13}, pa.NumberPatterns.MajorNumbers)

	assert.Equal(t, 2, pa.SuitDistribution.MajorCount)
	assert.Contains(t, pa.SuitDistribution.Interpretation, "Major Arcana dominant")

	assert.Equal(t, 3, pa.ReversedPatterns.Count)
	assert.Contains(t, pa.ReversedPatterns.Interpretation, "Many reversed cards")
}

func TestAnalyzePatternSingleMajorAndUpright(t *testing.T) {
	cards := []SelectedCard{
		mustSelect(t, "The Sun", "past", 0, false),
		mustSelect(t, "Ace of Wands", "present", 1, false),
		mustSelect(t, "Nine of Pentacles", "future", 2, false),
	}

	pa := AnalyzePattern(cards, SpreadThreeCard)

	assert.Equal(t, 1, pa.MajorArcanaPatterns.Count)
	assert.Contains(t, pa.MajorArcanaPatterns.Meaning, "Only 1 Major Arcana (The Sun)")
	assert.Contains(t, pa.ReversedPatterns.Interpretation, "All cards are upright")
	assert.Contains(t, pa.PositionRelationships.SupportConflict, "All cards are different suits")
}

func TestAnalyzePatternCourtCombination(t *testing.T) {
	cards := []SelectedCard{
		mustSelect(t, "King of Swords", "past", 0, false),
		mustSelect(t, "Page of Swords", "present", 1, false),
		mustSelect(t, "Six of Cups", "future", 2, false),
	}

	pa := AnalyzePattern(cards, SpreadThreeCard)

	require.NotEmpty(t, pa.SpecialCombinations)
	assert.Contains(t, pa.SpecialCombinations[0], "Court card combination: King of Swords, Page of Swords")
	assert.Contains(t, pa.PositionRelationships.SupportConflict, "Suit distribution:")
}

func TestAnalyzePatternCelticCrossTimeFlow(t *testing.T) {
	positions, err := SpreadPositions(SpreadCelticCross)
	require.NoError(t, err)

	deck := Deck()
	cards := make([]SelectedCard, len(positions))
	for i, pos := range positions {
		cards[i] = SelectedCard{Card: deck[i], Position: pos.Name, PositionOrder: pos.Order}
	}

	pa := AnalyzePattern(cards, SpreadCelticCross)
	assert.Contains(t, pa.PositionRelationships.TimeFlow, "Celtic Cross:")
	assert.Len(t, pa.PositionRelationships.CausalRelationships, 9)
}

func TestQuestionAnalysisNormalize(t *testing.T) {
	tests := []struct {
		name       string
		in         QuestionAnalysis
		wantDomain string
		wantLevel  string
		wantSpread string
	}{
		{
			name:       "valid values pass through",
			in:         QuestionAnalysis{QuestionDomain: "love", Complexity: "complex", RecommendedSpread: "celtic_cross"},
			wantDomain: "love",
			wantLevel:  "complex",
			wantSpread: "celtic_cross",
		},
		{
			name:       "unknown values clamp to defaults",
			in:         QuestionAnalysis{QuestionDomain: "weather", Complexity: "extreme", RecommendedSpread: "star"},
			wantDomain: "general",
			wantLevel:  "moderate",
			wantSpread: "three_card",
		},
		{
			name:       "complexity case folded",
			in:         QuestionAnalysis{QuestionDomain: "career", Complexity: "Simple", RecommendedSpread: "three_card"},
			wantDomain: "career",
			wantLevel:  "simple",
			wantSpread: "three_card",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Normalize()
			assert.Equal(t, tt.wantDomain, tt.in.QuestionDomain)
			assert.Equal(t, tt.wantLevel, tt.in.Complexity)
			assert.Equal(t, tt.wantSpread, tt.in.RecommendedSpread)
		})
	}
}
