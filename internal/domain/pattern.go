package domain

import (
	"fmt"
	"sort"
	"strings"
)

// PositionRelationships describes how the positions in a spread relate to
// one another.
type PositionRelationships struct {
	TimeFlow            string   `json:"time_flow"`
	CausalRelationships []string `json:"causal_relationships"`
	SupportConflict     string   `json:"support_conflict"`
}

// NumberPatterns captures repeated numbers, runs and jumps among the minor
// arcana, plus the raw major arcana numbers.
type NumberPatterns struct {
	SameNumbers     []string `json:"same_numbers"`
	NumberSequences []string `json:"number_sequences"`
	NumberJumps     []string `json:"number_jumps"`
	MajorNumbers    []int    `json:"major_numbers"`
}

// SuitDistribution counts cards per suit with a short interpretation.
type SuitDistribution struct {
	WandsCount     int    `json:"wands_count"`
	CupsCount      int    `json:"cups_count"`
	SwordsCount    int    `json:"swords_count"`
	PentaclesCount int    `json:"pentacles_count"`
	MajorCount     int    `json:"major_count"`
	Interpretation string `json:"interpretation"`
}

// MajorArcanaPatterns summarizes the major arcana presence in the spread.
type MajorArcanaPatterns struct {
	Count     int      `json:"count"`
	Positions []string `json:"positions"`
	Meaning   string   `json:"meaning"`
}

// ReversedPatterns summarizes the reversed cards in the spread.
type ReversedPatterns struct {
	Count          int      `json:"count"`
	Positions      []string `json:"positions"`
	Interpretation string   `json:"interpretation"`
}

// PatternAnalysis is the deterministic structural analysis of a drawn
// spread. It contains no model output and is reproducible from the cards
// alone.
type PatternAnalysis struct {
	AnalysisMethod        string                `json:"analysis_method"`
	PositionRelationships PositionRelationships `json:"position_relationships"`
	NumberPatterns        NumberPatterns        `json:"number_patterns"`
	SuitDistribution      SuitDistribution      `json:"suit_distribution"`
	MajorArcanaPatterns   MajorArcanaPatterns   `json:"major_arcana_patterns"`
	ReversedPatterns      ReversedPatterns      `json:"reversed_patterns"`
	SpecialCombinations   []string              `json:"special_combinations"`
}

// AnalyzePattern runs the code-based spread analysis over the selected
// cards. The result depends only on the inputs.
func AnalyzePattern(cards []SelectedCard, spread SpreadType) PatternAnalysis {
	return PatternAnalysis{
		AnalysisMethod:        "code_based",
		PositionRelationships: analyzePositions(cards, spread),
		NumberPatterns:        analyzeNumbers(cards),
		SuitDistribution:      analyzeSuits(cards),
		MajorArcanaPatterns:   analyzeMajors(cards),
		ReversedPatterns:      analyzeReversals(cards),
		SpecialCombinations:   findCombinations(cards),
	}
}

func analyzePositions(cards []SelectedCard, spread SpreadType) PositionRelationships {
	rel := PositionRelationships{CausalRelationships: []string{}}

	switch spread {
	case SpreadThreeCard:
		names := []string{"N/A", "N/A", "N/A"}
		for i := 0; i < len(cards) && i < 3; i++ {
			names[i] = cards[i].Name
		}
		rel.TimeFlow = fmt.Sprintf("Past → Present → Future: %s → %s → %s", names[0], names[1], names[2])
	case SpreadCelticCross:
		rel.TimeFlow = "Celtic Cross: Current Situation → Challenge → Past → Future → Goal → Near Future → Attitude → Environment → Hopes & Fears → Outcome"
	}

	for i := 0; i+1 < len(cards); i++ {
		if cards[i].Position != "" && cards[i+1].Position != "" {
			rel.CausalRelationships = append(rel.CausalRelationships,
				fmt.Sprintf("%s → %s", cards[i].Position, cards[i+1].Position))
		}
	}

	if len(cards) >= 2 {
		seen := map[Suit]bool{}
		unique := []Suit{}
		for _, c := range cards {
			if !seen[c.Suit] {
				seen[c.Suit] = true
				unique = append(unique, c.Suit)
			}
		}
		switch {
		case len(unique) == 1:
			rel.SupportConflict = fmt.Sprintf("All cards are %s suit, indicating unified element and mutual support",
				suitTitle(cards[0].Suit))
		case len(unique) == len(cards):
			rel.SupportConflict = "All cards are different suits, indicating diverse elements, possible conflicts or balance"
		default:
			titles := make([]string, 0, len(unique))
			for _, s := range unique {
				titles = append(titles, suitTitle(s))
			}
			rel.SupportConflict = fmt.Sprintf("Suit distribution: %s, indicating mixed elements requiring balance",
				strings.Join(titles, ", "))
		}
	}

	return rel
}

func suitTitle(s Suit) string {
	if t, ok := suitTitles[s]; ok {
		return t
	}
	return string(s)
}

func analyzeNumbers(cards []SelectedCard) NumberPatterns {
	np := NumberPatterns{
		SameNumbers:     []string{},
		NumberSequences: []string{},
		NumberJumps:     []string{},
		MajorNumbers:    []int{},
	}

	counts := map[int]int{}
	var minors []int
	for _, c := range cards {
		if c.Arcana == ArcanaMajor {
			np.MajorNumbers = append(np.MajorNumbers, c.Number)
			continue
		}
		if counts[c.Number] == 0 {
			minors = append(minors, c.Number)
		}
		counts[c.Number]++
	}

	sort.Ints(minors)
	for _, n := range minors {
		if counts[n] > 1 {
			np.SameNumbers = append(np.SameNumbers,
				fmt.Sprintf("Number %d appears %d times", n, counts[n]))
		}
	}
	for i := 0; i+1 < len(minors); i++ {
		gap := minors[i+1] - minors[i]
		if gap == 1 {
			np.NumberSequences = append(np.NumberSequences,
				fmt.Sprintf("Number sequence: %d → %d", minors[i], minors[i+1]))
		}
		if gap > 3 {
			np.NumberJumps = append(np.NumberJumps,
				fmt.Sprintf("Number jump: %d → %d (gap: %d)", minors[i], minors[i+1], gap))
		}
	}

	return np
}

func analyzeSuits(cards []SelectedCard) SuitDistribution {
	var sd SuitDistribution
	for _, c := range cards {
		switch {
		case c.Arcana == ArcanaMajor:
			sd.MajorCount++
		case c.Suit == SuitWands:
			sd.WandsCount++
		case c.Suit == SuitCups:
			sd.CupsCount++
		case c.Suit == SuitSwords:
			sd.SwordsCount++
		case c.Suit == SuitPentacles:
			sd.PentaclesCount++
		}
	}

	totalMinor := sd.WandsCount + sd.CupsCount + sd.SwordsCount + sd.PentaclesCount
	switch {
	case sd.MajorCount > totalMinor:
		sd.Interpretation = fmt.Sprintf("Major Arcana dominant (%d cards), indicating major themes and spiritual influences", sd.MajorCount)
	case totalMinor > 0:
		dominant := SuitWands
		max := sd.WandsCount
		for _, pair := range []struct {
			suit  Suit
			count int
		}{{SuitCups, sd.CupsCount}, {SuitSwords, sd.SwordsCount}, {SuitPentacles, sd.PentaclesCount}} {
			if pair.count > max {
				dominant, max = pair.suit, pair.count
			}
		}
		sd.Interpretation = fmt.Sprintf(
			"Element distribution: Wands %d, Cups %d, Swords %d, Pentacles %d. %s element is more prominent",
			sd.WandsCount, sd.CupsCount, sd.SwordsCount, sd.PentaclesCount, suitTitle(dominant))
	default:
		sd.Interpretation = "All cards are Major Arcana, indicating complete spiritual influence"
	}

	return sd
}

func analyzeMajors(cards []SelectedCard) MajorArcanaPatterns {
	mp := MajorArcanaPatterns{Positions: []string{}}
	var majors []SelectedCard
	for _, c := range cards {
		if c.Arcana == ArcanaMajor {
			majors = append(majors, c)
			if c.Position != "" {
				mp.Positions = append(mp.Positions, c.Position)
			}
		}
	}
	mp.Count = len(majors)

	switch {
	case mp.Count == 0:
		mp.Meaning = "No Major Arcana, indicating daily affairs and specific events"
	case mp.Count == 1:
		mp.Meaning = fmt.Sprintf("Only 1 Major Arcana (%s), indicating a single major theme", majors[0].Name)
	case mp.Count >= len(cards)/2:
		mp.Meaning = fmt.Sprintf("Major Arcana in majority (%d cards), indicating major transitions and spiritual growth", mp.Count)
	default:
		mp.Meaning = fmt.Sprintf("Moderate number of Major Arcana (%d cards), indicating balance between spiritual and mundane matters", mp.Count)
	}

	return mp
}

func analyzeReversals(cards []SelectedCard) ReversedPatterns {
	rp := ReversedPatterns{Positions: []string{}}
	for _, c := range cards {
		if c.Reversed {
			rp.Count++
			if c.Position != "" {
				rp.Positions = append(rp.Positions, c.Position)
			}
		}
	}

	rate := 0.0
	if len(cards) > 0 {
		rate = float64(rp.Count) / float64(len(cards))
	}
	switch {
	case rate == 0:
		rp.Interpretation = "All cards are upright, indicating smooth energy flow and normal development"
	case rate < 0.3:
		rp.Interpretation = fmt.Sprintf("Few reversed cards (%d cards), indicating mostly smooth energy flow with a few areas needing attention", rp.Count)
	case rate < 0.7:
		rp.Interpretation = fmt.Sprintf("Moderate number of reversed cards (%d cards), indicating mixed energy requiring balance between upright and reversed influences", rp.Count)
	default:
		rp.Interpretation = fmt.Sprintf("Many reversed cards (%d cards), indicating blocked energy requiring special attention to reversed meanings", rp.Count)
	}

	return rp
}

func findCombinations(cards []SelectedCard) []string {
	combos := []string{}

	var courtNames []string
	for _, c := range cards {
		if c.IsCourt() {
			courtNames = append(courtNames, c.Name)
		}
	}
	if len(courtNames) >= 2 {
		combos = append(combos, fmt.Sprintf(
			"Court card combination: %s, may represent people or personality traits",
			strings.Join(courtNames, ", ")))
	}

	nameCounts := map[string]int{}
	var order []string
	for _, c := range cards {
		if nameCounts[c.Name] == 0 {
			order = append(order, c.Name)
		}
		nameCounts[c.Name]++
	}
	var dupes []string
	for _, name := range order {
		if nameCounts[name] > 1 {
			dupes = append(dupes, name)
		}
	}
	if len(dupes) > 0 {
		combos = append(combos, fmt.Sprintf(
			"Duplicate cards: %s, indicating the importance of this theme",
			strings.Join(dupes, ", ")))
	}

	suitCounts := map[Suit]int{}
	minorTotal := 0
	for _, c := range cards {
		if c.Arcana == ArcanaMinor {
			minorTotal++
			suitCounts[c.Suit]++
		}
	}
	if minorTotal >= 2 {
		dominant := SuitNone
		max := 0
		for _, s := range []Suit{SuitWands, SuitCups, SuitSwords, SuitPentacles} {
			if suitCounts[s] > max {
				dominant, max = s, suitCounts[s]
			}
		}
		if max >= 2 {
			combos = append(combos, fmt.Sprintf(
				"%s suit dominant (%d cards), indicating strong influence of this element",
				suitTitle(dominant), max))
		}
	}

	return combos
}
