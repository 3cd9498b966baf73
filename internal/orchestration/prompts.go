package orchestration

import (
	"fmt"
	"strings"

	"github.com/arcanastream/reading-orchestrator/internal/domain"
)

// cardQuery is one retrieval query for a card, with its result budget.
type cardQuery struct {
	Query string
	Type  string
	TopK  int
}

var suitKeywords = map[domain.Suit]string{
	domain.SuitWands:     "fire element action",
	domain.SuitCups:      "water element emotion",
	domain.SuitSwords:    "air element thought",
	domain.SuitPentacles: "earth element material",
}

// buildCardQueries produces the fused query set for one card. Major and
// minor arcana differ only in the first query's keyword mix.
func buildCardQueries(card domain.SelectedCard) []cardQuery {
	orientation := "upright"
	if card.Reversed {
		orientation = "reversed"
	}

	queries := make([]cardQuery, 0, 3)
	if card.Arcana == domain.ArcanaMajor {
		queries = append(queries, cardQuery{
			Query: fmt.Sprintf("%s tarot card %s meaning divinatory %s symbolic meaning symbolism archetype",
				card.Name, orientation, orientation),
			Type: "basic_upright_reversed_symbolic_meaning",
			TopK: 10,
		})
	} else {
		base := fmt.Sprintf("%s tarot card %s meaning divinatory %s", card.Name, orientation, orientation)
		if kw, ok := suitKeywords[card.Suit]; ok {
			base = fmt.Sprintf("%s %s suit meaning", base, kw)
		}
		queries = append(queries, cardQuery{
			Query: base,
			Type:  "basic_upright_reversed_suit_meaning",
			TopK:  10,
		})
	}

	queries = append(queries, cardQuery{
		Query: fmt.Sprintf("%s tarot card description image visual appearance", card.Name),
		Type:  "visual_description",
		TopK:  5,
	})

	positionPart := ""
	if card.Position != "" {
		positionPart = fmt.Sprintf(" %s position", card.Position)
	}
	queries = append(queries, cardQuery{
		Query: fmt.Sprintf("%s tarot card%s meaning psychological meaning psychological interpretation",
			card.Name, positionPart),
		Type: "position_and_psychological_meaning",
		TopK: 10,
	})

	return queries
}

// buildSpreadMethodQuery asks the knowledge base how to read the spread.
func buildSpreadMethodQuery(spread domain.SpreadType) cardQuery {
	return cardQuery{
		Query: fmt.Sprintf("%s tarot spread method position meanings interpretation steps", spread),
		Type:  "spread_method",
		TopK:  10,
	}
}

// buildRelationshipsQuery asks the knowledge base how the drawn cards
// interact with each other.
func buildRelationshipsQuery(cards []domain.SelectedCard) cardQuery {
	names := make([]string, len(cards))
	for i, c := range cards {
		names[i] = c.Name
	}
	return cardQuery{
		Query: fmt.Sprintf("tarot card combination relationships %s interaction meaning", strings.Join(names, " ")),
		Type:  "card_relationships",
		TopK:  10,
	}
}

const questionAnalysisSystem = `You are a tarot consultation analyst. Analyze the querent's question and respond with a single JSON object, no prose, with exactly these keys:
{"question_domain": one of "love", "career", "health", "finance", "personal_growth", "general",
"complexity": one of "simple", "moderate", "complex",
"question_summary": a one-sentence restatement of the question,
"recommended_spread": "three_card" for focused or simple questions, "celtic_cross" for complex or multi-factor situations,
"reasoning": one sentence explaining the recommendation}`

func buildQuestionAnalysisPrompt(question string) string {
	return fmt.Sprintf("Question: %s", question)
}

const imagerySystem = `You are a tarot reader describing the visual scene of a freshly laid spread. Write a flowing, evocative description of the cards on the table: their imagery, orientation, and how the scene feels as a whole. Two or three short paragraphs. Do not interpret meanings yet.`

func buildImageryPrompt(cards []domain.SelectedCard, cardInfo map[string]CardInformation, questionDomain string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The querent asks about %s. The spread on the table:\n", questionDomain)
	for _, c := range cards {
		orientation := "upright"
		if c.Reversed {
			orientation = "reversed"
		}
		fmt.Fprintf(&b, "- %s (%s) in the %s position\n", c.Name, orientation, c.Position)
		if info, ok := cardInfo[c.ID]; ok {
			for _, s := range info.Snippets {
				if s.QueryType == "visual_description" && s.Text != "" {
					fmt.Fprintf(&b, "  visual reference: %s\n", truncate(s.Text, 300))
					break
				}
			}
		}
	}
	return b.String()
}

const interpretationSystem = `You are an experienced tarot reader giving a complete reading. Ground every statement in the drawn cards, their positions and orientations, the structural patterns of the spread, and the provided reference passages. Address the querent directly. Cover each position, how the cards relate, and close with practical guidance.`

func buildInterpretationPrompt(
	question string,
	analysis domain.QuestionAnalysis,
	cards []domain.SelectedCard,
	pattern domain.PatternAnalysis,
	cardInfo map[string]CardInformation,
	spreadMethod []Snippet,
	relationships []Snippet,
	imagery string,
) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question: %s\n", question)
	fmt.Fprintf(&b, "Domain: %s, complexity: %s\n", analysis.QuestionDomain, analysis.Complexity)
	if analysis.QuestionSummary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", analysis.QuestionSummary)
	}

	b.WriteString("\nCards drawn:\n")
	for _, c := range cards {
		orientation := "upright"
		if c.Reversed {
			orientation = "reversed"
		}
		fmt.Fprintf(&b, "%d. %s (%s) in %s: %s\n", c.PositionOrder+1, c.Name, orientation, c.Position, c.PositionDescription)
	}

	b.WriteString("\nSpread structure:\n")
	fmt.Fprintf(&b, "- %s\n", pattern.PositionRelationships.TimeFlow)
	fmt.Fprintf(&b, "- %s\n", pattern.PositionRelationships.SupportConflict)
	fmt.Fprintf(&b, "- %s\n", pattern.SuitDistribution.Interpretation)
	fmt.Fprintf(&b, "- %s\n", pattern.MajorArcanaPatterns.Meaning)
	fmt.Fprintf(&b, "- %s\n", pattern.ReversedPatterns.Interpretation)
	for _, combo := range pattern.SpecialCombinations {
		fmt.Fprintf(&b, "- %s\n", combo)
	}

	b.WriteString("\nReference passages per card:\n")
	for _, c := range cards {
		info, ok := cardInfo[c.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", c.Name)
		for i, s := range info.Snippets {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "  [%s] %s\n", s.Source, truncate(s.Text, 500))
		}
	}

	if len(spreadMethod) > 0 {
		b.WriteString("\nSpread method references:\n")
		for i, s := range spreadMethod {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "  [%s] %s\n", s.Source, truncate(s.Text, 500))
		}
	}
	if len(relationships) > 0 {
		b.WriteString("\nCard relationship references:\n")
		for i, s := range relationships {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "  [%s] %s\n", s.Source, truncate(s.Text, 500))
		}
	}

	if imagery != "" {
		fmt.Fprintf(&b, "\nScene described to the querent so far:\n%s\n", imagery)
	}

	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
