package domain

import "strings"

// Question domains recognized by analysis and significator selection.
const (
	DomainLove           = "love"
	DomainCareer         = "career"
	DomainHealth         = "health"
	DomainFinance        = "finance"
	DomainPersonalGrowth = "personal_growth"
	DomainGeneral        = "general"
)

// QuestionAnalysis is the structured result of analyzing the querent's
// question before any cards are drawn.
type QuestionAnalysis struct {
	QuestionDomain    string `json:"question_domain"`
	Complexity        string `json:"complexity"`
	QuestionSummary   string `json:"question_summary"`
	RecommendedSpread string `json:"recommended_spread"`
	Reasoning         string `json:"reasoning"`
}

// Normalize clamps free-form model output onto the known vocabulary so
// downstream stages never branch on an unexpected value.
func (a *QuestionAnalysis) Normalize() {
	switch a.QuestionDomain {
	case DomainLove, DomainCareer, DomainHealth, DomainFinance, DomainPersonalGrowth:
	default:
		a.QuestionDomain = DomainGeneral
	}
	switch strings.ToLower(a.Complexity) {
	case "simple", "moderate", "complex":
		a.Complexity = strings.ToLower(a.Complexity)
	default:
		a.Complexity = "moderate"
	}
	switch SpreadType(a.RecommendedSpread) {
	case SpreadThreeCard, SpreadCelticCross:
	default:
		a.RecommendedSpread = string(SpreadThreeCard)
	}
}
