// Package streamclient reconstructs reading state from the event stream.
// Reduce is a pure fold: transports decode bytes into typed events and feed
// them in order; replaying the same sequence always yields the same state.
package streamclient

import (
	"github.com/arcanastream/reading-orchestrator/internal/domain"
	"github.com/arcanastream/reading-orchestrator/internal/stream"
)

// Phase is the client-visible pipeline position.
type Phase string

const (
	PhaseIdle                     Phase = "idle"
	PhaseQuestionAnalysis         Phase = "question_analysis"
	PhaseCardSelection            Phase = "card_selection"
	PhasePatternAnalysis          Phase = "pattern_analysis"
	PhaseKnowledgeRetrieval       Phase = "knowledge_retrieval"
	PhaseImageryGeneration        Phase = "imagery_generation"
	PhaseInterpretationGeneration Phase = "interpretation_generation"
	PhaseComplete                 Phase = "complete"
	PhaseFailed                   Phase = "failed"
)

// State is the reconstructed view of one reading session.
type State struct {
	Phase     Phase
	ReadingID string

	Analysis     *domain.QuestionAnalysis
	SpreadType   string
	Cards        []domain.SelectedCard
	Significator *stream.SignificatorInfo
	Pattern      *domain.PatternAnalysis

	RetrievalCompleted int
	RetrievalTotal     int
	RevealUnlocked     bool

	Imagery               string
	ImageryVisible        bool
	Interpretation        string
	InterpretationVisible bool

	// TextIncomplete marks already-streamed text that was cut off by a
	// failure. The text stays visible; it is never erased.
	TextIncomplete bool

	TotalTimeMS  int64
	ErrorMessage string
}

// NewState returns the initial fold state.
func NewState() State {
	return State{Phase: PhaseIdle}
}

// Reduce folds one event into the state. It never mutates its input and has
// no side effects; the same event sequence always produces the same state.
func Reduce(s State, ev stream.Event) State {
	switch ev.Kind {
	case stream.KindProgress:
		return reduceProgress(s, *ev.Progress)

	case stream.KindImageryChunk:
		if s.Imagery == "" {
			s.ImageryVisible = true
		}
		s.Imagery += ev.Chunk.Text
		return s

	case stream.KindInterpretation:
		if s.Interpretation == "" {
			s.Phase = PhaseInterpretationGeneration
		}
		s.Interpretation += ev.Chunk.Text
		return s

	case stream.KindComplete:
		s.Phase = PhaseComplete
		s.ReadingID = ev.Complete.ReadingID
		s.SpreadType = ev.Complete.SpreadType
		s.TotalTimeMS = ev.Complete.TotalTimeMS
		return s

	case stream.KindError:
		s.Phase = PhaseFailed
		s.ErrorMessage = ev.Error.Error
		// In-flight structural buffers are dropped; a failed reading must
		// not look half-created. Streamed text stays, marked incomplete.
		s.Analysis = nil
		s.Cards = nil
		s.Significator = nil
		s.Pattern = nil
		s.RetrievalCompleted = 0
		s.RetrievalTotal = 0
		s.RevealUnlocked = false
		if s.Imagery != "" || s.Interpretation != "" {
			s.TextIncomplete = true
		}
		return s
	}

	return s
}

func reduceProgress(s State, p stream.ProgressPayload) State {
	switch p.Step {
	case stream.StepStarted:
		// Informational only. Keeping the identifier lets the UI reference
		// the session before completion without changing the visible step.
		s.ReadingID = p.ReadingID

	case stream.StepQuestionAnalysis:
		s.Phase = PhaseQuestionAnalysis
		s.Analysis = p.QuestionAnalysis
		s.SpreadType = p.SpreadType

	case stream.StepCardsSelected:
		s.Phase = PhaseCardSelection
		s.Cards = p.Cards
		s.Significator = p.Significator

	case stream.StepPatternAnalyzed:
		s.Phase = PhasePatternAnalysis
		s.Pattern = p.PatternAnalysis

	case stream.StepRetrievalCardProgress:
		s.RetrievalCompleted = p.CompletedCards
		s.RetrievalTotal = p.TotalCards

	case stream.StepRetrievalFirstReady:
		s.RevealUnlocked = true

	case stream.StepRetrievalDone:
		s.Phase = PhaseKnowledgeRetrieval

	case stream.StepImageryGenerated:
		s.Phase = PhaseImageryGeneration
		if s.Imagery == "" && p.ImageryDescription != "" {
			s.Imagery = p.ImageryDescription
			s.ImageryVisible = true
		}

	case stream.StepInterpretationStarted:
		s.Phase = PhaseInterpretationGeneration
		s.InterpretationVisible = true
	}

	return s
}

// ReduceAll folds a whole event sequence from the initial state.
func ReduceAll(events []stream.Event) State {
	s := NewState()
	for _, ev := range events {
		s = Reduce(s, ev)
	}
	return s
}
