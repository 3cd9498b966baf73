// Package stream defines the typed event vocabulary of a reading session
// and its wire encoding. Transports (SSE, WebSocket) carry these events
// unchanged; clients fold them into view state.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/arcanastream/reading-orchestrator/internal/domain"
)

// Kind is the event type label on the wire.
type Kind string

const (
	KindProgress       Kind = "progress"
	KindImageryChunk   Kind = "imagery_chunk"
	KindInterpretation Kind = "interpretation"
	KindComplete       Kind = "complete"
	KindError          Kind = "error"
)

// Step names the pipeline stage a progress event reports. Steps arrive in
// pipeline order within a session.
type Step string

const (
	StepStarted               Step = "started"
	StepQuestionAnalysis      Step = "question_analysis"
	StepCardsSelected         Step = "cards_selected"
	StepPatternAnalyzed       Step = "pattern_analyzed"
	StepRetrievalCardProgress Step = "rag_card_progress"
	StepRetrievalFirstReady   Step = "rag_first_card_ready"
	StepRetrievalDone         Step = "rag_retrieved"
	StepImageryGenerated      Step = "imagery_generated"
	StepInterpretationStarted Step = "interpretation_started"
)

// SignificatorInfo is the significator summary attached to cards_selected.
type SignificatorInfo struct {
	CardName        string `json:"card_name"`
	SelectionReason string `json:"selection_reason,omitempty"`
}

// ProgressPayload is the data object of a progress event. Fields beyond
// Step and Message are populated per step and omitted otherwise.
type ProgressPayload struct {
	Step    Step   `json:"step"`
	Message string `json:"message,omitempty"`

	// started
	ReadingID string `json:"reading_id,omitempty"`

	// question_analysis
	QuestionAnalysis *domain.QuestionAnalysis `json:"question_analysis,omitempty"`
	SpreadType       string                   `json:"spread_type,omitempty"`

	// cards_selected
	Cards        []domain.SelectedCard `json:"cards,omitempty"`
	Significator *SignificatorInfo     `json:"significator,omitempty"`

	// pattern_analyzed
	PatternAnalysis *domain.PatternAnalysis `json:"pattern_analysis,omitempty"`

	// rag_card_progress and rag_first_card_ready
	Progress       float64 `json:"progress,omitempty"`
	CompletedCards int     `json:"completed_cards,omitempty"`
	TotalCards     int     `json:"total_cards,omitempty"`
	CardID         string  `json:"card_id,omitempty"`
	CardName       string  `json:"card_name,omitempty"`

	// imagery_generated
	ImageryDescription string `json:"imagery_description,omitempty"`
}

// ChunkPayload carries one streamed text fragment.
type ChunkPayload struct {
	Text string `json:"text"`
}

// CompletePayload is the terminal success payload.
type CompletePayload struct {
	ReadingID   string `json:"reading_id"`
	Question    string `json:"question"`
	SpreadType  string `json:"spread_type"`
	TotalTimeMS int64  `json:"total_time_ms"`
	Message     string `json:"message,omitempty"`
}

// ErrorPayload is the terminal failure payload.
type ErrorPayload struct {
	Error     string `json:"error"`
	ReadingID string `json:"reading_id,omitempty"`
}

// Event is one element of a reading session's ordered event sequence.
// Exactly one payload pointer is set, matching Kind.
type Event struct {
	Kind     Kind
	Progress *ProgressPayload
	Chunk    *ChunkPayload
	Complete *CompletePayload
	Error    *ErrorPayload
}

// Terminal reports whether the event ends the session.
func (e Event) Terminal() bool {
	return e.Kind == KindComplete || e.Kind == KindError
}

// Data marshals the event's payload into the wire JSON object.
func (e Event) Data() ([]byte, error) {
	switch e.Kind {
	case KindProgress:
		return json.Marshal(e.Progress)
	case KindImageryChunk, KindInterpretation:
		return json.Marshal(e.Chunk)
	case KindComplete:
		return json.Marshal(e.Complete)
	case KindError:
		return json.Marshal(e.Error)
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
}

// ParseEvent builds a typed Event from a wire kind and its JSON data.
func ParseEvent(kind Kind, data []byte) (Event, error) {
	ev := Event{Kind: kind}
	var err error
	switch kind {
	case KindProgress:
		ev.Progress = &ProgressPayload{}
		err = json.Unmarshal(data, ev.Progress)
	case KindImageryChunk, KindInterpretation:
		ev.Chunk = &ChunkPayload{}
		err = json.Unmarshal(data, ev.Chunk)
	case KindComplete:
		ev.Complete = &CompletePayload{}
		err = json.Unmarshal(data, ev.Complete)
	case KindError:
		ev.Error = &ErrorPayload{}
		err = json.Unmarshal(data, ev.Error)
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", kind)
	}
	if err != nil {
		return Event{}, fmt.Errorf("decode %s event: %w", kind, err)
	}
	return ev, nil
}

// Progress builds a progress event.
func Progress(p ProgressPayload) Event {
	return Event{Kind: KindProgress, Progress: &p}
}

// ImageryChunk builds an imagery text fragment event.
func ImageryChunk(text string) Event {
	return Event{Kind: KindImageryChunk, Chunk: &ChunkPayload{Text: text}}
}

// InterpretationChunk builds an interpretation text fragment event.
func InterpretationChunk(text string) Event {
	return Event{Kind: KindInterpretation, Chunk: &ChunkPayload{Text: text}}
}

// Complete builds the terminal success event.
func Complete(p CompletePayload) Event {
	return Event{Kind: KindComplete, Complete: &p}
}

// Failure builds the terminal error event.
func Failure(msg, readingID string) Event {
	return Event{Kind: KindError, Error: &ErrorPayload{Error: msg, ReadingID: readingID}}
}

// Emitter receives session events in order. Implementations must be safe
// for the session goroutine to call; a returned error aborts the session.
type Emitter func(Event) error
