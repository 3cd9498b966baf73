package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/arcanastream/reading-orchestrator/internal/domain"
	"github.com/arcanastream/reading-orchestrator/internal/metrics"
	"github.com/arcanastream/reading-orchestrator/internal/stream"
)

// errAbandoned marks emit failures: the client is gone, so no error event
// can or should be delivered.
var errAbandoned = errors.New("session abandoned")

// Request is one reading invocation.
type Request struct {
	Question   string
	UserID     string
	SpreadType string // explicit spread name, "auto", or empty
	Profile    *domain.Profile
	SourcePage string
}

// ModelConfig names the generator model used per stage.
type ModelConfig struct {
	Analysis       string
	Imagery        string
	Interpretation string
}

// AnnotatedSnippet is a retrieved passage tagged with the query that
// produced it.
type AnnotatedSnippet struct {
	Snippet
	QueryType string `json:"query_type,omitempty"`
}

// CardInformation holds everything retrieved for one card.
type CardInformation struct {
	CardID   string             `json:"card_id"`
	CardName string             `json:"card_name"`
	Position string             `json:"position"`
	Reversed bool               `json:"is_reversed"`
	Arcana   domain.Arcana      `json:"arcana"`
	Snippets []AnnotatedSnippet `json:"snippets"`
}

// ReadingRecord is the durable form of a completed session. Nothing is
// written to the store before the session reaches this shape.
type ReadingRecord struct {
	ID             string
	UserID         string
	Question       string
	Analysis       domain.QuestionAnalysis
	SpreadType     string
	Cards          []domain.SelectedCard
	Pattern        domain.PatternAnalysis
	Significator   *stream.SignificatorInfo
	Imagery        string
	Interpretation string
	Summary        string
	SourcePage     string
	TotalTimeMS    int64
	CreatedAt      time.Time
	CompletedAt    time.Time
}

// Persister saves completed readings.
type Persister interface {
	SaveReading(ctx context.Context, rec ReadingRecord) error
}

// Service runs reading sessions end to end: analysis, card selection,
// pattern analysis, retrieval fan-out, streamed imagery and interpretation,
// then persistence.
type Service struct {
	generator Generator
	retriever Retriever
	store     Persister
	metrics   *metrics.ReadingMetrics
	models    ModelConfig
	tracer    trace.Tracer
	newRNG    func() domain.RNG
	now       func() time.Time
	newID     func() string
}

// NewService wires the pipeline dependencies.
func NewService(generator Generator, retriever Retriever, store Persister, rm *metrics.ReadingMetrics, models ModelConfig) *Service {
	return &Service{
		generator: generator,
		retriever: retriever,
		store:     store,
		metrics:   rm,
		models:    models,
		tracer:    otel.Tracer("reading-orchestrator"),
		newRNG: func() domain.RNG {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// Run executes the full pipeline, delivering events through emit in order.
// Every session ends with exactly one terminal event: complete on success,
// error on failure. Run itself never returns an error to the transport;
// failures surface on the stream.
func (s *Service) Run(ctx context.Context, req Request, emit stream.Emitter) {
	start := s.now()
	readingID := s.newID()

	ctx, span := s.tracer.Start(ctx, "reading.run")
	defer span.End()
	span.SetAttributes(attribute.String("reading_id", readingID))

	spreadUsed, err := s.run(ctx, readingID, req, start, emit)
	if err == nil {
		return
	}

	span.RecordError(err)
	if s.metrics != nil {
		s.metrics.RecordReadingFailed(ctx, spreadUsed, errorType(err), s.now().Sub(start))
	}
	if errors.Is(err, errAbandoned) || errors.Is(err, context.Canceled) {
		log.Printf("Reading %s abandoned: %v", readingID, err)
		return
	}

	log.Printf("Reading %s failed: %v", readingID, err)
	if emitErr := emit(stream.Failure(err.Error(), readingID)); emitErr != nil {
		log.Printf("Failed to deliver error event for reading %s: %v", readingID, emitErr)
	}
}

func (s *Service) run(ctx context.Context, readingID string, req Request, start time.Time, emit stream.Emitter) (string, error) {
	// Started is recorded before any failure can be, so the active gauge
	// sees matching increments and decrements for every session.
	if s.metrics != nil {
		s.metrics.RecordReadingStarted(ctx, req.SpreadType)
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return req.SpreadType, domain.ErrEmptyQuestion
	}

	if err := send(emit, stream.Progress(stream.ProgressPayload{
		Step:      stream.StepStarted,
		ReadingID: readingID,
		Message:   "Starting reading...",
	})); err != nil {
		return req.SpreadType, err
	}

	// Stage: question analysis. One non-streamed call; its failure is the
	// session's failure.
	analysis, err := s.analyzeQuestion(ctx, question)
	if err != nil {
		return req.SpreadType, err
	}
	spread := domain.ResolveSpread(req.SpreadType, domain.SpreadType(analysis.RecommendedSpread))

	if err := send(emit, stream.Progress(stream.ProgressPayload{
		Step:             stream.StepQuestionAnalysis,
		QuestionAnalysis: &analysis,
		SpreadType:       string(spread),
		Message:          "Question analysis complete",
	})); err != nil {
		return string(spread), err
	}

	// Stage: card selection.
	cards, significator, err := s.selectCards(spread, analysis.QuestionDomain, req.Profile)
	if err != nil {
		return string(spread), err
	}

	if err := send(emit, stream.Progress(stream.ProgressPayload{
		Step:         stream.StepCardsSelected,
		Cards:        cards,
		Significator: significator,
		Message:      fmt.Sprintf("Selected %d cards", len(cards)),
	})); err != nil {
		return string(spread), err
	}

	// Stage: pattern analysis. Pure computation, no external calls.
	pattern := domain.AnalyzePattern(cards, spread)
	if err := send(emit, stream.Progress(stream.ProgressPayload{
		Step:            stream.StepPatternAnalyzed,
		PatternAnalysis: &pattern,
		Message:         "Pattern analysis complete",
	})); err != nil {
		return string(spread), err
	}

	// Stage: knowledge retrieval. Per-card queries fan out concurrently and
	// are reported in completion order.
	cardInfo, err := s.retrieveCards(ctx, cards, emit)
	if err != nil {
		return string(spread), err
	}
	if err := send(emit, stream.Progress(stream.ProgressPayload{
		Step:    stream.StepRetrievalDone,
		Message: "Reference retrieval complete",
	})); err != nil {
		return string(spread), err
	}

	// The broader method and relationship queries run in the background and
	// only need to land before interpretation starts.
	var spreadMethod, relationships []Snippet
	bg, bgCtx := errgroup.WithContext(ctx)
	bg.Go(func() error {
		q := buildSpreadMethodQuery(spread)
		var err error
		spreadMethod, err = s.retriever.Search(bgCtx, q.Query, q.TopK)
		return err
	})
	bg.Go(func() error {
		q := buildRelationshipsQuery(cards)
		var err error
		relationships, err = s.retriever.Search(bgCtx, q.Query, q.TopK)
		return err
	})

	// Stage: imagery generation, streamed while the background retrieval
	// tasks run.
	imagery, err := s.generator.Stream(ctx, GenerateRequest{
		Model:       s.models.Imagery,
		System:      imagerySystem,
		User:        buildImageryPrompt(cards, cardInfo, analysis.QuestionDomain),
		Temperature: 0.7,
	}, func(text string) error {
		return send(emit, stream.ImageryChunk(text))
	})
	if err != nil {
		return string(spread), err
	}
	if err := send(emit, stream.Progress(stream.ProgressPayload{
		Step:               stream.StepImageryGenerated,
		ImageryDescription: imagery,
		Message:            "Imagery description complete",
	})); err != nil {
		return string(spread), err
	}

	// Join point: interpretation needs the background retrieval results.
	if err := bg.Wait(); err != nil {
		return string(spread), err
	}

	if err := send(emit, stream.Progress(stream.ProgressPayload{
		Step:    stream.StepInterpretationStarted,
		Message: "Generating interpretation...",
	})); err != nil {
		return string(spread), err
	}

	interpretation, err := s.generator.Stream(ctx, GenerateRequest{
		Model:  s.models.Interpretation,
		System: interpretationSystem,
		User: buildInterpretationPrompt(
			question, analysis, cards, pattern, cardInfo, spreadMethod, relationships, imagery),
		Temperature: 0.7,
	}, func(text string) error {
		return send(emit, stream.InterpretationChunk(text))
	})
	if err != nil {
		return string(spread), err
	}

	// Persistence happens here and only here.
	completedAt := s.now()
	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}
	rec := ReadingRecord{
		ID:             readingID,
		UserID:         userID,
		Question:       question,
		Analysis:       analysis,
		SpreadType:     string(spread),
		Cards:          cards,
		Pattern:        pattern,
		Significator:   significator,
		Imagery:        imagery,
		Interpretation: interpretation,
		Summary:        summarize(interpretation),
		SourcePage:     req.SourcePage,
		TotalTimeMS:    completedAt.Sub(start).Milliseconds(),
		CreatedAt:      start,
		CompletedAt:    completedAt,
	}
	if err := s.store.SaveReading(ctx, rec); err != nil {
		return string(spread), fmt.Errorf("failed to persist reading: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordReadingCompleted(ctx, string(spread), completedAt.Sub(start))
	}

	return string(spread), send(emit, stream.Complete(stream.CompletePayload{
		ReadingID:   readingID,
		Question:    question,
		SpreadType:  string(spread),
		TotalTimeMS: rec.TotalTimeMS,
		Message:     "Reading complete",
	}))
}

func (s *Service) analyzeQuestion(ctx context.Context, question string) (domain.QuestionAnalysis, error) {
	raw, err := s.generator.Complete(ctx, GenerateRequest{
		Model:       s.models.Analysis,
		System:      questionAnalysisSystem,
		User:        buildQuestionAnalysisPrompt(question),
		Temperature: 0.3,
	})
	if err != nil {
		return domain.QuestionAnalysis{}, err
	}

	var analysis domain.QuestionAnalysis
	if err := json.Unmarshal([]byte(extractJSON(raw)), &analysis); err != nil {
		return domain.QuestionAnalysis{}, fmt.Errorf("%w: invalid analysis JSON: %v", domain.ErrUpstreamLLM, err)
	}
	analysis.Normalize()
	return analysis, nil
}

func (s *Service) selectCards(spread domain.SpreadType, questionDomain string, profile *domain.Profile) ([]domain.SelectedCard, *stream.SignificatorInfo, error) {
	deck := domain.Deck()

	var significator *stream.SignificatorInfo
	if domain.UsesSignificator(spread) && profile != nil {
		card, reason := domain.SelectSignificator(*profile, questionDomain)
		remaining, err := domain.RemoveCard(deck, card)
		if err != nil {
			return nil, nil, err
		}
		deck = remaining
		significator = &stream.SignificatorInfo{CardName: card.Name, SelectionReason: reason}
	}

	cards, err := domain.Draw(deck, spread, s.newRNG())
	if err != nil {
		return nil, nil, err
	}
	return cards, significator, nil
}

func (s *Service) retrieveCards(ctx context.Context, cards []domain.SelectedCard, emit stream.Emitter) (map[string]CardInformation, error) {
	type result struct {
		card domain.SelectedCard
		info CardInformation
		err  error
	}

	results := make(chan result, len(cards))
	for _, card := range cards {
		card := card
		go func() {
			info, err := s.retrieveOneCard(ctx, card)
			results <- result{card: card, info: info, err: err}
		}()
	}

	threshold := firstRevealThreshold(len(cards))
	firstReadySent := false
	info := make(map[string]CardInformation, len(cards))

	for completed := 1; completed <= len(cards); completed++ {
		res := <-results
		if res.err != nil {
			return nil, res.err
		}
		info[res.card.ID] = res.info

		if err := send(emit, stream.Progress(stream.ProgressPayload{
			Step:           stream.StepRetrievalCardProgress,
			Progress:       float64(completed) / float64(len(cards)),
			CompletedCards: completed,
			TotalCards:     len(cards),
			CardID:         res.card.ID,
			CardName:       res.card.Name,
			Message:        fmt.Sprintf("Retrieved %d/%d cards", completed, len(cards)),
		})); err != nil {
			return nil, err
		}

		if !firstReadySent && completed >= threshold {
			firstReadySent = true
			if err := send(emit, stream.Progress(stream.ProgressPayload{
				Step:           stream.StepRetrievalFirstReady,
				CompletedCards: completed,
				TotalCards:     len(cards),
				Message:        "First card ready",
			})); err != nil {
				return nil, err
			}
		}
	}

	return info, nil
}

func (s *Service) retrieveOneCard(ctx context.Context, card domain.SelectedCard) (CardInformation, error) {
	queries := buildCardQueries(card)
	perQuery := make([][]AnnotatedSnippet, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			found, err := s.retriever.Search(gctx, q.Query, q.TopK)
			if err != nil {
				return err
			}
			annotated := make([]AnnotatedSnippet, len(found))
			for j, sn := range found {
				annotated[j] = AnnotatedSnippet{Snippet: sn, QueryType: q.Type}
			}
			perQuery[i] = annotated
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CardInformation{}, err
	}

	// Merge, keeping the highest-similarity copy of duplicate passages.
	best := map[string]AnnotatedSnippet{}
	var order []string
	for _, batch := range perQuery {
		for _, sn := range batch {
			prev, seen := best[sn.Text]
			if !seen {
				order = append(order, sn.Text)
				best[sn.Text] = sn
			} else if sn.Similarity > prev.Similarity {
				best[sn.Text] = sn
			}
		}
	}
	merged := make([]AnnotatedSnippet, 0, len(order))
	for _, text := range order {
		merged = append(merged, best[text])
	}

	return CardInformation{
		CardID:   card.ID,
		CardName: card.Name,
		Position: card.Position,
		Reversed: card.Reversed,
		Arcana:   card.Arcana,
		Snippets: merged,
	}, nil
}

// firstRevealThreshold is the completed-card count at which the client may
// start revealing: the first card for the three-card spread, a tenth of the
// cards for larger spreads.
func firstRevealThreshold(total int) int {
	if total <= 3 {
		return 1
	}
	t := total / 10
	if t < 1 {
		t = 1
	}
	return t
}

func send(emit stream.Emitter, ev stream.Event) error {
	if err := emit(ev); err != nil {
		return fmt.Errorf("%w: %v", errAbandoned, err)
	}
	return nil
}

// extractJSON trims any prose or code fencing around the first JSON object
// in a model response.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// summarize returns the first 500 characters, for history previews.
func summarize(text string) string {
	runes := []rune(text)
	if len(runes) <= 500 {
		return text
	}
	return string(runes[:500])
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		return "validation"
	case errors.Is(err, domain.ErrUpstreamLLM):
		return "upstream_generation"
	case errors.Is(err, domain.ErrUpstreamRetrieval):
		return "upstream_retrieval"
	case errors.Is(err, errAbandoned), errors.Is(err, context.Canceled):
		return "abandoned"
	default:
		return "internal"
	}
}
