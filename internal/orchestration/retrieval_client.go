package orchestration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/arcanastream/reading-orchestrator/internal/domain"
)

// Snippet is one retrieved reference passage.
type Snippet struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

// Retriever fetches reference passages for a query from the knowledge base.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]Snippet, error)
}

// RetrievalClient talks to the knowledge retrieval service.
type RetrievalClient struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	breaker    *gobreaker.CircuitBreaker
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Results []Snippet `json:"results"`
}

// NewRetrievalClient creates a retrieval client with its own circuit
// breaker, independent of the generator's.
func NewRetrievalClient(baseURL string, timeout time.Duration) *RetrievalClient {
	settings := gobreaker.Settings{
		Name:        "retrieval",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s changed from %s to %s", name, from, to)
		},
	}

	return &RetrievalClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tracer:  otel.Tracer("retrieval-client"),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// SetBaseURL sets the base URL for testing purposes
func (c *RetrievalClient) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// Search returns the topK most similar passages for the query.
func (c *RetrievalClient) Search(ctx context.Context, query string, topK int) ([]Snippet, error) {
	ctx, span := c.tracer.Start(ctx, "retrieval.search")
	defer span.End()

	span.SetAttributes(
		attribute.String("query", query),
		attribute.Int("top_k", topK),
	)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.searchInternal(ctx, query, topK)
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamRetrieval, err)
	}

	snippets := result.([]Snippet)
	span.SetAttributes(attribute.Int("result_count", len(snippets)))
	return snippets, nil
}

func (c *RetrievalClient) searchInternal(ctx context.Context, query string, topK int) ([]Snippet, error) {
	jsonData, err := json.Marshal(searchRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/search", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("retrieval returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("retrieval returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return searchResp.Results, nil
}
