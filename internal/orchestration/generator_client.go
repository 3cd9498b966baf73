package orchestration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

// Generator produces model text for the pipeline stages. Complete returns
// the whole response at once; Stream delivers it chunk by chunk through the
// callback and returns the concatenated text.
type Generator interface {
	Complete(ctx context.Context, req GenerateRequest) (string, error)
	Stream(ctx context.Context, req GenerateRequest, onChunk func(string) error) (string, error)
}

// GenerateRequest is one chat-completion call.
type GenerateRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
}

// errChunkCallback marks a stream failure that originated in the chunk
// consumer, not in the generator.
var errChunkCallback = errors.New("chunk callback failed")

// GeneratorClient talks to an OpenAI-compatible chat completions endpoint.
type GeneratorClient struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	streamClient *http.Client
	tracer       trace.Tracer
	breaker      *gobreaker.CircuitBreaker
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// NewGeneratorClient creates a chat completions client with a circuit
// breaker shared across both call styles.
func NewGeneratorClient(baseURL, apiKey string, timeout time.Duration) *GeneratorClient {
	settings := gobreaker.Settings{
		Name:        "generator",
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

	// Streaming responses stay open for the whole generation, so the
	// timeout bounds connection and header time only, never the body.
	streamTransport := http.DefaultTransport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		tc := t.Clone()
		tc.ResponseHeaderTimeout = timeout
		streamTransport = tc
	}

	return &GeneratorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{
			Transport: streamTransport,
		},
		tracer:  otel.Tracer("generator-client"),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// SetBaseURL sets the base URL for testing purposes
func (c *GeneratorClient) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// Complete performs a blocking chat completion and returns the full text.
func (c *GeneratorClient) Complete(ctx context.Context, req GenerateRequest) (string, error) {
	ctx, span := c.tracer.Start(ctx, "generator.complete")
	defer span.End()

	span.SetAttributes(attribute.String("model", req.Model))

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.completeInternal(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamLLM, err)
	}

	return result.(string), nil
}

func (c *GeneratorClient) completeInternal(ctx context.Context, req GenerateRequest) (string, error) {
	resp, err := c.post(ctx, c.httpClient, chatRequest{
		Model:       req.Model,
		Messages:    buildMessages(req),
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("generator returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Stream performs a streaming chat completion, calling onChunk for every
// text delta in arrival order. Returns the concatenated text.
func (c *GeneratorClient) Stream(ctx context.Context, req GenerateRequest, onChunk func(string) error) (string, error) {
	ctx, span := c.tracer.Start(ctx, "generator.stream")
	defer span.End()

	span.SetAttributes(attribute.String("model", req.Model))

	// Consumer-side errors (the emit callback failing, the session context
	// being canceled) are not generator failures: they bypass the breaker's
	// failure count and keep their error chain intact for the caller.
	var consumerErr error
	result, err := c.breaker.Execute(func() (interface{}, error) {
		full, err := c.streamInternal(ctx, req, onChunk)
		if errors.Is(err, errChunkCallback) || errors.Is(err, context.Canceled) {
			consumerErr = err
			return full, nil
		}
		return full, err
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamLLM, err)
	}
	if consumerErr != nil {
		span.RecordError(consumerErr)
		return "", consumerErr
	}

	full := result.(string)
	span.SetAttributes(attribute.Int("response_length", len(full)))
	return full, nil
}

func (c *GeneratorClient) streamInternal(ctx context.Context, req GenerateRequest, onChunk func(string) error) (string, error) {
	resp, err := c.post(ctx, c.streamClient, chatRequest{
		Model:       req.Model,
		Messages:    buildMessages(req),
		Temperature: req.Temperature,
		Stream:      true,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			log.Printf("WARN: skipping malformed stream chunk: %v", err)
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		text := chunk.Choices[0].Delta.Content
		full.WriteString(text)
		if err := onChunk(text); err != nil {
			return "", fmt.Errorf("%w: %w", errChunkCallback, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stream: %w", err)
	}

	return full.String(), nil
}

func (c *GeneratorClient) post(ctx context.Context, client *http.Client, body chatRequest) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("generator returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("generator returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return resp, nil
}

func buildMessages(req GenerateRequest) []chatMessage {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})
	return messages
}
