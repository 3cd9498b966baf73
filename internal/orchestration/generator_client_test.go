package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanastream/reading-orchestrator/internal/domain"
)

func TestNewGeneratorClient(t *testing.T) {
	client := NewGeneratorClient("http://generator:8080/v1/", "key", 30*time.Second)

	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.streamClient)
	assert.NotNil(t, client.tracer)
	assert.NotNil(t, client.breaker)
	assert.Equal(t, "http://generator:8080/v1", client.baseURL)
}

func TestGeneratorClient_Complete(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse func(w http.ResponseWriter, r *http.Request)
		expectedError  string
		expectedResult string
	}{
		{
			name: "successful_completion",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "POST", r.Method)
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				var req chatRequest
				err := json.NewDecoder(r.Body).Decode(&req)
				assert.NoError(t, err)
				assert.Equal(t, "test-model", req.Model)
				assert.False(t, req.Stream)
				require.Len(t, req.Messages, 2)
				assert.Equal(t, "system", req.Messages[0].Role)
				assert.Equal(t, "user", req.Messages[1].Role)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"choices": []map[string]interface{}{
						{"message": map[string]string{"content": "the generated text"}},
					},
				})
			},
			expectedResult: "the generated text",
		},
		{
			name: "server_error",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("Internal server error"))
			},
			expectedError: "generator returned status 500",
		},
		{
			name: "no_choices",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"choices":[]}`))
			},
			expectedError: "no choices",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResponse))
			defer server.Close()

			client := NewGeneratorClient(server.URL, "test-key", 10*time.Second)

			result, err := client.Complete(context.Background(), GenerateRequest{
				Model:       "test-model",
				System:      "system prompt",
				User:        "user prompt",
				Temperature: 0.3,
			})

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedResult, result)
		})
	}
}

func TestGeneratorClient_Stream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		flush := func() {
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
		for _, delta := range []string{"The ", "Tower ", "falls."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", delta)
			flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flush()
	}))
	defer server.Close()

	client := NewGeneratorClient(server.URL, "", 10*time.Second)

	var chunks []string
	full, err := client.Stream(context.Background(), GenerateRequest{Model: "test-model", User: "u"}, func(text string) error {
		chunks = append(chunks, text)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"The ", "Tower ", "falls."}, chunks)
	assert.Equal(t, "The Tower falls.", full)
}

func TestGeneratorClient_StreamCallbackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewGeneratorClient(server.URL, "", 10*time.Second)

	pipeErr := errors.New("write: broken pipe")
	_, err := client.Stream(context.Background(), GenerateRequest{Model: "m", User: "u"}, func(string) error {
		return pipeErr
	})

	// The consumer's error comes back with its chain intact and is not
	// reported as a generator failure.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk callback failed")
	assert.ErrorIs(t, err, pipeErr)
	assert.NotErrorIs(t, err, domain.ErrUpstreamLLM)
}

func TestGeneratorClient_StreamCallbackErrorsDoNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"y\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewGeneratorClient(server.URL, "", 10*time.Second)

	// Far more consumer disconnects than the breaker's failure threshold.
	pipeErr := errors.New("write: broken pipe")
	for i := 0; i < 10; i++ {
		_, err := client.Stream(context.Background(), GenerateRequest{Model: "m", User: "u"}, func(string) error {
			return pipeErr
		})
		require.ErrorIs(t, err, pipeErr)
	}

	// A healthy session still gets through.
	full, err := client.Stream(context.Background(), GenerateRequest{Model: "m", User: "u"}, func(string) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "xy", full)
}

func TestGeneratorClient_StreamLongerThanTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flush := func() {
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
		for i := 0; i < 4; i++ {
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"word \"}}]}\n\n")
			flush()
			time.Sleep(60 * time.Millisecond)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flush()
	}))
	defer server.Close()

	// The configured timeout bounds headers only; the body may stream for
	// longer than that without the session being cut.
	client := NewGeneratorClient(server.URL, "", 100*time.Millisecond)

	full, err := client.Stream(context.Background(), GenerateRequest{Model: "m", User: "u"}, func(string) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "word word word word ", full)
}

func TestGeneratorClient_CompleteTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
	}))
	defer server.Close()

	client := NewGeneratorClient(server.URL, "", 100*time.Millisecond)

	_, err := client.Complete(context.Background(), GenerateRequest{Model: "m", User: "u"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamLLM)
}

func TestRetrievalClient_Search(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse func(w http.ResponseWriter, r *http.Request)
		expectedError  string
		expectedCount  int
	}{
		{
			name: "successful_search",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "POST", r.Method)
				assert.Equal(t, "/search", r.URL.Path)

				var req searchRequest
				err := json.NewDecoder(r.Body).Decode(&req)
				assert.NoError(t, err)
				assert.Equal(t, "the fool tarot", req.Query)
				assert.Equal(t, 5, req.TopK)

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(searchResponse{Results: []Snippet{
					{Text: "The Fool steps off a cliff", Source: "Pictorial Key", Similarity: 0.93},
					{Text: "Number zero, new beginnings", Source: "78 Degrees", Similarity: 0.88},
				}})
			},
			expectedCount: 2,
		},
		{
			name: "server_error",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte("upstream index offline"))
			},
			expectedError: "retrieval returned status 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResponse))
			defer server.Close()

			client := NewRetrievalClient(server.URL, 10*time.Second)

			results, err := client.Search(context.Background(), "the fool tarot", 5)

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Len(t, results, tt.expectedCount)
			assert.Equal(t, "Pictorial Key", results[0].Source)
		})
	}
}

func TestBuildCardQueries(t *testing.T) {
	moon, ok := domain.CardByName("The Moon")
	require.True(t, ok)
	major := domain.SelectedCard{Card: moon, Position: "present", Reversed: true}

	queries := buildCardQueries(major)
	require.Len(t, queries, 3)
	assert.Contains(t, queries[0].Query, "The Moon tarot card reversed meaning")
	assert.Contains(t, queries[0].Query, "symbolism archetype")
	assert.Equal(t, 10, queries[0].TopK)
	assert.Equal(t, "visual_description", queries[1].Type)
	assert.Equal(t, 5, queries[1].TopK)
	assert.Contains(t, queries[2].Query, "present position")

	ace, ok := domain.CardByName("Ace of Cups")
	require.True(t, ok)
	queries = buildCardQueries(domain.SelectedCard{Card: ace, Position: "past"})
	assert.Contains(t, queries[0].Query, "water element emotion")
	assert.Contains(t, queries[0].Query, "upright")
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	short := "a brief passage"
	assert.Equal(t, short, truncate(short, 500))

	long := strings.Repeat("月", 600)
	cut := truncate(long, 500)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, 500, len([]rune(cut)))
}
