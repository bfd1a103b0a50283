package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HexSleeves/forager/internal/config"
	ferrors "github.com/HexSleeves/forager/internal/errors"
)

func anthropicBackend(url string) config.Backend {
	return config.Backend{
		Provider:    config.ProviderAnthropic,
		APIKey:      "test-key",
		Model:       "claude-test",
		BaseURL:     url,
		MaxTokens:   1000,
		Temperature: 0.7,
		Timeout:     5 * time.Second,
	}
}

func anthropicMessage(blocks string) string {
	return `{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "claude-test",
		"content": ` + blocks + `,
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`
}

func TestAnthropicClient_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("expected x-api-key test-key, got %q", r.Header.Get("X-Api-Key"))
		}

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("unmarshal request: %v", err)
		}
		if req["model"] != "claude-test" {
			t.Errorf("expected model claude-test, got %v", req["model"])
		}
		if req["max_tokens"] != float64(1000) {
			t.Errorf("expected max_tokens 1000, got %v", req["max_tokens"])
		}
		system, _ := req["system"].([]any)
		if len(system) != 1 {
			t.Fatalf("expected one system block, got %v", req["system"])
		}
		if msgs, _ := req["messages"].([]any); len(msgs) != 1 {
			t.Errorf("expected exactly one user message, got %v", req["messages"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(anthropicMessage(`[{"type": "text", "text": "Hello "}, {"type": "text", "text": "there"}]`)))
	}))
	defer server.Close()

	client := NewAnthropicClient(anthropicBackend(server.URL), server.Client(), nil)
	result, err := client.Chat(context.Background(), "You are helpful.", "Hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Hello there" {
		t.Errorf("expected 'Hello there', got %q", result)
	}
}

func TestAnthropicClient_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(anthropicMessage(`[]`)))
	}))
	defer server.Close()

	client := NewAnthropicClient(anthropicBackend(server.URL), server.Client(), nil)
	result, err := client.Chat(context.Background(), "sys", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != NoResponse {
		t.Errorf("expected %q, got %q", NoResponse, result)
	}
}

func TestAnthropicClient_ServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"type": "error", "error": {"type": "api_error", "message": "boom"}}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(anthropicBackend(server.URL), server.Client(), nil)
	_, err := client.Chat(context.Background(), "sys", "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	var ce *ferrors.ChatError
	if !errors.As(err, &ce) || ce.Backend != "anthropic" {
		t.Fatalf("expected anthropic ChatError, got %T: %v", err, err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected exactly 1 request, got %d", n)
	}
}

// roundTripFunc answers requests in-process.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestAnthropicClient_IgnoresSDKEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_BASE_URL", "http://env.invalid")
	t.Setenv("ANTHROPIC_AUTH_TOKEN", "env-token")
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	var got *http.Request
	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		got = r
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(anthropicMessage(`[{"type": "text", "text": "hi"}]`))),
			Request:    r,
		}, nil
	})}

	b := anthropicBackend("")
	client := NewAnthropicClient(b, httpClient, nil)
	if _, err := client.Chat(context.Background(), "sys", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("no request made")
	}
	if got.URL.Host != "api.anthropic.com" {
		t.Errorf("expected default host, got %q", got.URL.Host)
	}
	if v := got.Header.Get("Authorization"); v != "" {
		t.Errorf("expected no Authorization header, got %q", v)
	}
	if v := got.Header.Get("X-Api-Key"); v != "test-key" {
		t.Errorf("expected resolved API key, got %q", v)
	}
}

func TestAnthropicClient_DefaultModel(t *testing.T) {
	c := NewAnthropicClient(config.Backend{APIKey: "test-key"}, nil, nil)
	if c.model != "claude-3-5-sonnet-20241022" {
		t.Fatalf("expected default model, got %q", c.model)
	}
}

func TestNewFromConfig_OpenAI(t *testing.T) {
	c, err := NewFromConfig(config.Backend{Provider: config.ProviderOpenAI, APIKey: "sk-test"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*OpenAIClient); !ok {
		t.Fatalf("expected *OpenAIClient, got %T", c)
	}
	if c.Name() != "openai" {
		t.Errorf("Name() = %q", c.Name())
	}
}

func TestNewFromConfig_Anthropic(t *testing.T) {
	c, err := NewFromConfig(config.Backend{Provider: config.ProviderAnthropic, APIKey: "sk-test"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*AnthropicClient); !ok {
		t.Fatalf("expected *AnthropicClient, got %T", c)
	}
	if c.Name() != "anthropic" {
		t.Errorf("Name() = %q", c.Name())
	}
}

func TestNewFromConfig_Empty(t *testing.T) {
	_, err := NewFromConfig(config.Backend{}, nil, nil)
	if ferrors.KindOf(err) != ferrors.KindConfig {
		t.Fatalf("expected config error for empty provider, got %v", err)
	}
}

func TestNewFromConfig_Unknown(t *testing.T) {
	_, err := NewFromConfig(config.Backend{Provider: "doesnotexist"}, nil, nil)
	if ferrors.KindOf(err) != ferrors.KindConfig {
		t.Fatalf("expected config error for unknown provider, got %v", err)
	}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ Client = (*OpenAIClient)(nil)
	var _ Client = (*AnthropicClient)(nil)
}
