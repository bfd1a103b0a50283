package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HexSleeves/forager/internal/config"
	ferrors "github.com/HexSleeves/forager/internal/errors"
)

func openaiBackend(url string) config.Backend {
	return config.Backend{
		Provider:    config.ProviderOpenAI,
		APIKey:      "test-key",
		Model:       "test-model",
		BaseURL:     url,
		MaxTokens:   1000,
		Temperature: 0.7,
		Timeout:     5 * time.Second,
	}
}

func TestOpenAIClient_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify request structure
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected Bearer test-key, got %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json content-type")
		}

		body, _ := io.ReadAll(r.Body)
		var req openaiRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("unmarshal request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("expected model test-model, got %s", req.Model)
		}
		if req.MaxTokens != 1000 {
			t.Errorf("expected max_tokens 1000, got %d", req.MaxTokens)
		}
		if req.Temperature != 0.7 {
			t.Errorf("expected temperature 0.7, got %v", req.Temperature)
		}
		// system + user
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" || req.Messages[0].Content != "You are helpful." {
			t.Errorf("unexpected system message %+v", req.Messages[0])
		}
		if req.Messages[1].Role != "user" || req.Messages[1].Content != "Hi" {
			t.Errorf("unexpected user message %+v", req.Messages[1])
		}

		resp := openaiResponse{
			Choices: []openaiChoice{{
				Message:      openaiMessage{Role: "assistant", Content: "Hello there!"},
				FinishReason: "stop",
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClient(openaiBackend(server.URL), server.Client(), nil)
	result, err := client.Chat(context.Background(), "You are helpful.", "Hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Hello there!" {
		t.Errorf("expected 'Hello there!', got %q", result)
	}
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(openaiBackend(server.URL), server.Client(), nil)
	result, err := client.Chat(context.Background(), "sys", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != NoResponse {
		t.Errorf("expected %q, got %q", NoResponse, result)
	}
}

func TestOpenAIClient_ErrorHandling(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"server error", http.StatusInternalServerError, `{"error": {"message": "boom"}}`, "API error 500"},
		{"unauthorized", http.StatusUnauthorized, `{"error": {"message": "bad key"}}`, "API error 401"},
		{"malformed body", http.StatusOK, `{not json`, "unmarshal response"},
		{"error in body", http.StatusOK, `{"error": {"type": "invalid_request_error", "message": "nope"}}`, "invalid_request_error: nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewOpenAIClient(openaiBackend(server.URL), server.Client(), nil)
			_, err := client.Chat(context.Background(), "sys", "hello")
			if err == nil {
				t.Fatal("expected error")
			}
			var ce *ferrors.ChatError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ChatError, got %T: %v", err, err)
			}
			if ce.Backend != "openai" {
				t.Errorf("expected backend openai, got %q", ce.Backend)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in error, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestOpenAIClient_AnySuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "created"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(openaiBackend(server.URL), server.Client(), nil)
	result, err := client.Chat(context.Background(), "sys", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "created" {
		t.Errorf("expected 'created', got %q", result)
	}
}

func TestOpenAIClient_ResponseTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "` + strings.Repeat("x", 256) + `"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(openaiBackend(server.URL), server.Client(), nil)
	client.maxBody = 64
	_, err := client.Chat(context.Background(), "sys", "hello")
	if err == nil {
		t.Fatal("expected error for oversized response")
	}
	if ferrors.KindOf(err) != ferrors.KindChat {
		t.Errorf("expected chat kind, got %v", ferrors.KindOf(err))
	}
	if !strings.Contains(err.Error(), "response exceeds 64 bytes") {
		t.Errorf("unexpected error: %v", err)
	}

	if c := NewOpenAIClient(openaiBackend(server.URL), nil, nil); c.maxBody != maxResponseBytes {
		t.Errorf("expected default cap %d, got %d", maxResponseBytes, c.maxBody)
	}
}

func TestOpenAIClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	b := openaiBackend(server.URL)
	b.Timeout = 50 * time.Millisecond
	client := NewOpenAIClient(b, server.Client(), nil)

	start := time.Now()
	_, err := client.Chat(context.Background(), "sys", "hello")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if ferrors.KindOf(err) != ferrors.KindChat {
		t.Errorf("expected chat kind, got %v", ferrors.KindOf(err))
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("timeout not enforced, took %v", time.Since(start))
	}
}

func TestOpenAIClient_Defaults(t *testing.T) {
	c := NewOpenAIClient(config.Backend{APIKey: "k"}, nil, nil)
	if c.baseURL != "https://api.openai.com/v1" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.model != "gpt-4o-mini" {
		t.Errorf("model = %q", c.model)
	}

	c = NewOpenAIClient(config.Backend{BaseURL: "http://localhost:8080/v1/"}, nil, nil)
	if c.baseURL != "http://localhost:8080/v1" {
		t.Errorf("trailing slash not trimmed: %q", c.baseURL)
	}
}
