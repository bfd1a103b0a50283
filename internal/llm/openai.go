package llm

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

	"github.com/HexSleeves/forager/internal/config"
	ferrors "github.com/HexSleeves/forager/internal/errors"
)

// OpenAIClient implements Client against the chat completions endpoint of
// OpenAI or any compatible server.
type OpenAIClient struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	maxBody     int64
	client      *http.Client
	logger      *log.Logger
}

// maxResponseBytes caps how much of a chat completion reply is read.
const maxResponseBytes = 8 << 20

// OpenAI API request/response types

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
	Model   string         `json:"model,omitempty"`
}

type openaiChoice struct {
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAIClient creates a client for an OpenAI-compatible API.
// If b.BaseURL is empty, it defaults to https://api.openai.com/v1.
func NewOpenAIClient(b config.Backend, httpClient *http.Client, logger *log.Logger) *OpenAIClient {
	baseURL := b.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := b.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OpenAIClient{
		apiKey:      b.APIKey,
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxTokens:   b.MaxTokens,
		temperature: b.Temperature,
		timeout:     b.Timeout,
		maxBody:     maxResponseBytes,
		client:      httpClient,
		logger:      discardLogger(logger),
	}
}

func (c *OpenAIClient) Name() string {
	return string(config.ProviderOpenAI)
}

func (c *OpenAIClient) Chat(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reqBody := openaiRequest{
		Model: c.model,
		Messages: []openaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	resp, err := c.doRequest(ctx, reqBody)
	if err != nil {
		return "", ferrors.NewChatError(c.Name(), err)
	}

	if len(resp.Choices) == 0 {
		c.logger.Printf("⚠ openai: response from %s had no choices, answering %q", c.model, NoResponse)
		return NoResponse, nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) doRequest(ctx context.Context, body openaiRequest) (*openaiResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(respBody)) > c.maxBody {
		return nil, fmt.Errorf("response exceeds %d bytes", c.maxBody)
	}

	if httpResp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp openaiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("%s: %s", resp.Error.Type, resp.Error.Message)
	}

	return &resp, nil
}
