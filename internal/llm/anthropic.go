package llm

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/HexSleeves/forager/internal/config"
	ferrors "github.com/HexSleeves/forager/internal/errors"
)

// AnthropicClient wraps the Anthropic SDK.
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *log.Logger
}

// defaultAnthropicURL is used when the backend names no base URL, so the
// SDK's ANTHROPIC_BASE_URL lookup never applies.
const defaultAnthropicURL = "https://api.anthropic.com/"

func NewAnthropicClient(b config.Backend, httpClient *http.Client, logger *log.Logger) *AnthropicClient {
	baseURL := b.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}
	// The SDK retries by default; a failed chat call must end the query.
	// Its environment defaults are overridden so only b configures the client.
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithHeaderDel("authorization"),
		option.WithAPIKey(b.APIKey),
		option.WithBaseURL(baseURL),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	model := b.Model
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	c := anthropic.NewClient(opts...)
	return &AnthropicClient{
		client:      &c,
		model:       model,
		maxTokens:   b.MaxTokens,
		temperature: b.Temperature,
		timeout:     b.Timeout,
		logger:      discardLogger(logger),
	}
}

func (c *AnthropicClient) Name() string {
	return string(config.ProviderAnthropic)
}

func (c *AnthropicClient) Chat(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(c.maxTokens),
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", ferrors.NewChatError(c.Name(), err)
	}

	var (
		out   strings.Builder
		texts int
	)
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
			texts++
		}
	}
	if texts == 0 {
		c.logger.Printf("⚠ anthropic: response from %s had no text blocks, answering %q", c.model, NoResponse)
		return NoResponse, nil
	}
	return out.String(), nil
}
