package llm

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/HexSleeves/forager/internal/config"
	ferrors "github.com/HexSleeves/forager/internal/errors"
)

// NewFromConfig creates the Client for a resolved backend. httpClient is
// shared by every call the client makes; pass the process-wide client so
// connections are pooled across queries.
func NewFromConfig(b config.Backend, httpClient *http.Client, logger *log.Logger) (Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	switch b.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(b, httpClient, logger), nil

	case config.ProviderAnthropic:
		return NewAnthropicClient(b, httpClient, logger), nil

	case "":
		return nil, ferrors.NewConfigError("llm.provider", errors.New("no LLM provider resolved"))

	default:
		return nil, ferrors.NewConfigError("llm.provider",
			fmt.Errorf("unknown LLM provider: %q (supported: openai, anthropic)", b.Provider))
	}
}
