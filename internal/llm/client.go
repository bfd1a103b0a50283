// Package llm provides the chat capability: a single stateless
// system-plus-user round trip against whichever backend was resolved at
// startup. Implementations exist for OpenAI and Anthropic.
package llm

import (
	"context"
	"io"
	"log"
)

// NoResponse is returned, instead of an error, when a backend answers with a
// well-formed response that carries no choices or content blocks.
const NoResponse = "No response"

// Client is the interface the agent uses for both the decision and the
// synthesis call. Callers pass the whole context on every call; no history
// is kept between calls. Implementations are safe for concurrent use.
type Client interface {
	Chat(ctx context.Context, systemPrompt, userMessage string) (string, error)

	// Name identifies the backend in logs and errors.
	Name() string
}

func discardLogger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard, "", 0)
	}
	return l
}
