// Package tool defines the contract every agent tool implements and the
// registry the agent dispatches through.
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Tool is a named capability the model can ask for.
type Tool interface {
	// Name is the unique dispatch key.
	Name() string

	// Description is inserted verbatim into the system prompt, so it must
	// explain the expected input shape on its own.
	Description() string

	// Execute runs the tool. It must be safe for concurrent use. Failures are
	// returned as errors (see errors.ToolExecutionError), never as a
	// degraded Result.
	Execute(ctx context.Context, input json.RawMessage) (*Result, error)
}

// Result is what a tool hands back to the agent. Output is always present;
// Metadata is informational and never shown to the model.
type Result struct {
	Output   json.RawMessage `json:"output"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// NewResult builds a Result from any JSON-marshalable output.
func NewResult(output any) (*Result, error) {
	raw, err := marshal("output", output)
	if err != nil {
		return nil, err
	}
	return &Result{Output: raw}, nil
}

// NewResultWithMetadata builds a Result carrying both output and metadata.
func NewResultWithMetadata(output, metadata any) (*Result, error) {
	r, err := NewResult(output)
	if err != nil {
		return nil, err
	}
	if r.Metadata, err = marshal("metadata", metadata); err != nil {
		return nil, err
	}
	return r, nil
}

// HasMetadata reports whether the tool attached metadata.
func (r *Result) HasMetadata() bool {
	return r != nil && len(r.Metadata) > 0 && string(r.Metadata) != "null"
}

// OutputText renders Output as compact JSON text for prompts.
func (r *Result) OutputText() string {
	if r == nil || len(r.Output) == 0 {
		return "null"
	}
	return compact(r.Output)
}

func marshal(field string, v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("result %s is not valid JSON", field)
		}
		return raw, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result %s: %w", field, err)
	}
	return raw, nil
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
