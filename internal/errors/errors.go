// Package errors defines the failure taxonomy of a forager query.
// Every failure that ends a query is one of these kinds; nothing in the
// orchestration path retries or recovers locally, so the kind tells the
// caller exactly which boundary failed.
package errors

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// Kind categorizes errors for presentation and history.
type Kind string

const (
	// KindConfig indicates the process could not be configured (no credential, bad file).
	KindConfig Kind = "config"
	// KindChat indicates the chat backend failed.
	KindChat Kind = "chat"
	// KindToolNotFound indicates the model named a tool that is not registered.
	KindToolNotFound Kind = "tool_not_found"
	// KindToolExecution indicates the tool itself failed.
	KindToolExecution Kind = "tool_execution"
	// KindCanceled indicates the caller's context ended the query.
	KindCanceled Kind = "canceled"
	// KindUnknown is anything else.
	KindUnknown Kind = "unknown"
)

// ErrInvalidInput marks tool failures caused by bad input rather than I/O.
var ErrInvalidInput = errors.New("invalid tool input")

// ConfigError is fatal at startup.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[config:%s] %v", e.Field, e.Err)
	}
	return fmt.Sprintf("[config] %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ChatError wraps any failure of a single chat round trip.
type ChatError struct {
	Backend string
	Err     error
}

func (e *ChatError) Error() string {
	return fmt.Sprintf("[chat:%s] %v", e.Backend, e.Err)
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

// ToolNotFoundError is returned when a decision names an unregistered tool.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found", e.Name)
}

// ToolExecutionError wraps a tool-specific failure.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("[tool:%s] %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps err as a configuration failure.
func NewConfigError(field string, err error) error {
	return &ConfigError{Field: field, Err: err}
}

// NewChatError wraps err as a chat failure of backend.
// A nil err stays nil and an existing ChatError is not wrapped twice.
func NewChatError(backend string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ChatError
	if errors.As(err, &ce) {
		return err
	}
	return &ChatError{Backend: backend, Err: err}
}

// NewToolExecutionError wraps err as a failure of tool.
// An existing ToolExecutionError is not wrapped twice.
func NewToolExecutionError(tool string, err error) error {
	if err == nil {
		return nil
	}
	var te *ToolExecutionError
	if errors.As(err, &te) {
		return err
	}
	return &ToolExecutionError{Tool: tool, Err: err}
}

// InvalidInput builds a validation failure for tool.
func InvalidInput(tool, format string, args ...any) error {
	return &ToolExecutionError{
		Tool: tool,
		Err:  fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...)),
	}
}

// IsInvalidInput reports whether err is a tool input validation failure.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// KindOf classifies err. Context cancellation is checked last so that a
// timeout inside a chat or tool call keeps the kind of the boundary it hit.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		cfg *ConfigError
		ce  *ChatError
		nf  *ToolNotFoundError
		te  *ToolExecutionError
	)
	switch {
	case errors.As(err, &cfg):
		return KindConfig
	case errors.As(err, &ce):
		return KindChat
	case errors.As(err, &nf):
		return KindToolNotFound
	case errors.As(err, &te):
		return KindToolExecution
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindUnknown
}

// RecoveryResult holds the result of a recovered panic.
type RecoveryResult struct {
	Recovered  bool
	PanicValue any
	ErrorMsg   string
	StackTrace string
}

// RecoverPanic converts a recovered value into a RecoveryResult.
// Use with defer:
//
//	defer func() {
//	    if r := errors.RecoverPanic(recover()); r.Recovered {
//	        err = errors.NewToolExecutionError(name, r.Err())
//	    }
//	}()
func RecoverPanic(r any) RecoveryResult {
	if r == nil {
		return RecoveryResult{Recovered: false}
	}

	result := RecoveryResult{
		Recovered:  true,
		PanicValue: r,
		StackTrace: string(debug.Stack()),
	}

	switch v := r.(type) {
	case error:
		result.ErrorMsg = fmt.Sprintf("panic: %v", v)
	case string:
		result.ErrorMsg = fmt.Sprintf("panic: %s", v)
	default:
		result.ErrorMsg = fmt.Sprintf("panic: %+v", v)
	}

	return result
}

// Err returns the recovered panic as an error, or nil if nothing was recovered.
func (r RecoveryResult) Err() error {
	if !r.Recovered {
		return nil
	}
	return errors.New(r.ErrorMsg)
}
