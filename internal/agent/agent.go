// Package agent runs a single query through the decide, dispatch and
// synthesize loop: one chat call to decide whether a tool is needed, at most
// one tool invocation, and one chat call to turn the tool's output into an
// answer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/HexSleeves/forager/internal/bus"
	ferrors "github.com/HexSleeves/forager/internal/errors"
	"github.com/HexSleeves/forager/internal/llm"
	"github.com/HexSleeves/forager/internal/tool"
)

var errNoOutput = errors.New("tool returned no output")

// maxEventOutput caps the tool output carried by a ToolCompleted event. The
// model still sees the whole output; only the event copy is clipped.
const maxEventOutput = 16 << 10

// Agent is safe for concurrent Run calls once its tools are registered.
type Agent struct {
	llm    llm.Client
	tools  *tool.Registry
	bus    *bus.MessageBus
	logger *log.Logger
	newID  func() string
}

type Option func(*Agent)

// WithRegistry uses reg instead of a fresh, empty registry.
func WithRegistry(reg *tool.Registry) Option {
	return func(a *Agent) { a.tools = reg }
}

// WithBus publishes query lifecycle events to b.
func WithBus(b *bus.MessageBus) Option {
	return func(a *Agent) { a.bus = b }
}

func WithLogger(l *log.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

func New(client llm.Client, opts ...Option) *Agent {
	a := &Agent{
		llm:   client,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.tools == nil {
		a.tools = tool.NewRegistry()
	}
	if a.bus == nil {
		a.bus = bus.New(0)
	}
	if a.logger == nil {
		a.logger = log.New(io.Discard, "", 0)
	}
	return a
}

// RegisterTool adds t, replacing any tool with the same name.
func (a *Agent) RegisterTool(t tool.Tool) {
	a.tools.Register(t)
}

// ListTools returns the registered tool names, sorted.
func (a *Agent) ListTools() []string {
	return a.tools.List()
}

func (a *Agent) Bus() *bus.MessageBus {
	return a.bus
}

// Backend names the chat backend in use.
func (a *Agent) Backend() string {
	return a.llm.Name()
}

// ExecuteTool looks up name and runs it outside of any query. It is what
// Run uses for dispatch, minus the events.
func (a *Agent) ExecuteTool(ctx context.Context, name string, input json.RawMessage) (*tool.Result, error) {
	t, err := a.tools.Lookup(name)
	if err != nil {
		return nil, err
	}
	res, _, err := a.invoke(ctx, t, input)
	return res, err
}

// Run answers query. The model's reply is returned unchanged when it is not
// a tool call; otherwise the tool runs once and a second chat call turns its
// output into the answer. Any failure ends the query.
func (a *Agent) Run(ctx context.Context, query string) (string, error) {
	id := a.newID()
	start := time.Now()
	a.publish(bus.MsgQueryStarted, id, "", bus.QueryStarted{Query: query, Backend: a.llm.Name()})

	answer, err := a.run(ctx, id, query)
	if err != nil {
		kind := ferrors.KindOf(err)
		a.logger.Printf("❌ Query %s failed (%s): %v", id, kind, err)
		a.publish(bus.MsgQueryFailed, id, "", bus.QueryFailed{
			Kind:     string(kind),
			Error:    err.Error(),
			Duration: time.Since(start),
		})
		return "", err
	}

	a.publish(bus.MsgQueryCompleted, id, "", bus.QueryCompleted{Answer: answer, Duration: time.Since(start)})
	return answer, nil
}

func (a *Agent) run(ctx context.Context, id, query string) (string, error) {
	systemPrompt := SystemPrompt(a.tools.All())

	response, err := a.llm.Chat(ctx, systemPrompt, query)
	if err != nil {
		return "", ferrors.NewChatError(a.llm.Name(), err)
	}

	call, ok := ParseDecision(response)
	if !ok {
		a.publish(bus.MsgDecisionReceived, id, "", bus.DecisionReceived{})
		return response, nil
	}
	a.publish(bus.MsgDecisionReceived, id, call.Tool, bus.DecisionReceived{ToolCall: true, Tool: call.Tool})
	a.logger.Printf("🔧 Tool call: %s", call.Tool)

	t, err := a.tools.Lookup(call.Tool)
	if err != nil {
		return "", err
	}

	a.publish(bus.MsgToolStarted, id, call.Tool, bus.ToolStarted{Input: string(call.Input)})
	result, elapsed, err := a.invoke(ctx, t, call.Input)
	if err != nil {
		a.publish(bus.MsgToolFailed, id, call.Tool, bus.ToolFailed{Duration: elapsed, Error: err.Error()})
		return "", err
	}
	completed := bus.ToolCompleted{Duration: elapsed, Output: clip(result.OutputText(), maxEventOutput)}
	if result.HasMetadata() {
		completed.Metadata = string(result.Metadata)
	}
	a.publish(bus.MsgToolCompleted, id, call.Tool, completed)

	answer, err := a.llm.Chat(ctx, systemPrompt, SynthesisPrompt(query, call.Tool, result))
	if err != nil {
		return "", ferrors.NewChatError(a.llm.Name(), err)
	}
	return answer, nil
}

// invoke runs t and times it. A panic in the tool becomes a
// ToolExecutionError; a nil result without an error is treated the same way.
func (a *Agent) invoke(ctx context.Context, t tool.Tool, input json.RawMessage) (res *tool.Result, elapsed time.Duration, err error) {
	name := t.Name()
	start := time.Now()
	defer func() {
		if r := ferrors.RecoverPanic(recover()); r.Recovered {
			a.logger.Printf("⚠ Tool '%s' panicked: %s\n%s", name, r.ErrorMsg, r.StackTrace)
			res, err = nil, ferrors.NewToolExecutionError(name, r.Err())
		}
		elapsed = time.Since(start)
		a.logger.Printf("⚡ Tool '%s' executed in %.2fms", name, float64(elapsed.Microseconds())/1000)
	}()

	res, err = t.Execute(ctx, input)
	if err != nil {
		return nil, 0, ferrors.NewToolExecutionError(name, err)
	}
	if res == nil || len(res.Output) == 0 {
		return nil, 0, ferrors.NewToolExecutionError(name, errNoOutput)
	}
	return res, 0, nil
}

// clip cuts s to at most n bytes on a rune boundary and marks the cut.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "... [truncated]"
}

func (a *Agent) publish(t bus.MsgType, queryID, toolName string, payload any) {
	a.bus.Publish(bus.Message{
		Type:    t,
		QueryID: queryID,
		Tool:    toolName,
		Payload: payload,
	})
}
