package tui

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HexSleeves/forager/internal/bus"
	"github.com/HexSleeves/forager/internal/output"
)

// Program wraps a Bubble Tea program with helper methods for sending events.
type Program struct {
	program *tea.Program
}

// NewProgram creates a TUI program.
func NewProgram(ctx context.Context, backend Backend, info Info) *Program {
	model := New(ctx, backend, info)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	return &Program{program: p}
}

// Run starts the TUI (blocking).
func (p *Program) Run() (tea.Model, error) {
	return p.program.Run()
}

// Send sends a message to the TUI.
func (p *Program) Send(msg tea.Msg) {
	p.program.Send(msg)
}

// SendToolCall sends a tool call event.
func (p *Program) SendToolCall(name, input string) {
	p.program.Send(ToolCallMsg{Name: name, Input: input})
}

// SendToolResult sends a tool result event.
func (p *Program) SendToolResult(name, result, elapsed string, isError bool) {
	p.program.Send(ToolResultMsg{Name: name, Result: result, Elapsed: elapsed, IsError: isError})
}

// SendLog sends a raw log line.
func (p *Program) SendLog(text string) {
	p.program.Send(LogMsg{Text: text})
}

// AttachBus forwards tool activity from b to the transcript.
func (p *Program) AttachBus(b *bus.MessageBus) {
	b.Subscribe(bus.MsgToolStarted, func(msg bus.Message) {
		if ts, ok := msg.Payload.(bus.ToolStarted); ok {
			p.SendToolCall(msg.Tool, output.Truncate(ts.Input, 80))
		}
	})
	b.Subscribe(bus.MsgToolCompleted, func(msg bus.Message) {
		if tc, ok := msg.Payload.(bus.ToolCompleted); ok {
			p.SendToolResult(msg.Tool, output.Truncate(tc.Output, 240), tc.Duration.Round(time.Millisecond).String(), false)
		}
	})
	b.Subscribe(bus.MsgToolFailed, func(msg bus.Message) {
		if tf, ok := msg.Payload.(bus.ToolFailed); ok {
			p.SendToolResult(msg.Tool, tf.Error, tf.Duration.Round(time.Millisecond).String(), true)
		}
	})
}

// LogWriter returns an io.Writer that sends each line to the TUI as a LogMsg.
// Use this as the output for log.New() to capture verbose logging.
func (p *Program) LogWriter() io.Writer {
	return &tuiWriter{send: p.SendLog}
}

type tuiWriter struct {
	mu   sync.Mutex
	send func(string)
	buf  []byte
}

func (w *tuiWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, data...)
	for {
		nl := strings.IndexByte(string(w.buf), '\n')
		if nl == -1 {
			break
		}
		line := stripLogPrefix(string(w.buf[:nl]))
		w.buf = w.buf[nl+1:]
		if line != "" {
			w.send(line)
		}
	}
	return len(data), nil
}

// stripLogPrefix removes the standard log prefix "2026/02/14 20:30:59 "
func stripLogPrefix(line string) string {
	isDate := func(s string) bool {
		return len(s) > 19 && s[4] == '/' && s[7] == '/' && s[10] == ' ' && s[13] == ':'
	}
	// Tagged: "[forager] 2006/01/02 15:04:05 <message>"
	if strings.HasPrefix(line, "[") {
		if idx := strings.Index(line, "] "); idx != -1 && isDate(line[idx+2:]) {
			line = line[idx+2:]
		}
	}
	if !isDate(line) {
		return strings.TrimSpace(line)
	}
	// With microseconds: "2006/01/02 15:04:05.000000 <message>"
	if len(line) > 27 && line[19] == '.' {
		return strings.TrimSpace(line[27:])
	}
	// Standard log format: "2006/01/02 15:04:05 <message>"
	return strings.TrimSpace(line[20:])
}
