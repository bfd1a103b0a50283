package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/HexSleeves/forager/internal/repl"
)

const (
	maxLines     = 500
	maxToolLines = 8
	tickInterval = time.Second
)

// Backend runs what the user types. Scrape returns display text.
type Backend interface {
	Ask(ctx context.Context, query string) (string, error)
	Scrape(ctx context.Context, url string) (string, error)
}

// Info is shown in the header.
type Info struct {
	Backend string
	Tools   []string
}

type transcriptLine struct {
	text  string
	style string // "user", "tool", "result", "answer", "error", "info"
}

// Model is the Bubble Tea model for the interactive session.
type Model struct {
	ctx     context.Context
	backend Backend
	info    Info

	input   textinput.Model
	spinner spinner.Model

	lines  []transcriptLine
	scroll int // offset from bottom

	busy     bool
	pending  string
	started  time.Time
	width    int
	height   int
	quitting bool
}

// New creates a model whose queries run under ctx.
func New(ctx context.Context, backend Backend, info Info) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask anything, or scrape <url>"
	ti.Prompt = "❯ "
	ti.PromptStyle = promptStyle
	ti.CharLimit = 4096
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		ctx:     ctx,
		backend: backend,
		info:    info,
		input:   ti,
		spinner: sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tea.WindowSize())
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyPgUp:
			m.scrollBy(m.visibleHeight() / 2)
			return m, nil
		case tea.KeyPgDown:
			m.scrollBy(-m.visibleHeight() / 2)
			return m, nil
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			return m.submit()
		}
		if m.busy {
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 8

	case TickMsg:
		if m.busy {
			return m, tickCmd()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ToolCallMsg:
		line := "→ " + msg.Name
		if msg.Input != "" {
			line += " " + msg.Input
		}
		m.addLine(line, "tool")
		return m, nil

	case ToolResultMsg:
		style := "result"
		if msg.IsError {
			style = "error"
		}
		if msg.Elapsed != "" {
			m.addLine(fmt.Sprintf("  %s finished in %s", msg.Name, msg.Elapsed), "info")
		}
		m.addBlock(msg.Result, style, maxToolLines)
		return m, nil

	case AnswerMsg:
		m.busy = false
		m.pending = ""
		if msg.Err != nil {
			m.addLine("❌ "+msg.Err.Error(), "error")
		} else if msg.Kind == "scrape" {
			m.addBlock(msg.Text, "result", 0)
		} else {
			m.addBlock(msg.Text, "answer", 0)
		}
		m.addLine("", "info")
		return m, nil

	case LogMsg:
		m.addLine(msg.Text, "info")
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := repl.ParseLine(m.input.Value())
	m.input.Reset()

	switch line.Kind {
	case repl.Empty:
		return m, nil
	case repl.Exit:
		m.quitting = true
		return m, tea.Quit
	}

	kind := "query"
	m.addLine("You: "+line.Arg, "user")
	if line.Kind == repl.Scrape {
		kind = "scrape"
		m.addLine("→ scrape "+line.Arg, "tool")
	}
	m.busy = true
	m.pending = kind
	m.started = time.Now()
	m.scroll = 0
	return m, tea.Batch(m.spinner.Tick, tickCmd(), m.run(kind, line.Arg))
}

func (m Model) run(kind, arg string) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		var (
			text string
			err  error
		)
		if kind == "scrape" {
			text, err = backend.Scrape(ctx, arg)
		} else {
			text, err = backend.Ask(ctx, arg)
		}
		return AnswerMsg{Text: text, Err: err, Kind: kind, Input: arg}
	}
}

// visibleHeight returns the number of transcript lines visible.
func (m Model) visibleHeight() int {
	h := m.height
	if h < 10 {
		h = 24
	}
	// header + input box + status bar + transcript border
	visible := h - 1 - 3 - 1 - 2
	if visible < 3 {
		visible = 3
	}
	return visible
}

func (m *Model) scrollBy(n int) {
	m.scroll += n
	if top := len(m.lines) - m.visibleHeight(); m.scroll > top {
		m.scroll = top
	}
	if m.scroll < 0 {
		m.scroll = 0
	}
}

func (m *Model) addLine(text, style string) {
	m.lines = append(m.lines, transcriptLine{text: text, style: style})
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.scroll = 0
}

// addBlock adds multi-line text, keeping at most limit lines when limit > 0.
func (m *Model) addBlock(text, style string, limit int) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if limit > 0 && len(lines) > limit {
		rest := len(lines) - (limit - 2)
		lines = append(lines[:limit-2], fmt.Sprintf("... (%d more lines)", rest))
	}
	for _, l := range lines {
		m.addLine("  "+l, style)
	}
}
