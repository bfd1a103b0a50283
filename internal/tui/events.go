package tui

// TUI event types: sent from the agent's bus and logger via tea.Program.Send()

// ToolCallMsg is when the model asks for a tool.
type ToolCallMsg struct {
	Name  string
	Input string // truncated JSON
}

// ToolResultMsg is the result of a tool call.
type ToolResultMsg struct {
	Name    string
	Result  string // truncated
	Elapsed string
	IsError bool
}

// AnswerMsg ends a query or a scrape started from the input line.
type AnswerMsg struct {
	Text  string
	Err   error
	Kind  string // "query" or "scrape"
	Input string
}

// TickMsg is a periodic timer for updating elapsed times.
type TickMsg struct{}

// LogMsg is a raw log line (fallback for non-structured output).
type LogMsg struct {
	Text string
}
