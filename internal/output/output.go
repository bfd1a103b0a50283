package output

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Mode represents the output mode.
type Mode int

const (
	// ModeTUI is the interactive terminal UI mode.
	ModeTUI Mode = iota
	// ModePlain is the plain text log mode.
	ModePlain
	// ModeJSON is the structured JSON output mode.
	ModeJSON
	// ModeQuiet prints only answers and errors.
	ModeQuiet
)

func (m Mode) String() string {
	switch m {
	case ModeTUI:
		return "tui"
	case ModePlain:
		return "plain"
	case ModeJSON:
		return "json"
	case ModeQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// SelectMode picks the mode for the CLI flags. JSON wins over quiet; the TUI
// is only used when interactive is requested on a terminal.
func SelectMode(jsonOut, quiet, interactive, tty bool) Mode {
	switch {
	case jsonOut:
		return ModeJSON
	case quiet:
		return ModeQuiet
	case interactive && tty:
		return ModeTUI
	default:
		return ModePlain
	}
}

// Truncate shortens s to at most width display cells, marking the cut with
// an ellipsis. Newlines are flattened to spaces.
func Truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
