package tui

import "github.com/charmbracelet/lipgloss"

// forager palette
var (
	colorMoss    = lipgloss.Color("#7FB069")
	colorFern    = lipgloss.Color("#4F7942")
	colorAmber   = lipgloss.Color("#E8912D")
	colorDimGray = lipgloss.Color("#555555")
	colorGreen   = lipgloss.Color("#50C878")
	colorRed     = lipgloss.Color("#FF6B6B")
	colorCyan    = lipgloss.Color("#88C0D0")
	colorWhite   = lipgloss.Color("#E6E6E6")
	colorSubtle  = lipgloss.Color("#888888")
)

var (
	// Panel borders
	transcriptBorder = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorFern).
		Padding(0, 1)

	inputBorder = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorMoss).
		Padding(0, 1)

	statusBar = lipgloss.NewStyle().
		Foreground(colorMoss).
		Padding(0, 1)

	// Text styles
	titleStyle = lipgloss.NewStyle().
		Foreground(colorMoss).
		Bold(true)

	subtleStyle = lipgloss.NewStyle().
		Foreground(colorSubtle)

	userStyle = lipgloss.NewStyle().
		Foreground(colorAmber).
		Bold(true)

	answerStyle = lipgloss.NewStyle().
		Foreground(colorWhite)

	toolCallStyle = lipgloss.NewStyle().
		Foreground(colorCyan)

	toolResultStyle = lipgloss.NewStyle().
		Foreground(colorDimGray)

	errorStyle = lipgloss.NewStyle().
		Foreground(colorRed)

	successStyle = lipgloss.NewStyle().
		Foreground(colorGreen)

	promptStyle = lipgloss.NewStyle().
		Foreground(colorAmber).
		Bold(true)

	spinnerStyle = lipgloss.NewStyle().
		Foreground(colorCyan)

	lineStyles = map[string]lipgloss.Style{
		"user":   userStyle,
		"answer": answerStyle,
		"tool":   toolCallStyle,
		"result": toolResultStyle,
		"error":  errorStyle,
	}
)

func lineStyle(style string) lipgloss.Style {
	if s, ok := lineStyles[style]; ok {
		return s
	}
	return subtleStyle
}
