package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	w := m.width
	if w < 40 {
		w = 80 // sensible default before WindowSizeMsg
	}
	innerW := w - 2 // border eats 2 chars

	header := m.renderHeader(w)
	transcript := m.renderTranscript(innerW, m.visibleHeight())
	input := inputBorder.Width(innerW).Render(m.input.View())
	sbar := m.renderStatusBar(w)

	return header + "\n" + transcript + "\n" + input + "\n" + sbar
}

func (m Model) renderHeader(w int) string {
	title := titleStyle.Render("🔎 forager")
	var parts []string
	if m.info.Backend != "" {
		parts = append(parts, "backend: "+m.info.Backend)
	}
	if len(m.info.Tools) > 0 {
		parts = append(parts, "tools: "+strings.Join(m.info.Tools, ", "))
	}
	detail := strings.Join(parts, " · ")
	maxDetail := w - lipgloss.Width(title) - 4
	if maxDetail > 0 && runewidth.StringWidth(detail) > maxDetail {
		detail = runewidth.Truncate(detail, maxDetail, "…")
	}
	return title + "  " + subtleStyle.Render(detail)
}

func (m Model) renderTranscript(w, h int) string {
	// Padding eats 2 more columns
	textW := w - 4

	var rendered []string
	for _, line := range m.lines {
		style := lineStyle(line.style)
		for _, wl := range wrapText(line.text, textW) {
			rendered = append(rendered, style.Render(wl))
		}
	}
	if len(m.lines) == 0 {
		rendered = append(rendered,
			subtleStyle.Render("Ask a question. The model may fetch a page to answer it."),
			subtleStyle.Render("Type scrape <url> to fetch a page directly, exit to leave."))
	}

	// Compute visible window, scrolled from the bottom
	end := len(rendered) - m.scroll
	if end > len(rendered) {
		end = len(rendered)
	}
	if end < 0 {
		end = 0
	}
	start := end - h
	if start < 0 {
		start = 0
	}
	visible := rendered[start:end]
	for len(visible) < h {
		visible = append(visible, "")
	}

	return transcriptBorder.Width(w).Render(strings.Join(visible, "\n"))
}

func (m Model) renderStatusBar(w int) string {
	var left string
	if m.busy {
		verb := "thinking"
		if m.pending == "scrape" {
			verb = "scraping"
		}
		elapsed := time.Since(m.started).Round(time.Second)
		left = m.spinner.View() + " " + fmt.Sprintf("%s… %s", verb, elapsed)
	} else {
		left = successStyle.Render("ready")
	}

	right := "enter: send · pgup/pgdn: scroll · ctrl+c: quit"
	if m.scroll > 0 {
		right = fmt.Sprintf("[↑%d] ", m.scroll) + right
	}

	gap := w - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return statusBar.Width(w - 2).Render(left + strings.Repeat(" ", gap) + subtleStyle.Render(right))
}

// wrapText wraps a string to fit within maxWidth display columns,
// correctly handling emoji and CJK characters.
func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		maxWidth = 80
	}
	if len(text) == 0 {
		return []string{""}
	}
	if runewidth.StringWidth(text) <= maxWidth {
		return []string{text}
	}

	var lines []string
	for runewidth.StringWidth(text) > maxWidth {
		// Find the byte offset that fits within maxWidth display columns
		colW := 0
		byteOff := 0
		for i, r := range text {
			rw := runewidth.RuneWidth(r)
			if colW+rw > maxWidth {
				break
			}
			colW += rw
			byteOff = i + len(string(r))
		}
		if byteOff == 0 {
			// Single character wider than maxWidth: force advance
			_, size := utf8.DecodeRuneInString(text)
			byteOff = size
		}
		// Try to break on a space within the last third
		cut := byteOff
		if idx := strings.LastIndex(text[:byteOff], " "); idx > byteOff/3 {
			cut = idx
		}
		lines = append(lines, text[:cut])
		text = strings.TrimLeft(text[cut:], " ")
	}
	if text != "" {
		lines = append(lines, text)
	}
	return lines
}
