// Package repl holds the read-eval loop shared by the plain and the TUI
// interactive modes.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Kind classifies an input line.
type Kind int

const (
	Empty Kind = iota
	Exit
	Scrape
	Query
)

const scrapePrefix = "scrape "

// Line is a parsed input line. Arg is the query text or the scrape URL.
type Line struct {
	Kind Kind
	Arg  string
}

// ParseLine trims s and classifies it. "exit" and "quit" match in any case;
// "scrape <url>" is a direct scrape; anything else is a query.
func ParseLine(s string) Line {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Line{Kind: Empty}
	case strings.EqualFold(s, "exit"), strings.EqualFold(s, "quit"):
		return Line{Kind: Exit}
	case strings.HasPrefix(s, scrapePrefix):
		if url := strings.TrimSpace(s[len(scrapePrefix):]); url != "" {
			return Line{Kind: Scrape, Arg: url}
		}
	}
	return Line{Kind: Query, Arg: s}
}

// Handler executes parsed lines.
type Handler interface {
	Query(ctx context.Context, query string) error
	Scrape(ctx context.Context, url string) error
}

// Loop reads lines from In until EOF, an exit line, or ctx ends. A failing
// line is reported through OnError and the loop continues.
type Loop struct {
	In      io.Reader
	Out     io.Writer
	Prompt  string
	Handler Handler
	OnError func(error)
}

func (l *Loop) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(l.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.Prompt != "" {
			fmt.Fprint(l.Out, l.Prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := ParseLine(scanner.Text())
		var err error
		switch line.Kind {
		case Empty:
			continue
		case Exit:
			return nil
		case Scrape:
			err = l.Handler.Scrape(ctx, line.Arg)
		case Query:
			err = l.Handler.Query(ctx, line.Arg)
		}
		if err != nil && l.OnError != nil {
			l.OnError(err)
		}
	}
}
