package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dimiro1/banner"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v3"

	"github.com/HexSleeves/forager/internal/agent"
	"github.com/HexSleeves/forager/internal/output"
	"github.com/HexSleeves/forager/internal/repl"
	"github.com/HexSleeves/forager/internal/tool"
	"github.com/HexSleeves/forager/internal/tool/webscrape"
	"github.com/HexSleeves/forager/internal/tui"
)

func cmdInteractive(ctx context.Context, cmd *cli.Command) error {
	return runInteractive(ctx, cmd, cmd.Bool("plain"))
}

func readerOf(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

func runInteractive(ctx context.Context, cmd *cli.Command, forcePlain bool) error {
	s, err := newSession(cmd, !forcePlain)
	if err != nil {
		return err
	}
	defer s.Close()
	s.openHistory(cmd)

	a, err := s.newAgent()
	if err != nil {
		return s.fail(err)
	}

	if s.mode == output.ModeTUI {
		return runTUI(ctx, cmd, s, a)
	}
	return runPlainLoop(ctx, readerOf(cmd), s, a)
}

// scraperOf runs the scraper through a's registry.
func scraperOf(a *agent.Agent) executeFunc {
	return func(ctx context.Context, input json.RawMessage) (*tool.Result, error) {
		return a.ExecuteTool(ctx, webscrape.Name, input)
	}
}

// --- TUI ---

// tuiBackend adapts the agent to the TUI.
type tuiBackend struct {
	agent *agent.Agent
}

func (b *tuiBackend) Ask(ctx context.Context, query string) (string, error) {
	return b.agent.Run(ctx, query)
}

func (b *tuiBackend) Scrape(ctx context.Context, url string) (string, error) {
	res, elapsed, err := scrapeOnce(ctx, scraperOf(b.agent), url)
	if err != nil {
		return "", err
	}
	return formatScrape(res, false) + "\n\n" + scrapeTiming(elapsed), nil
}

func runTUI(ctx context.Context, cmd *cli.Command, s *session, a *agent.Agent) error {
	prog := tui.NewProgram(ctx, &tuiBackend{agent: a}, tui.Info{
		Backend: a.Backend(),
		Tools:   a.ListTools(),
	})
	prog.AttachBus(a.Bus())
	if cmd.Bool("verbose") {
		s.logger.SetOutput(prog.LogWriter())
	}

	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// --- Plain loop ---

const greeting = `{{ .Title "forager" "" 0 }}
  {{ .AnsiColor.Cyan }}Version: %s | Backend: %s{{ .AnsiColor.Default }}
  Type 'exit' to quit
  Try: 'scrape https://example.com' or ask a question

`

// plainHandler answers lines read by the plain loop.
type plainHandler struct {
	s     *session
	agent *agent.Agent
}

func (h *plainHandler) Query(ctx context.Context, query string) error {
	answer, err := h.agent.Run(ctx, query)
	if err != nil {
		return err
	}
	h.s.printer.Answer(answer)
	return nil
}

func (h *plainHandler) Scrape(ctx context.Context, url string) error {
	h.s.printer.Section("🌐 Scraping " + url)
	res, elapsed, err := scrapeOnce(ctx, scraperOf(h.agent), url)
	if err != nil {
		return err
	}
	h.s.showScrape(url, res, elapsed)
	return nil
}

func runPlainLoop(ctx context.Context, in io.Reader, s *session, a *agent.Agent) error {
	loop := &repl.Loop{
		In:      in,
		Out:     s.out,
		Handler: &plainHandler{s: s, agent: a},
		OnError: s.report,
	}
	if s.mode == output.ModePlain {
		tpl := fmt.Sprintf(greeting, version, a.Backend())
		banner.Init(s.out, true, s.tty, bytes.NewBufferString(tpl))
		loop.Prompt = pterm.Yellow("Query: ")
	}

	err := loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s.printer.Info("👋 Goodbye!")
	return err
}
