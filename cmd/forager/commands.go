package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/tidwall/pretty"
	"github.com/urfave/cli/v3"

	"github.com/HexSleeves/forager/internal/config"
	"github.com/HexSleeves/forager/internal/output"
	"github.com/HexSleeves/forager/internal/state"
	"github.com/HexSleeves/forager/internal/tool"
)

func cmdRun(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return usageError("forager run <query...>")
	}
	return runQuery(ctx, cmd, query)
}

func runQuery(ctx context.Context, cmd *cli.Command, query string) error {
	s, err := newSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()
	s.openHistory(cmd)

	a, err := s.newAgent()
	if err != nil {
		return s.fail(err)
	}

	s.printer.Section("🔎 " + query)
	s.printer.KeyValue([][]string{
		{"Backend", a.Backend()},
		{"Tools", strings.Join(a.ListTools(), ", ")},
	})

	answer, err := a.Run(ctx, query)
	if err != nil {
		return s.fail(err)
	}
	s.printer.Answer(answer)
	return nil
}

func cmdScrape(ctx context.Context, cmd *cli.Command) error {
	url := strings.TrimSpace(cmd.Args().First())
	if url == "" {
		return usageError("forager scrape <url>")
	}

	s, err := newSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	s.printer.Section("🌐 Scraping " + url)
	res, elapsed, err := scrapeOnce(ctx, s.scraper().Execute, url)
	if err != nil {
		return s.fail(err)
	}
	s.showScrape(url, res, elapsed)
	return nil
}

// executeFunc runs a tool on raw JSON input.
type executeFunc func(ctx context.Context, input json.RawMessage) (*tool.Result, error)

// scrapeOnce runs the scraper for url and times it.
func scrapeOnce(ctx context.Context, exec executeFunc, url string) (*tool.Result, time.Duration, error) {
	input, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return nil, 0, err
	}
	start := time.Now()
	res, err := exec(ctx, input)
	return res, time.Since(start), err
}

// formatScrape pretty-prints the scraper output, colored for terminals.
func formatScrape(res *tool.Result, color bool) string {
	b := pretty.Pretty(res.Output)
	if color {
		b = pretty.Color(b, nil)
	}
	return strings.TrimRight(string(b), "\n")
}

func scrapeTiming(elapsed time.Duration) string {
	return fmt.Sprintf("⚡ Scraped in %.2fms", float64(elapsed.Microseconds())/1000)
}

func (s *session) showScrape(url string, res *tool.Result, elapsed time.Duration) {
	switch s.mode {
	case output.ModeJSON:
		s.json.WriteScrape(url, res.Output, res.Metadata, elapsed)
	case output.ModeQuiet:
		fmt.Fprintln(s.out, formatScrape(res, false))
	default:
		s.printer.Println(formatScrape(res, s.tty))
		s.printer.Success("%s", scrapeTiming(elapsed))
	}
}

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func cmdTools(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	tools := s.registry().All()
	switch s.mode {
	case output.ModeJSON:
		infos := make([]toolInfo, 0, len(tools))
		for _, t := range tools {
			infos = append(infos, toolInfo{Name: t.Name(), Description: t.Description()})
		}
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case output.ModeQuiet:
		for _, t := range tools {
			fmt.Fprintln(s.out, t.Name())
		}
		return nil
	}

	s.printer.Header("Tools")
	var items []output.BulletItem
	for _, t := range tools {
		items = append(items, output.BulletItem{Text: pterm.Bold.Sprint(t.Name())})
		items = append(items, output.BulletItem{Level: 1, Icon: "›", Text: t.Description()})
	}
	s.printer.BulletList(items)
	return nil
}

func cmdConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	cfg, env, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	p := output.NewPrinterWithWriter(output.ModePlain, false, writerOf(cmd))
	p.Header("Configuration")
	p.KeyValue([][]string{{"File", configPath}})

	p.Section("LLM")
	backend := "none (set OPENAI_API_KEY or ANTHROPIC_API_KEY)"
	apiKey := "-"
	if b, err := config.Resolve(cfg, env); err == nil {
		backend = fmt.Sprintf("%s (%s)", b.Provider, b.Model)
		apiKey = maskKey(b.APIKey)
	}
	p.KeyValue([][]string{
		{"Backend", backend},
		{"API Key", apiKey},
		{"OpenAI Model", cfg.LLM.OpenAIModel},
		{"Anthropic Model", cfg.LLM.AnthropicModel},
		{"Max Tokens", fmt.Sprint(cfg.LLM.MaxTokens)},
		{"Temperature", fmt.Sprint(cfg.LLM.Temperature)},
		{"Timeout", cfg.LLM.Timeout.String()},
	})

	p.Section("Scraper")
	blocked := "-"
	if len(cfg.Scraper.BlockedHosts) > 0 {
		blocked = strings.Join(cfg.Scraper.BlockedHosts, ", ")
	}
	p.KeyValue([][]string{
		{"Timeout", cfg.Scraper.Timeout.String()},
		{"User Agent", cfg.Scraper.UserAgent},
		{"Max Body", fmt.Sprintf("%d bytes", cfg.Scraper.MaxBodyBytes)},
		{"Max Links", fmt.Sprint(cfg.Scraper.MaxLinks)},
		{"Schemes", strings.Join(cfg.Scraper.AllowedSchemes, ", ")},
		{"Blocked Hosts", blocked},
	})

	p.Section("History")
	p.KeyValue([][]string{
		{"Enabled", fmt.Sprint(cfg.History.Enabled)},
		{"Database", cfg.HistoryPath(state.DBFile)},
	})
	return nil
}

// maskKey keeps the first and last four characters of long keys.
func maskKey(key string) string {
	if len(key) <= 12 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "…" + key[len(key)-4:]
}

func cmdInit(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	p := output.NewPrinterWithWriter(output.ModePlain, false, writerOf(cmd))

	if _, err := os.Stat(configPath); err == nil && !cmd.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", configPath, err)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.MkdirAll(cfg.History.Dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", cfg.History.Dir, err)
	}

	p.Success("Config saved to %s", configPath)
	p.Info("History will be kept in %s", cfg.History.Dir)
	return nil
}
