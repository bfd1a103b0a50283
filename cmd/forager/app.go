package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/HexSleeves/forager/internal/config"
)

// version is set via ldflags at build time.
// e.g. -ldflags "-X main.version=1.2.3"
var version = "dev"

// newApp creates the CLI application with all flags and commands.
func newApp() *cli.Command {
	return &cli.Command{
		Name:        "forager",
		Usage:       "Single-turn AI agent with web scraping",
		Version:     version,
		UsageText:   "forager [global options] command [command options] [arguments...]",
		Description: "Forager answers a query with one LLM call, or two when the model asks for a tool",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.DefaultPath,
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file with API keys (process environment wins)",
				Value: ".env",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Verbose logging",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Print only answers and errors (mutually exclusive with --json)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output NDJSON events (mutually exclusive with --quiet)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record queries in the local history",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("quiet") && cmd.Bool("json") {
				return ctx, fmt.Errorf("flags --quiet and --json are mutually exclusive")
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Answer one query",
				ArgsUsage: "<query...>",
				Action:    cmdRun,
			},
			{
				Name:      "scrape",
				Usage:     "Scrape a URL directly, without the LLM",
				ArgsUsage: "<url>",
				Action:    cmdScrape,
			},
			{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Start an interactive session",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "plain", Usage: "Line-based session even on a terminal"},
				},
				Action: cmdInteractive,
			},
			{
				Name:   "tools",
				Usage:  "List available tools",
				Action: cmdTools,
			},
			{
				Name:  "history",
				Usage: "List past queries",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum queries to show"},
				},
				Action: cmdHistory,
				Commands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "Show one query and its events",
						ArgsUsage: "<query-id>",
						Action:    cmdHistoryShow,
					},
				},
			},
			{
				Name:   "config",
				Usage:  "Show current configuration",
				Action: cmdConfig,
			},
			{
				Name:  "init",
				Usage: "Write a default config file",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Overwrite an existing config file"},
				},
				Action: cmdInit,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// Default action: treat remaining args as a query (implicit run)
			args := cmd.Args().Slice()
			if len(args) == 0 {
				return runInteractive(ctx, cmd, false)
			}
			return runQuery(ctx, cmd, strings.Join(args, " "))
		},
	}
}
