package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/HexSleeves/forager/internal/output"
	"github.com/HexSleeves/forager/internal/state"
)

func openHistoryDB(cmd *cli.Command) (*state.DB, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := state.OpenDB(cfg.History.Dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func cmdHistory(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	jsonOutput := cmd.Bool("json")

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	queries, err := db.ListQueries(ctx, int(limit))
	if err != nil {
		return fmt.Errorf("list queries: %w", err)
	}

	out := writerOf(cmd)
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(queries)
	}

	p := output.NewPrinterWithWriter(output.ModePlain, false, out)
	if len(queries) == 0 {
		p.Info("No queries recorded yet. Run 'forager run <query>' to start.")
		return nil
	}

	p.Header("History")
	var rows [][]string
	for _, q := range queries {
		tool := q.Tool
		if tool == "" {
			tool = "-"
		}
		rows = append(rows, []string{
			q.ID[:min(8, len(q.ID))],
			output.StatusIcon(q.Status) + " " + q.Status,
			tool,
			fmt.Sprintf("%.0fms", q.TotalMs),
			output.Truncate(q.Query, 40),
		})
	}
	p.Table([]string{"Query", "Status", "Tool", "Total", "Text"}, rows)
	p.Printf("\n%d query(s)\n", len(queries))
	return nil
}

func cmdHistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return usageError("forager history show <query-id>")
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	q, err := findQuery(ctx, db, id)
	if err != nil {
		return err
	}
	events, err := db.Events(ctx, q.ID)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}

	out := writerOf(cmd)
	if cmd.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*state.QueryRow
			Events []state.EventRow `json:"events"`
		}{q, events})
	}

	p := output.NewPrinterWithWriter(output.ModePlain, false, out)
	p.Header("Query " + q.ID)
	pairs := [][]string{
		{"Query", q.Query},
		{"Provider", q.Provider},
		{"Status", output.StatusIcon(q.Status) + " " + q.Status},
		{"Started", q.CreatedAt},
	}
	if q.Tool != "" {
		pairs = append(pairs, []string{"Tool", fmt.Sprintf("%s (%.2fms)", q.Tool, q.ToolMs)})
	}
	if q.CompletedAt != "" {
		pairs = append(pairs, []string{"Finished", fmt.Sprintf("%s (%.0fms)", q.CompletedAt, q.TotalMs)})
	}
	if q.Error != "" {
		pairs = append(pairs, []string{"Error", fmt.Sprintf("[%s] %s", q.ErrorKind, q.Error)})
	}
	p.KeyValue(pairs)

	if q.Answer != "" {
		p.Section("Answer")
		p.Println(q.Answer)
	}

	if len(events) > 0 {
		root := output.TreeNode{Text: "events"}
		for _, e := range events {
			root.Children = append(root.Children, output.TreeNode{
				Text: fmt.Sprintf("%s %s", e.CreatedAt, e.Type),
				Children: []output.TreeNode{
					{Text: output.Truncate(string(e.Data), 100)},
				},
			})
		}
		p.Section("Events")
		p.Tree(root)
	}
	return nil
}

// findQuery resolves a full query ID or a unique prefix of one, as shown by
// the history table.
func findQuery(ctx context.Context, db *state.DB, id string) (*state.QueryRow, error) {
	q, err := db.GetQuery(ctx, id)
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, state.ErrNotFound) {
		return nil, fmt.Errorf("get query: %w", err)
	}

	all, err := db.ListQueries(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	var match *state.QueryRow
	for i := range all {
		if !strings.HasPrefix(all[i].ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("query ID prefix %q is ambiguous", id)
		}
		match = &all[i]
	}
	if match == nil {
		return nil, fmt.Errorf("query %s not found", id)
	}
	return match, nil
}
