package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"screendescribe/internal/daemonctl"
	"screendescribe/internal/history"
	"screendescribe/internal/textutil"
)

const historyPreviewLength = 60

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runs, err := loadHistory(cmd.Context(), ctx, cfg.HistoryPath(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit runs as JSON")
	return cmd
}

// loadHistory asks the daemon first so reads never contend with its writes,
// then falls back to opening the database directly.
func loadHistory(ctx context.Context, cmdCtx *commandContext, path string, limit int) ([]history.Run, error) {
	if client, err := daemonctl.Connect(cmdCtx.socketPath()); err == nil {
		defer client.Close()
		resp, err := client.History(limit)
		if err != nil {
			return nil, err
		}
		return resp.Runs, nil
	}

	store, err := history.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Recent(ctx, limit)
}

func renderHistoryTable(runs []history.Run) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Finished", "Trigger", "Outcome", "Took", "Detail"})
	for _, run := range runs {
		detail := run.Description
		if run.Outcome != "success" {
			detail = run.Error
			if run.Stage != "" {
				detail = run.Stage + ": " + detail
			}
		}
		tw.AppendRow(table.Row{
			run.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			run.Trigger,
			run.Outcome,
			run.Duration().Round(100 * time.Millisecond).String(),
			textutil.Preview(detail, historyPreviewLength),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Took", Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
