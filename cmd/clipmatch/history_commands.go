package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"clipmatch/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded pipeline runs",
	}
	cmd.AddCommand(newHistoryListCommand(ctx))
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func (c *commandContext) openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("run history is disabled; enable [history] in the configuration")
	}
	return history.Open(cmd.Context(), cfg.HistoryPath())
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				mode := "footage"
				if run.PersonMode {
					mode = "person"
				}
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format(time.DateTime),
					mode,
					run.Outcome,
					run.Headline,
				})
			}
			columns := []column{
				{header: "Run"},
				{header: "Started"},
				{header: "Mode"},
				{header: "Outcome"},
				{header: "Headline", maxWidth: 40},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(columns, rows))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the ranked candidates of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Candidates(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No candidates recorded for this run.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					strconv.Itoa(rec.Rank + 1),
					strconv.Itoa(rec.FinalScore),
					strconv.Itoa(rec.TextScore),
					strconv.Itoa(rec.VisualScore),
					rec.Title,
					rec.SkipReason,
				})
			}
			columns := []column{
				{header: "#", align: alignRight},
				{header: "Final", align: alignRight},
				{header: "Text", align: alignRight},
				{header: "Visual", align: alignRight},
				{header: "Title", maxWidth: 40},
				{header: "Skip reason"},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(columns, rows))
			return nil
		},
	}
}
