package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"clipmatch/internal/platform"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <headline> <text>",
		Short: "Rank platform footage candidates for a segment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reporter := newProgressReporter(os.Stderr)
			rt, err := ctx.buildRuntime(cmd.Context(), reporter.callback())
			if err != nil {
				return err
			}
			defer rt.cleanup()

			match, err := rt.pipe.MatchSegment(cmd.Context(), args[0], args[1])
			reporter.Finish()
			if err != nil {
				return err
			}

			if len(match.Candidates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No candidates found.")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Subject: %s", match.Analysis.MainSubject)
			if match.Analysis.HasImportantPerson {
				fmt.Fprintf(cmd.OutOrStdout(), " (requires %s)", match.Analysis.PersonName)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), renderCandidateTable(match.Candidates))
			return nil
		},
	}
	return cmd
}

func renderCandidateTable(candidates []*platform.Candidate) string {
	columns := []column{
		{header: "#", align: alignRight},
		{header: "Final", align: alignRight},
		{header: "Text", align: alignRight},
		{header: "Visual", align: alignRight},
		{header: "Title", maxWidth: 48},
		{header: "URL"},
	}
	rows := make([][]string, 0, len(candidates))
	for i, c := range candidates {
		text := "-"
		if c.TextScore != nil {
			text = strconv.Itoa(c.TextScore.Score)
		}
		vis := "-"
		if c.Visual != nil {
			vis = fmt.Sprintf("%d %s", c.Visual.RelevanceScore, c.Visual.Recommendation)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(c.FinalScore),
			text,
			vis,
			c.Title,
			c.URL,
		})
	}
	return renderTable(columns, rows)
}
