package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clipmatch/internal/retrieval"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <headline> <text>",
		Short: "Download the best-matching footage for a segment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reporter := newProgressReporter(os.Stderr)
			rt, err := ctx.buildRuntime(cmd.Context(), reporter.callback())
			if err != nil {
				return err
			}
			defer rt.cleanup()

			result, err := rt.pipe.DownloadBest(cmd.Context(), args[0], args[1])
			reporter.Finish()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch outcome := result.Outcome.(type) {
			case retrieval.Success:
				fmt.Fprintf(out, "Downloaded %s\n", outcome.Path)
				if outcome.FromLibrary {
					fmt.Fprintln(out, "(retrieved from the personal library after preparation)")
				}
			default:
				fmt.Fprintf(out, "Download failed: %s\n", result.Outcome.Summary())
			}

			if len(result.Attempts) > 0 {
				fmt.Fprintln(out, "Skipped candidates:")
				rows := make([][]string, 0, len(result.Attempts))
				for _, attempt := range result.Attempts {
					rows = append(rows, []string{attempt.URL, attempt.Reason})
				}
				fmt.Fprintln(out, renderTable([]column{{header: "URL"}, {header: "Reason"}}, rows))
			}
			if _, ok := result.Outcome.(retrieval.Success); !ok {
				return fmt.Errorf("no footage downloaded")
			}
			return nil
		},
	}
	return cmd
}
