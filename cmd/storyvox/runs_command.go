package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"storyvox/internal/runstore"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, runs)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.Kind,
					colorStatus(run.Status, colorize),
					strconv.Itoa(run.TotalItems),
					strconv.Itoa(run.Succeeded),
					strconv.Itoa(run.Failed),
					run.StartedAt.Local().Format(time.DateTime),
					dashIfEmpty(run.Output),
				})
			}
			headers := []string{"ID", "Kind", "Status", "Items", "OK", "Failed", "Started", "Output"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight}
			fmt.Fprintln(out, renderTable(headers, rows, aligns, colorize))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", runstore.DefaultListLimit, "Maximum number of runs to show")
	return cmd
}
