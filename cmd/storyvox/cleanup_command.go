package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storyvox/internal/runstore"
	"storyvox/internal/workspace"
)

type cleanupOutput struct {
	Removed    []string `json:"removed"`
	Errors     []string `json:"errors,omitempty"`
	PrunedRuns int64    `json:"prunedRuns"`
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	var runsOlderThan time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove leftover run workspaces and old run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.foregroundLogger()
			if err != nil {
				return err
			}
			age := maxAge
			if age <= 0 {
				age = cfg.StaleAge()
			}

			stale := workspace.CleanStale(cmd.Context(), cfg.Paths.TempDir, age, nil, logger)
			out := cleanupOutput{Removed: stale.Removed}
			for _, e := range stale.Errors {
				out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", e.Path, e.Error))
			}

			if runsOlderThan > 0 {
				store, err := runstore.Open(cfg)
				if err != nil {
					return fmt.Errorf("open run store: %w", err)
				}
				defer store.Close()
				pruned, err := store.Prune(cmd.Context(), time.Now().Add(-runsOlderThan))
				if err != nil {
					return err
				}
				out.PrunedRuns = pruned
			}

			if ctx.jsonMode() {
				return writeJSON(cmd, out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Removed %d workspace(s) older than %s\n", len(out.Removed), age)
			for _, path := range out.Removed {
				fmt.Fprintf(w, "  %s\n", path)
			}
			for _, e := range out.Errors {
				fmt.Fprintf(w, "  failed: %s\n", e)
			}
			if runsOlderThan > 0 {
				fmt.Fprintf(w, "Pruned %d finished run(s) from history\n", out.PrunedRuns)
			}
			if len(out.Errors) > 0 {
				return fmt.Errorf("%d workspace(s) could not be removed", len(out.Errors))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Remove workspaces older than this (default: cleanup.stale_hours)")
	cmd.Flags().DurationVar(&runsOlderThan, "runs-older-than", 0, "Also delete finished runs older than this from history")
	return cmd
}
