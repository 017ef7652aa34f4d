package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyvox/internal/preflight"
)

type depsOutput struct {
	Tools    []toolStatus   `json:"tools"`
	Services []checkOutcome `json:"services"`
}

type toolStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Optional  bool   `json:"optional"`
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type checkOutcome struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tools, directories, and remote services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := preflight.CheckSystemDeps(cfg)
			results := preflight.RunAll(cmd.Context(), cfg)

			var out depsOutput
			for _, s := range statuses {
				out.Tools = append(out.Tools, toolStatus{
					Name:      s.Name,
					Command:   s.Command,
					Optional:  s.Optional,
					Available: s.Available,
					Path:      s.Path,
					Detail:    s.Detail,
				})
			}
			for _, r := range results {
				out.Services = append(out.Services, checkOutcome{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
			}

			missing := preflight.MissingRequired(statuses)
			failed := preflight.Failed(results)
			if ctx.jsonMode() {
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
			} else {
				w := cmd.OutOrStdout()
				colorize := shouldColorize(w)
				toolRows := make([][]string, 0, len(out.Tools))
				for _, t := range out.Tools {
					detail := t.Detail
					if t.Available {
						detail = t.Path
					}
					toolRows = append(toolRows, []string{t.Name, t.Command, yesNo(t.Optional), availability(t.Available, colorize), dashIfEmpty(detail)})
				}
				fmt.Fprintln(w, renderTable([]string{"Tool", "Command", "Optional", "Status", "Detail"}, toolRows, nil, colorize))

				checkRows := make([][]string, 0, len(out.Services))
				for _, c := range out.Services {
					checkRows = append(checkRows, []string{c.Name, availability(c.Passed, colorize), dashIfEmpty(c.Detail)})
				}
				fmt.Fprintln(w, renderTable([]string{"Check", "Status", "Detail"}, checkRows, nil, colorize))
			}

			if len(missing) > 0 || len(failed) > 0 {
				return fmt.Errorf("%d required tool(s) missing, %d check(s) failed", len(missing), len(failed))
			}
			return nil
		},
	}
}

func availability(ok, colorize bool) string {
	if ok {
		return tint("ok", ansiGreen, colorize)
	}
	return tint("missing", ansiRed, colorize)
}
