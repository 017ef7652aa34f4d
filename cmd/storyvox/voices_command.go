package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyvox/internal/services/tts"
)

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "voices",
		Short:       "List the available synthesis voices",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			voices := tts.Voices()
			if ctx.jsonMode() {
				return writeJSON(cmd, voices)
			}
			rows := make([][]string, 0, len(voices))
			for _, v := range voices {
				rows = append(rows, []string{v.ID, v.Name, v.Language, v.Gender})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Language", "Gender"}, rows, nil, shouldColorize(out)))
			return nil
		},
	}
}
