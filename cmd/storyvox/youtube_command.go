package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyvox/internal/runstore"
)

type youtubeOutput struct {
	RunID               string `json:"runId"`
	Title               string `json:"title"`
	AudioPath           string `json:"audioPath"`
	TranscriptPath      string `json:"transcriptPath,omitempty"`
	TranscriptSource    string `json:"transcriptSource"`
	TranscriptionFailed bool   `json:"transcriptionFailed"`
	TranscriptionError  string `json:"transcriptionError,omitempty"`
}

func newYouTubeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "youtube <url>",
		Short: "Download a video's audio and transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.foregroundLogger()
			if err != nil {
				return err
			}
			store, err := runstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer store.Close()

			result, err := newApp(cfg, logger, store).resolver().Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := youtubeOutput{
				RunID:               result.RunID,
				Title:               result.Title,
				AudioPath:           result.AudioPath,
				TranscriptPath:      result.TranscriptPath,
				TranscriptSource:    string(result.Source),
				TranscriptionFailed: result.TranscriptionFailed,
			}
			if result.TranscriptionErr != nil {
				out.TranscriptionError = result.TranscriptionErr.Error()
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, out)
			}

			rows := [][]string{
				{"Title", out.Title},
				{"Audio", out.AudioPath},
				{"Transcript", dashIfEmpty(out.TranscriptPath)},
				{"Source", out.TranscriptSource},
				{"Transcription failed", yesNo(out.TranscriptionFailed)},
			}
			if out.TranscriptionError != "" {
				rows = append(rows, []string{"Transcription error", out.TranscriptionError})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}
}
