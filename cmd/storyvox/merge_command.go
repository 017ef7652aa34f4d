package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"storyvox/internal/pipeline"
	"storyvox/internal/runstore"
)

type mergeSection struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type mergeFile struct {
	Sections []mergeSection `json:"sections"`
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var voiceFlag string

	cmd := &cobra.Command{
		Use:   "merge <sections.json|->",
		Short: "Synthesize sections and merge them into one audio file",
		Long: "Reads a JSON document of sections ({\"sections\":[{\"text\":...,\"voice\":...}]} or a bare array),\n" +
			"synthesizes each one, and writes the run's NDJSON progress events to stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			sections, err := parseSections(data)
			if err != nil {
				return err
			}
			items := mergeItems(sections, voiceFlag)
			if len(items) == 0 {
				return pipeline.ErrNoItems
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

			exec := newApp(cfg, logger, store).mergeExecutor()
			em := pipeline.NewStreamEmitter(cmd.OutOrStdout(), nil, nil)
			summary, err := exec.Execute(cmd.Context(), items, em)
			if err != nil {
				return err
			}
			return summary.Err
		},
	}

	cmd.Flags().StringVar(&voiceFlag, "voice", "", "Voice for sections that do not name one")
	return cmd
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func parseSections(data []byte) ([]mergeSection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var sections []mergeSection
		if err := json.Unmarshal(trimmed, &sections); err != nil {
			return nil, fmt.Errorf("parse sections: %w", err)
		}
		return sections, nil
	}
	var doc mergeFile
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("parse sections: %w", err)
	}
	return doc.Sections, nil
}

// mergeItems drops blank sections while keeping each survivor's position in
// the submitted document as its index.
func mergeItems(sections []mergeSection, voice string) []pipeline.Item {
	items := make([]pipeline.Item, 0, len(sections))
	for i, s := range sections {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		v := strings.TrimSpace(s.Voice)
		if v == "" {
			v = strings.TrimSpace(voice)
		}
		items = append(items, pipeline.Item{Index: i, Text: s.Text, Voice: v})
	}
	return items
}
