package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"storyvox/internal/workspace"
)

// Aggregator merges the successful artifacts of a run into one output file.
type Aggregator interface {
	Aggregate(ctx context.Context, ws *workspace.Workspace, artifacts []Result, outputPath string) error
}

// Concatenator joins the files listed in a concat manifest.
type Concatenator interface {
	Concat(ctx context.Context, manifestPath, outputPath string) error
}

// ManifestWriter renders the concat manifest for a set of input files.
type ManifestWriter func(paths []string) string

// AudioConcat writes a manifest of the successful audio artifacts, in item
// order, into the workspace and hands it to the concatenator.
type AudioConcat struct {
	concat   Concatenator
	manifest ManifestWriter
}

// NewAudioConcat builds the audio aggregator.
func NewAudioConcat(concat Concatenator, manifest ManifestWriter) *AudioConcat {
	return &AudioConcat{concat: concat, manifest: manifest}
}

// Aggregate implements Aggregator.
func (a *AudioConcat) Aggregate(ctx context.Context, ws *workspace.Workspace, artifacts []Result, outputPath string) error {
	if len(artifacts) == 0 {
		return fmt.Errorf("%w: %w", ErrAggregate, ErrNoArtifacts)
	}
	paths := make([]string, 0, len(artifacts))
	for _, r := range artifacts {
		paths = append(paths, r.Path)
	}
	manifestPath := ws.ManifestPath()
	if err := ws.WriteFile(manifestPath, []byte(a.manifest(paths))); err != nil {
		return fmt.Errorf("%w: write manifest: %w", ErrAggregate, err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("%w: create output directory: %w", ErrAggregate, err)
	}
	if err := a.concat.Concat(ctx, manifestPath, outputPath); err != nil {
		_ = os.Remove(outputPath)
		_ = os.Remove(filepath.Dir(outputPath))
		return fmt.Errorf("%w: %w", ErrAggregate, err)
	}
	return nil
}
