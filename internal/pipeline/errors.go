package pipeline

import (
	"errors"

	"storyvox/internal/services"
)

var (
	// ErrNoItems is returned before any work starts when the item list is empty.
	ErrNoItems = services.Wrap(services.ErrValidation, "pipeline", "validate", "no valid text sections", nil)
	// ErrNoArtifacts marks a run in which every item failed.
	ErrNoArtifacts = errors.New("NoArtifactsProduced: no item produced an artifact")
	// ErrAggregate marks a failure of the terminal merge step.
	ErrAggregate = errors.New("aggregation failed")
)
