package pipeline

import (
	"context"
	"errors"
	"time"
)

// RunRecord is the durable summary of a run handed to recorders.
type RunRecord struct {
	ID         string
	Kind       string
	State      State
	Total      int
	Succeeded  int
	Output     string
	Error      string
	Failures   []ItemFailure
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder observes run lifecycle transitions. Implementations must not block
// for long; failures are logged and never change the run outcome.
type Recorder interface {
	RunStarted(ctx context.Context, rec RunRecord) error
	RunFinished(ctx context.Context, rec RunRecord) error
}

// Recorders fans lifecycle notifications out to every non-nil recorder.
func Recorders(recorders ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiRecorder []Recorder

func (m multiRecorder) RunStarted(ctx context.Context, rec RunRecord) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RunStarted(ctx, rec))
	}
	return errors.Join(errs...)
}

func (m multiRecorder) RunFinished(ctx context.Context, rec RunRecord) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RunFinished(ctx, rec))
	}
	return errors.Join(errs...)
}
