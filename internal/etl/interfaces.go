package etl

import (
	"context"
	"time"
)

// Phase is one step of a pipeline. Run returns the number of rows it
// touched, or -1 when the backend cannot tell.
type Phase interface {
	Name() string
	Run(ctx context.Context) (int64, error)
}

type phaseFunc struct {
	name string
	fn   func(ctx context.Context) (int64, error)
}

func (p phaseFunc) Name() string                           { return p.name }
func (p phaseFunc) Run(ctx context.Context) (int64, error) { return p.fn(ctx) }

// NewPhase adapts fn into a Phase.
func NewPhase(name string, fn func(ctx context.Context) (int64, error)) Phase {
	return phaseFunc{name: name, fn: fn}
}

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Run is the recorded outcome of one phase (or one DAG task).
type Run struct {
	RunID      string    `bson:"run_id"`
	Pipeline   string    `bson:"pipeline"`
	Phase      string    `bson:"phase"`
	Status     string    `bson:"status"`
	Rows       int64     `bson:"rows"`
	Error      string    `bson:"error,omitempty"`
	StartedAt  time.Time `bson:"started_at"`
	FinishedAt time.Time `bson:"finished_at"`
}

// Recorder persists run history.
type Recorder interface {
	Record(ctx context.Context, runs ...Run) error
}

// NopRecorder drops every record.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, ...Run) error { return nil }
