package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/sparkify/internal/etl"
	"github.com/BartekS5/sparkify/pkg/logger"
	"github.com/google/uuid"
)

// LocalRunner executes a DAG in-process, one task at a time in level
// order, without retries. It is meant for development and backfills
// where no Temporal cluster is available.
type LocalRunner struct {
	DAG      DAG
	Tasks    Tasks
	Recorder etl.Recorder
	Logger   *logger.Logger
}

// Run executes every task for logicalDate and stops at the first failure.
func (r *LocalRunner) Run(ctx context.Context, logicalDate time.Time) ([]TaskResult, error) {
	levels, err := r.DAG.Levels()
	if err != nil {
		return nil, err
	}
	if err := r.Tasks.Validate(r.DAG); err != nil {
		return nil, err
	}
	log := r.Logger
	if log == nil {
		log = logger.Default()
	}

	runID := "local__" + uuid.NewString()
	log = log.With("dag", r.DAG.Name, "run_id", runID)
	log.Info("Starting local DAG run", "logical_date", logicalDate, "levels", len(levels))

	var results []TaskResult
	for _, level := range levels {
		for _, id := range level {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			res, err := runTask(ctx, r.Tasks, r.Recorder, log, TaskRequest{TaskID: id, RunID: runID, LogicalDate: logicalDate})
			if err != nil {
				return results, fmt.Errorf("task %s: %w", id, err)
			}
			results = append(results, res)
		}
	}
	log.Info("Local DAG run finished", "tasks", len(results))
	return results, nil
}
