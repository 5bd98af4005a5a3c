package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/BartekS5/sparkify/internal/etl"
	"github.com/BartekS5/sparkify/internal/metrics"
	"github.com/BartekS5/sparkify/internal/operators"
	"github.com/BartekS5/sparkify/pkg/logger"
)

const (
	WorkflowName    = "sparkify_dag"
	ActivityRunTask = "sparkify_run_task"

	// QualityErrorType marks data-quality failures, which are never retried.
	QualityErrorType = "DataQualityError"
	unknownTaskType  = "UnknownTask"
)

// Task retry behaviour: three retries five minutes apart.
const (
	TaskRetries       = 3
	TaskRetryInterval = 5 * time.Minute
	TaskTimeout       = time.Hour
)

// WorkflowInput is one DAG run. A zero LogicalDate means the workflow
// start time.
type WorkflowInput struct {
	DAG         DAG       `json:"dag"`
	LogicalDate time.Time `json:"logical_date"`
}

// TaskRequest asks a worker to execute one task.
type TaskRequest struct {
	TaskID      string    `json:"task_id"`
	RunID       string    `json:"run_id"`
	LogicalDate time.Time `json:"logical_date"`
}

type TaskResult struct {
	TaskID string `json:"task_id"`
	Rows   int64  `json:"rows"`
}

// Workflow executes the DAG level by level. Tasks of a level are
// dispatched together; the run stops after the first level with a failed
// task, so nothing downstream of a failure runs.
func Workflow(ctx workflow.Context, in WorkflowInput) ([]TaskResult, error) {
	levels, err := in.DAG.Levels()
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidDAG", err)
	}

	info := workflow.GetInfo(ctx)
	logicalDate := in.LogicalDate
	if logicalDate.IsZero() {
		logicalDate = workflow.Now(ctx).UTC()
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: TaskTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        TaskRetryInterval,
			BackoffCoefficient:     1.0,
			MaximumInterval:        TaskRetryInterval,
			MaximumAttempts:        TaskRetries + 1,
			NonRetryableErrorTypes: []string{QualityErrorType, unknownTaskType},
		},
	})

	log := workflow.GetLogger(ctx)
	var results []TaskResult
	for i, level := range levels {
		log.Info("Starting DAG level", "dag", in.DAG.Name, "level", i, "tasks", level)

		futures := make([]workflow.Future, len(level))
		for j, id := range level {
			futures[j] = workflow.ExecuteActivity(ctx, ActivityRunTask, TaskRequest{
				TaskID:      id,
				RunID:       info.WorkflowExecution.RunID,
				LogicalDate: logicalDate,
			})
		}

		var failed error
		for j, f := range futures {
			var res TaskResult
			if err := f.Get(ctx, &res); err != nil {
				if failed == nil {
					failed = fmt.Errorf("task %s: %w", level[j], err)
				}
				continue
			}
			results = append(results, res)
		}
		if failed != nil {
			return results, failed
		}
	}
	return results, nil
}

// Activities hosts the task activity on a worker.
type Activities struct {
	Tasks    Tasks
	Recorder etl.Recorder
	Logger   *logger.Logger
}

func (a *Activities) RunTask(ctx context.Context, req TaskRequest) (TaskResult, error) {
	log := a.Logger
	if log == nil {
		log = logger.Default()
	}
	if info := activity.GetInfo(ctx); info.Attempt > 1 {
		log.Warn("Retrying task", "task_id", req.TaskID, "attempt", info.Attempt)
	}

	res, err := runTask(ctx, a.Tasks, a.Recorder, log, req)
	if err == nil {
		return res, nil
	}

	var qe *operators.QualityError
	if errors.As(err, &qe) {
		return res, temporal.NewNonRetryableApplicationError(qe.Error(), QualityErrorType, qe)
	}
	if errors.Is(err, ErrUnknownTask) {
		return res, temporal.NewNonRetryableApplicationError(err.Error(), unknownTaskType, err)
	}
	return res, err
}

// runTask executes one task and records its outcome.
func runTask(ctx context.Context, tasks Tasks, recorder etl.Recorder, log *logger.Logger, req TaskRequest) (TaskResult, error) {
	res := TaskResult{TaskID: req.TaskID}
	op, ok := tasks[req.TaskID]
	if !ok {
		return res, fmt.Errorf("%w: %s", ErrUnknownTask, req.TaskID)
	}

	run := etl.Run{
		RunID:     req.RunID,
		Pipeline:  DAGName,
		Phase:     req.TaskID,
		StartedAt: time.Now().UTC(),
	}
	log.Info("Starting task", "task_id", req.TaskID, "run_id", req.RunID, "logical_date", req.LogicalDate)

	rows, err := op.Execute(ctx, operators.RunContext{RunID: req.RunID, LogicalDate: req.LogicalDate})
	run.FinishedAt = time.Now().UTC()
	run.Rows = rows
	metrics.RecordStep(DAGName, req.TaskID, err, run.FinishedAt.Sub(run.StartedAt))

	run.Status = etl.StatusSucceeded
	if err != nil {
		run.Status = etl.StatusFailed
		run.Error = err.Error()
	}
	if recorder != nil {
		if rerr := recorder.Record(ctx, run); rerr != nil {
			log.Warn("Failed to record task run", "task_id", req.TaskID, "error", rerr)
		}
	}

	if err != nil {
		log.Error("Task failed", "task_id", req.TaskID, "error", err)
		return res, err
	}
	res.Rows = rows
	log.Info("Task completed", "task_id", req.TaskID, "rows", rows)
	return res, nil
}
