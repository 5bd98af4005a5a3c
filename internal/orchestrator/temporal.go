package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/BartekS5/sparkify/internal/config"
	"github.com/BartekS5/sparkify/pkg/logger"
)

const ScheduleID = "sparkify_dag-schedule"

// Dial connects to the Temporal frontend, logging through log.
func Dial(ctx context.Context, cfg config.TemporalConfig, log *logger.Logger) (client.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c, err := client.DialContext(dialCtx, client.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
	}
	return c, nil
}

// NewWorker registers the DAG workflow and the task activity on taskQueue.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivityWithOptions(acts.RunTask, activity.RegisterOptions{Name: ActivityRunTask})
	return w
}

// StartRun starts one DAG run for logicalDate. The workflow id is derived
// from the date, so a second start for the same date is rejected while the
// first is open.
func StartRun(ctx context.Context, c client.Client, taskQueue string, dag DAG, logicalDate time.Time) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("%s-%s", dag.Name, logicalDate.UTC().Format(time.RFC3339)),
		TaskQueue: taskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, WorkflowName, WorkflowInput{DAG: dag, LogicalDate: logicalDate})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", dag.Name, err)
	}
	return run, nil
}

// EnsureSchedule registers the recurring DAG run. Overlapping runs are
// skipped and missed runs are not caught up. An existing schedule is left
// untouched.
func EnsureSchedule(ctx context.Context, c client.Client, taskQueue string, dag DAG, every time.Duration, log *logger.Logger) error {
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: ScheduleID,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: every}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        dag.Name,
			Workflow:  WorkflowName,
			TaskQueue: taskQueue,
			Args:      []interface{}{WorkflowInput{DAG: dag}},
		},
		Overlap:       enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
		CatchupWindow: time.Minute,
	})
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		log.Info("Schedule already registered", "schedule_id", ScheduleID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create schedule %s: %w", ScheduleID, err)
	}
	log.Info("Registered schedule", "schedule_id", ScheduleID, "every", every.String())
	return nil
}
