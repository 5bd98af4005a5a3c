package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/BartekS5/sparkify/internal/etl"
	"github.com/BartekS5/sparkify/internal/operators"
	"github.com/BartekS5/sparkify/pkg/logger"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, id)
}

func (c *callLog) count(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		if v == id {
			n++
		}
	}
	return n
}

func (c *callLog) index(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range c.calls {
		if v == id {
			return i
		}
	}
	return -1
}

// fakeOp fails on the attempts for which fail returns an error.
type fakeOp struct {
	id   string
	log  *callLog
	fail func(attempt int) error
}

func (f *fakeOp) Execute(context.Context, operators.RunContext) (int64, error) {
	f.log.add(f.id)
	if f.fail != nil {
		if err := f.fail(f.log.count(f.id)); err != nil {
			return 0, err
		}
	}
	return 1, nil
}

func fakeTasks(log *callLog, failures map[string]func(int) error) Tasks {
	tasks := Tasks{}
	for _, task := range SparkifyDAG().Tasks {
		tasks[task.ID] = &fakeOp{id: task.ID, log: log, fail: failures[task.ID]}
	}
	return tasks
}

func newEnv(tasks Tasks) *testsuite.TestWorkflowEnvironment {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	acts := &Activities{Tasks: tasks, Recorder: etl.NopRecorder{}, Logger: logger.NewNop()}
	env.RegisterActivityWithOptions(acts.RunTask, activity.RegisterOptions{Name: ActivityRunTask})
	return env
}

var runDate = time.Date(2018, 11, 1, 0, 0, 0, 0, time.UTC)

func TestWorkflow_RunsLevelsInOrder(t *testing.T) {
	log := &callLog{}
	env := newEnv(fakeTasks(log, nil))

	env.ExecuteWorkflow(WorkflowName, WorkflowInput{DAG: SparkifyDAG(), LogicalDate: runDate})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var results []TaskResult
	require.NoError(t, env.GetWorkflowResult(&results))
	assert.Len(t, results, 8)

	fact := log.index(TaskLoadSongplays)
	assert.Less(t, log.index(TaskStageEvents), fact)
	assert.Less(t, log.index(TaskStageSongs), fact)
	for _, dim := range []string{TaskLoadUsers, TaskLoadSongs, TaskLoadArtists, TaskLoadTime} {
		assert.Greater(t, log.index(dim), fact)
		assert.Less(t, log.index(dim), log.index(TaskQualityChecks))
	}
}

func TestWorkflow_RetriesTransientFailures(t *testing.T) {
	log := &callLog{}
	env := newEnv(fakeTasks(log, map[string]func(int) error{
		TaskStageEvents: func(attempt int) error {
			if attempt == 1 {
				return errors.New("connection reset by peer")
			}
			return nil
		},
	}))

	env.ExecuteWorkflow(WorkflowName, WorkflowInput{DAG: SparkifyDAG(), LogicalDate: runDate})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	assert.Equal(t, 2, log.count(TaskStageEvents))
}

func TestWorkflow_FailedTaskStopsDownstream(t *testing.T) {
	log := &callLog{}
	env := newEnv(fakeTasks(log, map[string]func(int) error{
		TaskLoadSongplays: func(int) error { return errors.New("relation does not exist") },
	}))

	env.ExecuteWorkflow(WorkflowName, WorkflowInput{DAG: SparkifyDAG(), LogicalDate: runDate})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())

	assert.Equal(t, TaskRetries+1, log.count(TaskLoadSongplays))
	assert.Equal(t, 0, log.count(TaskLoadUsers))
	assert.Equal(t, 0, log.count(TaskQualityChecks))
}

func TestWorkflow_QualityFailureIsNotRetried(t *testing.T) {
	log := &callLog{}
	env := newEnv(fakeTasks(log, map[string]func(int) error{
		TaskQualityChecks: func(int) error {
			return &operators.QualityError{Table: "users", Column: "user_id", Expected: 0, Actual: 3, Err: operators.ErrNullMismatch}
		},
	}))

	env.ExecuteWorkflow(WorkflowName, WorkflowInput{DAG: SparkifyDAG(), LogicalDate: runDate})
	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, QualityErrorType, appErr.Type())
	assert.Contains(t, appErr.Error(), "users")
	assert.Equal(t, 1, log.count(TaskQualityChecks))
}
