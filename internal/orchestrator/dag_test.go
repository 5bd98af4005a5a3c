package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparkifyDAG_Levels(t *testing.T) {
	levels, err := SparkifyDAG().Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{TaskStageEvents, TaskStageSongs},
		{TaskLoadSongplays},
		{TaskLoadUsers, TaskLoadSongs, TaskLoadArtists, TaskLoadTime},
		{TaskQualityChecks},
	}, levels)
}

func TestDAG_Levels_RejectsBadGraphs(t *testing.T) {
	_, err := DAG{Name: "loop", Tasks: []Task{
		{ID: "a", Upstream: []string{"b"}},
		{ID: "b", Upstream: []string{"a"}},
		{ID: "c"},
	}}.Levels()
	assert.ErrorIs(t, err, ErrCycle)

	_, err = DAG{Name: "dangling", Tasks: []Task{{ID: "a", Upstream: []string{"ghost"}}}}.Levels()
	assert.ErrorIs(t, err, ErrUnknownTask)

	_, err = DAG{Name: "dup", Tasks: []Task{{ID: "a"}, {ID: "a"}}}.Levels()
	assert.Error(t, err)
}

func TestTasks_Validate(t *testing.T) {
	err := Tasks{TaskStageEvents: nil}.Validate(SparkifyDAG())
	assert.ErrorIs(t, err, ErrUnknownTask)
}
