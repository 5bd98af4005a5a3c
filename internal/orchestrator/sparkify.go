package orchestrator

import (
	"fmt"

	"github.com/BartekS5/sparkify/internal/config"
	"github.com/BartekS5/sparkify/internal/operators"
	"github.com/BartekS5/sparkify/internal/warehouse"
	"github.com/BartekS5/sparkify/pkg/logger"
	"github.com/BartekS5/sparkify/pkg/storage"
)

const DAGName = "sparkify_dag"

const (
	TaskStageEvents   = "stage_events"
	TaskStageSongs    = "stage_songs"
	TaskLoadSongplays = "load_songplays_fact_table"
	TaskLoadUsers     = "load_user_dim_table"
	TaskLoadSongs     = "load_song_dim_table"
	TaskLoadArtists   = "load_artist_dim_table"
	TaskLoadTime      = "load_time_dim_table"
	TaskQualityChecks = "run_data_quality_checks"
)

// SparkifyDAG is stage events and songs, then the fact load, then the four
// dimension loads, then the quality checks.
func SparkifyDAG() DAG {
	dims := []string{TaskLoadUsers, TaskLoadSongs, TaskLoadArtists, TaskLoadTime}
	d := DAG{Name: DAGName, Tasks: []Task{
		{ID: TaskStageEvents},
		{ID: TaskStageSongs},
		{ID: TaskLoadSongplays, Upstream: []string{TaskStageEvents, TaskStageSongs}},
	}}
	for _, id := range dims {
		d.Tasks = append(d.Tasks, Task{ID: id, Upstream: []string{TaskLoadSongplays}})
	}
	d.Tasks = append(d.Tasks, Task{ID: TaskQualityChecks, Upstream: dims})
	return d
}

// Tasks maps task ids to the operators that implement them.
type Tasks map[string]operators.Operator

// Deps are the shared resources the operators use.
type Deps struct {
	Conns       *operators.ConnRegistry
	Credentials operators.CredentialProvider
	Opener      warehouse.Opener
	Logger      *logger.Logger
}

// SparkifyTasks builds the operators for SparkifyDAG from cfg. The
// warehouse dialect is taken from the configured connection, so loads are
// rendered for the engine they run on.
func SparkifyTasks(cfg *config.Config, deps Deps) (Tasks, error) {
	connID := cfg.DAG.ConnID
	conn, err := cfg.Connection(connID)
	if err != nil {
		return nil, err
	}
	d, err := warehouse.ParseDialect(conn.Dialect)
	if err != nil {
		return nil, err
	}
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}

	events, err := storage.ParseLocation(cfg.S3.LogData)
	if err != nil {
		return nil, err
	}
	songs, err := storage.ParseLocation(cfg.S3.SongData)
	if err != nil {
		return nil, err
	}
	jsonPaths := "auto"
	if cfg.S3.LogJSONPath != "" {
		jp, err := storage.ParseLocation(cfg.S3.LogJSONPath)
		if err != nil {
			return nil, err
		}
		if jp.Bucket != events.Bucket || jp.Type != events.Type {
			return nil, fmt.Errorf("s3.log_jsonpath must live next to s3.log_data (%s)", events)
		}
		jsonPaths = jp.Prefix
	}
	eventsKey := events.Prefix
	if cfg.DAG.LogKey != "" {
		eventsKey = cfg.DAG.LogKey
	}

	stage := func(table string, loc storage.Location, key, jp, timeFormat string) *operators.StageToWarehouse {
		return &operators.StageToWarehouse{
			Table:         table,
			Bucket:        loc.Bucket,
			Key:           key,
			Region:        cfg.S3.Region,
			JSONPaths:     jp,
			TimeFormat:    timeFormat,
			ConnID:        connID,
			CredentialsID: cfg.DAG.CredentialsID,
			Scheme:        string(loc.Type),
			Conns:         deps.Conns,
			Credentials:   deps.Credentials,
			Opener:        deps.Opener,
			Logger:        log.Named(table),
		}
	}

	tasks := Tasks{
		TaskStageEvents: stage(warehouse.StagingEvents, events, eventsKey, jsonPaths, warehouse.EpochMillis),
		TaskStageSongs:  stage(warehouse.StagingSongs, songs, songs.Prefix, "auto", ""),
		TaskQualityChecks: &operators.DataQualityCheck{
			Checks: operators.ChecksFromConfig(cfg.DAG.Checks),
			ConnID: connID,
			Conns:  deps.Conns,
			Logger: log.Named("quality"),
		},
	}

	for id, table := range map[string]string{
		TaskLoadSongplays: warehouse.Songplays,
		TaskLoadUsers:     warehouse.Users,
		TaskLoadSongs:     warehouse.Songs,
		TaskLoadArtists:   warehouse.Artists,
		TaskLoadTime:      warehouse.Time,
	} {
		load, err := d.LoadFor(table)
		if err != nil {
			return nil, err
		}
		if table == warehouse.Songplays {
			tasks[id] = &operators.LoadFact{Load: load, ConnID: connID, Conns: deps.Conns, Logger: log.Named(table)}
			continue
		}
		tasks[id] = &operators.LoadDimension{Load: load, ConnID: connID, Conns: deps.Conns, Logger: log.Named(table)}
	}
	return tasks, nil
}

// Validate checks that every task of dag has an operator.
func (t Tasks) Validate(dag DAG) error {
	for _, task := range dag.Tasks {
		if _, ok := t[task.ID]; !ok {
			return fmt.Errorf("%w: no operator for %s", ErrUnknownTask, task.ID)
		}
	}
	return nil
}
