package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"

	"github.com/BartekS5/sparkify/internal/operators"
	"github.com/BartekS5/sparkify/internal/orchestrator"
)

type DAGOptions struct {
	Local bool
	Date  string
}

func NewDAGCmd(opts *GlobalOptions) *cobra.Command {
	dopts := &DAGOptions{}
	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Orchestrated pipeline: stage, load fact, load dimensions, check quality",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the DAG once, through Temporal or in-process with --local",
		RunE: func(c *cobra.Command, args []string) error {
			return runDAG(c.Context(), opts, dopts, c.OutOrStdout())
		},
	}
	run.Flags().BoolVar(&dopts.Local, "local", false, "Run in-process without a Temporal cluster")
	run.Flags().StringVar(&dopts.Date, "date", "", "Logical date (RFC3339 or YYYY-MM-DD); defaults to the current hour")

	work := &cobra.Command{
		Use:   "worker",
		Short: "Host the DAG workflow and task activity on the Temporal task queue",
		RunE: func(c *cobra.Command, args []string) error {
			return runWorker(c.Context(), opts)
		},
	}

	schedule := &cobra.Command{
		Use:   "schedule",
		Short: "Register the recurring DAG schedule with Temporal",
		RunE: func(c *cobra.Command, args []string) error {
			return runSchedule(c.Context(), opts)
		},
	}

	cmd.AddCommand(run, work, schedule)
	return cmd
}

type QualityOptions struct {
	ConnID string
}

func NewQualityCmd(opts *GlobalOptions) *cobra.Command {
	qopts := &QualityOptions{}
	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Run the data-quality checks against the warehouse",
		RunE: func(c *cobra.Command, args []string) error {
			return runQuality(c.Context(), opts, qopts)
		},
	}
	cmd.Flags().StringVar(&qopts.ConnID, "conn", "", "Connection id (defaults to dag.conn_id)")
	return cmd
}

type HistoryOptions struct {
	Pipeline string
	Limit    int
}

func NewHistoryCmd(opts *GlobalOptions) *cobra.Command {
	hopts := &HistoryOptions{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded pipeline and task runs",
		RunE: func(c *cobra.Command, args []string) error {
			return runHistory(c.Context(), opts, hopts, c.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&hopts.Pipeline, "pipeline", "p", "", "Only show runs of this pipeline (create_tables, etl, lake, sparkify_dag)")
	cmd.Flags().IntVarP(&hopts.Limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

func parseLogicalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(time.Hour), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --date %q", s)
}

// tasks builds the DAG operators. The returned registry must be closed.
func (a *app) tasks() (orchestrator.Tasks, *operators.ConnRegistry, error) {
	conns := operators.NewConnRegistry(a.cfg, a.log)
	tasks, err := orchestrator.SparkifyTasks(a.cfg, orchestrator.Deps{
		Conns: conns,
		Credentials: operators.AWSCredentials{
			Options:  a.cfg.StorageOptions(),
			Profiles: a.cfg.DAG.AWSProfiles,
		},
		Opener: a.opener,
		Logger: a.log,
	})
	if err != nil {
		conns.Close()
		return nil, nil, err
	}
	return tasks, conns, nil
}

func runDAG(ctx context.Context, opts *GlobalOptions, dopts *DAGOptions, w io.Writer) error {
	date, err := parseLogicalDate(dopts.Date)
	if err != nil {
		return err
	}
	a, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	dag := orchestrator.SparkifyDAG()
	var results []orchestrator.TaskResult

	if dopts.Local {
		tasks, conns, err := a.tasks()
		if err != nil {
			return err
		}
		defer conns.Close()

		runner := &orchestrator.LocalRunner{DAG: dag, Tasks: tasks, Recorder: a.recorder, Logger: a.log}
		results, err = runner.Run(ctx, date)
		printResults(w, results)
		return err
	}

	c, err := orchestrator.Dial(ctx, a.cfg.Temporal, a.log)
	if err != nil {
		return err
	}
	defer c.Close()

	run, err := orchestrator.StartRun(ctx, c, a.cfg.Temporal.TaskQueue, dag, date)
	if err != nil {
		return err
	}
	a.log.Info("Started DAG run", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "logical_date", date)
	err = run.Get(ctx, &results)
	printResults(w, results)
	return err
}

func runWorker(ctx context.Context, opts *GlobalOptions) error {
	a, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	tasks, conns, err := a.tasks()
	if err != nil {
		return err
	}
	defer conns.Close()

	c, err := orchestrator.Dial(ctx, a.cfg.Temporal, a.log)
	if err != nil {
		return err
	}
	defer c.Close()

	w := orchestrator.NewWorker(c, a.cfg.Temporal.TaskQueue, &orchestrator.Activities{
		Tasks:    tasks,
		Recorder: a.recorder,
		Logger:   a.log.Named("worker"),
	})
	a.log.Info("Starting Temporal worker", "address", a.cfg.Temporal.Address, "namespace", a.cfg.Temporal.Namespace, "task_queue", a.cfg.Temporal.TaskQueue)
	return w.Run(worker.InterruptCh())
}

func runSchedule(ctx context.Context, opts *GlobalOptions) error {
	a, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := orchestrator.Dial(ctx, a.cfg.Temporal, a.log)
	if err != nil {
		return err
	}
	defer c.Close()

	return orchestrator.EnsureSchedule(ctx, c, a.cfg.Temporal.TaskQueue, orchestrator.SparkifyDAG(), a.cfg.DAG.Interval, a.log)
}

func runQuality(ctx context.Context, opts *GlobalOptions, qopts *QualityOptions) error {
	a, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	connID := qopts.ConnID
	if connID == "" {
		connID = a.cfg.DAG.ConnID
	}
	conns := operators.NewConnRegistry(a.cfg, a.log)
	defer conns.Close()

	check := &operators.DataQualityCheck{
		Checks: operators.ChecksFromConfig(a.cfg.DAG.Checks),
		ConnID: connID,
		Conns:  conns,
		Logger: a.log.Named("quality"),
	}
	n, err := check.Execute(ctx, operators.RunContext{RunID: "manual", LogicalDate: time.Now().UTC()})
	if err != nil {
		return err
	}
	a.log.Info("Data quality checks passed", "checks", n)
	return nil
}

var errNoHistory = errors.New("run history needs mongo.uri (MONGO_CONNECTION_STRING)")

func runHistory(ctx context.Context, opts *GlobalOptions, hopts *HistoryOptions, w io.Writer) error {
	a, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.mongo == nil {
		return errNoHistory
	}
	runs, err := a.mongo.Recent(ctx, hopts.Pipeline, hopts.Limit)
	if err != nil {
		return err
	}
	printRuns(w, runs)
	return nil
}

func printResults(w io.Writer, results []orchestrator.TaskResult) {
	for _, r := range results {
		fmt.Fprintf(w, "%-28s rows=%d\n", r.TaskID, r.Rows)
	}
}
