package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BartekS5/sparkify/internal/config"
	"github.com/BartekS5/sparkify/internal/etl"
	"github.com/BartekS5/sparkify/internal/metrics"
	"github.com/BartekS5/sparkify/internal/metrics/prompush"
	"github.com/BartekS5/sparkify/internal/warehouse"
	"github.com/BartekS5/sparkify/pkg/database"
	"github.com/BartekS5/sparkify/pkg/logger"
	"github.com/BartekS5/sparkify/pkg/storage"
)

// app holds what every command needs: configuration, the logger, and
// the optional run-history and metrics backends.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	recorder etl.Recorder
	mongo    *etl.MongoRecorder
	closers  []func()
}

func setup(ctx context.Context, opts *GlobalOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.InitLogger(logger.Config{Mode: cfg.Log.Mode, Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, recorder: etl.NopRecorder{}}
	a.closers = append(a.closers, logger.Close)

	if cfg.Metrics.PushgatewayURL != "" {
		b, err := prompush.NewBackend(cfg.Metrics.Job, cfg.Metrics.PushgatewayURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		metrics.SetBackend(b)
		a.closers = append(a.closers, func() {
			if err := metrics.Flush(); err != nil {
				log.Warn("Failed to push metrics", "error", err)
			}
		})
	}

	if cfg.Mongo.URI != "" {
		client, err := database.ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mongo = etl.NewMongoRecorder(client, cfg.Mongo.Database, cfg.Mongo.Collection)
		a.recorder = a.mongo
		a.closers = append(a.closers, func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		})
	}

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// connectWarehouse validates the configuration and connects to the cluster.
func (a *app) connectWarehouse(ctx context.Context) (*sql.DB, warehouse.Dialect, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, "", err
	}
	d, err := warehouse.ParseDialect(a.cfg.Cluster.Dialect)
	if err != nil {
		return nil, "", err
	}
	db, err := database.ConnectSQL(ctx, string(d), a.cfg.Cluster.DSN())
	if err != nil {
		return nil, "", err
	}
	return db, d, nil
}

// opener opens object stores with the configured AWS settings.
func (a *app) opener(ctx context.Context, loc storage.Location) (storage.Storage, error) {
	return storage.New(ctx, loc, a.cfg.StorageOptions(), a.log)
}

func (a *app) options(policy string, dryRun bool) (warehouse.Options, error) {
	p, err := etl.ParsePolicy(policy)
	if err != nil {
		return warehouse.Options{}, err
	}
	return warehouse.Options{Policy: p, DryRun: dryRun, Recorder: a.recorder, Logger: a.log}, nil
}

func runCreateTables(ctx context.Context, opts *GlobalOptions, wopts *WarehouseOptions) error {
	a, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	db, d, err := a.connectWarehouse(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	o, err := a.options(wopts.Policy, wopts.DryRun)
	if err != nil {
		return err
	}
	_, err = warehouse.CreateTables(ctx, db, d, o)
	return err
}

func runETL(ctx context.Context, opts *GlobalOptions, wopts *WarehouseOptions, w io.Writer) error {
	a, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	db, d, err := a.connectWarehouse(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	o, err := a.options(wopts.Policy, wopts.DryRun)
	if err != nil {
		return err
	}
	src := warehouse.Sources{
		LogData:     a.cfg.S3.LogData,
		LogJSONPath: a.cfg.S3.LogJSONPath,
		SongData:    a.cfg.S3.SongData,
		Region:      a.cfg.S3.Region,
		IAMRole:     a.cfg.IAMRole.ARN,
	}
	var stager *warehouse.ClientStager
	if !d.SupportsCopy() {
		stager = warehouse.NewClientStager(a.opener, d, a.log.Named("stager"))
	}

	summary, err := warehouse.RunETL(ctx, db, d, src, stager, o)
	if summary != nil {
		printSummary(w, summary)
	}
	return err
}

func runLake(ctx context.Context, opts *GlobalOptions, lopts *LakeOptions, w io.Writer) error {
	a, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	input, output := a.cfg.Lake.Input, a.cfg.Lake.Output
	if lopts.Input != "" {
		input = lopts.Input
	}
	if lopts.Output != "" {
		output = lopts.Output
	}

	p, err := newLakePipeline(ctx, a, input, output)
	if err != nil {
		return err
	}
	p.DryRun = lopts.DryRun

	summary, err := p.Run(ctx)
	if summary != nil {
		printSummary(w, summary)
	}
	return err
}

func printSummary(w io.Writer, s *etl.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "RUN %s\n", s.RunID)
	fmt.Fprintln(tw, "PHASE\tSTATUS\tROWS\tDURATION")
	for _, r := range s.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Phase, r.Status, r.Rows, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	tw.Flush()
}

func printRuns(w io.Writer, runs []etl.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tPIPELINE\tPHASE\tSTATUS\tROWS\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.StartedAt.Format(time.RFC3339), r.Pipeline, r.Phase, r.Status, r.Rows, firstLine(r.Error))
	}
	tw.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
