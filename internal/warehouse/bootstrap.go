// Package warehouse builds and loads the sparkify star schema in a SQL
// warehouse. The schema is described once and rendered per dialect.
package warehouse

import (
	"context"
	"database/sql"

	"github.com/BartekS5/sparkify/internal/etl"
	"github.com/BartekS5/sparkify/pkg/logger"
)

// Options controls how the warehouse pipelines execute.
type Options struct {
	Policy   etl.Policy
	DryRun   bool
	Recorder etl.Recorder
	Logger   *logger.Logger
}

func (o Options) pipeline(name string, phases ...etl.Phase) *etl.Pipeline {
	p := etl.NewPipeline(name, phases...)
	p.DryRun = o.DryRun
	if o.Recorder != nil {
		p.Recorder = o.Recorder
	}
	if o.Logger != nil {
		p.Logger = o.Logger
	}
	return p
}

// CreateTables drops every table, then creates them again. Each of the
// two phases runs under opts.Policy.
func CreateTables(ctx context.Context, db *sql.DB, d Dialect, opts Options) (*etl.Summary, error) {
	drop := etl.NewPhase("drop tables", func(ctx context.Context) (int64, error) {
		return etl.ExecStatements(ctx, db, d.DropStatements(), opts.Policy)
	})
	create := etl.NewPhase("create tables", func(ctx context.Context) (int64, error) {
		return etl.ExecStatements(ctx, db, d.CreateStatements(), opts.Policy)
	})

	summary, err := opts.pipeline("create-tables", drop, create).Run(ctx)
	if err != nil {
		return summary, err
	}
	logger.Infof("Creating tables is completed (%d statements)", len(dropOrder)+len(Schema))
	return summary, nil
}
