package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BartekS5/sparkify/internal/etl"
	"github.com/BartekS5/sparkify/pkg/logger"
)

// StagePhase empties both staging tables and reloads them. Redshift uses
// server-side COPY; other dialects go through stager.
func StagePhase(db *sql.DB, d Dialect, src Sources, stager *ClientStager, policy etl.Policy) (etl.Phase, error) {
	truncate := []etl.Statement{
		{Name: "clear " + StagingEvents, SQL: d.DeleteAll(StagingEvents)},
		{Name: "clear " + StagingSongs, SQL: d.DeleteAll(StagingSongs)},
	}

	if d.SupportsCopy() {
		copies, err := CopyStatements(src)
		if err != nil {
			return nil, err
		}
		return etl.NewPhase("stage", func(ctx context.Context) (int64, error) {
			return etl.ExecStatements(ctx, db, append(truncate, copies...), policy)
		}), nil
	}

	if stager == nil {
		return nil, fmt.Errorf("dialect %s cannot COPY from S3 and no client stager is configured: %w", d, ErrUnsupported)
	}
	sources := []StageSource{
		{Table: StagingEvents, Location: src.LogData, JSONPaths: src.LogJSONPath},
		{Table: StagingSongs, Location: src.SongData, JSONPaths: "auto"},
	}
	return etl.NewPhase("stage", func(ctx context.Context) (int64, error) {
		return etl.InTx(ctx, db, func(tx *sql.Tx) (int64, error) {
			if _, err := etl.ExecAll(ctx, tx, truncate); err != nil {
				return 0, err
			}
			var total int64
			for _, s := range sources {
				n, err := stager.Stage(ctx, tx, s)
				total += n
				if err != nil {
					return total, &etl.StatementError{Statement: "stage " + s.Table, Err: err}
				}
			}
			return total, nil
		})
	}), nil
}

// TransformPhase rebuilds the star schema from the staging tables.
func TransformPhase(db *sql.DB, d Dialect, policy etl.Policy) etl.Phase {
	return etl.NewPhase("transform", func(ctx context.Context) (int64, error) {
		return etl.ExecStatements(ctx, db, d.InsertStatements(), policy)
	})
}

// RunETL stages the raw data and transforms it into the star schema.
func RunETL(ctx context.Context, db *sql.DB, d Dialect, src Sources, stager *ClientStager, opts Options) (*etl.Summary, error) {
	stage, err := StagePhase(db, d, src, stager, opts.Policy)
	if err != nil {
		return nil, err
	}

	summary, err := opts.pipeline("etl", stage, TransformPhase(db, d, opts.Policy)).Run(ctx)
	if err != nil {
		return summary, err
	}
	logger.Infof("Staging and transform are completed (%d rows)", summary.Rows())
	return summary, nil
}
