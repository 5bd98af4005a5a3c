package operators

import (
	"context"
	"fmt"
	"strings"

	"github.com/BartekS5/sparkify/internal/warehouse"
	"github.com/BartekS5/sparkify/pkg/logger"
)

// LoadFact replaces the contents of the fact table with the result of
// Load.Query. Set Append to keep the existing rows.
type LoadFact struct {
	Load   warehouse.Load
	Append bool
	ConnID string

	Conns  *ConnRegistry
	Logger *logger.Logger
}

func (o *LoadFact) Execute(ctx context.Context, _ RunContext) (int64, error) {
	return loadTable(ctx, o.Conns, o.ConnID, o.Load, !o.Append, orDefault(o.Logger).With("task_table", o.Load.Table))
}

// LoadDimension replaces the contents of a dimension table with the result
// of Load.Query. Set Append to keep the existing rows.
type LoadDimension struct {
	Load   warehouse.Load
	Append bool
	ConnID string

	Conns  *ConnRegistry
	Logger *logger.Logger
}

func (o *LoadDimension) Execute(ctx context.Context, _ RunContext) (int64, error) {
	return loadTable(ctx, o.Conns, o.ConnID, o.Load, !o.Append, orDefault(o.Logger).With("task_table", o.Load.Table))
}

func loadTable(ctx context.Context, conns *ConnRegistry, connID string, load warehouse.Load, truncate bool, log *logger.Logger) (int64, error) {
	if load.Table == "" || strings.TrimSpace(load.Query) == "" {
		return 0, fmt.Errorf("load needs a table and a query")
	}
	conn, err := conns.Get(ctx, connID)
	if err != nil {
		return 0, err
	}

	if truncate {
		log.Info("Truncating table")
		if _, err := conn.DB.ExecContext(ctx, conn.Dialect.Truncate(load.Table)); err != nil {
			return 0, fmt.Errorf("truncate %s: %w", load.Table, err)
		}
	}

	log.Info("Loading table")
	res, err := conn.DB.ExecContext(ctx, load.InsertSQL())
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", load.Table, err)
	}
	n := rowsAffected(res)
	log.Info("Successfully loaded table", "rows", n)
	return n, nil
}
