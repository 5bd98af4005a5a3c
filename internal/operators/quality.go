package operators

import (
	"context"
	"errors"
	"fmt"

	"github.com/BartekS5/sparkify/internal/config"
	"github.com/BartekS5/sparkify/internal/etl"
	"github.com/BartekS5/sparkify/internal/warehouse"
	"github.com/BartekS5/sparkify/pkg/logger"
)

var (
	// ErrNoRows means a checked table is empty.
	ErrNoRows = errors.New("table has no rows")
	// ErrNullMismatch means a column's null count differs from the
	// expected count.
	ErrNullMismatch = errors.New("null count mismatch")
)

// QualityError describes the first failed data-quality check.
type QualityError struct {
	Table    string
	Column   string
	Expected int64
	Actual   int64
	Err      error
}

func (e *QualityError) Error() string {
	if errors.Is(e.Err, ErrNoRows) {
		return fmt.Sprintf("data quality check failed: 0 rows in table %s", e.Table)
	}
	return fmt.Sprintf("data quality check failed: null count for column %s on table %s expected %d, got %d",
		e.Column, e.Table, e.Expected, e.Actual)
}

func (e *QualityError) Unwrap() error { return e.Err }

// Check asserts that Table is non-empty and that Column holds exactly
// ExpectedNulls nulls.
type Check struct {
	Table         string
	Column        string
	ExpectedNulls int64
}

// DataQualityCheck runs its checks in order and stops at the first
// violation.
type DataQualityCheck struct {
	Checks []Check
	ConnID string

	Conns  *ConnRegistry
	Logger *logger.Logger
}

func (o *DataQualityCheck) Execute(ctx context.Context, _ RunContext) (int64, error) {
	log := orDefault(o.Logger)
	conn, err := o.Conns.Get(ctx, o.ConnID)
	if err != nil {
		return 0, err
	}

	for _, c := range o.Checks {
		n, err := etl.QueryInt64(ctx, conn.DB, "SELECT COUNT(*) FROM "+c.Table)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", c.Table, err)
		}
		if n < 1 {
			return 0, &QualityError{Table: c.Table, Column: c.Column, Expected: c.ExpectedNulls, Err: ErrNoRows}
		}
		log.Info("Record count check passed", "table", c.Table, "rows", n)

		nulls, err := etl.QueryInt64(ctx, conn.DB, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", c.Table, c.Column))
		if err != nil {
			return 0, fmt.Errorf("count nulls in %s.%s: %w", c.Table, c.Column, err)
		}
		if nulls != c.ExpectedNulls {
			return 0, &QualityError{Table: c.Table, Column: c.Column, Expected: c.ExpectedNulls, Actual: nulls, Err: ErrNullMismatch}
		}
		log.Info("Null check passed", "table", c.Table, "column", c.Column, "nulls", nulls)
	}
	return int64(len(o.Checks)), nil
}

// DefaultChecks mirror the usual post-load assertions: every table has
// rows and no key column is null.
func DefaultChecks() []Check {
	return []Check{
		{Table: warehouse.Songplays, Column: "songplay_id"},
		{Table: warehouse.Users, Column: "user_id"},
		{Table: warehouse.Songs, Column: "song_id"},
		{Table: warehouse.Artists, Column: "artist_id"},
		{Table: warehouse.Time, Column: "start_time"},
	}
}

// ChecksFromConfig converts configured checks, falling back to
// DefaultChecks when none are configured.
func ChecksFromConfig(cfg []config.QualityCheck) []Check {
	if len(cfg) == 0 {
		return DefaultChecks()
	}
	checks := make([]Check, len(cfg))
	for i, c := range cfg {
		checks[i] = Check{Table: c.Table, Column: c.Column, ExpectedNulls: c.ExpectedNulls}
	}
	return checks
}
