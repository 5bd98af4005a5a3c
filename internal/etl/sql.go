package etl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/BartekS5/sparkify/pkg/logger"
)

// Policy decides what happens when a statement in a list fails.
type Policy int

const (
	// AbortOnError runs the whole list in one transaction. The first
	// failure rolls everything back and is returned.
	AbortOnError Policy = iota
	// CollectErrors runs every statement in its own transaction and
	// returns all failures joined.
	CollectErrors
)

func (p Policy) String() string {
	switch p {
	case AbortOnError:
		return "abort-on-error"
	case CollectErrors:
		return "collect-errors"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts the names printed by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "abort-on-error":
		return AbortOnError, nil
	case "collect-errors":
		return CollectErrors, nil
	default:
		return 0, fmt.Errorf("unknown policy %q (want abort-on-error or collect-errors)", s)
	}
}

// Statement is a named SQL statement.
type Statement struct {
	Name string
	SQL  string
	Args []interface{}
}

// Execer is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// StatementError identifies the statement that failed.
type StatementError struct {
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %s: %v", e.Statement, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// ExecStatements runs stmts against db under policy and returns the total
// rows affected as reported by the driver.
func ExecStatements(ctx context.Context, db *sql.DB, stmts []Statement, policy Policy) (int64, error) {
	switch policy {
	case CollectErrors:
		var total int64
		var errs []error
		for _, st := range stmts {
			n, err := InTx(ctx, db, func(tx *sql.Tx) (int64, error) {
				return ExecAll(ctx, tx, []Statement{st})
			})
			if err != nil {
				logger.Errorf("Statement %s failed: %v", st.Name, err)
				errs = append(errs, err)
				continue
			}
			total += n
		}
		return total, errors.Join(errs...)
	default:
		return InTx(ctx, db, func(tx *sql.Tx) (int64, error) {
			return ExecAll(ctx, tx, stmts)
		})
	}
}

// ExecAll runs stmts in order on ex, stopping at the first error.
func ExecAll(ctx context.Context, ex Execer, stmts []Statement) (int64, error) {
	var total int64
	for _, st := range stmts {
		res, err := ex.ExecContext(ctx, st.SQL, st.Args...)
		if err != nil {
			return total, &StatementError{Statement: st.Name, Err: err}
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			total += n
		}
	}
	return total, nil
}

// InTx runs fn inside a transaction, committing on success and rolling
// back on error.
func InTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (int64, error)) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}

	n, err := fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return n, errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// QueryInt64 runs a single-value query such as SELECT COUNT(*).
func QueryInt64(ctx context.Context, db *sql.DB, query string, args ...interface{}) (int64, error) {
	var n sql.NullInt64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n.Int64, nil
}
