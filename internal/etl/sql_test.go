package etl

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "etl.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec("CREATE TABLE users (user_id INTEGER PRIMARY KEY, level TEXT)")
	require.NoError(t, err)
	return db
}

func countUsers(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	n, err := QueryInt64(context.Background(), db, "SELECT COUNT(*) FROM users")
	require.NoError(t, err)
	return n
}

func TestExecStatements_AbortRollsBackWholePhase(t *testing.T) {
	db := openSQLite(t)
	stmts := []Statement{
		{Name: "insert 1", SQL: "INSERT INTO users VALUES (1, 'free')"},
		{Name: "insert dup", SQL: "INSERT INTO users VALUES (1, 'paid')"},
		{Name: "insert 2", SQL: "INSERT INTO users VALUES (2, 'free')"},
	}

	_, err := ExecStatements(context.Background(), db, stmts, AbortOnError)
	require.Error(t, err)

	var stErr *StatementError
	require.ErrorAs(t, err, &stErr)
	assert.Equal(t, "insert dup", stErr.Statement)
	assert.Zero(t, countUsers(t, db))
}

func TestExecStatements_CollectKeepsGoing(t *testing.T) {
	db := openSQLite(t)
	stmts := []Statement{
		{Name: "insert 1", SQL: "INSERT INTO users VALUES (1, 'free')"},
		{Name: "insert dup", SQL: "INSERT INTO users VALUES (1, 'paid')"},
		{Name: "bad table", SQL: "INSERT INTO nope VALUES (1)"},
		{Name: "insert 2", SQL: "INSERT INTO users VALUES (2, 'free')"},
	}

	n, err := ExecStatements(context.Background(), db, stmts, CollectErrors)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert dup")
	assert.Contains(t, err.Error(), "bad table")
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int64(2), countUsers(t, db))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("collect-errors")
	require.NoError(t, err)
	assert.Equal(t, CollectErrors, p)
	assert.Equal(t, "abort-on-error", AbortOnError.String())

	_, err = ParsePolicy("yolo")
	assert.Error(t, err)
}
