package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverName(t *testing.T) {
	for dialect, want := range map[string]string{
		"redshift":  "pgx",
		"postgres":  "pgx",
		"sqlserver": "sqlserver",
		"sqlite":    "sqlite",
	} {
		got, err := DriverName(dialect)
		require.NoError(t, err)
		assert.Equal(t, want, got, dialect)
	}

	_, err := DriverName("oracle")
	assert.Error(t, err)
}

func TestConnectSQL_SQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "dwh.db") + "?_pragma=foreign_keys(1)"

	db, err := ConnectSQL(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}
