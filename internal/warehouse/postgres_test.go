package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/BartekS5/sparkify/pkg/database"
	"github.com/BartekS5/sparkify/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "sparkify",
				"POSTGRES_USER":     "sparkify",
				"POSTGRES_PASSWORD": "test_password",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://sparkify:test_password@%s:%s/sparkify?sslmode=disable", host, port.Port())
	db, err := database.ConnectSQL(ctx, "postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgres_BootstrapAndETL(t *testing.T) {
	ctx := context.Background()
	db := startPostgres(t)
	src, _ := seedStore(t)

	for i := 0; i < 2; i++ {
		_, err := CreateTables(ctx, db, Postgres, testOptions())
		require.NoError(t, err, "create-tables run %d", i+1)
	}

	stager := NewClientStager(localOpener, Postgres, logger.NewNop())
	_, err := RunETL(ctx, db, Postgres, src, stager, testOptions())
	require.NoError(t, err)

	assert.Equal(t, int64(4), count(t, db, "SELECT COUNT(*) FROM staging_events"))
	assert.Equal(t, int64(3), count(t, db, "SELECT COUNT(*) FROM staging_songs"))
	assert.Equal(t, int64(1), count(t, db, "SELECT COUNT(*) FROM songplays WHERE song_id = 'S1' AND artist_id = 'A1'"))

	var level string
	require.NoError(t, db.QueryRow("SELECT level FROM users WHERE user_id = 7").Scan(&level))
	assert.Equal(t, "paid", level)

	var weekday, week int
	require.NoError(t, db.QueryRow("SELECT weekday, week FROM time WHERE year = 2018 AND month = 1").Scan(&weekday, &week))
	assert.Equal(t, 0, weekday)
	assert.Equal(t, 1, week)
}
