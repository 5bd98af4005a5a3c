package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/sparkify/pkg/database"
	"github.com/BartekS5/sparkify/pkg/storage"
)

const (
	logJSONPaths = `{"jsonpaths": ["$['artist']", "$['auth']", "$['firstName']", "$['gender']", "$['itemInSession']", "$['lastName']", "$['length']", "$['level']", "$['location']", "$['method']", "$['page']", "$['registration']", "$['sessionId']", "$['song']", "$['status']", "$['ts']", "$['userAgent']", "$['userId']"]}`
	event        = `{"artist":"Y","auth":"Logged In","firstName":"Lily","gender":"F","itemInSession":0,"lastName":"Koch","length":180.0,"level":"free","location":"Chicago, IL","method":"PUT","page":"NextSong","registration":1541048010796.0,"sessionId":1,"song":"X","status":200,"ts":1541105830796,"userAgent":"Mozilla/5.0","userId":"7"}`
	song         = `{"num_songs": 1, "artist_id": "A1", "artist_latitude": 41.88, "artist_longitude": -87.63, "artist_location": "Chicago", "artist_name": "Y", "song_id": "S1", "title": "X", "duration": 180.0, "year": 2000}`
)

// fixture seeds a local object store and writes a config for a sqlite
// warehouse reading from it.
func fixture(t *testing.T) (cfgPath, dbPath, root string) {
	t.Helper()
	t.Setenv("MONGO_CONNECTION_STRING", "")
	t.Setenv("METRICS_PUSHGATEWAY_URL", "")

	root = t.TempDir()
	store, err := storage.NewLocalStorage(root)
	require.NoError(t, err)
	for key, body := range map[string]string{
		"data/log_json_path.json":                      logJSONPaths,
		"data/log_data/2018/11/2018-11-01-events.json": event,
		"data/song_data/A/A/A/TRAAAS1.json":            song,
	} {
		require.NoError(t, store.Put(context.Background(), key, strings.NewReader(body), int64(len(body))))
	}

	dbPath = filepath.Join(t.TempDir(), "dwh.db")
	yaml := `
cluster:
  dialect: sqlite
  path: ` + dbPath + `
s3:
  log_data: file://` + root + `/data/log_data
  log_jsonpath: file://` + root + `/data/log_json_path.json
  song_data: file://` + root + `/data/song_data
lake:
  input: file://` + root + `/data/
  output: file://` + root + `/lake/
log:
  level: error
`
	cfgPath = filepath.Join(t.TempDir(), "sparkify.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))
	return cfgPath, dbPath, root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"create-tables", "etl", "lake", "dag", "quality", "history"})

	dag, _, err := cmd.Find([]string{"dag", "run"})
	require.NoError(t, err)
	assert.NotNil(t, dag.Flags().Lookup("local"))
}

func TestCreateTablesThenETL_OnSQLite(t *testing.T) {
	cfgPath, dbPath, _ := fixture(t)

	_, err := execute(t, "-c", cfgPath, "create-tables")
	require.NoError(t, err)

	out, err := execute(t, "-c", cfgPath, "etl")
	require.NoError(t, err)
	assert.Contains(t, out, "stage")
	assert.Contains(t, out, "transform")

	db, err := database.ConnectSQL(context.Background(), "sqlite", "file:"+dbPath+"?_time_format=sqlite")
	require.NoError(t, err)
	defer db.Close()

	var songID string
	require.NoError(t, db.QueryRow("SELECT song_id FROM songplays").Scan(&songID))
	assert.Equal(t, "S1", songID)
}

func TestETL_RejectsUnknownPolicy(t *testing.T) {
	cfgPath, _, _ := fixture(t)
	_, err := execute(t, "-c", cfgPath, "etl", "--policy", "best-effort")
	assert.ErrorContains(t, err, "unknown policy")
}

func TestLake_WritesTables(t *testing.T) {
	cfgPath, _, root := fixture(t)

	out, err := execute(t, "-c", cfgPath, "lake")
	require.NoError(t, err)
	assert.Contains(t, out, "process log data")

	for _, dir := range []string{"songs.parquet", "artists.parquet", "users.parquet", "time.parquet", "songplays.parquet"} {
		_, err := os.Stat(filepath.Join(root, "lake", dir, "_SUCCESS"))
		assert.NoError(t, err, dir)
	}
}

func TestHistory_RequiresMongo(t *testing.T) {
	cfgPath, _, _ := fixture(t)
	_, err := execute(t, "-c", cfgPath, "history")
	assert.ErrorIs(t, err, errNoHistory)
}

func TestParseLogicalDate(t *testing.T) {
	d, err := parseLogicalDate("2018-11-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2018, 11, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = parseLogicalDate("2018-11-01T05:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2018, 11, 1, 3, 0, 0, 0, time.UTC), d)

	d, err = parseLogicalDate("")
	require.NoError(t, err)
	assert.Zero(t, d.Minute())

	_, err = parseLogicalDate("yesterday")
	assert.Error(t, err)
}
