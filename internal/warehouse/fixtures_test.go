package warehouse

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BartekS5/sparkify/pkg/database"
	"github.com/BartekS5/sparkify/pkg/logger"
	"github.com/BartekS5/sparkify/pkg/storage"
	"github.com/stretchr/testify/require"
)

const logJSONPaths = `{
  "jsonpaths": [
    "$['artist']", "$['auth']", "$['firstName']", "$['gender']", "$['itemInSession']",
    "$['lastName']", "$['length']", "$['level']", "$['location']", "$['method']",
    "$['page']", "$['registration']", "$['sessionId']", "$['song']", "$['status']",
    "$['ts']", "$['userAgent']", "$['userId']"
  ]
}`

// User 7 plays "X" by "Y" on the free tier, then upgrades. User 8 plays
// "X" on Sunday 2018-01-07 but with a duration that matches no catalog row.
const eventsNDJSON = `{"artist":"Y","auth":"Logged In","firstName":"Lily","gender":"F","itemInSession":0,"lastName":"Koch","length":180.0,"level":"free","location":"Chicago, IL","method":"PUT","page":"NextSong","registration":1541048010796.0,"sessionId":1,"song":"X","status":200,"ts":1541105830796,"userAgent":"Mozilla/5.0","userId":"7"}
{"artist":"Y","auth":"Logged In","firstName":"Lily","gender":"F","itemInSession":0,"lastName":"Koch","length":200.0,"level":"paid","location":"Chicago, IL","method":"PUT","page":"NextSong","registration":1541048010796.0,"sessionId":2,"song":"Nope","status":200,"ts":1541106106796,"userAgent":"Mozilla/5.0","userId":"7"}
{"artist":null,"auth":"Logged Out","firstName":null,"gender":null,"itemInSession":0,"lastName":null,"length":null,"level":"free","location":null,"method":"GET","page":"Home","registration":null,"sessionId":3,"song":null,"status":200,"ts":1541107000000,"userAgent":null,"userId":""}
{"artist":"Y","auth":"Logged In","firstName":"Ryan","gender":"M","itemInSession":4,"lastName":"Smith","length":181.0,"level":"free","location":"San Jose, CA","method":"PUT","page":"NextSong","registration":1541016707796.0,"sessionId":4,"song":"X","status":200,"ts":1515319200000,"userAgent":"Mozilla/5.0","userId":"8"}
`

var songFiles = map[string]string{
	"song_data/A/A/A/TRAAAS1.json": `{"num_songs": 1, "artist_id": "A1", "artist_latitude": 41.88, "artist_longitude": -87.63, "artist_location": "Chicago", "artist_name": "Y", "song_id": "S1", "title": "X", "duration": 180.0, "year": 2000}`,
	"song_data/A/A/B/TRAABS2.json": `{"num_songs": 1, "artist_id": "A2", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "Z", "song_id": "S2", "title": "Other", "duration": 100.0, "year": 0}`,
	"song_data/A/B/C/TRABCS3.json": `{"num_songs": 1, "artist_id": "A1", "artist_latitude": 41.88, "artist_longitude": -87.63, "artist_location": "Chicago", "artist_name": "Y", "song_id": "S3", "title": "Another", "duration": 150.0, "year": 2004}`,
}

// seedStore writes the raw datasets to a local object store and returns
// the sources pointing at it.
func seedStore(t *testing.T) (Sources, string) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewLocalStorage(root)
	require.NoError(t, err)

	put := func(key, body string) {
		require.NoError(t, store.Put(context.Background(), key, strings.NewReader(body), int64(len(body))))
	}
	put("log_json_path.json", logJSONPaths)
	put("log_data/2018/11/2018-11-01-events.json", eventsNDJSON)
	for k, v := range songFiles {
		put(k, v)
	}

	return Sources{
		LogData:     "file://" + root + "/log_data",
		LogJSONPath: "file://" + root + "/log_json_path.json",
		SongData:    "file://" + root + "/song_data",
		Region:      "us-west-2",
	}, root
}

func localOpener(ctx context.Context, loc storage.Location) (storage.Storage, error) {
	return storage.New(ctx, loc, storage.Options{}, logger.NewNop())
}

func openWarehouse(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "dwh.db") + "?_pragma=foreign_keys(1)&_time_format=sqlite"
	db, err := database.ConnectSQL(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testOptions() Options {
	return Options{Logger: logger.NewNop()}
}

func count(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.QueryRow(query).Scan(&n))
	return n
}
