package warehouse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropStatements_OrderAndCascade(t *testing.T) {
	stmts := Redshift.DropStatements()
	require.Len(t, stmts, 7)
	assert.Equal(t, "DROP TABLE IF EXISTS staging_events CASCADE", stmts[0].SQL)
	assert.Equal(t, "DROP TABLE IF EXISTS songplays CASCADE", stmts[2].SQL)
	assert.Equal(t, "DROP TABLE IF EXISTS time CASCADE", stmts[6].SQL)

	assert.Equal(t, "DROP TABLE IF EXISTS songplays", SQLite.DropStatements()[2].SQL)
}

func TestCreateStatements_DimensionsBeforeFact(t *testing.T) {
	stmts := Redshift.CreateStatements()
	var names []string
	for _, s := range stmts {
		names = append(names, strings.TrimPrefix(s.Name, "create "))
	}
	assert.Equal(t, []string{"staging_events", "staging_songs", "users", "songs", "artists", "time", "songplays"}, names)

	users := stmts[2].SQL
	assert.Contains(t, users, "user_id INT SORTKEY PRIMARY KEY")
	assert.True(t, strings.HasSuffix(users, "DISTSTYLE ALL"))

	songplays := stmts[6].SQL
	assert.Contains(t, songplays, "songplay_id INT IDENTITY(0,1) SORTKEY PRIMARY KEY")
	assert.Contains(t, songplays, "user_id INT DISTKEY REFERENCES users(user_id)")
	assert.Contains(t, songplays, "start_time TIMESTAMP REFERENCES time(start_time)")
}

func TestCreateTable_PerDialect(t *testing.T) {
	sqlite := SQLite.CreateTable(songplaysTable)
	assert.Contains(t, sqlite, "songplay_id INTEGER PRIMARY KEY AUTOINCREMENT,")
	assert.NotContains(t, sqlite, "SORTKEY")

	pg := Postgres.CreateTable(songplaysTable)
	assert.Contains(t, pg, "songplay_id INT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY")
	assert.NotContains(t, pg, "DISTKEY")

	mssql := SQLServer.CreateTable(songsTable)
	assert.True(t, strings.HasPrefix(mssql, "IF OBJECT_ID(N'songs', N'U') IS NULL"))
	assert.Contains(t, mssql, "song_id NVARCHAR(255) PRIMARY KEY")
	assert.Contains(t, mssql, "title NVARCHAR(MAX)")
}

func TestCopyStatements(t *testing.T) {
	stmts, err := CopyStatements(Sources{
		LogData:     "s3://udacity-dend/log_data",
		LogJSONPath: "s3://udacity-dend/log_json_path.json",
		SongData:    "s3://udacity-dend/song_data",
		Region:      "us-west-2",
		IAMRole:     "arn:aws:iam::123:role/dwhRole",
	})
	require.NoError(t, err)
	require.Len(t, stmts, 2)

	assert.Equal(t, `COPY staging_events
FROM 's3://udacity-dend/log_data'
IAM_ROLE 'arn:aws:iam::123:role/dwhRole'
REGION 'us-west-2'
FORMAT AS JSON 's3://udacity-dend/log_json_path.json'
TIMEFORMAT AS 'epochmillisecs'`, stmts[0].SQL)
	assert.True(t, strings.HasSuffix(stmts[1].SQL, "FORMAT AS JSON 'auto'"))
}

func TestCopyStatement_AccessKeys(t *testing.T) {
	sql, err := CopyStatement(CopyOptions{
		Table:           "staging_songs",
		From:            "s3://bucket/song_data",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
		SessionToken:    "tok",
		Region:          "us-west-2",
	})
	require.NoError(t, err)
	assert.Contains(t, sql, "ACCESS_KEY_ID 'AKIA'\nSECRET_ACCESS_KEY 'secret'\nSESSION_TOKEN 'tok'\n")
	assert.Contains(t, sql, "FORMAT AS JSON 'auto'")

	_, err = CopyStatement(CopyOptions{Table: "staging_songs", From: "s3://bucket/x"})
	assert.Error(t, err)
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, `'Des''ree'`, QuoteLiteral("Des'ree"))
}

func TestLoads_Order(t *testing.T) {
	var tables []string
	for _, l := range Postgres.Loads() {
		tables = append(tables, l.Table)
	}
	assert.Equal(t, []string{"users", "songs", "artists", "time", "songplays"}, tables)

	l, err := Redshift.LoadFor(Songplays)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(l.InsertSQL(),
		"INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)\nSELECT"))

	_, err = Redshift.LoadFor("staging_events")
	assert.Error(t, err)
}

func TestDatePart_WeekdayConvention(t *testing.T) {
	assert.Equal(t, "EXTRACT(dayofweek FROM ts)", Redshift.datePart("weekday", "ts"))
	assert.Equal(t, "CAST(EXTRACT(dow FROM ts) AS INT)", Postgres.datePart("weekday", "ts"))
	assert.Equal(t, "(DATEPART(weekday, ts) + @@DATEFIRST - 1) % 7", SQLServer.datePart("weekday", "ts"))
	assert.Equal(t, "CAST(strftime('%w', ts) AS INTEGER)", SQLite.datePart("weekday", "ts"))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect(" Redshift ")
	require.NoError(t, err)
	assert.Equal(t, Redshift, d)
	assert.True(t, d.SupportsCopy())
	assert.False(t, SQLite.SupportsCopy())

	_, err = ParseDialect("oracle")
	assert.Error(t, err)
}
