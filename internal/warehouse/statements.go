package warehouse

import (
	"fmt"
	"strings"

	"github.com/BartekS5/sparkify/internal/etl"
)

// DropStatements drops every table, dependents first.
func (d Dialect) DropStatements() []etl.Statement {
	stmts := make([]etl.Statement, 0, len(dropOrder))
	for _, name := range dropOrder {
		stmts = append(stmts, etl.Statement{Name: "drop " + name, SQL: d.DropTable(name)})
	}
	return stmts
}

// CreateStatements creates every table in dependency order.
func (d Dialect) CreateStatements() []etl.Statement {
	stmts := make([]etl.Statement, 0, len(Schema))
	for _, t := range Schema {
		stmts = append(stmts, etl.Statement{Name: "create " + t.Name, SQL: d.CreateTable(t)})
	}
	return stmts
}

// EpochMillis is the COPY TIMEFORMAT for timestamps given as epoch
// milliseconds, as the event log's ts is.
const EpochMillis = "epochmillisecs"

// CopyOptions describes one Redshift COPY of JSON from S3.
type CopyOptions struct {
	Table string
	From  string
	// IAMRole authorises the load; otherwise the access keys are used.
	IAMRole         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	// JSONPaths is "auto" or the S3 URL of a JSONPaths file.
	JSONPaths  string
	TimeFormat string
}

// CopyStatement renders a COPY ... FORMAT AS JSON statement.
func CopyStatement(o CopyOptions) (string, error) {
	if o.Table == "" || o.From == "" {
		return "", fmt.Errorf("copy needs a table and a source")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "COPY %s\nFROM %s\n", o.Table, QuoteLiteral(o.From))
	switch {
	case o.IAMRole != "":
		fmt.Fprintf(&b, "IAM_ROLE %s\n", QuoteLiteral(o.IAMRole))
	case o.AccessKeyID != "":
		fmt.Fprintf(&b, "ACCESS_KEY_ID %s\nSECRET_ACCESS_KEY %s\n", QuoteLiteral(o.AccessKeyID), QuoteLiteral(o.SecretAccessKey))
		if o.SessionToken != "" {
			fmt.Fprintf(&b, "SESSION_TOKEN %s\n", QuoteLiteral(o.SessionToken))
		}
	default:
		return "", fmt.Errorf("copy into %s needs an IAM role or access keys", o.Table)
	}
	if o.Region != "" {
		fmt.Fprintf(&b, "REGION %s\n", QuoteLiteral(o.Region))
	}
	jsonPaths := o.JSONPaths
	if jsonPaths == "" {
		jsonPaths = "auto"
	}
	fmt.Fprintf(&b, "FORMAT AS JSON %s", QuoteLiteral(jsonPaths))
	if o.TimeFormat != "" {
		fmt.Fprintf(&b, "\nTIMEFORMAT AS %s", QuoteLiteral(o.TimeFormat))
	}
	return b.String(), nil
}

// Sources are the raw datasets feeding the staging tables.
type Sources struct {
	LogData     string
	LogJSONPath string
	SongData    string
	Region      string
	IAMRole     string
}

// CopyStatements renders the two staging COPY statements.
func CopyStatements(src Sources) ([]etl.Statement, error) {
	events, err := CopyStatement(CopyOptions{
		Table:      StagingEvents,
		From:       src.LogData,
		IAMRole:    src.IAMRole,
		Region:     src.Region,
		JSONPaths:  src.LogJSONPath,
		TimeFormat: EpochMillis,
	})
	if err != nil {
		return nil, err
	}
	songs, err := CopyStatement(CopyOptions{
		Table:     StagingSongs,
		From:      src.SongData,
		IAMRole:   src.IAMRole,
		Region:    src.Region,
		JSONPaths: "auto",
	})
	if err != nil {
		return nil, err
	}
	return []etl.Statement{
		{Name: "copy " + StagingEvents, SQL: events},
		{Name: "copy " + StagingSongs, SQL: songs},
	}, nil
}

// Load is an INSERT ... SELECT populating one star-schema table.
type Load struct {
	Table   string
	Columns []string
	Query   string
}

func (l Load) InsertSQL() string {
	return fmt.Sprintf("INSERT INTO %s (%s)\n%s", l.Table, strings.Join(l.Columns, ", "), l.Query)
}

// Loads returns the star-schema loads, dimensions before the fact table.
//
// Users keep the state of their most recent play: ties on ts are broken by
// sessionId then itemInSession. Songs and artists keep one row per key.
// Songplays require an exact match on title, artist name and duration.
func (d Dialect) Loads() []Load {
	users := `SELECT user_id, first_name, last_name, gender, level
FROM (
    SELECT userId AS user_id,
           firstName AS first_name,
           lastName AS last_name,
           gender,
           level,
           ROW_NUMBER() OVER (PARTITION BY userId ORDER BY ts DESC, sessionId DESC, itemInSession DESC) AS rn
    FROM staging_events
    WHERE page = 'NextSong' AND userId IS NOT NULL
) ranked
WHERE rn = 1`

	songs := `SELECT song_id, title, artist_id, year, duration
FROM (
    SELECT song_id, title, artist_id, year, duration,
           ROW_NUMBER() OVER (PARTITION BY song_id ORDER BY year DESC, title, artist_id) AS rn
    FROM staging_songs
    WHERE song_id IS NOT NULL
) ranked
WHERE rn = 1`

	artists := `SELECT artist_id, name, location, latitude, longitude
FROM (
    SELECT artist_id,
           artist_name AS name,
           artist_location AS location,
           artist_latitude AS latitude,
           artist_longitude AS longitude,
           ROW_NUMBER() OVER (PARTITION BY artist_id ORDER BY artist_name, song_id) AS rn
    FROM staging_songs
    WHERE artist_id IS NOT NULL
) ranked
WHERE rn = 1`

	parts := make([]string, 0, 6)
	for _, f := range []string{"hour", "day", "week", "month", "year", "weekday"} {
		parts = append(parts, fmt.Sprintf("       %s AS %s", d.datePart(f, "start_time"), f))
	}
	timeQuery := fmt.Sprintf(`SELECT start_time,
%s
FROM (
    SELECT DISTINCT ts AS start_time
    FROM staging_events
    WHERE page = 'NextSong' AND ts IS NOT NULL
) plays`, strings.Join(parts, ",\n"))

	// The catalog side is the deduplicated songs and artists, so a song
	// listed in several source files still yields one fact row per play.
	songplays := fmt.Sprintf(`SELECT e.ts AS start_time,
       e.userId AS user_id,
       e.level,
       s.song_id,
       s.artist_id,
       e.sessionId AS session_id,
       e.location,
       e.userAgent AS user_agent
FROM staging_events e
JOIN (%s) s
  ON e.song = s.title
 AND e.length = s.duration
JOIN (%s) a
  ON a.artist_id = s.artist_id
 AND e.artist = a.name
WHERE e.page = 'NextSong' AND e.userId IS NOT NULL`, songs, artists)

	return []Load{
		{Table: Users, Columns: usersTable.ColumnNames(), Query: users},
		{Table: Songs, Columns: songsTable.ColumnNames(), Query: songs},
		{Table: Artists, Columns: artistsTable.ColumnNames(), Query: artists},
		{Table: Time, Columns: timeTable.ColumnNames(), Query: timeQuery},
		{Table: Songplays, Columns: songplaysTable.ColumnNames(), Query: songplays},
	}
}

// LoadFor returns the load of table.
func (d Dialect) LoadFor(table string) (Load, error) {
	for _, l := range d.Loads() {
		if l.Table == table {
			return l, nil
		}
	}
	return Load{}, fmt.Errorf("no load defined for table %q", table)
}

// InsertStatements clears the star schema (fact first) and reloads it
// from staging, dimensions before the fact table.
func (d Dialect) InsertStatements() []etl.Statement {
	stmts := []etl.Statement{
		{Name: "clear " + Songplays, SQL: d.DeleteAll(Songplays)},
		{Name: "clear " + Users, SQL: d.DeleteAll(Users)},
		{Name: "clear " + Songs, SQL: d.DeleteAll(Songs)},
		{Name: "clear " + Artists, SQL: d.DeleteAll(Artists)},
		{Name: "clear " + Time, SQL: d.DeleteAll(Time)},
	}
	for _, l := range d.Loads() {
		stmts = append(stmts, etl.Statement{Name: "insert " + l.Table, SQL: l.InsertSQL()})
	}
	return stmts
}
