package warehouse

import "github.com/BartekS5/sparkify/internal/etl"

// ColumnType is a logical column type, rendered per dialect.
type ColumnType int

const (
	Varchar ColumnType = iota
	Char1
	Int
	Double
	Timestamp
	// Identity is an auto-generated integer surrogate key.
	Identity
)

// Column describes one table column.
type Column struct {
	Name       string
	Type       ColumnType
	PrimaryKey bool
	// References is "table(column)" for foreign keys.
	References string
	SortKey    bool
	DistKey    bool
}

// Table describes one warehouse table.
type Table struct {
	Name    string
	Columns []Column
	// DistAll replicates the table on every node (DISTSTYLE ALL).
	DistAll bool
	Staging bool
}

// ColumnNames returns the column names in order, skipping identity columns.
func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Type == Identity {
			continue
		}
		names = append(names, c.Name)
	}
	return names
}

// Fields maps the table columns onto record fields for client-side loading.
func (t Table) Fields() []etl.Field {
	fields := make([]etl.Field, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Type == Identity {
			continue
		}
		kind := etl.KindString
		switch c.Type {
		case Int:
			kind = etl.KindInt
		case Double:
			kind = etl.KindFloat
		case Timestamp:
			kind = etl.KindTimestamp
		}
		fields = append(fields, etl.Field{Name: c.Name, Kind: kind})
	}
	return fields
}

const (
	StagingEvents = "staging_events"
	StagingSongs  = "staging_songs"
	Songplays     = "songplays"
	Users         = "users"
	Songs         = "songs"
	Artists       = "artists"
	Time          = "time"
)

var stagingEventsTable = Table{
	Name:    StagingEvents,
	Staging: true,
	Columns: []Column{
		{Name: "artist", Type: Varchar},
		{Name: "auth", Type: Varchar},
		{Name: "firstName", Type: Varchar},
		{Name: "gender", Type: Char1},
		{Name: "itemInSession", Type: Int},
		{Name: "lastName", Type: Varchar},
		{Name: "length", Type: Double},
		{Name: "level", Type: Varchar},
		{Name: "location", Type: Varchar},
		{Name: "method", Type: Varchar},
		{Name: "page", Type: Varchar},
		{Name: "registration", Type: Double},
		{Name: "sessionId", Type: Int},
		{Name: "song", Type: Varchar},
		{Name: "status", Type: Int},
		{Name: "ts", Type: Timestamp},
		{Name: "userAgent", Type: Varchar},
		{Name: "userId", Type: Int},
	},
}

var stagingSongsTable = Table{
	Name:    StagingSongs,
	Staging: true,
	Columns: []Column{
		{Name: "num_songs", Type: Int},
		{Name: "artist_id", Type: Varchar},
		{Name: "artist_latitude", Type: Double},
		{Name: "artist_longitude", Type: Double},
		{Name: "artist_location", Type: Varchar},
		{Name: "artist_name", Type: Varchar},
		{Name: "song_id", Type: Varchar},
		{Name: "title", Type: Varchar},
		{Name: "duration", Type: Double},
		{Name: "year", Type: Int},
	},
}

var usersTable = Table{
	Name:    Users,
	DistAll: true,
	Columns: []Column{
		{Name: "user_id", Type: Int, PrimaryKey: true, SortKey: true},
		{Name: "first_name", Type: Varchar},
		{Name: "last_name", Type: Varchar},
		{Name: "gender", Type: Char1},
		{Name: "level", Type: Varchar},
	},
}

var songsTable = Table{
	Name:    Songs,
	DistAll: true,
	Columns: []Column{
		{Name: "song_id", Type: Varchar, PrimaryKey: true, SortKey: true},
		{Name: "title", Type: Varchar},
		{Name: "artist_id", Type: Varchar},
		{Name: "year", Type: Int},
		{Name: "duration", Type: Double},
	},
}

var artistsTable = Table{
	Name:    Artists,
	DistAll: true,
	Columns: []Column{
		{Name: "artist_id", Type: Varchar, PrimaryKey: true, SortKey: true},
		{Name: "name", Type: Varchar},
		{Name: "location", Type: Varchar},
		{Name: "latitude", Type: Double},
		{Name: "longitude", Type: Double},
	},
}

var timeTable = Table{
	Name:    Time,
	DistAll: true,
	Columns: []Column{
		{Name: "start_time", Type: Timestamp, PrimaryKey: true, SortKey: true},
		{Name: "hour", Type: Int},
		{Name: "day", Type: Int},
		{Name: "week", Type: Int},
		{Name: "month", Type: Int},
		{Name: "year", Type: Int},
		{Name: "weekday", Type: Int},
	},
}

var songplaysTable = Table{
	Name: Songplays,
	Columns: []Column{
		{Name: "songplay_id", Type: Identity, PrimaryKey: true, SortKey: true},
		{Name: "start_time", Type: Timestamp, References: "time(start_time)"},
		{Name: "user_id", Type: Int, References: "users(user_id)", DistKey: true},
		{Name: "level", Type: Varchar},
		{Name: "song_id", Type: Varchar, References: "songs(song_id)"},
		{Name: "artist_id", Type: Varchar, References: "artists(artist_id)"},
		{Name: "session_id", Type: Int},
		{Name: "location", Type: Varchar},
		{Name: "user_agent", Type: Varchar},
	},
}

// Schema lists the tables in creation order: staging, dimensions, then
// the fact table whose foreign keys reference the dimensions.
var Schema = []Table{
	stagingEventsTable,
	stagingSongsTable,
	usersTable,
	songsTable,
	artistsTable,
	timeTable,
	songplaysTable,
}

// dropOrder drops dependents before the tables they reference.
var dropOrder = []string{StagingEvents, StagingSongs, Songplays, Users, Songs, Artists, Time}

// LookupTable returns the schema entry for name.
func LookupTable(name string) (Table, bool) {
	for _, t := range Schema {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
