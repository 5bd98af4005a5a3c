package models

import "time"

// Song is a row of the songs dimension.
type Song struct {
	SongID   string  `parquet:"name=song_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Title    string  `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	ArtistID string  `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Year     int32   `parquet:"name=year, type=INT32"`
	Duration float64 `parquet:"name=duration, type=DOUBLE"`
}

// Artist is a row of the artists dimension.
type Artist struct {
	ArtistID  string   `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name      string   `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Location  string   `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8"`
	Latitude  *float64 `parquet:"name=latitude, type=DOUBLE, repetitiontype=OPTIONAL"`
	Longitude *float64 `parquet:"name=longitude, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// User is the latest known state of a user.
type User struct {
	UserID    int64  `parquet:"name=user_id, type=INT64"`
	FirstName string `parquet:"name=first_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	LastName  string `parquet:"name=last_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Gender    string `parquet:"name=gender, type=BYTE_ARRAY, convertedtype=UTF8"`
	Level     string `parquet:"name=level, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Time is the calendar decomposition of a play timestamp.
//
// Weekday follows time.Weekday: 0 is Sunday, 6 is Saturday. Week is the
// ISO-8601 week number. The warehouse dialects render the same convention.
type Time struct {
	StartTime int64 `parquet:"name=start_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Hour      int32 `parquet:"name=hour, type=INT32"`
	Day       int32 `parquet:"name=day, type=INT32"`
	Week      int32 `parquet:"name=week, type=INT32"`
	Month     int32 `parquet:"name=month, type=INT32"`
	Year      int32 `parquet:"name=year, type=INT32"`
	Weekday   int32 `parquet:"name=weekday, type=INT32"`
}

// NewTime expands ts (interpreted in UTC) into a Time row.
func NewTime(ts time.Time) Time {
	ts = ts.UTC()
	_, week := ts.ISOWeek()
	return Time{
		StartTime: ts.UnixMilli(),
		Hour:      int32(ts.Hour()),
		Day:       int32(ts.Day()),
		Week:      int32(week),
		Month:     int32(ts.Month()),
		Year:      int32(ts.Year()),
		Weekday:   int32(ts.Weekday()),
	}
}

// Songplay is a row of the songplays fact table.
type Songplay struct {
	SongplayID int64  `parquet:"name=songplay_id, type=INT64"`
	StartTime  int64  `parquet:"name=start_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	UserID     int64  `parquet:"name=user_id, type=INT64"`
	Level      string `parquet:"name=level, type=BYTE_ARRAY, convertedtype=UTF8"`
	SongID     string `parquet:"name=song_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ArtistID   string `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SessionID  int64  `parquet:"name=session_id, type=INT64"`
	Location   string `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8"`
	UserAgent  string `parquet:"name=user_agent, type=BYTE_ARRAY, convertedtype=UTF8"`
	Year       int32  `parquet:"name=year, type=INT32"`
	Month      int32  `parquet:"name=month, type=INT32"`
}
