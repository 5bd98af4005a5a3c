// Package models holds the sparkify entities shared by the warehouse and
// lake pipelines: the raw staging records and the star-schema rows derived
// from them.
package models

import "time"

// PageNextSong marks an activity-log event as a song play.
const PageNextSong = "NextSong"

// StagingEvent is one row of the user activity log.
type StagingEvent struct {
	Artist        string
	Auth          string
	FirstName     string
	Gender        string
	ItemInSession int64
	LastName      string
	Length        *float64
	Level         string
	Location      string
	Method        string
	Page          string
	Registration  *float64
	SessionID     int64
	Song          string
	Status        int64
	TS            time.Time
	UserAgent     string
	UserID        *int64
}

// IsPlay reports whether the event is a song play.
func (e StagingEvent) IsPlay() bool {
	return e.Page == PageNextSong
}

// StagingSong is one record of the song catalog.
type StagingSong struct {
	NumSongs        int64
	ArtistID        string
	ArtistLatitude  *float64
	ArtistLongitude *float64
	ArtistLocation  string
	ArtistName      string
	SongID          string
	Title           string
	Duration        float64
	Year            int64
}
