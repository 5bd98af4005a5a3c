package lake

import (
	"sort"

	"github.com/BartekS5/sparkify/pkg/models"
)

// SongsTable keeps the first record seen for every song_id.
func SongsTable(staged []models.StagingSong) []models.Song {
	seen := make(map[string]bool, len(staged))
	out := make([]models.Song, 0, len(staged))
	for _, s := range staged {
		if seen[s.SongID] {
			continue
		}
		seen[s.SongID] = true
		out = append(out, models.Song{
			SongID:   s.SongID,
			Title:    s.Title,
			ArtistID: s.ArtistID,
			Year:     int32(s.Year),
			Duration: s.Duration,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SongID < out[j].SongID })
	return out
}

// ArtistsTable keeps the first record seen for every artist_id.
func ArtistsTable(staged []models.StagingSong) []models.Artist {
	seen := make(map[string]bool, len(staged))
	var out []models.Artist
	for _, s := range staged {
		if s.ArtistID == "" || seen[s.ArtistID] {
			continue
		}
		seen[s.ArtistID] = true
		out = append(out, models.Artist{
			ArtistID:  s.ArtistID,
			Name:      s.ArtistName,
			Location:  s.ArtistLocation,
			Latitude:  s.ArtistLatitude,
			Longitude: s.ArtistLongitude,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ArtistID < out[j].ArtistID })
	return out
}

// later reports whether a is a more recent observation than b.
func later(a, b models.StagingEvent) bool {
	if !a.TS.Equal(b.TS) {
		return a.TS.After(b.TS)
	}
	if a.SessionID != b.SessionID {
		return a.SessionID > b.SessionID
	}
	return a.ItemInSession > b.ItemInSession
}

// UsersTable returns one row per user taken from that user's most recent
// play, so a level change is reflected once.
func UsersTable(events []models.StagingEvent) []models.User {
	latest := make(map[int64]models.StagingEvent)
	for _, e := range events {
		if !e.IsPlay() || e.UserID == nil {
			continue
		}
		if cur, ok := latest[*e.UserID]; !ok || later(e, cur) {
			latest[*e.UserID] = e
		}
	}

	out := make([]models.User, 0, len(latest))
	for id, e := range latest {
		out = append(out, models.User{
			UserID:    id,
			FirstName: e.FirstName,
			LastName:  e.LastName,
			Gender:    e.Gender,
			Level:     e.Level,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// TimeTable decomposes the distinct play timestamps.
func TimeTable(events []models.StagingEvent) []models.Time {
	seen := make(map[int64]bool)
	var out []models.Time
	for _, e := range events {
		if !e.IsPlay() {
			continue
		}
		t := models.NewTime(e.TS)
		if seen[t.StartTime] {
			continue
		}
		seen[t.StartTime] = true
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

type catalogKey struct {
	title    string
	artist   string
	duration float64
}

type catalogEntry struct {
	songID   string
	artistID string
}

// SongplaysTable joins plays to the catalog on the exact (song title,
// artist name, duration) triple. Plays without a user or length can never
// match. songplay_id increases with the position of the play in events.
func SongplaysTable(events []models.StagingEvent, songs []models.Song, artists []models.Artist) []models.Songplay {
	names := make(map[string]string, len(artists))
	for _, a := range artists {
		names[a.ArtistID] = a.Name
	}
	catalog := make(map[catalogKey][]catalogEntry)
	for _, s := range songs {
		name, ok := names[s.ArtistID]
		if !ok {
			continue
		}
		k := catalogKey{title: s.Title, artist: name, duration: s.Duration}
		catalog[k] = append(catalog[k], catalogEntry{songID: s.SongID, artistID: s.ArtistID})
	}

	var (
		out []models.Songplay
		id  int64
	)
	for _, e := range events {
		if !e.IsPlay() || e.UserID == nil || e.Length == nil {
			continue
		}
		matches := catalog[catalogKey{title: e.Song, artist: e.Artist, duration: *e.Length}]
		ts := e.TS.UTC()
		for _, m := range matches {
			out = append(out, models.Songplay{
				SongplayID: id,
				StartTime:  ts.UnixMilli(),
				UserID:     *e.UserID,
				Level:      e.Level,
				SongID:     m.songID,
				ArtistID:   m.artistID,
				SessionID:  e.SessionID,
				Location:   e.Location,
				UserAgent:  e.UserAgent,
				Year:       int32(ts.Year()),
				Month:      int32(ts.Month()),
			})
			id++
		}
	}
	return out
}
