package lake

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/sparkify/internal/etl"
	"github.com/BartekS5/sparkify/internal/metrics"
	"github.com/BartekS5/sparkify/pkg/models"
	"github.com/BartekS5/sparkify/pkg/storage"
	"github.com/BartekS5/sparkify/pkg/utils"
)

const (
	songDataGlob = "song_data/*/*/*/*.json"
	logDataGlob  = "log_data/*/*/*.json"
)

var (
	songValidator  = etl.NewValidator("song_id")
	eventValidator = etl.NewValidator("ts")
)

// readJSON decodes every record of every object matching pattern.
func readJSON(ctx context.Context, store storage.Storage, pattern string) ([]map[string]interface{}, error) {
	keys, err := storage.Glob(ctx, store, pattern)
	if err != nil {
		return nil, err
	}
	var docs []map[string]interface{}
	for _, key := range keys {
		data, err := storage.ReadAll(ctx, store, key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		recs, err := etl.ReadRecords(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		docs = append(docs, recs...)
	}
	return docs, nil
}

// ReadSongs loads the song catalog below the input location. Records
// without a song_id are dropped and counted.
func (p *Pipeline) ReadSongs(ctx context.Context) ([]models.StagingSong, int, error) {
	docs, err := readJSON(ctx, p.In, p.Input.Key(songDataGlob))
	if err != nil {
		return nil, 0, err
	}
	docs, dropped := songValidator.Filter(docs)
	if dropped > 0 {
		p.log().Warn("Dropped song records without song_id", "count", dropped)
		metrics.RecordRows(pipelineName, "staging_songs", "dropped", int64(dropped))
	}

	songs := make([]models.StagingSong, 0, len(docs))
	for i, doc := range docs {
		s, err := decodeSong(doc)
		if err != nil {
			return nil, dropped, fmt.Errorf("song record %d: %w", i+1, err)
		}
		songs = append(songs, s)
	}
	return songs, dropped, nil
}

// ReadEvents loads the activity log below the input location. Records
// without a ts are dropped and counted.
func (p *Pipeline) ReadEvents(ctx context.Context) ([]models.StagingEvent, int, error) {
	docs, err := readJSON(ctx, p.In, p.Input.Key(logDataGlob))
	if err != nil {
		return nil, 0, err
	}
	docs, dropped := eventValidator.Filter(docs)
	if dropped > 0 {
		p.log().Warn("Dropped events without ts", "count", dropped)
		metrics.RecordRows(pipelineName, "staging_events", "dropped", int64(dropped))
	}

	events := make([]models.StagingEvent, 0, len(docs))
	for i, doc := range docs {
		e, err := decodeEvent(doc)
		if err != nil {
			return nil, dropped, fmt.Errorf("event %d: %w", i+1, err)
		}
		events = append(events, e)
	}
	return events, dropped, nil
}

func decodeSong(doc map[string]interface{}) (models.StagingSong, error) {
	r := fieldReader{doc: doc}
	s := models.StagingSong{
		NumSongs:        r.int64("num_songs"),
		ArtistID:        r.str("artist_id"),
		ArtistLatitude:  r.optFloat("artist_latitude"),
		ArtistLongitude: r.optFloat("artist_longitude"),
		ArtistLocation:  r.str("artist_location"),
		ArtistName:      r.str("artist_name"),
		SongID:          r.str("song_id"),
		Title:           r.str("title"),
		Duration:        r.float("duration"),
		Year:            r.int64("year"),
	}
	return s, r.err
}

func decodeEvent(doc map[string]interface{}) (models.StagingEvent, error) {
	r := fieldReader{doc: doc}
	e := models.StagingEvent{
		Artist:        r.str("artist"),
		Auth:          r.str("auth"),
		FirstName:     r.str("firstName"),
		Gender:        r.str("gender"),
		ItemInSession: r.int64("itemInSession"),
		LastName:      r.str("lastName"),
		Length:        r.optFloat("length"),
		Level:         r.str("level"),
		Location:      r.str("location"),
		Method:        r.str("method"),
		Page:          r.str("page"),
		Registration:  r.optFloat("registration"),
		SessionID:     r.int64("sessionId"),
		Song:          r.str("song"),
		Status:        r.int64("status"),
		TS:            r.millis("ts"),
		UserAgent:     r.str("userAgent"),
		UserID:        r.optInt("userId"),
	}
	return e, r.err
}

// fieldReader converts document fields, keeping the first error.
type fieldReader struct {
	doc map[string]interface{}
	err error
}

func (r *fieldReader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("field %s: %w", key, err)
	}
}

func (r *fieldReader) str(key string) string {
	return utils.ConvertToString(r.doc[key])
}

func (r *fieldReader) int64(key string) int64 {
	n := r.optInt(key)
	if n == nil {
		return 0
	}
	return *n
}

func (r *fieldReader) optInt(key string) *int64 {
	n, err := utils.NullableInt64(r.doc[key])
	if err != nil {
		r.fail(key, err)
	}
	return n
}

func (r *fieldReader) float(key string) float64 {
	f := r.optFloat(key)
	if f == nil {
		return 0
	}
	return *f
}

func (r *fieldReader) optFloat(key string) *float64 {
	f, err := utils.NullableFloat(r.doc[key])
	if err != nil {
		r.fail(key, err)
	}
	return f
}

func (r *fieldReader) millis(key string) time.Time {
	t, err := utils.EpochMillisToTime(r.doc[key])
	if err != nil {
		r.fail(key, err)
	}
	return t
}
