// Package lake builds the sparkify star schema as partitioned Parquet
// files. Raw song and log JSON is read from one object store location and
// the five tables are written, in overwrite mode, below another.
//
//	songs.parquet/year=<y>/artist_id=<id>/part-00000.parquet
//	artists.parquet/part-00000.parquet
//	users.parquet/part-00000.parquet
//	time.parquet/year=<y>/month=<m>/part-00000.parquet
//	songplays.parquet/year=<y>/month=<m>/part-00000.parquet
//
// Partition columns are also kept inside the files.
package lake

import (
	"context"
	"fmt"
	"strconv"

	"github.com/BartekS5/sparkify/internal/etl"
	"github.com/BartekS5/sparkify/internal/metrics"
	"github.com/BartekS5/sparkify/pkg/logger"
	"github.com/BartekS5/sparkify/pkg/models"
	"github.com/BartekS5/sparkify/pkg/storage"
)

const pipelineName = "lake"

const (
	SongsTableDir     = "songs.parquet"
	ArtistsTableDir   = "artists.parquet"
	UsersTableDir     = "users.parquet"
	TimeTableDir      = "time.parquet"
	SongplaysTableDir = "songplays.parquet"
)

// Pipeline reads raw JSON from In at Input and writes Parquet to Out at
// Output. In and Out may be the same store.
type Pipeline struct {
	Input  storage.Location
	Output storage.Location
	In     storage.Storage
	Out    storage.Storage

	DryRun   bool
	Recorder etl.Recorder
	Logger   *logger.Logger
}

// New opens the input and output stores named by the two URLs.
func New(ctx context.Context, input, output string, opts storage.Options, log *logger.Logger) (*Pipeline, error) {
	if log == nil {
		log = logger.Default()
	}
	inLoc, err := storage.ParseLocation(input)
	if err != nil {
		return nil, err
	}
	outLoc, err := storage.ParseLocation(output)
	if err != nil {
		return nil, err
	}
	in, err := storage.New(ctx, inLoc, opts, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open input %s: %w", inLoc, err)
	}
	out, err := storage.New(ctx, outLoc, opts, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open output %s: %w", outLoc, err)
	}
	return &Pipeline{
		Input:    inLoc,
		Output:   outLoc,
		In:       in,
		Out:      out,
		Recorder: etl.NopRecorder{},
		Logger:   log,
	}, nil
}

// Run processes song data and then log data. Log processing reads the
// songs and artists tables back, so it is skipped when song processing
// fails.
func (p *Pipeline) Run(ctx context.Context) (*etl.Summary, error) {
	pl := etl.NewPipeline(pipelineName,
		etl.NewPhase("process song data", p.ProcessSongData),
		etl.NewPhase("process log data", p.ProcessLogData),
	)
	pl.DryRun = p.DryRun
	pl.Recorder = p.Recorder
	pl.Logger = p.log()
	return pl.Run(ctx)
}

// ProcessSongData writes the songs and artists tables and returns the
// number of rows written.
func (p *Pipeline) ProcessSongData(ctx context.Context) (int64, error) {
	staged, _, err := p.ReadSongs(ctx)
	if err != nil {
		return 0, err
	}
	songs := SongsTable(staged)
	artists := ArtistsTable(staged)

	if err := writeRows(ctx, p, SongsTableDir, songs, func(s models.Song) string {
		return partitionPath("year", strconv.Itoa(int(s.Year)), "artist_id", s.ArtistID)
	}); err != nil {
		return 0, err
	}
	if err := writeRows[models.Artist](ctx, p, ArtistsTableDir, artists, nil); err != nil {
		return 0, err
	}
	return int64(len(songs) + len(artists)), nil
}

// ProcessLogData writes the users, time and songplays tables and returns
// the number of rows written. It expects the songs and artists tables to
// exist in the output location.
func (p *Pipeline) ProcessLogData(ctx context.Context) (int64, error) {
	events, _, err := p.ReadEvents(ctx)
	if err != nil {
		return 0, err
	}

	users := UsersTable(events)
	if err := writeRows[models.User](ctx, p, UsersTableDir, users, nil); err != nil {
		return 0, err
	}

	times := TimeTable(events)
	if err := writeRows(ctx, p, TimeTableDir, times, func(t models.Time) string {
		return partitionPath("year", strconv.Itoa(int(t.Year)), "month", strconv.Itoa(int(t.Month)))
	}); err != nil {
		return 0, err
	}

	songs, err := readTable[models.Song](ctx, p.Out, p.Output.Key(SongsTableDir))
	if err != nil {
		return 0, err
	}
	artists, err := readTable[models.Artist](ctx, p.Out, p.Output.Key(ArtistsTableDir))
	if err != nil {
		return 0, err
	}

	plays := SongplaysTable(events, songs, artists)
	if err := writeRows(ctx, p, SongplaysTableDir, plays, func(sp models.Songplay) string {
		return partitionPath("year", strconv.Itoa(int(sp.Year)), "month", strconv.Itoa(int(sp.Month)))
	}); err != nil {
		return 0, err
	}
	return int64(len(users) + len(times) + len(plays)), nil
}

func writeRows[T any](ctx context.Context, p *Pipeline, dir string, rows []T, partition func(T) string) error {
	base := p.Output.Key(dir)
	files, err := writeTable(ctx, p.Out, base, rows, partition)
	if err != nil {
		return err
	}
	p.log().Info("Wrote table", "table", dir, "rows", len(rows), "files", files)
	metrics.RecordRows(pipelineName, dir, "written", int64(len(rows)))
	return nil
}

func (p *Pipeline) log() *logger.Logger {
	if p.Logger == nil {
		return logger.Default()
	}
	return p.Logger
}
