package warehouse

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/BartekS5/sparkify/internal/etl"
	"github.com/BartekS5/sparkify/internal/metrics"
	"github.com/BartekS5/sparkify/pkg/logger"
	"github.com/BartekS5/sparkify/pkg/storage"
)

// Opener opens the storage backend holding a location.
type Opener func(ctx context.Context, loc storage.Location) (storage.Storage, error)

// StageSource is one staging table and where its JSON lives.
type StageSource struct {
	Table    string
	Location string
	// JSONPaths is "auto" or the URL of a JSONPaths file.
	JSONPaths string
}

// ClientStager loads JSON objects into staging tables through the
// database driver, for engines without a server-side COPY from S3. It
// honours the same JSONPaths/auto mapping and epoch-millisecond
// timestamps as COPY.
type ClientStager struct {
	Open      Opener
	Dialect   Dialect
	BatchSize int
	Logger    *logger.Logger
}

func NewClientStager(open Opener, d Dialect, log *logger.Logger) *ClientStager {
	return &ClientStager{Open: open, Dialect: d, BatchSize: 100, Logger: log}
}

// Stage appends every JSON record under src.Location to src.Table using
// ex, which is normally the phase transaction.
func (s *ClientStager) Stage(ctx context.Context, ex etl.Execer, src StageSource) (int64, error) {
	table, ok := LookupTable(src.Table)
	if !ok || !table.Staging {
		return 0, fmt.Errorf("%s is not a staging table", src.Table)
	}

	paths, err := s.jsonPaths(ctx, src.JSONPaths)
	if err != nil {
		return 0, err
	}
	tr, err := etl.NewTransformer(table.Fields(), paths)
	if err != nil {
		return 0, fmt.Errorf("mapping for %s: %w", src.Table, err)
	}

	loc, err := storage.ParseLocation(src.Location)
	if err != nil {
		return 0, err
	}
	store, err := s.Open(ctx, loc)
	if err != nil {
		return 0, err
	}
	keys, err := store.List(ctx, loc.Prefix)
	if err != nil {
		return 0, err
	}

	ins := &batchInserter{
		ex:      ex,
		dialect: s.Dialect,
		table:   table.Name,
		columns: table.ColumnNames(),
		limit:   s.batchSize(len(table.ColumnNames())),
	}
	var files int
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		data, err := storage.ReadAll(ctx, store, key)
		if err != nil {
			return ins.total, fmt.Errorf("read %s: %w", key, err)
		}
		docs, err := etl.ReadRecords(bytes.NewReader(data))
		if err != nil {
			return ins.total, fmt.Errorf("decode %s: %w", key, err)
		}
		for _, doc := range docs {
			row, err := tr.Transform(doc)
			if err != nil {
				return ins.total, fmt.Errorf("%s: %w", key, err)
			}
			if err := ins.add(ctx, row); err != nil {
				return ins.total, err
			}
		}
		files++
	}
	if err := ins.flush(ctx); err != nil {
		return ins.total, err
	}

	s.log().Info("Staged table", "table", table.Name, "files", files, "rows", ins.total)
	metrics.RecordRows("etl", table.Name, "staged", ins.total)
	return ins.total, nil
}

func (s *ClientStager) jsonPaths(ctx context.Context, ref string) ([]string, error) {
	if ref == "" || strings.EqualFold(ref, "auto") {
		return nil, nil
	}
	loc, err := storage.ParseLocation(ref)
	if err != nil {
		return nil, err
	}
	store, err := s.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	data, err := storage.ReadAll(ctx, store, loc.Prefix)
	if err != nil {
		return nil, fmt.Errorf("read jsonpaths %s: %w", ref, err)
	}
	return etl.ParseJSONPaths(data)
}

func (s *ClientStager) batchSize(cols int) int {
	n := s.BatchSize
	if n <= 0 {
		n = 100
	}
	if max := s.Dialect.MaxParams() / cols; n > max {
		n = max
	}
	return n
}

func (s *ClientStager) log() *logger.Logger {
	if s.Logger == nil {
		return logger.Default()
	}
	return s.Logger
}

// batchInserter accumulates rows into multi-row INSERT statements.
type batchInserter struct {
	ex      etl.Execer
	dialect Dialect
	table   string
	columns []string
	limit   int
	rows    [][]interface{}
	total   int64
}

func (b *batchInserter) add(ctx context.Context, row []interface{}) error {
	b.rows = append(b.rows, row)
	if len(b.rows) >= b.limit {
		return b.flush(ctx)
	}
	return nil
}

func (b *batchInserter) flush(ctx context.Context) error {
	if len(b.rows) == 0 {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", b.table, strings.Join(b.columns, ", "))
	args := make([]interface{}, 0, len(b.rows)*len(b.columns))
	for i, row := range b.rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, v := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			args = append(args, v)
			sb.WriteString(b.dialect.Placeholder(len(args)))
		}
		sb.WriteString(")")
	}

	if _, err := b.ex.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert batch into %s: %w", b.table, err)
	}
	b.total += int64(len(b.rows))
	b.rows = b.rows[:0]
	return nil
}

var _ etl.Execer = (*sql.Tx)(nil)
