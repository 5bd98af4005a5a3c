package lake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/BartekS5/sparkify/pkg/storage"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

const (
	partFile      = "part-00000.parquet"
	successMarker = "_SUCCESS"
	parallelism   = 4
)

// ErrMissingTable is returned when a table directory holds no output.
var ErrMissingTable = errors.New("table not found")

// encodeParquet serialises rows into an in-memory Snappy Parquet file.
func encodeParquet[T any](rows []T) ([]byte, error) {
	fw := buffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(T), parallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range rows {
		if err := pw.Write(r); err != nil {
			return nil, fmt.Errorf("failed to write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("error in WriteStop: %w", err)
	}
	return fw.Bytes(), nil
}

func decodeParquet[T any](data []byte) ([]T, error) {
	fr := buffer.NewBufferFileFromBytes(data)
	pr, err := reader.NewParquetReader(fr, new(T), parallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet reader: %w", err)
	}
	defer pr.ReadStop()

	rows := make([]T, int(pr.GetNumRows()))
	if len(rows) == 0 {
		return rows, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("failed to read parquet rows: %w", err)
	}
	return rows, nil
}

// writeTable replaces the table directory base with rows, grouped into
// Hive-style partition directories by partition (nil for an unpartitioned
// table). A _SUCCESS marker is written last. It returns the number of data
// files written.
func writeTable[T any](ctx context.Context, store storage.Storage, base string, rows []T, partition func(T) string) (int, error) {
	if _, err := storage.DeletePrefix(ctx, store, base+"/"); err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", base, err)
	}

	groups := map[string][]T{}
	for _, r := range rows {
		dir := ""
		if partition != nil {
			dir = partition(r)
		}
		groups[dir] = append(groups[dir], r)
	}
	dirs := make([]string, 0, len(groups))
	for d := range groups {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	for _, d := range dirs {
		data, err := encodeParquet(groups[d])
		if err != nil {
			return 0, fmt.Errorf("%s/%s: %w", base, d, err)
		}
		key := strings.Join(nonEmpty(base, d, partFile), "/")
		if err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
			return 0, fmt.Errorf("failed to upload %s: %w", key, err)
		}
	}

	marker := base + "/" + successMarker
	if err := store.Put(ctx, marker, bytes.NewReader(nil), 0); err != nil {
		return 0, fmt.Errorf("failed to upload %s: %w", marker, err)
	}
	return len(dirs), nil
}

// readTable reads back every Parquet file below base.
func readTable[T any](ctx context.Context, store storage.Storage, base string) ([]T, error) {
	keys, err := store.List(ctx, base+"/")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingTable, base)
	}

	var out []T
	for _, k := range keys {
		if !strings.HasSuffix(k, ".parquet") {
			continue
		}
		data, err := storage.ReadAll(ctx, store, k)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", k, err)
		}
		rows, err := decodeParquet[T](data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// partitionPath renders name=value pairs as a directory path.
func partitionPath(kv ...string) string {
	parts := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		parts = append(parts, kv[i]+"="+url.PathEscape(kv[i+1]))
	}
	return strings.Join(parts, "/")
}

func nonEmpty(s ...string) []string {
	out := s[:0:0]
	for _, v := range s {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
