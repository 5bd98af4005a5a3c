package etl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/BartekS5/sparkify/pkg/utils"
)

// Kind is the logical type a JSON value is converted to.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	// KindTimestamp values arrive as epoch milliseconds.
	KindTimestamp
)

// Field is a destination column.
type Field struct {
	Name string
	Kind Kind
}

// ReadRecords decodes a stream of concatenated or newline-delimited JSON
// objects. Numbers are kept as json.Number so large epoch values survive.
func ReadRecords(r io.Reader) ([]map[string]interface{}, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var out []map[string]interface{}
	for {
		var doc map[string]interface{}
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("record %d: %w", len(out)+1, err)
		}
		out = append(out, doc)
	}
}

type jsonPathsFile struct {
	JSONPaths []string `json:"jsonpaths"`
}

// ParseJSONPaths reads a JSONPaths descriptor ({"jsonpaths": [...]}).
func ParseJSONPaths(data []byte) ([]string, error) {
	var f jsonPathsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid jsonpaths file: %w", err)
	}
	if len(f.JSONPaths) == 0 {
		return nil, errors.New("jsonpaths file has no paths")
	}
	return f.JSONPaths, nil
}

var (
	bracketPath = regexp.MustCompile(`^\$\[['"]([^'"]+)['"]\]$`)
	dotPath     = regexp.MustCompile(`^\$\.([A-Za-z_][A-Za-z0-9_]*)$`)
)

// pathKey extracts the top-level key from $['key'] or $.key.
func pathKey(p string) (string, error) {
	p = strings.TrimSpace(p)
	if m := bracketPath.FindStringSubmatch(p); m != nil {
		return m[1], nil
	}
	if m := dotPath.FindStringSubmatch(p); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("unsupported json path %q (only top-level keys)", p)
}

// Transformer maps decoded JSON documents onto an ordered column list,
// either through explicit JSONPaths (one per column, in column order) or
// by case-insensitive key match. The latter is Redshift's
// 'auto ignorecase' rather than plain 'auto': a document key matches a
// column whose name differs only in case.
type Transformer struct {
	Fields []Field
	keys   []string
	auto   bool
}

// NewTransformer builds a Transformer. A nil paths slice selects auto
// mapping.
func NewTransformer(fields []Field, paths []string) (*Transformer, error) {
	t := &Transformer{Fields: fields}
	if paths == nil {
		t.auto = true
		for _, f := range fields {
			t.keys = append(t.keys, strings.ToLower(f.Name))
		}
		return t, nil
	}

	if len(paths) != len(fields) {
		return nil, fmt.Errorf("jsonpaths has %d entries but target has %d columns", len(paths), len(fields))
	}
	for _, p := range paths {
		k, err := pathKey(p)
		if err != nil {
			return nil, err
		}
		t.keys = append(t.keys, k)
	}
	return t, nil
}

// Transform returns one value per field. Missing keys and JSON nulls
// become nil; blank strings become nil for non-string columns.
func (t *Transformer) Transform(doc map[string]interface{}) ([]interface{}, error) {
	src := doc
	if t.auto {
		src = make(map[string]interface{}, len(doc))
		for k, v := range doc {
			src[strings.ToLower(k)] = v
		}
	}

	row := make([]interface{}, len(t.Fields))
	for i, f := range t.Fields {
		v, err := convert(src[t.keys[i]], f.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		row[i] = v
	}
	return row, nil
}

func convert(val interface{}, kind Kind) (interface{}, error) {
	switch kind {
	case KindInt:
		n, err := utils.NullableInt64(val)
		if err != nil || n == nil {
			return nil, err
		}
		return *n, nil
	case KindFloat:
		f, err := utils.NullableFloat(val)
		if err != nil || f == nil {
			return nil, err
		}
		return *f, nil
	case KindTimestamp:
		if utils.IsBlank(val) {
			return nil, nil
		}
		return utils.EpochMillisToTime(val)
	default:
		if val == nil {
			return nil, nil
		}
		return utils.ConvertToString(val), nil
	}
}
