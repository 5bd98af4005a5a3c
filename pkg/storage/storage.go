// Package storage abstracts the object stores the pipelines read raw JSON
// from and write Parquet to. Keys are always slash separated.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/BartekS5/sparkify/pkg/logger"
)

// Type selects a storage backend.
type Type string

const (
	TypeS3    Type = "s3"
	TypeMinio Type = "minio"
	TypeLocal Type = "file"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Storage is a flat key/value object store.
type Storage interface {
	// Put stores the content of r under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	// Get opens the object stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns every key starting with prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// Location is a parsed storage URL such as s3://udacity-dend/log_data.
type Location struct {
	Type   Type
	Bucket string // root directory ("/" or ".") for TypeLocal
	Prefix string
}

// ParseLocation understands s3://, s3a://, minio:// and file:// URLs.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid storage location %q: %w", raw, err)
	}
	switch u.Scheme {
	case "s3", "s3a", "s3n":
		return Location{Type: TypeS3, Bucket: u.Host, Prefix: strings.TrimPrefix(u.Path, "/")}, nil
	case "minio":
		return Location{Type: TypeMinio, Bucket: u.Host, Prefix: strings.TrimPrefix(u.Path, "/")}, nil
	case "file":
		full := u.Host + u.Path
		if strings.HasPrefix(full, "/") {
			return Location{Type: TypeLocal, Bucket: "/", Prefix: strings.TrimPrefix(full, "/")}, nil
		}
		return Location{Type: TypeLocal, Bucket: ".", Prefix: full}, nil
	default:
		return Location{}, fmt.Errorf("unsupported storage scheme %q in %q", u.Scheme, raw)
	}
}

// Key joins the location prefix and rel into an object key.
func (l Location) Key(rel string) string {
	if l.Prefix == "" {
		return rel
	}
	return path.Join(l.Prefix, rel)
}

func (l Location) String() string {
	if l.Type == TypeLocal {
		return "file://" + path.Join(l.Bucket, l.Prefix)
	}
	return string(l.Type) + "://" + path.Join(l.Bucket, l.Prefix)
}

// Options carries the credentials and endpoint for the remote backends.
type Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Profile         string
	UseSSL          bool
}

// New opens the backend named by loc.
func New(ctx context.Context, loc Location, opts Options, log *logger.Logger) (Storage, error) {
	switch loc.Type {
	case TypeS3:
		return NewS3Storage(ctx, loc.Bucket, opts, log)
	case TypeMinio:
		return NewMinioStorage(ctx, loc.Bucket, opts, log)
	case TypeLocal:
		return NewLocalStorage(loc.Bucket)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", loc.Type)
	}
}

// Glob lists the keys matching pattern, using path.Match semantics where
// '*' never crosses a '/'.
func Glob(ctx context.Context, s Storage, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	prefix := pattern
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		prefix = pattern[:i]
	}

	keys, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range keys {
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// DeletePrefix removes every object under prefix. It is used to give
// Parquet writes overwrite semantics.
func DeletePrefix(ctx context.Context, s Storage, prefix string) (int, error) {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return 0, fmt.Errorf("failed to delete %s: %w", k, err)
		}
	}
	return len(keys), nil
}

// ReadAll fetches the whole object stored under key.
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
