package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/BartekS5/sparkify/pkg/logger"
)

type MinioStorage struct {
	client     *minio.Client
	bucketName string
	logger     *logger.Logger
}

// NewMinioStorage connects to an S3-compatible endpoint and creates the
// bucket when it is missing.
func NewMinioStorage(ctx context.Context, bucket string, opts Options, log *logger.Logger) (*MinioStorage, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("minio storage requires an endpoint")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Info("Created MinIO bucket", "bucket", bucket)
	}

	return &MinioStorage{
		client:     client,
		bucketName: bucket,
		logger:     log,
	}, nil
}

func (m *MinioStorage) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := m.client.PutObject(ctx, m.bucketName, key, r, size, minio.PutObjectOptions{})
	if err != nil {
		m.logger.Error("Failed to store file to MinIO", "bucket", m.bucketName, "key", key, "error", err)
		return fmt.Errorf("failed to store file: %w", err)
	}
	return nil
}

func (m *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: minio://%s/%s", ErrNotFound, m.bucketName, key)
		}
		m.logger.Error("Failed to get file from MinIO", "bucket", m.bucketName, "key", key, "error", err)
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return obj, nil
}

func (m *MinioStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			m.logger.Error("Error listing objects", "bucket", m.bucketName, "error", obj.Err)
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (m *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		m.logger.Error("Failed to delete file from MinIO", "bucket", m.bucketName, "key", key, "error", err)
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
