// File: pkg/storage/minio/minio.go
package minio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"bucketmirror/internal/config"
	"bucketmirror/internal/provider/registry"
	"bucketmirror/pkg/common"
	"bucketmirror/pkg/storage"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const listPageSize = 1000

func init() {
	registry.RegisterProvider("minio", registry.ProviderRegistration{
		ConfigCheck:  isConfigured,
		Initializer:  initialize,
		RequiredKeys: []string{"minio.endpoint", "minio.access_key", "minio.secret_key"},
	})
}

func isConfigured(cfg *config.Config) bool {
	return cfg.MinIO != nil &&
		cfg.MinIO.Endpoint != "" &&
		cfg.MinIO.AccessKey != "" &&
		cfg.MinIO.SecretKey != ""
}

func initialize(_ context.Context, cfg *config.Config, logger *slog.Logger) (storage.ObjectStore, error) {
	if !isConfigured(cfg) {
		return nil, fmt.Errorf("MinIO configuration missing or incomplete")
	}
	return NewMinIOStorage(*cfg.MinIO, logger)
}

// Client is the subset of *minio.Client used by MinIOStorage
type Client interface {
	ListObjects(ctx context.Context, bucketName string, opts miniogo.ListObjectsOptions) <-chan miniogo.ObjectInfo
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts miniogo.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts miniogo.StatObjectOptions) (miniogo.ObjectInfo, error)
}

type MinIOStorage struct {
	client Client
	logger *slog.Logger
}

var _ storage.ObjectStore = (*MinIOStorage)(nil)

func NewMinIOStorage(cfg config.MinIOConfig, logger *slog.Logger) (*MinIOStorage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return newMinIOStorage(client, logger), nil
}

func newMinIOStorage(client Client, logger *slog.Logger) *MinIOStorage {
	return &MinIOStorage{client: client, logger: logger}
}

func (m *MinIOStorage) ProviderName() common.Provider {
	return common.MinIO
}

// ListObjects drains the SDK's object channel and hands it to fn in fixed-size pages
func (m *MinIOStorage) ListObjects(ctx context.Context, bucket, prefix string, fn storage.PageFunc) error {
	m.logger.Debug("Starting MinIO ListObjects operation", "bucket", bucket, "prefix", prefix)

	// Stops the listing goroutine if fn bails out early
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	page := make([]storage.Object, 0, listPageSize)
	for info := range m.client.ListObjects(listCtx, bucket, miniogo.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return fmt.Errorf("error listing objects: %w", mapError(info.Err))
		}

		page = append(page, mapObjectInfo(bucket, info))
		if len(page) == listPageSize {
			if err := fn(page); err != nil {
				return err
			}
			page = make([]storage.Object, 0, listPageSize)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(page) > 0 {
		return fn(page)
	}
	return nil
}

func (m *MinIOStorage) PutObject(ctx context.Context, in storage.PutInput) error {
	_, err := m.client.PutObject(ctx, in.Bucket, in.Key, in.Body, in.Size, miniogo.PutObjectOptions{
		ContentType: in.ContentType,
	})
	if err != nil {
		return fmt.Errorf("error uploading object: %w", mapError(err))
	}
	return nil
}

func (m *MinIOStorage) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := m.client.RemoveObject(ctx, bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("error deleting object: %w", mapError(err))
	}
	return nil
}

func (m *MinIOStorage) HeadObject(ctx context.Context, bucket, key string) (storage.Object, error) {
	info, err := m.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return storage.Object{}, fmt.Errorf("error getting object metadata: %w", mapError(err))
	}
	return mapObjectInfo(bucket, info), nil
}

func (m *MinIOStorage) Close() error {
	return nil
}

func mapObjectInfo(bucket string, info miniogo.ObjectInfo) storage.Object {
	return storage.Object{
		Key:          info.Key,
		Bucket:       bucket,
		Provider:     common.MinIO,
		Size:         info.Size,
		LastModified: info.LastModified,
		ETag:         info.ETag,
		ContentType:  info.ContentType,
	}
}

// Maps S3 error responses onto the storage sentinels, keeping the original in the chain
func mapError(err error) error {
	resp := miniogo.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket":
		return fmt.Errorf("%w: %w", storage.ErrBucketNotFound, err)
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %w", storage.ErrAccessDenied, err)
	}

	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", storage.ErrAccessDenied, err)
	}
	return err
}
