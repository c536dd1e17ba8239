// File: pkg/storage/aws/aws.go
package aws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bucketmirror/internal/config"
	"bucketmirror/internal/provider/registry"
	"bucketmirror/pkg/common"
	"bucketmirror/pkg/storage"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

func init() {
	registry.RegisterProvider("aws", registry.ProviderRegistration{
		ConfigCheck:  isConfigured,
		Initializer:  initialize,
		RequiredKeys: []string{"aws.region"},
	})
}

func isConfigured(cfg *config.Config) bool {
	return cfg.AWS != nil && cfg.AWS.Region != ""
}

func initialize(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.ObjectStore, error) {
	if !isConfigured(cfg) {
		return nil, fmt.Errorf("AWS configuration missing or incomplete")
	}
	return NewAWSStorage(ctx, *cfg.AWS, logger)
}

// S3API is the subset of *s3.Client used by AWSStorage
type S3API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type AWSStorage struct {
	client   S3API
	uploader *manager.Uploader
	region   string
	logger   *slog.Logger
}

var _ storage.ObjectStore = (*AWSStorage)(nil)

// NewAWSStorage builds a client from the default credential chain. Endpoint and path-style
// addressing are passed through for S3-compatible services
func NewAWSStorage(ctx context.Context, cfg config.AWSConfig, logger *slog.Logger) (*AWSStorage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return newAWSStorage(client, cfg.Region, logger), nil
}

func newAWSStorage(client S3API, region string, logger *slog.Logger) *AWSStorage {
	return &AWSStorage{
		client:   client,
		uploader: manager.NewUploader(client),
		region:   region,
		logger:   logger,
	}
}

func (s *AWSStorage) ProviderName() common.Provider {
	return common.AWS
}

func (s *AWSStorage) ListObjects(ctx context.Context, bucket, prefix string, fn storage.PageFunc) error {
	s.logger.Debug("Starting AWS ListObjects operation", "bucket", bucket, "prefix", prefix)

	input := &s3.ListObjectsV2Input{Bucket: awssdk.String(bucket)}
	if prefix != "" {
		input.Prefix = awssdk.String(prefix)
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("error listing objects: %w", mapError(err))
		}

		objects := make([]storage.Object, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, storage.Object{
				Key:          awssdk.ToString(obj.Key),
				Bucket:       bucket,
				Provider:     common.AWS,
				Size:         awssdk.ToInt64(obj.Size),
				LastModified: awssdk.ToTime(obj.LastModified),
				ETag:         awssdk.ToString(obj.ETag),
			})
		}
		if err := fn(objects); err != nil {
			return err
		}
	}
	return nil
}

// PutObject goes through the transfer manager, which switches to multipart uploads for large bodies
func (s *AWSStorage) PutObject(ctx context.Context, in storage.PutInput) error {
	input := &s3.PutObjectInput{
		Bucket: awssdk.String(in.Bucket),
		Key:    awssdk.String(in.Key),
		Body:   in.Body,
	}
	if in.ContentType != "" {
		input.ContentType = awssdk.String(in.ContentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("error uploading object: %w", mapError(err))
	}
	return nil
}

func (s *AWSStorage) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: awssdk.String(bucket),
		Key:    awssdk.String(key),
	})
	if err != nil {
		return fmt.Errorf("error deleting object: %w", mapError(err))
	}
	return nil
}

func (s *AWSStorage) HeadObject(ctx context.Context, bucket, key string) (storage.Object, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: awssdk.String(bucket),
		Key:    awssdk.String(key),
	})
	if err != nil {
		return storage.Object{}, fmt.Errorf("error getting object metadata: %w", mapError(err))
	}

	return storage.Object{
		Key:          key,
		Bucket:       bucket,
		Provider:     common.AWS,
		Size:         awssdk.ToInt64(out.ContentLength),
		LastModified: awssdk.ToTime(out.LastModified),
		ETag:         awssdk.ToString(out.ETag),
		ContentType:  awssdk.ToString(out.ContentType),
	}, nil
}

func (s *AWSStorage) Close() error {
	// The SDK client holds no resources that need releasing
	return nil
}

// Maps SDK errors onto the storage sentinels, keeping the original in the chain
func mapError(err error) error {
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return fmt.Errorf("%w: %w", storage.ErrBucketNotFound, err)
	}
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return fmt.Errorf("%w: %w", storage.ErrBucketNotFound, err)
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
			return fmt.Errorf("%w: %w", storage.ErrAccessDenied, err)
		}
	}
	return err
}
