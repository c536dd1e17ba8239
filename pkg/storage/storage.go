// File: pkg/storage/storage.go
package storage

//go:generate mockgen -source=storage.go -destination=mocks/mock_storage.go -package=mocks

import (
	"context"
	"errors"
	"io"

	"bucketmirror/pkg/common"
)

// Sentinel errors returned by every provider implementation. Providers map their SDK
// specific error types onto these so callers can use errors.Is without importing an SDK
var (
	ErrNotFound       = errors.New("object not found")
	ErrBucketNotFound = errors.New("bucket not found")
	ErrAccessDenied   = errors.New("access denied")
)

// PageFunc receives one page of a listing. Returning an error stops the listing
type PageFunc func(page []Object) error

// PutInput describes a single object upload
type PutInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
}

// ObjectStore is the object-storage collaborator used by the mirror.
// Implementations must be safe for concurrent use by multiple goroutines
type ObjectStore interface {
	ProviderName() common.Provider

	// Lists every object under prefix, invoking fn once per page. Pagination is handled by the provider
	ListObjects(ctx context.Context, bucket, prefix string, fn PageFunc) error

	PutObject(ctx context.Context, in PutInput) error

	DeleteObject(ctx context.Context, bucket, key string) error

	// Returns ErrNotFound when the key does not exist
	HeadObject(ctx context.Context, bucket, key string) (Object, error)

	Close() error
}
