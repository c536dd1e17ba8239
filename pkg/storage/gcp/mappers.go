// File: pkg/storage/gcp/mappers.go
package gcp

import (
	"errors"
	"fmt"
	"net/http"

	"bucketmirror/pkg/common"
	"bucketmirror/pkg/storage"

	gcpstorage "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// Maps GCP SDK object attributes to the domain model
func mapObjectAttributes(attrs *gcpstorage.ObjectAttrs) storage.Object {
	if attrs == nil {
		return storage.Object{}
	}

	return storage.Object{
		Key:          attrs.Name,
		Bucket:       attrs.Bucket,
		Provider:     common.GCP,
		Size:         attrs.Size,
		LastModified: attrs.Updated,
		ETag:         attrs.Etag,
		ContentType:  attrs.ContentType,
	}
}

// Maps SDK errors onto the storage sentinels, keeping the original in the chain
func mapError(err error) error {
	switch {
	case errors.Is(err, gcpstorage.ErrBucketNotExist):
		return fmt.Errorf("%w: %w", storage.ErrBucketNotFound, err)
	case errors.Is(err, gcpstorage.ErrObjectNotExist):
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", storage.ErrAccessDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
		}
	}
	return err
}
