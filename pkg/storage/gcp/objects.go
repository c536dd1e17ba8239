// File: pkg/storage/gcp/objects.go
package gcp

import (
	"context"
	"fmt"
	"io"

	"bucketmirror/pkg/storage"

	gcpstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

const listPageSize = 1000

func (g *GCPStorage) ListObjects(ctx context.Context, bucketName string, prefix string, fn storage.PageFunc) error {
	g.logger.Debug("Starting GCP ListObjects operation", "bucket", bucketName, "prefix", prefix)

	query := &gcpstorage.Query{Prefix: prefix}
	// Only the fields the index needs
	if err := query.SetAttrSelection([]string{"Name", "Size", "Updated", "Etag"}); err != nil {
		return fmt.Errorf("error building object query: %w", err)
	}

	it := g.client.Bucket(bucketName).Objects(ctx, query)
	pager := iterator.NewPager(it, listPageSize, "")

	for {
		var attrs []*gcpstorage.ObjectAttrs
		token, err := pager.NextPage(&attrs)
		if err != nil {
			return fmt.Errorf("error iterating objects: %w", mapError(err))
		}

		objects := make([]storage.Object, 0, len(attrs))
		for _, a := range attrs {
			obj := mapObjectAttributes(a)
			obj.Bucket = bucketName
			objects = append(objects, obj)
		}
		if err := fn(objects); err != nil {
			return err
		}

		if token == "" {
			return nil
		}
	}
}

func (g *GCPStorage) PutObject(ctx context.Context, in storage.PutInput) error {
	// Cancelling the context aborts the upload and discards the partial object
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(in.Bucket).Object(in.Key).NewWriter(writeCtx)
	if in.ContentType != "" {
		w.ContentType = in.ContentType
	}

	if _, err := io.Copy(w, in.Body); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("error uploading object: %w", mapError(err))
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("error finalizing upload: %w", mapError(err))
	}
	return nil
}

func (g *GCPStorage) DeleteObject(ctx context.Context, bucketName, objectKey string) error {
	if err := g.client.Bucket(bucketName).Object(objectKey).Delete(ctx); err != nil {
		return fmt.Errorf("error deleting object: %w", mapError(err))
	}
	return nil
}

func (g *GCPStorage) HeadObject(ctx context.Context, bucketName, objectKey string) (storage.Object, error) {
	g.logger.Debug("Starting GCP HeadObject operation", "bucket", bucketName, "object", objectKey)

	attrs, err := g.client.Bucket(bucketName).Object(objectKey).Attrs(ctx)
	if err != nil {
		return storage.Object{}, fmt.Errorf("error getting object attributes: %w", mapError(err))
	}
	return mapObjectAttributes(attrs), nil
}
