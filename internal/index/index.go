// File: internal/index/index.go
package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"bucketmirror/pkg/storage"
)

// Lister is the part of storage.ObjectStore needed to prime the index
type Lister interface {
	ListObjects(ctx context.Context, bucket, prefix string, fn storage.PageFunc) error
}

// IndexError is returned when the remote listing cannot be completed
type IndexError struct {
	Bucket string
	Prefix string
	Err    error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("failed to list remote objects in %s under '%s': %v", e.Bucket, e.Prefix, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// Index maps remote keys to their size for the duration of one run
type Index struct {
	mu      sync.RWMutex
	objects map[string]int64
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		objects: make(map[string]int64),
		logger:  logger,
	}
}

// ListPrefix returns the listing prefix for a key prefix: "" for the whole bucket, otherwise the prefix with a trailing slash.
// Backslashes are separators only on Windows; elsewhere they are part of the key.
func ListPrefix(prefix string) string {
	prefix = strings.Trim(filepath.ToSlash(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// Prime lists every object under prefix and records its size
func (idx *Index) Prime(ctx context.Context, lister Lister, bucket, prefix string) error {
	listPrefix := ListPrefix(prefix)
	idx.logger.Debug("Priming remote index", "bucket", bucket, "prefix", listPrefix)

	pages := 0
	err := lister.ListObjects(ctx, bucket, listPrefix, func(page []storage.Object) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx.mu.Lock()
		for _, obj := range page {
			idx.objects[obj.Key] = obj.Size
		}
		idx.mu.Unlock()
		pages++
		return nil
	})
	if err != nil {
		return &IndexError{Bucket: bucket, Prefix: listPrefix, Err: err}
	}

	idx.logger.Info("Remote index primed", "bucket", bucket, "prefix", listPrefix, "objects", idx.Len(), "pages", pages)
	return nil
}

func (idx *Index) Lookup(key string) (int64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	size, ok := idx.objects[key]
	return size, ok
}

// Called only after the remote store confirmed the upload
func (idx *Index) RecordUpload(key string, size int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.objects[key] = size
}

// Called only after the remote store confirmed the delete
func (idx *Index) RecordDelete(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.objects, key)
}

// Keys returns a sorted snapshot of every key in the index
func (idx *Index) Keys() []string {
	idx.mu.RLock()
	keys := make([]string, 0, len(idx.objects))
	for k := range idx.objects {
		keys = append(keys, k)
	}
	idx.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.objects)
}
