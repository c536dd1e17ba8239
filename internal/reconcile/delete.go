// File: internal/reconcile/delete.go
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"bucketmirror/internal/retry"
	"bucketmirror/pkg/storage"
)

// Protector reports whether a remote key must survive the deletion pass even though no local file produced it
type Protector func(key string) bool

// Orphans returns the keys (in the order given) that no local file maps onto and that are not protected
func Orphans(keys []string, seen map[string]struct{}, protect Protector) []string {
	var orphans []string
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		if protect != nil && protect(key) {
			continue
		}
		orphans = append(orphans, key)
	}
	return orphans
}

// RelPath is the inverse of SyncKey. ok is false when key is outside prefix
func RelPath(prefix, key string) (string, bool) {
	prefix = strings.Trim(filepath.ToSlash(prefix), "/")
	if prefix == "" {
		return key, true
	}
	rel, ok := strings.CutPrefix(key, prefix+"/")
	return rel, ok
}

// Delete removes one orphaned key, or only reports it under dry-run
func (r *Reconciler) Delete(ctx context.Context, key string) Result {
	res := Result{Key: key, Action: ActionDelete, DryRun: r.opts.DryRun}
	if size, ok := r.index.Lookup(key); ok {
		res.Size = size
	}

	if r.opts.DryRun {
		r.stats.IncDeleted()
		r.logger.Info("Would delete", "key", key)
		return res
	}

	policy := r.opts.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		r.logger.Warn("Retrying delete", "key", key, "next_attempt", attempt+1, "delay", delay, "error", err)
	}

	err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		err := r.store.DeleteObject(ctx, r.opts.Bucket, key)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		res.Err = err
		r.stats.IncFailed()
		r.logger.Error("Delete failed", "key", key, "error", err)
		return res
	}

	r.index.RecordDelete(key)
	r.stats.IncDeleted()
	r.logger.Debug("Deleted", "key", key)
	return res
}
