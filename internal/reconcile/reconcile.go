// File: internal/reconcile/reconcile.go
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"bucketmirror/internal/index"
	"bucketmirror/internal/retry"
	"bucketmirror/internal/scanner"
	"bucketmirror/internal/stats"
	"bucketmirror/pkg/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// Number of leading bytes sniffed for the Content-Type
const sniffLen = 512

type Action int

const (
	ActionSkip Action = iota
	ActionUpload
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionUpload:
		return "upload"
	case ActionDelete:
		return "delete"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Result describes what happened to one local file or one orphaned key
type Result struct {
	Key     string
	RelPath string
	Action  Action
	Size    int64
	// The action was only reported, nothing was sent to the store
	DryRun bool
	Err    error
}

func (r Result) Failed() bool {
	return r.Err != nil
}

type Options struct {
	Bucket     string
	Prefix     string
	DryRun     bool
	VerifySize bool
	Retry      retry.Policy
}

// Reconciler decides per file whether an upload is needed and performs it
type Reconciler struct {
	store  storage.ObjectStore
	fs     afero.Fs
	index  *index.Index
	stats  *stats.Stats
	opts   Options
	logger *slog.Logger
}

func New(store storage.ObjectStore, fs afero.Fs, idx *index.Index, st *stats.Stats, opts Options, logger *slog.Logger) *Reconciler {
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	return &Reconciler{
		store:  store,
		fs:     fs,
		index:  idx,
		stats:  st,
		opts:   opts,
		logger: logger.With("component", "reconciler"),
	}
}

// SyncKey maps a relative path onto its object key under prefix.
// Only the OS path separator is rewritten, so a POSIX file name holding a backslash keeps it.
func SyncKey(prefix, rel string) string {
	prefix = strings.Trim(filepath.ToSlash(prefix), "/")
	rel = strings.TrimLeft(filepath.ToSlash(rel), "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

// Plan returns the action for f without performing it
func (r *Reconciler) Plan(f scanner.LocalFile) (string, Action) {
	key := SyncKey(r.opts.Prefix, f.RelPath)
	if size, ok := r.index.Lookup(key); ok && size == f.Size {
		return key, ActionSkip
	}
	return key, ActionUpload
}

// Process reconciles one local file. Failures are counted and logged, never returned to the caller as fatal
func (r *Reconciler) Process(ctx context.Context, f scanner.LocalFile) Result {
	key, action := r.Plan(f)
	res := Result{Key: key, RelPath: f.RelPath, Action: action, Size: f.Size, DryRun: r.opts.DryRun}

	if action == ActionSkip {
		r.stats.IncSkipped()
		r.logger.Debug("Already present", "key", key, "size", f.Size)
		return res
	}

	if r.opts.DryRun {
		r.stats.AddUploaded(f.Size)
		r.logger.Info("Would upload", "path", f.RelPath, "key", key, "size", storage.FormatBytes(f.Size))
		return res
	}

	size, err := r.upload(ctx, f, key)
	if err != nil {
		res.Err = err
		r.stats.IncFailed()
		r.logger.Error("Upload failed", "path", f.AbsPath, "key", key, "error", err)
		return res
	}

	res.Size = size
	r.index.RecordUpload(key, size)
	r.stats.AddUploaded(size)
	r.logger.Debug("Uploaded", "path", f.RelPath, "key", key, "size", size)
	return res
}

func (r *Reconciler) upload(ctx context.Context, f scanner.LocalFile, key string) (int64, error) {
	var uploaded int64

	policy := r.opts.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		r.logger.Warn("Retrying upload", "key", key, "next_attempt", attempt+1, "delay", delay, "error", err)
	}

	err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		size, err := r.putFile(ctx, f.AbsPath, key)
		if err != nil {
			return err
		}
		if r.opts.VerifySize {
			if err := r.verify(ctx, key, size); err != nil {
				return err
			}
		}
		uploaded = size
		return nil
	})
	return uploaded, err
}

func (r *Reconciler) putFile(ctx context.Context, absPath, key string) (int64, error) {
	file, err := r.fs.Open(absPath)
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("open %s: %w", absPath, err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("stat %s: %w", absPath, err))
	}

	contentType, err := detectContentType(file)
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("read %s: %w", absPath, err))
	}

	err = r.store.PutObject(ctx, storage.PutInput{
		Bucket:      r.opts.Bucket,
		Key:         key,
		Body:        file,
		Size:        info.Size(),
		ContentType: contentType,
	})
	if err != nil {
		return 0, fmt.Errorf("put %s: %w", key, err)
	}
	return info.Size(), nil
}

func (r *Reconciler) verify(ctx context.Context, key string, size int64) error {
	obj, err := r.store.HeadObject(ctx, r.opts.Bucket, key)
	if err != nil {
		return fmt.Errorf("verify %s: %w", key, err)
	}
	if obj.Size != size {
		return fmt.Errorf("verify %s: remote size %d does not match local size %d", key, obj.Size, size)
	}
	return nil
}

// Sniffs the first bytes of f and rewinds it
func detectContentType(f io.ReadSeeker) (string, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mimetype.Detect(buf[:n]).String(), nil
}
