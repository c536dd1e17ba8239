// File: internal/service/sync_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"bucketmirror/internal/batch"
	"bucketmirror/internal/index"
	"bucketmirror/internal/reconcile"
	"bucketmirror/internal/retry"
	"bucketmirror/internal/scanner"
	"bucketmirror/internal/stats"
	"bucketmirror/internal/ui/progress"
	"bucketmirror/pkg/storage"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
)

// StoreOpener resolves a provider name to a ready storage client
type StoreOpener interface {
	GetStorageProvider(ctx context.Context, providerName string) (storage.ObjectStore, error)
}

type Phase string

const (
	PhaseScanning   Phase = "scanning"
	PhasePriming    Phase = "priming"
	PhaseProcessing Phase = "processing"
	PhaseDeleting   Phase = "deleting"
	PhaseReporting  Phase = "reporting"
	PhaseDone       Phase = "done"
)

type RunOptions struct {
	Source     string `validate:"required"`
	Provider   string `validate:"required"`
	Bucket     string `validate:"required"`
	Prefix     string
	Threads    int      `validate:"gte=1,lte=256"`
	BatchSize  int      `validate:"gte=1,lte=100000"`
	Excludes   []string `validate:"dive,required"`
	Delete     bool
	DryRun     bool
	VerifySize bool

	// Zero value means retry.DefaultPolicy()
	Retry retry.Policy `validate:"-"`

	// Asked before a live deletion pass with the keys about to be removed. Returning false skips the pass
	ConfirmDelete func(keys []string) (bool, error) `validate:"-"`
	OnPhase       func(Phase)                       `validate:"-"`
}

// Failure is a single file or key that could not be mirrored
type Failure struct {
	Path  string `json:"path,omitempty" yaml:"path,omitempty"`
	Key   string `json:"key,omitempty" yaml:"key,omitempty"`
	Error string `json:"error" yaml:"error"`
}

type Report struct {
	Source   string        `json:"source" yaml:"source"`
	Provider string        `json:"provider" yaml:"provider"`
	Bucket   string        `json:"bucket" yaml:"bucket"`
	Prefix   string        `json:"prefix" yaml:"prefix"`
	Summary  stats.Summary `json:"summary" yaml:"summary"`
	Failures []Failure     `json:"failures,omitempty" yaml:"failures,omitempty"`
	// Set when the user declined the deletion pass
	DeleteSkipped bool `json:"delete_skipped,omitempty" yaml:"delete_skipped,omitempty"`
}

type SyncService struct {
	opener   StoreOpener
	fs       afero.Fs
	validate *validator.Validate
	logger   *slog.Logger
}

func NewSyncService(opener StoreOpener, fs afero.Fs, logger *slog.Logger) *SyncService {
	return &SyncService{
		opener:   opener,
		fs:       fs,
		validate: validator.New(),
		logger:   logger.With("service", "SyncService"),
	}
}

// run holds the state of a single Run call
type run struct {
	opts     RunOptions
	stats    *stats.Stats
	index    *index.Index
	scanner  *scanner.Scanner
	files    []scanner.LocalFile
	seen     map[string]struct{}
	unread   []scanner.EntryError
	mu       sync.Mutex
	failures []Failure
}

func (r *run) fail(f Failure) {
	r.mu.Lock()
	r.failures = append(r.failures, f)
	r.mu.Unlock()
}

// Run mirrors opts.Source into the bucket. Per-file failures are part of the report;
// only setup failures and cancellation are returned as errors
func (s *SyncService) Run(ctx context.Context, opts RunOptions, reporter progress.Reporter) (*Report, error) {
	if err := s.validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid sync options: %w", err)
	}
	if reporter == nil {
		reporter = progress.Nop()
	}

	r := &run{
		opts:  opts,
		stats: stats.New(),
		index: index.New(s.logger),
		seen:  make(map[string]struct{}),
	}
	report := &Report{Source: opts.Source, Provider: opts.Provider, Bucket: opts.Bucket, Prefix: opts.Prefix}
	finish := func() *Report {
		s.enter(opts, PhaseReporting)
		report.Summary = r.stats.Snapshot()
		report.Summary.DryRun = opts.DryRun
		report.Failures = r.failures
		s.logSummary(report)
		return report
	}

	s.enter(opts, PhaseScanning)
	if err := s.scan(ctx, r); err != nil {
		return nil, err
	}

	s.enter(opts, PhasePriming)
	store, err := s.opener.GetStorageProvider(ctx, opts.Provider)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if err := r.index.Prime(ctx, store, opts.Bucket, opts.Prefix); err != nil {
		return nil, describePrimeError(opts.Bucket, err)
	}

	rec := reconcile.New(store, s.fs, r.index, r.stats, reconcile.Options{
		Bucket:     opts.Bucket,
		Prefix:     opts.Prefix,
		DryRun:     opts.DryRun,
		VerifySize: opts.VerifySize,
		Retry:      opts.Retry,
	}, s.logger)

	s.enter(opts, PhaseProcessing)
	if err := s.process(ctx, r, rec, reporter); err != nil {
		return finish(), err
	}

	if opts.Delete {
		s.enter(opts, PhaseDeleting)
		skipped, err := s.deleteOrphans(ctx, r, rec)
		report.DeleteSkipped = skipped
		if err != nil {
			return finish(), err
		}
	}

	report = finish()
	s.enter(opts, PhaseDone)
	return report, nil
}

func (s *SyncService) enter(opts RunOptions, phase Phase) {
	s.logger.Debug("Entering phase", "phase", phase)
	if opts.OnPhase != nil {
		opts.OnPhase(phase)
	}
}

func (s *SyncService) scan(ctx context.Context, r *run) error {
	sc, err := scanner.New(s.fs, r.opts.Source, r.opts.Excludes)
	if err != nil {
		return err
	}
	r.scanner = sc
	s.logger.Info("Scanning files", "source", sc.Root())

	for f, err := range sc.Files(ctx) {
		var entryErr *scanner.EntryError
		switch {
		case errors.As(err, &entryErr):
			r.unread = append(r.unread, *entryErr)
			r.stats.IncFailed()
			r.fail(Failure{Path: entryErr.RelPath, Error: entryErr.Error()})
			s.logger.Warn("Skipping unreadable entry", "path", entryErr.RelPath, "error", entryErr.Err)
		case err != nil:
			return fmt.Errorf("scan interrupted: %w", err)
		default:
			r.files = append(r.files, f)
			r.seen[reconcile.SyncKey(r.opts.Prefix, f.RelPath)] = struct{}{}
		}
	}

	r.stats.AddScanned(int64(len(r.files)))
	if len(r.files) == 0 {
		s.logger.Warn("No files found to process", "source", sc.Root())
	} else {
		s.logger.Info("Scan complete", "files", len(r.files), "unreadable", len(r.unread))
	}
	return nil
}

func (s *SyncService) process(ctx context.Context, r *run, rec *reconcile.Reconciler, reporter progress.Reporter) error {
	s.logger.Info("Processing files", "files", len(r.files), "batch_size", r.opts.BatchSize, "threads", r.opts.Threads)

	reporter.Start(len(r.files))
	defer reporter.Finish()

	return batch.Run(ctx, s.batchOptions(r), slices.Values(r.files), func(ctx context.Context, f scanner.LocalFile) {
		res := rec.Process(ctx, f)
		if res.Failed() {
			r.fail(Failure{Path: f.RelPath, Key: res.Key, Error: res.Err.Error()})
		}
		reporter.Advance(1)
	})
}

// Returns true when the user declined the pass
func (s *SyncService) deleteOrphans(ctx context.Context, r *run, rec *reconcile.Reconciler) (bool, error) {
	orphans := reconcile.Orphans(r.index.Keys(), r.seen, r.protector())
	if len(orphans) == 0 {
		s.logger.Info("No remote objects to delete")
		return false, nil
	}

	if !r.opts.DryRun && r.opts.ConfirmDelete != nil {
		ok, err := r.opts.ConfirmDelete(orphans)
		if err != nil {
			return false, fmt.Errorf("delete confirmation failed: %w", err)
		}
		if !ok {
			s.logger.Warn("Deletion pass skipped by user", "candidates", len(orphans))
			return true, nil
		}
	}

	s.logger.Info("Deleting remote objects absent locally", "candidates", len(orphans), "dry_run", r.opts.DryRun)
	return false, batch.Run(ctx, s.batchOptions(r), slices.Values(orphans), func(ctx context.Context, key string) {
		res := rec.Delete(ctx, key)
		if res.Failed() {
			r.fail(Failure{Key: key, Error: res.Err.Error()})
		}
	})
}

// Keys outside the prefix, under excluded paths, or under entries the scan could not read are kept
func (r *run) protector() reconcile.Protector {
	return func(key string) bool {
		rel, ok := reconcile.RelPath(r.opts.Prefix, key)
		if !ok || rel == "" {
			return true
		}
		if r.scanner.Excluded(rel) {
			return true
		}
		for _, e := range r.unread {
			if e.RelPath == "." || e.RelPath == rel {
				return true
			}
			if e.Dir && strings.HasPrefix(rel, e.RelPath+"/") {
				return true
			}
		}
		return false
	}
}

func (s *SyncService) batchOptions(r *run) batch.Options {
	return batch.Options{
		Threads:   r.opts.Threads,
		BatchSize: r.opts.BatchSize,
		Logger:    s.logger,
		OnBatch: func(n, items int) {
			sum := r.stats.Snapshot()
			s.logger.Debug("Batch finished", "batch", n, "items", items,
				"uploaded", sum.Uploaded, "skipped", sum.Skipped, "failed", sum.Failed, "deleted", sum.Deleted)
		},
	}
}

func (s *SyncService) logSummary(report *Report) {
	sum := report.Summary
	s.logger.Info("Sync summary",
		"scanned", sum.Scanned,
		"uploaded", sum.Uploaded,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"deleted", sum.Deleted,
		"bytes_uploaded", storage.FormatBytes(sum.BytesUploaded),
		"elapsed", sum.Elapsed,
		"dry_run", sum.DryRun,
	)
	for _, f := range report.Failures {
		s.logger.Debug("Failure", "path", f.Path, "key", f.Key, "error", f.Error)
	}
}

func describePrimeError(bucket string, err error) error {
	switch {
	case errors.Is(err, storage.ErrBucketNotFound):
		return fmt.Errorf("bucket '%s' does not exist: %w", bucket, err)
	case errors.Is(err, storage.ErrAccessDenied):
		return fmt.Errorf("access denied to bucket '%s', check credentials and permissions: %w", bucket, err)
	default:
		return err
	}
}
