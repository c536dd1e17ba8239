// File: internal/stats/stats.go
package stats

import (
	"sync/atomic"
	"time"
)

// Stats accumulates the outcome counters of a single run. Safe for concurrent use
type Stats struct {
	scanned       atomic.Int64
	uploaded      atomic.Int64
	skipped       atomic.Int64
	failed        atomic.Int64
	deleted       atomic.Int64
	bytesUploaded atomic.Int64

	start time.Time
}

func New() *Stats {
	return &Stats{start: time.Now()}
}

func (s *Stats) AddScanned(n int64) { s.scanned.Add(n) }
func (s *Stats) IncSkipped()        { s.skipped.Add(1) }
func (s *Stats) IncFailed()         { s.failed.Add(1) }
func (s *Stats) IncDeleted()        { s.deleted.Add(1) }

func (s *Stats) AddUploaded(size int64) {
	s.uploaded.Add(1)
	s.bytesUploaded.Add(size)
}

// Summary is an immutable snapshot of Stats
type Summary struct {
	Scanned       int64         `json:"scanned" yaml:"scanned"`
	Uploaded      int64         `json:"uploaded" yaml:"uploaded"`
	Skipped       int64         `json:"skipped" yaml:"skipped"`
	Failed        int64         `json:"failed" yaml:"failed"`
	Deleted       int64         `json:"deleted" yaml:"deleted"`
	BytesUploaded int64         `json:"bytes_uploaded" yaml:"bytes_uploaded"`
	Elapsed       time.Duration `json:"elapsed_ns" yaml:"elapsed"`
	DryRun        bool          `json:"dry_run" yaml:"dry_run"`
}

// Processed is the number of local files that reached a terminal outcome
func (s Summary) Processed() int64 {
	return s.Uploaded + s.Skipped + s.Failed
}

func (s *Stats) Snapshot() Summary {
	return Summary{
		Scanned:       s.scanned.Load(),
		Uploaded:      s.uploaded.Load(),
		Skipped:       s.skipped.Load(),
		Failed:        s.failed.Load(),
		Deleted:       s.deleted.Load(),
		BytesUploaded: s.bytesUploaded.Load(),
		Elapsed:       time.Since(s.start),
	}
}
