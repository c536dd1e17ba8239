// File: internal/ui/progress/progress.go
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Reporter receives progress of the processing phase. Implementations must be safe for concurrent use
type Reporter interface {
	Start(total int)
	// Advance records n more processed files
	Advance(n int)
	Finish()
}

type nopReporter struct{}

func (nopReporter) Start(int)   {}
func (nopReporter) Advance(int) {}
func (nopReporter) Finish()     {}

// Nop returns a Reporter that discards everything
func Nop() Reporter {
	return nopReporter{}
}

// Snapshot is the state rendered by every reporter
type Snapshot struct {
	Done    int
	Total   int
	Elapsed time.Duration
}

func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Done) / float64(s.Total)
}

// ETA extrapolates the remaining time from the average rate so far. ok is false before any progress
func (s Snapshot) ETA() (time.Duration, bool) {
	if s.Done <= 0 || s.Total <= s.Done || s.Elapsed <= 0 {
		return 0, false
	}
	rate := float64(s.Done) / s.Elapsed.Seconds()
	return time.Duration(float64(s.Total-s.Done) / rate * float64(time.Second)), true
}

func (s Snapshot) String() string {
	line := fmt.Sprintf("Progress: %d/%d (%.1f%%) - Elapsed: %s", s.Done, s.Total, s.Percent()*100, formatDuration(s.Elapsed))
	if eta, ok := s.ETA(); ok {
		line += ", ETA: " + formatDuration(eta)
	}
	return line
}

func formatDuration(d time.Duration) string {
	if d >= time.Minute {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.0fs", d.Seconds())
}

// TextReporter rewrites a single progress line, at most once per interval
type TextReporter struct {
	mu       sync.Mutex
	out      io.Writer
	now      func() time.Time
	interval time.Duration

	total    int
	done     int
	started  time.Time
	printed  time.Time
	finished bool
}

func NewTextReporter(out io.Writer) *TextReporter {
	return &TextReporter{
		out:      out,
		now:      time.Now,
		interval: time.Second,
	}
}

func (r *TextReporter) Start(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
	r.done = 0
	r.started = r.now()
	r.printed = time.Time{}
	r.finished = false
}

func (r *TextReporter) Advance(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done += n

	now := r.now()
	if now.Sub(r.printed) < r.interval {
		return
	}
	r.printed = now
	fmt.Fprintf(r.out, "\r%s", r.snapshot(now))
}

// Finish prints the final line once; it is a no-op before Start
func (r *TextReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started.IsZero() || r.finished {
		return
	}
	r.finished = true
	fmt.Fprintf(r.out, "\r%s\n", r.snapshot(r.now()))
}

func (r *TextReporter) snapshot(now time.Time) Snapshot {
	return Snapshot{Done: r.done, Total: r.total, Elapsed: now.Sub(r.started)}
}
