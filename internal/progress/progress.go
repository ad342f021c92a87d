// Package progress tracks how many upload jobs have finished and which files
// are in flight, and reports that state to a Listener on a fixed interval.
package progress

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the report period used when none is configured.
const DefaultInterval = time.Second

// maxListedActive bounds the number of in-flight names included in a report.
const maxListedActive = 3

// Listener receives progress reports.
type Listener interface {
	// OnProgress is called once per interval with the number of finished jobs,
	// the total and the names currently in flight (sorted).
	OnProgress(completed, total int, active []string)

	// OnComplete is called once, when the last job finishes.
	OnComplete(total int)
}

// Tracker counts finished jobs and keeps the set of active names.
// All methods are safe for concurrent use.
type Tracker struct {
	total     int
	completed atomic.Int64
	listener  Listener
	interval  time.Duration

	mu     sync.Mutex
	active map[string]int

	completeOnce sync.Once

	reportMu sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithInterval sets the report period.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// New creates a tracker for total jobs. A nil listener disables reporting.
func New(total int, listener Listener, opts ...Option) *Tracker {
	t := &Tracker{
		total:    total,
		listener: listener,
		interval: DefaultInterval,
		active:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start marks name as in flight. The same name may be active more than once.
func (t *Tracker) Start(name string) {
	t.mu.Lock()
	t.active[name]++
	t.mu.Unlock()
}

// Done marks one in-flight instance of name as finished.
func (t *Tracker) Done(name string) {
	t.mu.Lock()
	if n := t.active[name]; n <= 1 {
		delete(t.active, name)
	} else {
		t.active[name] = n - 1
	}
	t.mu.Unlock()

	completed := int(t.completed.Add(1))
	if t.listener != nil && completed == t.total {
		t.completeOnce.Do(func() { t.listener.OnComplete(t.total) })
	}
}

// Completed returns the number of finished jobs.
func (t *Tracker) Completed() int {
	return int(t.completed.Load())
}

// Total returns the number of jobs being tracked.
func (t *Tracker) Total() int {
	return t.total
}

// Active returns the sorted names currently in flight.
func (t *Tracker) Active() []string {
	t.mu.Lock()
	names := make([]string, 0, len(t.active))
	for name := range t.active {
		names = append(names, name)
	}
	t.mu.Unlock()

	slices.Sort(names)
	return names
}

// StartReporting begins periodic reports until Stop is called or ctx is done.
// The first report is sent immediately. Calling it more than once has no effect.
func (t *Tracker) StartReporting(ctx context.Context) {
	t.reportMu.Lock()
	defer t.reportMu.Unlock()

	if t.listener == nil || t.done != nil {
		return
	}

	ctx, t.cancel = context.WithCancel(ctx)
	done := make(chan struct{})
	t.done = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		t.report()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.report()
			}
		}
	}()
}

// Stop ends periodic reporting and waits for the reporter to exit.
func (t *Tracker) Stop() {
	t.reportMu.Lock()
	defer t.reportMu.Unlock()

	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
}

func (t *Tracker) report() {
	t.listener.OnProgress(t.Completed(), t.total, t.Active())
}

// LogListener writes progress reports to a structured logger.
type LogListener struct {
	Logger *slog.Logger
}

// OnProgress logs the current counters and up to three active names.
func (l LogListener) OnProgress(completed, total int, active []string) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info("upload progress",
		"completed", completed,
		"total", total,
		"active", summarizeActive(active),
	)
}

// OnComplete logs the final count.
func (l LogListener) OnComplete(total int) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info("all uploads finished", "total", total)
}

func summarizeActive(active []string) string {
	if len(active) <= maxListedActive {
		return strings.Join(active, ", ")
	}
	return strings.Join(active[:maxListedActive], ", ") + ", ..."
}
