// Package scheduler decides when a scan runs, never what a scan finds.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/draftwing/convoscribe/internal/config"
)

// TimerHandle is the stoppable handle behind a scheduled callback. Real
// deployments use time.AfterFunc; tests inject synchronous fakes.
type TimerHandle interface {
	Stop() bool
}

// AfterFunc schedules f after d and returns a stoppable handle.
type AfterFunc func(d time.Duration, f func()) TimerHandle

func realAfter(d time.Duration, f func()) TimerHandle {
	return time.AfterFunc(d, f)
}

// Options tune the scheduling policy.
type Options struct {
	Debounce time.Duration
	Cooldown time.Duration
	Now      func() time.Time
	After    AfterFunc
}

// Scheduler debounces mutation bursts into scans and enforces a minimum
// inter-scan cooldown independent of the debounce window. It owns a single
// debounce timer handle: any pending scan is cleared before a new one is
// scheduled, so overlapping scans cannot occur.
type Scheduler struct {
	scan func()

	mu       sync.Mutex
	timer    TimerHandle
	lastScan time.Time
	stopped  bool

	scanMu sync.Mutex

	debounce time.Duration
	cooldown time.Duration
	now      func() time.Time
	after    AfterFunc
}

func New(scan func(), opts Options) *Scheduler {
	if opts.Debounce <= 0 {
		opts.Debounce = config.DebounceWindow
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = config.CooldownRegular
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.After == nil {
		opts.After = realAfter
	}
	return &Scheduler{
		scan:     scan,
		debounce: opts.Debounce,
		cooldown: opts.Cooldown,
		now:      opts.Now,
		after:    opts.After,
	}
}

// OnRelevantChange notes one qualifying mutation. Repeated calls within the
// debounce window reset the timer (debounce, not throttle).
func (s *Scheduler) OnRelevantChange() {
	s.schedule(s.debounce)
}

// OnNavigation handles same-document navigation: the host page may tear
// down and rebuild the chat DOM without a reload, so a scan is due.
func (s *Scheduler) OnNavigation() {
	s.schedule(s.debounce)
}

// OnVisibilityRegained triggers a scan when the tab becomes visible again.
func (s *Scheduler) OnVisibilityRegained() {
	s.schedule(s.debounce)
}

func (s *Scheduler) schedule(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.after(delay, s.fire)
}

// fire runs when the debounce window closes. If the cooldown floor has not
// elapsed since the last scan, the scan is pushed out by the remainder
// rather than dropped.
func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	now := s.now()
	if elapsed := now.Sub(s.lastScan); !s.lastScan.IsZero() && elapsed < s.cooldown {
		remaining := s.cooldown - elapsed
		s.timer = s.after(remaining, s.fire)
		s.mu.Unlock()
		return
	}
	s.lastScan = now
	s.timer = nil
	s.mu.Unlock()

	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	s.scan()
}

// Do runs fn serialized with scans: it waits out any in-flight scan and
// holds the next one off until fn returns. State shared with the scan
// callback must be mutated through here, never directly.
func (s *Scheduler) Do(fn func()) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	fn()
}

// Stop cancels any pending scan and refuses further scheduling. Mandatory
// on page teardown; leaving the timer running is a resource leak.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// RunDiscovery retries locate on a fixed interval until it reports the
// container found, the context ends, or the scheduler stops. Not finding
// the container is a transient condition, not an error.
func (s *Scheduler) RunDiscovery(ctx context.Context, interval time.Duration, locate func(context.Context) bool) {
	if interval <= 0 {
		interval = config.DiscoveryInterval
	}
	if locate(ctx) {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return
			}
			if locate(ctx) {
				slog.Info("chat container located")
				return
			}
			slog.Debug("chat container not found, retrying")
		}
	}
}
