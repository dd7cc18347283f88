package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/draftwing/convoscribe/internal/browser"
	"github.com/draftwing/convoscribe/internal/capture"
	"github.com/draftwing/convoscribe/internal/config"
	"github.com/draftwing/convoscribe/internal/domain"
	"github.com/draftwing/convoscribe/internal/flush"
	"github.com/draftwing/convoscribe/internal/scheduler"
)

// PageSource is the observed chat page. The rod-backed implementation
// lives in internal/browser; tests substitute fixture snapshots.
type PageSource interface {
	Events() <-chan browser.Event
	Document(ctx context.Context) (*goquery.Document, error)
	Positions(ctx context.Context) (map[string]float64, error)
	CurrentURL(ctx context.Context) (string, error)
	Close() error
}

// Monitor owns one page visit: it gates startup on the confirmed project
// id and authentication, drives discovery and scan scheduling, and hands
// completed exchanges to the flusher. All capture state lives in the
// session it owns; the session dies with the monitor.
type Monitor struct {
	page    PageSource
	scanner *capture.Scanner
	session *capture.Session
	flusher *flush.Flusher
	auth    domain.Authenticator
	project domain.ProjectResolver

	sched       *scheduler.Scheduler
	projectID   string
	lastURL     string
	discovering atomic.Bool
}

type MonitorDeps struct {
	Page     PageSource
	Flusher  *flush.Flusher
	Auth     domain.Authenticator
	Project  domain.ProjectResolver
	Debounce time.Duration
	Cooldown time.Duration
}

func NewMonitor(deps MonitorDeps) *Monitor {
	m := &Monitor{
		page:     deps.Page,
		scanner:  capture.NewScanner(),
		session:  capture.NewSession(),
		flusher:  deps.Flusher,
		auth:     deps.Auth,
		project:  deps.Project,
	}
	m.sched = scheduler.New(m.scan, scheduler.Options{
		Debounce: deps.Debounce,
		Cooldown: deps.Cooldown,
	})
	return m
}

// Run blocks until the context ends. It refuses to observe anything before
// the project id is confirmed and authentication is available; neither is
// ever guessed.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.teardown()

	projectID, err := m.awaitProject(ctx)
	if err != nil {
		return err
	}
	m.projectID = projectID

	if err := m.awaitAuth(ctx); err != nil {
		return err
	}

	if url, err := m.page.CurrentURL(ctx); err == nil {
		m.lastURL = url
	}

	m.sched.RunDiscovery(ctx, config.DiscoveryInterval, m.containerReady)
	slog.Info("monitoring started", "project_id", m.projectID)

	// Initial scan picks up messages already on the page.
	m.sched.OnRelevantChange()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-m.page.Events():
			if !ok {
				return domain.ErrWatcherStopped
			}
			m.handleEvent(ctx, ev)
		}
	}
}

func (m *Monitor) handleEvent(ctx context.Context, ev browser.Event) {
	switch ev.Kind {
	case browser.EventMutation:
		m.sched.OnRelevantChange()
	case browser.EventNavigation:
		// The host page may tear down and rebuild the chat DOM without a
		// reload; rediscover the container either way. A changed URL means
		// a fresh page visit, so capture state starts over.
		if ev.URL != "" && ev.URL != m.lastURL {
			m.lastURL = ev.URL
			// The session is not safe for concurrent use; the reset must
			// wait out any scan running on a timer goroutine.
			m.sched.Do(m.session.Reset)
			slog.Info("page navigated, session reset", "url", ev.URL)
		}
		m.ensureDiscovery(ctx)
		m.sched.OnNavigation()
	case browser.EventVisibility:
		m.ensureDiscovery(ctx)
		m.sched.OnVisibilityRegained()
	}
}

// scan runs one pass over the current page snapshot. Everything inside is
// defensively total; a failed snapshot just waits for the next trigger.
func (m *Monitor) scan() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	doc, err := m.page.Document(ctx)
	if err != nil {
		slog.Warn("snapshot failed", "error", err)
		return
	}
	container := browser.FindContainer(doc)
	if container == nil {
		slog.Debug("no chat container in snapshot")
		return
	}

	positions, err := m.page.Positions(ctx)
	if err != nil {
		// Fall back to document-order spacing.
		positions = nil
	}

	m.session.MarkScanned(time.Now())
	groups := m.scanner.Scan(m.session, capture.Snapshot{
		Container: container,
		Positions: positions,
	}, m.projectID)
	if len(groups) == 0 {
		return
	}

	if err := m.flusher.Enqueue(groups); err != nil {
		slog.Error("enqueue exchanges failed", "count", len(groups), "error", err)
		return
	}
	slog.Info("exchanges captured", "count", len(groups))
}

// ensureDiscovery restarts the container retry loop without blocking the
// event loop, and without ever stacking two loops.
func (m *Monitor) ensureDiscovery(ctx context.Context) {
	if !m.discovering.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer m.discovering.Store(false)
		m.sched.RunDiscovery(ctx, config.DiscoveryInterval, m.containerReady)
	}()
}

// containerObserver is implemented by page sources that can narrow their
// change observation to one subtree.
type containerObserver interface {
	ObserveContainer(ctx context.Context, selectors []string) (bool, error)
}

func (m *Monitor) containerReady(ctx context.Context) bool {
	doc, err := m.page.Document(ctx)
	if err != nil {
		return false
	}
	if browser.FindContainer(doc) == nil {
		return false
	}
	// Once the container exists, stop listening to the rest of the page.
	// A container found only through the structural fallback has no
	// selector to narrow to, so observation stays document-wide.
	if co, ok := m.page.(containerObserver); ok {
		if narrowed, err := co.ObserveContainer(ctx, config.ContainerSelectors); err == nil && narrowed {
			slog.Debug("observer narrowed to chat container")
		}
	}
	return true
}

// awaitProject polls the resolver until the confirmed project id exists.
func (m *Monitor) awaitProject(ctx context.Context) (string, error) {
	if id, ok := m.project.ProjectID(ctx); ok {
		return id, nil
	}
	slog.Info("waiting for confirmed project id")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", domain.ErrNoProject, ctx.Err())
		case <-ticker.C:
			if id, ok := m.project.ProjectID(ctx); ok {
				return id, nil
			}
		}
	}
}

// awaitAuth blocks until authentication is available. Nothing captured so
// far is lost while waiting; the session is merely paused.
func (m *Monitor) awaitAuth(ctx context.Context) error {
	if m.auth.IsAuthenticated(ctx) {
		return nil
	}
	slog.Info("waiting for authentication")
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", domain.ErrNotAuthenticated, ctx.Err())
		case <-ticker.C:
			if m.auth.IsAuthenticated(ctx) {
				return nil
			}
		}
	}
}

// teardown stops all timers and the page observer. Mandatory on page end.
func (m *Monitor) teardown() {
	m.sched.Stop()
	if err := m.page.Close(); err != nil {
		slog.Warn("page close", "error", err)
	}
	slog.Info("monitoring stopped")
}
