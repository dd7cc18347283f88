package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/draftwing/convoscribe/internal/browser"
	"github.com/draftwing/convoscribe/internal/domain"
	"github.com/draftwing/convoscribe/internal/flush"
	"github.com/draftwing/convoscribe/internal/repository"
	"github.com/draftwing/convoscribe/internal/service"
)

const completeReply = `I'll add a login button to the navigation bar for you. ` +
	`The component renders a styled button wired to the existing auth flow, and the ` +
	`navigation layout keeps its spacing on small screens. The changes are in place ` +
	`and the button should now appear in the header. Let me know if you want different styling.`

// fakePage serves fixture HTML and lets tests push page events.
type fakePage struct {
	mu       sync.Mutex
	html     string
	url      string
	events   chan browser.Event
	closed   bool
	narrowed []string
}

func newFakePage(html string) *fakePage {
	return &fakePage{
		html:   html,
		url:    "https://host.example/p/proj-1",
		events: make(chan browser.Event, 8),
	}
}

func (p *fakePage) setHTML(html string) {
	p.mu.Lock()
	p.html = html
	p.mu.Unlock()
	p.events <- browser.Event{Kind: browser.EventMutation}
}

func (p *fakePage) navigate(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	p.events <- browser.Event{Kind: browser.EventNavigation, URL: url}
}

func (p *fakePage) ObserveContainer(_ context.Context, selectors []string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.narrowed = append(p.narrowed, selectors...)
	return true, nil
}

func (p *fakePage) Events() <-chan browser.Event { return p.events }

func (p *fakePage) Document(context.Context) (*goquery.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return goquery.NewDocumentFromReader(strings.NewReader(p.html))
}

func (p *fakePage) Positions(context.Context) (map[string]float64, error) {
	return nil, nil
}

func (p *fakePage) CurrentURL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func fixture(nodes ...string) string {
	return `<html><body><div class="conversation-container">` +
		strings.Join(nodes, "") +
		`</div></body></html>`
}

func userNode(id, text string) string {
	return `<div data-message-id="` + id + `"><div class="whitespace-pre-wrap">` + text + `</div></div>`
}

func assistantNode(id, body string) string {
	return `<div data-message-id="` + id + `"><div class="prose">` + body + `</div></div>`
}

func TestMonitorCapturesExchangeEndToEnd(t *testing.T) {
	page := newFakePage(fixture(userNode("user-message-a", "Add a login button")))
	store := repository.NewMemoryConversationStore()
	auth := service.NewStaticAuthenticator("user-1")
	flusher := flush.New(store, auth, flush.Options{Interval: 10 * time.Millisecond})

	monitor := service.NewMonitor(service.MonitorDeps{
		Page:     page,
		Flusher:  flusher,
		Auth:     auth,
		Project:  service.NewStaticProjectResolver("proj-1"),
		Debounce: 5 * time.Millisecond,
		Cooldown: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = flusher.Run(ctx) }()
	go func() { _ = monitor.Run(ctx) }()

	// The assistant reply streams in after the prompt.
	time.Sleep(30 * time.Millisecond)
	page.setHTML(fixture(
		userNode("user-message-a", "Add a login button"),
		assistantNode("assistant-message-b", completeReply),
	))

	require.Eventually(t, func() bool {
		return len(store.All()) == 1
	}, 3*time.Second, 20*time.Millisecond)

	rec := store.All()[0]
	require.Equal(t, "assistant-message-b", rec.ID)
	require.Equal(t, "proj-1", rec.ProjectID)
	require.Equal(t, "Add a login button", rec.UserText)
	require.Contains(t, rec.Categories, "Functioning")
	require.Equal(t, "assistant-message-b", rec.Context["assistant_message_id"])

	cancel()
	require.Eventually(t, func() bool {
		page.mu.Lock()
		defer page.mu.Unlock()
		return page.closed
	}, time.Second, 10*time.Millisecond)
}

func TestMonitorNarrowsObserverAfterDiscovery(t *testing.T) {
	page := newFakePage(fixture(userNode("user-message-a", "Add a login button")))
	store := repository.NewMemoryConversationStore()
	auth := service.NewStaticAuthenticator("user-1")
	flusher := flush.New(store, auth, flush.Options{Interval: 10 * time.Millisecond})

	monitor := service.NewMonitor(service.MonitorDeps{
		Page:     page,
		Flusher:  flusher,
		Auth:     auth,
		Project:  service.NewStaticProjectResolver("proj-1"),
		Debounce: 5 * time.Millisecond,
		Cooldown: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = monitor.Run(ctx) }()

	require.Eventually(t, func() bool {
		page.mu.Lock()
		defer page.mu.Unlock()
		return len(page.narrowed) > 0
	}, 3*time.Second, 10*time.Millisecond, "discovery narrows mutation observation to the container")
	page.mu.Lock()
	defer page.mu.Unlock()
	require.Contains(t, page.narrowed, "div.conversation-container")
}

// Session state is only touched from scan callbacks and the navigation
// reset; the reset must wait out any scan in flight. Run with -race.
func TestMonitorNavigationResetDuringScans(t *testing.T) {
	exchange := fixture(
		userNode("user-message-a", "Add a login button"),
		assistantNode("assistant-message-b", completeReply),
	)
	page := newFakePage(exchange)
	store := repository.NewMemoryConversationStore()
	auth := service.NewStaticAuthenticator("user-1")
	flusher := flush.New(store, auth, flush.Options{Interval: 5 * time.Millisecond})

	monitor := service.NewMonitor(service.MonitorDeps{
		Page:     page,
		Flusher:  flusher,
		Auth:     auth,
		Project:  service.NewStaticProjectResolver("proj-1"),
		Debounce: time.Millisecond,
		Cooldown: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = flusher.Run(ctx) }()
	go func() { _ = monitor.Run(ctx) }()

	for i := 0; i < 20; i++ {
		page.setHTML(exchange)
		page.navigate(fmt.Sprintf("https://host.example/p/proj-1?v=%d", i))
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(store.All()) >= 1
	}, 3*time.Second, 20*time.Millisecond)
	require.Equal(t, "assistant-message-b", store.All()[0].ID)
}

func TestMonitorWaitsForProjectID(t *testing.T) {
	page := newFakePage(fixture(
		userNode("user-message-a", "Add a login button"),
		assistantNode("assistant-message-b", completeReply),
	))
	store := repository.NewMemoryConversationStore()
	auth := service.NewStaticAuthenticator("user-1")
	flusher := flush.New(store, auth, flush.Options{Interval: 10 * time.Millisecond})
	project := service.NewStaticProjectResolver("")

	monitor := service.NewMonitor(service.MonitorDeps{
		Page:     page,
		Flusher:  flusher,
		Auth:     auth,
		Project:  project,
		Debounce: 5 * time.Millisecond,
		Cooldown: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = flusher.Run(ctx) }()
	go func() { _ = monitor.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.Empty(t, store.All(), "capture must not start before the project id is confirmed")

	project.SetProjectID("proj-1")
	require.Eventually(t, func() bool {
		return len(store.All()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, "proj-1", store.All()[0].ProjectID)
}

var _ domain.ConversationStore = repository.NewMemoryConversationStore()
