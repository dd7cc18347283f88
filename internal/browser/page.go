// Package browser attaches to the host chat page over the Chrome DevTools
// Protocol and surfaces the page as HTML snapshots plus a stream of
// qualifying change events. The host DOM is strictly read-only from here.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/draftwing/convoscribe/internal/config"
)

// EventKind classifies a page change notification.
type EventKind string

const (
	EventMutation   EventKind = "mutation"
	EventNavigation EventKind = "navigation"
	EventVisibility EventKind = "visibility"
)

// Event is one observed page change.
type Event struct {
	Kind EventKind
	URL  string
}

// Options configure the page connection.
type Options struct {
	// DebuggerURL attaches to a running Chrome; empty launches one.
	DebuggerURL string
	Headless    bool
	PollEvery   time.Duration
}

// Page wraps one observed chat tab. It injects a MutationObserver limited
// to child-list changes and identifier/class/style attribute churn, so
// unrelated attribute noise never wakes the scan scheduler.
type Page struct {
	browser *rod.Browser
	page    *rod.Page

	events chan Event
	done   chan struct{}
	stop   sync.Once

	poll time.Duration
}

// Connect attaches to (or launches) Chrome and opens the target page.
func Connect(ctx context.Context, url string, opts Options) (*Page, error) {
	controlURL := opts.DebuggerURL
	if controlURL == "" {
		launched, err := launcher.New().Headless(opts.Headless).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = launched
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	poll := opts.PollEvery
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	p := &Page{
		browser: b,
		page:    page,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		poll:    poll,
	}
	if err := p.installObservers(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	go p.streamEvents(ctx)
	return p, nil
}

// Events delivers mutation/navigation/visibility notifications. The
// channel goes quiet after Close; consumers select on their own context.
func (p *Page) Events() <-chan Event {
	return p.events
}

// HTML snapshots the current document markup.
func (p *Page) HTML(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      `() => document.documentElement.outerHTML`,
		ByValue: true,
	})
	if err != nil {
		return "", fmt.Errorf("snapshot html: %w", err)
	}
	return res.Value.Str(), nil
}

// Document snapshots and parses the current page.
func (p *Page) Document(ctx context.Context) (*goquery.Document, error) {
	html, err := p.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return doc, nil
}

// Positions reads the vertical offset of every message node, keyed by its
// identifier, for position-based ordering and pairing proximity.
func (p *Page) Positions(ctx context.Context) (map[string]float64, error) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: fmt.Sprintf(`
		() => {
			const out = {};
			document.querySelectorAll(%q).forEach((el) => {
				const id = el.getAttribute('data-message-id');
				if (!id) return;
				out[id] = el.getBoundingClientRect().top + window.scrollY;
			});
			return out;
		}
		`, config.MessageNodeSelector),
		ByValue: true,
	})
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	positions := map[string]float64{}
	if err := json.Unmarshal(raw, &positions); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return positions, nil
}

// ObserveContainer narrows the MutationObserver to the first element
// matching one of the container selectors, so churn elsewhere on the page
// stops waking the scheduler. Reports false when no selector matches yet;
// the observer then stays on the whole document.
func (p *Page) ObserveContainer(ctx context.Context, selectors []string) (bool, error) {
	sels, err := json.Marshal(selectors)
	if err != nil {
		return false, fmt.Errorf("encode container selectors: %w", err)
	}
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      fmt.Sprintf(`() => window.__convoscribeRetarget ? window.__convoscribeRetarget(%s) : false`, sels),
		ByValue: true,
	})
	if err != nil {
		return false, fmt.Errorf("narrow observer: %w", err)
	}
	return res.Value.Bool(), nil
}

// CurrentURL returns the page's URL, used to derive the project correlation
// key and to notice same-document navigation.
func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      `() => window.location.href`,
		ByValue: true,
	})
	if err != nil {
		return "", fmt.Errorf("read url: %w", err)
	}
	return res.Value.Str(), nil
}

// Close tears the observation down: the event stream stops, the injected
// observer dies with the page, and the browser connection is released.
func (p *Page) Close() error {
	var err error
	p.stop.Do(func() {
		close(p.done)
		if p.page != nil {
			err = p.page.Close()
		}
		if p.browser != nil {
			if cerr := p.browser.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}

// installObservers injects the in-page hooks: a MutationObserver filtered
// to qualifying changes, a history hook for same-document navigation, and
// a visibilitychange listener. All of them append to a window buffer that
// streamEvents drains.
func (p *Page) installObservers(ctx context.Context) error {
	_, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `
		() => {
			const w = window;
			if (w.__convoscribeHooked) return true;
			w.__convoscribeHooked = true;
			w.__convoscribeEvents = [];

			const push = (kind) => {
				w.__convoscribeEvents.push({ kind, url: w.location.href });
			};

			const obs = new MutationObserver((mutations) => {
				for (const m of mutations) {
					if (m.type === 'childList') { push('mutation'); return; }
					if (m.type === 'attributes') { push('mutation'); return; }
				}
			});
			const obsOpts = {
				childList: true,
				subtree: true,
				attributes: true,
				attributeFilter: ['data-message-id', 'class', 'style'],
			};
			// Observe the whole document until the chat container is known,
			// then narrow to its subtree via the retarget hook.
			obs.observe(document.documentElement || document.body, obsOpts);
			w.__convoscribeObserved = null;
			w.__convoscribeRetarget = (selectors) => {
				for (const sel of selectors) {
					const el = document.querySelector(sel);
					if (!el) continue;
					if (w.__convoscribeObserved === el) return true;
					obs.disconnect();
					obs.observe(el, obsOpts);
					w.__convoscribeObserved = el;
					return true;
				}
				return false;
			};

			const origPush = history.pushState.bind(history);
			history.pushState = function (...args) {
				const r = origPush(...args);
				push('navigation');
				return r;
			};
			w.addEventListener('popstate', () => push('navigation'));

			document.addEventListener('visibilitychange', () => {
				if (document.visibilityState === 'visible') push('visibility');
			});
			return true;
		}
		`,
		ByValue: true,
	})
	if err != nil {
		return fmt.Errorf("install observers: %w", err)
	}
	return nil
}

// streamEvents drains the in-page buffer and forwards full-navigation CDP
// events. Mutation bursts collapse naturally downstream; here everything
// qualifying is forwarded.
func (p *Page) streamEvents(ctx context.Context) {
	waitNav := p.page.Context(ctx).EachEvent(func(ev *proto.PageFrameNavigated) {
		p.emit(ctx, Event{Kind: EventNavigation, URL: ev.Frame.URL})
	})
	go waitNav()

	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
			p.drainBuffer(ctx)
		}
	}
}

func (p *Page) drainBuffer(ctx context.Context) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `
		() => {
			const buf = Array.isArray(window.__convoscribeEvents) ? window.__convoscribeEvents : [];
			window.__convoscribeEvents = [];
			return buf;
		}
		`,
		ByValue: true,
	})
	if err != nil || res == nil || res.Value.Nil() {
		return
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return
	}
	var events []struct {
		Kind string `json:"kind"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(raw, &events); err != nil {
		slog.Debug("discard malformed page events", "error", err)
		return
	}
	for _, ev := range events {
		p.emit(ctx, Event{Kind: EventKind(ev.Kind), URL: ev.URL})
	}
}

// emit drops events when the consumer lags; the scheduler only needs to
// know that something changed, not how many times.
func (p *Page) emit(ctx context.Context, ev Event) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
	case <-p.done:
	default:
	}
}
