package tabs

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/events"
)

// DefaultStaleAfter is how long a tab may go without a heartbeat or
// visibility ping before it stops counting as an active dashboard.
const DefaultStaleAfter = 30 * time.Second

// Outcome is the result of RequestOpen.
type Outcome string

const (
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeOpened    Outcome = "opened"
)

// Opener opens a URL in a new browser window.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

type tab struct {
	connID       string
	lastActivity time.Time
}

// Registry tracks which dashboard tabs are alive. A tab is alive while it
// keeps pinging; a connection close only removes it sooner.
type Registry struct {
	mu         sync.Mutex
	tabs       map[string]*tab
	staleAfter time.Duration
	now        func() time.Time
	pub        events.Publisher
	opener     Opener
	logger     *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithStaleAfter overrides the staleness window.
func WithStaleAfter(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.staleAfter = d
		}
	}
}

// WithOpener sets how new dashboard windows are opened.
func WithOpener(o Opener) Option {
	return func(r *Registry) { r.opener = o }
}

// WithLogger sets the registry's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates an empty registry publishing through pub.
func New(pub events.Publisher, opts ...Option) *Registry {
	if pub == nil {
		pub = events.Discard
	}
	r := &Registry{
		tabs:       make(map[string]*tab),
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		pub:        pub,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StaleAfter returns the staleness window.
func (r *Registry) StaleAfter() time.Duration { return r.staleAfter }

// Register records tabID as an active dashboard owned by connID.
func (r *Registry) Register(tabID, connID string) {
	if tabID == "" {
		return
	}
	r.mu.Lock()
	r.tabs[tabID] = &tab{connID: connID, lastActivity: r.now()}
	r.mu.Unlock()

	r.pub.Publish(events.Status("📋", fmt.Sprintf("Dashboard tab registered: %s...", shortID(tabID))))
}

// Heartbeat refreshes a registered tab's activity stamp. Returns false for
// tabs that are not registered.
func (r *Registry) Heartbeat(tabID string) bool {
	return r.touch(tabID)
}

// MarkVisible records that a tab was brought to the foreground.
func (r *Registry) MarkVisible(tabID string) bool {
	return r.touch(tabID)
}

func (r *Registry) touch(tabID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tabs[tabID]
	if !ok {
		return false
	}
	t.lastActivity = r.now()
	return true
}

// OnDisconnect drops every tab registered under connID.
func (r *Registry) OnDisconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tabs {
		if t.connID == connID {
			delete(r.tabs, id)
		}
	}
}

// HasActiveDashboard evicts stale tabs and reports whether any remain.
func (r *Registry) HasActiveDashboard() bool {
	return r.ActiveCount() > 0
}

// ActiveCount evicts stale tabs and returns how many remain.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, t := range r.tabs {
		if now.Sub(t.lastActivity) > r.staleAfter {
			delete(r.tabs, id)
			r.logger.Debug("evicted stale dashboard tab", "tab", id, "idle", now.Sub(t.lastActivity))
		}
	}
	return len(r.tabs)
}

// Refresh asks active tabs to reload. Returns false when there are none.
func (r *Registry) Refresh() bool {
	if !r.HasActiveDashboard() {
		return false
	}
	r.pub.Publish(events.RefreshSignal{})
	return true
}

// RequestOpen refreshes the existing dashboard if one is alive, otherwise
// opens a new window at url. An opener error is reported and returned
// alongside OutcomeOpened.
func (r *Registry) RequestOpen(url string) (Outcome, error) {
	if r.Refresh() {
		r.pub.Publish(events.Status("🔄", "Refreshed existing dashboard tab."))
		return OutcomeRefreshed, nil
	}

	if r.opener == nil {
		err := fmt.Errorf("no window opener configured")
		r.pub.Publish(events.Status("⚠️", fmt.Sprintf("Could not open browser automatically: %v", err)))
		return OutcomeOpened, err
	}
	if err := r.opener.Open(url); err != nil {
		r.pub.Publish(events.Status("⚠️", fmt.Sprintf("Could not open browser automatically: %v", err)))
		return OutcomeOpened, fmt.Errorf("open %s: %w", url, err)
	}
	r.pub.Publish(events.Status("🌐", fmt.Sprintf("Opened new dashboard in browser at %s.", url)))
	return OutcomeOpened, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
