package view

import (
	"log/slog"
	"sync"

	"github.com/dukerupert/starchart/internal/identity"
)

// SessionSource is the identity provider's subscription.
type SessionSource interface {
	Subscribe() (<-chan identity.Event, func())
}

// Registry hands each session its own Dashboard and forgets it when the
// session signs out.
type Registry struct {
	deps   Deps
	logger *slog.Logger

	mu    sync.Mutex
	views map[string]*Dashboard

	unsubscribe func()
	done        chan struct{}
}

// NewRegistry subscribes to src once, for the registry's lifetime.
func NewRegistry(src SessionSource, deps Deps) *Registry {
	ch, unsubscribe := src.Subscribe()
	r := &Registry{
		deps:        deps,
		logger:      deps.Logger.With("component", "views"),
		views:       make(map[string]*Dashboard),
		unsubscribe: unsubscribe,
		done:        make(chan struct{}),
	}
	go r.watch(ch)
	return r
}

func (r *Registry) watch(ch <-chan identity.Event) {
	defer close(r.done)
	for e := range ch {
		if e.SignedOut() {
			r.Drop(e.SessionID)
		}
	}
}

// Get returns the session's dashboard, creating it on first use.
func (r *Registry) Get(sessionID string) *Dashboard {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.views[sessionID]
	if !ok {
		d = NewDashboard(sessionID, r.deps)
		r.views[sessionID] = d
	}
	return d
}

func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	_, ok := r.views[sessionID]
	delete(r.views, sessionID)
	r.mu.Unlock()

	if ok {
		r.logger.Debug("dropped dashboard", "session", identity.ShortID(sessionID))
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Close ends the subscription and waits for the watcher to exit.
func (r *Registry) Close() {
	r.unsubscribe()
	<-r.done
}
