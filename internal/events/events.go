// Package events carries mutation notifications from the handlers to every
// interested sink: connected dashboards, the message broker, metrics.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/starchart/internal/metrics"
)

const (
	EntityTask       = "task"
	EntityMission    = "mission"
	EntityReward     = "reward"
	EntityRedemption = "redemption"
	EntityBackup     = "backup"
	EntitySession    = "session"

	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionToggled   = "toggled"
	ActionDeleted   = "deleted"
	ActionSignedOut = "signed_out"
)

type Event struct {
	Entity string    `json:"entity"`
	Action string    `json:"action"`
	ID     string    `json:"id,omitempty"`
	At     time.Time `json:"at"`
}

func New(entity, action, id string) Event {
	return Event{Entity: entity, Action: action, ID: id, At: time.Now().UTC()}
}

// RoutingKey is "<entity>.<action>".
func (e Event) RoutingKey() string {
	return e.Entity + "." + e.Action
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Fanout delivers each event to every publisher. A failing publisher is
// logged and does not stop delivery to the others.
type Fanout struct {
	pubs    []Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewFanout(logger *slog.Logger, m *metrics.Metrics, pubs ...Publisher) *Fanout {
	return &Fanout{pubs: pubs, logger: logger, metrics: m}
}

// Add registers another publisher. It is not safe to call concurrently
// with Publish.
func (f *Fanout) Add(p Publisher) {
	f.pubs = append(f.pubs, p)
}

func (f *Fanout) Publish(ctx context.Context, e Event) error {
	f.metrics.Event(e.Entity, e.Action)

	var errs []error
	for _, p := range f.pubs {
		if err := p.Publish(ctx, e); err != nil {
			f.logger.Warn("publish event", "routing_key", e.RoutingKey(), "id", e.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
