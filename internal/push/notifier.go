package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/starchart/internal/events"
	"github.com/dukerupert/starchart/internal/store"
)

// ErrQueueFull is returned by Publish when notifications are arriving faster
// than they can be delivered.
var ErrQueueFull = errors.New("push queue full")

const queueSize = 64

// Notifier tells every subscribed parent when a child redeems a reward. It
// is an events.Publisher; delivery happens on its own goroutine so a slow
// push service never holds up a request.
type Notifier struct {
	service     *Service
	subs        *store.PushStore
	redemptions *store.RedemptionStore
	logger      *slog.Logger
	queue       chan events.Event

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewNotifier(svc *Service, subs *store.PushStore, redemptions *store.RedemptionStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		service:     svc,
		subs:        subs,
		redemptions: redemptions,
		logger:      logger,
		queue:       make(chan events.Event, queueSize),
	}
}

// Publish queues the event if it is one parents are notified about.
func (n *Notifier) Publish(_ context.Context, e events.Event) error {
	if e.Entity != events.EntityRedemption || e.Action != events.ActionCreated {
		return nil
	}
	select {
	case n.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start begins delivering queued notifications.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.done != nil {
		return
	}
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-n.queue:
				n.deliver(ctx, e)
			}
		}
	}(n.done)
}

// Stop waits for the delivery goroutine to exit. Queued notifications are
// dropped.
func (n *Notifier) Stop() {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (n *Notifier) deliver(ctx context.Context, e events.Event) {
	rd, err := n.redemptions.GetByID(ctx, e.ID)
	if err != nil {
		n.logger.Warn("push: load redemption", "id", e.ID, "error", err)
		return
	}
	if rd == nil {
		return
	}

	subs, err := n.subs.List(ctx)
	if err != nil {
		n.logger.Warn("push: list subscriptions", "error", err)
		return
	}

	payload := Payload{
		Title: "Reward redeemed",
		Body:  fmt.Sprintf("%s redeemed %s for %d Star Dollars", rd.RequestedBy, rd.RewardDescription, rd.CostAtRedemption),
		URL:   "/",
		Tag:   "redemption-" + rd.ID,
	}

	for _, sub := range subs {
		if err := n.service.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
					n.logger.Warn("push: drop expired subscription", "id", sub.ID, "error", err)
				}
				continue
			}
			n.logger.Warn("push: send redemption notification", "id", sub.ID, "error", err)
		}
	}
}
