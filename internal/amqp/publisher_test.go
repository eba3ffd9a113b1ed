package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/rabbitmq/amqp091-go"

	"github.com/dukerupert/starchart/internal/events"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp091.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func newTestPublisher(ch *fakeChannel) *Publisher {
	return &Publisher{
		channel:      ch,
		exchangeName: "starchart",
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestPublish(t *testing.T) {
	ch := &fakeChannel{}
	p := newTestPublisher(ch)

	e := events.New(events.EntityRedemption, events.ActionCreated, "red-1")
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if ch.exchange != "starchart" {
		t.Errorf("exchange = %q, want starchart", ch.exchange)
	}
	if ch.key != "redemption.created" {
		t.Errorf("routing key = %q, want redemption.created", ch.key)
	}
	if ch.msg.DeliveryMode != amqp091.Persistent {
		t.Errorf("delivery mode = %d, want persistent", ch.msg.DeliveryMode)
	}

	var got events.Event
	if err := json.Unmarshal(ch.msg.Body, &got); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if got.ID != "red-1" || got.Entity != "redemption" {
		t.Errorf("body = %+v, want redemption red-1", got)
	}
}

func TestPublishError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := newTestPublisher(ch)

	err := p.Publish(context.Background(), events.New(events.EntityTask, events.ActionDeleted, "t-1"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestClose(t *testing.T) {
	ch := &fakeChannel{}
	p := newTestPublisher(ch)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !ch.closed {
		t.Error("expected channel to be closed")
	}
}
