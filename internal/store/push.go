package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/model"
)

type PushStore struct {
	docs *docstore.Store
	now  func() time.Time
}

func NewPushStore(docs *docstore.Store) *PushStore {
	return &PushStore{docs: docs, now: time.Now}
}

// PushInput is a browser's PushSubscription as reported by the service worker.
type PushInput struct {
	Endpoint   string `json:"endpoint" validate:"notblank,url"`
	P256dh     string `json:"p256dh" validate:"notblank"`
	Auth       string `json:"auth" validate:"notblank"`
	DeviceName string `json:"device_name" validate:"max=100"`
}

func decodePushSubscription(doc docstore.Document) *model.PushSubscription {
	return &model.PushSubscription{
		ID:         doc.ID,
		UserID:     doc.String("userId"),
		Endpoint:   doc.String("endpoint"),
		P256dhKey:  doc.String("p256dh"),
		AuthKey:    doc.String("auth"),
		DeviceName: doc.String("deviceName"),
		CreatedAt:  doc.Time(FieldCreatedAt),
	}
}

// subscriptionID is stable per endpoint so a browser that subscribes again
// replaces its earlier keys.
func subscriptionID(endpoint string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(endpoint)).String()
}

// Subscribe registers the browser for the signed-in parent.
func (s *PushStore) Subscribe(ctx context.Context, userID string, in PushInput) (*model.PushSubscription, error) {
	if userID == "" {
		return nil, ErrAuthRequired
	}
	if err := check(in); err != nil {
		return nil, err
	}

	id := subscriptionID(in.Endpoint)
	fields := map[string]any{
		"userId":       userID,
		"endpoint":     in.Endpoint,
		"p256dh":       in.P256dh,
		"auth":         in.Auth,
		"deviceName":   strings.TrimSpace(in.DeviceName),
		FieldCreatedAt: docstore.FormatTime(s.now()),
	}
	if err := s.docs.Put(ctx, CollectionPushSubscriptions, id, fields); err != nil {
		return nil, fmt.Errorf("save push subscription: %w", err)
	}
	return decodePushSubscription(docstore.Document{ID: id, Fields: fields}), nil
}

func (s *PushStore) GetByID(ctx context.Context, id string) (*model.PushSubscription, error) {
	doc, err := s.docs.Get(ctx, CollectionPushSubscriptions, id)
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodePushSubscription(*doc), nil
}

// ListByUser returns the parent's subscriptions, newest first.
func (s *PushStore) ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	return s.list(ctx, &docstore.Filter{Field: "userId", Value: userID})
}

// List returns every subscription in the household.
func (s *PushStore) List(ctx context.Context) ([]model.PushSubscription, error) {
	return s.list(ctx, nil)
}

func (s *PushStore) list(ctx context.Context, where *docstore.Filter) ([]model.PushSubscription, error) {
	docs, err := s.docs.Query(ctx, CollectionPushSubscriptions, docstore.Query{Where: where})
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	subs := make([]model.PushSubscription, 0, len(docs))
	for _, doc := range docs {
		subs = append(subs, *decodePushSubscription(doc))
	}
	slices.SortStableFunc(subs, func(a, b model.PushSubscription) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return subs, nil
}

// Unsubscribe removes one of the parent's own subscriptions. Another
// parent's subscription is reported as not found.
func (s *PushStore) Unsubscribe(ctx context.Context, userID, id string) error {
	sub, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sub == nil || sub.UserID != userID {
		return ErrNotFound
	}
	return s.Delete(ctx, id)
}

func (s *PushStore) Delete(ctx context.Context, id string) error {
	if err := s.docs.Delete(ctx, CollectionPushSubscriptions, id); err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// DeleteByEndpoint drops a subscription the push service reported gone.
func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	return s.Delete(ctx, subscriptionID(endpoint))
}
