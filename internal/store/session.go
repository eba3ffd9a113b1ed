package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/model"
)

type SessionStore struct {
	docs *docstore.Store
	now  func() time.Time
}

func NewSessionStore(docs *docstore.Store) *SessionStore {
	return &SessionStore{docs: docs, now: time.Now}
}

func decodeSession(doc docstore.Document) *model.Session {
	return &model.Session{
		ID:        doc.ID,
		UserID:    doc.String("userId"),
		Email:     doc.String("email"),
		ExpiresAt: doc.Time("expiresAt"),
		CreatedAt: doc.Time(FieldCreatedAt),
	}
}

// Create starts a session with a crypto-random token that expires after ttl.
func (s *SessionStore) Create(ctx context.Context, userID, email string, ttl time.Duration) (*model.Session, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)

	now := s.now()
	fields := map[string]any{
		"userId":       userID,
		"email":        email,
		"expiresAt":    docstore.FormatTime(now.Add(ttl)),
		FieldCreatedAt: docstore.FormatTime(now),
	}
	if err := s.docs.Put(ctx, CollectionSessions, token, fields); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return decodeSession(docstore.Document{ID: token, Fields: fields}), nil
}

// GetByToken returns the session for the given token, or nil if expired or not found.
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	doc, err := s.docs.Get(ctx, CollectionSessions, token)
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	sess := decodeSession(*doc)
	if !sess.ExpiresAt.After(s.now()) {
		return nil, nil
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.docs.Delete(ctx, CollectionSessions, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and returns them. On
// error the sessions removed so far are still returned.
func (s *SessionStore) DeleteExpired(ctx context.Context) ([]*model.Session, error) {
	docs, err := s.docs.Query(ctx, CollectionSessions, docstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := s.now()
	var removed []*model.Session
	for _, doc := range docs {
		sess := decodeSession(doc)
		if sess.ExpiresAt.After(now) {
			continue
		}
		if err := s.docs.Delete(ctx, CollectionSessions, doc.ID); err != nil {
			return removed, fmt.Errorf("delete expired sessions: %w", err)
		}
		removed = append(removed, sess)
	}
	return removed, nil
}
