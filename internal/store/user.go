package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/model"
)

// ErrDuplicateEmail is returned when creating a user whose email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

type UserStore struct {
	docs *docstore.Store
	now  func() time.Time
}

func NewUserStore(docs *docstore.Store) *UserStore {
	return &UserStore{docs: docs, now: time.Now}
}

func decodeUser(doc docstore.Document) *model.User {
	return &model.User{
		ID:           doc.ID,
		Email:        doc.String("email"),
		Name:         doc.String("name"),
		PasswordHash: doc.String("passwordHash"),
		CreatedAt:    doc.Time(FieldCreatedAt),
	}
}

// Create adds a user. Emails are stored lower-cased and must be unique.
func (s *UserStore) Create(ctx context.Context, email, name, passwordHash string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("insert user %s: %w", email, ErrDuplicateEmail)
	}

	fields := map[string]any{
		"email":        email,
		"name":         strings.TrimSpace(name),
		"passwordHash": passwordHash,
		FieldCreatedAt: docstore.FormatTime(s.now()),
	}
	id, err := s.docs.Insert(ctx, CollectionUsers, fields)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return decodeUser(docstore.Document{ID: id, Fields: fields}), nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	doc, err := s.docs.Get(ctx, CollectionUsers, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeUser(*doc), nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	docs, err := s.docs.Query(ctx, CollectionUsers, docstore.Query{
		Where: &docstore.Filter{Field: "email", Value: strings.ToLower(strings.TrimSpace(email))},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeUser(docs[0]), nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	if err := s.docs.Delete(ctx, CollectionUsers, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
