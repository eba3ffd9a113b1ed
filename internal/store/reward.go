package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/model"
)

type RewardStore struct {
	docs *docstore.Store
	now  func() time.Time
}

func NewRewardStore(docs *docstore.Store) *RewardStore {
	return &RewardStore{docs: docs, now: time.Now}
}

type RewardInput struct {
	Description string `json:"description" validate:"notblank"`
	Cost        int    `json:"cost" validate:"gt=0"`
	Active      *bool  `json:"active"`
}

type RewardPatch struct {
	Description *string `json:"description" validate:"omitnil,notblank"`
	Cost        *int    `json:"cost" validate:"omitnil,gt=0"`
	Active      *bool   `json:"active"`
}

func decodeReward(doc docstore.Document) *model.Reward {
	r := &model.Reward{
		ID:          doc.ID,
		Description: doc.String(FieldDescription),
		Cost:        doc.Int(FieldCost),
		Active:      doc.Bool(FieldActive, true),
		CreatedAt:   doc.Time(FieldCreatedAt),
	}
	if t := doc.Time(FieldUpdatedAt); !t.IsZero() {
		r.UpdatedAt = &t
	}
	return r
}

func (s *RewardStore) Create(ctx context.Context, in RewardInput) (*model.Reward, error) {
	if err := check(in); err != nil {
		return nil, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}
	fields := map[string]any{
		FieldDescription: strings.TrimSpace(in.Description),
		FieldCost:        in.Cost,
		FieldActive:      active,
		FieldCreatedAt:   docstore.FormatTime(s.now()),
	}

	id, err := s.docs.Insert(ctx, CollectionRewards, fields)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	return decodeReward(docstore.Document{ID: id, Fields: fields}), nil
}

func (s *RewardStore) GetByID(ctx context.Context, id string) (*model.Reward, error) {
	doc, err := s.docs.Get(ctx, CollectionRewards, id)
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeReward(*doc), nil
}

// List returns all rewards, newest first.
func (s *RewardStore) List(ctx context.Context) ([]model.Reward, error) {
	docs, err := s.docs.Query(ctx, CollectionRewards, docstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}

	rewards := make([]model.Reward, 0, len(docs))
	for _, doc := range docs {
		rewards = append(rewards, *decodeReward(doc))
	}
	slices.SortStableFunc(rewards, func(a, b model.Reward) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return rewards, nil
}

// ListActive returns only active rewards, ordered by description.
func (s *RewardStore) ListActive(ctx context.Context) ([]model.Reward, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rewards: %w", err)
	}

	var rewards []model.Reward
	for _, r := range all {
		if r.Active {
			rewards = append(rewards, r)
		}
	}
	slices.SortStableFunc(rewards, func(a, b model.Reward) int {
		return cmp.Compare(strings.ToLower(a.Description), strings.ToLower(b.Description))
	})
	return rewards, nil
}

func (s *RewardStore) Update(ctx context.Context, id string, p RewardPatch) (*model.Reward, error) {
	if err := check(p); err != nil {
		return nil, err
	}

	fields := map[string]any{FieldUpdatedAt: docstore.FormatTime(s.now())}
	if p.Description != nil {
		fields[FieldDescription] = strings.TrimSpace(*p.Description)
	}
	if p.Cost != nil {
		fields[FieldCost] = *p.Cost
	}
	if p.Active != nil {
		fields[FieldActive] = *p.Active
	}

	if err := s.docs.Update(ctx, CollectionRewards, id, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("update reward %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RewardStore) SetActive(ctx context.Context, id string, active bool) (*model.Reward, error) {
	return s.Update(ctx, id, RewardPatch{Active: &active})
}

func (s *RewardStore) Delete(ctx context.Context, id string) error {
	if err := s.docs.Delete(ctx, CollectionRewards, id); err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return nil
}
