package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/starchart/internal/auth"
	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/model"
)

type MissionStore struct {
	docs *docstore.Store
	now  func() time.Time
}

func NewMissionStore(docs *docstore.Store) *MissionStore {
	return &MissionStore{docs: docs, now: time.Now}
}

// MissionInput is a new mission. Active defaults to true when nil.
type MissionInput struct {
	Description string `json:"description" validate:"notblank"`
	StarDollars int    `json:"star_dollars" validate:"gt=0"`
	Active      *bool  `json:"active"`
}

// MissionPatch names the fields to change; nil fields are left alone.
type MissionPatch struct {
	Description *string `json:"description" validate:"omitnil,notblank"`
	StarDollars *int    `json:"star_dollars" validate:"omitnil,gt=0"`
	Active      *bool   `json:"active"`
}

func decodeMission(doc docstore.Document) *model.Mission {
	m := &model.Mission{
		ID:          doc.ID,
		Description: doc.String(FieldDescription),
		StarDollars: doc.Int(FieldStarDollars),
		Active:      doc.Bool(FieldActive, true),
		CreatedAt:   doc.Time(FieldCreatedAt),
	}
	if t := doc.Time(FieldUpdatedAt); !t.IsZero() {
		m.UpdatedAt = &t
	}
	return m
}

// Create adds a mission. It is the one mutation that requires a signed-in
// caller.
func (s *MissionStore) Create(ctx context.Context, in MissionInput) (*model.Mission, error) {
	if auth.UserID(ctx) == "" {
		return nil, ErrAuthRequired
	}
	if err := check(in); err != nil {
		return nil, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}
	fields := map[string]any{
		FieldDescription: strings.TrimSpace(in.Description),
		FieldStarDollars: in.StarDollars,
		FieldActive:      active,
		FieldCreatedAt:   docstore.FormatTime(s.now()),
	}

	id, err := s.docs.Insert(ctx, CollectionMissions, fields)
	if err != nil {
		return nil, fmt.Errorf("insert mission: %w", err)
	}
	return decodeMission(docstore.Document{ID: id, Fields: fields}), nil
}

func (s *MissionStore) GetByID(ctx context.Context, id string) (*model.Mission, error) {
	doc, err := s.docs.Get(ctx, CollectionMissions, id)
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeMission(*doc), nil
}

// List returns every mission, newest first.
func (s *MissionStore) List(ctx context.Context) ([]model.Mission, error) {
	docs, err := s.docs.Query(ctx, CollectionMissions, docstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}

	missions := make([]model.Mission, 0, len(docs))
	for _, doc := range docs {
		missions = append(missions, *decodeMission(doc))
	}
	slices.SortStableFunc(missions, func(a, b model.Mission) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return missions, nil
}

// ListActive returns the missions offered for selection, ordered by
// description. A mission without an active flag counts as active.
func (s *MissionStore) ListActive(ctx context.Context) ([]model.Mission, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active missions: %w", err)
	}

	var missions []model.Mission
	for _, m := range all {
		if m.Active {
			missions = append(missions, m)
		}
	}
	slices.SortStableFunc(missions, func(a, b model.Mission) int {
		return cmp.Compare(strings.ToLower(a.Description), strings.ToLower(b.Description))
	})
	return missions, nil
}

func (s *MissionStore) Update(ctx context.Context, id string, p MissionPatch) (*model.Mission, error) {
	if err := check(p); err != nil {
		return nil, err
	}

	fields := map[string]any{FieldUpdatedAt: docstore.FormatTime(s.now())}
	if p.Description != nil {
		fields[FieldDescription] = strings.TrimSpace(*p.Description)
	}
	if p.StarDollars != nil {
		fields[FieldStarDollars] = *p.StarDollars
	}
	if p.Active != nil {
		fields[FieldActive] = *p.Active
	}

	if err := s.docs.Update(ctx, CollectionMissions, id, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("update mission %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("update mission: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *MissionStore) SetActive(ctx context.Context, id string, active bool) (*model.Mission, error) {
	return s.Update(ctx, id, MissionPatch{Active: &active})
}

// Delete removes the mission. Tasks it produced keep their snapshot.
func (s *MissionStore) Delete(ctx context.Context, id string) error {
	if err := s.docs.Delete(ctx, CollectionMissions, id); err != nil {
		return fmt.Errorf("delete mission: %w", err)
	}
	return nil
}
