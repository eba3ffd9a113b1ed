package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/model"
)

type RedemptionStore struct {
	docs *docstore.Store
	now  func() time.Time
}

func NewRedemptionStore(docs *docstore.Store) *RedemptionStore {
	return &RedemptionStore{docs: docs, now: time.Now}
}

// RedemptionInput snapshots the reward being redeemed.
type RedemptionInput struct {
	RewardID          string `json:"reward_id" validate:"notblank"`
	RewardDescription string `json:"reward_description" validate:"notblank"`
	Cost              int    `json:"cost" validate:"gt=0"`
	RequestedBy       string `json:"requested_by" validate:"notblank"`
	Note              string `json:"note" validate:"max=500"`
}

func decodeRedemption(doc docstore.Document) *model.Redemption {
	return &model.Redemption{
		ID:                doc.ID,
		RewardID:          doc.String("rewardId"),
		RewardDescription: doc.String("rewardDescription"),
		CostAtRedemption:  doc.Int(FieldCost),
		RequestedBy:       doc.String("requestedBy"),
		Note:              doc.String("note"),
		CreatedAt:         doc.Time(FieldCreatedAt),
	}
}

func (s *RedemptionStore) Create(ctx context.Context, in RedemptionInput) (*model.Redemption, error) {
	if err := check(in); err != nil {
		return nil, err
	}

	fields := map[string]any{
		"rewardId":          in.RewardID,
		"rewardDescription": strings.TrimSpace(in.RewardDescription),
		FieldCost:           in.Cost,
		"requestedBy":       strings.TrimSpace(in.RequestedBy),
		"note":              strings.TrimSpace(in.Note),
		FieldCreatedAt:      docstore.FormatTime(s.now()),
	}

	id, err := s.docs.Insert(ctx, CollectionRedemptions, fields)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	return decodeRedemption(docstore.Document{ID: id, Fields: fields}), nil
}

func (s *RedemptionStore) GetByID(ctx context.Context, id string) (*model.Redemption, error) {
	doc, err := s.docs.Get(ctx, CollectionRedemptions, id)
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeRedemption(*doc), nil
}

// List returns all redemptions, newest first.
func (s *RedemptionStore) List(ctx context.Context) ([]model.Redemption, error) {
	docs, err := s.docs.Query(ctx, CollectionRedemptions, docstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}

	redemptions := make([]model.Redemption, 0, len(docs))
	for _, doc := range docs {
		redemptions = append(redemptions, *decodeRedemption(doc))
	}
	slices.SortStableFunc(redemptions, func(a, b model.Redemption) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return redemptions, nil
}

func (s *RedemptionStore) Delete(ctx context.Context, id string) error {
	if err := s.docs.Delete(ctx, CollectionRedemptions, id); err != nil {
		return fmt.Errorf("delete redemption: %w", err)
	}
	return nil
}
