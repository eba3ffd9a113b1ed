package store

import (
	"context"
	"testing"
	"time"
)

func TestRedemptionSnapshot(t *testing.T) {
	docs := setupDocs(t)
	rs := NewRewardStore(docs)
	red := NewRedemptionStore(docs)
	red.now = stepClock(time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	reward, err := rs.Create(ctx, RewardInput{Description: "Movie Night", Cost: 40})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	r, err := red.Create(ctx, RedemptionInput{
		RewardID:          reward.ID,
		RewardDescription: reward.Description,
		Cost:              reward.Cost,
		RequestedBy:       "ASHA",
		Note:              "Friday please",
	})
	if err != nil {
		t.Fatalf("create redemption: %v", err)
	}

	// Changing the reward later does not touch the redemption.
	if _, err := rs.Update(ctx, reward.ID, RewardPatch{Cost: intPtr(90), Description: strPtr("Cinema")}); err != nil {
		t.Fatalf("update reward: %v", err)
	}

	got, err := red.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("get redemption: %v", err)
	}
	if got.CostAtRedemption != 40 {
		t.Errorf("cost = %d, want 40", got.CostAtRedemption)
	}
	if got.RewardDescription != "Movie Night" {
		t.Errorf("reward_description = %q, want Movie Night", got.RewardDescription)
	}
	if got.Note != "Friday please" {
		t.Errorf("note = %q, want Friday please", got.Note)
	}
}

func TestRedemptionListNewestFirst(t *testing.T) {
	docs := setupDocs(t)
	red := NewRedemptionStore(docs)
	red.now = stepClock(time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, _ := red.Create(ctx, RedemptionInput{RewardID: "r1", RewardDescription: "A", Cost: 1, RequestedBy: "ASHA"})
	second, _ := red.Create(ctx, RedemptionInput{RewardID: "r2", RewardDescription: "B", Cost: 2, RequestedBy: "EKAA"})

	list, err := red.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("order = [%s %s], want newest first", list[0].ID, list[1].ID)
	}
}

func TestRedemptionValidation(t *testing.T) {
	red := NewRedemptionStore(setupDocs(t))
	_, err := red.Create(context.Background(), RedemptionInput{RewardID: "r1", RewardDescription: "A", Cost: 1})
	if !IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}
