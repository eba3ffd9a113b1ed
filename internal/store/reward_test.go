package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func setupRewardStore(t *testing.T) *RewardStore {
	t.Helper()
	rs := NewRewardStore(setupDocs(t))
	rs.now = stepClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	return rs
}

func TestRewardCRUD(t *testing.T) {
	rs := setupRewardStore(t)
	ctx := context.Background()

	// Create does not need a session.
	reward, err := rs.Create(ctx, RewardInput{Description: "Ice Cream Trip", Cost: 50})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if reward.Description != "Ice Cream Trip" {
		t.Errorf("description = %q, want %q", reward.Description, "Ice Cream Trip")
	}
	if reward.Cost != 50 {
		t.Errorf("cost = %d, want 50", reward.Cost)
	}
	if !reward.Active {
		t.Error("expected active")
	}

	got, err := rs.GetByID(ctx, reward.ID)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if got == nil {
		t.Fatal("expected reward, got nil")
	}

	updated, err := rs.Update(ctx, reward.ID, RewardPatch{Description: strPtr("Movie Night"), Cost: intPtr(100)})
	if err != nil {
		t.Fatalf("update reward: %v", err)
	}
	if updated.Description != "Movie Night" {
		t.Errorf("description = %q, want %q", updated.Description, "Movie Night")
	}
	if updated.Cost != 100 {
		t.Errorf("cost = %d, want 100", updated.Cost)
	}

	if err := rs.Delete(ctx, reward.ID); err != nil {
		t.Fatalf("delete reward: %v", err)
	}
	got, err = rs.GetByID(ctx, reward.ID)
	if err != nil {
		t.Fatalf("get deleted reward: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestRewardListActive(t *testing.T) {
	rs := setupRewardStore(t)
	ctx := context.Background()

	_, _ = rs.Create(ctx, RewardInput{Description: "Zoo Trip", Cost: 200})
	_, _ = rs.Create(ctx, RewardInput{Description: "Arcade", Cost: 80})
	hidden, _ := rs.Create(ctx, RewardInput{Description: "Candy", Cost: 5, Active: boolPtr(false)})

	active, err := rs.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("len = %d, want 2", len(active))
	}
	if active[0].Description != "Arcade" || active[1].Description != "Zoo Trip" {
		t.Errorf("order = [%s %s], want [Arcade Zoo Trip]", active[0].Description, active[1].Description)
	}

	all, err := rs.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != hidden.ID {
		t.Errorf("list = %v, want 3 with newest first", all)
	}
}

func TestRewardToggle(t *testing.T) {
	rs := setupRewardStore(t)
	ctx := context.Background()

	r, _ := rs.Create(ctx, RewardInput{Description: "Sleepover", Cost: 300})
	off, err := rs.SetActive(ctx, r.ID, false)
	if err != nil {
		t.Fatalf("set active: %v", err)
	}
	if off.Active {
		t.Error("expected inactive")
	}
	if off.Cost != 300 {
		t.Errorf("cost = %d, want unchanged 300", off.Cost)
	}
}

func TestRewardUpdateValidation(t *testing.T) {
	rs := setupRewardStore(t)
	ctx := context.Background()

	r, _ := rs.Create(ctx, RewardInput{Description: "Sleepover", Cost: 300})
	_, err := rs.Update(ctx, r.ID, RewardPatch{Cost: intPtr(-1)})
	if !IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}

	got, _ := rs.GetByID(ctx, r.ID)
	if got.Cost != 300 {
		t.Errorf("cost = %d, want 300 (no write on validation failure)", got.Cost)
	}
}

func TestRewardUpdateMissing(t *testing.T) {
	rs := setupRewardStore(t)
	_, err := rs.Update(context.Background(), "missing", RewardPatch{Cost: intPtr(1)})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
