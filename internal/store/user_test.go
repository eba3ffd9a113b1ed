package store

import (
	"context"
	"errors"
	"testing"
)

func TestUserCreate(t *testing.T) {
	us := NewUserStore(setupDocs(t))
	ctx := context.Background()

	u, err := us.Create(ctx, " Alice@Example.com ", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want alice@example.com", u.Email)
	}
	if u.PasswordHash != "hash" {
		t.Errorf("password hash = %q, want hash", u.PasswordHash)
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := NewUserStore(setupDocs(t))
	ctx := context.Background()

	if _, err := us.Create(ctx, "alice@example.com", "Alice", "h"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := us.Create(ctx, "ALICE@example.com", "Other", "h")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	us := NewUserStore(setupDocs(t))
	ctx := context.Background()

	created, _ := us.Create(ctx, "bob@example.com", "Bob", "h")

	u, err := us.GetByEmail(ctx, "Bob@Example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil {
		t.Fatal("expected user, got nil")
	}
	if u.ID != created.ID {
		t.Errorf("id = %q, want %q", u.ID, created.ID)
	}

	missing, err := us.GetByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown email")
	}
}

func TestUserDelete(t *testing.T) {
	us := NewUserStore(setupDocs(t))
	ctx := context.Background()

	u, _ := us.Create(ctx, "carol@example.com", "Carol", "h")
	if err := us.Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	got, err := us.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
