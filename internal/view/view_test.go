package view

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/starchart/internal/database"
	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/identity"
	"github.com/dukerupert/starchart/internal/ledger"
	"github.com/dukerupert/starchart/internal/model"
	"github.com/dukerupert/starchart/internal/pager"
	"github.com/dukerupert/starchart/internal/store"
)

func setupDeps(t *testing.T) (Deps, *sql.DB) {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	docs, err := docstore.New(db, database.DriverSQLite)
	if err != nil {
		t.Fatalf("new docstore: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Deps{
		Docs:    docs,
		Ledger:  ledger.NewReader(docs, logger, nil),
		Roster:  model.Roster{"ASHA", "EKAA"},
		Timeout: 2 * time.Second,
		Logger:  logger,
	}, db
}

func seed(t *testing.T, docs *docstore.Store, child string, n, amount int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := docs.Put(context.Background(), "tasks", fmt.Sprintf("%s-%02d", child, i), map[string]any{
			"childName":   child,
			"date":        fmt.Sprintf("2024-02-%02d", i+1),
			"starDollars": amount,
			"description": "chore",
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestDashboardLoad(t *testing.T) {
	deps, _ := setupDeps(t)
	seed(t, deps.Docs, "ASHA", 12, 2)
	seed(t, deps.Docs, "EKAA", 3, 1)

	snap := NewDashboard("session-1", deps).Load(context.Background())
	if snap.Degraded {
		t.Fatalf("unexpected degraded snapshot: %v", snap.Errors)
	}
	if got := len(snap.Pages["ASHA"].Tasks); got != pager.PageSize {
		t.Errorf("ASHA tasks = %d, want %d", got, pager.PageSize)
	}
	if got := len(snap.Pages["EKAA"].Tasks); got != 3 {
		t.Errorf("EKAA tasks = %d, want 3", got)
	}
	if snap.Balance.Combined != 27 {
		t.Errorf("combined = %d, want 27", snap.Balance.Combined)
	}
	if snap.Balance.EarnedByChild["ASHA"] != 24 {
		t.Errorf("ASHA earned = %d, want 24", snap.Balance.EarnedByChild["ASHA"])
	}
}

func TestDashboardLoadDegraded(t *testing.T) {
	deps, db := setupDeps(t)
	d := NewDashboard("session-1", deps)
	db.Close()

	snap := d.Load(context.Background())
	if !snap.Degraded {
		t.Fatal("expected degraded snapshot")
	}
	if len(snap.Errors) != 3 {
		t.Errorf("errors = %v, want one per child plus balance", snap.Errors)
	}
	for _, child := range deps.Roster {
		page, ok := snap.Pages[child]
		if !ok {
			t.Errorf("missing page for %s", child)
			continue
		}
		if page.Tasks == nil || len(page.Tasks) != 0 {
			t.Errorf("%s tasks = %v, want empty slice", child, page.Tasks)
		}
	}
	if snap.Balance.Combined != 0 {
		t.Errorf("combined = %d, want 0", snap.Balance.Combined)
	}
}

func TestDashboardPagesAreIndependent(t *testing.T) {
	deps, _ := setupDeps(t)
	seed(t, deps.Docs, "ASHA", 15, 1)
	seed(t, deps.Docs, "EKAA", 15, 1)
	ctx := context.Background()

	d := NewDashboard("session-1", deps)
	d.Load(ctx)

	page, err := d.Page(ctx, "ASHA", pager.Next)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if page.PageNumber != 1 {
		t.Errorf("ASHA page = %d, want 1", page.PageNumber)
	}

	other, err := d.Page(ctx, "EKAA", pager.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if other.PageNumber != 0 {
		t.Errorf("EKAA page = %d, want 0", other.PageNumber)
	}

	// A second session starts from scratch.
	fresh, err := NewDashboard("session-2", deps).Page(ctx, "ASHA", pager.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fresh.PageNumber != 0 {
		t.Errorf("new session page = %d, want 0", fresh.PageNumber)
	}
}

func TestDashboardUnknownChild(t *testing.T) {
	deps, _ := setupDeps(t)
	_, err := NewDashboard("s", deps).Page(context.Background(), "ZED", pager.Init)
	if !errors.Is(err, ErrUnknownChild) {
		t.Errorf("err = %v, want ErrUnknownChild", err)
	}
}

type fakeSource struct {
	ch chan identity.Event
}

func (f *fakeSource) Subscribe() (<-chan identity.Event, func()) {
	return f.ch, func() { close(f.ch) }
}

func TestRegistryDropsOnSignOut(t *testing.T) {
	deps, _ := setupDeps(t)
	src := &fakeSource{ch: make(chan identity.Event, 4)}
	r := NewRegistry(src, deps)

	a := r.Get("session-a")
	if r.Get("session-a") != a {
		t.Error("expected the same dashboard for the same session")
	}
	r.Get("session-b")
	if r.Len() != 2 {
		t.Fatalf("len = %d, want 2", r.Len())
	}

	// Sign-ins are ignored.
	src.ch <- identity.Event{SessionID: "session-c", Session: &model.Session{ID: "session-c"}}
	src.ch <- identity.Event{SessionID: "session-a"}

	deadline := time.Now().Add(time.Second)
	for r.Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1 after sign-out", r.Len())
	}
	if r.Get("session-a") == a {
		t.Error("signed-out session should get a new dashboard")
	}

	r.Close()
}

func TestRegistryDropsExpiredSessions(t *testing.T) {
	deps, _ := setupDeps(t)
	ctx := context.Background()
	provider := identity.New(store.NewUserStore(deps.Docs), store.NewSessionStore(deps.Docs), 20*time.Millisecond, deps.Logger)
	if _, err := provider.CreateUser(ctx, "parent@example.com", "Parent", "correct horse"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	r := NewRegistry(provider, deps)
	defer r.Close()

	sess, err := provider.SignIn(ctx, identity.Credential{Email: "parent@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	r.Get(sess.ID)
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}

	time.Sleep(50 * time.Millisecond)
	if _, err := provider.ExpireSessions(ctx); err != nil {
		t.Fatalf("expire sessions: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for r.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.Len() != 0 {
		t.Errorf("len = %d, want 0 after expiry", r.Len())
	}
}
