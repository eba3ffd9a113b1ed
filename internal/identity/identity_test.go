package identity

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/starchart/internal/database"
	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/store"
)

func setupProvider(t *testing.T) *Provider {
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
	return New(store.NewUserStore(docs), store.NewSessionStore(docs), time.Hour, logger)
}

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for session event")
	}
	return Event{}
}

func TestSignInAndResolve(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	if _, err := p.CreateUser(ctx, "parent@example.com", "Parent", "correct horse"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	sess, err := p.SignIn(ctx, Credential{Email: "Parent@Example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	got, err := p.Resolve(ctx, sess.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.Email != "parent@example.com" {
		t.Errorf("resolved = %+v, want parent@example.com", got)
	}
}

func TestSignInInvalid(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()
	_, _ = p.CreateUser(ctx, "parent@example.com", "Parent", "correct horse")

	tests := []Credential{
		{Email: "parent@example.com", Password: "wrong password"},
		{Email: "stranger@example.com", Password: "correct horse"},
	}
	for _, cred := range tests {
		_, err := p.SignIn(ctx, cred)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("SignIn(%s) err = %v, want ErrInvalidCredentials", cred.Email, err)
		}
	}
}

func TestCreateUserWeakPassword(t *testing.T) {
	p := setupProvider(t)
	_, err := p.CreateUser(context.Background(), "a@example.com", "A", "short")
	if !errors.Is(err, ErrWeakPassword) {
		t.Errorf("err = %v, want ErrWeakPassword", err)
	}
}

func TestSubscribeSeesTransitions(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()
	_, _ = p.CreateUser(ctx, "parent@example.com", "Parent", "correct horse")

	ch, cancel := p.Subscribe()
	defer cancel()

	sess, err := p.SignIn(ctx, Credential{Email: "parent@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	in := recv(t, ch)
	if in.SignedOut() || in.SessionID != sess.ID {
		t.Errorf("event = %+v, want sign-in for %s", in, sess.ID)
	}

	if err := p.SignOut(ctx, sess.ID); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	out := recv(t, ch)
	if !out.SignedOut() || out.SessionID != sess.ID {
		t.Errorf("event = %+v, want sign-out for %s", out, sess.ID)
	}

	got, err := p.Resolve(ctx, sess.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != nil {
		t.Error("session should be gone after sign out")
	}
}

func TestSignOutUnknownToken(t *testing.T) {
	p := setupProvider(t)
	ch, cancel := p.Subscribe()
	defer cancel()

	if err := p.SignOut(context.Background(), "nope"); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected event %+v", e)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	p := setupProvider(t)
	ch, cancel := p.Subscribe()
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
}

func TestExpireSessionsAnnouncesSignOut(t *testing.T) {
	p := setupProvider(t)
	p.ttl = 20 * time.Millisecond
	ctx := context.Background()
	_, _ = p.CreateUser(ctx, "parent@example.com", "Parent", "correct horse")

	sess, err := p.SignIn(ctx, Credential{Email: "parent@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	ch, cancel := p.Subscribe()
	defer cancel()

	time.Sleep(50 * time.Millisecond)
	n, err := p.ExpireSessions(ctx)
	if err != nil {
		t.Fatalf("expire sessions: %v", err)
	}
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}

	e := recv(t, ch)
	if !e.SignedOut() || e.SessionID != sess.ID || e.UserID != sess.UserID {
		t.Errorf("event = %+v, want sign-out for %s", e, sess.ID)
	}

	n, err = p.ExpireSessions(ctx)
	if err != nil || n != 0 {
		t.Errorf("second expire = %d, %v; want 0, nil", n, err)
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected event %+v", e)
	default:
	}
}

func TestNotifyDoesNotLogToken(t *testing.T) {
	p := setupProvider(t)
	var buf bytes.Buffer
	p.logger = slog.New(slog.NewTextHandler(&buf, nil))

	_, cancel := p.Subscribe()
	defer cancel()

	token := "0123456789abcdef0123456789abcdef"
	for range subscriberBuffer + 1 {
		p.notify(Event{SessionID: token})
	}

	if !strings.Contains(buf.String(), "dropping event") {
		t.Fatalf("expected a dropped-event warning, got %q", buf.String())
	}
	if strings.Contains(buf.String(), token) {
		t.Errorf("log contains the full session token: %q", buf.String())
	}
	if !strings.Contains(buf.String(), ShortID(token)) {
		t.Errorf("log missing the short session id: %q", buf.String())
	}
}
