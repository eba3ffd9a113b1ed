// Package identity signs parents in and out and announces every session
// transition to subscribers.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/starchart/internal/model"
	"github.com/dukerupert/starchart/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const subscriberBuffer = 32

type Credential struct {
	Email    string
	Password string
}

// Event is one session transition. Session is nil when SessionID signed out.
type Event struct {
	SessionID string
	UserID    string
	Session   *model.Session
}

func (e Event) SignedOut() bool { return e.Session == nil }

type Provider struct {
	users    *store.UserStore
	sessions *store.SessionStore
	ttl      time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

func New(users *store.UserStore, sessions *store.SessionStore, ttl time.Duration, logger *slog.Logger) *Provider {
	return &Provider{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		logger:   logger,
		subs:     make(map[int]chan Event),
	}
}

// CreateUser registers a parent account with a bcrypt password hash.
func (p *Provider) CreateUser(ctx context.Context, email, name, password string) (*model.User, error) {
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("create user: email is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return p.users.Create(ctx, email, name, string(hash))
}

// SignIn checks the credential and opens a session. Unknown emails and
// wrong passwords both yield ErrInvalidCredentials.
func (p *Provider) SignIn(ctx context.Context, cred Credential) (*model.Session, error) {
	user, err := p.users.GetByEmail(ctx, cred.Email)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(cred.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sess, err := p.sessions.Create(ctx, user.ID, user.Email, p.ttl)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	p.logger.Info("signed in", "user_id", user.ID)
	p.notify(Event{SessionID: sess.ID, UserID: user.ID, Session: sess})
	return sess, nil
}

// SignOut ends the session. Signing out an unknown token is not an error
// and announces nothing.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	sess, err := p.sessions.GetByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if err := p.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if sess == nil {
		return nil
	}

	p.logger.Info("signed out", "user_id", sess.UserID)
	p.notify(Event{SessionID: token, UserID: sess.UserID})
	return nil
}

// ExpireSessions deletes sessions past their expiry and announces each one
// as signed out. It returns how many were removed.
func (p *Provider) ExpireSessions(ctx context.Context) (int, error) {
	removed, err := p.sessions.DeleteExpired(ctx)
	for _, sess := range removed {
		p.logger.Info("session expired", "user_id", sess.UserID, "session", ShortID(sess.ID))
		p.notify(Event{SessionID: sess.ID, UserID: sess.UserID})
	}
	if err != nil {
		return len(removed), fmt.Errorf("expire sessions: %w", err)
	}
	return len(removed), nil
}

// Resolve returns the live session for token, or nil.
func (p *Provider) Resolve(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, nil
	}
	return p.sessions.GetByToken(ctx, token)
}

// Subscribe registers for session transitions. The returned function
// unsubscribes and closes the channel.
func (p *Provider) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (p *Provider) notify(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ch := range p.subs {
		select {
		case ch <- e:
		default:
			p.logger.Warn("session subscriber full, dropping event", "session", ShortID(e.SessionID))
		}
	}
}

// ShortID trims a session token to a prefix that is safe to log.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
