// Package view owns the per-session dashboard state: one pager per child
// plus the balance, loaded together under a deadline.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/identity"
	"github.com/dukerupert/starchart/internal/ledger"
	"github.com/dukerupert/starchart/internal/metrics"
	"github.com/dukerupert/starchart/internal/model"
	"github.com/dukerupert/starchart/internal/pager"
)

var ErrUnknownChild = errors.New("unknown child")

// Deps are the collaborators every dashboard shares.
type Deps struct {
	Docs    *docstore.Store
	Ledger  *ledger.Reader
	Roster  model.Roster
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Snapshot is what a dashboard renders. A degraded snapshot still carries
// every child and a balance; failed parts are empty or zero.
type Snapshot struct {
	Pages    map[string]pager.Page `json:"pages"`
	Balance  model.Balance         `json:"balance"`
	Degraded bool                  `json:"degraded"`
	Errors   []string              `json:"errors,omitempty"`
}

type Dashboard struct {
	sessionID string
	deps      Deps
	pagers    map[string]*pager.Pager
}

// NewDashboard creates the pagers for every child up front.
func NewDashboard(sessionID string, deps Deps) *Dashboard {
	d := &Dashboard{
		sessionID: sessionID,
		deps:      deps,
		pagers:    make(map[string]*pager.Pager, len(deps.Roster)),
	}
	logger := deps.Logger.With("session", identity.ShortID(sessionID))
	for _, child := range deps.Roster {
		d.pagers[child] = pager.New(deps.Docs, child, logger, deps.Metrics)
	}
	return d
}

func (d *Dashboard) SessionID() string { return d.sessionID }

// Load resets every pager to its first page and reads the balance, all
// concurrently and bounded by the view timeout.
func (d *Dashboard) Load(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, d.deps.Timeout)
	defer cancel()

	snap := Snapshot{Pages: make(map[string]pager.Page, len(d.pagers))}
	var (
		mu   sync.Mutex
		g    errgroup.Group
		errs []string
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err.Error())
		mu.Unlock()
	}

	for child, p := range d.pagers {
		g.Go(func() error {
			page, err := p.Init(ctx)
			if err != nil {
				record(fmt.Errorf("load tasks for %s: %w", child, err))
				page = emptyPage(child)
			}
			mu.Lock()
			snap.Pages[child] = page
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		b, err := d.deps.Ledger.Summary(ctx, d.deps.Roster)
		if err != nil {
			record(fmt.Errorf("load balance: %w", err))
		}
		mu.Lock()
		snap.Balance = b
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	if len(errs) > 0 {
		snap.Degraded = true
		snap.Errors = errs
		d.deps.Logger.Warn("dashboard degraded", "session", identity.ShortID(d.sessionID), "errors", errs)
	}
	return snap
}

// Page applies a pager action for one child.
func (d *Dashboard) Page(ctx context.Context, child string, action pager.Action) (pager.Page, error) {
	p, ok := d.pagers[child]
	if !ok {
		return pager.Page{}, fmt.Errorf("%w: %s", ErrUnknownChild, child)
	}
	ctx, cancel := context.WithTimeout(ctx, d.deps.Timeout)
	defer cancel()
	return p.Do(ctx, action)
}

// Balance reads the household totals.
func (d *Dashboard) Balance(ctx context.Context) (model.Balance, error) {
	ctx, cancel := context.WithTimeout(ctx, d.deps.Timeout)
	defer cancel()
	return d.deps.Ledger.Summary(ctx, d.deps.Roster)
}

func emptyPage(child string) pager.Page {
	return pager.Page{Child: child, Tasks: []model.Task{}}
}

