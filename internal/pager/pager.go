// Package pager walks one child's task history a page at a time using
// keyset cursors, newest date first.
package pager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/metrics"
	"github.com/dukerupert/starchart/internal/model"
	"github.com/dukerupert/starchart/internal/store"
)

const PageSize = 10

type Action string

const (
	Init    Action = "init"
	Next    Action = "next"
	Prev    Action = "prev"
	Refresh Action = "refresh"
)

// ParseAction maps a request parameter to an Action. Empty means Init.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case "":
		return Init, nil
	case Init, Next, Prev, Refresh:
		return a, nil
	default:
		return "", fmt.Errorf("unknown pager action %q", s)
	}
}

// Page is one window of a child's tasks. HasNext is true whenever the page
// is full, so it reports a next page that turns out empty when the history
// ends exactly on a page boundary.
type Page struct {
	Child      string       `json:"child"`
	Tasks      []model.Task `json:"tasks"`
	PageNumber int          `json:"page_number"`
	HasPrev    bool         `json:"has_prev"`
	HasNext    bool         `json:"has_next"`
}

// Pager holds the cursor state for one child. pageStart[n] and pageEnd[n]
// are the first and last documents of page n; both slices cover pages 0
// through current and nothing beyond, except that an empty page 0 has no
// cursors at all.
type Pager struct {
	docs    *docstore.Store
	child   string
	size    int
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	started   bool
	current   int
	pageStart []docstore.Document
	pageEnd   []docstore.Document
	last      Page
}

func New(docs *docstore.Store, child string, logger *slog.Logger, m *metrics.Metrics) *Pager {
	return &Pager{
		docs:    docs,
		child:   child,
		size:    PageSize,
		logger:  logger,
		metrics: m,
	}
}

func (p *Pager) Child() string { return p.child }

// CurrentPage returns the zero-based index of the page last served.
func (p *Pager) CurrentPage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Do applies action and returns the resulting page. Any action on a pager
// that has never been initialised behaves as Init. On error the cursor
// state is left exactly as it was.
func (p *Pager) Do(ctx context.Context, action Action) (Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		action = Init
	}

	var (
		page Page
		err  error
	)
	switch action {
	case Init:
		page, err = p.init(ctx)
	case Next:
		page, err = p.next(ctx)
	case Prev:
		page, err = p.prev(ctx)
	case Refresh:
		page, err = p.refresh(ctx, p.current)
	default:
		return Page{}, fmt.Errorf("unknown pager action %q", action)
	}

	p.metrics.PagerFetch(string(action), err)
	if err != nil {
		p.logger.Warn("task page fetch failed", "child", p.child, "action", action, "error", err)
		return Page{}, err
	}
	return page, nil
}

func (p *Pager) Init(ctx context.Context) (Page, error)    { return p.Do(ctx, Init) }
func (p *Pager) Next(ctx context.Context) (Page, error)    { return p.Do(ctx, Next) }
func (p *Pager) Prev(ctx context.Context) (Page, error)    { return p.Do(ctx, Prev) }
func (p *Pager) Refresh(ctx context.Context) (Page, error) { return p.Do(ctx, Refresh) }

func (p *Pager) init(ctx context.Context) (Page, error) {
	docs, err := p.fetch(ctx, docstore.Query{})
	if err != nil {
		return Page{}, err
	}
	p.started = true
	p.pageStart, p.pageEnd = nil, nil
	return p.commit(0, docs), nil
}

func (p *Pager) next(ctx context.Context) (Page, error) {
	if len(p.pageEnd) <= p.current {
		return p.last, nil
	}
	end := p.pageEnd[p.current]
	docs, err := p.fetch(ctx, docstore.Query{StartAfter: &end})
	if err != nil {
		return Page{}, err
	}
	if len(docs) == 0 {
		return p.last, nil
	}
	return p.commit(p.current+1, docs), nil
}

func (p *Pager) prev(ctx context.Context) (Page, error) {
	if p.current == 0 {
		return p.last, nil
	}
	start := p.pageStart[p.current-1]
	docs, err := p.fetch(ctx, docstore.Query{StartAt: &start})
	if err != nil {
		return Page{}, err
	}
	if len(docs) == 0 && p.current > 1 {
		return p.refresh(ctx, p.current-2)
	}
	return p.commit(p.current-1, docs), nil
}

// refresh re-reads page n from its first cursor. If the page has emptied
// out it falls back one page at a time until it finds records or reaches
// page 0.
func (p *Pager) refresh(ctx context.Context, n int) (Page, error) {
	// Page n has no cursor once it was served empty; only page 0 may be
	// read from the start.
	if n > 0 && n >= len(p.pageStart) {
		return p.refresh(ctx, n-1)
	}
	var q docstore.Query
	if n < len(p.pageStart) {
		start := p.pageStart[n]
		q.StartAt = &start
	}
	docs, err := p.fetch(ctx, q)
	if err != nil {
		return Page{}, err
	}
	if len(docs) == 0 && n > 0 {
		return p.refresh(ctx, n-1)
	}
	return p.commit(n, docs), nil
}

func (p *Pager) fetch(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	q.Where = &docstore.Filter{Field: store.FieldChildName, Value: p.child}
	q.OrderBy = store.FieldDate
	q.Desc = true
	q.Limit = p.size

	docs, err := p.docs.Query(ctx, store.CollectionTasks, q)
	if err != nil {
		return nil, fmt.Errorf("fetch tasks for %s: %w", p.child, err)
	}
	return docs, nil
}

// commit makes page n current with the fetched documents.
func (p *Pager) commit(n int, docs []docstore.Document) Page {
	p.current = n
	p.pageStart = p.pageStart[:min(n, len(p.pageStart))]
	p.pageEnd = p.pageEnd[:min(n, len(p.pageEnd))]
	if len(docs) > 0 {
		p.pageStart = append(p.pageStart, docs[0])
		p.pageEnd = append(p.pageEnd, docs[len(docs)-1])
	}

	tasks := make([]model.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, store.DecodeTask(d))
	}
	p.last = Page{
		Child:      p.child,
		Tasks:      tasks,
		PageNumber: n,
		HasPrev:    n > 0,
		HasNext:    len(docs) == p.size,
	}
	return p.last
}
