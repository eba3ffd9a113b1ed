// Package ledger derives Star Dollar totals by folding raw task and
// redemption documents. Every read returns a value that is safe to render:
// on failure the value is 0 and the error is returned alongside it.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/metrics"
	"github.com/dukerupert/starchart/internal/model"
	"github.com/dukerupert/starchart/internal/store"
)

type Reader struct {
	docs    *docstore.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewReader(docs *docstore.Store, logger *slog.Logger, m *metrics.Metrics) *Reader {
	return &Reader{docs: docs, logger: logger, metrics: m}
}

// TotalEarnedForChild sums the Star Dollars on the child's tasks.
func (r *Reader) TotalEarnedForChild(ctx context.Context, child string) (int, error) {
	docs, err := r.docs.Query(ctx, store.CollectionTasks, docstore.Query{
		Where: &docstore.Filter{Field: store.FieldChildName, Value: child},
	})
	if err != nil {
		return 0, r.fail("total_earned_for_child", err, "child", child)
	}
	return sum(docs, store.FieldStarDollars), nil
}

// TotalEarnedAll sums the Star Dollars on every task.
func (r *Reader) TotalEarnedAll(ctx context.Context) (int, error) {
	docs, err := r.docs.Query(ctx, store.CollectionTasks, docstore.Query{})
	if err != nil {
		return 0, r.fail("total_earned_all", err)
	}
	return sum(docs, store.FieldStarDollars), nil
}

// TotalSpent sums the cost captured on every redemption.
func (r *Reader) TotalSpent(ctx context.Context) (int, error) {
	docs, err := r.docs.Query(ctx, store.CollectionRedemptions, docstore.Query{})
	if err != nil {
		return 0, r.fail("total_spent", err)
	}
	return sum(docs, store.FieldCost), nil
}

// CombinedBalance is everything earned minus everything spent, never below
// zero.
func (r *Reader) CombinedBalance(ctx context.Context) (int, error) {
	earned, err := r.TotalEarnedAll(ctx)
	if err != nil {
		return 0, err
	}
	spent, err := r.TotalSpent(ctx)
	if err != nil {
		return 0, err
	}
	return balance(earned, spent), nil
}

// Summary runs the independent reads concurrently. Parts that fail are
// left at zero and the first error is returned with the partial result.
// Combined is zero unless both of its inputs were read.
func (r *Reader) Summary(ctx context.Context, roster model.Roster) (model.Balance, error) {
	var (
		mu  sync.Mutex
		g   errgroup.Group
		out = model.Balance{EarnedByChild: make(map[string]int, len(roster))}
	)

	for _, child := range roster {
		g.Go(func() error {
			n, err := r.TotalEarnedForChild(ctx, child)
			mu.Lock()
			out.EarnedByChild[child] = n
			mu.Unlock()
			return err
		})
	}

	var earnedErr, spentErr error
	g.Go(func() error {
		out.TotalEarned, earnedErr = r.TotalEarnedAll(ctx)
		return earnedErr
	})
	g.Go(func() error {
		out.TotalSpent, spentErr = r.TotalSpent(ctx)
		return spentErr
	})

	err := g.Wait()
	if earnedErr == nil && spentErr == nil {
		out.Combined = balance(out.TotalEarned, out.TotalSpent)
	}
	return out, err
}

func (r *Reader) fail(op string, err error, args ...any) error {
	r.metrics.LedgerFailure(op)
	r.logger.Warn("ledger read failed", append([]any{"op", op, "error", err}, args...)...)
	return fmt.Errorf("%s: %w", op, err)
}

func sum(docs []docstore.Document, field string) int {
	total := 0
	for _, d := range docs {
		total += d.Int(field)
	}
	return total
}

func balance(earned, spent int) int {
	return max(0, earned-spent)
}
