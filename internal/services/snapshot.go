package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tesoretto/internal/core"
)

// SnapshotSource is the read side of the record store.
type SnapshotSource interface {
	ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	ListIncome(ctx context.Context, userID string) ([]core.Income, error)
	ListBudgets(ctx context.Context, userID string) ([]core.BudgetGoal, error)
	ListIous(ctx context.Context, userID string) ([]core.Iou, error)
	ListWishlist(ctx context.Context, userID string) ([]core.WishlistItem, error)
	ListWallets(ctx context.Context, userID string) ([]core.Wallet, error)
	ListUnlocked(ctx context.Context, userID string) ([]core.UnlockedAchievement, error)
}

// SnapshotLoader assembles a user's snapshot by reading every collection
// concurrently.
type SnapshotLoader struct {
	src SnapshotSource
}

func NewSnapshotLoader(src SnapshotSource) *SnapshotLoader {
	return &SnapshotLoader{src: src}
}

// Load returns the user's snapshot. Any failed read fails the whole load, so
// a partially read snapshot never reaches the evaluator.
func (l *SnapshotLoader) Load(ctx context.Context, userID string) (core.Snapshot, error) {
	var (
		snap     core.Snapshot
		unlocked []core.UnlockedAchievement
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Expenses, err = l.src.ListExpenses(gctx, userID)
		return wrapRead("expenses", err)
	})
	g.Go(func() (err error) {
		snap.Income, err = l.src.ListIncome(gctx, userID)
		return wrapRead("income", err)
	})
	g.Go(func() (err error) {
		snap.Budgets, err = l.src.ListBudgets(gctx, userID)
		return wrapRead("budgets", err)
	})
	g.Go(func() (err error) {
		snap.Ious, err = l.src.ListIous(gctx, userID)
		return wrapRead("ious", err)
	})
	g.Go(func() (err error) {
		snap.Wishlist, err = l.src.ListWishlist(gctx, userID)
		return wrapRead("wishlist", err)
	})
	g.Go(func() (err error) {
		snap.Wallets, err = l.src.ListWallets(gctx, userID)
		return wrapRead("wallets", err)
	})
	g.Go(func() (err error) {
		unlocked, err = l.src.ListUnlocked(gctx, userID)
		return wrapRead("achievements", err)
	})

	if err := g.Wait(); err != nil {
		return core.Snapshot{}, err
	}
	snap.Unlocked = core.UnlockedSet(unlocked)
	return snap, nil
}

func wrapRead(collection string, err error) error {
	if err != nil {
		return fmt.Errorf("read %s: %w", collection, err)
	}
	return nil
}
