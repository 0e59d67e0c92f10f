package store

import (
	"context"

	"tesoretto/internal/core"
)

// Ports for the per-user record store. Every method is scoped to one user;
// a record id that does not belong to userID is reported as core.ErrNotFound.
type (
	ExpenseRepository interface {
		AddExpense(ctx context.Context, userID string, e core.Expense) error
		ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
		DeleteExpense(ctx context.Context, userID, id string) error
	}

	IncomeRepository interface {
		AddIncome(ctx context.Context, userID string, in core.Income) error
		ListIncome(ctx context.Context, userID string) ([]core.Income, error)
		DeleteIncome(ctx context.Context, userID, id string) error
	}

	BudgetRepository interface {
		AddBudget(ctx context.Context, userID string, b core.BudgetGoal) error
		ListBudgets(ctx context.Context, userID string) ([]core.BudgetGoal, error)
		DeleteBudget(ctx context.Context, userID, id string) error
	}

	IouRepository interface {
		AddIou(ctx context.Context, userID string, o core.Iou) error
		ListIous(ctx context.Context, userID string) ([]core.Iou, error)
		DeleteIou(ctx context.Context, userID, id string) error
		// MarkIouPaid flags the IOU as settled. Marking twice is not an error.
		MarkIouPaid(ctx context.Context, userID, id string) error
	}

	WishlistRepository interface {
		AddWishlistItem(ctx context.Context, userID string, w core.WishlistItem) error
		ListWishlist(ctx context.Context, userID string) ([]core.WishlistItem, error)
		DeleteWishlistItem(ctx context.Context, userID, id string) error
		// AddSavings increases the saved amount and returns the updated item.
		AddSavings(ctx context.Context, userID, id string, amount core.Money) (core.WishlistItem, error)
	}

	WalletRepository interface {
		AddWallet(ctx context.Context, userID string, w core.Wallet) error
		ListWallets(ctx context.Context, userID string) ([]core.Wallet, error)
		DeleteWallet(ctx context.Context, userID, id string) error
	}

	AchievementRepository interface {
		ListUnlocked(ctx context.Context, userID string) ([]core.UnlockedAchievement, error)
		// CommitUnlocks records every id in one atomic batch and returns the
		// ids that were not already present. Either all rows land or none.
		// Ids are stored as given; callers go through achievements.Persister,
		// which only submits catalog ids.
		CommitUnlocks(ctx context.Context, userID string, achievementIDs []string) ([]string, error)
	}

	// Resetter removes every record a user owns, achievements included.
	Resetter interface {
		ResetUser(ctx context.Context, userID string) error
	}

	Repository interface {
		ExpenseRepository
		IncomeRepository
		BudgetRepository
		IouRepository
		WishlistRepository
		WalletRepository
		AchievementRepository
		Resetter
		Close() error
	}
)
