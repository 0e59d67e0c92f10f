package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"tesoretto/internal/core"
	"tesoretto/internal/store"
)

// Evaluation reasons carried on trigger calls and queue messages.
const (
	ReasonExpenseAdded  = "expense.created"
	ReasonIncomeAdded   = "income.created"
	ReasonBudgetAdded   = "budget.created"
	ReasonIouAdded      = "iou.created"
	ReasonIouPaid       = "iou.paid"
	ReasonWishlistAdded = "wishlist.created"
	ReasonSavingsAdded  = "wishlist.saved"
	ReasonWalletAdded   = "wallet.created"
	ReasonImport        = "data.imported"
)

// Trigger starts an achievement pass for a user after a write.
type Trigger interface {
	Trigger(ctx context.Context, userID, reason string)
}

// RecordService validates and stores user records and triggers an
// achievement pass after every write that can satisfy a rule.
type RecordService struct {
	repo    store.Repository
	trigger Trigger
	newID   func() string
}

func NewRecordService(repo store.Repository, trigger Trigger) *RecordService {
	return &RecordService{
		repo:    repo,
		trigger: trigger,
		newID:   uuid.NewString,
	}
}

func (s *RecordService) fire(ctx context.Context, userID, reason string) {
	if s.trigger == nil {
		return
	}
	s.trigger.Trigger(ctx, userID, reason)
}

func (s *RecordService) CreateExpense(ctx context.Context, userID string, e core.Expense) (core.Expense, error) {
	e.ID = s.newID()
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.repo.AddExpense(ctx, userID, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense created",
		"user_id", userID, "id", e.ID, "amount_cents", e.Amount.Cents, "category", e.Category)
	s.fire(ctx, userID, ReasonExpenseAdded)
	return e, nil
}

func (s *RecordService) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	return s.repo.ListExpenses(ctx, userID)
}

func (s *RecordService) DeleteExpense(ctx context.Context, userID, id string) error {
	return s.repo.DeleteExpense(ctx, userID, id)
}

func (s *RecordService) CreateIncome(ctx context.Context, userID string, in core.Income) (core.Income, error) {
	in.ID = s.newID()
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	if err := s.repo.AddIncome(ctx, userID, in); err != nil {
		return core.Income{}, fmt.Errorf("save income: %w", err)
	}
	s.fire(ctx, userID, ReasonIncomeAdded)
	return in, nil
}

func (s *RecordService) ListIncome(ctx context.Context, userID string) ([]core.Income, error) {
	return s.repo.ListIncome(ctx, userID)
}

func (s *RecordService) DeleteIncome(ctx context.Context, userID, id string) error {
	return s.repo.DeleteIncome(ctx, userID, id)
}

func (s *RecordService) CreateBudget(ctx context.Context, userID string, b core.BudgetGoal) (core.BudgetGoal, error) {
	b.ID = s.newID()
	if err := b.Validate(); err != nil {
		return core.BudgetGoal{}, err
	}
	if err := s.repo.AddBudget(ctx, userID, b); err != nil {
		return core.BudgetGoal{}, fmt.Errorf("save budget: %w", err)
	}
	s.fire(ctx, userID, ReasonBudgetAdded)
	return b, nil
}

func (s *RecordService) ListBudgets(ctx context.Context, userID string) ([]core.BudgetGoal, error) {
	return s.repo.ListBudgets(ctx, userID)
}

func (s *RecordService) DeleteBudget(ctx context.Context, userID, id string) error {
	return s.repo.DeleteBudget(ctx, userID, id)
}

func (s *RecordService) CreateIou(ctx context.Context, userID string, o core.Iou) (core.Iou, error) {
	o.ID = s.newID()
	if err := o.Validate(); err != nil {
		return core.Iou{}, err
	}
	if err := s.repo.AddIou(ctx, userID, o); err != nil {
		return core.Iou{}, fmt.Errorf("save iou: %w", err)
	}
	s.fire(ctx, userID, ReasonIouAdded)
	return o, nil
}

func (s *RecordService) ListIous(ctx context.Context, userID string) ([]core.Iou, error) {
	return s.repo.ListIous(ctx, userID)
}

func (s *RecordService) DeleteIou(ctx context.Context, userID, id string) error {
	return s.repo.DeleteIou(ctx, userID, id)
}

func (s *RecordService) MarkIouPaid(ctx context.Context, userID, id string) error {
	if err := s.repo.MarkIouPaid(ctx, userID, id); err != nil {
		return err
	}
	s.fire(ctx, userID, ReasonIouPaid)
	return nil
}

func (s *RecordService) CreateWishlistItem(ctx context.Context, userID string, w core.WishlistItem) (core.WishlistItem, error) {
	w.ID = s.newID()
	if err := w.Validate(); err != nil {
		return core.WishlistItem{}, err
	}
	if err := s.repo.AddWishlistItem(ctx, userID, w); err != nil {
		return core.WishlistItem{}, fmt.Errorf("save wishlist item: %w", err)
	}
	s.fire(ctx, userID, ReasonWishlistAdded)
	return w, nil
}

func (s *RecordService) ListWishlist(ctx context.Context, userID string) ([]core.WishlistItem, error) {
	return s.repo.ListWishlist(ctx, userID)
}

func (s *RecordService) DeleteWishlistItem(ctx context.Context, userID, id string) error {
	return s.repo.DeleteWishlistItem(ctx, userID, id)
}

func (s *RecordService) AddSavings(ctx context.Context, userID, id string, amount core.Money) (core.WishlistItem, error) {
	item, err := s.repo.AddSavings(ctx, userID, id, amount)
	if err != nil {
		return core.WishlistItem{}, err
	}
	s.fire(ctx, userID, ReasonSavingsAdded)
	return item, nil
}

func (s *RecordService) CreateWallet(ctx context.Context, userID string, w core.Wallet) (core.Wallet, error) {
	w.ID = s.newID()
	if err := w.Validate(); err != nil {
		return core.Wallet{}, err
	}
	if err := s.repo.AddWallet(ctx, userID, w); err != nil {
		return core.Wallet{}, fmt.Errorf("save wallet: %w", err)
	}
	s.fire(ctx, userID, ReasonWalletAdded)
	return w, nil
}

func (s *RecordService) DeleteWallet(ctx context.Context, userID, id string) error {
	if id == core.CashWalletID {
		return core.ErrReservedWallet
	}
	return s.repo.DeleteWallet(ctx, userID, id)
}
