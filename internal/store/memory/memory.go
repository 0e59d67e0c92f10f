package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tesoretto/internal/core"
)

type userData struct {
	expenses []core.Expense
	income   []core.Income
	budgets  []core.BudgetGoal
	ious     []core.Iou
	wishlist []core.WishlistItem
	wallets  []core.Wallet
	unlocked []core.UnlockedAchievement
}

// Store keeps every user's records in process memory. It is safe for
// concurrent use.
type Store struct {
	mu        sync.Mutex
	users     map[string]*userData
	now       func() time.Time
	commitErr error
}

type Option func(*Store)

// WithClock overrides the unlock timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCommitError makes every CommitUnlocks call fail with err.
func WithCommitError(err error) Option {
	return func(s *Store) { s.commitErr = err }
}

func New(opts ...Option) *Store {
	s := &Store{users: map[string]*userData{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) user(id string) *userData {
	u, ok := s.users[id]
	if !ok {
		u = &userData{}
		s.users[id] = u
	}
	return u
}

func (s *Store) AddExpense(_ context.Context, userID string, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	u.expenses = append(u.expenses, e)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, userID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.user(userID).expenses...), nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	out, ok := remove(u.expenses, func(e core.Expense) bool { return e.ID == id })
	if !ok {
		return fmt.Errorf("delete expense %s: %w", id, core.ErrNotFound)
	}
	u.expenses = out
	return nil
}

func (s *Store) AddIncome(_ context.Context, userID string, in core.Income) error {
	if err := in.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	u.income = append(u.income, in)
	return nil
}

func (s *Store) ListIncome(_ context.Context, userID string) ([]core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Income(nil), s.user(userID).income...), nil
}

func (s *Store) DeleteIncome(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	out, ok := remove(u.income, func(in core.Income) bool { return in.ID == id })
	if !ok {
		return fmt.Errorf("delete income %s: %w", id, core.ErrNotFound)
	}
	u.income = out
	return nil
}

func (s *Store) AddBudget(_ context.Context, userID string, b core.BudgetGoal) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	u.budgets = append(u.budgets, b)
	return nil
}

func (s *Store) ListBudgets(_ context.Context, userID string) ([]core.BudgetGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.BudgetGoal(nil), s.user(userID).budgets...), nil
}

func (s *Store) DeleteBudget(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	out, ok := remove(u.budgets, func(b core.BudgetGoal) bool { return b.ID == id })
	if !ok {
		return fmt.Errorf("delete budget %s: %w", id, core.ErrNotFound)
	}
	u.budgets = out
	return nil
}

func (s *Store) AddIou(_ context.Context, userID string, o core.Iou) error {
	if err := o.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	u.ious = append(u.ious, o)
	return nil
}

func (s *Store) ListIous(_ context.Context, userID string) ([]core.Iou, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Iou(nil), s.user(userID).ious...), nil
}

func (s *Store) DeleteIou(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	out, ok := remove(u.ious, func(o core.Iou) bool { return o.ID == id })
	if !ok {
		return fmt.Errorf("delete iou %s: %w", id, core.ErrNotFound)
	}
	u.ious = out
	return nil
}

func (s *Store) MarkIouPaid(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	for i := range u.ious {
		if u.ious[i].ID == id {
			u.ious[i].Paid = true
			return nil
		}
	}
	return fmt.Errorf("mark iou %s paid: %w", id, core.ErrNotFound)
}

func (s *Store) AddWishlistItem(_ context.Context, userID string, w core.WishlistItem) error {
	if err := w.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	u.wishlist = append(u.wishlist, w)
	return nil
}

func (s *Store) ListWishlist(_ context.Context, userID string) ([]core.WishlistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.WishlistItem(nil), s.user(userID).wishlist...), nil
}

func (s *Store) DeleteWishlistItem(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	out, ok := remove(u.wishlist, func(w core.WishlistItem) bool { return w.ID == id })
	if !ok {
		return fmt.Errorf("delete wishlist item %s: %w", id, core.ErrNotFound)
	}
	u.wishlist = out
	return nil
}

func (s *Store) AddSavings(_ context.Context, userID, id string, amount core.Money) (core.WishlistItem, error) {
	if err := amount.Validate(); err != nil {
		return core.WishlistItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	for i := range u.wishlist {
		if u.wishlist[i].ID == id {
			u.wishlist[i].Saved = u.wishlist[i].Saved.Add(amount)
			return u.wishlist[i], nil
		}
	}
	return core.WishlistItem{}, fmt.Errorf("add savings to %s: %w", id, core.ErrNotFound)
}

func (s *Store) AddWallet(_ context.Context, userID string, w core.Wallet) error {
	if err := w.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	u.wallets = append(u.wallets, w)
	return nil
}

func (s *Store) ListWallets(_ context.Context, userID string) ([]core.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Wallet(nil), s.user(userID).wallets...), nil
}

func (s *Store) DeleteWallet(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	out, ok := remove(u.wallets, func(w core.Wallet) bool { return w.ID == id })
	if !ok {
		return fmt.Errorf("delete wallet %s: %w", id, core.ErrNotFound)
	}
	u.wallets = out
	return nil
}

func (s *Store) ListUnlocked(_ context.Context, userID string) ([]core.UnlockedAchievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.UnlockedAchievement(nil), s.user(userID).unlocked...), nil
}

// CommitUnlocks applies the batch under a single lock, so concurrent batches
// for the same user never record an id twice.
func (s *Store) CommitUnlocks(ctx context.Context, userID string, achievementIDs []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return nil, fmt.Errorf("commit unlocks: %w", s.commitErr)
	}
	u := s.user(userID)
	have := make(map[string]bool, len(u.unlocked))
	for _, a := range u.unlocked {
		have[a.ID] = true
	}
	at := s.now().UTC()
	var inserted []string
	for _, id := range achievementIDs {
		if have[id] {
			continue
		}
		have[id] = true
		u.unlocked = append(u.unlocked, core.UnlockedAchievement{ID: id, UnlockedAt: at})
		inserted = append(inserted, id)
	}
	return inserted, nil
}

func (s *Store) ResetUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}

func (s *Store) Close() error { return nil }

func remove[T any](in []T, match func(T) bool) ([]T, bool) {
	for i, v := range in {
		if match(v) {
			return append(in[:i:i], in[i+1:]...), true
		}
	}
	return in, false
}
