package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"tesoretto/internal/core"
	"tesoretto/internal/store"
)

var _ store.Repository = (*SQLiteRepository)(nil)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRunMigrationsIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestExpensesRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	in := []core.Expense{
		{ID: "e2", Date: core.NewDate(2025, 4, 10), Description: "groceries", Amount: core.Money{Cents: 4550}, Category: "Food", WalletID: "w1"},
		{ID: "e1", Date: core.NewDate(2025, 4, 1), Description: "bus", Amount: core.Money{Cents: 200}, Category: "Transport"},
	}
	for _, e := range in {
		if err := repo.AddExpense(ctx, "u1", e); err != nil {
			t.Fatalf("add %s: %v", e.ID, err)
		}
	}

	got, err := repo.ListExpenses(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "e1" || got[1].WalletID != "w1" {
		t.Fatalf("unexpected expenses: %+v", got)
	}
	if got[1].Date.String() != "2025-04-10" || got[1].Amount.Cents != 4550 {
		t.Fatalf("fields not preserved: %+v", got[1])
	}

	if err := repo.DeleteExpense(ctx, "u2", "e1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
	if err := repo.DeleteExpense(ctx, "u1", "e1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestIousAndWishlist(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	due := core.NewDate(2025, 6, 30)
	if err := repo.AddIou(ctx, "u1", core.Iou{ID: "o1", Counterparty: "Bo", Amount: core.Money{Cents: 900}, Direction: core.IouOwedToMe, DueDate: due}); err != nil {
		t.Fatalf("add iou: %v", err)
	}
	if err := repo.AddIou(ctx, "u1", core.Iou{ID: "o2", Counterparty: "Cy", Amount: core.Money{Cents: 100}, Direction: core.IouIOwe}); err != nil {
		t.Fatalf("add iou: %v", err)
	}
	if err := repo.MarkIouPaid(ctx, "u1", "o1"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if err := repo.MarkIouPaid(ctx, "u1", "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	ious, err := repo.ListIous(ctx, "u1")
	if err != nil || len(ious) != 2 {
		t.Fatalf("list ious: %+v %v", ious, err)
	}
	if !ious[0].Paid || ious[0].DueDate.String() != "2025-06-30" || !ious[1].DueDate.IsZero() {
		t.Fatalf("unexpected ious: %+v", ious)
	}

	if err := repo.AddWishlistItem(ctx, "u1", core.WishlistItem{ID: "w1", Name: "Camera", Target: core.Money{Cents: 50000}}); err != nil {
		t.Fatalf("add wish: %v", err)
	}
	item, err := repo.AddSavings(ctx, "u1", "w1", core.Money{Cents: 50000})
	if err != nil || !item.Reached() {
		t.Fatalf("add savings: %+v %v", item, err)
	}
	if _, err := repo.AddSavings(ctx, "u2", "w1", core.Money{Cents: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCommitUnlocks(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	ins, err := repo.CommitUnlocks(ctx, "u1", []string{"first-steps", "penny-pincher"})
	if err != nil || len(ins) != 2 {
		t.Fatalf("first batch: %v %v", ins, err)
	}
	ins, err = repo.CommitUnlocks(ctx, "u1", []string{"first-steps", "dreamer"})
	if err != nil || len(ins) != 1 || ins[0] != "dreamer" {
		t.Fatalf("second batch: %v %v", ins, err)
	}

	list, err := repo.ListUnlocked(ctx, "u1")
	if err != nil || len(list) != 3 {
		t.Fatalf("list: %+v %v", list, err)
	}
	for _, a := range list {
		if a.UnlockedAt.IsZero() {
			t.Fatalf("store must assign unlock time: %+v", a)
		}
	}
	if other, _ := repo.ListUnlocked(ctx, "u2"); len(other) != 0 {
		t.Fatalf("unlocks leaked across users")
	}
}

func TestCommitUnlocksConcurrentBatches(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	batch := []string{"first-steps", "penny-pincher"}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all []string
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ins, err := repo.CommitUnlocks(ctx, "u1", batch)
			if err != nil {
				t.Errorf("commit: %v", err)
				return
			}
			mu.Lock()
			all = append(all, ins...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Strings(all)
	if len(all) != 2 || all[0] != "first-steps" || all[1] != "penny-pincher" {
		t.Fatalf("each id must be inserted exactly once, got %v", all)
	}
	list, _ := repo.ListUnlocked(ctx, "u1")
	if len(list) != 2 {
		t.Fatalf("expected 2 stored unlocks, got %d", len(list))
	}
}

func TestCommitUnlocksFailsOnClosedDB(t *testing.T) {
	repo := newTestRepo(t)
	repo.Close()
	if _, err := repo.CommitUnlocks(context.Background(), "u1", []string{"first-steps"}); err == nil {
		t.Fatalf("expected error on closed database")
	}
}

func TestCommitUnlocksRollsBackOnMidBatchFailure(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.db.ExecContext(ctx, `
		CREATE TRIGGER fail_unlock BEFORE INSERT ON achievements
		WHEN NEW.achievement_id = 'boom'
		BEGIN SELECT RAISE(ABORT, 'unlock rejected'); END`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	ins, err := repo.CommitUnlocks(ctx, "u1", []string{"first-steps", "boom", "dreamer"})
	if err == nil {
		t.Fatalf("expected batch to fail, inserted %v", ins)
	}
	if len(ins) != 0 {
		t.Fatalf("failed batch must report nothing inserted, got %v", ins)
	}

	list, err := repo.ListUnlocked(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("rows written before the failure must be rolled back, got %+v", list)
	}

	ins, err = repo.CommitUnlocks(ctx, "u1", []string{"first-steps", "dreamer"})
	if err != nil || len(ins) != 2 {
		t.Fatalf("next batch should record both: %v %v", ins, err)
	}
}

func TestResetUser(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_ = repo.AddBudget(ctx, "u1", core.BudgetGoal{ID: "b1", Category: "Food", Limit: core.Money{Cents: 30000}})
	_ = repo.AddWallet(ctx, "u1", core.Wallet{ID: "w1", Name: "Bank"})
	_ = repo.AddIncome(ctx, "u1", core.Income{ID: "i1", Date: core.NewDate(2025, 1, 1), Source: "Salary", Amount: core.Money{Cents: 100000}})
	_, _ = repo.CommitUnlocks(ctx, "u1", []string{"budget-planner"})
	_ = repo.AddBudget(ctx, "u2", core.BudgetGoal{ID: "b1", Category: "Food", Limit: core.Money{Cents: 100}})

	if err := repo.ResetUser(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if b, _ := repo.ListBudgets(ctx, "u1"); len(b) != 0 {
		t.Fatalf("budgets survived reset")
	}
	if a, _ := repo.ListUnlocked(ctx, "u1"); len(a) != 0 {
		t.Fatalf("achievements survived reset")
	}
	if b, _ := repo.ListBudgets(ctx, "u2"); len(b) != 1 {
		t.Fatalf("reset removed another user's data")
	}
}

func TestAddWalletRejectsCashID(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.AddWallet(context.Background(), "u1", core.Wallet{ID: core.CashWalletID, Name: "Cash"})
	if !errors.Is(err, core.ErrReservedWallet) {
		t.Fatalf("expected reserved wallet error, got %v", err)
	}
}
