package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"tesoretto/internal/core"
	"tesoretto/internal/store"
)

var (
	ErrUnsupportedBundle = errors.New("unsupported bundle version")
	ErrSheetsDisabled    = errors.New("spreadsheet export not configured")
)

// SheetsExporter writes a user's bundle to a spreadsheet and reads one back.
type SheetsExporter interface {
	ExportBundle(ctx context.Context, userID string, b core.DataBundle) (string, error)
	ReadBundle(ctx context.Context) (core.DataBundle, error)
}

// ImportResult counts the records added by an import.
type ImportResult struct {
	Expenses int `json:"expenses"`
	Income   int `json:"income"`
	Budgets  int `json:"budgets"`
	Ious     int `json:"ious"`
	Wishlist int `json:"wishlist"`
	Wallets  int `json:"wallets"`
}

// DataService covers whole-account operations: wallet balances, export,
// import and reset.
type DataService struct {
	repo         store.Repository
	loader       *SnapshotLoader
	achievements *AchievementService
	sheets       SheetsExporter
	newID        func() string
	now          func() time.Time
}

func NewDataService(repo store.Repository, loader *SnapshotLoader, ach *AchievementService, sheets SheetsExporter) *DataService {
	return &DataService{
		repo:         repo,
		loader:       loader,
		achievements: ach,
		sheets:       sheets,
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

// Wallets returns the synthetic cash wallet followed by stored wallets, each
// with its opening balance plus assigned income minus assigned expenses.
func (s *DataService) Wallets(ctx context.Context, userID string) ([]core.Wallet, error) {
	snap, err := s.loader.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return WalletBalances(snap.Wallets, snap.Income, snap.Expenses), nil
}

func WalletBalances(wallets []core.Wallet, income []core.Income, expenses []core.Expense) []core.Wallet {
	delta := map[string]core.Money{}
	for _, in := range income {
		delta[walletKey(in.WalletID)] = delta[walletKey(in.WalletID)].Add(in.Amount)
	}
	for _, e := range expenses {
		delta[walletKey(e.WalletID)] = delta[walletKey(e.WalletID)].Sub(e.Amount)
	}

	out := make([]core.Wallet, 0, len(wallets)+1)
	out = append(out, core.Wallet{ID: core.CashWalletID, Name: "Cash", Balance: delta[core.CashWalletID]})
	for _, w := range wallets {
		w.Balance = w.Balance.Add(delta[w.ID])
		out = append(out, w)
	}
	return out
}

func walletKey(id string) string {
	if id == "" {
		return core.CashWalletID
	}
	return id
}

// Export returns every record the user owns.
func (s *DataService) Export(ctx context.Context, userID string) (core.DataBundle, error) {
	snap, err := s.loader.Load(ctx, userID)
	if err != nil {
		return core.DataBundle{}, fmt.Errorf("load data: %w", err)
	}
	b := core.DataBundle{
		Version:    core.BundleVersion,
		ExportedAt: s.now().UTC(),
		Expenses:   snap.Expenses,
		Income:     snap.Income,
		Budgets:    snap.Budgets,
		Ious:       snap.Ious,
		Wishlist:   snap.Wishlist,
		Wallets:    snap.Wallets,
	}
	for _, id := range sortedUnlocked(snap.Unlocked) {
		b.Achievements = append(b.Achievements, core.UnlockedAchievement{ID: id, UnlockedAt: snap.Unlocked[id]})
	}
	return b, nil
}

// ExportToSheets writes the user's bundle to the configured spreadsheet.
func (s *DataService) ExportToSheets(ctx context.Context, userID string) (string, error) {
	if s.sheets == nil {
		return "", ErrSheetsDisabled
	}
	b, err := s.Export(ctx, userID)
	if err != nil {
		return "", err
	}
	ref, err := s.sheets.ExportBundle(ctx, userID, b)
	if err != nil {
		return "", fmt.Errorf("export to sheets: %w", err)
	}
	slog.InfoContext(ctx, "Data exported to spreadsheet", "user_id", userID, "range", ref)
	return ref, nil
}

// ImportFromSheets imports the records found in the configured spreadsheet.
func (s *DataService) ImportFromSheets(ctx context.Context, userID string) (ImportResult, error) {
	if s.sheets == nil {
		return ImportResult{}, ErrSheetsDisabled
	}
	b, err := s.sheets.ReadBundle(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read spreadsheet: %w", err)
	}
	return s.Import(ctx, userID, b)
}

// Import adds every record in b under fresh ids. Wallet references are
// remapped to the new wallet ids; references to unknown wallets fall back to
// cash. Unlocked achievements are not imported. The whole bundle is
// validated before anything is written.
func (s *DataService) Import(ctx context.Context, userID string, b core.DataBundle) (ImportResult, error) {
	if b.Version < 1 || b.Version > core.BundleVersion {
		return ImportResult{}, fmt.Errorf("%w: %d", ErrUnsupportedBundle, b.Version)
	}
	if err := validateBundle(b); err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	walletIDs := map[string]string{}
	for _, w := range b.Wallets {
		old := w.ID
		w.ID = s.newID()
		if err := s.repo.AddWallet(ctx, userID, w); err != nil {
			return res, fmt.Errorf("import wallet: %w", err)
		}
		walletIDs[old] = w.ID
		res.Wallets++
	}
	remap := func(id string) string { return walletIDs[id] }

	for _, e := range b.Expenses {
		e.ID, e.WalletID = s.newID(), remap(e.WalletID)
		if err := s.repo.AddExpense(ctx, userID, e); err != nil {
			return res, fmt.Errorf("import expense: %w", err)
		}
		res.Expenses++
	}
	for _, in := range b.Income {
		in.ID, in.WalletID = s.newID(), remap(in.WalletID)
		if err := s.repo.AddIncome(ctx, userID, in); err != nil {
			return res, fmt.Errorf("import income: %w", err)
		}
		res.Income++
	}
	for _, bg := range b.Budgets {
		bg.ID = s.newID()
		if err := s.repo.AddBudget(ctx, userID, bg); err != nil {
			return res, fmt.Errorf("import budget: %w", err)
		}
		res.Budgets++
	}
	for _, o := range b.Ious {
		o.ID = s.newID()
		if err := s.repo.AddIou(ctx, userID, o); err != nil {
			return res, fmt.Errorf("import iou: %w", err)
		}
		res.Ious++
	}
	for _, w := range b.Wishlist {
		w.ID = s.newID()
		if err := s.repo.AddWishlistItem(ctx, userID, w); err != nil {
			return res, fmt.Errorf("import wishlist item: %w", err)
		}
		res.Wishlist++
	}

	slog.InfoContext(ctx, "Data imported", "user_id", userID,
		"expenses", res.Expenses, "income", res.Income, "budgets", res.Budgets,
		"ious", res.Ious, "wishlist", res.Wishlist, "wallets", res.Wallets)
	if s.achievements != nil {
		s.achievements.Trigger(ctx, userID, ReasonImport)
	}
	return res, nil
}

// sortedUnlocked orders unlocked ids by unlock time, then id.
func sortedUnlocked(unlocked map[string]time.Time) []string {
	ids := make([]string, 0, len(unlocked))
	for id := range unlocked {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := unlocked[ids[i]], unlocked[ids[j]]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ids[i] < ids[j]
	})
	return ids
}

func validateBundle(b core.DataBundle) error {
	check := func(kind string, i int, err error) error {
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", kind, i, err)
		}
		return nil
	}
	for i, w := range b.Wallets {
		w.ID = ""
		if err := check("wallets", i, w.Validate()); err != nil {
			return err
		}
	}
	for i, e := range b.Expenses {
		if err := check("expenses", i, e.Validate()); err != nil {
			return err
		}
	}
	for i, in := range b.Income {
		if err := check("income", i, in.Validate()); err != nil {
			return err
		}
	}
	for i, bg := range b.Budgets {
		if err := check("budgets", i, bg.Validate()); err != nil {
			return err
		}
	}
	for i, o := range b.Ious {
		if err := check("ious", i, o.Validate()); err != nil {
			return err
		}
	}
	for i, w := range b.Wishlist {
		if err := check("wishlist", i, w.Validate()); err != nil {
			return err
		}
	}
	return nil
}

// Reset deletes every record the user owns, achievements included, and
// drops pending unlock notifications.
func (s *DataService) Reset(ctx context.Context, userID string) error {
	if err := s.repo.ResetUser(ctx, userID); err != nil {
		return fmt.Errorf("reset user data: %w", err)
	}
	if s.achievements != nil {
		s.achievements.ClearNotifications(userID)
	}
	return nil
}
