package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tesoretto/internal/core"

	_ "modernc.org/sqlite"
)

const timestampLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; serialize on a single connection so
	// concurrent unlock batches queue instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) AddExpense(ctx context.Context, userID string, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, user_id, date, description, amount_cents, category, wallet_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, userID, e.Date.String(), e.Description, e.Amount.Cents, e.Category, e.WalletID)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	slog.DebugContext(ctx, "Expense saved to SQLite", "user_id", userID, "id", e.ID, "amount_cents", e.Amount.Cents)
	return nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, description, amount_cents, category, wallet_id
		 FROM expenses WHERE user_id = ? ORDER BY date, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e    core.Expense
			date string
		)
		if err := rows.Scan(&e.ID, &date, &e.Description, &e.Amount.Cents, &e.Category, &e.WalletID); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("parse expense date %q: %w", date, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	return r.deleteRow(ctx, "expenses", userID, id)
}

func (r *SQLiteRepository) AddIncome(ctx context.Context, userID string, in core.Income) error {
	if err := in.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO income (id, user_id, date, source, amount_cents, wallet_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, userID, in.Date.String(), in.Source, in.Amount.Cents, in.WalletID)
	if err != nil {
		return fmt.Errorf("insert income: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListIncome(ctx context.Context, userID string) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, source, amount_cents, wallet_id
		 FROM income WHERE user_id = ? ORDER BY date, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query income: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		var (
			in   core.Income
			date string
		)
		if err := rows.Scan(&in.ID, &date, &in.Source, &in.Amount.Cents, &in.WalletID); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		if in.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("parse income date %q: %w", date, err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, userID, id string) error {
	return r.deleteRow(ctx, "income", userID, id)
}

func (r *SQLiteRepository) AddBudget(ctx context.Context, userID string, b core.BudgetGoal) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, user_id, category, limit_cents) VALUES (?, ?, ?, ?)`,
		b.ID, userID, b.Category, b.Limit.Cents)
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]core.BudgetGoal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, limit_cents FROM budgets WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetGoal
	for rows.Next() {
		var b core.BudgetGoal
		if err := rows.Scan(&b.ID, &b.Category, &b.Limit.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id string) error {
	return r.deleteRow(ctx, "budgets", userID, id)
}

func (r *SQLiteRepository) AddIou(ctx context.Context, userID string, o core.Iou) error {
	if err := o.Validate(); err != nil {
		return err
	}
	var due sql.NullString
	if !o.DueDate.IsZero() {
		due = sql.NullString{String: o.DueDate.String(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ious (id, user_id, counterparty, amount_cents, direction, paid, due_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, userID, o.Counterparty, o.Amount.Cents, string(o.Direction), o.Paid, due)
	if err != nil {
		return fmt.Errorf("insert iou: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListIous(ctx context.Context, userID string) ([]core.Iou, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, counterparty, amount_cents, direction, paid, due_date
		 FROM ious WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query ious: %w", err)
	}
	defer rows.Close()

	var out []core.Iou
	for rows.Next() {
		var (
			o         core.Iou
			direction string
			due       sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.Counterparty, &o.Amount.Cents, &direction, &o.Paid, &due); err != nil {
			return nil, fmt.Errorf("scan iou: %w", err)
		}
		o.Direction = core.IouDirection(direction)
		if due.Valid && due.String != "" {
			if o.DueDate, err = core.ParseDate(due.String); err != nil {
				return nil, fmt.Errorf("parse iou due date %q: %w", due.String, err)
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteIou(ctx context.Context, userID, id string) error {
	return r.deleteRow(ctx, "ious", userID, id)
}

func (r *SQLiteRepository) MarkIouPaid(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ious SET paid = 1 WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("mark iou paid: %w", err)
	}
	return expectAffected(res, fmt.Sprintf("iou %s", id))
}

func (r *SQLiteRepository) AddWishlistItem(ctx context.Context, userID string, w core.WishlistItem) error {
	if err := w.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wishlist (id, user_id, name, target_cents, saved_cents) VALUES (?, ?, ?, ?, ?)`,
		w.ID, userID, w.Name, w.Target.Cents, w.Saved.Cents)
	if err != nil {
		return fmt.Errorf("insert wishlist item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListWishlist(ctx context.Context, userID string) ([]core.WishlistItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, target_cents, saved_cents FROM wishlist WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query wishlist: %w", err)
	}
	defer rows.Close()

	var out []core.WishlistItem
	for rows.Next() {
		var w core.WishlistItem
		if err := rows.Scan(&w.ID, &w.Name, &w.Target.Cents, &w.Saved.Cents); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteWishlistItem(ctx context.Context, userID, id string) error {
	return r.deleteRow(ctx, "wishlist", userID, id)
}

func (r *SQLiteRepository) AddSavings(ctx context.Context, userID, id string, amount core.Money) (core.WishlistItem, error) {
	if err := amount.Validate(); err != nil {
		return core.WishlistItem{}, err
	}
	var w core.WishlistItem
	err := r.db.QueryRowContext(ctx,
		`UPDATE wishlist SET saved_cents = saved_cents + ?
		 WHERE user_id = ? AND id = ?
		 RETURNING id, name, target_cents, saved_cents`,
		amount.Cents, userID, id).Scan(&w.ID, &w.Name, &w.Target.Cents, &w.Saved.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WishlistItem{}, fmt.Errorf("add savings to %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.WishlistItem{}, fmt.Errorf("add savings: %w", err)
	}
	return w, nil
}

func (r *SQLiteRepository) AddWallet(ctx context.Context, userID string, w core.Wallet) error {
	if err := w.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (id, user_id, name, balance_cents) VALUES (?, ?, ?, ?)`,
		w.ID, userID, w.Name, w.Balance.Cents)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListWallets(ctx context.Context, userID string) ([]core.Wallet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, balance_cents FROM wallets WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query wallets: %w", err)
	}
	defer rows.Close()

	var out []core.Wallet
	for rows.Next() {
		var w core.Wallet
		if err := rows.Scan(&w.ID, &w.Name, &w.Balance.Cents); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteWallet(ctx context.Context, userID, id string) error {
	return r.deleteRow(ctx, "wallets", userID, id)
}

func (r *SQLiteRepository) ListUnlocked(ctx context.Context, userID string) ([]core.UnlockedAchievement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT achievement_id, unlocked_at FROM achievements WHERE user_id = ? ORDER BY unlocked_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	var out []core.UnlockedAchievement
	for rows.Next() {
		var (
			a  core.UnlockedAchievement
			at string
		)
		if err := rows.Scan(&a.ID, &at); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		if a.UnlockedAt, err = time.Parse(timestampLayout, at); err != nil {
			return nil, fmt.Errorf("parse unlocked_at %q: %w", at, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CommitUnlocks writes the whole batch in one transaction. Rows that already
// exist are skipped by the primary key, and only the ids this transaction
// actually inserted are returned.
func (r *SQLiteRepository) CommitUnlocks(ctx context.Context, userID string, achievementIDs []string) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin unlock batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO achievements (user_id, achievement_id) VALUES (?, ?)
		 ON CONFLICT(user_id, achievement_id) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("prepare unlock insert: %w", err)
	}
	defer stmt.Close()

	var inserted []string
	for _, id := range achievementIDs {
		res, err := stmt.ExecContext(ctx, userID, id)
		if err != nil {
			return nil, fmt.Errorf("insert unlock %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n > 0 {
			inserted = append(inserted, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit unlock batch: %w", err)
	}
	return inserted, nil
}

var userTables = []string{"expenses", "income", "budgets", "ious", "wishlist", "wallets", "achievements"}

// ResetUser deletes every row owned by userID in one transaction.
func (r *SQLiteRepository) ResetUser(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	for _, table := range userTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	slog.InfoContext(ctx, "User data reset", "user_id", userID)
	return nil
}

func (r *SQLiteRepository) deleteRow(ctx context.Context, table, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return expectAffected(res, fmt.Sprintf("%s %s", table, id))
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}
