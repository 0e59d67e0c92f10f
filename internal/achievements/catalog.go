// Package achievements decides which milestones a user has newly reached
// and records each unlock exactly once.
package achievements

import (
	"time"

	"tesoretto/internal/core"
)

// Predicate reports whether a snapshot satisfies an achievement. It must be
// pure: no I/O, no mutation, tolerant of empty collections.
type Predicate func(core.Snapshot) bool

// Definition is one entry in the fixed catalog. Icon is an opaque
// reference resolved by the presentation layer.
type Definition struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Predicate   Predicate `json:"-"`
}

// catalog is built once and never written to afterwards. Order is the
// display order; it has no effect on which entries unlock.
var catalog = []Definition{
	{
		ID:          "first-steps",
		Title:       "First Steps",
		Description: "Log your first expense.",
		Icon:        "footprints",
		Predicate:   minExpenses(1),
	},
	{
		ID:          "penny-pincher",
		Title:       "Penny Pincher",
		Description: "Log 10 expenses.",
		Icon:        "piggy-bank",
		Predicate:   minExpenses(10),
	},
	{
		ID:          "expense-veteran",
		Title:       "Expense Veteran",
		Description: "Log 100 expenses.",
		Icon:        "medal",
		Predicate:   minExpenses(100),
	},
	{
		ID:          "first-paycheck",
		Title:       "First Paycheck",
		Description: "Record your first income.",
		Icon:        "banknote",
		Predicate:   func(s core.Snapshot) bool { return len(s.Income) >= 1 },
	},
	{
		ID:          "budget-planner",
		Title:       "Budget Planner",
		Description: "Set your first category budget.",
		Icon:        "clipboard-list",
		Predicate:   func(s core.Snapshot) bool { return len(s.Budgets) >= 1 },
	},
	{
		ID:          "budget-master",
		Title:       "Budget Master",
		Description: "Budget at least 5 categories.",
		Icon:        "chart-pie",
		Predicate:   func(s core.Snapshot) bool { return len(s.Budgets) >= 5 },
	},
	{
		ID:          "dreamer",
		Title:       "Dreamer",
		Description: "Add an item to your wishlist.",
		Icon:        "sparkles",
		Predicate:   func(s core.Snapshot) bool { return len(s.Wishlist) >= 1 },
	},
	{
		ID:          "goal-getter",
		Title:       "Goal Getter",
		Description: "Fully fund a wishlist item.",
		Icon:        "target",
		Predicate:   anyWishlistReached,
	},
	{
		ID:          "debt-free",
		Title:       "Debt Free",
		Description: "Pay back money you owed.",
		Icon:        "hand-coins",
		Predicate:   paidIou(core.IouIOwe),
	},
	{
		ID:          "collector",
		Title:       "Collector",
		Description: "Get paid back for a loan.",
		Icon:        "handshake",
		Predicate:   paidIou(core.IouOwedToMe),
	},
	{
		ID:          "wallet-wizard",
		Title:       "Wallet Wizard",
		Description: "Create a wallet besides cash on hand.",
		Icon:        "wallet",
		Predicate:   hasRealWallet,
	},
}

var byID = func() map[string]Definition {
	m := make(map[string]Definition, len(catalog))
	for _, d := range catalog {
		m[d.ID] = d
	}
	return m
}()

// Catalog returns the definitions in display order. The slice is a copy.
func Catalog() []Definition {
	return append([]Definition(nil), catalog...)
}

// Lookup finds a definition by id.
func Lookup(id string) (Definition, bool) {
	d, ok := byID[id]
	return d, ok
}

func minExpenses(n int) Predicate {
	return func(s core.Snapshot) bool { return len(s.Expenses) >= n }
}

func anyWishlistReached(s core.Snapshot) bool {
	for _, w := range s.Wishlist {
		if w.Reached() {
			return true
		}
	}
	return false
}

func paidIou(dir core.IouDirection) Predicate {
	return func(s core.Snapshot) bool {
		for _, o := range s.Ious {
			if o.Direction == dir && o.Paid {
				return true
			}
		}
		return false
	}
}

// hasRealWallet ignores the synthetic cash wallet in case a caller passes
// the display list instead of stored wallets.
func hasRealWallet(s core.Snapshot) bool {
	for _, w := range s.Wallets {
		if w.ID != core.CashWalletID {
			return true
		}
	}
	return false
}

// Status pairs a definition with a user's unlock state.
type Status struct {
	Definition
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Statuses lists the whole catalog in display order with unlock state from
// the given set.
func Statuses(unlocked map[string]time.Time) []Status {
	out := make([]Status, 0, len(catalog))
	for _, d := range catalog {
		st := Status{Definition: d}
		if at, ok := unlocked[d.ID]; ok {
			at := at
			st.Unlocked = true
			st.UnlockedAt = &at
		}
		out = append(out, st)
	}
	return out
}
