package core

import "time"

// Snapshot is one user's records across every collection, assembled for a
// single achievement evaluation pass. It is read-only once built.
type Snapshot struct {
	Expenses []Expense
	Income   []Income
	Budgets  []BudgetGoal
	Ious     []Iou
	Wishlist []WishlistItem
	Wallets  []Wallet

	// Unlocked maps achievement id to unlock time. A nil map means the
	// unlocked collection has not been loaded yet.
	Unlocked map[string]time.Time
}

// UnlockedLoaded reports whether the unlocked collection is available.
func (s Snapshot) UnlockedLoaded() bool {
	return s.Unlocked != nil
}

func (s Snapshot) IsUnlocked(id string) bool {
	_, ok := s.Unlocked[id]
	return ok
}

// UnlockedSet builds the Unlocked map from stored records. The result is
// never nil.
func UnlockedSet(records []UnlockedAchievement) map[string]time.Time {
	set := make(map[string]time.Time, len(records))
	for _, r := range records {
		set[r.ID] = r.UnlockedAt
	}
	return set
}

// DataBundle is the export/import format for a user's data.
type DataBundle struct {
	Version      int                   `json:"version"`
	ExportedAt   time.Time             `json:"exported_at"`
	Expenses     []Expense             `json:"expenses"`
	Income       []Income              `json:"income"`
	Budgets      []BudgetGoal          `json:"budgets"`
	Ious         []Iou                 `json:"ious"`
	Wishlist     []WishlistItem        `json:"wishlist"`
	Wallets      []Wallet              `json:"wallets"`
	Achievements []UnlockedAchievement `json:"achievements,omitempty"`
}

// BundleVersion is the current DataBundle format version.
const BundleVersion = 1
