package achievements

import (
	"log/slog"

	"tesoretto/internal/core"
)

// Evaluate returns the catalog entries satisfied by snap that are not yet
// unlocked, in catalog order. If the unlocked collection has not been
// loaded it returns nil without evaluating anything.
func Evaluate(snap core.Snapshot) []Definition {
	return evaluate(catalog, snap)
}

func evaluate(defs []Definition, snap core.Snapshot) []Definition {
	if !snap.UnlockedLoaded() {
		return nil
	}
	var newly []Definition
	for _, d := range defs {
		if snap.IsUnlocked(d.ID) {
			continue
		}
		if satisfied(d, snap) {
			newly = append(newly, d)
		}
	}
	return newly
}

// satisfied runs a predicate, treating a panic as "not satisfied".
func satisfied(d Definition, snap core.Snapshot) (ok bool) {
	if d.Predicate == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Achievement predicate panicked", "achievement_id", d.ID, "panic", r)
			ok = false
		}
	}()
	return d.Predicate(snap)
}

// IDs returns the ids of defs in order.
func IDs(defs []Definition) []string {
	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
	}
	return ids
}
