package achievements

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tesoretto/internal/events"
)

// UnlockWriter commits a batch of unlocks for one user atomically. It
// returns the ids that were newly recorded; ids the user already had are
// skipped without error. The store assigns the unlock timestamp. Writers do
// not check ids against the catalog; Persister only submits catalog ids.
type UnlockWriter interface {
	CommitUnlocks(ctx context.Context, userID string, achievementIDs []string) (inserted []string, err error)
}

// Callback is told which achievements a commit recorded.
type Callback func(userID string, unlocked []Definition)

// UnlockWrite is the payload reported for one attempted unlock.
type UnlockWrite struct {
	Path          string `json:"path"`
	AchievementID string `json:"achievement_id"`
}

// CollectionPath is the store path of a user's unlocked achievements.
func CollectionPath(userID string) string {
	return fmt.Sprintf("users/%s/achievements", userID)
}

// RecordPath is the store path of a single unlock record.
func RecordPath(userID, achievementID string) string {
	return CollectionPath(userID) + "/" + achievementID
}

// Persister writes unlocks in the background and reports the outcome
// through the callback (success) or the error bus (failure).
type Persister struct {
	store UnlockWriter
	bus   *events.Bus
	wg    sync.WaitGroup
}

func NewPersister(store UnlockWriter, bus *events.Bus) *Persister {
	if bus == nil {
		bus = events.Default()
	}
	return &Persister{store: store, bus: bus}
}

// Persist submits one batch for unlocked and returns immediately. Entries
// missing from the catalog are dropped; an empty batch does nothing. The
// commit is detached from ctx cancellation so it always runs to completion.
func (p *Persister) Persist(ctx context.Context, userID string, unlocked []Definition, cb Callback) {
	batch := known(ctx, unlocked)
	if len(batch) == 0 {
		return
	}
	commitCtx := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.commit(commitCtx, userID, batch, cb)
	}()
}

func (p *Persister) commit(ctx context.Context, userID string, batch []Definition, cb Callback) {
	inserted, err := p.store.CommitUnlocks(ctx, userID, IDs(batch))
	if err != nil {
		payload := make([]UnlockWrite, len(batch))
		for i, d := range batch {
			payload[i] = UnlockWrite{Path: RecordPath(userID, d.ID), AchievementID: d.ID}
		}
		p.bus.Publish(ctx, &events.WriteError{
			Path:      CollectionPath(userID),
			Operation: events.OpWrite,
			Payload:   payload,
			Err:       err,
		})
		return
	}

	recorded := filter(batch, inserted)
	if len(recorded) == 0 {
		slog.DebugContext(ctx, "Unlock batch had nothing new", "user_id", userID, "attempted", len(batch))
		return
	}
	slog.InfoContext(ctx, "Achievements unlocked", "user_id", userID, "achievement_ids", IDs(recorded))
	if cb != nil {
		cb(userID, recorded)
	}
}

// Wait blocks until every submitted batch has finished.
func (p *Persister) Wait() {
	p.wg.Wait()
}

// known copies the definitions whose id is in the catalog.
func known(ctx context.Context, defs []Definition) []Definition {
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		if _, ok := byID[d.ID]; !ok {
			slog.WarnContext(ctx, "Dropping unlock outside the catalog", "achievement_id", d.ID)
			continue
		}
		out = append(out, d)
	}
	return out
}

// filter keeps the definitions whose id is in ids, preserving batch order.
func filter(batch []Definition, ids []string) []Definition {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	var out []Definition
	for _, d := range batch {
		if _, ok := keep[d.ID]; ok {
			out = append(out, d)
		}
	}
	return out
}
