package achievements

import (
	"context"

	"tesoretto/internal/core"
	"tesoretto/internal/events"
)

// Engine is the single entry point used after a user's data changes.
type Engine struct {
	persister *Persister
}

func NewEngine(store UnlockWriter, bus *events.Bus) *Engine {
	return &Engine{persister: NewPersister(store, bus)}
}

// Check evaluates snap for userID and, if anything new is satisfied,
// submits the unlocks in the background. It returns nothing; cb fires
// after a successful commit and failures go to the error bus.
func (e *Engine) Check(ctx context.Context, userID string, snap core.Snapshot, cb Callback) {
	newly := Evaluate(snap)
	if len(newly) == 0 {
		return
	}
	e.persister.Persist(ctx, userID, newly, cb)
}

// Wait blocks until all in-flight commits finish.
func (e *Engine) Wait() {
	e.persister.Wait()
}
