// Package events carries out-of-band failure reports for fire-and-forget
// writes. Callers that issue a write do not see its error; observers
// subscribe to a Bus instead.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// OpWrite is the operation kind reported for failed batch writes.
const OpWrite = "write"

// WriteError describes a store write that did not commit.
type WriteError struct {
	Path      string
	Operation string
	Payload   any
	Err       error
	At        time.Time
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Handler receives published errors. Handlers run on the publisher's
// goroutine and must not block for long.
type Handler func(ctx context.Context, e *WriteError)

// Bus fans a WriteError out to every subscriber.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]Handler)}
}

var defaultBus = NewBus()

// Default returns the process-wide bus.
func Default() *Bus {
	return defaultBus
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers e to all subscribers. A panicking subscriber is logged
// and does not stop delivery to the others.
func (b *Bus) Publish(ctx context.Context, e *WriteError) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		deliver(ctx, h, e)
	}
}

func deliver(ctx context.Context, h Handler, e *WriteError) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Error bus subscriber panicked", "panic", r, "path", e.Path)
		}
	}()
	h(ctx, e)
}

// LogHandler returns a Handler that logs every WriteError at error level.
func LogHandler(logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, e *WriteError) {
		logger.ErrorContext(ctx, "Store write failed",
			"path", e.Path,
			"operation", e.Operation,
			"payload", e.Payload,
			"error", e.Err)
	}
}
