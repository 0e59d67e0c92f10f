package events

import (
	"context"
	"errors"
	"testing"
)

func TestBusPublishToSubscribers(t *testing.T) {
	bus := NewBus()
	var got []*WriteError
	bus.Subscribe(func(_ context.Context, e *WriteError) { got = append(got, e) })
	bus.Subscribe(func(_ context.Context, e *WriteError) { panic("boom") })
	var second int
	bus.Subscribe(func(_ context.Context, e *WriteError) { second++ })

	cause := errors.New("permission denied")
	bus.Publish(context.Background(), &WriteError{Path: "users/u1/achievements", Operation: OpWrite, Err: cause})

	if len(got) != 1 || second != 1 {
		t.Fatalf("expected one delivery per subscriber, got %d and %d", len(got), second)
	}
	if got[0].At.IsZero() {
		t.Fatalf("expected timestamp to be set")
	}
	if !errors.Is(got[0], cause) {
		t.Fatalf("expected WriteError to unwrap to cause")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsubscribe := bus.Subscribe(func(context.Context, *WriteError) { calls++ })
	unsubscribe()
	bus.Publish(context.Background(), &WriteError{Operation: OpWrite})
	if calls != 0 {
		t.Fatalf("expected no calls after unsubscribe, got %d", calls)
	}
}
