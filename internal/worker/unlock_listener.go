package worker

import (
	"context"
	"log/slog"
	"time"

	"tesoretto/internal/amqp"
)

// UnlockSink receives unlocks recorded by another process.
type UnlockSink interface {
	DeliverUnlocked(userID string, ids []string, at time.Time)
}

// UnlockSource delivers unlock events until ctx is done.
type UnlockSource interface {
	ConsumeUnlocked(ctx context.Context, handler func(context.Context, *amqp.UnlockedEvent)) error
}

// UnlockListener forwards unlock events published by achievement workers
// to the local notification inbox.
type UnlockListener struct {
	sink      UnlockSink
	reconnect func(attempt int) time.Duration
}

func NewUnlockListener(sink UnlockSink) *UnlockListener {
	return &UnlockListener{sink: sink, reconnect: backoff}
}

func (l *UnlockListener) HandleUnlocked(ctx context.Context, event *amqp.UnlockedEvent) {
	l.sink.DeliverUnlocked(event.UserID, event.AchievementIDs, event.Timestamp)
	slog.DebugContext(ctx, "Unlock event delivered",
		"component", "worker", "user_id", event.UserID, "achievement_ids", event.AchievementIDs)
}

// Run listens until ctx is cancelled, restarting after a dropped channel.
func (l *UnlockListener) Run(ctx context.Context, src UnlockSource) error {
	return restartLoop(ctx, "Unlock listener", l.reconnect, func(ctx context.Context) error {
		return src.ConsumeUnlocked(ctx, l.HandleUnlocked)
	})
}
