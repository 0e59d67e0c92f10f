package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tesoretto/internal/achievements"
	"tesoretto/internal/core"
	"tesoretto/internal/notify"
)

// EvaluationQueue hands evaluation requests to an out-of-process worker.
type EvaluationQueue interface {
	PublishEvaluation(ctx context.Context, userID, reason string) error
}

// UnlockPublisher broadcasts recorded unlocks.
type UnlockPublisher interface {
	PublishUnlocked(ctx context.Context, userID string, achievementIDs []string) error
}

// AchievementService runs evaluation passes and routes unlock callbacks to
// the notification inbox and the unlock publisher.
type AchievementService struct {
	loader    *SnapshotLoader
	engine    *achievements.Engine
	inbox     *notify.Inbox
	queue     EvaluationQueue
	publisher UnlockPublisher
}

type AchievementOption func(*AchievementService)

// WithEvaluationQueue defers passes to a worker instead of running inline.
func WithEvaluationQueue(q EvaluationQueue) AchievementOption {
	return func(s *AchievementService) { s.queue = q }
}

func WithUnlockPublisher(p UnlockPublisher) AchievementOption {
	return func(s *AchievementService) { s.publisher = p }
}

func WithInbox(in *notify.Inbox) AchievementOption {
	return func(s *AchievementService) { s.inbox = in }
}

func NewAchievementService(loader *SnapshotLoader, engine *achievements.Engine, opts ...AchievementOption) *AchievementService {
	s := &AchievementService{loader: loader, engine: engine}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger schedules a pass for userID. With a queue configured the request
// is published; if publishing fails the pass runs inline instead.
func (s *AchievementService) Trigger(ctx context.Context, userID, reason string) {
	if s.queue != nil {
		err := s.queue.PublishEvaluation(ctx, userID, reason)
		if err == nil {
			return
		}
		slog.WarnContext(ctx, "Failed to queue evaluation, running inline",
			"component", "achievements", "user_id", userID, "error", err)
	}
	if err := s.Evaluate(ctx, userID); err != nil {
		slog.WarnContext(ctx, "Achievement pass skipped",
			"component", "achievements", "user_id", userID, "reason", reason, "error", err)
	}
}

// Evaluate loads a fresh snapshot and runs one pass. A load error means no
// pass ran; persistence failures surface on the error bus, not here.
func (s *AchievementService) Evaluate(ctx context.Context, userID string) error {
	snap, err := s.loader.Load(ctx, userID)
	if err != nil {
		return err
	}
	s.engine.Check(ctx, userID, snap, s.onUnlocked)
	return nil
}

func (s *AchievementService) onUnlocked(userID string, unlocked []achievements.Definition) {
	s.notify(userID, unlocked, time.Now().UTC())
	if s.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.PublishUnlocked(ctx, userID, achievements.IDs(unlocked)); err != nil {
			slog.Warn("Failed to publish unlock event",
				"component", "achievements", "user_id", userID, "error", err)
		}
	}
}

func (s *AchievementService) notify(userID string, unlocked []achievements.Definition, at time.Time) {
	if s.inbox == nil || len(unlocked) == 0 {
		return
	}
	ns := make([]notify.Notification, 0, len(unlocked))
	for _, d := range unlocked {
		ns = append(ns, notify.Notification{
			AchievementID: d.ID,
			Title:         d.Title,
			Description:   d.Description,
			Icon:          d.Icon,
			UnlockedAt:    at,
		})
	}
	s.inbox.Push(userID, ns...)
}

// DeliverUnlocked records unlocks announced by another process in the
// notification inbox. Ids missing from the catalog are ignored.
func (s *AchievementService) DeliverUnlocked(userID string, ids []string, at time.Time) {
	defs := make([]achievements.Definition, 0, len(ids))
	for _, id := range ids {
		if d, ok := achievements.Lookup(id); ok {
			defs = append(defs, d)
		}
	}
	s.notify(userID, defs, at.UTC())
}

// Statuses returns the full catalog with the user's unlock state.
func (s *AchievementService) Statuses(ctx context.Context, userID string) ([]achievements.Status, error) {
	records, err := s.loader.src.ListUnlocked(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unlocked: %w", err)
	}
	return achievements.Statuses(core.UnlockedSet(records)), nil
}

// Notifications drains the user's pending unlock toasts.
func (s *AchievementService) Notifications(userID string) []notify.Notification {
	if s.inbox == nil {
		return nil
	}
	return s.inbox.Drain(userID)
}

// ClearNotifications drops pending toasts, used after a reset.
func (s *AchievementService) ClearNotifications(userID string) {
	if s.inbox != nil {
		s.inbox.Clear(userID)
	}
}

// Wait blocks until in-flight unlock commits finish.
func (s *AchievementService) Wait() {
	s.engine.Wait()
}
