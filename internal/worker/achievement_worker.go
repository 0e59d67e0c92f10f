package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tesoretto/internal/amqp"
)

// Evaluator runs one achievement pass for a user.
type Evaluator interface {
	Evaluate(ctx context.Context, userID string) error
}

// Consumer delivers evaluation requests until ctx is done.
type Consumer interface {
	ConsumeEvaluations(ctx context.Context, handler func(context.Context, *amqp.EvaluationRequest) error) error
}

// AchievementWorker consumes evaluation requests and runs a pass for each.
type AchievementWorker struct {
	evaluator Evaluator
	timeout   time.Duration
	reconnect func(attempt int) time.Duration
}

func NewAchievementWorker(evaluator Evaluator, timeout time.Duration) *AchievementWorker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AchievementWorker{
		evaluator: evaluator,
		timeout:   timeout,
		reconnect: backoff,
	}
}

// HandleEvaluation runs a pass for the request's user. A load failure is
// returned so the message is requeued once.
func (w *AchievementWorker) HandleEvaluation(ctx context.Context, msg *amqp.EvaluationRequest) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	if err := w.evaluator.Evaluate(ctx, msg.UserID); err != nil {
		return fmt.Errorf("evaluate achievements for %s: %w", msg.UserID, err)
	}
	slog.DebugContext(ctx, "Evaluation request processed",
		"component", "worker",
		"user_id", msg.UserID,
		"reason", msg.Reason,
		"queued_for", start.Sub(msg.Timestamp),
		"duration", time.Since(start))
	return nil
}

// Run consumes until ctx is cancelled, restarting the consumer after a
// dropped channel.
func (w *AchievementWorker) Run(ctx context.Context, c Consumer) error {
	return restartLoop(ctx, "Evaluation consumer", w.reconnect, func(ctx context.Context) error {
		return c.ConsumeEvaluations(ctx, w.HandleEvaluation)
	})
}

func backoff(attempt int) time.Duration {
	return min(time.Duration(1<<min(attempt, 5))*time.Second, 30*time.Second)
}

// restartLoop runs consume until ctx is done, waiting reconnect(attempt)
// between runs.
func restartLoop(ctx context.Context, name string, reconnect func(int) time.Duration, consume func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		delay := reconnect(attempt)
		slog.WarnContext(ctx, name+" stopped, restarting",
			"component", "worker", "attempt", attempt+1, "retry_in", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}
