package main

import (
	"context"
	"os"
	"time"

	"tesoretto/internal/achievements"
	"tesoretto/internal/backend"
	"tesoretto/internal/cli"
	"tesoretto/internal/config"
	"tesoretto/internal/events"
	applog "tesoretto/internal/log"
	"tesoretto/internal/services"
	"tesoretto/internal/worker"
)

func main() {
	cfg := cli.LoadConfig((*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	logger.Info("Starting achievement-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	backendCfg.RequireAMQP = true

	startCtx, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	res, err := backend.NewFactory(logger).CreateBackend(startCtx, backendCfg)
	cancelStart()
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}

	bus := events.Default()
	bus.Subscribe(events.LogHandler(logger.WithComponent(applog.ComponentAchievements).Logger))
	bus.Subscribe(res.AMQP.TelemetryHandler())

	ach := services.NewAchievementService(
		services.NewSnapshotLoader(res.Repository),
		achievements.NewEngine(res.Repository, bus),
		services.WithUnlockPublisher(res.AMQP),
	)
	w := worker.NewAchievementWorker(ach, cfg.EvaluationTimeout)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := w.Run(ctx, res.AMQP); err != nil {
		logger.Error("Worker stopped", "error", err)
	}
	<-done

	// Run has returned, so no new pass can start.
	ach.Wait()
	if err := res.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", "error", err)
	}
	logger.Info("Worker shutdown complete")
}
