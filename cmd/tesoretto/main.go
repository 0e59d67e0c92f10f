package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"tesoretto/internal/achievements"
	"tesoretto/internal/backend"
	"tesoretto/internal/cli"
	"tesoretto/internal/config"
	"tesoretto/internal/events"
	apphttp "tesoretto/internal/http"
	applog "tesoretto/internal/log"
	"tesoretto/internal/notify"
	"tesoretto/internal/services"
	gsheet "tesoretto/internal/sheets/google"
	"tesoretto/internal/worker"
)

func main() {
	cfg := cli.LoadConfig((*config.Config).Validate)
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	bus := events.Default()
	bus.Subscribe(events.LogHandler(logger.WithComponent(applog.ComponentAchievements).Logger))
	if res.AMQP != nil {
		bus.Subscribe(res.AMQP.TelemetryHandler())
	}

	inbox := notify.NewInbox(cfg.NotificationMaxUsers, cfg.NotificationTTL)
	loader := services.NewSnapshotLoader(res.Repository)
	achOpts := []services.AchievementOption{services.WithInbox(inbox)}
	if res.AMQP != nil {
		achOpts = append(achOpts, services.WithEvaluationQueue(res.AMQP))
	}
	ach := services.NewAchievementService(loader, achievements.NewEngine(res.Repository, bus), achOpts...)

	var sheets services.SheetsExporter
	if cfg.GoogleSpreadsheetID != "" {
		exporter, err := gsheet.NewExporter(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		sheets = exporter
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:   ":" + cfg.Port,
		Auth:   apphttp.NewAuthenticator(cfg.AuthJWTSecret, cfg.AuthJWTIssuer),
		Logger: logger,
		Ready:  readiness(res),
	}, apphttp.Services{
		Records:      services.NewRecordService(res.Repository, ach),
		Achievements: ach,
		Budgets:      services.NewBudgetService(res.Repository, services.NewBudgetAlerts(cfg.BudgetWarningPercent)),
		Data:         services.NewDataService(res.Repository, loader, ach, sheets),
	})

	var background sync.WaitGroup
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		ach.Wait()
		// The listener consumes from the AMQP client closed by Cleanup.
		if !waitContext(ctx, &background) {
			logger.Warn("Background tasks still running at cleanup")
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	background.Add(1)
	go func() {
		defer background.Done()
		inbox.RunSweeper(ctx, time.Minute)
	}()
	if res.AMQP != nil {
		background.Add(1)
		go func() {
			defer background.Done()
			if err := worker.NewUnlockListener(ach).Run(ctx, res.AMQP); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Unlock listener stopped", "error", err)
			}
		}()
	}

	logger.Info("Starting tesoretto server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", res.AMQP != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}

type pinger interface {
	Ping(ctx context.Context) error
}

// readiness checks the store when it supports pings and the broker when one
// is configured.
func readiness(res *backend.BackendResult) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if p, ok := res.Repository.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return err
			}
		}
		if res.AMQP != nil {
			return res.AMQP.Ping()
		}
		return nil
	}
}

// waitContext waits for wg and reports false if ctx ends first.
func waitContext(ctx context.Context, wg *sync.WaitGroup) bool {
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return true
	case <-ctx.Done():
		return false
	}
}
