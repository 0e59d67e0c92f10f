// Package http exposes the JSON API used by the budgeting UI.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "tesoretto/internal/log"
	"tesoretto/internal/middleware/ratelimit"
	"tesoretto/internal/middleware/security"
	"tesoretto/internal/middleware/trace"
	"tesoretto/internal/services"
)

// Services are the application services the API is built on.
type Services struct {
	Records      *services.RecordService
	Achievements *services.AchievementService
	Budgets      *services.BudgetService
	Data         *services.DataService
}

type Options struct {
	Addr   string
	Auth   *Authenticator
	Logger *applog.Logger
	// RateLimit applies to write requests per client IP.
	RateLimit ratelimit.Config
	// Ready reports whether dependencies are reachable; nil means always
	// ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	records      *services.RecordService
	achievements *services.AchievementService
	budgets      *services.BudgetService
	data         *services.DataService

	logger       *applog.Logger
	limiter      *ratelimit.Limiter
	ready        func(ctx context.Context) error
	now          func() time.Time
	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, svc Services) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		records:      svc.Records,
		achievements: svc.Achievements,
		budgets:      svc.Budgets,
		data:         svc.Data,
		logger:       logger,
		limiter:      ratelimit.NewLimiter(opts.RateLimit),
		ready:        opts.Ready,
		now:          time.Now,
		startedAt:    time.Now(),
	}

	api := http.NewServeMux()
	s.registerRecordRoutes(api)
	api.HandleFunc("GET /api/wallets", withUser(s.handleWallets))
	api.HandleFunc("GET /api/achievements", withUser(s.handleAchievements))
	api.HandleFunc("GET /api/achievements/notifications", withUser(s.handleNotifications))
	api.HandleFunc("GET /api/budgets/status", withUser(s.handleBudgetStatus))
	api.HandleFunc("GET /api/export", withUser(s.handleExport))
	api.HandleFunc("POST /api/import", withUser(s.handleImport))
	api.HandleFunc("POST /api/export/sheets", withUser(s.handleExportSheets))
	api.HandleFunc("POST /api/import/sheets", withUser(s.handleImportSheets))
	api.HandleFunc("DELETE /api/data", withUser(s.handleReset))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", opts.Auth.Middleware(api))

	var h http.Handler = mux
	h = s.limiter.Middleware(security.ClientIP, nil)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = recoverer(h)
	h = applog.Middleware(logger, trace.FromRequest, security.ClientIP)(h)
	h = trace.Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) registerRecordRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/expenses", listHandler(s.records.ListExpenses))
	mux.HandleFunc("POST /api/expenses", createHandler(s.records.CreateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", deleteHandler(s.records.DeleteExpense))

	mux.HandleFunc("GET /api/income", listHandler(s.records.ListIncome))
	mux.HandleFunc("POST /api/income", createHandler(s.records.CreateIncome))
	mux.HandleFunc("DELETE /api/income/{id}", deleteHandler(s.records.DeleteIncome))

	mux.HandleFunc("GET /api/budgets", listHandler(s.records.ListBudgets))
	mux.HandleFunc("POST /api/budgets", createHandler(s.records.CreateBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", deleteHandler(s.records.DeleteBudget))

	mux.HandleFunc("GET /api/ious", listHandler(s.records.ListIous))
	mux.HandleFunc("POST /api/ious", createHandler(s.records.CreateIou))
	mux.HandleFunc("DELETE /api/ious/{id}", deleteHandler(s.records.DeleteIou))
	mux.HandleFunc("POST /api/ious/{id}/paid", withUser(s.handleMarkIouPaid))

	mux.HandleFunc("GET /api/wishlist", listHandler(s.records.ListWishlist))
	mux.HandleFunc("POST /api/wishlist", createHandler(s.records.CreateWishlistItem))
	mux.HandleFunc("DELETE /api/wishlist/{id}", deleteHandler(s.records.DeleteWishlistItem))
	mux.HandleFunc("POST /api/wishlist/{id}/save", withUser(s.handleAddSavings))

	mux.HandleFunc("POST /api/wallets", createHandler(s.records.CreateWallet))
	mux.HandleFunc("DELETE /api/wallets/{id}", deleteHandler(s.records.DeleteWallet))
}

// recoverer turns a handler panic into a 500 response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				applog.FromContext(r.Context()).ErrorContext(r.Context(), "Handler panicked",
					"panic", rec, "path", r.URL.Path)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady checks dependencies with a short timeout.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.limiter.ActiveClients()},
	}
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			checks["store"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// Shutdown stops accepting requests and releases background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
