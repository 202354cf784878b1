package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/folio/internal"
	"github.com/DukeRupert/folio/internal/auth"
	"github.com/DukeRupert/folio/internal/billing"
	"github.com/DukeRupert/folio/internal/handler"
	"github.com/DukeRupert/folio/internal/metrics"
	"github.com/DukeRupert/folio/internal/middleware"
	"github.com/DukeRupert/folio/internal/repository"
	"github.com/DukeRupert/folio/internal/service"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	store := repository.New(db)

	// ==========================================================================
	// Billing
	// ==========================================================================

	prices := billing.PriceConfig{
		PaidPriceID:          cfg.StripePaidPriceID,
		PremiumPriceID:       cfg.StripePremiumPriceID,
		ExtraPaidPriceIDs:    cfg.StripeExtraPaidPriceIDs,
		ExtraPremiumPriceIDs: cfg.StripeExtraPremiumPriceIDs,
	}
	policy := billing.NewPolicy(prices, logger)

	var billingService billing.Service
	var provider service.BillingProvider = billing.Disabled{}
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil, logger)
		provider = billingService
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, billing disabled and stored tiers are never reconciled")
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	// One locker for every writer of account tiers.
	locker := service.NewIdentityLocker()
	notifier := service.NewLogNotifier(logger)

	reconciler := service.NewReconciliationEngine(store, provider, policy, locker, notifier, service.ReconcileConfig{
		Timeout:       cfg.BillingTimeout,
		Concurrency:   cfg.ReconcileConcurrency,
		RatePerSecond: cfg.ReconcileRatePerSecond,
	}, logger)

	hasher := service.NewBcryptHasher()
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionDuration)
	accountService := service.NewAccountService(store, reconciler, hasher, tokens, locker, cfg.AdminEmails, logger)

	provisioning := service.NewProvisioningCoordinator(store, store, provider, policy, hasher, locker, notifier, cfg.BillingTimeout, logger)

	quota := service.NewQuotaEnforcer(store, logger)
	catalogService := service.NewCatalogService(store, store, quota, locker, logger)

	// ==========================================================================
	// Middleware
	// ==========================================================================

	authMw := middleware.NewAuthMiddleware(accountService, logger)
	limits := middleware.NewEndpointRateLimiter(ctx, logger)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)
	if !metricsAuth.Enabled() {
		logger.Warn("METRICS_USERNAME and METRICS_PASSWORD not set, /metrics is unprotected")
	}

	requireAccount := middleware.Stack(authMw.WithAccount, authMw.RequireAccount)
	requireAdmin := middleware.Stack(authMw.WithAccount, authMw.RequireAdmin)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			logger.Error("health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	handler.NewAuthHandler(accountService, limits, logger).
		RegisterRoutes(mux, limits.LimitRegister, limits.LimitLogin, requireAccount)
	handler.NewCatalogHandler(catalogService, logger).
		RegisterRoutes(mux, requireAccount)
	handler.NewBillingHandler(billingService, cfg.BaseURL, prices, logger).
		RegisterRoutes(mux, limits.LimitCheckout, authMw.WithAccount)
	handler.NewWebhookHandler(billingService, provisioning, reconciler, logger).
		RegisterRoutes(mux)
	handler.NewAdminHandler(reconciler, accountService, provisioning, logger).
		RegisterRoutes(mux, requireAdmin)

	// Outermost first: request ID and logging see every response.
	root := middleware.Stack(
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		metrics.Middleware,
		middleware.NewSecurityHeadersMiddleware(!cfg.IsDevelopment()).Handler,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Batch verification can outlast ordinary requests.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
