package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/agrilinkhq/mandi-backend/api/routes"
	"github.com/agrilinkhq/mandi-backend/internal/balances"
	"github.com/agrilinkhq/mandi-backend/internal/expenses"
	"github.com/agrilinkhq/mandi-backend/internal/ledger"
	"github.com/agrilinkhq/mandi-backend/internal/payments"
	"github.com/agrilinkhq/mandi-backend/internal/transactions"
	"github.com/agrilinkhq/mandi-backend/pkg/config"
	"github.com/agrilinkhq/mandi-backend/pkg/db"
	"github.com/agrilinkhq/mandi-backend/pkg/logger"
	"github.com/agrilinkhq/mandi-backend/pkg/metrics"
	"github.com/agrilinkhq/mandi-backend/pkg/migrate"
	"github.com/agrilinkhq/mandi-backend/pkg/redis"
)

const idempotencyPurgeInterval = time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	settlementMetrics := metrics.NewSettlementMetrics(promRegistry)

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	transactionRepo := transactions.NewRepository(dbClient.DB())
	expenseRepo := expenses.NewRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())

	transactionService, err := transactions.NewService(transactionRepo, ledgerService, dbClient, cfg.Settlement, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create transaction service", err)
		os.Exit(1)
	}

	expenseService, err := expenses.NewService(expenseRepo, ledgerService, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create expense service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(paymentRepo, transactionRepo, expenseRepo, ledgerService, dbClient, settlementMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	balanceService, err := balances.NewService(
		balances.NewRepository(dbClient.DB()),
		transactionRepo,
		paymentRepo,
		expenseRepo,
		ledgerService,
		dbClient,
		cfg.Settlement,
		settlementMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create balance service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go purgeStaleIdempotencyKeys(ctx, transactionService, logg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promRegistry,
			transactionService,
			paymentService,
			expenseService,
			balanceService,
			ledgerService,
		),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "error during shutdown", err)
		}
		logg.Info(logCtx, "api server shut down gracefully")
	}
}

// purgeStaleIdempotencyKeys drops unbound transaction idempotency claims
// older than the configured TTL so abandoned requests do not block their
// keys forever.
func purgeStaleIdempotencyKeys(ctx context.Context, svc transactions.Service, logg *logger.Logger) {
	ticker := time.NewTicker(idempotencyPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := svc.PurgeStaleIdempotencyKeys(ctx)
			if err != nil {
				logg.Error(ctx, "idempotency key purge failed", err)
				continue
			}
			if purged > 0 {
				logCtx := logg.WithFields(ctx, map[string]any{"purged": purged})
				logg.Info(logCtx, "purged stale idempotency keys")
			}
		}
	}
}
