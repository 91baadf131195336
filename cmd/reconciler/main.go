package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

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

const (
	sweepInterval = 6 * time.Hour
	lockKeyFormat = "mandi:reconciler:lock:%s"
	lockTTL       = 30 * time.Minute
)

// The reconciler periodically recomputes every cached balance from history
// and corrects drift. A redis lock keeps concurrent replicas from sweeping
// the same pairs at once.
func main() {
	logg := logger.New(logger.Options{ServiceName: "reconciler"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "reconciler",
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

	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	balanceService, err := balances.NewService(
		balances.NewRepository(dbClient.DB()),
		transactions.NewRepository(dbClient.DB()),
		payments.NewRepository(dbClient.DB()),
		expenses.NewRepository(dbClient.DB()),
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
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting balance reconciler")

	lockKey := fmt.Sprintf(lockKeyFormat, cfg.App.Env)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	sweep(ctx, logg, redisClient, lockKey, balanceService)
	for {
		select {
		case <-ctx.Done():
			logg.Info(ctx, "reconciler shutting down gracefully")
			return
		case <-ticker.C:
			sweep(ctx, logg, redisClient, lockKey, balanceService)
		}
	}
}

func sweep(ctx context.Context, logg *logger.Logger, redisClient *redis.Client, lockKey string, svc balances.Service) {
	acquired, err := redisClient.SetNX(ctx, lockKey, time.Now().UTC().Format(time.RFC3339), lockTTL)
	if err != nil {
		logg.Error(ctx, "failed to acquire reconcile lock", err)
		return
	}
	if !acquired {
		logg.Info(ctx, "reconcile lock held elsewhere, skipping sweep")
		return
	}
	defer func() {
		if err := redisClient.Del(context.Background(), lockKey); err != nil {
			logg.Error(ctx, "failed to release reconcile lock", err)
		}
	}()

	result, err := svc.ReconcileAll(ctx)
	if err != nil {
		logg.Error(ctx, "reconcile sweep finished with errors", err)
	}
	if result != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"checked":   result.Checked,
			"corrected": result.Corrected,
		})
		logg.Info(logCtx, "reconcile sweep complete")
	}
}
