package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrilinkhq/mandi-backend/api/controllers"
	"github.com/agrilinkhq/mandi-backend/api/middleware"
	"github.com/agrilinkhq/mandi-backend/internal/balances"
	"github.com/agrilinkhq/mandi-backend/internal/expenses"
	"github.com/agrilinkhq/mandi-backend/internal/ledger"
	"github.com/agrilinkhq/mandi-backend/internal/payments"
	"github.com/agrilinkhq/mandi-backend/internal/transactions"
	"github.com/agrilinkhq/mandi-backend/pkg/config"
	"github.com/agrilinkhq/mandi-backend/pkg/db"
	"github.com/agrilinkhq/mandi-backend/pkg/logger"
	"github.com/agrilinkhq/mandi-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	transactionService transactions.Service,
	paymentService payments.Service,
	expenseService expenses.Service,
	balanceService balances.Service,
	ledgerService ledger.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	writePolicy := middleware.NewWriteRateLimitPolicy(
		"settlement",
		cfg.RateLimit.WriteWindow,
		cfg.RateLimit.WriteLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.WriteRateLimit(writePolicy, redisClient, logg))

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", controllers.TransactionCreate(transactionService, logg))
			r.Get("/", controllers.TransactionList(transactionService, logg))
			r.Get("/{transactionID}", controllers.TransactionGet(transactionService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.PaymentCreate(paymentService, logg))
			r.Get("/", controllers.PaymentList(paymentService, logg))
			r.Get("/{paymentID}", controllers.PaymentGet(paymentService, logg))
			r.Post("/{paymentID}/mark-paid", controllers.PaymentMarkPaid(paymentService, logg))
			r.Post("/{paymentID}/allocate", controllers.PaymentAllocate(paymentService, logg))
			r.Post("/{paymentID}/cancel", controllers.PaymentCancel(paymentService, logg))
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Post("/", controllers.ExpenseCreate(expenseService, logg))
			r.Get("/{expenseID}", controllers.ExpenseGet(expenseService, logg))
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/balance", controllers.BalanceGet(balanceService, logg))
			r.Post("/reconcile", controllers.BalanceReconcile(balanceService, logg))
			r.Get("/expenses/pending", controllers.ExpensePendingList(expenseService, logg))
			r.Get("/ledger", controllers.LedgerList(ledgerService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Post("/balances/reconcile-all", controllers.BalanceReconcileAll(balanceService, logg))
	})

	return r
}
