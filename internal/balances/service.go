package balances

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/agrilinkhq/mandi-backend/internal/expenses"
	"github.com/agrilinkhq/mandi-backend/internal/ledger"
	"github.com/agrilinkhq/mandi-backend/internal/payments"
	"github.com/agrilinkhq/mandi-backend/internal/transactions"
	"github.com/agrilinkhq/mandi-backend/pkg/config"
	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
	"github.com/agrilinkhq/mandi-backend/pkg/logger"
	"github.com/agrilinkhq/mandi-backend/pkg/metrics"
)

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service recomputes balances from settlement history. The cached rows in
// user_balances are a convenience; every read rederives the number from
// transactions, allocations, and expenses.
type Service interface {
	GetBalance(ctx context.Context, userID, shopID uuid.UUID) (*BalanceView, error)
	Reconcile(ctx context.Context, userID, shopID uuid.UUID) (*ReconcileResult, error)
	ReconcileAll(ctx context.Context) (*ReconcileAllResult, error)
}

// BalanceView is a freshly derived balance with its components. A positive
// Balance means the shop owes the user; negative means the user owes the
// shop, so a buyer's outstanding debt reads as a negative Balance even
// though BuyerOutstanding itself is the positive amount still due.
type BalanceView struct {
	UserID           uuid.UUID
	ShopID           uuid.UUID
	Balance          decimal.Decimal
	FarmerReceivable decimal.Decimal
	ExpenseCredits   decimal.Decimal
	BuyerOutstanding decimal.Decimal
	Version          int64
	LastUpdated      time.Time
}

// ReconcileResult reports one cached balance checked against history.
type ReconcileResult struct {
	UserID     uuid.UUID
	ShopID     uuid.UUID
	Stored     decimal.Decimal
	Recomputed decimal.Decimal
	Corrected  bool
}

// ReconcileAllResult aggregates a full reconciliation sweep.
type ReconcileAllResult struct {
	Checked   int
	Corrected int
}

type service struct {
	repo         Repository
	transactions transactions.Repository
	payments     payments.Repository
	expenses     expenses.Repository
	ledger       ledger.Service
	tx           TxRunner
	cfg          config.SettlementConfig
	metrics      *metrics.SettlementMetrics
	logg         *logger.Logger
}

// NewService wires a balances service with its dependencies. Metrics and
// logger may be nil.
func NewService(repo Repository, transactionsRepo transactions.Repository, paymentsRepo payments.Repository, expensesRepo expenses.Repository, ledgerSvc ledger.Service, tx TxRunner, cfg config.SettlementConfig, m *metrics.SettlementMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("balances repository required")
	}
	if transactionsRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if paymentsRepo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if expensesRepo == nil {
		return nil, fmt.Errorf("expenses repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:         repo,
		transactions: transactionsRepo,
		payments:     paymentsRepo,
		expenses:     expensesRepo,
		ledger:       ledgerSvc,
		tx:           tx,
		cfg:          cfg,
		metrics:      m,
		logg:         logg,
	}, nil
}

// compute rederives the balance for a (user, shop) pair from history.
//
// The farmer side is gated on collection: a farmer is owed, per sale, only
// what the buyer has actually paid in beyond the shop's commission, capped at
// the farmer's earning, minus what the shop already paid out for that sale.
func (s *service) compute(ctx context.Context, userID, shopID uuid.UUID) (*BalanceView, error) {
	view := &BalanceView{
		UserID:           userID,
		ShopID:           shopID,
		Balance:          decimal.Zero,
		FarmerReceivable: decimal.Zero,
		ExpenseCredits:   decimal.Zero,
		BuyerOutstanding: decimal.Zero,
	}

	farmerTxs, err := s.transactions.ListByParty(ctx, userID, shopID, enums.PartyRoleFarmer)
	if err != nil {
		return nil, err
	}
	if len(farmerTxs) > 0 {
		ids := transactionIDs(farmerTxs)
		buyerPaid, err := s.payments.AllocatedByTransaction(ctx, ids, enums.PartyRoleBuyer, enums.PartyRoleShop)
		if err != nil {
			return nil, err
		}
		farmerPaid, err := s.payments.AllocatedByTransaction(ctx, ids, enums.PartyRoleShop, enums.PartyRoleFarmer)
		if err != nil {
			return nil, err
		}

		for _, transaction := range farmerTxs {
			collected := buyerPaid[transaction.ID].Sub(transaction.CommissionAmount)
			if collected.IsNegative() {
				collected = decimal.Zero
			}
			due := decimal.Min(transaction.FarmerEarning, collected)
			due = due.Sub(farmerPaid[transaction.ID])
			if due.IsPositive() {
				view.FarmerReceivable = view.FarmerReceivable.Add(due)
			}
		}
	}

	buyerTxs, err := s.transactions.ListByParty(ctx, userID, shopID, enums.PartyRoleBuyer)
	if err != nil {
		return nil, err
	}
	if len(buyerTxs) > 0 {
		ids := transactionIDs(buyerTxs)
		paid, err := s.payments.AllocatedByTransaction(ctx, ids, enums.PartyRoleBuyer, enums.PartyRoleShop)
		if err != nil {
			return nil, err
		}
		for _, transaction := range buyerTxs {
			open := transaction.TotalAmount.Sub(paid[transaction.ID])
			if open.IsPositive() {
				view.BuyerOutstanding = view.BuyerOutstanding.Add(open)
			}
		}
	}

	expenseCredits, err := s.expenses.PendingRemainderTotal(ctx, userID, shopID)
	if err != nil {
		return nil, err
	}
	view.ExpenseCredits = expenseCredits

	view.Balance = view.FarmerReceivable.
		Add(view.ExpenseCredits).
		Sub(view.BuyerOutstanding)
	return view, nil
}

// GetBalance recomputes the balance and refreshes the cached row with an
// optimistic version check.
func (s *service) GetBalance(ctx context.Context, userID, shopID uuid.UUID) (*BalanceView, error) {
	if userID == uuid.Nil || shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and shop id are required")
	}

	view, err := s.compute(ctx, userID, shopID)
	if err != nil {
		return nil, err
	}

	cached, err := s.refreshCache(ctx, view)
	if err != nil {
		return nil, err
	}
	view.Version = cached.Version
	view.LastUpdated = cached.LastUpdated
	return view, nil
}

func (s *service) refreshCache(ctx context.Context, view *BalanceView) (*models.UserBalance, error) {
	cached, err := s.repo.Get(ctx, view.UserID, view.ShopID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fresh := &models.UserBalance{
			UserID:  view.UserID,
			ShopID:  view.ShopID,
			Balance: view.Balance,
			Version: 1,
		}
		if createErr := s.repo.Create(ctx, fresh); createErr != nil {
			s.metrics.IncStaleBalance()
			return nil, pkgerrors.Wrap(pkgerrors.CodeStaleBalance, createErr,
				"balance row created concurrently, retry")
		}
		return fresh, nil
	}
	if err != nil {
		return nil, err
	}

	if cached.Balance.Equal(view.Balance) {
		return cached, nil
	}

	affected, err := s.repo.UpdateWithVersion(ctx, cached.ID, view.Balance, cached.Version)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		s.metrics.IncStaleBalance()
		return nil, pkgerrors.New(pkgerrors.CodeStaleBalance,
			"balance updated concurrently, retry")
	}
	cached.Balance = view.Balance
	cached.Version = cached.Version + 1
	cached.LastUpdated = time.Now()
	return cached, nil
}

// Reconcile checks one cached balance against history and corrects drift,
// leaving an audit entry in the ledger when it does.
func (s *service) Reconcile(ctx context.Context, userID, shopID uuid.UUID) (*ReconcileResult, error) {
	if userID == uuid.Nil || shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and shop id are required")
	}

	view, err := s.compute(ctx, userID, shopID)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		UserID:     userID,
		ShopID:     shopID,
		Recomputed: view.Balance,
	}

	cached, err := s.repo.Get(ctx, userID, shopID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		result.Stored = decimal.Zero
		if view.Balance.IsZero() {
			return result, nil
		}
		fresh := &models.UserBalance{UserID: userID, ShopID: shopID, Balance: view.Balance, Version: 1}
		if err := s.repo.Create(ctx, fresh); err != nil {
			return nil, err
		}
		result.Corrected = true
		s.metrics.IncReconcileCorrection()
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.Stored = cached.Balance
	if cached.Balance.Equal(view.Balance) {
		return result, nil
	}

	drift := view.Balance.Sub(cached.Balance)
	direction := enums.LedgerDirectionCredit
	if drift.IsNegative() {
		direction = enums.LedgerDirectionDebit
		drift = drift.Neg()
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).UpdateWithVersion(ctx, cached.ID, view.Balance, cached.Version)
		if err != nil {
			return err
		}
		if affected == 0 {
			s.metrics.IncStaleBalance()
			return pkgerrors.New(pkgerrors.CodeStaleBalance, "balance updated concurrently, retry")
		}
		_, err = s.ledger.WithTx(tx).RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:        userID,
			ShopID:        shopID,
			Direction:     direction,
			Amount:        drift,
			Type:          enums.LedgerEntryTypeBalanceCorrected,
			ReferenceType: enums.ReferenceTypeBalance,
			ReferenceID:   cached.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	result.Corrected = true
	s.metrics.IncReconcileCorrection()
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":    userID,
			"shop_id":    shopID,
			"stored":     result.Stored,
			"recomputed": result.Recomputed,
		})
		s.logg.Warn(logCtx, "cached balance drifted, corrected")
	}
	return result, nil
}

// ReconcileAll sweeps every known (user, shop) pair in batches. Individual
// failures do not stop the sweep; they are collected and returned together.
func (s *service) ReconcileAll(ctx context.Context) (*ReconcileAllResult, error) {
	batch := s.cfg.ReconcileBatchSize
	if batch <= 0 {
		batch = 100
	}

	result := &ReconcileAllResult{}
	var sweepErr error

	for offset := 0; ; offset += batch {
		pairs, err := s.repo.ListPairs(ctx, batch, offset)
		if err != nil {
			return result, multierr.Append(sweepErr, err)
		}
		if len(pairs) == 0 {
			break
		}

		for _, pair := range pairs {
			if err := ctx.Err(); err != nil {
				return result, multierr.Append(sweepErr, err)
			}
			checked, err := s.Reconcile(ctx, pair.UserID, pair.ShopID)
			if err != nil {
				sweepErr = multierr.Append(sweepErr,
					fmt.Errorf("reconcile user %s shop %s: %w", pair.UserID, pair.ShopID, err))
				continue
			}
			result.Checked++
			if checked.Corrected {
				result.Corrected++
			}
		}

		if len(pairs) < batch {
			break
		}
	}
	return result, sweepErr
}

func transactionIDs(rows []models.Transaction) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}
