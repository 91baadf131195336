package balances

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agrilinkhq/mandi-backend/internal/expenses"
	"github.com/agrilinkhq/mandi-backend/internal/ledger"
	"github.com/agrilinkhq/mandi-backend/internal/payments"
	"github.com/agrilinkhq/mandi-backend/internal/testdb"
	"github.com/agrilinkhq/mandi-backend/internal/transactions"
	"github.com/agrilinkhq/mandi-backend/pkg/config"
	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
)

type fixture struct {
	conn     *gorm.DB
	svc      Service
	payments payments.Service
	shopID   uuid.UUID
	farmerID uuid.UUID
	buyerID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testdb.Open(t)
	runner := testdb.TxRunner{DB: conn}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)

	transactionsRepo := transactions.NewRepository(conn)
	paymentsRepo := payments.NewRepository(conn)
	expensesRepo := expenses.NewRepository(conn)

	paymentsSvc, err := payments.NewService(paymentsRepo, transactionsRepo, expensesRepo,
		ledgerSvc, runner, nil, nil)
	require.NoError(t, err)

	svc, err := NewService(NewRepository(conn), transactionsRepo, paymentsRepo, expensesRepo,
		ledgerSvc, runner, config.SettlementConfig{ReconcileBatchSize: 10}, nil, nil)
	require.NoError(t, err)

	return &fixture{
		conn:     conn,
		svc:      svc,
		payments: paymentsSvc,
		shopID:   uuid.New(),
		farmerID: uuid.New(),
		buyerID:  uuid.New(),
	}
}

func (f *fixture) seedTransaction(t *testing.T, createdAt time.Time, total, commission int64) models.Transaction {
	t.Helper()
	transaction := models.Transaction{
		ID:               uuid.New(),
		ShopID:           f.shopID,
		FarmerID:         f.farmerID,
		BuyerID:          f.buyerID,
		ProductID:        uuid.New(),
		Quantity:         decimal.NewFromInt(1),
		UnitPrice:        decimal.NewFromInt(total),
		CommissionRate:   decimal.NewFromInt(5),
		TotalAmount:      decimal.NewFromInt(total),
		CommissionAmount: decimal.NewFromInt(commission),
		FarmerEarning:    decimal.NewFromInt(total - commission),
		CreatedAt:        createdAt,
	}
	require.NoError(t, f.conn.Create(&transaction).Error)
	return transaction
}

func (f *fixture) pay(t *testing.T, payer, payee enums.PartyRole, counterparty uuid.UUID, amount int64) {
	t.Helper()
	_, _, err := f.payments.CreatePayment(context.Background(), payments.CreatePaymentInput{
		ShopID:         f.shopID,
		PayerRole:      payer,
		PayeeRole:      payee,
		CounterpartyID: counterparty,
		Amount:         decimal.NewFromInt(amount),
	})
	require.NoError(t, err)
}

func TestFarmerBalanceGatedOnCollection(t *testing.T) {
	f := newFixture(t)
	f.seedTransaction(t, time.Now().Add(-time.Hour), 5000, 250)

	// nothing collected from the buyer yet, so nothing is owed to the farmer
	view, err := f.svc.GetBalance(context.Background(), f.farmerID, f.shopID)
	require.NoError(t, err)
	assert.True(t, view.Balance.IsZero(), "balance = %s", view.Balance)

	// buyer pays in 3000; past the 250 commission, 2750 is releasable
	f.pay(t, enums.PartyRoleBuyer, enums.PartyRoleShop, f.buyerID, 3000)
	// the shop has already paid the farmer 2000 of it
	f.pay(t, enums.PartyRoleShop, enums.PartyRoleFarmer, f.farmerID, 2000)

	view, err = f.svc.GetBalance(context.Background(), f.farmerID, f.shopID)
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(decimal.NewFromInt(750)), "balance = %s", view.Balance)
	assert.True(t, view.FarmerReceivable.Equal(decimal.NewFromInt(750)))
}

func TestBuyerBalanceIsOutstandingDebt(t *testing.T) {
	f := newFixture(t)
	f.seedTransaction(t, time.Now().Add(-time.Hour), 5000, 250)

	f.pay(t, enums.PartyRoleBuyer, enums.PartyRoleShop, f.buyerID, 3000)

	view, err := f.svc.GetBalance(context.Background(), f.buyerID, f.shopID)
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(decimal.NewFromInt(-2000)), "balance = %s", view.Balance)
	assert.True(t, view.BuyerOutstanding.Equal(decimal.NewFromInt(2000)))
}

func TestPendingExpensesCountTowardBalance(t *testing.T) {
	f := newFixture(t)

	expense := models.Expense{
		ID:     uuid.New(),
		UserID: f.farmerID,
		ShopID: f.shopID,
		Amount: decimal.NewFromInt(300),
		Status: enums.ExpenseStatusPending,
	}
	require.NoError(t, f.conn.Create(&expense).Error)

	view, err := f.svc.GetBalance(context.Background(), f.farmerID, f.shopID)
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(decimal.NewFromInt(300)), "balance = %s", view.Balance)
	assert.True(t, view.ExpenseCredits.Equal(decimal.NewFromInt(300)))
}

func TestGetBalanceVersionsTheCache(t *testing.T) {
	f := newFixture(t)
	f.seedTransaction(t, time.Now().Add(-time.Hour), 1000, 50)

	f.pay(t, enums.PartyRoleBuyer, enums.PartyRoleShop, f.buyerID, 1000)

	first, err := f.svc.GetBalance(context.Background(), f.farmerID, f.shopID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)

	// an unchanged balance does not burn a version
	second, err := f.svc.GetBalance(context.Background(), f.farmerID, f.shopID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Version)

	// more history moves the balance and bumps the version
	f.pay(t, enums.PartyRoleShop, enums.PartyRoleFarmer, f.farmerID, 500)
	third, err := f.svc.GetBalance(context.Background(), f.farmerID, f.shopID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), third.Version)
	assert.True(t, third.Balance.Equal(decimal.NewFromInt(450)), "balance = %s", third.Balance)
}

func TestReconcileCorrectsDrift(t *testing.T) {
	f := newFixture(t)
	f.seedTransaction(t, time.Now().Add(-time.Hour), 1000, 50)
	f.pay(t, enums.PartyRoleBuyer, enums.PartyRoleShop, f.buyerID, 1000)

	// warm the cache, then corrupt it behind the service's back
	_, err := f.svc.GetBalance(context.Background(), f.farmerID, f.shopID)
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.UserBalance{}).
		Where("user_id = ?", f.farmerID).
		Update("balance", decimal.NewFromInt(99999)).Error)

	result, err := f.svc.Reconcile(context.Background(), f.farmerID, f.shopID)
	require.NoError(t, err)
	assert.True(t, result.Corrected)
	assert.True(t, result.Stored.Equal(decimal.NewFromInt(99999)))
	assert.True(t, result.Recomputed.Equal(decimal.NewFromInt(950)), "recomputed = %s", result.Recomputed)

	var corrections []models.LedgerEntry
	require.NoError(t, f.conn.
		Where("type = ?", enums.LedgerEntryTypeBalanceCorrected).
		Find(&corrections).Error)
	require.Len(t, corrections, 1)
	assert.Equal(t, enums.LedgerDirectionDebit, corrections[0].Direction)
	assert.True(t, corrections[0].Amount.Equal(decimal.NewFromInt(99049)))

	// a clean cache reconciles without touching anything
	again, err := f.svc.Reconcile(context.Background(), f.farmerID, f.shopID)
	require.NoError(t, err)
	assert.False(t, again.Corrected)
}

func TestReconcileAllSweepsEveryPair(t *testing.T) {
	f := newFixture(t)
	f.seedTransaction(t, time.Now().Add(-time.Hour), 1000, 50)
	f.pay(t, enums.PartyRoleBuyer, enums.PartyRoleShop, f.buyerID, 400)

	// warm one cache and corrupt it
	_, err := f.svc.GetBalance(context.Background(), f.farmerID, f.shopID)
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.UserBalance{}).
		Where("user_id = ?", f.farmerID).
		Update("balance", decimal.NewFromInt(12345)).Error)

	result, err := f.svc.ReconcileAll(context.Background())
	require.NoError(t, err)
	// farmer and buyer both appear in history
	assert.Equal(t, 2, result.Checked)
	assert.GreaterOrEqual(t, result.Corrected, 1)
}
