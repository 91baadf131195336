package expenses

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilinkhq/mandi-backend/internal/ledger"
	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
	"github.com/agrilinkhq/mandi-backend/pkg/pagination"
)

type fakeRepository struct {
	createFn      func(ctx context.Context, expense *models.Expense) error
	findFn        func(ctx context.Context, id uuid.UUID) (*models.Expense, error)
	listPendingFn func(ctx context.Context, userID, shopID uuid.UUID) ([]models.Expense, error)
	settledFn     func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, expense *models.Expense) error {
	if f.createFn != nil {
		return f.createFn(ctx, expense)
	}
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	if f.findFn != nil {
		return f.findFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListPendingFIFO(ctx context.Context, userID, shopID uuid.UUID) ([]models.Expense, error) {
	if f.listPendingFn != nil {
		return f.listPendingFn(ctx, userID, shopID)
	}
	return nil, nil
}

func (f *fakeRepository) SettledAmounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	if f.settledFn != nil {
		return f.settledFn(ctx, ids)
	}
	return map[uuid.UUID]decimal.Decimal{}, nil
}

func (f *fakeRepository) CreateSettlement(ctx context.Context, settlement *models.ExpenseSettlement) error {
	return nil
}

func (f *fakeRepository) MarkSettled(ctx context.Context, expenseID uuid.UUID) error { return nil }

func (f *fakeRepository) SumSettlementsByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeRepository) ListSettlementsByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.ExpenseSettlement, error) {
	return nil, nil
}

func (f *fakeRepository) PendingRemainderTotal(ctx context.Context, userID, shopID uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type fakeLedger struct {
	recorded []ledger.RecordEntryInput
	err      error
}

func (f *fakeLedger) WithTx(tx *gorm.DB) ledger.Service { return f }

func (f *fakeLedger) RecordEntry(ctx context.Context, input ledger.RecordEntryInput) (*models.LedgerEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.recorded = append(f.recorded, input)
	return &models.LedgerEntry{}, nil
}

func (f *fakeLedger) EntriesFor(ctx context.Context, userID, shopID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error) {
	return nil, "", nil
}

func (f *fakeLedger) EntriesForReference(ctx context.Context, referenceID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

type fakeTxRunner struct {
	err error
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

func newTestService(t *testing.T, repo Repository, led ledger.Service) Service {
	t.Helper()
	svc, err := NewService(repo, led, &fakeTxRunner{}, nil)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc
}

func TestCreateExpense(t *testing.T) {
	repo := &fakeRepository{}
	led := &fakeLedger{}
	svc := newTestService(t, repo, led)

	expenseID := uuid.New()
	repo.createFn = func(ctx context.Context, expense *models.Expense) error {
		expense.ID = expenseID
		return nil
	}

	desc := "transport advance"
	got, err := svc.CreateExpense(context.Background(), CreateExpenseInput{
		UserID:      uuid.New(),
		ShopID:      uuid.New(),
		Amount:      decimal.NewFromInt(300),
		Description: &desc,
	})
	if err != nil {
		t.Fatalf("CreateExpense error: %v", err)
	}
	if got.Status != enums.ExpenseStatusPending {
		t.Fatalf("expected pending status, got %s", got.Status)
	}

	if len(led.recorded) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(led.recorded))
	}
	entry := led.recorded[0]
	if entry.Type != enums.LedgerEntryTypeExpenseCreated {
		t.Fatalf("unexpected entry type %s", entry.Type)
	}
	if entry.Direction != enums.LedgerDirectionCredit {
		t.Fatalf("expected credit entry, got %s", entry.Direction)
	}
	if entry.ReferenceID != expenseID {
		t.Fatal("ledger entry should reference the created expense")
	}
	if !entry.Amount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("ledger amount = %s", entry.Amount)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, &fakeLedger{})

	tests := []struct {
		name  string
		input CreateExpenseInput
	}{
		{"missing user", CreateExpenseInput{ShopID: uuid.New(), Amount: decimal.NewFromInt(10)}},
		{"missing shop", CreateExpenseInput{UserID: uuid.New(), Amount: decimal.NewFromInt(10)}},
		{"zero amount", CreateExpenseInput{UserID: uuid.New(), ShopID: uuid.New()}},
		{"negative amount", CreateExpenseInput{UserID: uuid.New(), ShopID: uuid.New(), Amount: decimal.NewFromInt(-10)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateExpense(context.Background(), tc.input)
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestCreateExpenseLedgerFailureAborts(t *testing.T) {
	repo := &fakeRepository{}
	led := &fakeLedger{err: errors.New("ledger down")}
	svc := newTestService(t, repo, led)

	_, err := svc.CreateExpense(context.Background(), CreateExpenseInput{
		UserID: uuid.New(),
		ShopID: uuid.New(),
		Amount: decimal.NewFromInt(50),
	})
	if err == nil {
		t.Fatal("expected ledger error to fail the creation")
	}
}

func TestGetExpenseNotFound(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, &fakeLedger{})

	_, err := svc.GetExpense(context.Background(), uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestPendingForComputesRemainders(t *testing.T) {
	userID := uuid.New()
	shopID := uuid.New()

	first := models.Expense{ID: uuid.New(), UserID: userID, ShopID: shopID, Amount: decimal.NewFromInt(300), Status: enums.ExpenseStatusPending}
	second := models.Expense{ID: uuid.New(), UserID: userID, ShopID: shopID, Amount: decimal.NewFromInt(500), Status: enums.ExpenseStatusPending}

	repo := &fakeRepository{
		listPendingFn: func(ctx context.Context, u, s uuid.UUID) ([]models.Expense, error) {
			return []models.Expense{first, second}, nil
		},
		settledFn: func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
			return map[uuid.UUID]decimal.Decimal{first.ID: decimal.NewFromInt(120)}, nil
		},
	}
	svc := newTestService(t, repo, &fakeLedger{})

	pending, err := svc.PendingFor(context.Background(), userID, shopID)
	if err != nil {
		t.Fatalf("PendingFor error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending expenses, got %d", len(pending))
	}
	if !pending[0].Remaining.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("first remaining = %s, want 180", pending[0].Remaining)
	}
	if !pending[1].Remaining.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("second remaining = %s, want 500", pending[1].Remaining)
	}
}
