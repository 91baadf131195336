package transactions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilinkhq/mandi-backend/internal/ledger"
	"github.com/agrilinkhq/mandi-backend/pkg/config"
	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
	"github.com/agrilinkhq/mandi-backend/pkg/pagination"
)

type fakeRepository struct {
	transactions map[uuid.UUID]*models.Transaction
	keys         map[string]*models.TransactionIdempotencyKey
	shop         *models.Shop

	createKeyErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		transactions: map[uuid.UUID]*models.Transaction{},
		keys:         map[string]*models.TransactionIdempotencyKey{},
		shop: &models.Shop{
			ID:                    uuid.New(),
			DefaultCommissionRate: decimal.NewFromInt(5),
		},
	}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, transaction *models.Transaction) error {
	transaction.ID = uuid.New()
	transaction.CreatedAt = time.Now()
	f.transactions[transaction.ID] = transaction
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if tx, ok := f.transactions[id]; ok {
		return tx, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListByParty(ctx context.Context, userID, shopID uuid.UUID, role enums.PartyRole) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeRepository) ListByShop(ctx context.Context, shopID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeRepository) FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	if f.shop != nil && f.shop.ID == id {
		return f.shop, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) CreateIdempotencyKey(ctx context.Context, key *models.TransactionIdempotencyKey) error {
	if f.createKeyErr != nil {
		return f.createKeyErr
	}
	if _, exists := f.keys[key.Key]; exists {
		return errors.New(`duplicate key value violates unique constraint "transaction_idempotency_keys_pkey"`)
	}
	f.keys[key.Key] = key
	return nil
}

func (f *fakeRepository) FindIdempotencyKey(ctx context.Context, key string) (*models.TransactionIdempotencyKey, error) {
	if record, ok := f.keys[key]; ok {
		return record, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) BindIdempotencyKey(ctx context.Context, key string, transactionID uuid.UUID) error {
	record, ok := f.keys[key]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	record.TransactionID = &transactionID
	return nil
}

func (f *fakeRepository) PurgeUnboundKeysBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	for k, record := range f.keys {
		if record.TransactionID == nil && record.CreatedAt.Before(cutoff) {
			delete(f.keys, k)
			purged++
		}
	}
	return purged, nil
}

type fakeLedger struct {
	recorded []ledger.RecordEntryInput
}

func (f *fakeLedger) WithTx(tx *gorm.DB) ledger.Service { return f }

func (f *fakeLedger) RecordEntry(ctx context.Context, input ledger.RecordEntryInput) (*models.LedgerEntry, error) {
	f.recorded = append(f.recorded, input)
	return &models.LedgerEntry{}, nil
}

func (f *fakeLedger) EntriesFor(ctx context.Context, userID, shopID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error) {
	return nil, "", nil
}

func (f *fakeLedger) EntriesForReference(ctx context.Context, referenceID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testConfig() config.SettlementConfig {
	return config.SettlementConfig{
		DefaultCommissionRate: "5",
		IdempotencyRecordTTL:  7 * 24 * time.Hour,
	}
}

func validInput(repo *fakeRepository) CreateTransactionInput {
	return CreateTransactionInput{
		IdempotencyKey: "req-" + uuid.NewString(),
		ShopID:         repo.shop.ID,
		FarmerID:       uuid.New(),
		BuyerID:        uuid.New(),
		ProductID:      uuid.New(),
		Quantity:       decimal.NewFromInt(100),
		UnitPrice:      decimal.NewFromInt(50),
	}
}

func TestCreateTransaction(t *testing.T) {
	repo := newFakeRepository()
	led := &fakeLedger{}
	svc, err := NewService(repo, led, fakeTxRunner{}, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}

	input := validInput(repo)
	got, created, err := svc.CreateTransaction(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateTransaction error: %v", err)
	}
	if !created {
		t.Fatal("expected a fresh transaction")
	}

	if !got.TotalAmount.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("total = %s, want 5000", got.TotalAmount)
	}
	if !got.CommissionAmount.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("commission = %s, want 250", got.CommissionAmount)
	}
	if !got.FarmerEarning.Equal(decimal.NewFromInt(4750)) {
		t.Fatalf("earning = %s, want 4750", got.FarmerEarning)
	}

	record := repo.keys[input.IdempotencyKey]
	if record == nil || record.TransactionID == nil || *record.TransactionID != got.ID {
		t.Fatal("idempotency key should be bound to the committed transaction")
	}

	if len(led.recorded) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(led.recorded))
	}
	farmerEntry, buyerEntry := led.recorded[0], led.recorded[1]
	if farmerEntry.Direction != enums.LedgerDirectionCredit || !farmerEntry.Amount.Equal(got.FarmerEarning) {
		t.Fatalf("unexpected farmer entry: %+v", farmerEntry)
	}
	if buyerEntry.Direction != enums.LedgerDirectionDebit || !buyerEntry.Amount.Equal(got.TotalAmount) {
		t.Fatalf("unexpected buyer entry: %+v", buyerEntry)
	}
}

func TestCreateTransactionReplaysCommittedKey(t *testing.T) {
	repo := newFakeRepository()
	led := &fakeLedger{}
	svc, _ := NewService(repo, led, fakeTxRunner{}, testConfig(), nil)

	input := validInput(repo)
	first, _, err := svc.CreateTransaction(context.Background(), input)
	if err != nil {
		t.Fatalf("first CreateTransaction error: %v", err)
	}

	second, created, err := svc.CreateTransaction(context.Background(), input)
	if err != nil {
		t.Fatalf("replay error: %v", err)
	}
	if created {
		t.Fatal("replay must not report a fresh transaction")
	}
	if second.ID != first.ID {
		t.Fatal("replay should return the original transaction")
	}
	if len(repo.transactions) != 1 {
		t.Fatalf("expected exactly one transaction, got %d", len(repo.transactions))
	}
	if len(led.recorded) != 2 {
		t.Fatalf("replay must not emit ledger entries, got %d total", len(led.recorded))
	}
}

func TestCreateTransactionInFlightKeyConflicts(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo, &fakeLedger{}, fakeTxRunner{}, testConfig(), nil)

	input := validInput(repo)
	repo.keys[input.IdempotencyKey] = &models.TransactionIdempotencyKey{
		Key:       input.IdempotencyKey,
		BuyerID:   input.BuyerID,
		FarmerID:  input.FarmerID,
		ShopID:    input.ShopID,
		CreatedAt: time.Now(),
	}

	_, _, err := svc.CreateTransaction(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT for in-flight key, got %v", err)
	}
}

func TestCreateTransactionLostInsertRace(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo, &fakeLedger{}, fakeTxRunner{}, testConfig(), nil)

	// the winner claims the key between our lookup and our insert, so the
	// insert hits the primary key while the lookup saw nothing
	repo.createKeyErr = errors.New(`duplicate key value violates unique constraint "transaction_idempotency_keys_pkey"`)

	_, _, err := svc.CreateTransaction(context.Background(), validInput(repo))
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT when losing the insert race, got %v", err)
	}
}

func TestCreateTransactionUsesShopDefaultRate(t *testing.T) {
	repo := newFakeRepository()
	repo.shop.DefaultCommissionRate = decimal.NewFromInt(10)
	svc, _ := NewService(repo, &fakeLedger{}, fakeTxRunner{}, testConfig(), nil)

	got, _, err := svc.CreateTransaction(context.Background(), validInput(repo))
	if err != nil {
		t.Fatalf("CreateTransaction error: %v", err)
	}
	if !got.CommissionRate.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("rate = %s, want shop default 10", got.CommissionRate)
	}
	if !got.CommissionAmount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("commission = %s, want 500", got.CommissionAmount)
	}
}

func TestCreateTransactionExplicitRateWins(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo, &fakeLedger{}, fakeTxRunner{}, testConfig(), nil)

	rate := decimal.NewFromInt(2)
	input := validInput(repo)
	input.CommissionRate = &rate

	got, _, err := svc.CreateTransaction(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateTransaction error: %v", err)
	}
	if !got.CommissionRate.Equal(rate) {
		t.Fatalf("rate = %s, want explicit 2", got.CommissionRate)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo, &fakeLedger{}, fakeTxRunner{}, testConfig(), nil)

	sameParty := uuid.New()

	tests := []struct {
		name   string
		mutate func(*CreateTransactionInput)
	}{
		{"missing key", func(in *CreateTransactionInput) { in.IdempotencyKey = "  " }},
		{"missing shop", func(in *CreateTransactionInput) { in.ShopID = uuid.Nil }},
		{"missing farmer", func(in *CreateTransactionInput) { in.FarmerID = uuid.Nil }},
		{"missing buyer", func(in *CreateTransactionInput) { in.BuyerID = uuid.Nil }},
		{"same farmer and buyer", func(in *CreateTransactionInput) { in.FarmerID = sameParty; in.BuyerID = sameParty }},
		{"missing product", func(in *CreateTransactionInput) { in.ProductID = uuid.Nil }},
		{"zero quantity", func(in *CreateTransactionInput) { in.Quantity = decimal.Zero }},
		{"negative price", func(in *CreateTransactionInput) { in.UnitPrice = decimal.NewFromInt(-1) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput(repo)
			tc.mutate(&input)
			if _, _, err := svc.CreateTransaction(context.Background(), input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestPurgeStaleIdempotencyKeys(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo, &fakeLedger{}, fakeTxRunner{}, testConfig(), nil)

	bound := uuid.New()
	repo.keys["stale-unbound"] = &models.TransactionIdempotencyKey{
		Key:       "stale-unbound",
		CreatedAt: time.Now().Add(-30 * 24 * time.Hour),
	}
	repo.keys["stale-bound"] = &models.TransactionIdempotencyKey{
		Key:           "stale-bound",
		TransactionID: &bound,
		CreatedAt:     time.Now().Add(-30 * 24 * time.Hour),
	}
	repo.keys["fresh-unbound"] = &models.TransactionIdempotencyKey{
		Key:       "fresh-unbound",
		CreatedAt: time.Now(),
	}

	purged, err := svc.PurgeStaleIdempotencyKeys(context.Background())
	if err != nil {
		t.Fatalf("purge error: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
	if _, ok := repo.keys["stale-bound"]; !ok {
		t.Fatal("bound keys must never be purged")
	}
	if _, ok := repo.keys["fresh-unbound"]; !ok {
		t.Fatal("fresh keys must never be purged")
	}
}
