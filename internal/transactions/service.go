package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilinkhq/mandi-backend/internal/commission"
	"github.com/agrilinkhq/mandi-backend/internal/ledger"
	"github.com/agrilinkhq/mandi-backend/pkg/config"
	"github.com/agrilinkhq/mandi-backend/pkg/db"
	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
	"github.com/agrilinkhq/mandi-backend/pkg/logger"
	"github.com/agrilinkhq/mandi-backend/pkg/pagination"
)

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the transaction operations exposed to the API layer.
type Service interface {
	CreateTransaction(ctx context.Context, input CreateTransactionInput) (*models.Transaction, bool, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error)
	PurgeStaleIdempotencyKeys(ctx context.Context) (int64, error)
}

// CreateTransactionInput carries everything needed to record a sale. When
// CommissionRate is nil the shop's default rate applies.
type CreateTransactionInput struct {
	IdempotencyKey string
	ShopID         uuid.UUID
	FarmerID       uuid.UUID
	BuyerID        uuid.UUID
	ProductID      uuid.UUID
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	CommissionRate *decimal.Decimal
}

type service struct {
	repo   Repository
	ledger ledger.Service
	tx     TxRunner
	cfg    config.SettlementConfig
	logg   *logger.Logger
}

// NewService wires a transactions service with its dependencies.
func NewService(repo Repository, ledgerSvc ledger.Service, tx TxRunner, cfg config.SettlementConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, ledger: ledgerSvc, tx: tx, cfg: cfg, logg: logg}, nil
}

// CreateTransaction records a sale at most once per idempotency key. The key
// row is inserted before the transaction itself so a concurrent duplicate
// loses on the primary key instead of creating a second sale. The returned
// bool is false when an already-committed transaction was replayed.
func (s *service) CreateTransaction(ctx context.Context, input CreateTransactionInput) (*models.Transaction, bool, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, false, err
	}

	key := strings.TrimSpace(input.IdempotencyKey)

	existing, err := s.repo.FindIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		return s.replay(ctx, existing)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// first sighting of this key, fall through to claim it
	default:
		return nil, false, err
	}

	rate, err := s.resolveRate(ctx, input)
	if err != nil {
		return nil, false, err
	}

	breakdown, err := commission.Calculate(input.Quantity, input.UnitPrice, rate)
	if err != nil {
		return nil, false, err
	}

	claim := &models.TransactionIdempotencyKey{
		Key:         key,
		BuyerID:     input.BuyerID,
		FarmerID:    input.FarmerID,
		ShopID:      input.ShopID,
		TotalAmount: breakdown.TotalAmount,
	}
	if err := s.repo.CreateIdempotencyKey(ctx, claim); err != nil {
		if db.IsUniqueViolation(err, "") {
			// lost the race; the winner either committed or is in flight
			if winner, findErr := s.repo.FindIdempotencyKey(ctx, key); findErr == nil {
				return s.replay(ctx, winner)
			}
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "duplicate transaction request")
		}
		return nil, false, err
	}

	transaction := &models.Transaction{
		ShopID:           input.ShopID,
		FarmerID:         input.FarmerID,
		BuyerID:          input.BuyerID,
		ProductID:        input.ProductID,
		Quantity:         input.Quantity,
		UnitPrice:        input.UnitPrice.Round(2),
		CommissionRate:   rate,
		TotalAmount:      breakdown.TotalAmount,
		CommissionAmount: breakdown.CommissionAmount,
		FarmerEarning:    breakdown.FarmerEarning,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledgerSvc := s.ledger.WithTx(tx)

		if err := repo.Create(ctx, transaction); err != nil {
			return err
		}
		if err := repo.BindIdempotencyKey(ctx, key, transaction.ID); err != nil {
			return err
		}

		if _, err := ledgerSvc.RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:        transaction.FarmerID,
			ShopID:        transaction.ShopID,
			Direction:     enums.LedgerDirectionCredit,
			Amount:        transaction.FarmerEarning,
			Type:          enums.LedgerEntryTypeTransactionCreated,
			ReferenceType: enums.ReferenceTypeTransaction,
			ReferenceID:   transaction.ID,
		}); err != nil {
			return err
		}
		_, err := ledgerSvc.RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:        transaction.BuyerID,
			ShopID:        transaction.ShopID,
			Direction:     enums.LedgerDirectionDebit,
			Amount:        transaction.TotalAmount,
			Type:          enums.LedgerEntryTypeTransactionCreated,
			ReferenceType: enums.ReferenceTypeTransaction,
			ReferenceID:   transaction.ID,
		})
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"transaction_id": transaction.ID,
			"shop_id":        transaction.ShopID,
			"total_amount":   transaction.TotalAmount,
			"commission":     transaction.CommissionAmount,
		})
		s.logg.Info(logCtx, "transaction recorded")
	}
	return transaction, true, nil
}

// replay resolves an already-claimed idempotency key. A bound key returns the
// committed transaction; an unbound key means the original request is still
// in flight (or died before committing) and the caller must retry later.
func (s *service) replay(ctx context.Context, record *models.TransactionIdempotencyKey) (*models.Transaction, bool, error) {
	if record.TransactionID == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeConflict, "transaction request already in flight")
	}
	transaction, err := s.repo.FindByID(ctx, *record.TransactionID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeIntegrity, err,
			"idempotency key bound to missing transaction")
	}
	return transaction, false, nil
}

func (s *service) validateCreate(input CreateTransactionInput) error {
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	if input.ShopID == uuid.Nil || input.FarmerID == uuid.Nil || input.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shop, farmer and buyer ids are required")
	}
	if input.FarmerID == input.BuyerID {
		return pkgerrors.New(pkgerrors.CodeValidation, "farmer and buyer must be different users")
	}
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return nil
}

// resolveRate picks the commission rate: explicit input first, then the
// shop's default, then the service-wide default.
func (s *service) resolveRate(ctx context.Context, input CreateTransactionInput) (decimal.Decimal, error) {
	if input.CommissionRate != nil {
		return *input.CommissionRate, nil
	}

	shop, err := s.repo.FindShop(ctx, input.ShopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return decimal.Zero, err
	}
	if !shop.DefaultCommissionRate.IsZero() {
		return shop.DefaultCommissionRate, nil
	}

	rate, err := decimal.NewFromString(s.cfg.DefaultCommissionRate)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid default commission rate")
	}
	return rate, nil
}

func (s *service) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	transaction, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "transaction not found")
		}
		return nil, err
	}
	return transaction, nil
}

func (s *service) ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error) {
	if shopID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByShop(ctx, shopID, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

// PurgeStaleIdempotencyKeys drops unbound keys older than the configured TTL.
func (s *service) PurgeStaleIdempotencyKeys(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.IdempotencyRecordTTL)
	purged, err := s.repo.PurgeUnboundKeysBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 && s.logg != nil {
		logCtx := s.logg.WithField(ctx, "purged", purged)
		s.logg.Info(logCtx, "purged stale idempotency keys")
	}
	return purged, nil
}
