package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilinkhq/mandi-backend/internal/expenses"
	"github.com/agrilinkhq/mandi-backend/internal/ledger"
	"github.com/agrilinkhq/mandi-backend/internal/transactions"
	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
	"github.com/agrilinkhq/mandi-backend/pkg/logger"
	"github.com/agrilinkhq/mandi-backend/pkg/metrics"
	"github.com/agrilinkhq/mandi-backend/pkg/pagination"
)

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the payment operations exposed to the API layer.
type Service interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*models.Payment, AllocationResult, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*PaymentDetail, error)
	ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.Payment, string, error)
	MarkPaymentPaid(ctx context.Context, id uuid.UUID) (*models.Payment, AllocationResult, error)
	AllocatePayment(ctx context.Context, id uuid.UUID) (*models.Payment, AllocationResult, error)
	CancelPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

// CreatePaymentInput carries the fields needed to record a money movement.
// Status defaults to paid, which triggers allocation immediately; pending
// payments allocate later via MarkPaymentPaid.
type CreatePaymentInput struct {
	ShopID         uuid.UUID
	PayerRole      enums.PartyRole
	PayeeRole      enums.PartyRole
	CounterpartyID uuid.UUID
	TransactionID  *uuid.UUID
	Amount         decimal.Decimal
	Method         enums.PaymentMethod
	Status         enums.PaymentStatus
}

// PaymentDetail is a payment with its full allocation breakdown.
type PaymentDetail struct {
	Payment     models.Payment
	Allocations []models.PaymentAllocation
	Settlements []models.ExpenseSettlement
}

type service struct {
	repo         Repository
	transactions transactions.Repository
	expenses     expenses.Repository
	ledger       ledger.Service
	tx           TxRunner
	metrics      *metrics.SettlementMetrics
	logg         *logger.Logger
}

// NewService wires a payments service with its dependencies. Metrics and
// logger may be nil.
func NewService(repo Repository, transactionsRepo transactions.Repository, expensesRepo expenses.Repository, ledgerSvc ledger.Service, tx TxRunner, m *metrics.SettlementMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if transactionsRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
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
		expenses:     expensesRepo,
		ledger:       ledgerSvc,
		tx:           tx,
		metrics:      m,
		logg:         logg,
	}, nil
}

func (s *service) allocatorFor(tx *gorm.DB) *allocator {
	return &allocator{
		payments:     s.repo.WithTx(tx),
		transactions: s.transactions.WithTx(tx),
		expenses:     s.expenses.WithTx(tx),
		ledger:       s.ledger.WithTx(tx),
		metrics:      s.metrics,
	}
}

// CreatePayment records a payment and, when it is already paid, allocates it
// against the counterparty's open items in the same database transaction.
func (s *service) CreatePayment(ctx context.Context, input CreatePaymentInput) (*models.Payment, AllocationResult, error) {
	var result AllocationResult
	if err := s.validateCreate(input); err != nil {
		return nil, result, err
	}

	status := input.Status
	if status == "" {
		status = enums.PaymentStatusPaid
	}
	method := input.Method
	if method == "" {
		method = enums.PaymentMethodCash
	}

	counterparty := input.CounterpartyID
	payment := &models.Payment{
		ShopID:          input.ShopID,
		PayerRole:       input.PayerRole,
		PayeeRole:       input.PayeeRole,
		CounterpartyID:  &counterparty,
		TransactionID:   input.TransactionID,
		Amount:          input.Amount.Round(2),
		AllocatedAmount: decimal.Zero,
		Method:          method,
		Status:          status,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return err
		}
		if payment.Status != enums.PaymentStatusPaid {
			return nil
		}
		var err error
		result, err = s.allocatorFor(tx).apply(ctx, payment)
		return err
	})
	if err != nil {
		return nil, AllocationResult{}, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"payment_id":  payment.ID,
			"shop_id":     payment.ShopID,
			"amount":      payment.Amount,
			"direction":   fmt.Sprintf("%s_to_%s", payment.PayerRole, payment.PayeeRole),
			"unallocated": result.Unallocated,
		})
		s.logg.Info(logCtx, "payment recorded")
	}
	return payment, result, nil
}

func (s *service) validateCreate(input CreatePaymentInput) error {
	if input.ShopID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	if !input.PayerRole.IsValid() || !input.PayeeRole.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payer and payee roles must be valid")
	}
	if input.PayerRole == input.PayeeRole {
		return pkgerrors.New(pkgerrors.CodeValidation, "payer and payee roles must differ")
	}
	if input.PayerRole != enums.PartyRoleShop && input.PayeeRole != enums.PartyRoleShop {
		return pkgerrors.New(pkgerrors.CodeValidation, "one side of a payment must be the shop")
	}
	if input.CounterpartyID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInsufficientContext, "counterparty id is required")
	}
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("payment amount must be positive, got %s", input.Amount))
	}
	if input.Method != "" && !input.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.Method))
	}
	if input.Status != "" && input.Status != enums.PaymentStatusPending && input.Status != enums.PaymentStatusPaid {
		return pkgerrors.New(pkgerrors.CodeValidation, "new payments must be pending or paid")
	}
	return nil
}

func (s *service) GetPayment(ctx context.Context, id uuid.UUID) (*PaymentDetail, error) {
	payment, err := s.findPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	allocations, err := s.repo.ListAllocations(ctx, id)
	if err != nil {
		return nil, err
	}
	settlements, err := s.expenses.ListSettlementsByPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	return &PaymentDetail{
		Payment:     *payment,
		Allocations: allocations,
		Settlements: settlements,
	}, nil
}

func (s *service) ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.Payment, string, error) {
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

// MarkPaymentPaid flips a pending payment to paid and allocates it.
func (s *service) MarkPaymentPaid(ctx context.Context, id uuid.UUID) (*models.Payment, AllocationResult, error) {
	var result AllocationResult

	payment, err := s.findPayment(ctx, id)
	if err != nil {
		return nil, result, err
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, result, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("payment is %s, only pending payments can be marked paid", payment.Status))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpdateStatus(ctx, id, enums.PaymentStatusPaid, nil); err != nil {
			return err
		}
		payment.Status = enums.PaymentStatusPaid
		var err error
		result, err = s.allocatorFor(tx).apply(ctx, payment)
		return err
	})
	if err != nil {
		return nil, AllocationResult{}, err
	}
	return payment, result, nil
}

// AllocatePayment re-runs allocation for a paid payment. Safe to call any
// number of times; already matched amounts are never matched again.
func (s *service) AllocatePayment(ctx context.Context, id uuid.UUID) (*models.Payment, AllocationResult, error) {
	var result AllocationResult

	payment, err := s.findPayment(ctx, id)
	if err != nil {
		return nil, result, err
	}
	if payment.Status != enums.PaymentStatusPaid {
		return nil, result, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("payment is %s, only paid payments allocate", payment.Status))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.allocatorFor(tx).apply(ctx, payment)
		return err
	})
	if err != nil {
		return nil, AllocationResult{}, err
	}
	return payment, result, nil
}

// CancelPayment soft-cancels a payment that has not been matched to anything.
// Allocated payments are immutable history and cannot be cancelled.
func (s *service) CancelPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.findPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case enums.PaymentStatusCancelled:
		return payment, nil
	case enums.PaymentStatusPending, enums.PaymentStatusPaid, enums.PaymentStatusFailed:
		// fall through to the allocation check
	default:
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("payment in status %s cannot be cancelled", payment.Status))
	}

	allocated, err := s.repo.SumAllocations(ctx, id)
	if err != nil {
		return nil, err
	}
	settled, err := s.expenses.SumSettlementsByPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if allocated.IsPositive() || settled.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			"payment has allocations and cannot be cancelled")
	}

	now := time.Now()
	if err := s.repo.UpdateStatus(ctx, id, enums.PaymentStatusCancelled, &now); err != nil {
		return nil, err
	}
	payment.Status = enums.PaymentStatusCancelled
	payment.CancelledAt = &now

	if s.logg != nil {
		logCtx := s.logg.WithField(ctx, "payment_id", payment.ID)
		s.logg.Info(logCtx, "payment cancelled")
	}
	return payment, nil
}

func (s *service) findPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payment not found")
		}
		return nil, err
	}
	return payment, nil
}
