package expenses

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilinkhq/mandi-backend/internal/ledger"
	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
	"github.com/agrilinkhq/mandi-backend/pkg/logger"
)

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the expense operations exposed to the API layer.
type Service interface {
	CreateExpense(ctx context.Context, input CreateExpenseInput) (*models.Expense, error)
	GetExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error)
	PendingFor(ctx context.Context, userID, shopID uuid.UUID) ([]PendingExpense, error)
	SettlementsForPayment(ctx context.Context, paymentID uuid.UUID) ([]models.ExpenseSettlement, error)
}

// CreateExpenseInput carries the fields needed to record a new expense.
type CreateExpenseInput struct {
	UserID      uuid.UUID
	ShopID      uuid.UUID
	Amount      decimal.Decimal
	Description *string
}

// PendingExpense pairs a pending expense with how much of it payments have
// already consumed.
type PendingExpense struct {
	Expense   models.Expense
	Settled   decimal.Decimal
	Remaining decimal.Decimal
}

type service struct {
	repo   Repository
	ledger ledger.Service
	tx     TxRunner
	logg   *logger.Logger
}

// NewService wires an expense service with its dependencies.
func NewService(repo Repository, ledgerSvc ledger.Service, tx TxRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("expenses repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, ledger: ledgerSvc, tx: tx, logg: logg}, nil
}

// CreateExpense records a new pending expense together with its ledger entry.
func (s *service) CreateExpense(ctx context.Context, input CreateExpenseInput) (*models.Expense, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.ShopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("expense amount must be positive, got %s", input.Amount))
	}

	amount := input.Amount.Round(2)
	expense := &models.Expense{
		UserID:      input.UserID,
		ShopID:      input.ShopID,
		Amount:      amount,
		Description: input.Description,
		Status:      enums.ExpenseStatusPending,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, expense); err != nil {
			return err
		}
		_, err := s.ledger.WithTx(tx).RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:        expense.UserID,
			ShopID:        expense.ShopID,
			Direction:     enums.LedgerDirectionCredit,
			Amount:        expense.Amount,
			Type:          enums.LedgerEntryTypeExpenseCreated,
			ReferenceType: enums.ReferenceTypeExpense,
			ReferenceID:   expense.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"expense_id": expense.ID,
			"user_id":    expense.UserID,
			"amount":     expense.Amount,
		})
		s.logg.Info(logCtx, "expense recorded")
	}
	return expense, nil
}

func (s *service) GetExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expense id is required")
	}
	expense, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "expense not found")
		}
		return nil, err
	}
	return expense, nil
}

// PendingFor returns the user's pending expenses oldest-first with the
// unconsumed remainder of each.
func (s *service) PendingFor(ctx context.Context, userID, shopID uuid.UUID) ([]PendingExpense, error) {
	if userID == uuid.Nil || shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and shop id are required")
	}

	pending, err := s.repo.ListPendingFIFO(ctx, userID, shopID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(pending))
	for _, expense := range pending {
		ids = append(ids, expense.ID)
	}
	settled, err := s.repo.SettledAmounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]PendingExpense, 0, len(pending))
	for _, expense := range pending {
		consumed := settled[expense.ID]
		out = append(out, PendingExpense{
			Expense:   expense,
			Settled:   consumed,
			Remaining: expense.Amount.Sub(consumed),
		})
	}
	return out, nil
}

func (s *service) SettlementsForPayment(ctx context.Context, paymentID uuid.UUID) ([]models.ExpenseSettlement, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	return s.repo.ListSettlementsByPayment(ctx, paymentID)
}
