package expenses

import (
	"context"

	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository manages persistence for expenses and their settlements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, expense *models.Expense) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Expense, error)
	ListPendingFIFO(ctx context.Context, userID, shopID uuid.UUID) ([]models.Expense, error)
	SettledAmounts(ctx context.Context, expenseIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	CreateSettlement(ctx context.Context, settlement *models.ExpenseSettlement) error
	MarkSettled(ctx context.Context, expenseID uuid.UUID) error
	SumSettlementsByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
	ListSettlementsByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.ExpenseSettlement, error)
	PendingRemainderTotal(ctx context.Context, userID, shopID uuid.UUID) (decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an expenses repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, expense *models.Expense) error {
	return r.db.WithContext(ctx).Create(expense).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	var expense models.Expense
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&expense).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

// ListPendingFIFO returns unsettled expenses oldest-first. The id tie-break
// keeps the order stable when two expenses share a created_at, which the
// allocator depends on for idempotent re-runs.
func (r *repository) ListPendingFIFO(ctx context.Context, userID, shopID uuid.UUID) ([]models.Expense, error) {
	var out []models.Expense
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND shop_id = ? AND status = ?", userID, shopID, enums.ExpenseStatusPending).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) SettledAmounts(ctx context.Context, expenseIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(expenseIDs))
	if len(expenseIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ExpenseID uuid.UUID       `gorm:"column:expense_id"`
		Total     decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.WithContext(ctx).
		Table("expense_settlements").
		Select("expense_id, COALESCE(SUM(amount), 0) AS total").
		Where("expense_id IN ?", expenseIDs).
		Group("expense_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		out[row.ExpenseID] = row.Total
	}
	return out, nil
}

func (r *repository) CreateSettlement(ctx context.Context, settlement *models.ExpenseSettlement) error {
	return r.db.WithContext(ctx).Create(settlement).Error
}

func (r *repository) MarkSettled(ctx context.Context, expenseID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Expense{}).
		Where("id = ?", expenseID).
		Update("status", enums.ExpenseStatusSettled).Error
}

func (r *repository) SumSettlementsByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.WithContext(ctx).
		Table("expense_settlements").
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("payment_id = ?", paymentID).
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (r *repository) ListSettlementsByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.ExpenseSettlement, error) {
	var out []models.ExpenseSettlement
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// PendingRemainderTotal sums the unconsumed portion of every pending expense
// for the user/shop pair.
func (r *repository) PendingRemainderTotal(ctx context.Context, userID, shopID uuid.UUID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	err := r.db.WithContext(ctx).
		Table("expenses e").
		Select(`COALESCE(SUM(e.amount - COALESCE((
			SELECT SUM(es.amount) FROM expense_settlements es WHERE es.expense_id = e.id
		), 0)), 0) AS total`).
		Where("e.user_id = ? AND e.shop_id = ? AND e.status = ?", userID, shopID, enums.ExpenseStatusPending).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}
