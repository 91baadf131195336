package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
	"github.com/agrilinkhq/mandi-backend/pkg/pagination"
)

// Repository manages persistence for payments and their allocations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListByShop(ctx context.Context, shopID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, cancelledAt *time.Time) error
	UpdateAllocatedAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error

	CreateAllocation(ctx context.Context, allocation *models.PaymentAllocation) error
	ListAllocations(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentAllocation, error)
	SumAllocations(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
	AllocatedByTransaction(ctx context.Context, transactionIDs []uuid.UUID, payerRole, payeeRole enums.PartyRole) (map[uuid.UUID]decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByShop(ctx context.Context, shopID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Payment, error) {
	query := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var out []models.Payment
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, cancelledAt *time.Time) error {
	updates := map[string]any{"status": status}
	if cancelledAt != nil {
		updates["cancelled_at"] = cancelledAt
	}
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateAllocatedAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Update("allocated_amount", amount).Error
}

func (r *repository) CreateAllocation(ctx context.Context, allocation *models.PaymentAllocation) error {
	return r.db.WithContext(ctx).Create(allocation).Error
}

func (r *repository) ListAllocations(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentAllocation, error) {
	var out []models.PaymentAllocation
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) SumAllocations(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.WithContext(ctx).
		Table("payment_allocations").
		Select("COALESCE(SUM(allocated_amount), 0) AS total").
		Where("payment_id = ?", paymentID).
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

// AllocatedByTransaction sums, per transaction, the allocations coming from
// paid payments flowing in the given direction.
func (r *repository) AllocatedByTransaction(ctx context.Context, transactionIDs []uuid.UUID, payerRole, payeeRole enums.PartyRole) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(transactionIDs))
	if len(transactionIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		TransactionID uuid.UUID       `gorm:"column:transaction_id"`
		Total         decimal.Decimal `gorm:"column:total"`
	}
	err := r.db.WithContext(ctx).
		Table("payment_allocations pa").
		Select("pa.transaction_id, COALESCE(SUM(pa.allocated_amount), 0) AS total").
		Joins("JOIN payments p ON p.id = pa.payment_id").
		Where("pa.transaction_id IN ?", transactionIDs).
		Where("p.payer_role = ? AND p.payee_role = ? AND p.status = ?",
			payerRole, payeeRole, enums.PaymentStatusPaid).
		Group("pa.transaction_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		out[row.TransactionID] = row.Total
	}
	return out, nil
}
