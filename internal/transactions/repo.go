package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
	"github.com/agrilinkhq/mandi-backend/pkg/pagination"
)

// Repository manages persistence for transactions and their idempotency keys.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transaction *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListByParty(ctx context.Context, userID, shopID uuid.UUID, role enums.PartyRole) ([]models.Transaction, error)
	ListByShop(ctx context.Context, shopID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Transaction, error)
	FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error)

	CreateIdempotencyKey(ctx context.Context, key *models.TransactionIdempotencyKey) error
	FindIdempotencyKey(ctx context.Context, key string) (*models.TransactionIdempotencyKey, error)
	BindIdempotencyKey(ctx context.Context, key string, transactionID uuid.UUID) error
	PurgeUnboundKeysBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transactions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&transaction).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

// ListByParty returns the user's transactions in a shop oldest-first, which is
// the order payments are applied in.
func (r *repository) ListByParty(ctx context.Context, userID, shopID uuid.UUID, role enums.PartyRole) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).Where("shop_id = ?", shopID)
	switch role {
	case enums.PartyRoleFarmer:
		query = query.Where("farmer_id = ?", userID)
	case enums.PartyRoleBuyer:
		query = query.Where("buyer_id = ?", userID)
	default:
		query = query.Where("farmer_id = ? OR buyer_id = ?", userID, userID)
	}

	var out []models.Transaction
	if err := query.Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) ListByShop(ctx context.Context, shopID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var out []models.Transaction
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *repository) CreateIdempotencyKey(ctx context.Context, key *models.TransactionIdempotencyKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

func (r *repository) FindIdempotencyKey(ctx context.Context, key string) (*models.TransactionIdempotencyKey, error) {
	var record models.TransactionIdempotencyKey
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) BindIdempotencyKey(ctx context.Context, key string, transactionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.TransactionIdempotencyKey{}).
		Where("key = ?", key).
		Update("transaction_id", transactionID).Error
}

// PurgeUnboundKeysBefore removes keys whose transaction never committed, so a
// crashed request stops blocking retries after the configured TTL.
func (r *repository) PurgeUnboundKeysBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("transaction_id IS NULL AND created_at < ?", cutoff).
		Delete(&models.TransactionIdempotencyKey{})
	return result.RowsAffected, result.Error
}
