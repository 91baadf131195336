package balances

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
)

// Pair identifies one (user, shop) relationship with settlement history.
type Pair struct {
	UserID uuid.UUID `gorm:"column:user_id"`
	ShopID uuid.UUID `gorm:"column:shop_id"`
}

// Repository manages the cached balance rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, userID, shopID uuid.UUID) (*models.UserBalance, error)
	Create(ctx context.Context, balance *models.UserBalance) error
	UpdateWithVersion(ctx context.Context, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) (int64, error)
	ListPairs(ctx context.Context, limit, offset int) ([]Pair, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a balances repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, userID, shopID uuid.UUID) (*models.UserBalance, error) {
	var balance models.UserBalance
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND shop_id = ?", userID, shopID).
		First(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repository) Create(ctx context.Context, balance *models.UserBalance) error {
	return r.db.WithContext(ctx).Create(balance).Error
}

// UpdateWithVersion bumps the cached balance only if nobody else updated it
// since it was read. Zero rows affected means the version went stale.
func (r *repository) UpdateWithVersion(ctx context.Context, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.UserBalance{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"balance":      balance,
			"version":      expectedVersion + 1,
			"last_updated": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// ListPairs pages through every (user, shop) pair that appears in the
// settlement history, whether as farmer, buyer, or expense holder.
func (r *repository) ListPairs(ctx context.Context, limit, offset int) ([]Pair, error) {
	var pairs []Pair
	err := r.db.WithContext(ctx).Raw(`
		SELECT user_id, shop_id FROM (
			SELECT farmer_id AS user_id, shop_id FROM transactions
			UNION
			SELECT buyer_id AS user_id, shop_id FROM transactions
			UNION
			SELECT user_id, shop_id FROM expenses
		) pairs
		ORDER BY user_id, shop_id
		LIMIT ? OFFSET ?`, limit, offset).Scan(&pairs).Error
	if err != nil {
		return nil, err
	}
	return pairs, nil
}
