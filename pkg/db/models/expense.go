package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilinkhq/mandi-backend/pkg/enums"
)

// Expense is a debt the shop owes a user independent of any sale, consumed
// FIFO by later shop-to-user payments before those payments touch
// transaction earnings.
type Expense struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	ShopID      uuid.UUID           `gorm:"column:shop_id;type:uuid;not null;index"`
	Amount      decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Description *string             `gorm:"column:description"`
	Status      enums.ExpenseStatus `gorm:"column:status;type:expense_status;not null;default:'pending'"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
