package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionIdempotencyKey guarantees at-most-one transaction per logical
// client request. The row is inserted before the transaction; the unique key
// picks a single winner under a race, and TransactionID stays null until the
// transaction commits.
type TransactionIdempotencyKey struct {
	Key           string          `gorm:"column:key;primaryKey"`
	BuyerID       uuid.UUID       `gorm:"column:buyer_id;type:uuid;not null"`
	FarmerID      uuid.UUID       `gorm:"column:farmer_id;type:uuid;not null"`
	ShopID        uuid.UUID       `gorm:"column:shop_id;type:uuid;not null"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	TransactionID *uuid.UUID      `gorm:"column:transaction_id;type:uuid"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides gorm's default pluralization.
func (TransactionIdempotencyKey) TableName() string {
	return "transaction_idempotency_keys"
}
