package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentAllocation links a payment to the transaction it pays down.
// Append-only; the unique (payment_id, transaction_id) pair is the safety net
// against double allocation under concurrent retries.
type PaymentAllocation struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID       uuid.UUID       `gorm:"column:payment_id;type:uuid;not null;uniqueIndex:ux_payment_allocations_payment_tx"`
	TransactionID   uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex:ux_payment_allocations_payment_tx;index"`
	AllocatedAmount decimal.Decimal `gorm:"column:allocated_amount;type:numeric(12,2);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}
