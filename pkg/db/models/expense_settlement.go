package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenseSettlement records that a payment consumed part of an expense.
// An expense is settled when its settlements sum to its amount.
type ExpenseSettlement struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ExpenseID uuid.UUID       `gorm:"column:expense_id;type:uuid;not null;index"`
	PaymentID uuid.UUID       `gorm:"column:payment_id;type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
