package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilinkhq/mandi-backend/pkg/enums"
)

// Payment is a directed money movement between two party roles. A nil
// TransactionID marks a bookkeeping payment not yet tied to a specific sale;
// AllocatedAmount is the running total matched to transactions and expenses.
// Payments are never deleted, only soft-cancelled via status.
type Payment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID          uuid.UUID           `gorm:"column:shop_id;type:uuid;not null;index"`
	PayerRole       enums.PartyRole     `gorm:"column:payer_role;type:party_role;not null"`
	PayeeRole       enums.PartyRole     `gorm:"column:payee_role;type:party_role;not null"`
	CounterpartyID  *uuid.UUID          `gorm:"column:counterparty_id;type:uuid;index"`
	TransactionID   *uuid.UUID          `gorm:"column:transaction_id;type:uuid"`
	Amount          decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	AllocatedAmount decimal.Decimal     `gorm:"column:allocated_amount;type:numeric(12,2);not null;default:0"`
	Method          enums.PaymentMethod `gorm:"column:method;type:payment_method;not null;default:'cash'"`
	Status          enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
