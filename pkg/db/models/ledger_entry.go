package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilinkhq/mandi-backend/pkg/enums"
)

// LedgerEntry is the immutable fact log of balance-affecting events.
// Balances are a fold over these rows; entries are never updated or deleted.
type LedgerEntry struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index:idx_ledger_entries_user_shop"`
	ShopID        uuid.UUID             `gorm:"column:shop_id;type:uuid;not null;index:idx_ledger_entries_user_shop"`
	Direction     enums.LedgerDirection `gorm:"column:direction;type:ledger_direction;not null"`
	Amount        decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Type          enums.LedgerEntryType `gorm:"column:type;type:ledger_entry_type;not null"`
	ReferenceType enums.ReferenceType   `gorm:"column:reference_type;type:reference_type;not null"`
	ReferenceID   uuid.UUID             `gorm:"column:reference_id;type:uuid;not null;index"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}
