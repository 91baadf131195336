package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserBalance caches the recomputed balance for a (user, shop) pair. It is
// never authoritative; the version column detects stale concurrent writes.
type UserBalance struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_user_balances_user_shop"`
	ShopID      uuid.UUID       `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:ux_user_balances_user_shop"`
	Balance     decimal.Decimal `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	Version     int64           `gorm:"column:version;not null;default:0"`
	LastUpdated time.Time       `gorm:"column:last_updated;autoUpdateTime"`
}
