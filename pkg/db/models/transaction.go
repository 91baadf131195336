package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction records one sale mediated by a shop. The monetary columns are
// immutable once written: total = quantity * unit_price, commission is the
// shop's cut, farmer earning is the remainder, so
// total_amount == commission_amount + farmer_earning always holds.
type Transaction struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID           uuid.UUID       `gorm:"column:shop_id;type:uuid;not null;index"`
	FarmerID         uuid.UUID       `gorm:"column:farmer_id;type:uuid;not null;index"`
	BuyerID          uuid.UUID       `gorm:"column:buyer_id;type:uuid;not null;index"`
	ProductID        uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity         decimal.Decimal `gorm:"column:quantity;type:numeric(12,3);not null"`
	UnitPrice        decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CommissionRate   decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2);not null"`
	TotalAmount      decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CommissionAmount decimal.Decimal `gorm:"column:commission_amount;type:numeric(12,2);not null"`
	FarmerEarning    decimal.Decimal `gorm:"column:farmer_earning;type:numeric(12,2);not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}
