package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Shop is the commission agent mediating sales between farmers and buyers.
type Shop struct {
	ID                    uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                  string          `gorm:"column:name;not null"`
	OwnerUserID           uuid.UUID       `gorm:"column:owner_user_id;type:uuid;not null"`
	Phone                 *string         `gorm:"column:phone"`
	Address               *string         `gorm:"column:address"`
	Categories            pq.StringArray  `gorm:"column:categories;type:text[];default:ARRAY[]::text[]"`
	DefaultCommissionRate decimal.Decimal `gorm:"column:default_commission_rate;type:numeric(5,2);not null;default:5"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
