package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrilinkhq/mandi-backend/pkg/enums"
)

// User is a farmer or buyer known to one or more shops.
type User struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	Phone     *string         `gorm:"column:phone"`
	Role      enums.PartyRole `gorm:"column:role;type:party_role;not null"`
	Village   *string         `gorm:"column:village"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
