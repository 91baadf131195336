package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a produce item a shop trades in.
type Product struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID    uuid.UUID `gorm:"column:shop_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Unit      string    `gorm:"column:unit;not null;default:'kg'"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
