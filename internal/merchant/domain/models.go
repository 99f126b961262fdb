package domain

import (
	"time"

	"github.com/google/uuid"
)

// Merchant is an account allowed to submit payments. Only the bcrypt hash of
// the API secret is stored.
type Merchant struct {
	ID            uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	Name          string    `gorm:"type:varchar(100);not null"`
	APIKey        string    `gorm:"column:api_key;type:varchar(64);not null;uniqueIndex:ux_merchants_api_key"`
	APISecretHash string    `gorm:"column:api_secret_hash;type:varchar(100);not null"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (Merchant) TableName() string { return "merchants" }
