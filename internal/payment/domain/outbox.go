package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is a domain event persisted in the same transaction as its payment.
type EventRecord struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	PaymentID   string         `json:"payment_id" gorm:"type:varchar(36);not null;index"`
	MerchantID  string         `json:"merchant_id" gorm:"type:varchar(36);not null"`
	EventType   string         `json:"event_type" gorm:"type:varchar(40);not null"`
	Payload     datatypes.JSON `json:"payload" gorm:"not null"`
	OccurredAt  time.Time      `json:"occurred_at" gorm:"not null"`
	PublishedAt *time.Time     `json:"published_at" gorm:"index"`
}

func (EventRecord) TableName() string { return "payment_events" }
