package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRecord is the row shape of the payments table.
type PaymentRecord struct {
	ID                string          `gorm:"primaryKey;type:varchar(36)"`
	MerchantID        string          `gorm:"type:varchar(36);not null;index:ix_payments_merchant_created,priority:1;uniqueIndex:ux_payments_merchant_idempotency_key,priority:1"`
	Amount            decimal.Decimal `gorm:"type:numeric(19,4);not null"`
	Currency          string          `gorm:"type:varchar(3);not null"`
	CardHolderName    string          `gorm:"type:varchar(100);not null"`
	CardNumberHash    string          `gorm:"type:varchar(64);not null"`
	CardLast4         string          `gorm:"column:card_last4;type:varchar(4);not null"`
	CardBrand         string          `gorm:"type:varchar(20);not null"`
	ExpiryMonth       int             `gorm:"not null"`
	ExpiryYear        int             `gorm:"not null"`
	Status            string          `gorm:"type:varchar(20);not null"`
	CreatedAt         time.Time       `gorm:"not null;index:ix_payments_merchant_created,priority:2"`
	ProcessedAt       *time.Time
	AcquirerReference *string         `gorm:"type:varchar(100)"`
	IdempotencyKey    *string         `gorm:"type:varchar(100);uniqueIndex:ux_payments_merchant_idempotency_key,priority:2"`
}

func (PaymentRecord) TableName() string { return "payments" }

// ToRecord flattens a payment for storage.
func ToRecord(p *Payment) PaymentRecord {
	s := p.Snapshot()
	return PaymentRecord{
		ID:                s.ID.String(),
		MerchantID:        s.MerchantID.String(),
		Amount:            s.Amount.Amount(),
		Currency:          s.Amount.Currency(),
		CardHolderName:    s.Card.HolderName(),
		CardNumberHash:    s.Card.NumberHash(),
		CardLast4:         s.Card.LastFour(),
		CardBrand:         string(s.Card.Brand()),
		ExpiryMonth:       s.Card.ExpiryMonth(),
		ExpiryYear:        s.Card.ExpiryYear(),
		Status:            string(s.Status),
		CreatedAt:         s.CreatedAt,
		ProcessedAt:       s.ProcessedAt,
		AcquirerReference: s.AcquirerReference,
		IdempotencyKey:    s.IdempotencyKey,
	}
}

// FromRecord rehydrates a stored row.
func FromRecord(r PaymentRecord) (*Payment, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	merchantID, err := uuid.Parse(r.MerchantID)
	if err != nil {
		return nil, err
	}

	var processedAt *time.Time
	if r.ProcessedAt != nil {
		t := r.ProcessedAt.UTC()
		processedAt = &t
	}

	return Restore(Snapshot{
		ID:                id,
		MerchantID:        merchantID,
		Amount:            RestoreMoney(r.Amount, r.Currency),
		Card:              RestoreCard(r.CardHolderName, r.CardNumberHash, r.CardLast4, r.ExpiryMonth, r.ExpiryYear, CardBrand(r.CardBrand)),
		Status:            Status(r.Status),
		CreatedAt:         r.CreatedAt.UTC(),
		ProcessedAt:       processedAt,
		AcquirerReference: r.AcquirerReference,
		IdempotencyKey:    r.IdempotencyKey,
	}), nil
}
