package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paygate/pkg/db/pagination"
	"gorm.io/gorm"
)

// ProcessPaymentCommand is an authenticated request to charge a card.
type ProcessPaymentCommand struct {
	MerchantID     uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	CardNumber     string
	CardHolderName string
	ExpiryMonth    int
	ExpiryYear     int
	CVV            string
	IdempotencyKey *string
}

type PaymentView struct {
	PaymentID        uuid.UUID       `json:"paymentId"`
	Status           Status          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	CardLast4        string          `json:"cardLast4"`
	CardBrand        CardBrand       `json:"cardBrand"`
	MaskedCardNumber string          `json:"maskedCardNumber"`
	CreatedAt        time.Time       `json:"createdAt"`
	ProcessedAt      *time.Time      `json:"processedAt,omitempty"`
	Reference        *string         `json:"reference,omitempty"`
	IdempotencyKey   *string         `json:"idempotencyKey,omitempty"`
}

// StatusView is the cached status projection. MerchantID is kept so cache hits
// can be ownership-checked.
type StatusView struct {
	PaymentID        uuid.UUID       `json:"paymentId"`
	MerchantID       uuid.UUID       `json:"merchantId"`
	Status           Status          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	CardLast4        string          `json:"cardLast4"`
	CardBrand        CardBrand       `json:"cardBrand"`
	MaskedCardNumber string          `json:"maskedCardNumber"`
	CreatedAt        time.Time       `json:"createdAt"`
	ProcessedAt      *time.Time      `json:"processedAt,omitempty"`
	Reference        *string         `json:"reference,omitempty"`
}

type ListResult struct {
	Payments []PaymentView       `json:"data"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	ProcessPayment(ctx context.Context, cmd ProcessPaymentCommand) (*PaymentView, error)
	GetPaymentStatus(ctx context.Context, paymentID, merchantID uuid.UUID) (*StatusView, error)
	ListPayments(ctx context.Context, merchantID uuid.UUID, page pagination.Pagination) (*ListResult, error)
	PublishPending(ctx context.Context, limit int) (int, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Payment, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, merchantID uuid.UUID, key string) (*Payment, error)
	ListByMerchant(ctx context.Context, db *gorm.DB, merchantID uuid.UUID, after *pagination.Cursor, limit int) ([]*Payment, error)

	InsertEvents(ctx context.Context, db *gorm.DB, records []EventRecord) error
	ListUnpublishedEvents(ctx context.Context, db *gorm.DB, limit int) ([]EventRecord, error)
	MarkEventsPublished(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) error
}

// StatusCache is a best-effort store of terminal payment status projections.
type StatusCache interface {
	Get(ctx context.Context, paymentID uuid.UUID) (*StatusView, bool, error)
	Set(ctx context.Context, view StatusView) error
}

// IdempotencyLocker serialises concurrent submissions sharing an idempotency
// key. release is always safe to call.
type IdempotencyLocker interface {
	Acquire(ctx context.Context, merchantID uuid.UUID, key string) (release func(), acquired bool, err error)
}

// EventPublisher delivers committed domain events to downstream consumers.
type EventPublisher interface {
	Name() string
	Publish(ctx context.Context, event Event) error
}

// NewPaymentView projects a payment for the caller.
func NewPaymentView(p *Payment) PaymentView {
	s := p.Snapshot()
	return PaymentView{
		PaymentID:        s.ID,
		Status:           s.Status,
		Amount:           s.Amount.Amount(),
		Currency:         s.Amount.Currency(),
		CardLast4:        s.Card.LastFour(),
		CardBrand:        s.Card.Brand(),
		MaskedCardNumber: s.Card.MaskedNumber(),
		CreatedAt:        s.CreatedAt,
		ProcessedAt:      s.ProcessedAt,
		Reference:        s.AcquirerReference,
		IdempotencyKey:   s.IdempotencyKey,
	}
}

func NewStatusView(p *Payment) StatusView {
	s := p.Snapshot()
	return StatusView{
		PaymentID:        s.ID,
		MerchantID:       s.MerchantID,
		Status:           s.Status,
		Amount:           s.Amount.Amount(),
		Currency:         s.Amount.Currency(),
		CardLast4:        s.Card.LastFour(),
		CardBrand:        s.Card.Brand(),
		MaskedCardNumber: s.Card.MaskedNumber(),
		CreatedAt:        s.CreatedAt,
		ProcessedAt:      s.ProcessedAt,
		Reference:        s.AcquirerReference,
	}
}
