package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxIdempotencyKeyLength = 100

type Status string

const (
	StatusPending    Status = "Pending"
	StatusSuccessful Status = "Successful"
	StatusFailed     Status = "Failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

// Payment is the aggregate root for one card charge. Status moves from
// Pending to exactly one of Successful or Failed and never changes again.
type Payment struct {
	id                uuid.UUID
	merchantID        uuid.UUID
	amount            Money
	card              Card
	status            Status
	createdAt         time.Time
	processedAt       *time.Time
	acquirerReference *string
	idempotencyKey    *string

	events []Event
}

// NewPayment builds a Pending payment and records EventPaymentCreated.
// A nil idempotencyKey means the caller opted out of deduplication.
func NewPayment(id, merchantID uuid.UUID, amount Money, card Card, idempotencyKey *string, now time.Time) (*Payment, error) {
	if id == uuid.Nil {
		return nil, validationFailure("paymentId", ErrInvalidPaymentID)
	}
	if merchantID == uuid.Nil {
		return nil, validationFailure("merchantId", ErrInvalidMerchantID)
	}
	if idempotencyKey != nil {
		if err := ValidateIdempotencyKey(*idempotencyKey); err != nil {
			return nil, err
		}
	}

	now = now.UTC()
	p := &Payment{
		id:             id,
		merchantID:     merchantID,
		amount:         amount,
		card:           card,
		status:         StatusPending,
		createdAt:      now,
		idempotencyKey: cloneString(idempotencyKey),
	}
	p.raise(EventPaymentCreated, now)
	return p, nil
}

// ValidateIdempotencyKey rejects blank keys and keys over MaxIdempotencyKeyLength.
func ValidateIdempotencyKey(key string) error {
	if strings.TrimSpace(key) == "" || len(key) > MaxIdempotencyKeyLength {
		return validationFailure("idempotencyKey", ErrInvalidIdempotencyKey)
	}
	return nil
}

// MarkAsSuccessful records the acquirer approval.
func (p *Payment) MarkAsSuccessful(acquirerReference string, now time.Time) error {
	if p.status.IsTerminal() {
		return ErrPaymentFinalized
	}
	if strings.TrimSpace(acquirerReference) == "" {
		return validationFailure("acquirerReference", ErrInvalidAcquirerReference)
	}

	now = now.UTC()
	p.status = StatusSuccessful
	p.processedAt = &now
	p.acquirerReference = &acquirerReference
	p.raise(EventPaymentSucceeded, now)
	return nil
}

// MarkAsFailed succeeds for any Pending payment.
func (p *Payment) MarkAsFailed(now time.Time) error {
	if p.status.IsTerminal() {
		return ErrPaymentFinalized
	}

	now = now.UTC()
	p.status = StatusFailed
	p.processedAt = &now
	p.raise(EventPaymentFailed, now)
	return nil
}

func (p *Payment) raise(t EventType, at time.Time) {
	e := Event{
		Type:       t,
		PaymentID:  p.id,
		MerchantID: p.merchantID,
		Status:     p.status,
		OccurredAt: at,
	}
	if p.acquirerReference != nil && t == EventPaymentSucceeded {
		e.AcquirerReference = *p.acquirerReference
	}
	p.events = append(p.events, e)
}

// PendingEvents returns a copy of the undispatched events.
func (p *Payment) PendingEvents() []Event {
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *Payment) ClearEvents() {
	p.events = nil
}

func (p *Payment) ID() uuid.UUID         { return p.id }
func (p *Payment) MerchantID() uuid.UUID { return p.merchantID }
func (p *Payment) Amount() Money         { return p.amount }
func (p *Payment) Card() Card            { return p.card }
func (p *Payment) Status() Status        { return p.status }
func (p *Payment) CreatedAt() time.Time  { return p.createdAt }

func (p *Payment) ProcessedAt() (time.Time, bool) {
	if p.processedAt == nil {
		return time.Time{}, false
	}
	return *p.processedAt, true
}

func (p *Payment) AcquirerReference() (string, bool) {
	if p.acquirerReference == nil {
		return "", false
	}
	return *p.acquirerReference, true
}

func (p *Payment) IdempotencyKey() (string, bool) {
	if p.idempotencyKey == nil {
		return "", false
	}
	return *p.idempotencyKey, true
}

// Snapshot is the flat persisted form of a Payment.
type Snapshot struct {
	ID                uuid.UUID
	MerchantID        uuid.UUID
	Amount            Money
	Card              Card
	Status            Status
	CreatedAt         time.Time
	ProcessedAt       *time.Time
	AcquirerReference *string
	IdempotencyKey    *string
}

func (p *Payment) Snapshot() Snapshot {
	return Snapshot{
		ID:                p.id,
		MerchantID:        p.merchantID,
		Amount:            p.amount,
		Card:              p.card,
		Status:            p.status,
		CreatedAt:         p.createdAt,
		ProcessedAt:       cloneTime(p.processedAt),
		AcquirerReference: cloneString(p.acquirerReference),
		IdempotencyKey:    cloneString(p.idempotencyKey),
	}
}

// Restore rehydrates a stored payment with an empty event buffer.
func Restore(s Snapshot) *Payment {
	return &Payment{
		id:                s.ID,
		merchantID:        s.MerchantID,
		amount:            s.Amount,
		card:              s.Card,
		status:            s.Status,
		createdAt:         s.CreatedAt,
		processedAt:       cloneTime(s.ProcessedAt),
		acquirerReference: cloneString(s.AcquirerReference),
		idempotencyKey:    cloneString(s.IdempotencyKey),
	}
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
