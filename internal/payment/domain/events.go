package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventPaymentCreated   EventType = "payment.created"
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentFailed    EventType = "payment.failed"
)

// Event is a domain event raised by the Payment aggregate. AcquirerReference
// is only set for EventPaymentSucceeded.
type Event struct {
	Type              EventType `json:"type"`
	PaymentID         uuid.UUID `json:"paymentId"`
	MerchantID        uuid.UUID `json:"merchantId"`
	Status            Status    `json:"status"`
	AcquirerReference string    `json:"acquirerReference,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}
