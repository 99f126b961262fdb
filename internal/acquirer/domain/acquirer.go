//go:generate mockgen -source=acquirer.go -destination=../mock/client.go -package=mock

package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
)

// Outcome classifies every acquirer call into exactly one bucket.
type Outcome string

const (
	OutcomeApproved        Outcome = "approved"
	OutcomeDeclined        Outcome = "declined"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeUnavailable     Outcome = "unavailable"
	OutcomeInvalidResponse Outcome = "invalid_response"
)

// Client messages surfaced on non-approved results.
const (
	MessageTimeout         = "Payment processing timed out"
	MessageUnavailable     = "Payment processor unavailable"
	MessageInvalidResponse = "Invalid response from payment processor"
	MessageUnexpected      = "Unexpected error while contacting payment processor"
)

var ErrProviderNotFound = errors.New("acquirer_provider_not_found")

// Request is the acquirer-facing view of a payment. It never carries the raw card number.
type Request struct {
	PaymentID        uuid.UUID
	Amount           decimal.Decimal
	Currency         string
	MaskedCardNumber string
	CardLast4        string
	CardHolderName   string
	ExpiryMonth      int
	ExpiryYear       int
}

func NewRequest(p *paymentdomain.Payment) Request {
	card := p.Card()
	return Request{
		PaymentID:        p.ID(),
		Amount:           p.Amount().Amount(),
		Currency:         p.Amount().Currency(),
		MaskedCardNumber: card.MaskedNumber(),
		CardLast4:        card.LastFour(),
		CardHolderName:   card.HolderName(),
		ExpiryMonth:      card.ExpiryMonth(),
		ExpiryYear:       card.ExpiryYear(),
	}
}

// Result is the classified outcome of one logical acquirer call.
type Result struct {
	Outcome   Outcome
	Reference string
	Message   string
}

func (r Result) Approved() bool { return r.Outcome == OutcomeApproved }

func Approved(reference string) Result {
	return Result{Outcome: OutcomeApproved, Reference: reference}
}

func Declined(reason string) Result {
	return Result{Outcome: OutcomeDeclined, Message: reason}
}

func Failure(outcome Outcome, message string) Result {
	return Result{Outcome: outcome, Message: message}
}

// Client authorizes payments. Business declines and infrastructure failures
// are both reported through Result; it never returns an error.
type Client interface {
	ProcessPayment(ctx context.Context, req Request) Result
}

// PaymentRequest is the JSON body sent to an acquirer.
type PaymentRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	CardNumber        string          `json:"cardNumber"`
	CardHolderName    string          `json:"cardHolderName"`
	ExpiryMonth       int             `json:"expiryMonth"`
	ExpiryYear        int             `json:"expiryYear"`
	MerchantReference string          `json:"merchantReference"`
}

func NewPaymentRequest(req Request) PaymentRequest {
	return PaymentRequest{
		Amount:            req.Amount,
		Currency:          req.Currency,
		CardNumber:        req.MaskedCardNumber,
		CardHolderName:    req.CardHolderName,
		ExpiryMonth:       req.ExpiryMonth,
		ExpiryYear:        req.ExpiryYear,
		MerchantReference: req.PaymentID.String(),
	}
}

// PaymentResponse is the JSON body an acquirer answers with.
type PaymentResponse struct {
	Success      *bool   `json:"success"`
	Reference    *string `json:"reference,omitempty"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
}
