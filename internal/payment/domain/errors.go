package domain

import (
	"errors"
	"strings"
)

var (
	ErrInvalidAmount            = errors.New("invalid_amount")
	ErrInvalidCurrency          = errors.New("invalid_currency")
	ErrInvalidCardNumber        = errors.New("invalid_card_number")
	ErrEmptyCardholderName      = errors.New("empty_cardholder_name")
	ErrInvalidExpiryDate        = errors.New("invalid_expiry_date")
	ErrInvalidCVV               = errors.New("invalid_cvv")
	ErrInvalidPaymentID         = errors.New("invalid_payment_id")
	ErrInvalidMerchantID        = errors.New("invalid_merchant_id")
	ErrInvalidIdempotencyKey    = errors.New("invalid_idempotency_key")
	ErrInvalidAcquirerReference = errors.New("invalid_acquirer_reference")
	ErrPaymentFinalized         = errors.New("payment_already_finalized")

	ErrPaymentNotFound         = errors.New("payment_not_found")
	ErrUnauthorizedAccess      = errors.New("unauthorized_payment_access")
	ErrDuplicateIdempotencyKey = errors.New("duplicate_idempotency_key")
	ErrAcquirerUnavailable     = errors.New("acquirer_unavailable")
	ErrPaymentDeclined         = errors.New("payment_declined")
	ErrProcessingFailed        = errors.New("processing_failed")
	ErrInvalidPageToken        = errors.New("invalid_page_token")
)

// errorMessages is ordered; Message reports the first sentinel err matches.
var errorMessages = []struct {
	err error
	msg string
}{
	{ErrInvalidAmount, "The payment amount must be greater than zero with at most four decimal places"},
	{ErrInvalidCurrency, "The payment currency is invalid"},
	{ErrInvalidCardNumber, "The card number is invalid"},
	{ErrEmptyCardholderName, "The cardholder name cannot be empty"},
	{ErrInvalidExpiryDate, "The card expiry date is invalid or the card has expired"},
	{ErrInvalidCVV, "The card security code (CVV) is invalid"},
	{ErrInvalidPaymentID, "Payment ID cannot be empty"},
	{ErrInvalidMerchantID, "Merchant ID cannot be empty"},
	{ErrInvalidIdempotencyKey, "Idempotency key is invalid"},
	{ErrInvalidAcquirerReference, "Acquirer reference cannot be empty"},
	{ErrPaymentFinalized, "The payment has already reached a final status"},
	{ErrPaymentNotFound, "The payment does not exist"},
	{ErrUnauthorizedAccess, "The payment does not belong to the merchant"},
	{ErrDuplicateIdempotencyKey, "A payment with this idempotency key already exists"},
	{ErrAcquirerUnavailable, "The payment processor is currently unavailable"},
	{ErrPaymentDeclined, "The payment was declined"},
	{ErrProcessingFailed, "The payment could not be processed"},
	{ErrInvalidPageToken, "The page token is invalid"},
}

func messageFor(sentinel error) string {
	for _, m := range errorMessages {
		if m.err == sentinel {
			return m.msg
		}
	}
	return ""
}

// Message returns the client-facing description for a payment sentinel error.
// A validation error is described by its first entry.
func Message(err error) string {
	var verr *ValidationErrors
	if errors.As(err, &verr) && verr != nil && len(verr.Errors) > 0 {
		return verr.Errors[0].Message
	}
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return ""
}

// PaymentFailedError reports a payment that was stored as Failed because the
// acquirer did not approve it.
type PaymentFailedError struct {
	Payment PaymentView
	Err     error
}

func (e *PaymentFailedError) Error() string {
	return "payment " + e.Payment.PaymentID.String() + " failed: " + e.Err.Error()
}

func (e *PaymentFailedError) Unwrap() error { return e.Err }

// ValidationError is a single field-level validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`

	err error
}

func newValidationError(field string, err error) ValidationError {
	return ValidationError{
		Field:   field,
		Code:    err.Error(),
		Message: messageFor(err),
		err:     err,
	}
}

// ValidationErrors collects every failing field of one request.
type ValidationErrors struct {
	Errors []ValidationError
}

func (v *ValidationErrors) add(field string, err error) {
	v.Errors = append(v.Errors, newValidationError(field, err))
}

// Merge appends the entries of other when it is a validation error.
func (v *ValidationErrors) Merge(other error) {
	var ve *ValidationErrors
	if errors.As(other, &ve) && ve != nil {
		v.Errors = append(v.Errors, ve.Errors...)
	}
}

// Err returns nil when no entries were collected.
func (v *ValidationErrors) Err() error {
	if v == nil || len(v.Errors) == 0 {
		return nil
	}
	return v
}

func (v *ValidationErrors) Error() string {
	codes := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		codes = append(codes, e.Field+": "+e.Code)
	}
	return "validation failed: " + strings.Join(codes, ", ")
}

// Unwrap exposes the underlying sentinels to errors.Is.
func (v *ValidationErrors) Unwrap() []error {
	errs := make([]error, 0, len(v.Errors))
	for _, e := range v.Errors {
		if e.err != nil {
			errs = append(errs, e.err)
		}
	}
	return errs
}

func validationFailure(field string, err error) error {
	v := &ValidationErrors{}
	v.add(field, err)
	return v
}
