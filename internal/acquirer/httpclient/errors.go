package httpclient

import (
	"errors"

	"github.com/smallbiznis/paygate/internal/acquirer/domain"
)

// callError carries the classification of one failed attempt.
//
// retryable attempts are repeated with backoff; transient ones count against
// the circuit breaker; canceled ones are ignored by it.
type callError struct {
	outcome     domain.Outcome
	message     string
	retryable   bool
	transient   bool
	canceled    bool
	circuitOpen bool
	cause       error
}

func (e *callError) Error() string {
	if e.cause == nil {
		return string(e.outcome) + ": " + e.message
	}
	return string(e.outcome) + ": " + e.message + ": " + e.cause.Error()
}

func (e *callError) Unwrap() error { return e.cause }

func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var ce *callError
	if errors.As(err, &ce) {
		return !ce.transient
	}
	return false
}

func isBreakerExcluded(err error) bool {
	var ce *callError
	return errors.As(err, &ce) && ce.canceled
}
