package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	merchantdomain "github.com/smallbiznis/paygate/internal/merchant/domain"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	PaymentID string            `json:"paymentId,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var domainErrs *paymentdomain.ValidationErrors
	if errors.As(err, &domainErrs) && domainErrs != nil {
		out := make([]ValidationError, 0, len(domainErrs.Errors))
		for _, e := range domainErrs.Errors {
			out = append(out, ValidationError{Field: e.Field, Code: e.Code, Message: e.Message})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  out,
		}
	}

	if isValidationError(err) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Code:    err.Error(),
					Message: validationMessage(err),
				},
			},
		}
	}

	var failed *paymentdomain.PaymentFailedError
	if errors.As(err, &failed) {
		status, payload := mapError(failed.Err)
		payload.PaymentID = failed.Payment.PaymentID.String()
		return status, payload
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, merchantdomain.ErrInvalidCredentials),
		errors.Is(err, merchantdomain.ErrInvalidToken):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, paymentdomain.ErrUnauthorizedAccess):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: paymentdomain.Message(err),
		}
	case errors.Is(err, merchantdomain.ErrInactive):
		return http.StatusForbidden, errorPayload{
			Type:    "merchant_inactive",
			Message: "merchant is inactive",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, paymentdomain.ErrDuplicateIdempotencyKey):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: paymentdomain.Message(err),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, paymentdomain.ErrPaymentDeclined):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "payment_declined",
			Message: paymentdomain.Message(err),
		}
	case errors.Is(err, paymentdomain.ErrAcquirerUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "acquirer_unavailable",
			Message: paymentdomain.Message(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, paymentdomain.ErrProcessingFailed):
		return http.StatusInternalServerError, errorPayload{
			Type:    "processing_failed",
			Message: paymentdomain.Message(err),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger with the mapped error type.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	return payload.Type, http.StatusText(status)
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, paymentdomain.ErrInvalidPaymentID),
		errors.Is(err, paymentdomain.ErrInvalidMerchantID),
		errors.Is(err, paymentdomain.ErrInvalidIdempotencyKey),
		errors.Is(err, paymentdomain.ErrInvalidPageToken),
		errors.Is(err, merchantdomain.ErrInvalidName),
		errors.Is(err, merchantdomain.ErrInvalidMerchantID):
		return true
	default:
		return false
	}
}

func validationMessage(err error) string {
	if msg := paymentdomain.Message(err); msg != "" {
		return msg
	}
	switch {
	case errors.Is(err, merchantdomain.ErrInvalidName):
		return "merchant name is required and must not exceed 100 characters"
	case errors.Is(err, merchantdomain.ErrInvalidMerchantID):
		return "merchant id is invalid"
	default:
		return "invalid request"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, merchantdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isMerchantNotFound(err error) bool {
	return errors.Is(err, merchantdomain.ErrNotFound)
}
