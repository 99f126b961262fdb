package server

import (
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
	"github.com/smallbiznis/paygate/pkg/db/pagination"
)

const (
	maxCardHolderNameLength = 100
	maxExpiryYearsAhead     = 20
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type createPaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	CardNumber     string          `json:"cardNumber"`
	CardHolderName string          `json:"cardHolderName"`
	ExpiryMonth    int             `json:"expiryMonth"`
	ExpiryYear     int             `json:"expiryYear"`
	CVV            string          `json:"cvv"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	merchantID, ok := merchantIDFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.validatePaymentRequest(req); err != nil {
		AbortWithError(c, err)
		return
	}

	cmd := paymentdomain.ProcessPaymentCommand{
		MerchantID:     merchantID,
		Amount:         req.Amount,
		Currency:       strings.TrimSpace(req.Currency),
		CardNumber:     req.CardNumber,
		CardHolderName: strings.TrimSpace(req.CardHolderName),
		ExpiryMonth:    req.ExpiryMonth,
		ExpiryYear:     req.ExpiryYear,
		CVV:            req.CVV,
		IdempotencyKey: idempotencyKey(c, req),
	}

	resp, err := s.paymentSvc.ProcessPayment(c.Request.Context(), cmd)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// validatePaymentRequest applies the request-shape rules. Card and amount
// rules are enforced by the payment domain.
func (s *Server) validatePaymentRequest(req createPaymentRequest) error {
	verrs := &ValidationErrors{}
	if !currencyPattern.MatchString(strings.TrimSpace(req.Currency)) {
		verrs.Errors = append(verrs.Errors, ValidationError{
			Field:   "currency",
			Code:    "invalid_currency",
			Message: "currency must be a three letter upper-case ISO code",
		})
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.CardHolderName)) > maxCardHolderNameLength {
		verrs.Errors = append(verrs.Errors, ValidationError{
			Field:   "cardHolderName",
			Code:    "invalid_cardholder_name",
			Message: "cardholder name must not exceed 100 characters",
		})
	}
	if req.ExpiryYear > s.clock.Now().Year()+maxExpiryYearsAhead {
		verrs.Errors = append(verrs.Errors, ValidationError{
			Field:   "expiryYear",
			Code:    "invalid_expiry_date",
			Message: "expiry year is too far in the future",
		})
	}
	if len(verrs.Errors) > 0 {
		return verrs
	}
	return nil
}

// idempotencyKey prefers the header over the body field.
func idempotencyKey(c *gin.Context, req createPaymentRequest) *string {
	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}
	if key == "" {
		return nil
	}
	return &key
}

func (s *Server) GetPayment(c *gin.Context) {
	merchantID, ok := merchantIDFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	paymentID, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil || paymentID == uuid.Nil {
		AbortWithError(c, newValidationError("id", "invalid_payment_id", "payment id must be a UUID"))
		return
	}

	resp, err := s.paymentSvc.GetPaymentStatus(c.Request.Context(), paymentID, merchantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	merchantID, ok := merchantIDFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil || query.PageSize < 0 {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "page_size must be a positive integer"))
		return
	}

	resp, err := s.paymentSvc.ListPayments(c.Request.Context(), merchantID, pagination.Pagination{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
