package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	merchantdomain "github.com/smallbiznis/paygate/internal/merchant/domain"
	"github.com/smallbiznis/paygate/internal/merchantcontext"
	obscontext "github.com/smallbiznis/paygate/internal/observability/context"
)

const (
	HeaderAdminToken       = "X-Admin-Token"
	HeaderIdempotencyKey   = "Idempotency-Key"
	contextMerchantIDKey   = "merchant_id"
	contextMerchantNameKey = "merchant_name"
)

// MerchantAuthRequired authenticates requests with a merchant bearer token.
// The merchant is reloaded so deactivation takes effect before token expiry.
func (s *Server) MerchantAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		claims, err := s.merchantSvc.ParseToken(ctx, token)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		merchantID, err := uuid.Parse(claims.MerchantID)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		merchant, err := s.merchantSvc.Get(ctx, merchantID)
		if err != nil {
			if isMerchantNotFound(err) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}
		if !merchant.IsActive {
			AbortWithError(c, merchantdomain.ErrInactive)
			return
		}

		ctx = merchantcontext.WithMerchantID(ctx, merchantID)
		ctx = obscontext.WithMerchantID(ctx, merchantID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextMerchantIDKey, merchantID.String())
		c.Set(contextMerchantNameKey, merchant.Name)
		c.Next()
	}
}

// AdminRequired guards operator endpoints with a static token. The endpoints
// are disabled when no token is configured.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := strings.TrimSpace(s.cfg.AdminAPIToken)
		if expected == "" {
			AbortWithError(c, ErrForbidden)
			return
		}
		provided := strings.TrimSpace(c.GetHeader(HeaderAdminToken))
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func merchantIDFromRequest(c *gin.Context) (uuid.UUID, bool) {
	return merchantcontext.MerchantIDFromContext(c.Request.Context())
}
