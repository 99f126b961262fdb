package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	merchantdomain "github.com/smallbiznis/paygate/internal/merchant/domain"
	"github.com/smallbiznis/paygate/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *Server) Login(c *gin.Context) {
	var req merchantdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	token, err := s.merchantSvc.Authenticate(c.Request.Context(), merchantdomain.LoginRequest{
		APIKey:    strings.TrimSpace(req.APIKey),
		APISecret: req.APISecret,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": token})
}

func (s *Server) Me(c *gin.Context) {
	merchantID, ok := merchantIDFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.merchantSvc.Get(c.Request.Context(), merchantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Register(c *gin.Context) {
	var req merchantdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	creds, err := s.merchantSvc.Create(c.Request.Context(), merchantdomain.CreateRequest{
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": creds})
}

func (s *Server) ActivateMerchant(c *gin.Context) {
	s.setMerchantActive(c, true)
}

func (s *Server) DeactivateMerchant(c *gin.Context) {
	s.setMerchantActive(c, false)
}

func (s *Server) setMerchantActive(c *gin.Context, active bool) {
	id, ok := merchantIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var err error
	if active {
		err = s.merchantSvc.Activate(ctx, id)
	} else {
		err = s.merchantSvc.Deactivate(ctx, id)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.merchantSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	logger.FromContext(ctx).Info("merchant status changed",
		zap.String("merchant_id", id.String()),
		zap.Bool("active", active),
	)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RotateMerchantCredentials(c *gin.Context) {
	id, ok := merchantIDParam(c)
	if !ok {
		return
	}

	creds, err := s.merchantSvc.RotateCredentials(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": creds})
}

func merchantIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil || id == uuid.Nil {
		AbortWithError(c, merchantdomain.ErrInvalidMerchantID)
		return uuid.Nil, false
	}
	return id, true
}
