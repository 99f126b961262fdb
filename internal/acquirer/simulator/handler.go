package simulator

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/paygate/internal/acquirer/domain"
	"github.com/smallbiznis/paygate/internal/config"
	"github.com/smallbiznis/paygate/internal/observability/logger"
	"go.uber.org/zap"
)

// maxHang bounds how long a simulated timeout holds the connection open.
const maxHang = 2 * time.Minute

// Handler serves the simulated acquirer over HTTP so the resilient client
// can be exercised end to end.
type Handler struct {
	engine *Engine
	log    *zap.Logger
}

func NewHandler(engine *Engine, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{engine: engine, log: log.Named("acquirer.simulator.http")}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/payments", h.ProcessPayment)
}

func (h *Handler) ProcessPayment(c *gin.Context) {
	var req domain.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	d := h.engine.Decide(req.CardNumber)
	logger.WithContext(c.Request.Context(), h.log).Info("simulated acquirer request",
		zap.String("merchant_reference", req.MerchantReference),
		zap.String("decision", d.Kind),
	)

	if d.Kind == config.SimulatedTimeout {
		wait(c.Request.Context(), maxHang)
		c.Status(http.StatusGatewayTimeout)
		return
	}
	if !wait(c.Request.Context(), d.Latency) {
		return
	}

	switch d.Kind {
	case config.SimulatedApprove:
		c.JSON(http.StatusOK, domain.PaymentResponse{Success: boolPtr(true), Reference: &d.Reference})
	case config.SimulatedDecline:
		c.JSON(http.StatusOK, domain.PaymentResponse{Success: boolPtr(false), ErrorMessage: &d.Reason})
	case config.SimulatedMalformed:
		c.Data(http.StatusOK, "application/json", []byte(`{"success":`))
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "acquirer_unavailable"})
	}
}

func boolPtr(v bool) *bool { return &v }
