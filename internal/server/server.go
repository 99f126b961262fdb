package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/paygate/internal/acquirer"
	"github.com/smallbiznis/paygate/internal/acquirer/simulator"
	"github.com/smallbiznis/paygate/internal/cache"
	"github.com/smallbiznis/paygate/internal/clock"
	"github.com/smallbiznis/paygate/internal/config"
	"github.com/smallbiznis/paygate/internal/events"
	"github.com/smallbiznis/paygate/internal/merchant"
	merchantdomain "github.com/smallbiznis/paygate/internal/merchant/domain"
	"github.com/smallbiznis/paygate/internal/observability"
	obsmiddleware "github.com/smallbiznis/paygate/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/paygate/internal/observability/metrics"
	obstracing "github.com/smallbiznis/paygate/internal/observability/tracing"
	"github.com/smallbiznis/paygate/internal/payment"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
	"github.com/smallbiznis/paygate/internal/ratelimit"
	"github.com/smallbiznis/paygate/internal/scheduler"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	cache.Module,
	ratelimit.Module,
	events.Module,
	acquirer.Module,
	merchant.Module,
	payment.Module,
	scheduler.Module,
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, srv *Server, log *zap.Logger) {
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	clock           clock.Clock
	merchantSvc     merchantdomain.Service
	paymentSvc      paymentdomain.Service
	simulator       *simulator.Handler
	paymentsLimiter *ratelimit.PaymentsLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Clock           clock.Clock
	MerchantSvc     merchantdomain.Service
	PaymentSvc      paymentdomain.Service
	Simulator       *simulator.Handler         `optional:"true"`
	PaymentsLimiter *ratelimit.PaymentsLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http"),
		clock:           clk,
		merchantSvc:     p.MerchantSvc,
		paymentSvc:      p.PaymentSvc,
		simulator:       p.Simulator,
		paymentsLimiter: p.PaymentsLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerAcquirerRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/api/v1/auth")

	auth.POST("/login", s.Login)
	auth.GET("/me", s.MerchantAuthRequired(), s.Me)
	auth.POST("/register", s.AdminRequired(), s.Register)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", s.MerchantAuthRequired())

	// -------- Payments --------
	api.POST("/payments", s.PaymentsRateLimit(), s.CreatePayment)
	api.GET("/payments", s.ListPayments)
	api.GET("/payments/:id", s.GetPayment)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/v1/admin", s.AdminRequired())

	// -------- Merchants --------
	admin.POST("/merchants/:id/activate", s.ActivateMerchant)
	admin.POST("/merchants/:id/deactivate", s.DeactivateMerchant)
	admin.POST("/merchants/:id/rotate", s.RotateMerchantCredentials)
}

// registerAcquirerRoutes exposes the simulated acquirer so the http client
// mode can be exercised against this process.
func (s *Server) registerAcquirerRoutes() {
	if s.simulator == nil {
		return
	}
	s.simulator.Register(s.engine.Group("/api/v1/acquirer"))
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
