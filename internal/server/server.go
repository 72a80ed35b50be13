package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/railzway-braintree/internal/config"
	gatewayconfigdomain "github.com/smallbiznis/railzway-braintree/internal/gatewayconfig/domain"
	"github.com/smallbiznis/railzway-braintree/internal/observability"
	obsmiddleware "github.com/smallbiznis/railzway-braintree/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/railzway-braintree/internal/observability/metrics"
	obstracing "github.com/smallbiznis/railzway-braintree/internal/observability/tracing"
	pmdomain "github.com/smallbiznis/railzway-braintree/internal/paymentmethod/domain"
	txdomain "github.com/smallbiznis/railzway-braintree/internal/transaction/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware(httpMetrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine           *gin.Engine
	cfg              config.Config
	log              *zap.Logger
	transactionSvc   txdomain.Service
	paymentMethodSvc pmdomain.Service
	gatewayConfigSvc gatewayconfigdomain.Service
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	Log              *zap.Logger
	TransactionSvc   txdomain.Service
	PaymentMethodSvc pmdomain.Service
	GatewayConfigSvc gatewayconfigdomain.Service `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		log:              p.Log.Named("http.server"),
		transactionSvc:   p.TransactionSvc,
		paymentMethodSvc: p.PaymentMethodSvc,
		gatewayConfigSvc: p.GatewayConfigSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")
	api.Use(TenantRequired())

	payments := api.Group("/payments/:payment_id")
	payments.POST("/authorize", s.Authorize)
	payments.POST("/purchase", s.Purchase)
	payments.POST("/credit", s.Credit)
	payments.POST("/capture", s.Capture)
	payments.POST("/void", s.Void)
	payments.POST("/refund", s.Refund)
	payments.POST("/redirect", s.RegisterRedirect)
	payments.GET("/transactions", s.GetPaymentInfo)

	api.POST("/forms", s.BuildFormDescriptor)

	methods := api.Group("/accounts/:account_id/payment-methods")
	methods.POST("", s.AddPaymentMethod)
	methods.GET("", s.ListPaymentMethods)
	methods.GET("/:payment_method_id", s.GetPaymentMethod)
	methods.DELETE("/:payment_method_id", s.DeletePaymentMethod)

	if s.gatewayConfigSvc != nil {
		api.PUT("/gateway-config", s.UpsertGatewayConfig)
		api.POST("/gateway-config/status", s.SetGatewayConfigStatus)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
