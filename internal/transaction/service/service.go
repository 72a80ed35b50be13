package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/smallbiznis/railzway-braintree/internal/account/domain"
	"github.com/smallbiznis/railzway-braintree/internal/clock"
	"github.com/smallbiznis/railzway-braintree/internal/gateway"
	"github.com/smallbiznis/railzway-braintree/internal/observability/metrics"
	"github.com/smallbiznis/railzway-braintree/internal/payerr"
	pmdomain "github.com/smallbiznis/railzway-braintree/internal/paymentmethod/domain"
	"github.com/smallbiznis/railzway-braintree/internal/ratelimit"
	"github.com/smallbiznis/railzway-braintree/internal/transaction/domain"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Repo           domain.Repository
	Clock          clock.Clock
	Accounts       accountdomain.Service
	PaymentMethods pmdomain.Service
	Gateways       gateway.ClientProvider
	Guard          *ratelimit.GatewayGuard `optional:"true"`
	Metrics        *metrics.Metrics        `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	repo           domain.Repository
	clock          clock.Clock
	accounts       accountdomain.Service
	paymentMethods pmdomain.Service
	gateways       gateway.ClientProvider
	guard          *ratelimit.GatewayGuard
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("transaction.service"),
		genID:          p.GenID,
		repo:           p.Repo,
		clock:          clk,
		accounts:       p.Accounts,
		paymentMethods: p.PaymentMethods,
		gateways:       p.Gateways,
		guard:          p.Guard,
		metrics:        p.Metrics,
		tracer:         otel.Tracer("github.com/smallbiznis/railzway-braintree/internal/transaction"),
	}
}

func (s *Service) startSpan(ctx context.Context, name string, req domain.Request) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "transaction."+name, trace.WithAttributes(
		attribute.String("tenant_id", req.TenantID.String()),
		attribute.String("payment_id", req.PaymentID.String()),
		attribute.String("transaction_id", req.TransactionID.String()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, payerr.KindOf(err).String())
	}
	span.End()
}

// admit applies the per-tenant gateway budget.
func (s *Service) admit(ctx context.Context, op string, tenantID uuid.UUID) error {
	if err := s.guard.AllowTenant(ctx, tenantID.String()); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			s.metrics.RecordRateLimitDenied(ctx, op, "tenant_budget")
			return payerr.New(payerr.KindRateLimited, op, "gateway call budget exhausted", err).
				With("tenant_id", tenantID.String())
		}
		return err
	}
	if s.guard.Enabled() {
		s.metrics.RecordRateLimitAllowed(ctx, op)
	}
	return nil
}

func (s *Service) observeGatewayCall(ctx context.Context, operation string, started time.Time, result *gateway.TxResult, err error) {
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case result != nil && !result.Success:
		outcome = "declined"
	}
	s.metrics.RecordGatewayCall(ctx, operation, outcome, time.Since(started))
}
