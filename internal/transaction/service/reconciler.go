package service

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/railzway-braintree/internal/expiration"
	"github.com/smallbiznis/railzway-braintree/internal/payerr"
	"github.com/smallbiznis/railzway-braintree/internal/transaction/domain"
)

const expiredMessage = "Payment expired, canceled by reconciler"

// GetPaymentInfo returns the payment's history. Before answering it cancels
// an abandoned pending authorization, or polls the gateway for every row that
// can still change.
func (s *Service) GetPaymentInfo(ctx context.Context, tenantID, accountID, paymentID uuid.UUID) (views []domain.TransactionView, err error) {
	const op = "transaction.get_payment_info"
	ctx, span := s.tracer.Start(ctx, "transaction.get_payment_info", trace.WithAttributes(
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("payment_id", paymentID.String()),
	))
	defer func() { endSpan(span, err) }()

	records, err := s.repo.ListByPayment(ctx, s.db, tenantID, paymentID)
	if err != nil {
		return nil, payerr.Persistence(op, "load payment history", err).With("payment_id", paymentID.String())
	}
	if len(records) == 0 {
		return []domain.TransactionView{}, nil
	}

	client, settings, err := s.gateways.ClientFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	policy := expiration.NewPolicy(s.clock, settings.Expiration)
	if expired := policy.Expired(records); expired != nil {
		s.log.Info("canceling expired transaction",
			zap.String("tenant_id", tenantID.String()),
			zap.String("account_id", accountID.String()),
			zap.String("transaction_id", expired.TransactionID.String()),
			zap.String("gateway_transaction_id", expired.GatewayReference()),
			zap.Time("created_at", expired.CreatedAt),
			zap.Duration("window", policy.WindowFor(*expired)),
		)
		_, err := s.repo.UpdateResponseRow(ctx, s.db, *expired, map[string]any{
			domain.KeyOverriddenStatus: string(domain.StatusCanceled),
			domain.KeyMessage:          expiredMessage,
		})
		if err != nil {
			return nil, payerr.Persistence(op, "cancel expired transaction", err).
				With("transaction_id", expired.TransactionID.String())
		}
		s.metrics.RecordExpiration(ctx, string(expired.TransactionType))
		s.metrics.RecordReconciliation(ctx, "expired")
		return s.reload(ctx, op, tenantID, paymentID)
	}

	refreshed := false
	for _, r := range records {
		reference := r.GatewayReference()
		if reference == "" || !domain.NeedsRefresh(r) {
			continue
		}
		status, err := client.GetTransactionStatus(ctx, reference)
		if err != nil {
			return nil, payerr.Gateway(op, err).With("gateway_transaction_id", reference)
		}
		s.log.Debug("refreshed transaction status",
			zap.String("transaction_id", r.TransactionID.String()),
			zap.String("gateway_transaction_id", reference),
			zap.String("previous", r.Metadata.GatewayStatus),
			zap.String("current", status),
		)
		if _, err := s.repo.UpdateResponse(ctx, s.db, tenantID, r.TransactionID, map[string]any{
			domain.KeyGatewayStatus: status,
		}); err != nil {
			return nil, payerr.Persistence(op, "store refreshed status", err).
				With("transaction_id", r.TransactionID.String())
		}
		refreshed = true
	}

	if !refreshed {
		s.metrics.RecordReconciliation(ctx, "unchanged")
		return domain.NewViews(records), nil
	}
	s.metrics.RecordReconciliation(ctx, "refreshed")
	return s.reload(ctx, op, tenantID, paymentID)
}

func (s *Service) reload(ctx context.Context, op string, tenantID, paymentID uuid.UUID) ([]domain.TransactionView, error) {
	records, err := s.repo.ListByPayment(ctx, s.db, tenantID, paymentID)
	if err != nil {
		return nil, payerr.Persistence(op, "reload payment history", err).With("payment_id", paymentID.String())
	}
	return domain.NewViews(records), nil
}
