package scheduler

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smallbiznis/railzway-braintree/internal/payerr"
	txdomain "github.com/smallbiznis/railzway-braintree/internal/transaction/domain"
	"github.com/smallbiznis/railzway-braintree/pkg/tenantctx"
)

const (
	jobReconcilePending = "reconcile_pending"

	// maxScanPages bounds how many candidate pages one run reads.
	maxScanPages = 10
)

type pendingPayment struct {
	TenantID  uuid.UUID
	AccountID uuid.UUID
	PaymentID uuid.UUID
}

// ReconcilePendingJob reads the history of payments holding a pending row
// that has not been touched for MinAge. Reading a payment expires or refreshes
// its stale rows.
func (s *Scheduler) ReconcilePendingJob(ctx context.Context) error {
	payments, err := s.fetchPendingPayments(ctx)
	if err != nil {
		return err
	}

	run := jobRunFromContext(ctx)
	var jobErr error
	for _, payment := range payments {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}
		paymentCtx := tenantctx.WithTenantID(ctx, payment.TenantID)
		if _, err := s.transactionSvc.GetPaymentInfo(paymentCtx, payment.TenantID, payment.AccountID, payment.PaymentID); err != nil {
			s.logPaymentError(ctx, payment, err)
			// a tenant without gateway config stays broken until configured
			if payerr.KindOf(err) != payerr.KindValidation {
				jobErr = errors.Join(jobErr, err)
			}
			continue
		}
		run.AddProcessed(1)
	}
	return jobErr
}

// fetchPendingPayments returns up to BatchSize distinct payments. Each run
// resumes the scan after the last row the previous run examined and wraps to
// the start once it reaches the end, so every pending row is visited even when
// many settled rows or unresolvable pending rows precede it.
func (s *Scheduler) fetchPendingPayments(ctx context.Context) ([]pendingPayment, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.MinAge)
	since := now.Add(-s.cfg.Lookback)
	pageSize := s.cfg.BatchSize * 4

	seen := map[pendingPayment]struct{}{}
	var out []pendingPayment
	cursor := s.scanFrom
	exhausted := false
	for page := 0; page < maxScanPages && len(out) < s.cfg.BatchSize; page++ {
		var rows []txdomain.TransactionRecord
		err := s.db.WithContext(ctx).Raw(
			`SELECT record_id, tenant_id, account_id, payment_id, transaction_id, transaction_type,
			        gateway_transaction_id, metadata, created_at, updated_at
			 FROM gateway_responses
			 WHERE record_id > ? AND created_at >= ? AND updated_at <= ?
			 ORDER BY record_id
			 LIMIT ?`,
			cursor, since, cutoff, pageSize,
		).Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			cursor = row.RecordID
			if txdomain.StatusOf(row) != txdomain.StatusPending {
				continue
			}
			key := pendingPayment{TenantID: row.TenantID, AccountID: row.AccountID, PaymentID: row.PaymentID}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
			if len(out) == s.cfg.BatchSize {
				break
			}
		}
		if len(rows) < pageSize && len(out) < s.cfg.BatchSize {
			exhausted = true
			break
		}
	}

	if exhausted {
		cursor = 0
	}
	s.scanFrom = cursor

	s.logger(ctx).Debug("scheduler.pending.fetched",
		zap.Int("count", len(out)),
		zap.Int64("resume_after", cursor),
	)
	return out, nil
}
