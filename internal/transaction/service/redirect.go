package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/smallbiznis/railzway-braintree/internal/payerr"
	"github.com/smallbiznis/railzway-braintree/internal/transaction/domain"
	"github.com/smallbiznis/railzway-braintree/pkg/db"
)

// BuildFormDescriptor records the hosted-page context so a later completion
// callback can be correlated, and echoes the fields back.
func (s *Service) BuildFormDescriptor(ctx context.Context, req domain.FormRequest) (*domain.FormDescriptor, error) {
	const op = "transaction.build_form_descriptor"
	if req.TenantID == uuid.Nil || req.AccountID == uuid.Nil {
		return nil, payerr.Validation(op, "account_id is required")
	}
	fields := make(map[string]any, len(req.Fields))
	for k, v := range req.Fields {
		fields[k] = v
	}

	record := domain.RedirectRequest{
		ID:            s.genID.Generate(),
		TenantID:      req.TenantID,
		AccountID:     req.AccountID,
		PaymentID:     req.PaymentID,
		TransactionID: req.TransactionID,
		Fields:        datatypes.JSONMap(fields),
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.InsertRedirectRequest(ctx, s.db, &record); err != nil {
		return nil, payerr.Persistence(op, "save redirect request", err)
	}
	return &domain.FormDescriptor{RequestID: record.ID, AccountID: req.AccountID, FormFields: fields}, nil
}

// RegisterRedirect creates the pending ledger row of a redirect-flow attempt.
// No gateway call happens here; the completion call later replays this row.
func (s *Service) RegisterRedirect(ctx context.Context, txType domain.TransactionType, req domain.Request) (*domain.TransactionView, error) {
	const op = "transaction.register_redirect"
	if !txType.IsInitial() {
		return nil, payerr.Validation(op, "redirect flows only start authorize, purchase or credit")
	}
	if err := validateIDs(op, req); err != nil {
		return nil, err
	}
	if req.AccountID == uuid.Nil {
		return nil, payerr.Validation(op, "account_id is required")
	}

	var currency *string
	if strings.TrimSpace(req.Currency) != "" {
		normalized, err := domain.NormalizeCurrency(req.Currency)
		if err != nil {
			return nil, payerr.New(payerr.KindValidation, op, "currency must be an ISO-4217 code", err)
		}
		currency = &normalized
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, payerr.New(payerr.KindValidation, op, "amount must be positive", domain.ErrInvalidAmount)
	}

	existing, err := s.repo.FindLatestByTransaction(ctx, s.db, req.TenantID, req.TransactionID)
	if err != nil {
		return nil, payerr.Persistence(op, "load transaction", err)
	}
	if existing != nil {
		view := domain.NewView(*existing)
		return &view, nil
	}

	fields := map[string]any{fieldTransactionType: string(txType)}
	for k, v := range req.Properties {
		fields[k] = v
	}
	if err := s.recordForm(ctx, req, fields); err != nil {
		return nil, payerr.Persistence(op, "save redirect request", err)
	}

	now := s.clock.Now()
	record := domain.TransactionRecord{
		TenantID:        req.TenantID,
		AccountID:       req.AccountID,
		PaymentID:       req.PaymentID,
		TransactionID:   req.TransactionID,
		TransactionType: txType,
		Currency:        currency,
		Metadata:        domain.MetadataFromMap(req.Properties).Merge(map[string]any{domain.KeyFromRedirect: true}),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Amount != nil {
		record.Amount = decimal.NewNullDecimal(*req.Amount)
	}
	if err := s.repo.AddResponse(ctx, s.db, &record); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, payerr.Persistence(op, "register redirect transaction", err)
		}
		current, findErr := s.repo.FindLatestByTransaction(ctx, s.db, req.TenantID, req.TransactionID)
		if findErr != nil || current == nil {
			return nil, payerr.Persistence(op, "register redirect transaction", err)
		}
		record = *current
	}

	s.log.Info("redirect transaction registered",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("transaction_id", req.TransactionID.String()),
		zap.String("type", string(txType)),
	)
	view := domain.NewView(record)
	return &view, nil
}
