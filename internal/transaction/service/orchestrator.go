package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	accountdomain "github.com/smallbiznis/railzway-braintree/internal/account/domain"
	"github.com/smallbiznis/railzway-braintree/internal/gateway"
	"github.com/smallbiznis/railzway-braintree/internal/payerr"
	"github.com/smallbiznis/railzway-braintree/internal/transaction/domain"
	"github.com/smallbiznis/railzway-braintree/pkg/db"
)

// Form field keys recorded with every initial operation.
const (
	fieldAmount          = "amount"
	fieldCurrency        = "currency"
	fieldTransactionType = "transaction_type"
)

func (s *Service) Authorize(ctx context.Context, req domain.Request) (*domain.TransactionView, error) {
	return s.initial(ctx, domain.TransactionTypeAuthorize, req)
}

func (s *Service) Purchase(ctx context.Context, req domain.Request) (*domain.TransactionView, error) {
	return s.initial(ctx, domain.TransactionTypePurchase, req)
}

// Credit needs the merchant account to be enabled for credits; refunds are
// preferred whenever a prior sale exists.
func (s *Service) Credit(ctx context.Context, req domain.Request) (*domain.TransactionView, error) {
	return s.initial(ctx, domain.TransactionTypeCredit, req)
}

func (s *Service) Capture(ctx context.Context, req domain.Request) (*domain.TransactionView, error) {
	return s.followUp(ctx, domain.TransactionTypeCapture, req)
}

func (s *Service) Void(ctx context.Context, req domain.Request) (*domain.TransactionView, error) {
	req.Amount = nil
	req.Currency = ""
	return s.followUp(ctx, domain.TransactionTypeVoid, req)
}

func (s *Service) Refund(ctx context.Context, req domain.Request) (*domain.TransactionView, error) {
	return s.followUp(ctx, domain.TransactionTypeRefund, req)
}

// initial runs authorize, purchase and credit. An existing row for the
// transaction id is replayed, never resubmitted.
func (s *Service) initial(ctx context.Context, txType domain.TransactionType, req domain.Request) (view *domain.TransactionView, err error) {
	op := "transaction." + strings.ToLower(string(txType))
	ctx, span := s.startSpan(ctx, strings.ToLower(string(txType)), req)
	defer func() { endSpan(span, err) }()

	currency, err := validateInitial(op, req)
	if err != nil {
		return nil, err
	}

	release, ok, err := s.guard.LockTransaction(ctx, req.TenantID.String(), req.TransactionID.String())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, payerr.Conflict(op, "transaction is already being processed").
			With("transaction_id", req.TransactionID.String())
	}
	defer release()

	existing, err := s.repo.FindLatestByTransaction(ctx, s.db, req.TenantID, req.TransactionID)
	if err != nil {
		return nil, payerr.Persistence(op, "load transaction", err).With("transaction_id", req.TransactionID.String())
	}
	if existing != nil {
		return s.replay(ctx, op, *existing, req.Properties)
	}

	if customerID := customerProperty(req.Properties); customerID != "" {
		if err := s.accounts.SetCustomerID(ctx, req.TenantID, req.AccountID, customerID); err != nil {
			return nil, err
		}
	}
	method, err := s.paymentMethods.Lookup(ctx, req.TenantID, req.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if err := s.recordForm(ctx, req, formFields(txType, req, currency)); err != nil {
		return nil, payerr.Persistence(op, "save redirect request", err)
	}
	if err := s.admit(ctx, op, req.TenantID); err != nil {
		return nil, err
	}

	client, _, err := s.gateways.ClientFor(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	customerID, _, err := s.accounts.GetCustomerID(ctx, req.TenantID, req.AccountID)
	if err != nil {
		return nil, err
	}

	nonce, found, err := client.CreateNonceFromToken(ctx, method.GatewayToken)
	if err != nil {
		return nil, payerr.Gateway(op, err).With("payment_method_id", req.PaymentMethodID.String())
	}
	if !found {
		return nil, payerr.New(payerr.KindNotFound, op, "payment method is unknown to the gateway", gateway.ErrNotFound).
			With("payment_method_id", req.PaymentMethodID.String())
	}

	started := time.Now()
	var result *gateway.TxResult
	if txType == domain.TransactionTypeCredit {
		result, err = client.Credit(ctx, *req.Amount, customerID, nonce)
	} else {
		result, err = client.Sale(ctx, *req.Amount, customerID, nonce, txType == domain.TransactionTypePurchase)
	}
	s.observeGatewayCall(ctx, strings.ToLower(string(txType)), started, result, err)
	if err != nil {
		return nil, payerr.Gateway(op, err).With("transaction_id", req.TransactionID.String())
	}

	return s.store(ctx, op, txType, req, &currency, result)
}

// replay answers a repeated initial call from the ledger. A redirect-flow row
// seen for the first time since registration is marked completed.
func (s *Service) replay(ctx context.Context, op string, existing domain.TransactionRecord, props map[string]any) (*domain.TransactionView, error) {
	patch := make(map[string]any, len(props)+1)
	for k, v := range props {
		patch[k] = v
	}
	reason := "duplicate"
	if existing.Metadata.FromRedirect && !existing.Metadata.RedirectCompleted {
		patch[domain.KeyRedirectCompleted] = true
		reason = "redirect_completion"
	}

	if _, err := s.repo.UpdateResponse(ctx, s.db, existing.TenantID, existing.TransactionID, patch); err != nil {
		return nil, payerr.Persistence(op, "merge transaction properties", err).
			With("transaction_id", existing.TransactionID.String())
	}
	current, err := s.repo.FindLatestByTransaction(ctx, s.db, existing.TenantID, existing.TransactionID)
	if err != nil || current == nil {
		return nil, payerr.Persistence(op, "reload transaction", err).
			With("transaction_id", existing.TransactionID.String())
	}

	s.metrics.RecordReplay(ctx, string(existing.TransactionType), reason)
	s.log.Info("transaction replayed from ledger",
		zap.String("tenant_id", existing.TenantID.String()),
		zap.String("transaction_id", existing.TransactionID.String()),
		zap.String("reason", reason),
	)
	view := domain.NewView(*current)
	return &view, nil
}

// followUp runs capture, void and refund against the latest successful
// authorization of the payment.
func (s *Service) followUp(ctx context.Context, txType domain.TransactionType, req domain.Request) (view *domain.TransactionView, err error) {
	op := "transaction." + strings.ToLower(string(txType))
	ctx, span := s.startSpan(ctx, strings.ToLower(string(txType)), req)
	defer func() { endSpan(span, err) }()

	currency, err := validateFollowUp(op, req)
	if err != nil {
		return nil, err
	}

	prior, err := s.repo.FindSuccessfulAuthorization(ctx, s.db, req.TenantID, req.PaymentID)
	if err != nil {
		return nil, payerr.Persistence(op, "load prior authorization", err)
	}
	if prior == nil || prior.GatewayReference() == "" {
		return nil, payerr.NotFound(op, "no prior authorization for payment").
			With("payment_id", req.PaymentID.String()).
			With("transaction_id", req.TransactionID.String())
	}
	reference := prior.GatewayReference()

	if err := s.admit(ctx, op, req.TenantID); err != nil {
		return nil, err
	}
	client, _, err := s.gateways.ClientFor(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	var result *gateway.TxResult
	switch txType {
	case domain.TransactionTypeCapture:
		result, err = client.SubmitForSettlement(ctx, reference, req.Amount)
	case domain.TransactionTypeVoid:
		result, err = client.Void(ctx, reference)
	case domain.TransactionTypeRefund:
		result, err = client.Refund(ctx, reference, req.Amount)
	}
	s.observeGatewayCall(ctx, strings.ToLower(string(txType)), started, result, err)
	if errors.Is(err, gateway.ErrPartialRefundUnsettled) {
		return nil, payerr.New(payerr.KindValidation, op, "partial refund of an unsettled transaction is not supported", err).
			With("gateway_transaction_id", reference)
	}
	if err != nil {
		return nil, payerr.Gateway(op, err).With("gateway_transaction_id", reference)
	}

	var currencyPtr *string
	if currency != "" {
		currencyPtr = &currency
	}
	return s.store(ctx, op, txType, req, currencyPtr, result)
}

// store appends the ledger row for a completed gateway call.
func (s *Service) store(ctx context.Context, op string, txType domain.TransactionType, req domain.Request, currency *string, result *gateway.TxResult) (*domain.TransactionView, error) {
	metadata := domain.MetadataFromMap(req.Properties).Merge(resultMetadata(result))
	record := domain.TransactionRecord{
		TenantID:        req.TenantID,
		AccountID:       req.AccountID,
		PaymentID:       req.PaymentID,
		TransactionID:   req.TransactionID,
		TransactionType: txType,
		Currency:        currency,
		Metadata:        metadata,
		CreatedAt:       s.clock.Now(),
	}
	if req.Amount != nil {
		record.Amount = decimal.NewNullDecimal(*req.Amount)
	}
	if result != nil && result.Transaction != nil {
		record.GatewayTransactionID = result.Transaction.ID
	}
	record.UpdatedAt = record.CreatedAt

	if err := s.repo.AddResponse(ctx, s.db, &record); err != nil {
		s.log.Error("gateway call succeeded but ledger write failed",
			zap.String("tenant_id", req.TenantID.String()),
			zap.String("transaction_id", req.TransactionID.String()),
			zap.String("gateway_transaction_id", record.GatewayTransactionID),
			zap.Bool("duplicate", db.IsDuplicateKeyErr(err)),
			zap.Error(err),
		)
		return nil, payerr.FundsMovedPersistence(op, record.GatewayTransactionID, err).
			With("transaction_id", req.TransactionID.String())
	}

	s.log.Info("transaction recorded",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("transaction_id", req.TransactionID.String()),
		zap.String("type", string(txType)),
		zap.String("gateway_status", record.Metadata.GatewayStatus),
		zap.Bool("success", result != nil && result.Success),
	)
	view := domain.NewView(record)
	return &view, nil
}

func (s *Service) recordForm(ctx context.Context, req domain.Request, fields map[string]any) error {
	return s.repo.InsertRedirectRequest(ctx, s.db, &domain.RedirectRequest{
		ID:            s.genID.Generate(),
		TenantID:      req.TenantID,
		AccountID:     req.AccountID,
		PaymentID:     uuid.NullUUID{UUID: req.PaymentID, Valid: req.PaymentID != uuid.Nil},
		TransactionID: uuid.NullUUID{UUID: req.TransactionID, Valid: req.TransactionID != uuid.Nil},
		Fields:        datatypes.JSONMap(fields),
		CreatedAt:     s.clock.Now(),
	})
}

// resultMetadata flattens a gateway result into ledger metadata. The error
// fields come from the response block matching the failure status.
func resultMetadata(result *gateway.TxResult) map[string]any {
	out := map[string]any{}
	if result == nil {
		return out
	}
	out[domain.KeyGatewaySuccess] = result.Success

	tx := result.Transaction
	if tx != nil {
		out[domain.KeyGatewayStatus] = tx.Status
		out[domain.KeyInstrumentType] = tx.PaymentInstrumentType
		out[domain.KeyFirstReferenceID] = tx.ID
		out[domain.KeySecondReferenceID] = tx.RetrievalReferenceNumber
	}
	if result.Success {
		return out
	}

	message, code := result.Message, ""
	if tx != nil {
		switch tx.Status {
		case gateway.StatusProcessorDeclined:
			message, code = tx.ProcessorResponseText, tx.ProcessorResponseCode
		case gateway.StatusSettlementDeclined:
			message, code = tx.SettlementResponseText, tx.SettlementResponseCode
		case gateway.StatusGatewayRejected:
			message, code = tx.NetworkResponseText, tx.NetworkResponseCode
			if message == "" {
				message = tx.GatewayRejectionReason
			}
		}
	}
	out[domain.KeyErrorMessage] = message
	if code != "" {
		out[domain.KeyErrorCode] = code
	}
	return out
}

func formFields(txType domain.TransactionType, req domain.Request, currency string) map[string]any {
	fields := make(map[string]any, len(req.Properties)+3)
	for k, v := range req.Properties {
		fields[k] = v
	}
	fields[fieldAmount] = req.Amount.String()
	fields[fieldCurrency] = currency
	fields[fieldTransactionType] = string(txType)
	return fields
}

func customerProperty(props map[string]any) string {
	value, ok := props[accountdomain.PropertyCustomerID]
	if !ok {
		return ""
	}
	customerID, _ := value.(string)
	if accountdomain.IsPlaceholder(customerID) {
		return ""
	}
	return strings.TrimSpace(customerID)
}

func validateIDs(op string, req domain.Request) error {
	switch {
	case req.TenantID == uuid.Nil:
		return payerr.Validation(op, "tenant is required")
	case req.PaymentID == uuid.Nil:
		return payerr.Validation(op, "payment_id is required")
	case req.TransactionID == uuid.Nil:
		return payerr.Validation(op, "transaction_id is required")
	}
	return nil
}

func validateInitial(op string, req domain.Request) (string, error) {
	if err := validateIDs(op, req); err != nil {
		return "", err
	}
	if req.AccountID == uuid.Nil {
		return "", payerr.Validation(op, "account_id is required")
	}
	if req.PaymentMethodID == uuid.Nil {
		return "", payerr.Validation(op, "payment_method_id is required")
	}
	if req.Amount == nil || !req.Amount.IsPositive() {
		return "", payerr.New(payerr.KindValidation, op, "amount must be positive", domain.ErrInvalidAmount)
	}
	currency, err := domain.NormalizeCurrency(req.Currency)
	if err != nil {
		return "", payerr.New(payerr.KindValidation, op, "currency must be an ISO-4217 code", err)
	}
	return currency, nil
}

func validateFollowUp(op string, req domain.Request) (string, error) {
	if err := validateIDs(op, req); err != nil {
		return "", err
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return "", payerr.New(payerr.KindValidation, op, "amount must be positive", domain.ErrInvalidAmount)
	}
	if strings.TrimSpace(req.Currency) == "" {
		return "", nil
	}
	currency, err := domain.NormalizeCurrency(req.Currency)
	if err != nil {
		return "", payerr.New(payerr.KindValidation, op, "currency must be an ISO-4217 code", err)
	}
	return currency, nil
}
