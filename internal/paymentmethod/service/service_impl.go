package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	accountdomain "github.com/smallbiznis/railzway-braintree/internal/account/domain"
	"github.com/smallbiznis/railzway-braintree/internal/clock"
	"github.com/smallbiznis/railzway-braintree/internal/gateway"
	"github.com/smallbiznis/railzway-braintree/internal/payerr"
	"github.com/smallbiznis/railzway-braintree/internal/paymentmethod/domain"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Clock     clock.Clock
	Accounts  accountdomain.Service
	Gateways  gateway.ClientProvider
	Registrar domain.Registrar `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	clock     clock.Clock
	accounts  accountdomain.Service
	gateways  gateway.ClientProvider
	registrar domain.Registrar
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	registrar := p.Registrar
	if registrar == nil {
		registrar = NewLocalRegistrar()
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("paymentmethod.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		clock:     clk,
		accounts:  p.Accounts,
		gateways:  p.Gateways,
		registrar: registrar,
	}
}

func (s *Service) AddPaymentMethod(ctx context.Context, req domain.AddRequest) (*domain.Detail, error) {
	const op = "paymentmethod.add"
	if req.TenantID == uuid.Nil || req.AccountID == uuid.Nil {
		return nil, payerr.New(payerr.KindValidation, op, "account is required", domain.ErrInvalidAccount)
	}
	if req.PaymentMethodID == uuid.Nil {
		return nil, payerr.New(payerr.KindValidation, op, "payment method id is required", domain.ErrInvalidPaymentMethod)
	}
	token := req.PaymentMethodID.String()
	externalID := strings.TrimSpace(req.ExternalID)
	retoken := externalID != "" && externalID != token

	var (
		instrument gateway.InstrumentType
		nonce      string
	)
	if !retoken {
		var err error
		instrument, err = gateway.ParseInstrumentType(orDefault(req.Properties[domain.PropertyInstrumentType], string(gateway.InstrumentCard)))
		if err != nil {
			return nil, payerr.New(payerr.KindValidation, op, "unsupported payment method type", err)
		}
		nonce = strings.TrimSpace(req.Properties[domain.PropertyNonce])
		if nonce == "" || accountdomain.IsPlaceholder(nonce) {
			return nil, payerr.Validation(op, "missing required property "+domain.PropertyNonce)
		}
	}

	if customerID := req.Properties[accountdomain.PropertyCustomerID]; !accountdomain.IsPlaceholder(customerID) {
		if err := s.accounts.SetCustomerID(ctx, req.TenantID, req.AccountID, customerID); err != nil {
			return nil, err
		}
	}
	customerID, _, err := s.accounts.GetCustomerID(ctx, req.TenantID, req.AccountID)
	if err != nil {
		return nil, err
	}

	client, _, err := s.gateways.ClientFor(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	var result *gateway.MethodResult
	if retoken {
		result, err = client.UpdatePaymentMethod(ctx, externalID, token, customerID)
		if err != nil {
			return nil, payerr.Gateway(op, err).With("external_id", externalID)
		}
		if !result.Success {
			return nil, payerr.New(payerr.KindGateway, op, "could not update payment method in gateway", errors.New(result.Message)).
				With("external_id", externalID)
		}
	} else {
		result, err = client.CreatePaymentMethod(ctx, customerID, token, nonce, instrument)
		if err != nil {
			return nil, payerr.Gateway(op, err).With("payment_method_id", token)
		}
		if !result.Success || result.Method == nil || result.Method.Token != token {
			return nil, payerr.New(payerr.KindGateway, op, "could not create payment method in gateway", errors.New(result.Message)).
				With("payment_method_id", token)
		}
	}

	method := gateway.Method{Token: token, CustomerID: customerID, InstrumentType: instrument}
	if result.Method != nil {
		method = *result.Method
		method.Token = token
		if method.CustomerID == "" {
			method.CustomerID = customerID
		}
	}
	method.IsDefault = method.IsDefault || req.IsDefault

	record, err := s.upsertMirror(ctx, s.db, req.TenantID, req.AccountID, req.PaymentMethodID, method, callerMetadata(req.Properties))
	if err != nil {
		return nil, payerr.FundsMovedPersistence(op, token, err).With("payment_method_id", token)
	}

	s.log.Info("payment method added",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("account_id", req.AccountID.String()),
		zap.String("payment_method_id", token),
		zap.Bool("retokened", retoken),
	)
	detail := domain.NewDetail(*record)
	return &detail, nil
}

func (s *Service) DeletePaymentMethod(ctx context.Context, tenantID, accountID, paymentMethodID uuid.UUID) error {
	const op = "paymentmethod.delete"
	record, err := s.repo.FindByPaymentMethodID(ctx, s.db, tenantID, paymentMethodID)
	if err != nil {
		return payerr.Persistence(op, "load payment method", err)
	}
	if record == nil || record.AccountID != accountID {
		return payerr.New(payerr.KindNotFound, op, "unknown payment method", domain.ErrNotFound).
			With("payment_method_id", paymentMethodID.String())
	}

	client, _, err := s.gateways.ClientFor(ctx, tenantID)
	if err != nil {
		return err
	}
	result, err := client.DeletePaymentMethod(ctx, record.GatewayToken)
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		s.log.Warn("payment method already removed in gateway", zap.String("token", record.GatewayToken))
	case err != nil:
		return payerr.Gateway(op, err).With("payment_method_id", paymentMethodID.String())
	case !result.Success:
		return payerr.New(payerr.KindGateway, op, "could not delete payment method in gateway", errors.New(result.Message)).
			With("payment_method_id", paymentMethodID.String())
	}

	if _, err := s.repo.SoftDelete(ctx, s.db, record.ID, s.clock.Now()); err != nil {
		return payerr.FundsMovedPersistence(op, record.GatewayToken, err)
	}
	return nil
}

// GetPaymentMethodDetail returns an empty detail for methods the mirror does
// not know, e.g. ones already removed in the gateway.
func (s *Service) GetPaymentMethodDetail(ctx context.Context, tenantID, accountID, paymentMethodID uuid.UUID) (*domain.Detail, error) {
	record, err := s.repo.FindByPaymentMethodID(ctx, s.db, tenantID, paymentMethodID)
	if err != nil {
		return nil, payerr.Persistence("paymentmethod.get_detail", "load payment method", err)
	}
	if record == nil || record.AccountID != accountID {
		return &domain.Detail{PaymentMethodID: paymentMethodID, Properties: map[string]string{}}, nil
	}
	detail := domain.NewDetail(*record)
	return &detail, nil
}

func (s *Service) GetPaymentMethods(ctx context.Context, tenantID, accountID uuid.UUID, refresh bool) ([]domain.Info, error) {
	const op = "paymentmethod.list"
	if refresh {
		customerID, ok, err := s.accounts.GetCustomerID(ctx, tenantID, accountID)
		if err != nil {
			return nil, err
		}
		if ok {
			client, _, err := s.gateways.ClientFor(ctx, tenantID)
			if err != nil {
				return nil, err
			}
			methods, err := client.ListPaymentMethods(ctx, customerID)
			if err != nil {
				return nil, payerr.Gateway(op, err).With("account_id", accountID.String())
			}
			if _, err := s.Sync(ctx, tenantID, accountID, methods); err != nil {
				return nil, err
			}
		}
	}

	records, err := s.repo.ListActive(ctx, s.db, tenantID, accountID)
	if err != nil {
		return nil, payerr.Persistence(op, "list payment methods", err)
	}
	out := make([]domain.Info, 0, len(records))
	for _, r := range records {
		out = append(out, domain.NewInfo(r))
	}
	return out, nil
}

func (s *Service) Lookup(ctx context.Context, tenantID, paymentMethodID uuid.UUID) (*domain.PaymentMethodRecord, error) {
	const op = "paymentmethod.lookup"
	record, err := s.repo.FindByPaymentMethodID(ctx, s.db, tenantID, paymentMethodID)
	if err != nil {
		return nil, payerr.Persistence(op, "load payment method", err)
	}
	if record == nil {
		return nil, payerr.New(payerr.KindNotFound, op, "unknown payment method", domain.ErrNotFound).
			With("payment_method_id", paymentMethodID.String())
	}
	return record, nil
}

// upsertMirror writes the row for a method the gateway just confirmed. A row
// of the same account already holding the token is updated instead of
// duplicated; a row of another account is retired so the token moves here.
func (s *Service) upsertMirror(ctx context.Context, db *gorm.DB, tenantID, accountID, paymentMethodID uuid.UUID, method gateway.Method, extra map[string]any) (*domain.PaymentMethodRecord, error) {
	now := s.clock.Now()
	existing, err := s.repo.FindByToken(ctx, db, tenantID, method.Token)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.AccountID != accountID {
		if _, err := s.repo.SoftDelete(ctx, db, existing.ID, now); err != nil {
			return nil, err
		}
		s.log.Info("moving payment method token to another account",
			zap.String("tenant_id", tenantID.String()),
			zap.String("from_account_id", existing.AccountID.String()),
			zap.String("to_account_id", accountID.String()),
		)
		existing = nil
	}
	if existing != nil {
		existing.Metadata = mergeMetadata(existing.Metadata, extra, methodMetadata(method))
		existing.IsDefault = method.IsDefault
		existing.CustomerID = method.CustomerID
		existing.InstrumentType = string(method.InstrumentType)
		existing.UpdatedAt = now
		if err := s.repo.Update(ctx, db, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	record := &domain.PaymentMethodRecord{
		ID:              s.genID.Generate(),
		TenantID:        tenantID,
		AccountID:       accountID,
		PaymentMethodID: paymentMethodID,
		GatewayToken:    method.Token,
		CustomerID:      method.CustomerID,
		InstrumentType:  string(method.InstrumentType),
		IsDefault:       method.IsDefault,
		Metadata:        mergeMetadata(nil, extra, methodMetadata(method)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, db, record); err != nil {
		return nil, err
	}
	return record, nil
}

func methodMetadata(m gateway.Method) map[string]any {
	out := make(map[string]any, len(m.Details)+2)
	for k, v := range m.Details {
		out[k] = v
	}
	if m.CustomerID != "" {
		out[domain.MetaCustomerID] = m.CustomerID
	}
	if m.InstrumentType != "" {
		out[domain.MetaInstrumentType] = string(m.InstrumentType)
	}
	return out
}

// callerMetadata keeps caller properties except the single-use nonce.
func callerMetadata(props map[string]string) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if k == domain.PropertyNonce || k == accountdomain.PropertyCustomerID {
			continue
		}
		out[k] = v
	}
	return out
}

// mergeMetadata layers each map over base; later layers win.
func mergeMetadata(base datatypes.JSONMap, layers ...map[string]any) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range base {
		out[k] = v
	}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

func orDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
