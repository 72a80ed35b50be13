// Package gateway defines the contract the orchestrator uses to talk to the
// payment gateway.
package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smallbiznis/railzway-braintree/internal/config"
)

// Gateway transaction statuses.
const (
	StatusAuthorizationExpired   = "authorization_expired"
	StatusAuthorized             = "authorized"
	StatusAuthorizing            = "authorizing"
	StatusSettlementPending      = "settlement_pending"
	StatusSettlementConfirmed    = "settlement_confirmed"
	StatusSettlementDeclined     = "settlement_declined"
	StatusFailed                 = "failed"
	StatusGatewayRejected        = "gateway_rejected"
	StatusProcessorDeclined      = "processor_declined"
	StatusSettled                = "settled"
	StatusSettling               = "settling"
	StatusSubmittedForSettlement = "submitted_for_settlement"
	StatusVoided                 = "voided"
)

type InstrumentType string

const (
	InstrumentCard   InstrumentType = "card"
	InstrumentACH    InstrumentType = "ach"
	InstrumentPayPal InstrumentType = "paypal"
)

var ErrInvalidInstrumentType = errors.New("invalid_payment_instrument_type")

// ParseInstrumentType accepts the supported instrument type names, case-insensitive.
func ParseInstrumentType(value string) (InstrumentType, error) {
	switch InstrumentType(strings.ToLower(strings.TrimSpace(value))) {
	case InstrumentCard, "credit_card", "creditcard":
		return InstrumentCard, nil
	case InstrumentACH, "us_bank_account":
		return InstrumentACH, nil
	case InstrumentPayPal, "paypal_account":
		return InstrumentPayPal, nil
	}
	return "", ErrInvalidInstrumentType
}

var (
	// ErrPartialRefundUnsettled is returned when a partial refund is requested
	// for a transaction that has not started settling.
	ErrPartialRefundUnsettled = errors.New("partial_refund_on_unsettled_transaction")
	ErrNotFound               = errors.New("gateway_resource_not_found")
	ErrUnauthorized           = errors.New("gateway_authentication_failed")
)

// Error is a failure reported by or while talking to the gateway.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return "gateway: " + msg
	}
	return "gateway " + e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Transaction is the gateway's view of one transaction.
type Transaction struct {
	ID                       string
	Status                   string
	Type                     string
	Amount                   decimal.Decimal
	CurrencyISOCode          string
	CustomerID               string
	PaymentInstrumentType    string
	RetrievalReferenceNumber string
	ProcessorResponseCode    string
	ProcessorResponseText    string
	SettlementResponseCode   string
	SettlementResponseText   string
	NetworkResponseCode      string
	NetworkResponseText      string
	GatewayRejectionReason   string
}

// TxResult is the outcome of a transaction call. Transaction is set whenever
// the gateway created one, including declines.
type TxResult struct {
	Success     bool
	Message     string
	Transaction *Transaction
}

// Method is a payment instrument vaulted in the gateway.
type Method struct {
	Token          string
	CustomerID     string
	IsDefault      bool
	InstrumentType InstrumentType
	Details        map[string]string
}

type MethodResult struct {
	Success bool
	Message string
	Method  *Method
}

// Client is the gateway surface used by the bridge. Every call may fail with
// an *Error.
type Client interface {
	Sale(ctx context.Context, amount decimal.Decimal, customerID, nonce string, submitForSettlement bool) (*TxResult, error)
	SubmitForSettlement(ctx context.Context, transactionID string, amount *decimal.Decimal) (*TxResult, error)
	Void(ctx context.Context, transactionID string) (*TxResult, error)
	// Refund refunds a settling or settled transaction, or voids an unsettled
	// one when the full amount is requested. A nil amount means the full amount.
	Refund(ctx context.Context, transactionID string, amount *decimal.Decimal) (*TxResult, error)
	Credit(ctx context.Context, amount decimal.Decimal, customerID, nonce string) (*TxResult, error)

	CreatePaymentMethod(ctx context.Context, customerID, token, nonce string, instrument InstrumentType) (*MethodResult, error)
	UpdatePaymentMethod(ctx context.Context, oldToken, newToken, newCustomerID string) (*MethodResult, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]Method, error)
	DeletePaymentMethod(ctx context.Context, token string) (*MethodResult, error)

	// CreateNonceFromToken returns ok=false when the gateway has no such token.
	CreateNonceFromToken(ctx context.Context, token string) (nonce string, ok bool, err error)
	GetTransactionStatus(ctx context.Context, transactionID string) (string, error)
}

// Factory builds a Client for resolved tenant settings.
type Factory interface {
	NewClient(settings config.GatewaySettings) (Client, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(settings config.GatewaySettings) (Client, error)

func (f FactoryFunc) NewClient(settings config.GatewaySettings) (Client, error) {
	return f(settings)
}

// ClientProvider resolves the tenant's effective settings and a client bound
// to them.
type ClientProvider interface {
	ClientFor(ctx context.Context, tenantID uuid.UUID) (Client, config.GatewaySettings, error)
}
