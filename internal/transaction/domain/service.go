package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request carries one billing operation. Amount and Currency are nil/empty
// for void, and optional for capture and refund (full amount).
type Request struct {
	TenantID        uuid.UUID
	AccountID       uuid.UUID
	PaymentID       uuid.UUID
	TransactionID   uuid.UUID
	PaymentMethodID uuid.UUID
	Amount          *decimal.Decimal
	Currency        string
	Properties      map[string]any
}

// FormRequest asks for a hosted-page form context to be recorded.
type FormRequest struct {
	TenantID      uuid.UUID
	AccountID     uuid.UUID
	PaymentID     uuid.NullUUID
	TransactionID uuid.NullUUID
	Fields        map[string]any
}

type FormDescriptor struct {
	RequestID  snowflake.ID   `json:"request_id,string"`
	AccountID  uuid.UUID      `json:"account_id"`
	FormFields map[string]any `json:"form_fields"`
}

// Service is the caller-facing transaction surface.
type Service interface {
	Authorize(ctx context.Context, req Request) (*TransactionView, error)
	Purchase(ctx context.Context, req Request) (*TransactionView, error)
	Credit(ctx context.Context, req Request) (*TransactionView, error)
	Capture(ctx context.Context, req Request) (*TransactionView, error)
	Void(ctx context.Context, req Request) (*TransactionView, error)
	Refund(ctx context.Context, req Request) (*TransactionView, error)

	// RegisterRedirect pre-creates a pending row for a redirect-flow attempt.
	RegisterRedirect(ctx context.Context, txType TransactionType, req Request) (*TransactionView, error)
	BuildFormDescriptor(ctx context.Context, req FormRequest) (*FormDescriptor, error)

	// GetPaymentInfo reads a payment's history, expiring or refreshing stale
	// rows against the gateway first.
	GetPaymentInfo(ctx context.Context, tenantID, accountID, paymentID uuid.UUID) ([]TransactionView, error)
}
