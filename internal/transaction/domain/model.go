package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypeAuthorize TransactionType = "AUTHORIZE"
	TransactionTypeCapture   TransactionType = "CAPTURE"
	TransactionTypePurchase  TransactionType = "PURCHASE"
	TransactionTypeVoid      TransactionType = "VOID"
	TransactionTypeRefund    TransactionType = "REFUND"
	TransactionTypeCredit    TransactionType = "CREDIT"
)

// IsInitial reports whether the type can originate a new gateway transaction.
func (t TransactionType) IsInitial() bool {
	switch t {
	case TransactionTypeAuthorize, TransactionTypePurchase, TransactionTypeCredit:
		return true
	}
	return false
}

const errorCodeMaxLength = 32

var (
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrRecordNotFound  = errors.New("transaction_record_not_found")
)

// TransactionRecord is one ledger row per submitted transaction attempt.
// RecordID is the insertion sequence and defines "latest".
type TransactionRecord struct {
	RecordID             int64               `json:"record_id" gorm:"column:record_id;primaryKey;autoIncrement"`
	TenantID             uuid.UUID           `json:"tenant_id" gorm:"type:text;not null;uniqueIndex:ux_gateway_responses_tenant_transaction,priority:1"`
	AccountID            uuid.UUID           `json:"account_id" gorm:"type:text;not null"`
	PaymentID            uuid.UUID           `json:"payment_id" gorm:"type:text;not null;index"`
	TransactionID        uuid.UUID           `json:"transaction_id" gorm:"type:text;not null;uniqueIndex:ux_gateway_responses_tenant_transaction,priority:2"`
	TransactionType      TransactionType     `json:"transaction_type" gorm:"type:text;not null"`
	GatewayTransactionID string              `json:"gateway_transaction_id" gorm:"type:text"`
	Amount               decimal.NullDecimal `json:"amount" gorm:"type:numeric"`
	Currency             *string             `json:"currency" gorm:"type:text"`
	Metadata             Metadata            `json:"metadata" gorm:"type:text;not null"`
	CreatedAt            time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time           `json:"updated_at" gorm:"not null"`
}

func (TransactionRecord) TableName() string { return "gateway_responses" }

// GatewayReference returns the gateway transaction id of the row, if any.
func (r TransactionRecord) GatewayReference() string {
	if r.GatewayTransactionID != "" {
		return r.GatewayTransactionID
	}
	return r.Metadata.FirstReferenceID
}

// RedirectRequest logs one hosted-page or redirect attempt. Never mutated.
type RedirectRequest struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	TenantID      uuid.UUID         `json:"tenant_id" gorm:"type:text;not null"`
	AccountID     uuid.UUID         `json:"account_id" gorm:"type:text;not null"`
	PaymentID     uuid.NullUUID     `json:"payment_id" gorm:"type:text"`
	TransactionID uuid.NullUUID     `json:"transaction_id" gorm:"type:text"`
	Fields        datatypes.JSONMap `json:"fields" gorm:"type:text"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null"`
}

func (RedirectRequest) TableName() string { return "hpp_requests" }

// TransactionView is the caller-facing shape of a ledger row.
type TransactionView struct {
	AccountID           uuid.UUID        `json:"account_id"`
	PaymentID           uuid.UUID        `json:"payment_id"`
	TransactionID       uuid.UUID        `json:"transaction_id"`
	TransactionType     TransactionType  `json:"transaction_type"`
	Amount              *decimal.Decimal `json:"amount,omitempty"`
	Currency            *string          `json:"currency,omitempty"`
	Status              Status           `json:"status"`
	GatewayErrorMessage string           `json:"gateway_error,omitempty"`
	GatewayErrorCode    string           `json:"gateway_error_code,omitempty"`
	FirstReferenceID    string           `json:"first_payment_reference_id,omitempty"`
	SecondReferenceID   string           `json:"second_payment_reference_id,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	EffectiveAt         time.Time        `json:"effective_at"`
	Properties          map[string]any   `json:"properties"`
}

// NewView converts a ledger row to its caller-facing view.
func NewView(r TransactionRecord) TransactionView {
	view := TransactionView{
		AccountID:           r.AccountID,
		PaymentID:           r.PaymentID,
		TransactionID:       r.TransactionID,
		TransactionType:     r.TransactionType,
		Currency:            r.Currency,
		Status:              StatusOf(r),
		GatewayErrorMessage: r.Metadata.ErrorMessage,
		GatewayErrorCode:    truncate(r.Metadata.ErrorCode, errorCodeMaxLength),
		FirstReferenceID:    r.GatewayReference(),
		SecondReferenceID:   r.Metadata.SecondReferenceID,
		CreatedAt:           r.CreatedAt,
		EffectiveAt:         r.CreatedAt,
		Properties:          r.Metadata.ToMap(),
	}
	if r.Amount.Valid {
		amount := r.Amount.Decimal
		view.Amount = &amount
	}
	if view.GatewayErrorMessage == "" && view.Status == StatusCanceled {
		view.GatewayErrorMessage = r.Metadata.Message
	}
	return view
}

func NewViews(records []TransactionRecord) []TransactionView {
	views := make([]TransactionView, 0, len(records))
	for _, r := range records {
		views = append(views, NewView(r))
	}
	return views
}

// NormalizeCurrency validates an ISO-4217 alpha code.
func NormalizeCurrency(value string) (string, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if len(value) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range value {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return value, nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}

// Repository is the ledger store. All methods are scoped by tenant.
type Repository interface {
	AddResponse(ctx context.Context, db *gorm.DB, record *TransactionRecord) error
	// UpdateResponse merges props into the latest row for transactionID and
	// returns the row as it was before the merge, or nil when none exists.
	UpdateResponse(ctx context.Context, db *gorm.DB, tenantID, transactionID uuid.UUID, props map[string]any) (*TransactionRecord, error)
	UpdateResponseRow(ctx context.Context, db *gorm.DB, row TransactionRecord, overrides map[string]any) (*TransactionRecord, error)
	FindSuccessfulAuthorization(ctx context.Context, db *gorm.DB, tenantID, paymentID uuid.UUID) (*TransactionRecord, error)
	FindLatestByTransaction(ctx context.Context, db *gorm.DB, tenantID, transactionID uuid.UUID) (*TransactionRecord, error)
	ListByPayment(ctx context.Context, db *gorm.DB, tenantID, paymentID uuid.UUID) ([]TransactionRecord, error)

	InsertRedirectRequest(ctx context.Context, db *gorm.DB, req *RedirectRequest) error
	FindRedirectRequest(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, id snowflake.ID) (*RedirectRequest, error)
}
