package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/smallbiznis/railzway-braintree/internal/gateway"
)

// Caller properties understood by AddPaymentMethod.
const (
	PropertyNonce          = "gateway_nonce"
	PropertyInstrumentType = "payment_method_type"
)

// Metadata keys written on mirror rows.
const (
	MetaCustomerID     = "gateway_customer_id"
	MetaInstrumentType = "instrument_type"
)

var (
	ErrInvalidAccount       = errors.New("invalid_account")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrNotFound             = errors.New("payment_method_not_found")
)

// PaymentMethodRecord mirrors one instrument vaulted in the gateway. Rows are
// soft-deleted and kept for audit.
type PaymentMethodRecord struct {
	ID              snowflake.ID      `json:"id" gorm:"primaryKey"`
	TenantID        uuid.UUID         `json:"tenant_id" gorm:"type:text;not null;index:ix_payment_methods_account,priority:1;uniqueIndex:ux_payment_methods_tenant_token,priority:1,where:is_deleted = false"`
	AccountID       uuid.UUID         `json:"account_id" gorm:"type:text;not null;index:ix_payment_methods_account,priority:2"`
	PaymentMethodID uuid.UUID         `json:"payment_method_id" gorm:"type:text;not null;index"`
	GatewayToken    string            `json:"gateway_token" gorm:"type:text;not null;uniqueIndex:ux_payment_methods_tenant_token,priority:2,where:is_deleted = false"`
	CustomerID      string            `json:"customer_id" gorm:"type:text"`
	InstrumentType  string            `json:"instrument_type" gorm:"type:text;not null"`
	IsDefault       bool              `json:"is_default" gorm:"not null;default:false"`
	IsDeleted       bool              `json:"is_deleted" gorm:"not null;default:false"`
	Metadata        datatypes.JSONMap `json:"metadata" gorm:"type:text"`
	CreatedAt       time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time         `json:"updated_at" gorm:"not null"`
}

func (PaymentMethodRecord) TableName() string { return "payment_methods" }

// Detail is the caller-facing view of one payment method.
type Detail struct {
	PaymentMethodID uuid.UUID         `json:"payment_method_id"`
	ExternalID      string            `json:"external_id,omitempty"`
	IsDefault       bool              `json:"is_default"`
	Properties      map[string]string `json:"properties"`
}

type Info struct {
	AccountID       uuid.UUID `json:"account_id"`
	PaymentMethodID uuid.UUID `json:"payment_method_id"`
	ExternalID      string    `json:"external_id"`
	IsDefault       bool      `json:"is_default"`
	IsActive        bool      `json:"is_active"`
}

// AddRequest registers a payment method. ExternalID is set when the
// instrument was created directly in the gateway under another token.
type AddRequest struct {
	TenantID        uuid.UUID
	AccountID       uuid.UUID
	PaymentMethodID uuid.UUID
	ExternalID      string
	IsDefault       bool
	Properties      map[string]string
}

// SyncResult counts the changes of one reconciliation pass.
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *PaymentMethodRecord) error
	FindByPaymentMethodID(ctx context.Context, db *gorm.DB, tenantID, paymentMethodID uuid.UUID) (*PaymentMethodRecord, error)
	FindByToken(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, token string) (*PaymentMethodRecord, error)
	ListActive(ctx context.Context, db *gorm.DB, tenantID, accountID uuid.UUID) ([]PaymentMethodRecord, error)
	Update(ctx context.Context, db *gorm.DB, record *PaymentMethodRecord) error
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, updatedAt time.Time) (bool, error)
}

// Registrar assigns the billing-platform payment method id for an instrument
// discovered in the gateway.
type Registrar interface {
	Register(ctx context.Context, tenantID, accountID uuid.UUID, method gateway.Method) (uuid.UUID, error)
}

type Service interface {
	AddPaymentMethod(ctx context.Context, req AddRequest) (*Detail, error)
	DeletePaymentMethod(ctx context.Context, tenantID, accountID, paymentMethodID uuid.UUID) error
	GetPaymentMethodDetail(ctx context.Context, tenantID, accountID, paymentMethodID uuid.UUID) (*Detail, error)
	GetPaymentMethods(ctx context.Context, tenantID, accountID uuid.UUID, refresh bool) ([]Info, error)
	// Sync converges the active local mirror onto the gateway's list.
	Sync(ctx context.Context, tenantID, accountID uuid.UUID, methods []gateway.Method) (SyncResult, error)
	// Lookup returns the active mirror row for a payment method.
	Lookup(ctx context.Context, tenantID, paymentMethodID uuid.UUID) (*PaymentMethodRecord, error)
}

// NewDetail copies a mirror row into its caller view.
func NewDetail(r PaymentMethodRecord) Detail {
	props := make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		if v != nil {
			props[k] = cast.ToString(v)
		}
	}
	return Detail{
		PaymentMethodID: r.PaymentMethodID,
		ExternalID:      r.GatewayToken,
		IsDefault:       r.IsDefault,
		Properties:      props,
	}
}

func NewInfo(r PaymentMethodRecord) Info {
	return Info{
		AccountID:       r.AccountID,
		PaymentMethodID: r.PaymentMethodID,
		ExternalID:      r.GatewayToken,
		IsDefault:       r.IsDefault,
		IsActive:        !r.IsDeleted,
	}
}
