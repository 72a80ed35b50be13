package domain

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// PropertyCustomerID is the caller property carrying the gateway customer id.
	PropertyCustomerID = "gateway_customer_id"
	// CustomerPlaceholder is sent by callers that have no gateway customer yet.
	CustomerPlaceholder = "NULL"
)

// CustomerMapping binds a billing account to its gateway customer id.
type CustomerMapping struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	TenantID   uuid.UUID    `json:"tenant_id" gorm:"type:text;not null;uniqueIndex:ux_account_customer_mappings_account,priority:1"`
	AccountID  uuid.UUID    `json:"account_id" gorm:"type:text;not null;uniqueIndex:ux_account_customer_mappings_account,priority:2"`
	CustomerID string       `json:"customer_id" gorm:"type:text;not null"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null"`
}

func (CustomerMapping) TableName() string { return "account_customer_mappings" }

// IsPlaceholder reports whether value carries no real customer id.
func IsPlaceholder(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || strings.EqualFold(value, CustomerPlaceholder)
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, tenantID, accountID uuid.UUID) (*CustomerMapping, error)
	// Insert returns false when a mapping for the account already exists.
	Insert(ctx context.Context, db *gorm.DB, mapping *CustomerMapping) (bool, error)
}

// Service resolves and records gateway customer ids.
type Service interface {
	GetCustomerID(ctx context.Context, tenantID, accountID uuid.UUID) (string, bool, error)
	// SetCustomerID records the first mapping. A different id for an already
	// mapped account is a validation error.
	SetCustomerID(ctx context.Context, tenantID, accountID uuid.UUID, customerID string) error
}
