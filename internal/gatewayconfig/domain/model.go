package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/smallbiznis/railzway-braintree/internal/config"
	"github.com/smallbiznis/railzway-braintree/internal/gateway"
)

// TenantConfig holds a tenant's encrypted gateway overrides.
type TenantConfig struct {
	ID        snowflake.ID   `json:"id" gorm:"primaryKey"`
	TenantID  uuid.UUID      `json:"tenant_id" gorm:"type:text;not null;uniqueIndex:ux_gateway_tenant_configs_tenant"`
	Config    datatypes.JSON `json:"config" gorm:"type:text;not null"`
	IsActive  bool           `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"not null"`
}

func (TenantConfig) TableName() string { return "gateway_tenant_configs" }

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, tenantID uuid.UUID) (*TenantConfig, error)
	Upsert(ctx context.Context, db *gorm.DB, cfg *TenantConfig) error
	UpdateStatus(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, isActive bool, updatedAt time.Time) (bool, error)
}

type Service interface {
	gateway.ClientProvider

	UpsertConfig(ctx context.Context, tenantID uuid.UUID, values map[string]any) (*ConfigSummary, error)
	SetActive(ctx context.Context, tenantID uuid.UUID, isActive bool) (*ConfigSummary, error)
	Resolve(ctx context.Context, tenantID uuid.UUID) (config.GatewaySettings, error)
}

// ConfigSummary never echoes credential values.
type ConfigSummary struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	IsActive   bool      `json:"is_active"`
	Configured bool      `json:"configured"`
	Keys       []string  `json:"keys"`
}

var (
	ErrInvalidConfig        = errors.New("invalid_config")
	ErrNotFound             = errors.New("not_found")
	ErrEncryptionKeyMissing = errors.New("encryption_key_missing")
)
