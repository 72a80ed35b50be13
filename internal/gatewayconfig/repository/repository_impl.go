package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smallbiznis/railzway-braintree/internal/gatewayconfig/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, tenantID uuid.UUID) (*domain.TenantConfig, error) {
	var items []domain.TenantConfig
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, config, is_active, created_at, updated_at
		 FROM gateway_tenant_configs
		 WHERE tenant_id = ?
		 LIMIT 1`,
		tenantID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, cfg *domain.TenantConfig) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO gateway_tenant_configs (
			id, tenant_id, config, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id)
		DO UPDATE SET config = EXCLUDED.config,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`,
		cfg.ID,
		cfg.TenantID,
		cfg.Config,
		cfg.IsActive,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, isActive bool, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE gateway_tenant_configs
		 SET is_active = ?, updated_at = ?
		 WHERE tenant_id = ?`,
		isActive,
		updatedAt,
		tenantID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
